package telegram

import (
	"strconv"
	"unicode/utf8"

	"video-rater/api/internal/rating"
)

const (
	maxMessage = 3900 // Telegram allows 4096 characters per message
	maxTagLen  = 40   // callback_data is limited to 64 bytes
)

// sessionKey maps a chat to its rating session.
func sessionKey(chatID int64) string { return "tg:" + strconv.FormatInt(chatID, 10) }

// taskTag identifies a task inside callback data so that buttons of a
// replaced task message are recognised as stale, even when the same video
// is sampled again. Format: <serial base36>.<video id prefix>.
func taskTag(task *rating.Task) string {
	tag := strconv.FormatUint(task.Serial, 36) + "."
	if room := maxTagLen - len(tag); len(task.VideoID) > room {
		return tag + task.VideoID[:room]
	}
	return tag + task.VideoID
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}
