package telegram

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"video-rater/api/internal/config"
	"video-rater/api/internal/rating"
)

// Callback data formats:
//
//	q:<row>:<score>:<tag>
//	submit:<tag>
//	skip:<tag>
//	noop
const (
	cbQuality = "q"
	cbSubmit  = "submit"
	cbSkip    = "skip"
	cbNoop    = "noop"
)

// taskKeyboard builds one row of 1..5 buttons per description, then skip (always) and
// submit (only when the session validates).
func taskKeyboard(task *rating.Task, ready bool) tgbotapi.InlineKeyboardMarkup {
	tag := taskTag(task)
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(task.Rows)+1)
	for i, row := range task.Rows {
		btns := []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("#%d", i+1), cbNoop),
		}
		for q := rating.MinQuality; q <= rating.MaxQuality; q++ {
			label := strconv.Itoa(q)
			if row.Quality == label {
				label = "✅" + label
			}
			data := fmt.Sprintf("%s:%d:%d:%s", cbQuality, i, q, tag)
			btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(label, data))
		}
		rows = append(rows, btns)
	}

	last := []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⏭ skip", cbSkip+":"+tag),
	}
	if ready {
		last = append(last, tgbotapi.NewInlineKeyboardButtonData("📤 submit", cbSubmit+":"+tag))
	}
	rows = append(rows, last)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// formatTask renders the task as plain text; descriptions share what is left
// of the message budget.
func formatTask(task *rating.Task, videoURL, name string) string {
	var b strings.Builder
	b.WriteString("🎬 Video to evaluate: ")
	b.WriteString(videoURL)
	b.WriteString("\n")
	if name == "" {
		b.WriteString("Rater: not set, send /name <your name>\n")
	} else {
		b.WriteString("Rater: " + name + "\n")
	}

	budget := maxMessage - b.Len()
	if n := len(task.Rows); n > 0 {
		budget /= n
	}
	budget -= 32 // numbering and quality line
	if budget < 80 {
		budget = 80
	}
	for i, row := range task.Rows {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, truncate(strings.TrimSpace(row.Description), budget))
		q := row.Quality
		if q == "" {
			q = "—"
		}
		b.WriteString("   quality: " + q + "\n")
	}
	return truncate(b.String(), maxMessage)
}

func formatRubric(r *config.Rubric) string {
	var b strings.Builder
	b.WriteString(r.Title)
	b.WriteString("\n\n")
	b.WriteString(r.Instructions)
	b.WriteString("\n\nRating values:\n")
	for _, h := range r.Legend() {
		fmt.Fprintf(&b, " %d: %s\n", h.Score, h.Meaning)
	}
	b.WriteString("\nCommands: /name <your name>, /skip, /help, /stop")
	return b.String()
}

// parseCallback splits callback data into its kind, task tag and arguments.
func parseCallback(data string) (kind, tag string, row, score int, ok bool) {
	if data == cbNoop {
		return cbNoop, "", 0, 0, true
	}
	kind, rest, found := strings.Cut(data, ":")
	if !found {
		return "", "", 0, 0, false
	}
	switch kind {
	case cbSubmit, cbSkip:
		return kind, rest, 0, 0, true
	case cbQuality:
		parts := strings.SplitN(rest, ":", 3)
		if len(parts) != 3 {
			return "", "", 0, 0, false
		}
		var err1, err2 error
		row, err1 = strconv.Atoi(parts[0])
		score, err2 = strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			return "", "", 0, 0, false
		}
		return cbQuality, parts[2], row, score, true
	}
	return "", "", 0, 0, false
}
