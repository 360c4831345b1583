package telegram

import (
	"errors"
	"fmt"
	"log"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"video-rater/api/internal/rating"
)

var errStale = errors.New("stale task message")

func (r *Router) handleCallback(cb tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	cid := cb.Message.Chat.ID
	msgID := cb.Message.MessageID

	kind, tag, row, score, ok := parseCallback(cb.Data)
	if !ok {
		r.ack(cb.ID, "")
		return
	}

	switch kind {
	case cbNoop:
		r.ack(cb.ID, "")
	case cbQuality:
		r.onQuality(cb.ID, cid, msgID, tag, row, score)
	case cbSubmit:
		r.onSubmit(cb.ID, cid, msgID, tag)
	case cbSkip:
		r.onSkip(cb.ID, cid, msgID, tag)
	}
}

// onQuality is the cell-edit event: it sets one row's quality and redraws the task message.
func (r *Router) onQuality(cbID string, chatID int64, msgID int, tag string, row, score int) {
	var edit tgbotapi.Chattable
	err := r.Sessions.With(sessionKey(chatID), func(s *rating.Session) error {
		if s.Task == nil || taskTag(s.Task) != tag {
			return errStale
		}
		err := s.DataChanged(map[int]map[string]string{row: {rating.ColQuality: strconv.Itoa(score)}})
		if err != nil {
			return err
		}
		text := formatTask(s.Task, rating.VideoURL(r.VideoURLFormat, s.Task.VideoID), s.Name)
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, msgID, text, taskKeyboard(s.Task, s.Ready))
		return nil
	})
	if err != nil {
		r.ack(cbID, "This task is no longer active.")
		return
	}
	r.ack(cbID, "")
	if _, err := r.Bot.Send(edit); err != nil {
		log.Printf("telegram: redraw chat=%d: %v", chatID, err)
	}
}

func (r *Router) onSubmit(cbID string, chatID int64, msgID int, tag string) {
	ctx, cancel := r.context()
	defer cancel()

	var (
		n       int
		videoID string
		rater   string
	)
	err := r.Sessions.With(sessionKey(chatID), func(s *rating.Session) error {
		if s.Task == nil || taskTag(s.Task) != tag {
			return errStale
		}
		videoID, rater = s.Task.VideoID, s.Name
		var err error
		n, err = s.Submit(ctx, r.Sink)
		return err
	})
	switch {
	case errors.Is(err, errStale), errors.Is(err, rating.ErrNoTask):
		r.ack(cbID, "This task is no longer active.")
		return
	case errors.Is(err, rating.ErrNotReady):
		r.ack(cbID, "")
		return
	case err != nil:
		log.Printf("telegram: submit chat=%d video=%s: %v", chatID, videoID, err)
		r.ack(cbID, "")
		r.send(chatID, "Could not save your ratings. Please press submit again.")
		return
	}

	log.Printf("submit: chat=%d rater=%q video=%s rows=%d", chatID, rater, videoID, n)
	r.ack(cbID, "Saved")
	r.closeMessage(chatID, msgID, fmt.Sprintf("✅ Saved %d ratings for video %s.", n, videoID))
	r.showTask(chatID)
}

func (r *Router) onSkip(cbID string, chatID int64, msgID int, tag string) {
	stale := false
	_ = r.Sessions.With(sessionKey(chatID), func(s *rating.Session) error {
		if s.Task == nil || taskTag(s.Task) != tag {
			stale = true
			return nil
		}
		log.Printf("skip: chat=%d video=%s", chatID, s.Task.VideoID)
		s.Skip()
		return nil
	})
	r.ack(cbID, "")
	if stale {
		return
	}
	r.closeMessage(chatID, msgID, "⏭ Skipped.")
	r.showTask(chatID)
}

// closeMessage replaces a finished task message and drops its keyboard.
func (r *Router) closeMessage(chatID int64, msgID int, text string) {
	if _, err := r.Bot.Send(tgbotapi.NewEditMessageText(chatID, msgID, text)); err != nil {
		log.Printf("telegram: close message chat=%d: %v", chatID, err)
	}
}

func (r *Router) ack(cbID, text string) {
	_, _ = r.Bot.Request(tgbotapi.NewCallback(cbID, text))
}
