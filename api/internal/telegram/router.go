package telegram

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"video-rater/api/internal/config"
	"video-rater/api/internal/rating"
)

// Bot is the part of *tgbotapi.BotAPI the router talks to.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Router turns Telegram updates into rating session events, one session per chat.
type Router struct {
	Bot            Bot
	Sessions       *rating.Registry
	Sampler        *rating.Sampler
	Sink           rating.Sink
	Rubric         *config.Rubric
	VideoURLFormat string

	// Timeout bounds store calls made while handling one update.
	Timeout time.Duration
}

func (r *Router) HandleUpdate(upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		r.handleCallback(*upd.CallbackQuery)
		return
	}
	if upd.Message == nil || upd.Message.Chat == nil {
		return
	}
	if upd.Message.IsCommand() {
		r.HandleCommand(upd.Message)
		return
	}
	r.handleText(upd.Message)
}

func (r *Router) HandleCommand(msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start":
		r.send(cid, formatRubric(r.rubric()))
		r.showTask(cid)
	case "help":
		r.send(cid, formatRubric(r.rubric()))
	case "name":
		name := strings.TrimSpace(msg.CommandArguments())
		if name == "" {
			r.send(cid, "Usage: /name <your name>")
			return
		}
		_ = r.Sessions.With(sessionKey(cid), func(s *rating.Session) error {
			s.NameChanged(name)
			return nil
		})
		r.send(cid, "Rater name set: "+name)
		r.showTask(cid)
	case "skip":
		r.skip(cid)
		r.showTask(cid)
	case "stop":
		r.Sessions.End(sessionKey(cid))
		r.send(cid, "Session closed. Send /start to rate again.")
	default:
		r.send(cid, "Unknown command. Send /help.")
	}
}

// handleText treats the first plain message of a session as the rater name.
func (r *Router) handleText(msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	named := false
	_ = r.Sessions.With(sessionKey(cid), func(s *rating.Session) error {
		if s.Name == "" {
			s.NameChanged(text)
			named = true
		}
		return nil
	})
	if !named {
		r.send(cid, "Use the buttons under the task to rate, or /name to change your name.")
		return
	}
	r.send(cid, "Rater name set: "+text)
	r.showTask(cid)
}

// showTask sends the chat's current task as a new message, sampling one if needed.
func (r *Router) showTask(chatID int64) {
	ctx, cancel := r.context()
	defer cancel()

	var (
		text string
		kb   tgbotapi.InlineKeyboardMarkup
	)
	err := r.Sessions.With(sessionKey(chatID), func(s *rating.Session) error {
		task, err := s.EnsureTask(ctx, r.Sampler)
		if err != nil {
			return err
		}
		text = formatTask(task, rating.VideoURL(r.VideoURLFormat, task.VideoID), s.Name)
		kb = taskKeyboard(task, s.Ready)
		return nil
	})
	switch {
	case errors.Is(err, rating.ErrNoVideos):
		r.send(chatID, "Nothing to rate right now.")
		return
	case err != nil:
		log.Printf("telegram: sample chat=%d: %v", chatID, err)
		r.send(chatID, "Could not load a video to rate. Try again later.")
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	if _, err := r.Bot.Send(msg); err != nil {
		log.Printf("telegram: send task chat=%d: %v", chatID, err)
	}
}

func (r *Router) skip(chatID int64) {
	_ = r.Sessions.With(sessionKey(chatID), func(s *rating.Session) error {
		if s.Task != nil {
			log.Printf("skip: chat=%d video=%s", chatID, s.Task.VideoID)
		}
		s.Skip()
		return nil
	})
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := r.Bot.Send(msg); err != nil {
		log.Printf("telegram: send chat=%d: %v", chatID, err)
	}
}

func (r *Router) rubric() *config.Rubric {
	if r.Rubric == nil {
		return config.DefaultRubric()
	}
	return r.Rubric
}

func (r *Router) context() (context.Context, context.CancelFunc) {
	d := r.Timeout
	if d <= 0 {
		d = 30 * time.Second
	}
	return context.WithTimeout(context.Background(), d)
}
