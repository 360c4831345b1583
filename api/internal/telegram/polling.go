package telegram

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	pollTimeout  = 30 // seconds, server side long poll
	minBackoff   = time.Second
	maxBackoff   = 15 * time.Second
	idleInterval = 200 * time.Millisecond
)

// UpdateSource is the part of the bot API the poller needs.
type UpdateSource interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// Poller long-polls getUpdates and hands every update, in order, to Handle.
type Poller struct {
	Source UpdateSource
	Handle func(tgbotapi.Update)

	// wait blocks for d or until ctx is done; false means ctx is done.
	wait func(ctx context.Context, d time.Duration) bool

	offset   int
	failures int
}

func NewPoller(src UpdateSource, handle func(tgbotapi.Update)) *Poller {
	return &Poller{Source: src, Handle: handle, wait: sleepCtx}
}

// RunPolling polls bot until ctx is cancelled.
func RunPolling(ctx context.Context, bot *tgbotapi.BotAPI, handle func(tgbotapi.Update)) {
	NewPoller(bot, handle).Run(ctx)
}

func (p *Poller) Run(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := p.poll()
		if err != nil {
			d := p.backoff(err)
			log.Printf("polling: %v; retry in %v", err, d)
			if !p.wait(ctx, d) {
				break
			}
			continue
		}
		if n == 0 && !p.wait(ctx, idleInterval) {
			break
		}
	}
	log.Printf("polling: stopped")
}

// poll fetches one batch and returns how many updates were handled.
func (p *Poller) poll() (int, error) {
	cfg := tgbotapi.NewUpdate(p.offset)
	cfg.Timeout = pollTimeout
	updates, err := p.Source.GetUpdates(cfg)
	if err != nil {
		p.failures++
		return 0, err
	}
	p.failures = 0
	for _, upd := range updates {
		if upd.UpdateID >= p.offset {
			p.offset = upd.UpdateID + 1
		}
		p.Handle(upd)
	}
	return len(updates), nil
}

// backoff honours Telegram's retry_after and otherwise doubles per consecutive failure.
func (p *Poller) backoff(err error) time.Duration {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return min(time.Duration(apiErr.RetryAfter)*time.Second, maxBackoff)
	}
	d := minBackoff
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		d = 2 * minBackoff
	}
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		d = 3 * minBackoff
	}
	for i := 1; i < p.failures && d < maxBackoff; i++ {
		d *= 2
	}
	return min(d, maxBackoff)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
