package main

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"video-rater/api/internal/config"
	"video-rater/api/internal/rating"
	"video-rater/api/internal/store"
	"video-rater/api/internal/telegram"
	"video-rater/api/internal/web"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Store ---
	backend, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer backend.Close()

	// fail fast when the descriptions table is unreachable
	{
		ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
		recs, err := backend.Records(ctx)
		cancel()
		if err != nil {
			log.Fatalf("read descriptions: %v", err)
		}
		log.Printf("descriptions: %d rows", len(recs))
	}

	rubric, err := config.LoadRubric(cfg.RubricPath)
	if err != nil {
		log.Fatalf("rubric: %v", err)
	}

	var opts []rating.SamplerOption
	if cfg.UnratedOnly {
		opts = append(opts, rating.WithReviewed(backend))
	}
	sampler := rating.NewSampler(backend, opts...)
	sessions := rating.NewRegistry(cfg.SessionTTL)

	// --- HTTP mux (DefaultServeMux) ---
	// DefaultServeMux, because ListenForWebhook registers its handler there.
	web.New(sessions, sampler, backend, rubric, cfg.VideoURLFormat).Register(http.DefaultServeMux)
	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// --- Telegram bot (optional) ---
	if token := strings.TrimSpace(cfg.TelegramBotToken); token != "" {
		bot, err := tgbotapi.NewBotAPI(token)
		if err != nil {
			log.Fatalf("telegram: %v", err)
		}
		bot.Debug = false
		r := &telegram.Router{
			Bot:            bot,
			Sessions:       sessions,
			Sampler:        sampler,
			Sink:           backend,
			Rubric:         rubric,
			VideoURLFormat: cfg.VideoURLFormat,
		}
		if webhookURL := strings.TrimSpace(cfg.WebhookURL); webhookURL != "" {
			startWebhook(bot, r, webhookURL)
		} else {
			go telegram.RunPolling(ctx, bot, r.HandleUpdate)
			log.Printf("telegram: polling as @%s", bot.Self.UserName)
		}
	}

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("rater listening on %s (backend=%s)", srv.Addr, cfg.Backend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

func startWebhook(bot *tgbotapi.BotAPI, r *telegram.Router, baseURL string) {
	path := webhookPath(bot.Token)
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		log.Fatal(err)
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		log.Fatal(err)
	}

	updates := bot.ListenForWebhook(path)
	go func() {
		for upd := range updates {
			r.HandleUpdate(upd)
		}
		log.Printf("webhook updates channel closed")
	}()
	log.Printf("telegram: webhook on %s", path)
}

// webhookPath derives a stable secret path from the bot token.
func webhookPath(token string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	return fmt.Sprintf("/webhook/%016x", h.Sum64())
}
