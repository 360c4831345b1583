package config

import (
	"errors"
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendSheets   = "sheets"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"

	DefaultVideoURLFormat = "https://www.tiktok.com/@doesnotmatter/video/{vid}"
)

type Config struct {
	Port string

	Backend string

	// Google Sheets
	SheetID            string
	ServiceAccountJSON []byte
	DescriptionsSheet  string
	RatingsSheet       string

	// SQL backends
	DatabaseURL string
	SQLitePath  string

	VideoURLFormat string
	RubricPath     string
	UnratedOnly    bool
	SessionTTL     time.Duration

	TelegramBotToken string
	WebhookURL       string
}

// env wraps a lookup function and remembers every required key that was missing.
type env struct {
	lookup  func(string) string
	missing []string
	errs    []error
}

func (e *env) get(k, def string) string {
	if v := strings.TrimSpace(e.lookup(k)); v != "" {
		return v
	}
	return def
}

func (e *env) must(k string) string {
	v := e.get(k, "")
	if v == "" {
		e.missing = append(e.missing, k)
	}
	return v
}

func (e *env) getBool(k string, def bool) bool {
	v := e.get(k, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", k, err))
		return def
	}
	return b
}

func (e *env) getDuration(k string, def time.Duration) time.Duration {
	v := e.get(k, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", k, err))
		return def
	}
	return d
}

func (e *env) err() error {
	errs := e.errs
	if len(e.missing) > 0 {
		errs = append([]error{fmt.Errorf("missing required env %s", strings.Join(e.missing, ", "))}, errs...)
	}
	return errors.Join(errs...)
}

// Load reads the configuration from the process environment and exits on error.
func Load() *Config {
	cfg, err := FromEnv(os.Getenv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// FromEnv builds a Config from lookup (os.Getenv in production).
func FromEnv(lookup func(string) string) (*Config, error) {
	e := &env{lookup: lookup}
	cfg := &Config{
		Port:           e.get("PORT", "8080"),
		Backend:        strings.ToLower(e.get("STORE_BACKEND", BackendSheets)),
		VideoURLFormat: e.get("VIDEO_URL_FORMAT", DefaultVideoURLFormat),
		RubricPath:     e.get("RUBRIC_PATH", ""),
		UnratedOnly:    e.getBool("SAMPLE_UNRATED_ONLY", false),
		SessionTTL:     e.getDuration("SESSION_TTL", 12*time.Hour),

		TelegramBotToken: e.get("TELEGRAM_BOT_TOKEN", ""),
		WebhookURL:       e.get("WEBHOOK_URL", ""),
	}

	switch cfg.Backend {
	case BackendSheets:
		cfg.SheetID = e.must("SHEET_ID")
		cfg.DescriptionsSheet = e.get("DESCRIPTIONS_SHEET", "descriptions")
		cfg.RatingsSheet = e.get("RATINGS_SHEET", "ratings")
		creds, err := serviceAccount(e)
		if err != nil {
			e.errs = append(e.errs, err)
		}
		cfg.ServiceAccountJSON = creds
	case BackendPostgres:
		cfg.DatabaseURL = resolveDSN(e)
	case BackendSQLite:
		cfg.SQLitePath = e.get("SQLITE_PATH", "rater.db")
	default:
		e.errs = append(e.errs, fmt.Errorf("STORE_BACKEND: unknown backend %q (sheets|postgres|sqlite)", cfg.Backend))
	}

	if !strings.Contains(cfg.VideoURLFormat, "{vid}") {
		e.errs = append(e.errs, fmt.Errorf("VIDEO_URL_FORMAT: no {vid} placeholder in %q", cfg.VideoURLFormat))
	}

	if err := e.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// serviceAccount returns the service account key, inline or from a file.
func serviceAccount(e *env) ([]byte, error) {
	if v := e.get("GOOGLE_SERVICE_ACCOUNT_JSON", ""); v != "" {
		return []byte(v), nil
	}
	p := e.get("GOOGLE_APPLICATION_CREDENTIALS", "")
	if p == "" {
		e.missing = append(e.missing, "GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_APPLICATION_CREDENTIALS")
		return nil, nil
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("GOOGLE_APPLICATION_CREDENTIALS: %w", err)
	}
	return b, nil
}

// resolveDSN prefers DATABASE_URL and otherwise builds a DSN from POSTGRES_* / PG* vars.
func resolveDSN(e *env) string {
	if v := e.get("DATABASE_URL", ""); v != "" {
		return v
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(e.get("POSTGRES_USER", "rater"), e.get("POSTGRES_PASSWORD", "")),
		Host:     net.JoinHostPort(e.get("PGHOST", "db"), e.get("PGPORT", "5432")),
		Path:     "/" + e.get("POSTGRES_DB", "rater"),
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// SafeDSNSummary describes a DSN without its password, for logs.
func SafeDSNSummary(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "dsn: parse error"
	}
	parts := []string{"host=" + u.Hostname()}
	if p := u.Port(); p != "" {
		parts = append(parts, "port="+p)
	}
	parts = append(parts, "db="+strings.TrimPrefix(u.Path, "/"), "user="+u.User.Username())
	return strings.Join(parts, " ")
}
