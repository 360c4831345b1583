package web

import (
	"embed"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"video-rater/api/internal/config"
	"video-rater/api/internal/rating"
)

const (
	sessionCookie = "rater_session"
	sessionHeader = "X-Session-ID"
)

//go:embed templates/*.html
var templateFS embed.FS

// Server is the browser form surface and JSON API for rating tasks.
type Server struct {
	sessions       *rating.Registry
	sampler        *rating.Sampler
	sink           rating.Sink
	rubric         *config.Rubric
	videoURLFormat string
	tmpl           *template.Template
}

func New(sessions *rating.Registry, sampler *rating.Sampler, sink rating.Sink, rubric *config.Rubric, videoURLFormat string) *Server {
	if rubric == nil {
		rubric = config.DefaultRubric()
	}
	return &Server{
		sessions:       sessions,
		sampler:        sampler,
		sink:           sink,
		rubric:         rubric,
		videoURLFormat: videoURLFormat,
		tmpl:           template.Must(template.ParseFS(templateFS, "templates/*.html")),
	}
}

// Register mounts the page and API handlers on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/", s.Page)
	mux.HandleFunc("/edit", s.Edit)
	mux.HandleFunc("/submit", s.Submit)
	mux.HandleFunc("/skip", s.Skip)
	mux.HandleFunc("/end", s.End)

	mux.HandleFunc("/api/v1/task", s.APITask)
	mux.HandleFunc("/api/v1/name", s.APIName)
	mux.HandleFunc("/api/v1/edits", s.APIEdits)
	mux.HandleFunc("/api/v1/submit", s.APISubmit)
	mux.HandleFunc("/api/v1/skip", s.APISkip)
}

// sessionKey returns the caller's registry key, issuing a new cookie when the
// request carries no valid session id. Only UUIDs are accepted and keys are
// namespaced, so web callers cannot address sessions of other surfaces.
func sessionKey(w http.ResponseWriter, r *http.Request) string {
	if id, ok := parseSessionID(r.Header.Get(sessionHeader)); ok {
		return webKey(id)
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		if id, ok := parseSessionID(c.Value); ok {
			return webKey(id)
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return webKey(id)
}

func parseSessionID(v string) (string, bool) {
	id, err := uuid.Parse(strings.TrimSpace(v))
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func webKey(id string) string { return "web:" + id }

// parseEdits collects "<column>.<row>" form fields into an edit batch.
// Fields without a numeric row suffix are ignored.
func parseEdits(form map[string][]string) map[int]map[string]string {
	edits := make(map[int]map[string]string)
	for key, vals := range form {
		i := strings.LastIndex(key, ".")
		if i <= 0 || len(vals) == 0 {
			continue
		}
		idx, err := strconv.Atoi(key[i+1:])
		if err != nil {
			continue
		}
		col := key[:i]
		if edits[idx] == nil {
			edits[idx] = make(map[string]string)
		}
		edits[idx][col] = strings.TrimSpace(vals[len(vals)-1])
	}
	return edits
}

// shortKey trims a registry key for logs.
func shortKey(key string) string {
	key = strings.TrimPrefix(key, "web:")
	if len(key) > 8 {
		return key[:8]
	}
	return key
}
