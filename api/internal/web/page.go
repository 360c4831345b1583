package web

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"video-rater/api/internal/config"
	"video-rater/api/internal/rating"
)

type rowView struct {
	Index       int
	Description string
	Quality     string
	Valid       bool
}

type pageData struct {
	Title        string
	Instructions string
	Legend       []config.ScoreHint

	Name     string
	VideoID  string
	VideoURL string
	Rows     []rowView
	Ready    bool

	Empty bool
	Saved int
	Error string
}

// Page renders the current task, sampling one when the session has none.
func (s *Server) Page(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	key := sessionKey(w, r)

	data := pageData{
		Title:        s.rubric.Title,
		Instructions: s.rubric.Instructions,
		Legend:       s.rubric.Legend(),
	}
	if n, err := strconv.Atoi(r.URL.Query().Get("saved")); err == nil && n > 0 {
		data.Saved = n
	}

	status := http.StatusOK
	_ = s.sessions.With(key, func(sess *rating.Session) error {
		data.Name = sess.Name
		task, err := sess.EnsureTask(r.Context(), s.sampler)
		switch {
		case errors.Is(err, rating.ErrNoVideos):
			data.Empty = true
			return nil
		case err != nil:
			log.Printf("sample: session=%s: %v", shortKey(key), err)
			data.Error = "Could not load a video to rate. Try again later."
			status = http.StatusBadGateway
			return err
		}
		data.VideoID = task.VideoID
		data.VideoURL = rating.VideoURL(s.videoURLFormat, task.VideoID)
		data.Ready = sess.Ready
		for i, row := range task.Rows {
			data.Rows = append(data.Rows, rowView{
				Index:       i,
				Description: row.Description,
				Quality:     row.Quality,
				Valid:       rating.ValidQuality(row.Quality),
			})
		}
		return nil
	})
	s.render(w, status, data)
}

func (s *Server) render(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.tmpl.ExecuteTemplate(w, "task.html", data); err != nil {
		log.Printf("render: %v", err)
	}
}

// Edit applies the posted name and quality cells.
func (s *Server) Edit(w http.ResponseWriter, r *http.Request) {
	if !postForm(w, r) {
		return
	}
	key := sessionKey(w, r)
	err := s.sessions.With(key, func(sess *rating.Session) error {
		return applyForm(sess, r)
	})
	if err != nil && !errors.Is(err, rating.ErrNoTask) {
		http.Error(w, "bad edit: "+err.Error(), http.StatusBadRequest)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Submit applies the posted form and writes the task to the sink when it validates.
func (s *Server) Submit(w http.ResponseWriter, r *http.Request) {
	if !postForm(w, r) {
		return
	}
	key := sessionKey(w, r)
	saved := 0
	err := s.sessions.With(key, func(sess *rating.Session) error {
		if err := applyForm(sess, r); err != nil {
			return err
		}
		videoID := sess.Task.VideoID
		n, err := sess.Submit(r.Context(), s.sink)
		if err != nil {
			return err
		}
		saved = n
		log.Printf("submit: session=%s rater=%q video=%s rows=%d", shortKey(key), sess.Name, videoID, n)
		return nil
	})
	switch {
	case err == nil:
		http.Redirect(w, r, "/?saved="+strconv.Itoa(saved), http.StatusSeeOther)
	case errors.Is(err, rating.ErrNotReady), errors.Is(err, rating.ErrNoTask):
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case errors.Is(err, rating.ErrReadOnlyColumn), errors.Is(err, rating.ErrUnknownRow):
		http.Error(w, "bad edit: "+err.Error(), http.StatusBadRequest)
	default:
		log.Printf("submit: session=%s: %v", shortKey(key), err)
		http.Error(w, "could not save ratings, please retry", http.StatusBadGateway)
	}
}

// Skip drops the current task without saving it.
func (s *Server) Skip(w http.ResponseWriter, r *http.Request) {
	if !postForm(w, r) {
		return
	}
	key := sessionKey(w, r)
	_ = s.sessions.With(key, func(sess *rating.Session) error {
		applyName(sess, r)
		if sess.Task != nil {
			log.Printf("skip: session=%s video=%s", shortKey(key), sess.Task.VideoID)
		}
		sess.Skip()
		return nil
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// End tears the session down.
func (s *Server) End(w http.ResponseWriter, r *http.Request) {
	if !postForm(w, r) {
		return
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		if id, ok := parseSessionID(c.Value); ok {
			s.sessions.End(webKey(id))
		}
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func postForm(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return false
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// applyName runs the name-change handler when the form carries a name field.
func applyName(sess *rating.Session, r *http.Request) {
	if _, ok := r.PostForm["name"]; !ok {
		return
	}
	if name := strings.TrimSpace(r.PostForm.Get("name")); name != sess.Name {
		sess.NameChanged(name)
	}
}

// applyForm runs the name-change and cell-edit handlers for a posted form.
func applyForm(sess *rating.Session, r *http.Request) error {
	applyName(sess, r)
	edits := parseEdits(r.PostForm)
	if len(edits) == 0 {
		if sess.Task == nil {
			return rating.ErrNoTask
		}
		return nil
	}
	return sess.DataChanged(edits)
}
