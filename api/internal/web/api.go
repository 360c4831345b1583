package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"video-rater/api/internal/rating"
)

type TaskResponse struct {
	VideoID  string           `json:"video_id"`
	VideoURL string           `json:"video_url"`
	Name     string           `json:"name"`
	Ready    bool             `json:"ready"`
	Rows     []rating.TaskRow `json:"rows"`
}

type NameRequest struct {
	Name string `json:"name"`
}

// EditsRequest uses the data-editor shape: row index -> column -> value.
type EditsRequest struct {
	EditedRows map[string]map[string]string `json:"edited_rows"`
}

type SubmitResponse struct {
	Saved int `json:"saved"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// errStatus maps domain errors to HTTP status codes.
func errStatus(err error) int {
	switch {
	case errors.Is(err, rating.ErrNoVideos):
		return http.StatusNotFound
	case errors.Is(err, rating.ErrNoTask), errors.Is(err, rating.ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, rating.ErrReadOnlyColumn), errors.Is(err, rating.ErrUnknownRow):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) taskResponse(sess *rating.Session) TaskResponse {
	out := TaskResponse{Name: sess.Name, Ready: sess.Ready, Rows: []rating.TaskRow{}}
	if sess.Task != nil {
		out.VideoID = sess.Task.VideoID
		out.VideoURL = rating.VideoURL(s.videoURLFormat, sess.Task.VideoID)
		out.Rows = append(out.Rows, sess.Task.Rows...)
	}
	return out
}

// withTask runs fn on the caller's session after making sure it has a task, and
// answers with the resulting task state.
func (s *Server) withTask(w http.ResponseWriter, r *http.Request, fn func(sess *rating.Session) error) {
	key := sessionKey(w, r)
	var out TaskResponse
	err := s.sessions.With(key, func(sess *rating.Session) error {
		if _, err := sess.EnsureTask(r.Context(), s.sampler); err != nil {
			return err
		}
		if fn != nil {
			if err := fn(sess); err != nil {
				return err
			}
		}
		out = s.taskResponse(sess)
		return nil
	})
	if err != nil {
		if errStatus(err) == http.StatusBadGateway {
			log.Printf("api: session=%s: %v", shortKey(key), err)
		}
		writeError(w, errStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// APITask returns the current task, sampling one when needed.
func (s *Server) APITask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	s.withTask(w, r, nil)
}

func (s *Server) APIName(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req NameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return
	}
	s.withTask(w, r, func(sess *rating.Session) error {
		sess.NameChanged(strings.TrimSpace(req.Name))
		return nil
	})
}

func (s *Server) APIEdits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req EditsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return
	}
	edits := make(map[int]map[string]string, len(req.EditedRows))
	for k, cols := range req.EditedRows {
		idx, err := strconv.Atoi(k)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("bad row index %q", k))
			return
		}
		edits[idx] = cols
	}
	s.withTask(w, r, func(sess *rating.Session) error {
		return sess.DataChanged(edits)
	})
}

func (s *Server) APISubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	key := sessionKey(w, r)
	var n int
	err := s.sessions.With(key, func(sess *rating.Session) error {
		if sess.Task == nil {
			return rating.ErrNoTask
		}
		videoID := sess.Task.VideoID
		var err error
		n, err = sess.Submit(r.Context(), s.sink)
		if err == nil {
			log.Printf("submit: session=%s rater=%q video=%s rows=%d", shortKey(key), sess.Name, videoID, n)
		}
		return err
	})
	if err != nil {
		if errStatus(err) == http.StatusBadGateway {
			log.Printf("api submit: session=%s: %v", shortKey(key), err)
		}
		writeError(w, errStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, SubmitResponse{Saved: n})
}

func (s *Server) APISkip(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	key := sessionKey(w, r)
	_ = s.sessions.With(key, func(sess *rating.Session) error {
		sess.Skip()
		return nil
	})
	w.WriteHeader(http.StatusNoContent)
}
