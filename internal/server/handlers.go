package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/michaelbrown/parley/internal/debate"
	"github.com/michaelbrown/parley/internal/storage"
)

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, storage.ErrDuplicateID):
		writeError(w, http.StatusConflict, "session id already exists")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// --- History handlers ---

// parseQuery maps keyword/from/to/limit query params onto a storage.Query.
// Dates use YYYY-MM-DD, calendar-date granularity.
func parseQuery(r *http.Request) (storage.Query, error) {
	q := storage.Query{Keyword: r.URL.Query().Get("keyword")}

	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return q, errors.New("invalid from date, want YYYY-MM-DD")
		}
		q.Start = t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return q, errors.New("invalid to date, want YYYY-MM-DD")
		}
		q.End = t
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			q.Limit = n
		}
	}
	return q, nil
}

func (s *Server) handleSearchSessions(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summaries, err := s.store.Search(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if summaries == nil {
		summaries = []storage.Summary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateSnapshot(w http.ResponseWriter, r *http.Request) {
	snapID, err := s.store.Snapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"snapshot_id": snapID})
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.ListSnapshots(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.LoadSnapshot(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "snap"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// --- Debate handlers ---

type runDebateRequest struct {
	Topic string `json:"topic"`
}

type runDebateResponse struct {
	Session      *storage.Session `json:"session"`
	AbortedStage string           `json:"aborted_stage,omitempty"`
}

// handleRunDebate runs a full cycle synchronously and returns the finished
// session. A stage abort is a distinct outcome from success: the partial
// transcript is still returned (and persisted) alongside the aborted stage.
func (s *Server) handleRunDebate(w http.ResponseWriter, r *http.Request) {
	var req runDebateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Topic == "" {
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}

	cycle := debate.New(s.panel, s.store)
	sess, err := cycle.Run(r.Context(), req.Topic)

	var aborted *debate.StageAbortedError
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, runDebateResponse{Session: sess})
	case errors.As(err, &aborted):
		writeJSON(w, http.StatusBadGateway, runDebateResponse{
			Session:      sess,
			AbortedStage: string(aborted.Stage),
		})
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
