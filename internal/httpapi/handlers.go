// Package httpapi exposes the FAQ service over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"faqbot/internal/dialog"
	"faqbot/internal/domain"
	"faqbot/internal/logging"
	"faqbot/internal/service"
)

// SessionHeader carries the session id on ask responses.
const SessionHeader = "X-Session-ID"

// Service is the subset of the FAQ service the handlers use.
type Service interface {
	Ask(ctx context.Context, sessionID, text string, k int) (domain.Envelope, error)
	Upsert(in service.UpsertInput) (int64, error)
	Remove(id int64) error
	Get(id int64) (domain.FAQ, error)
	List() []domain.FAQ
	Refit() int
	Save(ctx context.Context) error
	Stats() service.Stats
}

// Sessions exposes session inspection. *dialog.Controller implements it.
type Sessions interface {
	Session(id string) (dialog.Session, bool)
	Close(id string) bool
}

// Handler serves the API endpoints.
type Handler struct {
	svc      Service
	sessions Sessions
	timeout  time.Duration
	log      log.FieldLogger
}

// NewHandler creates a handler. A zero timeout leaves asks without a deadline.
func NewHandler(svc Service, sessions Sessions, timeout time.Duration, logger log.FieldLogger) *Handler {
	return &Handler{svc: svc, sessions: sessions, timeout: timeout, log: logging.OrDiscard(logger)}
}

type askRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	K         int    `json:"k"`
}

type askResponse struct {
	SessionID string `json:"session_id"`
	domain.Envelope
}

type faqRequest struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ask answers an utterance. A session id is minted when none is given.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		req.SessionID = uuid.New().String()
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	env, err := h.svc.Ask(ctx, req.SessionID, req.Text, req.K)
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set(SessionHeader, req.SessionID)
	writeJSON(w, http.StatusOK, askResponse{SessionID: req.SessionID, Envelope: env})
}

// ListFAQs returns every live record.
func (h *Handler) ListFAQs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.List())
}

// GetFAQ returns one record.
func (h *Handler) GetFAQ(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	faq, err := h.svc.Get(id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, faq)
}

// CreateFAQ appends a record.
func (h *Handler) CreateFAQ(w http.ResponseWriter, r *http.Request) {
	h.upsert(w, r, nil)
}

// ReplaceFAQ replaces the record at {id}.
func (h *Handler) ReplaceFAQ(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	h.upsert(w, r, &id)
}

func (h *Handler) upsert(w http.ResponseWriter, r *http.Request, id *int64) {
	var req faqRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	stored, err := h.svc.Upsert(service.UpsertInput{
		ID:       id,
		Question: req.Question,
		Answer:   req.Answer,
		Category: req.Category,
		Tags:     req.Tags,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	faq, err := h.svc.Get(stored)
	if err != nil {
		h.fail(w, err)
		return
	}
	status := http.StatusOK
	if id == nil {
		status = http.StatusCreated
	}
	writeJSON(w, status, faq)
}

// DeleteFAQ removes the record at {id}.
func (h *Handler) DeleteFAQ(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Remove(id); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Refit rebuilds the vocabulary.
func (h *Handler) Refit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"vocab_size": h.svc.Refit()})
}

// Save writes a snapshot.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Save(r.Context()); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// Stats reports engine counters.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Stats())
}

// GetSession returns a session's context.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessions.Session(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// CloseSession ends a session.
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.Close(chi.URLParam(r, "sessionID")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// fail maps error kinds to status codes.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrCapacity):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).Error("request failed")
	}
	writeError(w, status, err.Error())
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
