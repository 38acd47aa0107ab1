package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/flickrank/internal/domain/session"
)

type startRequest struct {
	Category  string `json:"category"`
	ItemID    string `json:"item_id"`
	Sentiment string `json:"sentiment"`
}

func (r startRequest) validate() error {
	switch {
	case strings.TrimSpace(r.Category) == "":
		return fmt.Errorf("%w: missing category", ErrBadRequest)
	case strings.TrimSpace(r.ItemID) == "":
		return fmt.Errorf("%w: missing item_id", ErrBadRequest)
	case strings.TrimSpace(r.Sentiment) == "":
		return fmt.Errorf("%w: missing sentiment", ErrBadRequest)
	}
	return nil
}

type outcomeRequest struct {
	Round   int    `json:"round"`
	Outcome string `json:"outcome"`
}

type startResponse struct {
	SessionID string        `json:"session_id"`
	Event     session.Event `json:"event"`
}

type eventResponse struct {
	Event session.Event `json:"event"`
}

// SessionsHandler drives comparison sessions.
type SessionsHandler struct {
	deps Dependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps Dependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

// HandleStart handles POST /v1/sessions.
func (h *SessionsHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	if err := req.validate(); err != nil {
		writeFailure(w, err)
		return
	}
	ev, err := h.deps.StartSession(r.Context(), req.Category, req.ItemID, req.Sentiment)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, startResponse{SessionID: ev.SessionID, Event: ev})
}

// HandleOutcome handles POST /v1/sessions/{id}/outcome.
func (h *SessionsHandler) HandleOutcome(w http.ResponseWriter, r *http.Request) {
	var req outcomeRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	if req.Round < 1 {
		writeFailure(w, fmt.Errorf("%w: round must be positive", ErrBadRequest))
		return
	}
	ev, err := h.deps.Submit(r.Context(), chi.URLParam(r, "id"), req.Round, req.Outcome)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eventResponse{Event: ev})
}

// HandleGet handles GET /v1/sessions/{id}.
func (h *SessionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	snap, err := h.deps.Snapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleAbort handles DELETE /v1/sessions/{id}.
func (h *SessionsHandler) HandleAbort(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Abort(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
