// Package api exposes comparison sessions and the rated corpus over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/okian/flickrank/internal/adapters/http/swagger"
	service "github.com/okian/flickrank/internal/app"
	"github.com/okian/flickrank/internal/domain/model"
	"github.com/okian/flickrank/internal/domain/session"
	"github.com/okian/flickrank/internal/domain/types"
)

const maxBodyBytes = 1 << 16

// Dependencies required by HTTP handlers.
type Dependencies interface {
	StartSession(ctx context.Context, category, itemID, sentiment string) (session.Event, error)
	Submit(ctx context.Context, id string, round int, outcome string) (session.Event, error)
	Abort(ctx context.Context, id string) error
	Snapshot(ctx context.Context, id string) (session.Snapshot, error)

	PutItem(ctx context.Context, category, id string, rating float64, comparisons int) (types.Entry, error)
	Items(ctx context.Context, category string, limit int) ([]types.Entry, error)
	Stats(ctx context.Context, category string) (types.CorpusStats, error)
}

// Entry mirrors the read shape of a ranked item.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	sessionsHandler *SessionsHandler
	itemsHandler    *ItemsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		sessionsHandler: NewSessionsHandler(deps),
		itemsHandler:    NewItemsHandler(deps),
	}
}

// Routes returns the router serving every endpoint.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Method(http.MethodGet, "/metrics", s.healthHandler.Metrics())
	r.Get("/stats", s.statsHandler.HandleStats)
	swagger.Register(r)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/sessions", s.sessionsHandler.HandleStart)
		r.Get("/sessions/{id}", s.sessionsHandler.HandleGet)
		r.Delete("/sessions/{id}", s.sessionsHandler.HandleAbort)
		r.Post("/sessions/{id}/outcome", s.sessionsHandler.HandleOutcome)

		r.Get("/categories/{category}/items", s.itemsHandler.HandleList)
		r.Put("/categories/{category}/items/{id}", s.itemsHandler.HandlePut)
		r.Get("/categories/{category}/stats", s.itemsHandler.HandleStats)
	})
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps a service error to its status and code.
func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, model.ErrCorpusTooSmall):
		writeError(w, http.StatusUnprocessableEntity, "rate_more_items", err)
	case errors.Is(err, model.ErrInvalidSessionInput):
		writeError(w, http.StatusUnprocessableEntity, "invalid_input", err)
	case errors.Is(err, service.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, model.ErrOutcomeRejected):
		writeError(w, http.StatusConflict, "outcome_rejected", err)
	case errors.Is(err, model.ErrInvalidRatingInput):
		writeError(w, http.StatusUnprocessableEntity, "invalid_rating", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}
