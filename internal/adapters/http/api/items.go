package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type putItemRequest struct {
	Rating            *float64 `json:"rating"`
	ComparisonsPlayed int      `json:"comparisons_played"`
}

type itemsResponse struct {
	Category string  `json:"category"`
	Items    []Entry `json:"items"`
}

// ItemsHandler serves the rated corpus.
type ItemsHandler struct {
	deps Dependencies
}

// NewItemsHandler creates a new items handler.
func NewItemsHandler(deps Dependencies) *ItemsHandler {
	return &ItemsHandler{deps: deps}
}

// HandlePut handles PUT /v1/categories/{category}/items/{id}.
func (h *ItemsHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	var req putItemRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	if req.Rating == nil {
		writeFailure(w, fmt.Errorf("%w: missing rating", ErrBadRequest))
		return
	}
	e, err := h.deps.PutItem(r.Context(), chi.URLParam(r, "category"), chi.URLParam(r, "id"), *req.Rating, req.ComparisonsPlayed)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// HandleList handles GET /v1/categories/{category}/items?limit=N.
func (h *ItemsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeFailure(w, fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest))
			return
		}
		limit = n
	}
	category := chi.URLParam(r, "category")
	entries, err := h.deps.Items(r.Context(), category, limit)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, itemsResponse{Category: category, Items: entries})
}

// HandleStats handles GET /v1/categories/{category}/stats.
func (h *ItemsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.Stats(r.Context(), chi.URLParam(r, "category"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
