package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/vitalsync/vitalsync/internal/store"
	vsync "github.com/vitalsync/vitalsync/internal/sync"
	"github.com/vitalsync/vitalsync/internal/types"
)

// Handler implements the API handlers
type Handler struct {
	store    store.Store
	pull     *vsync.PullEngine
	push     *vsync.PushEngine
	expander *vsync.FamilyExpander
	version  string
}

// NewHandler creates a new Handler over the store and sync engines.
func NewHandler(s store.Store, pull *vsync.PullEngine, push *vsync.PushEngine, expander *vsync.FamilyExpander, version string) *Handler {
	return &Handler{
		store:    s,
		pull:     pull,
		push:     push,
		expander: expander,
		version:  version,
	}
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	resp := types.HealthResponse{
		Status:      "healthy",
		Version:     h.version,
		EventCount:  stats.EventCount,
		ClientCount: stats.ClientCount,
	}

	writeJSON(w, http.StatusOK, resp)
}

// FindByID handles GET /rest/event/findById?id=
func (h *Handler) FindByID(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		WriteProblem(w, r, http.StatusBadRequest, "missing required query parameter: id")
		return
	}

	event, err := h.store.GetEventByID(r.Context(), id)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
