package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/vitalsync/vitalsync/internal/search"
	"github.com/vitalsync/vitalsync/internal/store"
	vsync "github.com/vitalsync/vitalsync/internal/sync"
	"github.com/vitalsync/vitalsync/internal/types"
)

const (
	// msgNoFilter is the response for sync requests without any identifying
	// filter. The spelling is part of the wire contract.
	msgNoFilter = "specify atleast one filter"

	// msgError is the generic failure message carried by error envelopes.
	msgError = "Error occurred"

	// headerTotalRecords carries the total matching count when requested.
	headerTotalRecords = "total_records"
)

// Sync handles GET /rest/event/sync: an incremental pull of events newer than
// the client's server version cursor, with associated clients.
//
// return_count is accepted but never honored here: the upstream protocol read
// the flag through a lookup that never consulted the query value, so counts
// are only available on the POST variant.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	criteria := search.EventCriteria{
		ProviderID:   q.Get("provider_id"),
		LocationID:   q.Get("location_id"),
		BaseEntityID: q.Get("base_entity_id"),
		Team:         q.Get("team"),
		TeamID:       q.Get("team_id"),
	}
	if !criteria.HasSyncFilter() {
		writeSyncError(w, http.StatusBadRequest, msgNoFilter)
		return
	}

	var lastSeen *int64
	if v := q.Get("server_version"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			slog.Error("sync failed", "component", "api", "action", "sync", "error", err)
			writeSyncError(w, http.StatusInternalServerError, msgError)
			return
		}
		lastSeen = &parsed
	}
	criteria.VersionFloor = vsync.NextCursor(lastSeen)

	limit, err := parseLimitParam(q.Get("limit"))
	if err != nil {
		slog.Error("sync failed", "component", "api", "action", "sync", "error", err)
		writeSyncError(w, http.StatusInternalServerError, msgError)
		return
	}

	envelope, err := h.pull.Pull(r.Context(), criteria, limit, false)
	if err != nil {
		slog.Error("sync failed", "component", "api", "action", "sync", "error", err)
		writeSyncError(w, http.StatusInternalServerError, msgError)
		return
	}

	writeJSON(w, http.StatusOK, envelope)
}

// SyncByPost handles POST /rest/event/sync. Same semantics as the GET
// variant, but the returnCount flag is honored and surfaces the total via
// the total_records header.
func (h *Handler) SyncByPost(w http.ResponseWriter, r *http.Request) {
	var req vsync.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSyncError(w, http.StatusBadRequest, msgError)
		return
	}

	criteria := search.EventCriteria{
		ProviderID:   req.ProviderID,
		LocationID:   req.LocationID,
		BaseEntityID: req.BaseEntityID,
		Team:         req.Team,
		TeamID:       req.TeamID,
		VersionFloor: vsync.NextCursor(req.ServerVersion),
	}
	if !criteria.HasSyncFilter() {
		writeSyncError(w, http.StatusBadRequest, msgNoFilter)
		return
	}

	envelope, err := h.pull.Pull(r.Context(), criteria, req.Limit, req.ReturnCount)
	if err != nil {
		slog.Error("sync failed", "component", "api", "action", "sync_post", "error", err)
		writeSyncError(w, http.StatusInternalServerError, msgError)
		return
	}

	if req.ReturnCount {
		w.Header().Set(headerTotalRecords, strconv.FormatInt(envelope.TotalRecords, 10))
	}
	writeJSON(w, http.StatusOK, envelope)
}

// SyncByBaseEntityIDs handles POST /rest/event/sync-by-base-entity-ids:
// a combined pull for a list of entities, optionally expanded to family
// relations. Any failure aborts the whole expansion.
func (h *Handler) SyncByBaseEntityIDs(w http.ResponseWriter, r *http.Request) {
	var req vsync.ExpandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSyncError(w, http.StatusInternalServerError, fmt.Sprintf("%s: %s", msgError, err))
		return
	}

	envelope, err := h.expander.Expand(r.Context(), req.BaseEntityIDs, req.WithFamilyEvents)
	if err != nil {
		slog.Error("expansion failed",
			"component", "api",
			"action", "sync_by_base_entity_ids",
			"entities", len(req.BaseEntityIDs),
			"error", err,
		)
		writeSyncError(w, http.StatusInternalServerError, fmt.Sprintf("%s: %s", msgError, err))
		return
	}

	writeJSON(w, http.StatusOK, envelope)
}

// GetAll handles GET /rest/event/getAll: a pull without the filter-presence
// check, scoped only by version floor and optional event type.
func (h *Handler) GetAll(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	serverVersionStr := q.Get("serverVersion")
	if serverVersionStr == "" {
		WriteProblem(w, r, http.StatusBadRequest, "missing required query parameter: serverVersion")
		return
	}
	serverVersion, err := strconv.ParseInt(serverVersionStr, 10, 64)
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "invalid serverVersion parameter: must be an integer")
		return
	}

	floor := serverVersion
	if serverVersion > 0 {
		floor = serverVersion + 1
	}
	criteria := search.EventCriteria{
		EventType:    q.Get("eventType"),
		VersionFloor: &floor,
	}

	limit, err := parseLimitParam(q.Get("limit"))
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "invalid limit parameter: must be an integer")
		return
	}

	envelope, err := h.pull.Pull(r.Context(), criteria, limit, false)
	if err != nil {
		slog.Error("getAll failed", "component", "api", "action", "get_all", "error", err)
		writeSyncError(w, http.StatusInternalServerError, msgError)
		return
	}

	writeJSON(w, http.StatusOK, envelope)
}

// Add handles POST /rest/event/add: a push of client and event batches with
// per-record failure isolation. Partial failure is still a 201; callers
// inspect the body for failed ids.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	actingUser := UserFromContext(r.Context())

	result, err := h.push.Push(r.Context(), body, actingUser)
	if errors.Is(err, vsync.ErrEmptyBatch) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err != nil {
		slog.Error("push failed", "component", "api", "action", "add", "user", actingUser, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if !result.HasFailures() {
		w.WriteHeader(http.StatusCreated)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// FindIDsByEventType handles GET /rest/event/findIdsByEventType: event ids of
// a type ordered by server version, with the last version for resumption.
func (h *Handler) FindIDsByEventType(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	serverVersionStr := q.Get("server_version")
	if serverVersionStr == "" {
		WriteProblem(w, r, http.StatusBadRequest, "missing required query parameter: server_version")
		return
	}
	serverVersion, err := strconv.ParseInt(serverVersionStr, 10, 64)
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "invalid server_version parameter: must be an integer")
		return
	}

	isDeleted := q.Get("is_deleted") == "true"

	fromDate, err := parseDateParam(q.Get("fromDate"))
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "invalid fromDate parameter")
		return
	}
	toDate, err := parseDateParam(q.Get("toDate"))
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "invalid toDate parameter")
		return
	}

	ids, lastVersion, err := h.store.FindIDsByEventType(r.Context(), q.Get("event_type"),
		isDeleted, serverVersion, vsync.DefaultGetAllIDsLimit, fromDate, toDate)
	if err != nil {
		slog.Error("find ids failed", "component", "api", "action", "find_ids_by_event_type", "error", err)
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, vsync.Identifier{
		Identifiers:       ids,
		LastServerVersion: lastVersion,
	})
}

// Search handles GET /rest/event/search: a criteria search over events.
// A client identifier, when supplied, is resolved to its base entity id
// first; an unknown identifier yields an empty result.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	criteria := search.EventCriteria{
		ProviderID: q.Get("providerId"),
		LocationID: q.Get("locationId"),
		Team:       q.Get("team"),
		TeamID:     q.Get("teamId"),
		EventType:  q.Get("eventType"),
		EntityType: q.Get("entityType"),
	}

	dateParams := []struct {
		name string
		dest **time.Time
	}{
		{"eventDateFrom", &criteria.EventDateFrom},
		{"eventDateTo", &criteria.EventDateTo},
		{"lastEditFrom", &criteria.LastEditFrom},
		{"lastEditTo", &criteria.LastEditTo},
	}
	for _, p := range dateParams {
		parsed, err := parseDateParam(q.Get(p.name))
		if err != nil {
			WriteProblem(w, r, http.StatusBadRequest, "invalid "+p.name+" parameter")
			return
		}
		*p.dest = parsed
	}

	if identifier := q.Get("identifier"); identifier != "" {
		client, err := h.store.GetClientByBaseEntityID(r.Context(), identifier)
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusOK, []types.Event{})
			return
		}
		if err != nil {
			slog.Error("search failed", "component", "api", "action", "search", "error", err)
			WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		criteria.BaseEntityID = client.BaseEntityID
	}

	events, err := h.store.FindEvents(r.Context(), criteria, "serverVersion", "asc", vsync.DefaultGetAllIDsLimit)
	if err != nil {
		slog.Error("search failed", "component", "api", "action", "search", "error", err)
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if events == nil {
		events = []types.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// writeSyncError writes an envelope carrying only an error message, the
// failure contract of the sync endpoints.
func writeSyncError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(vsync.ErrorEnvelope(msg)); err != nil {
		slog.Error("failed to encode sync error response", "error", err)
	}
}

// parseLimitParam parses an optional limit query parameter. Zero means
// "use the default"; the engines apply it.
func parseLimitParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid limit parameter: %w", err)
	}
	return limit, nil
}

// parseDateParam parses an optional date query parameter, accepting RFC 3339
// timestamps or bare dates.
func parseDateParam(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", v)
	}
	return &t, nil
}
