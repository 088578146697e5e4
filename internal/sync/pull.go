package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vitalsync/vitalsync/internal/search"
	"github.com/vitalsync/vitalsync/internal/store"
	"github.com/vitalsync/vitalsync/internal/types"
)

// PullEngine serves incremental pulls: events matching the criteria ordered
// by ascending server version, together with the clients they reference.
type PullEngine struct {
	events   store.EventStore
	resolver *ClientResolver
}

// NewPullEngine creates a pull engine using the given event store and
// client resolver.
func NewPullEngine(events store.EventStore, resolver *ClientResolver) *PullEngine {
	return &PullEngine{
		events:   events,
		resolver: resolver,
	}
}

// Pull fetches up to limit events matching the criteria plus their associated
// clients. A limit <= 0 falls back to DefaultPullLimit. The total record
// count is computed only when wantTotalCount is set and the page is
// non-empty.
func (e *PullEngine) Pull(ctx context.Context, criteria search.EventCriteria, limit int, wantTotalCount bool) (*Envelope, error) {
	if limit <= 0 {
		limit = DefaultPullLimit
	}

	start := time.Now()
	events, err := e.events.FindEvents(ctx, criteria, "serverVersion", "asc", limit)
	if err != nil {
		return nil, fmt.Errorf("find events: %w", err)
	}

	var clients []types.Client
	var totalRecords int64
	if len(events) > 0 {
		clientIDs := distinctBaseEntityIDs(events)
		clients, err = e.resolver.Resolve(ctx, clientIDs)
		if err != nil {
			return nil, fmt.Errorf("resolve clients: %w", err)
		}

		if wantTotalCount {
			totalRecords, err = e.events.CountEvents(ctx, criteria)
			if err != nil {
				return nil, fmt.Errorf("count events: %w", err)
			}
		}
	}

	slog.Info("pull completed",
		"component", "sync",
		"action", "pull",
		"events", len(events),
		"clients", len(clients),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return newEnvelope(events, clients, totalRecords), nil
}

// distinctBaseEntityIDs collects the non-blank base entity ids referenced by
// the events, preserving first-seen order.
func distinctBaseEntityIDs(events []types.Event) []string {
	seen := make(map[string]bool, len(events))
	var ids []string
	for i := range events {
		if !events[i].HasBaseEntityID() || seen[events[i].BaseEntityID] {
			continue
		}
		seen[events[i].BaseEntityID] = true
		ids = append(ids, events[i].BaseEntityID)
	}
	return ids
}
