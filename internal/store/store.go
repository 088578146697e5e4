package store

import (
	"context"
	"time"

	"github.com/vitalsync/vitalsync/internal/search"
	"github.com/vitalsync/vitalsync/internal/types"
)

// EventStore defines the persistence contract for events.
type EventStore interface {
	// FindEvents returns events matching the criteria ordered by sortField in
	// sortDirection ("asc" or "desc"), capped at limit.
	FindEvents(ctx context.Context, criteria search.EventCriteria, sortField, sortDirection string, limit int) ([]types.Event, error)

	// CountEvents returns the total number of events matching the criteria,
	// ignoring any limit.
	CountEvents(ctx context.Context, criteria search.EventCriteria) (int64, error)

	// GetEventByID returns the event with the given id, or ErrNotFound.
	GetEventByID(ctx context.Context, id string) (*types.Event, error)

	// UpsertEvent inserts or updates an event keyed by form submission id and
	// atomically assigns it the next server version. Authorship of new events
	// is attributed to actingUser.
	UpsertEvent(ctx context.Context, event *types.Event, actingUser string) (*types.Event, error)

	// FindIDsByEventType returns up to limit event ids of the given type with
	// server_version >= versionFloor, ascending, together with the highest
	// server version among them. An empty eventType matches all types.
	FindIDsByEventType(ctx context.Context, eventType string, includeDeleted bool, versionFloor int64, limit int, from, to *time.Time) ([]string, int64, error)
}

// ClientStore defines the persistence contract for clients.
type ClientStore interface {
	// FindClientsByBaseEntityIDs returns the clients whose base entity id is
	// in ids. Missing ids are silently absent from the result.
	FindClientsByBaseEntityIDs(ctx context.Context, ids []string) ([]types.Client, error)

	// GetClientByBaseEntityID returns a single client, or ErrNotFound.
	GetClientByBaseEntityID(ctx context.Context, id string) (*types.Client, error)

	// UpsertClient inserts or updates a client keyed by base entity id.
	UpsertClient(ctx context.Context, client *types.Client) error
}

// Store is the full persistence surface consumed by the server.
type Store interface {
	EventStore
	ClientStore
	GetStats(ctx context.Context) (*types.StoreStats, error)
	GenerateSnapshot(ctx context.Context) error
	GetSnapshotPath(ctx context.Context) (string, error)
	Close() error
}
