// Package search defines the filter value objects passed to the event store.
package search

import "time"

// EventCriteria is the filter set for event queries. All non-zero fields are
// combined with AND semantics by the store.
type EventCriteria struct {
	ProviderID   string
	LocationID   string
	BaseEntityID string
	Team         string
	TeamID       string
	EventType    string
	EntityType   string

	// VersionFloor, when set, restricts results to events with
	// server_version >= *VersionFloor.
	VersionFloor *int64

	EventDateFrom *time.Time
	EventDateTo   *time.Time
	LastEditFrom  *time.Time
	LastEditTo    *time.Time
}

// HasSyncFilter reports whether at least one identifying filter is present.
// The caller-facing sync endpoints reject requests without one before touching
// storage.
func (c EventCriteria) HasSyncFilter() bool {
	return c.Team != "" || c.TeamID != "" || c.ProviderID != "" ||
		c.LocationID != "" || c.BaseEntityID != ""
}
