package types

import (
	"strings"
	"time"
)

// RelationshipFamily is the relationship key linking a client to its family head.
const RelationshipFamily = "family"

// Event is a single form submission recorded against a client (base entity).
// The server assigns ID and ServerVersion on write; everything else is
// client-supplied payload.
type Event struct {
	ID               string            `json:"id,omitempty"`
	FormSubmissionID string            `json:"formSubmissionId"`
	BaseEntityID     string            `json:"baseEntityId"`
	EventType        string            `json:"eventType"`
	EntityType       string            `json:"entityType,omitempty"`
	ProviderID       string            `json:"providerId"`
	LocationID       string            `json:"locationId,omitempty"`
	Team             string            `json:"team,omitempty"`
	TeamID           string            `json:"teamId,omitempty"`
	EventDate        *time.Time        `json:"eventDate,omitempty"`
	LastEdit         *time.Time        `json:"lastEdit,omitempty"`
	ServerVersion    int64             `json:"serverVersion"`
	IsDeleted        bool              `json:"isDeleted,omitempty"`
	Details          map[string]string `json:"details,omitempty"`
	CreatedBy        string            `json:"createdBy,omitempty"`
}

// HasBaseEntityID reports whether the event references a client.
func (e *Event) HasBaseEntityID() bool {
	return strings.TrimSpace(e.BaseEntityID) != ""
}

// Client is a demographic record identified by its base entity id.
// Relationships maps a relationship type (e.g. "family") to the base entity
// ids of the related clients.
type Client struct {
	BaseEntityID  string              `json:"baseEntityId"`
	FirstName     string              `json:"firstName,omitempty"`
	LastName      string              `json:"lastName,omitempty"`
	Gender        string              `json:"gender,omitempty"`
	BirthDate     *time.Time          `json:"birthdate,omitempty"`
	Attributes    map[string]string   `json:"attributes,omitempty"`
	Relationships map[string][]string `json:"relationships,omitempty"`
	LastEdit      *time.Time          `json:"lastEdit,omitempty"`
}

// FamilyRelationships returns the base entity ids the client is related to
// through the "family" relationship, or nil when none exist.
func (c *Client) FamilyRelationships() []string {
	if c.Relationships == nil {
		return nil
	}
	return c.Relationships[RelationshipFamily]
}

// StoreStats holds aggregate store counters surfaced by the health endpoint.
type StoreStats struct {
	EventCount  int64 `json:"event_count"`
	ClientCount int64 `json:"client_count"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	EventCount  int64  `json:"event_count"`
	ClientCount int64  `json:"client_count"`
}
