// Package sync implements the incremental bidirectional sync protocol:
// server-version ordered pulls with client resolution, batched pushes with
// per-record failure isolation, and family expansion.
package sync

import (
	"github.com/vitalsync/vitalsync/internal/types"
)

const (
	// DefaultPullLimit is the page size used when the caller supplies none.
	DefaultPullLimit = 25

	// ClientFetchBatchSize caps the number of ids per client lookup query.
	ClientFetchBatchSize = 25

	// ExpandPullLimit is the effectively unbounded page size used by the
	// per-entity pulls of the family expansion path.
	ExpandPullLimit = 25000

	// DefaultGetAllIDsLimit caps id listing per findIdsByEventType request.
	DefaultGetAllIDsLimit = 5000
)

// Envelope is the sync response body: events ordered by ascending server
// version and the clients they reference.
type Envelope struct {
	Events       []types.Event  `json:"events"`
	Clients      []types.Client `json:"clients"`
	NoOfEvents   int            `json:"no_of_events"`
	TotalRecords int64          `json:"total_records"`
	Msg          string         `json:"msg,omitempty"`
}

// newEnvelope builds an envelope with non-nil slices so they serialize as []
// rather than null.
func newEnvelope(events []types.Event, clients []types.Client, totalRecords int64) *Envelope {
	if events == nil {
		events = []types.Event{}
	}
	if clients == nil {
		clients = []types.Client{}
	}
	return &Envelope{
		Events:       events,
		Clients:      clients,
		NoOfEvents:   len(events),
		TotalRecords: totalRecords,
	}
}

// ErrorEnvelope builds an envelope carrying only an error message.
func ErrorEnvelope(msg string) *Envelope {
	e := newEnvelope(nil, nil, 0)
	e.Msg = msg
	return e
}

// Request is the body of POST /rest/event/sync.
type Request struct {
	ProviderID    string `json:"providerId"`
	LocationID    string `json:"locationId"`
	BaseEntityID  string `json:"baseEntityId"`
	ServerVersion *int64 `json:"serverVersion"`
	Team          string `json:"team"`
	TeamID        string `json:"teamId"`
	Limit         int    `json:"limit"`
	ReturnCount   bool   `json:"returnCount"`
}

// ExpandRequest is the body of POST /rest/event/sync-by-base-entity-ids.
type ExpandRequest struct {
	BaseEntityIDs    []string `json:"baseEntityIds"`
	WithFamilyEvents bool     `json:"withFamilyEvents"`
}

// Identifier is the response of GET /rest/event/findIdsByEventType.
type Identifier struct {
	Identifiers       []string `json:"identifiers"`
	LastServerVersion int64    `json:"lastServerVersion"`
}
