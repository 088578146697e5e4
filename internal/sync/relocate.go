package sync

import (
	"context"
	"errors"

	"github.com/vitalsync/vitalsync/internal/store"
	"github.com/vitalsync/vitalsync/internal/types"
)

// AttributeResidence is the client attribute holding the current residence
// location id.
const AttributeResidence = "residence"

// DetailOutOfAreaLocation is the event detail key recording the location an
// out-of-area event was originally submitted under.
const DetailOutOfAreaLocation = "out_of_area_location_id"

// Relocator applies the out-of-area rule to an event before persistence.
type Relocator interface {
	Relocate(ctx context.Context, event *types.Event) (*types.Event, error)
}

// NoopRelocator returns events unchanged.
type NoopRelocator struct{}

func (NoopRelocator) Relocate(_ context.Context, event *types.Event) (*types.Event, error) {
	return event, nil
}

// ClientLocationRelocator reassigns an event's location attribution to the
// owning client's residence when the two differ, recording the original
// location in the event details.
type ClientLocationRelocator struct {
	clients store.ClientStore
}

// NewClientLocationRelocator creates a relocator backed by the client store.
func NewClientLocationRelocator(clients store.ClientStore) *ClientLocationRelocator {
	return &ClientLocationRelocator{clients: clients}
}

func (r *ClientLocationRelocator) Relocate(ctx context.Context, event *types.Event) (*types.Event, error) {
	if !event.HasBaseEntityID() {
		return event, nil
	}

	client, err := r.clients.GetClientByBaseEntityID(ctx, event.BaseEntityID)
	if errors.Is(err, store.ErrNotFound) {
		// Unknown clients keep their submitted attribution.
		return event, nil
	}
	if err != nil {
		return nil, err
	}

	residence := client.Attributes[AttributeResidence]
	if residence == "" || residence == event.LocationID {
		return event, nil
	}

	relocated := *event
	relocated.Details = make(map[string]string, len(event.Details)+1)
	for k, v := range event.Details {
		relocated.Details[k] = v
	}
	relocated.Details[DetailOutOfAreaLocation] = event.LocationID
	relocated.LocationID = residence
	return &relocated, nil
}
