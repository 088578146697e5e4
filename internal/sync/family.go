package sync

import (
	"context"
	"fmt"

	"github.com/vitalsync/vitalsync/internal/search"
)

// FamilyExpander combines pull results for a list of entities, optionally
// including the events of each entity's family relations.
type FamilyExpander struct {
	pull *PullEngine
}

// NewFamilyExpander creates an expander over the given pull engine.
func NewFamilyExpander(pull *PullEngine) *FamilyExpander {
	return &FamilyExpander{pull: pull}
}

// Expand pulls every event and client for each base entity id from version
// genesis, accumulating results in input order. When withFamilyEvents is set
// and an entity's pull returned exactly one client with a family
// relationship, the related entities are pulled too.
//
// Any failure aborts the whole expansion; no partial results are returned.
// This mirrors the push path's counterpart endpoint in the upstream protocol,
// which is all-or-nothing here even though push isolates per-record failures.
func (f *FamilyExpander) Expand(ctx context.Context, baseEntityIDs []string, withFamilyEvents bool) (*Envelope, error) {
	combined := newEnvelope(nil, nil, 0)

	for _, id := range baseEntityIDs {
		envelope, err := f.pullForEntity(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("expand entity %s: %w", id, err)
		}
		combined.Events = append(combined.Events, envelope.Events...)
		combined.Clients = append(combined.Clients, envelope.Clients...)

		if !withFamilyEvents || len(envelope.Clients) != 1 {
			continue
		}
		for _, related := range envelope.Clients[0].FamilyRelationships() {
			familyEnvelope, err := f.pullForEntity(ctx, related)
			if err != nil {
				return nil, fmt.Errorf("expand family entity %s: %w", related, err)
			}
			combined.Events = append(combined.Events, familyEnvelope.Events...)
			combined.Clients = append(combined.Clients, familyEnvelope.Clients...)
		}
	}

	combined.NoOfEvents = len(combined.Events)
	return combined, nil
}

// pullForEntity pulls everything recorded against a single entity from
// version genesis.
func (f *FamilyExpander) pullForEntity(ctx context.Context, baseEntityID string) (*Envelope, error) {
	genesis := int64(0)
	criteria := search.EventCriteria{
		BaseEntityID: baseEntityID,
		VersionFloor: NextCursor(&genesis),
	}
	return f.pull.Pull(ctx, criteria, ExpandPullLimit, false)
}
