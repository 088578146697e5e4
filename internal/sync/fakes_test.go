package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/vitalsync/vitalsync/internal/search"
	"github.com/vitalsync/vitalsync/internal/store"
	"github.com/vitalsync/vitalsync/internal/types"
)

// fakeEventStore is an in-memory store.EventStore with per-record failure
// injection.
type fakeEventStore struct {
	events      []types.Event
	nextVersion int64

	failUpsert map[string]bool  // form submission ids that fail to persist
	findErrFor map[string]error // base entity ids whose FindEvents fails

	countCalls  int
	lastUser    string
	upsertCalls int
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{
		failUpsert: make(map[string]bool),
		findErrFor: make(map[string]error),
	}
}

// seed stores an event directly, assigning the next server version.
func (f *fakeEventStore) seed(e types.Event) types.Event {
	f.nextVersion++
	e.ServerVersion = f.nextVersion
	if e.ID == "" {
		e.ID = fmt.Sprintf("event-%d", f.nextVersion)
	}
	f.events = append(f.events, e)
	return e
}

func (f *fakeEventStore) matching(criteria search.EventCriteria) []types.Event {
	var out []types.Event
	for _, e := range f.events {
		if criteria.BaseEntityID != "" && e.BaseEntityID != criteria.BaseEntityID {
			continue
		}
		if criteria.ProviderID != "" && e.ProviderID != criteria.ProviderID {
			continue
		}
		if criteria.LocationID != "" && e.LocationID != criteria.LocationID {
			continue
		}
		if criteria.Team != "" && e.Team != criteria.Team {
			continue
		}
		if criteria.TeamID != "" && e.TeamID != criteria.TeamID {
			continue
		}
		if criteria.EventType != "" && e.EventType != criteria.EventType {
			continue
		}
		if criteria.VersionFloor != nil && e.ServerVersion < *criteria.VersionFloor {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (f *fakeEventStore) FindEvents(_ context.Context, criteria search.EventCriteria, _, _ string, limit int) ([]types.Event, error) {
	if err := f.findErrFor[criteria.BaseEntityID]; err != nil {
		return nil, err
	}
	out := f.matching(criteria)
	sort.Slice(out, func(i, j int) bool { return out[i].ServerVersion < out[j].ServerVersion })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeEventStore) CountEvents(_ context.Context, criteria search.EventCriteria) (int64, error) {
	f.countCalls++
	return int64(len(f.matching(criteria))), nil
}

func (f *fakeEventStore) GetEventByID(_ context.Context, id string) (*types.Event, error) {
	for i := range f.events {
		if f.events[i].ID == id {
			e := f.events[i]
			return &e, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeEventStore) UpsertEvent(_ context.Context, event *types.Event, actingUser string) (*types.Event, error) {
	f.upsertCalls++
	f.lastUser = actingUser
	if f.failUpsert[event.FormSubmissionID] {
		return nil, errors.New("injected upsert failure")
	}
	for i := range f.events {
		if f.events[i].FormSubmissionID == event.FormSubmissionID {
			updated := *event
			updated.ID = f.events[i].ID
			updated.ServerVersion = f.events[i].ServerVersion
			f.events[i] = updated
			return &updated, nil
		}
	}
	stored := f.seed(*event)
	stored.CreatedBy = actingUser
	f.events[len(f.events)-1] = stored
	return &stored, nil
}

func (f *fakeEventStore) FindIDsByEventType(_ context.Context, eventType string, includeDeleted bool, versionFloor int64, limit int, _, _ *time.Time) ([]string, int64, error) {
	var ids []string
	var last int64
	for _, e := range f.events {
		if eventType != "" && e.EventType != eventType {
			continue
		}
		if e.IsDeleted != includeDeleted {
			continue
		}
		if e.ServerVersion < versionFloor {
			continue
		}
		ids = append(ids, e.ID)
		if e.ServerVersion > last {
			last = e.ServerVersion
		}
		if limit > 0 && len(ids) >= limit {
			break
		}
	}
	return ids, last, nil
}

// fakeClientStore is an in-memory store.ClientStore. Ids in missingFromBatch
// are hidden from multi-id lookups but still resolvable individually, which
// exercises the backfill path.
type fakeClientStore struct {
	clients map[string]types.Client

	failUpsert       map[string]bool
	missingFromBatch map[string]bool
	batchCalls       [][]string
	individualCalls  []string
}

func newFakeClientStore() *fakeClientStore {
	return &fakeClientStore{
		clients:          make(map[string]types.Client),
		failUpsert:       make(map[string]bool),
		missingFromBatch: make(map[string]bool),
	}
}

func (f *fakeClientStore) seed(c types.Client) {
	f.clients[c.BaseEntityID] = c
}

func (f *fakeClientStore) FindClientsByBaseEntityIDs(_ context.Context, ids []string) ([]types.Client, error) {
	f.batchCalls = append(f.batchCalls, ids)
	var out []types.Client
	for _, id := range ids {
		if f.missingFromBatch[id] {
			continue
		}
		if c, ok := f.clients[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeClientStore) GetClientByBaseEntityID(_ context.Context, id string) (*types.Client, error) {
	f.individualCalls = append(f.individualCalls, id)
	c, ok := f.clients[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (f *fakeClientStore) UpsertClient(_ context.Context, client *types.Client) error {
	if f.failUpsert[client.BaseEntityID] {
		return errors.New("injected upsert failure")
	}
	f.clients[client.BaseEntityID] = *client
	return nil
}
