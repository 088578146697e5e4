package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/vitalsync/vitalsync/internal/search"
	"github.com/vitalsync/vitalsync/internal/types"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testEvent(fsid, baseEntityID string) *types.Event {
	return &types.Event{
		FormSubmissionID: fsid,
		BaseEntityID:     baseEntityID,
		EventType:        "Visit",
		ProviderID:       "p1",
	}
}

func TestUpsertEvent_AssignsMonotonicVersions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var last int64
	for _, fsid := range []string{"fs-1", "fs-2", "fs-3"} {
		stored, err := s.UpsertEvent(ctx, testEvent(fsid, "c1"), "nurse1")
		if err != nil {
			t.Fatalf("upsert %s: %v", fsid, err)
		}
		if stored.ServerVersion <= last {
			t.Fatalf("version %d not greater than %d", stored.ServerVersion, last)
		}
		last = stored.ServerVersion
	}
}

func TestUpsertEvent_GeneratesID(t *testing.T) {
	s := newTestStore(t)

	stored, err := s.UpsertEvent(context.Background(), testEvent("fs-1", "c1"), "nurse1")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if stored.ID == "" {
		t.Error("expected a generated id")
	}
	if stored.CreatedBy != "nurse1" {
		t.Errorf("expected createdBy nurse1, got %q", stored.CreatedBy)
	}
}

func TestUpsertEvent_UpdateKeepsIdentity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.UpsertEvent(ctx, testEvent("fs-1", "c1"), "nurse1")
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	update := testEvent("fs-1", "c1")
	update.EventType = "Follow Up"
	second, err := s.UpsertEvent(ctx, update, "nurse2")
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("expected id %q preserved, got %q", first.ID, second.ID)
	}
	if second.CreatedBy != "nurse1" {
		t.Errorf("expected original author preserved, got %q", second.CreatedBy)
	}
	if second.ServerVersion <= first.ServerVersion {
		t.Errorf("expected a new version, got %d after %d", second.ServerVersion, first.ServerVersion)
	}

	stats, err := s.GetStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.EventCount != 1 {
		t.Errorf("expected a single row after update, got %d", stats.EventCount)
	}
}

func TestUpsertEvent_MissingRequiredFields(t *testing.T) {
	s := newTestStore(t)

	_, err := s.UpsertEvent(context.Background(), &types.Event{FormSubmissionID: "fs-1"}, "nurse1")
	if !errors.Is(err, ErrMissingRequiredFields) {
		t.Errorf("expected ErrMissingRequiredFields, got %v", err)
	}
}

func TestUpsertEvent_MissingFormSubmissionID(t *testing.T) {
	s := newTestStore(t)

	event := testEvent("", "c1")
	_, err := s.UpsertEvent(context.Background(), event, "nurse1")
	if !errors.Is(err, ErrMissingRequiredFields) {
		t.Errorf("expected ErrMissingRequiredFields, got %v", err)
	}
}

func TestFindEvents_VersionFloorAscending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, fsid := range []string{"fs-1", "fs-2", "fs-3", "fs-4"} {
		if _, err := s.UpsertEvent(ctx, testEvent(fsid, "c1"), "nurse1"); err != nil {
			t.Fatalf("upsert %s: %v", fsid, err)
		}
	}

	floor := int64(3)
	events, err := s.FindEvents(ctx, search.EventCriteria{
		ProviderID:   "p1",
		VersionFloor: &floor,
	}, "serverVersion", "asc", 100)
	if err != nil {
		t.Fatalf("find events: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events at or past version 3, got %d", len(events))
	}
	if events[0].ServerVersion != 3 || events[1].ServerVersion != 4 {
		t.Errorf("unexpected versions: %d, %d", events[0].ServerVersion, events[1].ServerVersion)
	}
}

func TestFindEvents_CriteriaAreConjunctive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e1 := testEvent("fs-1", "c1")
	e1.Team = "alpha"
	e2 := testEvent("fs-2", "c2")
	e2.Team = "beta"
	for _, e := range []*types.Event{e1, e2} {
		if _, err := s.UpsertEvent(ctx, e, "nurse1"); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	events, err := s.FindEvents(ctx, search.EventCriteria{
		ProviderID: "p1",
		Team:       "alpha",
	}, "serverVersion", "asc", 100)
	if err != nil {
		t.Fatalf("find events: %v", err)
	}

	if len(events) != 1 || events[0].BaseEntityID != "c1" {
		t.Errorf("expected only the alpha team event, got %+v", events)
	}
}

func TestFindEvents_Limit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, fsid := range []string{"fs-1", "fs-2", "fs-3"} {
		if _, err := s.UpsertEvent(ctx, testEvent(fsid, "c1"), "nurse1"); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	events, err := s.FindEvents(ctx, search.EventCriteria{ProviderID: "p1"}, "serverVersion", "asc", 2)
	if err != nil {
		t.Fatalf("find events: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("expected 2 events, got %d", len(events))
	}
}

func TestCountEvents_IgnoresLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, fsid := range []string{"fs-1", "fs-2", "fs-3"} {
		if _, err := s.UpsertEvent(ctx, testEvent(fsid, "c1"), "nurse1"); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	count, err := s.CountEvents(ctx, search.EventCriteria{ProviderID: "p1"})
	if err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 3 {
		t.Errorf("expected count 3, got %d", count)
	}
}

func TestGetEventByID_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetEventByID(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetEventByID_RoundTripsDetails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	event := testEvent("fs-1", "c1")
	event.Details = map[string]string{"out_of_area_location_id": "loc-away"}
	stored, err := s.UpsertEvent(ctx, event, "nurse1")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.GetEventByID(ctx, stored.ID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if got.Details["out_of_area_location_id"] != "loc-away" {
		t.Errorf("details not round-tripped: %v", got.Details)
	}
	if got.LastEdit == nil {
		t.Error("expected lastEdit to be set")
	}
}

func TestFindIDsByEventType_ExcludesDeleted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertEvent(ctx, testEvent("fs-1", "c1"), "nurse1"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	deleted := testEvent("fs-2", "c1")
	deleted.IsDeleted = true
	if _, err := s.UpsertEvent(ctx, deleted, "nurse1"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := s.UpsertEvent(ctx, testEvent("fs-3", "c1"), "nurse1"); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	ids, lastVersion, err := s.FindIDsByEventType(ctx, "Visit", false, 0, 100, nil, nil)
	if err != nil {
		t.Fatalf("find ids: %v", err)
	}

	if len(ids) != 2 {
		t.Errorf("expected 2 live ids, got %d", len(ids))
	}
	if lastVersion != 3 {
		t.Errorf("expected last version 3, got %d", lastVersion)
	}
}

func TestUpsertClient_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	client := &types.Client{
		BaseEntityID: "c1",
		FirstName:    "Asha",
		Gender:       "female",
		Attributes:   map[string]string{"residence": "loc-home"},
		Relationships: map[string][]string{
			types.RelationshipFamily: {"c2", "c3"},
		},
	}
	if err := s.UpsertClient(ctx, client); err != nil {
		t.Fatalf("upsert client: %v", err)
	}

	got, err := s.GetClientByBaseEntityID(ctx, "c1")
	if err != nil {
		t.Fatalf("get client: %v", err)
	}
	if got.FirstName != "Asha" || got.Attributes["residence"] != "loc-home" {
		t.Errorf("client not round-tripped: %+v", got)
	}
	if len(got.FamilyRelationships()) != 2 {
		t.Errorf("relationships not round-tripped: %v", got.Relationships)
	}
}

func TestUpsertClient_UpdatesExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertClient(ctx, &types.Client{BaseEntityID: "c1", FirstName: "Asha"}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := s.UpsertClient(ctx, &types.Client{BaseEntityID: "c1", FirstName: "Aisha"}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := s.GetClientByBaseEntityID(ctx, "c1")
	if err != nil {
		t.Fatalf("get client: %v", err)
	}
	if got.FirstName != "Aisha" {
		t.Errorf("expected updated name, got %q", got.FirstName)
	}

	stats, err := s.GetStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.ClientCount != 1 {
		t.Errorf("expected a single client row, got %d", stats.ClientCount)
	}
}

func TestUpsertClient_MissingBaseEntityID(t *testing.T) {
	s := newTestStore(t)

	err := s.UpsertClient(context.Background(), &types.Client{FirstName: "Asha"})
	if !errors.Is(err, ErrMissingRequiredFields) {
		t.Errorf("expected ErrMissingRequiredFields, got %v", err)
	}
}

func TestFindClientsByBaseEntityIDs_EmptyInput(t *testing.T) {
	s := newTestStore(t)

	clients, err := s.FindClientsByBaseEntityIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(clients) != 0 {
		t.Errorf("expected no clients, got %d", len(clients))
	}
}

func TestGetClientByBaseEntityID_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetClientByBaseEntityID(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGenerateSnapshot_WritesFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertEvent(ctx, testEvent("fs-1", "c1"), "nurse1"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.GenerateSnapshot(ctx); err != nil {
		t.Fatalf("generate snapshot: %v", err)
	}

	path, err := s.GetSnapshotPath(ctx)
	if err != nil {
		t.Fatalf("snapshot path: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected snapshot file at %s: %v", path, err)
	}

	// Regeneration replaces the previous snapshot.
	if err := s.GenerateSnapshot(ctx); err != nil {
		t.Fatalf("regenerate snapshot: %v", err)
	}
}
