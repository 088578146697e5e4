package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/vitalsync/vitalsync/internal/types"
)

func newExpandFixture() (*fakeEventStore, *fakeClientStore, *FamilyExpander) {
	events := newFakeEventStore()
	clients := newFakeClientStore()
	pull := NewPullEngine(events, NewClientResolver(clients, false))
	return events, clients, NewFamilyExpander(pull)
}

func TestExpand_IncludesFamilyEvents(t *testing.T) {
	events, clients, expander := newExpandFixture()
	clients.seed(types.Client{
		BaseEntityID:  "c1",
		Relationships: map[string][]string{types.RelationshipFamily: {"c2"}},
	})
	clients.seed(types.Client{BaseEntityID: "c2"})
	events.seed(types.Event{FormSubmissionID: "fs-1", BaseEntityID: "c1", EventType: "Visit"})
	events.seed(types.Event{FormSubmissionID: "fs-2", BaseEntityID: "c2", EventType: "Visit"})
	events.seed(types.Event{FormSubmissionID: "fs-3", BaseEntityID: "c2", EventType: "Visit"})

	envelope, err := expander.Expand(context.Background(), []string{"c1"}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if envelope.NoOfEvents != 3 {
		t.Errorf("expected 3 events including family, got %d", envelope.NoOfEvents)
	}
	if len(envelope.Clients) != 2 {
		t.Errorf("expected both clients, got %d", len(envelope.Clients))
	}
}

func TestExpand_FamilyFlagOff(t *testing.T) {
	events, clients, expander := newExpandFixture()
	clients.seed(types.Client{
		BaseEntityID:  "c1",
		Relationships: map[string][]string{types.RelationshipFamily: {"c2"}},
	})
	clients.seed(types.Client{BaseEntityID: "c2"})
	events.seed(types.Event{FormSubmissionID: "fs-1", BaseEntityID: "c1", EventType: "Visit"})
	events.seed(types.Event{FormSubmissionID: "fs-2", BaseEntityID: "c2", EventType: "Visit"})

	envelope, err := expander.Expand(context.Background(), []string{"c1"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if envelope.NoOfEvents != 1 {
		t.Errorf("expected only c1's event, got %d", envelope.NoOfEvents)
	}
	if len(envelope.Clients) != 1 {
		t.Errorf("expected only c1, got %d clients", len(envelope.Clients))
	}
}

func TestExpand_MultipleEntities(t *testing.T) {
	events, clients, expander := newExpandFixture()
	clients.seed(types.Client{BaseEntityID: "c1"})
	clients.seed(types.Client{BaseEntityID: "c2"})
	events.seed(types.Event{FormSubmissionID: "fs-1", BaseEntityID: "c1"})
	events.seed(types.Event{FormSubmissionID: "fs-2", BaseEntityID: "c2"})

	envelope, err := expander.Expand(context.Background(), []string{"c1", "c2"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if envelope.NoOfEvents != 2 {
		t.Errorf("expected 2 events, got %d", envelope.NoOfEvents)
	}
}

func TestExpand_ErrorAbortsWholeExpansion(t *testing.T) {
	events, clients, expander := newExpandFixture()
	clients.seed(types.Client{BaseEntityID: "c1"})
	events.seed(types.Event{FormSubmissionID: "fs-1", BaseEntityID: "c1"})
	events.findErrFor["c2"] = errors.New("storage offline")

	envelope, err := expander.Expand(context.Background(), []string{"c1", "c2"}, false)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if envelope != nil {
		t.Errorf("expected no partial results, got %+v", envelope)
	}
}

func TestExpand_NoEntities(t *testing.T) {
	_, _, expander := newExpandFixture()

	envelope, err := expander.Expand(context.Background(), nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if envelope.NoOfEvents != 0 || len(envelope.Clients) != 0 {
		t.Errorf("expected empty envelope, got %+v", envelope)
	}
}
