package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vitalsync/vitalsync/internal/store"
	"github.com/vitalsync/vitalsync/internal/types"
)

var (
	// ErrEmptyBatch is returned when a push contains neither clients nor events.
	ErrEmptyBatch = errors.New("batch must contain clients or events")

	// ErrMalformedBatch is returned when the batch payload cannot be decoded.
	// No records are applied in that case.
	ErrMalformedBatch = errors.New("malformed batch payload")
)

// PushResult reports the records that failed to persist. Both lists are
// empty on full success.
type PushResult struct {
	FailedClientIDs []string `json:"failed_clients"`
	FailedEventIDs  []string `json:"failed_events"`
}

// HasFailures reports whether any record in the batch failed.
func (r *PushResult) HasFailures() bool {
	return len(r.FailedClientIDs) > 0 || len(r.FailedEventIDs) > 0
}

// PushEngine applies uploaded batches of clients and events. Each record is
// applied independently; one record's failure never aborts the batch.
type PushEngine struct {
	events    store.EventStore
	clients   store.ClientStore
	relocator Relocator
}

// NewPushEngine creates a push engine. Events pass through the relocator
// before persistence.
func NewPushEngine(events store.EventStore, clients store.ClientStore, relocator Relocator) *PushEngine {
	return &PushEngine{
		events:    events,
		clients:   clients,
		relocator: relocator,
	}
}

// batch is the raw upload shape. RawMessage fields distinguish an absent key
// from an empty list.
type batch struct {
	Clients json.RawMessage `json:"clients"`
	Events  json.RawMessage `json:"events"`
}

// Push decodes and applies a raw batch, attributing event authorship to
// actingUser. Structural decode failures abort the whole operation with
// ErrMalformedBatch; field-level problems surface as per-record failures in
// the result.
func (e *PushEngine) Push(ctx context.Context, raw []byte, actingUser string) (*PushResult, error) {
	var b batch
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}
	if b.Clients == nil && b.Events == nil {
		return nil, ErrEmptyBatch
	}

	result := &PushResult{
		FailedClientIDs: []string{},
		FailedEventIDs:  []string{},
	}

	if b.Clients != nil {
		var clients []types.Client
		if err := json.Unmarshal(b.Clients, &clients); err != nil {
			return nil, fmt.Errorf("%w: clients: %v", ErrMalformedBatch, err)
		}
		e.applyClients(ctx, clients, actingUser, result)
	}

	if b.Events != nil {
		var events []types.Event
		if err := json.Unmarshal(b.Events, &events); err != nil {
			return nil, fmt.Errorf("%w: events: %v", ErrMalformedBatch, err)
		}
		e.applyEvents(ctx, events, actingUser, result)
	}

	slog.Info("push completed",
		"component", "sync",
		"action", "push",
		"user", actingUser,
		"failed_clients", len(result.FailedClientIDs),
		"failed_events", len(result.FailedEventIDs),
	)

	return result, nil
}

// applyClients upserts each client, collecting failed ids.
func (e *PushEngine) applyClients(ctx context.Context, clients []types.Client, actingUser string, result *PushResult) {
	slog.Info("clients submitted",
		"component", "sync",
		"action", "push_clients",
		"count", len(clients),
		"user", actingUser,
	)

	for i := range clients {
		if err := e.clients.UpsertClient(ctx, &clients[i]); err != nil {
			slog.Error("client failed to sync",
				"component", "sync",
				"action", "push_client_failed",
				"base_entity_id", clients[i].BaseEntityID,
				"error", err,
			)
			result.FailedClientIDs = append(result.FailedClientIDs, clients[i].BaseEntityID)
		}
	}
}

// applyEvents relocates and upserts each event, collecting failed form
// submission ids.
func (e *PushEngine) applyEvents(ctx context.Context, events []types.Event, actingUser string, result *PushResult) {
	slog.Info("events submitted",
		"component", "sync",
		"action", "push_events",
		"count", len(events),
		"user", actingUser,
	)

	for i := range events {
		event, err := e.relocator.Relocate(ctx, &events[i])
		if err == nil {
			_, err = e.events.UpsertEvent(ctx, event, actingUser)
		}
		if err != nil {
			slog.Error("event failed to sync",
				"component", "sync",
				"action", "push_event_failed",
				"form_submission_id", events[i].FormSubmissionID,
				"event_type", events[i].EventType,
				"base_entity_id", events[i].BaseEntityID,
				"error", err,
			)
			result.FailedEventIDs = append(result.FailedEventIDs, events[i].FormSubmissionID)
		}
	}
}
