package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/vitalsync/vitalsync/internal/store"
	"github.com/vitalsync/vitalsync/internal/types"
)

// ClientResolver fetches client records for a set of base entity ids using
// batched multi-id lookups. When searchMissing is enabled, ids the batch
// lookup missed are backfilled with individual fetches, trading latency for
// completeness.
type ClientResolver struct {
	clients       store.ClientStore
	batchSize     int
	searchMissing bool
}

// NewClientResolver creates a resolver with the standard batch size.
func NewClientResolver(clients store.ClientStore, searchMissing bool) *ClientResolver {
	return &ClientResolver{
		clients:       clients,
		batchSize:     ClientFetchBatchSize,
		searchMissing: searchMissing,
	}
}

// Resolve returns the clients for the given ids. Ids with no stored client
// are absent from the result.
func (r *ClientResolver) Resolve(ctx context.Context, ids []string) ([]types.Client, error) {
	var clients []types.Client
	for i := 0; i < len(ids); i += r.batchSize {
		end := min(i+r.batchSize, len(ids))
		found, err := r.clients.FindClientsByBaseEntityIDs(ctx, ids[i:end])
		if err != nil {
			return nil, fmt.Errorf("batch client lookup: %w", err)
		}
		clients = append(clients, found...)
	}

	if r.searchMissing {
		return r.backfillMissing(ctx, ids, clients)
	}
	return clients, nil
}

// backfillMissing fetches each requested id absent from the batch results
// individually and appends any that exist.
func (r *ClientResolver) backfillMissing(ctx context.Context, requested []string, clients []types.Client) ([]types.Client, error) {
	found := make(map[string]bool, len(clients))
	for _, c := range clients {
		found[c.BaseEntityID] = true
	}

	for _, id := range requested {
		if found[id] {
			continue
		}
		client, err := r.clients.GetClientByBaseEntityID(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("backfill client %s: %w", id, err)
		}
		clients = append(clients, *client)
	}
	return clients, nil
}
