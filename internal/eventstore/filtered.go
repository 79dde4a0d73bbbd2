package eventstore

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/statusline/statusline/internal/bloom"
	"github.com/statusline/statusline/pkg/types"
)

// FilteredStore answers reads for entities that were never written without
// touching the backend. The filter has no false negatives, so a skipped read
// would have returned nothing anyway. The filter only learns entities from
// Load and from its own Append, so it is sound only when no other writer
// shares the backend.
type FilteredStore struct {
	EventStore
	filter  *bloom.Filter
	skipped atomic.Uint64
}

// NewFilteredStore wraps inner with a filter sized for expectedEntities.
// Call Load before serving reads.
func NewFilteredStore(inner EventStore, expectedEntities int, fpr float64) *FilteredStore {
	return &FilteredStore{
		EventStore: inner,
		filter:     bloom.NewWithEstimates(expectedEntities, fpr),
	}
}

// Load seeds the filter with every entity already in the backend.
func (f *FilteredStore) Load(ctx context.Context) (int, error) {
	ids, err := f.EventStore.Entities(ctx)
	if err != nil {
		return 0, fmt.Errorf("eventstore: failed to load entity filter: %w", err)
	}
	for _, id := range ids {
		f.filter.Add(id)
	}
	return len(ids), nil
}

// FindLastBefore skips the backend for unknown entities.
func (f *FilteredStore) FindLastBefore(ctx context.Context, entityID string, start int64) (*types.Event, error) {
	if !f.filter.MayContain(entityID) {
		f.skipped.Add(1)
		return nil, nil
	}
	return f.EventStore.FindLastBefore(ctx, entityID, start)
}

// FindInRange skips the backend for unknown entities.
func (f *FilteredStore) FindInRange(ctx context.Context, entityID string, start, end int64) ([]types.Event, error) {
	if !f.filter.MayContain(entityID) {
		f.skipped.Add(1)
		return nil, nil
	}
	return f.EventStore.FindInRange(ctx, entityID, start, end)
}

// Append writes through and records the entity only after the write succeeds.
func (f *FilteredStore) Append(ctx context.Context, entityID string, events ...types.Event) error {
	if err := f.EventStore.Append(ctx, entityID, events...); err != nil {
		return err
	}
	if len(events) > 0 {
		f.filter.Add(entityID)
	}
	return nil
}

// Skipped returns how many reads were answered by the filter.
func (f *FilteredStore) Skipped() uint64 {
	return f.skipped.Load()
}

// Unwrap returns the backend store.
func (f *FilteredStore) Unwrap() EventStore {
	return f.EventStore
}
