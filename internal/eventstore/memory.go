package eventstore

import (
	"context"
	"sort"
	"sync"

	"github.com/statusline/statusline/pkg/types"
)

// MemoryStore implements EventStore in process memory.
// This is primarily used for testing and development.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string][]types.Event
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string][]types.Event)}
}

// FindLastBefore returns the latest event strictly before start.
func (m *MemoryStore) FindLastBefore(ctx context.Context, entityID string, start int64) (*types.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.events[entityID]
	i := sort.Search(len(entries), func(i int) bool { return entries[i].Timestamp >= start })
	if i == 0 {
		return nil, nil
	}
	e := entries[i-1]
	return &e, nil
}

// FindInRange returns a copy of the events in [start, end].
func (m *MemoryStore) FindInRange(ctx context.Context, entityID string, start, end int64) ([]types.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.events[entityID]
	lo := sort.Search(len(entries), func(i int) bool { return entries[i].Timestamp >= start })
	hi := sort.Search(len(entries), func(i int) bool { return entries[i].Timestamp > end })
	if lo >= hi {
		return nil, nil
	}
	return append([]types.Event(nil), entries[lo:hi]...), nil
}

// Append adds events, keeping each entity's entries ordered by timestamp.
func (m *MemoryStore) Append(ctx context.Context, entityID string, events ...types.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entries := append(m.events[entityID], events...)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Timestamp < entries[j].Timestamp })
	m.events[entityID] = entries
	return nil
}

// Entities returns every entity with at least one event, sorted.
func (m *MemoryStore) Entities(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.events))
	for id := range m.events {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
