// Package eventstore provides the append-only per-entity event log that
// status queries read from.
package eventstore

import (
	"context"

	"github.com/statusline/statusline/pkg/types"
)

// Store is the read contract the status service relies on.
type Store interface {
	// FindLastBefore returns the most recent event with Timestamp < start,
	// or nil if the entity has none.
	FindLastBefore(ctx context.Context, entityID string, start int64) (*types.Event, error)

	// FindInRange returns events with start <= Timestamp <= end in
	// ascending timestamp order. Events sharing a timestamp keep append order.
	FindInRange(ctx context.Context, entityID string, start, end int64) ([]types.Event, error)
}

// Writer appends events to an entity's log.
type Writer interface {
	Append(ctx context.Context, entityID string, events ...types.Event) error
}

// EntityLister enumerates every entity with at least one event.
type EntityLister interface {
	Entities(ctx context.Context) ([]string, error)
}

// EventStore is a complete backend: readable, writable, enumerable.
type EventStore interface {
	Store
	Writer
	EntityLister

	// Close releases the backend's connections.
	Close() error
}
