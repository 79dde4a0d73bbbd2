// Package status answers "what state was this entity in, and when" for a
// time window by combining two event store reads with the interval builder.
package status

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/statusline/statusline/internal/errors"
	"github.com/statusline/statusline/internal/eventstore"
	"github.com/statusline/statusline/internal/interval"
	"github.com/statusline/statusline/internal/notify"
	"github.com/statusline/statusline/internal/observability"
	"github.com/statusline/statusline/internal/validation"
	"github.com/statusline/statusline/pkg/types"
)

// Store operation labels used for metrics.
const (
	opLastBefore = "last_before"
	opRange      = "range"
	opAppend     = "append"
)

// Service serves status queries and event ingestion against one store.
// It holds no per-request state and is safe for concurrent use.
type Service struct {
	store   eventstore.Store
	metrics *observability.Metrics
	stats   *observability.QueryStats
	notify  *notify.Notifier
}

// NewService creates a Service. metrics and stats may be nil.
func NewService(store eventstore.Store, metrics *observability.Metrics, stats *observability.QueryStats) *Service {
	return &Service{store: store, metrics: metrics, stats: stats}
}

// SetNotifier makes Append publish a notification after every successful
// write. Call before serving requests.
func (s *Service) SetNotifier(n *notify.Notifier) {
	s.notify = n
}

// Status returns the interval sequence for entityID over window.
//
// The anchor lookup and the in-window range read run concurrently and are
// joined before building. If either read fails the builder is not run and
// the error is a STORAGE StatusError wrapping the store's failure.
func (s *Service) Status(ctx context.Context, entityID string, window types.Window) ([]types.Interval, error) {
	var (
		anchor *types.Event
		events []types.Event
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		e, err := s.store.FindLastBefore(gctx, entityID, window.Start)
		s.observeStore(opLastBefore, err)
		if err != nil {
			return errors.NewStorageError(errors.CodeReadFailed, "failed to read anchor event", err)
		}
		anchor = e
		return nil
	})
	g.Go(func() error {
		evs, err := s.store.FindInRange(gctx, entityID, window.Start, window.End)
		s.observeStore(opRange, err)
		if err != nil {
			return errors.NewStorageError(errors.CodeReadFailed, "failed to read window events", err)
		}
		events = evs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	intervals := interval.Build(window.Start, window.End, anchor, events)

	if s.metrics != nil {
		s.metrics.ObserveIntervals(len(intervals))
	}
	if s.stats != nil {
		s.stats.RecordQuery(entityID, len(intervals))
	}
	return intervals, nil
}

// Append validates and stores events for entityID. The store must
// implement eventstore.Writer.
func (s *Service) Append(ctx context.Context, entityID string, events []types.Event) (int, error) {
	if err := validation.CheckEntity(entityID); err != nil {
		return 0, err
	}
	if err := validation.CheckEvents(events); err != nil {
		return 0, err
	}

	w, ok := s.store.(eventstore.Writer)
	if !ok {
		return 0, errors.NewInternalError("event store is read-only", nil)
	}

	err := w.Append(ctx, entityID, events...)
	s.observeStore(opAppend, err)
	if err != nil {
		return 0, errors.NewStorageError(errors.CodeWriteFailed, "failed to append events", err)
	}
	if s.metrics != nil {
		s.metrics.AddEventsAppended(len(events))
	}
	if s.notify != nil {
		latest := events[0].Timestamp
		for _, e := range events[1:] {
			if e.Timestamp > latest {
				latest = e.Timestamp
			}
		}
		s.notify.Publish(notify.Notification{EntityID: entityID, Events: len(events), Latest: latest})
	}
	return len(events), nil
}

// Observe records a finished request for transport. Validation failures
// and store failures are counted separately.
func (s *Service) Observe(transport string, started time.Time, err error) {
	if s.metrics == nil {
		return
	}
	result := observability.ResultOK
	switch errors.GetCategory(err) {
	case "":
		if err != nil {
			result = observability.ResultStoreError
		}
	case errors.ErrCategoryValidation:
		result = observability.ResultValidationError
	default:
		result = observability.ResultStoreError
	}
	s.metrics.ObserveRequest(transport, result, time.Since(started))
}

// Stats returns the per-entity query statistics, or nil.
func (s *Service) Stats() *observability.QueryStats {
	return s.stats
}

func (s *Service) observeStore(op string, err error) {
	if s.metrics != nil {
		s.metrics.ObserveStoreRead(op, err)
	}
}
