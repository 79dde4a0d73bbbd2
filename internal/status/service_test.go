package status

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statusline/statusline/internal/errors"
	"github.com/statusline/statusline/internal/eventstore"
	"github.com/statusline/statusline/internal/notify"
	"github.com/statusline/statusline/internal/observability"
	"github.com/statusline/statusline/pkg/types"
)

// fakeStore is a read-only Store with injectable results.
type fakeStore struct {
	anchor    *types.Event
	events    []types.Event
	anchorErr error
	rangeErr  error

	mu    sync.Mutex
	calls []string
}

func (f *fakeStore) FindLastBefore(ctx context.Context, entityID string, start int64) (*types.Event, error) {
	f.record("last_before")
	return f.anchor, f.anchorErr
}

func (f *fakeStore) FindInRange(ctx context.Context, entityID string, start, end int64) ([]types.Event, error) {
	f.record("range")
	return f.events, f.rangeErr
}

func (f *fakeStore) record(op string) {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	f.mu.Unlock()
}

// barrierStore blocks each read until the other one has started.
type barrierStore struct {
	wg sync.WaitGroup
}

func (b *barrierStore) wait(ctx context.Context) error {
	b.wg.Done()
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(2 * time.Second):
		return stderrors.New("reads were not issued concurrently")
	}
}

func (b *barrierStore) FindLastBefore(ctx context.Context, entityID string, start int64) (*types.Event, error) {
	return nil, b.wait(ctx)
}

func (b *barrierStore) FindInRange(ctx context.Context, entityID string, start, end int64) ([]types.Event, error) {
	return nil, b.wait(ctx)
}

func TestService_Status(t *testing.T) {
	store := &fakeStore{
		anchor: &types.Event{Timestamp: 500, State: "idle"},
		events: []types.Event{{Timestamp: 2000, State: "drive"}},
	}
	stats := observability.NewQueryStats(time.Hour)
	svc := NewService(store, observability.NewMetrics(), stats)

	got, err := svc.Status(context.Background(), "truck-1", types.Window{Start: 1000, End: 5000})
	require.NoError(t, err)
	assert.Equal(t, []types.Interval{
		{State: "idle", From: 1000, To: 2000},
		{State: "drive", From: 2000, To: 5000},
	}, got)
	assert.ElementsMatch(t, []string{"last_before", "range"}, store.calls)

	top := stats.GetTopEntities(1)
	require.Len(t, top, 1)
	assert.Equal(t, "truck-1", top[0].EntityID)
	assert.Equal(t, int64(2), top[0].Intervals)
}

func TestService_StatusNoEvents(t *testing.T) {
	svc := NewService(&fakeStore{}, nil, nil)

	got, err := svc.Status(context.Background(), "truck-1", types.Window{Start: 1000, End: 5000})
	require.NoError(t, err)
	assert.Equal(t, []types.Interval{{State: types.NoData, From: 1000, To: 5000}}, got)
}

func TestService_StatusReadsConcurrently(t *testing.T) {
	store := &barrierStore{}
	store.wg.Add(2)
	svc := NewService(store, nil, nil)

	_, err := svc.Status(context.Background(), "truck-1", types.Window{Start: 0, End: 10})
	require.NoError(t, err)
}

func TestService_StatusStoreFailure(t *testing.T) {
	cause := stderrors.New("connection refused")

	tests := []struct {
		name  string
		store *fakeStore
	}{
		{"anchor read fails", &fakeStore{anchorErr: cause, events: []types.Event{{Timestamp: 1, State: "x"}}}},
		{"range read fails", &fakeStore{rangeErr: cause}},
		{"both reads fail", &fakeStore{anchorErr: cause, rangeErr: cause}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.store, observability.NewMetrics(), nil)

			got, err := svc.Status(context.Background(), "truck-1", types.Window{Start: 0, End: 10})
			require.Error(t, err)
			assert.Nil(t, got)
			assert.Equal(t, errors.ErrCategoryStorage, errors.GetCategory(err))
			assert.Equal(t, errors.CodeReadFailed, errors.GetCode(err))
			assert.ErrorIs(t, err, cause)
			assert.Equal(t, "connection refused", errors.ClientMessage(err))
		})
	}
}

func TestService_Append(t *testing.T) {
	ctx := context.Background()
	store := eventstore.NewMemoryStore()
	svc := NewService(store, observability.NewMetrics(), nil)

	n, err := svc.Append(ctx, "truck-1", []types.Event{
		{Timestamp: 2000, State: "drive"},
		{Timestamp: 1000, State: "idle"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := svc.Status(ctx, "truck-1", types.Window{Start: 1500, End: 3000})
	require.NoError(t, err)
	assert.Equal(t, []types.Interval{
		{State: "idle", From: 1500, To: 2000},
		{State: "drive", From: 2000, To: 3000},
	}, got)
}

func TestService_AppendValidation(t *testing.T) {
	svc := NewService(eventstore.NewMemoryStore(), nil, nil)

	_, err := svc.Append(context.Background(), "", []types.Event{{Timestamp: 1, State: "a"}})
	assert.Equal(t, errors.CodeMissingEntity, errors.GetCode(err))

	_, err = svc.Append(context.Background(), "truck-1", nil)
	assert.Equal(t, errors.CodeInvalidEvent, errors.GetCode(err))
}

func TestService_AppendReadOnlyStore(t *testing.T) {
	svc := NewService(&fakeStore{}, nil, nil)

	_, err := svc.Append(context.Background(), "truck-1", []types.Event{{Timestamp: 1, State: "a"}})
	assert.Equal(t, errors.ErrCategoryInternal, errors.GetCategory(err))
}

func TestService_AppendPublishes(t *testing.T) {
	svc := NewService(eventstore.NewMemoryStore(), nil, nil)
	bus := notify.NewNotifier(4)
	svc.SetNotifier(bus)
	sub := bus.Subscribe("test")

	_, err := svc.Append(context.Background(), "truck-1", []types.Event{
		{Timestamp: 300, State: "drive"},
		{Timestamp: 100, State: "idle"},
	})
	require.NoError(t, err)

	select {
	case n := <-sub.Ch:
		assert.Equal(t, notify.Notification{EntityID: "truck-1", Events: 2, Latest: 300}, n)
	default:
		t.Fatal("expected a notification after append")
	}

	// Rejected batches publish nothing.
	_, err = svc.Append(context.Background(), "truck-1", nil)
	require.Error(t, err)
	select {
	case n := <-sub.Ch:
		t.Fatalf("unexpected notification %+v", n)
	default:
	}
}
