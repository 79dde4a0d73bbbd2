package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestShutdown_ClosersRunInReverseOrder(t *testing.T) {
	sm := NewShutdownManager(ShutdownConfig{})

	var mu sync.Mutex
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		sm.RegisterCloser(CloserFunc(func() error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}))
	}

	if err := sm.Shutdown(context.Background(), "test"); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if len(order) != 3 || order[0] != 3 || order[1] != 2 || order[2] != 1 {
		t.Errorf("expected LIFO order [3 2 1], got %v", order)
	}
}

func TestShutdown_OnShutdownStartRunsBeforeClosers(t *testing.T) {
	sm := NewShutdownManager(ShutdownConfig{})

	var order []string
	sm.OnShutdownStart(func() {
		if !sm.IsShuttingDown() {
			t.Error("IsShuttingDown should be true inside the start callback")
		}
		order = append(order, "start")
	})
	sm.RegisterCloser(CloserFunc(func() error {
		order = append(order, "closer")
		return nil
	}))

	if err := sm.Shutdown(context.Background(), "test"); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if len(order) != 2 || order[0] != "start" || order[1] != "closer" {
		t.Errorf("expected [start closer], got %v", order)
	}
}

func TestShutdown_OnlyOnce(t *testing.T) {
	sm := NewShutdownManager(ShutdownConfig{})
	calls := 0
	sm.RegisterCloser(CloserFunc(func() error {
		calls++
		return nil
	}))

	sm.Shutdown(context.Background(), "first")
	sm.Shutdown(context.Background(), "second")

	if calls != 1 {
		t.Errorf("expected closer to run once, ran %d times", calls)
	}
	select {
	case <-sm.ShutdownCh():
	default:
		t.Error("shutdown channel should be closed")
	}
}

func TestShutdown_ReportsCloserError(t *testing.T) {
	sm := NewShutdownManager(ShutdownConfig{})
	boom := errors.New("boom")
	sm.RegisterCloser(CloserFunc(func() error { return boom }))

	if err := sm.Shutdown(context.Background(), "test"); !errors.Is(err, boom) {
		t.Errorf("expected closer error, got %v", err)
	}
}

func TestShutdown_DrainTimeout(t *testing.T) {
	sm := NewShutdownManager(ShutdownConfig{DrainTimeout: 50 * time.Millisecond})
	if !sm.TrackRequest() {
		t.Fatal("TrackRequest should succeed before shutdown")
	}

	err := sm.Shutdown(context.Background(), "test")
	if err == nil {
		t.Fatal("expected drain timeout error")
	}
}

func TestShutdown_WaitsForInFlight(t *testing.T) {
	sm := NewShutdownManager(ShutdownConfig{DrainTimeout: 5 * time.Second})
	sm.TrackRequest()

	go func() {
		time.Sleep(30 * time.Millisecond)
		sm.UntrackRequest()
	}()

	if err := sm.Shutdown(context.Background(), "test"); err != nil {
		t.Fatalf("expected clean drain, got %v", err)
	}
	if sm.InFlightCount() != 0 {
		t.Errorf("expected 0 in-flight, got %d", sm.InFlightCount())
	}
}

func TestShutdownMiddleware(t *testing.T) {
	sm := NewShutdownManager(ShutdownConfig{})
	handler := ShutdownMiddleware(sm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sm.InFlightCount() != 1 {
			t.Errorf("expected 1 in-flight request, got %d", sm.InFlightCount())
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	sm.Shutdown(context.Background(), "test")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 during shutdown, got %d", rec.Code)
	}
}

func TestUnaryShutdownInterceptor(t *testing.T) {
	sm := NewShutdownManager(ShutdownConfig{})
	interceptor := UnaryShutdownInterceptor(sm)
	info := &grpc.UnaryServerInfo{FullMethod: "/test/Method"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return "ok", nil
	}

	resp, err := interceptor(context.Background(), nil, info, handler)
	if err != nil || resp != "ok" {
		t.Fatalf("expected ok, got %v, %v", resp, err)
	}

	sm.Shutdown(context.Background(), "test")

	_, err = interceptor(context.Background(), nil, info, handler)
	if status.Code(err) != codes.Unavailable {
		t.Errorf("expected Unavailable, got %v", err)
	}
}
