package snapshot

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/statusline/statusline/internal/notify"
)

// Daemon takes a snapshot on a fixed interval.
type Daemon struct {
	snapshotter *Snapshotter
	interval    time.Duration
	onResult    func(*Info, error)
	changes     <-chan notify.Notification

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewDaemon creates a snapshot daemon. onResult, if non-nil, is called
// after every attempt.
func NewDaemon(s *Snapshotter, interval time.Duration, onResult func(*Info, error)) *Daemon {
	return &Daemon{snapshotter: s, interval: interval, onResult: onResult}
}

// WatchChanges makes scheduled cycles skip when no notification arrived
// on changes since the last successful snapshot. The first cycle always
// runs. Call before Start.
func (d *Daemon) WatchChanges(changes <-chan notify.Notification) {
	d.changes = changes
}

// Start begins the snapshot loop. It runs until the context is cancelled or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("snapshot: daemon is already running")
	}
	if d.interval <= 0 {
		return fmt.Errorf("snapshot: interval must be positive, got %s", d.interval)
	}

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running = true
	d.done = make(chan struct{})

	go d.run(ctx)
	return nil
}

// Stop gracefully stops the daemon, waiting for an in-progress snapshot.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}

	d.cancel()
	<-d.done
	d.running = false
	return nil
}

// RunOnce takes a single snapshot outside the schedule.
func (d *Daemon) RunOnce(ctx context.Context) (*Info, error) {
	info, err := d.snapshotter.Take(ctx)
	if d.onResult != nil {
		d.onResult(info, err)
	}
	return info, err
}

func (d *Daemon) run(ctx context.Context) {
	defer close(d.done)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	changes := d.changes
	watching := changes != nil
	dirty := true
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				// Bus closed: fall back to snapshotting every cycle.
				changes = nil
				watching = false
			}
			dirty = true
		case <-ticker.C:
			if watching && !dirty {
				log.Printf("snapshot: no appends since last snapshot, skipping")
				continue
			}
			if _, err := d.RunOnce(ctx); err != nil {
				if ctx.Err() == nil {
					log.Printf("snapshot: scheduled snapshot failed: %v", err)
				}
				continue
			}
			dirty = false
		}
	}
}
