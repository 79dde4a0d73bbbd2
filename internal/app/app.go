// Package app provides the unified application lifecycle management for statusline.
package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	grpcapi "github.com/statusline/statusline/internal/api/grpc"
	httpapi "github.com/statusline/statusline/internal/api/http"
	"github.com/statusline/statusline/internal/config"
	"github.com/statusline/statusline/internal/eventstore"
	"github.com/statusline/statusline/internal/notify"
	"github.com/statusline/statusline/internal/observability"
	"github.com/statusline/statusline/internal/server"
	"github.com/statusline/statusline/internal/snapshot"
	"github.com/statusline/statusline/internal/status"
	"github.com/statusline/statusline/internal/storage"
	"google.golang.org/grpc"
)

// statsWindow is how long an entity stays in the query statistics after
// its last query.
const statsWindow = time.Hour

// maintenanceInterval is how often query statistics are pruned and filter
// counters are exported.
const maintenanceInterval = time.Minute

// notifyBuffer is the per-subscriber capacity of the append bus.
const notifyBuffer = 64

// App manages all statusline service lifecycles.
type App struct {
	cfg *config.Config

	// Shared resources
	store    eventstore.EventStore
	filtered *eventstore.FilteredStore
	sqlite   *eventstore.SQLiteStore
	objects  storage.ObjectStorage
	metrics  *observability.Metrics
	stats    *observability.QueryStats
	service  *status.Service
	bus      *notify.Notifier
	shutdown *server.ShutdownManager

	// Service components
	apiServer      *http.Server
	apiListener    net.Listener
	adminServer    *http.Server
	adminListener  net.Listener
	grpcServer     *grpc.Server
	grpcListener   net.Listener
	snapshotter    *snapshot.Snapshotter
	snapshotDaemon *snapshot.Daemon

	// Lifecycle
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new App with the given configuration.
func New(cfg *config.Config) (*App, error) {
	// Resolve paths and validate
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Ensure directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	return &App{
		cfg:      cfg,
		shutdown: server.NewShutdownManager(server.DefaultShutdownConfig()),
	}, nil
}

// Start initializes shared resources and starts all configured services.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	// A signal can start shutdown before Stop runs, so background work is
	// cancelled as soon as draining begins.
	a.shutdown.OnShutdownStart(func() {
		log.Printf("Draining %d in-flight requests", a.shutdown.InFlightCount())
		cancel()
	})

	if err := a.initSharedResources(ctx); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to initialize shared resources: %w", err)
	}

	if a.cfg.ShouldRunSnapshot() {
		if err := a.startSnapshotService(ctx); err != nil {
			a.cleanup()
			return fmt.Errorf("failed to start snapshot service: %w", err)
		}
	}

	if a.cfg.ShouldRunAPI() {
		if err := a.startAPIService(); err != nil {
			a.cleanup()
			return fmt.Errorf("failed to start api service: %w", err)
		}
	}

	if a.cfg.HTTP.AdminAddr != "" {
		if err := a.startAdminService(); err != nil {
			a.cleanup()
			return fmt.Errorf("failed to start admin service: %w", err)
		}
	}

	a.wg.Add(1)
	go a.maintain(ctx)

	log.Printf("statusline started in %s mode", a.cfg.Mode)
	return nil
}

// initSharedResources opens the event store and builds the status service.
func (a *App) initSharedResources(ctx context.Context) error {
	backend, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	a.store = backend
	a.shutdown.RegisterCloser(backend)
	log.Printf("Event store initialized: type=%s", a.cfg.Store.Type)

	if n := a.cfg.Store.BloomExpectedEntities; n > 0 {
		a.filtered = eventstore.NewFilteredStore(backend, n, a.cfg.Store.BloomFPR)
		loaded, err := a.filtered.Load(ctx)
		if err != nil {
			return err
		}
		a.store = a.filtered
		log.Printf("Entity filter loaded: %d entities, fpr=%g", loaded, a.cfg.Store.BloomFPR)
	}

	a.metrics = observability.NewMetrics()
	a.stats = observability.NewQueryStats(statsWindow)
	a.service = status.NewService(a.store, a.metrics, a.stats)
	a.bus = notify.NewNotifier(notifyBuffer)
	a.service.SetNotifier(a.bus)
	return nil
}

// openStore creates the configured event store backend.
func (a *App) openStore(ctx context.Context) (eventstore.EventStore, error) {
	switch a.cfg.Store.Type {
	case config.StoreSQLite:
		store, err := eventstore.NewSQLiteStore(a.cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		a.sqlite = store
		return store, nil
	case config.StoreInfluxDB:
		influx := a.cfg.Store.Influx
		store, err := eventstore.NewInfluxStore(ctx, eventstore.InfluxConfig{
			URL:         influx.URL,
			Token:       influx.Token,
			Org:         influx.Org,
			Bucket:      influx.Bucket,
			Measurement: influx.Measurement,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open influxdb store: %w", err)
		}
		return store, nil
	case config.StoreMemory:
		return eventstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", a.cfg.Store.Type)
	}
}

// openObjectStorage creates the object storage snapshots are shipped to.
func (a *App) openObjectStorage(ctx context.Context) (storage.ObjectStorage, error) {
	cfg := a.cfg.Snapshot.Storage
	switch cfg.Type {
	case config.StorageLocal:
		return storage.NewLocalStorage(cfg.Path)
	case config.StorageS3:
		s3Cfg := storage.DefaultS3Config()
		if cfg.S3.Region != "" {
			s3Cfg.Region = cfg.S3.Region
		}
		s3Cfg.Endpoint = cfg.S3.Endpoint
		s3Cfg.UsePathStyle = cfg.S3.UsePathStyle
		s3Cfg.KeyPrefix = cfg.S3.Prefix
		log.Printf("S3 Config: Bucket=%s, Region=%s, Endpoint=%s, Prefix=%s", cfg.S3.Bucket, s3Cfg.Region, s3Cfg.Endpoint, cfg.S3.Prefix)
		return storage.NewS3Storage(ctx, cfg.S3.Bucket, s3Cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// startSnapshotService starts the periodic snapshot daemon.
func (a *App) startSnapshotService(ctx context.Context) error {
	if a.sqlite == nil {
		return fmt.Errorf("snapshots require the sqlite store")
	}

	objects, err := a.openObjectStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.objects = objects
	log.Printf("Snapshot storage initialized: type=%s", a.cfg.Snapshot.Storage.Type)

	a.snapshotter = snapshot.NewSnapshotter(a.sqlite, objects, a.cfg.Snapshot.WorkDir, a.cfg.Snapshot.Retain)
	a.snapshotDaemon = snapshot.NewDaemon(a.snapshotter, a.cfg.Snapshot.Interval, a.onSnapshot)
	// Skipping unchanged cycles is only sound when every append is seen
	// on the bus.
	if a.cfg.ShouldRunAPI() && a.cfg.Store.ExclusiveWriter {
		sub := a.bus.Subscribe("snapshot-daemon")
		a.snapshotDaemon.WatchChanges(sub.Ch)
	}
	if err := a.snapshotDaemon.Start(ctx); err != nil {
		return fmt.Errorf("failed to start snapshot daemon: %w", err)
	}
	a.shutdown.RegisterCloser(server.CloserFunc(a.snapshotDaemon.Stop))

	log.Printf("Snapshot daemon started: interval=%s, retain=%d", a.cfg.Snapshot.Interval, a.cfg.Snapshot.Retain)
	return nil
}

// onSnapshot records the outcome of every snapshot attempt.
func (a *App) onSnapshot(info *snapshot.Info, err error) {
	a.metrics.ObserveSnapshot(err)
	if err == nil {
		log.Printf("Snapshot uploaded: %s (%d bytes)", info.ObjectPath, info.SizeBytes)
	}
}

// startAPIService starts the public HTTP server and, if enabled, the gRPC server.
func (a *App) startAPIService() error {
	var err error
	a.apiListener, err = net.Listen("tcp", a.cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on HTTP address: %w", err)
	}

	a.apiServer = &http.Server{
		Handler:      httpapi.NewRouter(a.service, server.ShutdownMiddleware(a.shutdown)),
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}
	a.shutdown.RegisterCloser(server.HTTPServerCloser(a.apiServer, a.cfg.HTTP.WriteTimeout))
	a.serveHTTP("API", a.apiServer, a.apiListener)

	if !a.cfg.GRPC.Enabled {
		return nil
	}

	a.grpcListener, err = net.Listen("tcp", a.cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC address: %w", err)
	}
	a.grpcServer = grpcapi.NewServer(a.service, grpc.UnaryInterceptor(server.UnaryShutdownInterceptor(a.shutdown)))
	a.shutdown.RegisterCloser(server.CloserFunc(func() error {
		a.grpcServer.GracefulStop()
		return nil
	}))

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		log.Printf("gRPC server listening on %s", a.grpcListener.Addr())
		if err := a.grpcServer.Serve(a.grpcListener); err != nil {
			log.Printf("gRPC server error: %v", err)
		}
	}()

	return nil
}

// startAdminService starts the metrics and admin HTTP server.
func (a *App) startAdminService() error {
	var err error
	a.adminListener, err = net.Listen("tcp", a.cfg.HTTP.AdminAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on admin address: %w", err)
	}

	var snap httpapi.SnapshotFunc
	if a.snapshotDaemon != nil {
		snap = a.snapshotDaemon.RunOnce
	}
	admin := httpapi.NewAdminHandler(a.stats, snap)

	a.adminServer = &http.Server{
		Handler:      httpapi.NewAdminRouter(admin, a.metrics.Handler()),
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}
	a.shutdown.RegisterCloser(server.HTTPServerCloser(a.adminServer, a.cfg.HTTP.WriteTimeout))
	a.serveHTTP("Admin", a.adminServer, a.adminListener)
	return nil
}

func (a *App) serveHTTP(name string, srv *http.Server, ln net.Listener) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		log.Printf("%s HTTP server listening on %s", name, ln.Addr())
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("%s HTTP server error: %v", name, err)
		}
	}()
}

// maintain prunes idle query statistics and exports filter counters until
// ctx is cancelled.
func (a *App) maintain(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	var reported uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := a.stats.Prune(); removed > 0 {
				log.Printf("Query stats: pruned %d idle entities", removed)
			}
			if a.filtered != nil {
				skipped := a.filtered.Skipped()
				a.metrics.AddFilterSkipped(skipped - reported)
				reported = skipped
			}
		}
	}
}

// Stop gracefully stops all services and releases resources.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	log.Printf("Initiating graceful shutdown...")

	// Cancel context to signal all services
	if a.cancel != nil {
		a.cancel()
	}

	err := a.shutdown.Shutdown(ctx, "stop requested")

	// Wait for all goroutines to finish
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	select {
	case <-done:
		// All goroutines finished
	case <-shutdownCtx.Done():
		log.Printf("Shutdown timeout, some goroutines may not have finished")
	}

	log.Printf("statusline stopped")
	return err
}

// cleanup releases shared resources after a failed start.
func (a *App) cleanup() {
	if a.cancel != nil {
		a.cancel()
	}
	if err := a.shutdown.Shutdown(context.Background(), "start failed"); err != nil {
		log.Printf("Cleanup error: %v", err)
	}
	a.mu.Lock()
	a.running = false
	a.mu.Unlock()
}

// WaitForShutdown blocks until a shutdown signal is received.
func (a *App) WaitForShutdown(ctx context.Context) error {
	return a.shutdown.ListenForSignals(ctx)
}

// APIAddr returns the public HTTP listener address, or "" if not serving.
func (a *App) APIAddr() string {
	if a.apiListener == nil {
		return ""
	}
	return a.apiListener.Addr().String()
}

// AdminAddr returns the admin HTTP listener address, or "" if not serving.
func (a *App) AdminAddr() string {
	if a.adminListener == nil {
		return ""
	}
	return a.adminListener.Addr().String()
}

// GRPCAddr returns the gRPC listener address, or "" if not serving.
func (a *App) GRPCAddr() string {
	if a.grpcListener == nil {
		return ""
	}
	return a.grpcListener.Addr().String()
}
