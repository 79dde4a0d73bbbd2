package http

import (
	"fmt"
	"net/http"

	"github.com/statusline/statusline/internal/status"
)

// NewRouter returns the public API handler wrapped in the default
// middleware chain plus any outer middleware.
func NewRouter(service *status.Service, outer ...func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /status/vehicles/{vehicleID}", NewStatusHandler(service))
	mux.HandleFunc("GET /status/vehicles/{$}", MissingVehicleHandler)
	mux.HandleFunc("GET /status/vehicles", MissingVehicleHandler)
	mux.Handle("POST /v1/events", NewEventsHandler(service))
	mux.HandleFunc("GET /health", HealthHandler("api"))

	return DefaultMiddleware(outer...)(mux)
}

// NewAdminRouter returns the admin handler: metrics, snapshots and
// query statistics.
func NewAdminRouter(admin *AdminHandler, metrics http.Handler, outer ...func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	mux.HandleFunc("POST /v1/admin/snapshot", admin.TriggerSnapshot)
	mux.HandleFunc("GET /v1/admin/entities/top", admin.TopEntities)
	mux.HandleFunc("GET /health", HealthHandler("admin"))

	chain := make([]func(http.Handler) http.Handler, 0, len(outer)+2)
	chain = append(chain, outer...)
	chain = append(chain, RecoveryMiddleware, RequestIDMiddleware)
	return ChainMiddleware(chain...)(mux)
}

// HealthHandler returns a health check handler for the given service.
func HealthHandler(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","service":"%s"}`, service)
	}
}
