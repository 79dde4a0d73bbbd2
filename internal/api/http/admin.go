package http

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"github.com/statusline/statusline/internal/errors"
	"github.com/statusline/statusline/internal/observability"
	"github.com/statusline/statusline/internal/snapshot"
)

const defaultTopEntities = 10

// SnapshotFunc takes one snapshot on demand.
type SnapshotFunc func(ctx context.Context) (*snapshot.Info, error)

// AdminHandler serves the operator endpoints.
type AdminHandler struct {
	stats    *observability.QueryStats
	snapshot SnapshotFunc
}

// NewAdminHandler creates an admin handler. Either argument may be nil,
// which disables the corresponding endpoint.
func NewAdminHandler(stats *observability.QueryStats, snap SnapshotFunc) *AdminHandler {
	return &AdminHandler{stats: stats, snapshot: snap}
}

// TopEntities handles GET /v1/admin/entities/top?n=.
func (h *AdminHandler) TopEntities(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())
	if h.stats == nil {
		writeError(w, http.StatusServiceUnavailable, "query statistics are disabled", requestID)
		return
	}

	n := defaultTopEntities
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, "n must be a positive integer", requestID)
			return
		}
		n = v
	}

	writeJSON(w, http.StatusOK, h.stats.GetTopEntities(n))
}

// TriggerSnapshot handles POST /v1/admin/snapshot.
func (h *AdminHandler) TriggerSnapshot(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())
	if h.snapshot == nil {
		writeError(w, http.StatusServiceUnavailable, "snapshots are not enabled", requestID)
		return
	}

	log.Printf("http: manual snapshot triggered (request_id=%s)", requestID)
	info, err := h.snapshot(r.Context())
	if err != nil {
		log.Printf("http: manual snapshot failed: %v", err)
		writeError(w, http.StatusInternalServerError, errors.ClientMessage(err), requestID)
		return
	}

	writeJSON(w, http.StatusOK, info)
}
