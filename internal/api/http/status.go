package http

import (
	"net/http"
	"time"

	"github.com/statusline/statusline/internal/errors"
	"github.com/statusline/statusline/internal/status"
	"github.com/statusline/statusline/internal/validation"
	"github.com/statusline/statusline/pkg/types"
)

// TransportHTTP labels metrics recorded by this package.
const TransportHTTP = "http"

// StatusHandler handles GET /status/vehicles/{vehicleID}?start=&end= requests.
//
// Success is a JSON array of {event, from, to}. Any validation or store
// failure is a 400 with {"error": "..."}.
type StatusHandler struct {
	service *status.Service
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(service *status.Service) *StatusHandler {
	return &StatusHandler{service: service}
}

// ServeHTTP handles the status HTTP request.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	vehicleID := r.PathValue("vehicleID")
	query := r.URL.Query()

	intervals, err := h.status(r, vehicleID, query.Get("start"), query.Get("end"))
	h.service.Observe(TransportHTTP, started, err)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.ClientMessage(err))
		return
	}

	writeJSON(w, http.StatusOK, intervals)
}

func (h *StatusHandler) status(r *http.Request, vehicleID, start, end string) ([]types.Interval, error) {
	if err := validation.CheckEntity(vehicleID); err != nil {
		return nil, err
	}
	window, err := validation.CheckParams(start, end)
	if err != nil {
		return nil, err
	}
	return h.service.Status(r.Context(), vehicleID, window)
}

// MissingVehicleHandler answers /status/vehicles/ requests that carry no id.
func MissingVehicleHandler(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusBadRequest, validation.MsgEntityRequired)
}
