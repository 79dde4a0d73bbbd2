package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/statusline/statusline/internal/errors"
	"github.com/statusline/statusline/internal/status"
	"github.com/statusline/statusline/pkg/types"
)

// maxEventsBodyBytes bounds an ingest request body.
const maxEventsBodyBytes = 8 << 20

// EventsRequest represents a batch of events for one entity.
type EventsRequest struct {
	EntityID string        `json:"entity_id"`
	Events   []types.Event `json:"events"`
}

// EventsResponse represents the ingest response.
type EventsResponse struct {
	Accepted  int    `json:"accepted"`
	RequestID string `json:"request_id"`
}

// EventsHandler handles POST /v1/events requests.
type EventsHandler struct {
	service *status.Service
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(service *status.Service) *EventsHandler {
	return &EventsHandler{service: service}
}

// ServeHTTP handles the ingest HTTP request.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	requestID := GetRequestID(r.Context())

	var req EventsRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventsBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), requestID)
		return
	}

	accepted, err := h.service.Append(r.Context(), req.EntityID, req.Events)
	h.service.Observe(TransportHTTP, started, err)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.GetCategory(err) == errors.ErrCategoryValidation {
			code = http.StatusBadRequest
		}
		writeError(w, code, errors.ClientMessage(err), requestID)
		return
	}

	writeJSON(w, http.StatusOK, EventsResponse{Accepted: accepted, RequestID: requestID})
}
