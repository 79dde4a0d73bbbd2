package grpc

import (
	"context"
	"fmt"
	"log"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/statusline/statusline/internal/errors"
	statussvc "github.com/statusline/statusline/internal/status"
	"github.com/statusline/statusline/internal/validation"
	"github.com/statusline/statusline/pkg/types"
)

// TransportGRPC labels metrics recorded by this package.
const TransportGRPC = "grpc"

// StatusServer implements StatusServiceServer on top of the status service.
type StatusServer struct {
	service *statussvc.Service
}

// NewStatusServer creates a new gRPC status server.
func NewStatusServer(service *statussvc.Service) *StatusServer {
	return &StatusServer{service: service}
}

// NewServer creates a grpc.Server with StatusService registered.
func NewServer(service *statussvc.Service, opts ...grpc.ServerOption) *grpc.Server {
	s := grpc.NewServer(opts...)
	RegisterStatusServiceServer(s, NewStatusServer(service))
	return s
}

// GetStatus returns the interval sequence for an entity and window.
// start and end may be numbers or numeric strings.
func (s *StatusServer) GetStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	started := time.Now()
	requestID := extractRequestID(ctx)

	intervals, err := s.getStatus(ctx, req)
	s.service.Observe(TransportGRPC, started, err)
	if err != nil {
		return nil, toStatus(err, "GetStatus", requestID)
	}

	list := make([]interface{}, 0, len(intervals))
	for _, iv := range intervals {
		list = append(list, map[string]interface{}{
			"event": iv.State,
			"from":  float64(iv.From),
			"to":    float64(iv.To),
		})
	}
	resp, err := structpb.NewStruct(map[string]interface{}{"intervals": list})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return resp, nil
}

func (s *StatusServer) getStatus(ctx context.Context, req *structpb.Struct) ([]types.Interval, error) {
	fields := req.GetFields()
	entityID := fields["entity_id"].GetStringValue()
	if err := validation.CheckEntity(entityID); err != nil {
		return nil, err
	}
	window, err := validation.CheckParams(paramText(fields["start"]), paramText(fields["end"]))
	if err != nil {
		return nil, err
	}
	return s.service.Status(ctx, entityID, window)
}

// AppendEvents stores a batch of events for one entity.
func (s *StatusServer) AppendEvents(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	started := time.Now()
	requestID := extractRequestID(ctx)

	fields := req.GetFields()
	events, err := decodeEvents(fields["events"])
	if err != nil {
		s.service.Observe(TransportGRPC, started, err)
		return nil, toStatus(err, "AppendEvents", requestID)
	}

	accepted, err := s.service.Append(ctx, fields["entity_id"].GetStringValue(), events)
	s.service.Observe(TransportGRPC, started, err)
	if err != nil {
		return nil, toStatus(err, "AppendEvents", requestID)
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"accepted": structpb.NewNumberValue(float64(accepted)),
	}}, nil
}

// paramText renders a window bound as the text the HTTP API would receive.
func paramText(v *structpb.Value) string {
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(k.NumberValue, 'f', -1, 64)
	case *structpb.Value_StringValue:
		return k.StringValue
	case *structpb.Value_NullValue, nil:
		return ""
	default:
		// Present but neither a number nor a string; fails parsing.
		return v.String()
	}
}

func decodeEvents(v *structpb.Value) ([]types.Event, error) {
	list := v.GetListValue()
	if list == nil {
		return nil, errors.NewValidationError(errors.CodeInvalidEvent, "events must be a list")
	}

	events := make([]types.Event, 0, len(list.GetValues()))
	for i, item := range list.GetValues() {
		obj := item.GetStructValue()
		if obj == nil {
			return nil, errors.NewValidationError(errors.CodeInvalidEvent, fmt.Sprintf("event %d must be an object", i))
		}
		ts, ok := obj.GetFields()["timestamp"].GetKind().(*structpb.Value_NumberValue)
		if !ok || ts.NumberValue != math.Trunc(ts.NumberValue) {
			return nil, errors.NewValidationError(errors.CodeInvalidEvent, fmt.Sprintf("event %d: timestamp must be an integer", i))
		}
		// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
		if ts.NumberValue < math.MinInt64 || ts.NumberValue >= math.MaxInt64 {
			return nil, errors.NewValidationError(errors.CodeInvalidEvent, fmt.Sprintf("event %d: timestamp out of int64 range", i))
		}
		events = append(events, types.Event{
			Timestamp: int64(ts.NumberValue),
			State:     obj.GetFields()["event"].GetStringValue(),
		})
	}
	return events, nil
}

// toStatus maps a service error to a gRPC status.
func toStatus(err error, method, requestID string) error {
	msg := errors.ClientMessage(err)
	switch errors.GetCategory(err) {
	case errors.ErrCategoryValidation:
		return status.Error(codes.InvalidArgument, msg)
	case errors.ErrCategoryStorage:
		log.Printf("grpc: %s failed (request_id=%s): %v", method, requestID, err)
		return status.Error(codes.Unavailable, msg)
	default:
		log.Printf("grpc: %s failed (request_id=%s): %v", method, requestID, err)
		return status.Error(codes.Internal, msg)
	}
}

// extractRequestID extracts or generates a request ID from the gRPC context
// and echoes it back in the response header.
func extractRequestID(ctx context.Context) string {
	requestID := ""
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get("x-request-id"); len(ids) > 0 {
			requestID = ids[0]
		}
	}
	if requestID == "" {
		requestID = uuid.New().String()
	}
	_ = grpc.SetHeader(ctx, metadata.Pairs("x-request-id", requestID))
	return requestID
}
