package grpc

import (
	"context"
	stderrors "errors"
	"math"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/statusline/statusline/internal/eventstore"
	"github.com/statusline/statusline/internal/observability"
	statussvc "github.com/statusline/statusline/internal/status"
	"github.com/statusline/statusline/pkg/types"
)

type failingStore struct{ err error }

func (f failingStore) FindLastBefore(ctx context.Context, entityID string, start int64) (*types.Event, error) {
	return nil, f.err
}

func (f failingStore) FindInRange(ctx context.Context, entityID string, start, end int64) ([]types.Event, error) {
	return nil, f.err
}

func startServer(t *testing.T, store eventstore.Store) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	svc := statussvc.NewService(store, observability.NewMetrics(), nil)
	srv := NewServer(svc)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewClient(conn)
}

func mustStruct(t *testing.T, m map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestGRPC_AppendThenGetStatus(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client := startServer(t, eventstore.NewMemoryStore())

	resp, err := client.AppendEvents(ctx, mustStruct(t, map[string]interface{}{
		"entity_id": "truck-1",
		"events": []interface{}{
			map[string]interface{}{"timestamp": 2000, "event": "drive"},
			map[string]interface{}{"timestamp": 3000, "event": "drive"},
			map[string]interface{}{"timestamp": 4000, "event": "idle"},
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, float64(3), resp.GetFields()["accepted"].GetNumberValue())

	var header metadata.MD
	resp, err = client.GetStatus(ctx, mustStruct(t, map[string]interface{}{
		"entity_id": "truck-1",
		"start":     1000,
		"end":       "5000",
	}), grpc.Header(&header))
	require.NoError(t, err)
	assert.NotEmpty(t, header.Get("x-request-id"))

	got := resp.AsMap()["intervals"]
	assert.Equal(t, []interface{}{
		map[string]interface{}{"event": "no_data", "from": float64(1000), "to": float64(2000)},
		map[string]interface{}{"event": "drive", "from": float64(2000), "to": float64(3000)},
		map[string]interface{}{"event": "idle", "from": float64(3000), "to": float64(5000)},
	}, got)
}

func TestGRPC_GetStatusValidation(t *testing.T) {
	ctx := context.Background()
	client := startServer(t, eventstore.NewMemoryStore())

	tests := []struct {
		name string
		req  map[string]interface{}
		want string
	}{
		{"missing entity", map[string]interface{}{"start": 1, "end": 2}, "Vehicle id is required."},
		{"missing bounds", map[string]interface{}{"entity_id": "a"}, "Start date is required. End date is required."},
		{"fractional start", map[string]interface{}{"entity_id": "a", "start": 1.5, "end": 2}, "Invalid start date format. Please use a valid date format."},
		{"inverted", map[string]interface{}{"entity_id": "a", "start": 5, "end": 1}, "Start date must be less than end date."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.GetStatus(ctx, mustStruct(t, tt.req))
			st, ok := status.FromError(err)
			require.True(t, ok)
			assert.Equal(t, codes.InvalidArgument, st.Code())
			assert.Equal(t, tt.want, st.Message())
		})
	}
}

func TestGRPC_StoreFailureIsUnavailable(t *testing.T) {
	client := startServer(t, failingStore{err: stderrors.New("influx: connection refused")})

	_, err := client.GetStatus(context.Background(), mustStruct(t, map[string]interface{}{
		"entity_id": "a", "start": 1, "end": 2,
	}))
	st, _ := status.FromError(err)
	assert.Equal(t, codes.Unavailable, st.Code())
	assert.Equal(t, "influx: connection refused", st.Message())
}

func TestGRPC_AppendEventsInvalid(t *testing.T) {
	client := startServer(t, eventstore.NewMemoryStore())

	tests := []struct {
		name string
		req  map[string]interface{}
	}{
		{"events not a list", map[string]interface{}{"entity_id": "a", "events": "x"}},
		{"event not an object", map[string]interface{}{"entity_id": "a", "events": []interface{}{1}}},
		{"fractional timestamp", map[string]interface{}{"entity_id": "a", "events": []interface{}{
			map[string]interface{}{"timestamp": 1.25, "event": "idle"},
		}}},
		{"timestamp beyond int64", map[string]interface{}{"entity_id": "a", "events": []interface{}{
			map[string]interface{}{"timestamp": 1e19, "event": "idle"},
		}}},
		{"missing label", map[string]interface{}{"entity_id": "a", "events": []interface{}{
			map[string]interface{}{"timestamp": 1},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.AppendEvents(context.Background(), mustStruct(t, tt.req))
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
		})
	}
}

func TestDecodeEvents_TimestampRange(t *testing.T) {
	event := func(ts float64) *structpb.Value {
		return structpb.NewListValue(&structpb.ListValue{Values: []*structpb.Value{
			structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
				"timestamp": structpb.NewNumberValue(ts),
				"event":     structpb.NewStringValue("idle"),
			}}),
		}})
	}

	for _, ts := range []float64{math.Exp2(63), -math.Exp2(64), 1e19, math.Inf(1), math.Inf(-1)} {
		_, err := decodeEvents(event(ts))
		require.Error(t, err, "timestamp %g", ts)
		assert.Contains(t, err.Error(), "out of int64 range")
	}

	events, err := decodeEvents(event(-math.Exp2(63)))
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), events[0].Timestamp)

	events, err = decodeEvents(event(1700000000000))
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000000), events[0].Timestamp)
}

func TestParamText(t *testing.T) {
	assert.Equal(t, "", paramText(nil))
	assert.Equal(t, "", paramText(structpb.NewNullValue()))
	assert.Equal(t, "1700000000000", paramText(structpb.NewNumberValue(1700000000000)))
	assert.Equal(t, "42", paramText(structpb.NewStringValue("42")))
}
