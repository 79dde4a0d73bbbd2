package eventstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/statusline/statusline/pkg/types"
)

// stateField is the field holding an event's state label.
const stateField = "state"

// entityTag is the tag holding the entity ID.
const entityTag = "entity_id"

// InfluxConfig holds connection settings for an InfluxDB 2.x bucket.
type InfluxConfig struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string
}

// InfluxStore implements EventStore on an InfluxDB 2.x bucket. Each event is
// one point: measurement, entity_id tag, state field, millisecond time.
// Two events of one entity with the same timestamp overwrite each other.
type InfluxStore struct {
	client      influxdb2.Client
	queryAPI    api.QueryAPI
	writeAPI    api.WriteAPIBlocking
	bucket      string
	measurement string
}

// NewInfluxStore connects to InfluxDB and verifies it is reachable.
func NewInfluxStore(ctx context.Context, cfg InfluxConfig) (*InfluxStore, error) {
	if cfg.Measurement == "" {
		cfg.Measurement = "events"
	}

	opts := influxdb2.DefaultOptions().SetPrecision(time.Millisecond)
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	ok, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("eventstore: failed to reach influxdb at %s: %w", cfg.URL, err)
	}
	if !ok {
		client.Close()
		return nil, fmt.Errorf("eventstore: influxdb at %s is not ready", cfg.URL)
	}

	return &InfluxStore{
		client:      client,
		queryAPI:    client.QueryAPI(cfg.Org),
		writeAPI:    client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		bucket:      cfg.Bucket,
		measurement: cfg.Measurement,
	}, nil
}

// FindLastBefore returns the latest event strictly before start.
// Timestamps are never negative, so start <= 0 has no anchor.
func (s *InfluxStore) FindLastBefore(ctx context.Context, entityID string, start int64) (*types.Event, error) {
	if start <= 0 {
		return nil, nil
	}
	events, err := s.query(ctx, lastBeforeFlux(s.bucket, s.measurement, entityID, start))
	if err != nil {
		return nil, fmt.Errorf("eventstore: failed to query last event before %d: %w", start, err)
	}
	if len(events) == 0 {
		return nil, nil
	}
	return &events[len(events)-1], nil
}

// FindInRange returns the events in [start, end] in ascending order.
func (s *InfluxStore) FindInRange(ctx context.Context, entityID string, start, end int64) ([]types.Event, error) {
	events, err := s.query(ctx, rangeFlux(s.bucket, s.measurement, entityID, start, end))
	if err != nil {
		return nil, fmt.Errorf("eventstore: failed to query events in range: %w", err)
	}
	return events, nil
}

// Append writes one point per event.
func (s *InfluxStore) Append(ctx context.Context, entityID string, events ...types.Event) error {
	if len(events) == 0 {
		return nil
	}

	points := make([]*write.Point, 0, len(events))
	for _, e := range events {
		points = append(points, influxdb2.NewPoint(
			s.measurement,
			map[string]string{entityTag: entityID},
			map[string]interface{}{stateField: e.State},
			time.UnixMilli(e.Timestamp),
		))
	}

	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("eventstore: failed to write events: %w", err)
	}
	return nil
}

// Entities returns every entity_id tag value in the bucket, over all time.
func (s *InfluxStore) Entities(ctx context.Context) ([]string, error) {
	result, err := s.queryAPI.Query(ctx, entitiesFlux(s.bucket))
	if err != nil {
		return nil, fmt.Errorf("eventstore: failed to list entities: %w", err)
	}
	defer result.Close()

	var ids []string
	for result.Next() {
		if id, ok := result.Record().Value().(string); ok {
			ids = append(ids, id)
		}
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("eventstore: failed to read entities: %w", err)
	}
	return ids, nil
}

// Close closes the client.
func (s *InfluxStore) Close() error {
	s.client.Close()
	return nil
}

func (s *InfluxStore) query(ctx context.Context, flux string) ([]types.Event, error) {
	result, err := s.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, err
	}
	defer result.Close()

	var events []types.Event
	for result.Next() {
		rec := result.Record()
		state, ok := rec.Value().(string)
		if !ok {
			return nil, fmt.Errorf("unexpected %s value type %T", stateField, rec.Value())
		}
		events = append(events, types.Event{Timestamp: rec.Time().UnixMilli(), State: state})
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// lastBeforeFlux relies on range's exclusive stop for the strict bound.
func lastBeforeFlux(bucket, measurement, entityID string, start int64) string {
	return fmt.Sprintf(`from(bucket: %s)
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == %s and r.%s == %s and r._field == %q)
  |> group()
  |> sort(columns: ["_time"])
  |> last()`,
		fluxString(bucket), fluxTime(0), fluxTime(start),
		fluxString(measurement), entityTag, fluxString(entityID), stateField)
}

// rangeFlux widens stop by one millisecond so end is inclusive.
func rangeFlux(bucket, measurement, entityID string, start, end int64) string {
	return fmt.Sprintf(`from(bucket: %s)
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == %s and r.%s == %s and r._field == %q)
  |> group()
  |> sort(columns: ["_time"])`,
		fluxString(bucket), fluxTime(start), fluxTime(end+1),
		fluxString(measurement), entityTag, fluxString(entityID), stateField)
}

// entitiesFlux passes start: 0 since tagValues otherwise looks back 30 days.
func entitiesFlux(bucket string) string {
	return fmt.Sprintf(`import "influxdata/influxdb/schema"

schema.tagValues(bucket: %s, tag: %q, start: 0)`, fluxString(bucket), entityTag)
}

func fluxTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339Nano)
}

var fluxEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`, "\n", `\n`, "\r", `\r`, "\t", `\t`)

// fluxString quotes s as a Flux string literal.
func fluxString(s string) string {
	return `"` + fluxEscaper.Replace(s) + `"`
}
