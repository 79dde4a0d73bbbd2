// Package observability provides request metrics and per-entity query
// statistics for the status service.
package observability

import (
	"sort"
	"sync"
	"time"
)

// QueryStats tracks how often each entity is queried.
type QueryStats struct {
	mu         sync.RWMutex
	entityFreq map[string]*EntityStats
	window     time.Duration
	now        func() time.Time
}

// EntityStats holds query statistics for one entity.
type EntityStats struct {
	EntityID  string    `json:"entity_id"`
	Frequency int64     `json:"frequency"`
	LastSeen  time.Time `json:"last_seen"`
	// Intervals is the total number of intervals returned for the entity.
	Intervals int64 `json:"intervals"`
}

// NewQueryStats creates a new query statistics tracker.
// window: time duration for pruning old entries (e.g., 1 hour)
func NewQueryStats(window time.Duration) *QueryStats {
	return &QueryStats{
		entityFreq: make(map[string]*EntityStats),
		window:     window,
		now:        time.Now,
	}
}

// RecordQuery records a status query for entityID that returned
// intervals intervals. This method is O(1) and thread-safe.
func (q *QueryStats) RecordQuery(entityID string, intervals int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats, exists := q.entityFreq[entityID]
	if !exists {
		stats = &EntityStats{EntityID: entityID}
		q.entityFreq[entityID] = stats
	}

	stats.Frequency++
	stats.Intervals += int64(intervals)
	stats.LastSeen = q.now()
}

// GetTopEntities returns copies of the top N entities by frequency
// (descending, ties broken by entity ID).
func (q *QueryStats) GetTopEntities(n int) []EntityStats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if n <= 0 || len(q.entityFreq) == 0 {
		return []EntityStats{}
	}

	stats := make([]EntityStats, 0, len(q.entityFreq))
	for _, s := range q.entityFreq {
		stats = append(stats, *s)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Frequency != stats[j].Frequency {
			return stats[i].Frequency > stats[j].Frequency
		}
		return stats[i].EntityID < stats[j].EntityID
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

// Len returns the number of tracked entities.
func (q *QueryStats) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entityFreq)
}

// Prune removes entries where time.Since(LastSeen) > window.
// This should be called periodically (e.g., every 5 minutes).
func (q *QueryStats) Prune() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	threshold := q.now().Add(-q.window)
	removed := 0
	for id, stats := range q.entityFreq {
		if stats.LastSeen.Before(threshold) {
			delete(q.entityFreq, id)
			removed++
		}
	}
	return removed
}
