// Package types provides core data types for statusline.
package types

// NoData is the reserved state label for spans where no event establishes a state.
const NoData = "no_data"

// Event is a single recorded state change for an entity.
type Event struct {
	// Timestamp is the Unix time in milliseconds when the state changed
	Timestamp int64 `json:"timestamp"`

	// State is the state label the entity entered (e.g., "drive", "idle")
	State string `json:"event"`
}

// Interval is a contiguous span of time labeled with one state.
type Interval struct {
	State string `json:"event"`
	From  int64  `json:"from"`
	To    int64  `json:"to"`
}

// Window is a queried [Start, End] time range in Unix milliseconds.
type Window struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Contains reports whether ts falls inside the window, bounds inclusive.
func (w Window) Contains(ts int64) bool {
	return ts >= w.Start && ts <= w.End
}
