// Package interval turns a sparse, timestamp-ordered event log into a
// gap-free sequence of state intervals covering a query window.
package interval

import "github.com/statusline/statusline/pkg/types"

// foldState is the accumulator threaded through the merge walk.
type foldState struct {
	prevTimestamp int64
	prevState     string
	merged        []types.Interval
}

// Build returns the interval sequence for the window [start, end].
//
// anchor is the last event strictly before start (nil if none) and events
// are the in-window events in ascending timestamp order. The first interval
// always starts at start and the last always ends at end. The anchor
// interval is kept separate from the first merged interval even when both
// carry the same state.
func Build(start, end int64, anchor *types.Event, events []types.Event) []types.Interval {
	if len(events) == 0 {
		return []types.Interval{{State: types.NoData, From: start, To: end}}
	}

	head := anchorInterval(start, anchor, events[0].Timestamp)

	acc := fold(events, foldState{
		prevTimestamp: events[0].Timestamp,
		prevState:     head.State,
		merged:        make([]types.Interval, 0, len(events)),
	}, step)

	// Clamp the final interval to the window boundary.
	acc.merged[len(acc.merged)-1].To = end

	out := make([]types.Interval, 0, len(acc.merged)+1)
	out = append(out, head)
	return append(out, acc.merged...)
}

// anchorInterval covers [start, firstChange] with the state the entity was
// already in when the window opened, or NoData when that is unknown.
func anchorInterval(start int64, anchor *types.Event, firstChange int64) types.Interval {
	state := types.NoData
	if anchor != nil {
		state = anchor.State
	}
	return types.Interval{State: state, From: start, To: firstChange}
}

// step extends the current run when the state repeats and opens a new
// interval otherwise.
func step(acc foldState, e types.Event) foldState {
	t := e.Timestamp
	n := len(acc.merged)

	// A first event repeating the anchor state has no run to extend yet,
	// so it opens one.
	if e.State == acc.prevState && n > 0 {
		acc.merged[n-1].To = t
	} else {
		acc.merged = append(acc.merged, types.Interval{State: e.State, From: acc.prevTimestamp, To: t})
		acc.prevState = e.State
	}

	acc.prevTimestamp = t
	return acc
}

func fold[T, A any](items []T, acc A, fn func(A, T) A) A {
	for _, item := range items {
		acc = fn(acc, item)
	}
	return acc
}
