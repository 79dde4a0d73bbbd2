// Package validation checks request parameters before any store read.
package validation

import (
	"strconv"
	"strings"

	"github.com/statusline/statusline/internal/errors"
	"github.com/statusline/statusline/pkg/types"
)

// Client-facing validation messages.
const (
	MsgEntityRequired = "Vehicle id is required."
	MsgStartRequired  = "Start date is required."
	MsgEndRequired    = "End date is required."
	MsgStartInvalid   = "Invalid start date format. Please use a valid date format."
	MsgEndInvalid     = "Invalid end date format. Please use a valid date format."
	MsgStartAfterEnd  = "Start date must be less than end date."
)

// CheckEntity rejects an empty or whitespace-only entity identifier. Other
// ids are used verbatim, surrounding spaces included.
func CheckEntity(entityID string) error {
	if strings.TrimSpace(entityID) == "" {
		return errors.NewValidationError(errors.CodeMissingEntity, MsgEntityRequired)
	}
	return nil
}

// CheckParams parses textual start/end epoch-millisecond bounds.
//
// Presence is checked first and reported for both bounds at once. Format
// errors are likewise combined. An inverted window is only reported when
// both bounds parsed.
func CheckParams(start, end string) (types.Window, error) {
	var missing []string
	if start == "" {
		missing = append(missing, MsgStartRequired)
	}
	if end == "" {
		missing = append(missing, MsgEndRequired)
	}
	if len(missing) > 0 {
		return types.Window{}, errors.NewValidationError(errors.CodeMissingParameter, strings.Join(missing, " "))
	}

	var invalid []string
	startMs, startErr := strconv.ParseInt(strings.TrimSpace(start), 10, 64)
	if startErr != nil {
		invalid = append(invalid, MsgStartInvalid)
	}
	endMs, endErr := strconv.ParseInt(strings.TrimSpace(end), 10, 64)
	if endErr != nil {
		invalid = append(invalid, MsgEndInvalid)
	}
	if len(invalid) > 0 {
		return types.Window{}, errors.NewValidationError(errors.CodeInvalidParameter, strings.Join(invalid, " ")).
			WithDetails(map[string]interface{}{"start": start, "end": end})
	}

	return CheckWindow(startMs, endMs)
}

// CheckWindow validates already-typed bounds.
func CheckWindow(start, end int64) (types.Window, error) {
	if start >= end {
		return types.Window{}, errors.NewValidationError(errors.CodeInvalidWindow, MsgStartAfterEnd)
	}
	return types.Window{Start: start, End: end}, nil
}

// CheckEvents validates events submitted for ingestion.
func CheckEvents(events []types.Event) error {
	if len(events) == 0 {
		return errors.NewValidationError(errors.CodeInvalidEvent, "events must not be empty")
	}
	for i, e := range events {
		if e.State == "" {
			return errors.NewValidationError(errors.CodeInvalidEvent, "event state is required").
				WithDetails(map[string]interface{}{"index": i})
		}
		if e.Timestamp < 0 {
			return errors.NewValidationError(errors.CodeInvalidEvent, "event timestamp must not be negative").
				WithDetails(map[string]interface{}{"index": i})
		}
	}
	return nil
}
