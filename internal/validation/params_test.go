package validation

import (
	"testing"

	"github.com/statusline/statusline/internal/errors"
	"github.com/statusline/statusline/pkg/types"
)

func TestCheckParams(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		want       types.Window
		wantMsg    string
		wantCode   string
	}{
		{name: "valid", start: "1000", end: "5000", want: types.Window{Start: 1000, End: 5000}},
		{name: "surrounding whitespace", start: " 1000", end: "5000 ", want: types.Window{Start: 1000, End: 5000}},
		{name: "missing start", end: "5000", wantMsg: MsgStartRequired, wantCode: errors.CodeMissingParameter},
		{name: "missing end", start: "1000", wantMsg: MsgEndRequired, wantCode: errors.CodeMissingParameter},
		{name: "missing both", wantMsg: MsgStartRequired + " " + MsgEndRequired, wantCode: errors.CodeMissingParameter},
		{name: "invalid start", start: "yesterday", end: "5000", wantMsg: MsgStartInvalid, wantCode: errors.CodeInvalidParameter},
		{name: "invalid end", start: "1000", end: "5e3", wantMsg: MsgEndInvalid, wantCode: errors.CodeInvalidParameter},
		{name: "invalid both", start: "a", end: "b", wantMsg: MsgStartInvalid + " " + MsgEndInvalid, wantCode: errors.CodeInvalidParameter},
		{name: "start equals end", start: "1000", end: "1000", wantMsg: MsgStartAfterEnd, wantCode: errors.CodeInvalidWindow},
		{name: "start after end", start: "5000", end: "1000", wantMsg: MsgStartAfterEnd, wantCode: errors.CodeInvalidWindow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckParams(tt.start, tt.end)
			if tt.wantMsg == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got != tt.want {
					t.Errorf("got %+v, want %+v", got, tt.want)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error %q", tt.wantMsg)
			}
			if msg := errors.ClientMessage(err); msg != tt.wantMsg {
				t.Errorf("message = %q, want %q", msg, tt.wantMsg)
			}
			if errors.GetCategory(err) != errors.ErrCategoryValidation {
				t.Errorf("category = %q, want VALIDATION", errors.GetCategory(err))
			}
			if errors.GetCode(err) != tt.wantCode {
				t.Errorf("code = %q, want %q", errors.GetCode(err), tt.wantCode)
			}
		})
	}
}

func TestCheckEntity(t *testing.T) {
	for _, id := range []string{"truck-7", " truck-7 "} {
		if err := CheckEntity(id); err != nil {
			t.Errorf("CheckEntity(%q): unexpected error: %v", id, err)
		}
	}
	for _, id := range []string{"", "   "} {
		err := CheckEntity(id)
		if err == nil || errors.ClientMessage(err) != MsgEntityRequired {
			t.Errorf("CheckEntity(%q) = %v, want %q", id, err, MsgEntityRequired)
		}
	}
}

func TestCheckEvents(t *testing.T) {
	if err := CheckEvents([]types.Event{{Timestamp: 1, State: "drive"}}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	bad := map[string][]types.Event{
		"empty":         nil,
		"missing state": {{Timestamp: 1, State: "drive"}, {Timestamp: 2}},
		"negative time": {{Timestamp: -1, State: "drive"}},
	}
	for name, events := range bad {
		if err := CheckEvents(events); errors.GetCode(err) != errors.CodeInvalidEvent {
			t.Errorf("%s: got %v, want INVALID_EVENT", name, err)
		}
	}
}
