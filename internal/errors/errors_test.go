package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestStatusError_Error(t *testing.T) {
	err := New(ErrCategoryValidation, CodeInvalidWindow, "Start date must be less than end date.")
	expected := "[VALIDATION:INVALID_WINDOW] Start date must be less than end date."
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestStatusError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("database is locked")
	err := Wrap(ErrCategoryStorage, CodeReadFailed, "failed to read events", cause)
	expected := "[STORAGE:READ_FAILED] failed to read events: database is locked"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestStatusError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryStorage, CodeReadFailed, "read", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestStatusError_Is(t *testing.T) {
	err1 := New(ErrCategoryStorage, CodeReadFailed, "first")
	err2 := New(ErrCategoryStorage, CodeReadFailed, "second")
	err3 := New(ErrCategoryStorage, CodeWriteFailed, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		code      string
		retryable bool
	}{
		{ErrCategoryStorage, CodeUploadFailed, true},
		{ErrCategoryStorage, CodeDownloadFailed, true},
		{ErrCategoryStorage, CodeReadFailed, false},
		{ErrCategoryStorage, CodeWriteFailed, false},
		{ErrCategoryStorage, CodeObjectNotFound, false},
		{ErrCategoryValidation, CodeInvalidWindow, false},
		{ErrCategorySnapshot, CodeUploadFailed, false},
		{ErrCategoryInternal, CodeUnexpected, false},
	}

	for _, tt := range tests {
		err := New(tt.category, tt.code, "test")
		if IsRetryable(err) != tt.retryable {
			t.Errorf("%s:%s retryable=%v, want %v", tt.category, tt.code, IsRetryable(err), tt.retryable)
		}
	}
}

func TestGetCategoryAndCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", New(ErrCategoryValidation, CodeMissingParameter, "Start date is required."))
	if GetCategory(err) != ErrCategoryValidation {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategoryValidation)
	}
	if GetCode(err) != CodeMissingParameter {
		t.Errorf("got %q, want %q", GetCode(err), CodeMissingParameter)
	}
	if GetCategory(fmt.Errorf("plain error")) != "" || GetCode(fmt.Errorf("plain error")) != "" {
		t.Error("non-StatusError should return empty category and code")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(ErrCategoryValidation, CodeInvalidEvent, "bad event")
	detailed := err.WithDetails(map[string]interface{}{"index": 3})

	if detailed.Details["index"] != 3 {
		t.Error("WithDetails should set details")
	}
	if err.Details != nil {
		t.Error("WithDetails should not modify original")
	}
}

func TestClientMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "validation uses message",
			err:  NewValidationError(CodeMissingEntity, "Vehicle id is required."),
			want: "Vehicle id is required.",
		},
		{
			name: "storage uses store description",
			err:  NewStorageError(CodeReadFailed, "failed to read anchor event", fmt.Errorf("connection reset by peer")),
			want: "connection reset by peer",
		},
		{
			name: "storage without cause uses message",
			err:  NewStorageError(CodeReadFailed, "store unavailable", nil),
			want: "store unavailable",
		},
		{
			name: "plain error",
			err:  fmt.Errorf("boom"),
			want: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClientMessage(tt.err); got != tt.want {
				t.Errorf("ClientMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cause := fmt.Errorf("io error")

	v := NewValidationError(CodeInvalidParameter, "bad start")
	if v.Category != ErrCategoryValidation || v.Code != CodeInvalidParameter {
		t.Error("NewValidationError mismatch")
	}

	s := NewStorageError(CodeUploadFailed, "s3 down", cause)
	if s.Category != ErrCategoryStorage || !errors.Is(s, cause) || !s.Retryable {
		t.Error("NewStorageError mismatch")
	}

	sn := NewSnapshotError(CodeUploadFailed, "snapshot upload", cause)
	if sn.Category != ErrCategorySnapshot || sn.Retryable {
		t.Error("NewSnapshotError mismatch")
	}

	i := NewInternalError("unexpected", cause)
	if i.Category != ErrCategoryInternal || i.Code != CodeUnexpected {
		t.Error("NewInternalError mismatch")
	}
}
