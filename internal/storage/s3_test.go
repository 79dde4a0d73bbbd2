package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
)

func TestRetryWithBackoff_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := retryWithBackoff(context.Background(), 3, time.Millisecond, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("503 slow down")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryWithBackoff_GivesUp(t *testing.T) {
	attempts := 0
	transient := errors.New("connection reset")
	err := retryWithBackoff(context.Background(), 2, time.Millisecond, func() error {
		attempts++
		return transient
	})
	if !errors.Is(err, transient) {
		t.Fatalf("expected last error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 1 attempt plus 2 retries, got %d", attempts)
	}
}

func TestRetryWithBackoff_NotFoundIsFinal(t *testing.T) {
	attempts := 0
	err := retryWithBackoff(context.Background(), 3, time.Millisecond, func() error {
		attempts++
		return ErrObjectNotFound
	})
	if !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected a single attempt, got %d", attempts)
	}
}

func TestRetryWithBackoff_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := retryWithBackoff(ctx, 5, time.Hour, func() error {
		attempts++
		cancel()
		return errors.New("timeout")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"snapshots/20240309T140507.000000000Z-0f8fad5b.sqlite.sz", ContentTypeSnappy},
		{"exports/events.sqlite", ContentTypeSQLite},
		{"exports/events.db", ContentTypeSQLite},
		{"misc/readme", ContentTypeBinary},
	}
	for _, tt := range tests {
		if got := contentTypeFor(tt.path); got != tt.want {
			t.Errorf("contentTypeFor(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestNormalizeKeyPrefix(t *testing.T) {
	for _, in := range []string{"prod", "prod/", "/prod", "/prod/"} {
		if got := normalizeKeyPrefix(in); got != "prod/" {
			t.Errorf("normalizeKeyPrefix(%q) = %q, want %q", in, got, "prod/")
		}
	}
	if got := normalizeKeyPrefix(""); got != "" {
		t.Errorf("empty prefix should stay empty, got %q", got)
	}
}

func TestPutObjectInput_SnapshotObject(t *testing.T) {
	s := &S3Storage{bucket: "fleet", keyPrefix: "prod/"}
	in := s.putObjectInput("snapshots/x.sqlite.sz", strings.NewReader("data"), 4)

	if aws.ToString(in.Bucket) != "fleet" {
		t.Errorf("unexpected bucket %q", aws.ToString(in.Bucket))
	}
	if aws.ToString(in.Key) != "prod/snapshots/x.sqlite.sz" {
		t.Errorf("unexpected key %q", aws.ToString(in.Key))
	}
	if aws.ToString(in.ContentType) != ContentTypeSnappy {
		t.Errorf("unexpected content type %q", aws.ToString(in.ContentType))
	}
	if aws.ToInt64(in.ContentLength) != 4 {
		t.Errorf("unexpected content length %d", aws.ToInt64(in.ContentLength))
	}
	if in.Metadata["statusline-format"] != "sqlite+snappy" {
		t.Errorf("unexpected metadata %v", in.Metadata)
	}
}

func TestPutObjectInput_OtherObjectHasNoFormatMetadata(t *testing.T) {
	s := &S3Storage{bucket: "fleet"}
	in := s.putObjectInput("misc/readme", strings.NewReader(""), 0)
	if aws.ToString(in.Key) != "misc/readme" {
		t.Errorf("unexpected key %q", aws.ToString(in.Key))
	}
	if in.Metadata != nil {
		t.Errorf("expected no metadata, got %v", in.Metadata)
	}
}
