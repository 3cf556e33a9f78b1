package httputil

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

var errTransient = errors.New("connection reset")

func TestRetryable(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should return nil")
	}

	err := Retryable(errTransient)
	if !IsRetryable(err) {
		t.Error("IsRetryable should return true for wrapped error")
	}
	if err.Error() != errTransient.Error() {
		t.Errorf("Error message should be preserved: %s", err.Error())
	}
	if !errors.Is(err, errTransient) {
		t.Error("errors.Is should see the wrapped error")
	}
	if IsRetryable(errTransient) {
		t.Error("IsRetryable should return false for unwrapped error")
	}
}

func TestPolicyDo(t *testing.T) {
	ctx := context.Background()
	fast := Policy{Attempts: 3, Delay: time.Millisecond}

	t.Run("success first try", func(t *testing.T) {
		calls := 0
		if err := fast.Do(ctx, func() error { calls++; return nil }); err != nil {
			t.Fatalf("Do() error: %v", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("non-retryable stops", func(t *testing.T) {
		calls := 0
		permanent := errors.New("not found")
		err := fast.Do(ctx, func() error { calls++; return permanent })
		if err != permanent {
			t.Errorf("Do() error = %v, want %v", err, permanent)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("retries until success", func(t *testing.T) {
		calls := 0
		err := fast.Do(ctx, func() error {
			calls++
			if calls < 3 {
				return Retryable(errTransient)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Do() error: %v", err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		calls := 0
		err := fast.Do(ctx, func() error { calls++; return Retryable(errTransient) })
		if !errors.Is(err, errTransient) {
			t.Errorf("Do() error = %v, want %v", err, errTransient)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("zero attempts runs once", func(t *testing.T) {
		calls := 0
		_ = Policy{}.Do(ctx, func() error { calls++; return nil })
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})
}

func TestRetryContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, 3, time.Second, func() error {
		return Retryable(errTransient)
	})
	if err != context.Canceled {
		t.Errorf("Retry() error = %v, want context.Canceled", err)
	}
}

func TestCopyLimited(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		limit   int64
		wantErr bool
	}{
		{"under limit", "hello", 10, false},
		{"at limit", "hello", 5, false},
		{"over limit", "hello world", 5, true},
		{"no limit", strings.Repeat("x", 1<<16), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			n, err := CopyLimited(&buf, strings.NewReader(tt.input), tt.limit)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CopyLimited() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrTooLarge) {
					t.Errorf("CopyLimited() error = %v, want ErrTooLarge", err)
				}
				return
			}
			if n != int64(len(tt.input)) || buf.String() != tt.input {
				t.Errorf("CopyLimited() copied %d bytes, want %d", n, len(tt.input))
			}
		})
	}
}
