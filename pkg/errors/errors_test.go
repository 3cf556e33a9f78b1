package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestError_Format(t *testing.T) {
	err := New(ErrCodeCorruptArtifact, "Downloaded file is invalid or too small (%d bytes)", 999)
	if got, want := err.Error(), "CORRUPT_ARTIFACT: Downloaded file is invalid or too small (999 bytes)"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	cause := context.DeadlineExceeded
	wrapped := Wrap(ErrCodeTimeout, cause, "Download timed out after %s", "5m0s")
	if got, want := wrapped.Error(), "TIMEOUT: Download timed out after 5m0s: context deadline exceeded"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(wrapped, context.DeadlineExceeded) {
		t.Error("Wrap should keep the cause reachable for errors.Is")
	}
	if errors.Unwrap(wrapped) != cause {
		t.Error("Unwrap should return the cause")
	}
}

func TestIs(t *testing.T) {
	inner := New(ErrCodeEnvAbsent, "composer not found")

	tests := []struct {
		name string
		err  error
		code Code
		want bool
	}{
		{"direct", inner, ErrCodeEnvAbsent, true},
		{"other code", inner, ErrCodeSubprocess, false},
		{"through fmt wrapping", fmt.Errorf("selector: %w", inner), ErrCodeEnvAbsent, true},
		{"inner code of a chain", Wrap(ErrCodeSubprocess, inner, "install failed"), ErrCodeEnvAbsent, true},
		{"outer code of a chain", Wrap(ErrCodeSubprocess, inner, "install failed"), ErrCodeSubprocess, true},
		{"plain error", errors.New("boom"), ErrCodeInternal, false},
		{"nil", nil, ErrCodeInternal, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is(%v, %s) = %v, want %v", tt.err, tt.code, got, tt.want)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"structured", New(ErrCodeInstallInProgress, "installation already in progress"), ErrCodeInstallInProgress},
		{"outermost wins", Wrap(ErrCodeFilesystem, New(ErrCodeInvalidPath, "bad entry"), "extract"), ErrCodeFilesystem},
		{"fmt wrapped", fmt.Errorf("lock: %w", New(ErrCodeNetwork, "redis down")), ErrCodeNetwork},
		{"plain", errors.New("boom"), ""},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.want {
				t.Errorf("GetCode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"structured drops the code", New(ErrCodeCorruptArtifact, "No directories found after extraction"), "No directories found after extraction"},
		{"structured drops the cause", Wrap(ErrCodeNetwork, errors.New("dial tcp: refused"), "Download failed"), "Download failed"},
		{"plain", errors.New("exit status 1"), "exit status 1"},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimitedError(t *testing.T) {
	err := &RateLimitedError{RetryAfter: 30}
	if got := err.Error(); got != "rate limited: retry after 30 seconds" {
		t.Errorf("Error() = %q", got)
	}
	if err.Code() != ErrCodeRateLimited {
		t.Errorf("Code() = %q", err.Code())
	}
	if got := (&RateLimitedError{}).Error(); got != "rate limited" {
		t.Errorf("Error() without RetryAfter = %q", got)
	}

	var rl *RateLimitedError
	if !errors.As(fmt.Errorf("github: %w", err), &rl) || rl.RetryAfter != 30 {
		t.Error("errors.As should find the rate limit through wrapping")
	}
}
