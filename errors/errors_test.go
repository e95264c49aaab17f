package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	err := New(ErrCodeNotFound, "no such service")
	if got := err.Error(); got != "NOT_FOUND: no such service" {
		t.Errorf("unexpected error string: %s", got)
	}

	withCause := New(ErrCodeTimeout, "query timed out").WithCause(stderrors.New("deadline"))
	if got := withCause.Error(); got != "TIMEOUT: query timed out (cause: deadline)" {
		t.Errorf("unexpected error string: %s", got)
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := ConnectionFailed("localhost:8848").WithCause(cause)

	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("fetch failed: %w", NotFound("service", "user-service"))

	if !HasCode(err, ErrCodeNotFound) {
		t.Error("expected HasCode to find NOT_FOUND through wrapping")
	}
	if HasCode(err, ErrCodeTimeout) {
		t.Error("did not expect TIMEOUT code")
	}
	if HasCode(stderrors.New("plain"), ErrCodeNotFound) {
		t.Error("plain errors carry no code")
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"unavailable", Unavailable("fetch"), true},
		{"timeout", Timeout("heartbeat"), true},
		{"not found", NotFound("service", ""), false},
		{"invalid input", InvalidInput("port", "must be > 0"), false},
		{"plain error", stderrors.New("boom"), true},
		{"nil", nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryable(tc.err); got != tc.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestRetryableCodes(t *testing.T) {
	if !IsRetryableCode(ErrCodeUnavailable) {
		t.Error("UNAVAILABLE should be retryable")
	}
	if IsRetryableCode(ErrCodeNotFound) {
		t.Error("NOT_FOUND should not be retryable")
	}
}
