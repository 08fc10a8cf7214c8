package internal

import (
	"errors"
	"strings"
	"testing"
)

func TestDownloadError_Error(t *testing.T) {
	err := NewDownloadError(ErrNotFound, "file not found").WithURL("https://example.com/f?token=secret")
	msg := err.Error()
	if !strings.Contains(msg, "not_found") {
		t.Errorf("expected class in message, got %q", msg)
	}
	if !strings.Contains(msg, "file not found") {
		t.Errorf("expected message text, got %q", msg)
	}
	if strings.Contains(msg, "secret") {
		t.Errorf("expected query string to be redacted, got %q", msg)
	}
}

func TestDownloadError_DetailedError(t *testing.T) {
	err := NewDownloadError(ErrRateLimited, "rate limit exceeded").
		WithRetryAfter(30).
		WithContext("status", 429)
	detailed := err.DetailedError()
	if !strings.Contains(detailed, "Retry after: 30s") {
		t.Errorf("expected retry-after in detailed output, got %q", detailed)
	}
	if !strings.Contains(detailed, "status=429") {
		t.Errorf("expected context in detailed output, got %q", detailed)
	}
}

func TestDownloadError_IsRetryable(t *testing.T) {
	tests := []struct {
		class     ErrorClass
		retryable bool
	}{
		{ErrTransientNetwork, true},
		{ErrConnectionLost, true},
		{ErrServerError, true},
		{ErrRateLimited, true},
		{ErrPartialContentError, true},
		{ErrPermissionDenied, false},
		{ErrInvalidURL, false},
		{ErrCorruptedData, false},
	}

	for _, tt := range tests {
		err := NewDownloadError(tt.class, "test message")
		if got := err.IsRetryable(); got != tt.retryable {
			t.Errorf("class %s: expected IsRetryable()=%v, got %v", tt.class, tt.retryable, got)
		}
	}
}

func TestDownloadError_IsCritical(t *testing.T) {
	criticalErr := NewDownloadError(ErrPermissionDenied, "permission denied")
	if !criticalErr.IsCritical() {
		t.Error("expected permission denied error to be critical")
	}

	nonCriticalErr := NewDownloadError(ErrTransientNetwork, "timeout")
	if nonCriticalErr.IsCritical() {
		t.Error("expected transient network error to not be critical")
	}
}

func TestDownloadError_ExitCode(t *testing.T) {
	tests := []struct {
		class ErrorClass
		code  int
	}{
		{ErrInvalidURL, 2},
		{ErrProtocolUnsupported, 2},
		{ErrAuthRequired, 3},
		{ErrNotFound, 4},
		{ErrDiskSpace, 5},
		{ErrPermissionDenied, 5},
		{ErrFileExists, 5},
		{ErrCorruptedData, 6},
		{ErrPartialContentError, 6},
		{ErrTransientNetwork, 1},
		{ErrUnknown, 1},
	}

	for _, tt := range tests {
		err := NewDownloadError(tt.class, "test")
		if got := err.ExitCode(); got != tt.code {
			t.Errorf("class %s: expected exit code %d, got %d", tt.class, tt.code, got)
		}
	}
}

func TestDownloadError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := NewDownloadErrorWithCause(ErrConnectionLost, "connection lost", cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
}

func TestValidationError_Error(t *testing.T) {
	err := NewValidationErrorWithValue("connections", "must be between 1 and 32", 64).
		WithSuggestion("pass a value in range")
	msg := err.Error()
	if !strings.Contains(msg, "connections") || !strings.Contains(msg, "suggestion") {
		t.Errorf("unexpected validation error message: %q", msg)
	}
}

func TestErrorClass_String(t *testing.T) {
	if got := ErrTransientNetwork.String(); got != "transient_network" {
		t.Errorf("expected transient_network, got %s", got)
	}
	if got := ErrorClass(999).String(); got != "unknown" {
		t.Errorf("expected unknown for out-of-range class, got %s", got)
	}
}

func TestNewNamedErrorConstructors(t *testing.T) {
	if got := NewInvalidURLError("bad://url", "missing host").Class; got != ErrInvalidURL {
		t.Errorf("expected ErrInvalidURL, got %s", got)
	}
	if got := NewRateLimitedError(10).RetryAfter; got != 10 {
		t.Errorf("expected RetryAfter=10, got %d", got)
	}
	if got := NewCorruptedDataError("/tmp/f", "sha256 mismatch").Context["path"]; got != "/tmp/f" {
		t.Errorf("expected context path, got %v", got)
	}
}
