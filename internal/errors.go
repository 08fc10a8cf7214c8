package internal

import (
	"fmt"
	"strings"
)

// ErrorClass is the closed taxonomy every failure in the engine is mapped
// into. Classification drives retryability, backoff, and exit codes; no
// component outside the classifier should branch on anything finer.
type ErrorClass int

const (
	ErrTransientNetwork ErrorClass = iota
	ErrConnectionLost
	ErrServerError
	ErrRateLimited
	ErrPartialContentError
	ErrCorruptedData
	ErrDiskSpace
	ErrPermissionDenied
	ErrFileExists
	ErrAuthRequired
	ErrSSL
	ErrDNSFailure
	ErrInvalidURL
	ErrProtocolUnsupported
	ErrNotFound
	ErrRedirectLoop
	ErrUnknown
)

// String returns the wire-stable lowercase name of the class.
func (c ErrorClass) String() string {
	switch c {
	case ErrTransientNetwork:
		return "transient_network"
	case ErrConnectionLost:
		return "connection_lost"
	case ErrServerError:
		return "server_error"
	case ErrRateLimited:
		return "rate_limited"
	case ErrPartialContentError:
		return "partial_content_error"
	case ErrCorruptedData:
		return "corrupted_data"
	case ErrDiskSpace:
		return "disk_space_error"
	case ErrPermissionDenied:
		return "permission_denied"
	case ErrFileExists:
		return "file_exists"
	case ErrAuthRequired:
		return "auth_required"
	case ErrSSL:
		return "ssl_error"
	case ErrDNSFailure:
		return "dns_failure"
	case ErrInvalidURL:
		return "invalid_url"
	case ErrProtocolUnsupported:
		return "protocol_unsupported"
	case ErrNotFound:
		return "not_found"
	case ErrRedirectLoop:
		return "redirect_loop"
	default:
		return "unknown"
	}
}

// ErrorSeverity describes how loudly a failure should surface to the user.
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

func (es ErrorSeverity) String() string {
	switch es {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

var retryableClasses = map[ErrorClass]bool{
	ErrTransientNetwork:    true,
	ErrConnectionLost:      true,
	ErrServerError:         true,
	ErrRateLimited:         true,
	ErrPartialContentError: true,
}

// DownloadError is the single error type every component in the engine
// returns. It carries the closed class plus enough context to build a
// useful CLI message without the caller re-deriving it.
type DownloadError struct {
	Class      ErrorClass             `json:"class"`
	Message    string                 `json:"message"`
	Severity   ErrorSeverity          `json:"severity"`
	URL        string                 `json:"url,omitempty"`
	Suggestion string                 `json:"suggestion,omitempty"`
	RetryAfter int                    `json:"retry_after,omitempty"` // seconds
	Context    map[string]interface{} `json:"context,omitempty"`
	Cause      error                  `json:"-"`
}

func (e *DownloadError) Error() string {
	parts := []string{fmt.Sprintf("%s", e.Class)}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.URL != "" {
		parts = append(parts, fmt.Sprintf("url=%s", redactSensitiveURL(e.URL)))
	}
	return strings.Join(parts, ": ")
}

func (e *DownloadError) Unwrap() error { return e.Cause }

// DetailedError renders a multi-line message including suggestion and
// context, used under -d/--debug.
func (e *DownloadError) DetailedError() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Severity, e.Class))
	if e.Message != "" {
		parts = append(parts, fmt.Sprintf("Message: %s", e.Message))
	}
	if e.URL != "" {
		parts = append(parts, fmt.Sprintf("URL: %s", redactSensitiveURL(e.URL)))
	}
	if len(e.Context) > 0 {
		ctxParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("Context: %s", strings.Join(ctxParts, ", ")))
	}
	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("Suggestion: %s", e.Suggestion))
	}
	if e.RetryAfter > 0 {
		parts = append(parts, fmt.Sprintf("Retry after: %ds", e.RetryAfter))
	}
	return strings.Join(parts, "\n")
}

// IsRetryable reports whether a RetryPolicy may schedule another attempt
// after this error.
func (e *DownloadError) IsRetryable() bool {
	return retryableClasses[e.Class]
}

// IsCritical reports whether the error should abort the transfer outright
// rather than fail just the segment that hit it.
func (e *DownloadError) IsCritical() bool {
	return e.Severity == SeverityCritical
}

// ExitCode maps the error's class onto the CLI's stable exit-code contract.
func (e *DownloadError) ExitCode() int {
	switch e.Class {
	case ErrInvalidURL, ErrProtocolUnsupported:
		return 2
	case ErrAuthRequired:
		return 3
	case ErrNotFound:
		return 4
	case ErrDiskSpace, ErrPermissionDenied, ErrFileExists:
		return 5
	case ErrCorruptedData, ErrPartialContentError:
		return 6
	default:
		return 1
	}
}

// NewDownloadError builds a DownloadError for class, pre-filling severity
// and suggestion from the class's defaults.
func NewDownloadError(class ErrorClass, message string) *DownloadError {
	return &DownloadError{
		Class:      class,
		Message:    message,
		Severity:   defaultSeverity(class),
		Suggestion: defaultSuggestion(class),
		Context:    make(map[string]interface{}),
	}
}

// NewDownloadErrorWithCause is NewDownloadError plus a wrapped cause,
// preserved for errors.Is/As chains.
func NewDownloadErrorWithCause(class ErrorClass, message string, cause error) *DownloadError {
	e := NewDownloadError(class, message)
	e.Cause = cause
	return e
}

func (e *DownloadError) WithSuggestion(suggestion string) *DownloadError {
	e.Suggestion = suggestion
	return e
}

func (e *DownloadError) WithURL(url string) *DownloadError {
	e.URL = url
	return e
}

func (e *DownloadError) WithRetryAfter(seconds int) *DownloadError {
	e.RetryAfter = seconds
	return e
}

func (e *DownloadError) WithContext(key string, value interface{}) *DownloadError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// ValidationError represents a rejected CLI argument or configuration
// value, as distinct from a DownloadError raised while a transfer runs.
type ValidationError struct {
	Field      string                 `json:"field"`
	Message    string                 `json:"message"`
	Value      interface{}            `json:"value,omitempty"`
	Suggestion string                 `json:"suggestion,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

func (e *ValidationError) Error() string {
	parts := []string{fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)}
	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("suggestion: %s", e.Suggestion))
	}
	return strings.Join(parts, " - ")
}

func (e *ValidationError) DetailedError() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("Validation Error for field '%s'", e.Field))
	parts = append(parts, fmt.Sprintf("Message: %s", e.Message))
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("Provided value: %v", e.Value))
	}
	if len(e.Context) > 0 {
		ctxParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("Context: %s", strings.Join(ctxParts, ", ")))
	}
	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("Suggestion: %s", e.Suggestion))
	}
	return strings.Join(parts, "\n")
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message, Context: make(map[string]interface{})}
}

func NewValidationErrorWithValue(field, message string, value interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: message, Value: value, Context: make(map[string]interface{})}
}

func (e *ValidationError) WithSuggestion(suggestion string) *ValidationError {
	e.Suggestion = suggestion
	return e
}

func (e *ValidationError) WithContext(key string, value interface{}) *ValidationError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func defaultSeverity(c ErrorClass) ErrorSeverity {
	switch c {
	case ErrTransientNetwork, ErrRateLimited:
		return SeverityWarning
	case ErrDiskSpace, ErrPermissionDenied, ErrCorruptedData, ErrProtocolUnsupported:
		return SeverityCritical
	default:
		return SeverityError
	}
}

func defaultSuggestion(c ErrorClass) string {
	switch c {
	case ErrTransientNetwork, ErrConnectionLost:
		return "check your network connection and retry"
	case ErrServerError:
		return "the server returned an error; retrying later may succeed"
	case ErrRateLimited:
		return "reduce --connections or --limit-rate, or wait before retrying"
	case ErrPartialContentError:
		return "the server's range response was inconsistent; a fresh download may be required"
	case ErrCorruptedData:
		return "checksum verification failed; confirm the URL points at the expected file"
	case ErrDiskSpace:
		return "free up space at the destination and retry"
	case ErrPermissionDenied:
		return "check write permissions on the destination directory"
	case ErrFileExists:
		return "use -c/--continue to resume, or remove the existing file"
	case ErrAuthRequired:
		return "supply credentials via --header"
	case ErrSSL:
		return "verify the server certificate, or pass -k/--insecure if you trust the host"
	case ErrDNSFailure:
		return "check the hostname and your DNS configuration"
	case ErrInvalidURL:
		return "check the URL syntax"
	case ErrProtocolUnsupported:
		return "only http and https URLs are supported"
	case ErrNotFound:
		return "the requested resource does not exist at that URL"
	case ErrRedirectLoop:
		return "the server's redirect chain does not terminate"
	default:
		return "check the error details and try again"
	}
}

// redactSensitiveURL strips query parameters before a URL is logged or
// shown in an error, since they commonly carry tokens or signed params.
func redactSensitiveURL(url string) string {
	if strings.Contains(url, "?") {
		parts := strings.SplitN(url, "?", 2)
		return parts[0] + "?[REDACTED]"
	}
	return url
}

// Common constructors for frequently raised errors.

func NewInvalidURLError(url, reason string) *DownloadError {
	return NewDownloadError(ErrInvalidURL, fmt.Sprintf("invalid URL: %s", reason)).WithURL(url)
}

func NewProtocolUnsupportedError(url, scheme string) *DownloadError {
	return NewDownloadError(ErrProtocolUnsupported, fmt.Sprintf("unsupported scheme %q", scheme)).WithURL(url)
}

func NewAuthRequiredError(message string) *DownloadError {
	return NewDownloadError(ErrAuthRequired, message)
}

func NewRateLimitedError(retryAfter int) *DownloadError {
	return NewDownloadError(ErrRateLimited, "rate limit exceeded").
		WithRetryAfter(retryAfter).
		WithSuggestion(fmt.Sprintf("wait %ds before retrying", retryAfter))
}

func NewNotFoundError(url string) *DownloadError {
	return NewDownloadError(ErrNotFound, "resource not found").WithURL(url)
}

func NewServerError(statusCode int, url string) *DownloadError {
	return NewDownloadError(ErrServerError, fmt.Sprintf("server returned %d", statusCode)).WithURL(url)
}

func NewCorruptedDataError(path, reason string) *DownloadError {
	return NewDownloadError(ErrCorruptedData, reason).WithContext("path", path)
}

func NewPartialContentError(reason string) *DownloadError {
	return NewDownloadError(ErrPartialContentError, reason)
}

func NewDiskSpaceError(path string) *DownloadError {
	return NewDownloadError(ErrDiskSpace, "insufficient disk space").WithContext("path", path)
}

func NewFileExistsError(path string) *DownloadError {
	return NewDownloadError(ErrFileExists, "destination already exists").WithContext("path", path)
}
