package downloader

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"swiftget/internal"
)

// ErrorClassifier maps a raw failure — an HTTP status code, a transport
// error, a filesystem error — onto the engine's closed ErrorClass
// taxonomy. Every component that can fail routes its error through here
// before handing it to a RetryPolicy or surfacing it to the CLI.
type ErrorClassifier struct{}

func NewErrorClassifier() *ErrorClassifier {
	return &ErrorClassifier{}
}

// ClassifyHTTPStatus maps a response status code to an error class. Only
// called for statuses the caller has already decided are failures (not
// 200/206). header is the failing response's header set, consulted for
// Retry-After on a 429 or 503; it may be nil if the caller has none.
func (c *ErrorClassifier) ClassifyHTTPStatus(statusCode int, url string, header http.Header) *internal.DownloadError {
	switch {
	case statusCode == http.StatusRequestedRangeNotSatisfiable:
		return internal.NewPartialContentError("server rejected the requested byte range").WithURL(url)
	case statusCode == http.StatusTooManyRequests:
		return internal.NewRateLimitedError(retryAfterSeconds(header, 30)).WithURL(url)
	case statusCode == http.StatusServiceUnavailable:
		de := internal.NewServerError(statusCode, url)
		if secs, ok := retryAfterSecondsOK(header); ok {
			de = de.WithRetryAfter(secs)
		}
		return de
	case statusCode == http.StatusUnauthorized:
		return internal.NewAuthRequiredError("server returned 401 Unauthorized").WithURL(url)
	case statusCode == http.StatusForbidden:
		return internal.NewAuthRequiredError("server returned 403 Forbidden").WithURL(url)
	case statusCode == http.StatusNotFound:
		return internal.NewNotFoundError(url)
	case statusCode >= 500 && statusCode < 600:
		return internal.NewServerError(statusCode, url)
	case statusCode >= 300 && statusCode < 400:
		return internal.NewDownloadError(internal.ErrRedirectLoop, "redirect chain did not terminate").WithURL(url)
	default:
		return internal.NewDownloadError(internal.ErrUnknown, "unexpected HTTP status").
			WithURL(url).WithContext("status_code", statusCode)
	}
}

// ClassifyTransportError maps a transport-level error (DNS, TLS, dial,
// read/write timeouts, EOF) into a class. String matching is unavoidable
// here: Go's net package does not expose structured error types for most
// of these outcomes.
func (c *ErrorClassifier) ClassifyTransportError(err error, url string) *internal.DownloadError {
	if err == nil {
		return nil
	}

	var de *internal.DownloadError
	if errors.As(err, &de) {
		return de
	}

	if errors.Is(err, context.Canceled) {
		return internal.NewDownloadErrorWithCause(internal.ErrConnectionLost, "transfer canceled", err).WithURL(url)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return internal.NewDownloadErrorWithCause(internal.ErrTransientNetwork, "request timed out", err).WithURL(url)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such host"):
		return internal.NewDownloadErrorWithCause(internal.ErrDNSFailure, "could not resolve host", err).WithURL(url)
	case strings.Contains(msg, "certificate"), strings.Contains(msg, "x509"):
		return internal.NewDownloadErrorWithCause(internal.ErrSSL, "TLS verification failed", err).WithURL(url)
	case strings.Contains(msg, "connection reset"), strings.Contains(msg, "broken pipe"), strings.Contains(msg, "eof"):
		return internal.NewDownloadErrorWithCause(internal.ErrConnectionLost, "connection lost mid-transfer", err).WithURL(url)
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no route to host"), strings.Contains(msg, "network is unreachable"):
		return internal.NewDownloadErrorWithCause(internal.ErrConnectionLost, "could not reach server", err).WithURL(url)
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "temporary failure"):
		return internal.NewDownloadErrorWithCause(internal.ErrTransientNetwork, "network request timed out", err).WithURL(url)
	case strings.Contains(msg, "no space left"):
		return internal.NewDiskSpaceError(url)
	case strings.Contains(msg, "permission denied"):
		return internal.NewDownloadErrorWithCause(internal.ErrPermissionDenied, "permission denied", err).WithURL(url)
	default:
		return internal.NewDownloadErrorWithCause(internal.ErrUnknown, err.Error(), err).WithURL(url)
	}
}

// retryAfterSeconds parses a Retry-After header (seconds or HTTP-date
// form) and falls back to def when absent or unparseable.
func retryAfterSeconds(header http.Header, def int) int {
	if secs, ok := retryAfterSecondsOK(header); ok {
		return secs
	}
	return def
}

func retryAfterSecondsOK(header http.Header) (int, bool) {
	if header == nil {
		return 0, false
	}
	v := header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		if secs < 0 {
			return 0, false
		}
		return secs, true
	}
	if when, err := http.ParseTime(v); err == nil {
		d := time.Until(when)
		if d < 0 {
			return 0, true
		}
		return int(d.Seconds() + 0.5), true
	}
	return 0, false
}
