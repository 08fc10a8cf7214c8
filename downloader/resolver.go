package downloader

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"swiftget/internal"
	"swiftget/utils"
)

// HTTPResolver implements internal.Resolver by issuing a HEAD request (and
// falling back to a ranged GET against servers that reject HEAD) to learn
// whether the server honors byte ranges and how large the resource is.
type HTTPResolver struct {
	httpClient *utils.HTTPClient
}

func NewHTTPResolver(httpClient *utils.HTTPClient) *HTTPResolver {
	return &HTTPResolver{httpClient: httpClient}
}

// Probe reports the server's range support, content length, and a raw
// Server header hint the planner uses to pick a starting segment count.
func (r *HTTPResolver) Probe(ctx context.Context, rawURL string, headers map[string]string) (*internal.ServerCapabilities, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return nil, internal.NewInvalidURLError(rawURL, err.Error())
	}
	applyHeaders(req, headers)

	resp, err := r.httpClient.Do(req)
	if err != nil || resp.StatusCode >= 400 || resp.StatusCode == http.StatusMethodNotAllowed {
		if resp != nil {
			resp.Body.Close()
		}
		return r.probeWithRangedGet(ctx, rawURL, headers)
	}
	defer resp.Body.Close()

	return capabilitiesFromResponse(resp), nil
}

// probeWithRangedGet is the fallback for servers that reject HEAD: a
// single-byte ranged GET reveals the same information without pulling the
// whole body.
func (r *HTTPResolver) probeWithRangedGet(ctx context.Context, rawURL string, headers map[string]string) (*internal.ServerCapabilities, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, internal.NewInvalidURLError(rawURL, err.Error())
	}
	applyHeaders(req, headers)
	req.Header.Set("Range", "bytes=0-0")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, classifyProbeError(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, internal.NewNotFoundError(rawURL)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, internal.NewAuthRequiredError("server rejected the request").WithURL(rawURL)
	}
	if resp.StatusCode >= 500 {
		return nil, internal.NewServerError(resp.StatusCode, rawURL)
	}

	caps := capabilitiesFromResponse(resp)
	if resp.StatusCode == http.StatusPartialContent {
		caps.AcceptsRanges = true
		if cr := resp.Header.Get("Content-Range"); cr != "" {
			if total, ok := parseContentRangeTotal(cr); ok {
				caps.ContentLength = total
				caps.ContentKnown = true
			}
		}
	}
	return caps, nil
}

func capabilitiesFromResponse(resp *http.Response) *internal.ServerCapabilities {
	caps := &internal.ServerCapabilities{
		ServerHint: resp.Header.Get("Server"),
	}
	if strings.EqualFold(resp.Header.Get("Accept-Ranges"), "bytes") {
		caps.AcceptsRanges = true
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			caps.ContentLength = n
			caps.ContentKnown = true
		}
	}
	return caps
}

// parseContentRangeTotal extracts the total size from a header of the
// form "bytes 0-0/12345".
func parseContentRangeTotal(headerValue string) (int64, bool) {
	idx := strings.LastIndex(headerValue, "/")
	if idx == -1 || idx == len(headerValue)-1 {
		return 0, false
	}
	total, err := strconv.ParseInt(headerValue[idx+1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return total, true
}

func applyHeaders(req *http.Request, headers map[string]string) {
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}

func classifyProbeError(rawURL string, err error) *internal.DownloadError {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "no such host"):
		return internal.NewDownloadErrorWithCause(internal.ErrDNSFailure, "could not resolve host", err).WithURL(rawURL)
	case strings.Contains(msg, "certificate"):
		return internal.NewDownloadErrorWithCause(internal.ErrSSL, "TLS verification failed", err).WithURL(rawURL)
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return internal.NewDownloadErrorWithCause(internal.ErrTransientNetwork, "request timed out", err).WithURL(rawURL)
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "connection reset"):
		return internal.NewDownloadErrorWithCause(internal.ErrConnectionLost, "connection failed", err).WithURL(rawURL)
	default:
		return internal.NewDownloadErrorWithCause(internal.ErrTransientNetwork, "probe request failed", err).WithURL(rawURL)
	}
}
