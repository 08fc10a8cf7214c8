package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"swiftget/internal"
	"swiftget/utils"
)

func TestHTTPResolver_ProbeViaHead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Content-Length", "1048576")
		w.Header().Set("Server", "nginx")
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resolver := NewHTTPResolver(utils.NewHTTPClient())
	caps, err := resolver.Probe(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if !caps.AcceptsRanges {
		t.Error("expected AcceptsRanges to be true")
	}
	if !caps.ContentKnown || caps.ContentLength != 1048576 {
		t.Errorf("expected content length 1048576, got %d (known=%v)", caps.ContentLength, caps.ContentKnown)
	}
	if caps.ServerHint != "nginx" {
		t.Errorf("expected server hint nginx, got %q", caps.ServerHint)
	}
}

func TestHTTPResolver_ProbeFallsBackToRangedGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("Range") != "" {
			w.Header().Set("Content-Range", "bytes 0-0/2048")
			w.WriteHeader(http.StatusPartialContent)
			w.Write([]byte("x"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resolver := NewHTTPResolver(utils.NewHTTPClient())
	caps, err := resolver.Probe(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if !caps.AcceptsRanges {
		t.Error("expected AcceptsRanges to be true after ranged GET fallback")
	}
	if caps.ContentLength != 2048 {
		t.Errorf("expected content length 2048, got %d", caps.ContentLength)
	}
}

func TestHTTPResolver_ProbeNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	resolver := NewHTTPResolver(utils.NewHTTPClient())
	_, err := resolver.Probe(context.Background(), server.URL, nil)
	if err == nil {
		t.Fatal("expected an error for 404 response")
	}
	downloadErr, ok := err.(*internal.DownloadError)
	if !ok {
		t.Fatalf("expected *internal.DownloadError, got %T", err)
	}
	if downloadErr.Class != internal.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %s", downloadErr.Class)
	}
}

func TestHTTPResolver_ProbeAuthRequired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	resolver := NewHTTPResolver(utils.NewHTTPClient())
	_, err := resolver.Probe(context.Background(), server.URL, nil)
	if err == nil {
		t.Fatal("expected an error for 403 response")
	}
	downloadErr, ok := err.(*internal.DownloadError)
	if !ok {
		t.Fatalf("expected *internal.DownloadError, got %T", err)
	}
	if downloadErr.Class != internal.ErrAuthRequired {
		t.Errorf("expected ErrAuthRequired, got %s", downloadErr.Class)
	}
}

func TestHTTPResolver_ProbeInvalidURL(t *testing.T) {
	resolver := NewHTTPResolver(utils.NewHTTPClient())
	_, err := resolver.Probe(context.Background(), "://not-a-url", nil)
	if err == nil {
		t.Fatal("expected an error for a malformed URL")
	}
}

func TestParseContentRangeTotal(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		wantTotal int64
		wantOK    bool
	}{
		{"valid", "bytes 0-0/12345", 12345, true},
		{"no slash", "bytes 0-0", 0, false},
		{"trailing slash", "bytes 0-0/", 0, false},
		{"non-numeric total", "bytes 0-0/abc", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, ok := parseContentRangeTotal(tt.header)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if ok && total != tt.wantTotal {
				t.Errorf("expected total %d, got %d", tt.wantTotal, total)
			}
		})
	}
}
