package internal

import "context"

// Resolver probes a URL to discover what the server supports before any
// bytes are fetched: range support, content length, and a raw Server
// header hint used to pick a starting segment count.
type Resolver interface {
	Probe(ctx context.Context, url string, headers map[string]string) (*ServerCapabilities, error)
}

// DownloadEngine drives one transfer end to end: planning, segment
// dispatch, assembly, and verification.
type DownloadEngine interface {
	Download(ctx context.Context, spec *TransferSpec) (*DownloadStats, error)
}

// RateLimiter controls the byte rate a single caller is allowed to
// consume. SetRate(0) means unlimited.
type RateLimiter interface {
	Wait(ctx context.Context, n int) error
	SetRate(bytesPerSecond int64)
}
