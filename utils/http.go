package utils

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

// HTTPClientConfig configures the transport a HTTPClient wraps. Retry
// behavior is deliberately not part of this type: it lives one layer up,
// in the engine's retry policy, so every caller sees the same backoff and
// classification regardless of which HTTP call failed.
type HTTPClientConfig struct {
	Timeout            time.Duration
	ProxyURL           string
	InsecureSkipVerify bool
}

// HTTPClient is a thin wrapper around *http.Client carrying the
// connection-level settings (proxy, TLS verification, timeouts, user
// agent) shared by every request a transfer issues.
type HTTPClient struct {
	client    *http.Client
	userAgent string
}

// NewHTTPClient returns a client with sane defaults: 30s timeout, TLS
// verification on, no proxy.
func NewHTTPClient() *HTTPClient {
	return NewHTTPClientWithConfig(&HTTPClientConfig{Timeout: 30 * time.Second})
}

// NewHTTPClientWithConfig builds a client whose transport matches config.
func NewHTTPClientWithConfig(config *HTTPClientConfig) *HTTPClient {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.InsecureSkipVerify,
		},
	}

	if config.ProxyURL != "" {
		if err := configureProxy(transport, config.ProxyURL); err != nil {
			fmt.Printf("warning: failed to configure proxy %s: %v\n", config.ProxyURL, err)
		}
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	return &HTTPClient{client: client, userAgent: "swiftget/1.0"}
}

func configureProxy(transport *http.Transport, proxyURL string) error {
	parsedURL, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("invalid proxy URL: %w", err)
	}

	switch parsedURL.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(parsedURL)
	case "socks5":
		dialer, err := proxy.SOCKS5("tcp", parsedURL.Host, nil, proxy.Direct)
		if err != nil {
			return fmt.Errorf("failed to create SOCKS5 proxy: %w", err)
		}
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
	default:
		return fmt.Errorf("unsupported proxy scheme: %s", parsedURL.Scheme)
	}

	return nil
}

// Do sends req as-is, stamping the client's User-Agent only if the caller
// hasn't already set one.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return c.client.Do(req)
}

// Get issues a plain GET, for callers that don't need custom headers.
func (c *HTTPClient) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	return c.GetWithHeaders(ctx, rawURL, nil)
}

// GetWithHeaders issues a GET with the given headers applied on top of
// the client's defaults.
func (c *HTTPClient) GetWithHeaders(ctx context.Context, rawURL string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.Do(req)
}

// SetUserAgent overrides the default User-Agent sent on requests that
// don't specify their own.
func (c *HTTPClient) SetUserAgent(userAgent string) {
	c.userAgent = userAgent
}

// UserAgent returns the client's current default User-Agent.
func (c *HTTPClient) UserAgent() string {
	return c.userAgent
}
