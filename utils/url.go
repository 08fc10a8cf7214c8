package utils

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"swiftget/internal"
)

// URLInfo is a parsed, validated download URL.
type URLInfo struct {
	OriginalURL string
	Scheme      string
	Host        string
	Path        string
}

// URLValidator enforces the engine's URL contract: http or https only,
// a non-empty host, no fragment-only targets.
type URLValidator struct{}

func NewURLValidator() *URLValidator {
	return &URLValidator{}
}

// ValidateURL rejects anything that isn't a well-formed http(s) URL.
func (v *URLValidator) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return internal.NewValidationError("url", "URL cannot be empty")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return internal.NewValidationError("url", fmt.Sprintf("invalid URL format: %v", err))
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return internal.NewDownloadError(internal.ErrProtocolUnsupported,
			fmt.Sprintf("unsupported scheme %q, only http and https are supported", parsedURL.Scheme)).
			WithURL(rawURL)
	}

	if parsedURL.Hostname() == "" {
		return internal.NewInvalidURLError(rawURL, "missing host")
	}

	return nil
}

// ParseURL validates rawURL and returns its parsed components.
func (v *URLValidator) ParseURL(rawURL string) (*URLInfo, error) {
	if err := v.ValidateURL(rawURL); err != nil {
		return nil, err
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, internal.NewInvalidURLError(rawURL, err.Error())
	}

	return &URLInfo{
		OriginalURL: rawURL,
		Scheme:      parsedURL.Scheme,
		Host:        strings.ToLower(parsedURL.Hostname()),
		Path:        parsedURL.Path,
	}, nil
}

// DefaultFilename derives an output filename from the URL path, falling
// back to "download" when the path has no usable basename (e.g. a bare
// domain or a path ending in "/").
func (urlInfo *URLInfo) DefaultFilename() string {
	base := path.Base(urlInfo.Path)
	if base == "" || base == "." || base == "/" {
		return "download"
	}
	return base
}

func (urlInfo *URLInfo) String() string {
	return fmt.Sprintf("URLInfo{Scheme: %s, Host: %s, Path: %s}", urlInfo.Scheme, urlInfo.Host, urlInfo.Path)
}
