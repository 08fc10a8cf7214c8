package utils

import "testing"

func TestURLValidator_ValidateURL(t *testing.T) {
	validator := NewURLValidator()

	tests := []struct {
		name        string
		url         string
		expectError bool
	}{
		{name: "valid_https", url: "https://example.com/file.iso", expectError: false},
		{name: "valid_http", url: "http://example.com/file.iso", expectError: false},
		{name: "valid_with_port", url: "https://example.com:8443/file.iso", expectError: false},
		{name: "empty_url", url: "", expectError: true},
		{name: "invalid_scheme", url: "ftp://example.com/file.iso", expectError: true},
		{name: "malformed_url", url: "not-a-url", expectError: true},
		{name: "missing_host", url: "https:///path", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateURL(tt.url)
			if tt.expectError && err == nil {
				t.Errorf("expected error for URL %s, but got none", tt.url)
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error for valid URL %s: %v", tt.url, err)
			}
		})
	}
}

func TestURLValidator_ParseURL(t *testing.T) {
	validator := NewURLValidator()

	tests := []struct {
		name         string
		url          string
		expectedHost string
		expectedPath string
		expectError  bool
	}{
		{
			name:         "simple path",
			url:          "https://example.com/files/archive.zip",
			expectedHost: "example.com",
			expectedPath: "/files/archive.zip",
		},
		{
			name:         "uppercase host normalized",
			url:          "https://EXAMPLE.COM/file.iso",
			expectedHost: "example.com",
			expectedPath: "/file.iso",
		},
		{
			name:        "malformed URL",
			url:         "not-a-url",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := validator.ParseURL(tt.url)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error for URL %s, but got none", tt.url)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error for URL %s: %v", tt.url, err)
			}
			if info.Host != tt.expectedHost {
				t.Errorf("expected host %s, got %s", tt.expectedHost, info.Host)
			}
			if info.Path != tt.expectedPath {
				t.Errorf("expected path %s, got %s", tt.expectedPath, info.Path)
			}
			if info.OriginalURL != tt.url {
				t.Errorf("expected OriginalURL %s, got %s", tt.url, info.OriginalURL)
			}
		})
	}
}

func TestURLInfo_DefaultFilename(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{"normal file", "/downloads/archive.zip", "archive.zip"},
		{"nested path", "/a/b/c/file.iso", "file.iso"},
		{"root path", "/", "download"},
		{"empty path", "", "download"},
		{"trailing slash", "/downloads/", "download"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := &URLInfo{Path: tt.path}
			if got := info.DefaultFilename(); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}
