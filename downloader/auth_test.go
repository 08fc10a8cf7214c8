package downloader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCookieJarLoader_Load(t *testing.T) {
	tmpDir := t.TempDir()
	cookieFile := filepath.Join(tmpDir, "cookies.txt")

	cookieContent := `# Netscape HTTP Cookie File
# This is a generated file!  Do not edit.

.example.com	TRUE	/	FALSE	0	session_id	sess_123456789
.example.com	TRUE	/	TRUE	0	auth_token	tok_abcdef
`

	if err := os.WriteFile(cookieFile, []byte(cookieContent), 0644); err != nil {
		t.Fatalf("failed to create test cookie file: %v", err)
	}

	loader := NewCookieJarLoader()
	header, err := loader.Load(cookieFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !strings.Contains(header, "session_id=sess_123456789") {
		t.Errorf("expected header to contain session_id cookie, got %q", header)
	}
	if !strings.Contains(header, "auth_token=tok_abcdef") {
		t.Errorf("expected header to contain auth_token cookie, got %q", header)
	}
}

func TestCookieJarLoader_ExpiredCookiesSkipped(t *testing.T) {
	tmpDir := t.TempDir()
	cookieFile := filepath.Join(tmpDir, "cookies.txt")

	cookieContent := ".example.com\tTRUE\t/\tFALSE\t1\texpired\tstale_value\n"
	if err := os.WriteFile(cookieFile, []byte(cookieContent), 0644); err != nil {
		t.Fatalf("failed to create test cookie file: %v", err)
	}

	loader := NewCookieJarLoader()
	header, err := loader.Load(cookieFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if strings.Contains(header, "stale_value") {
		t.Errorf("expected expired cookie to be skipped, got %q", header)
	}
}

func TestCookieJarLoader_MissingFile(t *testing.T) {
	loader := NewCookieJarLoader()
	if _, err := loader.Load(filepath.Join(t.TempDir(), "does-not-exist.txt")); err == nil {
		t.Error("expected error loading a missing cookie file")
	}
}

func TestParseNetscapeCookieLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr bool
	}{
		{"valid line", ".example.com\tTRUE\t/\tFALSE\t0\tname\tvalue", false},
		{"too few fields", ".example.com\tTRUE\t/", true},
		{"bad expiration", ".example.com\tTRUE\t/\tFALSE\tnotanumber\tname\tvalue", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cookie, err := parseNetscapeCookieLine(tt.line)
			if tt.wantErr {
				if err == nil {
					t.Error("expected an error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cookie.Name != "name" || cookie.Value != "value" {
				t.Errorf("unexpected cookie: %+v", cookie)
			}
		})
	}
}

func TestCookieJarLoader_ConcurrentAccess(t *testing.T) {
	tmpDir := t.TempDir()
	cookieFile := filepath.Join(tmpDir, "cookies.txt")
	content := ".example.com\tTRUE\t/\tFALSE\t0\tname\tvalue\n"
	if err := os.WriteFile(cookieFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test cookie file: %v", err)
	}

	loader := NewCookieJarLoader()
	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := loader.Load(cookieFile)
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		if err := <-done; err != nil {
			t.Errorf("concurrent Load failed: %v", err)
		}
	}
}
