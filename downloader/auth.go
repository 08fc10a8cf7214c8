package downloader

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// CookieJarLoader reads a Netscape-format cookie file (the format
// produced by curl/wget's --cookie-jar) and renders it into a single
// Cookie header value for --cookies-from-file.
type CookieJarLoader struct {
	cookieStore map[string]*http.Cookie
	mutex       sync.Mutex
}

func NewCookieJarLoader() *CookieJarLoader {
	return &CookieJarLoader{cookieStore: make(map[string]*http.Cookie)}
}

// Load parses path and returns the accumulated cookies as a single
// "name=value; name2=value2" header value, skipping any already-expired
// entries.
func (l *CookieJarLoader) Load(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open cookie file: %w", err)
	}
	defer file.Close()

	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.cookieStore = make(map[string]*http.Cookie)

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		cookie, err := parseNetscapeCookieLine(line)
		if err != nil {
			return "", fmt.Errorf("invalid cookie format at line %d: %w", lineNum, err)
		}
		if !cookie.Expires.IsZero() && time.Now().After(cookie.Expires) {
			continue
		}
		l.cookieStore[cookie.Name] = cookie
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("error reading cookie file: %w", err)
	}

	parts := make([]string, 0, len(l.cookieStore))
	for _, cookie := range l.cookieStore {
		parts = append(parts, fmt.Sprintf("%s=%s", cookie.Name, cookie.Value))
	}
	return strings.Join(parts, "; "), nil
}

// parseNetscapeCookieLine parses one tab-separated line:
// domain  flag  path  secure  expiration  name  value
func parseNetscapeCookieLine(line string) (*http.Cookie, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != 7 {
		return nil, fmt.Errorf("expected 7 fields, got %d", len(fields))
	}

	domain := fields[0]
	path := fields[2]
	secure := fields[3] == "TRUE"
	expirationStr := fields[4]
	name := fields[5]
	value := fields[6]

	var expires time.Time
	if expirationStr != "0" {
		timestamp, err := strconv.ParseInt(expirationStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid expiration timestamp: %w", err)
		}
		expires = time.Unix(timestamp, 0)
	}

	return &http.Cookie{
		Name:     name,
		Value:    value,
		Domain:   domain,
		Path:     path,
		Expires:  expires,
		Secure:   secure,
		HttpOnly: true,
	}, nil
}
