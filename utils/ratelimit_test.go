package utils

import "testing"

func TestParseRateLimit(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int64
		hasError bool
	}{
		{"Empty string", "", 0, false},
		{"Pure number", "1000", 1000, false},
		{"Bytes", "500B", 500, false},
		{"Kilobytes", "5K", 5 * 1024, false},
		{"Kilobytes with B", "5KB", 5 * 1024, false},
		{"Megabytes", "10M", 10 * 1024 * 1024, false},
		{"Megabytes with B", "10MB", 10 * 1024 * 1024, false},
		{"Gigabytes", "2G", 2 * 1024 * 1024 * 1024, false},
		{"Gigabytes with B", "2GB", 2 * 1024 * 1024 * 1024, false},
		{"Terabytes", "1T", 1024 * 1024 * 1024 * 1024, false},
		{"Terabytes with B", "1TB", 1024 * 1024 * 1024 * 1024, false},
		{"Decimal megabytes", "1.5M", int64(1.5 * 1024 * 1024), false},
		{"Decimal gigabytes", "0.5G", int64(0.5 * 1024 * 1024 * 1024), false},
		{"With whitespace", "  5M  ", 5 * 1024 * 1024, false},
		{"Invalid suffix", "5X", 0, true},
		{"Invalid number", "abcM", 0, true},
		{"Negative number", "-5M", 0, true},
		{"Too short", "M", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseRateLimit(tt.input)

			if tt.hasError {
				if err == nil {
					t.Errorf("Expected error for input %q, but got none", tt.input)
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error for input %q: %v", tt.input, err)
				}
				if result != tt.expected {
					t.Errorf("For input %q, expected %d, got %d", tt.input, tt.expected, result)
				}
			}
		})
	}
}
