package downloader

import (
	"testing"

	"swiftget/internal"
)

func TestSegmenter_CalculateSegments(t *testing.T) {
	s := NewSegmenter()

	tests := []struct {
		name        string
		fileSize    int64
		connections int
		wantCount   int
	}{
		{"even split", 10 * MinSegmentSize, 5, 5},
		{"remainder distributed", 10*MinSegmentSize + 3, 5, 5},
		{"below min segment size", MinSegmentSize - 1, 8, 1},
		{"zero connections defaults to one", 5 * MinSegmentSize, 0, 1},
		{"connections above cap clamp to max", 64 * MinSegmentSize, 128, MaxConnections},
		{"zero file size", 0, 4, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segments := s.CalculateSegments(tt.fileSize, tt.connections)
			if len(segments) != tt.wantCount {
				t.Fatalf("expected %d segments, got %d", tt.wantCount, len(segments))
			}
			if len(segments) == 0 {
				return
			}

			var total int64
			for i, seg := range segments {
				if seg.Index != i {
					t.Errorf("segment %d has index %d", i, seg.Index)
				}
				total += seg.Len()
			}
			if total != tt.fileSize {
				t.Errorf("expected total bytes %d, got %d", tt.fileSize, total)
			}

			for i := 1; i < len(segments); i++ {
				if segments[i].Start != segments[i-1].End+1 {
					t.Errorf("gap or overlap between segment %d and %d", i-1, i)
				}
			}
		})
	}
}

func TestSegmenter_CalculateSegments_RemainderGoesToFirstSegments(t *testing.T) {
	s := NewSegmenter()
	fileSize := int64(4*MinSegmentSize + 3)
	segments := s.CalculateSegments(fileSize, 4)

	if len(segments) != 4 {
		t.Fatalf("expected 4 segments, got %d", len(segments))
	}
	for i := 0; i < 3; i++ {
		if segments[i].Len() != MinSegmentSize+1 {
			t.Errorf("expected segment %d to absorb one remainder byte, got len %d", i, segments[i].Len())
		}
	}
	if segments[3].Len() != MinSegmentSize {
		t.Errorf("expected last segment to have base size, got %d", segments[3].Len())
	}
}

func TestSegmenter_Plan(t *testing.T) {
	s := NewSegmenter()

	tests := []struct {
		name      string
		caps      *internal.ServerCapabilities
		requested int
		wantCount int
	}{
		{
			name:      "ranges not accepted falls back to single segment",
			caps:      &internal.ServerCapabilities{AcceptsRanges: false, ContentKnown: true, ContentLength: 10 * MinSegmentSize},
			requested: 8,
			wantCount: 1,
		},
		{
			name:      "unknown content length falls back to single segment",
			caps:      &internal.ServerCapabilities{AcceptsRanges: true, ContentKnown: false},
			requested: 8,
			wantCount: 1,
		},
		{
			name:      "rangeable with known length splits",
			caps:      &internal.ServerCapabilities{AcceptsRanges: true, ContentKnown: true, ContentLength: 10 * MinSegmentSize},
			requested: 4,
			wantCount: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranges := s.Plan(tt.caps, tt.requested)
			if len(ranges) != tt.wantCount {
				t.Fatalf("expected %d ranges, got %d", tt.wantCount, len(ranges))
			}
		})
	}
}

func TestSegmenter_DetermineOptimalConnections(t *testing.T) {
	s := NewSegmenter()

	tests := []struct {
		name      string
		fileSize  int64
		requested int
		want      int
	}{
		{"requested within bounds", 10 * MinSegmentSize, 4, 4},
		{"requested above max connections", 100 * MinSegmentSize, 1000, MaxConnections},
		{"requested above file's segment capacity", 3 * MinSegmentSize, 16, 3},
		{"zero requested defaults to one", 10 * MinSegmentSize, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.determineOptimalConnections(tt.fileSize, tt.requested); got != tt.want {
				t.Errorf("expected %d connections, got %d", tt.want, got)
			}
		})
	}
}
