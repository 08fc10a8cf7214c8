package downloader

import (
	"swiftget/internal"
)

const (
	// MinSegmentSize is the smallest a segment is allowed to be; below
	// this, splitting further isn't worth the extra connections.
	MinSegmentSize = 1024 * 1024
	// MaxConnections caps how many segments a single transfer may use
	// regardless of what --connections requests.
	MaxConnections = 32
)

// Segmenter turns a probed file size and connection budget into the set
// of byte ranges each segment worker will fetch. Multi-connection
// transfers are always planned fresh: there is no segment-level resume,
// only the single-connection append path resumes (see SingleDownloader).
type Segmenter struct {
	minSegmentSize int64
	maxConnections int
}

func NewSegmenter() *Segmenter {
	return &Segmenter{
		minSegmentSize: MinSegmentSize,
		maxConnections: MaxConnections,
	}
}

// Plan picks a connection count and splits the file into ranges. Servers
// that don't support ranges, or whose length is unknown, get exactly one
// segment covering the whole resource.
func (s *Segmenter) Plan(caps *internal.ServerCapabilities, requestedConnections int) []internal.SegmentRange {
	if !caps.AcceptsRanges || !caps.ContentKnown || caps.ContentLength <= 0 {
		return []internal.SegmentRange{{Index: 0, Start: 0, End: -1}}
	}

	connections := s.determineOptimalConnections(caps.ContentLength, requestedConnections)
	return s.CalculateSegments(caps.ContentLength, connections)
}

// CalculateSegments splits fileSize into connections ranges of roughly
// equal size. Any remainder from integer division is distributed one
// byte at a time across the first segments, so no segment differs from
// another by more than one byte.
func (s *Segmenter) CalculateSegments(fileSize int64, connections int) []internal.SegmentRange {
	if fileSize <= 0 {
		return []internal.SegmentRange{}
	}

	if connections <= 0 {
		connections = 1
	}
	if connections > s.maxConnections {
		connections = s.maxConnections
	}

	if fileSize < s.minSegmentSize {
		return []internal.SegmentRange{{Index: 0, Start: 0, End: fileSize - 1}}
	}

	if int64(connections) > fileSize/s.minSegmentSize {
		connections = int(fileSize / s.minSegmentSize)
		if connections == 0 {
			connections = 1
		}
	}

	base := fileSize / int64(connections)
	remainder := fileSize % int64(connections)

	segments := make([]internal.SegmentRange, 0, connections)
	var cursor int64
	for i := 0; i < connections; i++ {
		size := base
		if int64(i) < remainder {
			size++
		}
		segments = append(segments, internal.SegmentRange{
			Index: i,
			Start: cursor,
			End:   cursor + size - 1,
		})
		cursor += size
	}

	return segments
}

// determineOptimalConnections clamps the requested connection count to
// [1, maxConnections] and to however many full min-size segments the
// file actually supports.
func (s *Segmenter) determineOptimalConnections(fileSize int64, requested int) int {
	connections := requested
	if connections <= 0 {
		connections = 1
	}
	if connections > s.maxConnections {
		connections = s.maxConnections
	}

	maxPossible := int(fileSize / s.minSegmentSize)
	if maxPossible == 0 {
		maxPossible = 1
	}
	if connections > maxPossible {
		connections = maxPossible
	}

	return connections
}
