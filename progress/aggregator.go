// Package progress fans in per-segment byte-count events into a single
// display-ready snapshot, throttled the way the teacher's progress bar
// throttles its own updates but generalized from one stream to N.
package progress

import (
	"fmt"
	"sync"
	"time"

	"github.com/VividCortex/ewma"
	"github.com/cheggaaa/pb/v3"

	"swiftget/internal"
)

const displayThrottle = 100 * time.Millisecond

type segmentState struct {
	bytesWritten int64
	total        int64
	speed        ewma.MovingAverage
	lastSample   time.Time
	lastBytes    int64
	done         bool
}

// Aggregator is the thread-safe fan-in point every SegmentDownloader (or
// the SingleDownloader) reports its progress through.
type Aggregator struct {
	mu            sync.Mutex
	segments      map[int]*segmentState
	totalBytes    int64
	contentLength int64
	peakBps       float64
	startTime     time.Time

	bar         *pb.ProgressBar
	quiet       bool
	lastDisplay time.Time
}

// NewAggregator prepares a fan-in for segmentCount segments covering
// contentLength bytes total (0 if unknown). quiet suppresses the bar.
func NewAggregator(segmentCount int, contentLength int64, quiet bool) *Aggregator {
	a := &Aggregator{
		segments:      make(map[int]*segmentState, segmentCount),
		contentLength: contentLength,
		startTime:     time.Now(),
		quiet:         quiet,
	}

	if !quiet && contentLength > 0 {
		tmpl := `{{string . "prefix"}}{{counters . }} {{bar . }} {{percent . }} {{string . "speed"}} {{rtime . "ETA %s"}}`
		bar := pb.ProgressBarTemplate(tmpl).Start64(contentLength)
		bar.Set(pb.Bytes, true)
		bar.Set(pb.SIBytesPrefix, true)
		bar.Set("prefix", "Downloading: ")
		a.bar = bar
	}

	return a
}

// RegisterSegment tells the aggregator how many bytes one segment covers,
// so per-segment ETA can be computed once that segment starts reporting.
func (a *Aggregator) RegisterSegment(index int, total int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.segments[index] = &segmentState{
		total:      total,
		speed:      ewma.NewMovingAverage(),
		lastSample: time.Now(),
	}
}

// Report records bytesAdded bytes newly written by segment index and
// refreshes that segment's EWMA speed.
func (a *Aggregator) Report(index int, bytesAdded int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.segments[index]
	if !ok {
		s = &segmentState{speed: ewma.NewMovingAverage(), lastSample: time.Now()}
		a.segments[index] = s
	}

	s.bytesWritten += bytesAdded
	a.totalBytes += bytesAdded

	now := time.Now()
	elapsed := now.Sub(s.lastSample).Seconds()
	if elapsed > 0 {
		instBps := float64(bytesAdded) / elapsed
		s.speed.Add(instBps)
		s.lastSample = now
	}

	current := a.currentBpsLocked()
	if current > a.peakBps {
		a.peakBps = current
	}

	a.maybeDisplayLocked()
}

// MarkSegmentComplete flags a segment as done; Completed() returns true
// only once every registered segment is marked this way.
func (a *Aggregator) MarkSegmentComplete(index int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.segments[index]; ok {
		s.done = true
	}
}

// Completed reports whether every registered segment is done.
func (a *Aggregator) Completed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.segments) == 0 {
		return false
	}
	for _, s := range a.segments {
		if !s.done {
			return false
		}
	}
	return true
}

func (a *Aggregator) currentBpsLocked() float64 {
	var total float64
	for _, s := range a.segments {
		total += s.speed.Value()
	}
	return total
}

// maybeDisplayLocked updates the progress bar at most once per
// displayThrottle, mirroring the teacher's 100ms-gated Update.
func (a *Aggregator) maybeDisplayLocked() {
	if a.bar == nil {
		return
	}
	now := time.Now()
	if now.Sub(a.lastDisplay) < displayThrottle {
		return
	}
	a.lastDisplay = now

	a.bar.SetCurrent(a.totalBytes)
	bps := a.currentBpsLocked()
	a.bar.Set("speed", fmt.Sprintf("%.2f MB/s", bps/(1024*1024)))
}

// Stats renders the current point-in-time snapshot.
func (a *Aggregator) Stats() *internal.DownloadStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	bps := a.currentBpsLocked()
	elapsed := time.Since(a.startTime).Seconds()
	var avgBps float64
	if elapsed > 0 {
		avgBps = float64(a.totalBytes) / elapsed
	}

	done := 0
	for _, s := range a.segments {
		if s.done {
			done++
		}
	}

	var eta time.Duration
	if bps > 0 && a.contentLength > a.totalBytes {
		eta = time.Duration(float64(a.contentLength-a.totalBytes)/bps) * time.Second
	}

	return &internal.DownloadStats{
		BytesDownloaded: a.totalBytes,
		ContentLength:   a.contentLength,
		CurrentBps:      bps,
		PeakBps:         a.peakBps,
		AvgBps:          avgBps,
		ETA:             eta,
		SegmentsTotal:   len(a.segments),
		SegmentsDone:    done,
	}
}

// Finish stops the progress bar (if any) and returns the final snapshot.
func (a *Aggregator) Finish() *internal.DownloadStats {
	stats := a.Stats()
	if a.bar != nil {
		a.bar.SetCurrent(a.totalBytes)
		a.bar.Finish()
	}
	return stats
}
