package downloader

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"swiftget/bandwidth"
	"swiftget/internal"
	"swiftget/progress"
	"swiftget/utils"
)

// FallbackFraction is the share of a transfer's bytes still unaccounted
// for (permanently failed, redistribution exhausted) that triggers a
// fallback to SingleDownloader rather than surfacing a partial failure.
const FallbackFraction = 0.5

// maxRedistributeDepth bounds how many times one byte span may be
// re-split after a segment covering it permanently fails, so a server
// that is simply broken for a given range can't drive the transfer into
// an unbounded split loop.
const maxRedistributeDepth = 2

// MultiDownloader orchestrates the resolver, segmenter, and N segment
// downloaders for one URL: probe, split, run in parallel, reassemble,
// verify. It owns the part files and the segment states for the
// transfer's lifetime; nothing outside it touches either.
type MultiDownloader struct {
	httpClient  *utils.HTTPClient
	resolver    internal.Resolver
	segmenter   *Segmenter
	segDL       *SegmentDownloader
	single      *SingleDownloader
	classifier  *ErrorClassifier
	retryPolicy *RetryPolicy
	fileOps     *utils.FileOperations
	broker      *bandwidth.Broker
	quiet       bool
}

func NewMultiDownloader(httpClient *utils.HTTPClient, broker *bandwidth.Broker, retryPolicy *RetryPolicy, quiet bool) *MultiDownloader {
	return &MultiDownloader{
		httpClient:  httpClient,
		resolver:    NewHTTPResolver(httpClient),
		segmenter:   NewSegmenter(),
		segDL:       NewSegmentDownloader(httpClient),
		single:      NewSingleDownloader(httpClient),
		classifier:  NewErrorClassifier(),
		retryPolicy: retryPolicy,
		fileOps:     utils.NewFileOperations(),
		broker:      broker,
		quiet:       quiet,
	}
}

// segmentRun is the live bookkeeping for one byte range, whether it was
// part of the original plan or split off a failed one during
// redistribution.
type segmentRun struct {
	state internal.SegmentState
	mu    sync.Mutex
	// failed is true once the range has exhausted its retry budget.
	failed bool
	// depth counts how many redistribution splits produced this range;
	// a range born from the original plan has depth 0.
	depth int
}

// Download drives one URL through the full transfer state machine and
// returns the final stats.
func (m *MultiDownloader) Download(ctx context.Context, spec *internal.TransferSpec) (*internal.DownloadStats, error) {
	sm := newTransferStateMachine()

	sm.transition(StateProbing)
	caps, err := m.resolver.Probe(ctx, spec.URL, spec.Headers)
	if err != nil {
		sm.transition(StateFailed)
		return nil, err
	}

	if !caps.AcceptsRanges || !caps.ContentKnown || spec.Connections <= 1 {
		sm.transition(StateSingleRunning)
		agg := progress.NewAggregator(1, caps.ContentLength, m.quiet)
		return m.runSingle(ctx, spec, agg)
	}

	sm.transition(StateSplitting)
	ranges := m.segmenter.Plan(caps, spec.Connections)
	if len(ranges) <= 1 {
		sm.transition(StateSingleRunning)
		agg := progress.NewAggregator(1, caps.ContentLength, m.quiet)
		return m.runSingle(ctx, spec, agg)
	}

	if err := m.fileOps.EnsureDir(spec.Destination); err != nil {
		sm.transition(StateFailed)
		return nil, internal.NewDownloadErrorWithCause(internal.ErrPermissionDenied, "could not create destination directory", err)
	}
	m.cleanStalePartFiles(spec.Destination, len(ranges))

	token, gate := m.broker.Acquire(spec.URL, internal.PriorityNormal, spec.MaxBytesPerSec)
	defer m.broker.Release(token.ID)

	agg := progress.NewAggregator(len(ranges), caps.ContentLength, m.quiet)

	sm.transition(StateRunning)
	leaves, runs, redistributed, usedIndices := m.runWithRedistribution(ctx, spec, ranges, gate, agg)
	if redistributed {
		sm.transition(StateRedistributing)
		sm.transition(StateRunning)
	}

	stillFailed := failedLeaves(leaves, runs)
	if len(stillFailed) > 0 {
		failedBytes := sumLen(stillFailed)
		totalBytes := sumLen(leaves)
		if totalBytes == 0 || float64(failedBytes)/float64(totalBytes) >= FallbackFraction {
			sm.transition(StateFallingBack)
			m.deletePartFiles(spec.Destination, usedIndices)
			sm.transition(StateSingleRunning)
			singleAgg := progress.NewAggregator(1, caps.ContentLength, m.quiet)
			return m.runSingle(ctx, spec, singleAgg)
		}

		sm.transition(StateFailed)
		m.deletePartFiles(spec.Destination, usedIndices)
		return nil, firstLeafError(stillFailed, runs)
	}

	sm.transition(StateAssembling)
	if err := m.assemble(spec.Destination, leaves); err != nil {
		sm.transition(StateFailed)
		m.deletePartFiles(spec.Destination, usedIndices)
		return nil, err
	}
	m.deletePartFiles(spec.Destination, usedIndices)

	sm.transition(StateVerifying)
	for _, r := range leaves {
		agg.MarkSegmentComplete(r.Index)
	}

	sm.transition(StateCompleted)
	return agg.Finish(), nil
}

// runWithRedistribution launches one goroutine per range in ranges and
// keeps running until every byte of the file is accounted for by either a
// successful range or one that permanently failed with no redistribution
// budget left. A range that permanently fails while siblings are still in
// flight is immediately replaced by fresh-indexed sub-ranges covering its
// span, launched alongside whatever is still running — it does not wait
// for a barrier the way a simple retry pass would.
//
// It returns the final leaf ranges (the ones whose outcome is terminal),
// the run record for every range ever launched (including superseded
// parents, kept for error reporting), whether any redistribution
// happened, and every part-file index that was ever written so the
// caller can clean all of them up.
func (m *MultiDownloader) runWithRedistribution(
	ctx context.Context,
	spec *internal.TransferSpec,
	ranges []internal.SegmentRange,
	gate *bandwidth.Gate,
	agg *progress.Aggregator,
) (leaves []internal.SegmentRange, runs map[int]*segmentRun, redistributed bool, usedIndices []int) {
	type result struct {
		rng internal.SegmentRange
		run *segmentRun
	}

	// runs, coverage, usedIndices, nextIndex, and pending are only ever
	// touched from this goroutine: launch is called either before the
	// consumer loop starts or synchronously from inside it, and the
	// worker goroutines it spawns communicate back solely through
	// resultCh and each run's own run.mu. No additional lock is needed
	// for them.
	runs = make(map[int]*segmentRun)
	coverage := make(map[int]internal.SegmentRange)
	resultCh := make(chan result, len(ranges))
	pending := 0

	nextIndex := 0
	for _, r := range ranges {
		if r.Index >= nextIndex {
			nextIndex = r.Index + 1
		}
	}

	launch := func(r internal.SegmentRange, depth int) {
		run := &segmentRun{state: internal.SegmentState{Range: r, Status: internal.SegmentPending}, depth: depth}

		runs[r.Index] = run
		coverage[r.Index] = r
		usedIndices = append(usedIndices, r.Index)
		pending++

		if agg != nil {
			agg.RegisterSegment(r.Index, r.Len())
		}

		go func() {
			partPath := partFilePath(spec.Destination, r.Index)

			err := m.retryPolicy.Do(ctx, func(a int) error {
				run.mu.Lock()
				run.state.Status = internal.SegmentRunning
				run.state.Attempts = a + 1
				run.mu.Unlock()

				onBytes := func(n int64) {
					run.mu.Lock()
					run.state.BytesWritten += n
					run.mu.Unlock()
					if agg != nil {
						agg.Report(r.Index, n)
					}
				}

				if dlErr := m.segDL.Download(ctx, spec.URL, spec.Headers, r, a, partPath, gate, onBytes); dlErr != nil {
					if segErr, ok := dlErr.(*SegmentError); ok {
						run.mu.Lock()
						run.state.LastErrorClass = segErr.Cause.Class
						run.mu.Unlock()
						return segErr.Cause
					}
					return dlErr
				}
				return nil
			})

			run.mu.Lock()
			if err != nil {
				run.state.Status = internal.SegmentFailed
				run.failed = true
			} else {
				run.state.Status = internal.SegmentCompleted
				if agg != nil {
					agg.MarkSegmentComplete(r.Index)
				}
			}
			run.mu.Unlock()

			resultCh <- result{rng: r, run: run}
		}()
	}

	for _, r := range ranges {
		launch(r, 0)
	}

	for pending > 0 {
		res := <-resultCh
		pending--

		res.run.mu.Lock()
		failed := res.run.failed
		depth := res.run.depth
		res.run.mu.Unlock()

		if failed && depth < maxRedistributeDepth {
			redistributed = true
			res.run.mu.Lock()
			res.run.state.Status = internal.SegmentRedistributed
			res.run.mu.Unlock()

			delete(coverage, res.rng.Index)

			subs := splitFailedRange(res.rng, nextIndex)
			nextIndex += len(subs)
			for _, s := range subs {
				launch(s, depth+1)
			}
		}
	}

	for _, r := range coverage {
		leaves = append(leaves, r)
	}
	sort.Slice(leaves, func(i, j int) bool { return leaves[i].Start < leaves[j].Start })

	return leaves, runs, redistributed, usedIndices
}

// splitFailedRange divides a permanently-failed range's unfinished span
// into fresh-indexed sub-ranges, starting at startIndex (always outside
// the range of indices handed out so far). Spans too small to be worth
// splitting further come back as a single fresh-indexed range, which
// still gives the byte span one more retry budget under a new index.
func splitFailedRange(r internal.SegmentRange, startIndex int) []internal.SegmentRange {
	length := r.Len()
	pieces := 2
	if length < 2*MinSegmentSize {
		pieces = 1
	}

	base := length / int64(pieces)
	out := make([]internal.SegmentRange, 0, pieces)
	start := r.Start
	for i := 0; i < pieces; i++ {
		end := start + base - 1
		if i == pieces-1 {
			end = r.End
		}
		out = append(out, internal.SegmentRange{Index: startIndex + i, Start: start, End: end})
		start = end + 1
	}
	return out
}

func (m *MultiDownloader) runSingle(ctx context.Context, spec *internal.TransferSpec, agg *progress.Aggregator) (*internal.DownloadStats, error) {
	token, gate := m.broker.Acquire(spec.URL, internal.PriorityNormal, spec.MaxBytesPerSec)
	defer m.broker.Release(token.ID)

	if agg != nil {
		agg.RegisterSegment(0, 0)
	}

	var written int64
	err := m.retryPolicy.Do(ctx, func(attempt int) error {
		n, derr := m.single.Download(ctx, spec, gate, func(b int64) {
			if agg != nil {
				agg.Report(0, b)
			}
		})
		written = n
		return derr
	})
	if err != nil {
		return nil, err
	}
	if agg != nil {
		agg.MarkSegmentComplete(0)
		return agg.Finish(), nil
	}
	return &internal.DownloadStats{BytesDownloaded: written, ContentLength: written, SegmentsTotal: 1, SegmentsDone: 1}, nil
}

// assemble concatenates part files in ascending start offset into the
// final destination, replacing any existing file there.
func (m *MultiDownloader) assemble(destination string, ranges []internal.SegmentRange) error {
	sorted := append([]internal.SegmentRange(nil), ranges...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	out, err := os.OpenFile(destination, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return internal.NewDownloadErrorWithCause(internal.ErrPermissionDenied, "could not open destination for assembly", err)
	}
	defer out.Close()

	for _, r := range sorted {
		partPath := partFilePath(destination, r.Index)
		part, err := os.Open(partPath)
		if err != nil {
			return internal.NewDownloadErrorWithCause(internal.ErrCorruptedData, "missing part file during assembly", err).WithContext("part", partPath)
		}
		_, copyErr := io.Copy(out, part)
		part.Close()
		if copyErr != nil {
			return internal.NewDownloadErrorWithCause(internal.ErrDiskSpace, "failed writing assembled output", copyErr)
		}
	}

	return out.Sync()
}

func (m *MultiDownloader) cleanStalePartFiles(destination string, segmentCount int) {
	indices := make([]int, segmentCount)
	for i := range indices {
		indices[i] = i
	}
	m.deletePartFiles(destination, indices)
}

func (m *MultiDownloader) deletePartFiles(destination string, indices []int) {
	for _, i := range indices {
		os.Remove(partFilePath(destination, i))
	}
}

func partFilePath(destination string, index int) string {
	return fmt.Sprintf("%s.part%d", destination, index)
}

func sumLen(ranges []internal.SegmentRange) int64 {
	var total int64
	for _, r := range ranges {
		total += r.Len()
	}
	return total
}

func failedLeaves(leaves []internal.SegmentRange, runs map[int]*segmentRun) []internal.SegmentRange {
	var out []internal.SegmentRange
	for _, r := range leaves {
		run := runs[r.Index]
		run.mu.Lock()
		failed := run.failed
		run.mu.Unlock()
		if failed {
			out = append(out, r)
		}
	}
	return out
}

func firstLeafError(leaves []internal.SegmentRange, runs map[int]*segmentRun) error {
	for _, r := range leaves {
		run := runs[r.Index]
		run.mu.Lock()
		failed, class := run.failed, run.state.LastErrorClass
		run.mu.Unlock()
		if failed {
			return internal.NewDownloadError(class, fmt.Sprintf("segment %d permanently failed", r.Index))
		}
	}
	return internal.NewDownloadError(internal.ErrUnknown, "transfer failed")
}
