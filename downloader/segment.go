package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"swiftget/bandwidth"
	"swiftget/internal"
	"swiftget/utils"
)

// writeChunkSize bounds how many bytes SegmentDownloader reads from the
// response body between progress reports and gate waits.
const writeChunkSize = 32 * 1024

// SegmentDownloader issues one ranged GET and streams the response body
// into a part file, reporting bytes as they land and throttling through a
// bandwidth gate.
type SegmentDownloader struct {
	httpClient *utils.HTTPClient
	classifier *ErrorClassifier
}

func NewSegmentDownloader(httpClient *utils.HTTPClient) *SegmentDownloader {
	return &SegmentDownloader{httpClient: httpClient, classifier: NewErrorClassifier()}
}

// SegmentError carries the failure context the engine's redistribute/
// retry decision needs beyond the plain classified error.
type SegmentError struct {
	Index        int
	Attempt      int
	BytesWritten int64
	Cause        *internal.DownloadError
}

func (e *SegmentError) Error() string { return e.Cause.Error() }
func (e *SegmentError) Unwrap() error { return e.Cause }

// Download fetches rng from rawURL into partPath, truncating the part
// file at the start of every attempt. onBytes is invoked after every
// chunk is durably written, with the chunk length.
func (d *SegmentDownloader) Download(
	ctx context.Context,
	rawURL string,
	headers map[string]string,
	rng internal.SegmentRange,
	attempt int,
	partPath string,
	gate *bandwidth.Gate,
	onBytes func(n int64),
) error {
	file, err := os.OpenFile(partPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return &SegmentError{Index: rng.Index, Attempt: attempt, Cause: internal.NewDownloadErrorWithCause(
			internal.ErrPermissionDenied, "could not open part file", err).WithContext("path", partPath)}
	}
	defer file.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &SegmentError{Index: rng.Index, Attempt: attempt, Cause: internal.NewInvalidURLError(rawURL, err.Error())}
	}
	applyHeaders(req, headers)
	if rng.End >= 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", rng.Start, rng.End))
	} else {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", rng.Start))
	}
	req.Header.Set("Accept-Encoding", "identity")
	req.Header.Set("Connection", "keep-alive")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return &SegmentError{Index: rng.Index, Attempt: attempt, Cause: d.classifier.ClassifyTransportError(err, rawURL)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
		return &SegmentError{Index: rng.Index, Attempt: attempt, Cause: d.classifier.ClassifyHTTPStatus(resp.StatusCode, rawURL, resp.Header)}
	}

	want := rng.Len()
	var written int64
	buf := make([]byte, writeChunkSize)

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if gate != nil {
				if waitErr := gate.Wait(ctx, n); waitErr != nil {
					return &SegmentError{Index: rng.Index, Attempt: attempt, BytesWritten: written,
						Cause: internal.NewDownloadErrorWithCause(internal.ErrConnectionLost, "canceled while throttled", waitErr)}
				}
			}
			if _, werr := file.Write(buf[:n]); werr != nil {
				return &SegmentError{Index: rng.Index, Attempt: attempt, BytesWritten: written,
					Cause: internal.NewDownloadErrorWithCause(internal.ErrDiskSpace, "write to part file failed", werr).WithContext("path", partPath)}
			}
			written += int64(n)
			if onBytes != nil {
				onBytes(int64(n))
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return &SegmentError{Index: rng.Index, Attempt: attempt, BytesWritten: written,
				Cause: d.classifier.ClassifyTransportError(readErr, rawURL)}
		}
	}

	if want >= 0 && written != want {
		return &SegmentError{Index: rng.Index, Attempt: attempt, BytesWritten: written,
			Cause: internal.NewPartialContentError(fmt.Sprintf("expected %d bytes, got %d", want, written)).WithURL(rawURL)}
	}

	return nil
}
