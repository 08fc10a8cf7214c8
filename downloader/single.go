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

// SingleDownloader is the one path that supports resume: a single GET
// (ranged if a partial file already exists and resume was requested)
// written directly to the destination path rather than through a part
// file, since there is only ever one writer.
type SingleDownloader struct {
	httpClient *utils.HTTPClient
	classifier *ErrorClassifier
	fileOps    *utils.FileOperations
}

func NewSingleDownloader(httpClient *utils.HTTPClient) *SingleDownloader {
	return &SingleDownloader{
		httpClient: httpClient,
		classifier: NewErrorClassifier(),
		fileOps:    utils.NewFileOperations(),
	}
}

// Download fetches spec.URL to spec.Destination, resuming an existing
// .part file when spec.Resume is set. onBytes reports newly written bytes
// for the caller's progress aggregator.
func (d *SingleDownloader) Download(
	ctx context.Context,
	spec *internal.TransferSpec,
	gate *bandwidth.Gate,
	onBytes func(n int64),
) (int64, error) {
	partPath := spec.Destination + ".part"
	if err := d.fileOps.EnsureDir(spec.Destination); err != nil {
		return 0, internal.NewDownloadErrorWithCause(internal.ErrPermissionDenied, "could not create destination directory", err)
	}

	var resumeFrom int64
	if spec.Resume {
		exists, size, err := d.fileOps.DetectPartialDownload(spec.Destination)
		if err != nil {
			return 0, internal.NewDownloadErrorWithCause(internal.ErrPermissionDenied, "could not inspect partial file", err)
		}
		if exists {
			if err := d.fileOps.ValidatePartialFile(partPath, size); err == nil {
				resumeFrom = size
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spec.URL, nil)
	if err != nil {
		return 0, internal.NewInvalidURLError(spec.URL, err.Error())
	}
	applyHeaders(req, spec.Headers)
	if resumeFrom > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", resumeFrom))
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, d.classifier.ClassifyTransportError(err, spec.URL)
	}
	defer resp.Body.Close()

	flags := os.O_CREATE | os.O_WRONLY
	var written int64
	preallocated := false
	switch resp.StatusCode {
	case http.StatusPartialContent:
		flags |= os.O_APPEND
		written = resumeFrom
	case http.StatusOK:
		written = 0
		if cl := resp.ContentLength; cl > 0 {
			if err := d.fileOps.CreatePartialFile(partPath, cl); err == nil {
				preallocated = true
			}
		}
		if !preallocated {
			flags |= os.O_TRUNC
		}
	default:
		return 0, d.classifier.ClassifyHTTPStatus(resp.StatusCode, spec.URL, resp.Header)
	}

	file, err := os.OpenFile(partPath, flags, 0644)
	if err != nil {
		return 0, internal.NewDownloadErrorWithCause(internal.ErrPermissionDenied, "could not open destination for writing", err)
	}
	defer file.Close()

	buf := make([]byte, writeChunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if gate != nil {
				if waitErr := gate.Wait(ctx, n); waitErr != nil {
					return written, internal.NewDownloadErrorWithCause(internal.ErrConnectionLost, "canceled while throttled", waitErr)
				}
			}
			if _, werr := file.Write(buf[:n]); werr != nil {
				return written, internal.NewDownloadErrorWithCause(internal.ErrDiskSpace, "write failed", werr)
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
			return written, d.classifier.ClassifyTransportError(readErr, spec.URL)
		}
	}

	if err := file.Close(); err != nil {
		return written, internal.NewDownloadErrorWithCause(internal.ErrDiskSpace, "could not flush destination", err)
	}
	if err := d.fileOps.AtomicRename(partPath, spec.Destination); err != nil {
		return written, internal.NewDownloadErrorWithCause(internal.ErrPermissionDenied, "could not finalize destination", err)
	}

	return written, nil
}
