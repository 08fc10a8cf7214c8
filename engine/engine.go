// Package engine assembles the resolver, segmenter, bandwidth broker,
// progress aggregator, checksum verifier, and retry policy into the one
// top-level DownloadEngine the CLI drives.
package engine

import (
	"context"

	"swiftget/bandwidth"
	"swiftget/checksum"
	"swiftget/downloader"
	"swiftget/internal"
	"swiftget/utils"
)

// Engine implements internal.DownloadEngine, wiring one transfer's probe,
// split, parallel fetch, assembly, and verification.
type Engine struct {
	httpClient *utils.HTTPClient
	multi      *downloader.MultiDownloader
	verifier   *checksum.Verifier
	broker     *bandwidth.Broker
}

// New builds an Engine with a process-wide bandwidth ceiling of
// totalBps (0 = unlimited) shared across every transfer it runs. quiet
// suppresses the progress bar every transfer's aggregator would otherwise
// display.
func New(httpClient *utils.HTTPClient, totalBps int64, retryPolicy *downloader.RetryPolicy, quiet bool) *Engine {
	broker := bandwidth.NewBroker(totalBps)
	return &Engine{
		httpClient: httpClient,
		multi:      downloader.NewMultiDownloader(httpClient, broker, retryPolicy, quiet),
		verifier:   checksum.NewVerifier(),
		broker:     broker,
	}
}

// Download runs spec end to end, verifying its digest if one was
// supplied. On a checksum mismatch the whole transfer is retried exactly
// once before the failure is surfaced.
func (e *Engine) Download(ctx context.Context, spec *internal.TransferSpec) (*internal.DownloadStats, error) {
	stats, err := e.runOnce(ctx, spec)
	if err != nil {
		return nil, err
	}

	if spec.ExpectedDigest == nil {
		return stats, nil
	}

	if verr := e.verifier.Verify(spec.Destination, spec.ExpectedDigest); verr != nil {
		internal.LogDownloadError(toDownloadError(verr))
		stats, err = e.runOnce(ctx, spec)
		if err != nil {
			return nil, err
		}
		if verr := e.verifier.Verify(spec.Destination, spec.ExpectedDigest); verr != nil {
			return nil, verr
		}
	}

	return stats, nil
}

func (e *Engine) runOnce(ctx context.Context, spec *internal.TransferSpec) (*internal.DownloadStats, error) {
	return e.multi.Download(ctx, spec)
}

func toDownloadError(err error) *internal.DownloadError {
	if de, ok := err.(*internal.DownloadError); ok {
		return de
	}
	return internal.NewDownloadErrorWithCause(internal.ErrCorruptedData, err.Error(), err)
}
