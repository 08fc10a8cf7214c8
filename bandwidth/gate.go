package bandwidth

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// chunkSize bounds how many bytes a single WaitN call ever reserves, so a
// burst limit derived from a slow rate doesn't force one enormous wait
// with no chance to observe context cancellation in between.
const chunkSize = 32 * 1024

// Gate enforces a byte-rate ceiling on one segment's reads, chunking
// reservations the way a rate-limited response writer chunks its writes:
// never wait for more than chunkSize bytes' worth of tokens at a time.
type Gate struct {
	limiter *rate.Limiter
}

// NewStandaloneGate builds a Gate not tied to a Broker allocation, for
// single-connection downloads that still want a --limit-rate ceiling.
func NewStandaloneGate(bytesPerSec int64) *Gate {
	if bytesPerSec <= 0 {
		return &Gate{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Gate{limiter: rate.NewLimiter(rate.Limit(bytesPerSec), int(bytesPerSec/4)+1)}
}

// SetRate adjusts the gate's ceiling in place; used when a --limit-rate
// flag is applied after the gate was already constructed with defaults.
func (g *Gate) SetRate(bytesPerSec int64) {
	if bytesPerSec <= 0 {
		g.limiter.SetLimit(rate.Inf)
		g.limiter.SetBurst(1)
		return
	}
	g.limiter.SetLimit(rate.Limit(bytesPerSec))
	g.limiter.SetBurst(int(bytesPerSec/4) + 1)
}

// Wait reserves n bytes worth of budget, chunked, respecting ctx.
func (g *Gate) Wait(ctx context.Context, n int) error {
	for n > 0 {
		take := n
		if take > chunkSize {
			take = chunkSize
		}
		if err := g.limiter.WaitN(ctx, take); err != nil {
			return err
		}
		n -= take
	}
	return nil
}

// GatedReader wraps src so every Read is metered through the gate before
// the bytes are handed to the caller.
type GatedReader struct {
	ctx  context.Context
	src  io.Reader
	gate *Gate
}

func NewGatedReader(ctx context.Context, src io.Reader, gate *Gate) *GatedReader {
	return &GatedReader{ctx: ctx, src: src, gate: gate}
}

func (r *GatedReader) Read(p []byte) (int, error) {
	n, err := r.src.Read(p)
	if n > 0 {
		if waitErr := r.gate.Wait(r.ctx, n); waitErr != nil {
			return n, waitErr
		}
	}
	return n, err
}
