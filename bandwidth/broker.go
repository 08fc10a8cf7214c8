// Package bandwidth implements process-wide fair-share rate limiting
// across concurrently running transfers, plus the per-segment rate gate
// each worker consumes tokens through.
package bandwidth

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"swiftget/internal"
)

// allocation is the broker's bookkeeping for one live token.
type allocation struct {
	token        internal.BandwidthToken
	limiter      *rate.Limiter
	lastSeen     float64 // most recently reported throughput, bytes/sec
	requestedBps int64   // ceiling this transfer asked for at Acquire time, 0 = no individual ceiling
}

// Broker is the single process-wide actor that owns the global byte-rate
// budget and divides it fairly across every active transfer. It runs no
// goroutine of its own; callers serialize through its mutex, mirroring
// the join/leave/rebalanceLocked pattern of a per-IP bandwidth manager
// but keyed by transfer instead of by client address, and weighted by
// priority instead of given an equal share.
type Broker struct {
	mu         sync.Mutex
	totalBps   int64 // 0 means unlimited
	allocs     map[string]*allocation
	nextTokenN uint64
}

// NewBroker creates a broker with a process-wide ceiling of totalBps
// bytes/sec. A ceiling of 0 means no global limit is enforced; per-token
// allocations still honor whatever limit the transfer itself requested.
func NewBroker(totalBps int64) *Broker {
	return &Broker{
		totalBps: totalBps,
		allocs:   make(map[string]*allocation),
	}
}

// Acquire registers a new transfer with the broker and returns a token
// plus the gate it should use for throttling. The caller must call
// Release when the transfer ends.
func (b *Broker) Acquire(transferID string, priority internal.Priority, requestedBps int64) (*internal.BandwidthToken, *Gate) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextTokenN++
	tok := internal.BandwidthToken{
		ID:             fmt.Sprintf("tok-%d", b.nextTokenN),
		TransferID:     transferID,
		Priority:       priority,
		AllocationTime: time.Now(),
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	b.allocs[tok.ID] = &allocation{token: tok, limiter: limiter, requestedBps: requestedBps}
	b.rebalanceLocked()

	return &tok, &Gate{limiter: limiter}
}

// Release removes a token's allocation and redistributes its share to
// the remaining transfers.
func (b *Broker) Release(tokenID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.allocs, tokenID)
	b.rebalanceLocked()
}

// ReportThroughput feeds back a transfer's recently observed byte rate so
// the next rebalance can shift headroom toward transfers that are
// under-utilizing their share and away from idle ones.
func (b *Broker) ReportThroughput(tokenID string, observedBps float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if a, ok := b.allocs[tokenID]; ok {
		a.lastSeen = observedBps
	}
}

// rebalanceLocked recomputes every live allocation's limit from its
// fair share of the global ceiling, further capped by whatever ceiling
// that allocation itself requested at Acquire time (e.g. a transfer's
// own --limit-rate). Called with mu held.
func (b *Broker) rebalanceLocked() {
	n := len(b.allocs)
	if n == 0 {
		return
	}

	if b.totalBps <= 0 {
		for _, a := range b.allocs {
			if a.requestedBps > 0 {
				a.limiter.SetLimit(rate.Limit(a.requestedBps))
				a.limiter.SetBurst(int(a.requestedBps/4) + 1)
				continue
			}
			a.limiter.SetLimit(rate.Inf)
			a.limiter.SetBurst(1)
		}
		return
	}

	var totalWeight float64
	for _, a := range b.allocs {
		totalWeight += a.token.Priority.Weight()
	}
	if totalWeight == 0 {
		totalWeight = float64(n)
	}

	for _, a := range b.allocs {
		share := a.token.Priority.Weight() / totalWeight
		bps := int64(float64(b.totalBps) * share)
		if a.requestedBps > 0 && a.requestedBps < bps {
			bps = a.requestedBps
		}
		if bps < 1 {
			bps = 1
		}
		a.limiter.SetLimit(rate.Limit(bps))
		a.limiter.SetBurst(int(bps/4) + 1)
	}
}

// SetTotal changes the broker's global ceiling and rebalances all live
// allocations against it.
func (b *Broker) SetTotal(totalBps int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totalBps = totalBps
	b.rebalanceLocked()
}

// ActiveTransfers reports how many tokens are currently allocated.
func (b *Broker) ActiveTransfers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.allocs)
}
