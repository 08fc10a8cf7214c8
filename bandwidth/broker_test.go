package bandwidth

import (
	"fmt"
	"testing"

	"swiftget/internal"
)

func TestBroker_AllocationNeverExceedsTotal(t *testing.T) {
	const total = int64(1_000_000)
	b := NewBroker(total)

	var tokens []*internal.BandwidthToken
	for i := 0; i < 5; i++ {
		tok, _ := b.Acquire(fmt.Sprintf("transfer-%d", i), internal.PriorityNormal, 0)
		tokens = append(tokens, tok)
	}

	var sum float64
	b.mu.Lock()
	for _, a := range b.allocs {
		sum += float64(a.limiter.Limit())
	}
	b.mu.Unlock()

	if sum > float64(total)+1 {
		t.Errorf("sum of allocations %v exceeds total ceiling %d", sum, total)
	}

	for _, tok := range tokens {
		b.Release(tok.ID)
	}

	if n := b.ActiveTransfers(); n != 0 {
		t.Errorf("expected 0 active transfers after releasing all, got %d", n)
	}
}

func TestBroker_PerAllocationCeilingIsHonored(t *testing.T) {
	b := NewBroker(1_000_000)

	_, lowGate := b.Acquire("capped", internal.PriorityCritical, 1000)
	_, _ = b.Acquire("uncapped", internal.PriorityCritical, 0)

	b.mu.Lock()
	limit := float64(0)
	for _, a := range b.allocs {
		if a.requestedBps == 1000 {
			limit = float64(a.limiter.Limit())
		}
	}
	b.mu.Unlock()

	if limit > 1000 {
		t.Errorf("expected capped allocation to stay at or under its requested 1000 bps, got %v", limit)
	}
	if lowGate == nil {
		t.Fatal("expected a non-nil gate for the capped allocation")
	}
}

func TestBroker_UnlimitedGlobalStillHonorsPerTransferCeiling(t *testing.T) {
	b := NewBroker(0)

	_, _ = b.Acquire("limited", internal.PriorityNormal, 5000)
	_, _ = b.Acquire("unlimited", internal.PriorityNormal, 0)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range b.allocs {
		if a.requestedBps == 5000 {
			if limit := float64(a.limiter.Limit()); limit != 5000 {
				t.Errorf("expected limited allocation's limiter to be set to 5000, got %v", limit)
			}
		}
	}
}

func TestBroker_SetTotalRebalances(t *testing.T) {
	b := NewBroker(1_000_000)
	_, _ = b.Acquire("a", internal.PriorityNormal, 0)
	_, _ = b.Acquire("b", internal.PriorityNormal, 0)

	b.SetTotal(2_000)

	b.mu.Lock()
	defer b.mu.Unlock()
	var sum float64
	for _, a := range b.allocs {
		sum += float64(a.limiter.Limit())
	}
	if sum > 2_000+1 {
		t.Errorf("expected rebalanced sum to respect new total of 2000, got %v", sum)
	}
}
