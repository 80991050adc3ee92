// Package changefilter implements the cross-monitor de-duplicated
// change-notification admission test (spec C5). It is keyed by token
// address rather than by monitor id, so multiple monitors watching the
// same token share one notification cadence.
package changefilter

import (
	"sync"
)

const (
	// DefaultThreshold is the default fraction of market-cap movement
	// required before a non-trigger price update is admitted.
	DefaultThreshold = 0.05

	minThreshold = 0.01
	maxThreshold = 1.0
)

// Filter holds the last-observed market cap per token address and applies
// the percentage-change admission test described in spec §4.5.
type Filter struct {
	mu        sync.Mutex
	threshold float64
	lastSeen  map[string]float64
}

// New returns a Filter clamped to [0.01, 1.0]; out-of-range thresholds are
// clamped rather than rejected, matching the source's lack of validation
// on this particular setting.
func New(threshold float64) *Filter {
	if threshold < minThreshold {
		threshold = minThreshold
	}
	if threshold > maxThreshold {
		threshold = maxThreshold
	}
	return &Filter{
		threshold: threshold,
		lastSeen:  make(map[string]float64),
	}
}

// Observe records currentMC for tokenAddress and decides whether a
// non-trigger price-movement notification should fire. The first
// observation for an address always returns (false, nil). Subsequent
// observations compare the signed percentage change's absolute value
// against the threshold but always return the signed percentage.
func (f *Filter) Observe(tokenAddress string, currentMC float64) (notify bool, percentChange *float64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	last, ok := f.lastSeen[tokenAddress]
	if !ok {
		f.lastSeen[tokenAddress] = currentMC
		return false, nil
	}

	if last == 0 {
		// Avoid a division by zero; treat as a fresh baseline.
		f.lastSeen[tokenAddress] = currentMC
		return false, nil
	}

	pct := (currentMC - last) / last * 100
	admit := absFloat(pct)/100 >= f.threshold
	if admit {
		f.lastSeen[tokenAddress] = currentMC
	}
	return admit, &pct
}

// SetThreshold updates the admission threshold, clamped to [0.01, 1.0].
// Intended to be called from ConfigRegistry refresh.
func (f *Filter) SetThreshold(threshold float64) {
	if threshold < minThreshold {
		threshold = minThreshold
	}
	if threshold > maxThreshold {
		threshold = maxThreshold
	}
	f.mu.Lock()
	f.threshold = threshold
	f.mu.Unlock()
}

// Threshold returns the currently configured admission threshold.
func (f *Filter) Threshold() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.threshold
}

// CleanupUnused removes entries for addresses not present in inUse. Call
// this after a monitor stops, passing the addresses still referenced by
// any remaining running monitor.
func (f *Filter) CleanupUnused(inUse map[string]struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for addr := range f.lastSeen {
		if _, ok := inUse[addr]; !ok {
			delete(f.lastSeen, addr)
		}
	}
}

// Clear removes all tracked addresses. Used by MonitorEngine.StopAll.
func (f *Filter) Clear() {
	f.mu.Lock()
	f.lastSeen = make(map[string]float64)
	f.mu.Unlock()
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
