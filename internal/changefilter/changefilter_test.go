package changefilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirstObservationNeverNotifies(t *testing.T) {
	f := New(DefaultThreshold)
	notify, pct := f.Observe("tokenA", 1_000_000)
	assert.False(t, notify)
	assert.Nil(t, pct)
}

func TestObserveAdmitsOnLargeMove(t *testing.T) {
	f := New(0.05)
	f.Observe("tokenA", 1_000_000)

	notify, pct := f.Observe("tokenA", 1_100_000)
	assert.True(t, notify)
	assert.NotNil(t, pct)
	assert.InDelta(t, 10.0, *pct, 0.0001)
}

func TestObserveRejectsSmallMoveButReturnsSignedPct(t *testing.T) {
	f := New(0.05)
	f.Observe("tokenA", 1_000_000)

	notify, pct := f.Observe("tokenA", 1_010_000)
	assert.False(t, notify)
	assert.NotNil(t, pct)
	assert.InDelta(t, 1.0, *pct, 0.0001)
}

func TestObserveHandlesDecreases(t *testing.T) {
	f := New(0.05)
	f.Observe("tokenA", 1_000_000)

	notify, pct := f.Observe("tokenA", 900_000)
	assert.True(t, notify)
	assert.InDelta(t, -10.0, *pct, 0.0001)
}

func TestChangeFilterIsKeyedByAddressNotMonitor(t *testing.T) {
	f := New(0.05)
	f.Observe("shared", 1_000_000)
	notify, _ := f.Observe("shared", 1_049_000)
	assert.False(t, notify, "below threshold should not admit regardless of which monitor observes")
}

func TestThresholdClamped(t *testing.T) {
	assert.Equal(t, minThreshold, New(0).Threshold())
	assert.Equal(t, maxThreshold, New(5).Threshold())
}

func TestCleanupUnusedRemovesStaleAddresses(t *testing.T) {
	f := New(0.05)
	f.Observe("a", 100)
	f.Observe("b", 200)

	f.CleanupUnused(map[string]struct{}{"a": {}})

	notify, pct := f.Observe("b", 200)
	assert.False(t, notify)
	assert.Nil(t, pct, "b should have been evicted and re-baselined as a first observation")
}
