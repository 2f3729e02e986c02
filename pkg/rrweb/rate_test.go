package rrweb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/vstream/pkg/rrweb/internal"
)

func TestRateWindow_NotEnoughData(t *testing.T) {
	r := newRateWindow(time.Second)
	t0 := time.Now()

	_, _, ok := r.rate(t0)
	assert.False(t, ok, "no samples")

	r.update(100, t0)
	_, _, ok = r.rate(t0)
	assert.False(t, ok, "one sample")

	r.update(100, t0.Add(500*time.Microsecond))
	_, _, ok = r.rate(t0.Add(500 * time.Microsecond))
	assert.False(t, ok, "span under 1ms")
}

func TestRateWindow_Rate(t *testing.T) {
	r := newRateWindow(10 * time.Second)
	t0 := time.Now()

	// 5 messages of 200 bytes spread over 2 seconds.
	for i := 0; i < 5; i++ {
		r.update(200, t0.Add(time.Duration(i)*500*time.Millisecond))
	}

	perSec, bytesPerSec, ok := r.rate(t0.Add(2 * time.Second))
	require.True(t, ok)
	assert.InDelta(t, 2.5, perSec, 0.001)
	assert.InDelta(t, 500, bytesPerSec, 0.001)
}

func TestRateWindow_Expiry(t *testing.T) {
	r := newRateWindow(time.Second)
	t0 := time.Now()

	r.update(1000, t0)
	r.update(1000, t0.Add(100*time.Millisecond))
	r.update(10, t0.Add(1500*time.Millisecond))
	r.update(10, t0.Add(2000*time.Millisecond))

	perSec, bytesPerSec, ok := r.rate(t0.Add(2000 * time.Millisecond))
	require.True(t, ok)
	assert.Len(t, r.samples, 2, "samples older than the window are dropped")
	assert.InDelta(t, 4, perSec, 0.001)
	assert.InDelta(t, 40, bytesPerSec, 0.001)

	_, _, ok = r.rate(t0.Add(10 * time.Second))
	assert.False(t, ok, "everything expires after a long gap")
	assert.Zero(t, r.totalBytes)
}

func TestRateWindow_CutoffInclusive(t *testing.T) {
	r := newRateWindow(time.Second)
	t0 := time.Now()
	r.update(1, t0)
	r.update(1, t0.Add(time.Second))

	_, _, ok := r.rate(t0.Add(time.Second))
	assert.True(t, ok, "a sample exactly at the cutoff is kept")
}

func TestCollector_RecentRate(t *testing.T) {
	clock := internal.NewMockClock(time.Time{})
	c := NewCollector(WithClock(clock), WithRateWindow(2*time.Second))

	// A burst, then a quiet stretch, then a slower trickle.
	for i := 0; i < 10; i++ {
		require.NoError(t, c.AddFrame(frame(3)))
		clock.Advance(10 * time.Millisecond)
	}
	clock.Advance(10 * time.Second)
	for i := 0; i < 3; i++ {
		require.NoError(t, c.AddFrame(frame(3)))
		clock.Advance(500 * time.Millisecond)
	}

	s := c.Summary()
	assert.Equal(t, 13, s.TotalEvents)
	assert.InDelta(t, 3.0, s.RecentEventsPerSecond, 0.001, "only the trickle is in the window")
	assert.InDelta(t, 3.0*float64(len(frame(3))), s.RecentBytesPerSecond, 0.001)
	assert.Less(t, s.EventsPerSecond, s.RecentEventsPerSecond)
}
