package rrweb

import "time"

// DefaultRateWindow is the sliding window used for recent rates.
const DefaultRateWindow = 10 * time.Second

// rateSample is one received message at a point in time.
type rateSample struct {
	at    time.Time
	bytes int64
}

// rateWindow tracks message and byte rates over a sliding time window.
// It is not safe for concurrent use; the Collector guards it.
type rateWindow struct {
	window     time.Duration
	samples    []rateSample
	totalBytes int64
}

func newRateWindow(window time.Duration) *rateWindow {
	if window <= 0 {
		window = DefaultRateWindow
	}
	return &rateWindow{
		window:  window,
		samples: make([]rateSample, 0, 64),
	}
}

// update adds a message of size bytes received at now.
func (r *rateWindow) update(bytes int64, now time.Time) {
	r.removeExpired(now)
	r.samples = append(r.samples, rateSample{at: now, bytes: bytes})
	r.totalBytes += bytes
}

// rate returns messages and bytes per second over the samples still in the
// window. ok is false with fewer than two samples or under 1ms of span.
func (r *rateWindow) rate(now time.Time) (perSec, bytesPerSec float64, ok bool) {
	r.removeExpired(now)
	if len(r.samples) < 2 {
		return 0, 0, false
	}

	elapsed := r.samples[len(r.samples)-1].at.Sub(r.samples[0].at)
	if elapsed < time.Millisecond {
		return 0, 0, false
	}
	secs := elapsed.Seconds()
	return float64(len(r.samples)) / secs, float64(r.totalBytes) / secs, true
}

// removeExpired drops samples older than the window. Samples exactly at the
// cutoff are kept.
func (r *rateWindow) removeExpired(now time.Time) {
	cutoff := now.Add(-r.window)

	expired := 0
	for i, s := range r.samples {
		if !s.at.Before(cutoff) {
			break
		}
		r.totalBytes -= s.bytes
		expired = i + 1
	}
	if expired > 0 {
		// Copy down so the backing array does not grow without bound.
		n := copy(r.samples, r.samples[expired:])
		r.samples = r.samples[:n]
	}
}
