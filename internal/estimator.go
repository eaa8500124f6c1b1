// estimator.go
package internal

import "time"

// RateEstimator converts periodic buffer-level telemetry into a
// smoothed net generation rate (energy units per second). Positive
// means the buffer is filling faster than anything drains it.
//
// Samples are kept in a bounded FIFO window; the exposed estimate is
// the arithmetic mean over the retained samples.
type RateEstimator struct {
	window   int
	samples  []float64
	estimate float64

	primed  bool
	lastAt  time.Time
	lastSat float64 // fraction of capacity at last accepted sample
}

func NewRateEstimator(window int) *RateEstimator {
	if window < 1 {
		window = 1
	}
	return &RateEstimator{window: window, samples: make([]float64, 0, window)}
}

// Update records one telemetry observation. The first call only primes
// the baseline. Samples with a non-advancing clock or a missing
// capacity are silently discarded.
func (e *RateEstimator) Update(now time.Time, saturation, maxSaturation float64) {
	if maxSaturation <= 0 {
		return
	}
	frac := saturation / maxSaturation
	if !e.primed {
		e.primed = true
		e.lastAt = now
		e.lastSat = frac
		return
	}
	dt := now.Sub(e.lastAt).Seconds()
	if dt <= 0 {
		return
	}
	rate := (frac - e.lastSat) * maxSaturation / dt
	e.lastAt = now
	e.lastSat = frac

	e.samples = append(e.samples, rate)
	if len(e.samples) > e.window {
		e.samples = e.samples[1:]
	}
	var sum float64
	for _, s := range e.samples {
		sum += s
	}
	e.estimate = sum / float64(len(e.samples))
}

// Estimate returns the current mean rate. Zero until at least one
// sample has been accepted.
func (e *RateEstimator) Estimate() float64 { return e.estimate }

// Samples reports how many observations the window currently holds.
func (e *RateEstimator) Samples() int { return len(e.samples) }

// Reset drops the window and the baseline, as at re-initialization.
func (e *RateEstimator) Reset() {
	e.samples = e.samples[:0]
	e.estimate = 0
	e.primed = false
}
