// estimator_test.go
package internal

import (
	"math"
	"testing"
	"time"
)

func TestEstimatorTwoSampleRate(t *testing.T) {
	e := NewRateEstimator(10)
	t0 := time.Unix(1000, 0)

	e.Update(t0, 500_000, 1_000_000) // baseline only
	if got := e.Estimate(); got != 0 {
		t.Fatalf("estimate after baseline: got %v want 0", got)
	}
	if e.Samples() != 0 {
		t.Fatalf("samples after baseline: got %d want 0", e.Samples())
	}

	e.Update(t0.Add(5*time.Second), 600_000, 1_000_000)
	want := (0.10 * 1_000_000) / 5.0
	if got := e.Estimate(); math.Abs(got-want) > 1e-6 {
		t.Fatalf("estimate: got %v want %v", got, want)
	}
}

func TestEstimatorDiscardsNonAdvancingClock(t *testing.T) {
	e := NewRateEstimator(10)
	t0 := time.Unix(1000, 0)
	e.Update(t0, 100, 1000)
	e.Update(t0, 500, 1000)                  // same timestamp
	e.Update(t0.Add(-time.Second), 500, 1000) // clock went backwards
	if e.Samples() != 0 {
		t.Fatalf("samples: got %d want 0", e.Samples())
	}
	if e.Estimate() != 0 {
		t.Fatalf("estimate: got %v want 0", e.Estimate())
	}
}

func TestEstimatorSkipsMissingCapacity(t *testing.T) {
	e := NewRateEstimator(10)
	t0 := time.Unix(1000, 0)
	e.Update(t0, 100, 0)
	e.Update(t0.Add(time.Second), 200, -5)
	if e.Samples() != 0 || e.Estimate() != 0 {
		t.Fatalf("malformed input must be a no-op, got %d samples estimate %v", e.Samples(), e.Estimate())
	}
}

func TestEstimatorWindowEviction(t *testing.T) {
	e := NewRateEstimator(3)
	t0 := time.Unix(1000, 0)
	// rates produced: 10, 20, 30, 40 over 1s intervals of a 1000-unit buffer
	sats := []float64{0, 10, 30, 60, 100}
	for i, s := range sats {
		e.Update(t0.Add(time.Duration(i)*time.Second), s, 1000)
	}
	if e.Samples() != 3 {
		t.Fatalf("window size: got %d want 3", e.Samples())
	}
	// oldest sample (10) evicted; mean of 20, 30, 40
	if got, want := e.Estimate(), 30.0; math.Abs(got-want) > 1e-9 {
		t.Fatalf("estimate after eviction: got %v want %v", got, want)
	}
}

func TestEstimatorReset(t *testing.T) {
	e := NewRateEstimator(5)
	t0 := time.Unix(1000, 0)
	e.Update(t0, 100, 1000)
	e.Update(t0.Add(time.Second), 200, 1000)
	if e.Samples() != 1 {
		t.Fatalf("samples: got %d want 1", e.Samples())
	}
	e.Reset()
	if e.Samples() != 0 || e.Estimate() != 0 {
		t.Fatalf("reset must clear window and estimate")
	}
	// first update after reset primes the baseline again
	e.Update(t0.Add(2*time.Second), 300, 1000)
	if e.Samples() != 0 {
		t.Fatalf("post-reset baseline must not add a sample")
	}
}
