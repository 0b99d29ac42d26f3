package estimator

import (
	"math"
	"testing"
)

func TestNormalQuadrature_Moments(t *testing.T) {
	nodes, weights := normalQuadrature(21)

	total, mean, second := 0.0, 0.0, 0.0
	for k := range nodes {
		total += weights[k]
		mean += weights[k] * nodes[k]
		second += weights[k] * nodes[k] * nodes[k]
	}

	if math.Abs(total-1) > 1e-10 {
		t.Errorf("weights sum to %v, want 1", total)
	}
	if math.Abs(mean) > 1e-10 {
		t.Errorf("E[Z] = %v, want 0", mean)
	}
	if math.Abs(second-1) > 1e-10 {
		t.Errorf("E[Z²] = %v, want 1", second)
	}
}

func TestLogLogistic_Stable(t *testing.T) {
	for _, x := range []float64{-700, -30, -1, 0, 1, 30, 700} {
		got := logLogistic(x)
		if math.IsNaN(got) || math.IsInf(got, 1) {
			t.Errorf("logLogistic(%v) = %v", x, got)
		}
		if got > 0 {
			t.Errorf("logLogistic(%v) = %v, want <= 0", x, got)
		}
	}

	// Matches the naive formula where that formula is stable.
	for _, x := range []float64{-5, -0.5, 0, 0.5, 5} {
		want := math.Log(1.0 / (1.0 + math.Exp(-x)))
		if math.Abs(logLogistic(x)-want) > 1e-12 {
			t.Errorf("logLogistic(%v) = %v, want %v", x, logLogistic(x), want)
		}
	}
}
