package statistics

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Comparison holds the agreement measures between two parameter
// vectors, typically (estimate, truth) or (estimate A, estimate B).
type Comparison struct {
	Correlation float64 `json:"correlation"`
	MSE         float64 `json:"mse"`
	N           int     `json:"n"`
}

// Compare computes the Pearson correlation and mean squared error
// between two vectors of equal length. A zero-variance input makes the
// correlation undefined; the NaN is returned as-is rather than masked.
// Mismatched lengths are a caller bug and panic.
func Compare(a, b []float64) Comparison {
	if len(a) != len(b) {
		panic(fmt.Sprintf("statistics: vector length mismatch: %d vs %d", len(a), len(b)))
	}

	sumSq := 0.0
	for i := range a {
		d := a[i] - b[i]
		sumSq += d * d
	}

	return Comparison{
		Correlation: stat.Correlation(a, b, nil),
		MSE:         sumSq / float64(len(a)),
		N:           len(a),
	}
}
