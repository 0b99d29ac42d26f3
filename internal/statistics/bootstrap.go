package statistics

import (
	"math"
	"math/rand"
	"sort"
)

// ConfidenceInterval holds the result of a bootstrap confidence
// interval computation over per-replication estimates.
type ConfidenceInterval struct {
	Lower           float64 `json:"lower"`
	Upper           float64 `json:"upper"`
	Mean            float64 `json:"mean"`
	ConfidenceLevel float64 `json:"confidence_level"`
	NumBootstraps   int     `json:"num_bootstraps"`
}

// DefaultBootstrapIterations is the number of bootstrap resamples used
// when a Bootstrap is constructed with a non-positive iteration count.
const DefaultBootstrapIterations = 2000

// Bootstrap computes percentile-method confidence intervals by
// resampling with replacement. A negative seed uses a non-deterministic
// source; study code passes a seed derived from the study seed so the
// interval is reproducible.
type Bootstrap struct {
	Iterations int
	Seed       int64
}

// CI computes a bootstrap confidence interval for the mean of values.
// confidenceLevel should be in (0, 1), e.g. 0.95. Returns a degenerate
// interval (all bounds equal to the mean) with fewer than 2 data points.
func (b Bootstrap) CI(values []float64, confidenceLevel float64) ConfidenceInterval {
	n := len(values)
	if n < 2 {
		m := Mean(values)
		return ConfidenceInterval{
			Lower:           m,
			Upper:           m,
			Mean:            m,
			ConfidenceLevel: confidenceLevel,
			NumBootstraps:   0,
		}
	}

	iters := b.Iterations
	if iters <= 0 {
		iters = DefaultBootstrapIterations
	}

	var rng *rand.Rand
	if b.Seed >= 0 {
		rng = rand.New(rand.NewSource(b.Seed))
	} else {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	// Resample with replacement, keeping the mean of each resample.
	bootMeans := make([]float64, iters)
	sample := make([]float64, n)
	for i := 0; i < iters; i++ {
		for j := 0; j < n; j++ {
			sample[j] = values[rng.Intn(n)]
		}
		bootMeans[i] = Mean(sample)
	}

	sort.Float64s(bootMeans)

	// Percentile method.
	alpha := 1.0 - confidenceLevel
	loIdx := int(math.Floor(alpha / 2.0 * float64(iters)))
	hiIdx := int(math.Floor((1.0 - alpha/2.0) * float64(iters)))
	if hiIdx >= iters {
		hiIdx = iters - 1
	}

	return ConfidenceInterval{
		Lower:           bootMeans[loIdx],
		Upper:           bootMeans[hiIdx],
		Mean:            Mean(values),
		ConfidenceLevel: confidenceLevel,
		NumBootstraps:   iters,
	}
}
