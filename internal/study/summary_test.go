package study

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/irt-tools/irtsim/internal/irt"
)

func TestSummarize_KnownValues(t *testing.T) {
	outcome := &Outcome{
		Truth: irt.Parameters{
			Ability:    []float64{0.0, 1.0},
			Difficulty: []float64{0.5},
		},
		Ability: mat.NewDense(3, 2, []float64{
			0.1, 1.2,
			-0.1, 0.8,
			0.0, 1.0,
		}),
		Difficulty:   mat.NewDense(3, 1, []float64{0.6, 0.4, 0.5}),
		Replications: 3,
		Completed:    3,
	}

	s := outcome.Summarize(42)

	require.Len(t, s.Ability, 2)
	require.Len(t, s.Difficulty, 1)
	assert.Equal(t, 3, s.Replications)
	assert.Equal(t, 3, s.Completed)

	assert.InDelta(t, 0.0, s.Ability[0].Mean, 1e-12)
	assert.InDelta(t, 0.0, s.Ability[0].Bias, 1e-12)
	assert.InDelta(t, 1.0, s.Ability[1].Mean, 1e-12)
	assert.InDelta(t, 0.0, s.Ability[1].Bias, 1e-12)

	d := s.Difficulty[0]
	assert.Equal(t, 0, d.Index)
	assert.InDelta(t, 0.5, d.Mean, 1e-12)
	assert.InDelta(t, 0.0, d.Bias, 1e-12)
	assert.InDelta(t, 0.1, d.StdDev, 1e-12)
}

func TestSummarize_SkipsNaNRows(t *testing.T) {
	nan := math.NaN()
	outcome := &Outcome{
		Truth: irt.Parameters{
			Ability:    []float64{0.0, 0.0},
			Difficulty: []float64{1.0},
		},
		Ability: mat.NewDense(3, 2, []float64{
			0.2, 0.4,
			nan, nan,
			0.4, 0.6,
		}),
		Difficulty:   mat.NewDense(3, 1, []float64{2.0, nan, 4.0}),
		Replications: 3,
		Completed:    2,
		Failed:       []FailedReplication{{Replication: 1}},
	}

	s := outcome.Summarize(42)

	assert.InDelta(t, 0.3, s.Ability[0].Mean, 1e-12)
	assert.InDelta(t, 3.0, s.Difficulty[0].Mean, 1e-12)
	assert.InDelta(t, 2.0, s.Difficulty[0].Bias, 1e-12)
	assert.False(t, math.IsNaN(s.Difficulty[0].StdDev))
}

func TestSummarize_ReproducibleCI(t *testing.T) {
	outcome := &Outcome{
		Truth: irt.Parameters{
			Ability:    []float64{0, 0},
			Difficulty: []float64{0},
		},
		Ability:      mat.NewDense(4, 2, []float64{1, 2, 3, 4, 5, 6, 7, 8}),
		Difficulty:   mat.NewDense(4, 1, []float64{1, 2, 3, 4}),
		Replications: 4,
		Completed:    4,
	}

	a := outcome.Summarize(7)
	b := outcome.Summarize(7)
	assert.Equal(t, a, b)
}

func TestSummarize_LargeSeedStaysDeterministic(t *testing.T) {
	outcome := &Outcome{
		Truth: irt.Parameters{
			Ability:    []float64{0, 0},
			Difficulty: []float64{0},
		},
		Ability:      mat.NewDense(4, 2, []float64{1, 2, 3, 4, 5, 6, 7, 8}),
		Difficulty:   mat.NewDense(4, 1, []float64{1, 2, 3, 4}),
		Replications: 4,
		Completed:    4,
	}

	// Seeds past 2^63 would wrap negative in a plain int64 cast and land
	// on the non-deterministic bootstrap path.
	a := outcome.Summarize(math.MaxUint64)
	b := outcome.Summarize(math.MaxUint64)
	assert.Equal(t, a, b)
}
