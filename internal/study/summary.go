package study

import (
	"math"

	"github.com/irt-tools/irtsim/internal/statistics"
)

// ParameterSummary describes the spread of one parameter's estimates
// across replications.
type ParameterSummary struct {
	Index  int                           `json:"index"`
	Truth  float64                       `json:"truth"`
	Mean   float64                       `json:"mean"`
	StdDev float64                       `json:"std_dev"`
	Bias   float64                       `json:"bias"`
	CI     statistics.ConfidenceInterval `json:"ci"`
}

// Summary holds the per-subject and per-item replication summaries.
type Summary struct {
	Ability      []ParameterSummary `json:"ability"`
	Difficulty   []ParameterSummary `json:"difficulty"`
	Replications int                `json:"replications"`
	Completed    int                `json:"completed"`
}

// Summarize computes mean, spread, bias and a bootstrap confidence
// interval for every parameter's estimates across replications. Rows
// from skipped replications (NaN) are excluded. bootstrapSeed keeps the
// intervals reproducible; pass the study seed. The high bit is masked
// off so seeds past 2^63 stay on the deterministic bootstrap path.
func (o *Outcome) Summarize(bootstrapSeed uint64) Summary {
	s := Summary{
		Replications: o.Replications,
		Completed:    o.Completed,
	}

	boot := statistics.Bootstrap{Seed: int64(bootstrapSeed & math.MaxInt64)}

	nSubj := len(o.Truth.Ability)
	s.Ability = make([]ParameterSummary, nSubj)
	for i := 0; i < nSubj; i++ {
		col := o.column(o.Ability, i)
		s.Ability[i] = summarize(i, o.Truth.Ability[i], col, boot)
	}

	nItem := len(o.Truth.Difficulty)
	s.Difficulty = make([]ParameterSummary, nItem)
	for j := 0; j < nItem; j++ {
		col := o.column(o.Difficulty, j)
		s.Difficulty[j] = summarize(j, o.Truth.Difficulty[j], col, boot)
	}

	return s
}

// column extracts one parameter's estimates, dropping NaN rows left by
// skipped replications.
func (o *Outcome) column(m interface{ At(i, j int) float64 }, j int) []float64 {
	col := make([]float64, 0, o.Replications)
	for r := 0; r < o.Replications; r++ {
		v := m.At(r, j)
		if !math.IsNaN(v) {
			col = append(col, v)
		}
	}
	return col
}

func summarize(index int, truth float64, estimates []float64, boot statistics.Bootstrap) ParameterSummary {
	mean := statistics.Mean(estimates)
	return ParameterSummary{
		Index:  index,
		Truth:  truth,
		Mean:   mean,
		StdDev: statistics.StdDev(estimates),
		Bias:   mean - truth,
		CI:     boot.CI(estimates, 0.95),
	}
}
