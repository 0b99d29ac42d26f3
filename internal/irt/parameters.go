package irt

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Parameters holds the latent person and item parameters of a
// one-parameter logistic model: one ability per subject and one
// difficulty per item. Values are immutable once drawn; estimators
// never see them, only the comparator does.
type Parameters struct {
	Ability    []float64
	Difficulty []float64
}

// NumSubjects returns the number of subjects in the design.
func (p Parameters) NumSubjects() int { return len(p.Ability) }

// NumItems returns the number of items in the design.
func (p Parameters) NumItems() int { return len(p.Difficulty) }

// Validate checks that the design is large enough to estimate.
// Degenerate sizes (fewer than 2 subjects or 2 items) are rejected.
func (p Parameters) Validate() error {
	if len(p.Ability) < 2 {
		return fmt.Errorf("need at least 2 subjects, got %d", len(p.Ability))
	}
	if len(p.Difficulty) < 2 {
		return fmt.Errorf("need at least 2 items, got %d", len(p.Difficulty))
	}
	return nil
}

// DrawParameters draws true abilities and difficulties from a standard
// normal distribution over the given source.
func DrawParameters(nSubj, nItem int, src rand.Source) Parameters {
	norm := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	p := Parameters{
		Ability:    make([]float64, nSubj),
		Difficulty: make([]float64, nItem),
	}
	for i := range p.Ability {
		p.Ability[i] = norm.Rand()
	}
	for j := range p.Difficulty {
		p.Difficulty[j] = norm.Rand()
	}
	return p
}
