package irt

import "math"

// Logistic is the standard logistic function 1 / (1 + e^-x).
// It maps the ability-difficulty gap to an endorsement probability.
// Past |x| ≈ 36.8 the quotient saturates in float64, so the result is
// clamped to keep the open interval (0, 1) for every finite argument.
func Logistic(x float64) float64 {
	p := 1.0 / (1.0 + math.Exp(-x))
	if p == 0 {
		return math.SmallestNonzeroFloat64
	}
	if p == 1 {
		return math.Nextafter(1, 0)
	}
	return p
}

// EndorseProbability returns the one-parameter logistic model's
// probability that a subject with the given ability endorses an item
// with the given difficulty. Equal ability and difficulty yield 0.5.
func EndorseProbability(ability, difficulty float64) float64 {
	return Logistic(ability - difficulty)
}
