package estimator

import (
	"math"

	"gonum.org/v1/gonum/integrate/quad"
)

// defaultQuadraturePoints balances integration accuracy against cost;
// 21 nodes is ample for a unit-scale latent trait.
const defaultQuadraturePoints = 21

// normalQuadrature returns abscissae and weights for integrating a
// function against the standard normal density: E[f(Z)] ≈ Σ w_k f(z_k).
// Gauss-Hermite locations from gonum are rescaled from the e^{-x²}
// weight function to the N(0,1) density.
func normalQuadrature(n int) (nodes, weights []float64) {
	x := make([]float64, n)
	w := make([]float64, n)
	quad.Hermite{}.FixedLocations(x, w, math.Inf(-1), math.Inf(1))

	nodes = make([]float64, n)
	weights = make([]float64, n)
	for k := 0; k < n; k++ {
		nodes[k] = math.Sqrt2 * x[k]
		weights[k] = w[k] / math.SqrtPi
	}
	return nodes, weights
}
