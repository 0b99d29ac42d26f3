package estimator

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/irt-tools/irtsim/internal/irt"
)

// MixedOptions tunes the mixed-model fit. Zero values fall back to
// defaults.
type MixedOptions struct {
	QuadraturePoints int
	MaxIterations    int
	Tolerance        float64

	// ScaleFloor is the smallest random-intercept scale accepted before
	// the fit is declared singular.
	ScaleFloor float64
}

// MixedFitter estimates the model endorse ~ -1 + item + (1|subj) with a
// binomial family and logit link: every item gets an explicit fixed
// coefficient (intercept suppressed) and subjects share a normal random
// intercept with estimated scale. The marginal likelihood is integrated
// by Gauss-Hermite quadrature and maximized over the item coefficients
// and the log scale jointly. Item difficulty is the negated coefficient
// (the model parameterizes endorsement propensity); subject ability is
// the conditional mode of that subject's random effect.
type MixedFitter struct {
	name string
	opts MixedOptions
}

// NewMixedFitter builds a mixed-model fitter with the given options.
func NewMixedFitter(name string, opts MixedOptions) *MixedFitter {
	if name == "" {
		name = "glmm-agq"
	}
	if opts.QuadraturePoints <= 0 {
		opts.QuadraturePoints = defaultQuadraturePoints
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 300
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = 1e-6
	}
	if opts.ScaleFloor <= 0 {
		opts.ScaleFloor = 1e-4
	}
	return &MixedFitter{name: name, opts: opts}
}

func (f *MixedFitter) Name() string { return f.name }

func (f *MixedFitter) Type() Type { return TypeMixed }

// FitLong fits the mixed model to a long-format response set, the
// natural input shape for the formula interface. Subject and item
// indices are the categorical grouping variables.
func (f *MixedFitter) FitLong(rows []irt.Response, nSubj, nItem int) (Estimates, error) {
	resp, err := irt.WideTable(rows, nSubj, nItem)
	if err != nil {
		return Estimates{}, fmt.Errorf("mixed: %w", err)
	}
	return f.Fit(resp)
}

// Fit fits the mixed model to a wide response matrix. Zero-variance
// item columns are fatal: their fixed-effect coefficient diverges.
func (f *MixedFitter) Fit(resp *mat.Dense) (Estimates, error) {
	if err := validateShape(resp); err != nil {
		return Estimates{}, fmt.Errorf("mixed: %w", err)
	}
	if err := checkItemVariance(resp); err != nil {
		return Estimates{}, fmt.Errorf("mixed: %w", err)
	}

	nSubj, nItem := resp.Dims()
	y := make([][]float64, nSubj)
	for i := 0; i < nSubj; i++ {
		y[i] = make([]float64, nItem)
		for j := 0; j < nItem; j++ {
			y[i][j] = resp.At(i, j)
		}
	}

	nodes, weights := normalQuadrature(f.opts.QuadraturePoints)
	lik := mixedLikelihood{
		y:       y,
		nItem:   nItem,
		nodes:   nodes,
		weights: weights,
	}

	// Start at the marginal logits with unit scale.
	x0 := make([]float64, nItem+1)
	for j := 0; j < nItem; j++ {
		sum := 0.0
		for i := 0; i < nSubj; i++ {
			sum += y[i][j]
		}
		pj := sum / float64(nSubj)
		x0[j] = math.Log(pj / (1 - pj))
	}
	x0[nItem] = 0 // log scale

	problem := optimize.Problem{
		Func: lik.negLogLik,
		Grad: lik.grad,
	}
	settings := &optimize.Settings{
		GradientThreshold: f.opts.Tolerance,
		MajorIterations:   f.opts.MaxIterations,
	}

	result, err := optimize.Minimize(problem, x0, settings, &optimize.BFGS{})
	if err != nil {
		return Estimates{}, fmt.Errorf("mixed: %w: %v", ErrNotConverged, err)
	}
	if result.Status == optimize.IterationLimit || result.Status == optimize.FunctionEvaluationLimit {
		return Estimates{}, fmt.Errorf("mixed: %w after %d iterations", ErrNotConverged, f.opts.MaxIterations)
	}

	beta := result.X[:nItem]
	sigma := math.Exp(result.X[nItem])
	if sigma < f.opts.ScaleFloor {
		return Estimates{}, fmt.Errorf("mixed: %w (scale %.3g)", ErrSingularFit, sigma)
	}

	// Difficulty is the negated endorsement coefficient.
	difficulty := make([]float64, nItem)
	for j := 0; j < nItem; j++ {
		difficulty[j] = -beta[j]
	}

	// Ability is the conditional mode of each subject's random effect
	// given the fixed coefficients and scale.
	ability := make([]float64, nSubj)
	for i := 0; i < nSubj; i++ {
		ability[i] = conditionalMode(y[i], beta, sigma)
	}

	return Estimates{Ability: ability, Difficulty: difficulty}, nil
}

// mixedLikelihood evaluates the per-subject marginal likelihood. The
// parameter vector is [beta_0..beta_{J-1}, log sigma].
type mixedLikelihood struct {
	y       [][]float64
	nItem   int
	nodes   []float64
	weights []float64
}

// grid precomputes log p, log(1-p) and p at every (node, item) cell for
// the linear predictor beta_j + sigma*z_k.
func (l *mixedLikelihood) grid(beta []float64, sigma float64) (lp, lq, p []float64) {
	nK, nJ := len(l.nodes), l.nItem
	lp = make([]float64, nK*nJ)
	lq = make([]float64, nK*nJ)
	p = make([]float64, nK*nJ)

	for k := 0; k < nK; k++ {
		for j := 0; j < nJ; j++ {
			eta := beta[j] + sigma*l.nodes[k]
			ls := logLogistic(eta)
			idx := k*nJ + j
			lp[idx] = ls
			lq[idx] = ls - eta
			p[idx] = irt.Logistic(eta)
		}
	}
	return lp, lq, p
}

func (l *mixedLikelihood) nodeLogLik(yi []float64, lp, lq []float64, ll []float64) {
	nJ := l.nItem
	for k := range l.nodes {
		s := 0.0
		base := k * nJ
		for j := 0; j < nJ; j++ {
			if yi[j] != 0 {
				s += lp[base+j]
			} else {
				s += lq[base+j]
			}
		}
		ll[k] = s
	}
}

func (l *mixedLikelihood) negLogLik(x []float64) float64 {
	beta, sigma := x[:l.nItem], math.Exp(x[l.nItem])
	lp, lq, _ := l.grid(beta, sigma)
	ll := make([]float64, len(l.nodes))

	total := 0.0
	for _, yi := range l.y {
		l.nodeLogLik(yi, lp, lq, ll)

		m := math.Inf(-1)
		for _, v := range ll {
			if v > m {
				m = v
			}
		}
		sum := 0.0
		for k, v := range ll {
			sum += l.weights[k] * math.Exp(v-m)
		}
		total -= m + math.Log(sum)
	}
	return total
}

func (l *mixedLikelihood) grad(grad, x []float64) {
	beta, sigma := x[:l.nItem], math.Exp(x[l.nItem])
	lp, lq, p := l.grid(beta, sigma)
	ll := make([]float64, len(l.nodes))
	post := make([]float64, len(l.nodes))
	nJ := l.nItem

	for j := range grad {
		grad[j] = 0
	}

	for _, yi := range l.y {
		l.nodeLogLik(yi, lp, lq, ll)
		posteriorWeights(ll, l.weights, post)

		for k := range l.nodes {
			resid := 0.0
			base := k * nJ
			for j := 0; j < nJ; j++ {
				r := yi[j] - p[base+j]
				grad[j] -= post[k] * r
				resid += r
			}
			// Chain rule through sigma = exp(s): d eta/d s = sigma*z_k.
			grad[nJ] -= post[k] * sigma * l.nodes[k] * resid
		}
	}
}

// conditionalMode maximizes the joint density of one subject's
// responses and random effect over the effect, by Newton iteration.
// The objective is strictly concave, so convergence is fast and global.
func conditionalMode(yi, beta []float64, sigma float64) float64 {
	u := 0.0
	for iter := 0; iter < 50; iter++ {
		g := -u / (sigma * sigma)
		h := 1.0 / (sigma * sigma)
		for j, b := range beta {
			p := irt.Logistic(b + u)
			g += yi[j] - p
			h += p * (1 - p)
		}
		step := g / h
		u += step
		if math.Abs(step) < 1e-10 {
			break
		}
	}
	return u
}
