package estimator

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/irt-tools/irtsim/internal/irt"
)

// RaschOptions tunes the marginal maximum likelihood fit.
// Zero values fall back to defaults.
type RaschOptions struct {
	QuadraturePoints int
	MaxIterations    int
	Tolerance        float64
}

// RaschFitter estimates item difficulties for the one-parameter
// logistic model by marginal maximum likelihood: ability is integrated
// out against its N(0,1) population distribution with Gauss-Hermite
// quadrature and the difficulty vector maximizes the marginal
// likelihood. Abilities are then recovered by EAP scoring keyed on the
// response pattern, so subjects with identical patterns receive exactly
// equal estimates.
type RaschFitter struct {
	name string
	opts RaschOptions
}

// NewRaschFitter builds a Rasch fitter with the given options.
func NewRaschFitter(name string, opts RaschOptions) *RaschFitter {
	if name == "" {
		name = "rasch-mml"
	}
	if opts.QuadraturePoints <= 0 {
		opts.QuadraturePoints = defaultQuadraturePoints
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 200
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = 1e-6
	}
	return &RaschFitter{name: name, opts: opts}
}

func (f *RaschFitter) Name() string { return f.name }

func (f *RaschFitter) Type() Type { return TypeRasch }

// patternGroup collapses all subjects sharing one response pattern.
// The marginal likelihood depends on the data only through patterns and
// their multiplicities, and the grouping makes equal-pattern-equal-score
// a structural property instead of a numerical accident.
type patternGroup struct {
	key      irt.Pattern
	count    float64
	y        []float64
	subjects []int
}

func groupPatterns(resp *mat.Dense) ([]patternGroup, []int, error) {
	nSubj, nItem := resp.Dims()

	byKey := make(map[irt.Pattern]int)
	groups := make([]patternGroup, 0, nSubj)
	groupOf := make([]int, nSubj)

	for i := 0; i < nSubj; i++ {
		key, err := irt.RowPattern(resp, i)
		if err != nil {
			return nil, nil, err
		}

		gi, ok := byKey[key]
		if !ok {
			y := make([]float64, nItem)
			for j := 0; j < nItem; j++ {
				y[j] = resp.At(i, j)
			}
			gi = len(groups)
			groups = append(groups, patternGroup{key: key, y: y})
			byKey[key] = gi
		}
		groups[gi].count++
		groups[gi].subjects = append(groups[gi].subjects, i)
		groupOf[i] = gi
	}
	return groups, groupOf, nil
}

// Fit recovers difficulty and ability estimates from a fully crossed
// binary response matrix. Zero-variance item columns are fatal: their
// difficulty has no interior maximum.
func (f *RaschFitter) Fit(resp *mat.Dense) (Estimates, error) {
	if err := validateShape(resp); err != nil {
		return Estimates{}, fmt.Errorf("rasch: %w", err)
	}
	if err := checkItemVariance(resp); err != nil {
		return Estimates{}, fmt.Errorf("rasch: %w", err)
	}

	nSubj, nItem := resp.Dims()
	groups, groupOf, err := groupPatterns(resp)
	if err != nil {
		return Estimates{}, fmt.Errorf("rasch: %w", err)
	}

	nodes, weights := normalQuadrature(f.opts.QuadraturePoints)
	lik := raschLikelihood{
		groups:  groups,
		nItem:   nItem,
		nodes:   nodes,
		weights: weights,
	}

	// Classical starting values: difficulty from the observed
	// endorsement rate on the logit scale.
	delta0 := make([]float64, nItem)
	for j := 0; j < nItem; j++ {
		sum := 0.0
		for i := 0; i < nSubj; i++ {
			sum += resp.At(i, j)
		}
		pj := sum / float64(nSubj)
		delta0[j] = -math.Log(pj / (1 - pj))
	}

	problem := optimize.Problem{
		Func: lik.negLogLik,
		Grad: lik.grad,
	}
	settings := &optimize.Settings{
		GradientThreshold: f.opts.Tolerance,
		MajorIterations:   f.opts.MaxIterations,
	}

	result, err := optimize.Minimize(problem, delta0, settings, &optimize.BFGS{})
	if err != nil {
		return Estimates{}, fmt.Errorf("rasch: %w: %v", ErrNotConverged, err)
	}
	if result.Status == optimize.IterationLimit || result.Status == optimize.FunctionEvaluationLimit {
		return Estimates{}, fmt.Errorf("rasch: %w after %d iterations", ErrNotConverged, f.opts.MaxIterations)
	}

	delta := result.X

	// EAP scoring: one posterior mean per distinct pattern, assigned to
	// every subject sharing it.
	scores := lik.eapScores(delta)
	ability := make([]float64, nSubj)
	for i := 0; i < nSubj; i++ {
		ability[i] = scores[groupOf[i]]
	}

	return Estimates{Ability: ability, Difficulty: delta}, nil
}

// raschLikelihood evaluates the pattern-collapsed marginal likelihood.
type raschLikelihood struct {
	groups  []patternGroup
	nItem   int
	nodes   []float64
	weights []float64
}

// grid precomputes log p, log(1-p) and p at every (node, item) cell for
// the current difficulty vector.
func (l *raschLikelihood) grid(delta []float64) (lp, lq, p []float64) {
	nK, nJ := len(l.nodes), l.nItem
	lp = make([]float64, nK*nJ)
	lq = make([]float64, nK*nJ)
	p = make([]float64, nK*nJ)

	for k := 0; k < nK; k++ {
		for j := 0; j < nJ; j++ {
			x := l.nodes[k] - delta[j]
			ls := logLogistic(x)
			idx := k*nJ + j
			lp[idx] = ls
			lq[idx] = ls - x
			p[idx] = irt.Logistic(x)
		}
	}
	return lp, lq, p
}

// nodeLogLik fills ll with the log-likelihood of group g's pattern at
// every quadrature node.
func (l *raschLikelihood) nodeLogLik(g *patternGroup, lp, lq []float64, ll []float64) {
	nJ := l.nItem
	for k := range l.nodes {
		s := 0.0
		base := k * nJ
		for j := 0; j < nJ; j++ {
			if g.y[j] != 0 {
				s += lp[base+j]
			} else {
				s += lq[base+j]
			}
		}
		ll[k] = s
	}
}

func (l *raschLikelihood) negLogLik(delta []float64) float64 {
	lp, lq, _ := l.grid(delta)
	ll := make([]float64, len(l.nodes))

	total := 0.0
	for gi := range l.groups {
		g := &l.groups[gi]
		l.nodeLogLik(g, lp, lq, ll)

		// Log-sum-exp against the quadrature weights.
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
		total -= g.count * (m + math.Log(sum))
	}
	return total
}

func (l *raschLikelihood) grad(grad, delta []float64) {
	lp, lq, p := l.grid(delta)
	ll := make([]float64, len(l.nodes))
	post := make([]float64, len(l.nodes))
	nJ := l.nItem

	for j := range grad {
		grad[j] = 0
	}

	for gi := range l.groups {
		g := &l.groups[gi]
		l.nodeLogLik(g, lp, lq, ll)
		posteriorWeights(ll, l.weights, post)

		for j := 0; j < nJ; j++ {
			s := 0.0
			for k := range l.nodes {
				s += post[k] * (g.y[j] - p[k*nJ+j])
			}
			grad[j] += g.count * s
		}
	}
}

// eapScores returns the posterior expected ability per pattern group.
func (l *raschLikelihood) eapScores(delta []float64) []float64 {
	lp, lq, _ := l.grid(delta)
	ll := make([]float64, len(l.nodes))
	post := make([]float64, len(l.nodes))

	scores := make([]float64, len(l.groups))
	for gi := range l.groups {
		g := &l.groups[gi]
		l.nodeLogLik(g, lp, lq, ll)
		posteriorWeights(ll, l.weights, post)

		eap := 0.0
		for k, theta := range l.nodes {
			eap += post[k] * theta
		}
		scores[gi] = eap
	}
	return scores
}

// posteriorWeights normalizes weight*exp(ll) into post, shifting by the
// max log-likelihood to avoid underflow.
func posteriorWeights(ll, weights, post []float64) {
	m := math.Inf(-1)
	for _, v := range ll {
		if v > m {
			m = v
		}
	}
	sum := 0.0
	for k, v := range ll {
		post[k] = weights[k] * math.Exp(v-m)
		sum += post[k]
	}
	for k := range post {
		post[k] /= sum
	}
}

// logLogistic computes log(logistic(x)) without overflow on either tail.
func logLogistic(x float64) float64 {
	if x > 0 {
		return -math.Log1p(math.Exp(-x))
	}
	return x - math.Log1p(math.Exp(x))
}
