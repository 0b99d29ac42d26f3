package estimator

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"gonum.org/v1/gonum/mat"
)

type Type string

const (
	// TypeRasch fits the one-parameter logistic model by marginal
	// maximum likelihood with EAP pattern scoring.
	TypeRasch Type = "rasch"

	// TypeMixed fits a binomial mixed model with item fixed effects and
	// a subject random intercept.
	TypeMixed Type = "mixed"
)

// Estimates is a parameter estimate pair: one ability per subject and
// one difficulty per item, on the latent logit scale.
type Estimates struct {
	Ability    []float64 `json:"ability"`
	Difficulty []float64 `json:"difficulty"`
}

// Fitter is the capability interface for parameter-recovery backends.
// Implementations are pure given their input matrix; they hold options,
// never per-fit state, so a single Fitter is safe to reuse across
// replications.
type Fitter interface {
	// Identifier returns the configured fitter name.
	Name() string

	// Category returns the backend type.
	Type() Type

	// Fit recovers ability and difficulty estimates from a fully
	// crossed binary response matrix (rows subjects, columns items).
	Fit(resp *mat.Dense) (Estimates, error)
}

// Create creates a fitter from the global registry. params carries
// backend-specific options from the study config.
func Create(fitterType Type, identifier string, params map[string]any) (Fitter, error) {
	switch fitterType {
	case TypeRasch:
		var v *struct {
			QuadraturePoints int     `mapstructure:"quadrature_points"`
			MaxIterations    int     `mapstructure:"max_iterations"`
			Tolerance        float64 `mapstructure:"tolerance"`
		}

		if err := mapstructure.Decode(params, &v); err != nil {
			return nil, err
		}

		opts := RaschOptions{}
		if v != nil {
			opts.QuadraturePoints = v.QuadraturePoints
			opts.MaxIterations = v.MaxIterations
			opts.Tolerance = v.Tolerance
		}
		return NewRaschFitter(identifier, opts), nil
	case TypeMixed:
		var v *struct {
			QuadraturePoints int     `mapstructure:"quadrature_points"`
			MaxIterations    int     `mapstructure:"max_iterations"`
			Tolerance        float64 `mapstructure:"tolerance"`
			ScaleFloor       float64 `mapstructure:"scale_floor"`
		}

		if err := mapstructure.Decode(params, &v); err != nil {
			return nil, err
		}

		opts := MixedOptions{}
		if v != nil {
			opts.QuadraturePoints = v.QuadraturePoints
			opts.MaxIterations = v.MaxIterations
			opts.Tolerance = v.Tolerance
			opts.ScaleFloor = v.ScaleFloor
		}
		return NewMixedFitter(identifier, opts), nil
	default:
		return nil, fmt.Errorf("'%s' is not a valid fitter type", fitterType)
	}
}

// validateShape rejects designs too small to estimate.
func validateShape(resp *mat.Dense) error {
	nSubj, nItem := resp.Dims()
	if nSubj < 2 {
		return fmt.Errorf("need at least 2 subjects, got %d", nSubj)
	}
	if nItem < 2 {
		return fmt.Errorf("need at least 2 items, got %d", nItem)
	}
	return nil
}
