package estimator

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrNotConverged reports that the optimizer exhausted its iteration
// budget without meeting the convergence criterion. Fatal for the
// replication that produced the data; retrying on the same matrix is
// pointless, a fresh draw is a caller decision.
var ErrNotConverged = errors.New("fit did not converge")

// ErrSingularFit reports that the mixed model's random-intercept scale
// collapsed toward zero, leaving the subject effects unidentified.
var ErrSingularFit = errors.New("singular fit: random-intercept scale collapsed")

// DegenerateDataError reports a zero-variance item column: every
// subject gave the same answer, so the item's difficulty diverges and
// the marginal likelihood has no interior maximum for it.
type DegenerateDataError struct {
	Item    int
	Endorse int
}

func (e *DegenerateDataError) Error() string {
	return fmt.Sprintf("degenerate data: item %d has constant response %d", e.Item, e.Endorse)
}

// checkItemVariance returns a DegenerateDataError for the first item
// column whose responses are constant.
func checkItemVariance(resp *mat.Dense) error {
	nSubj, nItem := resp.Dims()
	for j := 0; j < nItem; j++ {
		sum := 0.0
		for i := 0; i < nSubj; i++ {
			sum += resp.At(i, j)
		}
		if sum == 0 {
			return &DegenerateDataError{Item: j, Endorse: 0}
		}
		if sum == float64(nSubj) {
			return &DegenerateDataError{Item: j, Endorse: 1}
		}
	}
	return nil
}
