package irt

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// MaxPatternItems is the widest response pattern a Pattern key can
// represent. Designs past this need a wider key type.
const MaxPatternItems = 64

// Pattern is a subject's full response pattern packed into a bit key:
// bit j is set when item j was endorsed. Packing the raw booleans keeps
// the key comparable and hashable without formatting responses into
// strings, and makes "identical pattern, identical score" a property of
// map lookup rather than a convention.
type Pattern uint64

// RowPattern packs row i of a response matrix into a Pattern key.
func RowPattern(resp mat.Matrix, i int) (Pattern, error) {
	_, nItem := resp.Dims()
	if nItem > MaxPatternItems {
		return 0, fmt.Errorf("pattern keys support at most %d items, got %d", MaxPatternItems, nItem)
	}

	var p Pattern
	for j := 0; j < nItem; j++ {
		if resp.At(i, j) != 0 {
			p |= 1 << uint(j)
		}
	}
	return p, nil
}

// Endorsed reports whether item j was endorsed in the pattern.
func (p Pattern) Endorsed(j int) bool {
	return p&(1<<uint(j)) != 0
}
