package irt

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Response is one row of the long-format response set: a single
// subject-item encounter and its binary outcome. Subject and item are
// zero-based indices into the design.
type Response struct {
	Subject int
	Item    int
	Endorse int
}

// Simulate generates a fully crossed binary response matrix under the
// one-parameter logistic model: every subject answers every item, and
// each cell is an independent Bernoulli(logistic(ability - difficulty))
// draw. Rows are subjects, columns are items, entries are 0 or 1.
func Simulate(p Parameters, src rand.Source) *mat.Dense {
	nSubj, nItem := p.NumSubjects(), p.NumItems()
	resp := mat.NewDense(nSubj, nItem, nil)

	for i := 0; i < nSubj; i++ {
		for j := 0; j < nItem; j++ {
			bern := distuv.Bernoulli{
				P:   EndorseProbability(p.Ability[i], p.Difficulty[j]),
				Src: src,
			}
			resp.Set(i, j, bern.Rand())
		}
	}
	return resp
}

// LongTable pivots a response matrix into the long format the
// mixed-effects estimator consumes: one Response per (subject, item)
// pair, ordered subject-major. The cross is complete by construction.
func LongTable(resp mat.Matrix) []Response {
	nSubj, nItem := resp.Dims()
	rows := make([]Response, 0, nSubj*nItem)

	for i := 0; i < nSubj; i++ {
		for j := 0; j < nItem; j++ {
			rows = append(rows, Response{
				Subject: i,
				Item:    j,
				Endorse: int(resp.At(i, j)),
			})
		}
	}
	return rows
}

// WideTable rebuilds the wide response matrix from a long-format
// response set. The rows must form a complete subject × item cross.
func WideTable(rows []Response, nSubj, nItem int) (*mat.Dense, error) {
	if len(rows) != nSubj*nItem {
		return nil, fmt.Errorf("long table has %d rows, want %d (complete %d×%d cross)",
			len(rows), nSubj*nItem, nSubj, nItem)
	}

	resp := mat.NewDense(nSubj, nItem, nil)
	seen := make([]bool, nSubj*nItem)
	for _, r := range rows {
		if r.Subject < 0 || r.Subject >= nSubj || r.Item < 0 || r.Item >= nItem {
			return nil, fmt.Errorf("response (%d, %d) outside %d×%d design", r.Subject, r.Item, nSubj, nItem)
		}
		idx := r.Subject*nItem + r.Item
		if seen[idx] {
			return nil, fmt.Errorf("duplicate response for subject %d, item %d", r.Subject, r.Item)
		}
		seen[idx] = true
		resp.Set(r.Subject, r.Item, float64(r.Endorse))
	}
	return resp, nil
}
