package irt

import (
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

func TestDrawParameters_Shapes(t *testing.T) {
	p := DrawParameters(30, 7, rand.NewSource(1))
	if p.NumSubjects() != 30 {
		t.Errorf("NumSubjects() = %d, want 30", p.NumSubjects())
	}
	if p.NumItems() != 7 {
		t.Errorf("NumItems() = %d, want 7", p.NumItems())
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestParameters_ValidateDegenerateSizes(t *testing.T) {
	tests := []struct {
		name  string
		subj  int
		items int
	}{
		{"one_subject", 1, 5},
		{"one_item", 5, 1},
		{"empty", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DrawParameters(tt.subj, tt.items, rand.NewSource(1))
			if err := p.Validate(); err == nil {
				t.Errorf("Validate() = nil, want error for %d×%d", tt.subj, tt.items)
			}
		})
	}
}

func TestSimulate_BinaryCompleteCross(t *testing.T) {
	p := DrawParameters(40, 9, rand.NewSource(7))
	resp := Simulate(p, rand.NewSource(8))

	rows, cols := resp.Dims()
	if rows != 40 || cols != 9 {
		t.Fatalf("Dims() = %d×%d, want 40×9", rows, cols)
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := resp.At(i, j); v != 0 && v != 1 {
				t.Errorf("resp[%d,%d] = %v, want 0 or 1", i, j, v)
			}
		}
	}
}

func TestSimulate_Deterministic(t *testing.T) {
	p := DrawParameters(20, 5, rand.NewSource(3))

	a := Simulate(p, rand.NewSource(11))
	b := Simulate(p, rand.NewSource(11))

	rows, cols := a.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if a.At(i, j) != b.At(i, j) {
				t.Fatalf("same seed produced different matrices at [%d,%d]", i, j)
			}
		}
	}
}

func TestSimulate_AbilityRaisesEndorsement(t *testing.T) {
	// One very able and one very unable subject on middling items: the
	// able subject should endorse far more often.
	p := Parameters{
		Ability:    []float64{4, -4},
		Difficulty: make([]float64, 200),
	}
	resp := Simulate(p, rand.NewSource(5))

	able, unable := 0.0, 0.0
	for j := 0; j < 200; j++ {
		able += resp.At(0, j)
		unable += resp.At(1, j)
	}
	if able <= unable {
		t.Errorf("able subject endorsed %v items, unable %v; want able > unable", able, unable)
	}
}

func TestWideTable_RoundTrip(t *testing.T) {
	p := DrawParameters(8, 5, rand.NewSource(6))
	resp := Simulate(p, rand.NewSource(6))

	back, err := WideTable(LongTable(resp), 8, 5)
	if err != nil {
		t.Fatalf("WideTable() = %v, want nil", err)
	}
	if !mat.Equal(resp, back) {
		t.Error("round trip through the long table changed the matrix")
	}
}

func TestWideTable_RejectsBadTables(t *testing.T) {
	p := DrawParameters(4, 3, rand.NewSource(6))
	rows := LongTable(Simulate(p, rand.NewSource(6)))

	if _, err := WideTable(rows[:len(rows)-1], 4, 3); err == nil {
		t.Error("incomplete cross accepted")
	}

	dup := make([]Response, len(rows))
	copy(dup, rows)
	dup[1] = dup[0]
	if _, err := WideTable(dup, 4, 3); err == nil {
		t.Error("duplicate pair accepted")
	}

	bad := make([]Response, len(rows))
	copy(bad, rows)
	bad[0].Item = 99
	if _, err := WideTable(bad, 4, 3); err == nil {
		t.Error("out-of-range index accepted")
	}
}

func TestLongTable_CompleteCross(t *testing.T) {
	p := DrawParameters(6, 4, rand.NewSource(2))
	resp := Simulate(p, rand.NewSource(2))
	rows := LongTable(resp)

	if len(rows) != 6*4 {
		t.Fatalf("len(rows) = %d, want %d", len(rows), 6*4)
	}

	seen := make(map[[2]int]bool)
	for _, r := range rows {
		key := [2]int{r.Subject, r.Item}
		if seen[key] {
			t.Fatalf("duplicate pair (%d, %d)", r.Subject, r.Item)
		}
		seen[key] = true

		if r.Endorse != 0 && r.Endorse != 1 {
			t.Errorf("endorse = %d, want 0 or 1", r.Endorse)
		}
		if int(resp.At(r.Subject, r.Item)) != r.Endorse {
			t.Errorf("long row (%d,%d) disagrees with matrix", r.Subject, r.Item)
		}
	}
	if len(seen) != 6*4 {
		t.Errorf("cross has %d distinct pairs, want %d", len(seen), 6*4)
	}
}
