package study

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/irt-tools/irtsim/internal/estimator"
	"github.com/irt-tools/irtsim/internal/irt"
)

// stubFitter fails its first failFor calls, then returns zero-valued
// estimates of the right shape.
type stubFitter struct {
	mu      sync.Mutex
	calls   int
	failFor int
}

func (s *stubFitter) Name() string { return "stub" }

func (s *stubFitter) Type() estimator.Type { return estimator.TypeRasch }

func (s *stubFitter) Fit(resp *mat.Dense) (estimator.Estimates, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failFor {
		return estimator.Estimates{}, estimator.ErrNotConverged
	}
	n, m := resp.Dims()
	return estimator.Estimates{
		Ability:    make([]float64, n),
		Difficulty: make([]float64, m),
	}, nil
}

func testTruth(t *testing.T, nSubj, nItem int, seed uint64) irt.Parameters {
	t.Helper()
	return irt.DrawParameters(nSubj, nItem, rand.NewSource(seed))
}

func TestDriver_SingleReplicationShapes(t *testing.T) {
	truth := testTruth(t, 60, 5, 21)
	fitter := estimator.NewRaschFitter("", estimator.RaschOptions{})

	driver := NewDriver(truth, fitter, 1, 21)
	outcome, err := driver.Run(context.Background())
	require.NoError(t, err)

	// Shape must match a single direct generate+fit call.
	direct, err := fitter.Fit(irt.Simulate(truth, driver.replicationSource(0, 0)))
	require.NoError(t, err)

	rows, cols := outcome.Ability.Dims()
	assert.Equal(t, 1, rows)
	assert.Equal(t, len(direct.Ability), cols)

	rows, cols = outcome.Difficulty.Dims()
	assert.Equal(t, 1, rows)
	assert.Equal(t, len(direct.Difficulty), cols)

	assert.Equal(t, 1, outcome.Completed)
	assert.Equal(t, direct.Ability, mat.Row(nil, 0, outcome.Ability))
	assert.Equal(t, direct.Difficulty, mat.Row(nil, 0, outcome.Difficulty))
}

func TestDriver_DeterministicAcrossWorkers(t *testing.T) {
	truth := testTruth(t, 60, 5, 33)

	run := func(workers int) *Outcome {
		fitter := estimator.NewRaschFitter("", estimator.RaschOptions{})
		driver := NewDriver(truth, fitter, 4, 33, WithWorkers(workers))
		outcome, err := driver.Run(context.Background())
		require.NoError(t, err)
		return outcome
	}

	serial := run(1)
	parallel := run(4)

	assert.True(t, mat.Equal(serial.Ability, parallel.Ability), "ability estimates differ across worker counts")
	assert.True(t, mat.Equal(serial.Difficulty, parallel.Difficulty), "difficulty estimates differ across worker counts")
}

func TestDriver_AbortPolicy(t *testing.T) {
	truth := testTruth(t, 10, 4, 1)
	fitter := &stubFitter{failFor: 1 << 30}

	driver := NewDriver(truth, fitter, 5, 1)
	_, err := driver.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, estimator.ErrNotConverged), "want wrapped ErrNotConverged, got %v", err)
	assert.Equal(t, StateDone, driver.State())
}

func TestDriver_SkipPolicy(t *testing.T) {
	truth := testTruth(t, 10, 4, 1)
	fitter := &stubFitter{failFor: 2}

	driver := NewDriver(truth, fitter, 5, 1,
		WithFailurePolicy(FailSkip),
	)
	outcome, err := driver.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, outcome.Completed)
	require.Len(t, outcome.Failed, 2)
	for _, f := range outcome.Failed {
		assert.True(t, errors.Is(f.Err, estimator.ErrNotConverged))
		for j := 0; j < 4; j++ {
			assert.True(t, math.IsNaN(outcome.Difficulty.At(f.Replication, j)),
				"skipped replication %d should leave NaN rows", f.Replication)
		}
	}
}

func TestDriver_RetryPolicy(t *testing.T) {
	truth := testTruth(t, 10, 4, 1)
	fitter := &stubFitter{failFor: 2}

	var attempts []int
	driver := NewDriver(truth, fitter, 1, 1,
		WithFailurePolicy(FailRetry),
		WithMaxAttempts(3),
		WithProgressListener(func(e ProgressEvent) {
			if e.EventType == EventReplicationComplete {
				attempts = append(attempts, e.Attempt)
			}
		}),
	)
	outcome, err := driver.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.Completed)
	assert.Equal(t, 3, fitter.calls, "two failed attempts plus one success")
	require.Len(t, attempts, 1)
	assert.Equal(t, 3, attempts[0])
}

func TestDriver_RetryBudgetExhausted(t *testing.T) {
	truth := testTruth(t, 10, 4, 1)
	fitter := &stubFitter{failFor: 1 << 30}

	driver := NewDriver(truth, fitter, 1, 1,
		WithFailurePolicy(FailRetry),
		WithMaxAttempts(2),
	)
	_, err := driver.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, fitter.calls)
}

func TestDriver_States(t *testing.T) {
	truth := testTruth(t, 10, 4, 1)
	driver := NewDriver(truth, &stubFitter{}, 2, 1)

	assert.Equal(t, StatePending, driver.State())

	_, err := driver.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, driver.State())
}

func TestDriver_ProgressEvents(t *testing.T) {
	truth := testTruth(t, 10, 4, 1)

	var events []EventType
	driver := NewDriver(truth, &stubFitter{}, 3, 1,
		WithProgressListener(func(e ProgressEvent) {
			events = append(events, e.EventType)
		}),
	)
	_, err := driver.Run(context.Background())
	require.NoError(t, err)

	counts := map[EventType]int{}
	for _, e := range events {
		counts[e]++
	}
	assert.Equal(t, 1, counts[EventStudyStart])
	assert.Equal(t, 3, counts[EventReplicationStart])
	assert.Equal(t, 3, counts[EventReplicationComplete])
	assert.Equal(t, 1, counts[EventStudyComplete])
}

func TestDriver_ValidatesInput(t *testing.T) {
	truth := testTruth(t, 10, 4, 1)

	_, err := NewDriver(truth, &stubFitter{}, 0, 1).Run(context.Background())
	assert.Error(t, err, "zero replications")

	bad := irt.Parameters{Ability: []float64{0}, Difficulty: []float64{0, 1}}
	_, err = NewDriver(bad, &stubFitter{}, 1, 1).Run(context.Background())
	assert.Error(t, err, "degenerate design")
}

func TestDriver_IndependentReplicationStreams(t *testing.T) {
	d := NewDriver(irt.Parameters{}, nil, 0, 99)

	a := rand.New(d.replicationSource(0, 0)).Uint64()
	b := rand.New(d.replicationSource(1, 0)).Uint64()
	c := rand.New(d.replicationSource(0, 1)).Uint64()
	assert.NotEqual(t, a, b, "replications must draw from distinct streams")
	assert.NotEqual(t, a, c, "retry attempts must draw from distinct streams")

	again := rand.New(d.replicationSource(0, 0)).Uint64()
	assert.Equal(t, a, again, "streams must be reproducible")
}
