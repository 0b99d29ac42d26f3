package study

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/irt-tools/irtsim/internal/estimator"
	"github.com/irt-tools/irtsim/internal/irt"
)

// State tracks the driver lifecycle. Estimate matrices are only
// meaningful once the driver reaches StateDone.
type State string

const (
	StatePending State = "pending"
	StateRunning State = "running"
	StateDone    State = "done"
)

// FailurePolicy decides what a replication-level estimator failure does
// to the rest of the run.
type FailurePolicy string

const (
	// FailAbort cancels the whole run on the first failure.
	FailAbort FailurePolicy = "abort"

	// FailSkip records the failure and keeps going; the failed
	// replication's rows are NaN in the estimate matrices.
	FailSkip FailurePolicy = "skip"

	// FailRetry redraws the response matrix from a fresh stream up to
	// the attempt budget, then aborts.
	FailRetry FailurePolicy = "retry"
)

// EventType represents the type of progress event
type EventType string

const (
	EventStudyStart          EventType = "study_start"
	EventStudyComplete       EventType = "study_complete"
	EventReplicationStart    EventType = "replication_start"
	EventReplicationComplete EventType = "replication_complete"
	EventReplicationFailed   EventType = "replication_failed"
)

// ProgressEvent represents a progress update
type ProgressEvent struct {
	EventType   EventType
	Replication int
	Total       int
	Attempt     int
	DurationMs  int64
	Err         error
}

// ProgressListener receives progress updates
type ProgressListener func(event ProgressEvent)

// FailedReplication records one skipped replication under FailSkip.
type FailedReplication struct {
	Replication int
	Err         error
}

// Outcome holds the terminal state of a replication study: an
// R × n_subj ability matrix and an R × n_item difficulty matrix, one
// row per replication, plus the truth they are judged against.
type Outcome struct {
	Truth        irt.Parameters
	Ability      *mat.Dense
	Difficulty   *mat.Dense
	Replications int
	Completed    int
	Failed       []FailedReplication
}

// Driver repeatedly generates data under fixed true parameters and
// refits the estimator, collecting per-replication estimates for
// bias/variance inspection.
type Driver struct {
	truth        irt.Parameters
	fitter       estimator.Fitter
	replications int
	seed         uint64

	workers     int
	policy      FailurePolicy
	maxAttempts int

	progressMu sync.Mutex
	listeners  []ProgressListener

	stateMu sync.Mutex
	state   State
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithWorkers bounds the number of replications fit concurrently.
// Replications are independent given the fixed truth; 1 reproduces the
// serial reference behavior.
func WithWorkers(n int) DriverOption {
	return func(d *Driver) {
		d.workers = n
	}
}

// WithFailurePolicy sets the replication failure policy.
func WithFailurePolicy(p FailurePolicy) DriverOption {
	return func(d *Driver) {
		d.policy = p
	}
}

// WithMaxAttempts sets the per-replication attempt budget under
// FailRetry.
func WithMaxAttempts(n int) DriverOption {
	return func(d *Driver) {
		d.maxAttempts = n
	}
}

// WithProgressListener registers a listener for progress events.
func WithProgressListener(l ProgressListener) DriverOption {
	return func(d *Driver) {
		d.listeners = append(d.listeners, l)
	}
}

// NewDriver creates a replication driver over fixed true parameters.
func NewDriver(truth irt.Parameters, fitter estimator.Fitter, replications int, seed uint64, opts ...DriverOption) *Driver {
	d := &Driver{
		truth:        truth,
		fitter:       fitter,
		replications: replications,
		seed:         seed,
		workers:      1,
		policy:       FailAbort,
		maxAttempts:  3,
		state:        StatePending,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// State returns the driver's lifecycle state.
func (d *Driver) State() State {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	return d.state
}

func (d *Driver) setState(s State) {
	d.stateMu.Lock()
	d.state = s
	d.stateMu.Unlock()
}

func (d *Driver) emit(event ProgressEvent) {
	d.progressMu.Lock()
	defer d.progressMu.Unlock()
	for _, l := range d.listeners {
		l(event)
	}
}

// replicationSource derives an independent, reproducible random stream
// for one (replication, attempt) pair from the study seed.
func (d *Driver) replicationSource(rep, attempt int) rand.Source {
	s := d.seed
	s += uint64(rep+1) * 0x9E3779B97F4A7C15
	s += uint64(attempt) * 0xBF58476D1CE4E5B9
	return rand.NewSource(s)
}

// Run executes all replications and returns the terminal outcome.
// Failure semantics follow the configured policy; under FailAbort the
// first estimator failure cancels outstanding work and Run returns it.
func (d *Driver) Run(ctx context.Context) (*Outcome, error) {
	if err := d.truth.Validate(); err != nil {
		return nil, fmt.Errorf("study: %w", err)
	}
	if d.replications < 1 {
		return nil, fmt.Errorf("study: replications must be at least 1, got %d", d.replications)
	}

	nSubj, nItem := d.truth.NumSubjects(), d.truth.NumItems()
	outcome := &Outcome{
		Truth:        d.truth,
		Ability:      mat.NewDense(d.replications, nSubj, nil),
		Difficulty:   mat.NewDense(d.replications, nItem, nil),
		Replications: d.replications,
	}

	d.setState(StateRunning)
	d.emit(ProgressEvent{EventType: EventStudyStart, Total: d.replications})

	var resultMu sync.Mutex

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(d.workers)

	for r := 0; r < d.replications; r++ {
		rep := r
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			d.emit(ProgressEvent{EventType: EventReplicationStart, Replication: rep, Total: d.replications})
			start := time.Now()

			est, attempt, err := d.runReplication(rep)
			elapsed := time.Since(start).Milliseconds()

			if err != nil {
				d.emit(ProgressEvent{
					EventType:   EventReplicationFailed,
					Replication: rep,
					Total:       d.replications,
					Attempt:     attempt,
					DurationMs:  elapsed,
					Err:         err,
				})
				if d.policy == FailSkip {
					resultMu.Lock()
					outcome.Failed = append(outcome.Failed, FailedReplication{Replication: rep, Err: err})
					for i := 0; i < nSubj; i++ {
						outcome.Ability.Set(rep, i, math.NaN())
					}
					for j := 0; j < nItem; j++ {
						outcome.Difficulty.Set(rep, j, math.NaN())
					}
					resultMu.Unlock()
					return nil
				}
				return fmt.Errorf("replication %d: %w", rep+1, err)
			}

			resultMu.Lock()
			outcome.Ability.SetRow(rep, est.Ability)
			outcome.Difficulty.SetRow(rep, est.Difficulty)
			outcome.Completed++
			resultMu.Unlock()

			d.emit(ProgressEvent{
				EventType:   EventReplicationComplete,
				Replication: rep,
				Total:       d.replications,
				Attempt:     attempt,
				DurationMs:  elapsed,
			})
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		d.setState(StateDone)
		return nil, fmt.Errorf("study: %w", err)
	}

	d.setState(StateDone)
	d.emit(ProgressEvent{EventType: EventStudyComplete, Total: d.replications})
	return outcome, nil
}

// runReplication draws one response matrix and fits it, retrying with a
// fresh stream when the policy allows.
func (d *Driver) runReplication(rep int) (estimator.Estimates, int, error) {
	attempts := 1
	if d.policy == FailRetry {
		attempts = d.maxAttempts
	}

	var lastErr error
	for a := 0; a < attempts; a++ {
		resp := irt.Simulate(d.truth, d.replicationSource(rep, a))
		est, err := d.fitter.Fit(resp)
		if err == nil {
			return est, a + 1, nil
		}
		lastErr = err
	}
	return estimator.Estimates{}, attempts, lastErr
}
