// Package lambdasearch implements the outer root-find over the Lagrangian
// multiplier lambda: bracket by doubling until V_lambda(s0) goes negative,
// then bisect until |V_lambda(s0)| is within tolerance. It is an iterative
// driver around a value-function evaluator, converging a single scalar.
package lambdasearch

import (
	"context"
	"math"
	"time"

	"github.com/2-07665/ww-echo-policy-calculator/internal/apperrors"
	"github.com/2-07665/ww-echo-policy-calculator/internal/costmodel"
	"github.com/2-07665/ww-echo-policy-calculator/internal/solver"
	"github.com/2-07665/ww-echo-policy-calculator/internal/telemetry"
)

// Options configures the bracket-then-bisect search. Zero values are
// replaced by DefaultOptions' values.
type Options struct {
	Tolerance     float64
	MaxIter       int
	InitialLambda float64
	UpperBound    float64
	Workers       int
	// Progress, if non-nil, receives a best-effort snapshot after every
	// bracket/bisect iteration; a full channel drops the event rather than
	// blocking the search, matching the progress stream's own
	// idempotent-latest-snapshot semantics.
	Progress chan<- telemetry.Event
}

// DefaultOptions returns the authoritative defaults: tolerance 1e-6,
// max_iter 120, hard upper bound 1e12.
func DefaultOptions() Options {
	return Options{
		Tolerance:     1e-6,
		MaxIter:       120,
		InitialLambda: 1.0,
		UpperBound:    1e12,
		Workers:       4,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Tolerance <= 0 {
		o.Tolerance = d.Tolerance
	}
	if o.MaxIter <= 0 {
		o.MaxIter = d.MaxIter
	}
	if o.InitialLambda <= 0 {
		o.InitialLambda = d.InitialLambda
	}
	if o.UpperBound <= 0 {
		o.UpperBound = d.UpperBound
	}
	if o.Workers <= 0 {
		o.Workers = d.Workers
	}
	return o
}

// Result is (lambda*, PolicyTable at lambda*) plus the derived summary a
// SolvedPolicy needs: expected cost per success, the resource-axis
// decomposition, and wall-clock compute time.
type Result struct {
	LambdaStar         float64
	Table              *solver.Table
	Iterations         int
	SuccessProbability float64
	EchoPerSuccess     float64
	TunerPerSuccess    float64
	ExpPerSuccess      float64
	ComputeSeconds     float64
}

// Search drives V_lambda(s0) to zero for the given discoverer and cost
// model, returning the solved table and derived summary. d must already
// have enumerated the reachable state space (solver.NewDiscoverer).
func Search(ctx context.Context, d *solver.Discoverer, cost costmodel.Model, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	start := time.Now()

	lo, hiLambda, hiTable, iterations, err := bracket(ctx, d, cost, opts)
	if err != nil {
		return nil, err
	}

	lambdaStar, table, iterations, err := bisect(ctx, d, cost, opts, lo, hiLambda, hiTable, iterations)
	if err != nil {
		return nil, err
	}

	echo, tuner, exp, successProb := table.Decompose(cost.Refund)

	return &Result{
		LambdaStar:         lambdaStar,
		Table:              table,
		Iterations:         iterations,
		SuccessProbability: successProb,
		EchoPerSuccess:     echo,
		TunerPerSuccess:    tuner,
		ExpPerSuccess:      exp,
		ComputeSeconds:     time.Since(start).Seconds(),
	}, nil
}

// bracket doubles lambda from opts.InitialLambda until V_lambda(s0) goes
// negative: V_0(s0) >= 0 and V_lambda(s0) -> -inf as lambda -> inf, so such
// a crossing always exists unless the target is unreachable.
func bracket(ctx context.Context, d *solver.Discoverer, cost costmodel.Model, opts Options) (lo, hi float64, hiTable *solver.Table, iterations int, err error) {
	lo = 0
	hi = opts.InitialLambda

	for {
		if err := checkCancel(ctx); err != nil {
			return 0, 0, nil, iterations, err
		}

		table, err := solver.Evaluate(ctx, d, cost, hi, opts.Workers)
		if err != nil {
			return 0, 0, nil, iterations, err
		}
		iterations++
		rootValue := table.RootValue()
		emit(opts.Progress, telemetry.Event{Iteration: iterations, Phase: "bracket", Lambda: hi, RootValue: rootValue})

		if rootValue < 0 {
			return lo, hi, table, iterations, nil
		}

		lo = hi
		hi *= 2
		if hi > opts.UpperBound {
			return 0, 0, nil, iterations, apperrors.UnreachableTarget(
				"lambda search did not find V_lambda(s0) < 0 within the hard upper bound; target is likely unattainable under this scorer/weights")
		}
		if iterations >= opts.MaxIter {
			return 0, 0, nil, iterations, apperrors.UnreachableTarget(
				"lambda search exhausted max_iter while bracketing")
		}
	}
}

// bisect narrows [lo, hi] (V(lo) >= 0, V(hi) < 0) until V(hi) is within
// tolerance below zero or max_iter is reached. Since Q_abandon(s0) = 0, V is
// exactly 0 at every lambda where the root abandons, so a mid with V >= 0
// only raises lo; the returned table is always one whose root continues.
func bisect(ctx context.Context, d *solver.Discoverer, cost costmodel.Model, opts Options, lo, hi float64, hiTable *solver.Table, iterations int) (float64, *solver.Table, int, error) {
	table := hiTable
	lambda := hi

	for iterations < opts.MaxIter {
		if err := checkCancel(ctx); err != nil {
			return 0, nil, iterations, err
		}

		mid := lo + (hi-lo)/2
		midTable, err := solver.Evaluate(ctx, d, cost, mid, opts.Workers)
		if err != nil {
			return 0, nil, iterations, err
		}
		iterations++

		v := midTable.RootValue()
		emit(opts.Progress, telemetry.Event{Iteration: iterations, Phase: "bisect", Lambda: mid, RootValue: v})

		if v >= 0 {
			lo = mid
			continue
		}
		hi, lambda, table = mid, mid, midTable
		if math.Abs(v) <= opts.Tolerance {
			return lambda, table, iterations, nil
		}
	}

	// max_iter reached without hitting tolerance: still return the best
	// estimate found, honoring the OR-terminated stopping rule.
	return lambda, table, iterations, nil
}

func emit(ch chan<- telemetry.Event, ev telemetry.Event) {
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
	}
}

func checkCancel(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return apperrors.Cancelled(ctx.Err())
	default:
		return nil
	}
}
