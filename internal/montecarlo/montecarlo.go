// Package montecarlo is an optional correctness check: it replays an
// already-solved policy with a seeded RNG and compares the observed success
// rate and mean cost per success against the policy's own summary figures.
// The worker fan-out is one goroutine per worker emitting outcomes on its
// own channel, fanned in through channerics.Merge into a single consumer
// loop, with a fixed-count attempt budget instead of an unbounded
// generator.
package montecarlo

import (
	"context"
	"math"
	"math/rand"

	"github.com/niceyeti/channerics/channels"
	"gonum.org/v1/gonum/stat"

	"github.com/2-07665/ww-echo-policy-calculator/internal/apperrors"
	"github.com/2-07665/ww-echo-policy-calculator/internal/catalog"
	"github.com/2-07665/ww-echo-policy-calculator/internal/costmodel"
	"github.com/2-07665/ww-echo-policy-calculator/internal/enginestate"
	"github.com/2-07665/ww-echo-policy-calculator/internal/policycache"
	"github.com/2-07665/ww-echo-policy-calculator/internal/solver"
)

// Options configures a validation run.
type Options struct {
	N       int
	Seed    int64
	Workers int
}

// DefaultOptions returns the reference replay scale: N = 10^6, the
// threshold at which the 3-sigma bound is asserted to hold.
func DefaultOptions() Options {
	return Options{N: 1_000_000, Seed: 1, Workers: 8}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.N <= 0 {
		o.N = d.N
	}
	if o.Workers <= 0 {
		o.Workers = d.Workers
	}
	if o.Workers > o.N {
		o.Workers = o.N
	}
	return o
}

// Report is the replay's outcome, comparable against Summary.
type Report struct {
	Attempts                   int
	Successes                  int
	SuccessRate                float64
	MeanCostPerSuccess         float64
	ExpectedSuccessProbability float64
	StandardError              float64
	WithinThreeSigma           bool
}

type outcome struct {
	success bool
	cost    float64
}

// Validate replays handle's policy N times and reports how closely the
// empirical success rate and mean cost track the cached summary.
func Validate(ctx context.Context, handle policycache.Handle, cost costmodel.Model, opts Options) (Report, error) {
	view, err := handle.View()
	if err != nil {
		return Report{}, err
	}
	opts = opts.withDefaults()

	sim := func(rng *rand.Rand) outcome {
		s := enginestate.Root()
		total := 0.0
		for {
			entry, ok := view.Table.Get(s)
			if !ok {
				return outcome{success: false, cost: total}
			}
			if s.Terminal() {
				return outcome{success: s.Succeeds(view.TargetScore), cost: total}
			}
			if entry.Decision == solver.Abandon {
				total -= cost.Refund * cost.Weights.Exp * costmodel.ExpEmbedded(s.Stage())
				return outcome{success: false, cost: total}
			}
			total += cost.SlotCost(s.Stage() + 1)
			id, value := drawOne(rng, view.Catalogue, s)
			s = s.Extend(view.Catalogue, view.Scorer, id, value)
		}
	}

	worker := func(done <-chan struct{}, seed int64, count int) <-chan outcome {
		out := make(chan outcome)
		go func() {
			defer close(out)
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < count; i++ {
				select {
				case <-done:
					return
				default:
				}
				o := sim(rng)
				select {
				case out <- o:
				case <-done:
					return
				}
			}
		}()
		return out
	}

	workers := make([]<-chan outcome, opts.Workers)
	per := opts.N / opts.Workers
	remainder := opts.N % opts.Workers
	for i := 0; i < opts.Workers; i++ {
		count := per
		if i < remainder {
			count++
		}
		workers[i] = worker(ctx.Done(), opts.Seed+int64(i), count)
	}

	successIndicator := make([]float64, 0, opts.N)
	costs := make([]float64, 0, opts.N)
	for o := range channels.Merge(ctx.Done(), workers...) {
		ind := 0.0
		if o.success {
			ind = 1.0
		}
		successIndicator = append(successIndicator, ind)
		costs = append(costs, o.cost)
	}

	if err := ctx.Err(); err != nil {
		return Report{}, apperrors.Cancelled(err)
	}

	attempts := len(successIndicator)
	if attempts == 0 {
		return Report{}, apperrors.InvalidInput("n", "monte-carlo validation requires at least one attempt")
	}

	meanSuccess, stdSuccess := stat.MeanStdDev(successIndicator, nil)
	meanCost, _ := stat.MeanStdDev(costs, nil)

	successes := 0
	for _, v := range successIndicator {
		if v == 1 {
			successes++
		}
	}

	meanCostPerSuccess := 0.0
	if successes > 0 {
		meanCostPerSuccess = meanCost * float64(attempts) / float64(successes)
	}

	stdErr := stdSuccess / math.Sqrt(float64(attempts))
	expected := view.Table.SuccessProbability(enginestate.Root())

	return Report{
		Attempts:                   attempts,
		Successes:                  successes,
		SuccessRate:                meanSuccess,
		MeanCostPerSuccess:         meanCostPerSuccess,
		ExpectedSuccessProbability: expected,
		StandardError:              stdErr,
		WithinThreeSigma:           math.Abs(meanSuccess-expected) <= 3*stdErr,
	}, nil
}

// drawOne samples one (buff, value) draw under the standard reveal rule: a
// remaining buff chosen uniformly, then a value from its grid by empirical
// probability.
func drawOne(rng *rand.Rand, cat *catalog.Catalogue, s enginestate.State) (catalog.BuffID, int) {
	remaining := s.Remaining(cat)
	id := remaining[rng.Intn(len(remaining))]
	b, _ := cat.Lookup(id)

	r := rng.Float64()
	cum := 0.0
	for _, vp := range b.Grid {
		cum += vp.Prob
		if r <= cum {
			return id, vp.Value
		}
	}
	return id, b.Grid[len(b.Grid)-1].Value
}
