package solver

import (
	"context"
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/2-07665/ww-echo-policy-calculator/internal/catalog"
	"github.com/2-07665/ww-echo-policy-calculator/internal/config"
	"github.com/2-07665/ww-echo-policy-calculator/internal/costmodel"
	"github.com/2-07665/ww-echo-policy-calculator/internal/enginestate"
	"github.com/2-07665/ww-echo-policy-calculator/internal/scorer"
)

func discovererFor(t *testing.T, weights catalog.WeightVector, target float64) *Discoverer {
	cat, err := catalog.New(config.Default())
	So(err, ShouldBeNil)
	sc, err := scorer.New(scorer.Linear, weights)
	So(err, ShouldBeNil)
	return NewDiscoverer(cat, sc, target)
}

func TestEvaluate(t *testing.T) {
	Convey("Given a discoverer over the default catalogue, target 60", t, func() {
		weights := catalog.WeightVector{}
		cat, err := catalog.New(config.Default())
		So(err, ShouldBeNil)
		for _, id := range cat.Order() {
			weights[id] = 1
		}
		d := discovererFor(t, weights, 60)
		cost, err := costmodel.New(costmodel.Weights{Echo: 1, Tuner: 1, Exp: 0.001}, 0.5)
		So(err, ShouldBeNil)

		Convey("terminal states are -lambda on success, 0 otherwise", func() {
			table, err := Evaluate(context.Background(), d, cost, 10.0, 4)
			So(err, ShouldBeNil)
			for n, states := range table.byStage {
				if n != catalog.MaxSlots {
					continue
				}
				for _, s := range states {
					e, ok := table.Get(s)
					So(ok, ShouldBeTrue)
					if s.Succeeds(60) {
						So(e.Value.Load(), ShouldAlmostEqual, -10.0, 1e-9)
					} else {
						So(e.Value.Load(), ShouldAlmostEqual, 0.0, 1e-9)
					}
				}
			}
		})

		Convey("V_lambda(s0) is monotonically non-increasing in lambda", func() {
			lo, err := Evaluate(context.Background(), d, cost, 1.0, 4)
			So(err, ShouldBeNil)
			hi, err := Evaluate(context.Background(), d, cost, 5.0, 4)
			So(err, ShouldBeNil)
			So(lo.RootValue(), ShouldBeGreaterThanOrEqualTo, hi.RootValue()-1e-6)
		})

		Convey("SuccessProbability at the root is within [0,1] and terminals are 0 or 1", func() {
			table, err := Evaluate(context.Background(), d, cost, 10.0, 4)
			So(err, ShouldBeNil)

			root := table.SuccessProbability(enginestate.Root())
			So(root, ShouldBeBetweenOrEqual, 0.0, 1.0)

			for _, s := range table.byStage[catalog.MaxSlots] {
				p := table.SuccessProbability(s)
				So(p, ShouldBeIn, []float64{0, 1})
			}
		})

		Convey("a cancelled context aborts Evaluate", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := Evaluate(ctx, d, cost, 10.0, 4)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestDecision(t *testing.T) {
	Convey("Decision.String round-trips both values", t, func() {
		So(Continue.String(), ShouldEqual, "Continue")
		So(Abandon.String(), ShouldEqual, "Abandon")
	})
}

func TestDecompose(t *testing.T) {
	Convey("Given a solved table over a single-buff-focused request", t, func() {
		d := discovererFor(t, catalog.WeightVector{"crit_damage": 1}, 50)
		cost, err := costmodel.New(costmodel.Weights{Echo: 0, Tuner: 1, Exp: 0}, 0.66)
		So(err, ShouldBeNil)
		table, err := Evaluate(context.Background(), d, cost, 1.0, 4)
		So(err, ShouldBeNil)

		Convey("per-axis costs are non-negative and success probability matches the direct pass", func() {
			echo, tuner, exp, successProb := table.Decompose(cost.Refund)
			So(echo, ShouldBeGreaterThanOrEqualTo, 0.0)
			So(tuner, ShouldBeGreaterThanOrEqualTo, 0.0)
			So(exp, ShouldBeGreaterThanOrEqualTo, 0.0)
			So(successProb, ShouldAlmostEqual, table.SuccessProbability(enginestate.Root()), 1e-9)
			So(math.IsNaN(successProb), ShouldBeFalse)
		})
	})
}
