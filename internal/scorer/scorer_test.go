package scorer

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/2-07665/ww-echo-policy-calculator/internal/catalog"
	"github.com/2-07665/ww-echo-policy-calculator/internal/config"
)

func TestScorer(t *testing.T) {
	Convey("Given a catalogue and a weight vector favoring crit_rate", t, func() {
		cat, err := catalog.New(config.Default())
		So(err, ShouldBeNil)
		weights := catalog.WeightVector{"crit_rate": 2, "crit_damage": 1}

		Convey("Linear scorer never exceeds 100 at the best possible roll set", func() {
			sc, err := New(Linear, weights)
			So(err, ShouldBeNil)

			total := 0.0
			for _, id := range []catalog.BuffID{"crit_rate", "crit_damage"} {
				b, _ := cat.Lookup(id)
				total += sc.ScoreSlot(b, b.Grid[len(b.Grid)-1].Value)
			}
			So(total, ShouldBeLessThanOrEqualTo, 100.0+1e-9)
			So(sc.MaxScore(), ShouldEqual, 100.0)
		})

		Convey("Fixed scorer awards the raw weight regardless of value", func() {
			sc, err := New(Fixed, weights)
			So(err, ShouldBeNil)

			b, _ := cat.Lookup("crit_rate")
			lo := sc.ScoreSlot(b, b.Grid[0].Value)
			hi := sc.ScoreSlot(b, b.Grid[len(b.Grid)-1].Value)
			So(lo, ShouldEqual, hi)
			So(lo, ShouldEqual, 2.0)
			So(sc.MaxScore(), ShouldEqual, weights.TopKSum(catalog.MaxSlots))
		})

		Convey("ScoreTotal agrees with summed ScoreSlot calls", func() {
			sc, err := New(Linear, weights)
			So(err, ShouldBeNil)

			b1, _ := cat.Lookup("crit_rate")
			b2, _ := cat.Lookup("crit_damage")
			pairs := []Pair{{Buff: b1, Value: b1.Grid[2].Value}, {Buff: b2, Value: b2.Grid[3].Value}}

			want := sc.ScoreSlot(pairs[0].Buff, pairs[0].Value) + sc.ScoreSlot(pairs[1].Buff, pairs[1].Value)
			So(sc.ScoreTotal(pairs), ShouldAlmostEqual, want, 1e-9)
		})

		Convey("an unknown scorer variant is rejected", func() {
			_, err := New("quadratic", weights)
			So(err, ShouldNotBeNil)
		})
	})
}
