package enginestate

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/2-07665/ww-echo-policy-calculator/internal/catalog"
	"github.com/2-07665/ww-echo-policy-calculator/internal/config"
	"github.com/2-07665/ww-echo-policy-calculator/internal/scorer"
)

func TestState(t *testing.T) {
	Convey("Given a catalogue and a linear scorer", t, func() {
		cat, err := catalog.New(config.Default())
		So(err, ShouldBeNil)
		sc, err := scorer.New(scorer.Linear, catalog.WeightVector{"crit_rate": 1, "crit_damage": 1})
		So(err, ShouldBeNil)

		Convey("Root is stage 0 and non-terminal", func() {
			s := Root()
			So(s.Stage(), ShouldEqual, 0)
			So(s.Terminal(), ShouldBeFalse)
		})

		Convey("Extend is order-independent on Key", func() {
			b1, _ := cat.Lookup("crit_rate")
			b2, _ := cat.Lookup("crit_damage")

			a := Root().Extend(cat, sc, "crit_rate", b1.Grid[0].Value).Extend(cat, sc, "crit_damage", b2.Grid[1].Value)
			b := Root().Extend(cat, sc, "crit_damage", b2.Grid[1].Value).Extend(cat, sc, "crit_rate", b1.Grid[0].Value)

			So(a.Key(), ShouldEqual, b.Key())
			So(a.Score, ShouldAlmostEqual, b.Score, 1e-9)
		})

		Convey("Transitions partition probability mass exactly 1", func() {
			total := 0.0
			for _, tr := range Transitions(cat, sc, Root()) {
				total += tr.Prob
			}
			So(total, ShouldAlmostEqual, 1.0, 1e-9)
		})

		Convey("Terminal becomes true after MaxSlots reveals", func() {
			s := Root()
			for i, id := range cat.Order() {
				if i >= catalog.MaxSlots {
					break
				}
				b, _ := cat.Lookup(id)
				s = s.Extend(cat, sc, id, b.Grid[0].Value)
			}
			So(s.Terminal(), ShouldBeTrue)
			So(s.Stage(), ShouldEqual, catalog.MaxSlots)
		})

		Convey("Succeeds respects the 1e-9 tolerance", func() {
			s := State{Score: 59.9999999995}
			So(s.Succeeds(60), ShouldBeTrue)
			So(s.Succeeds(60.1), ShouldBeFalse)
		})
	})
}
