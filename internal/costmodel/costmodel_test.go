package costmodel

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCostModel(t *testing.T) {
	Convey("Given a validated cost model", t, func() {
		m, err := New(Weights{Echo: 1, Tuner: 1, Exp: 0.001}, 0.5)
		So(err, ShouldBeNil)

		Convey("negative weights are rejected", func() {
			_, err := New(Weights{Echo: -1}, 0)
			So(err, ShouldNotBeNil)
		})

		Convey("refund ratio outside [0, 0.75] is rejected", func() {
			_, err := New(Weights{}, 0.8)
			So(err, ShouldNotBeNil)
		})

		Convey("SlotCost books echo only once, on slot 1", func() {
			c1 := m.SlotCost(1)
			c2 := m.SlotCost(2)
			So(c1, ShouldBeGreaterThan, c2-1e-9)
			m2, _ := New(Weights{Echo: 1}, 0)
			So(m2.SlotCost(1), ShouldEqual, 1.0)
			So(m2.SlotCost(2), ShouldEqual, 0.0)
		})

		Convey("SlotCost is zero outside [1, MaxSlots]", func() {
			So(m.SlotCost(0), ShouldEqual, 0.0)
			So(m.SlotCost(6), ShouldEqual, 0.0)
		})

		Convey("ExpEmbedded accumulates the exp schedule monotonically", func() {
			prev := 0.0
			for n := 0; n <= catalog_MaxSlots; n++ {
				got := ExpEmbedded(n)
				So(got, ShouldBeGreaterThanOrEqualTo, prev)
				prev = got
			}
		})

		Convey("Isolated zeroes every weight but the named axis", func() {
			iso := m.Isolated("tuner")
			So(iso.Weights.Tuner, ShouldEqual, m.Weights.Tuner)
			So(iso.Weights.Echo, ShouldEqual, 0.0)
			So(iso.Weights.Exp, ShouldEqual, 0.0)
		})
	})
}
