package catalog

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/2-07665/ww-echo-policy-calculator/internal/config"
)

func TestCatalogue(t *testing.T) {
	Convey("Given the default catalogue", t, func() {
		cat, err := New(config.Default())
		So(err, ShouldBeNil)

		Convey("every buff's grid probabilities sum to 1", func() {
			for _, b := range cat.Buffs() {
				sum := 0.0
				for _, p := range b.Grid {
					sum += p.Prob
				}
				So(sum, ShouldAlmostEqual, 1.0, 1e-9)
			}
		})

		Convey("every buff's grid is strictly increasing", func() {
			for _, b := range cat.Buffs() {
				for i := 1; i < len(b.Grid); i++ {
					So(b.Grid[i].Value, ShouldBeGreaterThan, b.Grid[i-1].Value)
				}
			}
		})

		Convey("Lookup finds a known id and rejects an unknown one", func() {
			_, ok := cat.Lookup("crit_rate")
			So(ok, ShouldBeTrue)
			_, ok = cat.Lookup("not_a_buff")
			So(ok, ShouldBeFalse)
		})

		Convey("WithUserCounts blends without mutating the receiver", func() {
			before, _ := cat.Lookup("crit_rate")
			blended := cat.WithUserCounts(map[BuffID]map[int]uint64{
				"crit_rate": {130: 10000},
			})

			afterBase, _ := cat.Lookup("crit_rate")
			So(afterBase.Grid, ShouldResemble, before.Grid)

			afterBlend, _ := blended.Lookup("crit_rate")
			lastIdx := len(afterBlend.Grid) - 1
			So(afterBlend.Grid[lastIdx].Prob, ShouldBeGreaterThan, before.Grid[lastIdx].Prob)
		})

		Convey("WithUserCounts with no counts returns the same catalogue", func() {
			So(cat.WithUserCounts(nil), ShouldEqual, cat)
		})
	})
}

func TestMergeUserCounts(t *testing.T) {
	Convey("Given a two-point base grid and an observed count", t, func() {
		base := []ValuePoint{{Value: 10, Prob: 0.5}, {Value: 20, Prob: 0.5}}

		Convey("merging adds to the implied base total before renormalising", func() {
			merged := MergeUserCounts(base, map[int]uint64{20: 1000}, 1000)
			sum := 0.0
			for _, p := range merged {
				sum += p.Prob
			}
			So(sum, ShouldAlmostEqual, 1.0, 1e-9)

			var p20 float64
			for _, p := range merged {
				if p.Value == 20 {
					p20 = p.Prob
				}
			}
			So(p20, ShouldBeGreaterThan, 0.5)
		})

		Convey("an empty user count map is a no-op", func() {
			So(MergeUserCounts(base, nil, 1000), ShouldResemble, base)
		})
	})
}
