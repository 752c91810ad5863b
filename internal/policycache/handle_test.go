package policycache

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/2-07665/ww-echo-policy-calculator/internal/catalog"
	"github.com/2-07665/ww-echo-policy-calculator/internal/config"
)

func TestHandleSuggest(t *testing.T) {
	Convey("Given a ready handle over a broad policy", t, func() {
		cat, err := catalog.New(config.Default())
		So(err, ShouldBeNil)
		cache := New(cat, 4)
		h, err := cache.Compute(context.Background(), smallRequest(40))
		So(err, ShouldBeNil)

		Convey("Suggest on no reveals returns the root's decision and stage 0", func() {
			s, err := h.Suggest(nil)
			So(err, ShouldBeNil)
			So(s.Stage, ShouldEqual, 0)
			So(s.SuccessProbability, ShouldBeBetweenOrEqual, 0.0, 1.0)
		})

		Convey("Suggest rejects a duplicate revealed buff id", func() {
			_, err := h.Suggest([]RevealedBuff{{BuffID: "crit_damage", Value: 126}, {BuffID: "crit_damage", Value: 140}})
			So(err, ShouldNotBeNil)
		})

		Convey("Suggest rejects an unknown buff id", func() {
			_, err := h.Suggest([]RevealedBuff{{BuffID: "nope", Value: 1}})
			So(err, ShouldNotBeNil)
		})

		Convey("Suggest rejects more than MaxSlots reveals", func() {
			revealed := make([]RevealedBuff, catalog.MaxSlots+1)
			for i := range revealed {
				revealed[i] = RevealedBuff{BuffID: catalog.BuffID("x"), Value: 1}
			}
			_, err := h.Suggest(revealed)
			So(err, ShouldNotBeNil)
		})
	})
}
