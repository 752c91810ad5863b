package apperrors

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestErrorKinds(t *testing.T) {
	Convey("Given one error of each kind", t, func() {
		errs := []*Error{
			InvalidInput("targetScore", "out of range"),
			UnreachableTarget("bracket never crossed zero"),
			Numeric(errors.New("boom"), "V_lambda is NaN"),
			Cancelled(context_Canceled()),
			NotReady("no compute yet"),
		}

		Convey("each matches its own sentinel via errors.Is", func() {
			sentinels := []*Error{InvalidInputSentinel, UnreachableTargetSentinel, NumericSentinel, CancelledSentinel, NotReadySentinel}
			for i, e := range errs {
				So(errors.Is(e, sentinels[i]), ShouldBeTrue)
			}
		})

		Convey("no error matches a different kind's sentinel", func() {
			So(errors.Is(errs[0], NotReadySentinel), ShouldBeFalse)
		})

		Convey("Error() includes the field name when set", func() {
			So(errs[0].Error(), ShouldContainSubstring, "targetScore")
		})

		Convey("Numeric's cause survives Unwrap", func() {
			So(errors.Unwrap(errs[2]), ShouldNotBeNil)
		})
	})

	Convey("Wrap passes nil through and attaches context otherwise", t, func() {
		So(Wrap(nil, "whatever"), ShouldBeNil)
		wrapped := Wrap(errors.New("io failure"), "reading config")
		So(wrapped.Error(), ShouldContainSubstring, "reading config")
	})
}

func context_Canceled() error {
	return errors.New("context canceled")
}
