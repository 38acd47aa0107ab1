package confidence

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/flickrank/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestStandardError(t *testing.T) {
	e := New(model.DefaultParams())

	Convey("Given no comparisons", t, func() {
		So(e.StandardError(0, 0, 0, 0), ShouldEqual, 2.0)
	})

	Convey("Given a split record", t, func() {
		// winRate 0.5 over 4: variance 0.0625, scaled by 6.25, over 100.
		se := e.StandardError(4, 2, 2, 0)
		So(se, ShouldAlmostEqual, math.Sqrt(0.0625*6.25/100), 1e-12)
	})

	Convey("Ties count as half a win", t, func() {
		So(e.StandardError(2, 0, 0, 2), ShouldAlmostEqual, e.StandardError(2, 1, 1, 0), 1e-12)
	})
}

func TestInterval(t *testing.T) {
	e := New(model.DefaultParams())

	Convey("Given a 0.95 interval", t, func() {
		iv, err := e.Interval(5, 0.1, 0.95)
		So(err, ShouldBeNil)
		So(iv.Lower, ShouldAlmostEqual, 5-0.196, 1e-12)
		So(iv.Upper, ShouldAlmostEqual, 5+0.196, 1e-12)
		So(iv.Width, ShouldAlmostEqual, 0.392, 1e-12)
	})

	Convey("Given a 0.99 interval near the edge", t, func() {
		iv, err := e.Interval(9.9, 0.5, 0.99)
		So(err, ShouldBeNil)
		So(iv.Upper, ShouldEqual, 10.0)
		So(iv.Width, ShouldAlmostEqual, 2*2.576*0.5, 1e-12)
	})

	Convey("Given an unsupported level", t, func() {
		_, err := e.Interval(5, 0.1, 0.9)
		So(errors.Is(err, model.ErrUnsupportedConfidenceLevel), ShouldBeTrue)
	})
}

func TestStopping(t *testing.T) {
	e := New(model.DefaultParams())

	Convey("Three straight wins converge", t, func() {
		se := e.StandardError(3, 3, 0, 0)
		So(se, ShouldEqual, 0)
		iv, err := e.Interval(8, se, 0.95)
		So(err, ShouldBeNil)
		So(iv.Width, ShouldEqual, 0)
		So(e.HasConverged(3, iv.Width), ShouldBeTrue)

		stop, reason := e.ShouldStop(3, iv.Width)
		So(stop, ShouldBeTrue)
		So(reason, ShouldEqual, model.StopConverged)
	})

	Convey("Nothing stops before the minimum", t, func() {
		stop, _ := e.ShouldStop(2, 0)
		So(stop, ShouldBeFalse)
		So(e.HasConverged(2, 0), ShouldBeFalse)
	})

	Convey("The maximum forces a stop regardless of width", t, func() {
		stop, reason := e.ShouldStop(5, 4.0)
		So(stop, ShouldBeTrue)
		So(reason, ShouldEqual, model.StopExhausted)
	})

	Convey("A wide interval in the middle keeps going", t, func() {
		stop, reason := e.ShouldStop(4, 0.61)
		So(stop, ShouldBeFalse)
		So(reason, ShouldEqual, model.StopReason(""))
	})
}

func TestStats(t *testing.T) {
	e := New(model.DefaultParams())

	Convey("Stats counts comparisons from the record", t, func() {
		st, err := e.Stats(6.4, 2, 1, 1)
		So(err, ShouldBeNil)
		So(st.Comparisons, ShouldEqual, 4)
		So(st.Rating, ShouldEqual, 6.4)
		So(st.Interval.Width, ShouldBeGreaterThanOrEqualTo, 0)
		So(st.Interval.Level, ShouldEqual, 0.95)
	})
}
