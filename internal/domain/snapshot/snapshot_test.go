package snapshot

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type capture struct {
	id string
	at time.Time
}

func (c capture) Timestamp() time.Time { return c.at }

func TestClosest(t *testing.T) {
	base := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	Convey("Given no captures", t, func() {
		_, ok := Closest([]capture(nil), base)

		Convey("Then nothing is found", func() {
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given captures around the target", t, func() {
		items := []capture{
			{id: "a", at: base.Add(-3 * day)},
			{id: "b", at: base.Add(2 * day)},
			{id: "c", at: base.Add(-2 * day)},
			{id: "d", at: base.Add(9 * day)},
		}

		Convey("Then the nearest one is returned and the first wins a tie", func() {
			got, ok := Closest(items, base)
			So(ok, ShouldBeTrue)
			So(got.id, ShouldEqual, "b")
		})

		Convey("Then a target past the last capture returns the last", func() {
			got, _ := Closest(items, base.Add(30*day))
			So(got.id, ShouldEqual, "d")
		})

		Convey("Then a tolerance rejects distant matches", func() {
			_, ok := Within(items, base.Add(30*day), 7*day)
			So(ok, ShouldBeFalse)

			got, ok := Within(items, base.Add(8*day), 7*day)
			So(ok, ShouldBeTrue)
			So(got.id, ShouldEqual, "d")
		})

		Convey("Then a zero tolerance behaves like Closest", func() {
			got, ok := Within(items, base.Add(30*day), 0)
			So(ok, ShouldBeTrue)
			So(got.id, ShouldEqual, "d")
		})
	})
}
