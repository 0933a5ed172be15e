package cohort

import (
	"testing"
	"time"

	"github.com/okian/coachlens/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func course(startDay, doneDay int) model.Course {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, startDay)
	c := model.Course{Name: "Algebra 2", StartedAt: &start}
	if doneDay >= 0 {
		done := start.AddDate(0, 0, doneDay)
		c.CompletedAt = &done
	}
	return c
}

func TestCompare(t *testing.T) {
	Convey("Given coached and uncoached students", t, func() {
		students := []Student{
			{StudentID: "a", Course: course(0, 30)},
			{StudentID: "b", Course: course(0, 50)},
			{StudentID: "c", Course: course(0, -1)},
			{StudentID: "d", Course: course(5, 60)},
			{StudentID: "e", Course: course(0, -1)},
		}
		interventions := []model.InterventionEvent{{StudentID: "a"}, {StudentID: "a"}, {StudentID: "b"}, {StudentID: "c"}}

		got := Compare(students, interventions)

		Convey("Then each side reports counts, completion rate and average duration", func() {
			So(got.WithIntervention.Count, ShouldEqual, 3)
			So(got.WithIntervention.Completed, ShouldEqual, 2)
			So(got.WithIntervention.CompletionRate, ShouldEqual, 66.7)
			So(*got.WithIntervention.AvgCompletionDays, ShouldEqual, 40)

			So(got.WithoutIntervention.Count, ShouldEqual, 2)
			So(got.WithoutIntervention.CompletionRate, ShouldEqual, 50)
			So(*got.WithoutIntervention.AvgCompletionDays, ShouldEqual, 60)
		})
	})

	Convey("Given nobody completed", t, func() {
		got := Compare([]Student{{StudentID: "x", Course: course(0, -1)}}, nil)

		Convey("Then the average duration is absent", func() {
			So(got.WithoutIntervention.AvgCompletionDays, ShouldBeNil)
			So(got.WithIntervention.Count, ShouldEqual, 0)
		})
	})

	Convey("Given completions without a usable start date", t, func() {
		done := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		late := done.AddDate(0, 0, 10)
		students := []Student{
			{StudentID: "x", Course: model.Course{Name: "Geometry", CompletedAt: &done}},
			{StudentID: "y", Course: model.Course{Name: "Geometry"}},
			{StudentID: "z", Course: model.Course{Name: "Geometry", StartedAt: &late, CompletedAt: &done}},
			{StudentID: "w", Course: course(0, 20)},
		}

		got := Compare(students, nil).WithoutIntervention

		Convey("Then they count as completed but not toward the duration", func() {
			So(got.Count, ShouldEqual, 4)
			So(got.Completed, ShouldEqual, 3)
			So(got.CompletionRate, ShouldEqual, 75)
			So(*got.AvgCompletionDays, ShouldEqual, 20)
		})
	})

	Convey("Given only an undated completion", t, func() {
		done := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		got := Compare([]Student{
			{StudentID: "x", Course: model.Course{CompletedAt: &done}},
			{StudentID: "y"},
		}, nil).WithoutIntervention

		Convey("Then the rate reflects it and the duration is absent", func() {
			So(got.Completed, ShouldEqual, 1)
			So(got.CompletionRate, ShouldEqual, 50)
			So(got.AvgCompletionDays, ShouldBeNil)
		})
	})
}
