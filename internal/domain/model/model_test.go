package model

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestTask(t *testing.T) {
	Convey("Given a scored task", t, func() {
		task := Task{Questions: 10, QuestionsCorrect: 7}

		Convey("Then accuracy and errors are derived from the counts", func() {
			So(task.Scored(), ShouldBeTrue)
			So(task.Accuracy(), ShouldAlmostEqual, 0.7)
			So(task.Errors(), ShouldEqual, 3)
		})
	})

	Convey("Given a task without questions", t, func() {
		task := Task{}

		Convey("Then it carries no accuracy signal", func() {
			So(task.Scored(), ShouldBeFalse)
			So(task.Accuracy(), ShouldEqual, 0)
			So(task.Errors(), ShouldEqual, 0)
		})
	})
}

func TestTierRank(t *testing.T) {
	Convey("Tiers order from most to least urgent", t, func() {
		So(TierRed.Rank(), ShouldBeLessThan, TierYellow.Rank())
		So(TierYellow.Rank(), ShouldBeLessThan, TierGreen.Rank())
		So(Tier("").Rank(), ShouldBeGreaterThan, TierGreen.Rank())
	})
}

func TestScheduleWeeklyGoal(t *testing.T) {
	if got := (Schedule{DailyXPGoal: 40}).WeeklyGoal(); got != 200 {
		t.Fatalf("expected 200, got %d", got)
	}
	if got := (Schedule{}).WeeklyGoal(); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestChronological(t *testing.T) {
	Convey("Given tasks out of order with one missing a timestamp", t, func() {
		base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		t1, t2 := base, base.Add(time.Hour)
		tasks := []Task{
			{Topic: "late", CompletedAt: &t2},
			{Topic: "undated"},
			{Topic: "early", CompletedAt: &t1},
		}

		Convey("Then only dated tasks are returned, oldest first", func() {
			out := Chronological(tasks)
			So(len(out), ShouldEqual, 2)
			So(out[0].Topic, ShouldEqual, "early")
			So(out[1].Topic, ShouldEqual, "late")
		})
	})
}
