package activity

import (
	"testing"
	"time"

	"github.com/okian/coachlens/internal/domain/model"
	"github.com/okian/coachlens/internal/domain/thresholds"
	. "github.com/smartystreets/goconvey/convey"
)

var schedule = model.Schedule{DailyXPGoal: 40}

func at(day int) *time.Time {
	ts := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC).AddDate(0, 0, day)
	return &ts
}

func scoredTasks(accs ...int) []model.Task {
	out := make([]model.Task, 0, len(accs))
	for i, a := range accs {
		out = append(out, model.Task{Type: model.TaskLearning, Topic: "t", Questions: 10, QuestionsCorrect: a / 10, CompletedAt: at(i)})
	}
	return out
}

func TestVelocityAndFocus(t *testing.T) {
	Convey("Given weekly XP against a daily goal of 40", t, func() {
		Convey("Then velocity is the share of the five-day goal", func() {
			So(Velocity(150, schedule), ShouldEqual, 75)
		})
		Convey("Then velocity is capped at 100", func() {
			So(Velocity(500, schedule), ShouldEqual, 100)
		})
		Convey("Then a missing goal yields zero", func() {
			So(Velocity(150, model.Schedule{}), ShouldEqual, 0)
		})
	})

	Convey("Focus is productive over engaged time", t, func() {
		So(Focus(450, 600), ShouldEqual, 75)
		So(Focus(10, 0), ShouldEqual, 0)
		So(Focus(900, 600), ShouldEqual, 100)
	})
}

func TestCalculate(t *testing.T) {
	tbl := thresholds.Default()

	Convey("Given a log without any questions", t, func() {
		m := Calculate(schedule, model.ActivityLog{XPAwarded: 100, TimeEngaged: 900, TimeProductive: 600}, tbl)

		Convey("Then accuracy is absent and review accuracy is the sentinel", func() {
			So(m.AccuracyRate, ShouldBeNil)
			So(m.ReviewAccuracy, ShouldEqual, -1)
			So(m.KSI, ShouldBeNil)
			So(m.LMP, ShouldEqual, 0)
		})
	})

	Convey("Given tasks with a weak topic", t, func() {
		log := model.ActivityLog{
			XPAwarded: 180, TimeEngaged: 1800, TimeProductive: 1200, Questions: 30, QuestionsCorrect: 20,
			Tasks: []model.Task{
				{Type: model.TaskLearning, Topic: "Ratios", Questions: 10, QuestionsCorrect: 5},
				{Type: model.TaskReview, Topic: "Fractions", Questions: 10, QuestionsCorrect: 3},
				{Type: model.TaskReview, Topic: "Decimals", Questions: 2, QuestionsCorrect: 0},
				{Type: model.TaskLearning, Topic: "Angles", Questions: 8, QuestionsCorrect: 8},
			},
		}
		m := Calculate(schedule, log, tbl)

		Convey("Then the nemesis is the lowest topic with enough questions", func() {
			So(m.NemesisTopic, ShouldEqual, "Fractions")
		})
		Convey("Then review accuracy only counts review tasks", func() {
			So(m.ReviewAccuracy, ShouldEqual, 25)
		})
		Convey("Then content gap counts struggling topics", func() {
			So(m.ContentGap, ShouldEqual, 2)
		})
	})

	Convey("Given a student with no XP", t, func() {
		m := Calculate(schedule, model.ActivityLog{TimeEngaged: 600}, tbl)

		Convey("Then the status is Dormant", func() {
			So(m.RiskStatus, ShouldEqual, model.RiskDormant)
		})
	})

	Convey("Given a slow student", t, func() {
		m := Calculate(schedule, model.ActivityLog{XPAwarded: 40, TimeEngaged: 900, TimeProductive: 600, Questions: 10, QuestionsCorrect: 9}, tbl)

		Convey("Then low velocity alone is Critical", func() {
			So(m.VelocityScore, ShouldEqual, 20)
			So(m.RiskStatus, ShouldEqual, model.RiskCritical)
		})
	})

	Convey("Given a grinder with a nemesis at moderate velocity", t, func() {
		log := model.ActivityLog{
			XPAwarded: 80, TimeEngaged: 1800, TimeProductive: 1500, Questions: 20, QuestionsCorrect: 10,
			Tasks: []model.Task{{Topic: "Fractions", Questions: 10, QuestionsCorrect: 3}},
		}
		m := Calculate(schedule, log, tbl)

		Convey("Then the accumulated dropout score makes it Critical", func() {
			So(m.VelocityScore, ShouldEqual, 40)
			So(m.Archetype, ShouldEqual, model.ArchetypeGrinder)
			So(m.RiskStatus, ShouldEqual, model.RiskCritical)
		})
	})

	Convey("Given an accurate student just under the attention line", t, func() {
		m := Calculate(schedule, model.ActivityLog{XPAwarded: 110, TimeEngaged: 900, TimeProductive: 600, Questions: 10, QuestionsCorrect: 9}, tbl)

		Convey("Then the status is Attention", func() {
			So(m.VelocityScore, ShouldEqual, 55)
			So(m.RiskStatus, ShouldEqual, model.RiskAttention)
		})
	})

	Convey("Given a student on pace", t, func() {
		m := Calculate(schedule, model.ActivityLog{XPAwarded: 160, TimeEngaged: 900, TimeProductive: 600, Questions: 10, QuestionsCorrect: 9}, tbl)

		Convey("Then the status is OnTrack", func() {
			So(m.RiskStatus, ShouldEqual, model.RiskOnTrack)
		})
	})
}

func TestArchetypes(t *testing.T) {
	tbl := thresholds.Default()
	cases := []struct {
		name string
		log  model.ActivityLog
		want model.Archetype
	}{
		{"short session", model.ActivityLog{XPAwarded: 50, TimeEngaged: 300, TimeProductive: 100, Questions: 10, QuestionsCorrect: 2}, model.ArchetypeNone},
		{"zombie", model.ActivityLog{XPAwarded: 50, TimeEngaged: 1200, TimeProductive: 300, Questions: 10, QuestionsCorrect: 9}, model.ArchetypeZombie},
		{"guesser", model.ActivityLog{XPAwarded: 50, TimeEngaged: 1200, TimeProductive: 1000, Questions: 100, QuestionsCorrect: 40}, model.ArchetypeGuesser},
		{"grinder", model.ActivityLog{XPAwarded: 50, TimeEngaged: 1800, TimeProductive: 1500, Questions: 20, QuestionsCorrect: 10}, model.ArchetypeGrinder},
		{"flow master", model.ActivityLog{XPAwarded: 50, TimeEngaged: 1800, TimeProductive: 1500, Questions: 20, QuestionsCorrect: 18}, model.ArchetypeFlowMaster},
		{"neutral", model.ActivityLog{XPAwarded: 50, TimeEngaged: 1800, TimeProductive: 900, Questions: 20, QuestionsCorrect: 18}, model.ArchetypeNeutral},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Calculate(schedule, tc.log, tbl).Archetype; got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestStability(t *testing.T) {
	tbl := thresholds.Default()

	Convey("Given consistent task accuracy", t, func() {
		Convey("Then KSI is perfect", func() {
			So(*KSI(scoredTasks(80, 80, 80), tbl), ShouldEqual, 100)
		})
	})

	Convey("Given alternating task accuracy", t, func() {
		Convey("Then KSI bottoms out", func() {
			So(*KSI(scoredTasks(0, 100, 0, 100), tbl), ShouldEqual, 0)
		})
	})

	Convey("Given too few scored tasks", t, func() {
		Convey("Then KSI is absent", func() {
			So(KSI(scoredTasks(80, 90), tbl), ShouldBeNil)
		})
	})

	Convey("Given more scored tasks than the LMP window", t, func() {
		tasks := scoredTasks(100, 100, 90, 90, 90, 90, 90, 50, 50, 50, 50, 50)

		Convey("Then only the most recent ten count", func() {
			So(LMP(tasks, tbl), ShouldAlmostEqual, 0.5)
		})
	})
}
