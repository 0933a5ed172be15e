package effectiveness

import (
	"testing"

	"github.com/okian/coachlens/internal/domain/model"
	"github.com/okian/coachlens/internal/domain/thresholds"
	. "github.com/smartystreets/goconvey/convey"
)

func impact(coach, student, objective string, baseline, d4 int) model.InterventionImpact {
	b, d := baseline, d4
	return model.InterventionImpact{
		Intervention: model.InterventionEvent{Coach: coach, StudentID: student, Objective: objective},
		BaselineRisk: &b,
		DeltaWeek4:   &d,
		Improved:     d4 < -15,
	}
}

func TestByCoach(t *testing.T) {
	tbl := thresholds.Default()

	Convey("Given two coaches with different success and decrease profiles", t, func() {
		var impacts []model.InterventionImpact
		// a: 80% success, average magnitude 17.6
		for i, s := range []string{"a1", "a2", "a3", "a4", "a5"} {
			d := -16
			if i == 4 {
				d = 24
			}
			impacts = append(impacts, impact("a", s, "pacing", 70, d))
		}
		// b: 60% success, average magnitude 30
		for i, s := range []string{"b1", "b2", "b3", "b4", "b5"} {
			d := -30
			if i >= 3 {
				d = 30
			}
			impacts = append(impacts, impact("b", s, "pacing", 70, d))
		}
		board := ByCoach(impacts, tbl)

		Convey("Then the larger average decrease outweighs the higher success rate", func() {
			So(len(board), ShouldEqual, 2)
			So(board[0].Coach, ShouldEqual, "b")
			So(board[0].Rank, ShouldEqual, 1)
			So(board[0].SuccessRate, ShouldEqual, 60)
			So(board[0].AvgRiskDecrease, ShouldEqual, 30)
			So(board[0].ImpactScore, ShouldEqual, 90)
			So(board[1].Coach, ShouldEqual, "a")
			So(board[1].SuccessRate, ShouldEqual, 80)
			So(board[1].AvgRiskDecrease, ShouldEqual, 17.6)
			So(board[1].ImpactScore, ShouldEqual, 75)
		})
	})

	Convey("Given a coach who followed up with one of two students", t, func() {
		impacts := []model.InterventionImpact{
			impact("c", "s1", "focus", 50, -20),
			impact("c", "s1", "focus", 40, -5),
			impact("c", "s2", "focus", 60, 0),
		}
		board := ByCoach(impacts, tbl)

		Convey("Then the follow-up rate counts repeat students", func() {
			So(board[0].Students, ShouldEqual, 2)
			So(board[0].FollowUpRate, ShouldEqual, 50)
			So(board[0].Interventions, ShouldEqual, 3)
		})
	})
}

func TestByObjective(t *testing.T) {
	tbl := thresholds.Default()

	Convey("Given impacts across two objectives", t, func() {
		impacts := []model.InterventionImpact{
			impact("a", "s1", "pacing", 72, -20),
			impact("a", "s2", "pacing", 40, -18),
			impact("a", "s3", "pacing", 65, 5),
			impact("b", "s4", "accuracy", 50, -30),
			impact("b", "s5", "accuracy", 20, -2),
		}
		stats := ByObjective(impacts, tbl)

		Convey("Then objectives are ordered by success rate", func() {
			So(len(stats), ShouldEqual, 2)
			So(stats[0].Objective, ShouldEqual, "pacing")
			So(stats[0].SuccessRate, ShouldEqual, 66.7)
			So(stats[1].Objective, ShouldEqual, "accuracy")
			So(stats[1].SuccessRate, ShouldEqual, 50)
		})

		Convey("Then the average decrease uses the magnitude of the week-4 delta", func() {
			So(stats[0].AvgRiskDecrease, ShouldEqual, 14.3)
			So(stats[1].AvgRiskDecrease, ShouldEqual, 16)
		})

		Convey("Then the most effective tier comes from improved baselines, urgent tiers first", func() {
			So(stats[0].MostEffectiveTier, ShouldEqual, model.TierRed)
			So(stats[1].MostEffectiveTier, ShouldEqual, model.TierYellow)
		})
	})

	Convey("Given an objective with no improvements", t, func() {
		stats := ByObjective([]model.InterventionImpact{impact("a", "s1", "habits", 20, 3)}, tbl)

		Convey("Then the tier falls back to all baselines", func() {
			So(stats[0].MostEffectiveTier, ShouldEqual, model.TierGreen)
			So(stats[0].SuccessRate, ShouldEqual, 0)
		})
	})
}
