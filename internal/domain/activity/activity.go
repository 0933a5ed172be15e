// Package activity turns a weekly activity log into performance metrics.
package activity

import (
	"math"

	"github.com/okian/coachlens/internal/domain/model"
	"github.com/okian/coachlens/internal/domain/thresholds"
)

const (
	archetypeMinEngagedSeconds = 10 * 60
	nemesisMinQuestions        = 2 // strictly more than this
	strugglingAccuracy         = 0.60

	zombieFocus         = 40
	guesserTimePerQ     = 0.3 // minutes
	guesserAccuracy     = 50
	highFocus           = 70
	grinderAccuracy     = 60
	flowMasterAccuracy  = 85
	lowVelocity         = 30
	recoveredVelocity   = 50
	attentionVelocity   = 60
	dropoutAccuracy     = 55
	contentGapCritical  = 5
	dropoutCritical     = 50
	frustratedAccuracy  = 60
	frustratedVelocity  = 30
	reviewAccuracyUnset = -1
)

// Calculate derives Metrics from a log. It never fails; missing inputs
// surface as nil or sentinel values.
func Calculate(schedule model.Schedule, log model.ActivityLog, t thresholds.Table) model.Metrics {
	m := model.Metrics{
		VelocityScore:  Velocity(log.XPAwarded, schedule),
		AccuracyRate:   percentOf(log.QuestionsCorrect, log.Questions),
		FocusIntegrity: Focus(log.TimeProductive, log.TimeEngaged),
		NemesisTopic:   Nemesis(log.Tasks),
		ReviewAccuracy: ReviewAccuracy(log.Tasks),
		ContentGap:     ContentGap(log.Tasks),
		LMP:            LMP(log.Tasks, t),
		KSI:            KSI(log.Tasks, t),
	}
	m.Archetype = classifyArchetype(log, m)
	m.StallStatus = stall(log, m)
	m.RiskStatus = riskStatus(log, m)
	return m
}

// Velocity is weekly XP as a percentage of the weekly goal, capped at 100.
func Velocity(xp int, s model.Schedule) int {
	goal := s.WeeklyGoal()
	if goal <= 0 || xp <= 0 {
		return 0
	}
	v := int(math.Round(float64(xp) / float64(goal) * 100))
	if v > 100 {
		return 100
	}
	return v
}

// Focus is productive time as a percentage of engaged time.
func Focus(productive, engaged int) int {
	if engaged <= 0 || productive <= 0 {
		return 0
	}
	return clampPercent(int(math.Round(float64(productive) / float64(engaged) * 100)))
}

// Nemesis returns the weakest topic below 60% accuracy among tasks with
// more than two questions. The first task wins ties.
func Nemesis(tasks []model.Task) string {
	topic := ""
	lowest := strugglingAccuracy
	for _, t := range tasks {
		if t.Topic == "" || t.Questions <= nemesisMinQuestions {
			continue
		}
		if acc := t.Accuracy(); acc < lowest {
			lowest = acc
			topic = t.Topic
		}
	}
	return topic
}

// ReviewAccuracy is the accuracy over review tasks, or -1 without any.
func ReviewAccuracy(tasks []model.Task) int {
	asked, correct := 0, 0
	for _, t := range tasks {
		if t.Type == model.TaskReview {
			asked += t.Questions
			correct += t.QuestionsCorrect
		}
	}
	if p := percentOf(correct, asked); p != nil {
		return *p
	}
	return reviewAccuracyUnset
}

// ContentGap counts distinct topics with a struggling task.
func ContentGap(tasks []model.Task) int {
	seen := make(map[string]struct{})
	for _, t := range tasks {
		if t.Topic == "" || t.Questions <= nemesisMinQuestions {
			continue
		}
		if t.Accuracy() < strugglingAccuracy {
			seen[t.Topic] = struct{}{}
		}
	}
	return len(seen)
}

// LMP is the share of the most recent scored tasks at or above the success threshold.
func LMP(tasks []model.Task, t thresholds.Table) float64 {
	scored := make([]model.Task, 0, len(tasks))
	for _, task := range model.Chronological(tasks) {
		if task.Scored() {
			scored = append(scored, task)
		}
	}
	if len(scored) == 0 {
		return 0
	}
	if t.LMPWindow > 0 && len(scored) > t.LMPWindow {
		scored = scored[len(scored)-t.LMPWindow:]
	}
	hits := 0
	for _, task := range scored {
		if task.Accuracy() >= t.LMPSuccessThreshold {
			hits++
		}
	}
	return float64(hits) / float64(len(scored))
}

// KSI scores how consistent per-task accuracy is, 100 being perfectly stable.
func KSI(tasks []model.Task, t thresholds.Table) *int {
	var accs []float64
	for _, task := range tasks {
		if task.Scored() {
			accs = append(accs, task.Accuracy()*100)
		}
	}
	if len(accs) == 0 || len(accs) < t.KSIMinTasks {
		return nil
	}
	mean := 0.0
	for _, a := range accs {
		mean += a
	}
	mean /= float64(len(accs))
	variance := 0.0
	for _, a := range accs {
		variance += (a - mean) * (a - mean)
	}
	sigma := math.Sqrt(variance / float64(len(accs)))
	v := clampPercent(int(math.Round(100 - 2*sigma)))
	return &v
}

func classifyArchetype(log model.ActivityLog, m model.Metrics) model.Archetype {
	if log.TimeEngaged <= archetypeMinEngagedSeconds {
		return model.ArchetypeNone
	}
	acc, hasAcc := accuracy(m)
	switch {
	case m.FocusIntegrity < zombieFocus:
		return model.ArchetypeZombie
	case log.Questions > 0 && hasAcc && timePerQuestion(log) < guesserTimePerQ && acc < guesserAccuracy:
		return model.ArchetypeGuesser
	case m.FocusIntegrity > highFocus && hasAcc && acc < grinderAccuracy:
		return model.ArchetypeGrinder
	case m.FocusIntegrity > highFocus && hasAcc && acc > flowMasterAccuracy:
		return model.ArchetypeFlowMaster
	default:
		return model.ArchetypeNeutral
	}
}

func stall(log model.ActivityLog, m model.Metrics) model.StallStatus {
	if log.TimeEngaged <= 0 {
		return model.StallIdle
	}
	acc, hasAcc := accuracy(m)
	if log.TimeEngaged > archetypeMinEngagedSeconds && m.VelocityScore < frustratedVelocity && hasAcc && acc < frustratedAccuracy {
		return model.StallFrustrated
	}
	return model.StallNone
}

func riskStatus(log model.ActivityLog, m model.Metrics) model.RiskStatus {
	if log.XPAwarded <= 0 || log.TimeEngaged <= 0 {
		return model.RiskDormant
	}
	dropout := 0
	if m.VelocityScore < lowVelocity {
		dropout += 30
	}
	if m.VelocityScore > recoveredVelocity {
		dropout = 0
	}
	if acc, ok := accuracy(m); ok && acc < dropoutAccuracy {
		dropout += 20
	}
	if m.NemesisTopic != "" {
		dropout += 20
	}
	if m.Archetype == model.ArchetypeGrinder {
		dropout += 15
	}
	switch {
	case m.VelocityScore < lowVelocity || m.ContentGap > contentGapCritical || dropout > dropoutCritical:
		return model.RiskCritical
	case m.VelocityScore < attentionVelocity:
		return model.RiskAttention
	default:
		return model.RiskOnTrack
	}
}

// timePerQuestion is engaged minutes per question asked.
func timePerQuestion(log model.ActivityLog) float64 {
	return float64(log.TimeEngaged) / 60 / float64(log.Questions)
}

func accuracy(m model.Metrics) (int, bool) {
	if m.AccuracyRate == nil {
		return 0, false
	}
	return *m.AccuracyRate, true
}

func percentOf(part, whole int) *int {
	if whole <= 0 {
		return nil
	}
	p := clampPercent(int(math.Round(float64(part) / float64(whole) * 100)))
	return &p
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
