// Package risk computes the Dynamic Risk Index for a single student.
//
// Evaluation runs in order: inactivity short-circuit, debt exposure,
// precision decay, efficiency, the weighted composite and finally the
// tier classification with its recent-success gatekeeper.
package risk

import (
	"math"
	"strings"
	"time"

	"github.com/okian/coachlens/internal/domain/difficulty"
	"github.com/okian/coachlens/internal/domain/model"
	"github.com/okian/coachlens/internal/domain/thresholds"
)

// Contribution steps applied to the factor weights.
const (
	derSevereShare  = 0.67
	derWatchShare   = 0.33
	velocityCrisis  = 20
	velocitySlow    = 50
	velocityBelow   = 80
	velocitySlowPct = 0.6
	velocityBelowPc = 0.2
	pdiSevereShare  = 0.5
	ksiLowShare     = 0.53
	lowVelocity     = 30
	inactiveScore   = 100
	hoursPerDay     = 24
)

// Input is everything the engine reads for one student.
type Input struct {
	Log     model.ActivityLog
	Metrics model.Metrics
	Course  string
}

// Evaluate produces the DRI for one student. It never fails.
func Evaluate(in Input, r difficulty.Resolver, t thresholds.Table, now time.Time) model.DRIMetrics {
	if Inactive(in.Log.Tasks, t, now) {
		return model.DRIMetrics{
			Tier:          model.TierRed,
			Signal:        model.SignalInactive,
			RiskScore:     inactiveScore,
			WeightedScore: inactiveScore,
		}
	}

	der := DebtExposure(in.Log.Tasks, in.Course, r, t)
	pdi := PrecisionDecay(in.Log.Tasks, in.Course, r, t)
	weighted := WeightedScore(Factors{
		DER:      der,
		Velocity: in.Metrics.VelocityScore,
		PDI:      pdi,
		KSI:      in.Metrics.KSI,
		Stall:    in.Metrics.StallStatus,
	}, t)

	tier, signal, score := Classify(in.Metrics.RSR(), weighted, der, in.Metrics.VelocityScore, t)
	return model.DRIMetrics{
		IROI:           IROI(in.Log.XPAwarded, in.Log.TimeEngaged),
		DebtExposure:   der,
		PrecisionDecay: pdi,
		Tier:           tier,
		Signal:         signal,
		RiskScore:      score,
		WeightedScore:  weighted,
	}
}

// Inactive reports whether the newest dated task is older than the
// inactivity threshold. A log with no dated task is inactive.
func Inactive(tasks []model.Task, t thresholds.Table, now time.Time) bool {
	days, ok := DaysSinceLastActivity(tasks, now)
	return !ok || days > float64(t.InactivityDaysThreshold)
}

// DaysSinceLastActivity returns fractional days since the newest dated task.
func DaysSinceLastActivity(tasks []model.Task, now time.Time) (float64, bool) {
	var latest *time.Time
	for i := range tasks {
		ts := tasks[i].CompletedAt
		if ts != nil && (latest == nil || ts.After(*latest)) {
			latest = ts
		}
	}
	if latest == nil {
		return 0, false
	}
	return now.Sub(*latest).Hours() / hoursPerDay, true
}

// DebtExposure is the percentage of mastered tasks that sit at K-8 level.
// It is nil until the student has mastered enough tasks.
func DebtExposure(tasks []model.Task, course string, r difficulty.Resolver, t thresholds.Table) *int {
	mastered, k8 := 0, 0
	for _, task := range tasks {
		if !task.Scored() || task.Accuracy() <= t.DERMasteryThreshold {
			continue
		}
		mastered++
		if tierOf(task, course, r) == thresholds.TierK8 {
			k8++
		}
	}
	if mastered < t.DERMinTasks {
		return nil
	}
	v := int(math.Round(float64(k8) / float64(mastered) * 100))
	return &v
}

// PrecisionDecay compares errors in the most recent window of tasks with
// the earliest window. Values above 1 mean the student is getting sloppier.
func PrecisionDecay(tasks []model.Task, course string, r difficulty.Resolver, t thresholds.Table) *float64 {
	chron := model.Chronological(tasks)
	n := len(chron)
	if n == 0 {
		return nil
	}
	w := windowSize(n, t)
	start := windowErrors(chron[:w], course, r, t)
	end := windowErrors(chron[n-w:], course, r, t)
	v := round2((end + 1) / (start + 1))
	return &v
}

func windowSize(n int, t thresholds.Table) int {
	w := int(math.Ceil(t.PDIWindowFraction * float64(n)))
	if w < t.PDIWindowMin {
		w = t.PDIWindowMin
	}
	if t.PDIWindowSize > 0 && w > t.PDIWindowSize {
		w = t.PDIWindowSize
	}
	if w > n {
		w = n
	}
	return w
}

func windowErrors(window []model.Task, course string, r difficulty.Resolver, t thresholds.Table) float64 {
	total := 0.0
	for _, task := range window {
		e := float64(task.Errors())
		if t.PDINormalizeByDifficulty {
			e /= t.DifficultyFactor(tierOf(task, course, r))
		}
		total += e
	}
	return total
}

// IROI is XP earned per engaged second.
func IROI(xp, engagedSeconds int) *float64 {
	if engagedSeconds <= 0 {
		return nil
	}
	v := round2(float64(xp) / float64(engagedSeconds))
	return &v
}

// Factors are the inputs of the weighted composite.
type Factors struct {
	DER      *int
	Velocity int
	PDI      *float64
	KSI      *int
	Stall    model.StallStatus
}

// WeightedScore sums the factor contributions and clamps to [0,100].
func WeightedScore(f Factors, t thresholds.Table) int {
	w := t.RiskWeights
	total := 0.0

	if f.DER != nil {
		der := float64(*f.DER)
		switch {
		case der > t.DERCriticalThreshold:
			total += w.DebtExposure
		case der > t.DERSevereThreshold:
			total += w.DebtExposure * derSevereShare
		case der > t.DERWatchThreshold:
			total += w.DebtExposure * derWatchShare
		}
	}

	switch {
	case f.Velocity < velocityCrisis:
		total += w.Velocity
	case f.Velocity < velocitySlow:
		total += w.Velocity * velocitySlowPct
	case f.Velocity < velocityBelow:
		total += w.Velocity * velocityBelowPc
	}

	if f.PDI != nil {
		switch {
		case *f.PDI > t.PDICriticalThreshold:
			total += w.PrecisionDecay
		case *f.PDI > t.PDISevereThreshold:
			total += w.PrecisionDecay * pdiSevereShare
		}
	}

	if f.KSI != nil {
		ksi := float64(*f.KSI)
		switch {
		case ksi < t.KSICriticalThreshold:
			total += w.Stability
		case ksi < t.KSILowThreshold:
			total += w.Stability * ksiLowShare
		}
	}

	if f.Stall == model.StallFrustrated {
		total += w.StallStatus
	}

	return int(math.Round(math.Max(0, math.Min(100, total))))
}

// Classify maps the weighted score to a tier, signal and reported score.
// When the recent success rate is under the gate, the tier is forced to at
// least YELLOW and the score is raised to the gated floor.
func Classify(rsr float64, weighted int, der *int, velocity int, t thresholds.Table) (model.Tier, string, int) {
	var (
		tier   model.Tier
		signal string
		score  = weighted
	)
	switch {
	case rsr < t.RSRGateThreshold && float64(weighted) >= t.RiskYellowThreshold:
		tier, signal = model.TierRed, model.SignalCriticalFailure
		score = max(weighted, t.GatedRedFloor)
	case rsr < t.RSRGateThreshold:
		tier, signal = model.TierYellow, model.SignalLowAccuracy
		score = max(weighted, t.GatedYellowFloor)
	case float64(weighted) >= t.RiskRedThreshold:
		tier, signal = model.TierRed, model.SignalHighRisk
	case float64(weighted) >= t.RiskYellowThreshold:
		tier, signal = model.TierYellow, model.SignalWatchList
	default:
		tier, signal = model.TierGreen, model.SignalFlowing
	}

	if tier == model.TierRed && !strings.Contains(signal, "Critical") {
		switch {
		case der != nil && float64(*der) > t.DERCriticalThreshold:
			signal = model.SignalCriticalDebt
		case velocity < lowVelocity:
			signal = model.SignalLowVelocity
		}
	}
	return tier, signal, score
}

func tierOf(task model.Task, course string, r difficulty.Resolver) string {
	if task.Course != "" {
		course = task.Course
	}
	tier, _ := r.Resolve(course, task.Topic)
	return tier
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
