// Package impact measures how a student's risk moved after an intervention.
package impact

import (
	"math"
	"time"

	"github.com/okian/coachlens/internal/domain/model"
	"github.com/okian/coachlens/internal/domain/snapshot"
	"github.com/okian/coachlens/internal/domain/thresholds"
)

const day = 24 * time.Hour

// Horizons measured after an intervention.
const (
	Week1 = 7 * day
	Week2 = 14 * day
	Week4 = 28 * day

	beforeOffset = -7 * day
	afterOffset  = 14 * day

	metricPoints       = 25.0 // per improved metric, four metrics
	saturatingIncrease = 20.0 // percent change that earns full points
)

// Measure computes the risk trajectory around an intervention from the
// student's snapshot history.
func Measure(ev model.InterventionEvent, snaps []model.MetricsSnapshot, t thresholds.Table) model.InterventionImpact {
	out := model.InterventionImpact{Intervention: ev}
	tolerance := time.Duration(t.ImpactMatchTolerance * float64(day))

	riskAt := func(offset time.Duration) *int {
		s, ok := snapshot.Within(snaps, ev.At.Add(offset), tolerance)
		if !ok {
			return nil
		}
		v := s.RiskScore
		return &v
	}

	out.BaselineRisk = riskAt(0)
	out.Week1Risk = riskAt(Week1)
	out.Week2Risk = riskAt(Week2)
	out.Week4Risk = riskAt(Week4)
	out.DeltaWeek1 = delta(out.BaselineRisk, out.Week1Risk)
	out.DeltaWeek2 = delta(out.BaselineRisk, out.Week2Risk)
	out.DeltaWeek4 = delta(out.BaselineRisk, out.Week4Risk)

	out.Improved = out.DeltaWeek4 != nil && *out.DeltaWeek4 < t.ImprovementThreshold
	// Implied by Improved with the default threshold; kept as its own flag.
	out.SustainedImprovement = out.Improved && *out.DeltaWeek4 < 0
	return out
}

func delta(base, later *int) *int {
	if base == nil || later == nil {
		return nil
	}
	d := *later - *base
	return &d
}

// MetricChange is one metric compared before and after an intervention.
type MetricChange struct {
	Name      string   `json:"name"`
	Before    *float64 `json:"before"`
	After     *float64 `json:"after"`
	Favorable bool     `json:"favorable"`
}

// Comparison is the before/after view of an intervention.
type Comparison struct {
	Before           *model.MetricsSnapshot `json:"before"`
	After            *model.MetricsSnapshot `json:"after"`
	Changes          []MetricChange         `json:"changes"`
	FavorableCount   int                    `json:"favorable_count"`
	OverallImproved  bool                   `json:"overall_improved"`
	ImprovementScore int                    `json:"improvement_score"`
}

// CompareBeforeAfter contrasts the snapshot a week before the intervention
// with the one two weeks after. Higher is better for every compared metric.
func CompareBeforeAfter(ev model.InterventionEvent, snaps []model.MetricsSnapshot, t thresholds.Table) Comparison {
	tolerance := time.Duration(t.ImpactMatchTolerance * float64(day))
	var out Comparison
	if s, ok := snapshot.Within(snaps, ev.At.Add(beforeOffset), tolerance); ok {
		out.Before = &s
	}
	if s, ok := snapshot.Within(snaps, ev.At.Add(afterOffset), tolerance); ok {
		out.After = &s
	}

	score := 0.0
	for _, m := range comparedMetrics {
		c := MetricChange{Name: m.name}
		if out.Before != nil {
			c.Before = m.value(*out.Before)
		}
		if out.After != nil {
			c.After = m.value(*out.After)
		}
		if c.Before != nil && c.After != nil && *c.After > *c.Before {
			c.Favorable = true
			out.FavorableCount++
			pct := (*c.After - *c.Before) / math.Max(math.Abs(*c.Before), 1) * 100
			score += metricPoints * math.Min(1, pct/saturatingIncrease)
		}
		out.Changes = append(out.Changes, c)
	}
	out.OverallImproved = out.FavorableCount >= 2
	out.ImprovementScore = int(math.Round(math.Max(0, math.Min(100, score))))
	return out
}

type metric struct {
	name  string
	value func(model.MetricsSnapshot) *float64
}

var comparedMetrics = []metric{
	{"rsr", func(s model.MetricsSnapshot) *float64 { return &s.RSR }},
	{"ksi", func(s model.MetricsSnapshot) *float64 {
		if s.KSI == nil {
			return nil
		}
		v := float64(*s.KSI)
		return &v
	}},
	{"velocity", func(s model.MetricsSnapshot) *float64 { v := float64(s.Velocity); return &v }},
	{"daily_xp", func(s model.MetricsSnapshot) *float64 { return &s.DailyXP }},
}
