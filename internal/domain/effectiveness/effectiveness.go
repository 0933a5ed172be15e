// Package effectiveness ranks intervention objectives and coaches by the
// measured impact of their interventions.
package effectiveness

import (
	"math"
	"sort"

	"github.com/okian/coachlens/internal/domain/model"
	"github.com/okian/coachlens/internal/domain/thresholds"
)

// ObjectiveStats summarises interventions sharing an objective.
type ObjectiveStats struct {
	Objective         string     `json:"objective"`
	Total             int        `json:"total"`
	Improved          int        `json:"improved"`
	SuccessRate       float64    `json:"success_rate"`
	AvgRiskDecrease   float64    `json:"avg_risk_decrease"`
	MostEffectiveTier model.Tier `json:"most_effective_tier"`
}

// CoachStats is one row of the coach leaderboard.
type CoachStats struct {
	Rank            int     `json:"rank"`
	Coach           string  `json:"coach"`
	Interventions   int     `json:"interventions"`
	Students        int     `json:"students"`
	Improved        int     `json:"improved"`
	SuccessRate     float64 `json:"success_rate"`
	AvgRiskDecrease float64 `json:"avg_risk_decrease"`
	FollowUpRate    float64 `json:"follow_up_rate"`
	ImpactScore     int     `json:"impact_score"`
}

// tally accumulates the shared counters for a group of impacts.
type tally struct {
	total, improved int
	decreaseSum     float64
	decreaseN       int
}

func (t *tally) add(im model.InterventionImpact) {
	t.total++
	if im.Improved {
		t.improved++
	}
	if im.DeltaWeek4 != nil {
		t.decreaseSum += math.Abs(float64(*im.DeltaWeek4))
		t.decreaseN++
	}
}

func (t *tally) successRate() float64 {
	if t.total == 0 {
		return 0
	}
	return round1(float64(t.improved) / float64(t.total) * 100)
}

// avgDecrease is the mean magnitude of the week-4 delta.
func (t *tally) avgDecrease() float64 {
	if t.decreaseN == 0 {
		return 0
	}
	return round1(t.decreaseSum / float64(t.decreaseN))
}

// ByObjective groups impacts by objective, ordered by success rate.
func ByObjective(impacts []model.InterventionImpact, t thresholds.Table) []ObjectiveStats {
	type group struct {
		tally
		all, improved map[model.Tier]int
	}
	groups := make(map[string]*group)
	for _, im := range impacts {
		key := im.Intervention.Objective
		g, ok := groups[key]
		if !ok {
			g = &group{all: map[model.Tier]int{}, improved: map[model.Tier]int{}}
			groups[key] = g
		}
		g.add(im)
		if im.BaselineRisk != nil {
			tier := TierOf(*im.BaselineRisk, t)
			g.all[tier]++
			if im.Improved {
				g.improved[tier]++
			}
		}
	}

	out := make([]ObjectiveStats, 0, len(groups))
	for objective, g := range groups {
		counts := g.improved
		if len(counts) == 0 {
			counts = g.all
		}
		out = append(out, ObjectiveStats{
			Objective:         objective,
			Total:             g.total,
			Improved:          g.tally.improved,
			SuccessRate:       g.successRate(),
			AvgRiskDecrease:   g.avgDecrease(),
			MostEffectiveTier: mostFrequent(counts),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SuccessRate != out[j].SuccessRate {
			return out[i].SuccessRate > out[j].SuccessRate
		}
		return out[i].Objective < out[j].Objective
	})
	return out
}

// ByCoach builds the coach leaderboard, ranked by composite impact score.
func ByCoach(impacts []model.InterventionImpact, t thresholds.Table) []CoachStats {
	type group struct {
		tally
		perStudent map[string]int
	}
	groups := make(map[string]*group)
	for _, im := range impacts {
		key := im.Intervention.Coach
		g, ok := groups[key]
		if !ok {
			g = &group{perStudent: map[string]int{}}
			groups[key] = g
		}
		g.add(im)
		g.perStudent[im.Intervention.StudentID]++
	}

	out := make([]CoachStats, 0, len(groups))
	for coach, g := range groups {
		followed := 0
		for _, n := range g.perStudent {
			if n >= 2 {
				followed++
			}
		}
		followUp := 0.0
		if len(g.perStudent) > 0 {
			followUp = round1(float64(followed) / float64(len(g.perStudent)) * 100)
		}
		sr, dec := g.successRate(), g.avgDecrease()
		out = append(out, CoachStats{
			Coach:           coach,
			Interventions:   g.total,
			Students:        len(g.perStudent),
			Improved:        g.tally.improved,
			SuccessRate:     sr,
			AvgRiskDecrease: dec,
			FollowUpRate:    followUp,
			ImpactScore:     ImpactScore(sr, dec, followUp, t),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ImpactScore != out[j].ImpactScore {
			return out[i].ImpactScore > out[j].ImpactScore
		}
		return out[i].Coach < out[j].Coach
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// ImpactScore combines success rate, average decrease and follow-up rate.
func ImpactScore(successRate, avgDecrease, followUpRate float64, t thresholds.Table) int {
	return int(math.Round(successRate*t.CoachSuccessWeight + avgDecrease*t.CoachDecreaseWeight + followUpRate*t.CoachFollowUpWeight))
}

// TierOf buckets a risk score with the red and yellow thresholds.
func TierOf(risk int, t thresholds.Table) model.Tier {
	switch {
	case float64(risk) >= t.RiskRedThreshold:
		return model.TierRed
	case float64(risk) >= t.RiskYellowThreshold:
		return model.TierYellow
	default:
		return model.TierGreen
	}
}

// mostFrequent picks the tier with the highest count, more urgent tiers winning ties.
func mostFrequent(counts map[model.Tier]int) model.Tier {
	var best model.Tier
	bestN := 0
	for _, tier := range []model.Tier{model.TierRed, model.TierYellow, model.TierGreen} {
		if counts[tier] > bestN {
			best, bestN = tier, counts[tier]
		}
	}
	return best
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
