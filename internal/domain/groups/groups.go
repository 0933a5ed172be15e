// Package groups aggregates student records along an externally supplied
// dimension such as school, class or grade.
package groups

import (
	"math"
	"sort"

	"github.com/okian/coachlens/internal/domain/model"
	"github.com/okian/coachlens/internal/domain/thresholds"
	"github.com/okian/coachlens/internal/domain/types"
)

// Member is one student placed in a group.
type Member struct {
	StudentID string
	Key       string
	RSR       float64
	Velocity  int
	KSI       *int
	RiskScore int
	Accuracy  *int
	Tier      model.Tier
}

// MemberOf places a student's latest record in group key.
func MemberOf(rec types.StudentRecord, key string) Member {
	return Member{
		StudentID: rec.StudentID,
		Key:       key,
		RSR:       rec.Metrics.RSR(),
		Velocity:  rec.Metrics.VelocityScore,
		KSI:       rec.Metrics.KSI,
		RiskScore: rec.DRI.RiskScore,
		Accuracy:  rec.Metrics.AccuracyRate,
		Tier:      rec.DRI.Tier,
	}
}

// Stats summarises one group.
type Stats struct {
	Key                 string   `json:"key"`
	Count               int      `json:"count"`
	AvgRSR              float64  `json:"avg_rsr"`
	AvgVelocity         float64  `json:"avg_velocity"`
	AvgKSI              *float64 `json:"avg_ksi"`
	AvgRiskScore        float64  `json:"avg_risk_score"`
	AvgAccuracy         *float64 `json:"avg_accuracy"`
	Red                 int      `json:"red"`
	Yellow              int      `json:"yellow"`
	Green               int      `json:"green"`
	RSRP25              float64  `json:"rsr_p25"`
	RSRMedian           float64  `json:"rsr_median"`
	RSRP75              float64  `json:"rsr_p75"`
	HasInsufficientData bool     `json:"has_insufficient_data"`
}

// Aggregate groups members by key and ranks groups by average risk, highest first.
func Aggregate(members []Member, t thresholds.Table) []Stats {
	byKey := make(map[string][]Member)
	for _, m := range members {
		byKey[m.Key] = append(byKey[m.Key], m)
	}
	out := make([]Stats, 0, len(byKey))
	for key, ms := range byKey {
		out = append(out, summarize(key, ms, t))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AvgRiskScore != out[j].AvgRiskScore {
			return out[i].AvgRiskScore > out[j].AvgRiskScore
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func summarize(key string, ms []Member, t thresholds.Table) Stats {
	s := Stats{Key: key, Count: len(ms), HasInsufficientData: len(ms) < t.MinGroupSize}
	rsr := make([]float64, 0, len(ms))
	var ksi, acc []float64
	var sumRSR, sumVel, sumRisk float64
	for _, m := range ms {
		sumRSR += m.RSR
		sumVel += float64(m.Velocity)
		sumRisk += float64(m.RiskScore)
		rsr = append(rsr, m.RSR)
		if m.KSI != nil {
			ksi = append(ksi, float64(*m.KSI))
		}
		if m.Accuracy != nil {
			acc = append(acc, float64(*m.Accuracy))
		}
		switch m.Tier {
		case model.TierRed:
			s.Red++
		case model.TierYellow:
			s.Yellow++
		case model.TierGreen:
			s.Green++
		}
	}
	n := float64(len(ms))
	s.AvgRSR = round1(sumRSR / n)
	s.AvgVelocity = round1(sumVel / n)
	s.AvgRiskScore = round1(sumRisk / n)
	s.AvgKSI = mean(ksi)
	s.AvgAccuracy = mean(acc)

	sort.Float64s(rsr)
	s.RSRP25 = Percentile(rsr, 25)
	s.RSRMedian = Percentile(rsr, 50)
	s.RSRP75 = Percentile(rsr, 75)
	return s
}

// Percentile interpolates linearly between the closest ranks of an
// ascending slice. p is clamped to [0, 100]; an empty slice yields 0.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	p = math.Max(0, math.Min(100, p))
	idx := p / 100 * float64(n-1)
	lo, hi := int(math.Floor(idx)), int(math.Ceil(idx))
	frac := idx - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func mean(vs []float64) *float64 {
	if len(vs) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	m := round1(sum / float64(len(vs)))
	return &m
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
