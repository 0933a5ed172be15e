package model

import "time"

// MetricsSnapshot is a point-in-time capture of a student's risk state.
type MetricsSnapshot struct {
	StudentID  string    `json:"student_id"`
	CapturedAt time.Time `json:"captured_at"`
	RSR        float64   `json:"rsr"`
	KSI        *int      `json:"ksi"`
	Velocity   int       `json:"velocity"`
	RiskScore  int       `json:"risk_score"`
	DER        *int      `json:"der"`
	PDI        *float64  `json:"pdi"`
	Tier       Tier      `json:"tier"`
	DailyXP    float64   `json:"daily_xp"`
}

// Timestamp implements snapshot.Dated.
func (s MetricsSnapshot) Timestamp() time.Time { return s.CapturedAt }

// InterventionEvent records a coach acting on a student.
type InterventionEvent struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	Coach     string    `json:"coach"`
	Objective string    `json:"objective"`
	At        time.Time `json:"at"`
}

// InterventionImpact is the risk trajectory around an intervention.
type InterventionImpact struct {
	Intervention         InterventionEvent `json:"intervention"`
	BaselineRisk         *int              `json:"baseline_risk"`
	Week1Risk            *int              `json:"week1_risk"`
	Week2Risk            *int              `json:"week2_risk"`
	Week4Risk            *int              `json:"week4_risk"`
	DeltaWeek1           *int              `json:"delta_week1"`
	DeltaWeek2           *int              `json:"delta_week2"`
	DeltaWeek4           *int              `json:"delta_week4"`
	Improved             bool              `json:"improved"`
	SustainedImprovement bool              `json:"sustained_improvement"`
}
