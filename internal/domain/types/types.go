// Package types contains common types used across the application
package types

import (
	"time"

	"github.com/okian/coachlens/internal/domain/model"
)

// StudentRecord is the latest evaluation of a student.
type StudentRecord struct {
	StudentID   string           `json:"student_id"`
	Course      model.Course     `json:"course"`
	WeeklyXP    int              `json:"weekly_xp"`
	EvaluatedAt time.Time        `json:"evaluated_at"`
	Metrics     model.Metrics    `json:"metrics"`
	DRI         model.DRIMetrics `json:"dri"`
}

// Snapshot captures the record as a point-in-time snapshot.
func (r StudentRecord) Snapshot() model.MetricsSnapshot {
	return model.MetricsSnapshot{
		StudentID:  r.StudentID,
		CapturedAt: r.EvaluatedAt,
		RSR:        r.Metrics.RSR(),
		KSI:        r.Metrics.KSI,
		Velocity:   r.Metrics.VelocityScore,
		RiskScore:  r.DRI.RiskScore,
		DER:        r.DRI.DebtExposure,
		PDI:        r.DRI.PrecisionDecay,
		Tier:       r.DRI.Tier,
		DailyXP:    float64(r.WeeklyXP) / 5,
	}
}

// TriageEntry represents a row of the triage list
type TriageEntry struct {
	Rank      int        `json:"rank"`
	StudentID string     `json:"student_id"`
	Tier      model.Tier `json:"tier"`
	Signal    string     `json:"signal"`
	RiskScore int        `json:"risk_score"`
}
