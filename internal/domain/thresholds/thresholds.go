// Package thresholds holds the tunable constants every risk computation reads.
//
// A Table is always passed explicitly; nothing in the domain reads a global.
package thresholds

import (
	"errors"
	"fmt"
)

// Difficulty tiers understood by the debt and decay calculations.
const (
	TierK8 = "K-8"
	TierHS = "HS"
	TierAP = "AP"
)

// ErrInvalidTable is returned by Validate when a table is unusable.
var ErrInvalidTable = errors.New("invalid threshold table")

// RiskWeights holds the maximum contribution of each DRI factor.
type RiskWeights struct {
	DebtExposure   float64 `koanf:"debt_exposure" json:"debt_exposure"`
	Velocity       float64 `koanf:"velocity" json:"velocity"`
	PrecisionDecay float64 `koanf:"precision_decay" json:"precision_decay"`
	Stability      float64 `koanf:"stability" json:"stability"`
	StallStatus    float64 `koanf:"stall_status" json:"stall_status"`
}

// Total returns the sum of all factor weights.
func (w RiskWeights) Total() float64 {
	return w.DebtExposure + w.Velocity + w.PrecisionDecay + w.Stability + w.StallStatus
}

// Table is the threshold table shared by the metrics, risk and impact engines.
type Table struct {
	InactivityDaysThreshold int `koanf:"inactivity_days" json:"inactivity_days"`

	DERMasteryThreshold  float64 `koanf:"der_mastery" json:"der_mastery"`
	DERMinTasks          int     `koanf:"der_min_tasks" json:"der_min_tasks"`
	DERCriticalThreshold float64 `koanf:"der_critical" json:"der_critical"`
	DERSevereThreshold   float64 `koanf:"der_severe" json:"der_severe"`
	DERWatchThreshold    float64 `koanf:"der_watch" json:"der_watch"`

	PDIWindowSize            int                `koanf:"pdi_window_size" json:"pdi_window_size"`
	PDIWindowMin             int                `koanf:"pdi_window_min" json:"pdi_window_min"`
	PDIWindowFraction        float64            `koanf:"pdi_window_fraction" json:"pdi_window_fraction"`
	PDICriticalThreshold     float64            `koanf:"pdi_critical" json:"pdi_critical"`
	PDISevereThreshold       float64            `koanf:"pdi_severe" json:"pdi_severe"`
	PDINormalizeByDifficulty bool               `koanf:"pdi_normalize" json:"pdi_normalize"`
	TopicDifficulty          map[string]float64 `koanf:"topic_difficulty" json:"topic_difficulty"`

	RiskWeights         RiskWeights `koanf:"risk_weights" json:"risk_weights"`
	RiskRedThreshold    float64     `koanf:"risk_red" json:"risk_red"`
	RiskYellowThreshold float64     `koanf:"risk_yellow" json:"risk_yellow"`

	KSICriticalThreshold float64 `koanf:"ksi_critical" json:"ksi_critical"`
	KSILowThreshold      float64 `koanf:"ksi_low" json:"ksi_low"`
	KSIMinTasks          int     `koanf:"ksi_min_tasks" json:"ksi_min_tasks"`

	RSRGateThreshold float64 `koanf:"rsr_gate" json:"rsr_gate"`
	GatedRedFloor    int     `koanf:"gated_red_floor" json:"gated_red_floor"`
	GatedYellowFloor int     `koanf:"gated_yellow_floor" json:"gated_yellow_floor"`

	LMPWindow           int     `koanf:"lmp_window" json:"lmp_window"`
	LMPSuccessThreshold float64 `koanf:"lmp_success" json:"lmp_success"`

	// ImprovementThreshold is the week-4 delta below which an intervention counts as improved.
	ImprovementThreshold int `koanf:"improvement_threshold" json:"improvement_threshold"`
	// ImpactMatchTolerance caps the snapshot distance in days; 0 disables the cap.
	ImpactMatchTolerance float64 `koanf:"impact_match_tolerance_days" json:"impact_match_tolerance_days"`

	CoachSuccessWeight  float64 `koanf:"coach_success_weight" json:"coach_success_weight"`
	CoachDecreaseWeight float64 `koanf:"coach_decrease_weight" json:"coach_decrease_weight"`
	CoachFollowUpWeight float64 `koanf:"coach_follow_up_weight" json:"coach_follow_up_weight"`

	MinGroupSize int `koanf:"min_group_size" json:"min_group_size"`
}

// Default returns the production threshold table.
func Default() Table {
	return Table{
		InactivityDaysThreshold: 7,

		DERMasteryThreshold:  0.65,
		DERMinTasks:          5,
		DERCriticalThreshold: 40,
		DERSevereThreshold:   20,
		DERWatchThreshold:    10,

		PDIWindowSize:            10,
		PDIWindowMin:             5,
		PDIWindowFraction:        0.3,
		PDICriticalThreshold:     2.0,
		PDISevereThreshold:       1.5,
		PDINormalizeByDifficulty: true,
		TopicDifficulty: map[string]float64{
			TierK8: 1.0,
			TierHS: 1.25,
			TierAP: 1.5,
		},

		RiskWeights: RiskWeights{
			DebtExposure:   30,
			Velocity:       25,
			PrecisionDecay: 20,
			Stability:      15,
			StallStatus:    10,
		},
		RiskRedThreshold:    60,
		RiskYellowThreshold: 35,

		KSICriticalThreshold: 50,
		KSILowThreshold:      60,
		KSIMinTasks:          3,

		RSRGateThreshold: 60,
		GatedRedFloor:    75,
		GatedYellowFloor: 45,

		LMPWindow:           10,
		LMPSuccessThreshold: 0.8,

		ImprovementThreshold: -15,
		ImpactMatchTolerance: 0,

		CoachSuccessWeight:  0.5,
		CoachDecreaseWeight: 2,
		CoachFollowUpWeight: 0.3,

		MinGroupSize: 3,
	}
}

// DifficultyFactor returns the expected-error factor for a tier, 1 when unknown.
func (t Table) DifficultyFactor(tier string) float64 {
	if f, ok := t.TopicDifficulty[tier]; ok && f > 0 {
		return f
	}
	return 1
}

// Validate checks the table for values that would break the calculations.
func (t Table) Validate() error {
	switch {
	case t.InactivityDaysThreshold <= 0:
		return fmt.Errorf("%w: inactivity_days must be positive", ErrInvalidTable)
	case t.DERMasteryThreshold <= 0 || t.DERMasteryThreshold > 1:
		return fmt.Errorf("%w: der_mastery must be in (0,1]", ErrInvalidTable)
	case t.DERMinTasks < 1:
		return fmt.Errorf("%w: der_min_tasks must be at least 1", ErrInvalidTable)
	case t.PDIWindowMin < 1 || t.PDIWindowSize < t.PDIWindowMin:
		return fmt.Errorf("%w: pdi window bounds are inconsistent", ErrInvalidTable)
	case t.RiskYellowThreshold > t.RiskRedThreshold:
		return fmt.Errorf("%w: risk_yellow exceeds risk_red", ErrInvalidTable)
	case t.LMPWindow < 1:
		return fmt.Errorf("%w: lmp_window must be at least 1", ErrInvalidTable)
	case t.RiskWeights.Total() <= 0:
		return fmt.Errorf("%w: risk weights must sum to a positive value", ErrInvalidTable)
	}
	return nil
}
