package model

// Archetype labels a student's working pattern.
type Archetype string

const (
	ArchetypeNone       Archetype = ""
	ArchetypeZombie     Archetype = "Zombie"
	ArchetypeGuesser    Archetype = "Guesser"
	ArchetypeGrinder    Archetype = "Grinder"
	ArchetypeFlowMaster Archetype = "FlowMaster"
	ArchetypeNeutral    Archetype = "Neutral"
)

// RiskStatus is the coarse dropout status derived from activity alone.
type RiskStatus string

const (
	RiskDormant   RiskStatus = "Dormant"
	RiskCritical  RiskStatus = "Critical"
	RiskAttention RiskStatus = "Attention"
	RiskOnTrack   RiskStatus = "OnTrack"
)

// StallStatus describes whether a student is stuck.
type StallStatus string

const (
	StallNone       StallStatus = ""
	StallFrustrated StallStatus = "Frustrated Stall"
	StallIdle       StallStatus = "Idle Stall"
)

// Metrics is the output of the activity calculator.
type Metrics struct {
	VelocityScore  int         `json:"velocity_score"`
	AccuracyRate   *int        `json:"accuracy_rate"`
	FocusIntegrity int         `json:"focus_integrity"`
	NemesisTopic   string      `json:"nemesis_topic"`
	ReviewAccuracy int         `json:"review_accuracy"` // -1 when no review questions
	Archetype      Archetype   `json:"archetype"`
	RiskStatus     RiskStatus  `json:"risk_status"`
	StallStatus    StallStatus `json:"stall_status"`
	ContentGap     int         `json:"content_gap"`
	LMP            float64     `json:"lmp"`
	KSI            *int        `json:"ksi"`
}

// RSR returns the recent success rate as a percentage.
func (m Metrics) RSR() float64 { return m.LMP * 100 }

// Tier is the triage bucket.
type Tier string

const (
	TierRed    Tier = "RED"
	TierYellow Tier = "YELLOW"
	TierGreen  Tier = "GREEN"
)

// Rank orders tiers from most to least urgent.
func (t Tier) Rank() int {
	switch t {
	case TierRed:
		return 0
	case TierYellow:
		return 1
	case TierGreen:
		return 2
	default:
		return 3
	}
}

// Signals reported alongside a tier.
const (
	SignalInactive        = "INACTIVE"
	SignalCriticalFailure = "Critical Failure"
	SignalLowAccuracy     = "Low Accuracy"
	SignalHighRisk        = "High Risk"
	SignalWatchList       = "Watch List"
	SignalFlowing         = "Flowing"
	SignalCriticalDebt    = "Critical Debt"
	SignalLowVelocity     = "Low Velocity"
)

// DRIMetrics is the output of the risk engine.
type DRIMetrics struct {
	IROI           *float64 `json:"iroi"`
	DebtExposure   *int     `json:"debt_exposure"`
	PrecisionDecay *float64 `json:"precision_decay"`
	Tier           Tier     `json:"tier"`
	Signal         string   `json:"signal"`
	RiskScore      int      `json:"risk_score"`
	// WeightedScore is the composite before any gatekeeper floor.
	WeightedScore int `json:"weighted_score"`
}
