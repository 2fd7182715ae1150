// Package variety measures whether incoming behavioral variety exceeds the
// system's regulatory capacity (Ashby's Law of Requisite Variety), scores
// explosion risk, predicts cascades, and runs emergency protocols when the
// risk threshold is breached.
package variety

import (
	"errors"
	"time"
)

// ErrCapacityExceeded is the designed escape valve: absorption cannot keep
// up, and meta-system escalation is triggered. It is not a bug.
var ErrCapacityExceeded = errors.New("capacity_exceeded")

// ErrUnknownAction marks a protocol configuration error. It is surfaced and
// logged but does not halt remaining protocol actions.
var ErrUnknownAction = errors.New("unknown protocol action")

// Trend describes the recent direction of variety levels.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendStable     Trend = "stable"
	TrendDecreasing Trend = "decreasing"
)

// Factor is the risk multiplier for a trend.
func (t Trend) Factor() float64 {
	switch t {
	case TrendIncreasing:
		return 1.2
	case TrendDecreasing:
		return 0.8
	default:
		return 1.0
	}
}

// Action is the recommended response to a risk report.
type Action string

const (
	ActionMonitor                  Action = "monitor"
	ActionSelectiveFiltering       Action = "selective_filtering"
	ActionIncreaseInternalVariety  Action = "increase_internal_variety"
	ActionEmergencyAbsorption      Action = "emergency_absorption"
	ActionImmediateMetaSystemSpawn Action = "immediate_meta_system_spawn"
)

// Data is the variety observation fed into MonitorVariety, usually built
// from a snapshot's LLM-derived block plus pattern detection output.
type Data struct {
	NovelPatterns      []string `json:"novel_patterns"`
	EmergentProperties []string `json:"emergent_properties"`
	RecursivePotential []string `json:"recursive_potential"`
	MetaSystemSeeds    []string `json:"meta_system_seeds"`
	Superposition      bool     `json:"quantum_superposition,omitempty"`
}

// RiskReport is the result of one MonitorVariety call.
type RiskReport struct {
	ExternalVariety      float64 `json:"external_variety"`
	InternalCapacity     float64 `json:"internal_capacity"`
	VarietyRatio         float64 `json:"variety_ratio"`
	ExplosionRisk        float64 `json:"explosion_risk"`
	RecommendedAction    Action  `json:"recommended_action"`
	AbsorptionCapability float64 `json:"absorption_capability"`
}

// StrategyKind names an absorption strategy.
type StrategyKind string

const (
	StrategyNormal    StrategyKind = "normal"
	StrategyGradual   StrategyKind = "gradual"
	StrategySelective StrategyKind = "selective"
	StrategyEmergency StrategyKind = "emergency"
)

// Strategy is the policy governing how much incoming variety is accepted.
type Strategy struct {
	Kind       StrategyKind `json:"kind"`
	Acceptance float64      `json:"acceptance"` // fraction of variety accepted
}

// ActionResult is the outcome of one protocol action.
type ActionResult struct {
	Action  string `json:"action"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ProtocolResult records an emergency protocol execution. Overall success
// is the AND of all action results.
type ProtocolResult struct {
	Protocol       string         `json:"protocol"`
	ActionResults  []ActionResult `json:"action_results"`
	OverallSuccess bool           `json:"overall_success"`
}

// ExplosionEvent is an append-only record of a threshold breach.
type ExplosionEvent struct {
	Timestamp     time.Time          `json:"timestamp"`
	ExplosionData map[string]float64 `json:"explosion_data"`
	ProtocolUsed  string             `json:"protocol_used"`
	Result        *ProtocolResult    `json:"response_result,omitempty"`
}

// CascadeStage is one step of a predicted cascade.
type CascadeStage struct {
	StageNumber  int     `json:"stage_number"`
	Description  string  `json:"description"`
	VarietyLevel float64 `json:"variety_level"`
	SystemImpact string  `json:"system_impact"`
	Duration     string  `json:"duration"`
}

// CascadePrediction forecasts stage-wise amplification of unmanaged variety.
type CascadePrediction struct {
	InitialVariety         float64        `json:"initial_variety"`
	CascadeStages          []CascadeStage `json:"cascade_stages"`
	AffectedSystems        []string       `json:"affected_systems"`
	PeakVariety            float64        `json:"peak_variety"`
	ContainmentProbability float64        `json:"containment_probability"`
}

// RiskAssessment is the result of CheckExplosionRisk.
type RiskAssessment struct {
	CurrentRisk        float64       `json:"current_risk"`
	Trend              Trend         `json:"trend"`
	TimeToExplosion    time.Duration `json:"time_to_explosion"`
	Unbounded          bool          `json:"unbounded"` // true when the trend is non-increasing
	CascadeProbability float64       `json:"cascade_probability"`
	MitigationOptions  []string      `json:"mitigation_options"`
}

// State is the serializable variety state snapshot.
type State struct {
	CurrentVarietyLevel     float64             `json:"current_variety_level"`
	InternalVarietyCapacity float64             `json:"internal_variety_capacity"`
	VarietyRatio            float64             `json:"variety_ratio"`
	AbsorptionRate          float64             `json:"absorption_rate"`
	ExplosionEvents         []ExplosionEvent    `json:"explosion_events"`
	CascadePredictions      []CascadePrediction `json:"cascade_predictions"`
}

// Capacity bounds. Internal variety capacity self-adapts within these.
const (
	MinCapacity = 0.5
	MaxCapacity = 10.0
)
