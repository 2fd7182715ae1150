// Package authority defines the external collaborators the intelligence core
// escalates to: the policy authority (approves adaptations, spawns new
// control capacity) and the resource authority (allocates capacity).
// The core only ever calls out; neither authority calls in.
package authority

import (
	"context"
	"time"
)

// Urgency grades an escalation.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// MetaSystemConfig requests a new higher-order control instance.
type MetaSystemConfig struct {
	Reason        string    `json:"reason"`
	ExplosionRisk float64   `json:"explosion_risk"`
	VarietyRatio  float64   `json:"variety_ratio"`
	Urgency       Urgency   `json:"urgency"`
	Timestamp     time.Time `json:"timestamp"`
}

// CascadeRiskReport notifies the policy authority of a predicted cascade.
type CascadeRiskReport struct {
	InitialVariety         float64   `json:"initial_variety"`
	PeakVariety            float64   `json:"peak_variety"`
	ContainmentProbability float64   `json:"containment_probability"`
	Recommendation         string    `json:"recommendation"`
	Timestamp              time.Time `json:"timestamp"`
}

// EmergenceConfig reports significant pattern emergence.
type EmergenceConfig struct {
	EmergenceScore float64   `json:"emergence_score"`
	PatternCount   int       `json:"pattern_count"`
	Timestamp      time.Time `json:"timestamp"`
}

// EvolutionProposal suggests structural system evolution. It is a proposal,
// never a unilateral action.
type EvolutionProposal struct {
	Reason    string             `json:"reason"`
	Evidence  map[string]float64 `json:"evidence"`
	Timestamp time.Time          `json:"timestamp"`
}

// AdaptationSubmission is the policy-facing view of an adaptation proposal.
type AdaptationSubmission struct {
	ProposalID string  `json:"proposal_id"`
	Challenge  string  `json:"challenge"`
	ModelType  string  `json:"model_type"`
	Urgency    Urgency `json:"urgency"`
	Impact     float64 `json:"impact"`
}

// Policy is the policy authority contract.
type Policy interface {
	ApproveAdaptation(ctx context.Context, submission AdaptationSubmission) (bool, error)
	SpawnMetaSystemEmergency(ctx context.Context, cfg MetaSystemConfig) error
	HandleCascadeRisk(ctx context.Context, report CascadeRiskReport) error
	HandlePatternEmergence(ctx context.Context, cfg EmergenceConfig) error
	ProposeSystemEvolution(ctx context.Context, proposal EvolutionProposal) error
}

// Resources is the resource authority contract.
type Resources interface {
	// AllocateForAdaptation reserves capacity for an adaptation. A denial
	// is returned as an error and is non-fatal to the caller.
	AllocateForAdaptation(ctx context.Context, submission AdaptationSubmission) error

	// RedistributeVariety asks for load shedding after an explosion.
	RedistributeVariety(ctx context.Context, explosion map[string]float64) error
}
