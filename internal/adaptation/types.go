// Package adaptation converts identified challenges into adaptation
// proposals, coordinates resource allocation, and polls in-progress
// adaptations to completion.
package adaptation

import (
	"time"

	"requisite/internal/authority"
)

// ChallengeType names what kind of pressure the system is adapting to.
type ChallengeType string

const (
	ChallengeVarietyExplosion ChallengeType = "variety_explosion"
	ChallengePatternShift     ChallengeType = "pattern_shift"
	ChallengeHealth           ChallengeType = "health"
	ChallengeEfficiency       ChallengeType = "efficiency"
	ChallengeInnovationLag    ChallengeType = "innovation_lag"
)

// Challenge is the input to proposal generation.
type Challenge struct {
	Type    ChallengeType     `json:"type"`
	Urgency authority.Urgency `json:"urgency"`
	Scope   string            `json:"scope"`
}

// ModelType names an adaptation model.
type ModelType string

const (
	ModelIncremental      ModelType = "incremental"
	ModelTransformational ModelType = "transformational"
	ModelDefensive        ModelType = "defensive"
)

// Proposal is a generated adaptation plan.
type Proposal struct {
	ID                string             `json:"id"`
	Challenge         Challenge          `json:"challenge"`
	ModelType         ModelType          `json:"model_type"`
	Actions           []string           `json:"actions"`
	Impact            float64            `json:"impact"`
	ResourcesRequired map[string]float64 `json:"resources_required"`
	Timeline          string             `json:"timeline"`
	Risks             []string           `json:"risks"`
}

// Status of an active adaptation.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Adaptation is an accepted proposal being implemented.
type Adaptation struct {
	Proposal
	Status              Status             `json:"status"`
	StartedAt           time.Time          `json:"started_at"`
	CompletedAt         *time.Time         `json:"completed_at,omitempty"`
	Results             map[string]float64 `json:"results,omitempty"`
	ResourceConstrained bool               `json:"resource_constrained"`
}

// Metrics aggregates engine performance.
type Metrics struct {
	SuccessRate           float64       `json:"success_rate"`
	AverageCompletionTime time.Duration `json:"average_completion_time"`
	ResourceEfficiency    float64       `json:"resource_efficiency"`
	InnovationIndex       float64       `json:"innovation_index"`
	ActiveAdaptations     int           `json:"active_adaptations"`
	AdaptationCapacity    float64       `json:"adaptation_capacity"`
}

// ViabilityMetrics is the aggregate health feedback that can seed new
// proposals.
type ViabilityMetrics struct {
	Health        float64 `json:"health"`
	Efficiency    float64 `json:"efficiency"`
	InnovationLag float64 `json:"innovation_lag"`
}
