package authority

import (
	"context"
	"sync"

	"requisite/internal/logging"
)

// =============================================================================
// DEFAULT IMPLEMENTATIONS - LOG-ONLY COLLABORATORS
// =============================================================================
//
// Standalone runs have no platform above them, so escalations are logged and
// adaptations are auto-approved. Deployments wire real transports here.

// LoggingPolicy records every escalation and approves everything.
type LoggingPolicy struct {
	mu          sync.Mutex
	Spawns      []MetaSystemConfig
	Cascades    []CascadeRiskReport
	Emergences  []EmergenceConfig
	Evolutions  []EvolutionProposal
	Submissions []AdaptationSubmission
}

// NewLoggingPolicy creates a log-only policy authority.
func NewLoggingPolicy() *LoggingPolicy {
	return &LoggingPolicy{}
}

func (p *LoggingPolicy) ApproveAdaptation(ctx context.Context, s AdaptationSubmission) (bool, error) {
	p.mu.Lock()
	p.Submissions = append(p.Submissions, s)
	p.mu.Unlock()
	logging.Policy("adaptation approved: proposal=%s model=%s urgency=%s", s.ProposalID, s.ModelType, s.Urgency)
	return true, nil
}

func (p *LoggingPolicy) SpawnMetaSystemEmergency(ctx context.Context, cfg MetaSystemConfig) error {
	p.mu.Lock()
	p.Spawns = append(p.Spawns, cfg)
	p.mu.Unlock()
	logging.PolicyWarn("meta-system spawn requested: risk=%.2f ratio=%.2f urgency=%s reason=%s",
		cfg.ExplosionRisk, cfg.VarietyRatio, cfg.Urgency, cfg.Reason)
	return nil
}

func (p *LoggingPolicy) HandleCascadeRisk(ctx context.Context, report CascadeRiskReport) error {
	p.mu.Lock()
	p.Cascades = append(p.Cascades, report)
	p.mu.Unlock()
	logging.PolicyWarn("cascade risk reported: peak=%.2f containment=%.2f recommendation=%s",
		report.PeakVariety, report.ContainmentProbability, report.Recommendation)
	return nil
}

func (p *LoggingPolicy) HandlePatternEmergence(ctx context.Context, cfg EmergenceConfig) error {
	p.mu.Lock()
	p.Emergences = append(p.Emergences, cfg)
	p.mu.Unlock()
	logging.Policy("pattern emergence reported: score=%.2f patterns=%d", cfg.EmergenceScore, cfg.PatternCount)
	return nil
}

func (p *LoggingPolicy) ProposeSystemEvolution(ctx context.Context, proposal EvolutionProposal) error {
	p.mu.Lock()
	p.Evolutions = append(p.Evolutions, proposal)
	p.mu.Unlock()
	logging.Policy("system evolution proposed: %s", proposal.Reason)
	return nil
}

// SpawnRequests returns a copy of recorded spawn escalations.
func (p *LoggingPolicy) SpawnRequests() []MetaSystemConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]MetaSystemConfig, len(p.Spawns))
	copy(out, p.Spawns)
	return out
}

// EvolutionProposals returns a copy of recorded evolution proposals.
func (p *LoggingPolicy) EvolutionProposals() []EvolutionProposal {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EvolutionProposal, len(p.Evolutions))
	copy(out, p.Evolutions)
	return out
}

// StaticResources grants every allocation up to a fixed budget.
type StaticResources struct {
	mu        sync.Mutex
	Budget    float64
	allocated float64
}

// NewStaticResources creates a resource authority with a fixed budget.
// A budget <= 0 means unlimited.
func NewStaticResources(budget float64) *StaticResources {
	return &StaticResources{Budget: budget}
}

func (r *StaticResources) AllocateForAdaptation(ctx context.Context, s AdaptationSubmission) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Budget > 0 && r.allocated+s.Impact > r.Budget {
		logging.PolicyWarn("resource allocation denied: proposal=%s impact=%.2f allocated=%.2f budget=%.2f",
			s.ProposalID, s.Impact, r.allocated, r.Budget)
		return ErrAllocationDenied
	}
	r.allocated += s.Impact
	logging.Policy("resources allocated: proposal=%s impact=%.2f", s.ProposalID, s.Impact)
	return nil
}

func (r *StaticResources) RedistributeVariety(ctx context.Context, explosion map[string]float64) error {
	logging.Policy("variety redistribution requested: %v", explosion)
	return nil
}
