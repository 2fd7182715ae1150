package adaptation

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"requisite/internal/authority"
	"requisite/internal/logging"
)

// =============================================================================
// ADAPTATION ENGINE - PROPOSALS AND IMPLEMENTATION MONITORING
// =============================================================================

// ErrNilProposal rejects implementation requests without a proposal.
var ErrNilProposal = errors.New("nil proposal")

// defaultExpectedDuration backs unknown or non-positive timelines so
// progress computation never divides by zero.
const defaultExpectedDuration = 30 * 24 * time.Hour // one month

// ProgressProber reports implementation progress for an active adaptation.
// The default prober derives progress from elapsed time against the expected
// duration; deployments substitute real progress telemetry.
type ProgressProber interface {
	// Progress returns the completion fraction and whether completion is
	// confirmed.
	Progress(a *Adaptation, elapsed, expected time.Duration) (float64, bool)
}

// Sink receives adaptation records as they enter the active set and as they
// complete. Implementations must not propagate failures back into the
// monitoring path.
type Sink interface {
	RecordAdaptation(a *Adaptation)
}

// ThresholdProber completes an adaptation once elapsed time covers 90% of
// the expected duration.
type ThresholdProber struct{}

func (ThresholdProber) Progress(a *Adaptation, elapsed, expected time.Duration) (float64, bool) {
	if expected <= 0 {
		expected = defaultExpectedDuration
	}
	progress := float64(elapsed) / float64(expected)
	return progress, progress >= 0.9
}

// Engine owns the active adaptation set. Each in-progress adaptation has an
// independent monitor timer, so N adaptations progress in parallel.
type Engine struct {
	mu        sync.Mutex
	policy    authority.Policy
	resources authority.Resources
	prober    ProgressProber
	sink      Sink
	interval  time.Duration

	active  map[string]*Adaptation
	timers  map[string]*time.Timer
	history []*Adaptation

	generated        int
	transformational int
	completed        int
	succeeded        int
	constrainedDone  int
	totalCompletion  time.Duration

	stopped bool
}

// NewEngine creates an engine. policy and resources may be nil.
func NewEngine(policy authority.Policy, resources authority.Resources, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Engine{
		policy:    policy,
		resources: resources,
		prober:    ThresholdProber{},
		interval:  interval,
		active:    make(map[string]*Adaptation),
		timers:    make(map[string]*time.Timer),
	}
}

// SetProber swaps the progress prober (production deployments attach real
// progress telemetry here).
func (e *Engine) SetProber(p ProgressProber) {
	e.mu.Lock()
	e.prober = p
	e.mu.Unlock()
}

// SetSink attaches an archival sink for adaptation transitions.
func (e *Engine) SetSink(s Sink) {
	e.mu.Lock()
	e.sink = s
	e.mu.Unlock()
}

// notifySink hands the sink a copy. Caller holds the lock.
func (e *Engine) notifySink(a *Adaptation) {
	if e.sink != nil {
		cp := *a
		e.sink.RecordAdaptation(&cp)
	}
}

// GenerateProposal builds an adaptation proposal for the challenge using
// the model its urgency selects.
func (e *Engine) GenerateProposal(ch Challenge) (*Proposal, error) {
	model := SelectModel(ch.Urgency)

	p := &Proposal{
		ID:                uuid.New().String(),
		Challenge:         ch,
		ModelType:         model.Type(),
		Actions:           model.Actions(ch),
		Impact:            model.Impact(ch),
		ResourcesRequired: model.Resources(ch),
		Timeline:          model.Timeline(ch),
		Risks:             model.Risks(ch),
	}

	e.mu.Lock()
	e.generated++
	if p.ModelType == ModelTransformational {
		e.transformational++
	}
	e.mu.Unlock()

	logging.Adaptation("proposal %s generated: challenge=%s urgency=%s model=%s actions=%d",
		p.ID, ch.Type, ch.Urgency, p.ModelType, len(p.Actions))
	return p, nil
}

// ImplementAdaptation accepts a proposal for implementation: the adaptation
// enters the active set in_progress, resources are requested (denial is
// non-fatal and only flags the record), and a monitoring timer is scheduled.
func (e *Engine) ImplementAdaptation(p *Proposal) error {
	if p == nil {
		return ErrNilProposal
	}

	a := &Adaptation{
		Proposal:  *p,
		Status:    StatusInProgress,
		StartedAt: time.Now(),
	}

	if e.resources != nil {
		submission := authority.AdaptationSubmission{
			ProposalID: p.ID,
			Challenge:  string(p.Challenge.Type),
			ModelType:  string(p.ModelType),
			Urgency:    p.Challenge.Urgency,
			Impact:     p.Impact,
		}
		if err := e.resources.AllocateForAdaptation(context.Background(), submission); err != nil {
			a.ResourceConstrained = true
			logging.Adaptation("adaptation %s proceeding resource-constrained: %v", p.ID, err)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return errors.New("engine stopped")
	}
	e.active[a.ID] = a
	e.scheduleMonitor(a.ID)
	e.notifySink(a)

	logging.Adaptation("adaptation %s started (timeline=%s, constrained=%v)",
		a.ID, a.Timeline, a.ResourceConstrained)
	return nil
}

// scheduleMonitor arms the per-adaptation timer. Caller holds the lock.
func (e *Engine) scheduleMonitor(id string) {
	e.timers[id] = time.AfterFunc(e.interval, func() {
		e.monitorTick(id)
	})
}

// monitorTick polls one adaptation. Any fault is recovered locally and
// replaced with a zero-progress result so a single malformed record cannot
// stall the engine.
func (e *Engine) monitorTick(id string) {
	defer func() {
		if r := recover(); r != nil {
			logging.AdaptationError("monitor tick for %s panicked: %v (treated as zero progress)", id, r)
			e.mu.Lock()
			if _, ok := e.active[id]; ok && !e.stopped {
				e.scheduleMonitor(id)
			}
			e.mu.Unlock()
		}
	}()

	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.active[id]
	if !ok || e.stopped {
		return
	}

	elapsed := time.Since(a.StartedAt)
	expected := ParseTimeline(a.Timeline)
	progress, confirmed := e.prober.Progress(a, elapsed, expected)

	logging.AdaptationDebug("adaptation %s progress=%.2f confirmed=%v", id, progress, confirmed)

	if progress >= 0.9 && confirmed {
		e.completeLocked(a, elapsed)
		return
	}
	e.scheduleMonitor(id)
}

// completeLocked finishes an adaptation and updates aggregate metrics.
// Caller holds the lock.
func (e *Engine) completeLocked(a *Adaptation, elapsed time.Duration) {
	now := time.Now()
	a.Status = StatusCompleted
	a.CompletedAt = &now
	a.Results = map[string]float64{
		"duration_seconds": elapsed.Seconds(),
		"impact_delivered": a.Impact,
	}

	delete(e.active, a.ID)
	delete(e.timers, a.ID)

	e.completed++
	e.succeeded++
	if a.ResourceConstrained {
		e.constrainedDone++
	}
	e.totalCompletion += elapsed

	e.history = append(e.history, a)
	if len(e.history) > 100 {
		e.history = e.history[1:]
	}
	e.notifySink(a)

	logging.Adaptation("adaptation %s completed after %v", a.ID, elapsed)
}

// GetActiveAdaptations returns copies of the in-progress set.
func (e *Engine) GetActiveAdaptations() []*Adaptation {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*Adaptation, 0, len(e.active))
	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	return out
}

// GetMetrics returns aggregate engine metrics. Capacity drops stepwise as
// the active count grows.
func (e *Engine) GetMetrics() Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()

	m := Metrics{ActiveAdaptations: len(e.active)}

	switch {
	case len(e.active) >= 5:
		m.AdaptationCapacity = 0.2
	case len(e.active) >= 3:
		m.AdaptationCapacity = 0.5
	default:
		m.AdaptationCapacity = 0.9
	}

	if e.completed > 0 {
		m.SuccessRate = float64(e.succeeded) / float64(e.completed)
		m.AverageCompletionTime = e.totalCompletion / time.Duration(e.completed)
		m.ResourceEfficiency = 1 - float64(e.constrainedDone)/float64(e.completed)
	} else {
		m.ResourceEfficiency = 1
	}
	if e.generated > 0 {
		m.InnovationIndex = float64(e.transformational) / float64(e.generated)
	}
	return m
}

// History returns copies of completed adaptations.
func (e *Engine) History() []*Adaptation {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Adaptation, 0, len(e.history))
	for _, a := range e.history {
		cp := *a
		out = append(out, &cp)
	}
	return out
}

// RequestProposalsForViability derives challenges from aggregate viability
// metrics and submits one proposal per challenge to the policy authority
// without waiting for replies.
func (e *Engine) RequestProposalsForViability(vm ViabilityMetrics) []*Proposal {
	var challenges []Challenge
	if vm.Health < 0.5 {
		challenges = append(challenges, Challenge{Type: ChallengeHealth, Urgency: authority.UrgencyHigh, Scope: "system"})
	}
	if vm.Efficiency < 0.6 {
		challenges = append(challenges, Challenge{Type: ChallengeEfficiency, Urgency: authority.UrgencyMedium, Scope: "operations"})
	}
	if vm.InnovationLag > 0.7 {
		challenges = append(challenges, Challenge{Type: ChallengeInnovationLag, Urgency: authority.UrgencyLow, Scope: "capability"})
	}

	var proposals []*Proposal
	for _, ch := range challenges {
		p, err := e.GenerateProposal(ch)
		if err != nil {
			logging.AdaptationError("viability proposal generation failed: %v", err)
			continue
		}
		proposals = append(proposals, p)

		if e.policy != nil {
			policy := e.policy
			submission := authority.AdaptationSubmission{
				ProposalID: p.ID,
				Challenge:  string(p.Challenge.Type),
				ModelType:  string(p.ModelType),
				Urgency:    p.Challenge.Urgency,
				Impact:     p.Impact,
			}
			go func() {
				if _, err := policy.ApproveAdaptation(context.Background(), submission); err != nil {
					logging.PolicyWarn("viability proposal submission failed: %v", err)
				}
			}()
		}
	}
	return proposals
}

// Stop cancels all monitor timers. In-flight ticks run to completion.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
	}
}

// ParseTimeline resolves a textual timeline like "1_month" or "2_weeks" to
// a duration. Unknown or non-positive values fall back to one month.
func ParseTimeline(timeline string) time.Duration {
	parts := strings.SplitN(strings.TrimSpace(timeline), "_", 2)
	if len(parts) != 2 {
		return defaultExpectedDuration
	}
	n, err := strconv.Atoi(parts[0])
	if err != nil || n <= 0 {
		return defaultExpectedDuration
	}

	var unit time.Duration
	switch strings.TrimSuffix(parts[1], "s") {
	case "day":
		unit = 24 * time.Hour
	case "week":
		unit = 7 * 24 * time.Hour
	case "month":
		unit = 30 * 24 * time.Hour
	case "quarter":
		unit = 90 * 24 * time.Hour
	default:
		return defaultExpectedDuration
	}
	return time.Duration(n) * unit
}
