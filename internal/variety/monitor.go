package variety

import (
	"context"
	"math"
	"sync"
	"time"

	"requisite/internal/authority"
	"requisite/internal/logging"
)

// =============================================================================
// VARIETY MONITOR - EXPLOSION DETECTION AND ABSORPTION
// =============================================================================

// Config tunes the monitor thresholds.
type Config struct {
	InitialCapacity    float64
	ExplosionThreshold float64 // risk above this triggers absorption + protocol
	CascadeThreshold   float64 // ratio above this contributes cascade probability
	CriticalRatio      float64 // ratio above this triggers preemptive cascade checks
	HistoryLimit       int     // explosion/cascade history cap
	SampleInterval     time.Duration
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		InitialCapacity:    1.0,
		ExplosionThreshold: 0.85,
		CascadeThreshold:   0.75,
		CriticalRatio:      3.0,
		HistoryLimit:       100,
		SampleInterval:     5 * time.Second,
	}
}

// Sink receives explosion events and state snapshots for archival.
// The store package implements this.
type Sink interface {
	RecordExplosion(ev ExplosionEvent)
	RecordState(st State)
}

// Monitor owns the variety state. All mutations are serialized behind one
// mutex, so per-call invariants are trivially linearizable.
type Monitor struct {
	mu        sync.Mutex
	cfg       Config
	policy    authority.Policy
	resources authority.Resources
	sink      Sink

	current        float64
	capacity       float64
	absorptionRate float64
	history        []float64 // recent variety levels, newest last

	explosions       []ExplosionEvent
	cascades         []CascadePrediction
	explosionsInTick int
	filtersActive    bool
	isolationActive  bool
}

// NewMonitor creates a monitor. policy, resources, and sink may be nil.
func NewMonitor(cfg Config, policy authority.Policy, resources authority.Resources) *Monitor {
	if cfg.InitialCapacity <= 0 {
		cfg = DefaultConfig()
	}
	return &Monitor{
		cfg:            cfg,
		policy:         policy,
		resources:      resources,
		capacity:       clampCapacity(cfg.InitialCapacity),
		absorptionRate: 1.0,
	}
}

// SetSink attaches an archival sink.
func (m *Monitor) SetSink(s Sink) {
	m.mu.Lock()
	m.sink = s
	m.mu.Unlock()
}

// Restore seeds capacity and absorption from a persisted state, clamped to
// valid bounds. Used by the supervising layer when restarting.
func (m *Monitor) Restore(st State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capacity = clampCapacity(st.InternalVarietyCapacity)
	m.absorptionRate = clamp01(st.AbsorptionRate)
	logging.Variety("state restored: capacity=%.2f absorption=%.2f", m.capacity, m.absorptionRate)
}

// MonitorVariety processes one variety observation and returns the risk
// report. When explosion risk breaches the threshold, absorption and the
// emergency protocol run synchronously before returning, so the caller's
// response already reflects remediation in flight.
func (m *Monitor) MonitorVariety(data Data) (*RiskReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	external := externalVariety(data)
	m.current = external
	m.history = append(m.history, external)
	if len(m.history) > 10 {
		m.history = m.history[len(m.history)-10:]
	}

	ratio := m.current / m.capacity
	trend := trendOf(m.history)
	risk := explosionRisk(ratio, trend, m.absorptionRate)

	report := &RiskReport{
		ExternalVariety:      external,
		InternalCapacity:     m.capacity,
		VarietyRatio:         ratio,
		ExplosionRisk:        risk,
		RecommendedAction:    RecommendAction(risk, ratio),
		AbsorptionCapability: m.absorptionCapability(),
	}

	logging.VarietyDebug("monitor_variety: external=%.2f ratio=%.2f trend=%s risk=%.2f action=%s",
		external, ratio, trend, risk, report.RecommendedAction)

	if risk > m.cfg.ExplosionThreshold {
		m.handleExplosion(report)
	}

	return report, nil
}

// externalVariety is the weighted count of novelty signals, amplified when
// a superposition flag is present.
func externalVariety(data Data) float64 {
	v := 0.3*float64(len(data.NovelPatterns)) +
		0.2*float64(len(data.EmergentProperties)) +
		0.25*float64(len(data.RecursivePotential)) +
		0.25*float64(len(data.MetaSystemSeeds))
	if data.Superposition {
		v *= 1.5
	}
	return v
}

// trendOf compares the means of the first and second halves of the recent
// history. With fewer than four samples there is no evidence of growth, so
// the trend is treated as decreasing.
func trendOf(history []float64) Trend {
	if len(history) < 4 {
		return TrendDecreasing
	}
	mid := len(history) / 2
	first := mean(history[:mid])
	second := mean(history[mid:])
	switch {
	case second > first*1.05:
		return TrendIncreasing
	case second < first*0.95:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// explosionRisk = min(1, (ratio/3) * trend factor * (1 + absorption deficit)).
// Monotonically non-decreasing in ratio for fixed trend and absorption.
func explosionRisk(ratio float64, trend Trend, absorptionRate float64) float64 {
	deficit := 1 - absorptionRate
	risk := (ratio / 3.0) * trend.Factor() * (1 + deficit)
	return math.Min(1.0, risk)
}

// RecommendAction is the deterministic action ladder over risk and ratio.
func RecommendAction(risk, ratio float64) Action {
	switch {
	case risk > 0.9:
		return ActionImmediateMetaSystemSpawn
	case risk > 0.7:
		return ActionEmergencyAbsorption
	case ratio > 2.0:
		return ActionIncreaseInternalVariety
	case ratio > 1.5:
		return ActionSelectiveFiltering
	default:
		return ActionMonitor
	}
}

// SelectStrategy is the deterministic step function over the variety ratio.
func SelectStrategy(ratio float64) Strategy {
	switch {
	case ratio > 3.0:
		return Strategy{Kind: StrategyEmergency, Acceptance: 1.0}
	case ratio > 2.0:
		return Strategy{Kind: StrategySelective, Acceptance: 0.7}
	case ratio > 1.5:
		return Strategy{Kind: StrategyGradual, Acceptance: 0.5}
	default:
		return Strategy{Kind: StrategyNormal, Acceptance: 0.3}
	}
}

// absorptionCapability is how much variety the monitor can take in right now.
func (m *Monitor) absorptionCapability() float64 {
	return m.capacity * m.absorptionRate
}

// handleExplosion runs absorption and the emergency protocol synchronously.
// Caller holds the lock.
func (m *Monitor) handleExplosion(report *RiskReport) {
	logging.VarietyWarn("explosion risk %.2f exceeds threshold %.2f, engaging absorption",
		report.ExplosionRisk, m.cfg.ExplosionThreshold)

	strategy := SelectStrategy(report.VarietyRatio)
	absorbErr := m.absorb(strategy)

	protocol := SelectProtocol(report.ExplosionRisk)
	var result *ProtocolResult
	if protocol != nil {
		result = m.executeProtocol(protocol, report)
	}

	ev := ExplosionEvent{
		Timestamp: time.Now(),
		ExplosionData: map[string]float64{
			"external_variety": report.ExternalVariety,
			"variety_ratio":    report.VarietyRatio,
			"explosion_risk":   report.ExplosionRisk,
		},
		Result: result,
	}
	if protocol != nil {
		ev.ProtocolUsed = protocol.Name
	}
	m.recordExplosion(ev)

	if absorbErr != nil {
		// Capacity exceeded: the designed escape valve. Log the
		// uncontrolled explosion and request a meta-system.
		logging.VarietyError("uncontrolled explosion: %v (ratio=%.2f)", absorbErr, report.VarietyRatio)
		m.requestMetaSystem(report, "absorption capacity exceeded")
	}
}

// absorb applies the strategy. Fails with ErrCapacityExceeded when the
// accepted variety outstrips current capability; success nudges the
// absorption rate toward 1.0 with 0.9/0.1 smoothing.
func (m *Monitor) absorb(strategy Strategy) error {
	toAbsorb := m.current * strategy.Acceptance
	capability := m.absorptionCapability()

	logging.VarietyDebug("absorption: strategy=%s accept=%.0f%% to_absorb=%.2f capability=%.2f",
		strategy.Kind, strategy.Acceptance*100, toAbsorb, capability)

	if toAbsorb > capability {
		return ErrCapacityExceeded
	}

	m.absorptionRate = 0.9*m.absorptionRate + 0.1*1.0
	return nil
}

// requestMetaSystem escalates to the policy authority. Caller holds the lock;
// the call itself is made without it.
func (m *Monitor) requestMetaSystem(report *RiskReport, reason string) {
	if m.policy == nil {
		return
	}
	cfg := authority.MetaSystemConfig{
		Reason:        reason,
		ExplosionRisk: report.ExplosionRisk,
		VarietyRatio:  report.VarietyRatio,
		Urgency:       authority.UrgencyCritical,
		Timestamp:     time.Now(),
	}
	policy := m.policy
	go func() {
		if err := policy.SpawnMetaSystemEmergency(context.Background(), cfg); err != nil {
			logging.PolicyWarn("meta-system spawn request failed: %v", err)
		}
	}()
}

// recordExplosion appends to the bounded history and notifies the sink.
// Caller holds the lock.
func (m *Monitor) recordExplosion(ev ExplosionEvent) {
	m.explosions = append(m.explosions, ev)
	if len(m.explosions) > m.cfg.HistoryLimit {
		m.explosions = m.explosions[1:]
	}
	m.explosionsInTick++
	if m.sink != nil {
		m.sink.RecordExplosion(ev)
	}
}

// Tick is the periodic self-assessment (every 5s in production). It checks
// the critical ratio, runs preemptive cascade prediction, and adapts
// internal capacity. Any panic is the caller's (tick boundary) concern.
func (m *Monitor) Tick() {
	m.mu.Lock()

	ratio := m.current / m.capacity
	var report *authority.CascadeRiskReport
	if ratio > m.cfg.CriticalRatio {
		prediction := m.predictCascadeLocked(m.current)
		if prediction.ContainmentProbability < 0.5 {
			report = &authority.CascadeRiskReport{
				InitialVariety:         prediction.InitialVariety,
				PeakVariety:            prediction.PeakVariety,
				ContainmentProbability: prediction.ContainmentProbability,
				Recommendation:         "preemptive meta-system spawn",
				Timestamp:              time.Now(),
			}
		}
	}

	m.adaptCapacity()
	policy := m.policy
	m.mu.Unlock()

	if report != nil && policy != nil {
		if err := policy.HandleCascadeRisk(context.Background(), *report); err != nil {
			logging.PolicyWarn("cascade risk notification failed: %v", err)
		}
	}
}

// adaptCapacity grows capacity after explosions, shrinks it when underused,
// and otherwise grows slowly. Always clamped to [0.5, 10.0].
// Caller holds the lock.
func (m *Monitor) adaptCapacity() {
	before := m.capacity
	switch {
	case m.explosionsInTick > 0:
		m.capacity *= 1.05
	case m.current < m.capacity/2:
		m.capacity *= 0.98
	default:
		m.capacity *= 1.01
	}
	m.capacity = clampCapacity(m.capacity)
	m.explosionsInTick = 0

	if m.capacity != before {
		logging.VarietyDebug("capacity adapted: %.3f -> %.3f (variety=%.2f)", before, m.capacity, m.current)
	}
	if m.sink != nil {
		m.sink.RecordState(m.stateLocked())
	}
}

// GetState returns a deep copy of the variety state. With no intervening
// mutation it is idempotent, and a serialize/reconstruct round trip
// reproduces every field.
func (m *Monitor) GetState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Monitor) stateLocked() State {
	events := make([]ExplosionEvent, len(m.explosions))
	copy(events, m.explosions)
	cascades := make([]CascadePrediction, len(m.cascades))
	copy(cascades, m.cascades)

	return State{
		CurrentVarietyLevel:     m.current,
		InternalVarietyCapacity: m.capacity,
		VarietyRatio:            m.current / m.capacity,
		AbsorptionRate:          m.absorptionRate,
		ExplosionEvents:         events,
		CascadePredictions:      cascades,
	}
}

func clampCapacity(c float64) float64 {
	if c < MinCapacity {
		return MinCapacity
	}
	if c > MaxCapacity {
		return MaxCapacity
	}
	return c
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
