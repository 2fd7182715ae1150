package variety

import (
	"math"
	"time"

	"requisite/internal/logging"
)

// =============================================================================
// EXPLOSION RISK ASSESSMENT AND CASCADE PREDICTION
// =============================================================================

// CheckExplosionRisk reports the current risk, trend, projected time to
// explosion, cascade probability, and available mitigations.
func (m *Monitor) CheckExplosionRisk() *RiskAssessment {
	m.mu.Lock()
	defer m.mu.Unlock()

	ratio := m.current / m.capacity
	trend := trendOf(m.history)
	risk := explosionRisk(ratio, trend, m.absorptionRate)

	assessment := &RiskAssessment{
		CurrentRisk:        risk,
		Trend:              trend,
		CascadeProbability: cascadeProbability(ratio, m.cfg.CascadeThreshold),
		MitigationOptions:  mitigationOptions(ratio),
	}
	assessment.TimeToExplosion, assessment.Unbounded = m.timeToExplosion()

	logging.VarietyDebug("check_explosion_risk: risk=%.2f trend=%s cascade_p=%.2f unbounded=%v",
		risk, trend, assessment.CascadeProbability, assessment.Unbounded)
	return assessment
}

// timeToExplosion projects the linear rate between the two most recent
// samples forward to the point where variety reaches capacity x 3.
// A non-increasing rate means no explosion is in sight.
// Caller holds the lock.
func (m *Monitor) timeToExplosion() (time.Duration, bool) {
	if len(m.history) < 2 {
		return 0, true
	}
	last := m.history[len(m.history)-1]
	prev := m.history[len(m.history)-2]
	rate := last - prev // per sample interval
	if rate <= 0 {
		return 0, true
	}

	target := m.capacity * 3.0
	if last >= target {
		return 0, false
	}
	samples := (target - last) / rate
	return time.Duration(samples * float64(m.cfg.SampleInterval)), false
}

// cascadeProbability is zero below the cascade threshold and climbs
// quadratically above it, capped at 1.
func cascadeProbability(ratio, threshold float64) float64 {
	if ratio <= threshold {
		return 0
	}
	p := (ratio - threshold) / 0.25
	return math.Min(1.0, p*p)
}

func mitigationOptions(ratio float64) []string {
	options := []string{"monitor"}
	if ratio > 1.0 {
		options = append(options, "activate_filters")
	}
	if ratio > 1.5 {
		options = append(options, "increase_internal_variety")
	}
	if ratio > 2.0 {
		options = append(options, "redistribute_variety_load")
	}
	if ratio > 3.0 {
		options = append(options, "spawn_meta_system")
	}
	return options
}

// cascade stage table: description, entry multiple of capacity, amplifier,
// impact, expected duration. Stage 4 is terminal.
var cascadeStages = []struct {
	description string
	entry       float64
	amplifier   float64
	impact      string
	duration    string
}{
	{"initial overload", 1.0, 1.2, "local degradation", "minutes"},
	{"system stress", 1.5, 1.3, "subsystem saturation", "tens of minutes"},
	{"cascade propagation", 2.0, 1.5, "cross-subsystem failure", "hours"},
	{"collapse risk", 3.0, 1.0, "viability threatened", "open-ended"},
}

// affected-system escalation ladder, by multiples of capacity crossed.
var escalationLadder = []struct {
	multiple float64
	system   string
}{
	{1.0, "local_unit"},
	{2.0, "adjacent_subsystems"},
	{3.0, "coordination_layer"},
	{4.0, "policy_layer"},
	{5.0, "total_system_failure"},
}

// PredictCascade simulates stage-wise amplification of the given variety
// level against current capacity.
func (m *Monitor) PredictCascade(currentVariety float64) *CascadePrediction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.predictCascadeLocked(currentVariety)
}

func (m *Monitor) predictCascadeLocked(currentVariety float64) *CascadePrediction {
	prediction := &CascadePrediction{InitialVariety: currentVariety}

	running := currentVariety
	peakStage := currentVariety
	for i, stage := range cascadeStages {
		if running <= stage.entry*m.capacity {
			break
		}
		prediction.CascadeStages = append(prediction.CascadeStages, CascadeStage{
			StageNumber:  i + 1,
			Description:  stage.description,
			VarietyLevel: running,
			SystemImpact: stage.impact,
			Duration:     stage.duration,
		})
		if running > peakStage {
			peakStage = running
		}
		running *= stage.amplifier
	}
	if running > peakStage {
		peakStage = running
	}

	for _, rung := range escalationLadder {
		if peakStage > rung.multiple*m.capacity {
			prediction.AffectedSystems = append(prediction.AffectedSystems, rung.system)
		}
	}

	trend := trendOf(m.history)
	switch trend {
	case TrendIncreasing:
		prediction.PeakVariety = currentVariety * 2.5
	case TrendStable:
		prediction.PeakVariety = currentVariety * 1.8
	default:
		prediction.PeakVariety = currentVariety * 1.3
	}

	capability := m.absorptionCapability()
	if capability >= currentVariety {
		prediction.ContainmentProbability = 0.9
	} else {
		p := capability / currentVariety
		prediction.ContainmentProbability = math.Max(0.1, p*p)
	}

	m.cascades = append(m.cascades, *prediction)
	if len(m.cascades) > m.cfg.HistoryLimit {
		m.cascades = m.cascades[1:]
	}

	logging.Variety("cascade predicted: initial=%.2f stages=%d peak=%.2f containment=%.2f",
		currentVariety, len(prediction.CascadeStages), prediction.PeakVariety,
		prediction.ContainmentProbability)
	return prediction
}
