package pattern

import (
	"fmt"
	"math"
)

// =============================================================================
// EMERGENCE ANALYSIS - SET-LEVEL STRUCTURE
// =============================================================================

// AnalyzeEmergence summarizes emergent structure across a pattern set.
// It is a pure function of its input.
func AnalyzeEmergence(patterns []*Pattern) EmergenceAnalysis {
	analysis := EmergenceAnalysis{
		EmergenceLevel: EmergenceMinimal,
	}
	if len(patterns) == 0 {
		analysis.Predictability = 1.0
		return analysis
	}

	scores := make([]float64, len(patterns))
	strengths := make([]float64, len(patterns))
	types := make(map[Type]int)
	for i, p := range patterns {
		scores[i] = p.EmergenceScore
		strengths[i] = p.Strength
		types[p.PatternType]++
	}

	analysis.EmergenceLevel = levelFor(Mean(scores))
	analysis.PatternInteractions = classifyInteractions(patterns)
	analysis.CriticalPoints = criticalPoints(patterns)
	analysis.PhaseTransitions = phaseTransitions(patterns)

	// Self-organization averages strength coherence with a hierarchy signal:
	// four or more distinct types implies layered organization.
	coherence := clamp01(1 - Variance(strengths))
	hierarchy := 0.3
	if len(types) >= 4 {
		hierarchy = 0.8
	}
	analysis.SelfOrganization = (coherence + hierarchy) / 2

	analysis.ComplexityMeasure = clamp01(float64(len(types)) / 6.0 * (1 + Variance(strengths)))
	analysis.Predictability = clamp01(math.Exp(-Variance(scores) * 4))
	return analysis
}

func levelFor(meanScore float64) EmergenceLevel {
	switch {
	case meanScore > 0.8:
		return EmergenceHigh
	case meanScore > 0.5:
		return EmergenceMedium
	case meanScore > 0.2:
		return EmergenceLow
	default:
		return EmergenceMinimal
	}
}

// classifyInteractions grades every unordered pair:
// reinforcing  - same type, both strong
// inhibiting   - different type, either very strong
// modulating   - large strength gap
// neutral      - everything else
func classifyInteractions(patterns []*Pattern) []Interaction {
	var out []Interaction
	for i := 0; i < len(patterns); i++ {
		for j := i + 1; j < len(patterns); j++ {
			a, b := patterns[i], patterns[j]
			kind := InteractionNeutral
			switch {
			case a.PatternType == b.PatternType && a.Strength > 0.5 && b.Strength > 0.5:
				kind = InteractionReinforcing
			case a.PatternType != b.PatternType && (a.Strength > 0.7 || b.Strength > 0.7):
				kind = InteractionInhibiting
			case math.Abs(a.Strength-b.Strength) > 0.3:
				kind = InteractionModulating
			}
			out = append(out, Interaction{PatternA: a.ID, PatternB: b.ID, Kind: kind})
		}
	}
	return out
}

// criticalPoints flags patterns hovering at the instability band around 0.5.
func criticalPoints(patterns []*Pattern) []string {
	var out []string
	for _, p := range patterns {
		if math.Abs(p.Strength-0.5) <= 0.1 {
			out = append(out, fmt.Sprintf("pattern %s at critical strength %.2f", p.ID, p.Strength))
		}
	}
	return out
}

// phaseTransitions flags saturated and vanishing patterns.
func phaseTransitions(patterns []*Pattern) []string {
	var out []string
	for _, p := range patterns {
		switch {
		case p.Strength > 0.9:
			out = append(out, fmt.Sprintf("pattern %s saturating (%.2f)", p.ID, p.Strength))
		case p.Strength < 0.1:
			out = append(out, fmt.Sprintf("pattern %s vanishing (%.2f)", p.ID, p.Strength))
		}
	}
	return out
}

// AnalyzeEmergence over the detector's full stored set.
func (d *Detector) AnalyzeEmergence() EmergenceAnalysis {
	return AnalyzeEmergence(d.Patterns())
}
