package adaptation

import (
	"fmt"

	"requisite/internal/authority"
)

// =============================================================================
// ADAPTATION MODELS - PURE PLAN GENERATORS
// =============================================================================
//
// Each model is a set of pure functions parameterized by challenge type.
// Model selection is driven by challenge urgency alone.

// Model supplies the pieces of an adaptation plan.
type Model interface {
	Type() ModelType
	Actions(ch Challenge) []string
	Impact(ch Challenge) float64
	Resources(ch Challenge) map[string]float64
	Timeline(ch Challenge) string
	Risks(ch Challenge) []string
}

// SelectModel maps urgency to a model: high (and critical) pressure gets the
// defensive model, medium gets incremental, low gets transformational.
func SelectModel(urgency authority.Urgency) Model {
	switch urgency {
	case authority.UrgencyHigh, authority.UrgencyCritical:
		return defensiveModel{}
	case authority.UrgencyMedium:
		return incrementalModel{}
	default:
		return transformationalModel{}
	}
}

// -----------------------------------------------------------------------------
// Incremental model - small reversible steps
// -----------------------------------------------------------------------------

type incrementalModel struct{}

func (incrementalModel) Type() ModelType { return ModelIncremental }

func (incrementalModel) Actions(ch Challenge) []string {
	return []string{
		fmt.Sprintf("profile_%s_pressure", ch.Type),
		"tune_existing_controls",
		"expand_monitoring_coverage",
	}
}

func (incrementalModel) Impact(ch Challenge) float64 { return 0.3 }

func (incrementalModel) Resources(ch Challenge) map[string]float64 {
	return map[string]float64{"compute": 0.2, "attention": 0.3}
}

func (incrementalModel) Timeline(ch Challenge) string { return "1_month" }

func (incrementalModel) Risks(ch Challenge) []string {
	return []string{"adaptation may be too slow for the pressure"}
}

// -----------------------------------------------------------------------------
// Transformational model - structural change
// -----------------------------------------------------------------------------

type transformationalModel struct{}

func (transformationalModel) Type() ModelType { return ModelTransformational }

func (transformationalModel) Actions(ch Challenge) []string {
	actions := []string{
		"redesign_control_structure",
		"build_new_capability",
		"retire_legacy_mechanisms",
	}
	if ch.Type == ChallengeInnovationLag {
		actions = append(actions, "establish_exploration_budget")
	}
	return actions
}

func (transformationalModel) Impact(ch Challenge) float64 { return 0.8 }

func (transformationalModel) Resources(ch Challenge) map[string]float64 {
	return map[string]float64{"compute": 0.6, "attention": 0.8, "capital": 0.5}
}

func (transformationalModel) Timeline(ch Challenge) string { return "3_months" }

func (transformationalModel) Risks(ch Challenge) []string {
	return []string{
		"structural change may destabilize running controls",
		"payoff is back-loaded",
	}
}

// -----------------------------------------------------------------------------
// Defensive model - stabilize first
// -----------------------------------------------------------------------------

type defensiveModel struct{}

func (defensiveModel) Type() ModelType { return ModelDefensive }

func (defensiveModel) Actions(ch Challenge) []string {
	actions := []string{
		"raise_filtering_thresholds",
		"shed_non_essential_load",
		"harden_critical_paths",
	}
	if ch.Type == ChallengeHealth {
		actions = append(actions, "emergency_stabilization")
	}
	return actions
}

func (defensiveModel) Impact(ch Challenge) float64 { return 0.5 }

func (defensiveModel) Resources(ch Challenge) map[string]float64 {
	return map[string]float64{"compute": 0.4, "attention": 0.6}
}

func (defensiveModel) Timeline(ch Challenge) string { return "1_week" }

func (defensiveModel) Risks(ch Challenge) []string {
	return []string{"defensive posture reduces adaptive range while active"}
}
