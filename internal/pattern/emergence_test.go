package pattern

import (
	"testing"
)

func scoredPattern(id string, typ Type, strength, emergence float64) *Pattern {
	p := makePattern(id, typ, strength, 1.0, [8]float64{})
	p.EmergenceScore = emergence
	return p
}

func TestAnalyzeEmergenceEmptySet(t *testing.T) {
	a := AnalyzeEmergence(nil)
	if a.EmergenceLevel != EmergenceMinimal {
		t.Errorf("level = %v, want minimal", a.EmergenceLevel)
	}
	if a.Predictability != 1.0 {
		t.Errorf("predictability = %v, want 1.0 for an empty set", a.Predictability)
	}
}

func TestEmergenceLevelBuckets(t *testing.T) {
	tests := []struct {
		score float64
		want  EmergenceLevel
	}{
		{0.85, EmergenceHigh},
		{0.6, EmergenceMedium},
		{0.3, EmergenceLow},
		{0.1, EmergenceMinimal},
	}
	for _, tt := range tests {
		a := AnalyzeEmergence([]*Pattern{scoredPattern("p", TypeStructural, 0.5, tt.score)})
		if a.EmergenceLevel != tt.want {
			t.Errorf("score %v: level = %v, want %v", tt.score, a.EmergenceLevel, tt.want)
		}
	}
}

func TestInteractionClassification(t *testing.T) {
	tests := []struct {
		name string
		a, b *Pattern
		want InteractionKind
	}{
		{
			"reinforcing",
			scoredPattern("a", TypeTemporal, 0.7, 0.5),
			scoredPattern("b", TypeTemporal, 0.6, 0.5),
			InteractionReinforcing,
		},
		{
			"inhibiting",
			scoredPattern("a", TypeTemporal, 0.8, 0.5),
			scoredPattern("b", TypeSpatial, 0.4, 0.5),
			InteractionInhibiting,
		},
		{
			"modulating",
			scoredPattern("a", TypeTemporal, 0.45, 0.5),
			scoredPattern("b", TypeTemporal, 0.1, 0.5),
			InteractionModulating,
		},
		{
			"neutral",
			scoredPattern("a", TypeTemporal, 0.4, 0.5),
			scoredPattern("b", TypeSpatial, 0.4, 0.5),
			InteractionNeutral,
		},
	}
	for _, tt := range tests {
		got := classifyInteractions([]*Pattern{tt.a, tt.b})
		if len(got) != 1 {
			t.Fatalf("%s: interactions = %d, want 1", tt.name, len(got))
		}
		if got[0].Kind != tt.want {
			t.Errorf("%s: kind = %v, want %v", tt.name, got[0].Kind, tt.want)
		}
	}
}

func TestCriticalPointsAndPhaseTransitions(t *testing.T) {
	set := []*Pattern{
		scoredPattern("critical", TypeStructural, 0.52, 0.5),
		scoredPattern("saturating", TypeStructural, 0.95, 0.5),
		scoredPattern("vanishing", TypeStructural, 0.05, 0.5),
		scoredPattern("ordinary", TypeStructural, 0.7, 0.5),
	}
	a := AnalyzeEmergence(set)
	if len(a.CriticalPoints) != 1 {
		t.Errorf("critical points = %d, want 1", len(a.CriticalPoints))
	}
	if len(a.PhaseTransitions) != 2 {
		t.Errorf("phase transitions = %d, want 2", len(a.PhaseTransitions))
	}
}

func TestSelfOrganizationHierarchySignal(t *testing.T) {
	// Four distinct types with identical strengths: coherence 1, hierarchy 0.8.
	set := []*Pattern{
		scoredPattern("a", TypeTemporal, 0.5, 0.5),
		scoredPattern("b", TypeSpatial, 0.5, 0.5),
		scoredPattern("c", TypeBehavioral, 0.5, 0.5),
		scoredPattern("d", TypeStructural, 0.5, 0.5),
	}
	a := AnalyzeEmergence(set)
	if a.SelfOrganization != 0.9 {
		t.Errorf("self-organization = %v, want 0.9", a.SelfOrganization)
	}

	single := AnalyzeEmergence(set[:1])
	if single.SelfOrganization != 0.65 {
		t.Errorf("single-type self-organization = %v, want 0.65", single.SelfOrganization)
	}
}
