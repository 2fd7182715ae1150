// Package signal collects raw environmental/telemetry signals for the
// intelligence core. The Scanner produces structured snapshots on demand;
// it holds no decision logic of its own.
package signal

import "time"

// Scope controls how much of the environment a scan covers.
type Scope string

const (
	ScopeFull     Scope = "full"     // all four signal families
	ScopePartial  Scope = "partial"  // market + technology
	ScopeTargeted Scope = "targeted" // market only
)

// Coverage returns the coverage fraction a scope yields.
func (s Scope) Coverage() float64 {
	switch s {
	case ScopeFull:
		return 1.0
	case ScopePartial:
		return 0.6
	case ScopeTargeted:
		return 0.3
	default:
		return 0.3
	}
}

// ParseScope maps a string to a Scope, defaulting to full.
func ParseScope(s string) Scope {
	switch Scope(s) {
	case ScopeFull, ScopePartial, ScopeTargeted:
		return Scope(s)
	default:
		return ScopeFull
	}
}

// Snapshot is a structured capture of domain signals at a point in time.
type Snapshot struct {
	Timestamp        time.Time `json:"timestamp"`
	Scope            Scope     `json:"scope"`
	Coverage         float64   `json:"coverage"`
	MarketSignals    []float64 `json:"market_signals"`
	TechnologyTrends []float64 `json:"technology_trends"`
	RegulatoryEvents []float64 `json:"regulatory_updates"`
	CompetitiveMoves []float64 `json:"competitive_moves"`

	// LLMVariety carries variety observations from the upstream
	// conversation layer, when present.
	LLMVariety *LLMVariety `json:"llm_variety,omitempty"`
}

// LLMVariety describes novelty observed by the conversation integrations.
type LLMVariety struct {
	NovelPatterns        []string `json:"novel_patterns"`
	EmergentProperties   []string `json:"emergent_properties"`
	RecursivePotential   []string `json:"recursive_potential"`
	MetaSystemSeeds      []string `json:"meta_system_seeds"`
	QuantumSuperposition bool     `json:"quantum_superposition,omitempty"`
}

// Empty reports whether the snapshot carries no signals at all.
func (s *Snapshot) Empty() bool {
	return len(s.MarketSignals) == 0 &&
		len(s.TechnologyTrends) == 0 &&
		len(s.RegulatoryEvents) == 0 &&
		len(s.CompetitiveMoves) == 0
}

// Series returns every signal family included in the snapshot, in a fixed
// order, for feature extraction downstream.
func (s *Snapshot) Series() map[string][]float64 {
	out := make(map[string][]float64, 4)
	if len(s.MarketSignals) > 0 {
		out["market"] = s.MarketSignals
	}
	if len(s.TechnologyTrends) > 0 {
		out["technology"] = s.TechnologyTrends
	}
	if len(s.RegulatoryEvents) > 0 {
		out["regulatory"] = s.RegulatoryEvents
	}
	if len(s.CompetitiveMoves) > 0 {
		out["competitive"] = s.CompetitiveMoves
	}
	return out
}
