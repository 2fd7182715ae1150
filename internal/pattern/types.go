// Package pattern extracts statistical structure from signal snapshots,
// classifies it into pattern records, detects emergence, and links
// correlated patterns into meta-patterns.
package pattern

import (
	"time"
)

// Type classifies what kind of structure a pattern captures.
type Type string

const (
	TypeBehavioral Type = "behavioral"
	TypeStructural Type = "structural"
	TypeTemporal   Type = "temporal"
	TypeSpatial    Type = "spatial"
	TypeQuantum    Type = "quantum"
	TypeMeta       Type = "meta"
)

// FeatureKind tags a feature record.
type FeatureKind string

const (
	FeatureStatistical FeatureKind = "statistical"
	FeatureFrequency   FeatureKind = "frequency"
	FeatureStructural  FeatureKind = "structural"
)

// StatisticalFeature carries the first four moments of a segment.
type StatisticalFeature struct {
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
	Skewness float64 `json:"skewness"`
	Kurtosis float64 `json:"kurtosis"`
}

// FrequencyFeature carries spectral structure of a segment.
type FrequencyFeature struct {
	DominantFrequency float64 `json:"dominant_frequency"`
	SpectralEntropy   float64 `json:"spectral_entropy"`
}

// StructuralFeature carries shape measures of a segment.
type StructuralFeature struct {
	Complexity float64 `json:"complexity"`
	Regularity float64 `json:"regularity"`
}

// Feature is one typed feature record. Exactly one of the payload fields is
// set, matching Kind.
type Feature struct {
	Kind        FeatureKind         `json:"kind"`
	Statistical *StatisticalFeature `json:"statistical,omitempty"`
	Frequency   *FrequencyFeature   `json:"frequency,omitempty"`
	Structural  *StructuralFeature  `json:"structural,omitempty"`
}

// Pattern is an immutable detection record. Evolution tracking appends
// derived samples elsewhere; a Pattern is never edited in place.
type Pattern struct {
	ID             string    `json:"id"`
	Features       []Feature `json:"features"`
	PatternType    Type      `json:"pattern_type"`
	Strength       float64   `json:"strength"`        // [0,1]
	EmergenceScore float64   `json:"emergence_score"` // [0,1]
	Scale          float64   `json:"scale"`
	SourceFamily   string    `json:"source_family,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Vector flattens the pattern's features into a fixed-order vector:
// mean, variance, skewness, kurtosis, dominant frequency, spectral
// entropy, complexity, regularity. Missing records contribute zeros.
func (p *Pattern) Vector() []float64 {
	v := make([]float64, 8)
	for _, f := range p.Features {
		switch f.Kind {
		case FeatureStatistical:
			if f.Statistical != nil {
				v[0] = f.Statistical.Mean
				v[1] = f.Statistical.Variance
				v[2] = f.Statistical.Skewness
				v[3] = f.Statistical.Kurtosis
			}
		case FeatureFrequency:
			if f.Frequency != nil {
				v[4] = f.Frequency.DominantFrequency
				v[5] = f.Frequency.SpectralEntropy
			}
		case FeatureStructural:
			if f.Structural != nil {
				v[6] = f.Structural.Complexity
				v[7] = f.Structural.Regularity
			}
		}
	}
	return v
}

// MetaType classifies how component patterns compose.
type MetaType string

const (
	MetaTemporalHierarchy     MetaType = "temporal_hierarchy"
	MetaSpatialHierarchy      MetaType = "spatial_hierarchy"
	MetaBehavioralComposition MetaType = "behavioral_composition"
	MetaCrossDomain           MetaType = "cross_domain"
)

// MetaPattern is a higher-order pattern formed from correlated components.
// Strength is always the component average scaled by 0.9.
type MetaPattern struct {
	ID                  string    `json:"id"`
	ComponentPatternIDs []string  `json:"component_pattern_ids"`
	MetaType            MetaType  `json:"meta_type"`
	Strength            float64   `json:"strength"`
	Timestamp           time.Time `json:"timestamp"`
}

// Edge is a weighted correlation link in the pattern graph.
type Edge struct {
	A      string  `json:"a"`
	B      string  `json:"b"`
	Weight float64 `json:"weight"`
}

// Graph is the append-only pattern relationship graph.
type Graph struct {
	Nodes []string `json:"nodes"`
	Edges []Edge   `json:"edges"`
}

// Complexity is the edge-to-node ratio, the graph density signal exposed
// in detection results.
func (g *Graph) Complexity() float64 {
	if len(g.Nodes) == 0 {
		return 0
	}
	return float64(len(g.Edges)) / float64(len(g.Nodes))
}

// DetectionResult is what one detection cycle produces.
type DetectionResult struct {
	Patterns        []*Pattern     `json:"patterns"`
	MetaPatterns    []*MetaPattern `json:"meta_patterns"`
	EmergenceScore  float64        `json:"emergence_score"`
	GraphComplexity float64        `json:"graph_complexity"`
}

// InteractionKind classifies how two patterns relate.
type InteractionKind string

const (
	InteractionReinforcing InteractionKind = "reinforcing"
	InteractionInhibiting  InteractionKind = "inhibiting"
	InteractionModulating  InteractionKind = "modulating"
	InteractionNeutral     InteractionKind = "neutral"
)

// Interaction is one classified pattern pair.
type Interaction struct {
	PatternA string          `json:"pattern_a"`
	PatternB string          `json:"pattern_b"`
	Kind     InteractionKind `json:"kind"`
}

// EmergenceLevel buckets the mean emergence score of a pattern set.
type EmergenceLevel string

const (
	EmergenceHigh    EmergenceLevel = "high"
	EmergenceMedium  EmergenceLevel = "medium"
	EmergenceLow     EmergenceLevel = "low"
	EmergenceMinimal EmergenceLevel = "minimal"
)

// EmergenceAnalysis summarizes emergent structure across a pattern set.
type EmergenceAnalysis struct {
	EmergenceLevel      EmergenceLevel `json:"emergence_level"`
	PatternInteractions []Interaction  `json:"pattern_interactions"`
	CriticalPoints      []string       `json:"critical_points"`
	PhaseTransitions    []string       `json:"phase_transitions"`
	SelfOrganization    float64        `json:"self_organization"`
	ComplexityMeasure   float64        `json:"complexity_measure"`
	Predictability      float64        `json:"predictability"`
}

// EvolutionSample is one observation of a pattern over time.
type EvolutionSample struct {
	Timestamp   time.Time `json:"timestamp"`
	Strength    float64   `json:"strength"`
	PatternType Type      `json:"pattern_type"`
}

// Mutation marks a discontinuity in a pattern's evolution.
type Mutation struct {
	Index  int     `json:"index"`
	Reason string  `json:"reason"` // type_change or strength_jump
	Delta  float64 `json:"delta"`
}

// EvolutionRecord is the tracked history plus derived measures.
type EvolutionRecord struct {
	PatternID  string            `json:"pattern_id"`
	History    []EvolutionSample `json:"history"`
	Trajectory float64           `json:"trajectory"` // extrapolated next strength
	Mutations  []Mutation        `json:"mutations"`
	Stability  float64           `json:"stability"`
}

// PredictedState is one step of a trajectory forecast.
type PredictedState struct {
	Offset     time.Duration `json:"offset"`
	Strength   float64       `json:"strength"`
	Confidence float64       `json:"confidence"`
}

// TrajectoryPrediction forecasts a pattern's strength over a horizon.
type TrajectoryPrediction struct {
	PatternID        string           `json:"pattern_id"`
	PredictedStates  []PredictedState `json:"predicted_states"`
	Confidence       float64          `json:"confidence"`
	BifurcationPoints []time.Duration `json:"bifurcation_points"`
	AttractorStates  []string         `json:"attractor_states"`
}

// RecursiveStructure is a same-type, high-similarity, cross-scale pair.
type RecursiveStructure struct {
	PatternA   string  `json:"pattern_a"`
	PatternB   string  `json:"pattern_b"`
	Similarity float64 `json:"similarity"`
	ScaleGap   float64 `json:"scale_gap"`
}

// MetaAnalysis is the whole-set structural scan result.
type MetaAnalysis struct {
	RecursiveStructures []RecursiveStructure `json:"recursive_structures"`
	PatternOfPatterns   int                  `json:"pattern_of_patterns"`
	EmergentHierarchies int                  `json:"emergent_hierarchies"` // hierarchy depth
	SelfSimilarScales   float64              `json:"self_similar_scales"`
	UniversalPatterns   []string             `json:"universal_patterns"`
	EvolutionSignal     bool                 `json:"evolution_signal"` // escalated to policy authority
}
