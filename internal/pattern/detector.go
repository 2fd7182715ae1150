package pattern

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"requisite/internal/authority"
	"requisite/internal/logging"
	"requisite/internal/signal"
)

// =============================================================================
// PATTERN DETECTOR - FEATURE EXTRACTION AND EMERGENCE FILTERING
// =============================================================================

// ErrInvalidSnapshot rejects malformed input instead of coercing it.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// ErrUnknownPattern is returned for evolution queries on untracked ids.
var ErrUnknownPattern = errors.New("unknown pattern")

// Config tunes the detection pipeline.
type Config struct {
	WindowSize         int
	WindowOverlap      int
	HistoryLimit       int
	EmergenceThreshold float64 // max similarity for a pattern to count as emergent
	ClusterThreshold   float64 // min similarity to join an existing cluster
}

// DefaultConfig returns the standard pipeline tuning.
func DefaultConfig() Config {
	return Config{
		WindowSize:         16,
		WindowOverlap:      8,
		HistoryLimit:       1000,
		EmergenceThreshold: 0.8,
		ClusterThreshold:   0.9,
	}
}

// Detector consumes snapshots, extracts features, and maintains the pattern
// history, meta-patterns, relationship graph, and per-pattern evolution.
// All state mutations are serialized behind one mutex.
type Detector struct {
	mu     sync.RWMutex
	cfg    Config
	policy authority.Policy // optional; evolution escalations go here

	patterns  []*Pattern
	byID      map[string]*Pattern
	meta      []*MetaPattern
	metaPairs map[string]string // unordered pair key -> meta pattern id
	graph     Graph
	edgeSeen  map[string]bool
	evolution map[string][]EvolutionSample
}

// NewDetector creates a detector. policy may be nil.
func NewDetector(cfg Config, policy authority.Policy) *Detector {
	if cfg.WindowSize <= 0 {
		cfg = DefaultConfig()
	}
	return &Detector{
		cfg:       cfg,
		policy:    policy,
		byID:      make(map[string]*Pattern),
		metaPairs: make(map[string]string),
		edgeSeen:  make(map[string]bool),
		evolution: make(map[string][]EvolutionSample),
	}
}

// Similarity is the feature-distance metric between two patterns: closeness
// of the ordered feature vectors, discounted when the types differ.
func Similarity(a, b *Pattern) float64 {
	va, vb := a.Vector(), b.Vector()
	var sum float64
	for i := range va {
		sum += math.Abs(va[i]-vb[i]) / (1 + math.Abs(va[i]) + math.Abs(vb[i]))
	}
	closeness := 1 - sum/float64(len(va))
	if a.PatternType != b.PatternType {
		closeness *= 0.75
	}
	return clamp01(closeness)
}

// Correlation between two patterns. The relationship graph and meta-pattern
// formation both use this measure.
func Correlation(a, b *Pattern) float64 {
	return Similarity(a, b)
}

// DetectPatterns runs the full pipeline over one snapshot:
// normalize -> segment -> extract features -> cluster -> instantiate ->
// classify -> emergence filter -> meta-pattern formation -> graph update.
func (d *Detector) DetectPatterns(snap *signal.Snapshot) (*DetectionResult, error) {
	if snap == nil || snap.Timestamp.IsZero() {
		return nil, ErrInvalidSnapshot
	}

	t := logging.StartTimer(logging.CategoryPatterns, "detect_patterns")
	defer t.Stop()

	d.mu.Lock()
	defer d.mu.Unlock()

	result := &DetectionResult{}
	if snap.Empty() {
		logging.PatternsDebug("empty snapshot, nothing to detect")
		result.GraphComplexity = d.graph.Complexity()
		return result, nil
	}

	candidates := d.extractCandidates(snap)

	var emergent []*Pattern
	var scoreSum float64
	for _, cand := range candidates {
		matchID, maxSim := d.closestStored(cand)
		if maxSim > d.cfg.EmergenceThreshold {
			// Redundant with a known pattern: feed its evolution instead.
			d.evolution[matchID] = append(d.evolution[matchID], EvolutionSample{
				Timestamp:   snap.Timestamp,
				Strength:    cand.Strength,
				PatternType: cand.PatternType,
			})
			continue
		}
		cand.EmergenceScore = clamp01(1 - maxSim)
		d.storePattern(cand)
		emergent = append(emergent, cand)
		scoreSum += cand.EmergenceScore
	}

	// Meta-pattern formation across existing and new patterns.
	newMeta := d.formMetaPatterns(emergent)

	result.Patterns = emergent
	result.MetaPatterns = newMeta
	if len(emergent) > 0 {
		result.EmergenceScore = scoreSum / float64(len(emergent))
	}
	result.GraphComplexity = d.graph.Complexity()

	if len(emergent) > 0 {
		logging.Patterns("detected %d emergent patterns, %d meta-patterns (emergence=%.2f)",
			len(emergent), len(newMeta), result.EmergenceScore)
		d.reportEmergence(result)
	}
	return result, nil
}

// extractCandidates builds candidate patterns from every signal family.
func (d *Detector) extractCandidates(snap *signal.Snapshot) []*Pattern {
	series := snap.Series()
	families := make([]string, 0, len(series))
	for f := range series {
		families = append(families, f)
	}
	sort.Strings(families)

	var candidates []*Pattern
	for _, family := range families {
		normalized := Normalize(series[family])
		segments := Windows(normalized, d.cfg.WindowSize, d.cfg.WindowOverlap)
		if len(segments) == 0 {
			continue
		}

		clusters := d.clusterSegments(segments)
		for _, cl := range clusters {
			candidates = append(candidates, d.instantiate(cl, len(segments), family, snap.Timestamp))
		}
	}
	return candidates
}

// segmentFeatures are the raw per-window measurements before clustering.
type segmentFeatures struct {
	stat   StatisticalFeature
	freq   FrequencyFeature
	struc  StructuralFeature
	vector []float64
}

func extractSegment(seg []float64) segmentFeatures {
	sf := segmentFeatures{
		stat: StatisticalFeature{
			Mean:     Mean(seg),
			Variance: Variance(seg),
			Skewness: Skewness(seg),
			Kurtosis: Kurtosis(seg),
		},
		freq: FrequencyFeature{
			DominantFrequency: DominantFrequency(seg),
			SpectralEntropy:   SpectralEntropy(seg),
		},
		struc: StructuralFeature{
			Complexity: Complexity(seg),
			Regularity: Regularity(seg),
		},
	}
	sf.vector = []float64{
		sf.stat.Mean, sf.stat.Variance, sf.stat.Skewness, sf.stat.Kurtosis,
		sf.freq.DominantFrequency, sf.freq.SpectralEntropy,
		sf.struc.Complexity, sf.struc.Regularity,
	}
	return sf
}

// clusterSegments greedily groups windows whose feature vectors are close.
func (d *Detector) clusterSegments(segments [][]float64) [][]segmentFeatures {
	var clusters [][]segmentFeatures
	for _, seg := range segments {
		sf := extractSegment(seg)
		placed := false
		for i, cl := range clusters {
			if vectorSimilarity(sf.vector, cl[0].vector) >= d.cfg.ClusterThreshold {
				clusters[i] = append(clusters[i], sf)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, []segmentFeatures{sf})
		}
	}
	return clusters
}

func vectorSimilarity(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += math.Abs(a[i]-b[i]) / (1 + math.Abs(a[i]) + math.Abs(b[i]))
	}
	return clamp01(1 - sum/float64(len(a)))
}

// instantiate turns one cluster into a Pattern record with centroid features.
func (d *Detector) instantiate(cluster []segmentFeatures, totalSegments int, family string, ts time.Time) *Pattern {
	centroid := make([]float64, 8)
	for _, sf := range cluster {
		for i, v := range sf.vector {
			centroid[i] += v
		}
	}
	for i := range centroid {
		centroid[i] /= float64(len(cluster))
	}

	stat := StatisticalFeature{Mean: centroid[0], Variance: centroid[1], Skewness: centroid[2], Kurtosis: centroid[3]}
	freq := FrequencyFeature{DominantFrequency: centroid[4], SpectralEntropy: centroid[5]}
	struc := StructuralFeature{Complexity: centroid[6], Regularity: centroid[7]}

	coverage := float64(len(cluster)) / float64(totalSegments)
	strength := clamp01(0.4*struc.Regularity + 0.3*(1-freq.SpectralEntropy) + 0.3*coverage)

	p := &Pattern{
		ID: uuid.New().String(),
		Features: []Feature{
			{Kind: FeatureStatistical, Statistical: &stat},
			{Kind: FeatureFrequency, Frequency: &freq},
			{Kind: FeatureStructural, Structural: &struc},
		},
		PatternType:  classify(stat, freq, struc),
		Strength:     strength,
		Scale:        1.0,
		SourceFamily: family,
		Timestamp:    ts,
	}
	return p
}

// classify applies the lightweight signature rules: strong periodicity marks
// temporal structure, skewed distributions mark spatial spread, high
// complexity marks behavioral signatures, the rest is structural.
func classify(stat StatisticalFeature, freq FrequencyFeature, struc StructuralFeature) Type {
	switch {
	case freq.DominantFrequency > 0 && freq.SpectralEntropy < 0.5:
		return TypeTemporal
	case math.Abs(stat.Skewness) > 1.0:
		return TypeSpatial
	case struc.Complexity > 0.7:
		return TypeBehavioral
	default:
		return TypeStructural
	}
}

// closestStored returns the id and similarity of the most similar stored
// pattern, or ("", 0) when none exist yet.
func (d *Detector) closestStored(p *Pattern) (string, float64) {
	var bestID string
	var best float64
	for _, existing := range d.patterns {
		if sim := Similarity(p, existing); sim > best {
			best = sim
			bestID = existing.ID
		}
	}
	return bestID, best
}

// storePattern appends to the bounded history and wires the graph.
func (d *Detector) storePattern(p *Pattern) {
	d.patterns = append(d.patterns, p)
	d.byID[p.ID] = p
	d.evolution[p.ID] = []EvolutionSample{{
		Timestamp:   p.Timestamp,
		Strength:    p.Strength,
		PatternType: p.PatternType,
	}}

	// Graph is append-only: nodes stay even after history trimming.
	d.graph.Nodes = append(d.graph.Nodes, p.ID)
	for _, existing := range d.patterns {
		if existing.ID == p.ID {
			continue
		}
		if corr := Correlation(p, existing); corr > 0.5 {
			key := pairKey(p.ID, existing.ID)
			if !d.edgeSeen[key] {
				d.edgeSeen[key] = true
				d.graph.Edges = append(d.graph.Edges, Edge{A: existing.ID, B: p.ID, Weight: corr})
			}
		}
	}

	if len(d.patterns) > d.cfg.HistoryLimit {
		evicted := d.patterns[0]
		d.patterns = d.patterns[1:]
		delete(d.byID, evicted.ID)
	}
}

// formMetaPatterns links every correlated pair touching a new pattern.
// A pair yields exactly one MetaPattern regardless of call order.
func (d *Detector) formMetaPatterns(newPatterns []*Pattern) []*MetaPattern {
	var created []*MetaPattern
	for _, p := range newPatterns {
		for _, other := range d.patterns {
			if other.ID == p.ID {
				continue
			}
			key := pairKey(p.ID, other.ID)
			if _, linked := d.metaPairs[key]; linked {
				continue
			}
			corr := Correlation(p, other)
			if corr <= 0.85 {
				continue
			}

			mp := &MetaPattern{
				ID:                  uuid.New().String(),
				ComponentPatternIDs: []string{other.ID, p.ID},
				MetaType:            metaTypeFor(p.PatternType, other.PatternType),
				Strength:            (p.Strength + other.Strength) / 2 * 0.9,
				Timestamp:           time.Now(),
			}
			d.metaPairs[key] = mp.ID
			d.meta = append(d.meta, mp)
			created = append(created, mp)
			logging.PatternsDebug("meta-pattern %s formed: %s + %s (corr=%.2f, type=%s)",
				mp.ID, other.ID, p.ID, corr, mp.MetaType)
		}
	}
	return created
}

func metaTypeFor(a, b Type) MetaType {
	if a != b {
		return MetaCrossDomain
	}
	switch a {
	case TypeTemporal:
		return MetaTemporalHierarchy
	case TypeSpatial:
		return MetaSpatialHierarchy
	default:
		return MetaBehavioralComposition
	}
}

func pairKey(a, b string) string {
	if a < b {
		return a + "|" + b
	}
	return b + "|" + a
}

// reportEmergence notifies the policy authority of a significant cycle.
// Held-lock safe: the report is fire-and-forget on a copy of the numbers.
func (d *Detector) reportEmergence(result *DetectionResult) {
	if d.policy == nil || result.EmergenceScore <= 0.8 {
		return
	}
	cfg := authority.EmergenceConfig{
		EmergenceScore: result.EmergenceScore,
		PatternCount:   len(result.Patterns),
		Timestamp:      time.Now(),
	}
	go func() {
		if err := d.policy.HandlePatternEmergence(context.Background(), cfg); err != nil {
			logging.PolicyWarn("pattern emergence report failed: %v", err)
		}
	}()
}

// RegisterPattern inserts an externally constructed pattern into the
// detector's history. Used when replaying archived patterns and in tests.
func (d *Detector) RegisterPattern(p *Pattern) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidSnapshot)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.byID[p.ID]; exists {
		return fmt.Errorf("pattern %s already registered", p.ID)
	}
	d.storePattern(p)
	d.formMetaPatterns([]*Pattern{p})
	return nil
}

// State is the externally visible pattern state snapshot.
type State struct {
	PatternCount     int            `json:"pattern_count"`
	MetaPatternCount int            `json:"meta_pattern_count"`
	Graph            Graph          `json:"graph"`
	RecentPatterns   []*Pattern     `json:"recent_patterns"`
	MetaPatterns     []*MetaPattern `json:"meta_patterns"`
}

// GetState returns a copy of the current pattern state.
func (d *Detector) GetState() State {
	d.mu.RLock()
	defer d.mu.RUnlock()

	recent := d.patterns
	if len(recent) > 20 {
		recent = recent[len(recent)-20:]
	}
	recentCopy := make([]*Pattern, len(recent))
	copy(recentCopy, recent)
	metaCopy := make([]*MetaPattern, len(d.meta))
	copy(metaCopy, d.meta)

	g := Graph{
		Nodes: append([]string(nil), d.graph.Nodes...),
		Edges: append([]Edge(nil), d.graph.Edges...),
	}
	return State{
		PatternCount:     len(d.patterns),
		MetaPatternCount: len(d.meta),
		Graph:            g,
		RecentPatterns:   recentCopy,
		MetaPatterns:     metaCopy,
	}
}

// Patterns returns a copy of the stored pattern history.
func (d *Detector) Patterns() []*Pattern {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Pattern, len(d.patterns))
	copy(out, d.patterns)
	return out
}

// MetaPatterns returns a copy of all formed meta-patterns.
func (d *Detector) MetaPatterns() []*MetaPattern {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*MetaPattern, len(d.meta))
	copy(out, d.meta)
	return out
}
