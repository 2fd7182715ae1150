package pattern

import (
	"testing"
	"time"

	"requisite/internal/authority"
)

func TestHierarchyDepth(t *testing.T) {
	set := []*Pattern{
		scoredPattern("dom", TypeStructural, 0.9, 0.5),
		scoredPattern("mid", TypeStructural, 0.6, 0.5),
		scoredPattern("sub", TypeStructural, 0.3, 0.5),
		scoredPattern("weak", TypeStructural, 0.1, 0.5),
	}
	if got := hierarchyDepth(set); got != 4 {
		t.Errorf("hierarchyDepth = %d, want 4", got)
	}
	if got := hierarchyDepth(set[:2]); got != 2 {
		t.Errorf("hierarchyDepth(two buckets) = %d, want 2", got)
	}
	if got := hierarchyDepth(nil); got != 0 {
		t.Errorf("hierarchyDepth(empty) = %d, want 0", got)
	}
}

func TestRecursiveStructuresNeedScaleGap(t *testing.T) {
	vec := [8]float64{0.5, 0.1, 0, 0, 0.125, 0.2, 0.3, 0.8}
	a := makePattern("a", TypeTemporal, 0.7, 0.5, vec)
	b := makePattern("b", TypeTemporal, 0.7, 1.0, vec) // gap 0.5
	c := makePattern("c", TypeTemporal, 0.7, 1.1, vec) // gap to b only 0.1

	rs := recursiveStructures([]*Pattern{a, b, c})
	// a-b and a-c have gaps above 0.3; b-c does not.
	if len(rs) != 2 {
		t.Fatalf("recursive structures = %d, want 2", len(rs))
	}
	for _, r := range rs {
		if r.Similarity <= 0.7 {
			t.Errorf("similarity = %v, want > 0.7", r.Similarity)
		}
		if r.ScaleGap <= 0.3 {
			t.Errorf("scale gap = %v, want > 0.3", r.ScaleGap)
		}
	}
}

func TestSelfSimilarityIndex(t *testing.T) {
	// Same type mix at both scales: full overlap.
	set := []*Pattern{
		makePattern("s1", TypeTemporal, 0.5, 0.5, [8]float64{}),
		makePattern("l1", TypeTemporal, 0.5, 1.5, [8]float64{}),
	}
	if got := selfSimilarityIndex(set); got != 1.0 {
		t.Errorf("selfSimilarityIndex = %v, want 1.0", got)
	}

	// Everything at one scale: no cross-scale evidence.
	flat := []*Pattern{
		makePattern("l1", TypeTemporal, 0.5, 1.5, [8]float64{}),
		makePattern("l2", TypeTemporal, 0.5, 1.5, [8]float64{}),
	}
	if got := selfSimilarityIndex(flat); got != 0 {
		t.Errorf("single-scale selfSimilarityIndex = %v, want 0", got)
	}
}

func TestIdentifyMetaPatternsEscalates(t *testing.T) {
	policy := authority.NewLoggingPolicy()
	d := NewDetector(DefaultConfig(), policy)

	vec := [8]float64{0.5, 0.1, 0, 0, 0.125, 0.2, 0.3, 0.8}
	if err := d.RegisterPattern(makePattern("small", TypeTemporal, 0.7, 0.5, vec)); err != nil {
		t.Fatal(err)
	}
	if err := d.RegisterPattern(makePattern("large", TypeTemporal, 0.7, 1.2, vec)); err != nil {
		t.Fatal(err)
	}

	analysis := d.IdentifyMetaPatterns()
	if len(analysis.RecursiveStructures) == 0 {
		t.Fatal("expected a recursive structure across scales")
	}
	if !analysis.EvolutionSignal {
		t.Error("recursive structure should raise the evolution signal")
	}
	if analysis.PatternOfPatterns != 1 {
		t.Errorf("pattern-of-patterns = %d, want 1 meta pattern", analysis.PatternOfPatterns)
	}

	// The escalation is fire-and-forget; give it a moment to land.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(policy.EvolutionProposals()) > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("evolution proposal never reached the policy authority")
}

func TestIdentifyMetaPatternsQuietSet(t *testing.T) {
	d := NewDetector(DefaultConfig(), nil)
	if err := d.RegisterPattern(makePattern("only", TypeStructural, 0.4, 1.0, [8]float64{})); err != nil {
		t.Fatal(err)
	}
	analysis := d.IdentifyMetaPatterns()
	if analysis.EvolutionSignal {
		t.Error("a single unremarkable pattern should not signal evolution")
	}
}
