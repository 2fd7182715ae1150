package pattern

import (
	"context"
	"math"
	"time"

	"requisite/internal/authority"
	"requisite/internal/logging"
)

// =============================================================================
// META-PATTERN IDENTIFICATION - WHOLE-SET STRUCTURAL SCAN
// =============================================================================

// IdentifyMetaPatterns scans the entire stored pattern set for recursive
// structures, cross-scale self-similarity, strength hierarchies, and
// universal patterns. Strong findings are escalated to the policy authority
// as a system-evolution proposal, never acted on unilaterally.
func (d *Detector) IdentifyMetaPatterns() *MetaAnalysis {
	d.mu.RLock()
	patterns := make([]*Pattern, len(d.patterns))
	copy(patterns, d.patterns)
	metaCount := len(d.meta)
	evolution := d.evolution
	stabilities := make(map[string]float64, len(patterns))
	for _, p := range patterns {
		stabilities[p.ID] = stability(evolution[p.ID])
	}
	d.mu.RUnlock()

	analysis := &MetaAnalysis{
		RecursiveStructures: recursiveStructures(patterns),
		PatternOfPatterns:   metaCount,
		EmergentHierarchies: hierarchyDepth(patterns),
		SelfSimilarScales:   selfSimilarityIndex(patterns),
	}

	var universality float64
	for _, p := range patterns {
		if p.Strength > 0.6 && stabilities[p.ID] > 0.7 {
			analysis.UniversalPatterns = append(analysis.UniversalPatterns, p.ID)
		}
	}
	if len(patterns) > 0 {
		universality = float64(len(analysis.UniversalPatterns)) / float64(len(patterns))
	}

	if analysis.EmergentHierarchies > 3 ||
		len(analysis.RecursiveStructures) > 0 ||
		analysis.SelfSimilarScales > 0.8 ||
		universality > 0.7 {
		analysis.EvolutionSignal = true
		d.escalateEvolution(analysis, universality)
	}
	return analysis
}

// recursiveStructures finds same-type, high-similarity pairs separated by a
// meaningful scale gap.
func recursiveStructures(patterns []*Pattern) []RecursiveStructure {
	var out []RecursiveStructure
	for i := 0; i < len(patterns); i++ {
		for j := i + 1; j < len(patterns); j++ {
			a, b := patterns[i], patterns[j]
			if a.PatternType != b.PatternType {
				continue
			}
			gap := math.Abs(a.Scale - b.Scale)
			if gap <= 0.3 {
				continue
			}
			if sim := Similarity(a, b); sim > 0.7 {
				out = append(out, RecursiveStructure{
					PatternA:   a.ID,
					PatternB:   b.ID,
					Similarity: sim,
					ScaleGap:   gap,
				})
			}
		}
	}
	return out
}

// hierarchyDepth counts the distinct strength buckets present:
// dominant >0.8, intermediate >0.5, subordinate >0.2, weak otherwise.
func hierarchyDepth(patterns []*Pattern) int {
	var dominant, intermediate, subordinate, weak bool
	for _, p := range patterns {
		switch {
		case p.Strength > 0.8:
			dominant = true
		case p.Strength > 0.5:
			intermediate = true
		case p.Strength > 0.2:
			subordinate = true
		default:
			weak = true
		}
	}
	depth := 0
	for _, present := range []bool{dominant, intermediate, subordinate, weak} {
		if present {
			depth++
		}
	}
	return depth
}

// selfSimilarityIndex measures cross-scale type-frequency overlap: how
// closely the type distribution at small scales mirrors large scales.
func selfSimilarityIndex(patterns []*Pattern) float64 {
	if len(patterns) < 2 {
		return 0
	}

	small := make(map[Type]float64)
	large := make(map[Type]float64)
	var nSmall, nLarge float64
	for _, p := range patterns {
		if p.Scale < 1.0 {
			small[p.PatternType]++
			nSmall++
		} else {
			large[p.PatternType]++
			nLarge++
		}
	}
	if nSmall == 0 || nLarge == 0 {
		return 0
	}

	// Overlap of normalized type frequencies.
	var overlap float64
	for t, c := range small {
		fa := c / nSmall
		fb := large[t] / nLarge
		overlap += math.Min(fa, fb)
	}
	return clamp01(overlap)
}

func (d *Detector) escalateEvolution(analysis *MetaAnalysis, universality float64) {
	if d.policy == nil {
		return
	}
	proposal := authority.EvolutionProposal{
		Reason: "pattern structure suggests structural evolution",
		Evidence: map[string]float64{
			"hierarchy_depth":      float64(analysis.EmergentHierarchies),
			"recursive_structures": float64(len(analysis.RecursiveStructures)),
			"self_similarity":      analysis.SelfSimilarScales,
			"universality":         universality,
		},
		Timestamp: time.Now(),
	}
	go func() {
		if err := d.policy.ProposeSystemEvolution(context.Background(), proposal); err != nil {
			logging.PolicyWarn("system evolution proposal failed: %v", err)
		}
	}()
}
