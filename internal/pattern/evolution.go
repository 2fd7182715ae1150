package pattern

import (
	"fmt"
	"math"
	"time"
)

// =============================================================================
// EVOLUTION TRACKING AND TRAJECTORY FORECASTING
// =============================================================================

// TrackEvolution returns the evolution record for a tracked pattern:
// observed history, extrapolated trajectory, detected mutations, and a
// stability score.
func (d *Detector) TrackEvolution(patternID string) (*EvolutionRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	history, ok := d.evolution[patternID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPattern, patternID)
	}

	historyCopy := make([]EvolutionSample, len(history))
	copy(historyCopy, history)

	return &EvolutionRecord{
		PatternID:  patternID,
		History:    historyCopy,
		Trajectory: extrapolate(historyCopy),
		Mutations:  detectMutations(historyCopy),
		Stability:  stability(historyCopy),
	}, nil
}

// extrapolate projects the next strength from the last 5 samples.
func extrapolate(history []EvolutionSample) float64 {
	if len(history) == 0 {
		return 0
	}
	recent := history
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	ys := make([]float64, len(recent))
	for i, s := range recent {
		ys[i] = s.Strength
	}
	return clamp01(ys[len(ys)-1] + linearSlope(ys))
}

// detectMutations finds type flips and strength jumps between consecutive
// samples.
func detectMutations(history []EvolutionSample) []Mutation {
	var out []Mutation
	for i := 1; i < len(history); i++ {
		prev, cur := history[i-1], history[i]
		if cur.PatternType != prev.PatternType {
			out = append(out, Mutation{Index: i, Reason: "type_change"})
			continue
		}
		if delta := cur.Strength - prev.Strength; math.Abs(delta) > 0.3 {
			out = append(out, Mutation{Index: i, Reason: "strength_jump", Delta: delta})
		}
	}
	return out
}

// stability is exp(-variance) over the last 10 strength samples.
func stability(history []EvolutionSample) float64 {
	if len(history) == 0 {
		return 1
	}
	recent := history
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	ys := make([]float64, len(recent))
	for i, s := range recent {
		ys[i] = s.Strength
	}
	return math.Exp(-Variance(ys))
}

// trajectoryStep is the forecasting cadence.
const trajectoryStep = 100 * time.Millisecond

// PredictTrajectory forecasts a pattern's strength over the horizon in
// 100ms steps. Confidence decays exponentially with each step. Bifurcations
// are flagged at the midpoint when strength sits in the unstable band around
// 0.5, and at the quarter point for extreme strengths.
func (d *Detector) PredictTrajectory(p *Pattern, horizon time.Duration) (*TrajectoryPrediction, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil pattern", ErrUnknownPattern)
	}
	steps := int(horizon / trajectoryStep)
	if steps <= 0 {
		steps = 1
	}

	d.mu.RLock()
	slope := 0.0
	if history, ok := d.evolution[p.ID]; ok && len(history) >= 2 {
		recent := history
		if len(recent) > 5 {
			recent = recent[len(recent)-5:]
		}
		ys := make([]float64, len(recent))
		for i, s := range recent {
			ys[i] = s.Strength
		}
		slope = linearSlope(ys)
	}
	d.mu.RUnlock()

	pred := &TrajectoryPrediction{PatternID: p.ID}
	var confSum float64
	for k := 1; k <= steps; k++ {
		conf := math.Exp(-0.1 * float64(k))
		pred.PredictedStates = append(pred.PredictedStates, PredictedState{
			Offset:     time.Duration(k) * trajectoryStep,
			Strength:   clamp01(p.Strength + slope*float64(k)),
			Confidence: conf,
		})
		confSum += conf
	}
	pred.Confidence = confSum / float64(steps)

	if math.Abs(p.Strength-0.5) <= 0.1 {
		pred.BifurcationPoints = append(pred.BifurcationPoints, horizon/2)
	}
	if p.Strength > 0.9 || p.Strength < 0.1 {
		pred.BifurcationPoints = append(pred.BifurcationPoints, horizon/4)
	}

	final := pred.PredictedStates[len(pred.PredictedStates)-1].Strength
	switch {
	case final > 0.8:
		pred.AttractorStates = []string{"saturation"}
	case final < 0.2:
		pred.AttractorStates = []string{"extinction"}
	default:
		pred.AttractorStates = []string{"oscillatory"}
	}
	return pred, nil
}
