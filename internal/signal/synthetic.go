package signal

import (
	"math"
	"math/rand"
	"sync"
)

// SyntheticSource generates reproducible pseudo-signals for local runs and
// tests. Each family mixes a sinusoid, a slow drift, and seeded noise so the
// downstream feature extractors see structure rather than white noise.
// Production deployments replace this with a real feed behind Source.
type SyntheticSource struct {
	mu   sync.Mutex
	rng  *rand.Rand
	tick float64
}

// NewSyntheticSource creates a seeded synthetic source.
func NewSyntheticSource(seed int64) *SyntheticSource {
	return &SyntheticSource{rng: rand.New(rand.NewSource(seed))}
}

// family parameters: base frequency, drift rate, noise amplitude
var familyParams = map[string][3]float64{
	"market":      {0.25, 0.01, 0.15},
	"technology":  {0.10, 0.03, 0.10},
	"regulatory":  {0.05, 0.005, 0.05},
	"competitive": {0.18, 0.02, 0.20},
}

// Sample produces n samples for the family.
func (s *SyntheticSource) Sample(family string, n int) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := familyParams[family]
	if !ok {
		return nil
	}

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		x := s.tick + float64(i)
		out[i] = math.Sin(2*math.Pi*p[0]*x) + p[1]*x + p[2]*(s.rng.Float64()*2-1)
	}
	s.tick += float64(n)
	return out
}

// VarietyObservations occasionally emits small novelty bundles so the
// variety monitor has something to absorb during demos.
func (s *SyntheticSource) VarietyObservations() *LLMVariety {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rng.Float64() > 0.3 {
		return nil
	}
	return &LLMVariety{
		NovelPatterns:      []string{"novel-0"},
		EmergentProperties: []string{"emergent-0"},
	}
}
