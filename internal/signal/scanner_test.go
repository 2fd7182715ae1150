package signal

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// stubSource records which families were requested.
type stubSource struct {
	requested []string
}

func (s *stubSource) Sample(family string, n int) []float64 {
	s.requested = append(s.requested, family)
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func (s *stubSource) VarietyObservations() *LLMVariety { return nil }

func TestScopeCoverage(t *testing.T) {
	tests := []struct {
		scope Scope
		want  float64
	}{
		{ScopeFull, 1.0},
		{ScopePartial, 0.6},
		{ScopeTargeted, 0.3},
		{Scope("bogus"), 0.3},
	}
	for _, tt := range tests {
		if got := tt.scope.Coverage(); got != tt.want {
			t.Errorf("Coverage(%s) = %v, want %v", tt.scope, got, tt.want)
		}
	}
}

func TestParseScopeDefaultsToFull(t *testing.T) {
	if got := ParseScope("partial"); got != ScopePartial {
		t.Errorf("ParseScope(partial) = %v", got)
	}
	if got := ParseScope("nonsense"); got != ScopeFull {
		t.Errorf("ParseScope(nonsense) = %v, want full", got)
	}
}

func TestScanScopeSelectsFamilies(t *testing.T) {
	tests := []struct {
		scope Scope
		want  []string
	}{
		{ScopeFull, []string{"market", "technology", "regulatory", "competitive"}},
		{ScopePartial, []string{"market", "technology"}},
		{ScopeTargeted, []string{"market"}},
	}
	for _, tt := range tests {
		src := &stubSource{}
		s := NewScanner(src)
		snap := s.Scan(tt.scope)

		if diff := cmp.Diff(tt.want, src.requested); diff != "" {
			t.Errorf("scope %s requested families mismatch (-want +got):\n%s", tt.scope, diff)
		}
		if snap.Coverage != tt.scope.Coverage() {
			t.Errorf("scope %s coverage = %v", tt.scope, snap.Coverage)
		}
		if snap.Empty() {
			t.Errorf("scope %s snapshot unexpectedly empty", tt.scope)
		}
	}
}

func TestScanWithoutSourceIsEmptyNotRetried(t *testing.T) {
	s := NewScanner(nil)
	snap := s.Scan(ScopeFull)
	if !snap.Empty() {
		t.Error("nil source should yield an empty snapshot")
	}
	if snap.Timestamp.IsZero() {
		t.Error("empty snapshot still needs a timestamp")
	}

	scans, empty := s.Stats()
	if scans != 1 || empty != 1 {
		t.Errorf("stats = %d scans / %d empty, want 1/1", scans, empty)
	}
}

func TestSeriesExcludesMissingFamilies(t *testing.T) {
	snap := &Snapshot{MarketSignals: []float64{1, 2}}
	series := snap.Series()
	if len(series) != 1 {
		t.Fatalf("series families = %d, want 1", len(series))
	}
	if _, ok := series["market"]; !ok {
		t.Error("market family missing from series")
	}
}

func TestSyntheticSourceReproducible(t *testing.T) {
	a := NewSyntheticSource(42)
	b := NewSyntheticSource(42)

	sa := a.Sample("market", 32)
	sb := b.Sample("market", 32)
	if len(sa) != 32 {
		t.Fatalf("sample length = %d, want 32", len(sa))
	}
	if diff := cmp.Diff(sa, sb); diff != "" {
		t.Errorf("same seed produced different samples:\n%s", diff)
	}

	if got := a.Sample("unknown_family", 8); got != nil {
		t.Errorf("unknown family should return nil, got %v", got)
	}
}
