package signal

import (
	"sync"
	"time"

	"requisite/internal/logging"
)

// =============================================================================
// SCANNER - RAW SIGNAL COLLECTION
// =============================================================================

// Source supplies raw signal series for one scan. Implementations may be
// backed by real telemetry feeds; the default is a synthetic generator.
type Source interface {
	// Sample returns one series for the named family. A nil or empty
	// return means the family is unavailable right now.
	Sample(family string, n int) []float64

	// VarietyObservations returns LLM-derived variety data, if any.
	VarietyObservations() *LLMVariety
}

// Scanner produces snapshots of domain signals on demand.
type Scanner struct {
	mu     sync.Mutex
	source Source
	series int // samples per family per scan

	scans      int64
	emptyScans int64
}

// NewScanner creates a scanner over the given source.
func NewScanner(source Source) *Scanner {
	return &Scanner{source: source, series: 64}
}

// Scan captures a snapshot at the requested scope. An unavailable source
// yields an empty snapshot; that is recorded, never retried here.
func (s *Scanner) Scan(scope Scope) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := logging.StartTimer(logging.CategoryScanner, "scan")
	defer t.Stop()

	snap := &Snapshot{
		Timestamp: time.Now(),
		Scope:     scope,
		Coverage:  scope.Coverage(),
	}

	s.scans++
	if s.source == nil {
		s.emptyScans++
		logging.ScannerWarn("scan with no signal source, returning empty snapshot")
		return snap
	}

	switch scope {
	case ScopeFull:
		snap.MarketSignals = s.source.Sample("market", s.series)
		snap.TechnologyTrends = s.source.Sample("technology", s.series)
		snap.RegulatoryEvents = s.source.Sample("regulatory", s.series)
		snap.CompetitiveMoves = s.source.Sample("competitive", s.series)
	case ScopePartial:
		snap.MarketSignals = s.source.Sample("market", s.series)
		snap.TechnologyTrends = s.source.Sample("technology", s.series)
	default: // targeted
		snap.MarketSignals = s.source.Sample("market", s.series)
	}

	snap.LLMVariety = s.source.VarietyObservations()

	if snap.Empty() {
		s.emptyScans++
		logging.ScannerWarn("signal source returned no data (scope=%s)", scope)
	} else {
		logging.ScannerDebug("scan complete: scope=%s coverage=%.1f families=%d",
			scope, snap.Coverage, len(snap.Series()))
	}
	return snap
}

// Stats reports how many scans ran and how many came back empty.
func (s *Scanner) Stats() (scans, empty int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scans, s.emptyScans
}
