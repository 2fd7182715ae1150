// Package coordinator wires the intelligence components together and runs
// their loops. It is a thin facade: every operation delegates to exactly one
// component, and the coordinator itself holds no domain logic.
package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"requisite/internal/adaptation"
	"requisite/internal/authority"
	"requisite/internal/config"
	"requisite/internal/logging"
	"requisite/internal/pattern"
	"requisite/internal/signal"
	"requisite/internal/store"
	"requisite/internal/variety"
)

// Intelligence composes the scanner, pattern detector, variety monitor, and
// adaptation engine behind one lifecycle.
type Intelligence struct {
	cfg      *config.Config
	scanner  *signal.Scanner
	detector *pattern.Detector
	monitor  *variety.Monitor
	engine   *adaptation.Engine
	archive  *store.Archive // optional

	mu      sync.Mutex
	cancel  context.CancelFunc
	group   *errgroup.Group
	running bool
}

// New assembles the intelligence layer. archive may be nil (no persistence);
// policy and resources may be nil (escalations become no-ops).
func New(cfg *config.Config, source signal.Source, policy authority.Policy,
	resources authority.Resources, archive *store.Archive) *Intelligence {

	detector := pattern.NewDetector(pattern.Config{
		WindowSize:         cfg.Patterns.WindowSize,
		WindowOverlap:      cfg.Patterns.WindowOverlap,
		HistoryLimit:       cfg.Patterns.HistoryLimit,
		EmergenceThreshold: cfg.Patterns.EmergenceThreshold,
		ClusterThreshold:   pattern.DefaultConfig().ClusterThreshold,
	}, policy)

	monitor := variety.NewMonitor(variety.Config{
		InitialCapacity:    cfg.Variety.InitialCapacity,
		ExplosionThreshold: cfg.Variety.ExplosionThreshold,
		CascadeThreshold:   cfg.Variety.CascadeThreshold,
		CriticalRatio:      cfg.Variety.CriticalRatio,
		HistoryLimit:       100,
		SampleInterval:     cfg.VarietyTickInterval(),
	}, policy, resources)

	engine := adaptation.NewEngine(policy, resources, cfg.AdaptationMonitorInterval())

	intel := &Intelligence{
		cfg:      cfg,
		scanner:  signal.NewScanner(source),
		detector: detector,
		monitor:  monitor,
		engine:   engine,
		archive:  archive,
	}

	if archive != nil {
		monitor.SetSink(archive)
		engine.SetSink(archive)
		intel.restore()
	}
	return intel
}

// restore seeds the monitor from the last archived state and replays
// archived patterns into the detector.
func (in *Intelligence) restore() {
	st, ok, err := in.archive.LastState()
	if err != nil {
		logging.BootError("state restore failed, starting fresh: %v", err)
	} else if ok {
		in.monitor.Restore(st)
		logging.Boot("restored variety state: capacity=%.2f", st.InternalVarietyCapacity)
	}

	patterns, err := in.archive.LoadPatterns(in.cfg.Patterns.HistoryLimit)
	if err != nil {
		logging.BootError("pattern replay failed: %v", err)
		return
	}
	replayed := 0
	for i := len(patterns) - 1; i >= 0; i-- { // oldest first
		if err := in.detector.RegisterPattern(patterns[i]); err == nil {
			replayed++
		}
	}
	if replayed > 0 {
		logging.Boot("replayed %d archived patterns", replayed)
	}
}

// Start launches the scan, variety tick, and viability loops. It returns
// immediately; loops run until Stop or context cancellation.
func (in *Intelligence) Start(ctx context.Context) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.running {
		return errors.New("already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	in.cancel = cancel
	in.group = g
	in.running = true

	scope := signal.ParseScope(in.cfg.Scanner.DefaultScope)

	g.Go(func() error {
		return in.loop(ctx, "scan", in.cfg.ScanInterval(), func() {
			in.cycle(scope)
		})
	})
	g.Go(func() error {
		return in.loop(ctx, "variety_tick", in.cfg.VarietyTickInterval(), in.monitor.Tick)
	})
	g.Go(func() error {
		return in.loop(ctx, "viability", time.Minute, in.viabilityCheck)
	})

	logging.Coordinator("intelligence started: scan=%s tick=%s scope=%s",
		in.cfg.ScanInterval(), in.cfg.VarietyTickInterval(), scope)
	return nil
}

// loop runs fn on a ticker until the context ends. Each tick is isolated:
// a panic is logged and the loop continues at the next tick.
func (in *Intelligence) loop(ctx context.Context, name string, interval time.Duration, fn func()) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.CoordinatorDebug("%s loop stopped", name)
			return nil
		case <-ticker.C:
			in.safeTick(name, fn)
		}
	}
}

func (in *Intelligence) safeTick(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.CoordinatorDebug("%s tick panicked, continuing: %v", name, r)
		}
	}()
	fn()
}

// cycle is one scan-detect-monitor pass.
func (in *Intelligence) cycle(scope signal.Scope) {
	snap := in.scanner.Scan(scope)

	result, err := in.detector.DetectPatterns(snap)
	if err != nil {
		logging.CoordinatorDebug("detection skipped: %v", err)
		return
	}

	report, err := in.monitor.MonitorVariety(varietyDataFrom(snap, result))
	if err != nil {
		logging.CoordinatorDebug("variety monitoring failed: %v", err)
		return
	}

	if in.archive != nil {
		for _, p := range result.Patterns {
			if err := in.archive.SavePattern(p); err != nil {
				logging.StoreError("pattern archival failed: %v", err)
			}
		}
	}

	// High risk feeds back into adaptation as an explicit challenge.
	if report.RecommendedAction == variety.ActionEmergencyAbsorption ||
		report.RecommendedAction == variety.ActionImmediateMetaSystemSpawn {
		in.respondToExplosionRisk(report)
	}
}

// respondToExplosionRisk turns a high-risk report into a defensive
// adaptation.
func (in *Intelligence) respondToExplosionRisk(report *variety.RiskReport) {
	ch := adaptation.Challenge{
		Type:    adaptation.ChallengeVarietyExplosion,
		Urgency: authority.UrgencyHigh,
		Scope:   "variety_regulation",
	}
	proposal, err := in.engine.GenerateProposal(ch)
	if err != nil {
		logging.CoordinatorDebug("explosion response proposal failed: %v", err)
		return
	}
	if err := in.engine.ImplementAdaptation(proposal); err != nil {
		logging.CoordinatorDebug("explosion response implementation failed: %v", err)
		return
	}
	logging.Coordinator("explosion risk %.2f answered with adaptation %s",
		report.ExplosionRisk, proposal.ID)
}

// viabilityCheck derives viability metrics from current state and lets the
// engine propose corrective adaptations.
func (in *Intelligence) viabilityCheck() {
	vm := in.Viability()
	proposals := in.engine.RequestProposalsForViability(vm)
	if len(proposals) > 0 {
		logging.Coordinator("viability check produced %d proposals (health=%.2f efficiency=%.2f lag=%.2f)",
			len(proposals), vm.Health, vm.Efficiency, vm.InnovationLag)
	}
}

// Viability computes aggregate viability from component state: health from
// explosion risk, efficiency from scan yield, innovation lag from the
// engine's innovation index.
func (in *Intelligence) Viability() adaptation.ViabilityMetrics {
	assessment := in.monitor.CheckExplosionRisk()
	scans, empty := in.scanner.Stats()
	metrics := in.engine.GetMetrics()

	vm := adaptation.ViabilityMetrics{
		Health:        1 - assessment.CurrentRisk,
		Efficiency:    1,
		InnovationLag: 1 - metrics.InnovationIndex,
	}
	if scans > 0 {
		vm.Efficiency = 1 - float64(empty)/float64(scans)
	}
	return vm
}

// Stop cancels the loops and waits for them to finish, then stops the
// adaptation timers and closes the archive.
func (in *Intelligence) Stop() error {
	in.mu.Lock()
	if !in.running {
		in.mu.Unlock()
		return nil
	}
	in.running = false
	cancel := in.cancel
	group := in.group
	in.mu.Unlock()

	cancel()
	err := group.Wait()
	in.engine.Stop()

	if in.archive != nil {
		if cerr := in.archive.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	logging.Coordinator("intelligence stopped")
	return err
}

// varietyDataFrom merges the snapshot's LLM-derived block with pattern
// detection output into one variety observation.
func varietyDataFrom(snap *signal.Snapshot, result *pattern.DetectionResult) variety.Data {
	var data variety.Data
	if snap.LLMVariety != nil {
		data.NovelPatterns = append(data.NovelPatterns, snap.LLMVariety.NovelPatterns...)
		data.EmergentProperties = append(data.EmergentProperties, snap.LLMVariety.EmergentProperties...)
		data.RecursivePotential = append(data.RecursivePotential, snap.LLMVariety.RecursivePotential...)
		data.MetaSystemSeeds = append(data.MetaSystemSeeds, snap.LLMVariety.MetaSystemSeeds...)
		data.Superposition = snap.LLMVariety.QuantumSuperposition
	}
	for _, p := range result.Patterns {
		data.NovelPatterns = append(data.NovelPatterns, p.ID)
	}
	for _, mp := range result.MetaPatterns {
		data.EmergentProperties = append(data.EmergentProperties, mp.ID)
	}
	return data
}

// -----------------------------------------------------------------------------
// Facade operations - one delegation each
// -----------------------------------------------------------------------------

// Scan captures one snapshot at the given scope.
func (in *Intelligence) Scan(scope signal.Scope) *signal.Snapshot {
	return in.scanner.Scan(scope)
}

// DetectPatterns runs one detection cycle over a snapshot.
func (in *Intelligence) DetectPatterns(snap *signal.Snapshot) (*pattern.DetectionResult, error) {
	return in.detector.DetectPatterns(snap)
}

// AnalyzeEmergence summarizes emergent structure over the stored pattern set.
func (in *Intelligence) AnalyzeEmergence() pattern.EmergenceAnalysis {
	return in.detector.AnalyzeEmergence()
}

// TrackEvolution returns the evolution record for a tracked pattern.
func (in *Intelligence) TrackEvolution(patternID string) (*pattern.EvolutionRecord, error) {
	return in.detector.TrackEvolution(patternID)
}

// PredictTrajectory forecasts a pattern's strength over the horizon.
func (in *Intelligence) PredictTrajectory(p *pattern.Pattern, horizon time.Duration) (*pattern.TrajectoryPrediction, error) {
	return in.detector.PredictTrajectory(p, horizon)
}

// IdentifyMetaPatterns runs the whole-set structural scan.
func (in *Intelligence) IdentifyMetaPatterns() *pattern.MetaAnalysis {
	return in.detector.IdentifyMetaPatterns()
}

// MonitorVariety processes one variety observation.
func (in *Intelligence) MonitorVariety(data variety.Data) (*variety.RiskReport, error) {
	return in.monitor.MonitorVariety(data)
}

// CheckExplosionRisk reports the current risk assessment.
func (in *Intelligence) CheckExplosionRisk() *variety.RiskAssessment {
	return in.monitor.CheckExplosionRisk()
}

// PredictCascade simulates stage-wise amplification of a variety level.
func (in *Intelligence) PredictCascade(currentVariety float64) *variety.CascadePrediction {
	return in.monitor.PredictCascade(currentVariety)
}

// GenerateProposal builds an adaptation proposal for a challenge.
func (in *Intelligence) GenerateProposal(ch adaptation.Challenge) (*adaptation.Proposal, error) {
	return in.engine.GenerateProposal(ch)
}

// ImplementAdaptation accepts a proposal for implementation.
func (in *Intelligence) ImplementAdaptation(p *adaptation.Proposal) error {
	return in.engine.ImplementAdaptation(p)
}

// ActiveAdaptations returns copies of the in-progress adaptations.
func (in *Intelligence) ActiveAdaptations() []*adaptation.Adaptation {
	return in.engine.GetActiveAdaptations()
}

// AdaptationMetrics returns aggregate engine metrics.
func (in *Intelligence) AdaptationMetrics() adaptation.Metrics {
	return in.engine.GetMetrics()
}

// VarietyState returns the serializable variety state.
func (in *Intelligence) VarietyState() variety.State {
	return in.monitor.GetState()
}

// PatternState returns the externally visible pattern state.
func (in *Intelligence) PatternState() pattern.State {
	return in.detector.GetState()
}

// Status is the aggregate view for the status surface.
type Status struct {
	Scans             int64              `json:"scans"`
	EmptyScans        int64              `json:"empty_scans"`
	Patterns          int                `json:"patterns"`
	MetaPatterns      int                `json:"meta_patterns"`
	VarietyRatio      float64            `json:"variety_ratio"`
	Capacity          float64            `json:"capacity"`
	ExplosionRisk     float64            `json:"explosion_risk"`
	ActiveAdaptations int                `json:"active_adaptations"`
	Metrics           adaptation.Metrics `json:"metrics"`
}

// GetStatus aggregates component state for the CLI.
func (in *Intelligence) GetStatus() Status {
	scans, empty := in.scanner.Stats()
	ps := in.detector.GetState()
	vs := in.monitor.GetState()
	assessment := in.monitor.CheckExplosionRisk()
	metrics := in.engine.GetMetrics()

	return Status{
		Scans:             scans,
		EmptyScans:        empty,
		Patterns:          ps.PatternCount,
		MetaPatterns:      ps.MetaPatternCount,
		VarietyRatio:      vs.VarietyRatio,
		Capacity:          vs.InternalVarietyCapacity,
		ExplosionRisk:     assessment.CurrentRisk,
		ActiveAdaptations: metrics.ActiveAdaptations,
		Metrics:           metrics,
	}
}
