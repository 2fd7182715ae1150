package variety

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func newTestMonitor() *Monitor {
	return NewMonitor(DefaultConfig(), nil, nil)
}

// dataWithExternal builds an observation whose weighted external variety is
// exact: novel patterns weigh 0.3, recursive potential 0.25.
func dataWithExternal(novel, recursive int) Data {
	d := Data{}
	for i := 0; i < novel; i++ {
		d.NovelPatterns = append(d.NovelPatterns, "n")
	}
	for i := 0; i < recursive; i++ {
		d.RecursivePotential = append(d.RecursivePotential, "r")
	}
	return d
}

func TestExternalVarietyWeights(t *testing.T) {
	d := Data{
		NovelPatterns:      []string{"a", "b"},      // 0.6
		EmergentProperties: []string{"c"},           // 0.2
		RecursivePotential: []string{"d", "e"},      // 0.5
		MetaSystemSeeds:    []string{"f", "g", "h"}, // 0.75
	}
	got := externalVariety(d)
	want := 2.05
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("externalVariety = %v, want %v", got, want)
	}

	d.Superposition = true
	got = externalVariety(d)
	if math.Abs(got-want*1.5) > 1e-9 {
		t.Errorf("superposition externalVariety = %v, want %v", got, want*1.5)
	}
}

func TestMonitorVarietyRatioConsistency(t *testing.T) {
	m := newTestMonitor()
	report, err := m.MonitorVariety(dataWithExternal(5, 0)) // external = 1.5
	if err != nil {
		t.Fatalf("MonitorVariety: %v", err)
	}
	if got := report.ExternalVariety / report.InternalCapacity; math.Abs(got-report.VarietyRatio) > 1e-9 {
		t.Errorf("ratio %v inconsistent with external/capacity %v", report.VarietyRatio, got)
	}
}

func TestHighPressureEndToEnd(t *testing.T) {
	// External variety 2.5 against fresh capacity 1.0: a single observation
	// carries no growth evidence, absorption is intact, so risk stays at
	// (2.5/3)*0.8 = 0.667 and the ladder lands on increase_internal_variety.
	m := newTestMonitor()
	report, err := m.MonitorVariety(dataWithExternal(5, 4)) // 1.5 + 1.0 = 2.5
	if err != nil {
		t.Fatalf("MonitorVariety: %v", err)
	}
	if math.Abs(report.ExternalVariety-2.5) > 1e-9 {
		t.Fatalf("external variety = %v, want 2.5", report.ExternalVariety)
	}
	if report.ExplosionRisk > 0.7 {
		t.Errorf("explosion risk = %v, want <= 0.7", report.ExplosionRisk)
	}
	if report.RecommendedAction != ActionIncreaseInternalVariety {
		t.Errorf("recommended action = %v, want %v", report.RecommendedAction, ActionIncreaseInternalVariety)
	}
}

func TestRecommendActionLadder(t *testing.T) {
	tests := []struct {
		risk  float64
		ratio float64
		want  Action
	}{
		{0.95, 3.0, ActionImmediateMetaSystemSpawn},
		{0.75, 2.5, ActionEmergencyAbsorption},
		{0.5, 2.1, ActionIncreaseInternalVariety},
		{0.3, 1.6, ActionSelectiveFiltering},
		{0.1, 1.0, ActionMonitor},
	}
	for _, tt := range tests {
		if got := RecommendAction(tt.risk, tt.ratio); got != tt.want {
			t.Errorf("RecommendAction(%v, %v) = %v, want %v", tt.risk, tt.ratio, got, tt.want)
		}
	}
}

func TestSelectStrategySteps(t *testing.T) {
	tests := []struct {
		ratio      float64
		kind       StrategyKind
		acceptance float64
	}{
		{3.5, StrategyEmergency, 1.0},
		{2.5, StrategySelective, 0.7},
		{1.7, StrategyGradual, 0.5},
		{1.0, StrategyNormal, 0.3},
	}
	for _, tt := range tests {
		got := SelectStrategy(tt.ratio)
		if got.Kind != tt.kind || got.Acceptance != tt.acceptance {
			t.Errorf("SelectStrategy(%v) = %+v, want {%v %v}", tt.ratio, got, tt.kind, tt.acceptance)
		}
	}
}

func TestExplosionRiskMonotonicInRatio(t *testing.T) {
	prev := -1.0
	for ratio := 0.0; ratio <= 6.0; ratio += 0.1 {
		risk := explosionRisk(ratio, TrendStable, 1.0)
		if risk < prev {
			t.Fatalf("risk decreased at ratio %v: %v < %v", ratio, risk, prev)
		}
		if risk < 0 || risk > 1 {
			t.Fatalf("risk out of bounds at ratio %v: %v", ratio, risk)
		}
		prev = risk
	}
}

func TestTrendFactors(t *testing.T) {
	if TrendIncreasing.Factor() != 1.2 || TrendStable.Factor() != 1.0 || TrendDecreasing.Factor() != 0.8 {
		t.Errorf("trend factors = %v/%v/%v", TrendIncreasing.Factor(), TrendStable.Factor(), TrendDecreasing.Factor())
	}
}

func TestTrendOfShortHistory(t *testing.T) {
	if got := trendOf([]float64{1, 2, 3}); got != TrendDecreasing {
		t.Errorf("trendOf(short) = %v, want %v", got, TrendDecreasing)
	}
	if got := trendOf([]float64{1, 1, 2, 3}); got != TrendIncreasing {
		t.Errorf("trendOf(growing) = %v, want %v", got, TrendIncreasing)
	}
	if got := trendOf([]float64{3, 3, 1, 1}); got != TrendDecreasing {
		t.Errorf("trendOf(shrinking) = %v, want %v", got, TrendDecreasing)
	}
	if got := trendOf([]float64{2, 2, 2, 2}); got != TrendStable {
		t.Errorf("trendOf(flat) = %v, want %v", got, TrendStable)
	}
}

func TestUncontrolledExplosionRecordsEvent(t *testing.T) {
	m := newTestMonitor()

	// Four growing observations: the last one has ratio 6 with an increasing
	// trend, pushing risk to 1.0 and absorption past capability.
	for _, novel := range []int{10, 12, 14, 20} {
		if _, err := m.MonitorVariety(dataWithExternal(novel, 0)); err != nil {
			t.Fatalf("MonitorVariety: %v", err)
		}
	}

	ev, ok := m.LastExplosion()
	if !ok {
		t.Fatal("expected an explosion event")
	}
	if ev.ProtocolUsed != "meta_spawn" {
		t.Errorf("protocol = %q, want meta_spawn", ev.ProtocolUsed)
	}
	if ev.Result == nil || !ev.Result.OverallSuccess {
		t.Errorf("expected successful protocol result, got %+v", ev.Result)
	}
}

func TestCapacityStaysClamped(t *testing.T) {
	m := newTestMonitor()

	m.Restore(State{InternalVarietyCapacity: 9.99, AbsorptionRate: 1.0})
	// Keep variety above capacity/2 so each tick grows capacity by 1%.
	if _, err := m.MonitorVariety(dataWithExternal(40, 0)); err != nil {
		t.Fatalf("MonitorVariety: %v", err)
	}
	for i := 0; i < 10; i++ {
		m.Tick()
		if c := m.GetState().InternalVarietyCapacity; c > MaxCapacity {
			t.Fatalf("capacity %v exceeds max %v", c, MaxCapacity)
		}
	}
	if c := m.GetState().InternalVarietyCapacity; c != MaxCapacity {
		t.Errorf("capacity = %v, want clamped to %v", c, MaxCapacity)
	}

	m2 := newTestMonitor()
	m2.Restore(State{InternalVarietyCapacity: 0.5, AbsorptionRate: 1.0})
	// current 0 < capacity/2 shrinks capacity, clamp holds the floor.
	for i := 0; i < 10; i++ {
		m2.Tick()
		if c := m2.GetState().InternalVarietyCapacity; c < MinCapacity {
			t.Fatalf("capacity %v fell below min %v", c, MinCapacity)
		}
	}
}

func TestCapacityGrowsAfterExplosion(t *testing.T) {
	m := newTestMonitor()
	for _, novel := range []int{10, 12, 14, 20} {
		if _, err := m.MonitorVariety(dataWithExternal(novel, 0)); err != nil {
			t.Fatalf("MonitorVariety: %v", err)
		}
	}
	before := m.GetState().InternalVarietyCapacity
	m.Tick()
	after := m.GetState().InternalVarietyCapacity
	if after <= before {
		t.Errorf("capacity did not grow after explosion: %v -> %v", before, after)
	}
}

func TestAbsorptionRateRecovers(t *testing.T) {
	m := newTestMonitor()
	m.mu.Lock()
	m.absorptionRate = 0.5
	m.current = 1.0 // normal strategy absorbs 0.3 against capability 0.5
	err := m.absorb(SelectStrategy(1.0))
	rate := m.absorptionRate
	m.mu.Unlock()

	if err != nil {
		t.Fatalf("absorb: %v", err)
	}
	want := 0.9*0.5 + 0.1
	if math.Abs(rate-want) > 1e-9 {
		t.Errorf("absorption rate = %v, want %v", rate, want)
	}
}

func TestCascadeStagesStrictlyIncrease(t *testing.T) {
	m := newTestMonitor()
	pred := m.PredictCascade(5.0)

	if len(pred.CascadeStages) != 4 {
		t.Fatalf("stage count = %d, want 4", len(pred.CascadeStages))
	}
	for i := 1; i < len(pred.CascadeStages); i++ {
		prev, cur := pred.CascadeStages[i-1], pred.CascadeStages[i]
		if cur.VarietyLevel <= prev.VarietyLevel {
			t.Errorf("stage %d level %v not above stage %d level %v",
				cur.StageNumber, cur.VarietyLevel, prev.StageNumber, prev.VarietyLevel)
		}
		if cur.StageNumber != prev.StageNumber+1 {
			t.Errorf("stage numbering broken: %d after %d", cur.StageNumber, prev.StageNumber)
		}
	}
	if pred.ContainmentProbability < 0.1 || pred.ContainmentProbability > 1 {
		t.Errorf("containment probability out of range: %v", pred.ContainmentProbability)
	}
}

func TestCascadePeakByTrend(t *testing.T) {
	m := newTestMonitor()
	// No history: trend is decreasing, peak multiplier 1.3.
	pred := m.PredictCascade(2.0)
	if math.Abs(pred.PeakVariety-2.6) > 1e-9 {
		t.Errorf("peak = %v, want 2.6", pred.PeakVariety)
	}
}

func TestCheckExplosionRiskUnbounded(t *testing.T) {
	m := newTestMonitor()
	for _, novel := range []int{10, 8} { // falling variety
		if _, err := m.MonitorVariety(dataWithExternal(novel, 0)); err != nil {
			t.Fatalf("MonitorVariety: %v", err)
		}
	}
	a := m.CheckExplosionRisk()
	if !a.Unbounded {
		t.Error("falling variety should report unbounded time to explosion")
	}
}

func TestCheckExplosionRiskProjectsTime(t *testing.T) {
	m := newTestMonitor()
	for _, novel := range []int{2, 4} { // 0.6 then 1.2, rate 0.6/sample
		if _, err := m.MonitorVariety(dataWithExternal(novel, 0)); err != nil {
			t.Fatalf("MonitorVariety: %v", err)
		}
	}
	a := m.CheckExplosionRisk()
	if a.Unbounded {
		t.Fatal("rising variety should project a time to explosion")
	}
	// (3.0 - 1.2) / 0.6 = 3 sample intervals of 5s.
	want := 15 * time.Second
	if a.TimeToExplosion != want {
		t.Errorf("time to explosion = %v, want %v", a.TimeToExplosion, want)
	}
}

func TestSelectProtocolThresholds(t *testing.T) {
	tests := []struct {
		risk float64
		want string
	}{
		{0.95, "meta_spawn"},
		{0.8, "cascade_prevention"},
		{0.72, "emergency_filter"},
		{0.65, "controlled_degradation"},
	}
	for _, tt := range tests {
		p := SelectProtocol(tt.risk)
		if p == nil || p.Name != tt.want {
			t.Errorf("SelectProtocol(%v) = %v, want %v", tt.risk, p, tt.want)
		}
	}
	if p := SelectProtocol(0.5); p != nil {
		t.Errorf("SelectProtocol(0.5) = %v, want nil", p)
	}
}

func TestProtocolContinuesPastUnknownAction(t *testing.T) {
	m := newTestMonitor()
	report := &RiskReport{ExplosionRisk: 0.8, VarietyRatio: 2.0}
	p := &Protocol{Name: "custom", Threshold: 0.7, Actions: []string{"bogus_action", "activate_filters"}}

	m.mu.Lock()
	result := m.executeProtocol(p, report)
	m.mu.Unlock()

	if result.OverallSuccess {
		t.Error("protocol with unknown action should not report overall success")
	}
	if len(result.ActionResults) != 2 {
		t.Fatalf("action results = %d, want 2 (remaining actions must still run)", len(result.ActionResults))
	}
	if result.ActionResults[0].Success || result.ActionResults[0].Error == "" {
		t.Errorf("unknown action result = %+v, want failure with error", result.ActionResults[0])
	}
	if !result.ActionResults[1].Success {
		t.Errorf("known action should succeed: %+v", result.ActionResults[1])
	}
	if !m.FiltersActive() {
		t.Error("activate_filters should have engaged filtering")
	}
	m.ResetEmergencyState()
	if m.FiltersActive() {
		t.Error("reset should clear filtering")
	}
}

func TestStateJSONRoundTrip(t *testing.T) {
	m := newTestMonitor()
	for _, novel := range []int{10, 12, 14, 20} {
		if _, err := m.MonitorVariety(dataWithExternal(novel, 0)); err != nil {
			t.Fatalf("MonitorVariety: %v", err)
		}
	}
	m.PredictCascade(4.0)

	st := m.GetState()
	data, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var restored State
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(st, restored); diff != "" {
		t.Errorf("state round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestGetStateIsDeepCopy(t *testing.T) {
	m := newTestMonitor()
	for _, novel := range []int{10, 12, 14, 20} {
		if _, err := m.MonitorVariety(dataWithExternal(novel, 0)); err != nil {
			t.Fatalf("MonitorVariety: %v", err)
		}
	}
	st := m.GetState()
	if len(st.ExplosionEvents) == 0 {
		t.Fatal("expected explosion events in state")
	}
	st.ExplosionEvents[0].ProtocolUsed = "tampered"

	again := m.GetState()
	if again.ExplosionEvents[0].ProtocolUsed == "tampered" {
		t.Error("GetState exposed internal slices")
	}
}
