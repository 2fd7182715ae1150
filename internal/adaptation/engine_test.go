package adaptation

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"requisite/internal/authority"
)

// instantProber reports immediate completion.
type instantProber struct{}

func (instantProber) Progress(a *Adaptation, elapsed, expected time.Duration) (float64, bool) {
	return 1.0, true
}

// stalledProber never completes.
type stalledProber struct{}

func (stalledProber) Progress(a *Adaptation, elapsed, expected time.Duration) (float64, bool) {
	return 0.1, false
}

// recordingSink captures adaptation transitions.
type recordingSink struct {
	mu      sync.Mutex
	records []Adaptation
}

func (s *recordingSink) RecordAdaptation(a *Adaptation) {
	s.mu.Lock()
	s.records = append(s.records, *a)
	s.mu.Unlock()
}

func (s *recordingSink) statuses() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Status, len(s.records))
	for i, r := range s.records {
		out[i] = r.Status
	}
	return out
}

func TestSelectModelByUrgency(t *testing.T) {
	tests := []struct {
		urgency authority.Urgency
		want    ModelType
	}{
		{authority.UrgencyHigh, ModelDefensive},
		{authority.UrgencyCritical, ModelDefensive},
		{authority.UrgencyMedium, ModelIncremental},
		{authority.UrgencyLow, ModelTransformational},
	}
	for _, tt := range tests {
		if got := SelectModel(tt.urgency).Type(); got != tt.want {
			t.Errorf("SelectModel(%v) = %v, want %v", tt.urgency, got, tt.want)
		}
	}
}

func TestDefensiveModelAddsEmergencyStabilization(t *testing.T) {
	ch := Challenge{Type: ChallengeHealth, Urgency: authority.UrgencyHigh, Scope: "system"}
	actions := defensiveModel{}.Actions(ch)
	assert.Contains(t, actions, "emergency_stabilization")

	other := defensiveModel{}.Actions(Challenge{Type: ChallengeVarietyExplosion, Urgency: authority.UrgencyHigh})
	assert.NotContains(t, other, "emergency_stabilization")
}

func TestGenerateProposalFields(t *testing.T) {
	e := NewEngine(nil, nil, time.Hour)
	defer e.Stop()

	p, err := e.GenerateProposal(Challenge{Type: ChallengeEfficiency, Urgency: authority.UrgencyMedium, Scope: "ops"})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, ModelIncremental, p.ModelType)
	assert.Equal(t, 0.3, p.Impact)
	assert.Equal(t, "1_month", p.Timeline)
	assert.NotEmpty(t, p.Actions)
	assert.NotEmpty(t, p.Risks)
	assert.NotEmpty(t, p.ResourcesRequired)
}

func TestImplementAdaptationTracksActive(t *testing.T) {
	e := NewEngine(nil, nil, time.Hour)
	defer e.Stop()

	p, err := e.GenerateProposal(Challenge{Type: ChallengePatternShift, Urgency: authority.UrgencyMedium})
	require.NoError(t, err)
	require.NoError(t, e.ImplementAdaptation(p))

	active := e.GetActiveAdaptations()
	require.Len(t, active, 1)
	assert.Equal(t, StatusInProgress, active[0].Status)
	assert.Equal(t, p.ID, active[0].ID)
	assert.False(t, active[0].ResourceConstrained)

	assert.Error(t, e.ImplementAdaptation(nil))
}

func TestResourceDenialIsNonFatal(t *testing.T) {
	resources := authority.NewStaticResources(0.1) // below any model impact
	e := NewEngine(nil, resources, time.Hour)
	defer e.Stop()

	p, err := e.GenerateProposal(Challenge{Type: ChallengeHealth, Urgency: authority.UrgencyHigh})
	require.NoError(t, err)
	require.NoError(t, e.ImplementAdaptation(p), "denied allocation must not abort implementation")

	active := e.GetActiveAdaptations()
	require.Len(t, active, 1)
	assert.True(t, active[0].ResourceConstrained)
}

func TestCapacityDropsWithLoad(t *testing.T) {
	e := NewEngine(nil, nil, time.Hour)
	e.SetProber(stalledProber{})
	defer e.Stop()

	implement := func(n int) {
		for i := 0; i < n; i++ {
			p, err := e.GenerateProposal(Challenge{Type: ChallengeEfficiency, Urgency: authority.UrgencyMedium})
			require.NoError(t, err)
			require.NoError(t, e.ImplementAdaptation(p))
		}
	}

	assert.Equal(t, 0.9, e.GetMetrics().AdaptationCapacity)
	implement(3)
	assert.Equal(t, 0.5, e.GetMetrics().AdaptationCapacity)
	implement(2)
	assert.Equal(t, 0.2, e.GetMetrics().AdaptationCapacity)
	assert.Equal(t, 5, e.GetMetrics().ActiveAdaptations)
}

func TestMonitoringCompletesAdaptation(t *testing.T) {
	e := NewEngine(nil, nil, 10*time.Millisecond)
	e.SetProber(instantProber{})
	defer e.Stop()

	p, err := e.GenerateProposal(Challenge{Type: ChallengeInnovationLag, Urgency: authority.UrgencyLow})
	require.NoError(t, err)
	require.NoError(t, e.ImplementAdaptation(p))

	require.Eventually(t, func() bool {
		return len(e.GetActiveAdaptations()) == 0
	}, time.Second, 5*time.Millisecond, "adaptation never completed")

	history := e.History()
	require.Len(t, history, 1)
	assert.Equal(t, StatusCompleted, history[0].Status)
	require.NotNil(t, history[0].CompletedAt)

	m := e.GetMetrics()
	assert.Equal(t, 1.0, m.SuccessRate)
	assert.Equal(t, 1.0, m.ResourceEfficiency)
	assert.Equal(t, 1.0, m.InnovationIndex) // the only proposal was transformational
}

func TestSinkSeesStartAndCompletion(t *testing.T) {
	e := NewEngine(nil, nil, 10*time.Millisecond)
	e.SetProber(instantProber{})
	sink := &recordingSink{}
	e.SetSink(sink)
	defer e.Stop()

	p, err := e.GenerateProposal(Challenge{Type: ChallengeHealth, Urgency: authority.UrgencyHigh})
	require.NoError(t, err)
	require.NoError(t, e.ImplementAdaptation(p))

	require.Eventually(t, func() bool {
		return len(sink.statuses()) >= 2
	}, time.Second, 5*time.Millisecond, "completion never reached the sink")

	sts := sink.statuses()
	assert.Equal(t, StatusInProgress, sts[0])
	assert.Equal(t, StatusCompleted, sts[len(sts)-1])
}

func TestViabilityChallenges(t *testing.T) {
	policy := authority.NewLoggingPolicy()
	e := NewEngine(policy, nil, time.Hour)
	defer e.Stop()

	proposals := e.RequestProposalsForViability(ViabilityMetrics{
		Health:        0.3, // high urgency health challenge
		Efficiency:    0.5, // medium urgency efficiency challenge
		InnovationLag: 0.8, // low urgency innovation challenge
	})
	require.Len(t, proposals, 3)

	byType := map[ChallengeType]*Proposal{}
	for _, p := range proposals {
		byType[p.Challenge.Type] = p
	}
	assert.Equal(t, ModelDefensive, byType[ChallengeHealth].ModelType)
	assert.Equal(t, ModelIncremental, byType[ChallengeEfficiency].ModelType)
	assert.Equal(t, ModelTransformational, byType[ChallengeInnovationLag].ModelType)

	healthy := e.RequestProposalsForViability(ViabilityMetrics{Health: 0.9, Efficiency: 0.9, InnovationLag: 0.1})
	assert.Empty(t, healthy)
}

func TestParseTimeline(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"1_week", 7 * 24 * time.Hour},
		{"3_months", 3 * 30 * 24 * time.Hour},
		{"2_days", 48 * time.Hour},
		{"1_quarter", 90 * 24 * time.Hour},
		{"soon", 30 * 24 * time.Hour},
		{"", 30 * 24 * time.Hour},
		{"0_weeks", 30 * 24 * time.Hour},
	}
	for _, tt := range tests {
		if got := ParseTimeline(tt.in); got != tt.want {
			t.Errorf("ParseTimeline(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
