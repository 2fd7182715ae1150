package variety

import (
	"context"
	"fmt"
	"time"

	"requisite/internal/logging"
)

// =============================================================================
// EMERGENCY PROTOCOLS
// =============================================================================

// Protocol is an emergency response: a trigger threshold and an ordered list
// of idempotent, independently logged actions.
type Protocol struct {
	Name      string
	Threshold float64
	Actions   []string
}

// protocolTable holds the protocol set, highest threshold first.
var protocolTable = []Protocol{
	{Name: "meta_spawn", Threshold: 0.9, Actions: []string{"spawn_meta_system", "redistribute_variety_load"}},
	{Name: "cascade_prevention", Threshold: 0.75, Actions: []string{"redistribute_variety_load", "activate_filters", "isolate_subsystems"}},
	{Name: "emergency_filter", Threshold: 0.7, Actions: []string{"activate_filters", "shed_low_priority_load"}},
	{Name: "controlled_degradation", Threshold: 0.6, Actions: []string{"isolate_subsystems", "reduce_service_scope"}},
}

// SelectProtocol picks the protocol with the highest trigger threshold the
// current risk still satisfies, or nil when risk is below every threshold.
func SelectProtocol(risk float64) *Protocol {
	for i := range protocolTable {
		if risk >= protocolTable[i].Threshold {
			p := protocolTable[i]
			return &p
		}
	}
	return nil
}

// executeProtocol runs every action of the protocol in order. Unknown
// actions are configuration errors: surfaced in the result, logged, and the
// remaining actions still run. Overall success is the AND of all actions.
// Caller holds the lock.
func (m *Monitor) executeProtocol(p *Protocol, report *RiskReport) *ProtocolResult {
	logging.VarietyWarn("executing emergency protocol %s (risk=%.2f)", p.Name, report.ExplosionRisk)

	result := &ProtocolResult{Protocol: p.Name, OverallSuccess: true}
	for _, action := range p.Actions {
		ar := m.executeAction(action, report)
		result.ActionResults = append(result.ActionResults, ar)
		if !ar.Success {
			result.OverallSuccess = false
		}
		if ar.Error != "" {
			logging.VarietyError("protocol action %s failed: %s", action, ar.Error)
		} else {
			logging.VarietyDebug("protocol action %s succeeded", action)
		}
	}
	return result
}

// executeAction dispatches one protocol action. Caller holds the lock;
// authority calls are made asynchronously so the lock is never held across
// external I/O.
func (m *Monitor) executeAction(action string, report *RiskReport) ActionResult {
	switch action {
	case "spawn_meta_system":
		m.requestMetaSystem(report, "emergency protocol meta_spawn")
		return ActionResult{Action: action, Success: true}

	case "redistribute_variety_load":
		if m.resources != nil {
			resources := m.resources
			data := map[string]float64{
				"variety_ratio":  report.VarietyRatio,
				"explosion_risk": report.ExplosionRisk,
			}
			go func() {
				if err := resources.RedistributeVariety(context.Background(), data); err != nil {
					logging.PolicyWarn("variety redistribution failed: %v", err)
				}
			}()
		}
		return ActionResult{Action: action, Success: true}

	case "activate_filters":
		m.filtersActive = true
		return ActionResult{Action: action, Success: true}

	case "isolate_subsystems":
		m.isolationActive = true
		return ActionResult{Action: action, Success: true}

	case "shed_low_priority_load":
		// Shedding drops the retained variety level by the filtered share.
		m.current *= 0.7
		return ActionResult{Action: action, Success: true}

	case "reduce_service_scope":
		m.current *= 0.85
		return ActionResult{Action: action, Success: true}

	default:
		return ActionResult{
			Action:  action,
			Success: false,
			Error:   fmt.Sprintf("%v: %s", ErrUnknownAction, action),
		}
	}
}

// FiltersActive reports whether emergency filtering is engaged.
func (m *Monitor) FiltersActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filtersActive
}

// LastExplosion returns the most recent explosion event, if any.
func (m *Monitor) LastExplosion() (ExplosionEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.explosions) == 0 {
		return ExplosionEvent{}, false
	}
	return m.explosions[len(m.explosions)-1], true
}

// ResetEmergencyState clears filter/isolation flags once risk subsides.
// Exposed for the coordinator's recovery path.
func (m *Monitor) ResetEmergencyState() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.filtersActive || m.isolationActive {
		logging.Variety("emergency state cleared at %s", time.Now().Format(time.RFC3339))
	}
	m.filtersActive = false
	m.isolationActive = false
}
