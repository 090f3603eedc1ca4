package events

import "fmt"

// Typed emit helpers keep message wording and severity conventions in one
// place so the agent, trader and HTTP layers stay consistent.

// EmitAgentStarted records the start of an agent run
func (b *Bus) EmitAgentStarted(agentID, symbol string, capital float64) {
	b.Emit(TypeAgentStarted, SeverityInfo,
		fmt.Sprintf("Agent %s started trading %s", agentID, symbol),
		map[string]interface{}{
			"agent_id":        agentID,
			"symbol":          symbol,
			"initial_capital": capital,
		})
}

// EmitAgentStopped records a cooperative stop
func (b *Bus) EmitAgentStopped(agentID, reason string) {
	b.Emit(TypeAgentStopped, SeverityInfo,
		fmt.Sprintf("Agent %s stopped: %s", agentID, reason),
		map[string]interface{}{
			"agent_id": agentID,
			"reason":   reason,
		})
}

// EmitStateChanged records an agent FSM transition
func (b *Bus) EmitStateChanged(agentID, oldState, newState string) {
	b.Emit(TypeStateChanged, SeverityInfo,
		fmt.Sprintf("State: %s -> %s", oldState, newState),
		map[string]interface{}{
			"agent_id":  agentID,
			"old_state": oldState,
			"new_state": newState,
		})
}

// EmitSimulationStarted records the start of one paper-trading run
func (b *Bus) EmitSimulationStarted(agentID, versionName string, durationSeconds int) {
	b.Emit(TypeSimulationStarted, SeverityInfo,
		fmt.Sprintf("Simulation started (%ds) with %s", durationSeconds, versionName),
		map[string]interface{}{
			"agent_id":         agentID,
			"version":          versionName,
			"duration_seconds": durationSeconds,
		})
}

// EmitSimulationCompleted records a finished run. Severity follows the
// winrate: success at 60 and above, warning at 40 and above, error below.
func (b *Bus) EmitSimulationCompleted(agentID, versionName string, winrate, pnlPercent float64, trades int) {
	severity := SeverityError
	switch {
	case winrate >= 60:
		severity = SeveritySuccess
	case winrate >= 40:
		severity = SeverityWarning
	}

	b.Emit(TypeSimulationCompleted, severity,
		fmt.Sprintf("Simulation completed: %.1f%% winrate, %.2f%% P&L, %d trades", winrate, pnlPercent, trades),
		map[string]interface{}{
			"agent_id":    agentID,
			"version":     versionName,
			"winrate":     winrate,
			"pnl_percent": pnlPercent,
			"trades":      trades,
		})
}

// EmitVersionCreated records a new parameter-set version
func (b *Bus) EmitVersionCreated(agentID, versionName string, changes []string) {
	b.Emit(TypeVersionCreated, SeverityInfo,
		fmt.Sprintf("Version created: %s", versionName),
		map[string]interface{}{
			"agent_id": agentID,
			"version":  versionName,
			"changes":  changes,
		})
}

// EmitVersionActivated records adoption of an existing version
func (b *Bus) EmitVersionActivated(agentID, versionName, reason string) {
	b.Emit(TypeVersionActivated, SeverityInfo,
		fmt.Sprintf("Version activated: %s", versionName),
		map[string]interface{}{
			"agent_id": agentID,
			"version":  versionName,
			"reason":   reason,
		})
}

// EmitOrderCreated records a simulated position open
func (b *Bus) EmitOrderCreated(agentID string, price, quantity float64, reason string) {
	b.Emit(TypeOrderCreated, SeverityInfo,
		fmt.Sprintf("BUY %.6f @ %.2f (%s)", quantity, price, reason),
		map[string]interface{}{
			"agent_id": agentID,
			"price":    price,
			"quantity": quantity,
			"reason":   reason,
		})
}

// EmitOrderClosed records a realised round-trip. Severity follows the
// P&L sign.
func (b *Bus) EmitOrderClosed(agentID string, pnl, pnlPercent float64, reason string) {
	severity := SeveritySuccess
	if pnl < 0 {
		severity = SeverityError
	}

	b.Emit(TypeOrderClosed, severity,
		fmt.Sprintf("Closed: %.4f P&L (%.2f%%) via %s", pnl, pnlPercent, reason),
		map[string]interface{}{
			"agent_id":    agentID,
			"pnl":         pnl,
			"pnl_percent": pnlPercent,
			"reason":      reason,
		})
}

// EmitBrainDecision records an advisor reply or fallback
func (b *Bus) EmitBrainDecision(agentID, decision, reasoning string, confidence float64) {
	b.Emit(TypeBrainDecision, SeverityInfo,
		fmt.Sprintf("Brain decision: %s (%.0f%% confidence)", decision, confidence*100),
		map[string]interface{}{
			"agent_id":   agentID,
			"decision":   decision,
			"reasoning":  reasoning,
			"confidence": confidence,
		})
}

// EmitOptimizationStarted records the beginning of a parameter search
func (b *Bus) EmitOptimizationStarted(agentID, versionName string) {
	b.Emit(TypeOptimizationStarted, SeverityInfo,
		fmt.Sprintf("Optimizing parameters from %s", versionName),
		map[string]interface{}{
			"agent_id": agentID,
			"version":  versionName,
		})
}

// EmitOptimizationCompleted records the outcome of a parameter search
func (b *Bus) EmitOptimizationCompleted(agentID, newVersionName string, changes []string) {
	b.Emit(TypeOptimizationCompleted, SeveritySuccess,
		fmt.Sprintf("Optimization produced %s", newVersionName),
		map[string]interface{}{
			"agent_id": agentID,
			"version":  newVersionName,
			"changes":  changes,
		})
}

// EmitError records a recoverable agent error
func (b *Bus) EmitError(agentID, message string) {
	b.Emit(TypeError, SeverityError, message,
		map[string]interface{}{
			"agent_id": agentID,
		})
}

// EmitInfo records an informational message
func (b *Bus) EmitInfo(agentID, message string) {
	b.Emit(TypeInfo, SeverityInfo, message,
		map[string]interface{}{
			"agent_id": agentID,
		})
}
