package events

import "time"

// Type identifies the kind of event published on the bus
type Type string

const (
	TypeAgentStarted          Type = "agent_started"
	TypeAgentStopped          Type = "agent_stopped"
	TypeStateChanged          Type = "state_changed"
	TypeSimulationStarted     Type = "simulation_started"
	TypeSimulationCompleted   Type = "simulation_completed"
	TypeVersionCreated        Type = "version_created"
	TypeVersionActivated      Type = "version_activated"
	TypeOrderCreated          Type = "order_created"
	TypeOrderClosed           Type = "order_closed"
	TypeBrainDecision         Type = "brain_decision"
	TypeOptimizationStarted   Type = "optimization_started"
	TypeOptimizationCompleted Type = "optimization_completed"
	TypeError                 Type = "error"
	TypeInfo                  Type = "info"
)

// Severity classifies an event for UI display
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
)

// Event is one entry in the bounded ring
type Event struct {
	ID        uint64                 `json:"id"`
	Type      Type                   `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Severity  Severity               `json:"severity"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Stats summarizes the current ring contents
type Stats struct {
	Total      int              `json:"total"`
	ByType     map[Type]int     `json:"by_type"`
	BySeverity map[Severity]int `json:"by_severity"`
	Oldest     *time.Time       `json:"oldest,omitempty"`
	Newest     *time.Time       `json:"newest,omitempty"`
}

// Listener receives every event as it is emitted. Listeners run on the
// emitter's goroutine and must not block or perform I/O.
type Listener func(Event)
