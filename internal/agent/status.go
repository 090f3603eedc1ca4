package agent

import (
	"context"
	"time"

	"github.com/quantlabhq/tradelab/internal/trader"
	"github.com/quantlabhq/tradelab/internal/version"
)

// Status is the HTTP-facing projection of the agent.
type Status struct {
	AgentID        string    `json:"agent_id"`
	Symbol         string    `json:"symbol"`
	State          string    `json:"state"`
	Running        bool      `json:"running"`
	Paused         bool      `json:"paused"`
	InitialCapital float64   `json:"initial_capital"`
	StartedAt      time.Time `json:"started_at,omitempty"`

	CurrentVersion   string `json:"current_version,omitempty"`
	CurrentVersionID string `json:"current_version_id,omitempty"`
	TotalVersions    int    `json:"total_versions"`

	Simulations    int               `json:"simulations"`
	LastSimulation *SimulationResult `json:"last_simulation,omitempty"`

	TraderState string        `json:"trader_state,omitempty"`
	ActiveOrder *trader.Order `json:"active_order,omitempty"`
	Stats       trader.Stats  `json:"stats"`

	ConsecutiveFailures int `json:"consecutive_failures"`
}

// Status assembles the current projection.
func (a *Agent) Status() Status {
	a.mu.Lock()
	tr := a.trader
	status := Status{
		AgentID:             a.id,
		Symbol:              a.symbol,
		State:               a.state,
		Paused:              a.paused,
		InitialCapital:      a.capital,
		StartedAt:           a.startedAt,
		Simulations:         len(a.sims),
		ConsecutiveFailures: a.failures,
	}
	if n := len(a.sims); n > 0 {
		last := a.sims[n-1]
		status.LastSimulation = &last
	}
	a.mu.Unlock()

	status.Running = a.Running()
	status.TotalVersions = a.store.Len()
	if current, ok := a.store.Current(); ok {
		status.CurrentVersion = current.Name
		status.CurrentVersionID = current.ID
	}

	if tr != nil {
		status.TraderState = tr.State()
		status.Stats = tr.CurrentStats()
		if pos, ok := tr.ActivePosition(); ok {
			status.ActiveOrder = &pos
		}
	}
	return status
}

// Simulations returns the newest n results, newest first; n <= 0 means
// all.
func (a *Agent) Simulations(n int) []SimulationResult {
	a.mu.Lock()
	total := len(a.sims)
	a.mu.Unlock()
	if n <= 0 || n > total {
		n = total
	}
	return a.recentSims(n)
}

// Orders returns the active trader's order history, if a simulation has
// started.
func (a *Agent) Orders() []trader.Order {
	a.mu.Lock()
	tr := a.trader
	a.mu.Unlock()
	if tr == nil {
		return nil
	}
	return tr.Orders()
}

// Versions returns the genealogy, oldest first.
func (a *Agent) Versions() []version.Version {
	return a.store.List()
}

// CurrentVersion returns the adopted version, if any.
func (a *Agent) CurrentVersion() (version.Version, bool) {
	return a.store.Current()
}

// CurrentPrice fetches a fresh tick from the agent's price source.
func (a *Agent) CurrentPrice(ctx context.Context) (float64, error) {
	tick, err := a.source.Current(ctx)
	if err != nil {
		return 0, err
	}
	return tick.Price, nil
}
