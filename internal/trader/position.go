// Package trader runs paper-trading simulations: one bounded tick loop
// per run, evaluating signals against live prices and tracking
// simulated capital without touching an exchange order path.
package trader

import (
	"time"

	"github.com/google/uuid"
)

// Order statuses.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Close reasons.
const (
	ReasonSignal        = "signal"
	ReasonTimeExit      = "time_exit"
	ReasonStopLoss      = "stop_loss"
	ReasonTakeProfit    = "take_profit"
	ReasonSimulationEnd = "simulation_end"
	ReasonAgentStopped  = "agent_stopped"
)

// Order is one simulated round-trip. While open, exit fields are zero
// and Status is "open".
type Order struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	EntryPrice float64   `json:"entry_price"`
	Quantity   float64   `json:"quantity"`
	EntryTime  time.Time `json:"entry_time"`

	StopLoss     float64 `json:"stop_loss"`
	TakeProfit   float64 `json:"take_profit"`
	HighestPrice float64 `json:"highest_price"`

	ExitPrice   float64   `json:"exit_price,omitempty"`
	ExitTime    time.Time `json:"exit_time,omitempty"`
	PnL         float64   `json:"pnl"`
	PnLPercent  float64   `json:"pnl_percent"`
	CloseReason string    `json:"close_reason,omitempty"`
	EntryReason string    `json:"entry_reason,omitempty"`

	Status string `json:"status"`
}

// newOrder opens a position at the given price.
func newOrder(symbol string, price, quantity float64, stopPct, takePct float64, entryTime time.Time, reason string) *Order {
	return &Order{
		ID:           uuid.New().String()[:8],
		Symbol:       symbol,
		EntryPrice:   price,
		Quantity:     quantity,
		EntryTime:    entryTime,
		StopLoss:     price * (1 - stopPct/100),
		TakeProfit:   price * (1 + takePct/100),
		HighestPrice: price,
		EntryReason:  reason,
		Status:       StatusOpen,
	}
}

// close realises the position at the exit price.
func (o *Order) close(price float64, at time.Time, reason string) {
	o.ExitPrice = price
	o.ExitTime = at
	o.PnL = (price - o.EntryPrice) * o.Quantity
	if o.EntryPrice != 0 {
		o.PnLPercent = (price - o.EntryPrice) / o.EntryPrice * 100
	}
	o.CloseReason = reason
	o.Status = StatusClosed
}

// unrealizedPct is the open P&L relative to entry, in percent.
func (o *Order) unrealizedPct(price float64) float64 {
	if o.EntryPrice == 0 {
		return 0
	}
	return (price - o.EntryPrice) / o.EntryPrice * 100
}
