package trader

import (
	"time"

	"github.com/quantlabhq/tradelab/internal/strategy"
)

// Stats is the running statistics block for one simulation. WinRate
// and the P&L / drawdown figures are percentages.
type Stats struct {
	Trades           int     `json:"trades"`
	Winners          int     `json:"winners"`
	Losers           int     `json:"losers"`
	WinRate          float64 `json:"win_rate"`
	TotalPnL         float64 `json:"total_pnl"`
	PnLPercent       float64 `json:"pnl_percent"`
	BestTrade        float64 `json:"best_trade"`
	WorstTrade       float64 `json:"worst_trade"`
	SignalsGenerated int     `json:"signals_generated"`

	InitialCapital     float64 `json:"initial_capital"`
	CurrentCapital     float64 `json:"current_capital"`
	PeakCapital        float64 `json:"peak_capital"`
	CurrentDrawdownPct float64 `json:"current_drawdown_pct"`
	MaxDrawdownPct     float64 `json:"max_drawdown_pct"`

	PriceStart float64 `json:"price_start"`
	PriceEnd   float64 `json:"price_end"`
	PriceHigh  float64 `json:"price_high"`
	PriceLow   float64 `json:"price_low"`

	TicksProcessed int `json:"ticks_processed"`
	TicksSkipped   int `json:"ticks_skipped"`
}

// Report is the full outcome of one simulation run.
type Report struct {
	AgentID         string                    `json:"agent_id"`
	Symbol          string                    `json:"symbol"`
	StrategyType    string                    `json:"strategy_type"`
	StartedAt       time.Time                 `json:"started_at"`
	EndedAt         time.Time                 `json:"ended_at"`
	InitialCapital  float64                   `json:"initial_capital"`
	FinalCapital    float64                   `json:"final_capital"`
	Stats           Stats                     `json:"stats"`
	BuyHoldPnLPct   float64                   `json:"buy_hold_pnl_pct"`
	Orders          []Order                   `json:"orders"`
	Recommendations []strategy.Recommendation `json:"recommendations,omitempty"`
	Failed          bool                      `json:"failed"`
	Error           string                    `json:"error,omitempty"`
}

// statsLocked finalises the derived figures; the caller holds t.mu.
func (t *Trader) statsLocked() Stats {
	s := t.stats
	if s.Trades > 0 {
		s.WinRate = float64(s.Winners) / float64(s.Trades) * 100
	}
	if t.initialCapital > 0 {
		s.PnLPercent = (t.capital - t.initialCapital) / t.initialCapital * 100
	}
	s.InitialCapital = t.initialCapital
	s.CurrentCapital = t.capital
	s.PeakCapital = t.peakCapital
	if t.peakCapital > 0 {
		s.CurrentDrawdownPct = (t.peakCapital - t.capital) / t.peakCapital * 100
	}
	s.MaxDrawdownPct = t.maxDrawdown
	return s
}

func (t *Trader) buildReport() *Report {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := t.statsLocked()

	var buyHold float64
	if stats.PriceStart > 0 {
		buyHold = (stats.PriceEnd - stats.PriceStart) / stats.PriceStart * 100
	}

	orders := make([]Order, len(t.orders))
	copy(orders, t.orders)

	var winRate float64
	if stats.Trades > 0 {
		winRate = float64(stats.Winners) / float64(stats.Trades)
	}

	return &Report{
		AgentID:        t.agentID,
		Symbol:         t.source.Symbol(),
		StrategyType:   t.cfg.StrategyType,
		StartedAt:      t.startedAt,
		EndedAt:        t.now(),
		InitialCapital: t.initialCapital,
		FinalCapital:   t.capital,
		Stats:          stats,
		BuyHoldPnLPct:  buyHold,
		Orders:         orders,
		Recommendations: strategy.Recommend(t.cfg, strategy.RunSummary{
			Trades:         stats.Trades,
			WinRate:        winRate,
			PnLPct:         stats.PnLPercent,
			MaxDrawdownPct: stats.MaxDrawdownPct,
			BuyHoldPnLPct:  buyHold,
		}),
	}
}
