package trader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantlabhq/tradelab/internal/events"
	"github.com/quantlabhq/tradelab/internal/indicators"
	"github.com/quantlabhq/tradelab/internal/market"
	"github.com/quantlabhq/tradelab/internal/metrics"
	"github.com/quantlabhq/tradelab/internal/strategy"
)

// Trader states.
const (
	StateIdle    = "idle"
	StateRunning = "running"
	StateClosing = "closing"
	StateDone    = "done"
)

// Params configures one simulation run.
type Params struct {
	AgentID      string
	Source       market.Source
	Bus          *events.Bus
	Config       strategy.GraphConfig
	Capital      float64
	TickInterval time.Duration
	Duration     time.Duration
	Logger       zerolog.Logger
}

// Trader executes a single bounded paper-trading run. It is owned by
// one goroutine; the read accessors take a lock so HTTP projections can
// observe a run in progress.
type Trader struct {
	agentID      string
	source       market.Source
	bus          *events.Bus
	cfg          strategy.GraphConfig
	tickInterval time.Duration
	duration     time.Duration
	log          zerolog.Logger

	mu             sync.Mutex
	state          string
	capital        float64
	initialCapital float64
	peakCapital    float64
	maxDrawdown    float64
	position       *Order
	orders         []Order
	stats          Stats

	window        *indicators.PriceWindow
	lastTick      market.Tick
	lastTickAt    time.Time
	lastTradeTime time.Time
	lastLossTime  time.Time
	startedAt     time.Time

	// Clock hook, overridden in tests
	now func() time.Time
}

// New creates a trader for one run.
func New(p Params) *Trader {
	if p.TickInterval <= 0 {
		p.TickInterval = 2 * time.Second
	}
	if p.Duration <= 0 {
		p.Duration = 30 * time.Second
	}

	return &Trader{
		agentID:        p.AgentID,
		source:         p.Source,
		bus:            p.Bus,
		cfg:            p.Config,
		tickInterval:   p.TickInterval,
		duration:       p.Duration,
		log:            p.Logger.With().Str("component", "trader").Logger(),
		state:          StateIdle,
		capital:        p.Capital,
		initialCapital: p.Capital,
		peakCapital:    p.Capital,
		window:         indicators.NewPriceWindow(),
		now:            time.Now,
	}
}

// Run executes the tick loop until the duration elapses or the context
// is cancelled. A cancelled run still closes its position and returns a
// report alongside the context error; a structural error marks the
// report failed.
func (t *Trader) Run(ctx context.Context) (*Report, error) {
	t.setState(StateRunning)
	t.startedAt = t.now()
	deadline := t.startedAt.Add(t.duration)

	t.log.Info().
		Str("strategy", t.cfg.StrategyType).
		Float64("capital", t.capital).
		Dur("duration", t.duration).
		Msg("Simulation starting")

	ticker := time.NewTicker(t.tickInterval)
	defer ticker.Stop()

	for {
		if err := t.step(ctx); err != nil {
			report := t.finish(ReasonAgentStopped)
			report.Failed = true
			report.Error = err.Error()
			return report, err
		}

		if !t.now().Before(deadline) {
			return t.finish(ReasonSimulationEnd), nil
		}

		select {
		case <-ctx.Done():
			return t.finish(ReasonAgentStopped), ctx.Err()
		case <-ticker.C:
		}
	}
}

// step processes one tick. Fetch failures and stale timestamps skip
// the tick; a non-positive price is a structural error and aborts.
func (t *Trader) step(ctx context.Context) error {
	tick, err := t.source.Current(ctx)
	if err != nil {
		t.mu.Lock()
		t.stats.TicksSkipped++
		t.mu.Unlock()
		t.log.Debug().Err(err).Msg("Tick skipped, fetch failed")
		return nil
	}

	if tick.Price <= 0 {
		return fmt.Errorf("invalid tick price %.4f for %s", tick.Price, tick.Symbol)
	}

	// Out-of-order or duplicate feed timestamps are ignored
	if !t.lastTickAt.IsZero() && !tick.Timestamp.After(t.lastTickAt) {
		t.mu.Lock()
		t.stats.TicksSkipped++
		t.mu.Unlock()
		return nil
	}
	t.lastTickAt = tick.Timestamp
	t.lastTick = tick
	metrics.RecordTick(tick.Symbol)

	t.mu.Lock()
	t.stats.TicksProcessed++
	if t.stats.PriceStart == 0 {
		t.stats.PriceStart = tick.Price
		t.stats.PriceHigh = tick.Price
		t.stats.PriceLow = tick.Price
	}
	t.stats.PriceEnd = tick.Price
	if tick.Price > t.stats.PriceHigh {
		t.stats.PriceHigh = tick.Price
	}
	if tick.Price < t.stats.PriceLow {
		t.stats.PriceLow = tick.Price
	}
	t.mu.Unlock()

	t.window.Append(tick.Price)
	snap := indicators.Compute(t.window.Prices(), t.cfg)

	now := t.now()
	sig := Evaluate(snap, t.position, now, t.cfg, t.lastTradeTime, t.lastLossTime)
	if sig.Action != ActionHold {
		t.mu.Lock()
		t.stats.SignalsGenerated++
		t.mu.Unlock()
	}

	switch {
	case sig.Action == ActionBuy && t.position == nil:
		t.open(tick, sig, now)
	case sig.Action == ActionSell && t.position != nil:
		reason := ReasonSignal
		if sig.Reason == ReasonTimeExit {
			reason = ReasonTimeExit
		}
		t.closePosition(bidPrice(tick), now, reason)
	}

	t.monitor(tick, now)
	return nil
}

// monitor trails the stop and enforces stop-loss / take-profit on an
// open position.
func (t *Trader) monitor(tick market.Tick, now time.Time) {
	if t.position == nil {
		return
	}

	price := tick.Price
	t.mu.Lock()
	if price > t.position.HighestPrice {
		t.position.HighestPrice = price
	}
	if trail := price * (1 - t.cfg.TrailingStopPct/100); trail > t.position.StopLoss {
		t.position.StopLoss = trail
	}
	stop, take := t.position.StopLoss, t.position.TakeProfit
	t.mu.Unlock()

	switch {
	case price <= stop:
		t.closePosition(bidPrice(tick), now, ReasonStopLoss)
	case price >= take:
		t.closePosition(bidPrice(tick), now, ReasonTakeProfit)
	}
}

// open enters at the bid side, same as exits: the simulation models the
// sell-side price throughout rather than paying the spread.
func (t *Trader) open(tick market.Tick, sig Signal, now time.Time) {
	price := bidPrice(tick)

	t.mu.Lock()
	quantity := t.cfg.PositionSizePct / 100 * t.capital / price
	stopPct, takePct := t.cfg.EntryStops()
	t.position = newOrder(tick.Symbol, price, quantity, stopPct, takePct, now, sig.Reason)
	t.mu.Unlock()

	t.log.Info().
		Float64("price", price).
		Float64("quantity", quantity).
		Float64("score", sig.Score).
		Str("reason", sig.Reason).
		Msg("Position opened")

	if t.bus != nil {
		t.bus.EmitOrderCreated(t.agentID, price, quantity, sig.Reason)
	}
	metrics.RecordTradeOpened(t.cfg.StrategyType)
}

func (t *Trader) closePosition(price float64, at time.Time, reason string) {
	t.mu.Lock()
	pos := t.position
	if pos == nil {
		t.mu.Unlock()
		return
	}
	if price <= 0 {
		price = pos.EntryPrice
	}

	pos.close(price, at, reason)
	t.capital += pos.PnL
	if t.capital > t.peakCapital {
		t.peakCapital = t.capital
	}
	if t.peakCapital > 0 {
		if dd := (t.peakCapital - t.capital) / t.peakCapital * 100; dd > t.maxDrawdown {
			t.maxDrawdown = dd
		}
	}

	t.stats.Trades++
	if pos.PnL > 0 {
		t.stats.Winners++
	} else {
		t.stats.Losers++
	}
	t.stats.TotalPnL += pos.PnL
	if t.stats.Trades == 1 || pos.PnL > t.stats.BestTrade {
		t.stats.BestTrade = pos.PnL
	}
	if t.stats.Trades == 1 || pos.PnL < t.stats.WorstTrade {
		t.stats.WorstTrade = pos.PnL
	}

	t.lastTradeTime = at
	if pos.PnL < 0 {
		t.lastLossTime = at
	}

	t.orders = append(t.orders, *pos)
	t.position = nil
	closed := *pos
	t.mu.Unlock()

	t.log.Info().
		Float64("pnl", closed.PnL).
		Float64("pnl_pct", closed.PnLPercent).
		Str("reason", reason).
		Msg("Position closed")

	if t.bus != nil {
		t.bus.EmitOrderClosed(t.agentID, closed.PnL, closed.PnLPercent, reason)
	}
	metrics.RecordTradeClosed(reason, closed.PnLPercent)
}

// finish closes any open position and assembles the report.
func (t *Trader) finish(reason string) *Report {
	t.setState(StateClosing)

	if t.position != nil {
		t.closePosition(bidPrice(t.lastTick), t.now(), reason)
	}

	report := t.buildReport()
	t.setState(StateDone)

	metrics.RecordSimulation(report.Stats.WinRate, report.Stats.PnLPercent)
	t.log.Info().
		Int("trades", report.Stats.Trades).
		Float64("win_rate", report.Stats.WinRate).
		Float64("pnl_pct", report.Stats.PnLPercent).
		Msg("Simulation finished")
	return report
}

func (t *Trader) setState(state string) {
	t.mu.Lock()
	t.state = state
	t.mu.Unlock()
}

// State returns the trader's lifecycle state.
func (t *Trader) State() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Orders returns the closed round-trips so far plus the open position,
// if any.
func (t *Trader) Orders() []Order {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Order, len(t.orders), len(t.orders)+1)
	copy(out, t.orders)
	if t.position != nil {
		out = append(out, *t.position)
	}
	return out
}

// ActivePosition returns a copy of the open position, if any.
func (t *Trader) ActivePosition() (Order, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.position == nil {
		return Order{}, false
	}
	return *t.position, true
}

// CurrentStats returns a snapshot of the running statistics.
func (t *Trader) CurrentStats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statsLocked()
}

// Prices returns the accumulated price window. Only valid once the run
// has finished; the window is not guarded against a concurrent step.
func (t *Trader) Prices() []float64 {
	return t.window.Prices()
}

// bidPrice picks the sell side of a tick, falling back to spot.
func bidPrice(tick market.Tick) float64 {
	if tick.Sell > 0 {
		return tick.Sell
	}
	return tick.Price
}
