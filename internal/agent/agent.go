// Package agent runs the autonomous improvement loop: simulate the
// current strategy version, evaluate the outcome, then optimise the
// parameters or fall back to a proven historical version.
package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quantlabhq/tradelab/internal/advisor"
	"github.com/quantlabhq/tradelab/internal/config"
	"github.com/quantlabhq/tradelab/internal/events"
	"github.com/quantlabhq/tradelab/internal/indicators"
	"github.com/quantlabhq/tradelab/internal/learning"
	"github.com/quantlabhq/tradelab/internal/market"
	"github.com/quantlabhq/tradelab/internal/metrics"
	"github.com/quantlabhq/tradelab/internal/strategy"
	"github.com/quantlabhq/tradelab/internal/trader"
	"github.com/quantlabhq/tradelab/internal/version"
)

// Agent states.
const (
	StateIdle             = "IDLE"
	StateRunningInitial   = "RUNNING_INITIAL"
	StateRunningShort     = "RUNNING_SHORT"
	StateEvaluating       = "EVALUATING"
	StateOptimizing       = "OPTIMIZING"
	StateSearchingHistory = "SEARCHING_HISTORY"
	StateLiveTrading      = "LIVE_TRADING"
	StatePaused           = "PAUSED"
	StateError            = "ERROR"
)

const (
	maxBackoff      = 300 * time.Second
	maxFailures     = 5
	simHistoryLimit = 100
	pausePoll       = 200 * time.Millisecond
)

// SimulationResult summarises one completed paper-trading run.
type SimulationResult struct {
	VersionID       string                      `json:"version_id"`
	VersionName     string                      `json:"version_name"`
	DurationSeconds int                         `json:"duration_seconds"`
	Trades          int                         `json:"trades"`
	WinRate         float64                     `json:"win_rate"`
	PnLPercent      float64                     `json:"pnl_percent"`
	MaxDrawdownPct  float64                     `json:"max_drawdown_pct"`
	BuyHoldPnLPct   float64                     `json:"buy_hold_pnl_pct"`
	Score           float64                     `json:"score"`
	Conditions      indicators.MarketConditions `json:"conditions"`
	Recommendations []strategy.Recommendation   `json:"recommendations,omitempty"`
	CompletedAt     time.Time                   `json:"completed_at"`
	Failed          bool                        `json:"failed,omitempty"`
}

// Deps bundles what an agent needs. Sink may be nil (no durable
// snapshots); Presets defaults to the built-in preset sheet.
type Deps struct {
	Config   *config.Config
	Source   market.Source
	Bus      *events.Bus
	Advisor  *advisor.Client
	Store    *version.Store
	Sink     *version.Sink
	Recorder *learning.Recorder
	Presets  func(name string) strategy.GraphConfig
	Logger   zerolog.Logger
}

// Agent owns one symbol's improvement loop. The loop goroutine is the
// single writer of the version store; HTTP reads go through Status and
// the read accessors.
type Agent struct {
	id      string
	symbol  string
	capital float64

	cfg      *config.Config
	source   market.Source
	bus      *events.Bus
	advisor  *advisor.Client
	store    *version.Store
	sink     *version.Sink
	recorder *learning.Recorder
	presets  func(name string) strategy.GraphConfig
	log      zerolog.Logger

	mu        sync.Mutex
	state     string
	paused    bool
	trader    *trader.Trader
	sims      []SimulationResult
	failures  int
	startedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}

	// Test hooks
	secondsScale time.Duration
	backoffBase  time.Duration
}

// New creates an agent for one symbol.
func New(symbol string, capital float64, d Deps) *Agent {
	if d.Presets == nil {
		d.Presets = strategy.Preset
	}
	if d.Recorder == nil {
		d.Recorder = learning.NewRecorder(0)
	}

	id := uuid.New().String()[:8]
	return &Agent{
		id:           id,
		symbol:       symbol,
		capital:      capital,
		cfg:          d.Config,
		source:       d.Source,
		bus:          d.Bus,
		advisor:      d.Advisor,
		store:        d.Store,
		sink:         d.Sink,
		recorder:     d.Recorder,
		presets:      d.Presets,
		log:          d.Logger.With().Str("component", "agent").Str("agent_id", id).Logger(),
		state:        StateIdle,
		secondsScale: time.Second,
		backoffBase:  10 * time.Second,
	}
}

// ID returns the agent's identifier.
func (a *Agent) ID() string { return a.id }

// Symbol returns the traded pair.
func (a *Agent) Symbol() string { return a.symbol }

// Start restores persisted versions, bootstraps the genealogy if it is
// empty and launches the loop goroutine.
func (a *Agent) Start(ctx context.Context) error {
	if err := a.bootstrap(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.done = make(chan struct{})
	a.mu.Lock()
	a.startedAt = time.Now()
	a.mu.Unlock()

	a.bus.EmitAgentStarted(a.id, a.symbol, a.capital)
	a.log.Info().Str("symbol", a.symbol).Float64("capital", a.capital).Msg("Agent started")

	go a.run(runCtx)
	return nil
}

// Stop cancels the loop and waits for it to drain. Safe to call more
// than once.
func (a *Agent) Stop() {
	if a.cancel == nil {
		return
	}
	a.cancel()
	<-a.done
}

// Running reports whether the loop goroutine is alive.
func (a *Agent) Running() bool {
	if a.done == nil {
		return false
	}
	select {
	case <-a.done:
		return false
	default:
		return true
	}
}

// Pause freezes the loop between cycles without discarding state.
func (a *Agent) Pause() {
	a.mu.Lock()
	a.paused = true
	a.mu.Unlock()
}

// Resume releases a paused loop.
func (a *Agent) Resume() {
	a.mu.Lock()
	a.paused = false
	a.mu.Unlock()
}

func (a *Agent) isPaused() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.paused
}

// bootstrap loads persisted versions and guarantees a current one.
func (a *Agent) bootstrap(ctx context.Context) error {
	if a.sink != nil {
		loaded, err := a.sink.Load(ctx, a.symbol)
		if err != nil {
			a.log.Warn().Err(err).Msg("Could not restore persisted versions")
		}
		restored := 0
		for _, v := range loaded {
			if a.store.Restore(v) {
				restored++
			}
		}
		if restored > 0 {
			a.log.Info().Int("versions", restored).Msg("Restored persisted versions")
		}
	}

	if _, ok := a.store.Current(); ok {
		return nil
	}

	base := a.presets(strategy.TypeScalping)
	if err := base.Validate(); err != nil {
		return fmt.Errorf("invalid baseline strategy: %w", err)
	}
	v := a.store.Create(base, "", "v1_initial", nil)
	if err := a.store.Adopt(v.ID); err != nil {
		return err
	}
	a.persist(v.ID)
	a.log.Info().Str("version", v.Name).Msg("Created initial version")
	return nil
}

func (a *Agent) run(ctx context.Context) {
	defer close(a.done)

	for {
		if ctx.Err() != nil {
			break
		}
		a.waitWhilePaused(ctx)
		if ctx.Err() != nil {
			break
		}

		err := a.cycle(ctx)
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			a.recordFailure(ctx, err)
			continue
		}

		a.mu.Lock()
		a.failures = 0
		a.mu.Unlock()
		sleepCtx(ctx, time.Duration(a.cfg.Agent.CyclePause)*a.secondsScale)
	}

	a.setState(StateIdle)
	a.bus.EmitAgentStopped(a.id, "stop requested")
	a.log.Info().Msg("Agent stopped")
}

func (a *Agent) waitWhilePaused(ctx context.Context) {
	for a.isPaused() && ctx.Err() == nil {
		a.setState(StatePaused)
		sleepCtx(ctx, pausePoll)
	}
}

// cycle is one full pass: initial simulation, evaluation, then the
// chosen follow-up.
func (a *Agent) cycle(ctx context.Context) error {
	a.setState(StateRunningInitial)
	initial, err := a.simulate(ctx, a.cfg.Agent.InitialSimDuration)
	if err != nil || ctx.Err() != nil {
		return err
	}

	a.setState(StateEvaluating)
	action := a.evaluate(ctx, initial)

	switch action {
	case advisor.ActionRunShortSim:
		return a.validate(ctx, initial)
	case advisor.ActionOptimize:
		return a.optimize(ctx, initial)
	default:
		return a.searchHistory(ctx, initial)
	}
}

// validate runs the longer confirmation simulation. Holding the win
// rate marks the version ready for live trading; slipping sends it back
// to the optimiser.
func (a *Agent) validate(ctx context.Context, initial *SimulationResult) error {
	a.setState(StateRunningShort)
	short, err := a.simulate(ctx, a.cfg.Agent.ShortSimDuration)
	if err != nil || ctx.Err() != nil {
		return err
	}

	if short.WinRate >= initial.WinRate {
		if current, ok := a.store.Current(); ok {
			if err := a.store.MarkProduction(current.ID); err == nil {
				a.persist(current.ID)
			}
			a.bus.EmitInfo(a.id, fmt.Sprintf("Version %s validated for live trading", current.Name))
		}
		// Live trading is a placeholder state; orders stay on paper.
		a.setState(StateLiveTrading)
		return nil
	}
	return a.optimize(ctx, short)
}

// simulate runs one bounded paper-trading session against the current
// version and annotates the outcome.
func (a *Agent) simulate(ctx context.Context, durationSeconds int) (*SimulationResult, error) {
	current, ok := a.store.Current()
	if !ok {
		return nil, errors.New("no current version to simulate")
	}

	cfg := current.Config
	cfg.PositionSizePct = positionSizeForScore(current.Score)

	a.bus.EmitSimulationStarted(a.id, current.Name, durationSeconds)

	tr := trader.New(trader.Params{
		AgentID:      a.id,
		Source:       a.source,
		Bus:          a.bus,
		Config:       cfg,
		Capital:      a.capital,
		TickInterval: a.cfg.Agent.GetTickInterval(),
		Duration:     time.Duration(durationSeconds) * a.secondsScale,
		Logger:       a.log,
	})
	a.mu.Lock()
	a.trader = tr
	a.mu.Unlock()

	report, runErr := tr.Run(ctx)
	if runErr != nil && ctx.Err() != nil {
		// Cancelled mid-run; the trader already closed its position.
		return nil, nil
	}

	result := buildResult(current, cfg, report, tr.Prices(), durationSeconds)

	if err := a.store.Annotate(current.ID, result.Score, result.WinRate, result.Conditions); err == nil {
		a.persist(current.ID)
	}
	a.bus.EmitSimulationCompleted(a.id, current.Name, result.WinRate, result.PnLPercent, result.Trades)
	a.appendSim(result)

	if report.Failed {
		return result, fmt.Errorf("simulation failed: %s", report.Error)
	}
	return result, nil
}

// evaluate asks the advisor what to do with a simulation outcome and
// falls back to score thresholds when the reply carries no usable
// action.
func (a *Agent) evaluate(ctx context.Context, result *SimulationResult) string {
	current, _ := a.store.Current()
	resp := a.advisor.Think(ctx, advisor.NodeEvaluateSimulation, map[string]interface{}{
		"result":         result,
		"score":          result.Score,
		"current_config": current.Config,
		"conditions":     result.Conditions,
	})

	action := resp.NextAction()
	switch action {
	case advisor.ActionRunShortSim, advisor.ActionOptimize, advisor.ActionSearchHistory:
	default:
		switch {
		case result.Score >= a.cfg.Agent.HighScoreThreshold:
			action = advisor.ActionRunShortSim
		case result.Score >= a.cfg.Agent.MediumScoreThreshold:
			action = advisor.ActionOptimize
		default:
			action = advisor.ActionSearchHistory
		}
	}

	a.bus.EmitBrainDecision(a.id, action, resp.Reasoning, resp.Confidence)
	return action
}

// optimize derives a new parameter set, creates a child version and
// adopts it. With no advisor suggestions the paper trader's own
// recommendations are overlaid instead.
func (a *Agent) optimize(ctx context.Context, result *SimulationResult) error {
	a.setState(StateOptimizing)

	current, ok := a.store.Current()
	if !ok {
		return errors.New("no current version to optimize")
	}
	a.bus.EmitOptimizationStarted(a.id, current.Name)

	resp := a.advisor.Think(ctx, advisor.NodeOptimizeParameters, map[string]interface{}{
		"recent_results": a.recentSims(5),
		"current_config": current.Config,
		"patterns":       a.patterns(10),
	})

	params := resp.Parameters()
	if len(params) == 0 {
		params = strategy.Params(result.Recommendations)
	}
	if len(params) == 0 {
		a.bus.EmitInfo(a.id, "No parameter changes suggested, keeping current version")
		return nil
	}

	next, unknown := current.Config.Overlay(params)
	for _, name := range unknown {
		a.log.Warn().Str("param", name).Msg("Ignoring unknown parameter suggestion")
	}

	changes := formatChanges(params)
	name := fmt.Sprintf("v%d_brain_optimized", a.store.Len()+1)
	v := a.store.Create(next, current.ID, name, changes)
	if err := a.store.Adopt(v.ID); err != nil {
		return err
	}
	a.persist(v.ID)

	a.bus.EmitVersionCreated(a.id, v.Name, changes)
	a.bus.EmitOptimizationCompleted(a.id, v.Name, changes)
	a.log.Info().Str("version", v.Name).Strs("changes", changes).Msg("Adopted optimized version")

	a.recorder.Add(learning.Sample{
		NodeID:           string(advisor.NodeOptimizeParameters),
		Parameters:       params,
		MarketConditions: result.Conditions,
		Result:           result.PnLPercent,
		Timestamp:        time.Now(),
	})
	return nil
}

// searchHistory adopts a proven version matching the current market.
// Advisor pick first, then the store's similarity ranking, then a plain
// optimisation when the genealogy has nothing to offer.
func (a *Agent) searchHistory(ctx context.Context, result *SimulationResult) error {
	a.setState(StateSearchingHistory)

	resp := a.advisor.Think(ctx, advisor.NodeSearchHistory, map[string]interface{}{
		"conditions": result.Conditions,
		"versions":   a.versionSummaries(),
	})

	if id, _ := resp.Content["best_version_id"].(string); id != "" {
		if v, ok := a.store.Get(id); ok {
			if err := a.store.Adopt(id); err == nil {
				a.bus.EmitVersionActivated(a.id, v.Name, "advisor history match")
				return nil
			}
		}
	}

	if best, ok := a.store.FindBestFor(result.Conditions); ok {
		if err := a.store.Adopt(best.ID); err == nil {
			a.bus.EmitVersionActivated(a.id, best.Name, "market similarity match")
			return nil
		}
	}
	return a.optimize(ctx, result)
}

// recordFailure applies the exponential backoff. The counter resets
// after a clean cycle and after five consecutive failures; the agent
// never terminates itself.
func (a *Agent) recordFailure(ctx context.Context, err error) {
	a.mu.Lock()
	a.failures++
	attempt := a.failures
	if a.failures >= maxFailures {
		a.failures = 0
	}
	a.mu.Unlock()

	a.setState(StateError)
	a.bus.EmitError(a.id, fmt.Sprintf("cycle failed: %v", err))
	a.log.Error().Err(err).Int("consecutive", attempt).Msg("Cycle failed")

	analysis := a.advisor.Think(ctx, advisor.NodeAnalyzeFailure, map[string]interface{}{
		"failure": err.Error(),
	})
	if analysis.Reasoning != "" {
		a.bus.EmitBrainDecision(a.id, "analyze_failure", analysis.Reasoning, analysis.Confidence)
	}

	backoff := a.backoffBase * (1 << uint(attempt-1))
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	sleepCtx(ctx, backoff)
}

func (a *Agent) persist(id string) {
	if a.sink == nil {
		return
	}
	if v, ok := a.store.Get(id); ok {
		a.sink.UpsertAsync(a.symbol, v)
	}
}

func (a *Agent) setState(newState string) {
	a.mu.Lock()
	old := a.state
	a.state = newState
	a.mu.Unlock()
	if old == newState {
		return
	}
	metrics.SetAgentState(newState)
	a.bus.EmitStateChanged(a.id, old, newState)
}

func (a *Agent) appendSim(result *SimulationResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.sims) == simHistoryLimit {
		a.sims = append(a.sims[:0], a.sims[1:]...)
		a.sims = a.sims[:simHistoryLimit-1]
	}
	a.sims = append(a.sims, *result)
}

// recentSims returns the newest n simulation results, newest first.
func (a *Agent) recentSims(n int) []SimulationResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n > len(a.sims) {
		n = len(a.sims)
	}
	out := make([]SimulationResult, 0, n)
	for i := len(a.sims) - 1; i >= len(a.sims)-n; i-- {
		out = append(out, a.sims[i])
	}
	return out
}

// patterns aggregates the last n simulations for the optimiser prompt.
func (a *Agent) patterns(n int) map[string]interface{} {
	recent := a.recentSims(n)
	if len(recent) == 0 {
		return map[string]interface{}{"total": 0}
	}

	avgWin, avgPnL := 0.0, 0.0
	best, worst := recent[0].WinRate, recent[0].WinRate
	for _, r := range recent {
		avgWin += r.WinRate
		avgPnL += r.PnLPercent
		if r.WinRate > best {
			best = r.WinRate
		}
		if r.WinRate < worst {
			worst = r.WinRate
		}
	}
	avgWin /= float64(len(recent))
	avgPnL /= float64(len(recent))

	// recent is newest first: compare the newer half against the older
	trend := "declining"
	half := len(recent) / 2
	if half == 0 || meanWinRate(recent[:half]) >= meanWinRate(recent[half:]) {
		trend = "improving"
	}

	return map[string]interface{}{
		"total":         len(recent),
		"avg_winrate":   avgWin,
		"best_winrate":  best,
		"worst_winrate": worst,
		"winrate_trend": trend,
		"avg_pnl":       avgPnL,
	}
}

func (a *Agent) versionSummaries() []map[string]interface{} {
	versions := a.store.List()
	out := make([]map[string]interface{}, 0, len(versions))
	for _, v := range versions {
		out = append(out, map[string]interface{}{
			"id":                v.ID,
			"name":              v.Name,
			"score":             v.Score,
			"win_rate":          v.WinRate,
			"total_simulations": v.TotalSimulations,
			"is_production":     v.IsProduction,
		})
	}
	return out
}

// buildResult derives the scored outcome from a trader report. A run
// with no trades is scored as neutral (50% win rate) rather than a
// failure.
func buildResult(v version.Version, cfg strategy.GraphConfig, report *trader.Report, prices []float64, durationSeconds int) *SimulationResult {
	winRate := report.Stats.WinRate
	if report.Stats.Trades == 0 {
		winRate = 50.0
	}
	score := winRate + math.Min(2*report.Stats.PnLPercent, 10)

	return &SimulationResult{
		VersionID:       v.ID,
		VersionName:     v.Name,
		DurationSeconds: durationSeconds,
		Trades:          report.Stats.Trades,
		WinRate:         winRate,
		PnLPercent:      report.Stats.PnLPercent,
		MaxDrawdownPct:  report.Stats.MaxDrawdownPct,
		BuyHoldPnLPct:   report.BuyHoldPnLPct,
		Score:           score,
		Conditions:      indicators.Conditions(prices, cfg),
		Recommendations: report.Recommendations,
		CompletedAt:     report.EndedAt,
		Failed:          report.Failed,
	}
}

// positionSizeForScore sizes entries by how proven the version is.
func positionSizeForScore(score float64) float64 {
	switch {
	case score >= 80:
		return 20
	case score >= 70:
		return 15
	case score >= 60:
		return 10
	default:
		return 5
	}
}

func formatChanges(params map[string]float64) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	changes := make([]string, 0, len(keys))
	for _, k := range keys {
		changes = append(changes, fmt.Sprintf("%s=%.4g", k, params[k]))
	}
	return changes
}

func meanWinRate(results []SimulationResult) float64 {
	if len(results) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range results {
		sum += r.WinRate
	}
	return sum / float64(len(results))
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
