// Package metrics defines the Prometheus collectors for the trading lab.
package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Close reason label values. Keep this set closed: every close reason
// recorded on a counter must map to one of these to bound cardinality.
const (
	CloseReasonStopLoss      = "stop_loss"
	CloseReasonTakeProfit    = "take_profit"
	CloseReasonTimeExit      = "time_exit"
	CloseReasonSimulationEnd = "simulation_end"
	CloseReasonAgentStopped  = "agent_stopped"
	CloseReasonOther         = "other"
)

// Feed error categories for price fetch failures.
const (
	FeedErrorTimeout     = "timeout"
	FeedErrorRateLimit   = "rate_limit"
	FeedErrorNetwork     = "network"
	FeedErrorDecode      = "decode"
	FeedErrorBreakerOpen = "breaker_open"
	FeedErrorOther       = "other"
)

// Advisor result label values.
const (
	AdvisorResultOK       = "ok"
	AdvisorResultFallback = "fallback"
)

// NormalizeCloseReason maps a position close reason to a bounded label value.
func NormalizeCloseReason(reason string) string {
	switch reason {
	case CloseReasonStopLoss, CloseReasonTakeProfit, CloseReasonTimeExit,
		CloseReasonSimulationEnd, CloseReasonAgentStopped:
		return reason
	default:
		return CloseReasonOther
	}
}

// NormalizeFeedError maps a price feed error to a bounded category.
func NormalizeFeedError(err error) string {
	if err == nil {
		return ""
	}
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "circuit breaker is open") || strings.Contains(errStr, "too many requests"):
		return FeedErrorBreakerOpen
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline"):
		return FeedErrorTimeout
	case strings.Contains(errStr, "rate") || strings.Contains(errStr, "429"):
		return FeedErrorRateLimit
	case strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") || strings.Contains(errStr, "refused"):
		return FeedErrorNetwork
	case strings.Contains(errStr, "decode") || strings.Contains(errStr, "unmarshal") || strings.Contains(errStr, "parse"):
		return FeedErrorDecode
	default:
		return FeedErrorOther
	}
}

// Trading Metrics
var (
	// Ticks processed by the trading loop
	TicksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradelab_ticks_processed_total",
		Help: "Total number of price ticks processed by symbol",
	}, []string{"symbol"})

	// Positions opened
	TradesOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradelab_trades_opened_total",
		Help: "Total number of positions opened by strategy",
	}, []string{"strategy"})

	// Positions closed
	TradesClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradelab_trades_closed_total",
		Help: "Total number of positions closed by reason",
	}, []string{"reason"})

	// Realized P&L distribution per closed trade, in percent
	TradePnLPercent = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tradelab_trade_pnl_percent",
		Help:    "Realized P&L per closed trade as a percentage",
		Buckets: []float64{-5, -2, -1, -0.5, -0.1, 0, 0.1, 0.5, 1, 2, 5},
	})

	// Simulations completed
	SimulationsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradelab_simulations_completed_total",
		Help: "Total number of simulations run to completion",
	})

	// Win rate of the most recent simulation (0 to 100)
	LastSimulationWinRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradelab_last_simulation_win_rate",
		Help: "Win rate of the most recent simulation as a percentage",
	})

	// P&L of the most recent simulation (percent of starting capital)
	LastSimulationPnL = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradelab_last_simulation_pnl_percent",
		Help: "P&L of the most recent simulation as a percentage of starting capital",
	})

	// Open position flag (1 = position held, 0 = flat)
	OpenPosition = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradelab_open_position",
		Help: "Whether a position is currently open (1 = open, 0 = flat)",
	})
)

// Agent Metrics
var (
	// Agent state (1 for the current state, 0 otherwise)
	AgentState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tradelab_agent_state",
		Help: "Current agent state (1 = active state, 0 = inactive)",
	}, []string{"state"})

	// Agent cycles completed
	AgentCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradelab_agent_cycles_total",
		Help: "Total number of completed agent decision cycles",
	})

	// Agent cycle failures
	AgentErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradelab_agent_errors_total",
		Help: "Total number of agent cycle failures",
	})

	// Parameter versions created
	VersionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradelab_versions_created_total",
		Help: "Total number of parameter versions created",
	})

	// Optimization passes applied
	Optimizations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradelab_optimizations_total",
		Help: "Total number of optimization passes applied",
	})
)

// Advisor Metrics
var (
	// Advisor requests by node and outcome
	AdvisorRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradelab_advisor_requests_total",
		Help: "Total number of advisor requests by node and result",
	}, []string{"node", "result"})

	// Tokens consumed by advisor calls
	AdvisorTokens = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradelab_advisor_tokens_total",
		Help: "Total number of tokens consumed by advisor calls",
	})

	// Estimated advisor spend in USD
	AdvisorCostUSD = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradelab_advisor_cost_usd_total",
		Help: "Estimated cumulative advisor cost in USD",
	})

	// Advisor request duration
	AdvisorRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tradelab_advisor_request_duration_ms",
		Help:    "Advisor request duration in milliseconds",
		Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	})
)

// Price Feed Metrics
var (
	// Price fetch duration
	PriceFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tradelab_price_fetch_duration_ms",
		Help:    "Price fetch duration in milliseconds",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	})

	// Price fetch errors by category
	PriceFetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradelab_price_fetch_errors_total",
		Help: "Total number of price fetch errors by category",
	}, []string{"category"})

	// Price cache hits
	PriceCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradelab_price_cache_hits_total",
		Help: "Total number of price cache hits",
	})

	// Price cache misses
	PriceCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradelab_price_cache_misses_total",
		Help: "Total number of price cache misses",
	})

	// Redis operations by type
	RedisOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradelab_redis_operations_total",
		Help: "Total number of Redis operations by type",
	}, []string{"operation"})
)

// Event Bus Metrics
var (
	EventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradelab_events_emitted_total",
		Help: "Total number of events emitted by type and severity",
	}, []string{"type", "severity"})
)

// Circuit Breaker Metrics
var (
	// Circuit breaker state (1 = open or half-open, 0 = closed)
	CircuitBreakerOpen = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tradelab_circuit_breaker_open",
		Help: "Circuit breaker state (1 = open or half-open, 0 = closed)",
	}, []string{"breaker"})

	// Circuit breaker trips
	CircuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradelab_circuit_breaker_trips_total",
		Help: "Total number of circuit breaker trips",
	}, []string{"breaker"})
)

// HTTP Metrics
var (
	// API request duration
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradelab_api_request_duration_ms",
		Help:    "API request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"method", "path", "status_code"})

	// HTTP requests
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradelab_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status_code"})
)

// Helper functions to update metrics

// RecordTick records one processed price tick.
func RecordTick(symbol string) {
	TicksProcessed.WithLabelValues(symbol).Inc()
}

// RecordTradeOpened records a newly opened position.
func RecordTradeOpened(strategy string) {
	TradesOpened.WithLabelValues(strategy).Inc()
	OpenPosition.Set(1)
}

// RecordTradeClosed records a closed position with its normalized reason.
func RecordTradeClosed(reason string, pnlPercent float64) {
	TradesClosed.WithLabelValues(NormalizeCloseReason(reason)).Inc()
	TradePnLPercent.Observe(pnlPercent)
	OpenPosition.Set(0)
}

// RecordSimulation records a completed simulation's headline results.
func RecordSimulation(winRate, pnlPercent float64) {
	SimulationsCompleted.Inc()
	LastSimulationWinRate.Set(winRate)
	LastSimulationPnL.Set(pnlPercent)
}

var (
	agentStateMu   sync.Mutex
	lastAgentState string
)

// SetAgentState marks the given state active and clears the previous one.
func SetAgentState(state string) {
	agentStateMu.Lock()
	defer agentStateMu.Unlock()
	if lastAgentState != "" && lastAgentState != state {
		AgentState.WithLabelValues(lastAgentState).Set(0)
	}
	AgentState.WithLabelValues(state).Set(1)
	lastAgentState = state
}

// RecordAdvisorRequest records an advisor call with its outcome and usage.
func RecordAdvisorRequest(node, result string, durationMs float64, tokens int) {
	AdvisorRequests.WithLabelValues(node, result).Inc()
	AdvisorRequestDuration.Observe(durationMs)
	if tokens > 0 {
		AdvisorTokens.Add(float64(tokens))
	}
}

// RecordAdvisorCost adds to the cumulative advisor spend estimate.
func RecordAdvisorCost(usd float64) {
	if usd > 0 {
		AdvisorCostUSD.Add(usd)
	}
}

// RecordPriceFetch records a price fetch attempt with normalized error category.
func RecordPriceFetch(durationMs float64, err error) {
	PriceFetchDuration.Observe(durationMs)
	if err != nil {
		PriceFetchErrors.WithLabelValues(NormalizeFeedError(err)).Inc()
	}
}

// RecordCacheHit records a price cache hit.
func RecordCacheHit() {
	PriceCacheHits.Inc()
}

// RecordCacheMiss records a price cache miss.
func RecordCacheMiss() {
	PriceCacheMisses.Inc()
}

// RecordRedisOperation records a Redis operation.
func RecordRedisOperation(operation string) {
	RedisOperations.WithLabelValues(operation).Inc()
}

// RecordEvent records an emitted event.
func RecordEvent(eventType, severity string) {
	EventsEmitted.WithLabelValues(eventType, severity).Inc()
}

// UpdateCircuitBreaker updates a breaker's open/closed gauge.
func UpdateCircuitBreaker(breaker string, open bool) {
	state := 0.0
	if open {
		state = 1.0
	}
	CircuitBreakerOpen.WithLabelValues(breaker).Set(state)
}

// RecordCircuitBreakerTrip records a breaker transition to open.
func RecordCircuitBreakerTrip(breaker string) {
	CircuitBreakerTrips.WithLabelValues(breaker).Inc()
}

// RecordAPIRequest records an API request with duration.
func RecordAPIRequest(method, path, statusCode string, durationMs float64) {
	APIRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationMs)
	HTTPRequests.WithLabelValues(method, path, statusCode).Inc()
}
