// Package resilience wraps outbound dependencies in circuit breakers.
package resilience

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/quantlabhq/tradelab/internal/metrics"
)

// Breaker names used as metric labels.
const (
	BreakerFeed     = "feed"
	BreakerAdvisor  = "advisor"
	BreakerDatabase = "database"
)

// Per-service thresholds.
const (
	// Feed breaker settings
	FeedMinRequests     = 5
	FeedFailureRatio    = 0.6
	FeedOpenTimeout     = 30 * time.Second
	FeedHalfOpenMaxReqs = 3
	FeedCountInterval   = 10 * time.Second

	// Advisor breaker settings (slower recovery, model calls are expensive)
	AdvisorMinRequests     = 3
	AdvisorFailureRatio    = 0.6
	AdvisorOpenTimeout     = 60 * time.Second
	AdvisorHalfOpenMaxReqs = 2
	AdvisorCountInterval   = 10 * time.Second

	// Database breaker settings (quick recovery)
	DatabaseMinRequests     = 10
	DatabaseFailureRatio    = 0.6
	DatabaseOpenTimeout     = 15 * time.Second
	DatabaseHalfOpenMaxReqs = 5
	DatabaseCountInterval   = 10 * time.Second
)

// ServiceSettings holds circuit breaker configuration for a single service.
type ServiceSettings struct {
	MinRequests     uint32
	FailureRatio    float64
	OpenTimeout     time.Duration
	HalfOpenMaxReqs uint32
	CountInterval   time.Duration
}

// Manager holds the circuit breakers for the lab's outbound dependencies.
type Manager struct {
	feed     *gobreaker.CircuitBreaker
	advisor  *gobreaker.CircuitBreaker
	database *gobreaker.CircuitBreaker
	log      zerolog.Logger
}

// NewManager creates a Manager with the default per-service settings.
func NewManager(log zerolog.Logger) *Manager {
	return NewManagerWithSettings(nil, nil, nil, log)
}

// NewManagerWithSettings creates a Manager, falling back to the default
// thresholds for any nil settings.
func NewManagerWithSettings(feed, advisor, database *ServiceSettings, log zerolog.Logger) *Manager {
	m := &Manager{
		log: log.With().Str("component", "resilience").Logger(),
	}

	if feed == nil {
		feed = &ServiceSettings{
			MinRequests:     FeedMinRequests,
			FailureRatio:    FeedFailureRatio,
			OpenTimeout:     FeedOpenTimeout,
			HalfOpenMaxReqs: FeedHalfOpenMaxReqs,
			CountInterval:   FeedCountInterval,
		}
	}
	if advisor == nil {
		advisor = &ServiceSettings{
			MinRequests:     AdvisorMinRequests,
			FailureRatio:    AdvisorFailureRatio,
			OpenTimeout:     AdvisorOpenTimeout,
			HalfOpenMaxReqs: AdvisorHalfOpenMaxReqs,
			CountInterval:   AdvisorCountInterval,
		}
	}
	if database == nil {
		database = &ServiceSettings{
			MinRequests:     DatabaseMinRequests,
			FailureRatio:    DatabaseFailureRatio,
			OpenTimeout:     DatabaseOpenTimeout,
			HalfOpenMaxReqs: DatabaseHalfOpenMaxReqs,
			CountInterval:   DatabaseCountInterval,
		}
	}

	m.feed = m.newBreaker(BreakerFeed, feed)
	m.advisor = m.newBreaker(BreakerAdvisor, advisor)
	m.database = m.newBreaker(BreakerDatabase, database)

	metrics.UpdateCircuitBreaker(BreakerFeed, false)
	metrics.UpdateCircuitBreaker(BreakerAdvisor, false)
	metrics.UpdateCircuitBreaker(BreakerDatabase, false)

	return m
}

func (m *Manager) newBreaker(name string, s *ServiceSettings) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: s.HalfOpenMaxReqs,
		Interval:    s.CountInterval,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= s.MinRequests && failureRatio >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			m.onStateChange(name, from, to)
		},
	})
}

func (m *Manager) onStateChange(name string, from, to gobreaker.State) {
	metrics.UpdateCircuitBreaker(name, to != gobreaker.StateClosed)
	if to == gobreaker.StateOpen {
		metrics.RecordCircuitBreakerTrip(name)
		m.log.Warn().
			Str("breaker", name).
			Str("from", from.String()).
			Msg("Circuit breaker opened")
		return
	}
	m.log.Info().
		Str("breaker", name).
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("Circuit breaker state changed")
}

// NewPassthroughManager creates a Manager whose breakers never trip.
// Intended for tests that exercise other components.
func NewPassthroughManager(log zerolog.Logger) *Manager {
	neverTrip := func(counts gobreaker.Counts) bool {
		return false
	}

	m := &Manager{
		log: log.With().Str("component", "resilience").Logger(),
	}
	for _, b := range []struct {
		name   string
		target **gobreaker.CircuitBreaker
	}{
		{BreakerFeed, &m.feed},
		{BreakerAdvisor, &m.advisor},
		{BreakerDatabase, &m.database},
	} {
		*b.target = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        b.name + "_passthrough",
			MaxRequests: 1000,
			Interval:    0,
			Timeout:     time.Millisecond,
			ReadyToTrip: neverTrip,
		})
	}
	return m
}

// Feed returns the price feed circuit breaker.
func (m *Manager) Feed() *gobreaker.CircuitBreaker {
	return m.feed
}

// Advisor returns the advisor circuit breaker.
func (m *Manager) Advisor() *gobreaker.CircuitBreaker {
	return m.advisor
}

// Database returns the database circuit breaker.
func (m *Manager) Database() *gobreaker.CircuitBreaker {
	return m.database
}
