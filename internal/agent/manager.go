package agent

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/quantlabhq/tradelab/internal/advisor"
	"github.com/quantlabhq/tradelab/internal/config"
	"github.com/quantlabhq/tradelab/internal/events"
	"github.com/quantlabhq/tradelab/internal/learning"
	"github.com/quantlabhq/tradelab/internal/market"
	"github.com/quantlabhq/tradelab/internal/strategy"
	"github.com/quantlabhq/tradelab/internal/version"
)

// Manager lifecycle errors, mapped to HTTP statuses by the API layer.
var (
	ErrAlreadyRunning = errors.New("agent already running")
	ErrNotRunning     = errors.New("no agent running")
)

// SourceFactory builds a price source for a symbol.
type SourceFactory func(symbol string) market.Source

// ManagerDeps bundles the process-wide dependencies shared across
// agent restarts.
type ManagerDeps struct {
	Config   *config.Config
	Sources  SourceFactory
	Bus      *events.Bus
	Advisor  *advisor.Client
	Store    *version.Store
	Sink     *version.Sink
	Recorder *learning.Recorder
	Logger   zerolog.Logger
}

// Manager guards the single-agent invariant and keeps the last agent
// around after a stop so its history stays inspectable.
type Manager struct {
	deps    ManagerDeps
	presets func(name string) strategy.GraphConfig
	log     zerolog.Logger

	mu    sync.Mutex
	agent *Agent
}

// NewManager creates a manager. Preset overrides are loaded from the
// configured strategies file; a broken file falls back to the built-in
// sheet with a warning.
func NewManager(deps ManagerDeps) *Manager {
	log := deps.Logger.With().Str("component", "agent_manager").Logger()

	presets, err := strategy.LoadPresetOverrides(deps.Config.Agent.StrategiesFile)
	if err != nil {
		log.Warn().Err(err).
			Str("path", deps.Config.Agent.StrategiesFile).
			Msg("Ignoring broken strategy overrides")
		presets = strategy.Preset
	}

	return &Manager{deps: deps, presets: presets, log: log}
}

// Start launches an agent for the symbol. Only one agent runs at a
// time.
func (m *Manager) Start(ctx context.Context, symbol string, capital float64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.agent != nil && m.agent.Running() {
		return "", ErrAlreadyRunning
	}

	a := New(symbol, capital, Deps{
		Config:   m.deps.Config,
		Source:   m.deps.Sources(symbol),
		Bus:      m.deps.Bus,
		Advisor:  m.deps.Advisor,
		Store:    m.deps.Store,
		Sink:     m.deps.Sink,
		Recorder: m.deps.Recorder,
		Presets:  m.presets,
		Logger:   m.log,
	})
	if err := a.Start(ctx); err != nil {
		return "", err
	}
	m.agent = a
	return a.ID(), nil
}

// Stop halts the running agent and waits for its loop to drain.
func (m *Manager) Stop() error {
	m.mu.Lock()
	a := m.agent
	m.mu.Unlock()

	if a == nil || !a.Running() {
		return ErrNotRunning
	}
	a.Stop()
	return nil
}

// Pause freezes the running agent between cycles.
func (m *Manager) Pause() error {
	a, ok := m.running()
	if !ok {
		return ErrNotRunning
	}
	a.Pause()
	return nil
}

// Resume releases a paused agent.
func (m *Manager) Resume() error {
	a, ok := m.running()
	if !ok {
		return ErrNotRunning
	}
	a.Resume()
	return nil
}

// Agent returns the current (possibly stopped) agent.
func (m *Manager) Agent() (*Agent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.agent, m.agent != nil
}

func (m *Manager) running() (*Agent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.agent == nil || !m.agent.Running() {
		return nil, false
	}
	return m.agent, true
}
