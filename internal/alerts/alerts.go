// Package alerts forwards noteworthy bus events to external channels.
// The bus listener never blocks: events are handed to a buffered worker
// and dropped when the queue is full.
package alerts

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/quantlabhq/tradelab/internal/events"
)

// queueSize bounds the in-flight alert backlog.
const queueSize = 64

// Sender delivers one formatted alert message.
type Sender interface {
	Send(text string) error
}

// defaultTypes are the events worth pushing to a human. Everything else
// stays on the bus for the polling UI.
var defaultTypes = map[events.Type]bool{
	events.TypeAgentStarted:     true,
	events.TypeAgentStopped:     true,
	events.TypeVersionActivated: true,
	events.TypeVersionCreated:   true,
	events.TypeError:            true,
}

// Notifier fans selected bus events out to a Sender on its own worker
// goroutine.
type Notifier struct {
	sender Sender
	types  map[events.Type]bool
	log    zerolog.Logger

	ch   chan events.Event
	done chan struct{}

	mu      sync.Mutex
	started bool
	dropped int
}

// NewNotifier creates a notifier over the given sender. A nil types set
// selects the default allowlist; warnings and errors are always
// forwarded regardless of type.
func NewNotifier(sender Sender, types map[events.Type]bool, log zerolog.Logger) *Notifier {
	if types == nil {
		types = defaultTypes
	}
	return &Notifier{
		sender: sender,
		types:  types,
		log:    log.With().Str("component", "alerts").Logger(),
		ch:     make(chan events.Event, queueSize),
		done:   make(chan struct{}),
	}
}

// Start launches the delivery worker and subscribes to the bus.
func (n *Notifier) Start(bus *events.Bus) {
	n.mu.Lock()
	if n.started {
		n.mu.Unlock()
		return
	}
	n.started = true
	n.mu.Unlock()

	go n.worker()
	bus.Subscribe(n.listen)
}

// Stop drains the queue and waits for the worker to exit. The bus keeps
// calling the listener afterwards; those events are discarded.
func (n *Notifier) Stop() {
	n.mu.Lock()
	if !n.started {
		n.mu.Unlock()
		return
	}
	n.started = false
	n.mu.Unlock()

	close(n.ch)
	<-n.done
}

// Dropped reports how many events were discarded on a full queue.
func (n *Notifier) Dropped() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dropped
}

// listen runs on the emitter's goroutine and must not block.
func (n *Notifier) listen(ev events.Event) {
	if !n.wants(ev) {
		return
	}

	n.mu.Lock()
	if !n.started {
		n.mu.Unlock()
		return
	}
	select {
	case n.ch <- ev:
	default:
		n.dropped++
		n.log.Warn().Str("type", string(ev.Type)).Msg("Alert queue full, event dropped")
	}
	n.mu.Unlock()
}

func (n *Notifier) wants(ev events.Event) bool {
	if ev.Severity == events.SeverityWarning || ev.Severity == events.SeverityError {
		return true
	}
	return n.types[ev.Type]
}

func (n *Notifier) worker() {
	defer close(n.done)
	for ev := range n.ch {
		if err := n.sender.Send(Format(ev)); err != nil {
			n.log.Warn().Err(err).Str("type", string(ev.Type)).Msg("Alert delivery failed")
		}
	}
}

// Format renders an event as a push message.
func Format(ev events.Event) string {
	icon := "ℹ️"
	switch ev.Severity {
	case events.SeveritySuccess:
		icon = "✅"
	case events.SeverityWarning:
		icon = "⚠️"
	case events.SeverityError:
		icon = "🚨"
	}

	text := fmt.Sprintf("%s *%s*\n%s", icon, ev.Type, ev.Message)
	if agentID, ok := ev.Data["agent_id"].(string); ok && agentID != "" {
		text += fmt.Sprintf("\n_agent %s_", agentID)
	}
	return text
}
