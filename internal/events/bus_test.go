package events

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitAndGet(t *testing.T) {
	bus := NewBus(10)

	bus.Emit(TypeInfo, SeverityInfo, "first", nil)
	bus.Emit(TypeError, SeverityError, "second", map[string]interface{}{"k": "v"})

	events := bus.Get(0, "", time.Time{})
	require.Len(t, events, 2)

	// Most-recent-first ordering
	assert.Equal(t, "second", events[0].Message)
	assert.Equal(t, "first", events[1].Message)
	assert.Equal(t, TypeError, events[0].Type)
	assert.Equal(t, "v", events[0].Data["k"])
	assert.Greater(t, events[0].ID, events[1].ID)
}

func TestCapacityEviction(t *testing.T) {
	bus := NewBus(500)

	for i := 0; i < 600; i++ {
		bus.Emit(TypeInfo, SeverityInfo, fmt.Sprintf("event %d", i), nil)
	}

	assert.Equal(t, 500, bus.Len())

	latest := bus.Latest(1)
	require.Len(t, latest, 1)
	assert.Equal(t, "event 599", latest[0].Message)

	// Oldest retained entry is the 101st emitted
	all := bus.Get(0, "", time.Time{})
	assert.Equal(t, "event 100", all[len(all)-1].Message)
}

func TestGetFilters(t *testing.T) {
	bus := NewBus(50)

	bus.Emit(TypeOrderCreated, SeverityInfo, "open", nil)
	bus.Emit(TypeOrderClosed, SeveritySuccess, "close win", nil)
	bus.Emit(TypeOrderClosed, SeverityError, "close loss", nil)
	bus.Emit(TypeInfo, SeverityInfo, "noise", nil)

	closed := bus.Get(0, TypeOrderClosed, time.Time{})
	require.Len(t, closed, 2)
	assert.Equal(t, "close loss", closed[0].Message)

	limited := bus.Get(1, TypeOrderClosed, time.Time{})
	require.Len(t, limited, 1)
	assert.Equal(t, "close loss", limited[0].Message)
}

func TestGetSince(t *testing.T) {
	bus := NewBus(50)

	bus.Emit(TypeInfo, SeverityInfo, "before", nil)
	cutoff := bus.Latest(1)[0].Timestamp

	time.Sleep(5 * time.Millisecond)
	bus.Emit(TypeInfo, SeverityInfo, "after", nil)

	recent := bus.Get(0, "", cutoff)
	require.Len(t, recent, 1)
	assert.Equal(t, "after", recent[0].Message)
}

func TestStats(t *testing.T) {
	bus := NewBus(50)

	bus.Emit(TypeInfo, SeverityInfo, "a", nil)
	bus.Emit(TypeInfo, SeverityInfo, "b", nil)
	bus.Emit(TypeError, SeverityError, "c", nil)

	stats := bus.Stats()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByType[TypeInfo])
	assert.Equal(t, 1, stats.ByType[TypeError])
	assert.Equal(t, 2, stats.BySeverity[SeverityInfo])
	assert.Equal(t, 1, stats.BySeverity[SeverityError])
	require.NotNil(t, stats.Oldest)
	require.NotNil(t, stats.Newest)
	assert.False(t, stats.Newest.Before(*stats.Oldest))
}

func TestClear(t *testing.T) {
	bus := NewBus(50)
	bus.Emit(TypeInfo, SeverityInfo, "a", nil)
	require.Equal(t, 1, bus.Len())

	bus.Clear()
	assert.Equal(t, 0, bus.Len())
	assert.Empty(t, bus.Latest(10))

	// Ring is usable after clear
	bus.Emit(TypeInfo, SeverityInfo, "b", nil)
	assert.Equal(t, 1, bus.Len())
}

func TestListeners(t *testing.T) {
	bus := NewBus(50)

	var mu sync.Mutex
	var seen []Event
	bus.Subscribe(func(ev Event) {
		mu.Lock()
		seen = append(seen, ev)
		mu.Unlock()
	})

	bus.Emit(TypeInfo, SeverityInfo, "one", nil)
	bus.Emit(TypeError, SeverityError, "two", nil)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Equal(t, "one", seen[0].Message)
	assert.Equal(t, "two", seen[1].Message)
}

func TestConcurrentEmit(t *testing.T) {
	bus := NewBus(100)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				bus.Emit(TypeInfo, SeverityInfo, "concurrent", nil)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, bus.Len())
	assert.Equal(t, 100, bus.Stats().ByType[TypeInfo])
}

func TestSeverityConventions(t *testing.T) {
	tests := []struct {
		name     string
		emit     func(*Bus)
		expected Severity
	}{
		{
			name:     "high winrate simulation is success",
			emit:     func(b *Bus) { b.EmitSimulationCompleted("a1", "v1", 75.0, 1.2, 4) },
			expected: SeveritySuccess,
		},
		{
			name:     "middling winrate simulation is warning",
			emit:     func(b *Bus) { b.EmitSimulationCompleted("a1", "v1", 45.0, -0.2, 4) },
			expected: SeverityWarning,
		},
		{
			name:     "low winrate simulation is error",
			emit:     func(b *Bus) { b.EmitSimulationCompleted("a1", "v1", 20.0, -2.0, 4) },
			expected: SeverityError,
		},
		{
			name:     "winning close is success",
			emit:     func(b *Bus) { b.EmitOrderClosed("a1", 1.25, 0.8, "take_profit") },
			expected: SeveritySuccess,
		},
		{
			name:     "losing close is error",
			emit:     func(b *Bus) { b.EmitOrderClosed("a1", -0.50, -0.4, "stop_loss") },
			expected: SeverityError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := NewBus(10)
			tt.emit(bus)

			latest := bus.Latest(1)
			require.Len(t, latest, 1)
			assert.Equal(t, tt.expected, latest[0].Severity)
		})
	}
}
