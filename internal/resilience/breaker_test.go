package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager(t *testing.T) {
	manager := NewManager(zerolog.Nop())

	require.NotNil(t, manager)
	require.NotNil(t, manager.Feed())
	require.NotNil(t, manager.Advisor())
	require.NotNil(t, manager.Database())

	assert.Equal(t, gobreaker.StateClosed, manager.Feed().State())
	assert.Equal(t, gobreaker.StateClosed, manager.Advisor().State())
	assert.Equal(t, gobreaker.StateClosed, manager.Database().State())
}

func TestFeedBreaker(t *testing.T) {
	t.Run("successful requests keep circuit closed", func(t *testing.T) {
		manager := NewManager(zerolog.Nop())

		for i := 0; i < 10; i++ {
			_, err := manager.Feed().Execute(func() (interface{}, error) {
				return "ok", nil
			})
			require.NoError(t, err)
		}
		assert.Equal(t, gobreaker.StateClosed, manager.Feed().State())
	})

	t.Run("circuit opens after threshold failures", func(t *testing.T) {
		manager := NewManager(zerolog.Nop())

		// Feed breaker needs 5 requests at a 60% failure ratio
		for i := 0; i < 5; i++ {
			manager.Feed().Execute(func() (interface{}, error) {
				return nil, errors.New("fetch failed")
			})
		}

		assert.Equal(t, gobreaker.StateOpen, manager.Feed().State())

		_, err := manager.Feed().Execute(func() (interface{}, error) {
			return "should not execute", nil
		})
		assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	})
}

func TestAdvisorBreaker(t *testing.T) {
	manager := NewManager(zerolog.Nop())

	// Advisor breaker needs only 3 requests at a 60% failure ratio
	for i := 0; i < 3; i++ {
		manager.Advisor().Execute(func() (interface{}, error) {
			return nil, errors.New("model timeout")
		})
	}

	assert.Equal(t, gobreaker.StateOpen, manager.Advisor().State())
}

func TestDatabaseBreaker(t *testing.T) {
	manager := NewManager(zerolog.Nop())

	// Database breaker needs 10 requests before it can trip
	for i := 0; i < 9; i++ {
		manager.Database().Execute(func() (interface{}, error) {
			return nil, errors.New("connection refused")
		})
	}
	assert.Equal(t, gobreaker.StateClosed, manager.Database().State())

	manager.Database().Execute(func() (interface{}, error) {
		return nil, errors.New("connection refused")
	})
	assert.Equal(t, gobreaker.StateOpen, manager.Database().State())
}

func TestManagerWithSettings(t *testing.T) {
	fast := &ServiceSettings{
		MinRequests:     2,
		FailureRatio:    0.5,
		OpenTimeout:     50 * time.Millisecond,
		HalfOpenMaxReqs: 1,
		CountInterval:   time.Second,
	}
	manager := NewManagerWithSettings(fast, nil, nil, zerolog.Nop())

	for i := 0; i < 2; i++ {
		manager.Feed().Execute(func() (interface{}, error) {
			return nil, errors.New("fetch failed")
		})
	}
	require.Equal(t, gobreaker.StateOpen, manager.Feed().State())

	// After the open timeout the breaker admits a probe request
	time.Sleep(60 * time.Millisecond)

	_, err := manager.Feed().Execute(func() (interface{}, error) {
		return "ok", nil
	})
	assert.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, manager.Feed().State())
}

func TestPassthroughManager(t *testing.T) {
	manager := NewPassthroughManager(zerolog.Nop())

	for i := 0; i < 50; i++ {
		manager.Feed().Execute(func() (interface{}, error) {
			return nil, errors.New("always failing")
		})
	}

	assert.Equal(t, gobreaker.StateClosed, manager.Feed().State())

	_, err := manager.Feed().Execute(func() (interface{}, error) {
		return "still executes", nil
	})
	assert.NoError(t, err)
}
