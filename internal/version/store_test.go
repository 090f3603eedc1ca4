package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlabhq/tradelab/internal/indicators"
	"github.com/quantlabhq/tradelab/internal/strategy"
)

func TestStoreCreateAndAdopt(t *testing.T) {
	store := NewStore()
	store.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	_, ok := store.Current()
	assert.False(t, ok)

	v1 := store.Create(strategy.Scalping(), "", "v1_initial", nil)
	assert.Len(t, v1.ID, 8)
	assert.Equal(t, "v1_initial", v1.Name)
	assert.Equal(t, store.now(), v1.CreatedAt)

	require.NoError(t, store.Adopt(v1.ID))
	current, ok := store.Current()
	require.True(t, ok)
	assert.Equal(t, v1.ID, current.ID)

	// Re-adopting the current version is a no-op
	require.NoError(t, store.Adopt(v1.ID))

	assert.Error(t, store.Adopt("missing"))
}

func TestStoreAnnotate(t *testing.T) {
	store := NewStore()
	v := store.Create(strategy.Baseline(), "", "v1_initial", nil)

	conditions := indicators.MarketConditions{RSI: 62, Volatility: 1.4, Trend: 0.3, Momentum: 0.8}
	require.NoError(t, store.Annotate(v.ID, 71.5, 66.7, conditions))
	require.NoError(t, store.Annotate(v.ID, 58.0, 50.0, conditions))

	got, ok := store.Get(v.ID)
	require.True(t, ok)
	assert.Equal(t, 58.0, got.Score)
	assert.Equal(t, 50.0, got.WinRate)
	assert.Equal(t, 2, got.TotalSimulations)

	assert.Error(t, store.Annotate("missing", 1, 1, conditions))
}

func TestStoreGenealogy(t *testing.T) {
	store := NewStore()

	v1 := store.Create(strategy.Scalping(), "", "v1_initial", nil)
	v2 := store.Create(v1.Config, v1.ID, "v2_brain_optimized", []string{"rsi_oversold: 45.0 -> 40.0"})

	assert.Equal(t, v1.ID, v2.ParentID)
	assert.Equal(t, []string{"rsi_oversold: 45.0 -> 40.0"}, v2.Changes)

	list := store.List()
	require.Len(t, list, 2)
	assert.Equal(t, "v1_initial", list[0].Name)
	assert.Equal(t, "v2_brain_optimized", list[1].Name)
	assert.Equal(t, 2, store.Len())
}

func TestStoreMarkProduction(t *testing.T) {
	store := NewStore()
	v := store.Create(strategy.Scalping(), "", "v1_initial", nil)

	require.NoError(t, store.MarkProduction(v.ID))
	got, _ := store.Get(v.ID)
	assert.True(t, got.IsProduction)
}

func TestStoreRestoreIdempotent(t *testing.T) {
	store := NewStore()

	v := Version{
		ID:      "abcd1234",
		Name:    "v3_brain_optimized",
		Config:  strategy.Momentum(),
		Score:   72,
		WinRate: 60,
	}
	assert.True(t, store.Restore(v))
	assert.False(t, store.Restore(v))
	assert.Equal(t, 1, store.Len())

	got, ok := store.Get("abcd1234")
	require.True(t, ok)
	assert.Equal(t, 72.0, got.Score)
}

func TestFindBestFor(t *testing.T) {
	store := NewStore()
	calm := indicators.MarketConditions{RSI: 50, Volatility: 1, Trend: 0, Momentum: 0}
	wild := indicators.MarketConditions{RSI: 90, Volatility: 40, Trend: 20, Momentum: 30}

	weak := store.Create(strategy.Scalping(), "", "v1_initial", nil)
	require.NoError(t, store.Annotate(weak.ID, 30, 20, calm))

	strongFar := store.Create(strategy.Scalping(), weak.ID, "v2_brain_optimized", nil)
	require.NoError(t, store.Annotate(strongFar.ID, 75, 65, wild))

	strongNear := store.Create(strategy.Scalping(), weak.ID, "v3_brain_optimized", nil)
	require.NoError(t, store.Annotate(strongNear.ID, 73, 63, calm))

	// Near-identical conditions beat a higher raw score once the
	// distance penalty applies.
	best, ok := store.FindBestFor(calm)
	require.True(t, ok)
	assert.Equal(t, strongNear.ID, best.ID)

	// The current version is never a candidate.
	require.NoError(t, store.Adopt(strongNear.ID))
	best, ok = store.FindBestFor(calm)
	require.True(t, ok)
	assert.Equal(t, strongFar.ID, best.ID)

	// Below-threshold versions never match.
	require.NoError(t, store.Adopt(strongFar.ID))
	require.NoError(t, store.Adopt(strongNear.ID))
	_, ok = NewStore().FindBestFor(calm)
	assert.False(t, ok)
}

func TestStoreListIsACopy(t *testing.T) {
	store := NewStore()
	store.Create(strategy.Scalping(), "", "v1_initial", nil)

	list := store.List()
	list[0].Name = "mutated"

	fresh := store.List()
	assert.Equal(t, "v1_initial", fresh[0].Name)
}
