package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceWindow(t *testing.T) {
	w := NewPriceWindow()
	assert.Equal(t, 0, w.Len())
	assert.Equal(t, 0.0, w.Last())

	w.Append(100)
	w.Append(101)
	assert.Equal(t, 2, w.Len())
	assert.Equal(t, 101.0, w.Last())
	assert.Equal(t, []float64{100, 101}, w.Prices())
}

func TestPriceWindowEviction(t *testing.T) {
	w := NewPriceWindow()
	for i := 0; i < WindowCap+25; i++ {
		w.Append(float64(i))
	}

	require.Equal(t, WindowCap, w.Len())
	prices := w.Prices()
	assert.Equal(t, 25.0, prices[0])
	assert.Equal(t, float64(WindowCap+24), prices[len(prices)-1])
}

func TestPriceWindowPricesIsACopy(t *testing.T) {
	w := NewPriceWindow()
	w.Append(100)

	prices := w.Prices()
	prices[0] = 999
	assert.Equal(t, 100.0, w.Last())
}
