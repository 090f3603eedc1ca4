// Package indicators holds the rolling price window and the pure
// indicator kernel the signal evaluator runs on every tick. All
// calculations are deterministic for a given window and parameter set.
package indicators

// WindowCap bounds the price history a simulation keeps. Older prices
// are evicted as new ticks arrive.
const WindowCap = 100

// PriceWindow is a bounded rolling series of tick prices, most recent
// last. Not safe for concurrent use; each simulation owns one.
type PriceWindow struct {
	prices []float64
}

// NewPriceWindow returns an empty window.
func NewPriceWindow() *PriceWindow {
	return &PriceWindow{prices: make([]float64, 0, WindowCap)}
}

// Append pushes a price, evicting the oldest entry beyond capacity.
func (w *PriceWindow) Append(price float64) {
	if len(w.prices) >= WindowCap {
		copy(w.prices, w.prices[1:])
		w.prices = w.prices[:len(w.prices)-1]
	}
	w.prices = append(w.prices, price)
}

// Len returns the number of prices held.
func (w *PriceWindow) Len() int {
	return len(w.prices)
}

// Last returns the most recent price, or 0 when empty.
func (w *PriceWindow) Last() float64 {
	if len(w.prices) == 0 {
		return 0
	}
	return w.prices[len(w.prices)-1]
}

// Prices returns a copy of the series, oldest first.
func (w *PriceWindow) Prices() []float64 {
	out := make([]float64, len(w.prices))
	copy(out, w.prices)
	return out
}
