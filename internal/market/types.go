// Package market fetches and caches live crypto prices.
package market

import (
	"context"
	"time"
)

// Tick is a single price observation for a product.
type Tick struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Buy       float64   `json:"buy"`
	Sell      float64   `json:"sell"`
	Timestamp time.Time `json:"timestamp"`
}

// Source supplies the current price for a single product.
type Source interface {
	// Current returns the latest tick. Implementations may serve cached
	// data; callers treat an error as "skip this tick".
	Current(ctx context.Context) (Tick, error)

	// Symbol returns the product identifier, e.g. "BTC-USD".
	Symbol() string
}
