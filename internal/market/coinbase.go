package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/quantlabhq/tradelab/internal/metrics"
)

// Coinbase price endpoints under /v2/prices/{symbol}/.
const (
	kindSpot = "spot"
	kindBuy  = "buy"
	kindSell = "sell"
)

// CoinbaseConfig configures a CoinbaseSource.
type CoinbaseConfig struct {
	BaseURL      string
	Symbol       string
	FetchTimeout time.Duration
	RateLimit    float64 // outbound requests per second
	RateBurst    int
}

// CoinbaseSource fetches spot, buy and sell quotes from the Coinbase
// public price API.
type CoinbaseSource struct {
	baseURL      string
	symbol       string
	fetchTimeout time.Duration
	httpClient   *http.Client
	limiter      *rate.Limiter
	breaker      *gobreaker.CircuitBreaker
	log          zerolog.Logger
}

// NewCoinbaseSource creates a price source for a single product. The
// breaker may be nil, in which case requests are not guarded.
func NewCoinbaseSource(cfg CoinbaseConfig, breaker *gobreaker.CircuitBreaker, log zerolog.Logger) *CoinbaseSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.coinbase.com"
	}
	if cfg.Symbol == "" {
		cfg.Symbol = "BTC-USD"
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = 5 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10
	}
	if cfg.RateBurst < 3 {
		// One tick issues three parallel requests
		cfg.RateBurst = 3
	}

	return &CoinbaseSource{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		symbol:       cfg.Symbol,
		fetchTimeout: cfg.FetchTimeout,
		httpClient:   &http.Client{Timeout: cfg.FetchTimeout},
		limiter:      rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		breaker:      breaker,
		log:          log.With().Str("component", "market").Str("symbol", cfg.Symbol).Logger(),
	}
}

// Symbol returns the product identifier.
func (s *CoinbaseSource) Symbol() string {
	return s.symbol
}

// Current fetches a fresh tick. Spot is required; buy and sell fall back
// to the spot price when their endpoints fail.
func (s *CoinbaseSource) Current(ctx context.Context) (Tick, error) {
	start := time.Now()

	var tick Tick
	var err error
	if s.breaker != nil {
		var res interface{}
		res, err = s.breaker.Execute(func() (interface{}, error) {
			return s.fetch(ctx)
		})
		if err == nil {
			tick = res.(Tick)
		}
	} else {
		tick, err = s.fetch(ctx)
	}

	metrics.RecordPriceFetch(float64(time.Since(start).Milliseconds()), err)
	if err != nil {
		return Tick{}, err
	}

	s.log.Debug().
		Float64("price", tick.Price).
		Float64("buy", tick.Buy).
		Float64("sell", tick.Sell).
		Msg("Fetched tick")
	return tick, nil
}

func (s *CoinbaseSource) fetch(ctx context.Context) (Tick, error) {
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	var spot, buy, sell float64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.fetchPrice(gctx, kindSpot)
		if err != nil {
			return fmt.Errorf("spot price: %w", err)
		}
		spot = p
		return nil
	})
	g.Go(func() error {
		p, err := s.fetchPrice(gctx, kindBuy)
		if err != nil {
			s.log.Debug().Err(err).Msg("Buy quote unavailable")
			return nil
		}
		buy = p
		return nil
	})
	g.Go(func() error {
		p, err := s.fetchPrice(gctx, kindSell)
		if err != nil {
			s.log.Debug().Err(err).Msg("Sell quote unavailable")
			return nil
		}
		sell = p
		return nil
	})

	if err := g.Wait(); err != nil {
		return Tick{}, err
	}

	if buy == 0 {
		buy = spot
	}
	if sell == 0 {
		sell = spot
	}

	return Tick{
		Symbol:    s.symbol,
		Price:     spot,
		Buy:       buy,
		Sell:      sell,
		Timestamp: time.Now(),
	}, nil
}

// priceResponse is the Coinbase v2 price payload.
type priceResponse struct {
	Data struct {
		Amount   string `json:"amount"`
		Base     string `json:"base"`
		Currency string `json:"currency"`
	} `json:"data"`
}

func (s *CoinbaseSource) fetchPrice(ctx context.Context, kind string) (float64, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limiter: %w", err)
	}

	url := fmt.Sprintf("%s/v2/prices/%s/%s", s.baseURL, s.symbol, kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var pr priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}

	amount, err := decimal.NewFromString(pr.Data.Amount)
	if err != nil {
		return 0, fmt.Errorf("failed to parse amount %q: %w", pr.Data.Amount, err)
	}

	return amount.InexactFloat64(), nil
}
