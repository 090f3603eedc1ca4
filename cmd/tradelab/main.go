// tradelab runs the autonomous paper-trading laboratory: the agent
// loop, the event bus and the polling HTTP surface in one process.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantlabhq/tradelab/internal/advisor"
	"github.com/quantlabhq/tradelab/internal/agent"
	"github.com/quantlabhq/tradelab/internal/alerts"
	"github.com/quantlabhq/tradelab/internal/api"
	"github.com/quantlabhq/tradelab/internal/config"
	"github.com/quantlabhq/tradelab/internal/events"
	"github.com/quantlabhq/tradelab/internal/learning"
	"github.com/quantlabhq/tradelab/internal/market"
	"github.com/quantlabhq/tradelab/internal/resilience"
	"github.com/quantlabhq/tradelab/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg)
	logger.Info().
		Str("version", cfg.App.Version).
		Str("environment", cfg.App.Environment).
		Msg("Starting TradeLab")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	breakers := resilience.NewManager(logger)
	bus := events.NewBus(events.DefaultCapacity)

	// Durable version sink is optional: no database URL means the
	// genealogy lives in memory only.
	var sink *version.Sink
	var pool *pgxpool.Pool
	if cfg.Database.URL != "" {
		pool, err = pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			logger.Warn().Err(err).Msg("Database unavailable, running without durable snapshots")
		} else {
			sink = version.NewSinkWithPool(pool, breakers.Database(), logger)
			schemaCtx, schemaCancel := context.WithTimeout(ctx, 10*time.Second)
			if err := sink.EnsureSchema(schemaCtx); err != nil {
				logger.Warn().Err(err).Msg("Could not prepare version schema, running without durable snapshots")
				sink = nil
			}
			schemaCancel()
		}
	}
	defer func() {
		if pool != nil {
			pool.Close()
		}
	}()

	// Optional Redis tick cache shared across restarts.
	var tickCache *market.RedisTickCache
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetRedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, using in-process cache only")
		} else {
			tickCache = market.NewRedisTickCache(client, cfg.Market.GetCacheTTL())
		}
	}

	advisorClient := advisor.New(advisor.Config{
		Endpoint:    cfg.Advisor.Endpoint,
		Model:       cfg.Advisor.Model,
		APIKey:      cfg.Advisor.APIKey,
		Temperature: cfg.Advisor.Temperature,
		MaxTokens:   cfg.Advisor.MaxTokens,
		Timeout:     cfg.Advisor.GetTimeout(),
	}, breakers.Advisor(), bus, logger)
	if cfg.Advisor.APIKey == "" {
		logger.Info().Msg("No advisor credential, decisions use deterministic fallbacks")
	}

	sources := func(symbol string) market.Source {
		coinbase := market.NewCoinbaseSource(market.CoinbaseConfig{
			BaseURL:      cfg.Market.BaseURL,
			Symbol:       symbol,
			FetchTimeout: cfg.Market.GetFetchTimeout(),
			RateLimit:    cfg.Market.RateLimit,
			RateBurst:    cfg.Market.RateBurst,
		}, breakers.Feed(), logger)
		return market.NewCachedSource(coinbase, tickCache, cfg.Market.GetCacheTTL(), logger)
	}

	manager := agent.NewManager(agent.ManagerDeps{
		Config:   cfg,
		Sources:  sources,
		Bus:      bus,
		Advisor:  advisorClient,
		Store:    version.NewStore(),
		Sink:     sink,
		Recorder: learning.NewRecorder(0),
		Logger:   logger,
	})

	// Optional Telegram push channel on top of the bus.
	var notifier *alerts.Notifier
	if cfg.Alerts.TelegramToken != "" {
		sender, err := alerts.NewTelegramSender(cfg.Alerts.TelegramToken, cfg.Alerts.TelegramChatIDs, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Telegram alerts disabled")
		} else {
			notifier = alerts.NewNotifier(sender, nil, logger)
			notifier.Start(bus)
		}
	}

	server := api.NewServer(api.Config{
		Host:        cfg.API.Host,
		Port:        cfg.API.Port,
		CORSOrigins: cfg.API.CORSOrigins,
	}, manager, bus, advisorClient, logger)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Exit 0 on clean shutdown, 1 on configuration errors, 2 on
	// unrecoverable runtime failures.
	exitCode := 0
	select {
	case err := <-serverErrors:
		logger.Error().Err(err).Msg("Server failed")
		exitCode = 2
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	if err := manager.Stop(); err == nil {
		logger.Info().Msg("Agent stopped")
	}
	if notifier != nil {
		notifier.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
		exitCode = 2
	}

	logger.Info().Msg("TradeLab stopped")
	os.Exit(exitCode)
}

// setupLogger configures the process-wide zerolog logger from config.
func setupLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.App.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return log.Logger
}
