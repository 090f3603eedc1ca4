// Applies the strategy version schema (pgvector extension, table and
// indexes) without starting the full service. Useful for provisioning
// a database before first boot or from CI.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/quantlabhq/tradelab/internal/version"
)

func main() {
	dbURL := flag.String("db", os.Getenv("TRADELAB_DATABASE_URL"), "PostgreSQL connection URL")
	timeout := flag.Duration("timeout", 30*time.Second, "overall timeout")
	flag.Parse()

	if *dbURL == "" {
		fmt.Fprintln(os.Stderr, "no database URL: pass -db or set TRADELAB_DATABASE_URL")
		os.Exit(1)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, *dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	sink := version.NewSinkWithPool(pool, nil, logger)
	if err := sink.Health(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "database unreachable: %v\n", err)
		os.Exit(1)
	}
	if err := sink.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "schema setup failed: %v\n", err)
		os.Exit(1)
	}

	logger.Info().Msg("Version schema ready")
}
