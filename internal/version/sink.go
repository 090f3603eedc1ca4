package version

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/quantlabhq/tradelab/internal/indicators"
	"github.com/quantlabhq/tradelab/internal/strategy"
)

// PoolInterface abstracts the pgx pool so tests can substitute pgxmock.
type PoolInterface interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// Sink persists version snapshots to Postgres with a pgvector column
// for the market-conditions embedding. All writes are best-effort: a
// failed upsert is logged and dropped, never surfaced to the agent
// loop.
type Sink struct {
	pool    PoolInterface
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// NewSink creates a sink over any PoolInterface. The breaker may be nil.
func NewSink(pool PoolInterface, breaker *gobreaker.CircuitBreaker, log zerolog.Logger) *Sink {
	return &Sink{
		pool:    pool,
		breaker: breaker,
		log:     log.With().Str("component", "version_sink").Logger(),
	}
}

// NewSinkWithPool creates a sink from a concrete pgx pool.
func NewSinkWithPool(pool *pgxpool.Pool, breaker *gobreaker.CircuitBreaker, log zerolog.Logger) *Sink {
	return NewSink(pool, breaker, log)
}

// EnsureSchema creates the extension and table if missing.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS strategy_versions (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			name TEXT NOT NULL,
			schema_version TEXT NOT NULL,
			parent_id TEXT,
			config JSONB NOT NULL,
			score DOUBLE PRECISION NOT NULL DEFAULT 0,
			win_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_simulations INTEGER NOT NULL DEFAULT 0,
			is_production BOOLEAN NOT NULL DEFAULT FALSE,
			conditions vector(4),
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_strategy_versions_symbol ON strategy_versions (symbol)`,
	}

	for _, stmt := range statements {
		if _, err := s.exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure version schema: %w", err)
		}
	}
	return nil
}

// Upsert writes one version snapshot, keyed by version ID.
func (s *Sink) Upsert(ctx context.Context, symbol string, v Version) error {
	configJSON, err := json.Marshal(v.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal version config: %w", err)
	}

	_, err = s.exec(ctx, `
		INSERT INTO strategy_versions
			(id, symbol, name, schema_version, parent_id, config, score,
			 win_rate, total_simulations, is_production, conditions,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		ON CONFLICT (id) DO UPDATE SET
			score = EXCLUDED.score,
			win_rate = EXCLUDED.win_rate,
			total_simulations = EXCLUDED.total_simulations,
			is_production = EXCLUDED.is_production,
			conditions = EXCLUDED.conditions,
			updated_at = NOW()`,
		v.ID, symbol, v.Name, strategy.SchemaVersion, v.ParentID,
		configJSON, v.Score, v.WinRate, v.TotalSimulations, v.IsProduction,
		pgvector.NewVector(v.Conditions.Vector()), v.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert version %s: %w", v.ID, err)
	}
	return nil
}

// UpsertAsync writes a snapshot in the background. Failures are logged
// and dropped.
func (s *Sink) UpsertAsync(symbol string, v Version) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.Upsert(ctx, symbol, v); err != nil {
			s.log.Warn().Err(err).
				Str("version", v.Name).
				Msg("Dropped version snapshot write")
		}
	}()
}

// Load reads back every persisted version for a symbol. Rows written
// under an incompatible schema major are skipped with a warning so a
// format bump cannot poison the in-memory store.
func (s *Sink) Load(ctx context.Context, symbol string) ([]Version, error) {
	rows, err := s.query(ctx, `
		SELECT id, name, schema_version, parent_id, config, score,
		       win_rate, total_simulations, is_production, conditions, created_at
		FROM strategy_versions
		WHERE symbol = $1
		ORDER BY created_at ASC`, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to load versions: %w", err)
	}
	defer rows.Close()

	var versions []Version
	for rows.Next() {
		var (
			v             Version
			schemaVersion string
			parentID      *string
			configJSON    []byte
			conditions    pgvector.Vector
		)
		if err := rows.Scan(&v.ID, &v.Name, &schemaVersion, &parentID,
			&configJSON, &v.Score, &v.WinRate, &v.TotalSimulations,
			&v.IsProduction, &conditions, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan version row: %w", err)
		}

		if err := strategy.CheckSchemaCompat(schemaVersion); err != nil {
			s.log.Warn().Err(err).
				Str("version", v.Name).
				Str("schema_version", schemaVersion).
				Msg("Skipping incompatible version snapshot")
			continue
		}
		if err := json.Unmarshal(configJSON, &v.Config); err != nil {
			s.log.Warn().Err(err).
				Str("version", v.Name).
				Msg("Skipping version snapshot with unreadable config")
			continue
		}
		if parentID != nil {
			v.ParentID = *parentID
		}
		v.Conditions = conditionsFromVector(conditions.Slice())

		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read version rows: %w", err)
	}
	return versions, nil
}

// Health reports whether the database is reachable.
func (s *Sink) Health(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Sink) exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	if s.breaker == nil {
		return s.pool.Exec(ctx, sql, args...)
	}
	res, err := s.breaker.Execute(func() (interface{}, error) {
		return s.pool.Exec(ctx, sql, args...)
	})
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return res.(pgconn.CommandTag), nil
}

func (s *Sink) query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	if s.breaker == nil {
		return s.pool.Query(ctx, sql, args...)
	}
	res, err := s.breaker.Execute(func() (interface{}, error) {
		return s.pool.Query(ctx, sql, args...)
	})
	if err != nil {
		return nil, err
	}
	return res.(pgx.Rows), nil
}

// conditionsFromVector reverses MarketConditions.Vector.
func conditionsFromVector(vec []float32) indicators.MarketConditions {
	var c indicators.MarketConditions
	if len(vec) >= 4 {
		c.RSI = float64(vec[0])
		c.Volatility = float64(vec[1])
		c.Trend = float64(vec[2])
		c.Momentum = float64(vec[3])
	}
	return c
}
