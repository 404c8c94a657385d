package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/models"
)

// PostgresStore is the durable DataStore backend: activity rows, a
// marker column advanced under optimistic concurrency, and a
// processed-tx-hash table for the idempotency guard. Pool tuning
// mirrors storage/postgres.go's NewPostgres (Quentinlac-poly).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres opens a connection pool sized for a low-volume,
// low-latency trading workload: few connections, short lifetimes, a
// hard statement timeout so a stuck query cannot wedge the executor.
func NewPostgres(ctx context.Context) (*PostgresStore, error) {
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	user := getEnv("POSTGRES_USER", "copybot")
	password := getEnv("POSTGRES_PASSWORD", "copybot")
	dbname := getEnv("POSTGRES_DB", "copybot")

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?pool_max_conns=10&pool_min_conns=2",
		user, password, host, port, dbname)

	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 30 * time.Second
	config.ConnConfig.RuntimeParams["statement_timeout"] = "5000"

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// GetActivity fetches a leader activity row by ID. The marker is stored
// as a single int64 sentinel column (marker_sentinel), decoded back into
// the tagged Marker variant with models.MarkerFromSentinel.
func (s *PostgresStore) GetActivity(ctx context.Context, activityID string) (*models.Activity, error) {
	var a models.Activity
	var side string
	var sentinel int64

	err := s.pool.QueryRow(ctx, `
		SELECT id, leader_id, condition_id, asset_id, side, size, usdc_size, price,
		       leader_timestamp, tx_hash, marker_sentinel
		FROM activities WHERE id = $1
	`, activityID).Scan(&a.ID, &a.LeaderID, &a.ConditionID, &a.AssetID, &side, &a.Size, &a.USDCSize,
		&a.Price, &a.LeaderTimestamp, &a.TxHash, &sentinel)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	a.Side = models.Side(side)
	a.Marker = models.MarkerFromSentinel(sentinel)
	return &a, nil
}

// CompareAndSetMarker advances an activity's marker only if it is
// currently in the expected state, using a single conditional UPDATE so
// the check-and-set is atomic under concurrent callers. The expected
// state is compared against the sign/value of the stored sentinel in
// the WHERE clause, using the same ranges MarkerFromSentinel decodes,
// rather than a separate state column, persisting
// {$set: {botExcutedTime: next.ToSentinel()}} in the legacy shape.
func (s *PostgresStore) CompareAndSetMarker(ctx context.Context, activityID string, expected models.MarkerState, next models.Marker) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE activities SET marker_sentinel = $1
		WHERE id = $2
		  AND (
		    ($3 = 0 AND marker_sentinel = 0) OR
		    ($3 = 1 AND marker_sentinel > 0) OR
		    ($3 = 2 AND marker_sentinel = -1) OR
		    ($3 = 3 AND marker_sentinel < -1)
		  )
	`, next.ToSentinel(), activityID, int(expected))
	if err != nil {
		return false, fmt.Errorf("compare-and-set marker: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkSkippedByAggregator force-sets an activity's marker to Skipped
// ({bot: true} in the legacy shape, sentinel -1), used when the
// aggregation buffer drops a bucket for falling below the minimum order
// size. Unlike CompareAndSetMarker this does not check the prior state:
// the aggregator owns activities it buffered and no other writer
// touches them while buffered.
func (s *PostgresStore) MarkSkippedByAggregator(ctx context.Context, activityID string) error {
	sentinel := models.Marker{State: models.MarkerSkipped}.ToSentinel()
	_, err := s.pool.Exec(ctx, `
		UPDATE activities SET marker_sentinel = $1 WHERE id = $2
	`, sentinel, activityID)
	if err != nil {
		return fmt.Errorf("mark skipped by aggregator: %w", err)
	}
	return nil
}

// HasProcessedTxHash reports whether a transaction hash has already
// been recorded as processed, the idempotency guard against
// re-submitting an order for a trade seen twice (e.g. once via
// polling, once via the realtime feed).
func (s *PostgresStore) HasProcessedTxHash(ctx context.Context, txHash string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM processed_tx_hashes WHERE tx_hash = $1)`, txHash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check processed tx hash: %w", err)
	}
	return exists, nil
}

// RecordProcessedTxHash records a transaction hash as processed.
// Idempotent: a duplicate insert is not an error.
func (s *PostgresStore) RecordProcessedTxHash(ctx context.Context, txHash string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO processed_tx_hashes (tx_hash, recorded_at) VALUES ($1, $2)
		ON CONFLICT (tx_hash) DO NOTHING
	`, txHash, time.Now())
	if err != nil {
		return fmt.Errorf("record processed tx hash: %w", err)
	}
	return nil
}
