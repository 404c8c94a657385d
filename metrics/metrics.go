// Package metrics mirrors breaker and aggregator state into Redis so
// an external dashboard can read it without touching in-process state
// directly, grounded on syncer/metrics.go's MetricsStore
// (Quentinlac-poly): a single JSON blob under one key, overwritten on
// every publish, with a fixed TTL refreshed on every write.
package metrics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/breaker"
)

const (
	metricsKey = "copybot:metrics"
	metricsTTL = 24 * time.Hour
)

// Snapshot is the JSON shape mirrored to Redis.
type Snapshot struct {
	Breakers            []breaker.Snapshot `json:"breakers"`
	AggregationBufferSz int                `json:"aggregationBufferSize"`
	UpdatedAt           time.Time          `json:"updatedAt"`
}

// Store mirrors a Snapshot into Redis.
type Store struct {
	redis *redis.Client
}

// NewStore constructs a metrics Store over an existing redis.Client.
func NewStore(client *redis.Client) *Store {
	return &Store{redis: client}
}

// Publish writes the current breaker and aggregator state, refreshing
// the TTL on every call.
func (s *Store) Publish(ctx context.Context, registry *breaker.Registry, aggregationBufferSize int) error {
	snapshot := Snapshot{
		Breakers:            registry.GetAllStates(),
		AggregationBufferSz: aggregationBufferSize,
		UpdatedAt:           time.Now(),
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, metricsKey, data, metricsTTL).Err()
}

// Get retrieves the last-published snapshot, or a zero Snapshot if
// nothing has been published yet.
func (s *Store) Get(ctx context.Context) (Snapshot, error) {
	data, err := s.redis.Get(ctx, metricsKey).Result()
	if err != nil {
		if err == redis.Nil {
			return Snapshot{}, nil
		}
		return Snapshot{}, err
	}
	var snapshot Snapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return Snapshot{}, err
	}
	return snapshot, nil
}
