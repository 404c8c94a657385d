// Package aggregator implements the process-wide keyed trade buffer:
// same-key trades accumulate into a weighted-average bucket until a
// time window elapses, at which point the buffer is drained by pull
// (not by timer). Grounded on the bucket/critical-section shape rather
// than any single teacher file — Quentinlac-poly executes each trade
// individually and has no batching stage — so the mutex-guarded map and
// no-external-call-under-lock discipline follow the breaker registry's
// pattern (breaker/registry.go) instead.
package aggregator

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/models"
	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/storage"
)

// DefaultWindow is the aggregation window New uses when given a
// negative window.
const DefaultWindow = 60 * time.Second

// bucket wraps models.Bucket with the creation-order sequence number
// needed for deterministic emission — an aggregator-internal detail,
// not part of the domain shape models.Bucket describes.
type bucket struct {
	models.Bucket
	sequence int
}

// Aggregator is the shared keyed buffer. Bucket creation, append, and
// drain all happen inside a single critical section; no external call
// is made while the lock is held.
type Aggregator struct {
	mu       sync.Mutex
	buckets  map[models.AggregationKey]*bucket
	window   time.Duration
	minOrder float64
	store    storage.DataStore
	nextSeq  int
	logger   *slog.Logger
}

// New constructs an Aggregator. minOrderSizeUSD is the threshold a
// ready bucket's totalUsdcSize is compared against to decide whether it
// is emitted or dropped as skipped. A zero window makes every bucket
// ready on the next drain.
func New(window time.Duration, minOrderSizeUSD float64, store storage.DataStore, logger *slog.Logger) *Aggregator {
	if window < 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		buckets:  make(map[models.AggregationKey]*bucket),
		window:   window,
		minOrder: minOrderSizeUSD,
		store:    store,
		logger:   logger,
	}
}

// AddToAggregationBuffer appends activityID's contribution to its
// key's bucket, creating the bucket on first arrival. windowStart is
// set once, on creation, and never touched again.
func (a *Aggregator) AddToAggregationBuffer(activity models.Activity) {
	key := activity.Key()
	contribution := models.Contribution{
		ActivityID: activity.ID,
		USDCSize:   activity.USDCSize,
		Price:      activity.Price,
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.buckets[key]
	if !ok {
		b = &bucket{Bucket: models.Bucket{Key: key, WindowStart: time.Now()}, sequence: a.nextSeq}
		a.nextSeq++
		a.buckets[key] = b
	}

	b.Contributions = append(b.Contributions, contribution)
	b.TotalUSDCSize, b.AveragePrice = weightedAverage(b.Contributions)
}

func weightedAverage(contributions []models.Contribution) (total, avgPrice float64) {
	var weighted float64
	for _, c := range contributions {
		total += c.USDCSize
		weighted += c.USDCSize * c.Price
	}
	if total == 0 {
		return 0, 0
	}
	return total, weighted / total
}

// GetReadyAggregatedTrades scans buckets and, for each whose window has
// elapsed, either emits it (totalUsdcSize >= minOrderSizeUSD) or drops
// it after marking every contributing activity skipped in persistence
// (below minimum). Ready buckets are removed from the buffer atomically
// with this scan. Emission order matches bucket creation order.
func (a *Aggregator) GetReadyAggregatedTrades(ctx context.Context) ([]models.AggregatedTrade, error) {
	now := time.Now()

	a.mu.Lock()
	var ready []*bucket
	for key, b := range a.buckets {
		if now.Sub(b.WindowStart) >= a.window {
			ready = append(ready, b)
			delete(a.buckets, key)
		}
	}
	a.mu.Unlock()

	sort.Slice(ready, func(i, j int) bool { return ready[i].sequence < ready[j].sequence })

	trades := make([]models.AggregatedTrade, 0, len(ready))
	for _, b := range ready {
		activityIDs := make([]string, len(b.Contributions))
		for i, c := range b.Contributions {
			activityIDs[i] = c.ActivityID
		}
		if b.TotalUSDCSize < a.minOrder {
			for _, id := range activityIDs {
				if err := a.store.MarkSkippedByAggregator(ctx, id); err != nil {
					a.logger.Error("failed to mark below-minimum activity skipped", "activityId", id, "error", err)
				}
			}
			a.logger.Info("dropped below-minimum bucket", "key", b.Key, "totalUsdcSize", b.TotalUSDCSize, "minOrderSizeUSD", a.minOrder)
			continue
		}
		trades = append(trades, models.AggregatedTrade{
			Key:           b.Key,
			ActivityIDs:   activityIDs,
			TotalUSDCSize: b.TotalUSDCSize,
			AveragePrice:  b.AveragePrice,
			WindowStart:   b.WindowStart,
		})
	}
	return trades, nil
}

// GetAggregationBufferSize returns the number of live buckets.
func (a *Aggregator) GetAggregationBufferSize() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buckets)
}
