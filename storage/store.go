// Package storage defines the persistence contract the engine and
// aggregator issue writes against: activity fetch, marker
// compare-and-set, and the skip-flag update the aggregator uses to
// dispose of a below-minimum bucket without executing it. The pattern
// is grounded on storage/postgres.go and storage/mock_store.go
// (Quentinlac-poly): a single DataStore interface, a pgxpool-backed
// implementation, and an in-memory MockStore with call tracking and
// error injection for tests.
package storage

import (
	"context"

	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/models"
)

// DataStore is the persistence contract for leader activities. All
// writes are at-least-once from the caller's perspective; CompareAndSetMarker
// is the only primitive that gives at-most-once semantics, by requiring
// the caller to know the marker's expected prior state.
type DataStore interface {
	// GetActivity returns the activity by id, or (nil, nil) if absent.
	GetActivity(ctx context.Context, activityID string) (*models.Activity, error)

	// CompareAndSetMarker atomically transitions activityID's marker
	// from expected to next, persisting {$set: {botExcutedTime: next.ToSentinel()}}.
	// It returns (true, nil) if the CAS succeeded, (false, nil) if the
	// stored marker did not match expected (another worker owns it).
	CompareAndSetMarker(ctx context.Context, activityID string, expected models.MarkerState, next models.Marker) (bool, error)

	// MarkSkippedByAggregator sets an activity's skip flag ({bot: true})
	// without requiring the caller to know its prior marker state; used
	// when a whole bucket is dropped for being below the minimum order
	// size.
	MarkSkippedByAggregator(ctx context.Context, activityID string) error

	// HasProcessedTxHash reports whether a transaction hash has already
	// been mirrored, for the order validator's duplicate guard.
	HasProcessedTxHash(ctx context.Context, txHash string) (bool, error)

	// RecordProcessedTxHash registers a transaction hash as mirrored.
	RecordProcessedTxHash(ctx context.Context, txHash string) error
}
