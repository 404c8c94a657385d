// Package models holds the data types shared across the copy-trading
// pipeline: leader activities, processing markers, sized intents, and
// the copy-strategy configuration.
package models

import "time"

// Side is the direction of a fill.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Activity is a single leader fill ingested from the exchange. It is
// immutable once received; only its Marker advances, and only through
// the store's compare-and-set primitive.
type Activity struct {
	ID              string
	LeaderID        string
	ConditionID     string
	AssetID         string
	Side            Side
	Size            float64 // outcome units
	USDCSize        float64 // USD-denominated stablecoin, six-decimal precision
	Price           float64 // in [0,1]
	LeaderTimestamp time.Time
	TxHash          string
	Marker          Marker

	// Extra carries auxiliary leader-profile fields opaquely (title,
	// slug, pseudonym, ...). The pipeline never inspects it.
	Extra map[string]any
}

// Key returns the aggregation key for this activity.
func (a Activity) Key() AggregationKey {
	return AggregationKey{
		LeaderID:    a.LeaderID,
		ConditionID: a.ConditionID,
		AssetID:     a.AssetID,
		Side:        a.Side,
	}
}

// AggregationKey is the tuple that determines merge eligibility between
// two intents. Two intents with an equal key may be merged; different
// keys never merge.
type AggregationKey struct {
	LeaderID    string
	ConditionID string
	AssetID     string
	Side        Side
}
