package models

import "time"

// Contribution is one intent folded into an aggregation bucket, along
// with the activity id it came from (so the engine can mark every
// contributing activity on drain).
type Contribution struct {
	ActivityID string
	USDCSize   float64
	Price      float64
}

// Bucket is an aggregator entry for a single key. Owned exclusively by
// the aggregator; the list is non-empty for as long as the bucket
// exists.
type Bucket struct {
	Key            AggregationKey
	Contributions  []Contribution
	TotalUSDCSize  float64
	AveragePrice   float64
	WindowStart    time.Time
}

// AggregatedTrade is what the aggregator emits once a bucket's window
// has elapsed and it clears the minimum-size bar.
type AggregatedTrade struct {
	Key             AggregationKey
	ActivityIDs     []string
	TotalUSDCSize   float64
	AveragePrice    float64
	WindowStart     time.Time
}
