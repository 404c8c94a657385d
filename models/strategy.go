package models

import "fmt"

// StrategyKind selects the copy-sizing algorithm.
type StrategyKind string

const (
	StrategyPercentage StrategyKind = "PERCENTAGE"
	StrategyFixed      StrategyKind = "FIXED"
	StrategyAdaptive   StrategyKind = "ADAPTIVE"
)

// Tier is one band of a piecewise-constant multiplier function over
// trader order size. MaxIsInfinite marks a tier with no upper bound;
// at most one tier may set it, and it must be the last tier in an
// ordered TieredMultipliers list.
type Tier struct {
	Min           float64
	Max           float64
	MaxIsInfinite bool
	Multiplier    float64
}

// CopyStrategyConfig is the copy-sizing policy configuration. It is a
// plain value: the sizing policy that consumes it is pure.
type CopyStrategyConfig struct {
	Strategy StrategyKind

	// CopySize is a percentage (PERCENTAGE) or an absolute USD amount
	// (FIXED). Unused for ADAPTIVE.
	CopySize float64

	MaxOrderSizeUSD    float64
	MinOrderSizeUSD    float64
	MaxPositionSizeUSD *float64

	// ADAPTIVE-only bounds.
	AdaptiveMinPercent float64
	AdaptiveMaxPercent float64
	AdaptiveThreshold  float64

	TradeMultiplier   *float64
	TieredMultipliers []Tier
}

// SizedIntent is the copy-sizing policy's output for a single leader
// fill: the strategy used, the pre- and post-cap amounts, which caps
// fired, and a human-readable reasoning trail.
type SizedIntent struct {
	Strategy StrategyKind

	TraderOrderSize float64
	BaseAmount      float64 // pre-caps
	FinalAmount     float64 // post-caps; 0 iff BelowMinimum or validator skip

	CappedByMax     bool
	ReducedByBalance bool
	BelowMinimum    bool

	Reasoning []string
}

// Note appends a step to the reasoning trail. Exported so the sizing
// package (and tests) can build the trail without a second type.
func (s *SizedIntent) Note(format string, args ...any) {
	s.Reasoning = append(s.Reasoning, fmt.Sprintf(format, args...))
}
