// Package sizing implements the copy-sizing policy: a pure function
// mapping (config, trader order size, available balance, current
// position) to a sized order or a skip decision, plus config validation
// and tiered-multiplier parsing.
//
// The base-amount/multiplier/min/max shape is grounded on
// syncer/bot_execution_logic.go's CalculateBotBuyAmount and
// CalculateBotSellAmount, generalized from a single fixed multiplier
// into the full PERCENTAGE/FIXED/ADAPTIVE + tiered-multiplier policy.
// Everything here is side-effect free so it can be tested exhaustively.
package sizing

import (
	"math"

	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/models"
)

const balanceHaircut = 0.99

// CalculateOrderSize is the pure sizing function. currentPositionSize
// is assumed non-negative — short positions are out of scope.
func CalculateOrderSize(config models.CopyStrategyConfig, traderOrderSize, availableBalance, currentPositionSize float64) models.SizedIntent {
	intent := models.SizedIntent{
		Strategy:        config.Strategy,
		TraderOrderSize: traderOrderSize,
	}

	base := baseAmount(config, traderOrderSize)
	intent.Note("base amount from %s strategy: %.6f", config.Strategy, base)

	multiplier := GetTradeMultiplier(config, traderOrderSize)
	if multiplier != 1.0 {
		base *= multiplier
		intent.Note("applied multiplier %.4f: %.6f", multiplier, base)
	}
	if base < 0 {
		base = 0
	}
	intent.BaseAmount = base

	final := base
	if final > config.MaxOrderSizeUSD {
		final = config.MaxOrderSizeUSD
		intent.CappedByMax = true
		intent.Note("capped by maxOrderSizeUSD %.6f", config.MaxOrderSizeUSD)
	}

	if config.MaxPositionSizeUSD != nil {
		positionCap := *config.MaxPositionSizeUSD
		if currentPositionSize+final > positionCap {
			final = math.Max(0, positionCap-currentPositionSize)
			intent.Note("Reduced to fit position limit")
		}
	}

	if final > availableBalance {
		final = availableBalance * balanceHaircut
		intent.ReducedByBalance = true
		intent.Note("reduced to %.2f%% of available balance %.6f: %.6f", balanceHaircut*100, availableBalance, final)
	}

	if final < 0 {
		final = 0
	}

	if final < config.MinOrderSizeUSD {
		final = 0
		intent.BelowMinimum = true
		intent.Note("below minimum order size %.6f, suppressed", config.MinOrderSizeUSD)
	}

	intent.FinalAmount = final
	return intent
}

// baseAmount computes the pre-multiplier, pre-cap amount for the
// configured strategy.
func baseAmount(config models.CopyStrategyConfig, traderOrderSize float64) float64 {
	switch config.Strategy {
	case models.StrategyFixed:
		return config.CopySize
	case models.StrategyPercentage:
		return traderOrderSize * config.CopySize / 100
	case models.StrategyAdaptive:
		return traderOrderSize * adaptivePercent(config, traderOrderSize) / 100
	default:
		return 0
	}
}

// adaptivePercent computes the ADAPTIVE strategy's copy percentage: it
// scales linearly from adaptiveMaxPercent (small orders) down to
// adaptiveMinPercent as traderOrderSize approaches adaptiveThreshold,
// and keeps decreasing below adaptiveMinPercent beyond it (in inverse
// proportion to traderOrderSize, never below 0), so
// the copied share is non-increasing in traderOrderSize for a fixed
// config (the resulting dollar amount need not be, since it is share
// times a growing trader order size).
func adaptivePercent(config models.CopyStrategyConfig, traderOrderSize float64) float64 {
	t := config.AdaptiveThreshold
	if t <= 0 {
		return config.AdaptiveMinPercent
	}

	if traderOrderSize <= t {
		pct := config.AdaptiveMaxPercent - (traderOrderSize/t)*(config.AdaptiveMaxPercent-config.AdaptiveMinPercent)
		return clamp(pct, config.AdaptiveMinPercent, config.AdaptiveMaxPercent)
	}

	// Beyond the threshold, keep reducing the percentage proportionally
	// (never above adaptiveMinPercent) so larger orders are always copied at a
	// strictly smaller share than the threshold order.
	overshoot := traderOrderSize / t
	pct := config.AdaptiveMinPercent / overshoot
	return clamp(pct, 0, config.AdaptiveMinPercent)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// GetTradeMultiplier resolves the multiplier applied on top of the base
// amount: the first matching tiered-multiplier band, else the flat
// tradeMultiplier, else 1.0.
func GetTradeMultiplier(config models.CopyStrategyConfig, traderOrderSize float64) float64 {
	if len(config.TieredMultipliers) > 0 {
		for _, tier := range config.TieredMultipliers {
			if traderOrderSize < tier.Min {
				continue
			}
			if tier.MaxIsInfinite || traderOrderSize < tier.Max {
				return tier.Multiplier
			}
		}
		// No tier matched (traderOrderSize below the first tier's min);
		// fall through to the flat multiplier / default.
	}
	if config.TradeMultiplier != nil {
		return *config.TradeMultiplier
	}
	return 1.0
}
