package sizing

import (
	"math"
	"testing"

	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/models"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestCalculateOrderSize_PercentageBasicCase(t *testing.T) {
	config := models.CopyStrategyConfig{
		Strategy:        models.StrategyPercentage,
		CopySize:        10,
		MaxOrderSizeUSD: 100,
		MinOrderSizeUSD: 1,
	}
	intent := CalculateOrderSize(config, 100, 50, 0)
	if !approxEqual(intent.BaseAmount, 10) || !approxEqual(intent.FinalAmount, 10) {
		t.Fatalf("intent = %+v, want base=10 final=10", intent)
	}
	if intent.CappedByMax || intent.ReducedByBalance || intent.BelowMinimum {
		t.Fatalf("intent = %+v, want no flags set", intent)
	}
}

func TestCalculateOrderSize_CappedByMax(t *testing.T) {
	config := models.CopyStrategyConfig{
		Strategy:        models.StrategyPercentage,
		CopySize:        10,
		MaxOrderSizeUSD: 5,
		MinOrderSizeUSD: 1,
	}
	intent := CalculateOrderSize(config, 100, 50, 0)
	if !approxEqual(intent.FinalAmount, 5) || !intent.CappedByMax {
		t.Fatalf("intent = %+v, want final=5 cappedByMax=true", intent)
	}
}

func TestCalculateOrderSize_ReducedByBalance(t *testing.T) {
	config := models.CopyStrategyConfig{
		Strategy:        models.StrategyPercentage,
		CopySize:        10,
		MaxOrderSizeUSD: 100,
		MinOrderSizeUSD: 1,
	}
	intent := CalculateOrderSize(config, 100, 5, 0)
	if !approxEqual(intent.FinalAmount, 4.95) || !intent.ReducedByBalance {
		t.Fatalf("intent = %+v, want final=4.95 reducedByBalance=true", intent)
	}
}

func TestCalculateOrderSize_BelowMinimumIsSuppressed(t *testing.T) {
	config := models.CopyStrategyConfig{
		Strategy:        models.StrategyPercentage,
		CopySize:        10,
		MaxOrderSizeUSD: 100,
		MinOrderSizeUSD: 5,
	}
	intent := CalculateOrderSize(config, 10, 100, 0)
	if !approxEqual(intent.FinalAmount, 0) || !intent.BelowMinimum {
		t.Fatalf("intent = %+v, want final=0 belowMinimum=true", intent)
	}
}

func TestCalculateOrderSize_PositionCapReducesToRemainingRoom(t *testing.T) {
	maxPosition := 30.0
	config := models.CopyStrategyConfig{
		Strategy:           models.StrategyPercentage,
		CopySize:           50,
		MaxOrderSizeUSD:    100,
		MinOrderSizeUSD:    1,
		MaxPositionSizeUSD: &maxPosition,
	}
	intent := CalculateOrderSize(config, 100, 1000, 25)
	if !approxEqual(intent.FinalAmount, 5) {
		t.Fatalf("intent = %+v, want final=5 (30-25 room left)", intent)
	}
}

func TestCalculateOrderSize_PositionAlreadyAtCapYieldsZero(t *testing.T) {
	maxPosition := 30.0
	config := models.CopyStrategyConfig{
		Strategy:           models.StrategyPercentage,
		CopySize:           50,
		MaxOrderSizeUSD:    100,
		MinOrderSizeUSD:    0,
		MaxPositionSizeUSD: &maxPosition,
	}
	intent := CalculateOrderSize(config, 100, 1000, 30)
	if !approxEqual(intent.FinalAmount, 0) {
		t.Fatalf("intent = %+v, want final=0", intent)
	}
}

func TestCalculateOrderSize_ZeroCopySizeYieldsZero(t *testing.T) {
	config := models.CopyStrategyConfig{
		Strategy:        models.StrategyPercentage,
		CopySize:        0,
		MaxOrderSizeUSD: 100,
		MinOrderSizeUSD: 0,
	}
	intent := CalculateOrderSize(config, 100, 1000, 0)
	if !approxEqual(intent.FinalAmount, 0) {
		t.Fatalf("intent = %+v, want final=0", intent)
	}
	if intent.BelowMinimum {
		t.Fatalf("intent = %+v, want belowMinimum=false when minOrderSizeUSD is 0", intent)
	}
}

func TestCalculateOrderSize_FixedStrategyIgnoresTraderOrderSize(t *testing.T) {
	config := models.CopyStrategyConfig{
		Strategy:        models.StrategyFixed,
		CopySize:        15,
		MaxOrderSizeUSD: 100,
		MinOrderSizeUSD: 1,
	}
	small := CalculateOrderSize(config, 1, 1000, 0)
	large := CalculateOrderSize(config, 10000, 1000, 0)
	if !approxEqual(small.FinalAmount, 15) || !approxEqual(large.FinalAmount, 15) {
		t.Fatalf("fixed strategy should always yield copySize regardless of trader order size, got %v and %v", small.FinalAmount, large.FinalAmount)
	}
}

// The three-tier example applied to a FIXED base of $10 reproduces the
// canonical worked numbers exactly (20 / 10 / 5): each trader order size
// falls in a distinct band and the base amount is multiplied by that
// band's factor. See DESIGN.md for why this scenario only holds
// together arithmetically against a flat base rather than a
// percentage-of-trader-order base.
func TestGetTradeMultiplier_TieredBandsOnFixedBase(t *testing.T) {
	tiers := []models.Tier{
		{Min: 0, Max: 50, Multiplier: 2.0},
		{Min: 50, Max: 200, Multiplier: 1.0},
		{Min: 200, MaxIsInfinite: true, Multiplier: 0.5},
	}
	config := models.CopyStrategyConfig{
		Strategy:          models.StrategyFixed,
		CopySize:          10,
		MaxOrderSizeUSD:   1000,
		MinOrderSizeUSD:   0,
		TieredMultipliers: tiers,
	}

	cases := []struct {
		trader float64
		want   float64
	}{
		{25, 20},
		{100, 10},
		{300, 5},
	}
	for _, c := range cases {
		intent := CalculateOrderSize(config, c.trader, 1000, 0)
		if !approxEqual(intent.FinalAmount, c.want) {
			t.Fatalf("trader=%v: finalAmount = %v, want %v", c.trader, intent.FinalAmount, c.want)
		}
	}
}

// The same tier bands applied against a genuine PERCENTAGE base scale
// with trader order size as documented: baseAmount = trader*copySize/100,
// then multiplied by the matching band's factor.
func TestGetTradeMultiplier_TieredBandsOnPercentageBase(t *testing.T) {
	tiers := []models.Tier{
		{Min: 0, Max: 50, Multiplier: 2.0},
		{Min: 50, Max: 200, Multiplier: 1.0},
		{Min: 200, MaxIsInfinite: true, Multiplier: 0.5},
	}
	config := models.CopyStrategyConfig{
		Strategy:          models.StrategyPercentage,
		CopySize:          10,
		MaxOrderSizeUSD:   1000,
		MinOrderSizeUSD:   0,
		TieredMultipliers: tiers,
	}

	cases := []struct {
		trader float64
		want   float64
	}{
		{25, 5},   // 25*0.10=2.5 * 2.0
		{100, 10}, // 100*0.10=10 * 1.0
		{300, 15}, // 300*0.10=30 * 0.5
	}
	for _, c := range cases {
		intent := CalculateOrderSize(config, c.trader, 1000, 0)
		if !approxEqual(intent.FinalAmount, c.want) {
			t.Fatalf("trader=%v: finalAmount = %v, want %v", c.trader, intent.FinalAmount, c.want)
		}
	}
}

func TestGetTradeMultiplier_BelowFirstTierFallsBackToFlatMultiplier(t *testing.T) {
	flat := 0.75
	tiers := []models.Tier{
		{Min: 100, Max: 200, Multiplier: 1.0},
	}
	config := models.CopyStrategyConfig{
		TieredMultipliers: tiers,
		TradeMultiplier:   &flat,
	}
	m := GetTradeMultiplier(config, 10)
	if m != flat {
		t.Fatalf("multiplier = %v, want flat fallback %v", m, flat)
	}
}

func TestGetTradeMultiplier_NoConfigDefaultsToOne(t *testing.T) {
	m := GetTradeMultiplier(models.CopyStrategyConfig{}, 500)
	if m != 1.0 {
		t.Fatalf("multiplier = %v, want 1.0", m)
	}
}

// adaptivePercent (the share of the trader's order copied) is
// non-increasing in traderOrderSize; the resulting dollar baseAmount is
// not (a bigger trade copied at a smaller share can still be a bigger
// dollar amount), so the monotonicity property is checked on the
// percentage, not on BaseAmount.
func TestAdaptivePercent_NonIncreasing(t *testing.T) {
	config := models.CopyStrategyConfig{
		Strategy:           models.StrategyAdaptive,
		MaxOrderSizeUSD:    1e9,
		MinOrderSizeUSD:    0,
		AdaptiveMinPercent: 5,
		AdaptiveMaxPercent: 15,
		AdaptiveThreshold:  1000,
	}
	sizes := []float64{1, 10, 100, 500, 1000, 2000, 5000, 50000}
	prevPct := math.Inf(1)
	for _, s := range sizes {
		pct := adaptivePercent(config, s)
		if pct > prevPct+1e-9 {
			t.Fatalf("adaptivePercent increased at traderOrderSize=%v: %v > %v", s, pct, prevPct)
		}
		prevPct = pct
	}
}

func TestParseTieredMultipliers_RoundTrip(t *testing.T) {
	tiers, err := ParseTieredMultipliers("0-50:2.0,50-200:1.0,200+:0.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tiers) != 3 {
		t.Fatalf("len(tiers) = %d, want 3", len(tiers))
	}
	serialized := SerializeTieredMultipliers(tiers)
	reparsed, err := ParseTieredMultipliers(serialized)
	if err != nil {
		t.Fatalf("unexpected error reparsing %q: %v", serialized, err)
	}
	if len(reparsed) != len(tiers) {
		t.Fatalf("round-trip length mismatch: %d != %d", len(reparsed), len(tiers))
	}
}

func TestParseTieredMultipliers_RejectsOverlap(t *testing.T) {
	_, err := ParseTieredMultipliers("0-100:1.0,50-200:1.0")
	if err == nil {
		t.Fatal("expected an overlap error")
	}
}

func TestParseTieredMultipliers_RejectsNonLastInfiniteTier(t *testing.T) {
	_, err := ParseTieredMultipliers("0+:1.0,100-200:1.0")
	if err == nil {
		t.Fatal("expected a non-last-infinite-tier error")
	}
}

func TestParseTieredMultipliers_RejectsNegativeMultiplier(t *testing.T) {
	_, err := ParseTieredMultipliers("0-100:-1.0")
	if err == nil {
		t.Fatal("expected a negative multiplier error")
	}
}

func TestValidateCopyStrategyConfig_RejectsBadPercentage(t *testing.T) {
	errs := ValidateCopyStrategyConfig(models.CopyStrategyConfig{
		Strategy:        models.StrategyPercentage,
		CopySize:        150,
		MaxOrderSizeUSD: 100,
	})
	if len(errs) == 0 {
		t.Fatal("expected a validation error for copySize > 100 on PERCENTAGE")
	}
}

func TestValidateCopyStrategyConfig_RequiresAdaptiveBounds(t *testing.T) {
	errs := ValidateCopyStrategyConfig(models.CopyStrategyConfig{
		Strategy:        models.StrategyAdaptive,
		CopySize:        10,
		MaxOrderSizeUSD: 100,
	})
	if len(errs) == 0 {
		t.Fatal("expected validation errors for missing adaptive bounds")
	}
}

func TestValidateCopyStrategyConfig_ValidConfigHasNoErrors(t *testing.T) {
	errs := ValidateCopyStrategyConfig(models.CopyStrategyConfig{
		Strategy:        models.StrategyPercentage,
		CopySize:        10,
		MaxOrderSizeUSD: 100,
		MinOrderSizeUSD: 1,
	})
	if len(errs) != 0 {
		t.Fatalf("unexpected validation errors: %v", errs)
	}
}

func TestGetRecommendedConfig_ScalesWithBalance(t *testing.T) {
	small := GetRecommendedConfig(100)
	if small.Strategy != models.StrategyPercentage {
		t.Fatalf("small balance: strategy = %v, want PERCENTAGE", small.Strategy)
	}
	large := GetRecommendedConfig(10000)
	if large.Strategy != models.StrategyAdaptive {
		t.Fatalf("large balance: strategy = %v, want ADAPTIVE", large.Strategy)
	}
}
