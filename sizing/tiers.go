package sizing

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/models"
)

// ParseTieredMultipliers parses a "min-max:mult,...,min+:mult"
// comma-separated string, sorts tiers by min ascending, and rejects
// overlap, a non-last infinite tier, or a negative/non-numeric
// multiplier.
func ParseTieredMultipliers(spec string) ([]models.Tier, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	parts := strings.Split(spec, ",")
	tiers := make([]models.Tier, 0, len(parts))

	for _, part := range parts {
		tier, err := parseTier(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("tiered multiplier %q: %w", part, err)
		}
		tiers = append(tiers, tier)
	}

	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Min < tiers[j].Min })

	if err := validateTiers(tiers); err != nil {
		return nil, err
	}
	return tiers, nil
}

func parseTier(part string) (models.Tier, error) {
	rangeSpec, multSpec, ok := strings.Cut(part, ":")
	if !ok {
		return models.Tier{}, fmt.Errorf("expected 'range:multiplier'")
	}

	mult, err := strconv.ParseFloat(multSpec, 64)
	if err != nil {
		return models.Tier{}, fmt.Errorf("invalid multiplier %q", multSpec)
	}
	if mult < 0 {
		return models.Tier{}, fmt.Errorf("negative multiplier %q", multSpec)
	}

	if strings.HasSuffix(rangeSpec, "+") {
		minStr := strings.TrimSuffix(rangeSpec, "+")
		min, err := strconv.ParseFloat(minStr, 64)
		if err != nil {
			return models.Tier{}, fmt.Errorf("invalid min %q", minStr)
		}
		return models.Tier{Min: min, MaxIsInfinite: true, Multiplier: mult}, nil
	}

	minStr, maxStr, ok := strings.Cut(rangeSpec, "-")
	if !ok {
		return models.Tier{}, fmt.Errorf("expected 'min-max'")
	}
	min, err := strconv.ParseFloat(minStr, 64)
	if err != nil {
		return models.Tier{}, fmt.Errorf("invalid min %q", minStr)
	}
	max, err := strconv.ParseFloat(maxStr, 64)
	if err != nil {
		return models.Tier{}, fmt.Errorf("invalid max %q", maxStr)
	}
	return models.Tier{Min: min, Max: max, Multiplier: mult}, nil
}

// validateTiers checks non-overlap and that an infinite tier (if any) is
// last, on an already min-sorted slice.
func validateTiers(tiers []models.Tier) error {
	for i, tier := range tiers {
		if tier.MaxIsInfinite && i != len(tiers)-1 {
			return fmt.Errorf("infinite-upper tier must be last")
		}
		if !tier.MaxIsInfinite && tier.Max <= tier.Min {
			return fmt.Errorf("tier max must be greater than min: [%v, %v)", tier.Min, tier.Max)
		}
		if i > 0 {
			prev := tiers[i-1]
			prevMax := prev.Max
			if prev.MaxIsInfinite {
				prevMax = math.Inf(1)
			}
			if tier.Min < prevMax {
				return fmt.Errorf("overlapping tiers: [%v, %v) and [%v, %v)", prev.Min, prevMax, tier.Min, tier.Max)
			}
		}
	}
	return nil
}

// SerializeTieredMultipliers is the inverse of ParseTieredMultipliers
// (parse ∘ serialize is the identity on valid tier lists).
func SerializeTieredMultipliers(tiers []models.Tier) string {
	parts := make([]string, len(tiers))
	for i, tier := range tiers {
		if tier.MaxIsInfinite {
			parts[i] = fmt.Sprintf("%s+:%s", trimFloat(tier.Min), trimFloat(tier.Multiplier))
		} else {
			parts[i] = fmt.Sprintf("%s-%s:%s", trimFloat(tier.Min), trimFloat(tier.Max), trimFloat(tier.Multiplier))
		}
	}
	return strings.Join(parts, ",")
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// ValidateCopyStrategyConfig validates a CopyStrategyConfig, returning
// a list of human-readable error strings (empty if valid).
func ValidateCopyStrategyConfig(config models.CopyStrategyConfig) []string {
	var errs []string

	switch config.Strategy {
	case models.StrategyPercentage, models.StrategyFixed, models.StrategyAdaptive:
	default:
		errs = append(errs, fmt.Sprintf("strategy must be one of PERCENTAGE, FIXED, ADAPTIVE, got %q", config.Strategy))
	}

	if config.CopySize <= 0 {
		errs = append(errs, "copySize must be > 0")
	}
	if config.Strategy == models.StrategyPercentage && config.CopySize > 100 {
		errs = append(errs, "copySize must be <= 100 for PERCENTAGE strategy")
	}

	if config.MaxOrderSizeUSD <= 0 {
		errs = append(errs, "maxOrderSizeUSD must be > 0")
	}
	if config.MinOrderSizeUSD < 0 {
		errs = append(errs, "minOrderSizeUSD must be >= 0")
	}
	if config.MinOrderSizeUSD > config.MaxOrderSizeUSD {
		errs = append(errs, "minOrderSizeUSD must be <= maxOrderSizeUSD")
	}

	if config.Strategy == models.StrategyAdaptive {
		if config.AdaptiveMinPercent <= 0 || config.AdaptiveMaxPercent <= 0 {
			errs = append(errs, "adaptiveMinPercent and adaptiveMaxPercent are required for ADAPTIVE strategy")
		}
		if config.AdaptiveMinPercent > config.AdaptiveMaxPercent {
			errs = append(errs, "adaptiveMinPercent must be <= adaptiveMaxPercent")
		}
		if config.AdaptiveThreshold <= 0 {
			errs = append(errs, "adaptiveThreshold must be > 0 for ADAPTIVE strategy")
		}
	}

	if err := validateTiers(sortedCopy(config.TieredMultipliers)); err != nil {
		errs = append(errs, err.Error())
	}

	return errs
}

func sortedCopy(tiers []models.Tier) []models.Tier {
	out := make([]models.Tier, len(tiers))
	copy(out, tiers)
	sort.Slice(out, func(i, j int) bool { return out[i].Min < out[j].Min })
	return out
}

// GetRecommendedConfig returns a starter copy-strategy config scaled to
// the follower's balance.
func GetRecommendedConfig(balance float64) models.CopyStrategyConfig {
	switch {
	case balance < 500:
		return models.CopyStrategyConfig{
			Strategy:        models.StrategyPercentage,
			CopySize:        5,
			MaxOrderSizeUSD: 20,
			MinOrderSizeUSD: 1,
		}
	case balance < 2000:
		return models.CopyStrategyConfig{
			Strategy:        models.StrategyPercentage,
			CopySize:        10,
			MaxOrderSizeUSD: 50,
			MinOrderSizeUSD: 1,
		}
	default:
		maxOrder := balance / 20
		return models.CopyStrategyConfig{
			Strategy:           models.StrategyAdaptive,
			CopySize:           10,
			MaxOrderSizeUSD:    maxOrder,
			MinOrderSizeUSD:    1,
			AdaptiveMinPercent: 5,
			AdaptiveMaxPercent: 15,
			AdaptiveThreshold:  balance / 10,
		}
	}
}
