// Package config loads the process configuration from environment
// variables (via godotenv for local .env files) with an optional YAML
// overlay for the copy-strategy knobs, in the shape of
// analytics-worker/config/config.go's Load/Default/applyDefaults
// pattern (Quentinlac-poly): defaults first, then overlay, then env
// vars win.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/errtaxonomy"
	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/models"
	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/sizing"
)

// StrategyOverlay is the YAML shape for the copy-strategy portion of
// configuration, layered underneath the environment variables of the
// same name.
type StrategyOverlay struct {
	Strategy           string  `yaml:"strategy"`
	CopySize           float64 `yaml:"copy_size"`
	MaxOrderSizeUSD    float64 `yaml:"max_order_size_usd"`
	MinOrderSizeUSD    float64 `yaml:"min_order_size_usd"`
	AdaptiveMinPercent float64 `yaml:"adaptive_min_percent"`
	AdaptiveMaxPercent float64 `yaml:"adaptive_max_percent"`
	AdaptiveThreshold  float64 `yaml:"adaptive_threshold"`
	TieredMultipliers  string  `yaml:"tiered_multipliers"`

	// PerLeader overrides the global strategy for individual leader
	// IDs, mirroring the per-user copy settings lookup pattern of
	// storage.GetUserCopySettings in copy_trader.go's executeBuy.
	// Unset fields on an entry fall back to the global default.
	PerLeader map[string]StrategyOverlay `yaml:"per_leader"`
}

// Config is the fully resolved process configuration.
type Config struct {
	RPCURL              string
	USDCContractAddress string
	NetworkRetryLimit   int
	RequestTimeout      time.Duration
	AggregationWindow   time.Duration
	Strategy            models.CopyStrategyConfig
	PerLeaderStrategy   map[string]models.CopyStrategyConfig
}

// StrategyFor returns the per-leader strategy override for leaderID if
// one is configured, otherwise the global default.
func (c *Config) StrategyFor(leaderID string) models.CopyStrategyConfig {
	if override, ok := c.PerLeaderStrategy[leaderID]; ok {
		return override
	}
	return c.Strategy
}

// Load reads a .env file (if present, via godotenv), an optional YAML
// overlay at overlayPath, then environment variables, in that priority
// order (later sources win). Returns a CONFIGURATION taxonomy error on
// any missing-required or malformed field.
func Load(overlayPath string) (*Config, error) {
	_ = godotenv.Load() // best-effort; absence of a .env file is not an error

	overlay := StrategyOverlay{}
	if overlayPath != "" {
		data, err := os.ReadFile(overlayPath)
		if err == nil {
			if err := yaml.Unmarshal(data, &overlay); err != nil {
				return nil, errtaxonomy.NewConfiguration("BAD_OVERLAY", "failed to parse strategy overlay: "+err.Error(), err)
			}
		} else if !os.IsNotExist(err) {
			return nil, errtaxonomy.NewConfiguration("OVERLAY_READ_FAILED", err.Error(), err)
		}
	}

	cfg := &Config{}

	cfg.RPCURL = os.Getenv("RPC_URL")
	if cfg.RPCURL == "" {
		return nil, errtaxonomy.NewConfiguration("MISSING_RPC_URL", "RPC_URL is required", nil)
	}

	cfg.USDCContractAddress = os.Getenv("USDC_CONTRACT_ADDRESS")
	if cfg.USDCContractAddress == "" {
		return nil, errtaxonomy.NewConfiguration("MISSING_USDC_CONTRACT_ADDRESS", "USDC_CONTRACT_ADDRESS is required", nil)
	}

	retryLimit, err := envInt("NETWORK_RETRY_LIMIT", 3)
	if err != nil {
		return nil, err
	}
	if retryLimit < 1 {
		return nil, errtaxonomy.NewConfiguration("BAD_NETWORK_RETRY_LIMIT", "NETWORK_RETRY_LIMIT must be >= 1", nil)
	}
	cfg.NetworkRetryLimit = retryLimit

	timeoutMS, err := envInt("REQUEST_TIMEOUT_MS", 10000)
	if err != nil {
		return nil, err
	}
	cfg.RequestTimeout = time.Duration(timeoutMS) * time.Millisecond

	windowSeconds, err := envInt("TRADE_AGGREGATION_WINDOW_SECONDS", 60)
	if err != nil {
		return nil, err
	}
	cfg.AggregationWindow = time.Duration(windowSeconds) * time.Second

	strategy, err := resolveStrategy(overlay)
	if err != nil {
		return nil, err
	}
	cfg.Strategy = strategy

	if errs := sizing.ValidateCopyStrategyConfig(cfg.Strategy); len(errs) > 0 {
		return nil, errtaxonomy.NewConfiguration("INVALID_STRATEGY", errs[0], nil)
	}

	if len(overlay.PerLeader) > 0 {
		cfg.PerLeaderStrategy = make(map[string]models.CopyStrategyConfig, len(overlay.PerLeader))
		for leaderID, leaderOverlay := range overlay.PerLeader {
			if _, err := sizing.ParseTieredMultipliers(leaderOverlay.TieredMultipliers); err != nil {
				return nil, errtaxonomy.NewConfiguration("INVALID_PER_LEADER_STRATEGY", "leader "+leaderID+": "+err.Error(), err)
			}
			merged := mergeStrategyOverlay(leaderOverlay, cfg.Strategy)
			if errs := sizing.ValidateCopyStrategyConfig(merged); len(errs) > 0 {
				return nil, errtaxonomy.NewConfiguration("INVALID_PER_LEADER_STRATEGY", "leader "+leaderID+": "+errs[0], nil)
			}
			cfg.PerLeaderStrategy[leaderID] = merged
		}
	}

	return cfg, nil
}

// mergeStrategyOverlay applies a per-leader overlay on top of the
// resolved global strategy: any zero-valued field on the overlay falls
// back to the corresponding global value.
func mergeStrategyOverlay(overlay StrategyOverlay, base models.CopyStrategyConfig) models.CopyStrategyConfig {
	merged := base
	if overlay.Strategy != "" {
		merged.Strategy = models.StrategyKind(overlay.Strategy)
	}
	if overlay.CopySize != 0 {
		merged.CopySize = overlay.CopySize
	}
	if overlay.MaxOrderSizeUSD != 0 {
		merged.MaxOrderSizeUSD = overlay.MaxOrderSizeUSD
	}
	if overlay.MinOrderSizeUSD != 0 {
		merged.MinOrderSizeUSD = overlay.MinOrderSizeUSD
	}
	if overlay.AdaptiveMinPercent != 0 {
		merged.AdaptiveMinPercent = overlay.AdaptiveMinPercent
	}
	if overlay.AdaptiveMaxPercent != 0 {
		merged.AdaptiveMaxPercent = overlay.AdaptiveMaxPercent
	}
	if overlay.AdaptiveThreshold != 0 {
		merged.AdaptiveThreshold = overlay.AdaptiveThreshold
	}
	if overlay.TieredMultipliers != "" {
		if tiers, err := sizing.ParseTieredMultipliers(overlay.TieredMultipliers); err == nil {
			merged.TieredMultipliers = tiers
		}
	}
	return merged
}

func resolveStrategy(overlay StrategyOverlay) (models.CopyStrategyConfig, error) {
	strategy := overlay.Strategy
	if v := os.Getenv("COPY_STRATEGY"); v != "" {
		strategy = v
	}
	if strategy == "" {
		strategy = string(models.StrategyPercentage)
	}

	for _, name := range []string{"COPY_SIZE", "MAX_ORDER_SIZE_USD", "MIN_ORDER_SIZE_USD", "ADAPTIVE_MIN_PERCENT", "ADAPTIVE_MAX_PERCENT", "ADAPTIVE_THRESHOLD"} {
		if v := os.Getenv(name); v != "" {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				return models.CopyStrategyConfig{}, errtaxonomy.NewConfiguration("BAD_"+name, name+" must be a number: "+err.Error(), err)
			}
		}
	}

	copySize := envFloatOr("COPY_SIZE", overlay.CopySize, 10)
	maxOrder := envFloatOr("MAX_ORDER_SIZE_USD", overlay.MaxOrderSizeUSD, 100)
	minOrder := envFloatOr("MIN_ORDER_SIZE_USD", overlay.MinOrderSizeUSD, 1)
	adaptiveMin := envFloatOr("ADAPTIVE_MIN_PERCENT", overlay.AdaptiveMinPercent, 5)
	adaptiveMax := envFloatOr("ADAPTIVE_MAX_PERCENT", overlay.AdaptiveMaxPercent, 15)
	adaptiveThreshold := envFloatOr("ADAPTIVE_THRESHOLD", overlay.AdaptiveThreshold, 1000)

	tieredSpec := overlay.TieredMultipliers
	if v := os.Getenv("TIERED_MULTIPLIERS"); v != "" {
		tieredSpec = v
	}
	tiers, err := sizing.ParseTieredMultipliers(tieredSpec)
	if err != nil {
		return models.CopyStrategyConfig{}, errtaxonomy.NewConfiguration("BAD_TIERED_MULTIPLIERS", err.Error(), err)
	}

	return models.CopyStrategyConfig{
		Strategy:           models.StrategyKind(strategy),
		CopySize:           copySize,
		MaxOrderSizeUSD:    maxOrder,
		MinOrderSizeUSD:    minOrder,
		AdaptiveMinPercent: adaptiveMin,
		AdaptiveMaxPercent: adaptiveMax,
		AdaptiveThreshold:  adaptiveThreshold,
		TieredMultipliers:  tiers,
	}, nil
}

func envInt(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errtaxonomy.NewConfiguration("BAD_"+name, name+" must be an integer: "+err.Error(), err)
	}
	return n, nil
}

func envFloatOr(name string, overlayValue, def float64) float64 {
	if v := os.Getenv(name); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	if overlayValue != 0 {
		return overlayValue
	}
	return def
}
