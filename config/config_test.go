package config

import (
	"os"
	"testing"

	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/errtaxonomy"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"RPC_URL", "USDC_CONTRACT_ADDRESS", "NETWORK_RETRY_LIMIT",
		"REQUEST_TIMEOUT_MS", "TRADE_AGGREGATION_WINDOW_SECONDS",
		"COPY_STRATEGY", "COPY_SIZE", "MAX_ORDER_SIZE_USD", "MIN_ORDER_SIZE_USD",
		"ADAPTIVE_MIN_PERCENT", "ADAPTIVE_MAX_PERCENT", "ADAPTIVE_THRESHOLD",
		"TIERED_MULTIPLIERS",
	} {
		os.Unsetenv(key)
	}
}

func TestLoad_MissingRPCURLIsConfigurationError(t *testing.T) {
	clearEnv(t)
	_, err := Load("")
	if err == nil {
		t.Fatal("expected a configuration error")
	}
	classified, ok := errtaxonomy.As(err)
	if !ok || classified.Kind != errtaxonomy.Configuration {
		t.Fatalf("expected a CONFIGURATION error, got %v", err)
	}
	if classified.Severity != errtaxonomy.SeverityCritical {
		t.Fatalf("severity = %v, want critical", classified.Severity)
	}
}

func TestLoad_ValidEnvironmentProducesDefaultsWhereUnset(t *testing.T) {
	clearEnv(t)
	os.Setenv("RPC_URL", "https://polygon-rpc.example")
	os.Setenv("USDC_CONTRACT_ADDRESS", "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174")
	defer clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.NetworkRetryLimit != 3 {
		t.Fatalf("NetworkRetryLimit = %d, want default 3", cfg.NetworkRetryLimit)
	}
	if cfg.Strategy.CopySize != 10 {
		t.Fatalf("CopySize = %v, want default 10", cfg.Strategy.CopySize)
	}
}

func TestLoad_RejectsRetryLimitBelowOne(t *testing.T) {
	clearEnv(t)
	os.Setenv("RPC_URL", "https://polygon-rpc.example")
	os.Setenv("USDC_CONTRACT_ADDRESS", "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174")
	os.Setenv("NETWORK_RETRY_LIMIT", "0")
	defer clearEnv(t)

	_, err := Load("")
	if err == nil {
		t.Fatal("expected a configuration error for NETWORK_RETRY_LIMIT=0")
	}
}

func TestLoad_RejectsMalformedTieredMultipliers(t *testing.T) {
	clearEnv(t)
	os.Setenv("RPC_URL", "https://polygon-rpc.example")
	os.Setenv("USDC_CONTRACT_ADDRESS", "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174")
	os.Setenv("TIERED_MULTIPLIERS", "0-50:2.0,25-100:1.0")
	defer clearEnv(t)

	_, err := Load("")
	if err == nil {
		t.Fatal("expected a configuration error for overlapping tiers")
	}
}
