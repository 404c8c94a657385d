package validator

import (
	"context"
	"testing"
	"time"

	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/breaker"
	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/chain"
	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/models"
	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/storage"
)

func newTestValidator(t *testing.T, store storage.DataStore, config models.CopyStrategyConfig) *Validator {
	t.Helper()
	// An unreachable RPC URL is fine: GetBalance is never reached in
	// these tests because the marker/staleness/duplicate checks reject
	// first.
	probe := chain.New("http://127.0.0.1:0", "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174", breaker.NewRegistry())
	return New(store, probe, nil, nil, config)
}

func TestValidateTrade_RejectsNonUnseenMarker(t *testing.T) {
	store := storage.NewMockStore()
	activity := models.Activity{ID: "a1", Marker: models.Marker{State: models.MarkerInFlight}}
	store.Seed(activity)

	v := newTestValidator(t, store, models.CopyStrategyConfig{})
	decision, err := v.ValidateTrade(context.Background(), activity, "0xfollower")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.IsValid {
		t.Fatal("expected isValid=false for a non-unseen marker")
	}
}

func TestValidateTrade_RejectsStaleActivity(t *testing.T) {
	store := storage.NewMockStore()
	activity := models.Activity{
		ID:              "a1",
		Marker:          models.UnseenMarker(),
		LeaderTimestamp: time.Now().Add(-time.Hour),
	}
	store.Seed(activity)

	v := newTestValidator(t, store, models.CopyStrategyConfig{})
	decision, err := v.ValidateTrade(context.Background(), activity, "0xfollower")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.IsValid || decision.Reason != "stale activity" {
		t.Fatalf("decision = %+v, want stale rejection", decision)
	}
}

func TestValidateTrade_RejectsDuplicateTxHash(t *testing.T) {
	store := storage.NewMockStore()
	activity := models.Activity{
		ID:              "a1",
		Marker:          models.UnseenMarker(),
		LeaderTimestamp: time.Now(),
		TxHash:          "0xdead",
	}
	store.Seed(activity)
	if err := store.RecordProcessedTxHash(context.Background(), "0xdead"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v := newTestValidator(t, store, models.CopyStrategyConfig{})
	decision, err := v.ValidateTrade(context.Background(), activity, "0xfollower")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.IsValid || decision.Reason != "duplicate transaction" {
		t.Fatalf("decision = %+v, want duplicate rejection", decision)
	}
}
