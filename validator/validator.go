// Package validator combines the sizing policy with freshness and
// duplicate checks to decide whether an activity should be copied,
// grounded on copy_trader.go's processTrade preflight checks
// (Quentinlac-poly): staleness against a max age, a marker check, and a
// duplicate-transaction guard, ahead of any sizing.
package validator

import (
	"context"
	"time"

	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/chain"
	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/models"
	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/sizing"
	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/storage"
)

// DefaultFreshnessHorizon is how old a leader activity may be before it
// is considered stale and rejected.
const DefaultFreshnessHorizon = 5 * time.Minute

// PositionLookup resolves the current position size for an
// (address, conditionID, assetID) tuple; it's usually backed by the
// order client or a local position cache, not the DataStore.
type PositionLookup func(ctx context.Context, address, conditionID, assetID string) (float64, error)

// Decision is the outcome of ValidateTrade.
type Decision struct {
	IsValid      bool
	Reason       string
	MyPosition   float64
	UserPosition float64
	MyBalance    float64
	UserBalance  float64
	Sized        models.SizedIntent
}

// Validator ties the sizing policy to freshness, marker, and duplicate
// checks.
type Validator struct {
	Store            storage.DataStore
	Balances         *chain.BalanceProbe
	MyPosition       PositionLookup
	LeaderPosition   PositionLookup
	Config           models.CopyStrategyConfig
	FreshnessHorizon time.Duration
}

// New constructs a Validator with the default freshness horizon.
func New(store storage.DataStore, balances *chain.BalanceProbe, myPos, leaderPos PositionLookup, config models.CopyStrategyConfig) *Validator {
	return &Validator{
		Store:            store,
		Balances:         balances,
		MyPosition:       myPos,
		LeaderPosition:   leaderPos,
		Config:           config,
		FreshnessHorizon: DefaultFreshnessHorizon,
	}
}

// ValidateTrade produces a copy decision for activity, combining the
// sizing policy's below-minimum/zero outcomes, a staleness check, the
// activity's processing marker, and a duplicate transaction-hash guard.
// On IsValid=true, Sized carries the sizing outputs so the engine need
// not recompute them.
func (v *Validator) ValidateTrade(ctx context.Context, activity models.Activity, followerAddress string) (Decision, error) {
	if activity.Marker.State != models.MarkerUnseen {
		return Decision{IsValid: false, Reason: "already processed"}, nil
	}

	if time.Since(activity.LeaderTimestamp) > v.horizon() {
		return Decision{IsValid: false, Reason: "stale activity"}, nil
	}

	if activity.TxHash != "" {
		seen, err := v.Store.HasProcessedTxHash(ctx, activity.TxHash)
		if err != nil {
			return Decision{}, err
		}
		if seen {
			return Decision{IsValid: false, Reason: "duplicate transaction"}, nil
		}
	}

	myBalance, err := v.Balances.GetBalance(ctx, followerAddress)
	if err != nil {
		return Decision{}, err
	}
	userBalance, err := v.Balances.GetBalance(ctx, activity.LeaderID)
	if err != nil {
		return Decision{}, err
	}

	var myPosition, userPosition float64
	if v.MyPosition != nil {
		myPosition, err = v.MyPosition(ctx, followerAddress, activity.ConditionID, activity.AssetID)
		if err != nil {
			return Decision{}, err
		}
	}
	if v.LeaderPosition != nil {
		userPosition, err = v.LeaderPosition(ctx, activity.LeaderID, activity.ConditionID, activity.AssetID)
		if err != nil {
			return Decision{}, err
		}
	}

	sized := sizing.CalculateOrderSize(v.Config, activity.USDCSize, myBalance, myPosition)

	decision := Decision{
		MyPosition:   myPosition,
		UserPosition: userPosition,
		MyBalance:    myBalance,
		UserBalance:  userBalance,
		Sized:        sized,
	}

	switch {
	case sized.BelowMinimum:
		decision.Reason = "Below minimum"
	case sized.FinalAmount == 0:
		decision.Reason = "Insufficient balance"
	default:
		decision.IsValid = true
	}

	return decision, nil
}

func (v *Validator) horizon() time.Duration {
	if v.FreshnessHorizon <= 0 {
		return DefaultFreshnessHorizon
	}
	return v.FreshnessHorizon
}
