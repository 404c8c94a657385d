// Package execution drives an activity from a validated intent to a
// posted order and a final marker, in the log-then-persist style of
// copy_trader.go's executeBuy/executeSell (Quentinlac-poly): the
// engine never lets a post outlive its marker bookkeeping, and never
// retries inline — retry is the caller's responsibility, driven by
// whether the marker is left IN_FLIGHT or advanced to a terminal state.
package execution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/errtaxonomy"
	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/models"
	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/orderclient"
	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/storage"
	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/validator"
)

// Engine executes trades at most once per activity.
type Engine struct {
	Store  storage.DataStore
	Client orderclient.Client
	logger *slog.Logger
}

// New constructs an Engine.
func New(store storage.DataStore, client orderclient.Client, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{Store: store, Client: client, logger: logger}
}

// ExecuteTrade runs one activity through the CAS-guarded lifecycle:
// UNSEEN -> IN_FLIGHT, validate, post, then SKIPPED or COMPLETED. v is
// the validator to run this specific activity against — passed in
// rather than held on the Engine, since a shared field would race
// across the concurrent callers that drive ExecuteTrade (the poll loop
// and the realtime feed can both be validating activities from
// different leaders, each needing its own per-leader strategy, at the
// same time). A failed initial CAS means another worker already owns
// the activity and is not itself an error.
func (e *Engine) ExecuteTrade(ctx context.Context, v *validator.Validator, activityID, followerAddress string) error {
	activity, err := e.Store.GetActivity(ctx, activityID)
	if err != nil {
		return err
	}
	if activity == nil {
		return errtaxonomy.NewValidation("ACTIVITY_NOT_FOUND", fmt.Sprintf("activity %s not found", activityID), nil)
	}

	owned, err := e.Store.CompareAndSetMarker(ctx, activityID, models.MarkerUnseen, models.Marker{State: models.MarkerInFlight, At: time.Now()})
	if err != nil {
		return err
	}
	if !owned {
		e.logger.Debug("activity already owned by another worker", "activityId", activityID)
		return nil
	}

	decision, err := v.ValidateTrade(ctx, *activity, followerAddress)
	if err != nil {
		return err
	}
	if !decision.IsValid {
		if _, err := e.Store.CompareAndSetMarker(ctx, activityID, models.MarkerInFlight, models.Marker{State: models.MarkerSkipped}); err != nil {
			return err
		}
		e.logger.Info("activity skipped by validator", "activityId", activityID, "reason", decision.Reason)
		return nil
	}

	req := orderclient.OrderRequest{
		Asset: activity.AssetID,
		Side:  activity.Side,
		Size:  decision.Sized.FinalAmount,
		Price: activity.Price,
	}

	if _, err := e.postOrder(ctx, req); err != nil {
		classified := orderclient.Classify(err)
		taxErr, _ := errtaxonomy.As(classified)
		if taxErr != nil && !taxErr.IsRetryable {
			if _, cerr := e.Store.CompareAndSetMarker(ctx, activityID, models.MarkerInFlight, models.Marker{State: models.MarkerSkipped}); cerr != nil {
				return cerr
			}
			e.logger.Warn("order post failed with a non-retryable error, activity skipped", "activityId", activityID, "error", classified)
			return nil
		}
		// Marker stays IN_FLIGHT for the retry policy to re-attempt later.
		e.logger.Error("order post failed", "activityId", activityID, "error", classified)
		return classified
	}

	if _, err := e.Store.CompareAndSetMarker(ctx, activityID, models.MarkerInFlight, models.Marker{State: models.MarkerCompleted, At: time.Now()}); err != nil {
		return err
	}
	if activity.TxHash != "" {
		if err := e.Store.RecordProcessedTxHash(ctx, activity.TxHash); err != nil {
			e.logger.Error("failed to record processed tx hash", "activityId", activityID, "error", err)
			return err
		}
	}
	return nil
}

func (e *Engine) postOrder(ctx context.Context, req orderclient.OrderRequest) (orderclient.OrderResult, error) {
	if req.Side == models.SideSell && req.Price >= orderclient.HighPriceSellThreshold {
		if limitClient, ok := e.Client.(orderclient.LimitOrderClient); ok {
			return limitClient.PostLimitOrder(ctx, req, req.Price)
		}
	}
	return e.Client.PostOrder(ctx, req)
}

// ExecuteAggregatedTrades posts one order per aggregated bucket, then
// marks all of its contributing activities COMPLETED atomically
// per-activity. Below-minimum buckets never reach here — the aggregator
// has already marked them skipped on drain.
func (e *Engine) ExecuteAggregatedTrades(ctx context.Context, aggregated []models.AggregatedTrade) error {
	for _, trade := range aggregated {
		req := orderclient.OrderRequest{
			Asset: trade.Key.AssetID,
			Side:  trade.Key.Side,
			Size:  trade.TotalUSDCSize,
			Price: trade.AveragePrice,
		}
		if _, err := e.postOrder(ctx, req); err != nil {
			classified := orderclient.Classify(err)
			e.logger.Error("aggregated order post failed", "key", trade.Key, "error", classified)
			return classified
		}
		for _, activityID := range trade.ActivityIDs {
			if _, err := e.Store.CompareAndSetMarker(ctx, activityID, models.MarkerInFlight, models.Marker{State: models.MarkerCompleted, At: time.Now()}); err != nil {
				e.logger.Error("failed to mark contributing activity completed", "activityId", activityID, "error", err)
				return err
			}
			contributor, err := e.Store.GetActivity(ctx, activityID)
			if err != nil {
				e.logger.Error("failed to look up completed activity for tx hash recording", "activityId", activityID, "error", err)
				return err
			}
			if contributor != nil && contributor.TxHash != "" {
				if err := e.Store.RecordProcessedTxHash(ctx, contributor.TxHash); err != nil {
					e.logger.Error("failed to record processed tx hash", "activityId", activityID, "error", err)
					return err
				}
			}
		}
	}
	return nil
}
