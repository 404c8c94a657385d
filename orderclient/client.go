// Package orderclient defines the external order-posting contract: a
// single post-order operation the execution engine calls after sizing
// and validating a trade. No partial-fill reporting is modeled — a post
// either succeeds or fails with a classifiable error. Grounded on
// api/clob.go's Client.PostOrder in Quentinlac-poly, trimmed to the
// {asset, side, size, price} shape the engine actually needs.
package orderclient

import (
	"context"

	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/errtaxonomy"
	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/models"
)

// OrderRequest is the order-post payload.
type OrderRequest struct {
	Asset string
	Side  models.Side
	Size  float64
	Price float64
}

// OrderResult carries the exchange-assigned identifiers of a
// successful post.
type OrderResult struct {
	OrderID string
	TxHash  string
}

// Client posts orders to the exchange. Implementations must return an
// *errtaxonomy.Error (or something errtaxonomy.Classify can promote) on
// failure so the engine can decide retry/skip/shutdown.
type Client interface {
	PostOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
}

// LimitOrderClient additionally supports posting a resting limit order,
// used for the high-price sell fallback (a trader selling into a market
// already trading close to $1 gets a limit order instead of a market
// sell, mirroring copy_trader.go's executeSell high-price branch).
type LimitOrderClient interface {
	Client
	PostLimitOrder(ctx context.Context, req OrderRequest, limitPrice float64) (OrderResult, error)
}

// HighPriceSellThreshold is the price at or above which a SELL is
// routed through PostLimitOrder instead of PostOrder.
const HighPriceSellThreshold = 0.96

// Classify normalizes a raw error from an order client into the
// taxonomy so callers never have to special-case unclassified errors.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := errtaxonomy.As(err); ok {
		return err
	}
	return errtaxonomy.Classify(err)
}
