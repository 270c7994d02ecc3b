package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// MARKET PORT - Per-exchange capability set consumed by the strategy
// ═══════════════════════════════════════════════════════════════════════════════
//
// Real connectors live outside this repo. The strategy only ever talks to
// this interface; paper.Exchange is the in-repo implementation used for dry
// runs and tests.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Market is the per-exchange port. All calls are synchronous and bounded;
// callers treat any error as a transient market error scoped to the current
// pair evaluation.
type Market interface {
	// Name returns the exchange name, matching SymbolPair.Market.
	Name() string

	// BestBid returns the top-of-book bid price for a symbol.
	BestBid(symbol string) (decimal.Decimal, error)

	// BestAsk returns the top-of-book ask price for a symbol.
	BestAsk(symbol string) (decimal.Decimal, error)

	// BookLevels returns price levels ordered by priority: bids by
	// decreasing price, asks by increasing price.
	BookLevels(symbol string, side Side) ([]PriceLevel, error)

	// QuoteFee quotes the fee for a prospective trade of the given
	// cumulative amount.
	QuoteFee(base, quote string, kind Kind, side Side, amount, price decimal.Decimal) (FeeQuote, error)

	// QuantizeAmount rounds an order amount down to the market's minimum
	// tradable increment for the symbol.
	QuantizeAmount(symbol string, amount decimal.Decimal) (decimal.Decimal, error)

	// Balance returns the available balance of an asset.
	Balance(asset string) (decimal.Decimal, error)

	// SubmitOrder places an order and returns the exchange order id.
	// Price is ignored for market orders.
	SubmitOrder(pair SymbolPair, side Side, amount decimal.Decimal, kind Kind, price decimal.Decimal, expiry time.Time) (string, error)

	// CancelOrder cancels a resting order.
	CancelOrder(pair SymbolPair, orderID string) error

	// IsReady reports whether the market is initialized and usable.
	IsReady() bool

	// NetworkStatus reports current connectivity. Re-checked every tick,
	// never cached by callers.
	NetworkStatus() NetworkStatus
}
