package market

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// MARKET TYPES - Shared vocabulary for the market port
// ═══════════════════════════════════════════════════════════════════════════════

// Side of an order
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Kind of an order
type Kind string

const (
	KindLimit  Kind = "LIMIT"
	KindMarket Kind = "MARKET"
)

// NetworkStatus reports exchange connectivity
type NetworkStatus string

const (
	NetworkConnected    NetworkStatus = "CONNECTED"
	NetworkDisconnected NetworkStatus = "DISCONNECTED"
)

// SymbolPair identifies one tradable instrument on one market.
// Immutable once constructed; equality is by (Market, Symbol).
type SymbolPair struct {
	Market string // exchange name, e.g. "binance"
	Symbol string // trading pair, e.g. "BTC-USDT"
	Base   string // base asset, e.g. "BTC"
	Quote  string // quote asset, e.g. "USDT"
}

// NewSymbolPair creates a symbol pair for a market
func NewSymbolPair(market, symbol, base, quote string) SymbolPair {
	return SymbolPair{Market: market, Symbol: symbol, Base: base, Quote: quote}
}

// Key returns the (market, symbol) identity key
func (p SymbolPair) Key() string {
	return p.Market + ":" + p.Symbol
}

func (p SymbolPair) String() string {
	return fmt.Sprintf("%s:%s", p.Market, p.Symbol)
}

// ArbPair is the same logical asset on two independently operated markets
type ArbPair struct {
	First  SymbolPair
	Second SymbolPair
}

func (a ArbPair) String() string {
	return a.First.String() + " <-> " + a.Second.String()
}

// PriceLevel is a single price level of an order book
type PriceLevel struct {
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// FlatFee is a fixed-amount trading fee, possibly denominated in an asset
// other than the trade's quote asset.
type FlatFee struct {
	Asset  string
	Amount decimal.Decimal
}

// FeeQuote is a fee quotation for a prospective trade
type FeeQuote struct {
	Percent  decimal.Decimal // e.g. 0.001 = 0.1%
	FlatFees []FlatFee
}
