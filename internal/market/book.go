package market

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ORDERBOOK - In-memory depth state for one symbol
// ═══════════════════════════════════════════════════════════════════════════════

// OrderBook maintains sorted depth for a single symbol. Safe for concurrent
// use: feeds write snapshots, the strategy reads levels on its tick.
type OrderBook struct {
	mu     sync.RWMutex
	symbol string
	bids   []PriceLevel // descending price
	asks   []PriceLevel // ascending price
}

// NewOrderBook creates an empty book for a symbol
func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{symbol: symbol}
}

// Symbol returns the book's trading symbol
func (b *OrderBook) Symbol() string {
	return b.symbol
}

// ApplySnapshot replaces both sides of the book. Zero-size levels are
// dropped; sides are re-sorted so callers can rely on priority order.
func (b *OrderBook) ApplySnapshot(bids, asks []PriceLevel) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bids = sanitize(bids)
	b.asks = sanitize(asks)

	sort.Slice(b.bids, func(i, j int) bool {
		return b.bids[i].Price.GreaterThan(b.bids[j].Price)
	})
	sort.Slice(b.asks, func(i, j int) bool {
		return b.asks[i].Price.LessThan(b.asks[j].Price)
	})
}

func sanitize(levels []PriceLevel) []PriceLevel {
	out := make([]PriceLevel, 0, len(levels))
	for _, lvl := range levels {
		if lvl.Amount.GreaterThan(decimal.Zero) && lvl.Price.GreaterThan(decimal.Zero) {
			out = append(out, lvl)
		}
	}
	return out
}

// BestBid returns the highest bid price, zero when empty
func (b *OrderBook) BestBid() decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.bids) == 0 {
		return decimal.Zero
	}
	return b.bids[0].Price
}

// BestAsk returns the lowest ask price, zero when empty
func (b *OrderBook) BestAsk() decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.asks) == 0 {
		return decimal.Zero
	}
	return b.asks[0].Price
}

// Levels returns a copy of one side in priority order
func (b *OrderBook) Levels(side Side) []PriceLevel {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var src []PriceLevel
	if side == SideBuy {
		src = b.bids
	} else {
		src = b.asks
	}
	out := make([]PriceLevel, len(src))
	copy(out, src)
	return out
}

// Spread returns ask minus bid, zero when either side is empty
func (b *OrderBook) Spread() decimal.Decimal {
	bid := b.BestBid()
	ask := b.BestAsk()
	if bid.IsZero() || ask.IsZero() {
		return decimal.Zero
	}
	return ask.Sub(bid)
}

// Mid returns the mid price, zero when either side is empty
func (b *OrderBook) Mid() decimal.Decimal {
	bid := b.BestBid()
	ask := b.BestAsk()
	if bid.IsZero() || ask.IsZero() {
		return decimal.Zero
	}
	return bid.Add(ask).Div(decimal.NewFromInt(2))
}
