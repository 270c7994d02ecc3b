package market

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lvl(price, amount string) PriceLevel {
	return PriceLevel{Price: decimal.RequireFromString(price), Amount: decimal.RequireFromString(amount)}
}

func TestApplySnapshotSortsSides(t *testing.T) {
	b := NewOrderBook("BTC-USD")
	b.ApplySnapshot(
		[]PriceLevel{lvl("101", "1"), lvl("102", "1"), lvl("100", "1")},
		[]PriceLevel{lvl("105", "1"), lvl("103", "1"), lvl("104", "1")},
	)

	bids := b.Levels(SideBuy)
	require.Len(t, bids, 3)
	assert.True(t, bids[0].Price.Equal(decimal.RequireFromString("102")))
	assert.True(t, bids[2].Price.Equal(decimal.RequireFromString("100")))

	asks := b.Levels(SideSell)
	require.Len(t, asks, 3)
	assert.True(t, asks[0].Price.Equal(decimal.RequireFromString("103")))
	assert.True(t, asks[2].Price.Equal(decimal.RequireFromString("105")))
}

func TestApplySnapshotDropsEmptyAndInvalidLevels(t *testing.T) {
	b := NewOrderBook("BTC-USD")
	b.ApplySnapshot(
		[]PriceLevel{lvl("100", "1"), lvl("99", "0"), {Price: decimal.Zero, Amount: decimal.NewFromInt(5)}},
		[]PriceLevel{lvl("101", "2"), {Price: decimal.NewFromInt(102), Amount: decimal.NewFromInt(-1)}},
	)

	assert.Len(t, b.Levels(SideBuy), 1)
	assert.Len(t, b.Levels(SideSell), 1)
}

func TestApplySnapshotReplacesPreviousDepth(t *testing.T) {
	b := NewOrderBook("BTC-USD")
	b.ApplySnapshot([]PriceLevel{lvl("100", "1")}, []PriceLevel{lvl("101", "1")})
	b.ApplySnapshot([]PriceLevel{lvl("98", "3")}, nil)

	assert.True(t, b.BestBid().Equal(decimal.RequireFromString("98")))
	assert.Empty(t, b.Levels(SideSell))
}

func TestBestPricesOnEmptyBook(t *testing.T) {
	b := NewOrderBook("BTC-USD")
	assert.True(t, b.BestBid().IsZero())
	assert.True(t, b.BestAsk().IsZero())
	assert.True(t, b.Spread().IsZero())
	assert.True(t, b.Mid().IsZero())
}

func TestSpreadAndMid(t *testing.T) {
	b := NewOrderBook("BTC-USD")
	b.ApplySnapshot([]PriceLevel{lvl("100", "1")}, []PriceLevel{lvl("104", "1")})

	assert.True(t, b.Spread().Equal(decimal.RequireFromString("4")))
	assert.True(t, b.Mid().Equal(decimal.RequireFromString("102")))
}

func TestLevelsReturnsCopy(t *testing.T) {
	b := NewOrderBook("BTC-USD")
	b.ApplySnapshot([]PriceLevel{lvl("100", "1")}, nil)

	bids := b.Levels(SideBuy)
	bids[0].Price = decimal.Zero

	assert.True(t, b.BestBid().Equal(decimal.RequireFromString("100")), "callers must not reach the book's own slices")
}

func TestSymbolPairKeyAndString(t *testing.T) {
	p := NewSymbolPair("binance", "BTC-USDT", "BTC", "USDT")
	assert.Equal(t, "binance:BTC-USDT", p.Key())
	assert.Equal(t, "binance:BTC-USDT", p.String())

	pair := ArbPair{First: p, Second: NewSymbolPair("kraken", "BTC-USD", "BTC", "USD")}
	assert.Equal(t, "binance:BTC-USDT <-> kraken:BTC-USD", pair.String())
}
