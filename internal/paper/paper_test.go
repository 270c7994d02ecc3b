package paper

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/crossarb/internal/events"
	"github.com/web3guy0/crossarb/internal/market"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestExchange(fees FeeSchedule) (*Exchange, *events.Bus, *[]events.OrderEvent) {
	bus := events.NewBus()
	ex := New("alpha", bus, fees)
	ex.SetBalance("BTC", dec("10"))
	ex.SetBalance("USD", dec("10000"))
	ex.Book("BTC-USD").ApplySnapshot(
		[]market.PriceLevel{{Price: dec("99"), Amount: dec("2")}},
		[]market.PriceLevel{{Price: dec("100"), Amount: dec("1")}, {Price: dec("101"), Amount: dec("4")}},
	)

	var seen []events.OrderEvent
	for _, kind := range events.Kinds {
		bus.Subscribe("alpha", kind, func(ev events.OrderEvent) { seen = append(seen, ev) })
	}
	return ex, bus, &seen
}

func pair() market.SymbolPair {
	return market.NewSymbolPair("alpha", "BTC-USD", "BTC", "USD")
}

func TestSubmitMarketOrderPublishesCreatedImmediately(t *testing.T) {
	ex, _, seen := newTestExchange(FeeSchedule{})

	id, err := ex.SubmitOrder(pair(), market.SideBuy, dec("1"), market.KindMarket, decimal.Zero, time.Time{})
	require.NoError(t, err)

	require.Len(t, *seen, 1)
	assert.Equal(t, events.BuyOrderCreated, (*seen)[0].Kind)
	assert.Equal(t, id, (*seen)[0].OrderID)
}

func TestSubmitRejectsNonPositiveAmount(t *testing.T) {
	ex, _, _ := newTestExchange(FeeSchedule{})

	_, err := ex.SubmitOrder(pair(), market.SideBuy, decimal.Zero, market.KindMarket, decimal.Zero, time.Time{})
	require.Error(t, err)
}

func TestMarketBuySettlesOnTick(t *testing.T) {
	ex, _, seen := newTestExchange(FeeSchedule{})

	id, err := ex.SubmitOrder(pair(), market.SideBuy, dec("2"), market.KindMarket, decimal.Zero, time.Time{})
	require.NoError(t, err)

	ex.Tick(time.Now())

	// Created, filled, completed.
	require.Len(t, *seen, 3)
	filled := (*seen)[1]
	completed := (*seen)[2]
	assert.Equal(t, events.OrderFilled, filled.Kind)
	assert.Equal(t, events.BuyOrderCompleted, completed.Kind)
	assert.Equal(t, id, completed.OrderID)

	// 1 @ 100 + 1 @ 101 = 201 for 2 units, average 100.5.
	assert.True(t, filled.Price.Equal(dec("100.5")), "avg price %s", filled.Price)
	assert.True(t, filled.Amount.Equal(dec("2")))

	btc, _ := ex.Balance("BTC")
	usd, _ := ex.Balance("USD")
	assert.True(t, btc.Equal(dec("12")))
	assert.True(t, usd.Equal(dec("9799")))
}

func TestMarketSellAppliesFee(t *testing.T) {
	ex, _, _ := newTestExchange(FeeSchedule{Percent: dec("0.01")})

	_, err := ex.SubmitOrder(pair(), market.SideSell, dec("1"), market.KindMarket, decimal.Zero, time.Time{})
	require.NoError(t, err)
	ex.Tick(time.Now())

	// Sold 1 @ 99, fee 0.99.
	btc, _ := ex.Balance("BTC")
	usd, _ := ex.Balance("USD")
	assert.True(t, btc.Equal(dec("9")))
	assert.True(t, usd.Equal(dec("10098.01")), "usd %s", usd)
}

func TestMarketOrderWithoutDepthFails(t *testing.T) {
	ex, _, seen := newTestExchange(FeeSchedule{})
	ex.Book("BTC-USD").ApplySnapshot(nil, nil)

	_, err := ex.SubmitOrder(pair(), market.SideBuy, dec("1"), market.KindMarket, decimal.Zero, time.Time{})
	require.NoError(t, err)
	ex.Tick(time.Now())

	require.Len(t, *seen, 2)
	assert.Equal(t, events.OrderFailed, (*seen)[1].Kind)
}

func TestLimitOrderExpiresOnTick(t *testing.T) {
	ex, _, seen := newTestExchange(FeeSchedule{})
	now := time.Now()

	id, err := ex.SubmitOrder(pair(), market.SideBuy, dec("1"), market.KindLimit, dec("95"), now.Add(time.Minute))
	require.NoError(t, err)

	ex.Tick(now.Add(30 * time.Second))
	require.Len(t, *seen, 1, "order must still rest before expiry")

	ex.Tick(now.Add(2 * time.Minute))
	require.Len(t, *seen, 2)
	assert.Equal(t, events.OrderExpired, (*seen)[1].Kind)
	assert.Equal(t, id, (*seen)[1].OrderID)
}

func TestCancelRestingLimitOrder(t *testing.T) {
	ex, _, seen := newTestExchange(FeeSchedule{})

	id, err := ex.SubmitOrder(pair(), market.SideSell, dec("1"), market.KindLimit, dec("105"), time.Now().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, ex.CancelOrder(pair(), id))
	require.Len(t, *seen, 2)
	assert.Equal(t, events.OrderCancelled, (*seen)[1].Kind)

	assert.Error(t, ex.CancelOrder(pair(), id), "second cancel hits an unknown order")
}

func TestQuantizeAmountFloorsToLotStep(t *testing.T) {
	ex, _, _ := newTestExchange(FeeSchedule{})
	ex.SetLotStep("BTC-USD", dec("0.01"))

	got, err := ex.QuantizeAmount("BTC-USD", dec("1.2345"))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("1.23")))

	// No step configured: pass through.
	got, err = ex.QuantizeAmount("ETH-USD", dec("1.2345"))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("1.2345")))
}

func TestQuoteFeeReturnsSchedule(t *testing.T) {
	flat := []market.FlatFee{{Asset: "USD", Amount: dec("0.5")}}
	ex, _, _ := newTestExchange(FeeSchedule{Percent: dec("0.002"), FlatFees: flat})

	fee, err := ex.QuoteFee("BTC", "USD", market.KindMarket, market.SideBuy, dec("1"), dec("100"))
	require.NoError(t, err)
	assert.True(t, fee.Percent.Equal(dec("0.002")))
	require.Len(t, fee.FlatFees, 1)

	// Mutating the returned slice must not corrupt the schedule.
	fee.FlatFees[0].Amount = decimal.Zero
	again, _ := ex.QuoteFee("BTC", "USD", market.KindMarket, market.SideBuy, dec("1"), dec("100"))
	assert.True(t, again.FlatFees[0].Amount.Equal(dec("0.5")))
}

func TestReadinessAndNetworkToggles(t *testing.T) {
	ex, _, _ := newTestExchange(FeeSchedule{})

	assert.True(t, ex.IsReady())
	assert.Equal(t, market.NetworkConnected, ex.NetworkStatus())

	ex.SetReady(false)
	ex.SetNetworkStatus(market.NetworkDisconnected)
	assert.False(t, ex.IsReady())
	assert.Equal(t, market.NetworkDisconnected, ex.NetworkStatus())
}

func TestUnknownSymbolErrors(t *testing.T) {
	ex, _, _ := newTestExchange(FeeSchedule{})

	_, err := ex.BestBid("ETH-USD")
	assert.Error(t, err)
	_, err = ex.BookLevels("ETH-USD", market.SideBuy)
	assert.Error(t, err)
}
