package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesMatchingSubscribers(t *testing.T) {
	bus := NewBus()

	var got []string
	bus.Subscribe("alpha", OrderFilled, func(ev OrderEvent) { got = append(got, "a:"+ev.OrderID) })
	bus.Subscribe("alpha", OrderFailed, func(ev OrderEvent) { got = append(got, "wrong kind") })
	bus.Subscribe("beta", OrderFilled, func(ev OrderEvent) { got = append(got, "wrong market") })

	bus.Publish(OrderEvent{Kind: OrderFilled, Market: "alpha", OrderID: "1"})

	assert.Equal(t, []string{"a:1"}, got)
}

func TestPublishDeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus()

	var got []int
	for i := 1; i <= 3; i++ {
		i := i
		bus.Subscribe("alpha", OrderFilled, func(OrderEvent) { got = append(got, i) })
	}

	bus.Publish(OrderEvent{Kind: OrderFilled, Market: "alpha"})
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestPublishIsSynchronous(t *testing.T) {
	bus := NewBus()

	delivered := false
	bus.Subscribe("alpha", BuyOrderCreated, func(OrderEvent) { delivered = true })

	bus.Publish(OrderEvent{Kind: BuyOrderCreated, Market: "alpha"})
	assert.True(t, delivered, "delivery must complete before Publish returns")
}

func TestCancelStopsDelivery(t *testing.T) {
	bus := NewBus()

	var first, second int
	sub := bus.Subscribe("alpha", OrderFilled, func(OrderEvent) { first++ })
	bus.Subscribe("alpha", OrderFilled, func(OrderEvent) { second++ })

	bus.Publish(OrderEvent{Kind: OrderFilled, Market: "alpha"})
	sub.Cancel()
	bus.Publish(OrderEvent{Kind: OrderFilled, Market: "alpha"})

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}

func TestPublishWithoutSubscribersIsNoOp(t *testing.T) {
	bus := NewBus()
	assert.NotPanics(t, func() {
		bus.Publish(OrderEvent{Kind: OrderExpired, Market: "ghost"})
	})
}

func TestKindsCoverEveryLifecycleEvent(t *testing.T) {
	require.Len(t, Kinds, 8)
	seen := make(map[Kind]bool, len(Kinds))
	for _, k := range Kinds {
		seen[k] = true
	}
	for _, k := range []Kind{
		BuyOrderCreated, SellOrderCreated, OrderFilled, OrderFailed,
		OrderCancelled, OrderExpired, BuyOrderCompleted, SellOrderCompleted,
	} {
		assert.True(t, seen[k], "missing %s", k)
	}
}
