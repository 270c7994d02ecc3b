package events

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/crossarb/internal/market"
)

// ═══════════════════════════════════════════════════════════════════════════════
// EVENT BUS - Typed order lifecycle events, per-market subscriptions
// ═══════════════════════════════════════════════════════════════════════════════
//
// Delivery is synchronous on the publisher's goroutine. The strategy relies
// on callbacks never running concurrently with an in-progress tick, so the
// bus does no dispatch of its own - it only fans out.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Kind identifies an order lifecycle event
type Kind string

const (
	BuyOrderCreated    Kind = "BUY_ORDER_CREATED"
	SellOrderCreated   Kind = "SELL_ORDER_CREATED"
	OrderFilled        Kind = "ORDER_FILLED"
	OrderFailed        Kind = "ORDER_FAILED"
	OrderCancelled     Kind = "ORDER_CANCELLED"
	OrderExpired       Kind = "ORDER_EXPIRED"
	BuyOrderCompleted  Kind = "BUY_ORDER_COMPLETED"
	SellOrderCompleted Kind = "SELL_ORDER_COMPLETED"
)

// Kinds lists every lifecycle event kind a strategy subscribes to
var Kinds = []Kind{
	BuyOrderCreated,
	SellOrderCreated,
	OrderFilled,
	OrderFailed,
	OrderCancelled,
	OrderExpired,
	BuyOrderCompleted,
	SellOrderCompleted,
}

// OrderEvent carries the payload of a lifecycle event
type OrderEvent struct {
	Kind      Kind
	Market    string
	OrderID   string
	OrderType market.Kind
	Symbol    string
	Price     decimal.Decimal
	Amount    decimal.Decimal
	Timestamp time.Time
}

// Handler receives an order event
type Handler func(ev OrderEvent)

// Subscription is a cancellable event binding
type Subscription struct {
	bus    *Bus
	market string
	kind   Kind
	id     int
}

// Cancel removes the subscription; further events are not delivered
func (s *Subscription) Cancel() {
	s.bus.unsubscribe(s)
}

type binding struct {
	id      int
	handler Handler
}

// Bus routes order events to per-(market, kind) handlers
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[string]map[Kind][]binding
}

// NewBus creates an empty event bus
func NewBus() *Bus {
	return &Bus{handlers: make(map[string]map[Kind][]binding)}
}

// Subscribe registers a handler for one event kind on one market
func (b *Bus) Subscribe(marketName string, kind Kind, h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[marketName] == nil {
		b.handlers[marketName] = make(map[Kind][]binding)
	}
	b.nextID++
	b.handlers[marketName][kind] = append(b.handlers[marketName][kind], binding{id: b.nextID, handler: h})
	return &Subscription{bus: b, market: marketName, kind: kind, id: b.nextID}
}

func (b *Bus) unsubscribe(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bindings := b.handlers[s.market][s.kind]
	for i, bd := range bindings {
		if bd.id == s.id {
			b.handlers[s.market][s.kind] = append(bindings[:i], bindings[i+1:]...)
			return
		}
	}
}

// Publish delivers an event to every handler bound to (event market, kind),
// synchronously and in subscription order.
func (b *Bus) Publish(ev OrderEvent) {
	b.mu.RLock()
	bindings := append([]binding(nil), b.handlers[ev.Market][ev.Kind]...)
	b.mu.RUnlock()

	for _, bd := range bindings {
		bd.handler(ev)
	}
}
