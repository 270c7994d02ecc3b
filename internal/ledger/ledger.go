package ledger

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/crossarb/internal/market"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ORDER LEDGER - In-flight order tracking
// ═══════════════════════════════════════════════════════════════════════════════
//
// The ledger exclusively owns TrackedOrder records. The strategy references
// them only through the start/stop operations and lookups below - never by
// direct mutation. At most one record exists per order id at any time.
//
// ═══════════════════════════════════════════════════════════════════════════════

// TrackedOrder is one in-flight order
type TrackedOrder struct {
	ID        string
	Pair      market.SymbolPair
	Side      market.Side
	Kind      market.Kind
	Price     decimal.Decimal // limit orders only; zero for market orders
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// Ledger tracks in-flight orders keyed by market-pair and order id
type Ledger struct {
	mu sync.RWMutex

	limitOrders  map[string]map[string]TrackedOrder // pair key -> order id -> order
	marketOrders map[string]map[string]TrackedOrder

	orderPair      map[string]market.SymbolPair // order id -> owning pair
	lastKnownKind  map[string]market.Kind       // order id -> last tracked kind
	pendingCancels map[string]struct{}

	// market orders older than this are assumed settled and pruned on tick
	settleHorizon time.Duration
}

// New creates an empty ledger. settleHorizon bounds how long a market order
// stays tracked without a completion event.
func New(settleHorizon time.Duration) *Ledger {
	return &Ledger{
		limitOrders:    make(map[string]map[string]TrackedOrder),
		marketOrders:   make(map[string]map[string]TrackedOrder),
		orderPair:      make(map[string]market.SymbolPair),
		lastKnownKind:  make(map[string]market.Kind),
		pendingCancels: make(map[string]struct{}),
		settleHorizon:  settleHorizon,
	}
}

func side(isBuy bool) market.Side {
	if isBuy {
		return market.SideBuy
	}
	return market.SideSell
}

// StartTrackingLimitOrder registers a resting limit order
func (l *Ledger) StartTrackingLimitOrder(pair market.SymbolPair, orderID string, isBuy bool, price, amount decimal.Decimal, now time.Time) {
	l.start(l.limitOrders, TrackedOrder{
		ID:        orderID,
		Pair:      pair,
		Side:      side(isBuy),
		Kind:      market.KindLimit,
		Price:     price,
		Amount:    amount,
		CreatedAt: now,
	})
}

// StartTrackingMarketOrder registers an in-flight market order
func (l *Ledger) StartTrackingMarketOrder(pair market.SymbolPair, orderID string, isBuy bool, amount decimal.Decimal, now time.Time) {
	l.start(l.marketOrders, TrackedOrder{
		ID:        orderID,
		Pair:      pair,
		Side:      side(isBuy),
		Kind:      market.KindMarket,
		Amount:    amount,
		CreatedAt: now,
	})
}

func (l *Ledger) start(arena map[string]map[string]TrackedOrder, o TrackedOrder) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, dup := l.orderPair[o.ID]; dup {
		log.Warn().Str("order_id", o.ID).Msg("Duplicate order id, replacing tracked entry")
		l.removeLocked(o.ID)
	}

	key := o.Pair.Key()
	if arena[key] == nil {
		arena[key] = make(map[string]TrackedOrder)
	}
	arena[key][o.ID] = o
	l.orderPair[o.ID] = o.Pair
	l.lastKnownKind[o.ID] = o.Kind
}

// StopTrackingLimitOrder removes a limit order; unknown ids are no-ops
func (l *Ledger) StopTrackingLimitOrder(pair market.SymbolPair, orderID string) {
	l.stop(l.limitOrders, pair, orderID)
}

// StopTrackingMarketOrder removes a market order; unknown ids are no-ops
func (l *Ledger) StopTrackingMarketOrder(pair market.SymbolPair, orderID string) {
	l.stop(l.marketOrders, pair, orderID)
}

func (l *Ledger) stop(arena map[string]map[string]TrackedOrder, pair market.SymbolPair, orderID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := pair.Key()
	if _, ok := arena[key][orderID]; !ok {
		return
	}
	delete(arena[key], orderID)
	if len(arena[key]) == 0 {
		delete(arena, key)
	}
	delete(l.orderPair, orderID)
	delete(l.lastKnownKind, orderID)
	delete(l.pendingCancels, orderID)
}

func (l *Ledger) removeLocked(orderID string) {
	pair, ok := l.orderPair[orderID]
	if !ok {
		return
	}
	key := pair.Key()
	delete(l.limitOrders[key], orderID)
	delete(l.marketOrders[key], orderID)
	delete(l.orderPair, orderID)
	delete(l.lastKnownKind, orderID)
	delete(l.pendingCancels, orderID)
}

// PairForOrderID returns the owning pair of a tracked order id
func (l *Ledger) PairForOrderID(orderID string) (market.SymbolPair, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pair, ok := l.orderPair[orderID]
	return pair, ok
}

// KindForOrderID returns the last known kind of a tracked order id
func (l *Ledger) KindForOrderID(orderID string) (market.Kind, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	kind, ok := l.lastKnownKind[orderID]
	return kind, ok
}

// RequestCancel marks a cancellation as pending. Returns false when a cancel
// for the order is already pending or the order is unknown, making repeat
// cancel requests no-ops.
func (l *Ledger) RequestCancel(orderID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.orderPair[orderID]; !ok {
		return false
	}
	if _, pending := l.pendingCancels[orderID]; pending {
		return false
	}
	l.pendingCancels[orderID] = struct{}{}
	return true
}

// CancelPending reports whether a cancel request is outstanding for the id
func (l *Ledger) CancelPending(orderID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, pending := l.pendingCancels[orderID]
	return pending
}

// AllTrackedMarketOrders returns a copy of the market-order arena keyed by
// pair key then order id.
func (l *Ledger) AllTrackedMarketOrders() map[string]map[string]TrackedOrder {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]map[string]TrackedOrder, len(l.marketOrders))
	for key, orders := range l.marketOrders {
		inner := make(map[string]TrackedOrder, len(orders))
		for id, o := range orders {
			inner[id] = o
		}
		out[key] = inner
	}
	return out
}

// TrackedMarketOrders returns tracked market orders for one pair
func (l *Ledger) TrackedMarketOrders(pair market.SymbolPair) []TrackedOrder {
	l.mu.RLock()
	defer l.mu.RUnlock()

	orders := l.marketOrders[pair.Key()]
	out := make([]TrackedOrder, 0, len(orders))
	for _, o := range orders {
		out = append(out, o)
	}
	return out
}

// Tick prunes market orders older than the settle horizon. A completion
// event normally removes them first; pruning keeps a lost event from
// blocking a pair's readiness forever.
func (l *Ledger) Tick(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, orders := range l.marketOrders {
		for id, o := range orders {
			if now.Sub(o.CreatedAt) > l.settleHorizon {
				log.Debug().
					Str("order_id", id).
					Str("pair", o.Pair.String()).
					Msg("Pruning stale market order")
				delete(orders, id)
				delete(l.orderPair, id)
				delete(l.lastKnownKind, id)
				delete(l.pendingCancels, id)
			}
		}
		if len(orders) == 0 {
			delete(l.marketOrders, key)
		}
	}
}
