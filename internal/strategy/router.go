package strategy

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/crossarb/internal/events"
	"github.com/web3guy0/crossarb/internal/ledger"
	"github.com/web3guy0/crossarb/internal/market"
)

// ═══════════════════════════════════════════════════════════════════════════════
// EVENT ROUTER - Market registration, listener wiring, guarded order entry
// ═══════════════════════════════════════════════════════════════════════════════
//
// The router owns the active-market set and is the only sanctioned path for
// placing or cancelling orders. Every exchange callback runs two hooks in
// fixed order: the strategy hook first, then the bookkeeping hook that keeps
// the order ledger consistent regardless of what the strategy hook does.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Ticker is invoked by the router once per scheduler tick, after the ledger
// has been ticked.
type Ticker interface {
	Tick(now time.Time)
}

// OrderRequest describes one order placement. Amount and Price are
// decimal.Decimal by type, which is the exact-representation guarantee the
// placement guard requires - binary floats cannot reach the order path.
type OrderRequest struct {
	Pair   market.SymbolPair
	Side   market.Side
	Amount decimal.Decimal
	Kind   market.Kind
	Price  decimal.Decimal // limit orders only
	Expiry time.Duration   // caller-supplied minimum time in force

	// Delegated marks a placement attempted from a composed sub-strategy
	// execution context, which must route through its parent instead.
	Delegated bool
}

// Router wires markets to the strategy's event subscriptions and guards the
// order placement and cancellation entry points.
type Router struct {
	bus    *events.Bus
	ledger *ledger.Ledger
	hooks  Hooks

	markets map[string]market.Market          // active set, keyed by name
	subs    map[string][]*events.Subscription // per-market bindings

	minExpiry time.Duration
	ticker    Ticker

	logCreation   bool
	logCompletion bool

	now func() time.Time
}

// RouterOptions configures a Router
type RouterOptions struct {
	MinOrderExpiry time.Duration
	LogCreation    bool
	LogCompletion  bool
}

// NewRouter creates a router. hooks may be nil for no strategy-level hooks.
func NewRouter(bus *events.Bus, lgr *ledger.Ledger, hooks Hooks, opts RouterOptions) *Router {
	if hooks == nil {
		hooks = NopHooks{}
	}
	return &Router{
		bus:           bus,
		ledger:        lgr,
		hooks:         hooks,
		markets:       make(map[string]market.Market),
		subs:          make(map[string][]*events.Subscription),
		minExpiry:     opts.MinOrderExpiry,
		logCreation:   opts.LogCreation,
		logCompletion: opts.LogCompletion,
		now:           time.Now,
	}
}

// SetTicker registers the per-tick handler invoked after ledger bookkeeping
func (r *Router) SetTicker(t Ticker) {
	r.ticker = t
}

// Ledger exposes the order ledger for readiness checks and status reporting
func (r *Router) Ledger() *ledger.Ledger {
	return r.ledger
}

// Market returns an active market by name
func (r *Router) Market(name string) (market.Market, bool) {
	m, ok := r.markets[name]
	return m, ok
}

// ActiveMarkets returns the current active-market set
func (r *Router) ActiveMarkets() []market.Market {
	out := make([]market.Market, 0, len(r.markets))
	for _, m := range r.markets {
		out = append(out, m)
	}
	return out
}

// Tick drives one scheduler tick: ledger bookkeeping first, then the engine
func (r *Router) Tick(now time.Time) {
	r.ledger.Tick(now)
	if r.ticker != nil {
		r.ticker.Tick(now)
	}
}

// AddMarkets registers markets and subscribes the strategy's callback set to
// all eight lifecycle event kinds. Duplicate adds are no-ops.
func (r *Router) AddMarkets(markets ...market.Market) {
	for _, m := range markets {
		name := m.Name()
		if _, exists := r.markets[name]; exists {
			continue
		}
		r.markets[name] = m

		var subs []*events.Subscription
		for _, kind := range events.Kinds {
			kind := kind
			subs = append(subs, r.bus.Subscribe(name, kind, func(ev events.OrderEvent) {
				r.dispatch(kind, ev)
			}))
		}
		r.subs[name] = subs

		log.Debug().Str("market", name).Msg("Market registered")
	}
}

// RemoveMarkets unsubscribes and deregisters markets. Unknown markets are
// no-ops.
func (r *Router) RemoveMarkets(markets ...market.Market) {
	for _, m := range markets {
		name := m.Name()
		if _, exists := r.markets[name]; !exists {
			continue
		}
		for _, sub := range r.subs[name] {
			sub.Cancel()
		}
		delete(r.subs, name)
		delete(r.markets, name)

		log.Debug().Str("market", name).Msg("Market deregistered")
	}
}

// Stop deregisters every active market
func (r *Router) Stop() {
	r.RemoveMarkets(r.ActiveMarkets()...)
}

// PlaceOrder validates and forwards an order to the market port, then
// registers the returned order id with the ledger. Either both submission
// and tracking succeed, or neither does.
func (r *Router) PlaceOrder(req OrderRequest) (string, error) {
	if req.Delegated {
		return "", fmt.Errorf("delegated execution context may not place orders directly")
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return "", fmt.Errorf("invalid order amount %s", req.Amount)
	}
	if req.Kind == market.KindLimit && req.Price.LessThanOrEqual(decimal.Zero) {
		return "", fmt.Errorf("invalid limit price %s", req.Price)
	}

	mkt, ok := r.markets[req.Pair.Market]
	if !ok {
		return "", fmt.Errorf("market %s is not registered", req.Pair.Market)
	}

	now := r.now()
	expiry := req.Expiry
	if r.minExpiry > expiry {
		expiry = r.minExpiry
	}

	orderID, err := mkt.SubmitOrder(req.Pair, req.Side, req.Amount, req.Kind, req.Price, now.Add(expiry))
	if err != nil {
		return "", fmt.Errorf("submit %s %s %s on %s: %w", req.Side, req.Amount, req.Pair.Symbol, req.Pair.Market, err)
	}

	isBuy := req.Side == market.SideBuy
	if req.Kind == market.KindLimit {
		r.ledger.StartTrackingLimitOrder(req.Pair, orderID, isBuy, req.Price, req.Amount, now)
	} else {
		r.ledger.StartTrackingMarketOrder(req.Pair, orderID, isBuy, req.Amount, now)
	}

	if r.logCreation {
		log.Info().
			Str("market", req.Pair.Market).
			Str("symbol", req.Pair.Symbol).
			Str("side", string(req.Side)).
			Str("kind", string(req.Kind)).
			Str("amount", req.Amount.String()).
			Str("order_id", orderID).
			Msg("📤 Order placed")
	}

	return orderID, nil
}

// CancelOrder requests cancellation through the ledger gate and forwards to
// the market only when the request was accepted. A second cancel for the
// same order is a no-op.
func (r *Router) CancelOrder(pair market.SymbolPair, orderID string) error {
	if !r.ledger.RequestCancel(orderID) {
		return nil
	}

	mkt, ok := r.markets[pair.Market]
	if !ok {
		return fmt.Errorf("market %s is not registered", pair.Market)
	}
	return mkt.CancelOrder(pair, orderID)
}

// dispatch runs the strategy hook then the bookkeeping hook for one event
func (r *Router) dispatch(kind events.Kind, ev events.OrderEvent) {
	switch kind {
	case events.BuyOrderCreated:
		r.hooks.OnBuyOrderCreated(ev)
	case events.SellOrderCreated:
		r.hooks.OnSellOrderCreated(ev)
	case events.OrderFilled:
		r.hooks.OnOrderFilled(ev)
	case events.OrderFailed:
		r.hooks.OnOrderFailed(ev)
		r.untrackFailed(ev)
	case events.OrderCancelled:
		r.hooks.OnOrderCancelled(ev)
		r.untrackLimit(ev)
	case events.OrderExpired:
		r.hooks.OnOrderExpired(ev)
		r.untrackLimit(ev)
	case events.BuyOrderCompleted:
		r.hooks.OnBuyOrderCompleted(ev)
		r.untrackCompleted(ev)
	case events.SellOrderCompleted:
		r.hooks.OnSellOrderCompleted(ev)
		r.untrackCompleted(ev)
	}
}

// untrackFailed stops tracking a failed order as whichever kind it was last
// known to be. Unknown ids are benign: late or duplicate terminal events are
// expected.
func (r *Router) untrackFailed(ev events.OrderEvent) {
	pair, ok := r.ledger.PairForOrderID(ev.OrderID)
	if !ok {
		return
	}
	kind, _ := r.ledger.KindForOrderID(ev.OrderID)
	if kind == market.KindMarket {
		r.ledger.StopTrackingMarketOrder(pair, ev.OrderID)
	} else {
		r.ledger.StopTrackingLimitOrder(pair, ev.OrderID)
	}
	log.Warn().Str("order_id", ev.OrderID).Str("pair", pair.String()).Msg("Order failed")
}

func (r *Router) untrackLimit(ev events.OrderEvent) {
	pair, ok := r.ledger.PairForOrderID(ev.OrderID)
	if !ok {
		return
	}
	r.ledger.StopTrackingLimitOrder(pair, ev.OrderID)
}

func (r *Router) untrackCompleted(ev events.OrderEvent) {
	pair, ok := r.ledger.PairForOrderID(ev.OrderID)
	if !ok {
		return
	}
	kind, _ := r.ledger.KindForOrderID(ev.OrderID)
	if kind == market.KindMarket {
		r.ledger.StopTrackingMarketOrder(pair, ev.OrderID)
	} else {
		r.ledger.StopTrackingLimitOrder(pair, ev.OrderID)
	}

	if r.logCompletion {
		log.Info().
			Str("order_id", ev.OrderID).
			Str("market", ev.Market).
			Str("price", ev.Price.String()).
			Str("amount", ev.Amount.String()).
			Msg("✅ Order completed")
	}
}
