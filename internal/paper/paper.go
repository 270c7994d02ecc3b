package paper

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/crossarb/internal/events"
	"github.com/web3guy0/crossarb/internal/market"
)

// ═══════════════════════════════════════════════════════════════════════════════
// PAPER EXCHANGE - In-memory market port for dry runs and tests
// ═══════════════════════════════════════════════════════════════════════════════
//
// Implements the full market.Market surface against in-memory books and
// balances. Created events are published synchronously on submit; market
// orders settle on the exchange's own tick so completion events arrive after
// the caller has registered the order, the way a real venue behaves.
//
// ═══════════════════════════════════════════════════════════════════════════════

// FeeSchedule is the venue's trading fee structure
type FeeSchedule struct {
	Percent  decimal.Decimal  // taker percentage, e.g. 0.001
	FlatFees []market.FlatFee // per-order fixed fees
}

type restingOrder struct {
	id     string
	pair   market.SymbolPair
	side   market.Side
	price  decimal.Decimal
	amount decimal.Decimal
	expiry time.Time
}

type pendingFill struct {
	id     string
	pair   market.SymbolPair
	side   market.Side
	amount decimal.Decimal
}

// Exchange is a simulated market
type Exchange struct {
	mu sync.RWMutex

	name    string
	bus     *events.Bus
	fees    FeeSchedule
	ready   bool
	network market.NetworkStatus

	books    map[string]*market.OrderBook // symbol -> book
	lotSteps map[string]decimal.Decimal   // symbol -> min increment
	balances map[string]decimal.Decimal   // asset -> available

	resting map[string]restingOrder // limit orders by id
	pending []pendingFill           // market orders awaiting settle

	nextID int
}

// New creates a paper exchange publishing lifecycle events on bus
func New(name string, bus *events.Bus, fees FeeSchedule) *Exchange {
	return &Exchange{
		name:     name,
		bus:      bus,
		fees:     fees,
		ready:    true,
		network:  market.NetworkConnected,
		books:    make(map[string]*market.OrderBook),
		lotSteps: make(map[string]decimal.Decimal),
		balances: make(map[string]decimal.Decimal),
		resting:  make(map[string]restingOrder),
	}
}

// Name returns the exchange name
func (e *Exchange) Name() string { return e.name }

// SetReady toggles the readiness signal
func (e *Exchange) SetReady(ready bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ready = ready
}

// IsReady reports whether the exchange is usable
func (e *Exchange) IsReady() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ready
}

// SetNetworkStatus toggles simulated connectivity
func (e *Exchange) SetNetworkStatus(status market.NetworkStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.network = status
}

// NetworkStatus reports simulated connectivity
func (e *Exchange) NetworkStatus() market.NetworkStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.network
}

// Book returns the book for a symbol, creating it on first use. Feeds write
// snapshots through the returned book.
func (e *Exchange) Book(symbol string) *market.OrderBook {
	e.mu.Lock()
	defer e.mu.Unlock()

	book, ok := e.books[symbol]
	if !ok {
		book = market.NewOrderBook(symbol)
		e.books[symbol] = book
	}
	return book
}

// SetLotStep sets the minimum tradable increment for a symbol
func (e *Exchange) SetLotStep(symbol string, step decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lotSteps[symbol] = step
}

// SetBalance sets the available balance of an asset
func (e *Exchange) SetBalance(asset string, amount decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.balances[asset] = amount
}

// Balance returns the available balance of an asset
func (e *Exchange) Balance(asset string) (decimal.Decimal, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.balances[asset], nil
}

// BestBid returns the top bid for a symbol
func (e *Exchange) BestBid(symbol string) (decimal.Decimal, error) {
	book, err := e.book(symbol)
	if err != nil {
		return decimal.Zero, err
	}
	bid := book.BestBid()
	if bid.IsZero() {
		return decimal.Zero, fmt.Errorf("%s: no bids for %s", e.name, symbol)
	}
	return bid, nil
}

// BestAsk returns the top ask for a symbol
func (e *Exchange) BestAsk(symbol string) (decimal.Decimal, error) {
	book, err := e.book(symbol)
	if err != nil {
		return decimal.Zero, err
	}
	ask := book.BestAsk()
	if ask.IsZero() {
		return decimal.Zero, fmt.Errorf("%s: no asks for %s", e.name, symbol)
	}
	return ask, nil
}

// BookLevels returns one side of a symbol's book in priority order
func (e *Exchange) BookLevels(symbol string, side market.Side) ([]market.PriceLevel, error) {
	book, err := e.book(symbol)
	if err != nil {
		return nil, err
	}
	return book.Levels(side), nil
}

func (e *Exchange) book(symbol string) (*market.OrderBook, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	book, ok := e.books[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: unknown symbol %s", e.name, symbol)
	}
	return book, nil
}

// QuoteFee quotes the configured fee schedule for a prospective trade
func (e *Exchange) QuoteFee(base, quote string, kind market.Kind, side market.Side, amount, price decimal.Decimal) (market.FeeQuote, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	flat := make([]market.FlatFee, len(e.fees.FlatFees))
	copy(flat, e.fees.FlatFees)
	return market.FeeQuote{Percent: e.fees.Percent, FlatFees: flat}, nil
}

// QuantizeAmount rounds an amount down to the symbol's lot step
func (e *Exchange) QuantizeAmount(symbol string, amount decimal.Decimal) (decimal.Decimal, error) {
	e.mu.RLock()
	step, ok := e.lotSteps[symbol]
	e.mu.RUnlock()

	if !ok || step.IsZero() {
		return amount, nil
	}
	return amount.Div(step).Floor().Mul(step), nil
}

// SubmitOrder accepts an order. Market orders are queued for settlement on
// the next exchange tick; limit orders rest until cancelled or expired.
func (e *Exchange) SubmitOrder(pair market.SymbolPair, side market.Side, amount decimal.Decimal, kind market.Kind, price decimal.Decimal, expiry time.Time) (string, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return "", fmt.Errorf("%s: non-positive order amount %s", e.name, amount)
	}

	e.mu.Lock()
	e.nextID++
	orderID := fmt.Sprintf("%s-%d", e.name, e.nextID)

	switch kind {
	case market.KindMarket:
		e.pending = append(e.pending, pendingFill{id: orderID, pair: pair, side: side, amount: amount})
	case market.KindLimit:
		e.resting[orderID] = restingOrder{id: orderID, pair: pair, side: side, price: price, amount: amount, expiry: expiry}
	default:
		e.mu.Unlock()
		return "", fmt.Errorf("%s: unsupported order kind %s", e.name, kind)
	}
	e.mu.Unlock()

	createdKind := events.BuyOrderCreated
	if side == market.SideSell {
		createdKind = events.SellOrderCreated
	}
	e.publish(events.OrderEvent{
		Kind:      createdKind,
		Market:    e.name,
		OrderID:   orderID,
		OrderType: kind,
		Symbol:    pair.Symbol,
		Price:     price,
		Amount:    amount,
		Timestamp: time.Now(),
	})

	return orderID, nil
}

// CancelOrder removes a resting limit order and publishes a cancelled event
func (e *Exchange) CancelOrder(pair market.SymbolPair, orderID string) error {
	e.mu.Lock()
	order, ok := e.resting[orderID]
	if ok {
		delete(e.resting, orderID)
	}
	e.mu.Unlock()

	if !ok {
		return fmt.Errorf("%s: unknown order %s", e.name, orderID)
	}

	e.publish(events.OrderEvent{
		Kind:      events.OrderCancelled,
		Market:    e.name,
		OrderID:   orderID,
		OrderType: market.KindLimit,
		Symbol:    order.pair.Symbol,
		Price:     order.price,
		Amount:    order.amount,
		Timestamp: time.Now(),
	})
	return nil
}

// Tick settles queued market orders and expires stale limit orders
func (e *Exchange) Tick(now time.Time) {
	e.mu.Lock()
	fills := e.pending
	e.pending = nil

	var expired []restingOrder
	for id, order := range e.resting {
		if !order.expiry.IsZero() && now.After(order.expiry) {
			expired = append(expired, order)
			delete(e.resting, id)
		}
	}
	e.mu.Unlock()

	for _, fill := range fills {
		e.settle(fill, now)
	}
	for _, order := range expired {
		e.publish(events.OrderEvent{
			Kind:      events.OrderExpired,
			Market:    e.name,
			OrderID:   order.id,
			OrderType: market.KindLimit,
			Symbol:    order.pair.Symbol,
			Price:     order.price,
			Amount:    order.amount,
			Timestamp: now,
		})
	}
}

// settle executes a market order against the current book at depth-weighted
// prices and moves balances.
func (e *Exchange) settle(fill pendingFill, now time.Time) {
	bookSide := market.SideSell // buys consume asks
	if fill.side == market.SideSell {
		bookSide = market.SideBuy // sells consume bids
	}

	levels, err := e.BookLevels(fill.pair.Symbol, bookSide)
	if err != nil || len(levels) == 0 {
		e.fail(fill, now, "no depth")
		return
	}

	filled := decimal.Zero
	cost := decimal.Zero
	for _, lvl := range levels {
		remaining := fill.amount.Sub(filled)
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		take := decimal.Min(remaining, lvl.Amount)
		filled = filled.Add(take)
		cost = cost.Add(take.Mul(lvl.Price))
	}
	if filled.IsZero() {
		e.fail(fill, now, "no depth")
		return
	}

	fee := cost.Mul(e.fees.Percent)
	e.mu.Lock()
	if fill.side == market.SideBuy {
		e.balances[fill.pair.Quote] = e.balances[fill.pair.Quote].Sub(cost).Sub(fee)
		e.balances[fill.pair.Base] = e.balances[fill.pair.Base].Add(filled)
	} else {
		e.balances[fill.pair.Base] = e.balances[fill.pair.Base].Sub(filled)
		e.balances[fill.pair.Quote] = e.balances[fill.pair.Quote].Add(cost).Sub(fee)
	}
	e.mu.Unlock()

	avgPrice := cost.Div(filled)

	e.publish(events.OrderEvent{
		Kind:      events.OrderFilled,
		Market:    e.name,
		OrderID:   fill.id,
		OrderType: market.KindMarket,
		Symbol:    fill.pair.Symbol,
		Price:     avgPrice,
		Amount:    filled,
		Timestamp: now,
	})

	completedKind := events.BuyOrderCompleted
	if fill.side == market.SideSell {
		completedKind = events.SellOrderCompleted
	}
	e.publish(events.OrderEvent{
		Kind:      completedKind,
		Market:    e.name,
		OrderID:   fill.id,
		OrderType: market.KindMarket,
		Symbol:    fill.pair.Symbol,
		Price:     avgPrice,
		Amount:    filled,
		Timestamp: now,
	})
}

func (e *Exchange) fail(fill pendingFill, now time.Time, reason string) {
	log.Warn().
		Str("market", e.name).
		Str("order_id", fill.id).
		Str("reason", reason).
		Msg("Paper order failed")

	e.publish(events.OrderEvent{
		Kind:      events.OrderFailed,
		Market:    e.name,
		OrderID:   fill.id,
		OrderType: market.KindMarket,
		Symbol:    fill.pair.Symbol,
		Amount:    fill.amount,
		Timestamp: now,
	})
}

func (e *Exchange) publish(ev events.OrderEvent) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}
