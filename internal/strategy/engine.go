package strategy

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/crossarb/internal/market"
	"github.com/web3guy0/crossarb/internal/rates"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ARBITRAGE ENGINE - Tick-driven cross-exchange decision core
// ═══════════════════════════════════════════════════════════════════════════════
//
// Per tick: NOT_READY → READY → (per pair) EVALUATE → SKIP or DISPATCH.
//
// Evaluation walks both order books as two sorted streams (bids descending,
// asks ascending), merges them two-pointer style into profitability steps,
// then refines the matched size under fees and balances before dispatching
// one market buy and one market sell through the router.
//
// ═══════════════════════════════════════════════════════════════════════════════

var one = decimal.NewFromInt(1)

// ProfitabilityStep is one matched slice of depth from both books.
// Transient: produced by matchOrderBooks, consumed by bestProfitableAmount.
type ProfitabilityStep struct {
	BidPriceAdjusted decimal.Decimal // sell-leg bid in reference currency
	AskPriceAdjusted decimal.Decimal // buy-leg ask in reference currency
	BidPrice         decimal.Decimal
	AskPrice         decimal.Decimal
	Amount           decimal.Decimal
}

// Ratio returns the step's adjusted bid/ask ratio
func (s ProfitabilityStep) Ratio() decimal.Decimal {
	return s.BidPriceAdjusted.Div(s.AskPriceAdjusted)
}

// Dispatch records one executed two-leg arbitrage
type Dispatch struct {
	Pair          market.ArbPair
	BuyLeg        market.SymbolPair
	SellLeg       market.SymbolPair
	Amount        decimal.Decimal
	BuyPrice      decimal.Decimal // buy-leg best ask at dispatch
	SellPrice     decimal.Decimal // sell-leg best bid at dispatch
	BuyOrderID    string
	SellOrderID   string
	Profitability decimal.Decimal // net proceeds / net cost
	Time          time.Time
}

// EngineConfig holds the engine's decision parameters
type EngineConfig struct {
	MinProfitability         decimal.Decimal
	MinFallbackProfitability decimal.Decimal
	CooldownInterval         time.Duration
	SettleHorizon            time.Duration
	StatusInterval           time.Duration

	LogStatusReport      bool
	LogStepProfitability bool
	LogFullDepth         bool
	LogInsufficientAsset bool
}

// Engine evaluates configured arbitrage pairs once per tick
type Engine struct {
	router *Router
	norm   rates.Normalizer
	pairs  []market.ArbPair
	cfg    EngineConfig

	reporter *StatusReporter

	allReady      bool
	lastReadyWarn time.Time
	lastStatus    time.Time

	// cooldowns maps a leg key to its last dispatch time. Entries never
	// expire; absence means no cooldown observed yet.
	cooldowns map[string]time.Time

	onDispatch func(Dispatch)
	onStatus   func(string)
}

// NewEngine creates an arbitrage engine over the router's active markets
func NewEngine(router *Router, norm rates.Normalizer, pairs []market.ArbPair, cfg EngineConfig) (*Engine, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("no arbitrage pairs configured")
	}
	e := &Engine{
		router:    router,
		norm:      norm,
		pairs:     pairs,
		cfg:       cfg,
		cooldowns: make(map[string]time.Time),
	}
	e.reporter = NewStatusReporter(router, norm, pairs)
	router.SetTicker(e)
	return e, nil
}

// OnDispatch sets a callback invoked after each successful dispatch
func (e *Engine) OnDispatch(fn func(Dispatch)) {
	e.onDispatch = fn
}

// OnStatus sets a callback receiving the rendered snapshot on each status
// interval
func (e *Engine) OnStatus(fn func(string)) {
	e.onStatus = fn
}

// Reporter returns the engine's status reporter
func (e *Engine) Reporter() *StatusReporter {
	return e.reporter
}

// Tick evaluates every configured pair in list order. Pair failures are
// isolated: a market error aborts only that pair's evaluation.
func (e *Engine) Tick(now time.Time) {
	if !e.allReady {
		if !e.marketsReady() {
			if now.Sub(e.lastReadyWarn) > 30*time.Second {
				e.lastReadyWarn = now
				log.Warn().Msg("⏳ Markets not ready, skipping evaluation")
			}
			return
		}
		e.allReady = true
		log.Info().Msg("✅ All markets ready")
	}

	// Connectivity is re-checked every tick, never cached.
	for _, m := range e.router.ActiveMarkets() {
		if m.NetworkStatus() != market.NetworkConnected {
			log.Warn().Str("market", m.Name()).Msg("⚠️ Market disconnected, skipping tick")
			return
		}
	}

	for _, pair := range e.pairs {
		if err := e.evaluatePair(now, pair); err != nil {
			log.Error().Err(err).Str("pair", pair.String()).Msg("Pair evaluation aborted")
		}
	}

	if e.cfg.StatusInterval > 0 && now.Sub(e.lastStatus) >= e.cfg.StatusInterval {
		e.lastStatus = now
		text := e.reporter.Snapshot(now).Render()
		if e.cfg.LogStatusReport {
			log.Info().Msg("\n" + text)
		}
		if e.onStatus != nil {
			e.onStatus(text)
		}
	}
}

func (e *Engine) marketsReady() bool {
	for _, m := range e.router.ActiveMarkets() {
		if !m.IsReady() {
			return false
		}
	}
	return true
}

// readyForNewOrders gates a pair on settling market orders and cooldowns.
// Both legs are checked; failing either blocks the pair for this tick.
func (e *Engine) readyForNewOrders(now time.Time, pair market.ArbPair) bool {
	for _, leg := range []market.SymbolPair{pair.First, pair.Second} {
		for _, o := range e.router.Ledger().TrackedMarketOrders(leg) {
			if now.Sub(o.CreatedAt) < e.cfg.SettleHorizon {
				log.Debug().
					Str("pair", leg.String()).
					Str("order_id", o.ID).
					Msg("Market order still settling")
				return false
			}
		}
		if last, ok := e.cooldowns[leg.Key()]; ok {
			if wait := last.Add(e.cfg.CooldownInterval).Sub(now); wait > 0 {
				log.Debug().
					Str("pair", leg.String()).
					Str("remaining", fmt.Sprintf("%.1fs", wait.Seconds())).
					Msg("Cooling down")
				return false
			}
		}
	}
	return true
}

// topOrderProfitability computes both top-of-book ratios: buy second/sell
// first and buy first/sell second. Reporting figures; the dispatch decision
// uses the depth-aware walk.
func (e *Engine) topOrderProfitability(pair market.ArbPair) (buySecondSellFirst, buyFirstSellSecond decimal.Decimal, err error) {
	firstMkt, secondMkt, err := e.legMarkets(pair)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	bid1, err := firstMkt.BestBid(pair.First.Symbol)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	ask1, err := firstMkt.BestAsk(pair.First.Symbol)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	bid2, err := secondMkt.BestBid(pair.Second.Symbol)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	ask2, err := secondMkt.BestAsk(pair.Second.Symbol)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	normBid1, err := e.norm.Normalize(pair.First.Quote, bid1)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	normAsk1, err := e.norm.Normalize(pair.First.Quote, ask1)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	normBid2, err := e.norm.Normalize(pair.Second.Quote, bid2)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	normAsk2, err := e.norm.Normalize(pair.Second.Quote, ask2)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	if normAsk1.IsZero() || normAsk2.IsZero() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("zero normalized ask for %s", pair)
	}

	buySecondSellFirst = normBid1.Div(normAsk2).Sub(one)
	buyFirstSellSecond = normBid2.Div(normAsk1).Sub(one)
	return buySecondSellFirst, buyFirstSellSecond, nil
}

func (e *Engine) legMarkets(pair market.ArbPair) (market.Market, market.Market, error) {
	firstMkt, ok := e.router.Market(pair.First.Market)
	if !ok {
		return nil, nil, fmt.Errorf("market %s is not registered", pair.First.Market)
	}
	secondMkt, ok := e.router.Market(pair.Second.Market)
	if !ok {
		return nil, nil, fmt.Errorf("market %s is not registered", pair.Second.Market)
	}
	return firstMkt, secondMkt, nil
}

// evaluatePair runs the full decision path for one configured pair
func (e *Engine) evaluatePair(now time.Time, pair market.ArbPair) error {
	if !e.readyForNewOrders(now, pair) {
		return nil
	}

	buySecondSellFirst, buyFirstSellSecond, err := e.topOrderProfitability(pair)
	if err != nil {
		return err
	}

	// Direction: whichever top-of-book ratio is larger decides which leg
	// is bought and which is sold.
	var buyLeg, sellLeg market.SymbolPair
	if buySecondSellFirst.GreaterThanOrEqual(buyFirstSellSecond) {
		if buySecondSellFirst.LessThan(e.cfg.MinProfitability) {
			return nil
		}
		buyLeg, sellLeg = pair.Second, pair.First
	} else {
		if buyFirstSellSecond.LessThan(e.cfg.MinProfitability) {
			return nil
		}
		buyLeg, sellLeg = pair.First, pair.Second
	}

	buyMkt, _ := e.router.Market(buyLeg.Market)
	sellMkt, _ := e.router.Market(sellLeg.Market)

	bids, err := sellMkt.BookLevels(sellLeg.Symbol, market.SideBuy)
	if err != nil {
		return err
	}
	asks, err := buyMkt.BookLevels(buyLeg.Symbol, market.SideSell)
	if err != nil {
		return err
	}

	steps, err := e.matchOrderBooks(sellLeg.Quote, bids, buyLeg.Quote, asks)
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		return nil
	}

	if e.cfg.LogFullDepth {
		total := decimal.Zero
		for _, s := range steps {
			total = total.Add(s.Amount)
		}
		log.Debug().
			Str("pair", pair.String()).
			Int("steps", len(steps)).
			Str("depth", total.String()).
			Msg("Profitable depth matched")
	}

	amount, profitability, err := e.bestProfitableAmount(steps, buyMkt, buyLeg, sellMkt, sellLeg)
	if err != nil {
		return err
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	return e.dispatch(now, pair, buyLeg, sellLeg, buyMkt, sellMkt, amount, profitability, steps[0])
}

// matchOrderBooks merges the sell-side bids (descending) and buy-side asks
// (ascending) into profitability steps, two-pointer style. Each step is
// sized to the smaller leftover volume of the two current levels. The merge
// stops when the normalized spread closes or either book runs out of levels;
// exhaustion is normal termination, not an error. The returned steps are
// ordered by non-increasing desirability and must not be reordered.
func (e *Engine) matchOrderBooks(sellQuote string, bids []market.PriceLevel, buyQuote string, asks []market.PriceLevel) ([]ProfitabilityStep, error) {
	if len(bids) == 0 || len(asks) == 0 {
		return nil, nil
	}

	var steps []ProfitabilityStep
	i, j := 0, 0
	bidLeft := bids[0].Amount
	askLeft := asks[0].Amount

	// Only a negative minimum profitability (a debug-only allowance)
	// tightens the stop condition beyond the closed spread.
	debugFloor := decimal.Zero
	useFloor := e.cfg.MinProfitability.IsNegative()
	if useFloor {
		debugFloor = one.Add(e.cfg.MinProfitability)
	}

	for {
		if bidLeft.IsZero() {
			i++
			if i >= len(bids) {
				break
			}
			bidLeft = bids[i].Amount
		}
		if askLeft.IsZero() {
			j++
			if j >= len(asks) {
				break
			}
			askLeft = asks[j].Amount
		}

		bidAdj, err := e.norm.Normalize(sellQuote, bids[i].Price)
		if err != nil {
			return nil, err
		}
		askAdj, err := e.norm.Normalize(buyQuote, asks[j].Price)
		if err != nil {
			return nil, err
		}

		if useFloor {
			if askAdj.IsZero() || bidAdj.Div(askAdj).LessThan(debugFloor) {
				break
			}
		} else if bidAdj.LessThan(askAdj) {
			break
		}

		amount := decimal.Min(bidLeft, askLeft)
		step := ProfitabilityStep{
			BidPriceAdjusted: bidAdj,
			AskPriceAdjusted: askAdj,
			BidPrice:         bids[i].Price,
			AskPrice:         asks[j].Price,
			Amount:           amount,
		}
		steps = append(steps, step)

		if e.cfg.LogStepProfitability {
			log.Debug().
				Str("bid", bids[i].Price.String()).
				Str("ask", asks[j].Price.String()).
				Str("amount", amount.String()).
				Str("ratio", step.Ratio().String()).
				Msg("Profitability step")
		}

		bidLeft = bidLeft.Sub(amount)
		askLeft = askLeft.Sub(amount)
	}

	return steps, nil
}

// bestProfitableAmount walks the step sequence accumulating value and fees,
// returning the largest cumulative amount whose running profitability clears
// the configured minimum. A balance shortfall stops the walk: a profitable
// candidate already recorded wins; otherwise the balance-capped amount is
// accepted, subject to the fallback acceptance bar.
func (e *Engine) bestProfitableAmount(
	steps []ProfitabilityStep,
	buyMkt market.Market, buyLeg market.SymbolPair,
	sellMkt market.Market, sellLeg market.SymbolPair,
) (decimal.Decimal, decimal.Decimal, error) {
	bar := one.Add(e.cfg.MinProfitability)
	fallbackBar := one.Add(e.cfg.MinFallbackProfitability)

	totalBidValue := decimal.Zero    // sell-leg quote units
	totalAskValue := decimal.Zero    // buy-leg quote units
	totalBidAdjusted := decimal.Zero // reference units
	totalAskAdjusted := decimal.Zero
	prevAmount := decimal.Zero

	bestAmount := decimal.Zero
	bestProfitability := decimal.Zero

	for _, step := range steps {
		totalBidValue = totalBidValue.Add(step.BidPrice.Mul(step.Amount))
		totalAskValue = totalAskValue.Add(step.AskPrice.Mul(step.Amount))
		totalBidAdjusted = totalBidAdjusted.Add(step.BidPriceAdjusted.Mul(step.Amount))
		totalAskAdjusted = totalAskAdjusted.Add(step.AskPriceAdjusted.Mul(step.Amount))
		cumAmount := prevAmount.Add(step.Amount)

		buyFee, err := buyMkt.QuoteFee(buyLeg.Base, buyLeg.Quote, market.KindMarket, market.SideBuy, cumAmount, step.AskPrice)
		if err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("buy fee quote: %w", err)
		}
		sellFee, err := sellMkt.QuoteFee(sellLeg.Base, sellLeg.Quote, market.KindMarket, market.SideSell, cumAmount, step.BidPrice)
		if err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("sell fee quote: %w", err)
		}

		buyFlatQuote, err := e.flatFeesInQuote(buyFee.FlatFees, buyLeg.Quote)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		sellFlatQuote, err := e.flatFeesInQuote(sellFee.FlatFees, sellLeg.Quote)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		buyFlatAdjusted, err := e.norm.Normalize(buyLeg.Quote, buyFlatQuote)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		sellFlatAdjusted, err := e.norm.Normalize(sellLeg.Quote, sellFlatQuote)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}

		netSellProceeds := totalBidAdjusted.Mul(one.Sub(sellFee.Percent)).Sub(sellFlatAdjusted)
		netBuyCost := totalAskAdjusted.Mul(one.Add(buyFee.Percent)).Add(buyFlatAdjusted)
		if netBuyCost.LessThanOrEqual(decimal.Zero) {
			break
		}
		profitability := netSellProceeds.Div(netBuyCost)

		// Balance check in native quote/base units. Runs before the step
		// can become a candidate: an unaffordable cumulative amount must
		// never be recorded, or a shortfall on this very step would keep it.
		netBuyCostQuote := totalAskValue.Mul(one.Add(buyFee.Percent)).Add(buyFlatQuote)
		quoteBalance, err := buyMkt.Balance(buyLeg.Quote)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		baseBalance, err := sellMkt.Balance(sellLeg.Base)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}

		if quoteBalance.LessThan(netBuyCostQuote) || baseBalance.LessThan(cumAmount) {
			if bestAmount.GreaterThan(decimal.Zero) {
				break
			}

			// Balance-capped fallback: as much as we can safely afford
			// at the best available rate.
			unitCost := step.AskPrice.Mul(one.Add(buyFee.Percent))
			if unitCost.IsZero() {
				break
			}
			buyCapacity := quoteBalance.Sub(buyFlatQuote).Div(unitCost)
			capped := decimal.Min(baseBalance, buyCapacity)
			if capped.LessThanOrEqual(decimal.Zero) {
				if e.cfg.LogInsufficientAsset {
					log.Warn().
						Str("buy_leg", buyLeg.String()).
						Str("sell_leg", sellLeg.String()).
						Msg("⚠️ Insufficient balance on both legs")
				}
				break
			}
			if profitability.GreaterThanOrEqual(fallbackBar) {
				bestAmount = capped
				bestProfitability = profitability
				if e.cfg.LogInsufficientAsset {
					log.Warn().
						Str("buy_leg", buyLeg.String()).
						Str("capped", capped.String()).
						Msg("⚠️ Balance caps arbitrage size")
				}
			}
			break
		}

		if profitability.GreaterThan(bar) {
			bestAmount = cumAmount
			bestProfitability = profitability
		}
		prevAmount = cumAmount
	}

	return bestAmount, bestProfitability, nil
}

// flatFeesInQuote converts flat fees, possibly denominated in other assets,
// into the given quote asset.
func (e *Engine) flatFeesInQuote(fees []market.FlatFee, quote string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, fee := range fees {
		converted, err := e.norm.Convert(fee.Amount, fee.Asset, quote)
		if err != nil {
			return decimal.Zero, fmt.Errorf("flat fee %s: %w", fee.Asset, err)
		}
		total = total.Add(converted)
	}
	return total, nil
}

// dispatch quantizes the chosen amount per market, places the matched market
// orders and stamps cooldowns for both legs.
func (e *Engine) dispatch(
	now time.Time,
	pair market.ArbPair,
	buyLeg, sellLeg market.SymbolPair,
	buyMkt, sellMkt market.Market,
	amount, profitability decimal.Decimal,
	topStep ProfitabilityStep,
) error {
	quantBuy, err := buyMkt.QuantizeAmount(buyLeg.Symbol, amount)
	if err != nil {
		return fmt.Errorf("quantize buy amount: %w", err)
	}
	quantSell, err := sellMkt.QuantizeAmount(sellLeg.Symbol, amount)
	if err != nil {
		return fmt.Errorf("quantize sell amount: %w", err)
	}

	// Never exceed either market's tradable precision on either leg.
	final := decimal.Min(quantBuy, quantSell)
	if final.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	buyID, err := e.router.PlaceOrder(OrderRequest{
		Pair:   buyLeg,
		Side:   market.SideBuy,
		Amount: final,
		Kind:   market.KindMarket,
	})
	if err != nil {
		return fmt.Errorf("place buy leg: %w", err)
	}

	sellID, sellErr := e.router.PlaceOrder(OrderRequest{
		Pair:   sellLeg,
		Side:   market.SideSell,
		Amount: final,
		Kind:   market.KindMarket,
	})

	// The buy leg is in flight either way; cooldown both legs so the pair
	// cannot be re-dispatched while it settles.
	e.cooldowns[buyLeg.Key()] = now
	e.cooldowns[sellLeg.Key()] = now

	if sellErr != nil {
		return fmt.Errorf("place sell leg (buy %s already in flight): %w", buyID, sellErr)
	}

	log.Info().
		Str("pair", pair.String()).
		Str("buy", buyLeg.String()).
		Str("sell", sellLeg.String()).
		Str("amount", final.String()).
		Str("profitability", profitability.Sub(one).Mul(decimal.NewFromInt(100)).StringFixed(4)+"%").
		Msg("🎯 Arbitrage dispatched")

	if e.cfg.LogStatusReport {
		log.Info().Msg("\n" + e.reporter.Snapshot(now).Render())
	}

	if e.onDispatch != nil {
		e.onDispatch(Dispatch{
			Pair:          pair,
			BuyLeg:        buyLeg,
			SellLeg:       sellLeg,
			Amount:        final,
			BuyPrice:      topStep.AskPrice,
			SellPrice:     topStep.BidPrice,
			BuyOrderID:    buyID,
			SellOrderID:   sellID,
			Profitability: profitability,
			Time:          now,
		})
	}

	return nil
}
