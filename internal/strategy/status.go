package strategy

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/crossarb/internal/ledger"
	"github.com/web3guy0/crossarb/internal/market"
	"github.com/web3guy0/crossarb/internal/rates"
)

// ═══════════════════════════════════════════════════════════════════════════════
// STATUS REPORTER - Human-readable strategy snapshots
// ═══════════════════════════════════════════════════════════════════════════════

// PriceRow is one market's prices for a snapshot table
type PriceRow struct {
	Market      string
	Symbol      string
	BestBid     decimal.Decimal
	BestAsk     decimal.Decimal
	AdjustedBid decimal.Decimal
	AdjustedAsk decimal.Decimal
}

// BalanceRow is one wallet balance line
type BalanceRow struct {
	Market string
	Asset  string
	Amount decimal.Decimal
}

// PairStatus is the snapshot of one configured arbitrage pair
type PairStatus struct {
	Pair                     market.ArbPair
	Prices                   []PriceRow
	Balances                 []BalanceRow
	ProfitBuySecondSellFirst decimal.Decimal
	ProfitBuyFirstSellSecond decimal.Decimal
	PendingMarketOrders      []ledger.TrackedOrder
	Warnings                 []string
}

// Snapshot is a point-in-time view of every configured pair
type Snapshot struct {
	Time  time.Time
	Pairs []PairStatus
}

// StatusReporter assembles snapshots from the router's markets and ledger
type StatusReporter struct {
	router *Router
	norm   rates.Normalizer
	pairs  []market.ArbPair
}

// NewStatusReporter creates a reporter over the configured pairs
func NewStatusReporter(router *Router, norm rates.Normalizer, pairs []market.ArbPair) *StatusReporter {
	return &StatusReporter{router: router, norm: norm, pairs: pairs}
}

// Snapshot assembles the current status of every pair. Market errors become
// warning lines rather than failures.
func (r *StatusReporter) Snapshot(now time.Time) Snapshot {
	snap := Snapshot{Time: now}
	for _, pair := range r.pairs {
		snap.Pairs = append(snap.Pairs, r.pairStatus(pair))
	}
	return snap
}

func (r *StatusReporter) pairStatus(pair market.ArbPair) PairStatus {
	status := PairStatus{Pair: pair}

	for _, leg := range []market.SymbolPair{pair.First, pair.Second} {
		mkt, ok := r.router.Market(leg.Market)
		if !ok {
			status.Warnings = append(status.Warnings, fmt.Sprintf("market %s not registered", leg.Market))
			continue
		}
		if mkt.NetworkStatus() != market.NetworkConnected {
			status.Warnings = append(status.Warnings, fmt.Sprintf("market %s disconnected", leg.Market))
		}

		row := PriceRow{Market: leg.Market, Symbol: leg.Symbol}
		if bid, err := mkt.BestBid(leg.Symbol); err == nil {
			row.BestBid = bid
			if adj, err := r.norm.Normalize(leg.Quote, bid); err == nil {
				row.AdjustedBid = adj
			}
		}
		if ask, err := mkt.BestAsk(leg.Symbol); err == nil {
			row.BestAsk = ask
			if adj, err := r.norm.Normalize(leg.Quote, ask); err == nil {
				row.AdjustedAsk = adj
			}
		}
		status.Prices = append(status.Prices, row)

		for _, asset := range []string{leg.Base, leg.Quote} {
			if bal, err := mkt.Balance(asset); err == nil {
				status.Balances = append(status.Balances, BalanceRow{Market: leg.Market, Asset: asset, Amount: bal})
			}
		}

		status.PendingMarketOrders = append(status.PendingMarketOrders, r.router.Ledger().TrackedMarketOrders(leg)...)
	}

	// Both-direction top-of-book profitability from the assembled rows.
	if len(status.Prices) == 2 {
		one := decimal.NewFromInt(1)
		if !status.Prices[1].AdjustedAsk.IsZero() {
			status.ProfitBuySecondSellFirst = status.Prices[0].AdjustedBid.Div(status.Prices[1].AdjustedAsk).Sub(one)
		}
		if !status.Prices[0].AdjustedAsk.IsZero() {
			status.ProfitBuyFirstSellSecond = status.Prices[1].AdjustedBid.Div(status.Prices[0].AdjustedAsk).Sub(one)
		}
	}

	return status
}

// Render formats a snapshot as a readable multi-line report
func (s Snapshot) Render() string {
	var b strings.Builder
	hundred := decimal.NewFromInt(100)

	fmt.Fprintf(&b, "═══ Status %s ═══\n", s.Time.Format("15:04:05"))
	for _, ps := range s.Pairs {
		fmt.Fprintf(&b, "Pair: %s\n", ps.Pair)

		b.WriteString("  Prices:\n")
		for _, row := range ps.Prices {
			fmt.Fprintf(&b, "    %-12s %-10s bid %-12s ask %-12s adj bid %-12s adj ask %-12s\n",
				row.Market, row.Symbol,
				row.BestBid.String(), row.BestAsk.String(),
				row.AdjustedBid.StringFixed(6), row.AdjustedAsk.StringFixed(6))
		}

		fmt.Fprintf(&b, "  Profitability: buy2/sell1 %s%%  buy1/sell2 %s%%\n",
			ps.ProfitBuySecondSellFirst.Mul(hundred).StringFixed(4),
			ps.ProfitBuyFirstSellSecond.Mul(hundred).StringFixed(4))

		b.WriteString("  Balances:\n")
		for _, row := range ps.Balances {
			fmt.Fprintf(&b, "    %-12s %-8s %s\n", row.Market, row.Asset, row.Amount.String())
		}

		if len(ps.PendingMarketOrders) > 0 {
			b.WriteString("  Pending market orders:\n")
			for _, o := range ps.PendingMarketOrders {
				fmt.Fprintf(&b, "    %s %s %s %s (age %s)\n",
					o.ID, o.Pair, o.Side, o.Amount.String(), s.Time.Sub(o.CreatedAt).Round(time.Second))
			}
		}

		for _, w := range ps.Warnings {
			fmt.Fprintf(&b, "  ⚠️  %s\n", w)
		}
	}
	return b.String()
}
