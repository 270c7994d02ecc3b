package rates

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// RATE NORMALIZER - Cross-market currency normalization
// ═══════════════════════════════════════════════════════════════════════════════
//
// Prices on the two legs of an arbitrage pair may be quoted in different
// assets (USDT vs USD vs EUR). The normalizer converts them into a common
// reference so spreads are comparable.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Normalizer converts native amounts into a common reference currency
type Normalizer interface {
	// Normalize converts an amount denominated in asset into the
	// reference currency.
	Normalize(asset string, amount decimal.Decimal) (decimal.Decimal, error)

	// Convert converts an amount from one asset to another.
	Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}

// StaticNormalizer is a table-backed normalizer. Rates are per-asset values
// in the reference currency and may be refreshed at runtime by a feed.
type StaticNormalizer struct {
	mu        sync.RWMutex
	reference string
	rates     map[string]decimal.Decimal // asset -> value of 1 unit in reference
}

// NewStaticNormalizer creates a normalizer with the given reference currency.
// The reference itself always has rate 1.
func NewStaticNormalizer(reference string) *StaticNormalizer {
	return &StaticNormalizer{
		reference: reference,
		rates:     map[string]decimal.Decimal{reference: decimal.NewFromInt(1)},
	}
}

// SetRate sets the value of one unit of asset in the reference currency
func (n *StaticNormalizer) SetRate(asset string, rate decimal.Decimal) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rates[asset] = rate
}

// Rate returns the stored rate for an asset
func (n *StaticNormalizer) Rate(asset string) (decimal.Decimal, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	rate, ok := n.rates[asset]
	return rate, ok
}

// Normalize converts an amount in asset into the reference currency
func (n *StaticNormalizer) Normalize(asset string, amount decimal.Decimal) (decimal.Decimal, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	rate, ok := n.rates[asset]
	if !ok {
		return decimal.Zero, fmt.Errorf("no rate for asset %s", asset)
	}
	return amount.Mul(rate), nil
}

// Convert converts an amount from one asset to another through the reference
func (n *StaticNormalizer) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	fromRate, ok := n.rates[from]
	if !ok {
		return decimal.Zero, fmt.Errorf("no rate for asset %s", from)
	}
	toRate, ok := n.rates[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("no rate for asset %s", to)
	}
	if toRate.IsZero() {
		return decimal.Zero, fmt.Errorf("zero rate for asset %s", to)
	}
	return amount.Mul(fromRate).Div(toRate), nil
}
