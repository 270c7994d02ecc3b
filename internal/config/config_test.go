package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/crossarb/internal/market"
)

func TestParsePairs(t *testing.T) {
	pairs, err := ParsePairs("binance:BTC-USDT:BTC:USDT|kraken:BTC-USD:BTC:USD")
	require.NoError(t, err)
	require.Len(t, pairs, 1)

	assert.Equal(t, market.NewSymbolPair("binance", "BTC-USDT", "BTC", "USDT"), pairs[0].First)
	assert.Equal(t, market.NewSymbolPair("kraken", "BTC-USD", "BTC", "USD"), pairs[0].Second)
}

func TestParsePairsMultipleEntries(t *testing.T) {
	raw := "binance:BTC-USDT:BTC:USDT|kraken:BTC-USD:BTC:USD, binance:ETH-USDT:ETH:USDT|kraken:ETH-USD:ETH:USD"
	pairs, err := ParsePairs(raw)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "ETH", pairs[1].First.Base)
}

func TestParsePairsEmptyInput(t *testing.T) {
	pairs, err := ParsePairs("  ")
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestParsePairsRejectsMalformedEntries(t *testing.T) {
	cases := map[string]string{
		"single leg":   "binance:BTC-USDT:BTC:USDT",
		"three fields": "binance:BTC-USDT:BTC|kraken:BTC-USD:BTC:USD",
		"three legs":   "binance:BTC-USDT:BTC:USDT|kraken:BTC-USD:BTC:USD|x:y:z:w",
		"empty field":  "binance::BTC:USDT|kraken:BTC-USD:BTC:USD",
	}
	for name, raw := range cases {
		_, err := ParsePairs(raw)
		assert.Error(t, err, "case %s: %q", name, raw)
	}
}

func validConfig() *Config {
	pairs, _ := ParsePairs("binance:BTC-USDT:BTC:USDT|kraken:BTC-USD:BTC:USD")
	return &Config{
		Pairs:            pairs,
		MinProfitability: decimal.NewFromFloat(0.003),
		CooldownInterval: 15 * time.Second,
		SettleHorizon:    600 * time.Second,
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateRequiresPairs(t *testing.T) {
	cfg := validConfig()
	cfg.Pairs = nil
	assert.Error(t, cfg.Validate())
}

func TestValidateNegativeProfitabilityNeedsDebug(t *testing.T) {
	cfg := validConfig()
	cfg.MinProfitability = decimal.NewFromFloat(-0.005)
	assert.Error(t, cfg.Validate())

	cfg.Debug = true
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveSettleHorizon(t *testing.T) {
	cfg := validConfig()
	cfg.SettleHorizon = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ARB_PAIRS", "binance:BTC-USDT:BTC:USDT|kraken:BTC-USD:BTC:USD")
	t.Setenv("MIN_PROFITABILITY", "0.01")
	t.Setenv("COOLDOWN_INTERVAL", "30s")
	t.Setenv("TELEGRAM_CHAT_ID", "12345")
	t.Setenv("LOG_STEP_PROFITABILITY", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Len(t, cfg.Pairs, 1)
	assert.True(t, cfg.MinProfitability.Equal(decimal.NewFromFloat(0.01)))
	assert.Equal(t, 30*time.Second, cfg.CooldownInterval)
	assert.Equal(t, int64(12345), cfg.TelegramChatID)
	assert.True(t, cfg.LogStepProfitability)

	// Untouched knobs keep their defaults.
	assert.Equal(t, time.Second, cfg.TickInterval)
	assert.Equal(t, 600*time.Second, cfg.SettleHorizon)
	assert.Equal(t, "USD", cfg.ReferenceAsset)
	assert.True(t, cfg.DryRun)
}

func TestLoadRejectsBadChatID(t *testing.T) {
	t.Setenv("ARB_PAIRS", "binance:BTC-USDT:BTC:USDT|kraken:BTC-USD:BTC:USD")
	t.Setenv("TELEGRAM_CHAT_ID", "not-a-number")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRequiresPairs(t *testing.T) {
	t.Setenv("ARB_PAIRS", "")
	_, err := Load()
	assert.Error(t, err)
}
