package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/crossarb/internal/market"
)

// Config holds all configuration for the arbitrage engine
type Config struct {
	// Arbitrage pairs, parsed from ARB_PAIRS
	Pairs []market.ArbPair

	// Decision thresholds
	MinProfitability         decimal.Decimal // e.g. 0.003 = 0.3%; negative only with Debug
	MinFallbackProfitability decimal.Decimal // acceptance bar for balance-capped sizing

	// Timing
	TickInterval     time.Duration
	StatusInterval   time.Duration
	CooldownInterval time.Duration
	MinOrderExpiry   time.Duration
	SettleHorizon    time.Duration // market orders younger than this block a pair

	// Rates
	ReferenceAsset string

	// Logging detail flags
	LogStatusReport      bool
	LogOrderCreation     bool
	LogOrderCompletion   bool
	LogStepProfitability bool
	LogFullDepth         bool
	LogInsufficientAsset bool

	// Telegram
	TelegramToken  string
	TelegramChatID int64

	// Database
	DatabaseURL  string // postgres DSN; empty means sqlite
	DatabasePath string

	// Mode
	DryRun bool
	Debug  bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		MinProfitability:         getEnvDecimal("MIN_PROFITABILITY", decimal.NewFromFloat(0.003)),
		MinFallbackProfitability: getEnvDecimal("MIN_FALLBACK_PROFITABILITY", decimal.NewFromFloat(-0.01)),

		TickInterval:     getEnvDuration("TICK_INTERVAL", time.Second),
		StatusInterval:   getEnvDuration("STATUS_INTERVAL", 60*time.Second),
		CooldownInterval: getEnvDuration("COOLDOWN_INTERVAL", 15*time.Second),
		MinOrderExpiry:   getEnvDuration("MIN_ORDER_EXPIRY", 130*time.Second),
		SettleHorizon:    getEnvDuration("SETTLE_HORIZON", 600*time.Second),

		ReferenceAsset: getEnv("REFERENCE_ASSET", "USD"),

		LogStatusReport:      getEnvBool("LOG_STATUS_REPORT", true),
		LogOrderCreation:     getEnvBool("LOG_ORDER_CREATION", true),
		LogOrderCompletion:   getEnvBool("LOG_ORDER_COMPLETION", true),
		LogStepProfitability: getEnvBool("LOG_STEP_PROFITABILITY", false),
		LogFullDepth:         getEnvBool("LOG_FULL_DEPTH", false),
		LogInsufficientAsset: getEnvBool("LOG_INSUFFICIENT_ASSET", true),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabasePath: getEnv("DATABASE_PATH", "data/crossarb.db"),

		DryRun: getEnvBool("DRY_RUN", true),
		Debug:  getEnvBool("DEBUG", false),
	}

	// Parse chat ID
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	pairs, err := ParsePairs(os.Getenv("ARB_PAIRS"))
	if err != nil {
		return nil, err
	}
	cfg.Pairs = pairs

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate enforces construction-time invariants. Violations here are fatal;
// they never surface at tick time.
func (c *Config) Validate() error {
	if len(c.Pairs) == 0 {
		return fmt.Errorf("ARB_PAIRS is required: no arbitrage pairs configured")
	}
	if c.MinProfitability.IsNegative() && !c.Debug {
		return fmt.Errorf("negative MIN_PROFITABILITY is allowed only with DEBUG=true")
	}
	if c.CooldownInterval < 0 || c.SettleHorizon <= 0 {
		return fmt.Errorf("cooldown and settle horizon must be positive")
	}
	return nil
}

// ParsePairs parses the ARB_PAIRS format:
//
//	leg "|" leg { "," leg "|" leg }
//
// where each leg is "market:symbol:base:quote", e.g.
//
//	binance:BTC-USDT:BTC:USDT|kraken:BTC-USD:BTC:USD
func ParsePairs(raw string) ([]market.ArbPair, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var pairs []market.ArbPair
	for _, entry := range strings.Split(raw, ",") {
		legs := strings.Split(strings.TrimSpace(entry), "|")
		if len(legs) != 2 {
			return nil, fmt.Errorf("invalid pair entry %q: want two legs separated by |", entry)
		}
		first, err := parseLeg(legs[0])
		if err != nil {
			return nil, err
		}
		second, err := parseLeg(legs[1])
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, market.ArbPair{First: first, Second: second})
	}
	return pairs, nil
}

func parseLeg(raw string) (market.SymbolPair, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 4 {
		return market.SymbolPair{}, fmt.Errorf("invalid leg %q: want market:symbol:base:quote", raw)
	}
	for _, p := range parts {
		if p == "" {
			return market.SymbolPair{}, fmt.Errorf("invalid leg %q: empty field", raw)
		}
	}
	return market.NewSymbolPair(parts[0], parts[1], parts[2], parts[3]), nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}
