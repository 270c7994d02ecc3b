// Crossarb - Cross-exchange arbitrage decision engine
//
// Watches the same logical asset on two independently operated markets,
// detects when the fee- and rate-adjusted spread clears the configured
// profitability threshold, sizes the trade against both books' depth and
// both wallets' balances, and dispatches matched market buy/sell legs while
// tracking their lifecycle to prevent overlapping execution.
package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/crossarb/internal/config"
	"github.com/web3guy0/crossarb/internal/events"
	"github.com/web3guy0/crossarb/internal/feeds"
	"github.com/web3guy0/crossarb/internal/journal"
	"github.com/web3guy0/crossarb/internal/ledger"
	"github.com/web3guy0/crossarb/internal/market"
	"github.com/web3guy0/crossarb/internal/notify"
	"github.com/web3guy0/crossarb/internal/paper"
	"github.com/web3guy0/crossarb/internal/rates"
	"github.com/web3guy0/crossarb/internal/strategy"
)

const version = "1.0.0"

func main() {
	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load environment
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().
		Str("version", version).
		Int("pairs", len(cfg.Pairs)).
		Str("min_profitability", cfg.MinProfitability.String()).
		Bool("dry_run", cfg.DryRun).
		Msg("⚡ Crossarb starting...")

	// Trade journal
	jnl, err := journal.Open(cfg.DatabaseURL, cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open trade journal")
	}

	// Rate normalizer
	norm := rates.NewStaticNormalizer(cfg.ReferenceAsset)
	for asset, rate := range envRates() {
		norm.SetRate(asset, rate)
	}

	// Event bus and order ledger
	bus := events.NewBus()
	lgr := ledger.New(cfg.SettleHorizon)

	// Markets: one paper exchange per distinct market referenced by the
	// configured pairs. Real connectors plug in behind the same port; until
	// one is linked in, live mode has nothing to trade through.
	if !cfg.DryRun {
		log.Fatal().Msg("DRY_RUN=false requires live exchange connectors, none are built in")
	}
	feeSchedule := paper.FeeSchedule{Percent: envDecimal("PAPER_FEE_PERCENT", decimal.NewFromFloat(0.001))}
	baseBalance := envDecimal("PAPER_BASE_BALANCE", decimal.NewFromInt(10))
	quoteBalance := envDecimal("PAPER_QUOTE_BALANCE", decimal.NewFromInt(10000))
	lotStep := envDecimal("PAPER_LOT_STEP", decimal.NewFromFloat(0.0001))

	exchanges := make(map[string]*paper.Exchange)
	depthFeeds := make(map[string]*feeds.DepthFeed)
	for _, pair := range cfg.Pairs {
		for _, leg := range []market.SymbolPair{pair.First, pair.Second} {
			ex, ok := exchanges[leg.Market]
			if !ok {
				ex = paper.New(leg.Market, bus, feeSchedule)
				exchanges[leg.Market] = ex

				// Optional per-venue websocket depth stream, e.g.
				// FEED_URL_BINANCE=wss://...
				if url := os.Getenv("FEED_URL_" + strings.ToUpper(leg.Market)); url != "" {
					depthFeeds[leg.Market] = feeds.NewDepthFeed(leg.Market, url)
				}
			}
			ex.SetBalance(leg.Base, baseBalance)
			ex.SetBalance(leg.Quote, quoteBalance)
			ex.SetLotStep(leg.Symbol, lotStep)

			if feed, ok := depthFeeds[leg.Market]; ok {
				feed.Register(leg.Symbol, ex.Book(leg.Symbol))
			}
		}
	}

	for _, feed := range depthFeeds {
		if err := feed.Start(); err != nil {
			log.Warn().Err(err).Msg("⚠️ Depth feed failed to start")
		}
	}

	// Router + engine
	router := strategy.NewRouter(bus, lgr, nil, strategy.RouterOptions{
		MinOrderExpiry: cfg.MinOrderExpiry,
		LogCreation:    cfg.LogOrderCreation,
		LogCompletion:  cfg.LogOrderCompletion,
	})
	for _, ex := range exchanges {
		router.AddMarkets(ex)
	}

	engine, err := strategy.NewEngine(router, norm, cfg.Pairs, strategy.EngineConfig{
		MinProfitability:         cfg.MinProfitability,
		MinFallbackProfitability: cfg.MinFallbackProfitability,
		CooldownInterval:         cfg.CooldownInterval,
		SettleHorizon:            cfg.SettleHorizon,
		StatusInterval:           cfg.StatusInterval,
		LogStatusReport:          cfg.LogStatusReport,
		LogStepProfitability:     cfg.LogStepProfitability,
		LogFullDepth:             cfg.LogFullDepth,
		LogInsufficientAsset:     cfg.LogInsufficientAsset,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build arbitrage engine")
	}

	// Notifications
	var notifier notify.Notifier
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ Telegram disabled")
		} else {
			notifier = tg
		}
	}

	engine.OnDispatch(func(d strategy.Dispatch) {
		for _, leg := range []struct {
			pair    market.SymbolPair
			orderID string
			side    market.Side
			price   decimal.Decimal
		}{
			{d.BuyLeg, d.BuyOrderID, market.SideBuy, d.BuyPrice},
			{d.SellLeg, d.SellOrderID, market.SideSell, d.SellPrice},
		} {
			fill := &journal.TradeFill{
				Strategy:   "crossarb",
				Market:     leg.pair.Market,
				Symbol:     leg.pair.Symbol,
				BaseAsset:  leg.pair.Base,
				QuoteAsset: leg.pair.Quote,
				OrderID:    leg.orderID,
				Side:       string(leg.side),
				OrderKind:  string(market.KindMarket),
				Price:      leg.price,
				Amount:     d.Amount,
				Timestamp:  d.Time,
			}
			if err := jnl.LogFill(fill); err != nil {
				log.Warn().Err(err).Msg("Journal write failed")
			}
		}
		if notifier != nil {
			notifier.NotifyDispatch(d)
		}
	})
	if notifier != nil {
		engine.OnStatus(notifier.NotifyStatus)
	}

	log.Info().Msg("✅ All systems online")

	// Scheduler: one tick at a time, strictly sequential.
	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case now := <-ticker.C:
			for _, ex := range exchanges {
				ex.Tick(now)
			}
			router.Tick(now)
		case <-quit:
			log.Info().Msg("🛑 Received shutdown signal")
			for _, feed := range depthFeeds {
				feed.Stop()
			}
			router.Stop()
			log.Info().Msg("👋 Goodbye!")
			return
		}
	}
}

// envRates parses RATES="USDT:1.0,EUR:1.09" into a rate table
func envRates() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	raw := os.Getenv("RATES")
	if raw == "" {
		return out
	}
	for _, entry := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(entry), ":", 2)
		if len(parts) != 2 {
			continue
		}
		if rate, err := decimal.NewFromString(parts[1]); err == nil {
			out[parts[0]] = rate
		}
	}
	return out
}

func envDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}
