package journal

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TRADE JOURNAL - Dispatched fill persistence
// ═══════════════════════════════════════════════════════════════════════════════
//
// Append-only record of dispatched arbitrage legs. The journal is an audit
// trail, not strategy state: the engine never reads it back to decide, and a
// journaling failure never affects dispatch.
//
// ═══════════════════════════════════════════════════════════════════════════════

// TradeFill is one executed order leg
type TradeFill struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	Strategy   string `gorm:"index"`
	Market     string `gorm:"index"`
	Symbol     string
	BaseAsset  string
	QuoteAsset string
	OrderID    string `gorm:"index"`
	Side       string // BUY or SELL
	OrderKind  string // LIMIT or MARKET
	Price      decimal.Decimal `gorm:"type:decimal(24,10)"`
	Amount     decimal.Decimal `gorm:"type:decimal(24,10)"`
	FeePercent decimal.Decimal `gorm:"type:decimal(10,6)"`
	Timestamp  time.Time       `gorm:"index"`
	CreatedAt  time.Time
}

// Journal persists trade fills
type Journal struct {
	db *gorm.DB
}

// Open connects to postgres when dsn is set, otherwise to a local sqlite
// file at path.
func Open(dsn, path string) (*Journal, error) {
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	var db *gorm.DB
	var err error
	if dsn != "" {
		db, err = gorm.Open(postgres.Open(dsn), gormCfg)
	} else {
		if dir := filepath.Dir(path); dir != "." {
			if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
				return nil, mkErr
			}
		}
		db, err = gorm.Open(sqlite.Open(path), gormCfg)
	}
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&TradeFill{}); err != nil {
		return nil, err
	}

	log.Info().Msg("💾 Trade journal ready")
	return &Journal{db: db}, nil
}

// LogFill appends one fill record
func (j *Journal) LogFill(fill *TradeFill) error {
	return j.db.Create(fill).Error
}

// RecentFills returns the newest fills, most recent first
func (j *Journal) RecentFills(limit int) ([]TradeFill, error) {
	var fills []TradeFill
	err := j.db.Order("timestamp DESC").Limit(limit).Find(&fills).Error
	return fills, err
}

// FillsForOrder returns every fill recorded for an order id
func (j *Journal) FillsForOrder(orderID string) ([]TradeFill, error) {
	var fills []TradeFill
	err := j.db.Where("order_id = ?", orderID).Order("timestamp ASC").Find(&fills).Error
	return fills, err
}
