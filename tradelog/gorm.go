package tradelog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ha-futures-bot/interfaces"
	"ha-futures-bot/models"
)

// TradeModel is the persisted row behind models.TradeRecord.
type TradeModel struct {
	ID           uint      `gorm:"primaryKey"`
	Time         time.Time `gorm:"index"`
	Market       string    `gorm:"size:32;index"`
	Quantity     float64
	Leverage     int
	Side         string `gorm:"size:8"`
	Cause        string `gorm:"size:64"`
	TriggerPrice float64
	MarketPrice  float64
	OrderType    string `gorm:"size:32"`
}

func (TradeModel) TableName() string { return "trades" }

func toModel(r models.TradeRecord) TradeModel {
	return TradeModel{
		Time: r.Time, Market: r.Market, Quantity: r.Quantity, Leverage: r.Leverage, Side: r.Side,
		Cause: r.Cause, TriggerPrice: r.TriggerPrice, MarketPrice: r.MarketPrice, OrderType: r.OrderType,
	}
}

func (m TradeModel) record() models.TradeRecord {
	return models.TradeRecord{
		Time: m.Time, Market: m.Market, Quantity: m.Quantity, Leverage: m.Leverage, Side: m.Side,
		Cause: m.Cause, TriggerPrice: m.TriggerPrice, MarketPrice: m.MarketPrice, OrderType: m.OrderType,
	}
}

// GormJournal stores trade records in a SQL table. Rows are only inserted.
type GormJournal struct {
	db *gorm.DB
}

// NewGormJournal wraps db and migrates the trades table.
func NewGormJournal(db *gorm.DB) (*GormJournal, error) {
	if err := db.AutoMigrate(&TradeModel{}); err != nil {
		return nil, fmt.Errorf("migrate trades: %w", err)
	}
	return &GormJournal{db: db}, nil
}

// OpenDSN picks a driver from dsn: "sqlite:<file>" or a postgres URL/keyword DSN.
func OpenDSN(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	switch {
	case strings.HasPrefix(dsn, "sqlite:"):
		return gorm.Open(sqlite.Open(strings.TrimPrefix(dsn, "sqlite:")), cfg)
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"), strings.Contains(dsn, "host="):
		return gorm.Open(postgres.Open(dsn), cfg)
	}
	return nil, fmt.Errorf("unsupported trade log dsn %q: %w", dsn, models.ErrInvalidInput)
}

// Open returns the journal configured by dsn and path: a SQL journal when dsn
// is set, the CSV file otherwise.
func Open(dsn, path string) (interfaces.TradeJournal, error) {
	if dsn == "" {
		return NewCSVJournal(path)
	}
	db, err := OpenDSN(dsn)
	if err != nil {
		return nil, err
	}
	return NewGormJournal(db)
}

func (j *GormJournal) Append(ctx context.Context, rec models.TradeRecord) error {
	row := toModel(rec)
	return j.db.WithContext(ctx).Create(&row).Error
}

// Recent returns the last n records, oldest first.
func (j *GormJournal) Recent(ctx context.Context, n int) ([]models.TradeRecord, error) {
	if n <= 0 {
		n = 10
	}
	var rows []TradeModel
	if err := j.db.WithContext(ctx).Order("id desc").Limit(n).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.TradeRecord, len(rows))
	for i, r := range rows {
		out[len(rows)-1-i] = r.record()
	}
	return out, nil
}

func (j *GormJournal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
