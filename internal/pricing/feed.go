package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/daffhaidar/solana-staking-app/internal/cache"
	"github.com/daffhaidar/solana-staking-app/internal/models"
	"github.com/daffhaidar/solana-staking-app/internal/util"
)

const (
	// DefaultWindowDays is the trailing window used when the caller does not
	// ask for one.
	DefaultWindowDays = 7

	// Cap on rows returned for a single window, whatever its length.
	maxWindowRows = 1000
)

var ErrNoSamples = errors.New("no price samples recorded")

// Feed reads and appends SOL/USD price samples. The request path only ever
// reads; Append belongs to the collector.
type Feed struct {
	db    *gorm.DB
	cache *cache.PriceCache
}

func NewFeed(db *gorm.DB, c *cache.PriceCache) *Feed {
	return &Feed{db: db, cache: c}
}

// RecentPrices returns the samples from the trailing `days` window, newest
// first. The window is a time filter, not a row count.
func (f *Feed) RecentPrices(ctx context.Context, days int) ([]models.SolPrice, error) {
	if days <= 0 {
		days = DefaultWindowDays
	}
	start, end := util.DayWindow(days)
	var samples []models.SolPrice
	err := f.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp < ?", start, end).
		Order("timestamp DESC").
		Limit(maxWindowRows).
		Find(&samples).Error
	if err != nil {
		return nil, err
	}
	return samples, nil
}

// Append records a sample with a server-set timestamp and refreshes the
// latest-sample cache.
func (f *Feed) Append(ctx context.Context, price decimal.Decimal) (*models.SolPrice, error) {
	sample := models.SolPrice{
		Timestamp: util.Now(),
		PriceUSD:  price.Round(2),
	}
	if err := f.db.WithContext(ctx).Create(&sample).Error; err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(sample); err == nil {
		f.cache.SetLatest(ctx, string(payload))
	}
	return &sample, nil
}

// AppendAt records a sample with an explicit timestamp. Backfill helper for
// tests and imports; the live collector uses Append.
func (f *Feed) AppendAt(ctx context.Context, ts time.Time, price decimal.Decimal) (*models.SolPrice, error) {
	sample := models.SolPrice{Timestamp: ts, PriceUSD: price.Round(2)}
	if err := f.db.WithContext(ctx).Create(&sample).Error; err != nil {
		return nil, err
	}
	return &sample, nil
}

// Latest returns the newest sample, from cache when possible.
func (f *Feed) Latest(ctx context.Context) (*models.SolPrice, error) {
	if payload, ok := f.cache.Latest(ctx); ok {
		var sample models.SolPrice
		if err := json.Unmarshal([]byte(payload), &sample); err == nil {
			return &sample, nil
		}
	}
	var sample models.SolPrice
	err := f.db.WithContext(ctx).Order("timestamp DESC").First(&sample).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoSamples
	}
	if err != nil {
		return nil, err
	}
	return &sample, nil
}
