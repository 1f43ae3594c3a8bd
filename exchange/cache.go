package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"ha-futures-bot/interfaces"
	"ha-futures-bot/logging"
	"ha-futures-bot/metrics"
	"ha-futures-bot/models"
)

// CachedMarketData decorates MarketData with a Redis cache for candle
// windows. Mark prices are always fetched live. Cache failures never fail a
// fetch; they only fall through to the inner source.
type CachedMarketData struct {
	inner     interfaces.MarketData
	rdb       redis.UniversalClient
	ttl       time.Duration
	namespace string
	logger    logging.LoggerInterface
}

var _ interfaces.MarketData = (*CachedMarketData)(nil)

// NewCachedMarketData wraps inner. A zero ttl defaults to 5s and an empty
// namespace to "candles".
func NewCachedMarketData(rdb redis.UniversalClient, ttl time.Duration, inner interfaces.MarketData, namespace string, logger logging.LoggerInterface) *CachedMarketData {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	if namespace == "" {
		namespace = "candles"
	}
	return &CachedMarketData{inner: inner, rdb: rdb, ttl: ttl, namespace: namespace, logger: logger}
}

// FetchCandles serves from cache when possible.
func (c *CachedMarketData) FetchCandles(ctx context.Context, market, interval string, limit int) ([]models.Candle, error) {
	if c.rdb == nil {
		return c.inner.FetchCandles(ctx, market, interval, limit)
	}
	key := c.cacheKey(market, interval, limit)

	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out []models.Candle
		if err := json.Unmarshal(b, &out); err == nil {
			metrics.CandleCache.WithLabelValues("hit").Inc()
			return out, nil
		}
		_ = c.rdb.Del(ctx, key).Err()
	}
	metrics.CandleCache.WithLabelValues("miss").Inc()

	out, err := c.inner.FetchCandles(ctx, market, interval, limit)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(out); err == nil {
		if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil && c.logger != nil {
			c.logger.Debug("candle cache set %s: %v", key, err)
		}
	}
	return out, nil
}

// FetchMarkPrice is never cached.
func (c *CachedMarketData) FetchMarkPrice(ctx context.Context, market string) (float64, error) {
	return c.inner.FetchMarkPrice(ctx, market)
}

// Invalidate drops every cached window for market.
func (c *CachedMarketData) Invalidate(ctx context.Context, market string) error {
	if c.rdb == nil {
		return nil
	}
	pattern := fmt.Sprintf("%s:%s:*", c.namespace, safe(market))
	var cursor uint64
	for {
		keys, cur, err := c.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = cur
		if cursor == 0 {
			return nil
		}
	}
}

func (c *CachedMarketData) cacheKey(market, interval string, limit int) string {
	return fmt.Sprintf("%s:%s:%s:%d", c.namespace, safe(market), safe(interval), limit)
}

func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	return strings.ReplaceAll(s, ":", "_")
}
