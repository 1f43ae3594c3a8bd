package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ha-futures-bot/models"
)

type stubMarket struct {
	candles []models.Candle
	price   float64
	err     error
	calls   int
}

func (s *stubMarket) FetchCandles(context.Context, string, string, int) ([]models.Candle, error) {
	s.calls++
	return s.candles, s.err
}

func (s *stubMarket) FetchMarkPrice(context.Context, string) (float64, error) {
	return s.price, s.err
}

var sampleCandles = []models.Candle{
	{OpenTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 3},
}

func TestCachedMarketDataDefaults(t *testing.T) {
	c := NewCachedMarketData(nil, 0, &stubMarket{}, "", nil)
	assert.Equal(t, 5*time.Second, c.ttl)
	assert.Equal(t, "candles", c.namespace)
}

func TestCachedMarketDataNilRedisBypasses(t *testing.T) {
	inner := &stubMarket{candles: sampleCandles}
	c := NewCachedMarketData(nil, time.Second, inner, "candles", nil)
	out, err := c.FetchCandles(context.Background(), "ETHUSDT", "1m", 1000)
	require.NoError(t, err)
	assert.Equal(t, sampleCandles, out)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedMarketDataHit(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	b, _ := json.Marshal(sampleCandles)
	mock.ExpectGet("candles:ETHUSDT:1m:1000").SetVal(string(b))

	inner := &stubMarket{}
	c := NewCachedMarketData(rdb, time.Minute, inner, "candles", nil)
	out, err := c.FetchCandles(context.Background(), "ETHUSDT", "1m", 1000)
	require.NoError(t, err)
	assert.Equal(t, sampleCandles, out)
	assert.Zero(t, inner.calls, "inner source should not be called on a hit")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedMarketDataMissStores(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	b, _ := json.Marshal(sampleCandles)
	mock.ExpectGet("candles:ETHUSDT:5m:1000").RedisNil()
	mock.ExpectSet("candles:ETHUSDT:5m:1000", b, 20*time.Second).SetVal("OK")

	inner := &stubMarket{candles: sampleCandles}
	c := NewCachedMarketData(rdb, 20*time.Second, inner, "candles", nil)
	out, err := c.FetchCandles(context.Background(), "ETHUSDT", "5m", 1000)
	require.NoError(t, err)
	assert.Len(t, out, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedMarketDataCorruptEntryFallsBack(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	b, _ := json.Marshal(sampleCandles)
	mock.ExpectGet("candles:ETHUSDT:1m:10").SetVal("{not json")
	mock.ExpectDel("candles:ETHUSDT:1m:10").SetVal(1)
	mock.ExpectSet("candles:ETHUSDT:1m:10", b, time.Minute).SetVal("OK")

	inner := &stubMarket{candles: sampleCandles}
	c := NewCachedMarketData(rdb, time.Minute, inner, "candles", nil)
	_, err := c.FetchCandles(context.Background(), "ETHUSDT", "1m", 10)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedMarketDataInnerError(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()
	mock.ExpectGet("candles:ETHUSDT:1m:10").RedisNil()

	boom := errors.New("exchange down")
	c := NewCachedMarketData(rdb, time.Minute, &stubMarket{err: boom}, "candles", nil)
	_, err := c.FetchCandles(context.Background(), "ETHUSDT", "1m", 10)
	assert.ErrorIs(t, err, boom)
}

func TestCachedMarketDataMarkPriceIsLive(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()
	c := NewCachedMarketData(rdb, time.Minute, &stubMarket{price: 2000}, "candles", nil)
	p, err := c.FetchMarkPrice(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, 2000.0, p)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedMarketDataInvalidate(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	mock.ExpectScan(0, "candles:ETHUSDT:*", 200).SetVal([]string{"candles:ETHUSDT:1m:1000", "candles:ETHUSDT:5m:1000"}, 0)
	mock.ExpectDel("candles:ETHUSDT:1m:1000", "candles:ETHUSDT:5m:1000").SetVal(2)

	c := NewCachedMarketData(rdb, time.Minute, &stubMarket{}, "candles", nil)
	require.NoError(t, c.Invalidate(context.Background(), "ETHUSDT"))
	require.NoError(t, mock.ExpectationsWereMet())
}
