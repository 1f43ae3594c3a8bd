package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ha-futures-bot/models"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()
	assert.Equal(t, "ETHUSDT", cfg.Market)
	assert.Equal(t, 3, cfg.Leverage)
	assert.Equal(t, []string{"1m", "5m", "15m"}, cfg.Timeframes)
	assert.Equal(t, 0.40, cfg.CapitalFraction)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 3*time.Second, cfg.SettleDelay)
	assert.Equal(t, 15*time.Second, cfg.ExchangeCooldown)
	assert.Equal(t, 1000, cfg.CandleLimit)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("MARKET", "btcusdt")
	t.Setenv("LEVERAGE", "5")
	t.Setenv("TRADING_PERIODS", " 5m, ,1h ")
	t.Setenv("POLL_INTERVAL", "2.5")
	t.Setenv("SETTLE_DELAY", "500ms")
	t.Setenv("USE_LAST_SIGNAL", "yes")
	t.Setenv("TAKE_PROFIT", "not-a-number")

	cfg := LoadConfig()
	assert.Equal(t, "BTCUSDT", cfg.Market)
	assert.Equal(t, 5, cfg.Leverage)
	assert.Equal(t, []string{"5m", "1h"}, cfg.Timeframes)
	assert.Equal(t, 2500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.SettleDelay)
	assert.True(t, cfg.UseLastSignal)
	assert.Equal(t, 4.0, cfg.TakeProfitPerc, "invalid float falls back to default")
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cfg := LoadConfig()
	cfg.Leverage = 0
	cfg.Timeframes = nil
	cfg.MarginType = "PORTFOLIO"
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.Contains(t, err.Error(), "leverage 0 < 1")
	assert.Contains(t, err.Error(), "no trading periods")
}

func TestValidateRejectsZeroMACDPeriods(t *testing.T) {
	cfg := LoadConfig()
	require.NoError(t, cfg.Validate())

	cfg.MACDSlow = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.Contains(t, err.Error(), "macd periods 12/0/9 must be positive")
}
