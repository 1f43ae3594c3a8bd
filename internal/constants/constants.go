package constants

import "time"

// Order sides
const (
	Buy  = "BUY"
	Sell = "SELL"
)

// Journal order types and causes
const (
	OrderTypeMarket       = "MARKET"
	OrderTypeStopMarket   = "STOP_MARKET"
	OrderTypeTrailingStop = "TRAILING_STOP_MARKET"
	OrderTypeExit         = "exit"
	CauseSignalChange     = "Signal Change"
	CauseStopLoss         = "Stop Loss"
	CauseTrailingStop     = "Trailing Take Profit"
	CauseManualClose      = "Manual Close"
)

// Margin types
const (
	MarginCrossed  = "CROSSED"
	MarginIsolated = "ISOLATED"
)

// Timeframes
const (
	Minute1  = "1m"
	Minute3  = "3m"
	Minute5  = "5m"
	Minute15 = "15m"
	Minute30 = "30m"
	Hour1    = "1h"
	Hour4    = "4h"
)

// Indicator defaults
const (
	DefaultSlowMAPeriod = 50
	DefaultFastMAPeriod = 20
	DefaultMACDFast     = 12
	DefaultMACDSlow     = 7
	DefaultMACDSignal   = 9
	DefaultEMAPeriod    = 200
	DefaultRSIPeriod    = 14
	DefaultTrendFactor  = 1.0
)

// Loop defaults
const (
	DefaultCandleLimit     = 1000
	DefaultCapitalFraction = 0.40
	DefaultPollInterval    = 10 * time.Second
	DefaultSettleDelay     = 3 * time.Second
	DefaultPacingDelay     = 3 * time.Second
	DefaultCooldown        = 15 * time.Second
	// Fallback precisions when a symbol is missing from exchange info.
	DefaultQuantityPrecision = 3
	DefaultPricePrecision    = 2
)
