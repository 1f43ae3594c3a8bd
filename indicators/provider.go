package indicators

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"ha-futures-bot/internal/constants"
	"ha-futures-bot/models"
)

// Snapshot keys produced by TalibProvider.
const (
	KeyMA50High    = "ma50_high"
	KeyMA50Low     = "ma50_low"
	KeyMA20Close   = "ma20_close"
	KeyMACD        = "macd"
	KeyMACDSignal  = "macd_signal"
	KeyHistCurrent = "macd_hist_current"
	KeyHistPrev    = "macd_hist_prev"
	KeyEMAClose    = "ema_close"
	KeyRSI         = "rsi"
	KeyOpen        = "open"
)

// Provider computes an indicator snapshot for the latest bar of a candle window.
type Provider interface {
	Snapshot(candles []models.Candle) (models.IndicatorSnapshot, error)
}

// MACDParams configures the MACD variant. Fast and slow MAs may use different types.
type MACDParams struct {
	FastPeriod   int
	FastType     talib.MaType
	SlowPeriod   int
	SlowType     talib.MaType
	SignalPeriod int
	SignalType   talib.MaType
}

// DefaultMACDParams is fast 12 SMA, slow 7 SMA, signal 9 SMA over close.
func DefaultMACDParams() MACDParams {
	return MACDParams{
		FastPeriod:   constants.DefaultMACDFast,
		FastType:     talib.SMA,
		SlowPeriod:   constants.DefaultMACDSlow,
		SlowType:     talib.SMA,
		SignalPeriod: constants.DefaultMACDSignal,
		SignalType:   talib.SMA,
	}
}

// ParseMaType maps a TA-Lib moving-average name to its type.
func ParseMaType(name string) (talib.MaType, error) {
	switch name {
	case "SMA", "":
		return talib.SMA, nil
	case "EMA":
		return talib.EMA, nil
	case "WMA":
		return talib.WMA, nil
	case "DEMA":
		return talib.DEMA, nil
	case "TEMA":
		return talib.TEMA, nil
	case "TRIMA":
		return talib.TRIMA, nil
	case "KAMA":
		return talib.KAMA, nil
	case "T3":
		return talib.T3MA, nil
	}
	return talib.SMA, fmt.Errorf("unknown MA type %q: %w", name, models.ErrInvalidInput)
}

// TalibProvider computes the confirmation basket with go-talib.
type TalibProvider struct {
	SlowMAPeriod int
	FastMAPeriod int
	MACD         MACDParams
	EMAPeriod    int
	RSIPeriod    int
}

// NewTalibProvider returns a provider with the default basket.
func NewTalibProvider(macd MACDParams) *TalibProvider {
	return &TalibProvider{
		SlowMAPeriod: constants.DefaultSlowMAPeriod,
		FastMAPeriod: constants.DefaultFastMAPeriod,
		MACD:         macd,
		EMAPeriod:    constants.DefaultEMAPeriod,
		RSIPeriod:    constants.DefaultRSIPeriod,
	}
}

// lookback is the number of bars needed before the histogram has two valid values.
func (p *TalibProvider) lookback() int {
	slow := p.MACD.SlowPeriod
	if p.MACD.FastPeriod > slow {
		slow = p.MACD.FastPeriod
	}
	need := slow + p.MACD.SignalPeriod
	for _, v := range []int{p.SlowMAPeriod, p.FastMAPeriod} {
		if v > need {
			need = v
		}
	}
	return need
}

// Snapshot implements Provider. Diagnostic keys (EMA, RSI) are only filled
// when the window is long enough for them.
func (p *TalibProvider) Snapshot(candles []models.Candle) (models.IndicatorSnapshot, error) {
	n := len(candles)
	if n < p.lookback() {
		return nil, fmt.Errorf("indicator basket needs %d bars, got %d: %w", p.lookback(), n, models.ErrInsufficientData)
	}
	open, high, low, close, _ := Columns(candles)

	snap := models.IndicatorSnapshot{
		KeyOpen:      open[n-1],
		KeyMA50High:  last(talib.Ma(high, p.SlowMAPeriod, talib.SMA)),
		KeyMA50Low:   last(talib.Ma(low, p.SlowMAPeriod, talib.SMA)),
		KeyMA20Close: last(talib.Ma(close, p.FastMAPeriod, talib.SMA)),
	}

	fastPeriod, fastType := p.MACD.FastPeriod, p.MACD.FastType
	slowPeriod, slowType := p.MACD.SlowPeriod, p.MACD.SlowType
	// TA-Lib's MACDEXT treats the shorter period as fast; go-talib does not.
	if slowPeriod < fastPeriod {
		fastPeriod, slowPeriod = slowPeriod, fastPeriod
		fastType, slowType = slowType, fastType
	}
	macd, signal, hist := talib.MacdExt(close,
		fastPeriod, fastType,
		slowPeriod, slowType,
		p.MACD.SignalPeriod, p.MACD.SignalType)
	if len(hist) < 2 {
		return nil, fmt.Errorf("macd histogram too short: %w", models.ErrInsufficientData)
	}
	snap[KeyMACD] = last(macd)
	snap[KeyMACDSignal] = last(signal)
	snap[KeyHistCurrent] = hist[len(hist)-1]
	snap[KeyHistPrev] = hist[len(hist)-2]

	if p.EMAPeriod > 0 && n > p.EMAPeriod {
		snap[KeyEMAClose] = last(talib.Ema(close, p.EMAPeriod))
	}
	if p.RSIPeriod > 0 && n > p.RSIPeriod {
		snap[KeyRSI] = last(talib.Rsi(close, p.RSIPeriod))
	}
	return snap, nil
}

func last(v []float64) float64 {
	if len(v) == 0 {
		return math.NaN()
	}
	return v[len(v)-1]
}
