package indicators

import (
	"fmt"
	"math"

	"ha-futures-bot/models"
)

// HeikinAshi converts parallel OHLC slices into a Heikin-Ashi series of the
// same length. Bar 0 opens at its own synthetic close.
func HeikinAshi(open, high, low, close []float64) (models.HeikinAshi, error) {
	n := len(close)
	if n == 0 {
		return models.HeikinAshi{}, fmt.Errorf("heikin ashi: empty input: %w", models.ErrInvalidInput)
	}
	if len(open) != n || len(high) != n || len(low) != n {
		return models.HeikinAshi{}, fmt.Errorf("heikin ashi: length mismatch o=%d h=%d l=%d c=%d: %w",
			len(open), len(high), len(low), n, models.ErrInvalidInput)
	}

	ha := models.HeikinAshi{
		Open:  make([]float64, n),
		High:  make([]float64, n),
		Low:   make([]float64, n),
		Close: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		c := (open[i] + high[i] + low[i] + close[i]) / 4
		o := c
		if i > 0 {
			o = (ha.Open[i-1] + ha.Close[i-1]) / 2
		}
		ha.Open[i] = o
		ha.Close[i] = c
		ha.High[i] = math.Max(high[i], math.Max(o, c))
		ha.Low[i] = math.Min(low[i], math.Min(o, c))
	}
	return ha, nil
}

// HeikinAshiFromCandles is HeikinAshi over a candle window.
func HeikinAshiFromCandles(candles []models.Candle) (models.HeikinAshi, error) {
	o, h, l, c, _ := Columns(candles)
	return HeikinAshi(o, h, l, c)
}

// Columns splits candles into parallel OHLCV slices.
func Columns(candles []models.Candle) (open, high, low, close, volume []float64) {
	n := len(candles)
	open = make([]float64, n)
	high = make([]float64, n)
	low = make([]float64, n)
	close = make([]float64, n)
	volume = make([]float64, n)
	for i, k := range candles {
		open[i], high[i], low[i], close[i], volume[i] = k.Open, k.High, k.Low, k.Close, k.Volume
	}
	return
}

// TrueRange returns one value per bar starting at bar 1:
// max(h-l, |h-prevClose|, |l-prevClose|). The result has len(close)-1 entries.
func TrueRange(high, low, close []float64) []float64 {
	if len(close) < 2 {
		return nil
	}
	out := make([]float64, 0, len(close)-1)
	for i := 1; i < len(close); i++ {
		tr := math.Max(high[i]-low[i], math.Max(math.Abs(high[i]-close[i-1]), math.Abs(low[i]-close[i-1])))
		out = append(out, tr)
	}
	return out
}

// TrendSignal runs the ATR-banded trend flip detector over a Heikin-Ashi
// series. The output has one entry per bar: +1 on a flip to up, -1 on a flip
// to down, otherwise 0. With carry set, unchanged bars repeat the last flip.
// The first two bars are always 0.
func TrendSignal(ha models.HeikinAshi, factor float64, carry bool) ([]int, error) {
	n := ha.Len()
	if n < 3 {
		return nil, fmt.Errorf("trend signal needs 3 bars, got %d: %w", n, models.ErrInsufficientData)
	}
	if len(ha.High) != n || len(ha.Low) != n {
		return nil, fmt.Errorf("trend signal: length mismatch: %w", models.ErrInvalidInput)
	}
	c := ha.Close
	atr := TrueRange(ha.High, ha.Low, c)

	// Bands start at bar 1, so band k belongs to bar k+1.
	up := make([]float64, n-1)
	dn := make([]float64, n-1)
	for k := 0; k < n-1; k++ {
		hl2 := (ha.High[k+1] + ha.Low[k+1]) / 2
		up[k] = hl2 - factor*atr[k]
		dn[k] = hl2 + factor*atr[k]
	}

	trendUp := make([]float64, n-1)
	trendDown := make([]float64, n-1)
	for i := 1; i < n-1; i++ {
		if c[i-1] > trendUp[i-1] {
			trendUp[i] = math.Max(up[i], trendUp[i-1])
		} else {
			trendUp[i] = up[i]
		}
		if c[i-1] < trendDown[i-1] {
			trendDown[i] = math.Min(dn[i], trendDown[i-1])
		} else {
			trendDown[i] = dn[i]
		}
	}

	// trend[k] classifies bar k+1.
	trend := make([]int, 0, n-1)
	last := 0
	for i := 1; i < n; i++ {
		tr := last
		switch {
		case c[i] > trendDown[i-1]:
			tr = 1
		case c[i] < trendUp[i-1]:
			tr = -1
		}
		last = tr
		trend = append(trend, tr)
	}

	out := make([]int, n)
	lastFlip := 0
	for k := 1; k < len(trend); k++ {
		v := 0
		switch {
		case trend[k] == 1 && trend[k-1] == -1:
			v, lastFlip = 1, 1
		case trend[k] == -1 && trend[k-1] == 1:
			v, lastFlip = -1, -1
		case carry:
			v = lastFlip
		}
		out[k+1] = v
	}
	return out, nil
}

// EMA is an exponential moving average seeded with the simple average of the
// first period values. Output has len(in)-period+1 entries.
func EMA(in []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("ema period %d: %w", period, models.ErrInvalidInput)
	}
	if len(in) < period {
		return nil, fmt.Errorf("ema(%d) over %d values: %w", period, len(in), models.ErrInsufficientData)
	}
	k := 2 / float64(1+period)
	sum := 0.0
	for _, v := range in[:period] {
		sum += v
	}
	out := make([]float64, 0, len(in)-period+1)
	prev := sum / float64(period)
	out = append(out, prev)
	for _, v := range in[period:] {
		prev = (v-prev)*k + prev
		out = append(out, prev)
	}
	return out, nil
}
