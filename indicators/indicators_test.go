package indicators

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ha-futures-bot/models"
)

func randomCandles(n int, seed int64) []models.Candle {
	r := rand.New(rand.NewSource(seed))
	out := make([]models.Candle, n)
	price := 2000.0
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		o := price
		c := o + (r.Float64()-0.5)*20
		h := math.Max(o, c) + r.Float64()*5
		l := math.Min(o, c) - r.Float64()*5
		out[i] = models.Candle{OpenTime: start.Add(time.Duration(i) * time.Minute), Open: o, High: h, Low: l, Close: c, Volume: 10 + r.Float64()}
		price = c
	}
	return out
}

func TestHeikinAshiFirstBar(t *testing.T) {
	ha, err := HeikinAshi([]float64{10}, []float64{14}, []float64{8}, []float64{12})
	require.NoError(t, err)
	assert.Equal(t, 11.0, ha.Close[0])
	assert.Equal(t, 11.0, ha.Open[0])
	assert.Equal(t, 14.0, ha.High[0])
	assert.Equal(t, 8.0, ha.Low[0])
}

func TestHeikinAshiRecurrence(t *testing.T) {
	ha, err := HeikinAshi(
		[]float64{10, 12},
		[]float64{14, 13},
		[]float64{8, 11},
		[]float64{12, 12},
	)
	require.NoError(t, err)
	// bar 1: close = (12+13+11+12)/4 = 12, open = (11+11)/2 = 11
	assert.Equal(t, 12.0, ha.Close[1])
	assert.Equal(t, 11.0, ha.Open[1])
	assert.Equal(t, 13.0, ha.High[1])
	assert.Equal(t, 11.0, ha.Low[1])
}

func TestHeikinAshiBounds(t *testing.T) {
	ha, err := HeikinAshiFromCandles(randomCandles(500, 7))
	require.NoError(t, err)
	for i := 0; i < ha.Len(); i++ {
		if ha.Low[i] > math.Min(ha.Open[i], ha.Close[i]) {
			t.Fatalf("bar %d: low %v above body", i, ha.Low[i])
		}
		if ha.High[i] < math.Max(ha.Open[i], ha.Close[i]) {
			t.Fatalf("bar %d: high %v below body", i, ha.High[i])
		}
	}
}

func TestHeikinAshiRejectsBadInput(t *testing.T) {
	_, err := HeikinAshi(nil, nil, nil, nil)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = HeikinAshi([]float64{1, 2}, []float64{1}, []float64{1, 2}, []float64{1, 2})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestTrueRange(t *testing.T) {
	tr := TrueRange([]float64{10, 12, 11}, []float64{8, 9, 7}, []float64{9, 11, 10})
	require.Len(t, tr, 2)
	assert.Equal(t, 3.0, tr[0]) // max(3, |12-9|, |9-9|)
	assert.Equal(t, 4.0, tr[1]) // max(4, |11-11|, |7-11|)
}

func TestTrendSignalFirstTwoBarsZero(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		ha, err := HeikinAshiFromCandles(randomCandles(3+int(seed)*7, seed))
		require.NoError(t, err)
		for _, carry := range []bool{false, true} {
			sig, err := TrendSignal(ha, 1, carry)
			require.NoError(t, err)
			require.Len(t, sig, ha.Len())
			if sig[0] != 0 || sig[1] != 0 {
				t.Fatalf("seed %d carry %v: first bars %v %v", seed, carry, sig[0], sig[1])
			}
		}
	}
}

func TestTrendSignalInsufficientData(t *testing.T) {
	ha, err := HeikinAshiFromCandles(randomCandles(2, 1))
	require.NoError(t, err)
	_, err = TrendSignal(ha, 1, false)
	if !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestTrendSignalFlipsOnReversal(t *testing.T) {
	var closes []float64
	for i := 0; i < 30; i++ {
		closes = append(closes, 100-float64(i))
	}
	for i := 0; i < 30; i++ {
		closes = append(closes, 70+float64(i)*3)
	}
	opens := make([]float64, len(closes))
	highs := make([]float64, len(closes))
	lows := make([]float64, len(closes))
	for i, c := range closes {
		opens[i] = c
		if i > 0 {
			opens[i] = closes[i-1]
		}
		highs[i] = math.Max(opens[i], c) + 0.5
		lows[i] = math.Min(opens[i], c) - 0.5
	}
	ha, err := HeikinAshi(opens, highs, lows, closes)
	require.NoError(t, err)

	sig, err := TrendSignal(ha, 1, false)
	require.NoError(t, err)
	var ups, downs int
	for _, v := range sig {
		switch v {
		case 1:
			ups++
		case -1:
			downs++
		}
	}
	assert.GreaterOrEqual(t, ups, 1, "expected an up flip after the reversal")
	assert.GreaterOrEqual(t, downs, 1, "expected a down flip during the decline")

	carried, err := TrendSignal(ha, 1, true)
	require.NoError(t, err)
	assert.Equal(t, 1, carried[len(carried)-1], "carry mode should hold the last up flip")
}

func TestEMASeededWithSMA(t *testing.T) {
	out, err := EMA([]float64{1, 2, 3, 4, 5}, 3)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, 2.0, out[0])
	assert.InDelta(t, 3.0, out[1], 1e-12) // (4-2)*0.5+2
	assert.InDelta(t, 4.0, out[2], 1e-12)

	_, err = EMA([]float64{1}, 3)
	assert.ErrorIs(t, err, models.ErrInsufficientData)
	_, err = EMA([]float64{1, 2, 3}, 0)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestTalibProviderSnapshot(t *testing.T) {
	p := NewTalibProvider(DefaultMACDParams())
	snap, err := p.Snapshot(randomCandles(1000, 3))
	require.NoError(t, err)
	vals, err := snap.Require(KeyMA50High, KeyMA50Low, KeyMA20Close, KeyHistCurrent, KeyHistPrev)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, vals[0], vals[1], "MA of highs should not be below MA of lows")
	_, ok := snap[KeyRSI]
	assert.True(t, ok)
}

// acceleratingCandles is a flat-bodied series with close i*i/10, so every
// moving-average difference over it is positive and growing.
func acceleratingCandles(n int) []models.Candle {
	out := make([]models.Candle, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		c := float64(i*i) / 10
		out[i] = models.Candle{OpenTime: start.Add(time.Duration(i) * time.Minute), Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	return out
}

func meanOf(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func TestTalibProviderMACDUsesShortMinusLong(t *testing.T) {
	candles := acceleratingCandles(200)
	_, _, _, closes, _ := Columns(candles)

	// MA7 - MA12 at each of the last ten bars, signal is SMA9 of that line.
	line := func(end int) float64 {
		return meanOf(closes[end-7:end]) - meanOf(closes[end-12:end])
	}
	n := len(closes)
	var lines []float64
	for end := n - 9; end <= n; end++ {
		lines = append(lines, line(end))
	}
	wantMACD := lines[len(lines)-1]
	wantSignal := meanOf(lines[1:])
	wantPrevHist := lines[len(lines)-2] - meanOf(lines[:9])

	p := NewTalibProvider(DefaultMACDParams())
	snap, err := p.Snapshot(candles)
	require.NoError(t, err)
	vals, err := snap.Require(KeyMACD, KeyMACDSignal, KeyHistCurrent, KeyHistPrev)
	require.NoError(t, err)

	assert.Greater(t, vals[0], 0.0, "uptrend must give a positive MACD line")
	assert.Greater(t, vals[2], 0.0, "accelerating uptrend must give a positive histogram")
	assert.InDelta(t, wantMACD, vals[0], 1e-6)
	assert.InDelta(t, wantSignal, vals[1], 1e-6)
	assert.InDelta(t, wantMACD-wantSignal, vals[2], 1e-6)
	assert.InDelta(t, wantPrevHist, vals[3], 1e-6)

	// Declaring the periods the other way round gives the same line.
	swapped := DefaultMACDParams()
	swapped.FastPeriod, swapped.SlowPeriod = swapped.SlowPeriod, swapped.FastPeriod
	other, err := NewTalibProvider(swapped).Snapshot(candles)
	require.NoError(t, err)
	assert.InDelta(t, vals[0], other[KeyMACD], 1e-9)
	assert.InDelta(t, vals[2], other[KeyHistCurrent], 1e-9)
}

func TestTalibProviderShortWindow(t *testing.T) {
	p := NewTalibProvider(DefaultMACDParams())
	_, err := p.Snapshot(randomCandles(10, 3))
	assert.ErrorIs(t, err, models.ErrInsufficientData)
}

func TestParseMaType(t *testing.T) {
	_, err := ParseMaType("TRIMA")
	require.NoError(t, err)
	_, err = ParseMaType("nope")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
