package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ha-futures-bot/models"
)

func TestRoundToPrecisionTruncates(t *testing.T) {
	cases := []struct {
		x    float64
		p    int
		want float64
	}{
		{0.0456, 3, 0.045},
		{1.23456, 2, 1.23},
		{2.999, 0, 2},
		{1.0, 3, 1.0},
		{0.3, 1, 0.3},
		{-1.25, 1, -1.3},
	}
	for _, tc := range cases {
		got, err := RoundToPrecision(tc.x, tc.p)
		require.NoError(t, err)
		assert.InDelta(t, tc.want, got, 1e-12, "RoundToPrecision(%v, %d)", tc.x, tc.p)
	}
}

func TestRoundToPrecisionIdempotentAndBounded(t *testing.T) {
	for _, x := range []float64{0.1, 0.0456, 12.3456789, 1999.99999, 3.3333333, 0.000123} {
		for p := 0; p <= 6; p++ {
			once, err := RoundToPrecision(x, p)
			require.NoError(t, err)
			twice, err := RoundToPrecision(once, p)
			require.NoError(t, err)
			if once != twice {
				t.Fatalf("not idempotent for x=%v p=%d: %v then %v", x, p, once, twice)
			}
			if once > x {
				t.Fatalf("rounded above input for x=%v p=%d: %v", x, p, once)
			}
		}
	}
}

func TestRoundToPrecisionRejectsNegativePrecision(t *testing.T) {
	_, err := RoundToPrecision(1.5, -1)
	if !errors.Is(err, models.ErrPrecision) {
		t.Fatalf("expected ErrPrecision, got %v", err)
	}
}

func TestQuantizePrice(t *testing.T) {
	cases := []struct {
		x    float64
		p    int
		want float64
	}{
		{0.0456, 3, 0.045},
		{123.6, 2, 124},
		{123.4, 2, 123},
		{1900, 2, 1900},
		{0.99999, 4, 0.9999},
		{1.5, 2, 2},
	}
	for _, tc := range cases {
		got, err := QuantizePrice(tc.x, tc.p)
		require.NoError(t, err)
		assert.InDelta(t, tc.want, got, 1e-12, "QuantizePrice(%v, %d)", tc.x, tc.p)
	}

	_, err := QuantizePrice(1900, -1)
	assert.ErrorIs(t, err, models.ErrPrecision)
	_, err = QuantizePrice(0.5, -1)
	assert.ErrorIs(t, err, models.ErrPrecision)
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "1900", FormatPrice(1900, 2))
	assert.Equal(t, "0.045", FormatPrice(0.045, 3))
	assert.Equal(t, "0.500", FormatDecimal(0.5, 3))
}

func TestParseFloat(t *testing.T) {
	v, err := ParseFloat("-0.125")
	require.NoError(t, err)
	assert.Equal(t, -0.125, v)

	v, err = ParseFloat("")
	require.NoError(t, err)
	assert.Zero(t, v)

	_, err = ParseFloat("abc")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestNormalizeSide(t *testing.T) {
	assert.Equal(t, models.SideLong, NormalizeSide("BUY"))
	assert.Equal(t, models.SideShort, NormalizeSide("SHORT"))
	assert.Equal(t, models.SideNone, NormalizeSide("BOTH"))
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)

	require.NoError(t, Sleep(context.Background(), time.Millisecond))
}
