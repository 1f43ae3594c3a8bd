package utils

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"ha-futures-bot/models"
)

// RoundToPrecision truncates x toward negative infinity to p decimal places.
// For p >= 0 the result never exceeds x and applying it twice changes nothing.
func RoundToPrecision(x float64, p int) (float64, error) {
	if p < 0 {
		return 0, fmt.Errorf("round %v to %d places: %w", x, p, models.ErrPrecision)
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, fmt.Errorf("round %v: %w", x, models.ErrInvalidInput)
	}
	// Floor on the shortest decimal representation so 0.045 stays 0.045.
	f, _ := decimal.NewFromFloat(x).RoundFloor(int32(p)).Float64()
	return f, nil
}

// QuantizePrice rounds a protective order price to the exchange grid.
// Sub-unit prices are truncated to pricePrecision; prices >= 1 are
// rounded half-up to an integer.
func QuantizePrice(x float64, pricePrecision int) (float64, error) {
	if pricePrecision < 0 {
		return 0, fmt.Errorf("quantize %v to %d places: %w", x, pricePrecision, models.ErrPrecision)
	}
	if x < 1 {
		return RoundToPrecision(x, pricePrecision)
	}
	return math.Floor(x + 0.5), nil
}

// FormatDecimal renders v with exactly places fractional digits for the wire.
func FormatDecimal(v float64, places int) string {
	if places < 0 {
		places = 0
	}
	return decimal.NewFromFloat(v).StringFixed(int32(places))
}

// FormatPrice renders a quantized price. Integers are sent without a fraction.
func FormatPrice(v float64, pricePrecision int) string {
	if v >= 1 && v == math.Trunc(v) {
		return decimal.NewFromFloat(v).String()
	}
	return FormatDecimal(v, pricePrecision)
}

// ParseFloat parses exchange numeric strings, wrapping failures as invalid input.
func ParseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, models.ErrInvalidInput)
	}
	f, _ := d.Float64()
	return f, nil
}

// NormalizeSide maps exchange side strings onto position sides.
func NormalizeSide(side string) models.Side {
	switch side {
	case "BUY", "LONG", "Buy":
		return models.SideLong
	case "SELL", "SHORT", "Sell":
		return models.SideShort
	default:
		return models.SideNone
	}
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
