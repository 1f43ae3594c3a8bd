package position

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"ha-futures-bot/internal/constants"
	"ha-futures-bot/internal/utils"
	"ha-futures-bot/models"
)

// PositionSize floors (balance/markPrice)*leverage*fraction to qtyPrecision.
func PositionSize(balance, markPrice float64, leverage int, fraction float64, qtyPrecision int) (float64, error) {
	if markPrice <= 0 || math.IsNaN(markPrice) {
		return 0, fmt.Errorf("mark price %v: %w", markPrice, models.ErrInvalidInput)
	}
	if balance < 0 || leverage < 1 || fraction <= 0 {
		return 0, fmt.Errorf("balance %v leverage %d fraction %v: %w", balance, leverage, fraction, models.ErrInvalidInput)
	}
	// Round to 8 places first so 0.27999999999999997 is 0.28 before flooring.
	raw, _ := decimal.NewFromFloat((balance / markPrice) * float64(leverage) * fraction).Round(8).Float64()
	return utils.RoundToPrecision(raw, qtyPrecision)
}

// StopLossPrice is entry*(100-sl)/100 for longs; shorts negate sl.
func StopLossPrice(entry, stopLossPerc float64, side models.Side, pricePrecision int) (float64, error) {
	sl, err := signedPerc(stopLossPerc, side)
	if err != nil {
		return 0, err
	}
	return utils.QuantizePrice(entry*(100-sl)/100, pricePrecision)
}

// TakeProfitPrice is entry*(100+tp)/100 for longs; shorts negate tp.
func TakeProfitPrice(entry, takeProfitPerc float64, side models.Side, pricePrecision int) (float64, error) {
	tp, err := signedPerc(takeProfitPerc, side)
	if err != nil {
		return 0, err
	}
	return utils.QuantizePrice(entry*(100+tp)/100, pricePrecision)
}

func signedPerc(perc float64, side models.Side) (float64, error) {
	switch side {
	case models.SideLong:
		return perc, nil
	case models.SideShort:
		return -perc, nil
	}
	return 0, fmt.Errorf("protective price for side %q: %w", side, models.ErrInvalidInput)
}

// exitCause guesses which protective order closed the position from where
// the mark price ended relative to entry.
func exitCause(side models.Side, entry, mark float64) string {
	profit := mark >= entry
	if side == models.SideShort {
		profit = mark <= entry
	}
	if profit {
		return constants.CauseTrailingStop
	}
	return constants.CauseStopLoss
}
