package strategy

import (
	"fmt"
	"time"

	"ha-futures-bot/indicators"
	"ha-futures-bot/interfaces"
	"ha-futures-bot/logging"
	"ha-futures-bot/models"
)

// Rule names used in condition events.
const (
	RuleLong  = "long"
	RuleShort = "short"
)

type condition struct {
	name  string
	left  string
	op    string
	right string
}

// Right-hand "price" is the current mark price; "0" is the literal zero.
var (
	longConditions = []condition{
		{"ma50_low_below_price", indicators.KeyMA50Low, "<", "price"},
		{"ma20_close_below_price", indicators.KeyMA20Close, "<", "price"},
		{"hist_current_positive", indicators.KeyHistCurrent, ">", "0"},
		{"hist_prev_negative", indicators.KeyHistPrev, "<", "0"},
	}
	shortConditions = []condition{
		{"ma50_high_above_price", indicators.KeyMA50High, ">", "price"},
		{"ma20_close_above_price", indicators.KeyMA20Close, ">", "price"},
		{"hist_current_negative", indicators.KeyHistCurrent, "<", "0"},
		{"hist_prev_positive", indicators.KeyHistPrev, ">", "0"},
	}
)

// ConfirmationEngine turns an indicator snapshot and the mark price into a
// single -1/0/+1 decision for the latest bar.
type ConfirmationEngine struct {
	Provider indicators.Provider
	Observer interfaces.Observer
	Logger   logging.LoggerInterface
	now      func() time.Time
}

// NewConfirmationEngine wires an engine. observer may be nil.
func NewConfirmationEngine(provider indicators.Provider, observer interfaces.Observer, logger logging.LoggerInterface) *ConfirmationEngine {
	return &ConfirmationEngine{Provider: provider, Observer: observer, Logger: logger, now: time.Now}
}

// Evaluate computes the snapshot for candles and decides.
func (e *ConfirmationEngine) Evaluate(timeframe string, candles []models.Candle, price float64) (models.Signal, models.IndicatorSnapshot, error) {
	snap, err := e.Provider.Snapshot(candles)
	if err != nil {
		return models.SignalFlat, nil, fmt.Errorf("%s indicators: %w", timeframe, err)
	}
	sig, err := e.Decide(timeframe, snap, price)
	return sig, snap, err
}

// Decide applies the long and short rule sets to snap.
func (e *ConfirmationEngine) Decide(timeframe string, snap models.IndicatorSnapshot, price float64) (models.Signal, error) {
	if _, err := snap.Require(indicators.KeyMA50High, indicators.KeyMA50Low, indicators.KeyMA20Close,
		indicators.KeyHistCurrent, indicators.KeyHistPrev); err != nil {
		return models.SignalFlat, err
	}
	if e.Logger != nil {
		e.Logger.Debug("[%s] indicators: %s", timeframe, logging.FormatFields(snapshotFields(snap, price)))
	}

	long := e.check(timeframe, RuleLong, longConditions, snap, price)
	short := e.check(timeframe, RuleShort, shortConditions, snap, price)

	switch {
	case long && short:
		return models.SignalFlat, fmt.Errorf("%s: long and short both matched: %w", timeframe, models.ErrInvalidInput)
	case long:
		return models.SignalLong, nil
	case short:
		return models.SignalShort, nil
	}
	return models.SignalFlat, nil
}

func (e *ConfirmationEngine) check(timeframe, rule string, conds []condition, snap models.IndicatorSnapshot, price float64) bool {
	ok := true
	ts := time.Now()
	if e.now != nil {
		ts = e.now()
	}
	for _, c := range conds {
		lv := operand(c.left, snap, price)
		rv := operand(c.right, snap, price)
		res := compare(lv, c.op, rv)
		ok = ok && res
		if e.Observer != nil {
			e.Observer.OnCondition(models.ConditionEvent{
				Time:       ts,
				Timeframe:  timeframe,
				Rule:       rule,
				Name:       c.name,
				Left:       c.left,
				Op:         c.op,
				Right:      c.right,
				LeftValue:  lv,
				RightValue: rv,
				Result:     res,
			})
		}
	}
	return ok
}

func operand(name string, snap models.IndicatorSnapshot, price float64) float64 {
	switch name {
	case "price":
		return price
	case "0":
		return 0
	}
	return snap[name]
}

func compare(l float64, op string, r float64) bool {
	switch op {
	case "<":
		return l < r
	case ">":
		return l > r
	}
	return false
}

func snapshotFields(snap models.IndicatorSnapshot, price float64) map[string]interface{} {
	out := make(map[string]interface{}, len(snap)+1)
	for k, v := range snap {
		out[k] = v
	}
	out["price"] = price
	return out
}
