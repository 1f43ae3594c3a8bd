package strategy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ha-futures-bot/indicators"
	"ha-futures-bot/interfaces"
	"ha-futures-bot/internal/constants"
	"ha-futures-bot/internal/utils"
	"ha-futures-bot/logging"
	"ha-futures-bot/models"
)

// SignalSource produces a per-timeframe vote.
type SignalSource interface {
	Evaluate(ctx context.Context, market, timeframe string) (models.Signal, error)
}

// ConfirmationSource fetches a candle window and the mark price and runs the
// confirmation engine on them.
type ConfirmationSource struct {
	Data   interfaces.MarketData
	Engine *ConfirmationEngine
	Limit  int
}

// Evaluate implements SignalSource.
func (s *ConfirmationSource) Evaluate(ctx context.Context, market, timeframe string) (models.Signal, error) {
	limit := s.Limit
	if limit <= 0 {
		limit = constants.DefaultCandleLimit
	}
	candles, err := s.Data.FetchCandles(ctx, market, timeframe, limit)
	if err != nil {
		return models.SignalFlat, err
	}
	price, err := s.Data.FetchMarkPrice(ctx, market)
	if err != nil {
		return models.SignalFlat, err
	}
	sig, _, err := s.Engine.Evaluate(timeframe, candles, price)
	return sig, err
}

// TrendSource votes with the latest Heikin-Ashi trend flip.
type TrendSource struct {
	Data   interfaces.MarketData
	Factor float64
	Carry  bool
	Limit  int
}

// Evaluate implements SignalSource.
func (s *TrendSource) Evaluate(ctx context.Context, market, timeframe string) (models.Signal, error) {
	limit := s.Limit
	if limit <= 0 {
		limit = constants.DefaultCandleLimit
	}
	candles, err := s.Data.FetchCandles(ctx, market, timeframe, limit)
	if err != nil {
		return models.SignalFlat, err
	}
	ha, err := indicators.HeikinAshiFromCandles(candles)
	if err != nil {
		return models.SignalFlat, err
	}
	factor := s.Factor
	if factor == 0 {
		factor = constants.DefaultTrendFactor
	}
	flips, err := indicators.TrendSignal(ha, factor, s.Carry)
	if err != nil {
		return models.SignalFlat, err
	}
	return models.Signal(flips[len(flips)-1]), nil
}

// Aggregator averages per-timeframe votes. Only a unanimous vote yields ±1.
type Aggregator struct {
	Source     SignalSource
	Timeframes []string
	// UseLast substitutes a timeframe's last non-zero vote when it currently votes 0.
	UseLast bool
	Pace    time.Duration
	Logger  logging.LoggerInterface
	Sleep   func(ctx context.Context, d time.Duration) error

	mu   sync.Mutex
	last map[string]models.Signal
}

// NewAggregator creates an aggregator over timeframes.
func NewAggregator(src SignalSource, timeframes []string, useLast bool, pace time.Duration, logger logging.LoggerInterface) *Aggregator {
	return &Aggregator{
		Source:     src,
		Timeframes: timeframes,
		UseLast:    useLast,
		Pace:       pace,
		Logger:     logger,
		Sleep:      utils.Sleep,
		last:       make(map[string]models.Signal),
	}
}

// Aggregate evaluates every timeframe in order, waiting Pace after each, and
// returns the mean vote plus the individual votes.
func (a *Aggregator) Aggregate(ctx context.Context, market string) (models.Signal, map[string]models.Signal, error) {
	if len(a.Timeframes) == 0 {
		return models.SignalFlat, nil, fmt.Errorf("no timeframes configured: %w", models.ErrInvalidInput)
	}
	sleep := a.Sleep
	if sleep == nil {
		sleep = utils.Sleep
	}

	votes := make(map[string]models.Signal, len(a.Timeframes))
	sum := 0.0
	for _, tf := range a.Timeframes {
		sig, err := a.Source.Evaluate(ctx, market, tf)
		if err != nil {
			return models.SignalFlat, votes, fmt.Errorf("timeframe %s: %w", tf, err)
		}
		sig = a.remember(tf, sig)
		votes[tf] = sig
		sum += float64(sig)
		if a.Logger != nil {
			a.Logger.Debug("[%s] %s vote %+.0f", market, tf, float64(sig))
		}
		if err := sleep(ctx, a.Pace); err != nil {
			return models.SignalFlat, votes, err
		}
	}
	return models.Signal(sum / float64(len(a.Timeframes))), votes, nil
}

func (a *Aggregator) remember(tf string, sig models.Signal) models.Signal {
	if !a.UseLast {
		return sig
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.last == nil {
		a.last = make(map[string]models.Signal)
	}
	if sig != models.SignalFlat {
		a.last[tf] = sig
		return sig
	}
	return a.last[tf]
}
