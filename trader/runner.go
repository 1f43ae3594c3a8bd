package trader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ha-futures-bot/config"
	"ha-futures-bot/console"
	"ha-futures-bot/interfaces"
	"ha-futures-bot/internal/constants"
	"ha-futures-bot/internal/utils"
	"ha-futures-bot/logging"
	"ha-futures-bot/metrics"
	"ha-futures-bot/models"
	"ha-futures-bot/position"
	"ha-futures-bot/strategy"
)

// Runner is the outer control loop. Each iteration re-derives the phase from
// the exchange, then either looks for an entry (FLAT) or keeps polling
// (PROTECTED). Failures end the iteration and trigger a cooldown chosen by
// error kind.
type Runner struct {
	Config     *config.Config
	Aggregator *strategy.Aggregator
	Positions  *position.Manager
	State      *models.StateStore
	Logger     logging.LoggerInterface
	Console    *console.Announcer
	Observer   interfaces.Observer

	Sleep func(ctx context.Context, d time.Duration) error
}

// NewRunner wires the loop.
func NewRunner(cfg *config.Config, agg *strategy.Aggregator, positions *position.Manager, state *models.StateStore,
	logger logging.LoggerInterface, out *console.Announcer, observer interfaces.Observer) *Runner {
	return &Runner{
		Config:     cfg,
		Aggregator: agg,
		Positions:  positions,
		State:      state,
		Logger:     logger,
		Console:    out,
		Observer:   observer,
		Sleep:      utils.Sleep,
	}
}

// Start runs iterations until ctx is cancelled.
func (r *Runner) Start(ctx context.Context) error {
	r.Logger.Info("Trading %s on %v, leverage x%d, tp %.2f%% sl %.2f%% trail %.2f%%",
		r.Config.Market, r.Config.Timeframes, r.Config.Leverage,
		r.Config.TakeProfitPerc, r.Config.StopLossPerc, r.Config.TrailCallbackPerc)
	r.Positions.InitialiseFutures(ctx)

	for {
		wait := r.Config.PollInterval
		if err := r.Step(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			wait = r.handleError(err)
		}
		if err := r.Sleep(ctx, wait); err != nil {
			break
		}
	}

	r.Logger.Info("Trading loop stopped")
	if r.Config.FlattenOnExit {
		flattenCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := r.Positions.Flatten(flattenCtx); err != nil {
			r.Logger.Error("Flatten on exit: %v", err)
			return err
		}
		r.Console.Order("Position on %s flattened on exit", r.Config.Market)
	}
	return nil
}

// Step runs one iteration.
func (r *Runner) Step(ctx context.Context) error {
	var iteration uint64
	r.State.Update(func(s *models.BotState) {
		s.Iteration++
		iteration = s.Iteration
	})
	metrics.Iterations.Inc()

	phase, err := r.Positions.Poll(ctx)
	if err != nil {
		return err
	}
	r.Console.Header(iteration, r.Config.Market, string(phase))

	switch phase {
	case models.PhaseProtected:
		st := r.State.Snapshot()
		if st.Protection == nil {
			r.Logger.Warning("Position open without confirmed protection: %s %v @ %v",
				st.Side, st.Quantity, st.EntryPrice)
			r.Console.Warn("Position open without confirmed protection")
		}
		return nil
	case models.PhaseFlat:
		return r.evaluate(ctx)
	}
	return nil
}

func (r *Runner) evaluate(ctx context.Context) error {
	sig, votes, err := r.Aggregator.Aggregate(ctx, r.Config.Market)
	if err != nil {
		return models.WrapPhase(models.PhaseSignal, err)
	}
	metrics.RecordSignal(sig)
	r.State.Update(func(s *models.BotState) {
		s.LastSignal = sig
		s.TimeframeSignals = votes
	})
	r.Console.Signal("Signal %+.2f %s", float64(sig), formatVotes(r.Config.Timeframes, votes))
	if r.Observer != nil {
		fields := make(map[string]interface{}, len(votes)+1)
		for tf, v := range votes {
			fields[tf] = float64(v)
		}
		fields["net"] = float64(sig)
		r.Observer.OnEvent(models.Event{Time: time.Now(), Kind: "signal", Message: r.Config.Market, Fields: fields})
	}
	if !sig.Tradeable() {
		return nil
	}
	r.Console.Signal("Opening %s on %s", sig.Side(), r.Config.Market)
	_, err = r.Positions.Open(ctx, sig)
	return err
}

// handleError records err and returns the cooldown before the next iteration.
func (r *Runner) handleError(err error) time.Duration {
	phase := "unknown"
	k := models.Kind(err)
	var pe *models.PhaseError
	if errors.As(err, &pe) {
		phase = string(pe.Phase)
		k = pe.Kind
	}
	kind := kindLabel(k)
	metrics.LoopErrors.WithLabelValues(phase, kind).Inc()
	r.State.Update(func(s *models.BotState) { s.LastError = err.Error() })

	wait := Cooldown(r.Config, err)
	r.Logger.Error("Iteration failed (%s/%s): %v; retrying in %s", phase, kind, err, wait)
	r.Console.Error("%v, retrying in %s", err, wait)
	return wait
}

// Cooldown maps an error kind to the wait before the loop resumes.
func Cooldown(cfg *config.Config, err error) time.Duration {
	var d time.Duration
	switch models.Kind(err) {
	case models.ErrExchangeCall:
		d = cfg.ExchangeCooldown
	case models.ErrInsufficientData, models.ErrInvalidInput, models.ErrPrecision:
		d = cfg.DataCooldown
	}
	if d <= 0 {
		d = constants.DefaultCooldown
	}
	return d
}

func kindLabel(k error) string {
	switch k {
	case models.ErrExchangeCall:
		return "exchange"
	case models.ErrInsufficientData:
		return "insufficient_data"
	case models.ErrInvalidInput:
		return "invalid_input"
	case models.ErrPrecision:
		return "precision"
	}
	return "other"
}

func formatVotes(order []string, votes map[string]models.Signal) string {
	out := ""
	for _, tf := range order {
		v, ok := votes[tf]
		if !ok {
			continue
		}
		if out != "" {
			out += " "
		}
		out += fmt.Sprintf("%s=%+.0f", tf, float64(v))
	}
	return "[" + out + "]"
}
