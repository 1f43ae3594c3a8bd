// Package metrics holds the Prometheus collectors updated by the trading loop.
//
//	futures_bot_exchange_calls_total{op,result}  exchange round trips
//	futures_bot_orders_total{type,side}          accepted orders
//	futures_bot_signals_total{direction}         aggregated signal outcomes
//	futures_bot_signal_value                     last aggregated signal
//	futures_bot_iterations_total                 outer loop iterations
//	futures_bot_loop_errors_total{phase,kind}    failed iterations
//	futures_bot_position_quantity                signed exchange position
//	futures_bot_phase{phase}                     lifecycle phase (one series set to 1)
//	futures_bot_candle_cache_total{result}       candle cache hits and misses
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"ha-futures-bot/models"
)

var (
	ExchangeCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "futures_bot_exchange_calls_total",
			Help: "Exchange API calls by operation and result",
		},
		[]string{"op", "result"},
	)

	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "futures_bot_orders_total",
			Help: "Orders accepted by the exchange",
		},
		[]string{"type", "side"},
	)

	Signals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "futures_bot_signals_total",
			Help: "Aggregated signal outcomes",
		},
		[]string{"direction"},
	)

	SignalValue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "futures_bot_signal_value",
			Help: "Last aggregated multi-timeframe signal",
		},
	)

	Iterations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "futures_bot_iterations_total",
			Help: "Outer loop iterations",
		},
	)

	LoopErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "futures_bot_loop_errors_total",
			Help: "Failed iterations by phase and error kind",
		},
		[]string{"phase", "kind"},
	)

	PositionQuantity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "futures_bot_position_quantity",
			Help: "Signed position quantity reported by the exchange",
		},
	)

	Phase = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "futures_bot_phase",
			Help: "Current lifecycle phase",
		},
		[]string{"phase"},
	)

	CandleCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "futures_bot_candle_cache_total",
			Help: "Candle cache lookups by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(ExchangeCalls, Orders, Signals, SignalValue, Iterations,
		LoopErrors, PositionQuantity, Phase, CandleCache)
}

// ObserveCall counts one exchange call.
func ObserveCall(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ExchangeCalls.WithLabelValues(op, result).Inc()
}

// SetPhase flips the phase gauge so exactly one series reads 1.
func SetPhase(p models.Phase) {
	for _, ph := range []models.Phase{models.PhaseFlat, models.PhaseEntering, models.PhaseProtected} {
		v := 0.0
		if ph == p {
			v = 1
		}
		Phase.WithLabelValues(string(ph)).Set(v)
	}
}

// RecordSignal tracks an aggregated signal.
func RecordSignal(s models.Signal) {
	SignalValue.Set(float64(s))
	dir := "flat"
	switch {
	case s == models.SignalLong:
		dir = "long"
	case s == models.SignalShort:
		dir = "short"
	case s != models.SignalFlat:
		dir = "split"
	}
	Signals.WithLabelValues(dir).Inc()
}
