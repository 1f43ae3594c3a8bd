package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"ha-futures-bot/models"
)

func TestSetPhaseIsExclusive(t *testing.T) {
	SetPhase(models.PhaseProtected)
	assert.Equal(t, 1.0, testutil.ToFloat64(Phase.WithLabelValues("PROTECTED")))
	assert.Equal(t, 0.0, testutil.ToFloat64(Phase.WithLabelValues("FLAT")))

	SetPhase(models.PhaseFlat)
	assert.Equal(t, 0.0, testutil.ToFloat64(Phase.WithLabelValues("PROTECTED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(Phase.WithLabelValues("FLAT")))
}

func TestRecordSignalDirections(t *testing.T) {
	before := testutil.ToFloat64(Signals.WithLabelValues("split"))
	RecordSignal(models.Signal(1.0 / 3))
	assert.Equal(t, before+1, testutil.ToFloat64(Signals.WithLabelValues("split")))
	assert.InDelta(t, 1.0/3, testutil.ToFloat64(SignalValue), 1e-12)

	before = testutil.ToFloat64(Signals.WithLabelValues("long"))
	RecordSignal(models.SignalLong)
	assert.Equal(t, before+1, testutil.ToFloat64(Signals.WithLabelValues("long")))
}

func TestObserveCall(t *testing.T) {
	before := testutil.ToFloat64(ExchangeCalls.WithLabelValues("klines", "error"))
	ObserveCall("klines", errors.New("boom"))
	assert.Equal(t, before+1, testutil.ToFloat64(ExchangeCalls.WithLabelValues("klines", "error")))
}
