package models

import (
	"errors"
	"fmt"
)

// Error kinds. Wrap them with fmt.Errorf("...: %w", ErrX) and test with errors.Is.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrInsufficientData = errors.New("insufficient data")
	ErrExchangeCall     = errors.New("exchange call failed")
	ErrPrecision        = errors.New("precision error")
)

// LoopPhase names the part of an iteration where a failure happened.
type LoopPhase string

const (
	PhaseSignal  LoopPhase = "signal"
	PhaseEntry   LoopPhase = "entry"
	PhaseProtect LoopPhase = "protect"
	PhasePoll    LoopPhase = "poll"
	PhaseSync    LoopPhase = "sync"
)

// PhaseError tags an error with the loop phase it came from and its kind
// (one of the sentinels above, nil when unclassified).
type PhaseError struct {
	Phase LoopPhase
	Kind  error
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s phase: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// WrapPhase returns nil for a nil err, otherwise a *PhaseError.
func WrapPhase(phase LoopPhase, err error) error {
	if err == nil {
		return nil
	}
	var pe *PhaseError
	if errors.As(err, &pe) {
		return err
	}
	return &PhaseError{Phase: phase, Kind: Kind(err), Err: err}
}

// Kind classifies err into one of the sentinel kinds, or nil when none matches.
func Kind(err error) error {
	for _, k := range []error{ErrExchangeCall, ErrInsufficientData, ErrInvalidInput, ErrPrecision} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
