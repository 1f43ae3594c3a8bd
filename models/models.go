package models

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Candle is one raw OHLCV bar as returned by the exchange, oldest first in a window.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// HeikinAshi holds a synthetic candle series in parallel slices.
type HeikinAshi struct {
	Open  []float64
	High  []float64
	Low   []float64
	Close []float64
}

// Len returns the number of bars in the series.
func (h HeikinAshi) Len() int { return len(h.Close) }

// Signal is a directional vote in [-1, 1]. Only exact ±1 is tradeable.
type Signal float64

const (
	SignalShort Signal = -1
	SignalFlat  Signal = 0
	SignalLong  Signal = 1
)

// Tradeable reports whether the signal is an exact unanimous direction.
func (s Signal) Tradeable() bool { return s == SignalLong || s == SignalShort }

// Side returns the position side implied by a tradeable signal.
func (s Signal) Side() Side {
	switch s {
	case SignalLong:
		return SideLong
	case SignalShort:
		return SideShort
	}
	return SideNone
}

// Side of an open position.
type Side string

const (
	SideNone  Side = ""
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Position is the cached view of the exchange position for one market.
type Position struct {
	Symbol           string  `json:"symbol"`
	Quantity         float64 `json:"quantity"` // signed: >0 long, <0 short
	EntryPrice       float64 `json:"entryPrice"`
	LiquidationPrice float64 `json:"liquidationPrice"`
}

// IsOpen reports whether a non-zero quantity is held.
func (p Position) IsOpen() bool { return p.Quantity != 0 }

// Side derives the side from the sign of Quantity.
func (p Position) Side() Side {
	switch {
	case p.Quantity > 0:
		return SideLong
	case p.Quantity < 0:
		return SideShort
	}
	return SideNone
}

// SymbolMeta carries the exchange rounding rules for a market.
type SymbolMeta struct {
	QuantityPrecision int
	PricePrecision    int
}

// OrderAck is what the router returns for an accepted order.
type OrderAck struct {
	OrderID       int64
	ClientOrderID string
	Symbol        string
	Side          string
	Type          string
	Quantity      string
	StopPrice     string
	Status        string
}

// ProtectiveOrderSet is the pair of exit orders attached to every open position.
type ProtectiveOrderSet struct {
	StopLoss   OrderAck
	TakeProfit OrderAck
}

// TradeRecord is one append-only row of the trade journal.
type TradeRecord struct {
	Time         time.Time `json:"time"`
	Market       string    `json:"market"`
	Quantity     float64   `json:"qty"`
	Leverage     int       `json:"leverage"`
	Side         string    `json:"side"`
	Cause        string    `json:"cause"`
	TriggerPrice float64   `json:"triggerPrice"`
	MarketPrice  float64   `json:"marketPrice"`
	OrderType    string    `json:"type"`
}

// Phase is a state of the position lifecycle.
type Phase string

const (
	PhaseFlat      Phase = "FLAT"
	PhaseEntering  Phase = "ENTERING"
	PhaseProtected Phase = "PROTECTED"
)

// BotState is the loop's view of the world, re-derived from the exchange every tick.
type BotState struct {
	Phase            Phase               `json:"phase"`
	Market           string              `json:"market"`
	Side             Side                `json:"side,omitempty"`
	Quantity         float64             `json:"quantity"`
	EntryPrice       float64             `json:"entryPrice,omitempty"`
	Position         Position            `json:"position"`
	Protection       *ProtectiveOrderSet `json:"protection,omitempty"`
	Iteration        uint64              `json:"iteration"`
	LastSignal       Signal              `json:"lastSignal"`
	TimeframeSignals map[string]Signal   `json:"timeframeSignals,omitempty"`
	LastError        string              `json:"lastError,omitempty"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

// StateStore guards a BotState for readers on other goroutines (status server).
type StateStore struct {
	mu    sync.RWMutex
	state BotState
}

// NewStateStore creates a store starting FLAT for market.
func NewStateStore(market string) *StateStore {
	return &StateStore{state: BotState{Phase: PhaseFlat, Market: market}}
}

// Update applies fn to the state under the write lock and stamps UpdatedAt.
func (s *StateStore) Update(fn func(*BotState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
	s.state.UpdatedAt = time.Now()
}

// Snapshot returns a deep-enough copy for serialization.
func (s *StateStore) Snapshot() BotState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := s.state
	if s.state.Protection != nil {
		p := *s.state.Protection
		cp.Protection = &p
	}
	if s.state.TimeframeSignals != nil {
		cp.TimeframeSignals = make(map[string]Signal, len(s.state.TimeframeSignals))
		for k, v := range s.state.TimeframeSignals {
			cp.TimeframeSignals[k] = v
		}
	}
	return cp
}

// ConditionEvent describes one evaluated rule condition.
type ConditionEvent struct {
	Time       time.Time `json:"time"`
	Timeframe  string    `json:"timeframe"`
	Rule       string    `json:"rule"`
	Name       string    `json:"name"`
	Left       string    `json:"left"`
	Op         string    `json:"op"`
	Right      string    `json:"right"`
	LeftValue  float64   `json:"leftValue"`
	RightValue float64   `json:"rightValue"`
	Result     bool      `json:"result"`
}

// Event is a generic decision/lifecycle notification pushed to observers.
type Event struct {
	Time    time.Time              `json:"time"`
	Kind    string                 `json:"kind"`
	Message string                 `json:"message"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
}

// IndicatorSnapshot maps indicator name to its latest scalar value.
type IndicatorSnapshot map[string]float64

// Require returns the values for keys, or ErrInsufficientData when any key is
// missing or not finite.
func (s IndicatorSnapshot) Require(keys ...string) ([]float64, error) {
	out := make([]float64, len(keys))
	for i, k := range keys {
		v, ok := s[k]
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("indicator %q unavailable: %w", k, ErrInsufficientData)
		}
		out[i] = v
	}
	return out, nil
}
