package position

import (
	"context"
	"fmt"
	"math"
	"time"

	"ha-futures-bot/config"
	"ha-futures-bot/console"
	"ha-futures-bot/interfaces"
	"ha-futures-bot/internal/constants"
	"ha-futures-bot/internal/utils"
	"ha-futures-bot/logging"
	"ha-futures-bot/metrics"
	"ha-futures-bot/models"
	"ha-futures-bot/order"
)

// Manager drives one market through FLAT -> ENTERING -> PROTECTED -> FLAT.
// The exchange position is authoritative; State is re-derived on every Poll.
type Manager struct {
	Account  interfaces.Account
	Market   interfaces.MarketData
	Orders   *order.OrderManager
	Journal  interfaces.TradeJournal
	State    *models.StateStore
	Config   *config.Config
	Logger   logging.LoggerInterface
	Console  *console.Announcer
	Observer interfaces.Observer

	// Sleep is the settle delay between dependent exchange calls.
	Sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewManager creates a new position manager
func NewManager(ex interfaces.Exchange, orders *order.OrderManager, journal interfaces.TradeJournal, state *models.StateStore,
	cfg *config.Config, logger logging.LoggerInterface, out *console.Announcer, observer interfaces.Observer) *Manager {
	return &Manager{
		Account:  ex,
		Market:   ex,
		Orders:   orders,
		Journal:  journal,
		State:    state,
		Config:   cfg,
		Logger:   logger,
		Console:  out,
		Observer: observer,
		Sleep:    utils.Sleep,
		now:      time.Now,
	}
}

// InitialiseFutures applies leverage and margin type. The exchange rejects
// no-op changes, so failures are only logged.
func (m *Manager) InitialiseFutures(ctx context.Context) {
	if err := m.Account.SetLeverage(ctx, m.Config.Market, m.Config.Leverage); err != nil {
		m.Logger.Warning("Set leverage x%d on %s: %v", m.Config.Leverage, m.Config.Market, err)
	}
	if err := m.Account.SetMarginType(ctx, m.Config.Market, m.Config.MarginType); err != nil {
		m.Logger.Debug("Set margin type %s on %s: %v", m.Config.MarginType, m.Config.Market, err)
	}
}

// Open enters a position in the direction of sig and attaches the stop-loss
// and trailing take-profit. Steps run strictly in order; a failure after the
// entry leaves the position without protection and is returned as is.
func (m *Manager) Open(ctx context.Context, sig models.Signal) (models.ProtectiveOrderSet, error) {
	var set models.ProtectiveOrderSet
	if !sig.Tradeable() {
		return set, models.WrapPhase(models.PhaseEntry, fmt.Errorf("signal %v is not tradeable: %w", float64(sig), models.ErrInvalidInput))
	}
	if phase := m.State.Snapshot().Phase; phase != models.PhaseFlat {
		return set, models.WrapPhase(models.PhaseEntry, fmt.Errorf("open while %s: %w", phase, models.ErrInvalidInput))
	}
	side := sig.Side()

	m.InitialiseFutures(ctx)
	if err := m.Orders.CancelAll(ctx); err != nil {
		return set, models.WrapPhase(models.PhaseEntry, err)
	}

	qty, meta, err := m.size(ctx)
	if err != nil {
		return set, models.WrapPhase(models.PhaseEntry, err)
	}

	m.transition(models.PhaseEntering, func(s *models.BotState) {
		s.Side = side
		s.Quantity = qty
		s.Protection = nil
	})
	ack, err := m.Orders.PlaceEntry(ctx, side, qty, meta)
	if err != nil {
		m.transition(models.PhaseFlat, clearPosition)
		return set, models.WrapPhase(models.PhaseEntry, err)
	}
	m.emit("entry", fmt.Sprintf("%s %v %s", side, qty, m.Config.Market), map[string]interface{}{
		"side": string(side), "qty": qty, "orderId": ack.OrderID,
	})

	if err := m.Sleep(ctx, m.Config.SettleDelay); err != nil {
		return set, models.WrapPhase(models.PhaseProtect, err)
	}
	pos, err := m.Account.FetchPosition(ctx, m.Config.Market)
	if err != nil {
		return set, models.WrapPhase(models.PhaseProtect, err)
	}
	entry := pos.EntryPrice
	if entry <= 0 {
		return set, models.WrapPhase(models.PhaseProtect, fmt.Errorf("entry price unavailable after fill: %w", models.ErrExchangeCall))
	}
	m.State.Update(func(s *models.BotState) {
		s.EntryPrice = entry
		s.Position = pos
	})
	metrics.PositionQuantity.Set(pos.Quantity)
	entrySide, _ := order.EntrySide(side)
	m.Console.Order("%s: %s %s @ %v using x%d leverage",
		entrySide, utils.FormatDecimal(qty, meta.QuantityPrecision), m.Config.Market, entry, m.Config.Leverage)

	m.journal(ctx, models.TradeRecord{
		Time: m.now(), Market: m.Config.Market, Quantity: qty, Leverage: m.Config.Leverage,
		Side: string(side), Cause: constants.CauseSignalChange, MarketPrice: entry, OrderType: entrySide,
	})

	stop, err := StopLossPrice(entry, m.Config.StopLossPerc, side, meta.PricePrecision)
	if err != nil {
		return set, models.WrapPhase(models.PhaseProtect, err)
	}
	if set.StopLoss, err = m.Orders.PlaceStopLoss(ctx, side, stop, meta); err != nil {
		return set, models.WrapPhase(models.PhaseProtect, err)
	}

	if err := m.Sleep(ctx, m.Config.SettleDelay); err != nil {
		return set, models.WrapPhase(models.PhaseProtect, err)
	}
	target, err := TakeProfitPrice(entry, m.Config.TakeProfitPerc, side, meta.PricePrecision)
	if err != nil {
		return set, models.WrapPhase(models.PhaseProtect, err)
	}
	if set.TakeProfit, err = m.Orders.PlaceTrailingTakeProfit(ctx, side, qty, target, meta); err != nil {
		return set, models.WrapPhase(models.PhaseProtect, err)
	}

	protection := set
	m.transition(models.PhaseProtected, func(s *models.BotState) { s.Protection = &protection })
	m.emit("protected", fmt.Sprintf("stop %v, trailing from %v", stop, target), map[string]interface{}{
		"entry": entry, "stop": stop, "takeProfit": target,
	})
	return set, nil
}

func (m *Manager) size(ctx context.Context) (float64, models.SymbolMeta, error) {
	balance, err := m.Account.FetchBalance(ctx, m.Config.MarginAsset)
	if err != nil {
		return 0, models.SymbolMeta{}, err
	}
	mark, err := m.Market.FetchMarkPrice(ctx, m.Config.Market)
	if err != nil {
		return 0, models.SymbolMeta{}, err
	}
	meta, err := m.Account.FetchSymbolMeta(ctx, m.Config.Market)
	if err != nil {
		return 0, models.SymbolMeta{}, err
	}
	qty, err := PositionSize(balance, mark, m.Config.Leverage, m.Config.CapitalFraction, meta.QuantityPrecision)
	if err != nil {
		return 0, meta, err
	}
	m.Logger.Info("Sizing %s: balance=%.4f mark=%.4f x%d fraction=%.2f -> qty=%v",
		m.Config.Market, balance, mark, m.Config.Leverage, m.Config.CapitalFraction, qty)
	if qty <= 0 {
		return 0, meta, fmt.Errorf("balance %.4f too small for one lot at %.4f: %w", balance, mark, models.ErrInvalidInput)
	}
	return qty, meta, nil
}

// Poll reconciles State with the exchange position. An open position is
// PROTECTED (adopted if the bot did not open it). A zero quantity ends the
// trade: residual orders are cancelled and the phase returns to FLAT.
func (m *Manager) Poll(ctx context.Context) (models.Phase, error) {
	pos, err := m.Account.FetchPosition(ctx, m.Config.Market)
	if err != nil {
		return m.State.Snapshot().Phase, models.WrapPhase(models.PhasePoll, err)
	}
	metrics.PositionQuantity.Set(pos.Quantity)
	prev := m.State.Snapshot()

	if pos.IsOpen() {
		if prev.Phase != models.PhaseProtected {
			m.Logger.Warning("Adopting open %s position %v on %s from phase %s",
				pos.Side(), pos.Quantity, m.Config.Market, prev.Phase)
		}
		m.transition(models.PhaseProtected, func(s *models.BotState) {
			s.Position = pos
			s.Side = pos.Side()
			s.Quantity = math.Abs(pos.Quantity)
			s.EntryPrice = pos.EntryPrice
		})
		return models.PhaseProtected, nil
	}

	if prev.Phase == models.PhaseFlat {
		m.State.Update(func(s *models.BotState) { s.Position = pos })
		return models.PhaseFlat, nil
	}

	if err := m.Orders.CancelAll(ctx); err != nil {
		return prev.Phase, models.WrapPhase(models.PhasePoll, err)
	}
	m.recordExit(ctx, prev)
	m.transition(models.PhaseFlat, clearPosition)
	m.Console.Order("%s position on %s closed", prev.Side, m.Config.Market)
	m.emit("closed", "position closed", map[string]interface{}{"side": string(prev.Side)})
	return models.PhaseFlat, nil
}

// Flatten closes any open position at market and cancels working orders.
func (m *Manager) Flatten(ctx context.Context) error {
	pos, err := m.Account.FetchPosition(ctx, m.Config.Market)
	if err != nil {
		return models.WrapPhase(models.PhaseSync, err)
	}
	if err := m.Orders.CancelAll(ctx); err != nil {
		return models.WrapPhase(models.PhaseSync, err)
	}
	if !pos.IsOpen() {
		m.transition(models.PhaseFlat, clearPosition)
		return nil
	}
	meta, err := m.Account.FetchSymbolMeta(ctx, m.Config.Market)
	if err != nil {
		return models.WrapPhase(models.PhaseSync, err)
	}
	if _, err := m.Orders.ClosePosition(ctx, pos, meta); err != nil {
		return models.WrapPhase(models.PhaseSync, err)
	}
	mark, err := m.Market.FetchMarkPrice(ctx, m.Config.Market)
	if err != nil {
		m.Logger.Warning("Mark price after flatten: %v", err)
	}
	m.journal(ctx, models.TradeRecord{
		Time: m.now(), Market: m.Config.Market, Quantity: math.Abs(pos.Quantity), Leverage: m.Config.Leverage,
		Side: string(pos.Side()), Cause: constants.CauseManualClose, MarketPrice: mark, OrderType: constants.OrderTypeExit,
	})
	m.transition(models.PhaseFlat, clearPosition)
	return nil
}

func (m *Manager) recordExit(ctx context.Context, prev models.BotState) {
	mark, err := m.Market.FetchMarkPrice(ctx, m.Config.Market)
	if err != nil {
		m.Logger.Warning("Exit not journaled, mark price unavailable: %v", err)
		return
	}
	cause := exitCause(prev.Side, prev.EntryPrice, mark)
	var trigger float64
	if p := prev.Protection; p != nil {
		stopOrder := p.StopLoss
		if cause == constants.CauseTrailingStop {
			stopOrder = p.TakeProfit
		}
		trigger, _ = utils.ParseFloat(stopOrder.StopPrice)
	}
	m.journal(ctx, models.TradeRecord{
		Time: m.now(), Market: m.Config.Market, Quantity: prev.Quantity, Leverage: m.Config.Leverage,
		Side: string(prev.Side), Cause: cause, TriggerPrice: trigger, MarketPrice: mark, OrderType: constants.OrderTypeExit,
	})
}

func (m *Manager) journal(ctx context.Context, rec models.TradeRecord) {
	if m.Journal == nil {
		return
	}
	if err := m.Journal.Append(ctx, rec); err != nil {
		m.Logger.Error("Trade journal append: %v", err)
	}
}

func (m *Manager) transition(phase models.Phase, fn func(*models.BotState)) {
	var from models.Phase
	m.State.Update(func(s *models.BotState) {
		from = s.Phase
		s.Phase = phase
		if fn != nil {
			fn(s)
		}
	})
	metrics.SetPhase(phase)
	if from != phase {
		m.Logger.Info("Phase %s -> %s on %s", from, phase, m.Config.Market)
	}
}

func (m *Manager) emit(kind, msg string, fields map[string]interface{}) {
	if m.Observer == nil {
		return
	}
	m.Observer.OnEvent(models.Event{Time: m.now(), Kind: kind, Message: msg, Fields: fields})
}

func clearPosition(s *models.BotState) {
	s.Side = models.SideNone
	s.Quantity = 0
	s.EntryPrice = 0
	s.Position = models.Position{Symbol: s.Market}
	s.Protection = nil
}
