package order

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"ha-futures-bot/config"
	"ha-futures-bot/console"
	"ha-futures-bot/interfaces"
	"ha-futures-bot/internal/constants"
	"ha-futures-bot/internal/utils"
	"ha-futures-bot/logging"
	"ha-futures-bot/metrics"
	"ha-futures-bot/models"
)

// OrderManager turns position decisions into exchange orders
type OrderManager struct {
	Router  interfaces.OrderRouter
	Config  *config.Config
	Logger  logging.LoggerInterface
	Console *console.Announcer

	newID func(prefix string) string
}

// NewOrderManager creates a new order manager
func NewOrderManager(router interfaces.OrderRouter, cfg *config.Config, logger logging.LoggerInterface, out *console.Announcer) *OrderManager {
	return &OrderManager{
		Router:  router,
		Config:  cfg,
		Logger:  logger,
		Console: out,
		newID:   clientOrderID,
	}
}

// clientOrderID builds a 35 character id, inside the exchange's 36 limit.
func clientOrderID(prefix string) string {
	return prefix + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// EntrySide is the order side that opens a position of side s.
func EntrySide(s models.Side) (string, error) {
	switch s {
	case models.SideLong:
		return constants.Buy, nil
	case models.SideShort:
		return constants.Sell, nil
	}
	return "", fmt.Errorf("entry side for %q: %w", s, models.ErrInvalidInput)
}

// ExitSide is the order side that reduces a position of side s.
func ExitSide(s models.Side) (string, error) {
	switch s {
	case models.SideLong:
		return constants.Sell, nil
	case models.SideShort:
		return constants.Buy, nil
	}
	return "", fmt.Errorf("exit side for %q: %w", s, models.ErrInvalidInput)
}

// CancelAll removes every working order for the configured market.
func (om *OrderManager) CancelAll(ctx context.Context) error {
	return om.Router.CancelAllOrders(ctx, om.Config.Market)
}

// PlaceEntry submits the market order opening side with qty contracts.
func (om *OrderManager) PlaceEntry(ctx context.Context, side models.Side, qty float64, meta models.SymbolMeta) (models.OrderAck, error) {
	if qty <= 0 {
		return models.OrderAck{}, fmt.Errorf("entry quantity %v: %w", qty, models.ErrInvalidInput)
	}
	orderSide, err := EntrySide(side)
	if err != nil {
		return models.OrderAck{}, err
	}
	req := interfaces.MarketOrderRequest{
		Market:        om.Config.Market,
		Side:          orderSide,
		Quantity:      utils.FormatDecimal(qty, meta.QuantityPrecision),
		ClientOrderID: om.newID("entry"),
	}
	ack, err := om.Router.SubmitMarketOrder(ctx, req)
	if err != nil {
		return models.OrderAck{}, fmt.Errorf("entry %s %s: %w", orderSide, req.Quantity, err)
	}
	metrics.Orders.WithLabelValues(constants.OrderTypeMarket, orderSide).Inc()
	om.Logger.Info("Entry %s %s qty=%s id=%d", om.Config.Market, orderSide, req.Quantity, ack.OrderID)
	return ack, nil
}

// PlaceStopLoss attaches a mark-price stop that closes the whole position.
func (om *OrderManager) PlaceStopLoss(ctx context.Context, side models.Side, stopPrice float64, meta models.SymbolMeta) (models.OrderAck, error) {
	orderSide, err := ExitSide(side)
	if err != nil {
		return models.OrderAck{}, err
	}
	req := interfaces.StopMarketRequest{
		Market:        om.Config.Market,
		Side:          orderSide,
		StopPrice:     utils.FormatPrice(stopPrice, meta.PricePrecision),
		ClientOrderID: om.newID("sl"),
	}
	ack, err := om.Router.SubmitStopMarketOrder(ctx, req)
	if err != nil {
		return models.OrderAck{}, fmt.Errorf("stop loss @ %s: %w", req.StopPrice, err)
	}
	if ack.StopPrice == "" {
		ack.StopPrice = req.StopPrice
	}
	metrics.Orders.WithLabelValues(constants.OrderTypeStopMarket, orderSide).Inc()
	om.Logger.Info("SL set @ %s (%s) id=%d", req.StopPrice, orderSide, ack.OrderID)
	om.Console.Order("Stop loss @ %s", req.StopPrice)
	return ack, nil
}

// PlaceTrailingTakeProfit attaches a reduce-only trailing stop activated at
// activation with the configured callback rate.
func (om *OrderManager) PlaceTrailingTakeProfit(ctx context.Context, side models.Side, qty, activation float64, meta models.SymbolMeta) (models.OrderAck, error) {
	orderSide, err := ExitSide(side)
	if err != nil {
		return models.OrderAck{}, err
	}
	req := interfaces.TrailingStopRequest{
		Market:          om.Config.Market,
		Side:            orderSide,
		Quantity:        utils.FormatDecimal(qty, meta.QuantityPrecision),
		ActivationPrice: utils.FormatPrice(activation, meta.PricePrecision),
		CallbackRate:    utils.FormatDecimal(om.Config.TrailCallbackPerc, 1),
		ClientOrderID:   om.newID("tp"),
	}
	ack, err := om.Router.SubmitTrailingStopOrder(ctx, req)
	if err != nil {
		return models.OrderAck{}, fmt.Errorf("trailing take profit @ %s: %w", req.ActivationPrice, err)
	}
	// Trailing orders trigger at the activation price.
	ack.StopPrice = req.ActivationPrice
	metrics.Orders.WithLabelValues(constants.OrderTypeTrailingStop, orderSide).Inc()
	om.Logger.Info("TP set @ %s (%s, qty %s, callback %s%%) id=%d",
		req.ActivationPrice, orderSide, req.Quantity, req.CallbackRate, ack.OrderID)
	om.Console.Order("Trailing take profit @ %s, callback %s%%", req.ActivationPrice, req.CallbackRate)
	return ack, nil
}

// ClosePosition flattens pos with a reduce-only market order for |qty|.
// A flat position is a no-op.
func (om *OrderManager) ClosePosition(ctx context.Context, pos models.Position, meta models.SymbolMeta) (models.OrderAck, error) {
	if !pos.IsOpen() {
		return models.OrderAck{}, nil
	}
	orderSide, err := ExitSide(pos.Side())
	if err != nil {
		return models.OrderAck{}, err
	}
	qty := pos.Quantity
	if qty < 0 {
		qty = -qty
	}
	req := interfaces.MarketOrderRequest{
		Market:        om.Config.Market,
		Side:          orderSide,
		Quantity:      utils.FormatDecimal(qty, meta.QuantityPrecision),
		ReduceOnly:    true,
		ClientOrderID: om.newID("close"),
	}
	ack, err := om.Router.SubmitMarketOrder(ctx, req)
	if err != nil {
		return models.OrderAck{}, fmt.Errorf("close %s %s: %w", orderSide, req.Quantity, err)
	}
	metrics.Orders.WithLabelValues(constants.OrderTypeMarket, orderSide).Inc()
	om.Logger.Info("Closed %s position %s qty=%s", pos.Side(), om.Config.Market, req.Quantity)
	om.Console.Order("Closed %s %s %s", pos.Side(), req.Quantity, om.Config.Market)
	return ack, nil
}
