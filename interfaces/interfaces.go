package interfaces

import (
	"context"

	"ha-futures-bot/models"
)

// MarketData supplies candles and mark prices
type MarketData interface {
	FetchCandles(ctx context.Context, market, interval string, limit int) ([]models.Candle, error)
	FetchMarkPrice(ctx context.Context, market string) (float64, error)
}

// Account exposes balance, position and symbol settings
type Account interface {
	FetchBalance(ctx context.Context, asset string) (float64, error)
	FetchPosition(ctx context.Context, market string) (models.Position, error)
	FetchSymbolMeta(ctx context.Context, market string) (models.SymbolMeta, error)
	SetLeverage(ctx context.Context, market string, leverage int) error
	SetMarginType(ctx context.Context, market, marginType string) error
}

// MarketOrderRequest opens or flattens a position at market
type MarketOrderRequest struct {
	Market        string
	Side          string
	Quantity      string
	ReduceOnly    bool
	ClientOrderID string
}

// StopMarketRequest is a close-position stop triggered by the mark price
type StopMarketRequest struct {
	Market        string
	Side          string
	StopPrice     string
	ClientOrderID string
}

// TrailingStopRequest is a reduce-only GTC trailing take-profit
type TrailingStopRequest struct {
	Market          string
	Side            string
	Quantity        string
	ActivationPrice string
	CallbackRate    string
	ClientOrderID   string
}

// OrderRouter submits and cancels orders
type OrderRouter interface {
	CancelAllOrders(ctx context.Context, market string) error
	SubmitMarketOrder(ctx context.Context, req MarketOrderRequest) (models.OrderAck, error)
	SubmitStopMarketOrder(ctx context.Context, req StopMarketRequest) (models.OrderAck, error)
	SubmitTrailingStopOrder(ctx context.Context, req TrailingStopRequest) (models.OrderAck, error)
}

// Exchange is every capability the trading loop needs
type Exchange interface {
	MarketData
	Account
	OrderRouter
}

// TradeJournal persists trade records append-only
type TradeJournal interface {
	Append(ctx context.Context, rec models.TradeRecord) error
	Close() error
}

// Observer receives decision and lifecycle events. Implementations must not block.
type Observer interface {
	OnCondition(ev models.ConditionEvent)
	OnEvent(ev models.Event)
}

// Observers fans out to several observers.
type Observers []Observer

func (o Observers) OnCondition(ev models.ConditionEvent) {
	for _, obs := range o {
		if obs != nil {
			obs.OnCondition(ev)
		}
	}
}

func (o Observers) OnEvent(ev models.Event) {
	for _, obs := range o {
		if obs != nil {
			obs.OnEvent(ev)
		}
	}
}
