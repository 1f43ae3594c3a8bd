package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"

	"ha-futures-bot/config"
	"ha-futures-bot/interfaces"
	"ha-futures-bot/internal/constants"
	"ha-futures-bot/internal/utils"
	"ha-futures-bot/logging"
	"ha-futures-bot/metrics"
	"ha-futures-bot/models"
)

// Binance implements interfaces.Exchange over USDT-M futures REST.
type Binance struct {
	client *futures.Client
	logger logging.LoggerInterface

	mu   sync.Mutex
	meta map[string]models.SymbolMeta
}

var _ interfaces.Exchange = (*Binance)(nil)

// NewBinance creates a futures client from cfg. BaseURL wins over Testnet.
func NewBinance(cfg *config.Config, logger logging.LoggerInterface) *Binance {
	if cfg.Testnet {
		futures.UseTestnet = true
	}
	client := futures.NewClient(cfg.APIKey, cfg.APISecret)
	if cfg.BaseURL != "" {
		client.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &Binance{client: client, logger: logger, meta: make(map[string]models.SymbolMeta)}
}

// call wraps every failure as ErrExchangeCall and counts it.
func (b *Binance) call(op string, err error) error {
	metrics.ObserveCall(op, err)
	if err == nil {
		return nil
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: binance code %d: %s: %w", op, apiErr.Code, apiErr.Message, models.ErrExchangeCall)
	}
	return fmt.Errorf("%s: %v: %w", op, err, models.ErrExchangeCall)
}

// FetchCandles returns up to limit klines oldest first.
func (b *Binance) FetchCandles(ctx context.Context, market, interval string, limit int) ([]models.Candle, error) {
	klines, err := b.client.NewKlinesService().Symbol(market).Interval(interval).Limit(limit).Do(ctx)
	if err = b.call("klines", err); err != nil {
		return nil, err
	}
	out := make([]models.Candle, 0, len(klines))
	for _, k := range klines {
		c, err := candleFromKline(k)
		if err != nil {
			return nil, fmt.Errorf("kline %d: %w", k.OpenTime, err)
		}
		out = append(out, c)
	}
	b.logger.Debug("Fetched %d %s candles for %s", len(out), interval, market)
	return out, nil
}

func candleFromKline(k *futures.Kline) (models.Candle, error) {
	var c models.Candle
	c.OpenTime = time.UnixMilli(k.OpenTime).UTC()
	fields := []struct {
		dst *float64
		src string
	}{{&c.Open, k.Open}, {&c.High, k.High}, {&c.Low, k.Low}, {&c.Close, k.Close}, {&c.Volume, k.Volume}}
	for _, f := range fields {
		v, err := utils.ParseFloat(f.src)
		if err != nil {
			return models.Candle{}, err
		}
		*f.dst = v
	}
	return c, nil
}

// FetchMarkPrice returns the current mark price.
func (b *Binance) FetchMarkPrice(ctx context.Context, market string) (float64, error) {
	res, err := b.client.NewPremiumIndexService().Symbol(market).Do(ctx)
	if err = b.call("premium_index", err); err != nil {
		return 0, err
	}
	for _, p := range res {
		if p.Symbol == market || len(res) == 1 {
			return utils.ParseFloat(p.MarkPrice)
		}
	}
	return 0, fmt.Errorf("mark price for %s missing: %w", market, models.ErrExchangeCall)
}

// FetchBalance returns the wallet balance of asset, 0 when the asset is absent.
func (b *Binance) FetchBalance(ctx context.Context, asset string) (float64, error) {
	balances, err := b.client.NewGetBalanceService().Do(ctx)
	if err = b.call("balance", err); err != nil {
		return 0, err
	}
	for _, bal := range balances {
		if bal.Asset == asset {
			return utils.ParseFloat(bal.Balance)
		}
	}
	b.logger.Warning("Asset %s not found in futures balances", asset)
	return 0, nil
}

// FetchPosition returns the one-way position for market. No row means flat.
func (b *Binance) FetchPosition(ctx context.Context, market string) (models.Position, error) {
	rows, err := b.client.NewGetPositionRiskService().Symbol(market).Do(ctx)
	if err = b.call("position_risk", err); err != nil {
		return models.Position{}, err
	}
	pos := models.Position{Symbol: market}
	for _, r := range rows {
		if r.Symbol != market {
			continue
		}
		if pos.Quantity, err = utils.ParseFloat(r.PositionAmt); err != nil {
			return models.Position{}, err
		}
		if pos.EntryPrice, err = utils.ParseFloat(r.EntryPrice); err != nil {
			return models.Position{}, err
		}
		if pos.LiquidationPrice, err = utils.ParseFloat(r.LiquidationPrice); err != nil {
			return models.Position{}, err
		}
		if pos.Quantity != 0 {
			break
		}
	}
	return pos, nil
}

// FetchSymbolMeta returns price and quantity precision, cached per market.
func (b *Binance) FetchSymbolMeta(ctx context.Context, market string) (models.SymbolMeta, error) {
	b.mu.Lock()
	if m, ok := b.meta[market]; ok {
		b.mu.Unlock()
		return m, nil
	}
	b.mu.Unlock()

	info, err := b.client.NewExchangeInfoService().Do(ctx)
	if err = b.call("exchange_info", err); err != nil {
		return models.SymbolMeta{}, err
	}
	meta := models.SymbolMeta{
		QuantityPrecision: constants.DefaultQuantityPrecision,
		PricePrecision:    constants.DefaultPricePrecision,
	}
	found := false
	for _, s := range info.Symbols {
		if s.Symbol == market {
			meta.QuantityPrecision = s.QuantityPrecision
			meta.PricePrecision = s.PricePrecision
			found = true
			break
		}
	}
	if !found {
		b.logger.Warning("Symbol %s missing from exchange info, using precision qty=%d price=%d",
			market, meta.QuantityPrecision, meta.PricePrecision)
	}
	b.mu.Lock()
	b.meta[market] = meta
	b.mu.Unlock()
	return meta, nil
}

// SetLeverage sets the initial leverage for market.
func (b *Binance) SetLeverage(ctx context.Context, market string, leverage int) error {
	_, err := b.client.NewChangeLeverageService().Symbol(market).Leverage(leverage).Do(ctx)
	return b.call("leverage", err)
}

// SetMarginType switches between CROSSED and ISOLATED margin.
func (b *Binance) SetMarginType(ctx context.Context, market, marginType string) error {
	mt := futures.MarginTypeCrossed
	if strings.EqualFold(marginType, constants.MarginIsolated) {
		mt = futures.MarginTypeIsolated
	}
	err := b.client.NewChangeMarginTypeService().Symbol(market).MarginType(mt).Do(ctx)
	return b.call("margin_type", err)
}

// CancelAllOrders cancels every open order on market. It succeeds when none exist.
func (b *Binance) CancelAllOrders(ctx context.Context, market string) error {
	err := b.client.NewCancelAllOpenOrdersService().Symbol(market).Do(ctx)
	if err = b.call("cancel_all", err); err != nil {
		return err
	}
	b.logger.Info("Cancelled all open orders for %s", market)
	return nil
}

// SubmitMarketOrder places a one-way market order.
func (b *Binance) SubmitMarketOrder(ctx context.Context, req interfaces.MarketOrderRequest) (models.OrderAck, error) {
	svc := b.client.NewCreateOrderService().
		Symbol(req.Market).
		Side(futures.SideType(req.Side)).
		PositionSide(futures.PositionSideTypeBoth).
		Type(futures.OrderTypeMarket).
		Quantity(req.Quantity)
	if req.ReduceOnly {
		svc = svc.ReduceOnly(true)
	}
	if req.ClientOrderID != "" {
		svc = svc.NewClientOrderID(req.ClientOrderID)
	}
	b.logger.Info("Sending market order: %s %s qty=%s reduceOnly=%t", req.Market, req.Side, req.Quantity, req.ReduceOnly)
	res, err := svc.Do(ctx)
	if err = b.call("order_market", err); err != nil {
		return models.OrderAck{}, err
	}
	return ackFrom(res), nil
}

// SubmitStopMarketOrder places a mark-price stop that closes the whole position.
func (b *Binance) SubmitStopMarketOrder(ctx context.Context, req interfaces.StopMarketRequest) (models.OrderAck, error) {
	svc := b.client.NewCreateOrderService().
		Symbol(req.Market).
		Side(futures.SideType(req.Side)).
		PositionSide(futures.PositionSideTypeBoth).
		Type(futures.OrderTypeStopMarket).
		StopPrice(req.StopPrice).
		WorkingType(futures.WorkingTypeMarkPrice).
		ClosePosition(true)
	if req.ClientOrderID != "" {
		svc = svc.NewClientOrderID(req.ClientOrderID)
	}
	b.logger.Info("Sending stop market order: %s %s stop=%s", req.Market, req.Side, req.StopPrice)
	res, err := svc.Do(ctx)
	if err = b.call("order_stop_market", err); err != nil {
		return models.OrderAck{}, err
	}
	return ackFrom(res), nil
}

// SubmitTrailingStopOrder places a reduce-only GTC trailing stop.
func (b *Binance) SubmitTrailingStopOrder(ctx context.Context, req interfaces.TrailingStopRequest) (models.OrderAck, error) {
	svc := b.client.NewCreateOrderService().
		Symbol(req.Market).
		Side(futures.SideType(req.Side)).
		PositionSide(futures.PositionSideTypeBoth).
		Type(futures.OrderTypeTrailingStopMarket).
		Quantity(req.Quantity).
		ActivationPrice(req.ActivationPrice).
		CallbackRate(req.CallbackRate).
		ReduceOnly(true).
		TimeInForce(futures.TimeInForceTypeGTC)
	if req.ClientOrderID != "" {
		svc = svc.NewClientOrderID(req.ClientOrderID)
	}
	b.logger.Info("Sending trailing stop order: %s %s qty=%s activation=%s callback=%s",
		req.Market, req.Side, req.Quantity, req.ActivationPrice, req.CallbackRate)
	res, err := svc.Do(ctx)
	if err = b.call("order_trailing_stop", err); err != nil {
		return models.OrderAck{}, err
	}
	return ackFrom(res), nil
}

func ackFrom(res *futures.CreateOrderResponse) models.OrderAck {
	if res == nil {
		return models.OrderAck{}
	}
	return models.OrderAck{
		OrderID:       res.OrderID,
		ClientOrderID: res.ClientOrderID,
		Symbol:        res.Symbol,
		Side:          string(res.Side),
		Type:          string(res.Type),
		Quantity:      res.OrigQuantity,
		StopPrice:     res.StopPrice,
		Status:        string(res.Status),
	}
}
