package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"ha-futures-bot/config"
	"ha-futures-bot/console"
	"ha-futures-bot/daemon"
	"ha-futures-bot/exchange"
	"ha-futures-bot/indicators"
	"ha-futures-bot/interfaces"
	"ha-futures-bot/logging"
	"ha-futures-bot/models"
	"ha-futures-bot/order"
	"ha-futures-bot/position"
	"ha-futures-bot/status"
	"ha-futures-bot/strategy"
	"ha-futures-bot/tradelog"
	"ha-futures-bot/trader"
)

var (
	cfg    *config.Config
	logger *logging.Logger
)

// Initialize logging with the provided configuration
func initLogging() error {
	level := logging.ParseLevel(cfg.LogLevel)
	if cfg.Debug {
		level = logging.DEBUG
	}
	var err error
	logger, err = logging.NewLogger(logging.Options{
		File:       cfg.LogFile,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAge,
		Compress:   cfg.LogCompress,
		Level:      level,
		Stdout:     !daemon.IsDaemon(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// newCandleSource wraps md with the Redis candle cache when REDIS_ADDR is set
// and reachable.
func newCandleSource(ctx context.Context, md interfaces.MarketData) (interfaces.MarketData, func()) {
	if cfg.RedisAddr == "" {
		return md, func() {}
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warning("Redis %s unreachable, candle cache disabled: %v", cfg.RedisAddr, err)
		_ = client.Close()
		return md, func() {}
	}
	cache := exchange.NewCachedMarketData(client, cfg.CandleTTL, md, "candles", logger)
	if err := cache.Invalidate(ctx, cfg.Market); err != nil {
		logger.Warning("Candle cache invalidate: %v", err)
	}
	logger.Info("Candle cache enabled on %s (ttl %s)", cfg.RedisAddr, cfg.CandleTTL)
	return cache, func() { _ = client.Close() }
}

func newSignalSource(md interfaces.MarketData, observer interfaces.Observer) (strategy.SignalSource, error) {
	switch cfg.SignalSource {
	case "trend":
		return &strategy.TrendSource{Data: md, Factor: cfg.TrendFactor, Carry: cfg.UseLastSignal, Limit: cfg.CandleLimit}, nil
	case "confirmation", "":
		fastType, err := indicators.ParseMaType(cfg.MACDFastType)
		if err != nil {
			return nil, err
		}
		macd := indicators.DefaultMACDParams()
		macd.FastType = fastType
		macd.FastPeriod = cfg.MACDFast
		macd.SlowPeriod = cfg.MACDSlow
		macd.SignalPeriod = cfg.MACDSignal
		engine := strategy.NewConfirmationEngine(indicators.NewTalibProvider(macd), observer, logger)
		return &strategy.ConfirmationSource{Data: md, Engine: engine, Limit: cfg.CandleLimit}, nil
	}
	return nil, fmt.Errorf("unknown signal source %q: %w", cfg.SignalSource, models.ErrInvalidInput)
}

func main() {
	cfg = config.LoadConfig()

	daemonStart := flag.Bool("start-daemon", false, "Start the application as a daemon")
	daemonStop := flag.Bool("stop-daemon", false, "Stop the daemon process")
	daemonRestart := flag.Bool("restart-daemon", false, "Restart the daemon process")
	debugFlag := flag.Bool("debug", false, "enable debug logs")
	flatten := flag.Bool("flatten", false, "close any open position, cancel orders and exit")
	flag.Parse()
	cfg.Debug = *debugFlag || cfg.Debug

	switch {
	case *daemonStart:
		if err := daemon.StartDaemon(daemon.StripFlags(os.Args[1:]), cfg.PIDFile); err != nil {
			log.Fatalf("Failed to start daemon: %v", err)
		}
		return
	case *daemonStop:
		if err := daemon.StopDaemon(cfg.PIDFile); err != nil {
			log.Fatalf("Failed to stop daemon: %v", err)
		}
		return
	case *daemonRestart:
		if err := daemon.RestartDaemon(daemon.StripFlags(os.Args[1:]), cfg.PIDFile); err != nil {
			log.Fatalf("Failed to restart daemon: %v", err)
		}
		return
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if err := initLogging(); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logger.Close()

	logger.Info("Application starting...")
	logger.Info("Daemon mode: %t", daemon.IsDaemon())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := console.New(cfg.Color && !daemon.IsDaemon())
	state := models.NewStateStore(cfg.Market)
	hub := status.NewHub(logger)
	go hub.Run(ctx)
	observer := interfaces.Observers{logging.FieldObserver{Logger: logger}, hub}

	ex := exchange.NewBinance(cfg, logger)
	if bal, err := ex.FetchBalance(ctx, cfg.MarginAsset); err != nil {
		logger.Fatal("API authentication failed: %v", err)
	} else {
		logger.Info("Init balance: %.2f %s", bal, cfg.MarginAsset)
	}
	if meta, err := ex.FetchSymbolMeta(ctx, cfg.Market); err == nil {
		logger.Info("Symbol %s: quantity precision %d, price precision %d", cfg.Market, meta.QuantityPrecision, meta.PricePrecision)
	}

	journal, err := tradelog.Open(cfg.TradeLogDSN, cfg.TradeLogPath)
	if err != nil {
		logger.Fatal("Trade journal: %v", err)
	}
	defer journal.Close()

	orders := order.NewOrderManager(ex, cfg, logger, out)
	positions := position.NewManager(ex, orders, journal, state, cfg, logger, out, observer)

	if *flatten {
		if err := positions.Flatten(ctx); err != nil {
			logger.Fatal("Flatten failed: %v", err)
		}
		out.Order("%s flat, open orders cancelled", cfg.Market)
		return
	}

	candles, closeCache := newCandleSource(ctx, ex)
	defer closeCache()
	source, err := newSignalSource(candles, observer)
	if err != nil {
		logger.Fatal("Signal source: %v", err)
	}
	agg := strategy.NewAggregator(source, cfg.Timeframes, cfg.UseLastSignal, cfg.PacingDelay, logger)

	var history status.TradeHistory
	if h, ok := journal.(status.TradeHistory); ok {
		history = h
	}
	srv := status.StartServer(cfg, state, hub, history, logger)

	runner := trader.NewRunner(cfg, agg, positions, state, logger, out, observer)
	if err := runner.Start(ctx); err != nil {
		logger.Error("Runner stopped with error: %v", err)
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	logger.Info("Application stopped")
}
