package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"ha-futures-bot/internal/constants"
	"ha-futures-bot/models"
)

// Config holds application configuration
type Config struct {
	APIKey    string
	APISecret string
	BaseURL   string // overrides the futures REST endpoint, e.g. for tests
	Testnet   bool

	Market      string
	MarginAsset string
	Leverage    int
	MarginType  string
	Timeframes  []string
	CandleLimit int

	// Percent units: 4.0 = 4%.
	TakeProfitPerc    float64
	StopLossPerc      float64
	TrailCallbackPerc float64
	CapitalFraction   float64

	PollInterval     time.Duration
	SettleDelay      time.Duration
	PacingDelay      time.Duration
	ExchangeCooldown time.Duration
	DataCooldown     time.Duration

	SignalSource  string // "confirmation" or "trend"
	UseLastSignal bool
	TrendFactor   float64
	MACDFastType  string
	MACDFast      int
	MACDSlow      int
	MACDSignal    int

	// Candle cache; empty RedisAddr disables it.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CandleTTL     time.Duration

	// Trade journal. Empty DSN selects the CSV file at TradeLogPath.
	TradeLogPath string
	TradeLogDSN  string

	FlattenOnExit bool
	Debug         bool
	Color         bool
	// Logging configuration
	LogFile       string
	LogMaxSize    int // megabytes
	LogMaxBackups int // number of files
	LogMaxAge     int // days
	LogCompress   bool
	LogLevel      string
	// Status server configuration
	StatusAddr string
	// Daemon configuration
	DaemonMode bool
	PIDFile    string
}

// LoadConfig loads configuration from environment variables or uses defaults
func LoadConfig() *Config {
	return &Config{
		APIKey:      getEnv("BINANCE_API_KEY", ""),
		APISecret:   getEnv("BINANCE_API_SECRET", ""),
		BaseURL:     getEnv("BINANCE_BASE_URL", ""),
		Testnet:     getEnvAsBool("BINANCE_TESTNET", false),
		Market:      strings.ToUpper(getEnv("MARKET", "ETHUSDT")),
		MarginAsset: getEnv("MARGIN_ASSET", "USDT"),
		Leverage:    getEnvAsInt("LEVERAGE", 3),
		MarginType:  strings.ToUpper(getEnv("MARGIN_TYPE", constants.MarginCrossed)),
		Timeframes:  getEnvAsList("TRADING_PERIODS", []string{constants.Minute1, constants.Minute5, constants.Minute15}),
		CandleLimit: getEnvAsInt("CANDLE_LIMIT", constants.DefaultCandleLimit),

		TakeProfitPerc:    getEnvAsFloat("TAKE_PROFIT", 4.0),
		StopLossPerc:      getEnvAsFloat("STOP_LOSS", 5.0),
		TrailCallbackPerc: getEnvAsFloat("TRAILING_PERCENTAGE", 0.4),
		CapitalFraction:   getEnvAsFloat("CAPITAL_FRACTION", constants.DefaultCapitalFraction),

		PollInterval:     getEnvAsDuration("POLL_INTERVAL", constants.DefaultPollInterval),
		SettleDelay:      getEnvAsDuration("SETTLE_DELAY", constants.DefaultSettleDelay),
		PacingDelay:      getEnvAsDuration("PACING_DELAY", constants.DefaultPacingDelay),
		ExchangeCooldown: getEnvAsDuration("EXCHANGE_COOLDOWN", constants.DefaultCooldown),
		DataCooldown:     getEnvAsDuration("DATA_COOLDOWN", constants.DefaultCooldown),

		SignalSource:  strings.ToLower(getEnv("SIGNAL_SOURCE", "confirmation")),
		UseLastSignal: getEnvAsBool("USE_LAST_SIGNAL", false),
		TrendFactor:   getEnvAsFloat("TREND_FACTOR", constants.DefaultTrendFactor),
		MACDFastType:  strings.ToUpper(getEnv("MACD_FAST_MA_TYPE", "SMA")),
		MACDFast:      getEnvAsInt("MACD_FAST", constants.DefaultMACDFast),
		MACDSlow:      getEnvAsInt("MACD_SLOW", constants.DefaultMACDSlow),
		MACDSignal:    getEnvAsInt("MACD_SIGNAL", constants.DefaultMACDSignal),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		CandleTTL:     getEnvAsDuration("CANDLE_CACHE_TTL", 20*time.Second),

		TradeLogPath: getEnv("TRADE_LOG_PATH", "trade_log.csv"),
		TradeLogDSN:  getEnv("TRADE_LOG_DSN", ""),

		FlattenOnExit: getEnvAsBool("FLATTEN_ON_EXIT", false),
		Debug:         false,
		Color:         getEnvAsBool("COLOR", true),
		// Logging defaults
		LogFile:       getEnv("LOG_FILE", "logs/futures_bot.log"),
		LogMaxSize:    getEnvAsInt("LOG_MAX_SIZE", 10),
		LogMaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 5),
		LogMaxAge:     getEnvAsInt("LOG_MAX_AGE", 30),
		LogCompress:   getEnvAsBool("LOG_COMPRESS", true),
		LogLevel:      getEnv("LOG_LEVEL", "INFO"),
		// Status server defaults
		StatusAddr: getEnv("STATUS_ADDR", "127.0.0.1:6061"),
		// Daemon defaults
		DaemonMode: getEnvAsBool("DAEMON_MODE", false),
		PIDFile:    getEnv("PID_FILE", "futures-bot.pid"),
	}
}

// Validate checks the settings the trading loop depends on.
func (c *Config) Validate() error {
	var problems []string
	if c.Market == "" {
		problems = append(problems, "market is empty")
	}
	if c.Leverage < 1 {
		problems = append(problems, fmt.Sprintf("leverage %d < 1", c.Leverage))
	}
	if len(c.Timeframes) == 0 {
		problems = append(problems, "no trading periods")
	}
	if c.TakeProfitPerc <= 0 || c.StopLossPerc <= 0 || c.TrailCallbackPerc <= 0 {
		problems = append(problems, "take profit, stop loss and trailing percentages must be positive")
	}
	if c.CapitalFraction <= 0 || c.CapitalFraction > 1 {
		problems = append(problems, fmt.Sprintf("capital fraction %.2f outside (0,1]", c.CapitalFraction))
	}
	if c.MarginType != constants.MarginCrossed && c.MarginType != constants.MarginIsolated {
		problems = append(problems, fmt.Sprintf("margin type %q", c.MarginType))
	}
	if c.SignalSource != "confirmation" && c.SignalSource != "trend" {
		problems = append(problems, fmt.Sprintf("signal source %q", c.SignalSource))
	}
	if c.MACDFast < 1 || c.MACDSlow < 1 || c.MACDSignal < 1 {
		problems = append(problems, fmt.Sprintf("macd periods %d/%d/%d must be positive", c.MACDFast, c.MACDSlow, c.MACDSignal))
	}
	if c.CandleLimit < 3 {
		problems = append(problems, fmt.Sprintf("candle limit %d", c.CandleLimit))
	}
	if len(problems) > 0 {
		return fmt.Errorf("config: %s: %w", strings.Join(problems, "; "), models.ErrInvalidInput)
	}
	return nil
}

// getEnvAsBool gets an environment variable as a boolean value
func getEnvAsBool(key string, defaultValue bool) bool {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvAsInt(key string, defaultValue int) int {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// getEnvAsDuration accepts Go durations ("10s") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}

// getEnvAsList splits a comma separated value, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
