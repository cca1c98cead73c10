// Package config loads signaldesk settings from an optional YAML file and
// the environment using viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"signaldesk/internal/indicator"
	"signaldesk/internal/logger"
	"signaldesk/internal/model"
	"signaldesk/internal/strategy"
)

// Config is the complete application configuration.
type Config struct {
	Alpaca   AlpacaConfig   `mapstructure:"alpaca"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Trading  TradingConfig  `mapstructure:"trading"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// AlpacaConfig holds broker API credentials and endpoints.
type AlpacaConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	APISecret string        `mapstructure:"api_secret"`
	BaseURL   string        `mapstructure:"base_url"`
	DataURL   string        `mapstructure:"data_url"`
	Feed      string        `mapstructure:"feed"` // iex or sip
	Timeout   time.Duration `mapstructure:"timeout"`
}

// AnalysisConfig holds the defaults offered to users for a run.
type AnalysisConfig struct {
	Symbols          []string         `mapstructure:"symbols"`
	DefaultSymbol    string           `mapstructure:"default_symbol"`
	DefaultTimeframe string           `mapstructure:"default_timeframe"`
	LookbackDays     int              `mapstructure:"lookback_days"`
	Strategy         string           `mapstructure:"strategy"`
	Oversold         float64          `mapstructure:"oversold"`
	Overbought       float64          `mapstructure:"overbought"`
	Indicators       indicator.Config `mapstructure:"indicators"`
}

// TradingConfig controls order placement.
type TradingConfig struct {
	AutoTrade     bool    `mapstructure:"auto_trade"`
	Qty           float64 `mapstructure:"qty"`
	TimeInForce   string  `mapstructure:"time_in_force"` // empty: day for equities, gtc for crypto
	StopLossPct   float64 `mapstructure:"stop_loss_pct"`
	TakeProfitPct float64 `mapstructure:"take_profit_pct"`
	Paper         bool    `mapstructure:"paper"` // simulate fills locally instead of calling the broker
	SlippageBps   int64   `mapstructure:"slippage_bps"`
	TOTPSecret    string  `mapstructure:"totp_secret"` // when set, manual orders need a one-time code
}

// StorageConfig holds the SQLite bar store and order journal settings.
type StorageConfig struct {
	SQLitePath    string `mapstructure:"sqlite_path"`
	BarSource     string `mapstructure:"bar_source"` // alpaca or sqlite
	JournalOrders bool   `mapstructure:"journal_orders"`
}

// RedisConfig holds the signal publisher settings.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// NotifyConfig selects the alert channels.
type NotifyConfig struct {
	Log        bool           `mapstructure:"log"`
	WebhookURL string         `mapstructure:"webhook_url"`
	Telegram   TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig holds Telegram Bot API settings.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// HTTPConfig holds the API server settings.
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	MetricsAddr  string        `mapstructure:"metrics_addr"` // empty: /metrics on the API port
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Bar sources.
const (
	SourceAlpaca = "alpaca"
	SourceSQLite = "sqlite"
)

// Load reads configuration from path (optional) and the environment.
// Every key can be overridden with SIGNALDESK_<SECTION>_<KEY>; the common
// deployment variables (ALPACA_API_KEY, REDIS_ADDR, ...) are also honoured.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SIGNALDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.normalize()

	return &cfg, nil
}

// bindEnv maps the unprefixed deployment variables onto config keys.
func bindEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"alpaca.api_key":            {"SIGNALDESK_ALPACA_API_KEY", "ALPACA_API_KEY", "APCA_API_KEY_ID"},
		"alpaca.api_secret":         {"SIGNALDESK_ALPACA_API_SECRET", "ALPACA_SECRET_KEY", "APCA_API_SECRET_KEY"},
		"alpaca.base_url":           {"SIGNALDESK_ALPACA_BASE_URL", "ALPACA_BASE_URL"},
		"alpaca.data_url":           {"SIGNALDESK_ALPACA_DATA_URL", "ALPACA_DATA_URL"},
		"redis.addr":                {"SIGNALDESK_REDIS_ADDR", "REDIS_ADDR"},
		"redis.password":            {"SIGNALDESK_REDIS_PASSWORD", "REDIS_PASSWORD"},
		"storage.sqlite_path":       {"SIGNALDESK_STORAGE_SQLITE_PATH", "SQLITE_PATH"},
		"http.addr":                 {"SIGNALDESK_HTTP_ADDR", "HTTP_ADDR"},
		"http.metrics_addr":         {"SIGNALDESK_HTTP_METRICS_ADDR", "METRICS_ADDR"},
		"logging.level":             {"SIGNALDESK_LOGGING_LEVEL", "LOG_LEVEL"},
		"trading.totp_secret":       {"SIGNALDESK_TRADING_TOTP_SECRET", "ORDER_TOTP_SECRET"},
		"notify.webhook_url":        {"SIGNALDESK_NOTIFY_WEBHOOK_URL", "WEBHOOK_URL"},
		"notify.telegram.bot_token": {"SIGNALDESK_NOTIFY_TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_TOKEN"},
		"notify.telegram.chat_id":   {"SIGNALDESK_NOTIFY_TELEGRAM_CHAT_ID", "TELEGRAM_CHAT_ID"},
	}
	for key, names := range bindings {
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// Alpaca
	v.SetDefault("alpaca.base_url", "https://paper-api.alpaca.markets")
	v.SetDefault("alpaca.data_url", "https://data.alpaca.markets")
	v.SetDefault("alpaca.feed", "iex")
	v.SetDefault("alpaca.timeout", "15s")

	// Analysis
	ind := indicator.DefaultConfig()
	v.SetDefault("analysis.symbols", []string{"AAPL", "TSLA", "MSFT", "BTC/USD"})
	v.SetDefault("analysis.default_symbol", "AAPL")
	v.SetDefault("analysis.default_timeframe", "1Day")
	v.SetDefault("analysis.lookback_days", 90)
	v.SetDefault("analysis.strategy", string(strategy.KindBollingerTouch))
	v.SetDefault("analysis.oversold", strategy.DefaultThresholds().Oversold)
	v.SetDefault("analysis.overbought", strategy.DefaultThresholds().Overbought)
	v.SetDefault("analysis.indicators.bollinger_window", ind.BollingerWindow)
	v.SetDefault("analysis.indicators.bollinger_k", ind.BollingerK)
	v.SetDefault("analysis.indicators.short_ma", ind.ShortMA)
	v.SetDefault("analysis.indicators.long_ma", ind.LongMA)
	v.SetDefault("analysis.indicators.ema_span", ind.EMASpan)
	v.SetDefault("analysis.indicators.rsi_period", ind.RSIPeriod)
	v.SetDefault("analysis.indicators.rsi_smoothing", string(ind.RSISmoothing))

	// Trading
	v.SetDefault("trading.auto_trade", false)
	v.SetDefault("trading.qty", 1)
	v.SetDefault("trading.time_in_force", "")
	v.SetDefault("trading.stop_loss_pct", 0.0)
	v.SetDefault("trading.take_profit_pct", 0.0)
	v.SetDefault("trading.paper", true)
	v.SetDefault("trading.slippage_bps", 0)
	v.SetDefault("trading.totp_secret", "")

	// Storage
	v.SetDefault("storage.sqlite_path", "data/signaldesk.db")
	v.SetDefault("storage.bar_source", SourceAlpaca)
	v.SetDefault("storage.journal_orders", false)

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "signaldesk")

	// Notify
	v.SetDefault("notify.log", true)
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.telegram.enabled", false)
	v.SetDefault("notify.telegram.bot_token", "")
	v.SetDefault("notify.telegram.chat_id", "")

	// HTTP
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.metrics_addr", "")
	v.SetDefault("http.read_timeout", "15s")
	v.SetDefault("http.write_timeout", "60s")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func (c *Config) normalize() {
	syms := make([]string, 0, len(c.Analysis.Symbols))
	for _, s := range c.Analysis.Symbols {
		if s = model.NormalizeSymbol(s); s != "" {
			syms = append(syms, s)
		}
	}
	c.Analysis.Symbols = syms
	c.Analysis.DefaultSymbol = model.NormalizeSymbol(c.Analysis.DefaultSymbol)
	c.Storage.BarSource = strings.ToLower(strings.TrimSpace(c.Storage.BarSource))
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Logging.Format = strings.ToLower(c.Logging.Format)
}

// Thresholds returns the configured RSI thresholds.
func (c *Config) Thresholds() strategy.Thresholds {
	return strategy.Thresholds{Oversold: c.Analysis.Oversold, Overbought: c.Analysis.Overbought}
}

// Validate checks that all configuration values are valid. Broker
// credentials are required unless the run can be served entirely from the
// SQLite store in paper mode.
func (c *Config) Validate() error {
	needBroker := c.Storage.BarSource != SourceSQLite || !c.Trading.Paper
	if needBroker && (c.Alpaca.APIKey == "" || c.Alpaca.APISecret == "") {
		return errors.New("alpaca.api_key and alpaca.api_secret are required (ALPACA_API_KEY / ALPACA_SECRET_KEY)")
	}
	if c.Alpaca.BaseURL == "" || c.Alpaca.DataURL == "" {
		return errors.New("alpaca.base_url and alpaca.data_url are required")
	}
	if c.Alpaca.Feed != "iex" && c.Alpaca.Feed != "sip" {
		return fmt.Errorf("alpaca.feed must be iex or sip, got %q", c.Alpaca.Feed)
	}

	if len(c.Analysis.Symbols) == 0 {
		return errors.New("analysis.symbols must contain at least one symbol")
	}
	if c.Analysis.DefaultSymbol == "" {
		return errors.New("analysis.default_symbol is required")
	}
	if _, err := model.ParseTimeframe(c.Analysis.DefaultTimeframe); err != nil {
		return fmt.Errorf("analysis.default_timeframe: %w", err)
	}
	if c.Analysis.LookbackDays < 1 || c.Analysis.LookbackDays > 365 {
		return errors.New("analysis.lookback_days must be between 1 and 365")
	}
	if _, err := strategy.ParseKind(c.Analysis.Strategy); err != nil {
		return fmt.Errorf("analysis.strategy: %w", err)
	}
	if err := c.Thresholds().Validate(); err != nil {
		return fmt.Errorf("analysis thresholds: %w", err)
	}
	if err := c.Analysis.Indicators.Validate(); err != nil {
		return fmt.Errorf("analysis.indicators: %w", err)
	}

	if c.Trading.Qty <= 0 {
		return errors.New("trading.qty must be positive")
	}
	if c.Trading.TimeInForce != "" {
		if _, err := model.ParseTimeInForce(c.Trading.TimeInForce); err != nil {
			return fmt.Errorf("trading.time_in_force: %w", err)
		}
	}
	if c.Trading.StopLossPct < 0 || c.Trading.StopLossPct >= 100 {
		return errors.New("trading.stop_loss_pct must be in [0, 100)")
	}
	if c.Trading.TakeProfitPct < 0 {
		return errors.New("trading.take_profit_pct must not be negative")
	}
	if c.Trading.SlippageBps < 0 {
		return errors.New("trading.slippage_bps must not be negative")
	}

	switch c.Storage.BarSource {
	case SourceAlpaca, SourceSQLite:
	default:
		return fmt.Errorf("storage.bar_source must be alpaca or sqlite, got %q", c.Storage.BarSource)
	}
	if (c.Storage.BarSource == SourceSQLite || c.Storage.JournalOrders) && c.Storage.SQLitePath == "" {
		return errors.New("storage.sqlite_path is required for the sqlite bar source or order journal")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis.addr is required when redis is enabled")
	}
	if c.Notify.Telegram.Enabled {
		if c.Notify.Telegram.BotToken == "" {
			return errors.New("notify.telegram.bot_token is required when telegram is enabled")
		}
		if c.Notify.Telegram.ChatID == "" {
			return errors.New("notify.telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}

	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return errors.New("logging.format must be one of: json, text")
	}

	return nil
}
