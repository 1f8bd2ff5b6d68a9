// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Feeds     FeedsConfig     `mapstructure:"feeds"`
	Scanner   ScannerConfig   `mapstructure:"scanner"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// FeedsConfig holds the chain node endpoint and connection policy shared
// by the exchange feeds.
type FeedsConfig struct {
	NodeWSURL      string        `mapstructure:"node_ws_url"`
	ChainID        uint64        `mapstructure:"chain_id"`
	Exchanges      []string      `mapstructure:"exchanges"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	BridgeBuffer   int           `mapstructure:"bridge_buffer"`
}

// ScannerConfig holds opportunity detection thresholds.
type ScannerConfig struct {
	MinSpreadBps      int64   `mapstructure:"min_spread_bps"`
	MaxSlippageBps    int64   `mapstructure:"max_slippage_bps"`
	MinLiquidity      float64 `mapstructure:"min_liquidity"`
	AllowSameExchange bool    `mapstructure:"allow_same_exchange"`
	MaxOpportunities  int     `mapstructure:"max_opportunities"`
}

// RiskConfig holds admission limits for detected opportunities.
type RiskConfig struct {
	MaxTradeSize           float64       `mapstructure:"max_trade_size"`
	MaxExposure            float64       `mapstructure:"max_exposure"`
	MinProfit              float64       `mapstructure:"min_profit"`
	Cooldown               time.Duration `mapstructure:"cooldown"`
	MaxConsecutiveFailures int           `mapstructure:"max_consecutive_failures"`
	HaltTimeout            time.Duration `mapstructure:"halt_timeout"`
}

// MaxTradeSizeDecimal returns the trade size cap as decimal.Decimal.
func (c *RiskConfig) MaxTradeSizeDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MaxTradeSize)
}

// MaxExposureDecimal returns the exposure cap as decimal.Decimal.
func (c *RiskConfig) MaxExposureDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MaxExposure)
}

// MinProfitDecimal returns the profit floor as decimal.Decimal.
func (c *RiskConfig) MinProfitDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinProfit)
}

// RelayConfig holds the execution relay endpoint and bundle settings.
type RelayConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	URL         string        `mapstructure:"url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RateLimit   float64       `mapstructure:"rate_limit"`
	Burst       int           `mapstructure:"burst"`
	MaxAttempts int           `mapstructure:"max_attempts"`

	PrivateKey        string  `mapstructure:"private_key"`
	ExecutorAddress   string  `mapstructure:"executor_address"`
	GasLimit          uint64  `mapstructure:"gas_limit"`
	GasPriceGwei      float64 `mapstructure:"gas_price_gwei"`
	TargetBlockOffset uint64  `mapstructure:"target_block_offset"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("DEXARB")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "DEXARB_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "DEXARB_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "DEXARB_LOG_LEVEL", "LOG_LEVEL")

	// Feeds
	v.BindEnv("feeds.node_ws_url", "DEXARB_NODE_WS_URL", "NODE_WS_URL")
	v.BindEnv("feeds.chain_id", "DEXARB_CHAIN_ID", "CHAIN_ID")
	v.BindEnv("feeds.exchanges", "DEXARB_EXCHANGES")
	v.BindEnv("feeds.max_reconnects", "DEXARB_MAX_RECONNECTS")

	// Scanner
	v.BindEnv("scanner.min_spread_bps", "DEXARB_MIN_SPREAD_BPS")
	v.BindEnv("scanner.max_slippage_bps", "DEXARB_MAX_SLIPPAGE_BPS")
	v.BindEnv("scanner.min_liquidity", "DEXARB_MIN_LIQUIDITY")

	// Risk
	v.BindEnv("risk.max_trade_size", "DEXARB_MAX_TRADE_SIZE")
	v.BindEnv("risk.max_exposure", "DEXARB_MAX_EXPOSURE")

	// Relay
	v.BindEnv("relay.enabled", "DEXARB_RELAY_ENABLED")
	v.BindEnv("relay.url", "DEXARB_RELAY_URL", "RELAY_URL")
	v.BindEnv("relay.private_key", "DEXARB_RELAY_PRIVATE_KEY", "RELAY_PRIVATE_KEY")
	v.BindEnv("relay.executor_address", "DEXARB_RELAY_EXECUTOR", "RELAY_EXECUTOR")

	// Telemetry
	v.BindEnv("telemetry.enabled", "DEXARB_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "DEXARB_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "DEXARB_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "dex-arb-bot")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Feed defaults (BSC mainnet)
	v.SetDefault("feeds.chain_id", 56)
	v.SetDefault("feeds.exchanges", []string{"pancakeswap", "biswap"})
	v.SetDefault("feeds.initial_backoff", "1s")
	v.SetDefault("feeds.max_backoff", "30s")
	v.SetDefault("feeds.max_reconnects", 0) // infinite
	v.SetDefault("feeds.ping_interval", "30s")
	v.SetDefault("feeds.connect_timeout", "10s")
	v.SetDefault("feeds.bridge_buffer", 10000)

	// Scanner defaults
	v.SetDefault("scanner.min_spread_bps", 10)
	v.SetDefault("scanner.max_slippage_bps", 50)
	v.SetDefault("scanner.min_liquidity", 10000)
	v.SetDefault("scanner.allow_same_exchange", false)
	v.SetDefault("scanner.max_opportunities", 64)

	// Risk defaults
	v.SetDefault("risk.max_trade_size", 10)
	v.SetDefault("risk.max_exposure", 50)
	v.SetDefault("risk.min_profit", 0.01)
	v.SetDefault("risk.cooldown", "500ms")
	v.SetDefault("risk.max_consecutive_failures", 5)
	v.SetDefault("risk.halt_timeout", "30s")

	// Relay defaults
	v.SetDefault("relay.enabled", false)
	v.SetDefault("relay.timeout", "5s")
	v.SetDefault("relay.rate_limit", 10)
	v.SetDefault("relay.burst", 5)
	v.SetDefault("relay.max_attempts", 3)
	v.SetDefault("relay.gas_limit", 400000)
	v.SetDefault("relay.gas_price_gwei", 3)
	v.SetDefault("relay.target_block_offset", 1)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "dex-arb-bot")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Feeds.NodeWSURL == "" {
		return fmt.Errorf("feeds.node_ws_url is required")
	}
	if len(c.Feeds.Exchanges) == 0 {
		return fmt.Errorf("feeds.exchanges cannot be empty")
	}
	if c.Feeds.BridgeBuffer <= 0 {
		return fmt.Errorf("feeds.bridge_buffer must be positive")
	}
	if c.Scanner.MinSpreadBps < 0 {
		return fmt.Errorf("scanner.min_spread_bps cannot be negative")
	}
	if c.Scanner.MaxSlippageBps < 0 {
		return fmt.Errorf("scanner.max_slippage_bps cannot be negative")
	}
	if c.Risk.MaxTradeSize <= 0 {
		return fmt.Errorf("risk.max_trade_size must be positive")
	}
	if c.Relay.Enabled && c.Relay.URL == "" {
		return fmt.Errorf("relay.url is required when relay is enabled")
	}
	if c.Relay.Enabled && c.Relay.PrivateKey == "" {
		return fmt.Errorf("relay.private_key is required when relay is enabled")
	}
	if c.Relay.Enabled && c.Relay.ExecutorAddress == "" {
		return fmt.Errorf("relay.executor_address is required when relay is enabled")
	}
	return nil
}
