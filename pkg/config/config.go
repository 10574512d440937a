package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the dashboard server configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Shutdown ShutdownConfig `mapstructure:"shutdown"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// AdminConfig contains credentials for admin and sync-trigger endpoints.
// AdminSecret protects token management; SyncSecret is the shared secret
// presented by the scheduled invoker on sync triggers.
type AdminConfig struct {
	AdminSecret string `mapstructure:"admin_secret"`
	SyncSecret  string `mapstructure:"sync_secret"`
}

// SourcesConfig groups the third-party analytics API settings
type SourcesConfig struct {
	CoinGecko   CoinGeckoConfig   `mapstructure:"coingecko"`
	DexScreener DexScreenerConfig `mapstructure:"dexscreener"`
	Dune        DuneConfig        `mapstructure:"dune"`
}

// CoinGeckoConfig contains market-data aggregator settings
type CoinGeckoConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	AssetID string        `mapstructure:"asset_id"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DexScreenerConfig contains DEX metadata service settings
type DexScreenerConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	ChainID string        `mapstructure:"chain_id"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DuneConfig contains analytics query engine settings.
// RevenueQueryID and TvlQueryID map executions to their snapshot tables;
// LegacyRevenueQueryID is retired and only used to reject manual triggers.
type DuneConfig struct {
	BaseURL              string        `mapstructure:"base_url"`
	APIKey               string        `mapstructure:"api_key"`
	RevenueQueryID       int64         `mapstructure:"revenue_query_id"`
	TvlQueryID           int64         `mapstructure:"tvl_query_id"`
	LegacyRevenueQueryID int64         `mapstructure:"legacy_revenue_query_id"`
	Timeout              time.Duration `mapstructure:"timeout"`
}

// SyncConfig contains sync job cadence and tuning
type SyncConfig struct {
	RefreshSchedule    string        `mapstructure:"refresh_schedule"`
	SocialSchedule     string        `mapstructure:"social_schedule"`
	AssetPriceSchedule string        `mapstructure:"asset_price_schedule"`
	RevenueSchedule    string        `mapstructure:"revenue_schedule"`
	TvlSchedule        string        `mapstructure:"tvl_schedule"`
	ReconcileSchedule  string        `mapstructure:"reconcile_schedule"`
	LiquidityThreshold float64       `mapstructure:"liquidity_threshold"`
	FetchConcurrency   int           `mapstructure:"fetch_concurrency"`
	RateLimitRequests  int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow    time.Duration `mapstructure:"rate_limit_window"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// ShutdownConfig contains graceful shutdown settings
type ShutdownConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.database", "lightvision")

	// Source defaults
	viper.SetDefault("sources.coingecko.base_url", "https://api.coingecko.com/api/v3")
	viper.SetDefault("sources.coingecko.timeout", "15s")
	viper.SetDefault("sources.dexscreener.base_url", "https://api.dexscreener.com")
	viper.SetDefault("sources.dexscreener.chain_id", "hyperevm")
	viper.SetDefault("sources.dexscreener.timeout", "15s")
	viper.SetDefault("sources.dune.base_url", "https://api.dune.com/api/v1")
	viper.SetDefault("sources.dune.timeout", "30s")

	// Sync defaults
	viper.SetDefault("sync.refresh_schedule", "*/10 * * * *")
	viper.SetDefault("sync.social_schedule", "0 */6 * * *")
	viper.SetDefault("sync.asset_price_schedule", "*/10 * * * *")
	viper.SetDefault("sync.revenue_schedule", "15 0 * * *")
	viper.SetDefault("sync.tvl_schedule", "30 0 * * *")
	viper.SetDefault("sync.reconcile_schedule", "*/5 * * * *")
	viper.SetDefault("sync.liquidity_threshold", 10000.0)
	viper.SetDefault("sync.fetch_concurrency", 4)
	viper.SetDefault("sync.rate_limit_requests", 10)
	viper.SetDefault("sync.rate_limit_window", "1m")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")

	// Shutdown defaults
	viper.SetDefault("shutdown.timeout", "30s")
}

func validate(config *Config) error {
	if config.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if config.Admin.AdminSecret == "" {
		return fmt.Errorf("admin.admin_secret is required")
	}
	if config.Admin.SyncSecret == "" {
		return fmt.Errorf("admin.sync_secret is required")
	}
	if config.Sources.CoinGecko.AssetID == "" {
		return fmt.Errorf("sources.coingecko.asset_id is required")
	}
	if config.Sync.LiquidityThreshold < 0 {
		return fmt.Errorf("sync.liquidity_threshold must not be negative")
	}
	return nil
}
