package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Sources     SourcesConfig   `mapstructure:"sources"`
	Ingestion   IngestionConfig `mapstructure:"ingestion"`
	Relevance   RelevanceConfig `mapstructure:"relevance"`
	Signals     SignalsConfig   `mapstructure:"signals"`
	Alerts      AlertsConfig    `mapstructure:"alerts"`
	Cleanup     CleanupConfig   `mapstructure:"cleanup"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	DatabaseURL     string `mapstructure:"database_url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime string `mapstructure:"conn_max_idle_time"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SourceEndpointConfig points one adapter at its upstream provider
type SourceEndpointConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

type SourcesConfig struct {
	DLD            SourceEndpointConfig `mapstructure:"dld"`
	Ejari          SourceEndpointConfig `mapstructure:"ejari"`
	Bayut          SourceEndpointConfig `mapstructure:"bayut"`
	PropertyFinder SourceEndpointConfig `mapstructure:"propertyfinder"`
	Dubizzle       SourceEndpointConfig `mapstructure:"dubizzle"`

	EnabledPortals    []string `mapstructure:"enabled_portals"`
	PageSize          int      `mapstructure:"page_size"`
	MaxPages          int      `mapstructure:"max_pages"`
	Timeout           string   `mapstructure:"timeout"`
	RateLimitRequests int      `mapstructure:"rate_limit_requests"`
	RateLimitWindow   string   `mapstructure:"rate_limit_window"`
	MaxRetries        int      `mapstructure:"max_retries"`
	RetryInitialDelay string   `mapstructure:"retry_initial_delay"`
	RetryMaxDelay     string   `mapstructure:"retry_max_delay"`
}

type IngestionConfig struct {
	BatchSize           int `mapstructure:"batch_size"`
	DefaultLookbackDays int `mapstructure:"default_lookback_days"`
	PriceCacheTTLHours  int `mapstructure:"price_cache_ttl_hours"`
}

// RelevanceConfig carries the scoring weights and gates. The defaults are
// tuned values, not invariants; ops can rebalance per deployment.
type RelevanceConfig struct {
	GeoWeight          float64  `mapstructure:"geo_weight"`
	SegmentWeight      float64  `mapstructure:"segment_weight"`
	BudgetWeight       float64  `mapstructure:"budget_weight"`
	YieldWeight        float64  `mapstructure:"yield_weight"`
	ExposureWeight     float64  `mapstructure:"exposure_weight"`
	InclusionThreshold float64  `mapstructure:"inclusion_threshold"`
	LowRiskCeiling     float64  `mapstructure:"low_risk_ceiling"`
	RiskySignalTypes   []string `mapstructure:"risky_signal_types"`
}

type SignalsConfig struct {
	Timeframe            string  `mapstructure:"timeframe"`
	MinSampleSize        int     `mapstructure:"min_sample_size"`
	PriceChangePct       float64 `mapstructure:"price_change_pct"`
	RentChangePct        float64 `mapstructure:"rent_change_pct"`
	VolumeChangePct      float64 `mapstructure:"volume_change_pct"`
	SupplySpikePct       float64 `mapstructure:"supply_spike_pct"`
	PriceCutShareMin     float64 `mapstructure:"price_cut_share_min"`
	SMAWindow            int     `mapstructure:"sma_window"`
	FullConfidenceSample int     `mapstructure:"full_confidence_sample"`
}

type AlertsConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	TelegramBotToken string  `mapstructure:"telegram_bot_token"`
	MinRelevance     float64 `mapstructure:"min_relevance"`
}

type CleanupConfig struct {
	ListingRetentionDays   int `mapstructure:"listing_retention_days"`
	SignalRetentionDays    int `mapstructure:"signal_retention_days"`
	CleanupIntervalMinutes int `mapstructure:"cleanup_interval_minutes"`
}

type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Normalize environment to lowercase for consistent comparison
	config.Environment = strings.ToLower(config.Environment)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(cfg *Config) error {
	for name, value := range map[string]string{
		"sources.timeout":             cfg.Sources.Timeout,
		"sources.rate_limit_window":   cfg.Sources.RateLimitWindow,
		"sources.retry_initial_delay": cfg.Sources.RetryInitialDelay,
		"sources.retry_max_delay":     cfg.Sources.RetryMaxDelay,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", name, err)
		}
	}

	for name, w := range map[string]float64{
		"relevance.geo_weight":          cfg.Relevance.GeoWeight,
		"relevance.segment_weight":      cfg.Relevance.SegmentWeight,
		"relevance.budget_weight":       cfg.Relevance.BudgetWeight,
		"relevance.yield_weight":        cfg.Relevance.YieldWeight,
		"relevance.exposure_weight":     cfg.Relevance.ExposureWeight,
		"relevance.inclusion_threshold": cfg.Relevance.InclusionThreshold,
		"relevance.low_risk_ceiling":    cfg.Relevance.LowRiskCeiling,
	} {
		if w < 0 || w > 1 {
			return fmt.Errorf("%s must be within [0, 1], got %v", name, w)
		}
	}

	if cfg.Ingestion.BatchSize < 1 {
		return fmt.Errorf("ingestion.batch_size must be positive, got %d", cfg.Ingestion.BatchSize)
	}
	if cfg.Sources.PageSize < 1 {
		return fmt.Errorf("sources.page_size must be positive, got %d", cfg.Sources.PageSize)
	}
	if cfg.Sources.MaxPages < 1 {
		return fmt.Errorf("sources.max_pages must be positive, got %d", cfg.Sources.MaxPages)
	}

	return nil
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Database
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "portfolio_os")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.database_url", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "300s")
	viper.SetDefault("database.conn_max_idle_time", "60s")

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Sources
	viper.SetDefault("sources.dld.base_url", "http://localhost:4101")
	viper.SetDefault("sources.dld.api_key", "")
	viper.SetDefault("sources.ejari.base_url", "http://localhost:4102")
	viper.SetDefault("sources.ejari.api_key", "")
	viper.SetDefault("sources.bayut.base_url", "http://localhost:4103")
	viper.SetDefault("sources.bayut.api_key", "")
	viper.SetDefault("sources.propertyfinder.base_url", "http://localhost:4104")
	viper.SetDefault("sources.propertyfinder.api_key", "")
	viper.SetDefault("sources.dubizzle.base_url", "http://localhost:4105")
	viper.SetDefault("sources.dubizzle.api_key", "")
	viper.SetDefault("sources.enabled_portals", []string{"bayut", "propertyfinder", "dubizzle"})
	viper.SetDefault("sources.page_size", 200)
	viper.SetDefault("sources.max_pages", 500)
	viper.SetDefault("sources.timeout", "30s")
	viper.SetDefault("sources.rate_limit_requests", 10)
	viper.SetDefault("sources.rate_limit_window", "1s")
	viper.SetDefault("sources.max_retries", 3)
	viper.SetDefault("sources.retry_initial_delay", "500ms")
	viper.SetDefault("sources.retry_max_delay", "10s")

	// Ingestion
	viper.SetDefault("ingestion.batch_size", 500)
	viper.SetDefault("ingestion.default_lookback_days", 30)
	viper.SetDefault("ingestion.price_cache_ttl_hours", 48)

	// Relevance
	viper.SetDefault("relevance.geo_weight", 0.30)
	viper.SetDefault("relevance.segment_weight", 0.25)
	viper.SetDefault("relevance.budget_weight", 0.20)
	viper.SetDefault("relevance.yield_weight", 0.15)
	viper.SetDefault("relevance.exposure_weight", 0.10)
	viper.SetDefault("relevance.inclusion_threshold", 0.30)
	viper.SetDefault("relevance.low_risk_ceiling", 0.65)
	viper.SetDefault("relevance.risky_signal_types", []string{"supply_spike", "price_cut_cluster"})

	// Signals
	viper.SetDefault("signals.timeframe", "30d")
	viper.SetDefault("signals.min_sample_size", 5)
	viper.SetDefault("signals.price_change_pct", 5.0)
	viper.SetDefault("signals.rent_change_pct", 5.0)
	viper.SetDefault("signals.volume_change_pct", 30.0)
	viper.SetDefault("signals.supply_spike_pct", 40.0)
	viper.SetDefault("signals.price_cut_share_min", 0.15)
	viper.SetDefault("signals.sma_window", 7)
	viper.SetDefault("signals.full_confidence_sample", 30)

	// Alerts
	viper.SetDefault("alerts.enabled", false)
	viper.SetDefault("alerts.telegram_bot_token", "")
	viper.SetDefault("alerts.min_relevance", 0.5)

	// Cleanup
	viper.SetDefault("cleanup.listing_retention_days", 180)
	viper.SetDefault("cleanup.signal_retention_days", 90)
	viper.SetDefault("cleanup.cleanup_interval_minutes", 60)

	// Telemetry
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
}
