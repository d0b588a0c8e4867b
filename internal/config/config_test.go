package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_WithDefaults(t *testing.T) {
	config, err := Load()
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, "development", config.Environment)
	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "localhost", config.Database.Host)
	assert.Equal(t, "portfolio_os", config.Database.DBName)
	assert.Equal(t, 6379, config.Redis.Port)

	assert.Equal(t, []string{"bayut", "propertyfinder", "dubizzle"}, config.Sources.EnabledPortals)
	assert.Equal(t, 200, config.Sources.PageSize)
	assert.Equal(t, 500, config.Sources.MaxPages)
	assert.Equal(t, 10, config.Sources.RateLimitRequests)
	assert.Equal(t, "1s", config.Sources.RateLimitWindow)

	assert.Equal(t, 500, config.Ingestion.BatchSize)
	assert.Equal(t, 30, config.Ingestion.DefaultLookbackDays)

	assert.InDelta(t, 0.30, config.Relevance.GeoWeight, 1e-9)
	assert.InDelta(t, 0.25, config.Relevance.SegmentWeight, 1e-9)
	assert.InDelta(t, 0.20, config.Relevance.BudgetWeight, 1e-9)
	assert.InDelta(t, 0.15, config.Relevance.YieldWeight, 1e-9)
	assert.InDelta(t, 0.10, config.Relevance.ExposureWeight, 1e-9)
	assert.InDelta(t, 0.30, config.Relevance.InclusionThreshold, 1e-9)
	assert.InDelta(t, 0.65, config.Relevance.LowRiskCeiling, 1e-9)
	assert.Equal(t, []string{"supply_spike", "price_cut_cluster"}, config.Relevance.RiskySignalTypes)

	assert.Equal(t, "30d", config.Signals.Timeframe)
	assert.Equal(t, 5, config.Signals.MinSampleSize)
	assert.False(t, config.Alerts.Enabled)
	assert.Equal(t, 180, config.Cleanup.ListingRetentionDays)
	assert.False(t, config.Telemetry.Enabled)
}

func TestLoad_WithEnvironmentVariables(t *testing.T) {
	t.Setenv("ENVIRONMENT", "Production")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("DATABASE_HOST", "prod-db.example.com")
	t.Setenv("SOURCES_DLD_BASE_URL", "https://api.dubailand.gov.ae")
	t.Setenv("SOURCES_DLD_API_KEY", "prod-key")
	t.Setenv("SOURCES_RATE_LIMIT_REQUESTS", "25")
	t.Setenv("RELEVANCE_INCLUSION_THRESHOLD", "0.4")
	t.Setenv("ALERTS_TELEGRAM_BOT_TOKEN", "tg-token")

	config, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", config.Environment, "environment is normalized to lowercase")
	assert.Equal(t, "error", config.LogLevel)
	assert.Equal(t, 9000, config.Server.Port)
	assert.Equal(t, "prod-db.example.com", config.Database.Host)
	assert.Equal(t, "https://api.dubailand.gov.ae", config.Sources.DLD.BaseURL)
	assert.Equal(t, "prod-key", config.Sources.DLD.APIKey)
	assert.Equal(t, 25, config.Sources.RateLimitRequests)
	assert.InDelta(t, 0.4, config.Relevance.InclusionThreshold, 1e-9)
	assert.Equal(t, "tg-token", config.Alerts.TelegramBotToken)
}

func TestLoad_RejectsInvalidDuration(t *testing.T) {
	t.Setenv("SOURCES_RATE_LIMIT_WINDOW", "not-a-duration")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sources.rate_limit_window")
}

func TestLoad_RejectsWeightOutOfRange(t *testing.T) {
	t.Setenv("RELEVANCE_GEO_WEIGHT", "1.5")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relevance.geo_weight")
}

func TestLoad_RejectsNonPositiveBatchSize(t *testing.T) {
	t.Setenv("INGESTION_BATCH_SIZE", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingestion.batch_size")
}
