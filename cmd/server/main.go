package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/api"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/cache"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/config"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/database"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/logging"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/models"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/services"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/sources"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/telemetry"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/pkg/feed"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A .env file is optional; viper picks the variables up either way
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize telemetry first
	ctx := context.Background()
	provider, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		Environment:  cfg.Environment,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to shutdown telemetry: %v\n", err)
		}
	}()

	logger := logging.New(cfg.LogLevel, cfg.Environment)
	provider.AttachLogrusHook(logger)

	// Initialize database
	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Initialize Redis
	redisClient, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer redisClient.Close()

	// Repositories share the one pool
	marketRepo := database.NewMarketRowRepository(db.Pool)
	investorRepo := database.NewInvestorRepository(db.Pool)
	signalRepo := database.NewSignalRepository(db.Pool)
	relevanceRepo := database.NewRelevanceRepository(db.Pool)

	priceCache := cache.NewListingPriceCache(redisClient.Client, time.Duration(cfg.Ingestion.PriceCacheTTLHours)*time.Hour)

	adapters := buildAdapters(cfg, priceCache, marketRepo, logger)

	// Services
	monitor := services.NewResourceMonitor(logger)
	ingestionService := services.NewIngestionService(cfg, adapters, marketRepo, monitor, logger)
	detector := services.NewSignalDetector(cfg.Signals, marketRepo, signalRepo, logger)
	engine := services.NewRelevanceEngine(cfg.Relevance, logger)
	dispatcher := services.NewAlertDispatcher(cfg.Alerts, logger)

	cleanupService := services.NewCleanupService(cfg.Cleanup, marketRepo, signalRepo, logger)
	cleanupService.Start()
	defer cleanupService.Stop()

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(telemetry.ServiceName))

	// Setup routes
	api.SetupRoutes(router, db, redisClient, ingestionService, detector, engine, dispatcher, signalRepo, investorRepo, relevanceRepo, logger)

	// Ingestion runs synchronously over the request, so the write timeout
	// has to cover a full multi-source fetch, not just a point read.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Minute,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       15 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.WithFields(logrus.Fields{
			"service": telemetry.ServiceName,
			"version": telemetry.ServiceVersion,
			"port":    cfg.Server.Port,
		}).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	// Give outstanding requests a deadline for completion
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited gracefully")
	return nil
}

// buildAdapters constructs one adapter per configured source. All adapters
// share a single rate limiter so the combined fetch load stays inside the
// provider quota regardless of how many sources a run covers.
func buildAdapters(cfg *config.Config, priceCache sources.PriceCache, history sources.PriceHistory, logger *logrus.Logger) []sources.Adapter {
	// Durations were validated by config.Load
	timeout, _ := time.ParseDuration(cfg.Sources.Timeout)
	rateWindow, _ := time.ParseDuration(cfg.Sources.RateLimitWindow)
	initialDelay, _ := time.ParseDuration(cfg.Sources.RetryInitialDelay)
	maxDelay, _ := time.ParseDuration(cfg.Sources.RetryMaxDelay)

	limiter := feed.NewRateLimiter(cfg.Sources.RateLimitRequests, rateWindow)
	retry := feed.RetryPolicy{
		MaxRetries:    cfg.Sources.MaxRetries,
		InitialDelay:  initialDelay,
		MaxDelay:      maxDelay,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
	srcCfg := sources.Config{
		PageSize: cfg.Sources.PageSize,
		MaxPages: cfg.Sources.MaxPages,
	}

	newFeedClient := func(source string, endpoint config.SourceEndpointConfig) *feed.Client {
		return feed.NewClient(feed.ClientConfig{
			Source:  source,
			BaseURL: endpoint.BaseURL,
			APIKey:  endpoint.APIKey,
			Timeout: timeout,
			Retry:   retry,
			Limiter: limiter,
		})
	}

	adapters := []sources.Adapter{
		sources.NewDLDAdapter(newFeedClient(models.SourceDLD, cfg.Sources.DLD), srcCfg, logger),
		sources.NewEjariAdapter(newFeedClient(models.SourceEjari, cfg.Sources.Ejari), srcCfg, logger),
	}

	for _, portal := range cfg.Sources.EnabledPortals {
		endpoint, ok := portalEndpoint(cfg.Sources, portal)
		if !ok {
			logger.WithField("portal", portal).Warn("Skipping portal with no configured endpoint")
			continue
		}
		adapters = append(adapters, sources.NewPortalAdapter(portal, newFeedClient(portal, endpoint), srcCfg, priceCache, history, logger))
	}

	return adapters
}

func portalEndpoint(cfg config.SourcesConfig, portal string) (config.SourceEndpointConfig, bool) {
	switch portal {
	case models.PortalBayut:
		return cfg.Bayut, true
	case models.PortalPropertyFinder:
		return cfg.PropertyFinder, true
	case models.PortalDubizzle:
		return cfg.Dubizzle, true
	default:
		return config.SourceEndpointConfig{}, false
	}
}
