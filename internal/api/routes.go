package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/api/handlers"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/database"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/services"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Services  Services  `json:"services"`
}

type Services struct {
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

// SetupRoutes wires the HTTP surface: job entry points for ingestion and
// signal detection, read endpoints for signals and relevance targets, and
// the health check.
func SetupRoutes(router *gin.Engine, db *database.PostgresDB, redis *database.RedisClient, ingestionService *services.IngestionService, detector *services.SignalDetector, engine *services.RelevanceEngine, dispatcher *services.AlertDispatcher, signalRepo *database.SignalRepository, investorRepo *database.InvestorRepository, relevanceRepo *database.RelevanceRepository, logger *logrus.Logger) {
	// Health check endpoint
	router.GET("/health", healthCheck(db, redis))

	// Initialize handlers
	ingestionHandler := handlers.NewIngestionHandler(ingestionService, logger)
	signalHandler := handlers.NewSignalHandler(detector, signalRepo, logger)
	relevanceHandler := handlers.NewRelevanceHandler(engine, dispatcher, signalRepo, investorRepo, relevanceRepo, logger)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Ingestion job entry points
		ingestion := v1.Group("/ingestion")
		{
			ingestion.POST("/run", ingestionHandler.RunIngestion)
			ingestion.GET("/sources", ingestionHandler.ListSources)
		}

		// Signal detection and reads
		signals := v1.Group("/signals")
		{
			signals.GET("", signalHandler.ListSignals)
			signals.POST("/detect", signalHandler.DetectSignals)
			signals.POST("/:id/relevance", relevanceHandler.ScoreSignal)
		}

		// Relevance target reads
		relevance := v1.Group("/relevance")
		{
			relevance.GET("/targets", relevanceHandler.ListTargets)
		}
	}
}

func healthCheck(db *database.PostgresDB, redis *database.RedisClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now(),
			Version:   "1.0.0",
			Services: Services{
				Database: "ok",
				Redis:    "ok",
			},
		}

		// Check database health
		if err := db.HealthCheck(c.Request.Context()); err != nil {
			response.Services.Database = "error"
			response.Status = "degraded"
		}

		// Check Redis health
		if err := redis.HealthCheck(c.Request.Context()); err != nil {
			response.Services.Redis = "error"
			response.Status = "degraded"
		}

		statusCode := http.StatusOK
		if response.Status == "degraded" {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, response)
	}
}
