package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/database"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/models"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/services"
)

// SignalDetectionRunner runs one detection pass over persisted market rows.
type SignalDetectionRunner interface {
	DetectSignals(ctx context.Context, orgID string, windowEnd time.Time) (*services.DetectionResult, error)
}

// SignalLister reads persisted signals for an org.
type SignalLister interface {
	List(ctx context.Context, orgID string, filter database.SignalFilter) ([]models.MarketSignal, error)
}

// SignalHandler exposes signal detection and signal reads
type SignalHandler struct {
	detector SignalDetectionRunner
	signals  SignalLister
	logger   *logrus.Logger
}

func NewSignalHandler(detector SignalDetectionRunner, signals SignalLister, logger *logrus.Logger) *SignalHandler {
	return &SignalHandler{
		detector: detector,
		signals:  signals,
		logger:   logger,
	}
}

// DetectSignalsRequest triggers a detection pass. WindowEnd defaults to now;
// the window lengths come from configuration.
type DetectSignalsRequest struct {
	OrgID     string    `json:"org_id" binding:"required"`
	WindowEnd time.Time `json:"window_end"`
}

// SignalListResponse is the envelope for signal listings
type SignalListResponse struct {
	Data      []models.MarketSignal `json:"data"`
	Total     int                   `json:"total"`
	Timestamp time.Time             `json:"timestamp"`
}

// DetectSignals runs detection for an org and returns the pass summary.
// Per-family read failures and per-signal persist failures are reported in
// the result body, not as an HTTP error.
func (h *SignalHandler) DetectSignals(c *gin.Context) {
	var req DetectSignalsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	windowEnd := req.WindowEnd
	if windowEnd.IsZero() {
		windowEnd = time.Now().UTC()
	}

	result, err := h.detector.DetectSignals(c.Request.Context(), req.OrgID, windowEnd)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"org_id":    result.OrgID,
		"detected":  result.Detected,
		"persisted": result.Persisted,
	}).Info("Signal detection requested over HTTP")

	c.JSON(http.StatusOK, result)
}

// ListSignals returns persisted signals for an org, newest first. Optional
// query filters: geo_id, segment, type, since (RFC3339), limit.
func (h *SignalHandler) ListSignals(c *gin.Context) {
	orgID := c.Query("org_id")
	if orgID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "org_id query parameter is required"})
		return
	}

	filter := database.SignalFilter{
		GeoID:      c.Query("geo_id"),
		Segment:    c.Query("segment"),
		SignalType: models.SignalType(c.Query("type")),
		Limit:      50,
	}

	if since := c.Query("since"); since != "" {
		parsed, err := time.Parse(time.RFC3339, since)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		filter.Since = &parsed
	}

	if limit := c.Query("limit"); limit != "" {
		parsed, err := strconv.Atoi(limit)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		filter.Limit = parsed
	}

	signals, err := h.signals.List(c.Request.Context(), orgID, filter)
	if err != nil {
		h.logger.WithError(err).Error("Signal listing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list signals"})
		return
	}

	c.JSON(http.StatusOK, SignalListResponse{
		Data:      signals,
		Total:     len(signals),
		Timestamp: time.Now(),
	})
}
