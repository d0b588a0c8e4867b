package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/models"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/services"
)

// SignalGetter loads one signal scoped to an org
type SignalGetter interface {
	GetByID(ctx context.Context, orgID, signalID string) (*models.MarketSignal, error)
}

// InvestorDirectory reads the investor population and their exposure facts
type InvestorDirectory interface {
	ListByOrg(ctx context.Context, orgID string) ([]models.Investor, error)
	GetExposure(ctx context.Context, investorID, geoID string) (*models.ExposureFact, error)
}

// TargetStore persists and reads relevance targets
type TargetStore interface {
	Upsert(ctx context.Context, target *models.RelevanceTarget) error
	List(ctx context.Context, orgID, investorID string, limit int) ([]models.RelevanceTarget, error)
	ListBySignal(ctx context.Context, orgID, signalID string) ([]models.RelevanceTarget, error)
}

// RelevanceScorer scores one signal against an investor population
type RelevanceScorer interface {
	ComputeTargetsForSignal(ctx context.Context, req services.ScoreRequest) (*services.ScoreResult, error)
}

// AlertSender pushes scored targets to opted-in investors
type AlertSender interface {
	Enabled() bool
	DispatchTargets(ctx context.Context, signal *models.MarketSignal, targets []*models.RelevanceTarget, investors []*models.Investor) int
}

// RelevanceHandler exposes relevance scoring and target reads
type RelevanceHandler struct {
	engine    RelevanceScorer
	alerts    AlertSender
	signals   SignalGetter
	investors InvestorDirectory
	targets   TargetStore
	logger    *logrus.Logger
}

func NewRelevanceHandler(engine RelevanceScorer, alerts AlertSender, signals SignalGetter, investors InvestorDirectory, targets TargetStore, logger *logrus.Logger) *RelevanceHandler {
	return &RelevanceHandler{
		engine:    engine,
		alerts:    alerts,
		signals:   signals,
		investors: investors,
		targets:   targets,
		logger:    logger,
	}
}

// ScoreSignalRequest scores a stored signal against the org's investors
type ScoreSignalRequest struct {
	OrgID          string `json:"org_id" binding:"required"`
	DispatchAlerts bool   `json:"dispatch_alerts"`
}

// ScoreSignalResponse summarizes one scoring pass
type ScoreSignalResponse struct {
	SignalID   string                    `json:"signal_id"`
	Scored     int                       `json:"scored"`
	Targets    []*models.RelevanceTarget `json:"targets"`
	Skipped    []models.SkippedInvestor  `json:"skipped,omitempty"`
	AlertsSent int                       `json:"alerts_sent"`
	Errors     []string                  `json:"errors,omitempty"`
}

// TargetListResponse is the envelope for relevance target listings
type TargetListResponse struct {
	Data      []models.RelevanceTarget `json:"data"`
	Total     int                      `json:"total"`
	Timestamp time.Time                `json:"timestamp"`
}

// ScoreSignal loads a stored signal, scores it against every investor in the
// org, persists the resulting targets, and optionally dispatches alerts for
// them. Per-target persist failures are reported in the body and do not stop
// the pass.
func (h *RelevanceHandler) ScoreSignal(c *gin.Context) {
	signalID := c.Param("id")

	var req ScoreSignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	ctx := c.Request.Context()

	signal, err := h.signals.GetByID(ctx, req.OrgID, signalID)
	if err != nil {
		h.logger.WithError(err).Error("Signal lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load signal"})
		return
	}
	if signal == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Signal not found"})
		return
	}

	investorRows, err := h.investors.ListByOrg(ctx, req.OrgID)
	if err != nil {
		h.logger.WithError(err).Error("Investor listing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load investors"})
		return
	}

	investors := make([]*models.Investor, 0, len(investorRows))
	for i := range investorRows {
		investors = append(investors, &investorRows[i])
	}

	result, err := h.engine.ComputeTargetsForSignal(ctx, services.ScoreRequest{
		OrgID:     req.OrgID,
		Signal:    signal,
		Investors: investors,
		GetExposure: func(ctx context.Context, orgID, investorID, geoID string) (*models.ExposureFact, error) {
			return h.investors.GetExposure(ctx, investorID, geoID)
		},
	})
	if err != nil {
		h.logger.WithError(err).Error("Relevance scoring failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to score signal"})
		return
	}

	response := ScoreSignalResponse{
		SignalID: signal.ID,
		Scored:   len(investors),
		Targets:  result.Rows,
		Skipped:  result.Skipped,
	}

	for _, target := range result.Rows {
		if err := h.targets.Upsert(ctx, target); err != nil {
			h.logger.WithError(err).WithField("investor_id", target.InvestorID).Error("Target persist failed")
			response.Errors = append(response.Errors, "persist target for "+target.InvestorID+": "+err.Error())
		}
	}

	if req.DispatchAlerts && h.alerts.Enabled() {
		response.AlertsSent = h.alerts.DispatchTargets(ctx, signal, result.Rows, investors)
	}

	h.logger.WithFields(logrus.Fields{
		"org_id":      req.OrgID,
		"signal_id":   signal.ID,
		"targets":     len(result.Rows),
		"skipped":     len(result.Skipped),
		"alerts_sent": response.AlertsSent,
	}).Info("Signal scored over HTTP")

	c.JSON(http.StatusOK, response)
}

// ListTargets returns persisted relevance targets for an org. signal_id
// narrows to one signal's targets; otherwise investor_id and limit apply.
func (h *RelevanceHandler) ListTargets(c *gin.Context) {
	orgID := c.Query("org_id")
	if orgID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "org_id query parameter is required"})
		return
	}

	ctx := c.Request.Context()

	if signalID := c.Query("signal_id"); signalID != "" {
		targets, err := h.targets.ListBySignal(ctx, orgID, signalID)
		if err != nil {
			h.logger.WithError(err).Error("Target listing failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list targets"})
			return
		}
		c.JSON(http.StatusOK, TargetListResponse{Data: targets, Total: len(targets), Timestamp: time.Now()})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	targets, err := h.targets.List(ctx, orgID, c.Query("investor_id"), limit)
	if err != nil {
		h.logger.WithError(err).Error("Target listing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list targets"})
		return
	}

	c.JSON(http.StatusOK, TargetListResponse{Data: targets, Total: len(targets), Timestamp: time.Now()})
}
