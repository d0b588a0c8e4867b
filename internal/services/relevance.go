package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/config"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/models"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/telemetry"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/utils"
)

// ExposureLookup resolves whether an investor already holds property in a
// geography. It is injected so the engine has no persistence dependency of
// its own; tests substitute stubs.
type ExposureLookup func(ctx context.Context, orgID, investorID, geoID string) (*models.ExposureFact, error)

// ScoreRequest scores one signal against a population of investors.
type ScoreRequest struct {
	OrgID       string
	Signal      *models.MarketSignal
	Investors   []*models.Investor
	GetExposure ExposureLookup
}

// ScoreResult partitions the investor population: Rows carries everyone at
// or above the inclusion threshold, Skipped everyone else with a reason.
// len(Rows)+len(Skipped) always equals the number of investors scored.
type ScoreResult struct {
	Rows    []*models.RelevanceTarget
	Skipped []models.SkippedInvestor
}

// RelevanceEngine computes bounded relevance scores for (signal, investor)
// pairs from independently weighted dimension matches.
type RelevanceEngine struct {
	weights   dimensionWeights
	threshold decimal.Decimal
	ceiling   decimal.Decimal
	risky     map[models.SignalType]bool
	logger    *logrus.Logger
}

type dimensionWeights struct {
	geo      decimal.Decimal
	segment  decimal.Decimal
	budget   decimal.Decimal
	yield    decimal.Decimal
	exposure decimal.Decimal
}

// NewRelevanceEngine builds an engine from the configured weights,
// inclusion threshold, low-risk ceiling, and risky-type allowlist.
func NewRelevanceEngine(cfg config.RelevanceConfig, logger *logrus.Logger) *RelevanceEngine {
	risky := make(map[models.SignalType]bool, len(cfg.RiskySignalTypes))
	for _, st := range cfg.RiskySignalTypes {
		risky[models.SignalType(st)] = true
	}

	return &RelevanceEngine{
		weights: dimensionWeights{
			geo:      decimal.NewFromFloat(cfg.GeoWeight),
			segment:  decimal.NewFromFloat(cfg.SegmentWeight),
			budget:   decimal.NewFromFloat(cfg.BudgetWeight),
			yield:    decimal.NewFromFloat(cfg.YieldWeight),
			exposure: decimal.NewFromFloat(cfg.ExposureWeight),
		},
		threshold: decimal.NewFromFloat(cfg.InclusionThreshold),
		ceiling:   decimal.NewFromFloat(cfg.LowRiskCeiling),
		risky:     risky,
		logger:    logger,
	}
}

// ComputeTargetsForSignal scores every investor against the signal.
// Investors are scored independently; a malformed mandate or failed
// exposure lookup affects only its own investor.
func (e *RelevanceEngine) ComputeTargetsForSignal(ctx context.Context, req ScoreRequest) (*ScoreResult, error) {
	if req.Signal == nil {
		return nil, fmt.Errorf("compute targets: nil signal")
	}

	ctx, span := telemetry.StartScoringSpan(ctx, req.OrgID, req.Signal.ID, len(req.Investors))

	result := &ScoreResult{}
	for _, investor := range req.Investors {
		target, skip := e.scoreInvestor(ctx, req, investor)
		if skip != nil {
			result.Skipped = append(result.Skipped, *skip)
			continue
		}
		result.Rows = append(result.Rows, target)
	}

	telemetry.RecordScoringStats(span, len(result.Rows), len(result.Skipped))
	telemetry.EndSpanWithError(span, nil)

	e.logger.WithFields(logrus.Fields{
		"org_id":      req.OrgID,
		"signal_type": req.Signal.SignalType,
		"signal_key":  req.Signal.SignalKey,
		"targets":     len(result.Rows),
		"skipped":     len(result.Skipped),
	}).Info("Scored signal against investor population")

	return result, nil
}

func (e *RelevanceEngine) scoreInvestor(ctx context.Context, req ScoreRequest, investor *models.Investor) (*models.RelevanceTarget, *models.SkippedInvestor) {
	mandate := &investor.Mandate
	if err := mandate.Validate(); err != nil {
		e.logger.WithError(utils.NewScoringInputError(investor.ID, err)).Warn("Skipping investor with invalid mandate")
		return nil, &models.SkippedInvestor{InvestorID: investor.ID, Reason: models.SkipInvalidMandate}
	}

	signal := req.Signal
	var matched []string
	raw := decimal.Zero
	capped := false

	if mandate.Open || containsFold(mandate.PreferredGeoIDs, signal.GeoID) {
		matched = append(matched, models.DimensionGeo)
		raw = raw.Add(e.weights.geo)
	}
	if mandate.Open || containsFold(mandate.PreferredSegments, signal.Segment) {
		matched = append(matched, models.DimensionSegment)
		raw = raw.Add(e.weights.segment)
	}
	// The budget dimension is a hard value match, so it applies under open
	// mandates too; it is the only way a fully open mandate distinguishes
	// one price signal from another.
	if e.budgetMatches(mandate, signal) {
		matched = append(matched, models.DimensionBudget)
		raw = raw.Add(e.weights.budget)
	}
	if e.yieldMatches(mandate, signal) {
		matched = append(matched, models.DimensionYield)
		raw = raw.Add(e.weights.yield)
	}
	if e.hasExposure(ctx, req, investor.ID, signal.GeoID) {
		matched = append(matched, models.DimensionExposure)
		raw = raw.Add(e.weights.exposure)
	}

	if raw.GreaterThan(decimal.NewFromInt(1)) {
		raw = decimal.NewFromInt(1)
	}

	score := raw.Mul(signal.ConfidenceScore)

	if e.risky[signal.SignalType] && mandate.RiskTolerance == models.RiskLow && score.GreaterThan(e.ceiling) {
		score = e.ceiling
		capped = true
	}

	if score.LessThan(e.threshold) {
		reason := models.SkipBelowRelevanceThreshold
		if len(matched) == 0 && !mandate.Open {
			reason = models.SkipNoMandateOverlap
		}
		return nil, &models.SkippedInvestor{InvestorID: investor.ID, Reason: reason}
	}

	payload := map[string]any{
		"signal_key":         signal.SignalKey,
		"metric":             signal.Metric,
		"matched_dimensions": matched,
	}
	if mandate.Open {
		payload["open_mandate"] = true
	}
	if capped {
		payload["risk_capped"] = true
	}

	return &models.RelevanceTarget{
		OrgID:             req.OrgID,
		SignalID:          signal.ID,
		InvestorID:        investor.ID,
		RelevanceScore:    score,
		MatchedDimensions: matched,
		ReasonPayload:     payload,
	}, nil
}

// budgetMatches reports whether a price-denominated signal value falls
// inside the mandate's budget band. A mandate with no bounds states no
// budget preference and never matches.
func (e *RelevanceEngine) budgetMatches(mandate *models.InvestorMandate, signal *models.MarketSignal) bool {
	if !models.IsPriceMetric(signal.Metric) {
		return false
	}
	if mandate.BudgetMin == nil && mandate.BudgetMax == nil {
		return false
	}
	if mandate.BudgetMin != nil && signal.CurrentValue.LessThan(*mandate.BudgetMin) {
		return false
	}
	if mandate.BudgetMax != nil && signal.CurrentValue.GreaterThan(*mandate.BudgetMax) {
		return false
	}
	return true
}

func (e *RelevanceEngine) yieldMatches(mandate *models.InvestorMandate, signal *models.MarketSignal) bool {
	if !models.IsYieldMetric(signal.Metric) || mandate.YieldTarget == nil {
		return false
	}
	return signal.CurrentValue.GreaterThanOrEqual(*mandate.YieldTarget)
}

// hasExposure consults the injected lookup. A failed lookup is logged and
// treated as no exposure rather than failing the investor.
func (e *RelevanceEngine) hasExposure(ctx context.Context, req ScoreRequest, investorID, geoID string) bool {
	if req.GetExposure == nil {
		return false
	}
	fact, err := req.GetExposure(ctx, req.OrgID, investorID, geoID)
	if err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"investor_id": investorID,
			"geo_id":      geoID,
		}).Warn("Exposure lookup failed")
		return false
	}
	return fact != nil && fact.HasExposure
}

func containsFold(haystack []string, needle string) bool {
	for _, v := range haystack {
		if strings.EqualFold(v, needle) {
			return true
		}
	}
	return false
}
