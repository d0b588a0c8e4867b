package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reasons an investor is excluded from a signal's relevance targets
const (
	SkipNoMandateOverlap        = "no_mandate_overlap"
	SkipBelowRelevanceThreshold = "below_relevance_threshold"
	SkipInvalidMandate          = "invalid_mandate"
)

// Relevance dimensions in their canonical reporting order
const (
	DimensionGeo      = "geo"
	DimensionSegment  = "segment"
	DimensionBudget   = "budget"
	DimensionYield    = "yield"
	DimensionExposure = "exposure"
)

// RelevanceTarget links a signal to an investor whose mandate it matched,
// unique per (org, signal, investor). Recomputing relevance updates the
// row in place.
type RelevanceTarget struct {
	ID                string          `json:"id" db:"id"`
	OrgID             string          `json:"org_id" db:"org_id"`
	SignalID          string          `json:"signal_id" db:"signal_id"`
	InvestorID        string          `json:"investor_id" db:"investor_id"`
	RelevanceScore    decimal.Decimal `json:"relevance_score" db:"relevance_score"`
	MatchedDimensions []string        `json:"matched_dimensions" db:"matched_dimensions"`
	ReasonPayload     map[string]any  `json:"reason_payload,omitempty" db:"reason_payload"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}

// SkippedInvestor records why an investor produced no relevance target
type SkippedInvestor struct {
	InvestorID string `json:"investor_id"`
	Reason     string `json:"reason"`
}
