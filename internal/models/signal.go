package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SignalType classifies a detected market movement
type SignalType string

const (
	SignalPriceChange       SignalType = "price_change"
	SignalRentChange        SignalType = "rent_change"
	SignalYieldShift        SignalType = "yield_shift"
	SignalTransactionVolume SignalType = "transaction_volume"
	SignalSupplySpike       SignalType = "supply_spike"
	SignalPriceCutCluster   SignalType = "price_cut_cluster"
)

// Metrics a signal can be denominated in
const (
	MetricMedianSalePrice  = "median_sale_price"
	MetricMedianAskPrice   = "median_ask_price"
	MetricMedianAnnualRent = "median_annual_rent"
	MetricAvgPriceSqft     = "avg_price_sqft"
	MetricGrossYield       = "gross_yield"
	MetricTransactionCount = "transaction_count"
	MetricListingCount     = "listing_count"
	MetricPriceCutShare    = "price_cut_share"
)

// IsPriceMetric reports whether the metric's current value is an absolute
// price comparable against an investor budget range.
func IsPriceMetric(metric string) bool {
	switch metric {
	case MetricMedianSalePrice, MetricMedianAskPrice, MetricMedianAnnualRent:
		return true
	}
	return false
}

// IsYieldMetric reports whether the metric's current value is a yield
// percentage comparable against an investor yield target.
func IsYieldMetric(metric string) bool {
	return metric == MetricGrossYield
}

// MarketSignal is a detected market movement for a (geo, segment, metric)
// cell over a timeframe
type MarketSignal struct {
	ID              string           `json:"id" db:"id"`
	OrgID           string           `json:"org_id" db:"org_id"`
	SourceType      SourceType       `json:"source_type" db:"source_type"`
	Source          string           `json:"source" db:"source"`
	SignalType      SignalType       `json:"signal_type" db:"signal_type"`
	GeoType         GeoType          `json:"geo_type" db:"geo_type"`
	GeoID           string           `json:"geo_id" db:"geo_id"`
	GeoName         string           `json:"geo_name" db:"geo_name"`
	Segment         string           `json:"segment" db:"segment"`
	Metric          string           `json:"metric" db:"metric"`
	Timeframe       string           `json:"timeframe" db:"timeframe"`
	CurrentValue    decimal.Decimal  `json:"current_value" db:"current_value"`
	PrevValue       *decimal.Decimal `json:"prev_value,omitempty" db:"prev_value"`
	DeltaPct        *decimal.Decimal `json:"delta_pct,omitempty" db:"delta_pct"`
	ConfidenceScore decimal.Decimal  `json:"confidence_score" db:"confidence_score"`
	Evidence        map[string]any   `json:"evidence,omitempty" db:"evidence"`
	SignalKey       string           `json:"signal_key" db:"signal_key"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
}

// BuildSignalKey composes the deterministic dedupe key for a signal from
// its defining dimensions. Re-running detection over the same window
// produces the same key.
func BuildSignalKey(orgID string, signalType SignalType, geoID, segment, metric, timeframe string, windowEnd time.Time) string {
	parts := []string{
		orgID,
		string(signalType),
		geoID,
		segment,
		metric,
		timeframe,
		windowEnd.Format("2006-01-02"),
	}
	return strings.Join(parts, "|")
}

// RiskySignalTypes lists signal types treated as elevated-risk plays when
// scoring against conservative mandates. Kept as an explicit list so the
// classification is reviewable.
func RiskySignalTypes() []SignalType {
	return []SignalType{SignalSupplySpike, SignalPriceCutCluster}
}

// FormatDelta renders a delta percentage for logs and alert messages.
func (s *MarketSignal) FormatDelta() string {
	if s.DeltaPct == nil {
		return "n/a"
	}
	return fmt.Sprintf("%s%%", s.DeltaPct.StringFixed(1))
}
