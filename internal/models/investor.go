package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RiskTolerance is an investor's appetite for elevated-risk signals
type RiskTolerance string

const (
	RiskLow    RiskTolerance = "low"
	RiskMedium RiskTolerance = "medium"
	RiskHigh   RiskTolerance = "high"
)

// InvestorMandate captures what an investor has told us they want to buy.
// An open mandate has no geo/segment preference and qualifies for signals
// through the remaining dimensions, budget in particular.
type InvestorMandate struct {
	PreferredGeoIDs   []string         `json:"preferred_geo_ids"`
	PreferredSegments []string         `json:"preferred_segments"`
	BudgetMin         *decimal.Decimal `json:"budget_min,omitempty"`
	BudgetMax         *decimal.Decimal `json:"budget_max,omitempty"`
	YieldTarget       *decimal.Decimal `json:"yield_target,omitempty"`
	RiskTolerance     RiskTolerance    `json:"risk_tolerance"`
	Open              bool             `json:"open"`
}

// Validate rejects mandate shapes the scoring engine cannot interpret.
func (m *InvestorMandate) Validate() error {
	switch m.RiskTolerance {
	case RiskLow, RiskMedium, RiskHigh, "":
	default:
		return fmt.Errorf("unknown risk tolerance %q", m.RiskTolerance)
	}
	if m.BudgetMin != nil && m.BudgetMax != nil && m.BudgetMin.GreaterThan(*m.BudgetMax) {
		return fmt.Errorf("budget_min %s exceeds budget_max %s", m.BudgetMin, m.BudgetMax)
	}
	if m.BudgetMin != nil && m.BudgetMin.IsNegative() {
		return fmt.Errorf("budget_min %s is negative", m.BudgetMin)
	}
	if m.YieldTarget != nil && m.YieldTarget.IsNegative() {
		return fmt.Errorf("yield_target %s is negative", m.YieldTarget)
	}
	return nil
}

// Investor is a portfolio owner whose mandate signals are scored against
type Investor struct {
	ID             string          `json:"id" db:"id"`
	OrgID          string          `json:"org_id" db:"org_id"`
	Name           string          `json:"name" db:"name"`
	Mandate        InvestorMandate `json:"mandate" db:"mandate"`
	TelegramChatID *int64          `json:"telegram_chat_id,omitempty" db:"telegram_chat_id"`
	AlertsEnabled  bool            `json:"alerts_enabled" db:"alerts_enabled"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// ExposureFact is the holdings side-input consulted during relevance
// scoring. It is produced by the portfolio collaborator and never mutated
// here.
type ExposureFact struct {
	InvestorID  string `json:"investor_id"`
	GeoID       string `json:"geo_id"`
	HasExposure bool   `json:"has_exposure"`
	Details     string `json:"details,omitempty"`
}
