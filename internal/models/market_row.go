package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SourceType classifies the shape of an ingested market record
type SourceType string

const (
	SourceTypeTransaction     SourceType = "transaction"
	SourceTypeRentalContract  SourceType = "rental_contract"
	SourceTypeListingSnapshot SourceType = "listing_snapshot"
)

// Known upstream sources
const (
	SourceDLD            = "dld"
	SourceEjari          = "ejari"
	PortalBayut          = "bayut"
	PortalPropertyFinder = "propertyfinder"
	PortalDubizzle       = "dubizzle"
)

// CanonicalMarketRow is a normalized market record persisted by the
// ingestion pipeline. One row per DLD transaction, Ejari contract, or
// daily portal listing snapshot.
type CanonicalMarketRow struct {
	ID         string     `json:"id" db:"id"`
	OrgID      string     `json:"org_id" db:"org_id"`
	SourceType SourceType `json:"source_type" db:"source_type"`
	Source     string     `json:"source" db:"source"`
	ExternalID string     `json:"external_id" db:"external_id"`

	GeoType       GeoType         `json:"geo_type" db:"geo_type"`
	GeoID         string          `json:"geo_id" db:"geo_id"`
	GeoName       string          `json:"geo_name" db:"geo_name"`
	GeoConfidence MatchConfidence `json:"geo_confidence" db:"geo_confidence"`

	Segment           string          `json:"segment" db:"segment"`
	SegmentCategory   SegmentCategory `json:"segment_category" db:"segment_category"`
	SegmentConfidence MatchConfidence `json:"segment_confidence" db:"segment_confidence"`

	PropertyType string `json:"property_type" db:"property_type"`
	Bedrooms     *int   `json:"bedrooms,omitempty" db:"bedrooms"`

	AreaSqft     *decimal.Decimal `json:"area_sqft,omitempty" db:"area_sqft"`
	Price        *decimal.Decimal `json:"price,omitempty" db:"price"`
	PricePerSqft *decimal.Decimal `json:"price_per_sqft,omitempty" db:"price_per_sqft"`
	AnnualRent   *decimal.Decimal `json:"annual_rent,omitempty" db:"annual_rent"`
	MonthlyRent  *decimal.Decimal `json:"monthly_rent,omitempty" db:"monthly_rent"`

	ListedAt      *time.Time       `json:"listed_at,omitempty" db:"listed_at"`
	AsOfDate      *time.Time       `json:"as_of_date,omitempty" db:"as_of_date"`
	DaysOnMarket  *int             `json:"days_on_market,omitempty" db:"days_on_market"`
	HadPriceCut   bool             `json:"had_price_cut" db:"had_price_cut"`
	PreviousPrice *decimal.Decimal `json:"previous_price,omitempty" db:"previous_price"`

	OccurredAt time.Time `json:"occurred_at" db:"occurred_at"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// DedupeKey returns the idempotency key for the row, unique per org.
// Transactions and contracts are keyed by their registry id; listing
// snapshots include the observation date because the same listing is
// re-observed daily.
func (r *CanonicalMarketRow) DedupeKey() string {
	switch r.SourceType {
	case SourceTypeTransaction:
		return fmt.Sprintf("%s:%s", SourceDLD, r.ExternalID)
	case SourceTypeRentalContract:
		return fmt.Sprintf("%s:%s", SourceEjari, r.ExternalID)
	case SourceTypeListingSnapshot:
		day := ""
		if r.AsOfDate != nil {
			day = r.AsOfDate.Format("2006-01-02")
		}
		return fmt.Sprintf("%s:%s:%s", r.Source, r.ExternalID, day)
	default:
		return fmt.Sprintf("%s:%s", r.Source, r.ExternalID)
	}
}
