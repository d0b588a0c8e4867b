package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/models"
)

// MarketRowRepository handles database operations for canonical market rows.
type MarketRowRepository struct {
	pool DatabasePool
}

// NewMarketRowRepository creates a new market row repository.
func NewMarketRowRepository(pool DatabasePool) *MarketRowRepository {
	return &MarketRowRepository{
		pool: pool,
	}
}

const upsertMarketRowQuery = `
	INSERT INTO market_rows (
		id, org_id, source_type, source, external_id, dedupe_key,
		geo_type, geo_id, geo_name, geo_confidence,
		segment, segment_category, segment_confidence,
		property_type, bedrooms, area_sqft, price, price_per_sqft,
		annual_rent, monthly_rent, listed_at, as_of_date, days_on_market,
		had_price_cut, previous_price, occurred_at
	) VALUES (
		$1, $2, $3, $4, $5, $6,
		$7, $8, $9, $10,
		$11, $12, $13,
		$14, $15, $16, $17, $18,
		$19, $20, $21, $22, $23,
		$24, $25, $26
	)
	ON CONFLICT (org_id, dedupe_key)
	DO UPDATE SET
		geo_type = EXCLUDED.geo_type,
		geo_id = EXCLUDED.geo_id,
		geo_name = EXCLUDED.geo_name,
		geo_confidence = EXCLUDED.geo_confidence,
		segment = EXCLUDED.segment,
		segment_category = EXCLUDED.segment_category,
		segment_confidence = EXCLUDED.segment_confidence,
		property_type = EXCLUDED.property_type,
		bedrooms = EXCLUDED.bedrooms,
		area_sqft = EXCLUDED.area_sqft,
		price = EXCLUDED.price,
		price_per_sqft = EXCLUDED.price_per_sqft,
		annual_rent = EXCLUDED.annual_rent,
		monthly_rent = EXCLUDED.monthly_rent,
		listed_at = EXCLUDED.listed_at,
		as_of_date = EXCLUDED.as_of_date,
		days_on_market = EXCLUDED.days_on_market,
		had_price_cut = EXCLUDED.had_price_cut,
		previous_price = EXCLUDED.previous_price,
		occurred_at = EXCLUDED.occurred_at,
		updated_at = CURRENT_TIMESTAMP
`

// UpsertBatch writes a batch of canonical rows inside a single transaction.
// Re-ingesting the same records updates the existing rows through the
// (org_id, dedupe_key) constraint instead of duplicating them. Returns the
// number of rows written.
func (r *MarketRowRepository) UpsertBatch(ctx context.Context, rows []*models.CanonicalMarketRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin batch transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, row := range rows {
		if row.ID == "" {
			row.ID = uuid.New().String()
		}
		_, err := tx.Exec(ctx, upsertMarketRowQuery,
			row.ID, row.OrgID, row.SourceType, row.Source, row.ExternalID, row.DedupeKey(),
			row.GeoType, row.GeoID, row.GeoName, row.GeoConfidence,
			row.Segment, row.SegmentCategory, row.SegmentConfidence,
			row.PropertyType, row.Bedrooms, row.AreaSqft, row.Price, row.PricePerSqft,
			row.AnnualRent, row.MonthlyRent, row.ListedAt, row.AsOfDate, row.DaysOnMarket,
			row.HadPriceCut, row.PreviousPrice, row.OccurredAt,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert market row %s: %w", row.DedupeKey(), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit batch transaction: %w", err)
	}

	return len(rows), nil
}

// PreviousListingPrice returns the most recent ask price recorded for a
// listing before the given observation day, or nil when the listing has not
// been seen before. Used as the fallback behind the price cache when
// detecting price cuts.
func (r *MarketRowRepository) PreviousListingPrice(ctx context.Context, orgID, source, externalID string, before time.Time) (*decimal.Decimal, error) {
	query := `
		SELECT price
		FROM market_rows
		WHERE org_id = $1 AND source = $2 AND external_id = $3
		AND source_type = $4
		AND as_of_date < $5
		ORDER BY as_of_date DESC
		LIMIT 1
	`

	var price *decimal.Decimal
	err := r.pool.QueryRow(ctx, query, orgID, source, externalID, models.SourceTypeListingSnapshot, before).Scan(&price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up previous listing price: %w", err)
	}

	return price, nil
}

// ListWindowRows returns all rows of one source type for an org whose
// occurrence falls inside [from, to). The signal detector aggregates these
// into per-cell statistics.
func (r *MarketRowRepository) ListWindowRows(ctx context.Context, orgID string, sourceType models.SourceType, from, to time.Time) ([]models.CanonicalMarketRow, error) {
	query := `
		SELECT id, org_id, source_type, source, external_id,
			geo_type, geo_id, geo_name, geo_confidence,
			segment, segment_category, segment_confidence,
			property_type, bedrooms, area_sqft, price, price_per_sqft,
			annual_rent, monthly_rent, listed_at, as_of_date, days_on_market,
			had_price_cut, previous_price, occurred_at, created_at, updated_at
		FROM market_rows
		WHERE org_id = $1 AND source_type = $2
		AND occurred_at >= $3 AND occurred_at < $4
		ORDER BY occurred_at
	`

	rows, err := r.pool.Query(ctx, query, orgID, sourceType, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query window rows: %w", err)
	}
	defer rows.Close()

	var result []models.CanonicalMarketRow
	for rows.Next() {
		var row models.CanonicalMarketRow
		err := rows.Scan(
			&row.ID, &row.OrgID, &row.SourceType, &row.Source, &row.ExternalID,
			&row.GeoType, &row.GeoID, &row.GeoName, &row.GeoConfidence,
			&row.Segment, &row.SegmentCategory, &row.SegmentConfidence,
			&row.PropertyType, &row.Bedrooms, &row.AreaSqft, &row.Price, &row.PricePerSqft,
			&row.AnnualRent, &row.MonthlyRent, &row.ListedAt, &row.AsOfDate, &row.DaysOnMarket,
			&row.HadPriceCut, &row.PreviousPrice, &row.OccurredAt, &row.CreatedAt, &row.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan market row: %w", err)
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating market rows: %w", err)
	}

	return result, nil
}

// CountByOrg returns the number of stored rows for an org, split by source
// type when sourceType is non-empty.
func (r *MarketRowRepository) CountByOrg(ctx context.Context, orgID string, sourceType models.SourceType) (int64, error) {
	var (
		count int64
		err   error
	)
	if sourceType == "" {
		err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM market_rows WHERE org_id = $1`, orgID).Scan(&count)
	} else {
		err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM market_rows WHERE org_id = $1 AND source_type = $2`, orgID, sourceType).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count market rows: %w", err)
	}
	return count, nil
}

// DeleteListingSnapshotsBefore removes listing snapshots observed before the
// cutoff. Transactions and rental contracts are kept indefinitely; only the
// high-churn daily snapshots are subject to retention.
func (r *MarketRowRepository) DeleteListingSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM market_rows
		WHERE source_type = $1 AND as_of_date < $2
	`

	result, err := r.pool.Exec(ctx, query, models.SourceTypeListingSnapshot, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired listing snapshots: %w", err)
	}

	return result.RowsAffected(), nil
}
