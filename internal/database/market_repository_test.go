package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/models"
)

// MockPoolAdapter wraps pgxmock.PgxPoolIface to implement DatabasePool interface
type MockPoolAdapter struct {
	mock pgxmock.PgxPoolIface
}

func NewMockPoolAdapter(mock pgxmock.PgxPoolIface) DatabasePool {
	return &MockPoolAdapter{mock: mock}
}

func (m *MockPoolAdapter) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return m.mock.QueryRow(ctx, sql, args...)
}

func (m *MockPoolAdapter) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	result, err := m.mock.Exec(ctx, sql, args...)
	if err == nil {
		rows := result.RowsAffected()
		return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", rows)), nil
	}
	return pgconn.CommandTag{}, err
}

func (m *MockPoolAdapter) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return m.mock.Query(ctx, sql, args...)
}

func (m *MockPoolAdapter) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.mock.Begin(ctx)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// upsertArgs mirrors the bind order of the market row upsert. The id is
// generated inside the repository, so it is matched loosely.
func upsertArgs(row *models.CanonicalMarketRow) []interface{} {
	return []interface{}{
		pgxmock.AnyArg(), row.OrgID, row.SourceType, row.Source, row.ExternalID, row.DedupeKey(),
		row.GeoType, row.GeoID, row.GeoName, row.GeoConfidence,
		row.Segment, row.SegmentCategory, row.SegmentConfidence,
		row.PropertyType, row.Bedrooms, row.AreaSqft, row.Price, row.PricePerSqft,
		row.AnnualRent, row.MonthlyRent, row.ListedAt, row.AsOfDate, row.DaysOnMarket,
		row.HadPriceCut, row.PreviousPrice, row.OccurredAt,
	}
}

func sampleListingRow(orgID, externalID string, asOf time.Time) *models.CanonicalMarketRow {
	bedrooms := 1
	return &models.CanonicalMarketRow{
		OrgID:             orgID,
		SourceType:        models.SourceTypeListingSnapshot,
		Source:            models.PortalBayut,
		ExternalID:        externalID,
		GeoType:           models.GeoTypeCommunity,
		GeoID:             "jvc",
		GeoName:           "Jumeirah Village Circle",
		GeoConfidence:     models.ConfidenceExact,
		Segment:           "1BR",
		SegmentCategory:   models.CategoryResidential,
		SegmentConfidence: models.ConfidenceExact,
		PropertyType:      "Apartment",
		Bedrooms:          &bedrooms,
		Price:             decPtr("950000"),
		AsOfDate:          &asOf,
		OccurredAt:        asOf,
	}
}

func TestMarketRowRepository_UpsertBatch_Success(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err, "Failed to create mock pool")
	defer mockPool.Close()

	repo := NewMarketRowRepository(NewMockPoolAdapter(mockPool))
	ctx := context.Background()
	asOf := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	rows := []*models.CanonicalMarketRow{
		sampleListingRow("org-1", "L-100", asOf),
		sampleListingRow("org-1", "L-101", asOf),
	}

	mockPool.ExpectBegin()
	mockPool.ExpectExec("INSERT INTO market_rows").
		WithArgs(upsertArgs(rows[0])...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectExec("INSERT INTO market_rows").
		WithArgs(upsertArgs(rows[1])...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectCommit()

	written, err := repo.UpsertBatch(ctx, rows)
	assert.NoError(t, err)
	assert.Equal(t, 2, written)

	// ids are assigned before the write so re-runs can be traced
	assert.NotEmpty(t, rows[0].ID)
	assert.NotEmpty(t, rows[1].ID)

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestMarketRowRepository_UpsertBatch_Empty(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err, "Failed to create mock pool")
	defer mockPool.Close()

	repo := NewMarketRowRepository(NewMockPoolAdapter(mockPool))

	written, err := repo.UpsertBatch(context.Background(), nil)
	assert.NoError(t, err)
	assert.Equal(t, 0, written)

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestMarketRowRepository_UpsertBatch_RollsBackOnError(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err, "Failed to create mock pool")
	defer mockPool.Close()

	repo := NewMarketRowRepository(NewMockPoolAdapter(mockPool))
	ctx := context.Background()
	asOf := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	rows := []*models.CanonicalMarketRow{
		sampleListingRow("org-1", "L-100", asOf),
		sampleListingRow("org-1", "L-101", asOf),
	}

	mockPool.ExpectBegin()
	mockPool.ExpectExec("INSERT INTO market_rows").
		WithArgs(upsertArgs(rows[0])...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectExec("INSERT INTO market_rows").
		WithArgs(upsertArgs(rows[1])...).
		WillReturnError(fmt.Errorf("deadlock detected"))
	mockPool.ExpectRollback()

	written, err := repo.UpsertBatch(ctx, rows)
	assert.Error(t, err)
	assert.Equal(t, 0, written)
	assert.Contains(t, err.Error(), "bayut:L-101:2026-04-01")

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestMarketRowRepository_UpsertBatch_BeginError(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err, "Failed to create mock pool")
	defer mockPool.Close()

	repo := NewMarketRowRepository(NewMockPoolAdapter(mockPool))
	asOf := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	mockPool.ExpectBegin().WillReturnError(fmt.Errorf("connection refused"))

	_, err = repo.UpsertBatch(context.Background(), []*models.CanonicalMarketRow{
		sampleListingRow("org-1", "L-100", asOf),
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to begin batch transaction")

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestMarketRowRepository_PreviousListingPrice_Found(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err, "Failed to create mock pool")
	defer mockPool.Close()

	repo := NewMarketRowRepository(NewMockPoolAdapter(mockPool))
	ctx := context.Background()
	day := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)

	mockPool.ExpectQuery("SELECT price").
		WithArgs("org-1", models.PortalBayut, "L-100", models.SourceTypeListingSnapshot, day).
		WillReturnRows(pgxmock.NewRows([]string{"price"}).AddRow(decPtr("2900000")))

	price, err := repo.PreviousListingPrice(ctx, "org-1", models.PortalBayut, "L-100", day)
	assert.NoError(t, err)
	require.NotNil(t, price)
	assert.True(t, price.Equal(decimal.RequireFromString("2900000")))

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestMarketRowRepository_PreviousListingPrice_NeverSeen(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err, "Failed to create mock pool")
	defer mockPool.Close()

	repo := NewMarketRowRepository(NewMockPoolAdapter(mockPool))
	day := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)

	mockPool.ExpectQuery("SELECT price").
		WithArgs("org-1", models.PortalBayut, "L-404", models.SourceTypeListingSnapshot, day).
		WillReturnError(pgx.ErrNoRows)

	price, err := repo.PreviousListingPrice(context.Background(), "org-1", models.PortalBayut, "L-404", day)
	assert.NoError(t, err)
	assert.Nil(t, price)

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestMarketRowRepository_ListWindowRows(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err, "Failed to create mock pool")
	defer mockPool.Close()

	repo := NewMarketRowRepository(NewMockPoolAdapter(mockPool))
	ctx := context.Background()
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	occurred := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	bedrooms := 2

	cols := []string{
		"id", "org_id", "source_type", "source", "external_id",
		"geo_type", "geo_id", "geo_name", "geo_confidence",
		"segment", "segment_category", "segment_confidence",
		"property_type", "bedrooms", "area_sqft", "price", "price_per_sqft",
		"annual_rent", "monthly_rent", "listed_at", "as_of_date", "days_on_market",
		"had_price_cut", "previous_price", "occurred_at", "created_at", "updated_at",
	}
	rows := pgxmock.NewRows(cols).AddRow(
		"row-1", "org-1", models.SourceTypeTransaction, models.SourceDLD, "TXN-1",
		models.GeoTypeCommunity, "dubai_marina", "Dubai Marina", models.ConfidenceExact,
		"2BR", models.CategoryResidential, models.ConfidenceExact,
		"Apartment", &bedrooms, decPtr("1200.50"), decPtr("2400000"), decPtr("1999.17"),
		nil, nil, nil, nil, nil,
		false, nil, occurred, occurred, occurred,
	)

	mockPool.ExpectQuery("FROM market_rows").
		WithArgs("org-1", models.SourceTypeTransaction, from, to).
		WillReturnRows(rows)

	result, err := repo.ListWindowRows(ctx, "org-1", models.SourceTypeTransaction, from, to)
	assert.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "TXN-1", result[0].ExternalID)
	assert.Equal(t, "dubai_marina", result[0].GeoID)
	require.NotNil(t, result[0].Price)
	assert.True(t, result[0].Price.Equal(decimal.RequireFromString("2400000")))
	require.NotNil(t, result[0].Bedrooms)
	assert.Equal(t, 2, *result[0].Bedrooms)
	assert.Nil(t, result[0].AnnualRent)

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestMarketRowRepository_CountByOrg(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err, "Failed to create mock pool")
	defer mockPool.Close()

	repo := NewMarketRowRepository(NewMockPoolAdapter(mockPool))
	ctx := context.Background()

	mockPool.ExpectQuery("SELECT COUNT").
		WithArgs("org-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(120)))

	count, err := repo.CountByOrg(ctx, "org-1", "")
	assert.NoError(t, err)
	assert.Equal(t, int64(120), count)

	mockPool.ExpectQuery("SELECT COUNT").
		WithArgs("org-1", models.SourceTypeListingSnapshot).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(45)))

	count, err = repo.CountByOrg(ctx, "org-1", models.SourceTypeListingSnapshot)
	assert.NoError(t, err)
	assert.Equal(t, int64(45), count)

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestMarketRowRepository_DeleteListingSnapshotsBefore(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err, "Failed to create mock pool")
	defer mockPool.Close()

	repo := NewMarketRowRepository(NewMockPoolAdapter(mockPool))
	cutoff := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)

	mockPool.ExpectExec("DELETE FROM market_rows").
		WithArgs(models.SourceTypeListingSnapshot, cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 42))

	deleted, err := repo.DeleteListingSnapshotsBefore(context.Background(), cutoff)
	assert.NoError(t, err)
	assert.Equal(t, int64(42), deleted)

	assert.NoError(t, mockPool.ExpectationsWereMet())
}
