package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/config"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/models"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/sources"
)

type stubAdapter struct {
	name       string
	sourceType models.SourceType
	result     *sources.FetchResult
	err        error

	called bool
	gotReq sources.FetchRequest
}

func (a *stubAdapter) Source() string { return a.name }

func (a *stubAdapter) SourceType() models.SourceType { return a.sourceType }

func (a *stubAdapter) FetchPage(ctx context.Context, req sources.PageRequest) (*sources.Page, error) {
	return nil, errors.New("not paged in tests")
}

func (a *stubAdapter) FetchAll(ctx context.Context, req sources.FetchRequest) (*sources.FetchResult, error) {
	a.called = true
	a.gotReq = req
	return a.result, a.err
}

// stubWriter records batches; adapters upsert concurrently so it locks.
type stubWriter struct {
	mu      sync.Mutex
	calls   int
	batches [][]*models.CanonicalMarketRow
	failAt  int // 1-based call index that fails, 0 never
}

func (w *stubWriter) UpsertBatch(ctx context.Context, rows []*models.CanonicalMarketRow) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.failAt != 0 && w.calls == w.failAt {
		return 0, errors.New("deadlock detected")
	}
	w.batches = append(w.batches, rows)
	return len(rows), nil
}

func stubRows(source string, n int) []*models.CanonicalMarketRow {
	rows := make([]*models.CanonicalMarketRow, n)
	for i := range rows {
		rows[i] = &models.CanonicalMarketRow{
			OrgID:      "org-1",
			Source:     source,
			ExternalID: fmt.Sprintf("%s-%d", source, i),
		}
	}
	return rows
}

func testIngestionConfig(batchSize int) *config.Config {
	return &config.Config{
		Ingestion: config.IngestionConfig{
			BatchSize:           batchSize,
			DefaultLookbackDays: 30,
		},
	}
}

func aprilWindow() models.DateRange {
	return models.DateRange{
		From: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC),
	}
}

func TestRunAll_AggregatesAcrossSources(t *testing.T) {
	dld := &stubAdapter{
		name:       models.SourceDLD,
		sourceType: models.SourceTypeTransaction,
		result:     &sources.FetchResult{Rows: stubRows(models.SourceDLD, 12), Fetched: 14, Dropped: 2},
	}
	bayut := &stubAdapter{
		name:       models.PortalBayut,
		sourceType: models.SourceTypeListingSnapshot,
		result:     &sources.FetchResult{Rows: stubRows(models.PortalBayut, 5), Fetched: 5},
	}
	writer := &stubWriter{}
	svc := NewIngestionService(testIngestionConfig(10), []sources.Adapter{dld, bayut}, writer, nil, newTestLogger())

	run, err := svc.RunAll(context.Background(), models.IngestionParams{
		OrgID:     "org-1",
		DateRange: aprilWindow(),
	})
	require.NoError(t, err)

	assert.True(t, run.Success)
	assert.Equal(t, "org-1", run.OrgID)
	assert.Equal(t, 19, run.Fetched)
	assert.Equal(t, 17, run.Ingested)
	assert.Equal(t, 2, run.Skipped)
	assert.Empty(t, run.Errors)

	require.Len(t, run.Sources, 2)
	assert.Equal(t, models.SourceDLD, run.Sources[0].Source)
	assert.Equal(t, string(models.SourceTypeTransaction), run.Sources[0].SourceType)
	assert.Equal(t, 12, run.Sources[0].Ingested)
	assert.Equal(t, models.PortalBayut, run.Sources[1].Source)
	assert.Equal(t, 5, run.Sources[1].Ingested)

	// 12 rows at batch size 10 is two batches, plus one for the portal.
	assert.Equal(t, 3, writer.calls)

	assert.Equal(t, "org-1", dld.gotReq.OrgID)
	assert.Equal(t, aprilWindow(), dld.gotReq.DateRange)
}

func TestRunAll_BatchFailureSkipsOnlyThatBatch(t *testing.T) {
	adapter := &stubAdapter{
		name:       models.SourceDLD,
		sourceType: models.SourceTypeTransaction,
		result:     &sources.FetchResult{Rows: stubRows(models.SourceDLD, 25), Fetched: 25},
	}
	writer := &stubWriter{failAt: 2}
	svc := NewIngestionService(testIngestionConfig(10), []sources.Adapter{adapter}, writer, nil, newTestLogger())

	run, err := svc.RunAll(context.Background(), models.IngestionParams{
		OrgID:     "org-1",
		DateRange: aprilWindow(),
	})
	require.NoError(t, err)

	assert.False(t, run.Success)
	assert.Equal(t, 25, run.Fetched)
	assert.Equal(t, 15, run.Ingested)
	assert.Equal(t, 10, run.Skipped)
	require.Len(t, run.Errors, 1)
	assert.Contains(t, run.Errors[0], "batch 1")
	assert.Contains(t, run.Errors[0], "deadlock detected")

	// The third batch must still have been attempted after the second failed.
	assert.Equal(t, 3, writer.calls)
}

func TestRunAll_FetchErrorKeepsPartialRows(t *testing.T) {
	adapter := &stubAdapter{
		name:       models.SourceEjari,
		sourceType: models.SourceTypeRentalContract,
		result:     &sources.FetchResult{Rows: stubRows(models.SourceEjari, 10), Fetched: 10},
		err:        errors.New("ejari: page cap 5 reached with upstream still reporting more data"),
	}
	writer := &stubWriter{}
	svc := NewIngestionService(testIngestionConfig(100), []sources.Adapter{adapter}, writer, nil, newTestLogger())

	run, err := svc.RunAll(context.Background(), models.IngestionParams{
		OrgID:     "org-1",
		DateRange: aprilWindow(),
	})
	require.NoError(t, err)

	assert.False(t, run.Success)
	require.Len(t, run.Errors, 1)
	assert.Contains(t, run.Errors[0], "page cap")
	assert.Equal(t, 10, run.Ingested, "rows fetched before the failure must still be persisted")
}

func TestRunAll_SelectsRequestedSources(t *testing.T) {
	dld := &stubAdapter{name: models.SourceDLD, sourceType: models.SourceTypeTransaction, result: &sources.FetchResult{}}
	bayut := &stubAdapter{name: models.PortalBayut, sourceType: models.SourceTypeListingSnapshot, result: &sources.FetchResult{}}
	svc := NewIngestionService(testIngestionConfig(10), []sources.Adapter{dld, bayut}, &stubWriter{}, nil, newTestLogger())

	run, err := svc.RunAll(context.Background(), models.IngestionParams{
		OrgID:     "org-1",
		DateRange: aprilWindow(),
		Sources:   []string{"Bayut"},
	})
	require.NoError(t, err)

	require.Len(t, run.Sources, 1)
	assert.Equal(t, models.PortalBayut, run.Sources[0].Source)
	assert.True(t, bayut.called)
	assert.False(t, dld.called)
}

func TestRunAll_UnknownSourceRejected(t *testing.T) {
	svc := NewIngestionService(testIngestionConfig(10), []sources.Adapter{
		&stubAdapter{name: models.SourceDLD, sourceType: models.SourceTypeTransaction, result: &sources.FetchResult{}},
	}, &stubWriter{}, nil, newTestLogger())

	_, err := svc.RunAll(context.Background(), models.IngestionParams{
		OrgID:   "org-1",
		Sources: []string{"zillow"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown source "zillow"`)
}

func TestRunAll_RequiresOrgID(t *testing.T) {
	svc := NewIngestionService(testIngestionConfig(10), nil, &stubWriter{}, nil, newTestLogger())

	_, err := svc.RunAll(context.Background(), models.IngestionParams{})
	assert.Error(t, err)
}

func TestRunSource_RunsSingleAdapter(t *testing.T) {
	dld := &stubAdapter{name: models.SourceDLD, sourceType: models.SourceTypeTransaction, result: &sources.FetchResult{}}
	ejari := &stubAdapter{
		name:       models.SourceEjari,
		sourceType: models.SourceTypeRentalContract,
		result:     &sources.FetchResult{Rows: stubRows(models.SourceEjari, 3), Fetched: 3},
	}
	writer := &stubWriter{}
	svc := NewIngestionService(testIngestionConfig(10), []sources.Adapter{dld, ejari}, writer, nil, newTestLogger())

	result, err := svc.RunSource(context.Background(), models.SourceEjari, models.IngestionParams{
		OrgID:     "org-1",
		DateRange: aprilWindow(),
	})
	require.NoError(t, err)

	assert.Equal(t, models.SourceEjari, result.Source)
	assert.Equal(t, 3, result.Ingested)
	assert.True(t, ejari.called)
	assert.False(t, dld.called)

	_, err = svc.RunSource(context.Background(), "zillow", models.IngestionParams{OrgID: "org-1"})
	assert.Error(t, err)
}

func TestRunAll_DefaultWindowUsesLookback(t *testing.T) {
	adapter := &stubAdapter{name: models.SourceDLD, sourceType: models.SourceTypeTransaction, result: &sources.FetchResult{}}
	svc := NewIngestionService(testIngestionConfig(10), []sources.Adapter{adapter}, &stubWriter{}, nil, newTestLogger())

	fixed := time.Date(2026, 5, 15, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	_, err := svc.RunAll(context.Background(), models.IngestionParams{OrgID: "org-1"})
	require.NoError(t, err)

	assert.Equal(t, fixed, adapter.gotReq.DateRange.To)
	assert.Equal(t, fixed.AddDate(0, 0, -30), adapter.gotReq.DateRange.From)
}

func TestRunAll_PartialWindowKeepsExplicitBound(t *testing.T) {
	adapter := &stubAdapter{name: models.SourceDLD, sourceType: models.SourceTypeTransaction, result: &sources.FetchResult{}}
	svc := NewIngestionService(testIngestionConfig(10), []sources.Adapter{adapter}, &stubWriter{}, nil, newTestLogger())

	from := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	fixed := time.Date(2026, 5, 15, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	_, err := svc.RunAll(context.Background(), models.IngestionParams{
		OrgID:     "org-1",
		DateRange: models.DateRange{From: from},
	})
	require.NoError(t, err)

	assert.Equal(t, from, adapter.gotReq.DateRange.From)
	assert.Equal(t, fixed, adapter.gotReq.DateRange.To)
}

func TestSources_ListsRegistrationOrder(t *testing.T) {
	svc := NewIngestionService(testIngestionConfig(10), []sources.Adapter{
		&stubAdapter{name: models.SourceDLD},
		&stubAdapter{name: models.SourceEjari},
		&stubAdapter{name: models.PortalBayut},
	}, &stubWriter{}, nil, newTestLogger())

	assert.Equal(t, []string{models.SourceDLD, models.SourceEjari, models.PortalBayut}, svc.Sources())
}
