package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/config"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/models"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/sources"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/telemetry"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/utils"
)

// RowWriter persists canonical rows in idempotent batches. Satisfied by
// database.MarketRowRepository.
type RowWriter interface {
	UpsertBatch(ctx context.Context, rows []*models.CanonicalMarketRow) (int, error)
}

// IngestionService drives source adapters through fetch, batching, and
// upsert for one organization at a time. Adapters write to disjoint
// keyspaces, so they run concurrently within a run; batches within one
// adapter stay sequential.
type IngestionService struct {
	cfg      *config.Config
	adapters []sources.Adapter
	byName   map[string]sources.Adapter
	writer   RowWriter
	monitor  *ResourceMonitor
	logger   *logrus.Logger
	now      func() time.Time
}

// NewIngestionService registers the adapters in the order they should be
// reported. A nil monitor disables resource snapshots.
func NewIngestionService(cfg *config.Config, adapters []sources.Adapter, writer RowWriter, monitor *ResourceMonitor, logger *logrus.Logger) *IngestionService {
	byName := make(map[string]sources.Adapter, len(adapters))
	for _, a := range adapters {
		byName[a.Source()] = a
	}
	return &IngestionService{
		cfg:      cfg,
		adapters: adapters,
		byName:   byName,
		writer:   writer,
		monitor:  monitor,
		logger:   logger,
		now:      time.Now,
	}
}

// RunAll executes one ingestion run over the requested sources (all
// registered sources when none are named). Per-source failures accumulate
// in the result; only an unknown source name or missing org aborts the run.
func (s *IngestionService) RunAll(ctx context.Context, params models.IngestionParams) (*models.IngestionResult, error) {
	if params.OrgID == "" {
		return nil, fmt.Errorf("ingestion run: org id is required")
	}
	selected, err := s.selectAdapters(params.Sources)
	if err != nil {
		return nil, err
	}

	window := s.resolveWindow(params.DateRange)
	startedAt := s.now()

	s.logger.WithFields(logrus.Fields{
		"org_id":  params.OrgID,
		"sources": len(selected),
		"from":    window.From.Format("2006-01-02"),
		"to":      window.To.Format("2006-01-02"),
		"mock":    params.UseMockData,
	}).Info("Starting ingestion run")

	results := make([]*models.SourceRunResult, len(selected))
	var wg sync.WaitGroup
	for i, adapter := range selected {
		wg.Add(1)
		go func(slot int, a sources.Adapter) {
			defer wg.Done()
			results[slot] = s.runAdapter(ctx, a, params, window)
		}(i, adapter)
	}
	wg.Wait()

	run := &models.IngestionResult{
		OrgID:     params.OrgID,
		StartedAt: startedAt,
	}
	for _, r := range results {
		run.Fetched += r.Fetched
		run.Ingested += r.Ingested
		run.Skipped += r.Skipped
		run.Errors = append(run.Errors, r.Errors...)
		run.Sources = append(run.Sources, *r)
	}
	run.Success = len(run.Errors) == 0
	run.DurationMs = s.now().Sub(startedAt).Milliseconds()

	s.logger.WithFields(logrus.Fields{
		"org_id":      run.OrgID,
		"success":     run.Success,
		"fetched":     run.Fetched,
		"ingested":    run.Ingested,
		"skipped":     run.Skipped,
		"errors":      len(run.Errors),
		"duration_ms": run.DurationMs,
	}).Info("Ingestion run finished")

	if s.monitor != nil {
		s.monitor.LogSnapshot(ctx, "ingestion")
	}

	return run, nil
}

// RunSource executes one ingestion run for a single named source.
func (s *IngestionService) RunSource(ctx context.Context, source string, params models.IngestionParams) (*models.SourceRunResult, error) {
	if params.OrgID == "" {
		return nil, fmt.Errorf("ingestion run: org id is required")
	}
	adapter, ok := s.byName[strings.ToLower(source)]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", source)
	}
	return s.runAdapter(ctx, adapter, params, s.resolveWindow(params.DateRange)), nil
}

// Sources lists the registered source names in reporting order.
func (s *IngestionService) Sources() []string {
	names := make([]string, len(s.adapters))
	for i, a := range s.adapters {
		names[i] = a.Source()
	}
	return names
}

// runAdapter fetches, batches, and upserts one source. It never returns an
// error: fetch and batch failures land in the result's Errors with the
// affected rows counted as skipped.
func (s *IngestionService) runAdapter(ctx context.Context, adapter sources.Adapter, params models.IngestionParams, window models.DateRange) *models.SourceRunResult {
	start := s.now()
	source := adapter.Source()

	ctx, span := telemetry.StartIngestionSpan(ctx, params.OrgID, source)

	result := &models.SourceRunResult{
		Source:     source,
		SourceType: string(adapter.SourceType()),
	}

	fetched, fetchErr := adapter.FetchAll(ctx, sources.FetchRequest{
		OrgID:     params.OrgID,
		DateRange: window,
		UseMock:   params.UseMockData,
		OnProgress: func(src string, page, count int) {
			s.logger.WithFields(logrus.Fields{
				"source":  src,
				"page":    page,
				"fetched": count,
			}).Debug("Fetched page")
		},
	})
	if fetchErr != nil {
		result.Errors = append(result.Errors, fetchErr.Error())
		s.logger.WithError(fetchErr).WithField("source", source).Error("Fetch stopped before exhausting upstream pages")
	}

	// Rows fetched before a failure are still worth persisting.
	if fetched != nil {
		result.Fetched = fetched.Fetched
		result.Skipped = fetched.Dropped

		batchSize := s.batchSize()
		rows := fetched.Rows
		for i := 0; i < len(rows); i += batchSize {
			end := i + batchSize
			if end > len(rows) {
				end = len(rows)
			}
			batch := rows[i:end]

			written, err := s.writer.UpsertBatch(ctx, batch)
			if err != nil {
				batchErr := utils.NewBatchError(source, i/batchSize, len(batch), err)
				result.Skipped += len(batch)
				result.Errors = append(result.Errors, batchErr.Error())
				s.logger.WithError(batchErr).WithField("source", source).Error("Skipping failed batch")
				continue
			}
			result.Ingested += written
		}
	}

	result.DurationMs = s.now().Sub(start).Milliseconds()

	telemetry.RecordIngestionStats(span, result.Fetched, result.Ingested, result.Skipped)
	var spanErr error
	if len(result.Errors) > 0 {
		spanErr = fmt.Errorf("%s finished with %d errors", source, len(result.Errors))
	}
	telemetry.EndSpanWithError(span, spanErr)

	s.logger.WithFields(logrus.Fields{
		"source":      source,
		"fetched":     result.Fetched,
		"ingested":    result.Ingested,
		"skipped":     result.Skipped,
		"errors":      len(result.Errors),
		"duration_ms": result.DurationMs,
	}).Info("Source ingestion finished")

	return result
}

func (s *IngestionService) selectAdapters(names []string) ([]sources.Adapter, error) {
	if len(names) == 0 {
		return s.adapters, nil
	}
	selected := make([]sources.Adapter, 0, len(names))
	for _, name := range names {
		adapter, ok := s.byName[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("unknown source %q", name)
		}
		selected = append(selected, adapter)
	}
	return selected, nil
}

// resolveWindow fills a partial date range: a zero To means now, a zero
// From means the configured lookback before To.
func (s *IngestionService) resolveWindow(r models.DateRange) models.DateRange {
	to := r.To
	if to.IsZero() {
		to = s.now()
	}
	from := r.From
	if from.IsZero() {
		lookback := s.cfg.Ingestion.DefaultLookbackDays
		if lookback <= 0 {
			lookback = 30
		}
		from = to.AddDate(0, 0, -lookback)
	}
	return models.DateRange{From: from, To: to}
}

func (s *IngestionService) batchSize() int {
	if s.cfg.Ingestion.BatchSize > 0 {
		return s.cfg.Ingestion.BatchSize
	}
	return 100
}
