package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/models"
)

// Config carries the pagination bounds shared by every adapter. MaxPages is
// a hard safety cap against an upstream that keeps reporting has_more.
type Config struct {
	PageSize int
	MaxPages int
}

// PageRequest asks an adapter for one page of records.
type PageRequest struct {
	OrgID    string
	From     time.Time
	To       time.Time
	Page     int
	PageSize int
	UseMock  bool
}

// Page is one fetched page after transformation. Dropped counts raw records
// that failed normalization and were left out of Rows.
type Page struct {
	Rows    []*models.CanonicalMarketRow
	Total   int
	HasMore bool
	Fetched int
	Dropped int
}

// FetchRequest drives a full pagination walk over one source.
type FetchRequest struct {
	OrgID      string
	DateRange  models.DateRange
	UseMock    bool
	OnProgress ProgressFunc
}

// FetchResult aggregates every page of a walk.
type FetchResult struct {
	Rows    []*models.CanonicalMarketRow
	Fetched int
	Dropped int
}

// ProgressFunc receives fire-and-forget progress updates while an adapter
// paginates. It must not block.
type ProgressFunc func(source string, page, fetched int)

// Adapter fetches raw records from one upstream provider and emits
// canonical market rows. Implementations share the fetch-transform shape
// and differ only in payload fields and derived values.
type Adapter interface {
	Source() string
	SourceType() models.SourceType
	FetchPage(ctx context.Context, req PageRequest) (*Page, error)
	FetchAll(ctx context.Context, req FetchRequest) (*FetchResult, error)
}

type pageFetcher interface {
	Source() string
	FetchPage(ctx context.Context, req PageRequest) (*Page, error)
}

// fetchAllPages walks a source page by page until the upstream reports no
// more data or the page cap is hit. Pages are fetched strictly sequentially
// so the shared rate limiter stays meaningful.
func fetchAllPages(ctx context.Context, f pageFetcher, cfg Config, req FetchRequest) (*FetchResult, error) {
	result := &FetchResult{}

	for page := 1; ; page++ {
		if page > cfg.MaxPages {
			return result, fmt.Errorf("%s: page cap %d reached with upstream still reporting more data", f.Source(), cfg.MaxPages)
		}

		p, err := f.FetchPage(ctx, PageRequest{
			OrgID:    req.OrgID,
			From:     req.DateRange.From,
			To:       req.DateRange.To,
			Page:     page,
			PageSize: cfg.PageSize,
			UseMock:  req.UseMock,
		})
		if err != nil {
			return result, err
		}

		result.Rows = append(result.Rows, p.Rows...)
		result.Fetched += p.Fetched
		result.Dropped += p.Dropped

		if req.OnProgress != nil {
			req.OnProgress(f.Source(), page, result.Fetched)
		}

		if !p.HasMore || p.Fetched == 0 {
			return result, nil
		}
	}
}

// parseUpstreamDate accepts the date layouts the providers are known to
// emit.
func parseUpstreamDate(value string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}
