package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/models"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/normalize"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/utils"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/pkg/feed"
)

// portalListingRecord is the listing shape shared by the portal feeds.
// Portals already quote areas in square feet.
type portalListingRecord struct {
	ListingID     string   `json:"listing_id"`
	Community     string   `json:"community"`
	PropertyType  string   `json:"property_type"`
	Bedrooms      *int     `json:"bedrooms,omitempty"`
	AreaSqft      float64  `json:"area_sqft"`
	Price         float64  `json:"price"`
	OriginalPrice *float64 `json:"original_price,omitempty"`
	ListedAt      string   `json:"listed_at,omitempty"`
	SnapshotDate  string   `json:"snapshot_date"`
}

type portalPageEnvelope struct {
	Success bool                  `json:"success"`
	Data    []portalListingRecord `json:"data"`
	Total   int                   `json:"total"`
	HasMore bool                  `json:"has_more"`
	Error   string                `json:"error,omitempty"`
}

// PriceCache is the fast path for yesterday's ask price, keyed by
// observation day. Satisfied by cache.ListingPriceCache.
type PriceCache interface {
	Get(ctx context.Context, orgID, source, externalID string, day time.Time) (*decimal.Decimal, bool)
	Set(ctx context.Context, orgID, source, externalID string, day time.Time, price decimal.Decimal)
}

// PriceHistory is the store-side fallback when the cache has no entry for
// the previous day. Satisfied by database.MarketRowRepository.
type PriceHistory interface {
	PreviousListingPrice(ctx context.Context, orgID, source, externalID string, before time.Time) (*decimal.Decimal, error)
}

// PortalAdapter ingests daily listing snapshots from one brokerage portal.
// The same implementation serves every portal; instances differ by name and
// endpoint.
type PortalAdapter struct {
	portal  string
	client  *feed.Client
	cfg     Config
	cache   PriceCache
	history PriceHistory
	logger  *logrus.Logger
}

// NewPortalAdapter creates a listing snapshot adapter for one portal. Cache
// and history may be nil, which disables previous-day price lookups (an
// explicit original_price field still flags cuts).
func NewPortalAdapter(portal string, client *feed.Client, cfg Config, priceCache PriceCache, history PriceHistory, logger *logrus.Logger) *PortalAdapter {
	return &PortalAdapter{
		portal:  portal,
		client:  client,
		cfg:     cfg,
		cache:   priceCache,
		history: history,
		logger:  logger,
	}
}

func (a *PortalAdapter) Source() string {
	return a.portal
}

func (a *PortalAdapter) SourceType() models.SourceType {
	return models.SourceTypeListingSnapshot
}

// FetchPage fetches and transforms one page of listing snapshots. Each
// transformed listing's price is recorded in the cache under its snapshot
// day so the next day's run can detect cuts without hitting the store.
func (a *PortalAdapter) FetchPage(ctx context.Context, req PageRequest) (*Page, error) {
	var env portalPageEnvelope
	if req.UseMock {
		env = mockPortalPage(a.portal, req)
	} else {
		query := url.Values{}
		query.Set("date_from", req.From.Format("2006-01-02"))
		query.Set("date_to", req.To.Format("2006-01-02"))
		query.Set("page", strconv.Itoa(req.Page))
		query.Set("page_size", strconv.Itoa(req.PageSize))

		if err := a.client.GetJSON(ctx, "/api/v1/listings", query, &env); err != nil {
			return nil, err
		}
		if !env.Success {
			return nil, feed.NewFatalError(a.Source(), fmt.Sprintf("upstream rejected request: %s", env.Error), nil)
		}
	}

	page := &Page{
		Total:   env.Total,
		HasMore: env.HasMore,
		Fetched: len(env.Data),
	}
	for _, rec := range env.Data {
		row, err := a.transform(ctx, req.OrgID, rec)
		if err != nil {
			page.Dropped++
			a.logger.WithError(err).WithField("source", a.Source()).Warn("Dropping record that failed transform")
			continue
		}
		page.Rows = append(page.Rows, row)

		if a.cache != nil && row.Price != nil && row.AsOfDate != nil {
			a.cache.Set(ctx, req.OrgID, a.portal, row.ExternalID, *row.AsOfDate, *row.Price)
		}
	}

	return page, nil
}

// FetchAll walks every listing page in the date range.
func (a *PortalAdapter) FetchAll(ctx context.Context, req FetchRequest) (*FetchResult, error) {
	return fetchAllPages(ctx, a, a.cfg, req)
}

func (a *PortalAdapter) transform(ctx context.Context, orgID string, rec portalListingRecord) (*models.CanonicalMarketRow, error) {
	if rec.ListingID == "" {
		return nil, utils.NewTransformError(a.Source(), "", fmt.Errorf("missing listing_id"))
	}
	asOf, err := parseUpstreamDate(rec.SnapshotDate)
	if err != nil {
		return nil, utils.NewTransformError(a.Source(), rec.ListingID, err)
	}
	if rec.Price <= 0 {
		return nil, utils.NewTransformError(a.Source(), rec.ListingID, fmt.Errorf("non-positive ask price %v", rec.Price))
	}

	geo := normalize.NormalizeGeo(rec.Community)
	segment := normalize.NormalizeSegment(rec.PropertyType, rec.Bedrooms)

	price := decimal.NewFromFloat(rec.Price)
	row := &models.CanonicalMarketRow{
		OrgID:             orgID,
		SourceType:        models.SourceTypeListingSnapshot,
		Source:            a.portal,
		ExternalID:        rec.ListingID,
		GeoType:           geo.GeoType,
		GeoID:             geo.GeoID,
		GeoName:           geo.GeoName,
		GeoConfidence:     geo.Confidence,
		Segment:           segment.Segment,
		SegmentCategory:   segment.Category,
		SegmentConfidence: segment.Confidence,
		PropertyType:      rec.PropertyType,
		Bedrooms:          rec.Bedrooms,
		Price:             &price,
		AsOfDate:          &asOf,
		OccurredAt:        asOf,
	}

	if rec.AreaSqft > 0 {
		sqft := decimal.NewFromFloat(rec.AreaSqft)
		perSqft := price.DivRound(sqft, 2)
		row.AreaSqft = &sqft
		row.PricePerSqft = &perSqft
	}

	// Days on market are anchored to the snapshot day, not the wall clock,
	// so replaying a historical range yields the same rows.
	if rec.ListedAt != "" {
		if listedAt, err := parseUpstreamDate(rec.ListedAt); err == nil {
			row.ListedAt = &listedAt
			days := int(asOf.Sub(listedAt).Hours() / 24)
			if days >= 0 {
				row.DaysOnMarket = &days
			}
		}
	}

	a.detectPriceCut(ctx, row, rec)

	return row, nil
}

// detectPriceCut flags a listing whose ask dropped, either against an
// explicit original_price from the portal or against the price recorded for
// the same (portal, listing) key on the previous calendar day.
func (a *PortalAdapter) detectPriceCut(ctx context.Context, row *models.CanonicalMarketRow, rec portalListingRecord) {
	price := *row.Price

	if rec.OriginalPrice != nil {
		original := decimal.NewFromFloat(*rec.OriginalPrice)
		if price.LessThan(original) {
			row.HadPriceCut = true
			row.PreviousPrice = &original
			return
		}
	}

	prev := a.previousPrice(ctx, row.OrgID, row.ExternalID, *row.AsOfDate)
	if prev != nil {
		row.PreviousPrice = prev
		if price.LessThan(*prev) {
			row.HadPriceCut = true
		}
	}
}

// previousPrice consults the cache for yesterday's observation and falls
// back to the store. A failed store lookup is logged and treated as "never
// seen" rather than dropping the record.
func (a *PortalAdapter) previousPrice(ctx context.Context, orgID, externalID string, day time.Time) *decimal.Decimal {
	yesterday := day.AddDate(0, 0, -1)
	if a.cache != nil {
		if price, ok := a.cache.Get(ctx, orgID, a.portal, externalID, yesterday); ok {
			return price
		}
	}
	if a.history != nil {
		price, err := a.history.PreviousListingPrice(ctx, orgID, a.portal, externalID, day)
		if err != nil {
			a.logger.WithError(err).WithFields(logrus.Fields{
				"source":     a.portal,
				"listing_id": externalID,
			}).Warn("Previous price lookup failed")
			return nil
		}
		return price
	}
	return nil
}
