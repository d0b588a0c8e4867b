package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/models"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/normalize"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/utils"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/pkg/feed"
)

// dldTransactionRecord mirrors the land-registry open data row shape.
// Areas arrive in square metres, rooms as display text ("1 B/R", "Studio").
type dldTransactionRecord struct {
	TransactionID  string  `json:"transaction_id"`
	InstanceDate   string  `json:"instance_date"`
	AreaNameEn     string  `json:"area_name_en"`
	PropertyTypeEn string  `json:"property_type_en"`
	RoomsEn        string  `json:"rooms_en"`
	ProcedureArea  float64 `json:"procedure_area"`
	ActualWorth    float64 `json:"actual_worth"`
}

type dldPageEnvelope struct {
	Success bool                   `json:"success"`
	Data    []dldTransactionRecord `json:"data"`
	Total   int                    `json:"total"`
	HasMore bool                   `json:"has_more"`
	Error   string                 `json:"error,omitempty"`
}

// DLDAdapter ingests government sale transactions.
type DLDAdapter struct {
	client *feed.Client
	cfg    Config
	logger *logrus.Logger
}

// NewDLDAdapter creates the transaction registry adapter.
func NewDLDAdapter(client *feed.Client, cfg Config, logger *logrus.Logger) *DLDAdapter {
	return &DLDAdapter{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

func (a *DLDAdapter) Source() string {
	return models.SourceDLD
}

func (a *DLDAdapter) SourceType() models.SourceType {
	return models.SourceTypeTransaction
}

// FetchPage fetches and transforms one page of transactions.
func (a *DLDAdapter) FetchPage(ctx context.Context, req PageRequest) (*Page, error) {
	var env dldPageEnvelope
	if req.UseMock {
		env = mockDLDPage(req)
	} else {
		query := url.Values{}
		query.Set("date_from", req.From.Format("2006-01-02"))
		query.Set("date_to", req.To.Format("2006-01-02"))
		query.Set("page", strconv.Itoa(req.Page))
		query.Set("page_size", strconv.Itoa(req.PageSize))

		if err := a.client.GetJSON(ctx, "/api/v1/transactions", query, &env); err != nil {
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
		row, err := a.transform(req.OrgID, rec)
		if err != nil {
			page.Dropped++
			a.logger.WithError(err).WithField("source", a.Source()).Warn("Dropping record that failed transform")
			continue
		}
		page.Rows = append(page.Rows, row)
	}

	return page, nil
}

// FetchAll walks every transaction page in the date range.
func (a *DLDAdapter) FetchAll(ctx context.Context, req FetchRequest) (*FetchResult, error) {
	return fetchAllPages(ctx, a, a.cfg, req)
}

func (a *DLDAdapter) transform(orgID string, rec dldTransactionRecord) (*models.CanonicalMarketRow, error) {
	if rec.TransactionID == "" {
		return nil, utils.NewTransformError(a.Source(), "", fmt.Errorf("missing transaction_id"))
	}
	occurredAt, err := parseUpstreamDate(rec.InstanceDate)
	if err != nil {
		return nil, utils.NewTransformError(a.Source(), rec.TransactionID, err)
	}
	if rec.ActualWorth <= 0 {
		return nil, utils.NewTransformError(a.Source(), rec.TransactionID, fmt.Errorf("non-positive transaction worth %v", rec.ActualWorth))
	}

	geo := normalize.NormalizeGeo(rec.AreaNameEn)
	bedrooms := parseRooms(rec.RoomsEn)
	segment := normalize.NormalizeSegment(rec.PropertyTypeEn, bedrooms)

	price := decimal.NewFromFloat(rec.ActualWorth)
	row := &models.CanonicalMarketRow{
		OrgID:             orgID,
		SourceType:        models.SourceTypeTransaction,
		Source:            models.SourceDLD,
		ExternalID:        rec.TransactionID,
		GeoType:           geo.GeoType,
		GeoID:             geo.GeoID,
		GeoName:           geo.GeoName,
		GeoConfidence:     geo.Confidence,
		Segment:           segment.Segment,
		SegmentCategory:   segment.Category,
		SegmentConfidence: segment.Confidence,
		PropertyType:      rec.PropertyTypeEn,
		Bedrooms:          bedrooms,
		Price:             &price,
		OccurredAt:        occurredAt,
	}

	// Registry areas are square metres; price per area is derived after
	// conversion so it is comparable with portal listings.
	if rec.ProcedureArea > 0 {
		sqft := normalize.SqmToSqft(decimal.NewFromFloat(rec.ProcedureArea))
		perSqft := price.DivRound(sqft, 2)
		row.AreaSqft = &sqft
		row.PricePerSqft = &perSqft
	}

	return row, nil
}

// parseRooms extracts a bedroom count from registry display text. "Studio"
// counts as zero bedrooms; commercial labels ("Office", "Shop") carry no
// count and return nil.
func parseRooms(roomsEn string) *int {
	cleaned := strings.TrimSpace(strings.ToLower(roomsEn))
	if cleaned == "" {
		return nil
	}
	if cleaned == "studio" {
		zero := 0
		return &zero
	}
	var n int
	if _, err := fmt.Sscanf(cleaned, "%d b/r", &n); err == nil && n >= 0 {
		return &n
	}
	return nil
}
