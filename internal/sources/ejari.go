package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/models"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/normalize"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/utils"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/pkg/feed"
)

// ejariContractRecord mirrors the rental-registry row shape. Contract
// amounts are annual rents in AED; areas are square metres.
type ejariContractRecord struct {
	ContractID       string  `json:"contract_id"`
	RegistrationDate string  `json:"registration_date"`
	AreaNameEn       string  `json:"area_name_en"`
	PropertyTypeEn   string  `json:"property_type_en"`
	Bedrooms         *int    `json:"bedrooms,omitempty"`
	ContractAmount   float64 `json:"contract_amount"`
	PropertyArea     float64 `json:"property_area"`
}

type ejariPageEnvelope struct {
	Success bool                  `json:"success"`
	Data    []ejariContractRecord `json:"data"`
	Total   int                   `json:"total"`
	HasMore bool                  `json:"has_more"`
	Error   string                `json:"error,omitempty"`
}

// EjariAdapter ingests registered rental contracts.
type EjariAdapter struct {
	client *feed.Client
	cfg    Config
	logger *logrus.Logger
}

// NewEjariAdapter creates the rental registry adapter.
func NewEjariAdapter(client *feed.Client, cfg Config, logger *logrus.Logger) *EjariAdapter {
	return &EjariAdapter{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

func (a *EjariAdapter) Source() string {
	return models.SourceEjari
}

func (a *EjariAdapter) SourceType() models.SourceType {
	return models.SourceTypeRentalContract
}

// FetchPage fetches and transforms one page of rental contracts.
func (a *EjariAdapter) FetchPage(ctx context.Context, req PageRequest) (*Page, error) {
	var env ejariPageEnvelope
	if req.UseMock {
		env = mockEjariPage(req)
	} else {
		query := url.Values{}
		query.Set("date_from", req.From.Format("2006-01-02"))
		query.Set("date_to", req.To.Format("2006-01-02"))
		query.Set("page", strconv.Itoa(req.Page))
		query.Set("page_size", strconv.Itoa(req.PageSize))

		if err := a.client.GetJSON(ctx, "/api/v1/contracts", query, &env); err != nil {
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

// FetchAll walks every contract page in the date range.
func (a *EjariAdapter) FetchAll(ctx context.Context, req FetchRequest) (*FetchResult, error) {
	return fetchAllPages(ctx, a, a.cfg, req)
}

func (a *EjariAdapter) transform(orgID string, rec ejariContractRecord) (*models.CanonicalMarketRow, error) {
	if rec.ContractID == "" {
		return nil, utils.NewTransformError(a.Source(), "", fmt.Errorf("missing contract_id"))
	}
	occurredAt, err := parseUpstreamDate(rec.RegistrationDate)
	if err != nil {
		return nil, utils.NewTransformError(a.Source(), rec.ContractID, err)
	}
	if rec.ContractAmount <= 0 {
		return nil, utils.NewTransformError(a.Source(), rec.ContractID, fmt.Errorf("non-positive contract amount %v", rec.ContractAmount))
	}

	geo := normalize.NormalizeGeo(rec.AreaNameEn)
	segment := normalize.NormalizeSegment(rec.PropertyTypeEn, rec.Bedrooms)

	annualRent := decimal.NewFromFloat(rec.ContractAmount)
	monthlyRent := annualRent.DivRound(decimal.NewFromInt(12), 2)
	row := &models.CanonicalMarketRow{
		OrgID:             orgID,
		SourceType:        models.SourceTypeRentalContract,
		Source:            models.SourceEjari,
		ExternalID:        rec.ContractID,
		GeoType:           geo.GeoType,
		GeoID:             geo.GeoID,
		GeoName:           geo.GeoName,
		GeoConfidence:     geo.Confidence,
		Segment:           segment.Segment,
		SegmentCategory:   segment.Category,
		SegmentConfidence: segment.Confidence,
		PropertyType:      rec.PropertyTypeEn,
		Bedrooms:          rec.Bedrooms,
		AnnualRent:        &annualRent,
		MonthlyRent:       &monthlyRent,
		OccurredAt:        occurredAt,
	}

	if rec.PropertyArea > 0 {
		sqft := normalize.SqmToSqft(decimal.NewFromFloat(rec.PropertyArea))
		row.AreaSqft = &sqft
	}

	return row, nil
}
