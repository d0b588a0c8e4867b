package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/config"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/models"
)

// Aggregated signals cover all portals at once, so they carry a collective
// source label instead of a single portal name.
const sourcePortals = "portals"

// WindowReader loads canonical rows inside a half-open window. Satisfied by
// database.MarketRowRepository.
type WindowReader interface {
	ListWindowRows(ctx context.Context, orgID string, sourceType models.SourceType, from, to time.Time) ([]models.CanonicalMarketRow, error)
}

// SignalWriter persists detected signals. Satisfied by database.SignalRepository.
type SignalWriter interface {
	Upsert(ctx context.Context, signal *models.MarketSignal) error
}

// DetectionResult summarizes one detection pass over an organization.
type DetectionResult struct {
	OrgID      string                 `json:"org_id"`
	Timeframe  string                 `json:"timeframe"`
	WindowEnd  time.Time              `json:"window_end"`
	Detected   int                    `json:"detected"`
	Persisted  int                    `json:"persisted"`
	Signals    []*models.MarketSignal `json:"signals,omitempty"`
	Errors     []string               `json:"errors,omitempty"`
	DurationMs int64                  `json:"duration_ms"`
}

// SignalDetector compares the latest timeframe window against the window
// before it, per (geo, segment) cell, and emits market signals whose deltas
// clear the configured thresholds. Re-running over the same window end is
// idempotent because the signal key is deterministic.
type SignalDetector struct {
	cfg     config.SignalsConfig
	rows    WindowReader
	signals SignalWriter
	logger  *logrus.Logger
}

func NewSignalDetector(cfg config.SignalsConfig, rows WindowReader, signals SignalWriter, logger *logrus.Logger) *SignalDetector {
	return &SignalDetector{
		cfg:     cfg,
		rows:    rows,
		signals: signals,
		logger:  logger,
	}
}

// DetectSignals runs detection for every source family and persists what it
// finds. Read or persist failures for one family or signal are collected in
// the result and never abort the pass.
func (d *SignalDetector) DetectSignals(ctx context.Context, orgID string, windowEnd time.Time) (*DetectionResult, error) {
	if orgID == "" {
		return nil, fmt.Errorf("detect signals: org id is required")
	}

	days := d.timeframeDays()
	windowStart := windowEnd.AddDate(0, 0, -days)
	prevStart := windowEnd.AddDate(0, 0, -2*days)

	started := time.Now()
	result := &DetectionResult{
		OrgID:     orgID,
		Timeframe: d.cfg.Timeframe,
		WindowEnd: windowEnd,
	}

	type family struct {
		sourceType models.SourceType
		detect     func(cells []*signalCell) []*models.MarketSignal
	}
	families := []family{
		{models.SourceTypeTransaction, func(cells []*signalCell) []*models.MarketSignal {
			return d.transactionSignals(cells, orgID, windowStart, windowEnd)
		}},
		{models.SourceTypeRentalContract, func(cells []*signalCell) []*models.MarketSignal {
			return d.rentalSignals(cells, orgID, windowStart, windowEnd)
		}},
		{models.SourceTypeListingSnapshot, func(cells []*signalCell) []*models.MarketSignal {
			return d.listingSignals(cells, orgID, windowStart, windowEnd)
		}},
	}

	for _, f := range families {
		current, err := d.rows.ListWindowRows(ctx, orgID, f.sourceType, windowStart, windowEnd)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s window read: %v", f.sourceType, err))
			d.logger.WithError(err).WithField("source_type", f.sourceType).Error("Window read failed")
			continue
		}
		previous, err := d.rows.ListWindowRows(ctx, orgID, f.sourceType, prevStart, windowStart)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s baseline read: %v", f.sourceType, err))
			d.logger.WithError(err).WithField("source_type", f.sourceType).Error("Baseline read failed")
			continue
		}
		result.Signals = append(result.Signals, f.detect(collectCells(current, previous))...)
	}

	result.Detected = len(result.Signals)
	for _, sig := range result.Signals {
		if err := d.signals.Upsert(ctx, sig); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("persist %s: %v", sig.SignalKey, err))
			d.logger.WithError(err).WithField("signal_key", sig.SignalKey).Error("Signal upsert failed")
			continue
		}
		result.Persisted++
	}
	result.DurationMs = time.Since(started).Milliseconds()

	d.logger.WithFields(logrus.Fields{
		"org_id":     orgID,
		"window_end": windowEnd.Format("2006-01-02"),
		"timeframe":  d.cfg.Timeframe,
		"detected":   result.Detected,
		"persisted":  result.Persisted,
		"errors":     len(result.Errors),
	}).Info("Signal detection finished")

	return result, nil
}

func (d *SignalDetector) transactionSignals(cells []*signalCell, orgID string, windowStart, windowEnd time.Time) []*models.MarketSignal {
	var out []*models.MarketSignal
	minSample := d.minSample()
	priceThreshold := decimal.NewFromFloat(d.cfg.PriceChangePct)
	volumeThreshold := decimal.NewFromFloat(d.cfg.VolumeChangePct)

	for _, cell := range cells {
		currVals := decimalValues(cell.current, rowPrice)
		prevVals := decimalValues(cell.prev, rowPrice)
		if len(currVals) >= minSample && len(prevVals) >= minSample {
			curr := median(currVals)
			prev := median(prevVals)
			if delta := pctChange(curr, prev); delta != nil && delta.Abs().GreaterThanOrEqual(priceThreshold) {
				evidence := d.cellEvidence(len(currVals), len(prevVals), windowStart, windowEnd)
				if tail := d.smaTail(cell.current, rowPrice); len(tail) > 0 {
					evidence["sma_tail"] = tail
				}
				out = append(out, d.newSignal(orgID, cell, windowEnd, signalDraft{
					sourceType: models.SourceTypeTransaction,
					source:     models.SourceDLD,
					signalType: models.SignalPriceChange,
					metric:     models.MetricMedianSalePrice,
					current:    curr,
					prev:       &prev,
					delta:      delta,
					confidence: d.confidence(len(currVals)),
					evidence:   evidence,
				}))
			}
		}

		currCount := len(cell.current)
		prevCount := len(cell.prev)
		if currCount >= minSample && prevCount >= minSample {
			curr := decimal.NewFromInt(int64(currCount))
			prev := decimal.NewFromInt(int64(prevCount))
			if delta := pctChange(curr, prev); delta != nil && delta.Abs().GreaterThanOrEqual(volumeThreshold) {
				out = append(out, d.newSignal(orgID, cell, windowEnd, signalDraft{
					sourceType: models.SourceTypeTransaction,
					source:     models.SourceDLD,
					signalType: models.SignalTransactionVolume,
					metric:     models.MetricTransactionCount,
					current:    curr,
					prev:       &prev,
					delta:      delta,
					confidence: d.confidence(currCount),
					evidence:   d.cellEvidence(currCount, prevCount, windowStart, windowEnd),
				}))
			}
		}
	}
	return out
}

func (d *SignalDetector) rentalSignals(cells []*signalCell, orgID string, windowStart, windowEnd time.Time) []*models.MarketSignal {
	var out []*models.MarketSignal
	minSample := d.minSample()
	rentThreshold := decimal.NewFromFloat(d.cfg.RentChangePct)

	for _, cell := range cells {
		currVals := decimalValues(cell.current, rowAnnualRent)
		prevVals := decimalValues(cell.prev, rowAnnualRent)
		if len(currVals) < minSample || len(prevVals) < minSample {
			continue
		}
		curr := median(currVals)
		prev := median(prevVals)
		delta := pctChange(curr, prev)
		if delta == nil || delta.Abs().LessThan(rentThreshold) {
			continue
		}
		evidence := d.cellEvidence(len(currVals), len(prevVals), windowStart, windowEnd)
		if tail := d.smaTail(cell.current, rowAnnualRent); len(tail) > 0 {
			evidence["sma_tail"] = tail
		}
		out = append(out, d.newSignal(orgID, cell, windowEnd, signalDraft{
			sourceType: models.SourceTypeRentalContract,
			source:     models.SourceEjari,
			signalType: models.SignalRentChange,
			metric:     models.MetricMedianAnnualRent,
			current:    curr,
			prev:       &prev,
			delta:      delta,
			confidence: d.confidence(len(currVals)),
			evidence:   evidence,
		}))
	}
	return out
}

func (d *SignalDetector) listingSignals(cells []*signalCell, orgID string, windowStart, windowEnd time.Time) []*models.MarketSignal {
	var out []*models.MarketSignal
	minSample := d.minSample()
	spikeThreshold := decimal.NewFromFloat(d.cfg.SupplySpikePct)
	shareThreshold := decimal.NewFromFloat(d.cfg.PriceCutShareMin)
	priceThreshold := decimal.NewFromFloat(d.cfg.PriceChangePct)

	for _, cell := range cells {
		currCount := len(cell.current)
		prevCount := len(cell.prev)

		// Supply spikes are one-directional: a shrinking inventory is not a
		// spike no matter how large the swing.
		if currCount >= minSample && prevCount >= minSample {
			curr := decimal.NewFromInt(int64(currCount))
			prev := decimal.NewFromInt(int64(prevCount))
			if delta := pctChange(curr, prev); delta != nil && delta.GreaterThanOrEqual(spikeThreshold) {
				out = append(out, d.newSignal(orgID, cell, windowEnd, signalDraft{
					sourceType: models.SourceTypeListingSnapshot,
					source:     sourcePortals,
					signalType: models.SignalSupplySpike,
					metric:     models.MetricListingCount,
					current:    curr,
					prev:       &prev,
					delta:      delta,
					confidence: d.confidence(currCount),
					evidence:   d.cellEvidence(currCount, prevCount, windowStart, windowEnd),
				}))
			}
		}

		// Cut clusters gate on the current share alone; a fresh market with
		// no baseline can still be discounting aggressively.
		if currCount >= minSample {
			cuts := 0
			for _, r := range cell.current {
				if r.HadPriceCut {
					cuts++
				}
			}
			share := cutShare(cuts, currCount)
			if share.GreaterThanOrEqual(shareThreshold) {
				var prevShare, delta *decimal.Decimal
				if prevCount > 0 {
					prevCuts := 0
					for _, r := range cell.prev {
						if r.HadPriceCut {
							prevCuts++
						}
					}
					ps := cutShare(prevCuts, prevCount)
					prevShare = &ps
					delta = pctChange(share, ps)
				}
				evidence := d.cellEvidence(currCount, prevCount, windowStart, windowEnd)
				evidence["price_cuts"] = cuts
				out = append(out, d.newSignal(orgID, cell, windowEnd, signalDraft{
					sourceType: models.SourceTypeListingSnapshot,
					source:     sourcePortals,
					signalType: models.SignalPriceCutCluster,
					metric:     models.MetricPriceCutShare,
					current:    share,
					prev:       prevShare,
					delta:      delta,
					confidence: d.confidence(currCount),
					evidence:   evidence,
				}))
			}
		}

		currVals := decimalValues(cell.current, rowPrice)
		prevVals := decimalValues(cell.prev, rowPrice)
		if len(currVals) >= minSample && len(prevVals) >= minSample {
			curr := median(currVals)
			prev := median(prevVals)
			if delta := pctChange(curr, prev); delta != nil && delta.Abs().GreaterThanOrEqual(priceThreshold) {
				evidence := d.cellEvidence(len(currVals), len(prevVals), windowStart, windowEnd)
				if tail := d.smaTail(cell.current, rowPrice); len(tail) > 0 {
					evidence["sma_tail"] = tail
				}
				out = append(out, d.newSignal(orgID, cell, windowEnd, signalDraft{
					sourceType: models.SourceTypeListingSnapshot,
					source:     sourcePortals,
					signalType: models.SignalPriceChange,
					metric:     models.MetricMedianAskPrice,
					current:    curr,
					prev:       &prev,
					delta:      delta,
					confidence: d.confidence(len(currVals)),
					evidence:   evidence,
				}))
			}
		}
	}
	return out
}

// signalDraft carries the per-metric fields of a detected signal; the cell
// supplies the shared geo and segment dimensions.
type signalDraft struct {
	sourceType models.SourceType
	source     string
	signalType models.SignalType
	metric     string
	current    decimal.Decimal
	prev       *decimal.Decimal
	delta      *decimal.Decimal
	confidence decimal.Decimal
	evidence   map[string]any
}

func (d *SignalDetector) newSignal(orgID string, cell *signalCell, windowEnd time.Time, draft signalDraft) *models.MarketSignal {
	return &models.MarketSignal{
		OrgID:           orgID,
		SourceType:      draft.sourceType,
		Source:          draft.source,
		SignalType:      draft.signalType,
		GeoType:         cell.geoType,
		GeoID:           cell.geoID,
		GeoName:         cell.geoName,
		Segment:         cell.segment,
		Metric:          draft.metric,
		Timeframe:       d.cfg.Timeframe,
		CurrentValue:    draft.current,
		PrevValue:       draft.prev,
		DeltaPct:        draft.delta,
		ConfidenceScore: draft.confidence,
		Evidence:        draft.evidence,
		SignalKey:       models.BuildSignalKey(orgID, draft.signalType, cell.geoID, cell.segment, draft.metric, d.cfg.Timeframe, windowEnd),
	}
}

func (d *SignalDetector) cellEvidence(sample, prevSample int, windowStart, windowEnd time.Time) map[string]any {
	return map[string]any{
		"sample_size":      sample,
		"prev_sample_size": prevSample,
		"window_start":     windowStart.Format("2006-01-02"),
		"window_end":       windowEnd.Format("2006-01-02"),
	}
}

// smaTail smooths the cell's daily median series and returns the last few
// smoothed points for the signal's evidence. Series shorter than the SMA
// window yield nothing.
func (d *SignalDetector) smaTail(rows []models.CanonicalMarketRow, value func(models.CanonicalMarketRow) *decimal.Decimal) []float64 {
	window := d.cfg.SMAWindow
	if window <= 1 {
		return nil
	}

	byDay := make(map[string][]decimal.Decimal)
	for _, r := range rows {
		v := value(r)
		if v == nil {
			continue
		}
		day := r.OccurredAt.Format("2006-01-02")
		byDay[day] = append(byDay[day], *v)
	}
	if len(byDay) < window {
		return nil
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	series := make([]float64, len(days))
	for i, day := range days {
		series[i] = median(byDay[day]).InexactFloat64()
	}

	sma := trend.NewSmaWithPeriod[float64](window)
	smoothed := helper.ChanToSlice(sma.Compute(helper.SliceToChan(series)))
	if len(smoothed) == 0 {
		return nil
	}
	tail := 3
	if len(smoothed) < tail {
		tail = len(smoothed)
	}
	return smoothed[len(smoothed)-tail:]
}

// confidence scales with sample size and saturates at 1 once the sample
// reaches the configured full-confidence size.
func (d *SignalDetector) confidence(sample int) decimal.Decimal {
	full := d.cfg.FullConfidenceSample
	if full <= 0 {
		return decimal.NewFromInt(1)
	}
	conf := decimal.NewFromInt(int64(sample)).Div(decimal.NewFromInt(int64(full))).Round(2)
	if conf.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return conf
}

func (d *SignalDetector) minSample() int {
	if d.cfg.MinSampleSize > 0 {
		return d.cfg.MinSampleSize
	}
	return 1
}

func (d *SignalDetector) timeframeDays() int {
	var days int
	if _, err := fmt.Sscanf(d.cfg.Timeframe, "%dd", &days); err != nil || days <= 0 {
		return 30
	}
	return days
}

// signalCell holds the current and baseline rows for one (geo, segment)
// dimension pair.
type signalCell struct {
	geoID   string
	geoName string
	geoType models.GeoType
	segment string
	current []models.CanonicalMarketRow
	prev    []models.CanonicalMarketRow
}

// collectCells groups both windows by (geo, segment) and returns the cells
// in a stable order so repeated runs emit signals in the same sequence.
func collectCells(current, previous []models.CanonicalMarketRow) []*signalCell {
	type cellKey struct {
		geoID   string
		segment string
	}
	byKey := make(map[cellKey]*signalCell)

	cellFor := func(r models.CanonicalMarketRow) *signalCell {
		key := cellKey{geoID: r.GeoID, segment: r.Segment}
		cell, ok := byKey[key]
		if !ok {
			cell = &signalCell{
				geoID:   r.GeoID,
				geoName: r.GeoName,
				geoType: r.GeoType,
				segment: r.Segment,
			}
			byKey[key] = cell
		}
		return cell
	}

	for _, r := range current {
		cell := cellFor(r)
		cell.current = append(cell.current, r)
	}
	for _, r := range previous {
		cell := cellFor(r)
		cell.prev = append(cell.prev, r)
	}

	cells := make([]*signalCell, 0, len(byKey))
	for _, cell := range byKey {
		cells = append(cells, cell)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].geoID != cells[j].geoID {
			return cells[i].geoID < cells[j].geoID
		}
		return cells[i].segment < cells[j].segment
	})
	return cells
}

func rowPrice(r models.CanonicalMarketRow) *decimal.Decimal { return r.Price }

func rowAnnualRent(r models.CanonicalMarketRow) *decimal.Decimal { return r.AnnualRent }

func decimalValues(rows []models.CanonicalMarketRow, value func(models.CanonicalMarketRow) *decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(rows))
	for _, r := range rows {
		if v := value(r); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

// median returns the middle value of the set, averaging the two middle
// values for even-sized sets. Callers must not pass an empty slice.
func median(values []decimal.Decimal) decimal.Decimal {
	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2)).Round(2)
}

// pctChange returns the percentage change from prev to curr, or nil when
// prev is zero and the ratio is undefined.
func pctChange(curr, prev decimal.Decimal) *decimal.Decimal {
	if prev.IsZero() {
		return nil
	}
	delta := curr.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Round(2)
	return &delta
}

func cutShare(cuts, total int) decimal.Decimal {
	return decimal.NewFromInt(int64(cuts)).Div(decimal.NewFromInt(int64(total))).Round(4)
}
