package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCanonicalMarketRow_DedupeKey(t *testing.T) {
	asOf := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		row  CanonicalMarketRow
		want string
	}{
		{
			name: "transaction keyed by registry id",
			row: CanonicalMarketRow{
				SourceType: SourceTypeTransaction,
				Source:     SourceDLD,
				ExternalID: "TXN-2026-001234",
			},
			want: "dld:TXN-2026-001234",
		},
		{
			name: "rental contract keyed by registry id",
			row: CanonicalMarketRow{
				SourceType: SourceTypeRentalContract,
				Source:     SourceEjari,
				ExternalID: "EJ-88421",
			},
			want: "ejari:EJ-88421",
		},
		{
			name: "listing snapshot includes observation date",
			row: CanonicalMarketRow{
				SourceType: SourceTypeListingSnapshot,
				Source:     PortalBayut,
				ExternalID: "L-555",
				AsOfDate:   &asOf,
			},
			want: "bayut:L-555:2026-03-14",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.row.DedupeKey())
		})
	}
}

func TestCanonicalMarketRow_DedupeKey_SameListingDifferentDays(t *testing.T) {
	day1 := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	row := CanonicalMarketRow{
		SourceType: SourceTypeListingSnapshot,
		Source:     PortalPropertyFinder,
		ExternalID: "L-777",
		AsOfDate:   &day1,
	}
	key1 := row.DedupeKey()
	row.AsOfDate = &day2
	key2 := row.DedupeKey()

	assert.NotEqual(t, key1, key2)
}

func TestBuildSignalKey_Deterministic(t *testing.T) {
	windowEnd := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	key1 := BuildSignalKey("org-1", SignalPriceChange, "jvc", Segment1BR, MetricMedianAskPrice, "30d", windowEnd)
	key2 := BuildSignalKey("org-1", SignalPriceChange, "jvc", Segment1BR, MetricMedianAskPrice, "30d", windowEnd)

	assert.Equal(t, key1, key2)
	assert.Equal(t, "org-1|price_change|jvc|1BR|median_ask_price|30d|2026-04-01", key1)

	other := BuildSignalKey("org-1", SignalPriceChange, "jvc", Segment2BR, MetricMedianAskPrice, "30d", windowEnd)
	assert.NotEqual(t, key1, other)
}

func TestMetricFamilies(t *testing.T) {
	assert.True(t, IsPriceMetric(MetricMedianSalePrice))
	assert.True(t, IsPriceMetric(MetricMedianAskPrice))
	assert.True(t, IsPriceMetric(MetricMedianAnnualRent))
	assert.False(t, IsPriceMetric(MetricGrossYield))
	assert.False(t, IsPriceMetric(MetricTransactionCount))

	assert.True(t, IsYieldMetric(MetricGrossYield))
	assert.False(t, IsYieldMetric(MetricMedianSalePrice))
}

func TestMarketSignal_FormatDelta(t *testing.T) {
	s := MarketSignal{}
	assert.Equal(t, "n/a", s.FormatDelta())

	delta := decimal.NewFromFloat(-7.25)
	s.DeltaPct = &delta
	assert.Equal(t, "-7.3%", s.FormatDelta())
}
