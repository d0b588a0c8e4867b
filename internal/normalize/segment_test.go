package normalize

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/models"
)

func intPtr(v int) *int { return &v }

func TestNormalizeSegment(t *testing.T) {
	tests := []struct {
		name           string
		propertyType   string
		bedrooms       *int
		wantSegment    string
		wantCategory   models.SegmentCategory
		wantConfidence models.MatchConfidence
	}{
		{
			name:           "categorical type wins over bedrooms",
			propertyType:   "Villa",
			bedrooms:       intPtr(2),
			wantSegment:    models.SegmentVilla,
			wantCategory:   models.CategoryResidential,
			wantConfidence: models.ConfidenceExact,
		},
		{
			name:           "zero bedrooms is a studio",
			propertyType:   "",
			bedrooms:       intPtr(0),
			wantSegment:    models.SegmentStudio,
			wantCategory:   models.CategoryResidential,
			wantConfidence: models.ConfidenceExact,
		},
		{
			name:           "office is commercial regardless of bedrooms",
			propertyType:   "Office",
			bedrooms:       nil,
			wantSegment:    models.SegmentOffice,
			wantCategory:   models.CategoryCommercial,
			wantConfidence: models.ConfidenceExact,
		},
		{
			name:           "bedroom count maps to nBR",
			propertyType:   "Apartment",
			bedrooms:       intPtr(3),
			wantSegment:    models.Segment3BR,
			wantCategory:   models.CategoryResidential,
			wantConfidence: models.ConfidenceExact,
		},
		{
			name:           "five or more bedrooms collapse",
			propertyType:   "apartment",
			bedrooms:       intPtr(7),
			wantSegment:    models.Segment5BRPlus,
			wantCategory:   models.CategoryResidential,
			wantConfidence: models.ConfidenceExact,
		},
		{
			name:           "townhouse with space",
			propertyType:   "Town House",
			bedrooms:       intPtr(4),
			wantSegment:    models.SegmentTownhouse,
			wantCategory:   models.CategoryResidential,
			wantConfidence: models.ConfidenceExact,
		},
		{
			name:           "containment in longer description",
			propertyType:   "Luxury waterfront penthouse duplex",
			bedrooms:       nil,
			wantSegment:    models.SegmentPenthouse,
			wantCategory:   models.CategoryResidential,
			wantConfidence: models.ConfidenceInferred,
		},
		{
			name:           "hotel apartment is commercial",
			propertyType:   "Hotel Apartment",
			bedrooms:       intPtr(1),
			wantSegment:    models.SegmentHotel,
			wantCategory:   models.CategoryCommercial,
			wantConfidence: models.ConfidenceExact,
		},
		{
			name:           "plot is land",
			propertyType:   "Residential Plot",
			bedrooms:       nil,
			wantSegment:    models.SegmentLand,
			wantCategory:   models.CategoryLand,
			wantConfidence: models.ConfidenceExact,
		},
		{
			name:           "apartment without bedrooms keeps residential category",
			propertyType:   "Apartment",
			bedrooms:       nil,
			wantSegment:    models.SegmentUnknown,
			wantCategory:   models.CategoryResidential,
			wantConfidence: models.ConfidenceInferred,
		},
		{
			name:           "unrecognized input",
			propertyType:   "mystery asset",
			bedrooms:       nil,
			wantSegment:    models.SegmentUnknown,
			wantCategory:   models.CategoryUnknown,
			wantConfidence: models.ConfidenceUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeSegment(tt.propertyType, tt.bedrooms)
			assert.Equal(t, tt.wantSegment, got.Segment)
			assert.Equal(t, tt.wantCategory, got.Category)
			assert.Equal(t, tt.wantConfidence, got.Confidence)
		})
	}
}

func TestNormalizeSegment_NegativeBedroomsIgnored(t *testing.T) {
	got := NormalizeSegment("", intPtr(-2))

	assert.Equal(t, models.SegmentUnknown, got.Segment)
	assert.Equal(t, models.ConfidenceUnknown, got.Confidence)
}

func TestSqmToSqft(t *testing.T) {
	got := SqmToSqft(decimal.NewFromInt(100))
	assert.True(t, decimal.RequireFromString("1076.39").Equal(got), "got %s", got)

	zero := SqmToSqft(decimal.Zero)
	assert.True(t, zero.IsZero())
}
