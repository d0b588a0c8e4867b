package normalize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/models"
)

// segmentEntry maps a recognized property type to its canonical segment
type segmentEntry struct {
	Segment  string
	Category models.SegmentCategory
}

// categoricalTypes are property types that define the segment outright,
// even when a bedroom count is present. A 2-bedroom villa is a Villa.
var categoricalTypes = map[string]segmentEntry{
	"villa":            {models.SegmentVilla, models.CategoryResidential},
	"villas":           {models.SegmentVilla, models.CategoryResidential},
	"townhouse":        {models.SegmentTownhouse, models.CategoryResidential},
	"town house":       {models.SegmentTownhouse, models.CategoryResidential},
	"townhouses":       {models.SegmentTownhouse, models.CategoryResidential},
	"penthouse":        {models.SegmentPenthouse, models.CategoryResidential},
	"penthouses":       {models.SegmentPenthouse, models.CategoryResidential},
	"office":           {models.SegmentOffice, models.CategoryCommercial},
	"offices":          {models.SegmentOffice, models.CategoryCommercial},
	"office space":     {models.SegmentOffice, models.CategoryCommercial},
	"retail":           {models.SegmentRetail, models.CategoryCommercial},
	"shop":             {models.SegmentRetail, models.CategoryCommercial},
	"showroom":         {models.SegmentRetail, models.CategoryCommercial},
	"warehouse":        {models.SegmentWarehouse, models.CategoryCommercial},
	"warehouses":       {models.SegmentWarehouse, models.CategoryCommercial},
	"hotel":            {models.SegmentHotel, models.CategoryCommercial},
	"hotel apartment":  {models.SegmentHotel, models.CategoryCommercial},
	"hotel apartments": {models.SegmentHotel, models.CategoryCommercial},
	"land":             {models.SegmentLand, models.CategoryLand},
	"plot":             {models.SegmentLand, models.CategoryLand},
	"residential plot": {models.SegmentLand, models.CategoryLand},
	"commercial plot":  {models.SegmentLand, models.CategoryLand},
	"studio":           {models.SegmentStudio, models.CategoryResidential},
}

// apartmentTypes are residential types that carry no bedroom information
// of their own. They set the category; the segment stays unknown unless
// a bedroom count resolves it first.
var apartmentTypes = map[string]struct{}{
	"apartment":  {},
	"apartments": {},
	"apt":        {},
	"flat":       {},
	"unit":       {},
	"duplex":     {},
}

// orderedCategoricalTypes: longest first for word-boundary containment,
// same scheme as the geo aliases.
var orderedCategoricalTypes = func() []string {
	out := make([]string, 0, len(categoricalTypes))
	for k := range categoricalTypes {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}()

// bedroomSegment maps a bedroom count to the canonical residential segment
func bedroomSegment(bedrooms int) string {
	switch {
	case bedrooms == 0:
		return models.SegmentStudio
	case bedrooms >= 5:
		return models.Segment5BRPlus
	default:
		return fmt.Sprintf("%dBR", bedrooms)
	}
}

// NormalizeSegment resolves a raw property type and optional bedroom count
// to a canonical segment. Categorical types win over bedroom counts;
// bedroom counts win over the apartment family; anything else is Unknown.
// Like the geo normalizer it is pure and never fails.
func NormalizeSegment(propertyType string, bedrooms *int) models.CanonicalSegment {
	cleaned := cleanGeoInput(propertyType)

	if entry, ok := categoricalTypes[cleaned]; ok {
		return models.CanonicalSegment{
			Segment:    entry.Segment,
			Category:   entry.Category,
			Confidence: models.ConfidenceExact,
		}
	}

	padded := " " + cleaned + " "
	for _, key := range orderedCategoricalTypes {
		if strings.Contains(padded, " "+key+" ") {
			entry := categoricalTypes[key]
			return models.CanonicalSegment{
				Segment:    entry.Segment,
				Category:   entry.Category,
				Confidence: models.ConfidenceInferred,
			}
		}
	}

	if bedrooms != nil && *bedrooms >= 0 {
		return models.CanonicalSegment{
			Segment:    bedroomSegment(*bedrooms),
			Category:   models.CategoryResidential,
			Confidence: models.ConfidenceExact,
		}
	}

	if _, ok := apartmentTypes[cleaned]; ok {
		return models.CanonicalSegment{
			Segment:    models.SegmentUnknown,
			Category:   models.CategoryResidential,
			Confidence: models.ConfidenceInferred,
		}
	}

	return models.CanonicalSegment{
		Segment:    models.SegmentUnknown,
		Category:   models.CategoryUnknown,
		Confidence: models.ConfidenceUnknown,
	}
}
