package models

// GeoType identifies the granularity of a canonical geographic area
type GeoType string

const (
	GeoTypeCommunity GeoType = "community"
	GeoTypeDistrict  GeoType = "district"
	GeoTypeCity      GeoType = "city"
)

// MatchConfidence expresses how a raw value was resolved to a canonical one
type MatchConfidence string

const (
	ConfidenceExact    MatchConfidence = "exact"
	ConfidenceInferred MatchConfidence = "inferred"
	ConfidenceUnknown  MatchConfidence = "unknown"
)

// CanonicalGeo is the normalized geographic identity attached to every
// market row and signal
type CanonicalGeo struct {
	GeoType    GeoType         `json:"geo_type" db:"geo_type"`
	GeoID      string          `json:"geo_id" db:"geo_id"`
	GeoName    string          `json:"geo_name" db:"geo_name"`
	Confidence MatchConfidence `json:"confidence" db:"geo_confidence"`
}

// SegmentCategory groups property segments into broad market categories
type SegmentCategory string

const (
	CategoryResidential SegmentCategory = "residential"
	CategoryCommercial  SegmentCategory = "commercial"
	CategoryLand        SegmentCategory = "land"
	CategoryUnknown     SegmentCategory = "unknown"
)

// Canonical property segments
const (
	SegmentStudio    = "Studio"
	Segment1BR       = "1BR"
	Segment2BR       = "2BR"
	Segment3BR       = "3BR"
	Segment4BR       = "4BR"
	Segment5BRPlus   = "5BR+"
	SegmentVilla     = "Villa"
	SegmentTownhouse = "Townhouse"
	SegmentPenthouse = "Penthouse"
	SegmentOffice    = "Office"
	SegmentRetail    = "Retail"
	SegmentWarehouse = "Warehouse"
	SegmentHotel     = "Hotel"
	SegmentLand      = "Land"
	SegmentUnknown   = "Unknown"
)

// CanonicalSegment is the normalized property segment for a market row
type CanonicalSegment struct {
	Segment    string          `json:"segment" db:"segment"`
	Category   SegmentCategory `json:"category" db:"segment_category"`
	Confidence MatchConfidence `json:"confidence" db:"segment_confidence"`
}
