package models

import (
	"time"
)

// DateRange bounds an ingestion job. Zero values mean the adapter's
// default lookback applies.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// IngestionParams are the caller-supplied parameters for one ingestion run
type IngestionParams struct {
	OrgID       string    `json:"org_id"`
	DateRange   DateRange `json:"date_range"`
	Sources     []string  `json:"sources,omitempty"`
	UseMockData bool      `json:"use_mock_data"`
}

// SourceRunResult summarizes one adapter's portion of an ingestion run
type SourceRunResult struct {
	Source     string   `json:"source"`
	SourceType string   `json:"source_type"`
	Fetched    int      `json:"fetched"`
	Ingested   int      `json:"ingested"`
	Skipped    int      `json:"skipped"`
	Errors     []string `json:"errors,omitempty"`
	DurationMs int64    `json:"duration_ms"`
}

// IngestionResult is the outcome of a whole ingestion run. Success means
// no source reported errors; partial failures leave Success false with
// the per-source detail preserved.
type IngestionResult struct {
	OrgID      string            `json:"org_id"`
	Success    bool              `json:"success"`
	Fetched    int               `json:"fetched"`
	Ingested   int               `json:"ingested"`
	Skipped    int               `json:"skipped"`
	Sources    []SourceRunResult `json:"sources"`
	Errors     []string          `json:"errors,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	DurationMs int64             `json:"duration_ms"`
}
