package models

import "time"

// Extraction strategies, reported in Diagnostic.Strategy.
const (
	StrategyTable         = "table"
	StrategyCards         = "cards"
	StrategyJSON          = "json"
	StrategyTableFallback = "table-fallback"
	StrategyNone          = "none"
)

// Diagnostic describes how a session produced its records.
type Diagnostic struct {
	// Strategy is the extraction strategy that yielded the records.
	Strategy string `json:"strategy"`

	// Pages is the number of pagination controls clicked.
	Pages int `json:"pages"`

	// PageCapHit is set when pagination stopped at the configured cap
	// rather than because the Next control went away.
	PageCapHit bool `json:"page_cap_hit,omitempty"`

	// Attempts is the number of whole-session attempts made.
	Attempts int `json:"attempts"`

	// Frame is set when the search form lived inside an iframe.
	Frame bool `json:"frame,omitempty"`

	// DateFilled / Submitted record whether the controls were engaged.
	DateFilled bool `json:"date_filled"`
	Submitted  bool `json:"submitted"`

	// Cached is set when the result was served from the result cache.
	Cached bool `json:"cached,omitempty"`

	Duration time.Duration `json:"duration"`
}

// ScrapeResult is the output of one date's session.
type ScrapeResult struct {
	Date       string         `json:"date"`
	Records    []ArrestRecord `json:"records"`
	Diagnostic Diagnostic     `json:"diagnostic"`
}

// DateFailure records a date that was excluded from a batch.
type DateFailure struct {
	Date string `json:"date"`
	Err  error  `json:"-"`
}

// BatchReport aggregates the per-date outcomes of a batch run.
type BatchReport struct {
	Results  []ScrapeResult `json:"results"`
	Failures []DateFailure  `json:"failures"`
}

// Records flattens the results, preserving per-date and within-date order.
func (b *BatchReport) Records() []ArrestRecord {
	n := 0
	for _, r := range b.Results {
		n += len(r.Records)
	}
	out := make([]ArrestRecord, 0, n)
	for _, r := range b.Results {
		out = append(out, r.Records...)
	}
	return out
}
