package models

// ScrapeRequest is the payload for POST /api/v1/scrape.
//
// Exactly one of Date or the Start/End pair must be set.
type ScrapeRequest struct {
	// Date is a single date, YYYY-MM-DD or M/D/YYYY.
	Date string `json:"date,omitempty"`

	// Start and End bound an inclusive date range.
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`

	// Upload pushes the aggregate to the configured sink after the run.
	// Default: false.
	Upload bool `json:"upload,omitempty"`
}

// Validate checks the mutually exclusive date forms.
func (r *ScrapeRequest) Validate() error {
	hasRange := r.Start != "" || r.End != ""
	switch {
	case r.Date != "" && hasRange:
		return NewScrapeError(ErrCodeInvalidInput, "date is mutually exclusive with start/end", nil)
	case r.Date == "" && !hasRange:
		return NewScrapeError(ErrCodeInvalidInput, "provide date or both start and end", nil)
	case hasRange && (r.Start == "" || r.End == ""):
		return NewScrapeError(ErrCodeInvalidInput, "start and end must be given together", nil)
	}
	return nil
}
