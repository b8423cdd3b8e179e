package models

// ScrapeResponse is the response for POST /api/v1/scrape.
type ScrapeResponse struct {
	// Success indicates whether at least the run itself completed; individual
	// dates may still have failed.
	Success bool `json:"success"`

	// Records is the deduplicated aggregate across all dates.
	Records []ArrestRecord `json:"records"`

	// Results carries per-date diagnostics without their records.
	Results []DateSummary `json:"results,omitempty"`

	// Failures lists the dates excluded from the aggregate.
	Failures []FailureDetail `json:"failures,omitempty"`

	// Uploaded is set when the aggregate reached the sink.
	Uploaded bool `json:"uploaded,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// DateSummary is the per-date part of a response.
type DateSummary struct {
	Date       string     `json:"date"`
	Count      int        `json:"count"`
	Diagnostic Diagnostic `json:"diagnostic"`
}

// FailureDetail describes one failed date.
type FailureDetail struct {
	Date  string       `json:"date"`
	Error *ErrorDetail `json:"error"`
}

// TimingInfo provides duration breakdowns.
type TimingInfo struct {
	TotalMs  int64 `json:"total_ms"`
	ScrapeMs int64 `json:"scrape_ms"`
	UploadMs int64 `json:"upload_ms,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Running bool   `json:"running"`
	Version string `json:"version"`
}

// NewResponse builds a ScrapeResponse from a batch report.
func NewResponse(report *BatchReport) *ScrapeResponse {
	resp := &ScrapeResponse{
		Success: true,
		Records: report.Records(),
	}
	for _, r := range report.Results {
		resp.Results = append(resp.Results, DateSummary{
			Date:       r.Date,
			Count:      len(r.Records),
			Diagnostic: r.Diagnostic,
		})
	}
	resp.Failures = FailureDetails(report.Failures)
	return resp
}

// FailureDetails converts per-date failures to their API form.
func FailureDetails(failures []DateFailure) []FailureDetail {
	out := make([]FailureDetail, 0, len(failures))
	for _, f := range failures {
		code := ErrCodeInternal
		if f.Err != nil {
			code = CategorizeError(f.Err, "scrape failed").Code
		}
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		out = append(out, FailureDetail{
			Date:  f.Date,
			Error: &ErrorDetail{Code: code, Message: msg},
		})
	}
	return out
}
