package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/use-agent/blotter/dates"
	"github.com/use-agent/blotter/models"
)

// buildRequest turns the scrape flags into a request with ISO dates. With
// no dates at all the run covers yesterday. Every date is checked here so a
// bad flag fails before the browser starts.
func buildRequest(date, start, end string, now time.Time) (*models.ScrapeRequest, error) {
	req := &models.ScrapeRequest{Date: date, Start: start, End: end}
	if date == "" && start == "" && end == "" {
		req.Date = dates.Yesterday(now).String()
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if req.Date != "" {
		d, err := dates.Normalize(req.Date)
		if err != nil {
			return nil, err
		}
		req.Date = d.String()
		return req, nil
	}

	s, err := dates.Normalize(req.Start)
	if err != nil {
		return nil, err
	}
	e, err := dates.Normalize(req.End)
	if err != nil {
		return nil, err
	}
	if s.After(e) {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput,
			"start "+s.String()+" is after end "+e.String(), nil)
	}
	req.Start, req.End = s.String(), e.String()
	return req, nil
}

// renderSummary writes one row per date, failures last.
func renderSummary(w io.Writer, report *models.BatchReport) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Date", "Records", "Strategy", "Pages", "Attempts", "Status"})

	for _, r := range report.Results {
		pages := fmt.Sprint(r.Diagnostic.Pages)
		if r.Diagnostic.PageCapHit {
			pages += " (cap)"
		}
		t.AppendRow(table.Row{
			r.Date, len(r.Records), r.Diagnostic.Strategy, pages, r.Diagnostic.Attempts, "ok",
		})
	}
	for _, f := range models.FailureDetails(report.Failures) {
		t.AppendRow(table.Row{f.Date, 0, "-", "-", "-", f.Error.Code})
	}

	t.AppendFooter(table.Row{"Total", len(report.Records()), "", "", "", fmt.Sprintf("%d failed", len(report.Failures))})
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	t.Render()
}

// writeDump writes records as indented JSON. Absent fields stay null.
func writeDump(path string, records []models.ArrestRecord) error {
	if records == nil {
		records = []models.ArrestRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode dump: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write dump %s: %w", path, err)
	}
	return nil
}

// allFailed reports whether the run produced no successful date.
func allFailed(report *models.BatchReport) bool {
	return len(report.Results) == 0 && len(report.Failures) > 0
}
