// Package batch drives a session per date over a single date or an
// inclusive range, isolating per-date failures.
package batch

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"github.com/use-agent/blotter/config"
	"github.com/use-agent/blotter/dates"
	"github.com/use-agent/blotter/models"
	"golang.org/x/time/rate"
)

// Scraper runs one date's session.
type Scraper interface {
	Scrape(ctx context.Context, d dates.Date) (*models.ScrapeResult, error)
}

// Driver runs dates strictly one after another.
type Driver struct {
	scraper Scraper
	limiter *rate.Limiter
}

// New creates a Driver that starts at most one date per cfg.Pause.
func New(s Scraper, cfg config.BatchConfig) *Driver {
	limit := rate.Inf
	if cfg.Pause > 0 {
		limit = rate.Every(cfg.Pause)
	}
	return &Driver{
		scraper: s,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Run scrapes each date in seq in order. A failing date is logged and
// recorded in the report's Failures; it never stops the remaining dates.
// Cancelling ctx stops the batch after recording the interrupted date.
func (d *Driver) Run(ctx context.Context, seq iter.Seq[dates.Date]) *models.BatchReport {
	report := &models.BatchReport{
		Results:  []models.ScrapeResult{},
		Failures: []models.DateFailure{},
	}
	start := time.Now()

	for date := range seq {
		if err := d.limiter.Wait(ctx); err != nil {
			report.Failures = append(report.Failures, models.DateFailure{Date: date.String(), Err: err})
			slog.Error("batch interrupted", "date", date.String(), "error", err)
			break
		}

		res, err := d.scraper.Scrape(ctx, date)
		if err != nil {
			slog.Error("date failed, continuing with remaining dates",
				"date", date.String(),
				"error", err,
			)
			report.Failures = append(report.Failures, models.DateFailure{Date: date.String(), Err: err})
			if ctx.Err() != nil {
				break
			}
			continue
		}
		report.Results = append(report.Results, *res)
	}

	slog.Info("batch complete",
		"dates", len(report.Results)+len(report.Failures),
		"failed", len(report.Failures),
		"records", len(report.Records()),
		"duration", time.Since(start),
	)
	return report
}

// RunDate scrapes a single date.
func (d *Driver) RunDate(ctx context.Context, date string) (*models.BatchReport, error) {
	day, err := dates.Normalize(date)
	if err != nil {
		return nil, err
	}
	return d.Run(ctx, func(yield func(dates.Date) bool) { yield(day) }), nil
}

// RunRange scrapes every date from start to end inclusive. Both endpoints
// are validated before any session runs; start after end is rejected.
func (d *Driver) RunRange(ctx context.Context, start, end string) (*models.BatchReport, error) {
	s, err := dates.Normalize(start)
	if err != nil {
		return nil, err
	}
	e, err := dates.Normalize(end)
	if err != nil {
		return nil, err
	}
	if s.After(e) {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput,
			"start "+s.String()+" is after end "+e.String(), nil)
	}
	seq, err := dates.Range(s.String(), e.String())
	if err != nil {
		return nil, err
	}
	return d.Run(ctx, seq), nil
}

// RunRequest dispatches on the request's date form.
func (d *Driver) RunRequest(ctx context.Context, req *models.ScrapeRequest) (*models.BatchReport, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Date != "" {
		return d.RunDate(ctx, req.Date)
	}
	return d.RunRange(ctx, req.Start, req.End)
}
