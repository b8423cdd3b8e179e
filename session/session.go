// Package session runs one date's scrape against the portal: navigate,
// engage the search controls, submit, paginate and extract. Whole sessions
// are retried with exponential backoff, but only for timeouts.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/use-agent/blotter/browser"
	"github.com/use-agent/blotter/config"
	"github.com/use-agent/blotter/dates"
	"github.com/use-agent/blotter/dedupe"
	"github.com/use-agent/blotter/extractor"
	"github.com/use-agent/blotter/models"
	"github.com/use-agent/blotter/resolver"
)

// Scraper scrapes one date at a time. It holds no per-session state and
// may be reused across dates, but not concurrently with itself on the same
// browser tab.
type Scraper struct {
	browser  browser.Browser
	resolver *resolver.Resolver
	site     config.SiteConfig
	timing   config.ScraperConfig
	retry    config.RetryConfig
	pattern  *regexp.Regexp
}

// New creates a Scraper driving pages opened from b.
func New(b browser.Browser, cfg *config.Config) (*Scraper, error) {
	var pattern *regexp.Regexp
	if cfg.Site.JSONURLPattern != "" {
		p, err := regexp.Compile("(?i)" + cfg.Site.JSONURLPattern)
		if err != nil {
			return nil, models.NewScrapeError(models.ErrCodeInvalidInput,
				"invalid JSON URL pattern", err)
		}
		pattern = p
	}
	return &Scraper{
		browser:  b,
		resolver: resolver.New(cfg.Scraper),
		site:     cfg.Site,
		timing:   cfg.Scraper,
		retry:    cfg.Retry,
		pattern:  pattern,
	}, nil
}

// retryPolicy is exponential backoff without jitter, bounded by the
// configured attempt count.
func (s *Scraper) retryPolicy(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.retry.InitialInterval
	bo.Multiplier = 2
	bo.MaxInterval = s.retry.MaxInterval
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()

	attempts := s.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(attempts-1)), ctx)
}

// Scrape runs the session for d, retrying whole attempts that time out.
// Any other failure is returned after a single attempt.
func (s *Scraper) Scrape(ctx context.Context, d dates.Date) (*models.ScrapeResult, error) {
	var (
		result  *models.ScrapeResult
		attempt int
	)
	op := func() error {
		attempt++
		res, err := s.attempt(ctx, d, attempt)
		if err != nil {
			if models.IsTimeout(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		result = res
		return nil
	}
	notify := func(err error, wait time.Duration) {
		slog.Warn("session timed out, retrying",
			"date", d.String(),
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
	}

	if err := backoff.RetryNotify(op, s.retryPolicy(ctx), notify); err != nil {
		return nil, fmt.Errorf("scrape %s after %d attempt(s): %w", d, attempt, err)
	}
	return result, nil
}

// attempt is one complete session on a fresh page.
//
// Lifecycle:
//
//  1. Open page       – the response buffer is wired before navigation
//  2. Navigate        – entry URL, load settle, optional quick link
//  3. Engage controls – locate the search form (top document or iframe), fill the date
//  4. Submit          – click search or press Enter; carry on regardless
//  5. Extract         – settle, paginate (capped), run strategies, dedupe
func (s *Scraper) attempt(ctx context.Context, d dates.Date, n int) (*models.ScrapeResult, error) {
	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.timing.SessionTimeout)
	defer cancel()

	state := Start
	advance := func(next State) {
		state = next
		slog.Debug("session state", "date", d.String(), "state", state.String(), "attempt", n)
	}
	fail := func(err error) error {
		slog.Warn("session failed",
			"date", d.String(),
			"state", state.String(),
			"attempt", n,
			"error", err,
		)
		state = Failed
		return err
	}
	diag := models.Diagnostic{Attempts: n}

	// ── 1. Open page ─────────────────────────────────────────────────
	buf := NewResponseBuffer(s.pattern)
	page, err := s.browser.NewPage(ctx, buf)
	if err != nil {
		if models.IsTimeout(err) {
			return nil, fail(models.CategorizeError(err, "opening page timed out"))
		}
		return nil, fail(models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to open page", err))
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			slog.Debug("page close failed", "error", cerr)
		}
	}()

	// ── 2. Navigate ──────────────────────────────────────────────────
	navCtx, navCancel := context.WithTimeout(ctx, s.timing.NavigationTimeout)
	err = page.Navigate(navCtx, s.site.EntryURL)
	if err == nil {
		err = page.WaitSettled(navCtx)
	}
	navCancel()
	if err != nil {
		return nil, fail(models.CategorizeError(err, "navigation to "+s.site.EntryURL+" failed"))
	}
	s.resolver.FollowQuickLink(ctx, page, s.site.QuickLinkLabels)
	advance(Navigated)

	// ── 3. Engage controls ───────────────────────────────────────────
	form, inFrame := s.resolver.FindSearchFrame(ctx, page)
	diag.Frame = inFrame
	diag.DateFilled = s.resolver.FillDate(ctx, form, d)
	if !diag.DateFilled {
		slog.Info("no ranked date input engaged, filling generic date inputs", "date", d.String())
		diag.DateFilled = s.resolver.FillGenericDates(ctx, form, d)
	}
	advance(ControlsEngaged)

	// ── 4. Submit ────────────────────────────────────────────────────
	diag.Submitted = s.resolver.SubmitSearch(ctx, form)
	if !diag.Submitted {
		slog.Info("no search control found, waiting for results anyway", "date", d.String())
		if err := resolver.Sleep(ctx, s.timing.NoSubmitWait); err != nil {
			return nil, fail(models.CategorizeError(err, "session deadline reached"))
		}
	}
	advance(Submitted)

	// ── 5. Extract ───────────────────────────────────────────────────
	if err := resolver.Sleep(ctx, s.timing.SubmitSettle); err != nil {
		return nil, fail(models.CategorizeError(err, "session deadline reached"))
	}
	stats := s.resolver.Paginate(ctx, form, s.timing.MaxPages)
	diag.Pages, diag.PageCapHit = stats.Pages, stats.Capped
	if err := ctx.Err(); err != nil {
		return nil, fail(models.CategorizeError(err, "session deadline reached during pagination"))
	}

	html, err := form.HTML(ctx)
	if err != nil {
		return nil, fail(models.CategorizeError(err, "failed to read results page"))
	}
	sourceURL, err := form.URL(ctx)
	if err != nil {
		sourceURL = s.site.EntryURL
	}
	in := extractor.Input{HTML: html, URL: sourceURL}
	if resp, ok := buf.Latest(); ok {
		in.Payload = resp.Body
	}
	res := extractor.Extract(in)
	records := dedupe.Records(res.Records)
	diag.Strategy = res.Strategy
	advance(Extracted)

	diag.Duration = time.Since(started)
	advance(Done)
	slog.Info("session complete",
		"date", d.String(),
		"records", len(records),
		"strategy", diag.Strategy,
		"pages", diag.Pages,
		"attempt", n,
		"jsonPayloads", buf.Len(),
		"duration", diag.Duration,
	)
	if records == nil {
		records = []models.ArrestRecord{}
	}
	return &models.ScrapeResult{
		Date:       d.String(),
		Records:    records,
		Diagnostic: diag,
	}, nil
}
