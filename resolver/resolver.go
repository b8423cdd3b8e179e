// Package resolver finds and drives the portal's interactive controls by
// trying ranked selector candidates until one works. Failing to locate or
// act on a candidate silently advances to the next one; only exhausting a
// role is reported, and then as a false return rather than an error.
package resolver

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/use-agent/blotter/browser"
	"github.com/use-agent/blotter/catalog"
	"github.com/use-agent/blotter/config"
	"github.com/use-agent/blotter/dates"
)

// Resolver drives controls on a browser.Page.
type Resolver struct {
	actionTimeout time.Duration
	clickTimeout  time.Duration
	pageSettle    time.Duration
}

// New creates a Resolver with the scraper's interaction timings.
func New(cfg config.ScraperConfig) *Resolver {
	return &Resolver{
		actionTimeout: cfg.ActionTimeout,
		clickTimeout:  cfg.ClickTimeout,
		pageSettle:    cfg.PageSettle,
	}
}

// PageStats reports what Paginate did.
type PageStats struct {
	// Pages is the number of Next/Load More clicks that succeeded.
	Pages int

	// Capped is set when the loop stopped at maxPages while a Next control
	// was still available.
	Capped bool
}

// locate returns the elements matching c, filtered by c.Text.
func (r *Resolver) locate(ctx context.Context, page browser.Page, c catalog.Candidate) []browser.Element {
	actx, cancel := context.WithTimeout(ctx, r.actionTimeout)
	defer cancel()

	els, err := page.Elements(actx, c.CSS)
	if err != nil || len(els) == 0 {
		return nil
	}
	if c.Text == "" {
		return els
	}
	out := els[:0]
	for _, el := range els {
		text, err := el.Text(actx)
		if err != nil {
			continue
		}
		if c.MatchesText(text) {
			out = append(out, el)
		}
	}
	return out
}

// FillDate sets the first matching date input to d. The ISO value goes in
// first; if that leaves the field empty, the MM/DD/YYYY form is tried.
// It reports whether any candidate was engaged, not whether the site
// accepted the value.
func (r *Resolver) FillDate(ctx context.Context, page browser.Page, d dates.Date) bool {
	for _, c := range catalog.For(catalog.DateInput) {
		els := r.locate(ctx, page, c)
		if len(els) == 0 {
			continue
		}
		if r.setValue(ctx, els[0], d) {
			slog.Debug("date input filled", "selector", c.String(), "date", d.String())
			return true
		}
	}
	slog.Debug("no date input candidate could be engaged")
	return false
}

func (r *Resolver) setValue(ctx context.Context, el browser.Element, d dates.Date) bool {
	actx, cancel := context.WithTimeout(ctx, r.actionTimeout)
	defer cancel()

	got, err := el.Eval(actx, browser.SetValueJS, d.String(), false)
	if err != nil {
		return false
	}
	if got == "" {
		if _, err := el.Eval(actx, browser.SetValueJS, d.US(), true); err != nil {
			return false
		}
	}
	return true
}

// FillGenericDates is the fallback when FillDate found nothing it could
// engage: every date-like input is collected in document order and the first
// is filled as "from", a second (if present) as "to".
func (r *Resolver) FillGenericDates(ctx context.Context, page browser.Page, d dates.Date) bool {
	cands := catalog.For(catalog.DateInput)
	css := make([]string, len(cands))
	for i, c := range cands {
		css[i] = c.CSS
	}

	els := r.locate(ctx, page, catalog.Candidate{Role: catalog.DateInput, CSS: strings.Join(css, ", ")})
	if len(els) == 0 {
		return false
	}
	if len(els) > 2 {
		els = els[:2]
	}

	filled := false
	for i, el := range els {
		actx, cancel := context.WithTimeout(ctx, r.actionTimeout)
		err := el.Fill(actx, d.String())
		cancel()
		if err != nil {
			slog.Debug("generic date fill failed", "index", i, "error", err)
			continue
		}
		filled = true
	}
	return filled
}

// SubmitSearch clicks the first visible, enabled search button. When no
// candidate can be clicked it presses Enter on the first date input.
// It reports whether any action was dispatched.
func (r *Resolver) SubmitSearch(ctx context.Context, page browser.Page) bool {
	for _, c := range catalog.For(catalog.SearchButton) {
		for _, el := range r.locate(ctx, page, c) {
			if !r.interactable(ctx, el) {
				continue
			}
			if r.click(ctx, el, r.actionTimeout) {
				slog.Debug("search submitted", "selector", c.String())
				return true
			}
			break
		}
	}

	for _, c := range catalog.For(catalog.DateInput) {
		els := r.locate(ctx, page, c)
		if len(els) == 0 {
			continue
		}
		actx, cancel := context.WithTimeout(ctx, r.actionTimeout)
		err := els[0].PressEnter(actx)
		cancel()
		if err == nil {
			slog.Debug("search submitted with Enter", "selector", c.String())
			return true
		}
	}
	return false
}

// Paginate clicks Next/Load More controls until none is present and enabled,
// or until maxPages clicks have been made. A control whose click fails is
// passed over for the next candidate; pagination ends when every enabled
// control failed. The cap guards against controls that never disable
// themselves; reaching it is a warning, not an error.
func (r *Resolver) Paginate(ctx context.Context, page browser.Page, maxPages int) PageStats {
	var stats PageStats
	for ctx.Err() == nil {
		controls := r.nextControls(ctx, page)
		if len(controls) == 0 {
			return stats
		}
		if maxPages > 0 && stats.Pages >= maxPages {
			stats.Capped = true
			slog.Warn("pagination cap reached, keeping pages collected so far",
				"maxPages", maxPages)
			return stats
		}
		if !r.clickFirst(ctx, controls) {
			slog.Debug("no pagination control accepted a click", "controls", len(controls))
			return stats
		}
		stats.Pages++
		if err := sleep(ctx, r.pageSettle); err != nil {
			return stats
		}
	}
	return stats
}

// nextControls returns, in catalog order, the first element of each
// pagination candidate that is currently enabled.
func (r *Resolver) nextControls(ctx context.Context, page browser.Page) []browser.Element {
	var out []browser.Element
	for _, c := range catalog.For(catalog.NextButton) {
		els := r.locate(ctx, page, c)
		if len(els) == 0 {
			continue
		}
		if r.enabled(ctx, els[0]) {
			out = append(out, els[0])
		}
	}
	return out
}

// clickFirst clicks controls in order and stops at the first success.
func (r *Resolver) clickFirst(ctx context.Context, controls []browser.Element) bool {
	for _, el := range controls {
		if r.click(ctx, el, r.clickTimeout) {
			return true
		}
	}
	return false
}

// FollowQuickLink clicks the first link whose text contains one of labels
// and waits for the page to settle. Absence is not an error.
func (r *Resolver) FollowQuickLink(ctx context.Context, page browser.Page, labels []string) bool {
	cands := catalog.For(catalog.QuickLink)
	if len(labels) > 0 {
		cands = catalog.WithText(catalog.QuickLink, "a", labels)
	}
	for _, c := range cands {
		els := r.locate(ctx, page, c)
		if len(els) == 0 {
			continue
		}
		if !r.click(ctx, els[0], r.actionTimeout) {
			continue
		}
		if err := page.WaitSettled(ctx); err != nil {
			slog.Debug("quick link target did not settle", "error", err)
		}
		slog.Info("followed quick link", "label", c.Text)
		return true
	}
	return false
}

// FindSearchFrame returns the document hosting the search form. When the
// top document has no date input, iframes are inspected and the first one
// exposing a date input wins. The bool reports whether a frame was chosen.
func (r *Resolver) FindSearchFrame(ctx context.Context, page browser.Page) (browser.Page, bool) {
	if r.HasDateInput(ctx, page) {
		return page, false
	}

	wctx, cancel := context.WithTimeout(ctx, r.actionTimeout)
	err := page.WaitSelector(wctx, catalog.For(catalog.SearchFrame)[0].CSS)
	cancel()
	if err != nil {
		return page, false
	}

	frames, err := page.Frames(ctx)
	if err != nil {
		slog.Debug("listing frames failed", "error", err)
		return page, false
	}
	for i, f := range frames {
		if r.HasDateInput(ctx, f) {
			slog.Info("search form found inside iframe", "index", i)
			return f, true
		}
	}
	return page, false
}

// HasDateInput reports whether page exposes any catalogued date input.
func (r *Resolver) HasDateInput(ctx context.Context, page browser.Page) bool {
	for _, c := range catalog.For(catalog.DateInput) {
		if len(r.locate(ctx, page, c)) > 0 {
			return true
		}
	}
	return false
}

func (r *Resolver) interactable(ctx context.Context, el browser.Element) bool {
	actx, cancel := context.WithTimeout(ctx, r.actionTimeout)
	defer cancel()
	visible, err := el.Visible(actx)
	if err != nil || !visible {
		return false
	}
	enabled, err := el.Enabled(actx)
	return err == nil && enabled
}

func (r *Resolver) enabled(ctx context.Context, el browser.Element) bool {
	actx, cancel := context.WithTimeout(ctx, r.actionTimeout)
	defer cancel()
	ok, err := el.Enabled(actx)
	return err == nil && ok
}

func (r *Resolver) click(ctx context.Context, el browser.Element, timeout time.Duration) bool {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := el.Click(actx); err != nil {
		slog.Debug("click failed", "error", err)
		return false
	}
	return true
}

// sleep either waits d or returns early when ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sleep is the context-aware pause the session uses between steps.
func Sleep(ctx context.Context, d time.Duration) error { return sleep(ctx, d) }
