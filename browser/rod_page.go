package browser

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/use-agent/blotter/config"
	"github.com/use-agent/blotter/models"
)

// rodPage adapts a *rod.Page (or an iframe's document) to Page. Every call
// binds ctx with page.Context so deadlines propagate to all CDP operations.
type rodPage struct {
	page   *rod.Page
	router *rod.HijackRouter
	cfg    config.ScraperConfig
	owner  bool // false for iframe documents
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	if err := p.page.Context(ctx).Navigate(url); err != nil {
		return models.CategorizeError(err, "navigation to target URL failed")
	}
	return nil
}

// WaitSettled waits for the load event, then for the DOM to stop changing.
// A DOM that never converges before ctx expires is a timeout.
func (p *rodPage) WaitSettled(ctx context.Context) error {
	pg := p.page.Context(ctx)
	if err := pg.WaitLoad(); err != nil {
		return models.CategorizeError(err, "page load did not complete")
	}
	if err := pg.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge", "error", err)
		return models.CategorizeError(err, "page did not settle")
	}
	return nil
}

func (p *rodPage) WaitSelector(ctx context.Context, css string) error {
	if err := p.page.Context(ctx).WaitElementsMoreThan(css, 0); err != nil {
		return models.CategorizeError(err, "waiting for "+css)
	}
	return nil
}

func (p *rodPage) Elements(ctx context.Context, css string) ([]Element, error) {
	els, err := p.page.Context(ctx).Elements(css)
	if err != nil {
		return nil, err
	}
	out := make([]Element, len(els))
	for i, el := range els {
		out[i] = &rodElement{el: el}
	}
	return out, nil
}

func (p *rodPage) Eval(ctx context.Context, js string, args ...any) (string, error) {
	res, err := p.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).HTML()
	if err != nil {
		return "", models.CategorizeError(err, "failed to extract page HTML")
	}
	return html, nil
}

func (p *rodPage) URL(ctx context.Context) (string, error) {
	return p.Eval(ctx, `() => window.location.href`)
}

func (p *rodPage) Frames(ctx context.Context) ([]Page, error) {
	els, err := p.page.Context(ctx).Elements("iframe")
	if err != nil {
		return nil, err
	}
	var frames []Page
	for _, el := range els {
		fr, err := el.Frame()
		if err != nil {
			slog.Debug("iframe has no accessible document", "error", err)
			continue
		}
		frames = append(frames, &rodPage{page: fr, cfg: p.cfg})
	}
	return frames, nil
}

// Close stops the hijack router and closes the tab. The network buffer the
// router fed goes away with the session that owned it.
func (p *rodPage) Close() error {
	if !p.owner {
		return nil
	}
	if p.router != nil {
		_ = p.router.Stop()
	}
	return p.page.Close()
}
