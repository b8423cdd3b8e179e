package browser

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/blotter/config"
	"github.com/use-agent/blotter/models"
)

// Rod is a Browser backed by a locally launched Chromium.
type Rod struct {
	browser    *rod.Browser
	browserCfg config.BrowserConfig
	scraperCfg config.ScraperConfig
	replay     *http.Client
}

// Launch starts Chromium with the stealth flag set and connects to it.
func Launch(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig) (*Rod, error) {
	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.Proxy != "" {
		l = l.Proxy(browserCfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	if browserCfg.Locale != "" {
		l.Set(flags.Flag("lang"), browserCfg.Locale)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	slog.Info("browser launched", "controlURL", controlURL, "headless", browserCfg.Headless)

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	return &Rod{
		browser:    b,
		browserCfg: browserCfg,
		scraperCfg: scraperCfg,
		replay:     newReplayClient(browserCfg.Proxy, browserCfg.UserAgent),
	}, nil
}

// NewPage opens a tab prepared the way every session needs it:
//
//  1. Stealth injection      – mask navigator.webdriver etc. (before navigation!)
//  2. Emulation              – user agent, locale, timezone, viewport
//  3. Hijack mount           – resource blocking + JSON response capture
//
// Steps 1-3 only take effect for navigations that happen after they are
// installed, so NewPage must complete before Navigate.
func (r *Rod) NewPage(ctx context.Context, obs Observer) (Page, error) {
	page, err := r.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to create page",
			err,
		)
	}

	// ── 1. Stealth injection ──────────────────────────────────────────
	if r.browserCfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", evalErr,
			)
		}
	}

	// ── 2. Emulation ──────────────────────────────────────────────────
	r.emulate(page)

	// ── 3. Hijack router ──────────────────────────────────────────────
	router := setupHijack(page, hijackOptions{
		blockedTypes: r.scraperCfg.BlockedResourceTypes,
		observer:     obs,
		replay:       r.replay,
	})

	return &rodPage{
		page:   page,
		router: router,
		cfg:    r.scraperCfg,
		owner:  true,
	}, nil
}

// emulate applies the realistic desktop profile. Failures are logged and
// ignored; an unemulated page still works.
func (r *Rod) emulate(page *rod.Page) {
	cfg := r.browserCfg
	if cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      cfg.UserAgent,
			AcceptLanguage: cfg.Locale,
		}); err != nil {
			slog.Debug("user agent override failed", "error", err)
		}
	}
	if cfg.Timezone != "" {
		if err := (proto.EmulationSetTimezoneOverride{TimezoneID: cfg.Timezone}).Call(page); err != nil {
			slog.Debug("timezone override failed", "error", err)
		}
	}
	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             cfg.ViewportWidth,
			Height:            cfg.ViewportHeight,
			DeviceScaleFactor: 1,
		}); err != nil {
			slog.Debug("viewport override failed", "error", err)
		}
	}
}

// Close kills the browser process.
// Call this on shutdown to prevent zombie Chrome processes.
func (r *Rod) Close() error {
	slog.Info("closing browser")
	return r.browser.Close()
}
