package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/use-agent/blotter/browser"
	"github.com/use-agent/blotter/config"
	"github.com/use-agent/blotter/resolver"
	"github.com/use-agent/blotter/session"
	"github.com/use-agent/blotter/sink"
)

// check is one environment test. run returns a short detail for the table.
type check struct {
	name string
	run  func(ctx context.Context) (string, error)
}

func newCheckCmd(a *app) *cobra.Command {
	var offline, skipSink bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the browser, the portal and the sink are usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			ctx := cmd.Context()

			b, err := browser.Launch(cfg.Browser, cfg.Scraper)
			if err != nil {
				return runChecks(ctx, cmd.OutOrStdout(), []check{failedCheck("browser", err)})
			}
			defer func() {
				if err := b.Close(); err != nil {
					slog.Warn("browser close failed", "error", err)
				}
			}()

			checks := []check{configCheck(b, cfg), portalCheck(b, cfg, offline)}
			if !skipSink {
				checks = append(checks, sinkCheck(cfg.Sink))
			}
			return runChecks(ctx, cmd.OutOrStdout(), checks)
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "open a blank page instead of the portal")
	cmd.Flags().BoolVar(&skipSink, "skip-sink", false, "do not contact the sink")
	return cmd
}

// runChecks runs every check, renders the outcome and fails if any check did.
func runChecks(ctx context.Context, w io.Writer, checks []check) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Check", "Status", "Detail"})

	var errs []error
	for _, p := range checks {
		detail, err := p.run(ctx)
		status := "ok"
		if err != nil {
			status = "FAIL"
			detail = err.Error()
			errs = append(errs, fmt.Errorf("%s: %w", p.name, err))
		}
		t.AppendRow(table.Row{p.name, status, detail})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
	return errors.Join(errs...)
}

func failedCheck(name string, err error) check {
	return check{name: name, run: func(context.Context) (string, error) { return "", err }}
}

// configCheck validates the settings a session depends on.
func configCheck(b browser.Browser, cfg *config.Config) check {
	return check{name: "config", run: func(context.Context) (string, error) {
		if _, err := session.New(b, cfg); err != nil {
			return "", err
		}
		if _, err := sink.ParseMode(cfg.Sink.Mode); err != nil {
			return "", err
		}
		return fmt.Sprintf("entry %s, %d attempt(s), cap %d page(s)",
			cfg.Site.EntryURL, cfg.Retry.MaxAttempts, cfg.Scraper.MaxPages), nil
	}}
}

// portalCheck opens a page and, unless offline, loads the entry URL and
// looks for the search form the way a session would.
func portalCheck(b browser.Browser, cfg *config.Config, offline bool) check {
	return check{name: "portal", run: func(ctx context.Context) (string, error) {
		page, err := b.NewPage(ctx, nil)
		if err != nil {
			return "", fmt.Errorf("open page: %w", err)
		}
		defer page.Close()

		if offline {
			return "page opened", nil
		}

		navCtx, cancel := context.WithTimeout(ctx, cfg.Scraper.NavigationTimeout)
		defer cancel()
		if err := page.Navigate(navCtx, cfg.Site.EntryURL); err != nil {
			return "", fmt.Errorf("navigate: %w", err)
		}
		if err := page.WaitSettled(navCtx); err != nil {
			return "", fmt.Errorf("wait load: %w", err)
		}

		r := resolver.New(cfg.Scraper)
		r.FollowQuickLink(ctx, page, cfg.Site.QuickLinkLabels)
		form, inFrame := r.FindSearchFrame(ctx, page)
		switch {
		case inFrame:
			return "search form found inside iframe", nil
		case r.HasDateInput(ctx, form):
			return "search form found", nil
		default:
			return "portal reachable, no date input found", nil
		}
	}}
}

// sinkCheck opens the configured backend and ensures the destination.
func sinkCheck(cfg config.SinkConfig) check {
	return check{name: "sink", run: func(ctx context.Context) (string, error) {
		t, err := sink.Open(ctx, cfg)
		if err != nil {
			return "", err
		}
		defer t.Close()
		if err := t.Ensure(ctx, cfg.Destination); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s destination %q ready", cfg.Backend, cfg.Destination), nil
	}}
}
