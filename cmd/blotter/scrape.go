package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/blotter/batch"
	"github.com/use-agent/blotter/browser"
	"github.com/use-agent/blotter/config"
	"github.com/use-agent/blotter/models"
	"github.com/use-agent/blotter/session"
	"github.com/use-agent/blotter/sink"
	"github.com/use-agent/blotter/webhook"
)

type scrapeFlags struct {
	date, start, end string
	headful          bool
	noUpload         bool
	output           string
	sink             string
	maxPages         int
}

func newScrapeCmd(a *app) *cobra.Command {
	f := &scrapeFlags{}
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape one date or an inclusive range and upload the records",
		Example: `  blotter scrape --date 2024-03-05
  blotter scrape --start 3/1/2024 --end 3/7/2024 --output week.json --no-upload`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("headful") {
				a.cfg.Browser.Headless = !f.headful
			}
			if f.sink != "" {
				a.cfg.Sink.Backend = f.sink
			}
			if f.maxPages > 0 {
				a.cfg.Scraper.MaxPages = f.maxPages
			}
			return runScrape(cmd, a.cfg, f)
		},
	}
	cmd.Flags().StringVar(&f.date, "date", "", "single date, YYYY-MM-DD or M/D/YYYY")
	cmd.Flags().StringVar(&f.start, "start", "", "first date of an inclusive range")
	cmd.Flags().StringVar(&f.end, "end", "", "last date of an inclusive range")
	cmd.Flags().BoolVar(&f.headful, "headful", false, "show the browser window")
	cmd.Flags().BoolVar(&f.noUpload, "no-upload", false, "skip the sink upload")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "write the records to this JSON file")
	cmd.Flags().StringVar(&f.sink, "sink", "", "sink backend: sqlite or mongo")
	cmd.Flags().IntVar(&f.maxPages, "max-pages", 0, "pagination cap per date")
	cmd.MarkFlagsMutuallyExclusive("date", "start")
	cmd.MarkFlagsMutuallyExclusive("date", "end")
	cmd.MarkFlagsRequiredTogether("start", "end")
	return cmd
}

func runScrape(cmd *cobra.Command, cfg *config.Config, f *scrapeFlags) error {
	ctx := cmd.Context()

	// ── 1. Resolve the dates ────────────────────────────────────────
	req, err := buildRequest(f.date, f.start, f.end, time.Now())
	if err != nil {
		return err
	}
	if !f.noUpload {
		// Catch a bad sink setting before spending minutes in the browser.
		if _, err := sink.ParseMode(cfg.Sink.Mode); err != nil {
			return err
		}
	}

	// ── 2. Launch the browser ───────────────────────────────────────
	b, err := browser.Launch(cfg.Browser, cfg.Scraper)
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			slog.Warn("browser close failed", "error", err)
		}
	}()

	sc, err := session.New(b, cfg)
	if err != nil {
		return err
	}

	// ── 3. Run the batch ────────────────────────────────────────────
	report, err := batch.New(sc, cfg.Batch).RunRequest(ctx, req)
	if err != nil {
		return err
	}
	renderSummary(cmd.OutOrStdout(), report)
	records := report.Records()

	// ── 4. Dump before upload so the data survives a sink failure ──
	if f.output != "" {
		if err := writeDump(f.output, records); err != nil {
			return err
		}
		slog.Info("records written", "path", f.output, "records", len(records))
	}

	// ── 5. Upload ───────────────────────────────────────────────────
	var sinkErr error
	uploaded := false
	if !f.noUpload && len(records) > 0 {
		n, err := sink.Publish(ctx, cfg.Sink, records)
		if err != nil {
			sinkErr = err
			slog.Error("upload failed", "backend", cfg.Sink.Backend, "error", err)
		} else {
			uploaded = true
			slog.Info("upload complete",
				"backend", cfg.Sink.Backend,
				"destination", cfg.Sink.Destination,
				"rows", n,
			)
		}
	}

	// ── 6. Notify ───────────────────────────────────────────────────
	if n := webhook.New(cfg.Webhook); n.Enabled() {
		// The CLI exits right after, so delivery is synchronous.
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
		if err := n.Send(notifyCtx, webhook.RunCompleted(webhook.NewRunID(), report, uploaded)); err != nil {
			slog.Warn("run notification not delivered", "error", err)
		}
		cancel()
	}

	// ── 7. Exit status ──────────────────────────────────────────────
	if sinkErr != nil {
		return sinkErr
	}
	if allFailed(report) {
		return models.NewScrapeError(models.ErrCodeInternal,
			fmt.Sprintf("all %d date(s) failed", len(report.Failures)),
			errors.Join(failureErrors(report)...))
	}
	return nil
}

func failureErrors(report *models.BatchReport) []error {
	errs := make([]error, 0, len(report.Failures))
	for _, f := range report.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}
