package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"github.com/use-agent/blotter/api/handler"
	"github.com/use-agent/blotter/batch"
	"github.com/use-agent/blotter/browser"
	"github.com/use-agent/blotter/cache"
	"github.com/use-agent/blotter/mcpserver"
	"github.com/use-agent/blotter/models"
	"github.com/use-agent/blotter/session"
	"github.com/use-agent/blotter/sink"
	"github.com/use-agent/blotter/webhook"
)

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the scrape_arrests tool over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg

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
			results := cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
			defer results.Close()
			driver := batch.New(cache.Wrap(sc, results), cfg.Batch)
			upload := func(ctx context.Context, records []models.ArrestRecord) (int, error) {
				return sink.Publish(ctx, cfg.Sink, records)
			}
			notifier := webhook.New(cfg.Webhook)
			defer notifier.Wait()

			// stdout carries the protocol; logs already go to stderr.
			slog.Info("mcp server starting", "tool", mcpserver.ToolScrapeArrests)
			s := mcpserver.New(driver, upload, notifier, handler.Version)
			if err := server.ServeStdio(s); err != nil {
				return fmt.Errorf("mcp server: %w", err)
			}
			return nil
		},
	}
}
