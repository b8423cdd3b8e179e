package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/blotter/api"
	"github.com/use-agent/blotter/batch"
	"github.com/use-agent/blotter/browser"
	"github.com/use-agent/blotter/cache"
	"github.com/use-agent/blotter/models"
	"github.com/use-agent/blotter/session"
	"github.com/use-agent/blotter/sink"
	"github.com/use-agent/blotter/webhook"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP trigger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			ctx := cmd.Context()

			slog.Info("blotter starting",
				"host", cfg.Server.Host,
				"port", cfg.Server.Port,
				"mode", cfg.Server.Mode,
				"sink", cfg.Sink.Backend,
			)

			// ── 1. Launch the browser ───────────────────────────────
			b, err := browser.Launch(cfg.Browser, cfg.Scraper)
			if err != nil {
				return fmt.Errorf("launch browser: %w", err)
			}
			defer func() {
				if err := b.Close(); err != nil {
					slog.Warn("browser close failed", "error", err)
				}
			}()

			// ── 2. Session, batch driver and collaborators ──────────
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

			// ── 3. Setup router ─────────────────────────────────────
			router := api.NewRouter(driver, upload, notifier, cfg, time.Now())

			// ── 4. Start HTTP server ────────────────────────────────
			addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
			srv := &http.Server{
				Addr:    addr,
				Handler: router,
			}

			errCh := make(chan error, 1)
			go func() {
				slog.Info("HTTP server listening", "addr", addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			// ── 5. Graceful shutdown ────────────────────────────────
			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
			case <-ctx.Done():
				slog.Info("shutdown signal received")
			}

			// Give in-flight requests 5 seconds to complete. A run in
			// progress is cut short by the browser closing afterwards.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("HTTP server forced shutdown", "error", err)
			} else {
				slog.Info("HTTP server drained gracefully")
			}

			notifier.Wait()
			slog.Info("blotter stopped")
			return nil
		},
	}
}
