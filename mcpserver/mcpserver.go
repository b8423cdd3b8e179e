// Package mcpserver exposes arrest scraping as a Model Context Protocol tool
// so agent clients can request dates over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/blotter/dates"
	"github.com/use-agent/blotter/models"
	"github.com/use-agent/blotter/webhook"
)

// ToolScrapeArrests is the name of the only tool served.
const ToolScrapeArrests = "scrape_arrests"

// Runner runs a scrape request to completion.
type Runner interface {
	RunRequest(ctx context.Context, req *models.ScrapeRequest) (*models.BatchReport, error)
}

// UploadFunc pushes the aggregate to the sink.
type UploadFunc func(ctx context.Context, records []models.ArrestRecord) (int, error)

// New builds the MCP server. Tool calls are served one at a time; a second
// call waits for the first to finish.
func New(runner Runner, upload UploadFunc, notifier *webhook.Notifier, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"blotter",
		version,
		server.WithToolCapabilities(false),
	)

	tool := mcp.NewTool(ToolScrapeArrests,
		mcp.WithDescription("Scrape arrest records from the sheriff's arrest portal for one date or an inclusive date range. Returns the deduplicated records as JSON, with per-date diagnostics and any failed dates."),
		mcp.WithString("date",
			mcp.Description("Single date, YYYY-MM-DD or M/D/YYYY. Defaults to yesterday when no date is given."),
		),
		mcp.WithString("start",
			mcp.Description("First date of an inclusive range; requires end."),
		),
		mcp.WithString("end",
			mcp.Description("Last date of an inclusive range; requires start."),
		),
		mcp.WithBoolean("upload",
			mcp.Description("Also write the records to the configured sink (default: false)."),
		),
	)
	s.AddTool(tool, handleScrapeArrests(runner, upload, notifier, time.Now))

	return s
}

func handleScrapeArrests(runner Runner, upload UploadFunc, notifier *webhook.Notifier, now func() time.Time) server.ToolHandlerFunc {
	var mu sync.Mutex

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		req := &models.ScrapeRequest{
			Date:   request.GetString("date", ""),
			Start:  request.GetString("start", ""),
			End:    request.GetString("end", ""),
			Upload: request.GetBool("upload", false),
		}
		if req.Date == "" && req.Start == "" && req.End == "" {
			req.Date = dates.Yesterday(now()).String()
		}
		if err := req.Validate(); err != nil {
			return toolError(err), nil
		}

		mu.Lock()
		defer mu.Unlock()

		start := time.Now()
		report, err := runner.RunRequest(ctx, req)
		if err != nil {
			return toolError(err), nil
		}
		resp := models.NewResponse(report)
		resp.Timing.ScrapeMs = time.Since(start).Milliseconds()

		if req.Upload && len(resp.Records) > 0 {
			uploadStart := time.Now()
			if _, err := upload(ctx, resp.Records); err != nil {
				// Records are still returned; the error rides along.
				resp.Success = false
				resp.Error = &models.ErrorDetail{Code: codeOf(err), Message: err.Error()}
			} else {
				resp.Uploaded = true
			}
			resp.Timing.UploadMs = time.Since(uploadStart).Milliseconds()
		}
		resp.Timing.TotalMs = time.Since(start).Milliseconds()

		notifier.SendAsync(webhook.RunCompleted(webhook.NewRunID(), report, resp.Uploaded))

		body, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
		}

		summary := fmt.Sprintf("Scraped %d record(s) across %d date(s); %d date(s) failed.",
			len(resp.Records), len(report.Results)+len(report.Failures), len(report.Failures))
		if resp.Uploaded {
			summary += " Uploaded to the sink."
		}
		if resp.Error != nil {
			summary += fmt.Sprintf(" Upload failed: [%s] %s", resp.Error.Code, resp.Error.Message)
		}
		return mcp.NewToolResultText(summary + "\n\n" + string(body)), nil
	}
}

func codeOf(err error) string {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se.Code
	}
	return models.ErrCodeInternal
}

func toolError(err error) *mcp.CallToolResult {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", se.Code, se.Message))
	}
	return mcp.NewToolResultError(err.Error())
}
