package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/blotter/models"
	"github.com/use-agent/blotter/webhook"
)

// Runner runs the batch a request describes.
type Runner interface {
	RunRequest(ctx context.Context, req *models.ScrapeRequest) (*models.BatchReport, error)
}

// UploadFunc pushes the aggregate to the sink.
type UploadFunc func(ctx context.Context, records []models.ArrestRecord) (int, error)

// Scrape returns a handler for POST /api/v1/scrape.
//
// Orchestration flow:
//  1. Parse & validate the date form.
//  2. Claim the gate; a concurrent run gets 409.
//  3. Run the batch                          (records scrape_ms)
//  4. Upload when requested                  (records upload_ms)
//  5. Notify the webhook, respond.
func Scrape(runner Runner, upload UploadFunc, notifier *webhook.Notifier, gate *Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err), models.TimingInfo{})
			return
		}
		if err := req.Validate(); err != nil {
			respondError(c, err, models.TimingInfo{})
			return
		}

		// ── 2. One run at a time ────────────────────────────────────
		if !gate.TryEnter() {
			respondError(c, models.NewScrapeError(models.ErrCodeConflict,
				"a scrape run is already in progress", nil), models.TimingInfo{})
			return
		}
		defer gate.Leave()

		// ── 3. Run ──────────────────────────────────────────────────
		scrapeStart := time.Now()
		report, err := runner.RunRequest(c.Request.Context(), &req)
		scrapeMs := time.Since(scrapeStart).Milliseconds()
		if err != nil {
			respondError(c, err, models.TimingInfo{
				TotalMs:  time.Since(totalStart).Milliseconds(),
				ScrapeMs: scrapeMs,
			})
			return
		}
		resp := models.NewResponse(report)

		// ── 4. Upload ───────────────────────────────────────────────
		status := http.StatusOK
		var uploadMs int64
		if req.Upload && len(resp.Records) > 0 {
			uploadStart := time.Now()
			_, err := upload(c.Request.Context(), resp.Records)
			uploadMs = time.Since(uploadStart).Milliseconds()
			if err != nil {
				// The records still go back to the caller.
				se := asScrapeError(err)
				resp.Success = false
				resp.Error = &models.ErrorDetail{Code: se.Code, Message: err.Error()}
				status = mapErrorToStatus(se)
			} else {
				resp.Uploaded = true
			}
		}

		// ── 5. Notify & respond ─────────────────────────────────────
		notifier.SendAsync(webhook.RunCompleted(webhook.NewRunID(), report, resp.Uploaded))

		resp.Timing = models.TimingInfo{
			TotalMs:  time.Since(totalStart).Milliseconds(),
			ScrapeMs: scrapeMs,
			UploadMs: uploadMs,
		}
		c.JSON(status, resp)
	}
}

func asScrapeError(err error) *models.ScrapeError {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se
	}
	return models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
}

// respondError maps a ScrapeError to the correct HTTP status code and writes
// a structured JSON error response.
func respondError(c *gin.Context, err error, timing models.TimingInfo) {
	se := asScrapeError(err)
	c.JSON(mapErrorToStatus(se), models.ScrapeResponse{
		Success: false,
		Records: []models.ArrestRecord{},
		Error:   se.ToDetail(),
		Timing:  timing,
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeInvalidInput, models.ErrCodeInvalidDate:
		return http.StatusBadRequest // 400
	case models.ErrCodeConflict:
		return http.StatusConflict // 409
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeSinkFailure, models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	default:
		return http.StatusInternalServerError // 500
	}
}
