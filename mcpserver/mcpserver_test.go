package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/blotter/models"
)

type fakeRunner struct {
	got    []*models.ScrapeRequest
	report *models.BatchReport
	err    error
}

func (f *fakeRunner) RunRequest(_ context.Context, req *models.ScrapeRequest) (*models.BatchReport, error) {
	f.got = append(f.got, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

func oneDate() *models.BatchReport {
	return &models.BatchReport{
		Results: []models.ScrapeResult{{
			Date:       "2025-01-02",
			Records:    []models.ArrestRecord{{Name: models.String("Jane Doe")}},
			Diagnostic: models.Diagnostic{Strategy: models.StrategyTable, Attempts: 1},
		}},
		Failures: []models.DateFailure{},
	}
}

func fixedNow() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }

func call(t *testing.T, runner Runner, upload UploadFunc, args map[string]any) (*mcp.CallToolResult, string) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Name = ToolScrapeArrests
	req.Params.Arguments = args

	res, err := handleScrapeArrests(runner, upload, nil, fixedNow)(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return res, text.Text
}

func decode(t *testing.T, text string) models.ScrapeResponse {
	t.Helper()
	i := strings.Index(text, "{")
	require.GreaterOrEqual(t, i, 0)
	var resp models.ScrapeResponse
	require.NoError(t, json.Unmarshal([]byte(text[i:]), &resp))
	return resp
}

func noUpload(context.Context, []models.ArrestRecord) (int, error) {
	panic("upload not expected")
}

func TestScrapeArrests_SingleDate(t *testing.T) {
	runner := &fakeRunner{report: oneDate()}
	res, text := call(t, runner, noUpload, map[string]any{"date": "1/2/2025"})

	assert.False(t, res.IsError)
	require.Len(t, runner.got, 1)
	assert.Equal(t, "1/2/2025", runner.got[0].Date)
	assert.Contains(t, text, "Scraped 1 record(s) across 1 date(s); 0 date(s) failed.")

	resp := decode(t, text)
	assert.True(t, resp.Success)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "Jane Doe", *resp.Records[0].Name)
}

func TestScrapeArrests_DefaultsToYesterday(t *testing.T) {
	runner := &fakeRunner{report: oneDate()}
	_, _ = call(t, runner, noUpload, map[string]any{})

	require.Len(t, runner.got, 1)
	assert.Equal(t, "2025-02-28", runner.got[0].Date)
}

func TestScrapeArrests_Range(t *testing.T) {
	runner := &fakeRunner{report: oneDate()}
	_, _ = call(t, runner, noUpload, map[string]any{"start": "2025-01-01", "end": "2025-01-03"})

	require.Len(t, runner.got, 1)
	assert.Equal(t, "2025-01-01", runner.got[0].Start)
	assert.Equal(t, "2025-01-03", runner.got[0].End)
}

func TestScrapeArrests_InvalidArguments(t *testing.T) {
	tests := []map[string]any{
		{"start": "2025-01-01"},
		{"date": "2025-01-01", "end": "2025-01-02"},
	}
	for _, args := range tests {
		runner := &fakeRunner{report: oneDate()}
		res, text := call(t, runner, noUpload, args)
		assert.True(t, res.IsError, args)
		assert.Contains(t, text, models.ErrCodeInvalidInput)
		assert.Empty(t, runner.got, "nothing runs for invalid arguments")
	}
}

func TestScrapeArrests_RunnerError(t *testing.T) {
	runner := &fakeRunner{err: models.NewScrapeError(models.ErrCodeInvalidDate, "unrecognized date format: 2025-13-45", nil)}
	res, text := call(t, runner, noUpload, map[string]any{"date": "2025-13-45"})

	assert.True(t, res.IsError)
	assert.Equal(t, "[INVALID_DATE_FORMAT] unrecognized date format: 2025-13-45", text)
}

func TestScrapeArrests_Upload(t *testing.T) {
	var uploaded []models.ArrestRecord
	upload := func(_ context.Context, recs []models.ArrestRecord) (int, error) {
		uploaded = recs
		return len(recs), nil
	}
	res, text := call(t, &fakeRunner{report: oneDate()}, upload, map[string]any{"date": "2025-01-02", "upload": true})

	assert.False(t, res.IsError)
	assert.Len(t, uploaded, 1)
	assert.Contains(t, text, "Uploaded to the sink.")
	assert.True(t, decode(t, text).Uploaded)
}

func TestScrapeArrests_UploadFailureKeepsRecords(t *testing.T) {
	upload := func(context.Context, []models.ArrestRecord) (int, error) {
		return 0, models.NewScrapeError(models.ErrCodeSinkFailure, "failed to open sink", errors.New("dial tcp: refused"))
	}
	res, text := call(t, &fakeRunner{report: oneDate()}, upload, map[string]any{"date": "2025-01-02", "upload": true})

	assert.False(t, res.IsError, "the scrape itself succeeded")
	assert.Contains(t, text, "Upload failed: [SINK_FAILURE]")
	resp := decode(t, text)
	assert.False(t, resp.Success)
	assert.False(t, resp.Uploaded)
	assert.Len(t, resp.Records, 1)
	require.NotNil(t, resp.Error)
	assert.Equal(t, models.ErrCodeSinkFailure, resp.Error.Code)
}

func TestNew(t *testing.T) {
	assert.NotNil(t, New(&fakeRunner{}, noUpload, nil, "test"))
}
