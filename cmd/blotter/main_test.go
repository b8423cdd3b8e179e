package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/blotter/browser"
	"github.com/use-agent/blotter/browser/browsertest"
	"github.com/use-agent/blotter/config"
	"github.com/use-agent/blotter/models"
)

func TestBuildRequest(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name             string
		date, start, end string
		want             *models.ScrapeRequest
		wantCode         string
	}{
		{name: "defaults to yesterday", want: &models.ScrapeRequest{Date: "2025-02-28"}},
		{name: "single date", date: "3/5/2024", want: &models.ScrapeRequest{Date: "2024-03-05"}},
		{name: "range", start: "3/1/2024", end: "2024-03-07",
			want: &models.ScrapeRequest{Start: "2024-03-01", End: "2024-03-07"}},
		{name: "single-day range", start: "2024-03-01", end: "3/1/2024",
			want: &models.ScrapeRequest{Start: "2024-03-01", End: "2024-03-01"}},
		{name: "start without end", start: "2024-03-01", wantCode: models.ErrCodeInvalidInput},
		{name: "end without start", end: "2024-03-01", wantCode: models.ErrCodeInvalidInput},
		{name: "date and range", date: "2024-03-01", start: "2024-03-01", end: "2024-03-02",
			wantCode: models.ErrCodeInvalidInput},
		{name: "impossible date", date: "2025-13-45", wantCode: models.ErrCodeInvalidDate},
		{name: "unparseable date", date: "yesterday", wantCode: models.ErrCodeInvalidDate},
		{name: "bad range start", start: "2024-02-30", end: "2024-03-01", wantCode: models.ErrCodeInvalidDate},
		{name: "bad range end", start: "2024-03-01", end: "03-07-2024", wantCode: models.ErrCodeInvalidDate},
		{name: "start after end", start: "2024-03-07", end: "2024-03-01", wantCode: models.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildRequest(tt.date, tt.start, tt.end, now)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Nil(t, got)
				assert.True(t, models.HasCode(err, tt.wantCode), err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func sampleReport() *models.BatchReport {
	return &models.BatchReport{
		Results: []models.ScrapeResult{{
			Date: "2025-01-02",
			Records: []models.ArrestRecord{
				{Name: models.String("Jane Doe"), BookingNumber: models.String("B1")},
			},
			Diagnostic: models.Diagnostic{Strategy: models.StrategyTable, Pages: 50, PageCapHit: true, Attempts: 2},
		}},
		Failures: []models.DateFailure{{Date: "2025-01-03", Err: context.DeadlineExceeded}},
	}
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	renderSummary(&buf, sampleReport())

	out := buf.String()
	assert.Contains(t, out, "2025-01-02")
	assert.Contains(t, out, "table")
	assert.Contains(t, out, "50 (cap)")
	assert.Contains(t, out, "2025-01-03")
	assert.Contains(t, out, models.ErrCodeTimeout)
	assert.Contains(t, out, "Total")
	assert.Contains(t, out, "1 failed")
}

func TestWriteDump_KeepsNulls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, writeDump(path, sampleReport().Records()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Jane Doe", got[0]["name"])
	v, ok := got[0]["bond"]
	assert.True(t, ok, "absent fields are written")
	assert.Nil(t, v)
	assert.Contains(t, string(data), "\n  {")
}

func TestWriteDump_EmptyIsArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, writeDump(path, nil))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestAllFailed(t *testing.T) {
	assert.False(t, allFailed(sampleReport()))
	assert.True(t, allFailed(&models.BatchReport{Failures: []models.DateFailure{{Date: "2025-01-03"}}}))
	assert.False(t, allFailed(&models.BatchReport{}), "an empty run is not a failure")
}

func TestRunChecks(t *testing.T) {
	var buf bytes.Buffer
	boom := errors.New("boom")
	err := runChecks(context.Background(), &buf, []check{
		{name: "first", run: func(context.Context) (string, error) { return "fine", nil }},
		failedCheck("second", boom),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "second")
	assert.Contains(t, buf.String(), "fine")
	assert.Contains(t, buf.String(), "FAIL")
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Load()
	cfg.Site.EntryURL = "https://portal.test/arrests"
	cfg.Scraper.NavigationTimeout = time.Second
	cfg.Scraper.ActionTimeout = 100 * time.Millisecond
	cfg.Sink.Backend = "sqlite"
	cfg.Sink.SQLitePath = filepath.Join(t.TempDir(), "check.db")
	return cfg
}

func fakeBrowser(html string) *browsertest.Browser {
	return &browsertest.Browser{NewPageFunc: func(int, func(browser.Response)) (browser.Page, error) {
		return browsertest.NewPage("about:blank", html), nil
	}}
}

func TestPortalCheck(t *testing.T) {
	cfg := testConfig(t)

	detail, err := portalCheck(fakeBrowser(`<input type="date" id="d">`), cfg, false).run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "search form found", detail)

	detail, err = portalCheck(fakeBrowser(`<p>maintenance</p>`), cfg, false).run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "portal reachable, no date input found", detail)

	b := fakeBrowser("")
	detail, err = portalCheck(b, cfg, true).run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "page opened", detail)
	assert.Equal(t, 1, b.Opened())
}

func TestPortalCheck_NavigationFails(t *testing.T) {
	b := &browsertest.Browser{NewPageFunc: func(int, func(browser.Response)) (browser.Page, error) {
		p := browsertest.NewPage("about:blank", "")
		p.OnNavigate = func(*browsertest.Page, string) error { return errors.New("net::ERR_NAME_NOT_RESOLVED") }
		return p, nil
	}}
	_, err := portalCheck(b, testConfig(t), false).run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "navigate")
}

func TestConfigCheck(t *testing.T) {
	cfg := testConfig(t)
	_, err := configCheck(fakeBrowser(""), cfg).run(context.Background())
	require.NoError(t, err)

	cfg.Site.JSONURLPattern = "("
	_, err = configCheck(fakeBrowser(""), cfg).run(context.Background())
	require.Error(t, err)

	cfg = testConfig(t)
	cfg.Sink.Mode = "upsert"
	_, err = configCheck(fakeBrowser(""), cfg).run(context.Background())
	require.Error(t, err)
}

func TestSinkCheck(t *testing.T) {
	cfg := testConfig(t)
	detail, err := sinkCheck(cfg.Sink).run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, detail, cfg.Sink.Destination)

	cfg.Sink.Backend = "parquet"
	_, err = sinkCheck(cfg.Sink).run(context.Background())
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.ErrCodeInvalidInput))
}
