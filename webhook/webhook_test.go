package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/blotter/config"
	"github.com/use-agent/blotter/models"
)

func sampleReport() *models.BatchReport {
	return &models.BatchReport{
		Results: []models.ScrapeResult{
			{Date: "2025-01-01", Records: []models.ArrestRecord{{Name: models.String("A")}, {Name: models.String("B")}}},
			{Date: "2025-01-03", Records: []models.ArrestRecord{{Name: models.String("C")}}},
		},
		Failures: []models.DateFailure{
			{Date: "2025-01-02", Err: models.NewScrapeError(models.ErrCodeTimeout, "slow", context.DeadlineExceeded)},
		},
	}
}

func TestRunCompleted(t *testing.T) {
	ev := RunCompleted("run-1", sampleReport(), true)
	assert.Equal(t, EventRunCompleted, ev.Type)
	assert.Equal(t, "run-1", ev.RunID)

	summary, ok := ev.Data.(RunSummary)
	require.True(t, ok)
	assert.Equal(t, []string{"2025-01-01", "2025-01-03"}, summary.Dates)
	assert.Equal(t, 3, summary.Records)
	assert.True(t, summary.Uploaded)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, models.ErrCodeTimeout, summary.Failures[0].Error.Code)
}

func TestDeliver_SignsBody(t *testing.T) {
	var (
		gotSig  string
		gotBody []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := New(config.WebhookConfig{URL: srv.URL, Secret: "s3cret"})
	require.NoError(t, n.Deliver(context.Background(), RunCompleted("run-2", sampleReport(), false)))

	assert.Equal(t, Sign("s3cret", gotBody), gotSig)
	assert.True(t, strings.HasPrefix(gotSig, "sha256="))

	var ev struct {
		Type  string `json:"type"`
		RunID string `json:"run_id"`
		Data  struct {
			Records int `json:"records"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &ev))
	assert.Equal(t, EventRunCompleted, ev.Type)
	assert.Equal(t, "run-2", ev.RunID)
	assert.Equal(t, 3, ev.Data.Records)
}

func TestDeliver_NoSecretNoSignature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get(SignatureHeader))
	}))
	defer srv.Close()

	n := New(config.WebhookConfig{URL: srv.URL})
	assert.NoError(t, n.Deliver(context.Background(), RunCompleted("run-3", sampleReport(), false)))
}

func TestSend_RetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(config.WebhookConfig{URL: srv.URL})
	n.delays = []time.Duration{0, time.Millisecond, time.Millisecond, time.Millisecond}

	require.NoError(t, n.Send(context.Background(), RunCompleted("run-4", sampleReport(), false)))
	assert.Equal(t, int32(3), calls.Load())
}

func TestSend_Exhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := New(config.WebhookConfig{URL: srv.URL})
	n.delays = []time.Duration{0, time.Millisecond}

	err := n.Send(context.Background(), RunCompleted("run-5", sampleReport(), false))
	assert.ErrorContains(t, err, "status 500")
	assert.Equal(t, int32(2), calls.Load())
}

func TestSend_ContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := New(config.WebhookConfig{URL: srv.URL})
	n.delays = []time.Duration{0, time.Hour}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := n.Send(ctx, RunCompleted("run-6", sampleReport(), false))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestSendAsyncAndWait(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	n := New(config.WebhookConfig{URL: srv.URL})
	n.SendAsync(RunCompleted("run-7", sampleReport(), false))
	n.SendAsync(RunCompleted("run-8", sampleReport(), false))
	n.Wait()
	assert.Equal(t, int32(2), calls.Load())
}

func TestDisabled(t *testing.T) {
	n := New(config.WebhookConfig{})
	assert.False(t, n.Enabled())
	assert.NoError(t, n.Send(context.Background(), RunCompleted("run-9", sampleReport(), false)))
	n.SendAsync(RunCompleted("run-9", sampleReport(), false))
	n.Wait()
}

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	assert.True(t, strings.HasPrefix(a, "run-"))
	assert.Len(t, a, len("run-")+16)
	assert.NotEqual(t, a, b)
}
