package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/blotter/dates"
	"github.com/use-agent/blotter/models"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestCache(max int, ttl time.Duration) (*Cache, *clock) {
	clk := &clock{t: time.Date(2025, 1, 3, 8, 0, 0, 0, time.UTC)}
	c := New(max, ttl)
	c.now = clk.now
	return c, clk
}

func result(date string, n int) *models.ScrapeResult {
	recs := make([]models.ArrestRecord, n)
	return &models.ScrapeResult{Date: date, Records: recs}
}

func TestGetSet(t *testing.T) {
	c, clk := newTestCache(4, time.Minute)
	defer c.Close()

	_, ok := c.Get("2025-01-02")
	assert.False(t, ok)

	c.Set(result("2025-01-02", 3))
	got, ok := c.Get("2025-01-02")
	require.True(t, ok)
	assert.Len(t, got.Records, 3)

	clk.t = clk.t.Add(2 * time.Minute)
	_, ok = c.Get("2025-01-02")
	assert.False(t, ok, "expired entries are not served")
}

func TestSet_EvictsOldest(t *testing.T) {
	c, clk := newTestCache(2, time.Hour)
	defer c.Close()

	c.Set(result("2025-01-01", 1))
	clk.t = clk.t.Add(time.Second)
	c.Set(result("2025-01-02", 1))
	clk.t = clk.t.Add(time.Second)
	c.Set(result("2025-01-03", 1))

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("2025-01-01")
	assert.False(t, ok)
	_, ok = c.Get("2025-01-03")
	assert.True(t, ok)
}

func TestSet_OverwriteDoesNotEvict(t *testing.T) {
	c, _ := newTestCache(2, time.Hour)
	defer c.Close()

	c.Set(result("2025-01-01", 1))
	c.Set(result("2025-01-02", 1))
	c.Set(result("2025-01-02", 5))

	assert.Equal(t, 2, c.Len())
	got, ok := c.Get("2025-01-02")
	require.True(t, ok)
	assert.Len(t, got.Records, 5)
}

func TestDisabled(t *testing.T) {
	c := New(8, 0)
	defer c.Close()
	c.Set(result("2025-01-01", 1))
	assert.Equal(t, 0, c.Len())
}

func TestEvictExpired(t *testing.T) {
	c, clk := newTestCache(8, time.Minute)
	defer c.Close()

	c.Set(result("2025-01-01", 1))
	clk.t = clk.t.Add(30 * time.Second)
	c.Set(result("2025-01-02", 1))
	clk.t = clk.t.Add(45 * time.Second)

	c.evictExpired()
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("2025-01-02")
	assert.True(t, ok)
}

type countingScraper struct {
	calls int
	err   error
}

func (s *countingScraper) Scrape(_ context.Context, d dates.Date) (*models.ScrapeResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return result(d.String(), 2), nil
}

func TestCached(t *testing.T) {
	c, _ := newTestCache(8, time.Hour)
	defer c.Close()
	inner := &countingScraper{}
	s := Wrap(inner, c)
	d := dates.MustNormalize("1/2/2025")

	first, err := s.Scrape(context.Background(), d)
	require.NoError(t, err)
	assert.False(t, first.Diagnostic.Cached)

	second, err := s.Scrape(context.Background(), d)
	require.NoError(t, err)
	assert.True(t, second.Diagnostic.Cached)
	assert.Len(t, second.Records, 2)
	assert.Equal(t, 1, inner.calls)

	stored, _ := c.Get("2025-01-02")
	assert.False(t, stored.Diagnostic.Cached, "hits do not mark the stored entry")
}

func TestCached_FailuresNotStored(t *testing.T) {
	c, _ := newTestCache(8, time.Hour)
	defer c.Close()
	inner := &countingScraper{err: errors.New("boom")}
	s := Wrap(inner, c)
	d := dates.MustNormalize("2025-01-02")

	_, err := s.Scrape(context.Background(), d)
	require.Error(t, err)
	_, err = s.Scrape(context.Background(), d)
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 0, c.Len())
}
