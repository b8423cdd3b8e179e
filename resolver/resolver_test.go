package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/blotter/browser/browsertest"
	"github.com/use-agent/blotter/config"
	"github.com/use-agent/blotter/dates"
)

func newTestResolver() *Resolver {
	return New(config.ScraperConfig{
		ActionTimeout: time.Second,
		ClickTimeout:  time.Second,
	})
}

func TestFillDate_ISOAccepted(t *testing.T) {
	p := browsertest.NewPage("https://example.test", `<form><input type="date" id="d"></form>`)
	r := newTestResolver()

	ok := r.FillDate(context.Background(), p, dates.MustNormalize("2025-03-04"))
	require.True(t, ok)
	assert.Equal(t, "2025-03-04", p.Doc().Find("#d").AttrOr("value", ""))
}

func TestFillDate_FallsBackToUSFormat(t *testing.T) {
	p := browsertest.NewPage("https://example.test",
		`<input type="text" name="arrestDate" data-reject-format="iso">`)
	r := newTestResolver()

	ok := r.FillDate(context.Background(), p, dates.MustNormalize("2025-03-04"))
	require.True(t, ok)
	assert.Equal(t, "03/04/2025", p.Doc().Find("input").AttrOr("value", ""))
}

func TestFillDate_SkipsBrokenCandidate(t *testing.T) {
	p := browsertest.NewPage("https://example.test", `
		<input type="date" data-broken>
		<input type="text" id="bookingDate">`)
	r := newTestResolver()

	ok := r.FillDate(context.Background(), p, dates.MustNormalize("2025-01-02"))
	require.True(t, ok)
	assert.Equal(t, "2025-01-02", p.Doc().Find("#bookingDate").AttrOr("value", ""))
}

func TestFillDate_NoCandidate(t *testing.T) {
	p := browsertest.NewPage("https://example.test", `<input type="text" name="q">`)
	assert.False(t, newTestResolver().FillDate(context.Background(), p, dates.MustNormalize("2025-01-02")))
}

func TestFillGenericDates_FromAndTo(t *testing.T) {
	p := browsertest.NewPage("https://example.test", `
		<input type="text" id="fromDate" name="fromDate">
		<input type="text" id="toDate" name="toDate">
		<input type="text" id="otherDate">`)
	r := newTestResolver()

	ok := r.FillGenericDates(context.Background(), p, dates.MustNormalize("2025-01-02"))
	require.True(t, ok)
	assert.Equal(t, "2025-01-02", p.Doc().Find("#fromDate").AttrOr("value", ""))
	assert.Equal(t, "2025-01-02", p.Doc().Find("#toDate").AttrOr("value", ""))
	assert.Equal(t, "", p.Doc().Find("#otherDate").AttrOr("value", ""))
}

func TestSubmitSearch_ClicksVisibleEnabledButton(t *testing.T) {
	p := browsertest.NewPage("https://example.test", `
		<button id="hidden" style="display: none">Search</button>
		<button id="off" disabled>Search</button>
		<button id="go">Search</button>`)

	ok := newTestResolver().SubmitSearch(context.Background(), p)
	require.True(t, ok)
	assert.Equal(t, []string{"click: button#go"}, p.Log())
}

func TestSubmitSearch_TextFilter(t *testing.T) {
	p := browsertest.NewPage("https://example.test", `
		<button id="reset">Reset</button>
		<button id="submit">Submit Query</button>`)

	require.True(t, newTestResolver().SubmitSearch(context.Background(), p))
	assert.Equal(t, []string{"click: button#submit"}, p.Log())
}

func TestSubmitSearch_EnterFallback(t *testing.T) {
	p := browsertest.NewPage("https://example.test", `<input type="date" id="d">`)

	require.True(t, newTestResolver().SubmitSearch(context.Background(), p))
	assert.Equal(t, []string{"enter: input#d"}, p.Log())
}

func TestSubmitSearch_Nothing(t *testing.T) {
	p := browsertest.NewPage("https://example.test", `<p>closed for maintenance</p>`)
	assert.False(t, newTestResolver().SubmitSearch(context.Background(), p))
}

func TestPaginate_UntilDisabled(t *testing.T) {
	p := browsertest.NewPage("https://example.test", `<a id="next" href="#">Next</a>`)
	clicks := 0
	p.OnClick = func(p *browsertest.Page, el *browsertest.Element) error {
		clicks++
		if clicks == 2 {
			el.Selection().AddClass("disabled")
		}
		return nil
	}

	stats := newTestResolver().Paginate(context.Background(), p, 50)
	assert.Equal(t, 2, stats.Pages)
	assert.False(t, stats.Capped)
}

func TestPaginate_Cap(t *testing.T) {
	p := browsertest.NewPage("https://example.test", `<button>Load More</button>`)

	stats := newTestResolver().Paginate(context.Background(), p, 3)
	assert.Equal(t, 3, stats.Pages)
	assert.True(t, stats.Capped)
	assert.Len(t, p.Log(), 3)
}

func TestPaginate_FallsThroughFailingControl(t *testing.T) {
	p := browsertest.NewPage("https://example.test", `
		<a id="next" data-broken href="#">Next</a>
		<button id="more">Load More</button>`)
	clicks := 0
	p.OnClick = func(p *browsertest.Page, el *browsertest.Element) error {
		clicks++
		if clicks == 2 {
			el.Selection().SetAttr("disabled", "")
		}
		return nil
	}

	stats := newTestResolver().Paginate(context.Background(), p, 50)
	assert.Equal(t, 2, stats.Pages)
	assert.False(t, stats.Capped)
	assert.Equal(t, []string{"click: button#more", "click: button#more"}, p.Log())
}

func TestPaginate_AllControlsFail(t *testing.T) {
	p := browsertest.NewPage("https://example.test", `
		<a data-broken href="#">Next</a>
		<button data-broken>Load More</button>`)

	stats := newTestResolver().Paginate(context.Background(), p, 50)
	assert.Zero(t, stats.Pages)
	assert.False(t, stats.Capped)
	assert.Empty(t, p.Log())
}

func TestPaginate_NoControl(t *testing.T) {
	p := browsertest.NewPage("https://example.test", `<table></table>`)
	stats := newTestResolver().Paginate(context.Background(), p, 3)
	assert.Zero(t, stats.Pages)
	assert.False(t, stats.Capped)
}

func TestPaginate_StopsOnCancelledContext(t *testing.T) {
	p := browsertest.NewPage("https://example.test", `<a rel="next" href="#">more</a>`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats := newTestResolver().Paginate(ctx, p, 10)
	assert.Zero(t, stats.Pages)
}

func TestFollowQuickLink(t *testing.T) {
	p := browsertest.NewPage("https://example.test", `
		<a id="home" href="/">Home</a>
		<a id="arrests" href="/arrests">Arrests &amp; Inmates</a>`)

	ok := newTestResolver().FollowQuickLink(context.Background(), p,
		[]string{"Arrests & Inmates", "Arrest Inquiry"})
	require.True(t, ok)
	assert.Equal(t, []string{"click: a#arrests"}, p.Log())
}

func TestFollowQuickLink_Absent(t *testing.T) {
	p := browsertest.NewPage("https://example.test", `<a href="/">Home</a>`)
	assert.False(t, newTestResolver().FollowQuickLink(context.Background(), p, nil))
	assert.Empty(t, p.Log())
}

func TestFindSearchFrame(t *testing.T) {
	top := browsertest.NewPage("https://example.test", `<iframe src="/a"></iframe><iframe src="/b"></iframe>`)
	ads := browsertest.NewPage("https://example.test/a", `<div>advert</div>`)
	form := browsertest.NewPage("https://example.test/b", `<input type="date">`)
	top.AddFrame(ads)
	top.AddFrame(form)

	got, inFrame := newTestResolver().FindSearchFrame(context.Background(), top)
	assert.True(t, inFrame)
	assert.Same(t, form, got)
}

func TestFindSearchFrame_TopDocument(t *testing.T) {
	top := browsertest.NewPage("https://example.test", `<input name="searchDate"><iframe></iframe>`)
	top.AddFrame(browsertest.NewPage("https://example.test/f", `<input type="date">`))

	got, inFrame := newTestResolver().FindSearchFrame(context.Background(), top)
	assert.False(t, inFrame)
	assert.Same(t, top, got)
}

func TestFindSearchFrame_NoFrames(t *testing.T) {
	top := browsertest.NewPage("https://example.test", `<p>nothing</p>`)
	got, inFrame := newTestResolver().FindSearchFrame(context.Background(), top)
	assert.False(t, inFrame)
	assert.Same(t, top, got)
}
