package browsertest

import (
	"context"
	"sync/atomic"

	"github.com/use-agent/blotter/browser"
)

// Browser is a fake browser.Browser. NewPageFunc builds the page for each
// call; attempt counts from 1. The observe func it receives drops responses
// the observer does not want, as the rod hijack does.
type Browser struct {
	NewPageFunc func(attempt int, observe func(browser.Response)) (browser.Page, error)

	opened atomic.Int32
	closed atomic.Bool
}

func (b *Browser) NewPage(ctx context.Context, obs browser.Observer) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := b.opened.Add(1)
	var observe func(browser.Response)
	if obs != nil {
		observe = func(r browser.Response) {
			if obs.Wants(r.URL) {
				obs.Observe(r)
			}
		}
	}
	return b.NewPageFunc(int(n), observe)
}

// Opened returns how many pages were requested.
func (b *Browser) Opened() int { return int(b.opened.Load()) }

func (b *Browser) Close() error {
	b.closed.Store(true)
	return nil
}
