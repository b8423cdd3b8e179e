// Package browser is the page capability the extraction engine drives:
// locate elements, read text, click and fill, evaluate scripts, wait for the
// page to settle and observe network responses. The rod implementation lives
// alongside the interfaces; tests use browsertest.
package browser

import (
	"context"
	"net/http"
)

// Browser opens pages. Each page is owned by one session attempt.
type Browser interface {
	// NewPage opens a blank tab. obs, when non-nil, receives the data
	// responses whose URLs it wants.
	NewPage(ctx context.Context, obs Observer) (Page, error)

	// Close shuts the browser down.
	Close() error
}

// Observer receives captured data responses. Wants is asked per request
// before capture; requests it declines are left to the browser untouched.
type Observer interface {
	Wants(url string) bool
	Observe(r Response)
}

// Page is a document (or an iframe's document) that can be queried and
// driven.
type Page interface {
	// Navigate loads url and returns once the navigation committed.
	Navigate(ctx context.Context, url string) error

	// WaitSettled blocks until the DOM stops changing or ctx expires.
	WaitSettled(ctx context.Context) error

	// WaitSelector blocks until at least one element matches css.
	WaitSelector(ctx context.Context, css string) error

	// Elements returns every element matching css without waiting.
	Elements(ctx context.Context, css string) ([]Element, error)

	// Eval runs js (a function expression) against the document and returns
	// its result as a string.
	Eval(ctx context.Context, js string, args ...any) (string, error)

	// HTML returns the current serialized document.
	HTML(ctx context.Context) (string, error)

	// URL returns the document location.
	URL(ctx context.Context) (string, error)

	// Frames returns the documents of the page's iframes.
	Frames(ctx context.Context) ([]Page, error)

	// Close releases the tab. Frames share their parent's lifetime and
	// treat Close as a no-op.
	Close() error
}

// Element is a handle to one DOM element.
type Element interface {
	Text(ctx context.Context) (string, error)
	Visible(ctx context.Context) (bool, error)
	Enabled(ctx context.Context) (bool, error)
	Click(ctx context.Context) error
	Fill(ctx context.Context, value string) error
	PressEnter(ctx context.Context) error

	// Eval runs js with `this` bound to the element and returns its result
	// as a string.
	Eval(ctx context.Context, js string, args ...any) (string, error)
}

// Response is one network response observed by a page.
type Response struct {
	URL    string
	Status int
	Header http.Header
	Body   []byte
}

// ContentType returns the response's Content-Type header.
func (r Response) ContentType() string {
	if r.Header == nil {
		return ""
	}
	return r.Header.Get("Content-Type")
}
