// Package browsertest provides an in-memory browser.Page backed by a goquery
// document, so control resolution and sessions can be exercised without
// Chromium.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/blotter/browser"
)

// Page is a fake browser.Page. Hooks let tests script how the document
// reacts to clicks, key presses and navigation.
type Page struct {
	mu     sync.Mutex
	doc    *goquery.Document
	url    string
	frames []*Page
	closed bool
	log    []string

	// OnNavigate runs on Navigate; a non-nil error fails the navigation.
	OnNavigate func(p *Page, url string) error

	// OnClick runs when any element is clicked.
	OnClick func(p *Page, el *Element) error

	// OnEnter runs when Enter is pressed on an element.
	OnEnter func(p *Page, el *Element) error

	// SettleErr is returned from WaitSettled.
	SettleErr error

	// EvalFunc answers document-level Eval calls. Default returns "".
	EvalFunc func(js string, args ...any) (string, error)
}

// NewPage parses html into a fake page located at url.
func NewPage(url, html string) *Page {
	p := &Page{url: url}
	p.SetHTML(html)
	return p
}

// SetHTML replaces the document.
func (p *Page) SetHTML(html string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		panic(err)
	}
	p.mu.Lock()
	p.doc = doc
	p.mu.Unlock()
}

// Doc exposes the live document for hooks.
func (p *Page) Doc() *goquery.Document {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc
}

// AddFrame attaches an iframe document.
func (p *Page) AddFrame(f *Page) { p.frames = append(p.frames, f) }

// Log returns the recorded interactions ("click: ...", "fill: ...", ...).
func (p *Page) Log() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.log...)
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool { return p.closed }

func (p *Page) record(format string, args ...any) {
	p.mu.Lock()
	p.log = append(p.log, fmt.Sprintf(format, args...))
	p.mu.Unlock()
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.record("navigate: %s", url)
	if p.OnNavigate != nil {
		if err := p.OnNavigate(p, url); err != nil {
			return err
		}
	}
	p.url = url
	return nil
}

func (p *Page) WaitSettled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.SettleErr
}

func (p *Page) WaitSelector(ctx context.Context, css string) error {
	if p.Doc().Find(css).Length() > 0 {
		return nil
	}
	return context.DeadlineExceeded
}

func (p *Page) Elements(ctx context.Context, css string) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []browser.Element
	p.Doc().Find(css).Each(func(_ int, s *goquery.Selection) {
		out = append(out, &Element{page: p, sel: s})
	})
	return out, nil
}

func (p *Page) Eval(ctx context.Context, js string, args ...any) (string, error) {
	if p.EvalFunc != nil {
		return p.EvalFunc(js, args...)
	}
	return "", nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return goquery.OuterHtml(p.Doc().Selection)
}

func (p *Page) URL(ctx context.Context) (string, error) { return p.url, nil }

func (p *Page) Frames(ctx context.Context) ([]browser.Page, error) {
	out := make([]browser.Page, len(p.frames))
	for i, f := range p.frames {
		out[i] = f
	}
	return out, nil
}

func (p *Page) Close() error {
	p.closed = true
	return nil
}

// Element is a fake browser.Element over one goquery node.
type Element struct {
	page *Page
	sel  *goquery.Selection
}

// Selection exposes the node for hooks that mutate the document.
func (e *Element) Selection() *goquery.Selection { return e.sel }

// Describe renders the element as tag#id or tag "text" for logs.
func (e *Element) Describe() string {
	tag := goquery.NodeName(e.sel)
	if id, ok := e.sel.Attr("id"); ok {
		return tag + "#" + id
	}
	if name, ok := e.sel.Attr("name"); ok {
		return tag + "[" + name + "]"
	}
	return fmt.Sprintf("%s %q", tag, strings.TrimSpace(e.sel.Text()))
}

// Value returns the element's current value attribute.
func (e *Element) Value() string {
	v, _ := e.sel.Attr("value")
	return v
}

func (e *Element) Text(ctx context.Context) (string, error) {
	if goquery.NodeName(e.sel) == "input" {
		v, _ := e.sel.Attr("value")
		return v, nil
	}
	return strings.TrimSpace(e.sel.Text()), nil
}

func (e *Element) Visible(ctx context.Context) (bool, error) {
	if _, hidden := e.sel.Attr("hidden"); hidden {
		return false, nil
	}
	style, _ := e.sel.Attr("style")
	style = strings.ReplaceAll(strings.ToLower(style), " ", "")
	return !strings.Contains(style, "display:none"), nil
}

func (e *Element) Enabled(ctx context.Context) (bool, error) {
	if _, disabled := e.sel.Attr("disabled"); disabled {
		return false, nil
	}
	if v, _ := e.sel.Attr("aria-disabled"); v == "true" {
		return false, nil
	}
	return !e.sel.HasClass("disabled"), nil
}

// ErrNotInteractable is returned when clicking an element marked with
// data-broken, letting tests simulate a failing candidate.
var ErrNotInteractable = errors.New("browsertest: element not interactable")

func (e *Element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, broken := e.sel.Attr("data-broken"); broken {
		return ErrNotInteractable
	}
	e.page.record("click: %s", e.Describe())
	if e.page.OnClick != nil {
		return e.page.OnClick(e.page, e)
	}
	return nil
}

func (e *Element) Fill(ctx context.Context, value string) error {
	if _, broken := e.sel.Attr("data-broken"); broken {
		return ErrNotInteractable
	}
	e.sel.SetAttr("value", value)
	e.page.record("fill: %s=%s", e.Describe(), value)
	return nil
}

func (e *Element) PressEnter(ctx context.Context) error {
	e.page.record("enter: %s", e.Describe())
	if e.page.OnEnter != nil {
		return e.page.OnEnter(e.page, e)
	}
	return nil
}

// Eval understands the scripts the browser package publishes. An input with
// data-reject-format="iso" refuses ISO dates, mimicking masked text widgets.
func (e *Element) Eval(ctx context.Context, js string, args ...any) (string, error) {
	if _, broken := e.sel.Attr("data-broken"); broken {
		return "", ErrNotInteractable
	}
	switch js {
	case browser.SetValueJS:
		v, _ := args[0].(string)
		onlyIfEmpty, _ := args[1].(bool)
		if cur := e.Value(); onlyIfEmpty && cur != "" {
			return cur, nil
		}
		if rej, _ := e.sel.Attr("data-reject-format"); rej == "iso" && strings.Contains(v, "-") {
			v = ""
		}
		e.sel.SetAttr("value", v)
		e.page.record("set: %s=%s", e.Describe(), v)
		return v, nil
	}
	return "", fmt.Errorf("browsertest: unsupported script")
}
