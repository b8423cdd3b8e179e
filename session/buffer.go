package session

import (
	"mime"
	"regexp"
	"strings"
	"sync"

	"github.com/use-agent/blotter/browser"
)

// ResponseBuffer keeps the JSON responses a page observed whose URL looks
// like arrest data. It belongs to a single attempt and is dropped with the
// page. Observe is called from the hijack router's goroutine.
type ResponseBuffer struct {
	pattern *regexp.Regexp

	mu       sync.Mutex
	payloads []browser.Response
}

// NewResponseBuffer creates a buffer keeping responses whose URL matches
// pattern. A nil pattern captures nothing.
func NewResponseBuffer(pattern *regexp.Regexp) *ResponseBuffer {
	return &ResponseBuffer{pattern: pattern}
}

// Wants reports whether requests to url should be captured. Only these
// are intercepted; the page's other traffic is left alone.
func (b *ResponseBuffer) Wants(url string) bool {
	return b.pattern != nil && b.pattern.MatchString(url)
}

// Observe records r if it is a JSON response with a matching URL.
func (b *ResponseBuffer) Observe(r browser.Response) {
	if len(r.Body) == 0 || !isJSON(r.ContentType()) || !b.Wants(r.URL) {
		return
	}
	b.mu.Lock()
	b.payloads = append(b.payloads, r)
	b.mu.Unlock()
}

// Latest returns the most recently observed matching response.
func (b *ResponseBuffer) Latest() (browser.Response, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.payloads) == 0 {
		return browser.Response{}, false
	}
	return b.payloads[len(b.payloads)-1], true
}

// Len returns the number of buffered responses.
func (b *ResponseBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.payloads)
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json") || mt == "text/json"
}
