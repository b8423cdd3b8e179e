package browser

import (
	"log/slog"
	"net/http"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// configToProto maps human-readable config strings to Rod protocol resource types.
var configToProto = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
	"Script":     proto.NetworkResourceTypeScript,
}

// dataTypes are the resource types whose responses may carry the portal's
// hidden JSON endpoints.
var dataTypes = map[proto.NetworkResourceType]struct{}{
	proto.NetworkResourceTypeXHR:   {},
	proto.NetworkResourceTypeFetch: {},
}

type hijackOptions struct {
	blockedTypes []string
	observer     Observer
	replay       *http.Client
}

// setupHijack installs a request interceptor on the page that blocks the
// configured resource types and, when an observer is set, replays the
// XHR/fetch requests it wants itself so their responses can be handed to
// Observe before being fulfilled back to the page. Every other request
// continues natively with the browser's own cookies and protocol.
//
// Returns the running HijackRouter so the caller can Stop it.
// Returns nil if there is nothing to do.
func setupHijack(page *rod.Page, opts hijackOptions) *rod.HijackRouter {
	blocked := make(map[proto.NetworkResourceType]struct{}, len(opts.blockedTypes))
	for _, name := range opts.blockedTypes {
		if rt, ok := configToProto[name]; ok {
			blocked[rt] = struct{}{}
		}
	}
	if len(blocked) == 0 && opts.observer == nil {
		return nil
	}

	router := page.HijackRequests()

	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		rt := ctx.Request.Type()
		if _, shouldBlock := blocked[rt]; shouldBlock {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}

		url := ctx.Request.URL().String()
		if !wantsCapture(opts.observer, rt, url) {
			ctx.ContinueRequest(&proto.FetchContinueRequest{})
			return
		}

		// Paused requests carry no Cookie header; the replay must present
		// the page's session like the browser would.
		if cookies, err := page.Cookies([]string{url}); err != nil {
			slog.Debug("hijack: reading cookies failed", "url", url, "error", err)
		} else {
			addCookies(ctx.Request.Req(), cookies)
		}

		if err := ctx.LoadResponse(opts.replay, true); err != nil {
			slog.Debug("hijack: replay failed, continuing natively",
				"url", url, "error", err)
			ctx.ContinueRequest(&proto.FetchContinueRequest{})
			return
		}

		opts.observer.Observe(Response{
			URL:    url,
			Status: ctx.Response.Payload().ResponseCode,
			Header: ctx.Response.Headers(),
			Body:   []byte(ctx.Response.Body()),
		})
	})

	// router.Run() blocks, so it must live in its own goroutine.
	// It will exit when router.Stop() is called.
	go router.Run()

	return router
}

// wantsCapture reports whether a request is replayed for capture: only
// data requests the observer asked for.
func wantsCapture(obs Observer, rt proto.NetworkResourceType, url string) bool {
	if obs == nil {
		return false
	}
	if _, isData := dataTypes[rt]; !isData {
		return false
	}
	return obs.Wants(url)
}

// addCookies copies browser cookies onto req unless it already has some.
func addCookies(req *http.Request, cookies []*proto.NetworkCookie) {
	if req.Header.Get("Cookie") != "" {
		return
	}
	for _, c := range cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
}
