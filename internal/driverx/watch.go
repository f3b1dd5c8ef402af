package driverx

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"browsernerd-mcp-server/internal/capture"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// pendingNetRequest tracks a request seen but not yet correlated with its
// response, keyed by CDP RequestID.
type pendingNetRequest struct {
	method  string
	url     string
	headers map[string]string
	sentAt  time.Time
}

// WatchPage subscribes to console, network, exception, and frame-navigation
// CDP events on page and feeds them into pipeline until ctx is cancelled.
// onNavigate, if non-nil, is invoked with the new URL on every top-level
// framenavigated event, giving the caller a chance to record the navigation
// (e.g. for an in-progress macro recording) even when it wasn't driven by an
// explicit browser.goto call. Callers should run WatchPage in its own
// goroutine; it blocks until ctx.Done().
func (d *Driver) WatchPage(ctx context.Context, page *rod.Page, pipeline *capture.Pipeline, onNavigate func(url string)) {
	var mu sync.Mutex
	pending := make(map[proto.NetworkRequestID]pendingNetRequest)

	takePending := func(id proto.NetworkRequestID) (pendingNetRequest, bool) {
		mu.Lock()
		defer mu.Unlock()
		req, ok := pending[id]
		if ok {
			delete(pending, id)
		}
		return req, ok
	}

	wait := page.Context(ctx).EachEvent(
		func(ev *proto.RuntimeConsoleAPICalled) {
			pipeline.AppendConsole(capture.ConsoleRecord{
				Timestamp: time.Now(),
				Level:     consoleLevel(ev.Type),
				Message:   stringifyConsoleArgs(ev.Args),
			})
		},
		func(ev *proto.RuntimeExceptionThrown) {
			pipeline.AppendConsole(capture.ConsoleRecord{
				Timestamp: time.Now(),
				Level:     capture.ConsoleError,
				Message:   exceptionMessage(ev.ExceptionDetails),
			})
		},
		func(ev *proto.PageFrameNavigated) {
			if onNavigate != nil && ev.Frame != nil && ev.Frame.ParentID == "" {
				onNavigate(ev.Frame.URL)
			}
		},
		func(ev *proto.NetworkRequestWillBeSent) {
			headers := make(map[string]string, len(ev.Request.Headers))
			for k, v := range ev.Request.Headers {
				headers[k] = fmt.Sprintf("%v", v)
			}
			mu.Lock()
			pending[ev.RequestID] = pendingNetRequest{
				method:  ev.Request.Method,
				url:     ev.Request.URL,
				headers: headers,
				sentAt:  time.Now(),
			}
			mu.Unlock()
		},
		func(ev *proto.NetworkResponseReceived) {
			req, ok := takePending(ev.RequestID)
			if !ok {
				return
			}

			responseHeaders := make(map[string]string, len(ev.Response.Headers))
			for k, v := range ev.Response.Headers {
				responseHeaders[k] = fmt.Sprintf("%v", v)
			}

			durationMs := time.Since(req.sentAt).Milliseconds()

			var body string
			if data, err := proto.NetworkGetResponseBody{RequestID: ev.RequestID}.Call(page); err == nil {
				body = data.Body
			}

			pipeline.AppendNetwork(capture.NetworkRecord{
				Timestamp:       req.sentAt,
				Method:          req.method,
				URL:             req.url,
				Status:          int(ev.Response.Status),
				RequestHeaders:  req.headers,
				ResponseHeaders: responseHeaders,
				ResponseBody:    body,
				DurationMs:      durationMs,
			})
		},
		func(ev *proto.NetworkLoadingFailed) {
			req, ok := takePending(ev.RequestID)
			if !ok {
				return
			}

			pipeline.AppendNetwork(capture.NetworkRecord{
				Timestamp:      req.sentAt,
				Method:         req.method,
				URL:            req.url,
				Status:         0,
				RequestHeaders: req.headers,
				DurationMs:     time.Since(req.sentAt).Milliseconds(),
			})
		},
	)

	wait()
}

// exceptionMessage renders a thrown-exception's description, falling back to
// its text when no remote object description is available.
func exceptionMessage(details *proto.RuntimeExceptionDetails) string {
	if details == nil {
		return ""
	}
	if details.Exception != nil && details.Exception.Description != "" {
		return details.Exception.Description
	}
	return details.Text
}

func consoleLevel(t proto.RuntimeConsoleAPICalledType) capture.ConsoleLevel {
	switch t {
	case proto.RuntimeConsoleAPICalledTypeError:
		return capture.ConsoleError
	case proto.RuntimeConsoleAPICalledTypeWarning:
		return capture.ConsoleWarn
	case proto.RuntimeConsoleAPICalledTypeInfo:
		return capture.ConsoleInfo
	case proto.RuntimeConsoleAPICalledTypeDebug:
		return capture.ConsoleDebug
	default:
		return capture.ConsoleLog
	}
}

// stringifyConsoleArgs renders console.log-style arguments as a single
// space-joined string, preferring each argument's string description.
func stringifyConsoleArgs(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		if a.Value.Val() != nil {
			parts = append(parts, fmt.Sprintf("%v", a.Value.Val()))
			continue
		}
		if a.Description != "" {
			parts = append(parts, a.Description)
			continue
		}
		parts = append(parts, string(a.Type))
	}
	return strings.Join(parts, " ")
}
