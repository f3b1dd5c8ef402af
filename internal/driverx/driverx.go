// Package driverx adapts the headless-Chromium control surface (go-rod over
// CDP) to the narrow interface the rest of the gateway depends on. It owns
// browser launch/connect, incognito context creation, navigation, and the
// typed error taxonomy the tool handlers classify on.
package driverx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"browsernerd-mcp-server/internal/config"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

// Kind classifies adapter failures so tool handlers can set the right
// error.category/subcategory flags in the JSON-RPC result envelope.
type Kind int

const (
	KindUnknown Kind = iota
	KindTimeout
	KindElementNotFound
	KindInvalidSelector
	KindOptionNotFound
	KindNotSelectElement
	KindNetworkError
	KindSecurityError
)

// Error wraps a driver failure with a Kind so callers can classify it via
// errors.As without parsing message text.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Driver owns the connection to a single Chrome instance and hands out
// incognito contexts/pages to the session pool above it.
type Driver struct {
	cfg config.BrowserConfig
	log *slog.Logger

	mu         sync.RWMutex
	browser    *rod.Browser
	controlURL string
}

func New(cfg config.BrowserConfig, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{cfg: cfg, log: logger.With("component", "driverx")}
}

// Start connects to an existing Chrome instance (DebuggerURL) or launches
// one via Launch, reusing a healthy existing connection if present.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browser != nil {
		if _, err := d.browser.Version(); err == nil {
			return nil
		}
		d.log.Warn("stale browser connection detected, reconnecting")
		_ = d.browser.Close()
		d.browser = nil
		d.controlURL = ""
	}

	controlURL := d.cfg.DebuggerURL
	if controlURL == "" && len(d.cfg.Launch) > 0 {
		bin := d.cfg.Launch[0]
		l := launcher.New().Bin(bin).Headless(d.cfg.IsHeadless())
		if d.cfg.SandboxDisabled {
			l = l.Set(flags.Flag("no-sandbox"))
		}
		for _, rawFlag := range d.cfg.Launch[1:] {
			flagStr := strings.TrimLeft(rawFlag, "-")
			name, val, hasVal := strings.Cut(flagStr, "=")
			if hasVal {
				l = l.Set(flags.Flag(name), val)
			} else {
				l = l.Set(flags.Flag(name))
			}
		}
		url, err := l.Launch()
		if err != nil {
			fallback := launcher.New().Bin(bin).Headless(d.cfg.IsHeadless())
			alt, altErr := fallback.Launch()
			if altErr != nil {
				return newErr(KindUnknown, "launch", fmt.Errorf("%w (fallback: %v)", err, altErr))
			}
			url = alt
		}
		controlURL = url
	}

	if controlURL == "" {
		return newErr(KindUnknown, "start", errors.New("no debugger_url or launch command provided"))
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return newErr(KindNetworkError, "connect", err)
	}

	d.browser = browser
	d.controlURL = controlURL
	d.log.Info("browser connected", "control_url", controlURL)
	return nil
}

func (d *Driver) ControlURL() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.controlURL
}

func (d *Driver) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.browser != nil
}

func (d *Driver) Shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.browser == nil {
		return nil
	}
	err := d.browser.Close()
	d.browser = nil
	d.controlURL = ""
	d.log.Info("driver shutdown complete")
	return err
}

// NewContext opens a fresh incognito browser context, isolated from every
// other session (separate cookie jar, cache, and storage).
func (d *Driver) NewContext() (*rod.Browser, error) {
	d.mu.RLock()
	browser := d.browser
	d.mu.RUnlock()
	if browser == nil {
		return nil, newErr(KindUnknown, "new_context", errors.New("driver not connected"))
	}
	incognito, err := browser.Incognito()
	if err != nil {
		return nil, newErr(KindUnknown, "new_context", err)
	}
	return incognito, nil
}

// NewPage opens a page within the given context at url and applies the
// configured viewport override.
func (d *Driver) NewPage(browserCtx *rod.Browser, url string) (*rod.Page, error) {
	page, err := browserCtx.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, newErr(KindUnknown, "new_page", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             d.cfg.GetViewportWidth(),
		Height:            d.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		d.log.Warn("failed to set viewport override", "error", err)
	}

	if url != "" {
		if err := d.Goto(page, url); err != nil {
			return page, err
		}
	}
	return page, nil
}

// PageFromTarget attaches to an already-open target by its CDP target ID.
func (d *Driver) PageFromTarget(targetID string) (*rod.Page, error) {
	d.mu.RLock()
	browser := d.browser
	d.mu.RUnlock()
	if browser == nil {
		return nil, newErr(KindUnknown, "attach", errors.New("driver not connected"))
	}
	page, err := browser.PageFromTarget(proto.TargetTargetID(targetID))
	if err != nil {
		return nil, newErr(KindUnknown, "attach", err)
	}
	return page, nil
}

// Goto navigates page to url, classifying context-deadline errors as
// KindTimeout so tool handlers can set isTimeout without string matching.
func (d *Driver) Goto(page *rod.Page, url string) error {
	timeout := d.cfg.NavigationTimeout()
	err := page.Timeout(timeout).Navigate(url)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return newErr(KindTimeout, "goto", err)
		}
		return newErr(KindNetworkError, "goto", err)
	}
	if err := page.Timeout(timeout).WaitLoad(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return newErr(KindTimeout, "goto.wait_load", err)
		}
	}
	return nil
}

// Click resolves selector and clicks the first matching element.
func (d *Driver) Click(page *rod.Page, selector string, timeout time.Duration) error {
	el, err := page.Timeout(timeout).Element(selector)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return newErr(KindElementNotFound, "click", fmt.Errorf("element not found for selector %q: %w", selector, err))
		}
		return newErr(KindInvalidSelector, "click", err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return newErr(KindUnknown, "click", err)
	}
	return nil
}

// Type resolves selector and inputs text into it, clearing existing content first.
func (d *Driver) Type(page *rod.Page, selector, text string, timeout time.Duration) error {
	el, err := page.Timeout(timeout).Element(selector)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return newErr(KindElementNotFound, "type", fmt.Errorf("element not found for selector %q: %w", selector, err))
		}
		return newErr(KindInvalidSelector, "type", err)
	}
	if err := el.SelectAllText(); err == nil {
		_ = el.Input("")
	}
	if err := el.Input(text); err != nil {
		return newErr(KindUnknown, "type", err)
	}
	return nil
}

// Select sets a <select> element's value to optionValue.
func (d *Driver) Select(page *rod.Page, selector, optionValue string, timeout time.Duration) error {
	el, err := page.Timeout(timeout).Element(selector)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return newErr(KindElementNotFound, "select", fmt.Errorf("element not found for selector %q: %w", selector, err))
		}
		return newErr(KindInvalidSelector, "select", err)
	}

	tag, err := el.Eval(`() => this.tagName.toLowerCase()`)
	if err != nil {
		return newErr(KindUnknown, "select", err)
	}
	if tag.Value.String() != "select" {
		return newErr(KindNotSelectElement, "select", fmt.Errorf("element matching %q is a %q, not a select", selector, tag.Value.String()))
	}

	found, err := el.Eval(`(v) => Array.from(this.options).some(o => o.value === v)`, optionValue)
	if err != nil {
		return newErr(KindUnknown, "select", err)
	}
	if !found.Value.Bool() {
		return newErr(KindOptionNotFound, "select", fmt.Errorf("option %q not found in select %q", optionValue, selector))
	}

	if err := el.Select([]string{optionValue}, true, rod.SelectorTypeText); err != nil {
		// Fall back to selecting by value via JS since rod's text-selector
		// match can miss options whose visible text differs from value.
		if _, evalErr := el.Eval(`(v) => { this.value = v; this.dispatchEvent(new Event('change', {bubbles:true})); }`, optionValue); evalErr != nil {
			return newErr(KindUnknown, "select", err)
		}
	}
	return nil
}

// Eval runs JS in the page's main world and returns the JSON-encodable result.
func (d *Driver) Eval(page *rod.Page, script string, timeout time.Duration) (interface{}, error) {
	res, err := page.Timeout(timeout).Eval(script)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, newErr(KindTimeout, "eval", err)
		}
		if isSyntaxError(err) {
			return nil, newErr(KindUnknown, "eval", fmt.Errorf("syntax error: %w", err))
		}
		return nil, newErr(KindUnknown, "eval", err)
	}
	var out interface{}
	if res != nil && res.Value.Val() != nil {
		out = res.Value.Val()
	}
	return out, nil
}

func isSyntaxError(err error) bool {
	return strings.Contains(err.Error(), "SyntaxError")
}

// ScreenshotClip restricts a page screenshot to a rectangular region in CSS
// pixels, mirroring the adapter's clip? parameter.
type ScreenshotClip struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// ScreenshotOptions configures a page-level (non-element) screenshot per the
// adapter's page.screenshot(format, fullPage, clip?, omitBackground, quality?) call.
type ScreenshotOptions struct {
	FullPage       bool
	Format         string // "png" or "jpeg"; defaults to png
	Quality        int    // jpeg only, 1-100
	Clip           *ScreenshotClip
	OmitBackground bool
}

// Screenshot captures page per opts, honouring format, quality, clip, and
// omitBackground instead of always producing a full/viewport PNG.
func (d *Driver) Screenshot(page *rod.Page, opts ScreenshotOptions) ([]byte, error) {
	format := proto.PageCaptureScreenshotFormatPng
	if opts.Format == "jpeg" {
		format = proto.PageCaptureScreenshotFormatJpeg
	}

	req := &proto.PageCaptureScreenshot{Format: format}
	if format == proto.PageCaptureScreenshotFormatJpeg {
		quality := opts.Quality
		req.Quality = &quality
	}
	if opts.Clip != nil {
		req.Clip = &proto.PageViewport{
			X:      opts.Clip.X,
			Y:      opts.Clip.Y,
			Width:  opts.Clip.Width,
			Height: opts.Clip.Height,
			Scale:  1,
		}
	}

	if opts.OmitBackground {
		transparent := proto.DOMRGBA{R: 0, G: 0, B: 0, A: 0}
		proto.EmulationSetDefaultBackgroundColorOverride{Color: &transparent}.Call(page)
		defer proto.EmulationSetDefaultBackgroundColorOverride{}.Call(page)
	}

	data, err := page.Screenshot(opts.FullPage, req)
	if err != nil {
		return nil, newErr(KindUnknown, "screenshot", err)
	}
	return data, nil
}

// CurrentURL returns the page's current URL.
func (d *Driver) CurrentURL(page *rod.Page) string {
	info, err := page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Title returns the page's current document title.
func (d *Driver) Title(page *rod.Page) string {
	info, err := page.Info()
	if err != nil {
		return ""
	}
	return info.Title
}

// ElementBox is an element's bounding box, rounded to integers per the
// screenshot-sizing rule.
type ElementBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ElementScreenshot captures an element's screenshot and its bounding box,
// rounded to the nearest integer.
func (d *Driver) ElementScreenshot(page *rod.Page, selector, format string, quality int, timeout time.Duration) ([]byte, ElementBox, error) {
	el, err := page.Timeout(timeout).Element(selector)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ElementBox{}, newErr(KindElementNotFound, "screenshot", fmt.Errorf("element not found for selector %q: %w", selector, err))
		}
		return nil, ElementBox{}, newErr(KindInvalidSelector, "screenshot", err)
	}

	var box ElementBox
	if shape, shapeErr := el.Shape(); shapeErr == nil && shape != nil {
		if b := shape.Box(); b != nil {
			box = ElementBox{
				X:      int(math.Round(b.X)),
				Y:      int(math.Round(b.Y)),
				Width:  int(math.Round(b.Width)),
				Height: int(math.Round(b.Height)),
			}
		}
	}

	screenshotFormat := proto.PageCaptureScreenshotFormatPng
	if format == "jpeg" {
		screenshotFormat = proto.PageCaptureScreenshotFormatJpeg
	}
	data, err := el.Screenshot(screenshotFormat, quality)
	if err != nil {
		return nil, box, newErr(KindUnknown, "screenshot", err)
	}
	return data, box, nil
}

// DOMSnapshot walks the document from document.documentElement in the page,
// stopping as soon as a node counter (shared across the whole recursive
// walk) reaches maxNodes, matching the depth-first-stop-on-cap rule.
func (d *Driver) DOMSnapshot(page *rod.Page, maxNodes int, timeout time.Duration) (map[string]interface{}, error) {
	script := fmt.Sprintf(`() => {
		const maxNodes = %d;
		let count = 0;
		let truncated = false;

		function walk(node) {
			if (truncated) return null;
			if (count >= maxNodes) {
				truncated = true;
				return { __truncated: true };
			}
			count++;

			if (node.nodeType === Node.TEXT_NODE) {
				const text = node.textContent.trim();
				return text ? { type: 'text', text: text.slice(0, 200) } : null;
			}
			if (node.nodeType !== Node.ELEMENT_NODE) {
				return null;
			}

			const attrs = {};
			for (const a of node.attributes || []) {
				attrs[a.name] = a.value;
			}

			const out = { type: 'element', tag: node.tagName.toLowerCase(), attrs };
			const children = [];
			for (const child of node.childNodes) {
				if (truncated) break;
				const c = walk(child);
				if (c) children.push(c);
			}
			if (children.length) out.children = children;
			return out;
		}

		const tree = walk(document.documentElement);
		return { tree, totalNodes: count, maxNodes, truncated };
	}`, maxNodes)

	res, err := page.Timeout(timeout).Eval(script)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, newErr(KindTimeout, "dom_snapshot", err)
		}
		return nil, newErr(KindUnknown, "dom_snapshot", err)
	}
	out, ok := res.Value.Val().(map[string]interface{})
	if !ok {
		return nil, newErr(KindUnknown, "dom_snapshot", errors.New("unexpected snapshot result shape"))
	}
	return out, nil
}

// TraceStart begins CDP performance tracing on the browser owning page.
func (d *Driver) TraceStart(page *rod.Page, screenshots bool) error {
	categories := []string{"devtools.timeline", "disabled-by-default-devtools.screenshot"}
	if !screenshots {
		categories = []string{"devtools.timeline"}
	}
	err := proto.TracingStart{
		TraceConfig: &proto.TracingTraceConfig{
			IncludedCategories: categories,
		},
	}.Call(page)
	if err != nil {
		return newErr(KindUnknown, "trace_start", err)
	}
	return nil
}

// TraceStop ends tracing, collects the emitted data-collected events, and
// writes them as a JSON array to outputPath.
func (d *Driver) TraceStop(page *rod.Page, outputPath string) error {
	var chunks []json.RawMessage

	wait := page.EachEvent(
		func(ev *proto.TracingDataCollected) {
			raw, err := json.Marshal(ev.Value)
			if err == nil {
				chunks = append(chunks, raw)
			}
		},
		func(ev *proto.TracingTracingComplete) bool {
			return true
		},
	)

	if err := (proto.TracingEnd{}).Call(page); err != nil {
		return newErr(KindUnknown, "trace_stop", err)
	}
	wait()

	out, err := json.Marshal(chunks)
	if err != nil {
		return newErr(KindUnknown, "trace_stop", err)
	}
	if err := os.WriteFile(outputPath, out, 0644); err != nil {
		return newErr(KindUnknown, "trace_stop", err)
	}
	return nil
}
