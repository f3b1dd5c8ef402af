package tools

import (
	"context"
	"encoding/base64"

	"browsernerd-mcp-server/internal/driverx"
	"browsernerd-mcp-server/internal/registry"
)

// ScreenshotTool captures a PNG/JPEG of a session's page, or a single
// element when a selector is given.
type ScreenshotTool struct{ deps *Deps }

func (t *ScreenshotTool) Name() string { return "browser.screenshot" }
func (t *ScreenshotTool) Description() string {
	return "Capture a screenshot of a session's page, or a single element when a selector is given."
}
func (t *ScreenshotTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"sessionId":      map[string]interface{}{"type": "string"},
			"selector":       map[string]interface{}{"type": "string"},
			"format":         map[string]interface{}{"type": "string", "enum": []string{"png", "jpeg"}},
			"fullPage":       map[string]interface{}{"type": "boolean"},
			"quality":        map[string]interface{}{"type": "integer"},
			"omitBackground": map[string]interface{}{"type": "boolean"},
			"clip": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"x":      map[string]interface{}{"type": "number"},
					"y":      map[string]interface{}{"type": "number"},
					"width":  map[string]interface{}{"type": "number"},
					"height": map[string]interface{}{"type": "number"},
				},
			},
		},
		"required": []string{"sessionId"},
	}
}

func (t *ScreenshotTool) Execute(ctx context.Context, args map[string]interface{}) (registry.CallToolResult, error) {
	sessionID := getStringArg(args, "sessionId")
	if sessionID == "" {
		return registry.FailureSystem("sessionId is required"), nil
	}
	selector := getStringArg(args, "selector")
	format := getStringArg(args, "format")
	if format == "" {
		format = "png"
	}
	fullPage := getBoolArg(args, "fullPage", false)
	quality := getIntArg(args, "quality", 90)
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	omitBackground := getBoolArg(args, "omitBackground", false)
	var clip *driverx.ScreenshotClip
	if m, ok := args["clip"].(map[string]interface{}); ok {
		clip = &driverx.ScreenshotClip{
			X:      getFloatArg(m, "x", 0),
			Y:      getFloatArg(m, "y", 0),
			Width:  getFloatArg(m, "width", 0),
			Height: getFloatArg(m, "height", 0),
		}
	}

	s, err := t.deps.Pool.GetSession(sessionID)
	if err != nil {
		return registry.FailureSystem(err.Error()), nil
	}

	release := t.deps.Perf.Admit()
	defer release()

	mimeType := "image/png"
	if format == "jpeg" {
		mimeType = "image/jpeg"
	}

	var data []byte
	extra := map[string]interface{}{}

	if selector != "" {
		err = t.deps.Perf.Breakers().Guard("screenshot", func() error {
			d, b, e := t.deps.Driver.ElementScreenshot(s.Page, selector, format, quality, t.deps.timeout())
			if e != nil {
				return e
			}
			data = d
			extra["width"] = b.Width
			extra["height"] = b.Height
			extra["x"] = b.X
			extra["y"] = b.Y
			return nil
		})
	} else {
		err = t.deps.Perf.Breakers().Guard("screenshot", func() error {
			d, e := t.deps.Driver.Screenshot(s.Page, driverx.ScreenshotOptions{
				FullPage:       fullPage,
				Format:         format,
				Quality:        quality,
				Clip:           clip,
				OmitBackground: omitBackground,
			})
			if e != nil {
				return e
			}
			data = d
			return nil
		})
		// Per the screenshot-sizing design note: page screenshots report the
		// viewport dimensions, not the actual (possibly taller, if fullPage)
		// image dimensions.
		extra["width"] = s.Options.ViewportWidth
		extra["height"] = s.Options.ViewportHeight
	}
	if err != nil {
		return registry.Failure(err), nil
	}
	s.Touch()

	encoded := base64.StdEncoding.EncodeToString(data)
	return registry.SuccessImage(encoded, mimeType, extra), nil
}
