// Package registry implements the Tool Registry & Dispatcher: tool
// descriptor bookkeeping, invocation by name, and the uniform
// CallToolResult/JSON-RPC envelope every tool handler returns through.
package registry

import (
	"encoding/json"
	"errors"
	"strings"

	"browsernerd-mcp-server/internal/driverx"
)

// ContentItem is one entry in a CallToolResult's content array.
type ContentItem struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`     // base64, when Type == "image"
	MimeType string `json:"mimeType,omitempty"` // set alongside Data
}

// CallToolResult is the uniform envelope every tool handler returns.
type CallToolResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError"`
}

// ErrorCategory classifies a tool failure for the JSON body's error.category field.
type ErrorCategory string

const (
	CategoryBrowser  ErrorCategory = "browser"
	CategorySecurity ErrorCategory = "security"
	CategorySystem   ErrorCategory = "system"
)

// ErrorDetail is embedded in the JSON body of a failed tool result.
type ErrorDetail struct {
	Category            ErrorCategory `json:"category"`
	Message             string        `json:"message"`
	IsTimeout           bool          `json:"isTimeout,omitempty"`
	IsElementNotFound   bool          `json:"isElementNotFound,omitempty"`
	IsNetworkError      bool          `json:"isNetworkError,omitempty"`
	IsReferenceError    bool          `json:"isReferenceError,omitempty"`
	IsSyntaxError       bool          `json:"isSyntaxError,omitempty"`
	IsSecurityError     bool          `json:"isSecurityError,omitempty"`
	IsOptionNotFound    bool          `json:"isOptionNotFound,omitempty"`
	IsNotSelectElement  bool          `json:"isNotSelectElement,omitempty"`
}

// resultBody is the JSON payload embedded in CallToolResult.Content[0].Text.
type resultBody struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// Success builds a CallToolResult wrapping data as the "success":true body,
// merging in any extra top-level fields from data (data must be a struct or
// map that marshals to a JSON object).
func Success(data interface{}) CallToolResult {
	fields := map[string]interface{}{"success": true}
	mergeFields(fields, data)
	text, _ := json.Marshal(fields)
	return CallToolResult{Content: []ContentItem{{Type: "text", Text: string(text)}}}
}

// SuccessImage builds an image-content success result (used by screenshot).
func SuccessImage(base64Data, mimeType string, extra interface{}) CallToolResult {
	fields := map[string]interface{}{"success": true}
	mergeFields(fields, extra)
	text, _ := json.Marshal(fields)
	return CallToolResult{Content: []ContentItem{
		{Type: "text", Text: string(text)},
		{Type: "image", Data: base64Data, MimeType: mimeType},
	}}
}

// Failure classifies err (via errors.As against driverx.Error) into the
// appropriate category and subcategory flags; any other error, security
// sentinel errors included, is reported in the system category.
func Failure(err error) CallToolResult {
	detail := classify(err)
	body := resultBody{Success: false, Error: detail}
	text, _ := json.Marshal(body)
	return CallToolResult{Content: []ContentItem{{Type: "text", Text: string(text)}}, IsError: true}
}

// FailureSystem builds a system-category failure for invalid arguments or
// other internal bugs that never touched the driver.
func FailureSystem(message string) CallToolResult {
	body := resultBody{Success: false, Error: &ErrorDetail{Category: CategorySystem, Message: message}}
	text, _ := json.Marshal(body)
	return CallToolResult{Content: []ContentItem{{Type: "text", Text: string(text)}}, IsError: true}
}

// FailureSecurity builds a security-category failure (domain denied, rate
// limited, permission expired).
func FailureSecurity(message string) CallToolResult {
	body := resultBody{Success: false, Error: &ErrorDetail{Category: CategorySecurity, Message: message, IsSecurityError: true}}
	text, _ := json.Marshal(body)
	return CallToolResult{Content: []ContentItem{{Type: "text", Text: string(text)}}, IsError: true}
}

// FailureJS classifies a JS evaluation error, normalising ReferenceError and
// SyntaxError into their respective subcategory flags.
func FailureJS(err error) CallToolResult {
	msg := err.Error()
	detail := &ErrorDetail{Category: CategoryBrowser, Message: msg}
	switch {
	case strings.Contains(msg, "ReferenceError"):
		detail.IsReferenceError = true
	case strings.Contains(msg, "SyntaxError"):
		detail.IsSyntaxError = true
	}
	body := resultBody{Success: false, Error: detail}
	text, _ := json.Marshal(body)
	return CallToolResult{Content: []ContentItem{{Type: "text", Text: string(text)}}, IsError: true}
}

func classify(err error) *ErrorDetail {
	var de *driverx.Error
	if errors.As(err, &de) {
		detail := &ErrorDetail{Category: CategoryBrowser, Message: de.Error()}
		switch de.Kind {
		case driverx.KindTimeout:
			detail.IsTimeout = true
		case driverx.KindElementNotFound, driverx.KindInvalidSelector:
			detail.IsElementNotFound = true
		case driverx.KindOptionNotFound:
			detail.IsOptionNotFound = true
		case driverx.KindNotSelectElement:
			detail.IsNotSelectElement = true
		case driverx.KindNetworkError:
			detail.Category = CategorySystem
			detail.IsNetworkError = true
		case driverx.KindSecurityError:
			detail.Category = CategorySecurity
			detail.IsSecurityError = true
		}
		return detail
	}
	return &ErrorDetail{Category: CategorySystem, Message: err.Error()}
}

func mergeFields(dst map[string]interface{}, data interface{}) {
	if data == nil {
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return
	}
	for k, v := range fields {
		dst[k] = v
	}
}
