package security

import (
	"encoding/json"
	"regexp"
	"strings"
)

// sensitiveFieldPattern matches JSON body keys the spec names explicitly.
// Compiled once at package init — grounded on the compiled-regex-table
// approach in the pack's redaction engine.
var sensitiveFieldPattern = regexp.MustCompile(
	`(?i)^(password|token|secret|auth|credential|session|cookie|csrf|api_key|access_token|refresh_token|bearer|authorization)`,
)

// opaqueBodyPatterns redact bearer/token/key/password assignments inside
// bodies that did not parse as JSON.
var opaqueBodyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9\-._~+/]+=*`),
	regexp.MustCompile(`(?i)(token\s*[:=]\s*)\S+`),
	regexp.MustCompile(`(?i)((?:api[_-]?key|apikey|secret)\s*[:=]\s*)\S+`),
	regexp.MustCompile(`(?i)(password\s*[:=]\s*)\S+`),
}

const redactedValue = "[REDACTED]"

// Redactor applies header and body redaction to captured network records.
type Redactor struct {
	sensitiveHeaders map[string]struct{}
}

func NewRedactor(sensitiveHeaders []string) *Redactor {
	set := make(map[string]struct{}, len(sensitiveHeaders))
	for _, h := range sensitiveHeaders {
		set[strings.ToLower(h)] = struct{}{}
	}
	return &Redactor{sensitiveHeaders: set}
}

// RedactHeaders replaces the value of any header whose lowercased name is in
// the sensitive set with "[REDACTED]". Returns a new map; the input is
// untouched.
func (r *Redactor) RedactHeaders(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if _, sensitive := r.sensitiveHeaders[strings.ToLower(k)]; sensitive {
			out[k] = redactedValue
			continue
		}
		out[k] = v
	}
	return out
}

// RedactBody attempts to parse body as JSON and recursively redacts string
// values whose key matches the sensitive-field heuristic. If body does not
// parse as JSON it is treated as an opaque string and run through regex
// substitution instead.
func (r *Redactor) RedactBody(body string) string {
	if body == "" {
		return body
	}

	var parsed interface{}
	if err := json.Unmarshal([]byte(body), &parsed); err == nil {
		redacted := redactJSONValue("", parsed)
		out, err := json.Marshal(redacted)
		if err == nil {
			return string(out)
		}
	}

	redacted := body
	for _, pattern := range opaqueBodyPatterns {
		redacted = pattern.ReplaceAllString(redacted, "${1}"+redactedValue)
	}
	return redacted
}

func redactJSONValue(key string, v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, child := range val {
			out[k] = redactJSONValue(k, child)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, child := range val {
			out[i] = redactJSONValue(key, child)
		}
		return out
	case string:
		if sensitiveFieldPattern.MatchString(key) {
			return redactedValue
		}
		return val
	default:
		return val
	}
}
