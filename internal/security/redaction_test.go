package security

import "testing"

func TestRedactHeaders(t *testing.T) {
	r := NewRedactor([]string{"authorization", "cookie"})

	headers := map[string]string{
		"Authorization": "Bearer abc",
		"Content-Type":  "application/json",
		"Cookie":        "sid=123",
	}

	redacted := r.RedactHeaders(headers)

	if redacted["Authorization"] != redactedValue {
		t.Errorf("expected Authorization redacted, got %q", redacted["Authorization"])
	}
	if redacted["Cookie"] != redactedValue {
		t.Errorf("expected Cookie redacted, got %q", redacted["Cookie"])
	}
	if redacted["Content-Type"] != "application/json" {
		t.Errorf("expected Content-Type unchanged, got %q", redacted["Content-Type"])
	}

	// Original map must be untouched.
	if headers["Authorization"] != "Bearer abc" {
		t.Error("RedactHeaders mutated the input map")
	}
}

func TestRedactBody_JSON(t *testing.T) {
	r := NewRedactor(nil)

	body := `{"username":"jane","password":"hunter2","nested":{"api_key":"xyz","ok":"fine"}}`
	redacted := r.RedactBody(body)

	if contains(redacted, "hunter2") {
		t.Errorf("expected password redacted, got %q", redacted)
	}
	if contains(redacted, "xyz") {
		t.Errorf("expected nested api_key redacted, got %q", redacted)
	}
	if !contains(redacted, "jane") {
		t.Errorf("expected non-sensitive field preserved, got %q", redacted)
	}
	if !contains(redacted, "fine") {
		t.Errorf("expected non-sensitive nested field preserved, got %q", redacted)
	}
}

func TestRedactBody_Opaque(t *testing.T) {
	r := NewRedactor(nil)

	body := "token=abcdef123456 rest of the text"
	redacted := r.RedactBody(body)

	if contains(redacted, "abcdef123456") {
		t.Errorf("expected opaque token redacted, got %q", redacted)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}
