package security

import "testing"

func TestNormalizeHost(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain host", "example.com", "example.com"},
		{"uppercase", "Example.COM", "example.com"},
		{"with scheme", "https://example.com/path", "example.com"},
		{"with port", "example.com:8080", "example.com"},
		{"with scheme and port", "https://example.com:8080/a/b", "example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeHost(tt.in); got != tt.want {
				t.Errorf("NormalizeHost(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestAllowList_Contains(t *testing.T) {
	al := NewAllowList([]string{"example.com"}, false)

	if !al.Contains("example.com") {
		t.Error("expected example.com to be allowed")
	}
	if al.Contains("google.com") {
		t.Error("expected google.com to be denied")
	}
	if al.Contains("localhost") {
		t.Error("expected localhost denied when auto-approve is off")
	}
}

func TestAllowList_AutoApproveLocalhost(t *testing.T) {
	al := NewAllowList(nil, true)

	if !al.Contains("localhost") {
		t.Error("expected localhost auto-approved")
	}
	if !al.Contains("127.0.0.1") {
		t.Error("expected 127.0.0.1 auto-approved")
	}
	if al.Contains("example.com") {
		t.Error("expected non-loopback host still denied")
	}
}

func TestAllowList_Add(t *testing.T) {
	al := NewAllowList(nil, false)
	al.Add("https://newly-allowed.com/foo")

	if !al.Contains("newly-allowed.com") {
		t.Error("expected added host to be allowed")
	}
}
