package tools

import (
	"testing"
	"time"

	"browsernerd-mcp-server/internal/capture"
)

func TestNavigationStatus_FindsMostRecentMatch(t *testing.T) {
	now := time.Now()
	records := []capture.NetworkRecord{
		{Timestamp: now, URL: "https://example.com/", Status: 301},
		{Timestamp: now.Add(time.Millisecond), URL: "https://example.com/", Status: 200},
	}
	if got := navigationStatus(records, "https://example.com/"); got != 200 {
		t.Fatalf("expected the later 200, got %d", got)
	}
}

func TestNavigationStatus_FallsBackWhenNoMatch(t *testing.T) {
	records := []capture.NetworkRecord{
		{URL: "https://other.example/", Status: 204},
	}
	if got := navigationStatus(records, "https://example.com/"); got != 200 {
		t.Fatalf("expected fallback 200, got %d", got)
	}
}

func TestNavigationStatus_IgnoresZeroStatus(t *testing.T) {
	records := []capture.NetworkRecord{
		{URL: "https://example.com/", Status: 0},
	}
	if got := navigationStatus(records, "https://example.com/"); got != 200 {
		t.Fatalf("expected fallback 200 for an unset status, got %d", got)
	}
}
