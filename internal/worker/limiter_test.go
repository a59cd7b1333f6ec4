package worker

import (
	"context"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestLimiter_New(t *testing.T) {
	l := NewLimiter(2, 0)
	if l.defaultBurst != 1 {
		t.Errorf("burst = %d, want 1 for non-positive input", l.defaultBurst)
	}
	if NewLimiter(0, 1).defaultRate != rate.Inf {
		t.Error("zero rate must disable pacing")
	}
}

func TestLimiter_PerHost(t *testing.T) {
	l := NewLimiter(10, 1)
	ctx := context.Background()

	start := time.Now()
	if err := l.Wait(ctx, "https://a.example.org/events"); err != nil {
		t.Fatal(err)
	}
	if err := l.Wait(ctx, "https://b.example.org/events"); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("different hosts should not wait on each other: %v", elapsed)
	}

	start = time.Now()
	if err := l.Wait(ctx, "https://A.example.org:443/calendar"); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("same host should be paced at 10 rps: %v", elapsed)
	}
}

func TestLimiter_RespectCrawlDelay(t *testing.T) {
	l := NewLimiter(10, 1)
	l.RespectCrawlDelay("https://slow.example.org/", 2*time.Second)

	if got := l.getLimiter("slow.example.org").Limit(); got != rate.Every(2*time.Second) {
		t.Errorf("limit = %v, want one per 2s", got)
	}

	// a laxer delay never loosens the configured rate
	l.RespectCrawlDelay("https://fast.example.org/", 10*time.Millisecond)
	if got := l.getLimiter("fast.example.org").Limit(); got != 10 {
		t.Errorf("limit = %v, want 10", got)
	}
}

func TestLimiter_WaitCancelled(t *testing.T) {
	l := NewLimiter(0.1, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_ = l.Wait(ctx, "https://example.org/")
	if err := l.Wait(ctx, "https://example.org/"); err == nil {
		t.Error("expected error when the wait exceeds the deadline")
	}
}

func TestExtractDomain(t *testing.T) {
	tests := map[string]string{
		"https://Example.org:8443/path": "example.org",
		"http://sub.example.org":        "sub.example.org",
	}
	for in, want := range tests {
		got, err := extractDomain(in)
		if err != nil || got != want {
			t.Errorf("extractDomain(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := extractDomain("://bad"); err == nil {
		t.Error("expected error for invalid URL")
	}
}
