package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/eventsweep/internal/cache"
	"github.com/ppiankov/eventsweep/internal/worker"
)

func TestHTTPRenderer_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/calendar/", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/calendar/", func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "test-agent" {
			t.Errorf("User-Agent = %q", ua)
		}
		_, _ = fmt.Fprint(w, "<html><body>listings</body></html>")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	r := NewHTTPRenderer(5*time.Second, "test-agent", 1<<20, nil)
	page, err := r.Render(context.Background(), server.URL+"/old")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if page.FinalURL != server.URL+"/calendar/" {
		t.Errorf("FinalURL = %q, want redirect target", page.FinalURL)
	}
	if !strings.Contains(page.HTML, "listings") {
		t.Errorf("HTML = %q", page.HTML)
	}
}

func TestHTTPRenderer_LimitsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, strings.Repeat("a", 100))
	}))
	defer server.Close()

	page, err := NewHTTPRenderer(5*time.Second, "test-agent", 10, nil).Render(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if len(page.HTML) != 10 {
		t.Errorf("body length = %d, want 10", len(page.HTML))
	}
}

func TestHTTPRenderer_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	if _, err := NewHTTPRenderer(5*time.Second, "test-agent", 1<<20, nil).Render(context.Background(), server.URL); err == nil {
		t.Fatal("expected error for 403")
	}
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestCommandRenderer_PassesURLLast(t *testing.T) {
	requireShell(t)

	r, err := NewCommandRenderer([]string{"sh", "-c", `printf '<html>%s</html>' "$0"`}, 1<<20)
	if err != nil {
		t.Fatalf("NewCommandRenderer failed: %v", err)
	}
	page, err := r.Render(context.Background(), "https://venue.example.org/events")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if page.HTML != "<html>https://venue.example.org/events</html>" {
		t.Errorf("HTML = %q", page.HTML)
	}
	if page.FinalURL != "https://venue.example.org/events" {
		t.Errorf("FinalURL = %q", page.FinalURL)
	}
}

func TestCommandRenderer_Failure(t *testing.T) {
	requireShell(t)

	r, _ := NewCommandRenderer([]string{"sh", "-c", "echo browser crashed >&2; exit 3"}, 1<<20)
	_, err := r.Render(context.Background(), "https://venue.example.org/")
	if err == nil || !strings.Contains(err.Error(), "browser crashed") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

func TestCommandRenderer_EmptyOutput(t *testing.T) {
	requireShell(t)

	r, _ := NewCommandRenderer([]string{"sh", "-c", "true"}, 1<<20)
	if _, err := r.Render(context.Background(), "https://venue.example.org/"); err == nil {
		t.Fatal("expected error for empty output")
	}
}

func TestCommandRenderer_Timeout(t *testing.T) {
	requireShell(t)

	r, _ := NewCommandRenderer([]string{"sh", "-c", "sleep 5"}, 1<<20)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := r.Render(ctx, "https://venue.example.org/"); err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 3*time.Second {
		t.Error("command was not killed on context expiry")
	}
}

func TestCommandRenderer_TimeoutKillsChildren(t *testing.T) {
	requireShell(t)

	// the backgrounded sleep inherits stdout and outlives a plain kill of sh
	r, _ := NewCommandRenderer([]string{"sh", "-c", "sleep 5 & wait"}, 1<<20)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := r.Render(ctx, "https://venue.example.org/")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Error("child process kept Render waiting after context expiry")
	}
}

func TestNewCommandRenderer_Empty(t *testing.T) {
	if _, err := NewCommandRenderer(nil, 1<<20); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestCachedRenderer_ServesRepeatRenders(t *testing.T) {
	stub := &stubRenderer{pages: map[string]string{venueURL: "<html>cached</html>"}}
	r := NewCachedRenderer(stub, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute)

	for i := 0; i < 3; i++ {
		page, err := r.Render(context.Background(), venueURL)
		if err != nil {
			t.Fatalf("Render %d failed: %v", i, err)
		}
		if page.HTML != "<html>cached</html>" || page.FinalURL != venueURL {
			t.Errorf("page = %+v", page)
		}
	}
	if stub.calls.Load() != 1 {
		t.Errorf("underlying renders = %d, want 1", stub.calls.Load())
	}
}

func TestCachedRenderer_DoesNotCacheFailures(t *testing.T) {
	stub := &stubRenderer{failFirst: 1, pages: map[string]string{venueURL: "<html>ok</html>"}}
	r := NewCachedRenderer(stub, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute)

	if _, err := r.Render(context.Background(), venueURL); err == nil {
		t.Fatal("expected first render to fail")
	}
	if _, err := r.Render(context.Background(), venueURL); err != nil {
		t.Fatalf("second render failed: %v", err)
	}
	if stub.calls.Load() != 2 {
		t.Errorf("underlying renders = %d, want 2", stub.calls.Load())
	}
}

func TestThrottledRenderer_CancelledContext(t *testing.T) {
	stub := &stubRenderer{pages: map[string]string{venueURL: "<html></html>"}}
	r := NewThrottledRenderer(stub, worker.NewLimiter(0.001, 1))

	// first call consumes the burst token
	if _, err := r.Render(context.Background(), venueURL); err != nil {
		t.Fatalf("first render failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Render(ctx, venueURL); err == nil {
		t.Fatal("expected rate limit error on cancelled context")
	}
	if stub.calls.Load() != 1 {
		t.Errorf("underlying renders = %d, want 1", stub.calls.Load())
	}
}
