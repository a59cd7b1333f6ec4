package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestPageKey(t *testing.T) {
	a := PageKey("http", "https://venue.example.org/whats-on/")
	b := PageKey("command", "https://venue.example.org/whats-on/")
	if a == b {
		t.Error("renderers must not share keys")
	}
	if a != PageKey("http", "https://venue.example.org/whats-on/") {
		t.Error("key must be deterministic")
	}
	if !strings.HasPrefix(a, "eventsweep-page-v1-") || strings.ContainsAny(a, `/\:`) {
		t.Errorf("key %q is not filesystem safe", a)
	}
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	if err := c.Set("k", []byte("<html>"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got, ok := c.Get("k"); !ok || string(got) != "<html>" {
		t.Errorf("Get = %q, %v", got, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
	_ = c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after Delete")
	}
}

func TestDiskCache_Expiry(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Hour)
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if err := c.Set("page", []byte("<html>cached</html>"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got, ok := c.Get("page"); !ok || string(got) != "<html>cached</html>" {
		t.Fatalf("Get = %q, %v", got, ok)
	}

	now = now.Add(2 * time.Hour)
	if _, ok := c.Get("page"); ok {
		t.Error("expected expired entry to miss")
	}
	if _, err := os.Stat(c.path("page")); !os.IsNotExist(err) {
		t.Error("expired entry should be removed from disk")
	}
}

func TestDiskCache_ClearKeepsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	foreign := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(foreign, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewDiskCache(dir, time.Hour)
	_ = c.Set("a", []byte("1"), 0)
	_ = c.Set("b", []byte("2"), 0)
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	if _, ok := c.Get("a"); ok {
		t.Error("expected cleared entry to miss")
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Errorf("foreign file removed: %v", err)
	}
	if err := c.Delete("missing"); err != nil {
		t.Errorf("Delete of missing key returned %v", err)
	}
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	NewDiskCache(dir, time.Hour).Set("page", []byte("from disk"), 0)

	c := NewLayeredCache(time.Minute, dir, time.Hour)
	if got, ok := c.Get("page"); !ok || string(got) != "from disk" {
		t.Fatalf("Get = %q, %v", got, ok)
	}
	if got, ok := c.memory.Get("page"); !ok || string(got) != "from disk" {
		t.Error("expected disk hit promoted to memory")
	}
}
