package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func rssBody(description string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Library Events</title>
  <link>https://library.example.org/</link>
  <description>Upcoming programs</description>
  <item>
    <title>Author Talk: Mountain Histories</title>
    <link>https://library.example.org/events/author-talk</link>
    <guid isPermaLink="false">lib-evt-1001</guid>
    <pubDate>Thu, 05 Mar 2026 18:00:00 -0700</pubDate>
    <category>books</category>
    <category>talks</category>
    <description>` + description + `</description>
  </item>
  <item>
    <title>Teen Coding Club Weekly Meetup</title>
    <link>https://library.example.org/events/coding-club</link>
  </item>
</channel>
</rss>`
}

func TestRSSReader_Read(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = fmt.Fprint(w, rssBody(strings.Repeat("é", MaxSummaryRunes+50)))
	}))
	defer server.Close()

	events, err := NewRSSReader(newTestFetcher(t, 0)).Read(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 items, got %d", len(events))
	}

	talk := events[0]
	if talk.Name != "Author Talk: Mountain Histories" {
		t.Errorf("name = %q", talk.Name)
	}
	if talk.URL != "https://library.example.org/events/author-talk" {
		t.Errorf("url = %q", talk.URL)
	}
	start, err := time.Parse(time.RFC3339, talk.Start)
	if err != nil || !start.Equal(time.Date(2026, 3, 6, 1, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %q, want the pubDate instant", talk.Start)
	}
	if n := utf8.RuneCountInString(talk.Description); n != MaxSummaryRunes {
		t.Errorf("description length = %d runes, want %d", n, MaxSummaryRunes)
	}
	if strings.Join(talk.Tags, ",") != "books,talks" {
		t.Errorf("tags = %v", talk.Tags)
	}
	if len(talk.Identifiers) != 1 || talk.Identifiers[0] != "lib-evt-1001" {
		t.Errorf("identifiers = %v", talk.Identifiers)
	}

	club := events[1]
	if club.Start != "" || len(club.Tags) != 0 || len(club.Identifiers) != 0 {
		t.Errorf("expected bare item, got %+v", club)
	}
}

func TestRSSReader_InvalidFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "this is not a feed")
	}))
	defer server.Close()

	if _, err := NewRSSReader(newTestFetcher(t, 0)).Read(context.Background(), server.URL); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("héllo", 3); got != "hél" {
		t.Errorf("truncateRunes = %q", got)
	}
	if got := truncateRunes("short", 10); got != "short" {
		t.Errorf("truncateRunes = %q", got)
	}
}
