package feed

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/ppiankov/eventsweep/internal/model"
)

// MaxSummaryRunes caps the description taken from a feed item
const MaxSummaryRunes = 1000

// RSSReader turns RSS/Atom items into raw events
type RSSReader struct {
	fetcher *Fetcher
	parser  *gofeed.Parser
}

// NewRSSReader creates a syndication feed reader
func NewRSSReader(fetcher *Fetcher) *RSSReader {
	return &RSSReader{
		fetcher: fetcher,
		parser:  gofeed.NewParser(),
	}
}

// Read downloads and parses the feed at rawURL
func (r *RSSReader) Read(ctx context.Context, rawURL string) ([]model.RawEvent, error) {
	doc, err := r.fetcher.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	feed, err := r.parser.Parse(bytes.NewReader(doc.Body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	events := make([]model.RawEvent, 0, len(feed.Items))
	for _, item := range feed.Items {
		raw := model.RawEvent{
			Producer:    model.ProducerRSS,
			Name:        item.Title,
			Start:       itemStart(item),
			Description: truncateRunes(item.Description, MaxSummaryRunes),
			URL:         strings.TrimSpace(item.Link),
			Tags:        item.Categories,
		}
		if guid := strings.TrimSpace(item.GUID); guid != "" {
			raw.Identifiers = []string{guid}
		}
		events = append(events, raw)
	}

	return events, nil
}

// itemStart prefers the published date, then updated
func itemStart(item *gofeed.Item) string {
	switch {
	case item.PublishedParsed != nil:
		return item.PublishedParsed.Format(time.RFC3339)
	case item.UpdatedParsed != nil:
		return item.UpdatedParsed.Format(time.RFC3339)
	case item.Published != "":
		return item.Published
	default:
		return item.Updated
	}
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
