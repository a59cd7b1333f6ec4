// Package feed reads calendar (ICS) and syndication (RSS/Atom) sources
package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

// feedRetryWait is the base wait between feed download retries
var feedRetryWait = 1 * time.Second

// Fetcher downloads feed documents with retry on transient failures
type Fetcher struct {
	client *resty.Client
}

// NewFetcher creates a feed fetcher. proxy may be nil.
func NewFetcher(timeout time.Duration, userAgent string, retries int, proxy func(*http.Request) (*url.URL, error)) *Fetcher {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(feedRetryWait).
		SetRetryMaxWaitTime(4*feedRetryWait).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "text/calendar, application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && (r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500)
		})

	if proxy != nil {
		client.SetTransport(&http.Transport{Proxy: proxy})
	}

	return &Fetcher{client: client}
}

// Document is a downloaded feed body
type Document struct {
	Body        []byte
	ContentType string
}

// Get downloads rawURL, failing on any non-2xx final status
func (f *Fetcher) Get(ctx context.Context, rawURL string) (*Document, error) {
	resp, err := f.client.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("unexpected status: %d %s", resp.StatusCode(), resp.Status())
	}

	return &Document{
		Body:        resp.Body(),
		ContentType: resp.Header().Get("Content-Type"),
	}, nil
}
