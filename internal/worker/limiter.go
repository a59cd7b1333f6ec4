package worker

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces outbound page fetches per host. Sources on the same host
// share one limiter even when they run on different workers.
type Limiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.Mutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a limiter; requestsPerSecond <= 0 disables pacing
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}

	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}

	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  limit,
		defaultBurst: burst,
	}
}

// Wait blocks until rawURL's host may be fetched again
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	domain, err := extractDomain(rawURL)
	if err != nil {
		return err
	}
	return l.getLimiter(domain).Wait(ctx)
}

// RespectCrawlDelay slows the host down to one request per delay when that
// is stricter than the configured rate
func (l *Limiter) RespectCrawlDelay(rawURL string, delay time.Duration) {
	if delay <= 0 {
		return
	}
	domain, err := extractDomain(rawURL)
	if err != nil {
		return
	}

	limiter := l.getLimiter(domain)
	if every := rate.Every(delay); every < limiter.Limit() {
		limiter.SetLimit(every)
	}
}

func (l *Limiter) getLimiter(domain string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[domain]
	if !ok {
		limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
		l.limiters[domain] = limiter
	}
	return limiter
}

// extractDomain returns the lowercased host without port
func extractDomain(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return strings.ToLower(parsed.Hostname()), nil
}
