package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/exec"
	"strings"
	"time"

	"github.com/ppiankov/eventsweep/internal/cache"
	"github.com/ppiankov/eventsweep/internal/worker"
)

// Page is a rendered document
type Page struct {
	HTML     string `json:"html"`
	FinalURL string `json:"final_url"` // after redirects; base for relative links
}

// Renderer turns a page URL into HTML
type Renderer interface {
	Name() string
	Render(ctx context.Context, pageURL string) (*Page, error)
}

// HTTPRenderer fetches the raw HTML without running scripts. Pages that
// inject their listings client-side need a CommandRenderer.
type HTTPRenderer struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
}

// NewHTTPRenderer creates a plain HTTP renderer. proxy may be nil.
func NewHTTPRenderer(timeout time.Duration, userAgent string, maxBytes int64, proxy func(*http.Request) (*url.URL, error)) *HTTPRenderer {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxy != nil {
		transport.Proxy = proxy
	}

	return &HTTPRenderer{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("stopped after 5 redirects")
				}
				return nil
			},
		},
		userAgent: userAgent,
		maxBytes:  maxBytes,
	}
}

func (r *HTTPRenderer) Name() string { return "http" }

func (r *HTTPRenderer) Render(ctx context.Context, pageURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Page{
		HTML:     string(body),
		FinalURL: resp.Request.URL.String(),
	}, nil
}

// CommandRenderer runs an external headless browser. The page URL is passed
// as the last argument and the rendered HTML is read from stdout.
type CommandRenderer struct {
	command  []string
	maxBytes int64
}

// NewCommandRenderer creates a renderer for command, e.g.
// ["chromium", "--headless", "--dump-dom"]
func NewCommandRenderer(command []string, maxBytes int64) (*CommandRenderer, error) {
	if len(command) == 0 || strings.TrimSpace(command[0]) == "" {
		return nil, errors.New("render command is empty")
	}
	return &CommandRenderer{command: command, maxBytes: maxBytes}, nil
}

func (r *CommandRenderer) Name() string { return "command" }

// How long Render waits for output pipes to close after the command is killed
const renderWaitDelay = 2 * time.Second

// Render kills the command, and any children it started, when ctx expires
func (r *CommandRenderer) Render(ctx context.Context, pageURL string) (*Page, error) {
	args := append(append([]string{}, r.command[1:]...), pageURL)
	cmd := exec.CommandContext(ctx, r.command[0], args...)
	configureProcessGroup(cmd)
	cmd.WaitDelay = renderWaitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitedBuffer{buf: &stdout, remaining: r.maxBytes}
	cmd.Stderr = &limitedBuffer{buf: &stderr, remaining: 4 << 10}

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("render command: %w", ctxErr)
		}
		return nil, fmt.Errorf("render command: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	if strings.TrimSpace(stdout.String()) == "" {
		return nil, errors.New("render command produced no output")
	}

	return &Page{HTML: stdout.String(), FinalURL: pageURL}, nil
}

// limitedBuffer keeps the first remaining bytes and discards the rest
// without failing the writer
type limitedBuffer struct {
	buf       *bytes.Buffer
	remaining int64
}

func (w *limitedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if w.remaining <= 0 {
		return n, nil
	}
	if int64(len(p)) > w.remaining {
		p = p[:w.remaining]
	}
	w.buf.Write(p)
	w.remaining -= int64(len(p))
	return n, nil
}

// ThrottledRenderer waits on the per-host limiter before each render
type ThrottledRenderer struct {
	next    Renderer
	limiter *worker.Limiter
}

func NewThrottledRenderer(next Renderer, limiter *worker.Limiter) *ThrottledRenderer {
	return &ThrottledRenderer{next: next, limiter: limiter}
}

func (r *ThrottledRenderer) Name() string { return r.next.Name() }

func (r *ThrottledRenderer) Render(ctx context.Context, pageURL string) (*Page, error) {
	if err := r.limiter.Wait(ctx, pageURL); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.Render(ctx, pageURL)
}

// CachedRenderer serves recently rendered pages from a cache
type CachedRenderer struct {
	next  Renderer
	cache cache.Cache
	ttl   time.Duration
}

func NewCachedRenderer(next Renderer, c cache.Cache, ttl time.Duration) *CachedRenderer {
	return &CachedRenderer{next: next, cache: c, ttl: ttl}
}

func (r *CachedRenderer) Name() string { return r.next.Name() }

// Render only caches successful renders. A cache write failure is ignored.
func (r *CachedRenderer) Render(ctx context.Context, pageURL string) (*Page, error) {
	key := cache.PageKey(r.next.Name(), pageURL)

	if data, ok := r.cache.Get(key); ok {
		var page Page
		if err := json.Unmarshal(data, &page); err == nil {
			return &page, nil
		}
	}

	page, err := r.next.Render(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(page); err == nil {
		_ = r.cache.Set(key, data, r.ttl)
	}

	return page, nil
}
