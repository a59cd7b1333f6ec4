// Package delivery posts canonical events to the sink
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ppiankov/eventsweep/internal/model"
	"golang.org/x/time/rate"
)

var (
	// ErrCapReached is returned once a State has delivered its cap
	ErrCapReached = errors.New("delivery cap reached")
	// ErrTerminal marks a sink response that must not be retried
	ErrTerminal = errors.New("sink rejected event")
)

// DefaultBackoff is the wait before each retry
var DefaultBackoff = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// deliverySleepFunc is overridden in tests
var deliverySleepFunc = time.Sleep

// Deliverer forwards one canonical event under a per-source State
type Deliverer interface {
	Deliver(ctx context.Context, state *State, ev model.CanonicalEvent) (Outcome, error)
}

// Outcome describes what happened to one event
type Outcome struct {
	Attempts   int
	StatusCode int // last HTTP status, 0 on transport error or dry run
	Delivered  bool
}

// State is the throttle and cap shared by every delivery of one source.
// It is passed by reference and must not be shared across sources.
type State struct {
	Throttle  *rate.Limiter
	Cap       int // successful deliveries allowed, 0 = unlimited
	delivered int
}

// NewState creates a State spacing attempts at least minInterval apart
func NewState(minInterval time.Duration, cap int) *State {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &State{
		Throttle: rate.NewLimiter(limit, 1),
		Cap:      cap,
	}
}

// Delivered returns the number of successful deliveries so far
func (s *State) Delivered() int {
	return s.delivered
}

// CapReached reports whether no further deliveries are allowed
func (s *State) CapReached() bool {
	return s.Cap > 0 && s.delivered >= s.Cap
}

// admit checks the cap before an event is attempted
func (s *State) admit() error {
	if s.CapReached() {
		return ErrCapReached
	}
	return nil
}

func (s *State) wait(ctx context.Context) error {
	if s.Throttle == nil {
		return nil
	}
	return s.Throttle.Wait(ctx)
}

// Client posts envelopes to the sink over HTTP
type Client struct {
	httpClient *http.Client
	sinkURL    string
	userAgent  string
	backoff    []time.Duration
}

// NewClient creates a sink client. A nil backoff uses DefaultBackoff;
// len(backoff) is the number of retries.
func NewClient(sinkURL string, timeout time.Duration, userAgent string, backoff []time.Duration) *Client {
	if backoff == nil {
		backoff = DefaultBackoff
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		sinkURL:    sinkURL,
		userAgent:  userAgent,
		backoff:    backoff,
	}
}

// Deliver posts ev, retrying 429, 5xx and transport errors. Every attempt
// waits on the state's throttle first. Once started, the attempt sequence
// ignores cancellation of ctx.
func (c *Client) Deliver(ctx context.Context, state *State, ev model.CanonicalEvent) (Outcome, error) {
	var out Outcome
	if err := state.admit(); err != nil {
		return out, err
	}

	body, err := json.Marshal(model.Envelope{Data: ev})
	if err != nil {
		return out, fmt.Errorf("encode envelope: %w", err)
	}

	ctx = context.WithoutCancel(ctx)

	for attempt := 0; ; attempt++ {
		if err := state.wait(ctx); err != nil {
			return out, fmt.Errorf("throttle: %w", err)
		}

		out.Attempts++
		status, err := c.post(ctx, body)
		out.StatusCode = status

		if err == nil {
			switch {
			case status >= 200 && status < 300:
				state.delivered++
				out.Delivered = true
				return out, nil
			case !isRetryableStatus(status):
				return out, fmt.Errorf("%w: status %d", ErrTerminal, status)
			}
			err = fmt.Errorf("unexpected status: %d", status)
		}

		if attempt >= len(c.backoff) {
			return out, fmt.Errorf("giving up after %d attempts: %w", out.Attempts, err)
		}
		deliverySleepFunc(c.backoff[attempt])
	}
}

func (c *Client) post(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sinkURL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return resp.StatusCode, nil
}

// isRetryableStatus reports whether a status code is worth retrying
func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
