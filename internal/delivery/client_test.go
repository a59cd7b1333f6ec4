package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/eventsweep/internal/model"
)

func testEvent() model.CanonicalEvent {
	date := "2026-07-04"
	return model.CanonicalEvent{
		EventName: "Downtown Summer Concert Series",
		Date:      &date,
		HostOrg:   "Civic Center Conservancy",
		Tags:      []string{},
		Link:      "https://venue.example.org/events/42",
		Status:    model.StatusActive,
		SourceID:  "jsonld:abc",
	}
}

// noSleep records requested backoffs without waiting
func noSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var slept []time.Duration
	orig := deliverySleepFunc
	deliverySleepFunc = func(d time.Duration) { slept = append(slept, d) }
	t.Cleanup(func() { deliverySleepFunc = orig })
	return &slept
}

func statusSequence(attempts *atomic.Int32, codes ...int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := int(attempts.Add(1))
		code := codes[len(codes)-1]
		if n <= len(codes) {
			code = codes[n-1]
		}
		w.WriteHeader(code)
	}
}

func TestDeliver_Success(t *testing.T) {
	var got map[string]json.RawMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, "test-agent", nil)
	state := NewState(0, 0)
	out, err := client.Deliver(context.Background(), state, testEvent())
	if err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if !out.Delivered || out.Attempts != 1 || out.StatusCode != http.StatusOK {
		t.Errorf("outcome = %+v", out)
	}
	if state.Delivered() != 1 {
		t.Errorf("Delivered() = %d, want 1", state.Delivered())
	}
	if _, ok := got["data"]; !ok || len(got) != 1 {
		t.Errorf("expected {\"data\": ...} envelope, got keys %v", got)
	}
}

func TestDeliver_RetriesTooManyRequests(t *testing.T) {
	slept := noSleep(t)
	var attempts atomic.Int32
	server := httptest.NewServer(statusSequence(&attempts, 429, 429, 200))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, "test-agent", nil)
	out, err := client.Deliver(context.Background(), NewState(0, 0), testEvent())
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts.Load() != 3 || out.Attempts != 3 {
		t.Errorf("attempts = %d (outcome %d), want 3", attempts.Load(), out.Attempts)
	}
	if len(*slept) != 2 || (*slept)[0] != time.Second || (*slept)[1] != 2*time.Second {
		t.Errorf("backoff = %v, want [1s 2s]", *slept)
	}
}

func TestDeliver_ClientErrorIsTerminal(t *testing.T) {
	noSleep(t)
	var attempts atomic.Int32
	server := httptest.NewServer(statusSequence(&attempts, 400))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, "test-agent", nil)
	state := NewState(0, 0)
	out, err := client.Deliver(context.Background(), state, testEvent())
	if !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
	if attempts.Load() != 1 || out.StatusCode != 400 {
		t.Errorf("attempts = %d status = %d, want 1 / 400", attempts.Load(), out.StatusCode)
	}
	if state.Delivered() != 0 {
		t.Error("failed delivery must not count toward the cap")
	}
}

func TestDeliver_ServerErrorsExhaustRetries(t *testing.T) {
	slept := noSleep(t)
	var attempts atomic.Int32
	server := httptest.NewServer(statusSequence(&attempts, 503))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, "test-agent", nil)
	_, err := client.Deliver(context.Background(), NewState(0, 0), testEvent())
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if errors.Is(err, ErrTerminal) {
		t.Error("exhausted retries are not a terminal rejection")
	}
	if attempts.Load() != 4 {
		t.Errorf("attempts = %d, want 4", attempts.Load())
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("backoff = %v, want %v", *slept, want)
	}
	for i := range want {
		if (*slept)[i] != want[i] {
			t.Errorf("backoff[%d] = %v, want %v", i, (*slept)[i], want[i])
		}
	}
}

func TestDeliver_TransportErrorRetried(t *testing.T) {
	noSleep(t)
	server := httptest.NewServer(http.NotFoundHandler())
	sinkURL := server.URL
	server.Close()

	client := NewClient(sinkURL, time.Second, "test-agent", nil)
	out, err := client.Deliver(context.Background(), NewState(0, 0), testEvent())
	if err == nil {
		t.Fatal("expected transport error")
	}
	if out.Attempts != 4 {
		t.Errorf("attempts = %d, want 4", out.Attempts)
	}
}

func TestDeliver_Cap(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(statusSequence(&attempts, 201))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, "test-agent", nil)
	state := NewState(0, 2)

	for i := 0; i < 2; i++ {
		if _, err := client.Deliver(context.Background(), state, testEvent()); err != nil {
			t.Fatalf("delivery %d failed: %v", i, err)
		}
	}
	if !state.CapReached() {
		t.Error("expected cap reached after 2 deliveries")
	}
	if _, err := client.Deliver(context.Background(), state, testEvent()); !errors.Is(err, ErrCapReached) {
		t.Fatalf("expected ErrCapReached, got %v", err)
	}
	if attempts.Load() != 2 {
		t.Errorf("sink saw %d requests, want 2", attempts.Load())
	}
}

func TestDeliver_ThrottleSpacesAttempts(t *testing.T) {
	noSleep(t)
	var attempts atomic.Int32
	server := httptest.NewServer(statusSequence(&attempts, 500, 200))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, "test-agent", nil)
	state := NewState(60*time.Millisecond, 0)

	start := time.Now()
	if _, err := client.Deliver(context.Background(), state, testEvent()); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("retry was not throttled: %v", elapsed)
	}
}

func TestDeliver_IgnoresCallerCancellation(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(statusSequence(&attempts, 200))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(server.URL, 5*time.Second, "test-agent", nil)
	out, err := client.Deliver(ctx, NewState(0, 0), testEvent())
	if err != nil || !out.Delivered {
		t.Fatalf("expected delivery despite cancelled context, got %+v %v", out, err)
	}
}

func TestDryRunClient(t *testing.T) {
	var buf bytes.Buffer
	dry := NewDryRunClient(&buf)
	state := NewState(0, 1)

	out, err := dry.Deliver(context.Background(), state, testEvent())
	if err != nil || !out.Delivered {
		t.Fatalf("dry run delivery failed: %+v %v", out, err)
	}
	if _, err := dry.Deliver(context.Background(), state, testEvent()); !errors.Is(err, ErrCapReached) {
		t.Errorf("expected cap to apply in dry run, got %v", err)
	}

	line := strings.TrimSpace(buf.String())
	var env model.Envelope
	if err := json.Unmarshal([]byte(line), &env); err != nil {
		t.Fatalf("output is not an envelope: %v (%s)", err, line)
	}
	if env.Data.EventName != "Downtown Summer Concert Series" {
		t.Errorf("event_name = %q", env.Data.EventName)
	}
}
