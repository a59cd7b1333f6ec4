// Package pipeline runs one source end to end: collect raw candidates,
// normalize, deduplicate and deliver.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ppiankov/eventsweep/internal/cache"
	"github.com/ppiankov/eventsweep/internal/classify"
	"github.com/ppiankov/eventsweep/internal/delivery"
	"github.com/ppiankov/eventsweep/internal/extract"
	"github.com/ppiankov/eventsweep/internal/feed"
	"github.com/ppiankov/eventsweep/internal/logger"
	"github.com/ppiankov/eventsweep/internal/metrics"
	"github.com/ppiankov/eventsweep/internal/model"
	"github.com/ppiankov/eventsweep/internal/normalize"
	"github.com/ppiankov/eventsweep/internal/util"
	"github.com/ppiankov/eventsweep/internal/worker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrRobotsDisallowed is returned when robots.txt forbids rendering a page
var ErrRobotsDisallowed = errors.New("disallowed by robots.txt")

// Pipeline orchestrates every stage for a source
type Pipeline struct {
	cfg        *model.Config
	renderer   Renderer
	robots     *util.RobotsChecker
	limiter    *worker.Limiter
	structured *extract.StructuredExtractor
	cards      *extract.CardScraper
	ics        *feed.ICSReader
	rss        *feed.RSSReader
	normalizer *normalize.Normalizer
	deliverer  delivery.Deliverer
	metrics    *metrics.Metrics
}

// Option overrides a default collaborator
type Option func(*Pipeline)

// WithRenderer replaces the page renderer chain
func WithRenderer(r Renderer) Option {
	return func(p *Pipeline) { p.renderer = r }
}

// WithDeliverer replaces the sink client
func WithDeliverer(d delivery.Deliverer) Option {
	return func(p *Pipeline) { p.deliverer = d }
}

// WithMetrics records pipeline counters into m
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// NewPipeline wires the pipeline from configuration
func NewPipeline(cfg *model.Config, opts ...Option) (*Pipeline, error) {
	classifier := classify.New()

	normalizer, err := normalize.New(cfg.Normalize.Timezone, classifier)
	if err != nil {
		return nil, err
	}

	proxy, err := util.NewProxyFunc(cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy)
	if err != nil {
		return nil, err
	}

	feeds := feed.NewFetcher(cfg.HTTP.Timeout, cfg.HTTP.UserAgent, cfg.HTTP.FeedRetries, proxy)

	p := &Pipeline{
		cfg:        cfg,
		limiter:    worker.NewLimiter(cfg.Concurrency.RequestsPerSecond, cfg.Concurrency.Burst),
		structured: extract.NewStructuredExtractor(),
		cards:      extract.NewCardScraper(classifier),
		ics:        feed.NewICSReader(feeds),
		rss:        feed.NewRSSReader(feeds),
		normalizer: normalizer,
	}

	if cfg.Robots.Respect {
		p.robots = util.NewRobotsChecker(cfg.HTTP.UserAgent, cfg.HTTP.Timeout, proxy)
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.renderer == nil {
		p.renderer, err = buildRenderer(cfg, proxy, p.limiter)
		if err != nil {
			return nil, err
		}
	}

	if p.deliverer == nil {
		if cfg.Sink.DryRun {
			p.deliverer = delivery.NewDryRunClient(os.Stdout)
		} else {
			p.deliverer = delivery.NewClient(cfg.Sink.URL, cfg.Delivery.Timeout, cfg.HTTP.UserAgent, cfg.Delivery.Backoff)
		}
	}

	return p, nil
}

// buildRenderer assembles cache -> throttle -> http|command
func buildRenderer(cfg *model.Config, proxy util.ProxyFunc, limiter *worker.Limiter) (Renderer, error) {
	var base Renderer
	if len(cfg.Render.Command) > 0 {
		cmd, err := NewCommandRenderer(cfg.Render.Command, cfg.HTTP.MaxBodyBytes)
		if err != nil {
			return nil, err
		}
		base = cmd
	} else {
		base = NewHTTPRenderer(cfg.HTTP.Timeout, cfg.HTTP.UserAgent, cfg.HTTP.MaxBodyBytes, proxy)
	}

	var r Renderer = NewThrottledRenderer(base, limiter)
	if cfg.Cache.Enabled {
		layered := cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
		r = NewCachedRenderer(r, layered, cfg.Cache.DiskTTL)
	}

	return r, nil
}

// RunSource collects, normalizes, deduplicates and delivers one source.
// It never returns nil; source-level failures are reported in the report.
func (p *Pipeline) RunSource(ctx context.Context, source model.Source) *model.SourceReport {
	start := time.Now()
	report := &model.SourceReport{Source: source}
	kind := string(source.Kind)

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Source:     source.URL,
		SourceKind: kind,
		Component:  "eventsweep.pipeline",
	})
	sc := logger.StartSpan(ctx, "pipeline.run_source", trace.WithAttributes(
		attribute.String("source.url", source.URL),
		attribute.String("source.kind", kind),
		attribute.String("source.name", source.Name),
	))
	defer sc.End()
	ctx = sc.Context()

	defer func() {
		report.Duration = time.Since(start)
		p.metrics.SourceDone(kind, report.Duration)
		sc.Span().SetAttributes(
			attribute.Int("events.candidates", report.Candidates),
			attribute.Int("events.delivered", report.Delivered),
			attribute.Int("events.failed", report.Failed),
		)
	}()

	raws, err := p.Collect(ctx, source)
	if errors.Is(err, feed.ErrNotCalendar) {
		slog.WarnContext(ctx, "skipping calendar source that returned HTML")
		return report
	}
	if err != nil {
		report.Error = err
		sc.RecordError(err)
		p.metrics.SourceError(kind)
		slog.ErrorContext(ctx, "source failed", "error", err)
		return report
	}

	report.Candidates = len(raws)
	for producer, n := range countByProducer(raws) {
		p.metrics.Candidates(kind, string(producer), n)
	}

	events := p.Prepare(ctx, source, raws, report)
	p.deliverAll(ctx, source, events, report)

	slog.InfoContext(ctx, "source done",
		"name", source.Name,
		"candidates", report.Candidates,
		"rejected", report.Rejected,
		"duplicates", report.Duplicates,
		"delivered", report.Delivered,
		"failed", report.Failed,
		"skipped_by_cap", report.SkippedByCap,
	)

	return report
}

// Collect produces the raw candidates for a source
func (p *Pipeline) Collect(ctx context.Context, source model.Source) ([]model.RawEvent, error) {
	switch source.Kind {
	case model.SourceICS:
		return p.ics.Read(ctx, source.URL)
	case model.SourceRSS:
		return p.rss.Read(ctx, source.URL)
	case model.SourcePage:
		return p.ExtractPage(ctx, source.URL)
	default:
		return nil, fmt.Errorf("unsupported source type %q", source.Kind)
	}
}

// ExtractPage renders pageURL and runs structured extraction, falling back
// to card scraping only when no structured event was found
func (p *Pipeline) ExtractPage(ctx context.Context, pageURL string) ([]model.RawEvent, error) {
	page, err := p.render(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	raws, err := p.structured.Extract(page.FinalURL, page.HTML)
	if err != nil {
		return nil, fmt.Errorf("extract structured data: %w", err)
	}
	if len(raws) > 0 {
		return raws, nil
	}

	slog.DebugContext(ctx, "no structured events, scraping cards")
	raws, err = p.cards.Scrape(page.FinalURL, page.HTML)
	if err != nil {
		return nil, fmt.Errorf("scrape cards: %w", err)
	}
	return raws, nil
}

// render applies robots.txt and retries the renderer within the page budget
func (p *Pipeline) render(ctx context.Context, pageURL string) (*Page, error) {
	if p.robots != nil {
		allowed, delay, err := p.robots.CanFetch(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("robots: %w", err)
		}
		if !allowed {
			return nil, fmt.Errorf("%w: %s", ErrRobotsDisallowed, pageURL)
		}
		p.limiter.RespectCrawlDelay(pageURL, delay)
	}

	attempts := p.cfg.Render.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		page, err := p.renderOnce(ctx, pageURL)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		slog.WarnContext(ctx, "page render failed", "attempt", attempt, "error", err)
	}

	return nil, fmt.Errorf("render %s: %w", pageURL, lastErr)
}

func (p *Pipeline) renderOnce(ctx context.Context, pageURL string) (*Page, error) {
	if p.cfg.Render.PageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Render.PageTimeout)
		defer cancel()
	}
	return p.renderer.Render(ctx, pageURL)
}

// Prepare normalizes and deduplicates raws, counting drops into report
func (p *Pipeline) Prepare(ctx context.Context, source model.Source, raws []model.RawEvent, report *model.SourceReport) []model.CanonicalEvent {
	kind := string(source.Kind)
	dedup := normalize.NewDeduplicator()
	events := make([]model.CanonicalEvent, 0, len(raws))

	for _, raw := range raws {
		ev, ok := p.normalizer.Normalize(raw, source)
		if !ok {
			report.Rejected++
			p.metrics.Rejected(kind)
			continue
		}
		if !dedup.Admit(ev) {
			report.Duplicates++
			p.metrics.Duplicate(kind)
			slog.DebugContext(ctx, "dropping duplicate", "event", ev.EventName, "link", ev.Link)
			continue
		}
		events = append(events, ev)
	}

	return events
}

// deliverAll posts events in order under one per-source delivery State
func (p *Pipeline) deliverAll(ctx context.Context, source model.Source, events []model.CanonicalEvent, report *model.SourceReport) {
	kind := string(source.Kind)
	state := delivery.NewState(p.cfg.Delivery.MinInterval, p.cfg.Delivery.MaxPerSource)
	defer func() { report.CapReached = state.CapReached() }()

	for i, ev := range events {
		if err := ctx.Err(); err != nil {
			report.Error = fmt.Errorf("delivery interrupted: %w", err)
			return
		}

		out, err := p.deliver(ctx, state, ev)
		switch {
		case errors.Is(err, delivery.ErrCapReached):
			report.SkippedByCap = len(events) - i
			p.metrics.Capped(kind, report.SkippedByCap)
			slog.InfoContext(ctx, "delivery cap reached", "cap", state.Cap, "skipped", report.SkippedByCap)
			return
		case err != nil:
			report.Failed++
			outcome := metrics.OutcomeFailed
			if errors.Is(err, delivery.ErrTerminal) {
				outcome = metrics.OutcomeTerminal
			}
			p.metrics.Delivery(kind, outcome, out.Attempts)
			slog.WarnContext(ctx, "delivery failed",
				"event", logger.Truncate(ev.EventName, 80), "attempts", out.Attempts, "status", out.StatusCode, "error", err)
		default:
			report.Delivered++
			p.metrics.Delivery(kind, metrics.OutcomeDelivered, out.Attempts)
			slog.InfoContext(ctx, "posted", "event", logger.Truncate(ev.EventName, 80), "date", deref(ev.Date), "attempts", out.Attempts)
		}
	}
}

func (p *Pipeline) deliver(ctx context.Context, state *delivery.State, ev model.CanonicalEvent) (delivery.Outcome, error) {
	sc := logger.StartSpan(ctx, "delivery.post", trace.WithAttributes(
		attribute.String("event.source_id", ev.SourceID),
	))
	defer sc.End()

	out, err := p.deliverer.Deliver(sc.Context(), state, ev)
	sc.Span().SetAttributes(
		attribute.Int("delivery.attempts", out.Attempts),
		attribute.Int("http.response.status_code", out.StatusCode),
	)
	if err != nil && !errors.Is(err, delivery.ErrCapReached) {
		sc.RecordError(err)
	}
	return out, err
}

func countByProducer(raws []model.RawEvent) map[model.Producer]int {
	counts := make(map[model.Producer]int)
	for _, raw := range raws {
		counts[raw.Producer]++
	}
	return counts
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
