package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ppiankov/eventsweep/internal/id"
	"github.com/ppiankov/eventsweep/internal/logger"
	"github.com/ppiankov/eventsweep/internal/metrics"
	"github.com/ppiankov/eventsweep/internal/model"
	"github.com/ppiankov/eventsweep/internal/pipeline"
	"github.com/ppiankov/eventsweep/internal/telemetry"
	"github.com/ppiankov/eventsweep/internal/worker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultSourcesFile = "sources.csv"

var (
	runTimeout    time.Duration
	noCache       bool
	noRobots      bool
	renderCommand string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [sources-file]",
	Short: "Harvest every configured source and deliver events to the sink",
	Long: `Run reads the source list (CSV with header type,url,source_name,default_location
or a YAML list with the same fields), processes sources concurrently and posts
every normalized event to the sink.

Per-source failures are logged and counted; the run always completes and
prints how many events were posted for each source.

Example:
  eventsweep run
  eventsweep run sources.yaml --sink-url https://hooks.example.com/events
  eventsweep run --dry-run --max-per-source 5
  eventsweep run --render-command "chromium --headless --dump-dom"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	defaults := model.DefaultConfig()
	flags := runCmd.Flags()

	flags.String("sink-url", "", "sink endpoint receiving events (env: EVENTSWEEP_SINK_URL or AIRTABLE_WEBHOOK)")
	flags.Int("concurrency", defaults.Concurrency.Workers, "number of sources processed in parallel")
	flags.String("timezone", defaults.Normalize.Timezone, "IANA timezone for event dates and times")
	flags.Int("max-per-source", defaults.Delivery.MaxPerSource, "max events delivered per source (0 = unlimited)")
	flags.Duration("throttle", defaults.Delivery.MinInterval, "minimum interval between sink requests per source")
	flags.Duration("page-timeout", defaults.Render.PageTimeout, "time budget for rendering one page")
	flags.Bool("dry-run", false, "print envelopes to stdout instead of posting them")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address while running (e.g. :9090)")
	flags.String("metrics-file", "", "write a Prometheus textfile when the run completes")

	flags.BoolVar(&noCache, "no-cache", false, "disable the rendered-page cache")
	flags.BoolVar(&noRobots, "no-robots", false, "ignore robots.txt for page sources")
	flags.StringVar(&renderCommand, "render-command", "", "headless browser command; receives the URL as last argument and prints HTML")
	flags.DurationVar(&runTimeout, "timeout", 0, "overall run timeout (0 = none)")

	bindFlags(runCmd, map[string]string{
		"sink.url":                "sink-url",
		"sink.dry_run":            "dry-run",
		"concurrency.workers":     "concurrency",
		"normalize.timezone":      "timezone",
		"delivery.max_per_source": "max-per-source",
		"delivery.min_interval":   "throttle",
		"render.page_timeout":     "page-timeout",
		"metrics.addr":            "metrics-addr",
		"metrics.textfile":        "metrics-file",
	})
}

func bindFlags(cmd *cobra.Command, keys map[string]string) {
	for key, flag := range keys {
		_ = viper.BindPFlag(key, cmd.Flags().Lookup(flag))
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	sourcesFile := defaultSourcesFile
	if len(args) == 1 {
		sourcesFile = args[0]
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunOverrides(cfg)

	if !cfg.Sink.DryRun && cfg.Sink.URL == "" {
		return errors.New("sink url not configured: use --sink-url, EVENTSWEEP_SINK_URL or AIRTABLE_WEBHOOK (or --dry-run)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}

	tel, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "telemetry shutdown: %v\n", err)
		}
	}()

	logger.Setup(cfg, os.Stderr)

	sources, err := worker.ReadSourcesFromFile(sourcesFile)
	if err != nil {
		return err
	}

	if err := id.Init(1); err != nil {
		return fmt.Errorf("init run id: %w", err)
	}
	runID := id.NewString()
	ctx = logger.WithLogFields(ctx, logger.LogFields{RunID: runID, Component: "eventsweep.run"})

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		srv := metrics.NewServer(cfg.Metrics.Addr, m)
		go func() {
			if err := srv.Serve(); err != nil {
				slog.ErrorContext(ctx, "metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	p, err := pipeline.NewPipeline(cfg, pipeline.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	if len(sources) == 0 {
		slog.WarnContext(ctx, "no usable sources", "file", sourcesFile)
		return nil
	}

	slog.InfoContext(ctx, "starting run",
		"sources", len(sources),
		"workers", cfg.Concurrency.Workers,
		"timezone", cfg.Normalize.Timezone,
		"dry_run", cfg.Sink.DryRun,
	)

	start := time.Now()
	processor := worker.NewBatchProcessor(p, cfg.Concurrency.Workers)
	reports := processor.ProcessSources(ctx, sources)
	m.RunDone(time.Now())

	printSummary(os.Stderr, runID, reports, time.Since(start))

	if cfg.Metrics.Textfile != "" {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			slog.ErrorContext(ctx, "write metrics textfile", "path", cfg.Metrics.Textfile, "error", err)
		}
	}

	return nil
}

// applyRunOverrides applies the flags that do not map one-to-one onto a
// config key
func applyRunOverrides(cfg *model.Config) {
	if noCache {
		cfg.Cache.Enabled = false
	}
	if noRobots {
		cfg.Robots.Respect = false
	}
	if command := strings.Fields(renderCommand); len(command) > 0 {
		cfg.Render.Command = command
	}
}

func printSummary(w io.Writer, runID string, reports []*model.SourceReport, elapsed time.Duration) {
	var delivered, failed, errored int

	_, _ = fmt.Fprintf(w, "\n")
	_, _ = fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	_, _ = fmt.Fprintf(w, "  Run %s complete\n", runID)
	_, _ = fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	_, _ = fmt.Fprintf(w, "\n")

	for _, r := range reports {
		delivered += r.Delivered
		failed += r.Failed

		name := r.Source.Name
		if name == "" {
			name = model.UnknownSourceName
		}

		if r.Error != nil {
			errored++
			_, _ = fmt.Fprintf(w, "✗ %s (%s): %v; done: posted %d\n", name, r.Source.URL, r.Error, r.Delivered)
			continue
		}

		line := fmt.Sprintf("✓ %s (%s): done: posted %d", name, r.Source.URL, r.Delivered)
		var extras []string
		if r.Failed > 0 {
			extras = append(extras, fmt.Sprintf("%d failed", r.Failed))
		}
		if r.SkippedByCap > 0 {
			extras = append(extras, fmt.Sprintf("%d skipped by cap", r.SkippedByCap))
		}
		if len(extras) > 0 {
			line += " (" + strings.Join(extras, ", ") + ")"
		}
		_, _ = fmt.Fprintln(w, line)
	}

	_, _ = fmt.Fprintf(w, "\n")
	_, _ = fmt.Fprintf(w, "  Sources:    %d (%d with errors)\n", len(reports), errored)
	_, _ = fmt.Fprintf(w, "  Posted:     %d\n", delivered)
	_, _ = fmt.Fprintf(w, "  Failed:     %d\n", failed)
	_, _ = fmt.Fprintf(w, "  Elapsed:    %s\n", elapsed.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "\n")
}
