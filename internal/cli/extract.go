package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/eventsweep/internal/logger"
	"github.com/ppiankov/eventsweep/internal/model"
	"github.com/ppiankov/eventsweep/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	extractKind     string
	extractRaw      bool
	extractTimeout  time.Duration
	extractNoRobots bool
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract <url>",
	Short: "Extract and normalize events from one source without delivering them",
	Long: `Extract runs a single source through collection, normalization and
deduplication and prints the resulting events as JSON. Nothing is posted.

Example:
  eventsweep extract https://venue.example.org/whats-on/
  eventsweep extract https://city.example.gov/calendar.ics --type ics
  eventsweep extract https://venue.example.org/whats-on/ --raw`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVar(&extractKind, "type", "page", "source type (page, ics, rss)")
	extractCmd.Flags().BoolVar(&extractRaw, "raw", false, "print raw candidates before normalization")
	extractCmd.Flags().DurationVar(&extractTimeout, "timeout", 2*time.Minute, "overall timeout")
	extractCmd.Flags().BoolVar(&extractNoRobots, "no-robots", false, "ignore robots.txt")
}

func runExtract(cmd *cobra.Command, args []string) error {
	kind, ok := model.ParseSourceKind(extractKind)
	if !ok {
		return fmt.Errorf("unknown source type %q", extractKind)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Sink.DryRun = true
	if extractNoRobots {
		cfg.Robots.Respect = false
	}
	logger.Setup(cfg, os.Stderr)

	ctx, cancel := context.WithTimeout(context.Background(), extractTimeout)
	defer cancel()

	p, err := pipeline.NewPipeline(cfg)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	source := model.Source{Kind: kind, URL: args[0], Name: model.UnknownSourceName}
	raws, err := p.Collect(ctx, source)
	if err != nil {
		return fmt.Errorf("extract failed: %w", err)
	}

	var out any = raws
	report := &model.SourceReport{Source: source, Candidates: len(raws)}
	if !extractRaw {
		out = p.Prepare(ctx, source, raws, report)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode events: %w", err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "✓ %d candidates, %d rejected, %d duplicates\n",
			report.Candidates, report.Rejected, report.Duplicates)
	}

	return nil
}
