package worker

import (
	"context"

	"github.com/ppiankov/eventsweep/internal/model"
)

// SourceRunner runs one source end to end
type SourceRunner interface {
	RunSource(ctx context.Context, source model.Source) *model.SourceReport
}

// SourceJob runs one source on the pool
type SourceJob struct {
	Index  int
	Source model.Source
	Runner SourceRunner
}

// Execute runs the source
func (j *SourceJob) Execute(ctx context.Context) Result {
	return &sourceResult{index: j.Index, report: j.Runner.RunSource(ctx, j.Source)}
}

type sourceResult struct {
	index  int
	report *model.SourceReport
}

func (r *sourceResult) GetError() error {
	return r.report.GetError()
}

// BatchProcessor fans sources out over a pool
type BatchProcessor struct {
	runner      SourceRunner
	concurrency int
}

// NewBatchProcessor creates a batch processor
func NewBatchProcessor(runner SourceRunner, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		runner:      runner,
		concurrency: concurrency,
	}
}

// ProcessSources runs every source and returns their reports in input order.
// A source skipped because ctx was cancelled gets a report carrying ctx.Err().
func (b *BatchProcessor) ProcessSources(ctx context.Context, sources []model.Source) []*model.SourceReport {
	reports := make([]*model.SourceReport, len(sources))
	if len(sources) == 0 {
		return reports
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	go func() {
		for i, src := range sources {
			if !pool.Submit(&SourceJob{Index: i, Source: src, Runner: b.runner}) {
				break
			}
		}
		pool.CloseInput()
	}()

	for result := range pool.Results() {
		r := result.(*sourceResult)
		reports[r.index] = r.report
	}

	for i, report := range reports {
		if report == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			reports[i] = &model.SourceReport{Source: sources[i], Error: err}
		}
	}

	return reports
}
