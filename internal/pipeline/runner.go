package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ais-trajectory/internal/ais"
	"ais-trajectory/internal/metrics"
	"ais-trajectory/internal/report"
	"ais-trajectory/internal/trajectory"
)

// Source hands the engine a clean position table for one category.
type Source interface {
	Load(ctx context.Context, c ais.Category) (ais.Table, error)
}

type ReportWriter interface {
	Write(c ais.Category, s trajectory.Summary) ([]string, error)
}

type Publisher interface {
	PublishSummary(c ais.Category, s trajectory.Summary) error
}

type Result struct {
	Category ais.Category
	Summary  trajectory.Summary
	Rejected int
	Files    []string
}

// Runner processes vessel categories independently of each other.
type Runner struct {
	source     Source
	writer     ReportWriter
	pub        Publisher
	thresholds trajectory.Thresholds
	metrics    *metrics.Collector
	logger     *zap.Logger
}

// NewRunner wires a runner. pub and m may be nil.
func NewRunner(source Source, writer ReportWriter, pub Publisher, th trajectory.Thresholds, m *metrics.Collector, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		source:     source,
		writer:     writer,
		pub:        pub,
		thresholds: th,
		metrics:    m,
		logger:     logger,
	}
}

// Run processes every category concurrently and returns the results in the
// order of cats. The first failing category cancels the others.
func (r *Runner) Run(ctx context.Context, cats []ais.Category) ([]Result, error) {
	results := make([]Result, len(cats))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range cats {
		i, c := i, c
		g.Go(func() error {
			res, err := r.runCategory(gctx, c)
			if err != nil {
				if r.metrics != nil {
					r.metrics.CategoryFailures.WithLabelValues(c.String()).Inc()
				}
				return fmt.Errorf("%s: %w", c, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Runner) runCategory(ctx context.Context, c ais.Category) (Result, error) {
	start := time.Now()
	log := r.logger.With(zap.String("category", c.String()))
	log.Debug("processing category")

	table, err := r.source.Load(ctx, c)
	if err != nil {
		return Result{}, fmt.Errorf("load: %w", err)
	}
	if r.metrics != nil {
		r.metrics.RecordTable(table)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	log.Debug("computing distance", zap.Int("fixes", len(table.Fixes)))
	summary, err := trajectory.Summarize(table.Fixes, r.thresholds)
	if err != nil {
		return Result{}, fmt.Errorf("summarize: %w", err)
	}
	if r.metrics != nil {
		r.metrics.RecordSummary(c, summary)
	}
	log.Info(report.VesselsText(summary.Vessels))
	log.Info(report.LengthsText(summary.Lengths, summary.Thresholds))

	files, err := r.writer.Write(c, summary)
	if err != nil {
		return Result{}, err
	}
	log.Debug("saved results", zap.Strings("files", files))

	if r.pub != nil {
		if err := r.pub.PublishSummary(c, summary); err != nil {
			log.Warn("publish summary", zap.Error(err))
		}
	}
	if r.metrics != nil {
		r.metrics.CategoryDuration.WithLabelValues(c.String()).Observe(time.Since(start).Seconds())
	}
	return Result{Category: c, Summary: summary, Rejected: table.Rejected, Files: files}, nil
}

// Entries converts results for report.RenderTable.
func Entries(results []Result) []report.Entry {
	out := make([]report.Entry, len(results))
	for i, res := range results {
		out[i] = report.Entry{Category: res.Category, Summary: res.Summary}
	}
	return out
}
