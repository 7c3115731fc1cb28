package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitewalk/internal/browser"
	"github.com/nao1215/sitewalk/internal/model"
)

// TabOpener opens a fresh browsing context and returns it with its
// release function.
type TabOpener func(ctx context.Context) (browser.Page, func(), error)

// Factory builds the pipeline for one seed, bound to the page it runs on.
type Factory func(page browser.Page, seed string) *Pipeline

// BatchProcessor walks several seeds concurrently.
// Every seed gets its own tab and its own pipeline, so no traversal state
// is shared between seeds.
type BatchProcessor struct {
	// openTab creates the browsing context for each seed.
	openTab TabOpener

	// pipelineFactory creates a new pipeline for each seed.
	pipelineFactory Factory

	// concurrency is the maximum number of concurrent seeds.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// results stores completed runs.
	// Access is synchronized via mutex.
	results []*model.Run
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent seeds.
// Default is 1 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(openTab TabOpener, pipelineFactory Factory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		openTab:         openTab,
		pipelineFactory: pipelineFactory,
		concurrency:     1,
		results:         make([]*model.Run, 0),
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// RunSeed opens a tab, executes the seed's pipeline on it, and closes the
// tab. The returned run is never nil; the error is the pipeline's.
func (bp *BatchProcessor) RunSeed(ctx context.Context, seed string) (*model.Run, error) {
	run := model.NewRun(seed)

	page, release, err := bp.openTab(ctx)
	if err != nil {
		err = fmt.Errorf("failed to open browser tab: %w", err)
		run.Error = err.Error()
		run.Finish()
		return run, err
	}
	defer release()

	p := bp.pipelineFactory(page, seed)
	err = p.Execute(ctx, run)
	if run.FinishedAt.IsZero() {
		run.Finish()
	}
	return run, err
}

// ProcessBatch walks seeds concurrently and returns their runs in the
// order of seeds. A failed seed does not stop the others; its error is
// recorded in its run.
//
// The error return is non-nil only when ctx was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, seeds []string) ([]*model.Run, error) {
	bp.mu.Lock()
	bp.results = make([]*model.Run, len(seeds))
	bp.mu.Unlock()

	err := bp.ProcessBatchWithCallback(ctx, seeds, func(run *model.Run, _ error, index int) {
		bp.mu.Lock()
		bp.results[index] = run
		bp.mu.Unlock()
	})

	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.results, err
}

// ProcessBatchWithCallback walks seeds and calls callback for each
// finished seed with its run, its pipeline error and its index in seeds.
// The callback is called from the worker goroutine, so it must be safe
// for concurrent use when concurrency is above 1.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	seeds []string,
	callback func(run *model.Run, err error, index int),
) error {
	bp.logger.Info("starting batch processing",
		"total_seeds", len(seeds),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, seed := range seeds {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			bp.logger.Info("walking seed",
				"seed", seed,
				"index", i+1,
				"total", len(seeds),
			)

			run, err := bp.RunSeed(gctx, seed)
			if err != nil {
				bp.logger.Warn("seed failed", "seed", seed, "error", err)
			}

			callback(run, err, i)

			// One seed failing must not cancel the others.
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch processing complete",
		"total_seeds", len(seeds),
		"elapsed", time.Since(startTime),
	)

	if err == nil {
		err = ctx.Err()
	}
	return err
}
