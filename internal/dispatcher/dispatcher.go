// Package dispatcher coordinates a harvest run: it fans snapshot URLs out
// across a bounded worker pool, sorts the outcomes into buckets and sweeps
// the exceptions once more without delay.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/1-icenine/eci-tracker/internal/metrics"
	"github.com/1-icenine/eci-tracker/internal/queue/memory"
	"github.com/1-icenine/eci-tracker/internal/snapshot"
)

// Processor handles one URL with bounded retries.
type Processor interface {
	ProcessWithRetry(ctx context.Context, url string, maxAttempts int, baseDelay time.Duration) snapshot.Outcome
}

// Options configures one run.
type Options struct {
	Concurrency   int
	MaxAttempts   int
	BaseDelay     time.Duration
	SweepAttempts int
}

// Dispatcher runs harvest passes over a Processor.
type Dispatcher struct {
	processor Processor
	metrics   *metrics.Metrics
	progress  *Progress
	logger    *zap.Logger
}

// New creates a Dispatcher. m may be nil.
func New(processor Processor, m *metrics.Metrics, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		processor: processor,
		metrics:   m,
		progress:  &Progress{},
		logger:    logger.Named("dispatcher"),
	}
}

// Progress exposes live counters for the current run.
func (d *Dispatcher) Progress() *Progress {
	return d.progress
}

// Run harvests urls and returns the merged result. The first pass uses
// MaxAttempts with exponential backoff; URLs still failing are swept with
// SweepAttempts and no delay. A canceled context aborts the run with an
// error and no result.
func (d *Dispatcher) Run(ctx context.Context, urls []string, opts Options) (snapshot.Result, error) {
	d.progress.begin(len(urls))
	defer d.progress.finish()

	b := newBuckets()
	d.logger.Info("harvest started",
		zap.Int("urls", len(urls)),
		zap.Int("concurrency", opts.Concurrency),
		zap.Int("max_attempts", opts.MaxAttempts),
		zap.Duration("base_delay", opts.BaseDelay),
	)

	for out := range d.pass(ctx, urls, opts.Concurrency, opts.MaxAttempts, opts.BaseDelay) {
		b.add(out)
		d.observe(metrics.PassFirst, out)
	}
	if err := ctx.Err(); err != nil {
		return snapshot.Result{}, fmt.Errorf("harvest canceled: %w", err)
	}

	if retry := b.exceptionURLs(); len(retry) > 0 && opts.SweepAttempts > 0 {
		d.logger.Info("sweeping exceptions", zap.Int("urls", len(retry)), zap.Int("attempts", opts.SweepAttempts))
		d.progress.beginSweep(len(retry))
		for out := range d.pass(ctx, retry, opts.Concurrency, opts.SweepAttempts, 0) {
			b.resolve(out)
			d.observe(metrics.PassSweep, out)
		}
		if err := ctx.Err(); err != nil {
			return snapshot.Result{}, fmt.Errorf("harvest canceled: %w", err)
		}
	}

	result := b.result()
	d.logger.Info("harvest finished",
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("no_data", len(result.NoData)),
		zap.Int("exceptions", len(result.Exceptions)),
		zap.Int("records", len(result.Records)),
	)
	return result, nil
}

// pass starts a pool over urls and returns the outcome channel, which is
// closed once every worker has exited.
func (d *Dispatcher) pass(
	ctx context.Context,
	urls []string,
	concurrency int,
	attempts int,
	delay time.Duration,
) <-chan snapshot.Outcome {
	workers := concurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(urls) {
		workers = len(urls)
	}
	outcomes := make(chan snapshot.Outcome, workers)
	queue := memory.NewQueue[string](workers)

	go func() {
		defer queue.Close()
		for _, u := range urls {
			if err := queue.Enqueue(ctx, u); err != nil {
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.work(ctx, queue, outcomes, attempts, delay)
		}()
	}
	go func() {
		wg.Wait()
		close(outcomes)
	}()
	return outcomes
}

func (d *Dispatcher) work(
	ctx context.Context,
	queue *memory.Queue[string],
	outcomes chan<- snapshot.Outcome,
	attempts int,
	delay time.Duration,
) {
	for {
		url, err := queue.Dequeue(ctx)
		if err != nil {
			return
		}
		d.metrics.IncActiveWorkers()
		out := d.processor.ProcessWithRetry(ctx, url, attempts, delay)
		d.metrics.DecActiveWorkers()
		select {
		case outcomes <- out:
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) observe(pass string, out snapshot.Outcome) {
	d.metrics.ObserveOutcome(pass, string(out.Status), len(out.Records))
	d.progress.record(pass, out)

	fields := []zap.Field{
		zap.String("url", out.URL),
		zap.String("pass", pass),
		zap.Int("attempts", out.Attempts),
	}
	switch out.Status {
	case snapshot.StatusSuccess:
		d.logger.Info("snapshot harvested", append(fields, zap.Int("records", len(out.Records)))...)
	case snapshot.StatusNoData:
		d.logger.Info("snapshot has no data", fields...)
	default:
		d.logger.Warn("snapshot failed", append(fields, zap.Error(out.Err))...)
	}
}
