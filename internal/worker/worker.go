// Package worker fetches, extracts and classifies single snapshot URLs.
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/1-icenine/eci-tracker/internal/extract"
	"github.com/1-icenine/eci-tracker/internal/metrics"
	"github.com/1-icenine/eci-tracker/internal/snapshot"
)

// Config controls Worker behavior.
type Config struct {
	Fetch snapshot.FetchOptions
	// RunID scopes archived pages. Empty stores them under "adhoc".
	RunID         string
	ContentType   string
	ArchivePrefix string
}

// Worker turns a snapshot URL into an Outcome.
type Worker struct {
	fetcher snapshot.PageFetcher
	clock   snapshot.Clock
	archive snapshot.BlobStore
	hasher  snapshot.Hasher
	metrics *metrics.Metrics
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Worker. archive, hasher and m may be nil.
func New(
	fetcher snapshot.PageFetcher,
	clock snapshot.Clock,
	archive snapshot.BlobStore,
	hasher snapshot.Hasher,
	m *metrics.Metrics,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "text/html; charset=utf-8"
	}
	if cfg.RunID == "" {
		cfg.RunID = "adhoc"
	}
	return &Worker{
		fetcher: fetcher,
		clock:   clock,
		archive: archive,
		hasher:  hasher,
		metrics: m,
		cfg:     cfg,
		logger:  logger.Named("worker"),
	}
}

// Process makes a single attempt at url. A missing table or an empty table
// is NoData; any other fetch fault is an Exception.
func (w *Worker) Process(ctx context.Context, url string) snapshot.Outcome {
	date, clock := snapshot.ParseCaptureTime(url)
	if date == snapshot.UnknownDate {
		w.logger.Warn("snapshot url has no valid timestamp", zap.String("url", url))
	}

	start := w.clock.Now()
	out := w.attempt(ctx, url, date, clock)
	out.Attempts = 1
	w.metrics.ObserveAttempt(string(out.Status), w.clock.Now().Sub(start))
	return out
}

func (w *Worker) attempt(ctx context.Context, url, date, clock string) snapshot.Outcome {
	page, err := w.fetcher.Fetch(ctx, url, w.cfg.Fetch)
	switch {
	case errors.Is(err, snapshot.ErrNoTable):
		return snapshot.NoData(url)
	case err != nil:
		return snapshot.Exception(url, fmt.Errorf("fetch snapshot: %w", err))
	}

	records := slices.Collect(extract.Records(page, date, clock, url))
	if len(records) == 0 {
		return snapshot.NoData(url)
	}
	w.archivePage(ctx, url, page)
	return snapshot.Success(url, records)
}

// ProcessWithRetry calls Process up to maxAttempts times, stopping at the
// first Success or NoData. The delay before attempt k+1 is
// baseDelay * 2^(k-1); no delay follows the final attempt.
func (w *Worker) ProcessWithRetry(ctx context.Context, url string, maxAttempts int, baseDelay time.Duration) snapshot.Outcome {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var out snapshot.Outcome
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out = w.Process(ctx, url)
		out.Attempts = attempt
		if out.Status != snapshot.StatusException {
			return out
		}
		if attempt == maxAttempts || ctx.Err() != nil {
			break
		}
		delay := Backoff(baseDelay, attempt)
		w.logger.Warn("attempt failed, retrying",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Duration("delay", delay),
			zap.Error(out.Err),
		)
		if delay <= 0 {
			continue
		}
		w.metrics.ObserveBackoff(delay)
		if err := w.clock.Sleep(ctx, delay); err != nil {
			break
		}
	}
	w.logger.Error("snapshot failed after retries",
		zap.String("url", url),
		zap.Int("attempts", out.Attempts),
		zap.Error(out.Err),
	)
	return out
}

// Backoff returns base * 2^(attempt-1) for attempt >= 1.
func Backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 || attempt < 1 {
		return 0
	}
	shift := attempt - 1
	if shift > 30 {
		shift = 30
	}
	return base << shift
}

func (w *Worker) archivePage(ctx context.Context, url string, page snapshot.PageHandle) {
	if w.archive == nil || w.hasher == nil {
		return
	}
	src, ok := page.(snapshot.SourceHTML)
	if !ok {
		return
	}
	body := src.HTML()
	hash, err := w.hasher.Hash(body)
	if err != nil {
		w.archiveFailed(url, fmt.Errorf("hash page: %w", err))
		return
	}
	path := w.buildBlobPath(url, hash)
	uri, err := w.archive.PutObject(ctx, path, w.cfg.ContentType, bytes.NewReader(body))
	if err != nil {
		w.archiveFailed(url, fmt.Errorf("put object: %w", err))
		return
	}
	w.logger.Debug("snapshot archived", zap.String("url", url), zap.String("uri", uri))
}

func (w *Worker) archiveFailed(url string, err error) {
	w.metrics.ObserveArchiveFailure()
	w.logger.Warn("archive snapshot failed", zap.String("url", url), zap.Error(err))
}

func (w *Worker) buildBlobPath(url, hash string) string {
	ts, ok := snapshot.ExtractTimestamp(url)
	if !ok {
		ts = "unknown"
	}
	name := fmt.Sprintf("%s/%s-%s.html", w.cfg.RunID, ts, hash)
	prefix := strings.Trim(w.cfg.ArchivePrefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
