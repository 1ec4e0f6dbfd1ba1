package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/1-icenine/eci-tracker/internal/api"
	"github.com/1-icenine/eci-tracker/internal/dispatcher"
	"github.com/1-icenine/eci-tracker/internal/logging"
	"github.com/1-icenine/eci-tracker/internal/sink"
	"github.com/1-icenine/eci-tracker/internal/snapshot"
	"github.com/1-icenine/eci-tracker/internal/worker"
)

const datasetContentType = "text/csv; charset=utf-8"

// Report is what a harvest produced.
type Report struct {
	Summary  snapshot.RunSummary
	Written  sink.Written
	Result   snapshot.Result
	NotifyID string
}

// Harvest runs the full pipeline over urls: reset the failure lists, run
// both passes, persist, then hand the results to the optional backends.
// A canceled context aborts before anything is persisted. Backend failures
// after persistence are returned joined, with the report still filled in.
func (a *App) Harvest(ctx context.Context, urls []string) (Report, error) {
	runID, err := a.deps.IDs.NewID()
	if err != nil {
		return Report{}, fmt.Errorf("generate run id: %w", err)
	}
	logger := logging.Run(a.logger, runID)
	started := a.deps.Clock.Now()

	out := sink.New(sink.Config{
		DatasetPath:   a.cfg.Output.DatasetPath,
		NoDataPath:    a.cfg.Output.NoDataPath,
		ExceptionPath: a.cfg.Output.ExceptionPath,
		AppendFrom:    a.cfg.Output.AppendFrom,
	}, logger)
	if err := out.Reset(); err != nil {
		return Report{}, fmt.Errorf("reset failure lists: %w", err)
	}

	w := worker.New(a.deps.Fetcher, a.deps.Clock, a.deps.Archive, a.deps.Hasher, a.deps.Metrics, worker.Config{
		Fetch: snapshot.FetchOptions{
			PageLoadTimeout: a.cfg.Fetcher.PageLoadTimeout,
			TableWait:       a.cfg.Fetcher.TableWait,
			TableSelector:   a.cfg.Fetcher.TableSelector,
		},
		RunID:         runID,
		ContentType:   a.cfg.Archive.ContentType,
		ArchivePrefix: a.cfg.Archive.Prefix,
	}, logger)
	d := dispatcher.New(w, a.deps.Metrics, logger)

	stopStatus := a.startStatus(ctx, d.Progress(), api.RunInfo{
		RunID:     runID,
		StartedAt: started,
		URLFile:   a.cfg.Input.URLFile,
		Fetcher:   a.cfg.Fetcher.Mode,
	}, logger)
	defer stopStatus()

	result, err := d.Run(ctx, urls, dispatcher.Options{
		Concurrency:   a.cfg.Harvest.Concurrency,
		MaxAttempts:   a.cfg.Harvest.MaxAttempts,
		BaseDelay:     a.cfg.Harvest.BaseDelay,
		SweepAttempts: a.cfg.Harvest.SweepAttempts,
	})
	if err != nil {
		return Report{}, err
	}

	written, err := out.Persist(result)
	if err != nil {
		return Report{}, fmt.Errorf("persist results: %w", err)
	}
	report := Report{
		Summary: snapshot.Summarize(runID, started, a.deps.Clock.Now(), result, written.DatasetPath),
		Written: written,
		Result:  result,
	}

	var errs []error
	if a.cfg.Archive.UploadDataset && a.deps.Archive != nil {
		uri, err := a.uploadDataset(ctx, runID, written.DatasetPath)
		if err != nil {
			errs = append(errs, err)
		} else {
			report.Summary.DatasetURI = uri
		}
	}
	if a.deps.Records != nil && len(result.Records) > 0 {
		if err := a.deps.Records.StoreRecords(ctx, runID, result.Records); err != nil {
			errs = append(errs, fmt.Errorf("store records: %w", err))
		}
	}
	if a.deps.Publisher != nil && a.cfg.PubSub.Topic != "" {
		id, err := a.deps.Publisher.Publish(ctx, a.cfg.PubSub.Topic, report.Summary)
		if err != nil {
			errs = append(errs, fmt.Errorf("publish run summary: %w", err))
		} else {
			report.NotifyID = id
		}
	}

	logger.Info("harvest finished",
		zap.Int("succeeded", report.Summary.Succeeded),
		zap.Int("no_data", report.Summary.NoData),
		zap.Int("exceptions", report.Summary.Exceptions),
		zap.Int("records", report.Summary.Records),
		zap.Duration("elapsed", report.Summary.FinishedAt.Sub(started)),
	)
	return report, errors.Join(errs...)
}

func (a *App) uploadDataset(ctx context.Context, runID, datasetPath string) (string, error) {
	f, err := os.Open(datasetPath)
	if err != nil {
		return "", fmt.Errorf("open dataset for upload: %w", err)
	}
	defer f.Close()
	object := path.Join(a.cfg.Archive.Prefix, runID, filepath.Base(datasetPath))
	uri, err := a.deps.Archive.PutObject(ctx, object, datasetContentType, f)
	if err != nil {
		return "", fmt.Errorf("upload dataset: %w", err)
	}
	return uri, nil
}

// startStatus serves the status API for the duration of the run when
// status.addr is set. The returned func stops it.
func (a *App) startStatus(ctx context.Context, progress api.ProgressSource, run api.RunInfo, logger *zap.Logger) func() {
	if a.cfg.Status.Addr == "" {
		return func() {}
	}
	statusCtx, cancel := context.WithCancel(ctx)
	server := api.NewServer(progress, a.deps.Metrics, run, logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := server.Serve(statusCtx, a.cfg.Status.Addr); err != nil {
			logger.Warn("status server stopped", zap.Error(err))
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
