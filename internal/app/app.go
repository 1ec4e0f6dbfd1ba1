// Package app initializes and holds the long-lived services of a harvest
// run, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/1-icenine/eci-tracker/internal/clock/system"
	"github.com/1-icenine/eci-tracker/internal/config"
	autofetcher "github.com/1-icenine/eci-tracker/internal/fetcher/auto"
	collyfetcher "github.com/1-icenine/eci-tracker/internal/fetcher/colly"
	headlessfetcher "github.com/1-icenine/eci-tracker/internal/fetcher/headless"
	"github.com/1-icenine/eci-tracker/internal/hash/sha256"
	"github.com/1-icenine/eci-tracker/internal/headless/detector"
	"github.com/1-icenine/eci-tracker/internal/id/uuid"
	"github.com/1-icenine/eci-tracker/internal/metrics"
	pubsubpublisher "github.com/1-icenine/eci-tracker/internal/publisher/pubsub"
	"github.com/1-icenine/eci-tracker/internal/snapshot"
	gcsstore "github.com/1-icenine/eci-tracker/internal/storage/gcs"
	localstore "github.com/1-icenine/eci-tracker/internal/storage/local"
	"github.com/1-icenine/eci-tracker/internal/storage/postgres"
)

// Deps overrides components that would otherwise be built from
// configuration. Nil fields are built (or left disabled) per config.
type Deps struct {
	Fetcher   snapshot.PageFetcher
	Archive   snapshot.BlobStore
	Records   snapshot.RecordStore
	Publisher snapshot.Publisher
	Clock     snapshot.Clock
	IDs       snapshot.IDGenerator
	Hasher    snapshot.Hasher
	Metrics   *metrics.Metrics
}

// App holds the shared services of the harvester.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	deps    Deps
	closers []func() error
}

// New builds an App from cfg. Optional backends (archive, record store,
// notifier) are only connected when configured. On error, anything already
// opened is closed.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, deps Deps) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger.Named("app"), deps: deps}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if a.deps.Clock == nil {
		a.deps.Clock = system.New()
	}
	if a.deps.IDs == nil {
		a.deps.IDs = uuid.New()
	}
	if a.deps.Hasher == nil {
		a.deps.Hasher = sha256.New()
	}
	if a.deps.Metrics == nil {
		a.deps.Metrics = metrics.New()
	}
	if a.deps.Fetcher == nil {
		if err := a.buildFetcher(); err != nil {
			return nil, err
		}
	}
	if a.deps.Archive == nil {
		if err := a.buildArchive(ctx); err != nil {
			return nil, err
		}
	}
	if a.deps.Records == nil && cfg.DB.DSN != "" {
		if err := a.buildRecords(ctx); err != nil {
			return nil, err
		}
	}
	if a.deps.Publisher == nil && cfg.PubSub.Topic != "" {
		if err := a.buildPublisher(ctx); err != nil {
			return nil, err
		}
	}
	a.logger.Info("services initialized",
		zap.String("fetcher", cfg.Fetcher.Mode),
		zap.Bool("archive", a.deps.Archive != nil),
		zap.Bool("record_store", a.deps.Records != nil),
		zap.Bool("notifier", a.deps.Publisher != nil),
	)
	return a, nil
}

func (a *App) buildFetcher() error {
	switch a.cfg.Fetcher.Mode {
	case config.FetcherHTTP:
		a.deps.Fetcher = a.newProbe()
	case config.FetcherHeadless:
		f, err := a.newHeadless()
		if err != nil {
			return err
		}
		a.deps.Fetcher = f
	case config.FetcherAuto:
		var headless snapshot.PageFetcher
		if f, err := a.newHeadless(); err != nil {
			a.logger.Warn("headless fetcher init failed, pages needing rendering will fail", zap.Error(err))
		} else {
			headless = f
		}
		a.deps.Fetcher = autofetcher.New(
			a.newProbe(),
			headless,
			detector.NewHeuristic(a.cfg.Fetcher.PromotionMinBytes),
			a.logger,
		)
	default:
		return fmt.Errorf("unknown fetcher mode %q", a.cfg.Fetcher.Mode)
	}
	return nil
}

func (a *App) newProbe() *collyfetcher.Fetcher {
	return collyfetcher.New(collyfetcher.Config{
		UserAgent: a.cfg.Fetcher.UserAgent,
		Timeout:   a.cfg.Fetcher.PageLoadTimeout,
	})
}

func (a *App) newHeadless() (*headlessfetcher.Fetcher, error) {
	f, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
		MaxParallel: a.cfg.Fetcher.MaxParallel,
		UserAgent:   a.cfg.Fetcher.UserAgent,
		ExecPath:    a.cfg.Fetcher.ExecPath,
		Logger:      a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init headless fetcher: %w", err)
	}
	a.closers = append(a.closers, func() error {
		f.Close()
		return nil
	})
	return f, nil
}

func (a *App) buildArchive(ctx context.Context) error {
	switch a.cfg.Archive.Backend {
	case config.ArchiveNone:
	case config.ArchiveLocal:
		store, err := localstore.New(localstore.Config{BaseDir: a.cfg.Archive.Dir})
		if err != nil {
			return fmt.Errorf("init local archive: %w", err)
		}
		a.deps.Archive = store
	case config.ArchiveGCS:
		store, err := gcsstore.Dial(ctx, gcsstore.Config{
			Bucket:   a.cfg.Archive.Bucket,
			Endpoint: a.cfg.Archive.Endpoint,
		})
		if err != nil {
			return fmt.Errorf("init gcs archive: %w", err)
		}
		a.deps.Archive = store
		a.closers = append(a.closers, store.Close)
	default:
		return fmt.Errorf("unknown archive backend %q", a.cfg.Archive.Backend)
	}
	return nil
}

func (a *App) buildRecords(ctx context.Context) error {
	store, err := postgres.NewRecordStore(ctx, postgres.Config{
		DSN:      a.cfg.DB.DSN,
		Table:    a.cfg.DB.Table,
		MaxConns: a.cfg.DB.MaxConns,
	})
	if err != nil {
		return fmt.Errorf("init record store: %w", err)
	}
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("init record store: %w", err)
	}
	a.deps.Records = store
	return nil
}

func (a *App) buildPublisher(ctx context.Context) error {
	pub, err := pubsubpublisher.Dial(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("init notifier: %w", err)
	}
	a.deps.Publisher = pub
	a.closers = append(a.closers, pub.Close)
	return nil
}

// Config returns the configuration the App was built with.
func (a *App) Config() config.Config {
	return a.cfg
}

// Metrics returns the run metrics.
func (a *App) Metrics() *metrics.Metrics {
	return a.deps.Metrics
}

// Close shuts down every service the App opened, in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("error closing services", zap.Error(err))
		return err
	}
	return nil
}
