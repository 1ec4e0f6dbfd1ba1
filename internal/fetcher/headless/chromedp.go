// Package headless renders snapshot pages in headless Chrome via chromedp.
package headless

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/1-icenine/eci-tracker/internal/fetcher/htmlpage"
	"github.com/1-icenine/eci-tracker/internal/snapshot"
)

const (
	defaultPageLoadTimeout = 20 * time.Second
	defaultTableWait       = 10 * time.Second
)

// Config controls the behavior of the headless fetcher.
type Config struct {
	// MaxParallel caps concurrent browser tabs. Zero means unlimited.
	MaxParallel int
	UserAgent   string
	// ExecPath overrides the Chrome binary. Empty uses chromedp's lookup.
	ExecPath string
	Logger   *zap.Logger
}

// Fetcher implements snapshot.PageFetcher using chromedp and headless Chrome.
type Fetcher struct {
	cfg         Config
	logger      *zap.Logger
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedp creates a headless fetcher. The browser is started lazily on
// the first fetch.
func NewChromedp(cfg Config) (*Fetcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		cfg:         cfg,
		logger:      logger.Named("headless"),
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close shuts the browser down.
func (f *Fetcher) Close() {
	f.allocCancel()
}

// Fetch loads url in a fresh tab, waits for the table selector and returns
// the rendered document. A table that does not appear within the wait
// deadline yields snapshot.ErrNoTable.
func (f *Fetcher) Fetch(ctx context.Context, url string, opts snapshot.FetchOptions) (snapshot.PageHandle, error) {
	if err := f.acquire(ctx); err != nil {
		return nil, err
	}
	defer f.release()

	opts = withDefaults(opts)

	taskCtx, taskCancel := chromedp.NewContext(f.allocator)
	defer taskCancel()
	stop := context.AfterFunc(ctx, taskCancel)
	defer stop()

	// The first Run allocates the tab and must not carry a deadline.
	if err := chromedp.Run(taskCtx, f.setupAction()); err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}

	if err := runWithin(taskCtx, opts.PageLoadTimeout, chromedp.Navigate(url)); err != nil {
		return nil, fmt.Errorf("load %s: %w", url, contextCause(ctx, err))
	}

	err := runWithin(taskCtx, opts.TableWait, chromedp.WaitReady(opts.TableSelector, chromedp.ByQuery))
	if err != nil {
		if waitTimedOut(ctx, err) {
			f.logger.Debug("table wait expired", zap.String("url", url), zap.Duration("wait", opts.TableWait))
			return nil, snapshot.ErrNoTable
		}
		return nil, fmt.Errorf("wait for table: %w", contextCause(ctx, err))
	}

	var html string
	if err := chromedp.Run(taskCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("read document: %w", contextCause(ctx, err))
	}
	page, err := htmlpage.Parse([]byte(html), opts.TableSelector)
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (f *Fetcher) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if f.cfg.UserAgent == "" {
			return nil
		}
		if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		return nil
	})
}

func runWithin(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// waitTimedOut reports whether err is the table-wait deadline rather than
// cancellation of the caller's context.
func waitTimedOut(parent context.Context, err error) bool {
	return parent.Err() == nil && errors.Is(err, context.DeadlineExceeded)
}

func contextCause(parent context.Context, err error) error {
	if parentErr := parent.Err(); parentErr != nil {
		return fmt.Errorf("%w: %w", parentErr, err)
	}
	return err
}

func withDefaults(opts snapshot.FetchOptions) snapshot.FetchOptions {
	if opts.PageLoadTimeout <= 0 {
		opts.PageLoadTimeout = defaultPageLoadTimeout
	}
	if opts.TableWait <= 0 {
		opts.TableWait = defaultTableWait
	}
	if opts.TableSelector == "" {
		opts.TableSelector = htmlpage.DefaultTableSelector
	}
	return opts
}

func (f *Fetcher) acquire(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	select {
	case f.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (f *Fetcher) release() {
	if f.limiter == nil {
		return
	}
	select {
	case <-f.limiter:
	default:
	}
}
