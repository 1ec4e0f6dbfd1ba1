// Package auto fetches snapshots over plain HTTP first and promotes them to
// a headless browser when the static page is a client-rendered shell.
package auto

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/1-icenine/eci-tracker/internal/fetcher/htmlpage"
	"github.com/1-icenine/eci-tracker/internal/snapshot"
)

// Prober fetches a page without checking for the table.
type Prober interface {
	Probe(ctx context.Context, url string, opts snapshot.FetchOptions) (*htmlpage.Page, error)
}

// Detector decides whether a static body needs rendering.
type Detector interface {
	ShouldPromote(body []byte) bool
}

// Fetcher implements snapshot.PageFetcher with probe-then-promote.
type Fetcher struct {
	probe    Prober
	headless snapshot.PageFetcher
	detector Detector
	logger   *zap.Logger
}

// New builds a Fetcher.
func New(probe Prober, headless snapshot.PageFetcher, detector Detector, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{probe: probe, headless: headless, detector: detector, logger: logger.Named("auto_fetcher")}
}

// Fetch returns the static page when it already carries the table. Pages
// the detector flags, and failed probes, are fetched again headless; any
// other page without a table is snapshot.ErrNoTable.
func (f *Fetcher) Fetch(ctx context.Context, url string, opts snapshot.FetchOptions) (snapshot.PageHandle, error) {
	page, err := f.probe.Probe(ctx, url, opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		f.logger.Debug("probe failed, promoting", zap.String("url", url), zap.Error(err))
		return f.promote(ctx, url, opts)
	}
	if page.Has(opts.TableSelector) {
		return page, nil
	}
	if f.detector.ShouldPromote(page.HTML()) {
		f.logger.Debug("static page needs rendering, promoting", zap.String("url", url))
		return f.promote(ctx, url, opts)
	}
	return nil, snapshot.ErrNoTable
}

func (f *Fetcher) promote(ctx context.Context, url string, opts snapshot.FetchOptions) (snapshot.PageHandle, error) {
	if f.headless == nil {
		return nil, errors.New("page needs rendering but no headless fetcher is configured")
	}
	return f.headless.Fetch(ctx, url, opts)
}
