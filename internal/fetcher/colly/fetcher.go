// Package collyfetcher implements snapshot.PageFetcher over plain HTTP using
// gocolly. It does not execute JavaScript, so it only suits archive copies
// whose table is present in the served HTML.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/1-icenine/eci-tracker/internal/fetcher/htmlpage"
	"github.com/1-icenine/eci-tracker/internal/snapshot"
)

const defaultTimeout = 20 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent string
	// Timeout is used when the fetch options carry no page-load timeout.
	Timeout time.Duration
}

// Fetcher implements snapshot.PageFetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())
	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET and parses the body. A page without the
// table selector yields snapshot.ErrNoTable.
func (f *Fetcher) Fetch(ctx context.Context, url string, opts snapshot.FetchOptions) (snapshot.PageHandle, error) {
	page, err := f.Probe(ctx, url, opts)
	if err != nil {
		return nil, err
	}
	if !page.Has(opts.TableSelector) {
		return nil, snapshot.ErrNoTable
	}
	return page, nil
}

// Probe fetches and parses url without checking for the table.
func (f *Fetcher) Probe(ctx context.Context, url string, opts snapshot.FetchOptions) (*htmlpage.Page, error) {
	var (
		body     []byte
		fetchErr error
	)
	collector := f.buildCollector(opts)
	f.configureCollectorHooks(collector, &body, &fetchErr)

	if err := f.runCollector(ctx, collector, url, &fetchErr); err != nil {
		return nil, err
	}
	return htmlpage.Parse(body, opts.TableSelector)
}

func (f *Fetcher) buildCollector(opts snapshot.FetchOptions) *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.timeout(opts))
	return collector
}

func (f *Fetcher) timeout(opts snapshot.FetchOptions) time.Duration {
	switch {
	case opts.PageLoadTimeout > 0:
		return opts.PageLoadTimeout
	case f.cfg.Timeout > 0:
		return f.cfg.Timeout
	default:
		return defaultTimeout
	}
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, body *[]byte, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		*body = append([]byte(nil), r.Body...)
	})
	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			*fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
			return
		}
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
