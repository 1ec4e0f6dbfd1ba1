package dispatcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/1-icenine/eci-tracker/internal/fetcher/htmlpage"
	"github.com/1-icenine/eci-tracker/internal/metrics"
	"github.com/1-icenine/eci-tracker/internal/sink"
	"github.com/1-icenine/eci-tracker/internal/snapshot"
	"github.com/1-icenine/eci-tracker/internal/worker"
)

const (
	urlA = "https://web.archive.org/web/20250101000000/https://citizens-initiative.europa.eu/a"
	urlB = "https://web.archive.org/web/20250102000000/https://citizens-initiative.europa.eu/b"
	urlC = "https://web.archive.org/web/20250103000000/https://citizens-initiative.europa.eu/c"
)

// fixtureFetcher serves canned pages keyed by URL.
type fixtureFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls map[string]int
}

func (f *fixtureFetcher) Fetch(_ context.Context, url string, _ snapshot.FetchOptions) (snapshot.PageHandle, error) {
	f.mu.Lock()
	f.calls[url]++
	html, ok := f.pages[url]
	f.mu.Unlock()
	if !ok {
		return nil, errors.New("browser crashed")
	}
	return htmlpage.Parse([]byte(html), "")
}

type recordingClock struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (c *recordingClock) Now() time.Time { return time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC) }

func (c *recordingClock) Sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	return nil
}

func TestHarvestEndToEnd(t *testing.T) {
	t.Parallel()

	fetcher := &fixtureFetcher{
		pages: map[string]string{
			urlA: `<table>
<tr><th>Country</th><th>Statements</th><th>Threshold</th><th>%</th></tr>
<tr><td>Germany</td><td>12,345</td><td>9,600</td><td>128.59%</td></tr>
<tr><td>Total number of signatories</td><td>1,234,567</td><td>1,000,000</td><td>123.46%</td></tr>
</table>`,
			urlB: `<table><tr><th>Country</th></tr></table>`,
		},
		calls: map[string]int{},
	}
	clock := &recordingClock{}
	m := metrics.New()
	w := worker.New(fetcher, clock, nil, nil, m, worker.Config{}, zap.NewNop())
	d := New(w, m, zap.NewNop())

	dir := t.TempDir()
	cfg := sink.Config{
		DatasetPath:   filepath.Join(dir, "eci_master.csv"),
		NoDataPath:    filepath.Join(dir, "nodata_urls.txt"),
		ExceptionPath: filepath.Join(dir, "exception_urls.txt"),
	}
	out := sink.New(cfg, zap.NewNop())
	require.NoError(t, out.Reset())

	res, err := d.Run(context.Background(), []string{urlA, urlB, urlC}, Options{
		Concurrency:   4,
		MaxAttempts:   3,
		BaseDelay:     60 * time.Second,
		SweepAttempts: 3,
	})
	require.NoError(t, err)
	require.Equal(t, []string{urlA}, res.Succeeded)
	require.Equal(t, []string{urlB}, res.NoData)
	require.Equal(t, []string{urlC}, res.Exceptions)
	require.Len(t, res.Records, 2)

	// Three backoff attempts, then three sweep attempts without delay.
	require.Equal(t, 6, fetcher.calls[urlC])
	require.Equal(t, 1, fetcher.calls[urlB])
	require.Equal(t, []time.Duration{60 * time.Second, 120 * time.Second}, clock.sleeps)

	written, err := out.Persist(res)
	require.NoError(t, err)
	require.Equal(t, 2, written.Rows)

	data, err := os.ReadFile(cfg.DatasetPath)
	require.NoError(t, err)
	require.Equal(t,
		"capture_date,GMT_capture_time,Country,Statements of Support,Threshold,Percentage\n"+
			"2025-01-01,00:00:00,Germany,12345,9600,128.59\n"+
			"2025-01-01,00:00:00,Total number of signatories,1234567,1000000,123.46\n",
		string(data))

	noData, err := snapshot.ReadURLList(cfg.NoDataPath)
	require.NoError(t, err)
	require.Equal(t, []string{urlB}, noData)
	exceptions, err := snapshot.ReadURLList(cfg.ExceptionPath)
	require.NoError(t, err)
	require.True(t, slices.Equal([]string{urlC}, exceptions))
}
