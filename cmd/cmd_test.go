package cmd

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/1-icenine/eci-tracker/internal/app"
	"github.com/1-icenine/eci-tracker/internal/config"
	"github.com/1-icenine/eci-tracker/internal/snapshot"
)

const testDataset = `capture_date,GMT_capture_time,Country,Statements of Support,Threshold,Percentage
2025-06-01,10:00:00,Malta,4000,4320,92.59
2025-06-01,10:00:00,Total number of signatories,900000,1000000,90
2025-06-02,10:00:00,Malta,4400,4320,101.85
2025-06-02,10:00:00,Total number of signatories,950000,1000000,95
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCountCommand(t *testing.T) {
	t.Parallel()

	urls := writeFile(t, "links.txt", `
https://web.archive.org/web/20250530120000/https://example.eu/x
https://web.archive.org/web/20250601080000/https://example.eu/x
https://web.archive.org/web/20250601200000/https://example.eu/x

https://web.archive.org/web/notatimestamp/https://example.eu/x
`)
	out, err := execute(t, "count", urls)
	require.NoError(t, err)
	require.Contains(t, out, "May 30, 2025")
	require.Contains(t, out, "June 1, 2025")
	require.Contains(t, out, "TOTAL")
	require.Contains(t, out, "3")
}

func TestFixupCommand(t *testing.T) {
	t.Parallel()

	in := writeFile(t, "master.csv", `capture_date,GMT_capture_time,Country,Statements of Support,Threshold,Percentage
2025/06/01,10-00-00,Malta,4000,4320,92.59
2025-06-02,10:00:00,Malta,4400,4320,101.85
`)
	outPath := filepath.Join(t.TempDir(), "fixed.csv")
	out, err := execute(t, "fixup", in, "--out", outPath)
	require.NoError(t, err)
	require.Contains(t, out, "Fixed 1 of 2 rows")

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "2025-06-01,10:00:00,Malta,4000,4320,92.59\n")
}

func TestReportDailyCommand(t *testing.T) {
	t.Parallel()

	ds := writeFile(t, "master.csv", testDataset)
	out, err := execute(t, "report", "daily", "--dataset", ds)
	require.NoError(t, err)
	require.Contains(t, out, "2025-06-02")
	require.Contains(t, out, "950000")
	require.Contains(t, out, "+50000")
}

func TestReportThresholdsCommand(t *testing.T) {
	t.Parallel()

	ds := writeFile(t, "master.csv", testDataset)
	out, err := execute(t, "report", "thresholds", "--dataset", ds)
	require.NoError(t, err)
	require.Contains(t, out, "Malta")
	require.Contains(t, out, "2025-06-02")
	require.NotContains(t, out, "Total number of signatories")
}

func TestReportProjectionCommand(t *testing.T) {
	t.Parallel()

	ds := writeFile(t, "master.csv", testDataset)
	out, err := execute(t, "report", "projection", "--dataset", ds,
		"--entity", "Total number of signatories", "--deadline", "2025-06-12")
	require.NoError(t, err)
	require.Contains(t, out, "5000.0 per day")

	_, err = execute(t, "report", "projection", "--dataset", ds)
	require.ErrorContains(t, err, "report.deadline")
}

func TestDiscoverCommand(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "https://example.eu/x", r.URL.Query().Get("url"))
		_, _ = w.Write([]byte(`[["urlkey","timestamp","original","mimetype","statuscode","digest","length"],
["eu,example)/x","20240612133710","https://example.eu/x","text/html","200","A","1"]]`))
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfgPath := writeFile(t, "config.yaml", "wayback:\n  base_url: "+srv.URL+"\n")
	out, err := execute(t, "--config", cfgPath, "discover",
		"--target", "https://example.eu/x", "--output-dir", dir)
	require.NoError(t, err)
	require.Contains(t, out, "Saved 1 snapshots")

	data, err := os.ReadFile(filepath.Join(dir, "snapshotLinks_2024-06-12_to_2024-06-12.txt"))
	require.NoError(t, err)
	require.Equal(t, "https://web.archive.org/web/20240612133710/https://example.eu/x\n", string(data))
}

func TestInvalidConfigFails(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "count", "--log-level", "loud")
	require.Error(t, err)
}

type fakeHarvester struct {
	urls   []string
	report app.Report
	err    error
	closed bool
}

func (f *fakeHarvester) Harvest(_ context.Context, urls []string) (app.Report, error) {
	f.urls = urls
	return f.report, f.err
}

func (f *fakeHarvester) Close() error {
	f.closed = true
	return nil
}

// Not parallel: replaces the package-level app factory.
func TestHarvestCommand(t *testing.T) {
	fake := &fakeHarvester{
		report: app.Report{Summary: snapshot.RunSummary{
			RunID:      "run-42",
			StartedAt:  time.Unix(0, 0),
			FinishedAt: time.Unix(90, 0),
			URLs:       2,
			Succeeded:  1,
			NoData:     1,
			Records:    28,
		}},
	}
	var gotCfg config.Config
	orig := newApp
	newApp = func(_ context.Context, cfg config.Config, _ *zap.Logger) (harvester, error) {
		gotCfg = cfg
		return fake, nil
	}
	t.Cleanup(func() { newApp = orig })

	urls := writeFile(t, "links.txt", "https://web.archive.org/web/20250101000000/x\n\nhttps://web.archive.org/web/20250102000000/y\n")
	out, err := execute(t, "harvest", "--input", urls, "--concurrency", "2", "--fetcher", "http")
	require.NoError(t, err)
	require.Len(t, fake.urls, 2)
	require.True(t, fake.closed)
	require.Equal(t, 2, gotCfg.Harvest.Concurrency)
	require.Equal(t, config.FetcherHTTP, gotCfg.Fetcher.Mode)
	require.Contains(t, out, "run-42")
	require.Contains(t, out, "28")

	fake.err = errors.New("db down")
	_, err = execute(t, "harvest", "--input", urls)
	require.ErrorContains(t, err, "db down")
}

func TestHarvestHelpListsFetcherModes(t *testing.T) {
	t.Parallel()

	flag := newHarvestCmd().Flags().Lookup("fetcher")
	require.NotNil(t, flag)
	for _, mode := range []string{config.FetcherHeadless, config.FetcherHTTP, config.FetcherAuto} {
		require.Contains(t, flag.Usage, mode)
	}
}
