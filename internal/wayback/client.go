// Package wayback lists archived snapshots of a page through the Wayback
// Machine CDX API.
package wayback

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/1-icenine/eci-tracker/internal/snapshot"
)

const (
	// DefaultBaseURL is the public CDX endpoint.
	DefaultBaseURL = "https://web.archive.org/cdx/search/cdx"
	// ArchivePrefix prefixes every replay URL.
	ArchivePrefix = "https://web.archive.org/web/"
	// NoSnapshotsFile names the list written when nothing was found.
	NoSnapshotsFile = "snapshotLinks_NO_SNAPSHOTS.txt"

	defaultTimeout = 60 * time.Second
	cdxDayLayout   = "20060102"
)

// Config controls the CDX client.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// Transport overrides the HTTP transport; tests use it to mock the API.
	Transport http.RoundTripper
}

// Filter narrows a CDX query.
type Filter struct {
	From     time.Time
	To       time.Time
	StatusOK bool
}

// Snapshot is one capture returned by the CDX API.
type Snapshot struct {
	Timestamp  string `json:"timestamp"`
	Original   string `json:"original"`
	MimeType   string `json:"mimetype"`
	StatusCode string `json:"statuscode"`
}

// ArchiveURL returns the replay URL of the capture.
func (s Snapshot) ArchiveURL() string {
	return ArchivePrefix + s.Timestamp + "/" + s.Original
}

// Client queries the CDX API.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// New builds a Client.
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		rc.SetHeader("User-Agent", cfg.UserAgent)
	}
	if cfg.Transport != nil {
		rc.SetTransport(cfg.Transport)
	}
	return &Client{http: rc, logger: logger.Named("wayback")}
}

// Snapshots lists the captures of target matching f, oldest first.
func (c *Client) Snapshots(ctx context.Context, target string, f Filter) ([]Snapshot, error) {
	if target == "" {
		return nil, fmt.Errorf("target url is required")
	}
	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("url", target).
		SetQueryParam("output", "json")
	if !f.From.IsZero() {
		req.SetQueryParam("from", f.From.UTC().Format(snapshot.TimestampLayout))
	}
	if !f.To.IsZero() {
		req.SetQueryParam("to", f.To.UTC().Format(snapshot.TimestampLayout))
	}
	if f.StatusOK {
		req.SetQueryParam("filter", "statuscode:200")
	}

	start := time.Now()
	resp, err := req.Get("")
	if err != nil {
		return nil, fmt.Errorf("query cdx api: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("query cdx api: status %d", resp.StatusCode())
	}
	snaps, err := parseRows(resp.Body())
	if err != nil {
		return nil, err
	}
	c.logger.Info("cdx query complete",
		zap.String("target", target),
		zap.Int("snapshots", len(snaps)),
		zap.Duration("duration", time.Since(start)),
	)
	return snaps, nil
}

// parseRows decodes the CDX json output. The first row names the columns.
func parseRows(body []byte) ([]Snapshot, error) {
	if len(body) == 0 {
		return nil, nil
	}
	var rows [][]string
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode cdx response: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	index := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		index[name] = i
	}
	tsCol, ok := index["timestamp"]
	if !ok {
		return nil, fmt.Errorf("decode cdx response: missing timestamp column")
	}
	origCol, ok := index["original"]
	if !ok {
		return nil, fmt.Errorf("decode cdx response: missing original column")
	}
	field := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	snaps := make([]Snapshot, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if tsCol >= len(row) || origCol >= len(row) {
			continue
		}
		snaps = append(snaps, Snapshot{
			Timestamp:  row[tsCol],
			Original:   row[origCol],
			MimeType:   field(row, "mimetype"),
			StatusCode: field(row, "statuscode"),
		})
	}
	return snaps, nil
}

// ArchiveURLs maps snapshots to their replay URLs.
func ArchiveURLs(snaps []Snapshot) []string {
	urls := make([]string, 0, len(snaps))
	for _, s := range snaps {
		urls = append(urls, s.ArchiveURL())
	}
	return urls
}

// FileName names a snapshot list after the earliest and latest capture day,
// e.g. snapshotLinks_2024-06-12_to_2025-06-27.txt.
func FileName(snaps []Snapshot) string {
	var days []time.Time
	for _, s := range snaps {
		if len(s.Timestamp) < len(cdxDayLayout) {
			continue
		}
		day, err := time.Parse(cdxDayLayout, s.Timestamp[:len(cdxDayLayout)])
		if err != nil {
			continue
		}
		days = append(days, day)
	}
	if len(days) == 0 {
		return NoSnapshotsFile
	}
	earliest := slices.MinFunc(days, func(a, b time.Time) int { return a.Compare(b) })
	latest := slices.MaxFunc(days, func(a, b time.Time) int { return a.Compare(b) })
	return fmt.Sprintf("snapshotLinks_%s_to_%s.txt",
		earliest.Format(snapshot.DateLayout), latest.Format(snapshot.DateLayout))
}

// Save writes the replay URLs of snaps into dir and returns the file path.
func Save(dir string, snaps []Snapshot) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, FileName(snaps))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if err := snapshot.WriteURLs(f, ArchiveURLs(snaps)); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}
