// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. HARVESTER_HARVEST_CONCURRENCY.
const EnvPrefix = "HARVESTER"

// Fetcher modes.
const (
	FetcherHeadless = "headless"
	FetcherHTTP     = "http"
	// FetcherAuto probes over HTTP and promotes client-rendered pages to
	// the headless browser.
	FetcherAuto = "auto"
)

// Archive backends.
const (
	ArchiveNone  = ""
	ArchiveLocal = "local"
	ArchiveGCS   = "gcs"
)

// Config captures all harvester configuration knobs loaded via Viper.
type Config struct {
	Input   InputConfig   `mapstructure:"input"`
	Harvest HarvestConfig `mapstructure:"harvest"`
	Fetcher FetcherConfig `mapstructure:"fetcher"`
	Output  OutputConfig  `mapstructure:"output"`
	Archive ArchiveConfig `mapstructure:"archive"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Status  StatusConfig  `mapstructure:"status"`
	Wayback WaybackConfig `mapstructure:"wayback"`
	Report  ReportConfig  `mapstructure:"report"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// InputConfig names the snapshot URL list.
type InputConfig struct {
	URLFile string `mapstructure:"url_file"`
}

// HarvestConfig governs the worker pool and retry schedule.
type HarvestConfig struct {
	Concurrency   int           `mapstructure:"concurrency"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	BaseDelay     time.Duration `mapstructure:"base_delay"`
	SweepAttempts int           `mapstructure:"sweep_attempts"`
}

// FetcherConfig selects and tunes the page fetcher.
type FetcherConfig struct {
	Mode            string        `mapstructure:"mode"`
	UserAgent       string        `mapstructure:"user_agent"`
	PageLoadTimeout time.Duration `mapstructure:"page_load_timeout"`
	TableWait       time.Duration `mapstructure:"table_wait"`
	TableSelector   string        `mapstructure:"table_selector"`
	MaxParallel     int           `mapstructure:"max_parallel"`
	ExecPath        string        `mapstructure:"exec_path"`
	// PromotionMinBytes tunes the auto mode's script-density check.
	PromotionMinBytes int `mapstructure:"promotion_min_bytes"`
}

// OutputConfig sets the dataset and failure-list paths.
type OutputConfig struct {
	DatasetPath   string `mapstructure:"dataset_path"`
	NoDataPath    string `mapstructure:"nodata_path"`
	ExceptionPath string `mapstructure:"exception_path"`
	AppendFrom    string `mapstructure:"append_from"`
}

// ArchiveConfig controls raw HTML archiving.
type ArchiveConfig struct {
	Backend       string `mapstructure:"backend"`
	Dir           string `mapstructure:"dir"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	Prefix        string `mapstructure:"prefix"`
	ContentType   string `mapstructure:"content_type"`
	UploadDataset bool   `mapstructure:"upload_dataset"`
}

// DBConfig controls the optional Postgres record store.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for run notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// StatusConfig enables the status HTTP server when Addr is set.
type StatusConfig struct {
	Addr string `mapstructure:"addr"`
}

// WaybackConfig drives snapshot discovery.
type WaybackConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	TargetURL string        `mapstructure:"target_url"`
	UserAgent string        `mapstructure:"user_agent"`
	OutputDir string        `mapstructure:"output_dir"`
	From      string        `mapstructure:"from"`
	To        string        `mapstructure:"to"`
	StatusOK  bool          `mapstructure:"status_ok"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// ReportConfig tunes the dataset reports.
type ReportConfig struct {
	TotalLabel string `mapstructure:"total_label"`
	Entity     string `mapstructure:"entity"`
	Deadline   string `mapstructure:"deadline"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from defaults, the optional file at path, the
// environment and the changed flags in bindings, keyed by config key.
func Load(path string, bindings map[string]*pflag.Flag) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	for key, flag := range bindings {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return Config{}, fmt.Errorf("bind flag %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("input.url_file", "snapshot_urls.txt")
	v.SetDefault("harvest.concurrency", 4)
	v.SetDefault("harvest.max_attempts", 3)
	v.SetDefault("harvest.base_delay", "60s")
	v.SetDefault("harvest.sweep_attempts", 3)
	v.SetDefault("fetcher.mode", FetcherHeadless)
	v.SetDefault("fetcher.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")
	v.SetDefault("fetcher.page_load_timeout", "20s")
	v.SetDefault("fetcher.table_wait", "10s")
	v.SetDefault("fetcher.table_selector", "table tr")
	v.SetDefault("fetcher.max_parallel", 4)
	v.SetDefault("fetcher.promotion_min_bytes", 2048)
	v.SetDefault("output.dataset_path", "eci_master.csv")
	v.SetDefault("output.nodata_path", "nodata_urls.txt")
	v.SetDefault("output.exception_path", "exception_urls.txt")
	v.SetDefault("archive.backend", ArchiveNone)
	v.SetDefault("archive.dir", "archive")
	v.SetDefault("archive.prefix", "snapshots")
	v.SetDefault("archive.content_type", "text/html; charset=utf-8")
	v.SetDefault("db.table", "snapshot_records")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("wayback.base_url", "https://web.archive.org/cdx/search/cdx")
	v.SetDefault("wayback.target_url", "https://citizens-initiative.europa.eu/initiatives/details/2024/000007_en")
	v.SetDefault("wayback.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")
	v.SetDefault("wayback.output_dir", "Snapshot Links")
	v.SetDefault("wayback.timeout", "60s")
	v.SetDefault("report.total_label", "Total number of signatories")
	v.SetDefault("report.entity", "Malta")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Harvest.Concurrency <= 0 {
		return fmt.Errorf("harvest.concurrency must be > 0")
	}
	if c.Harvest.MaxAttempts <= 0 {
		return fmt.Errorf("harvest.max_attempts must be > 0")
	}
	if c.Harvest.BaseDelay < 0 {
		return fmt.Errorf("harvest.base_delay must be >= 0")
	}
	if c.Harvest.SweepAttempts < 0 {
		return fmt.Errorf("harvest.sweep_attempts must be >= 0")
	}
	switch c.Fetcher.Mode {
	case FetcherHeadless, FetcherHTTP, FetcherAuto:
	default:
		return fmt.Errorf("fetcher.mode must be %q, %q or %q, got %q",
			FetcherHeadless, FetcherHTTP, FetcherAuto, c.Fetcher.Mode)
	}
	if c.Fetcher.PageLoadTimeout <= 0 {
		return fmt.Errorf("fetcher.page_load_timeout must be > 0")
	}
	if c.Fetcher.TableWait <= 0 {
		return fmt.Errorf("fetcher.table_wait must be > 0")
	}
	if strings.TrimSpace(c.Fetcher.TableSelector) == "" {
		return fmt.Errorf("fetcher.table_selector must be set")
	}
	if c.Output.DatasetPath == "" || c.Output.NoDataPath == "" || c.Output.ExceptionPath == "" {
		return fmt.Errorf("output.dataset_path, output.nodata_path and output.exception_path must be set")
	}
	switch c.Archive.Backend {
	case ArchiveNone:
	case ArchiveLocal:
		if c.Archive.Dir == "" {
			return fmt.Errorf("archive.dir must be set when archive.backend is %q", ArchiveLocal)
		}
	case ArchiveGCS:
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket must be set when archive.backend is %q", ArchiveGCS)
		}
	default:
		return fmt.Errorf("archive.backend must be empty, %q or %q, got %q", ArchiveLocal, ArchiveGCS, c.Archive.Backend)
	}
	if c.Archive.UploadDataset && c.Archive.Backend == ArchiveNone {
		return fmt.Errorf("archive.upload_dataset requires archive.backend")
	}
	if c.PubSub.Topic != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic is set")
	}
	if _, err := c.Wayback.Window(); err != nil {
		return err
	}
	if c.Report.Deadline != "" {
		if _, err := time.Parse(time.DateOnly, c.Report.Deadline); err != nil {
			return fmt.Errorf("report.deadline must be YYYY-MM-DD: %w", err)
		}
	}
	return nil
}

// Window is the parsed discovery date range. Zero values mean unbounded.
type Window struct {
	From time.Time
	To   time.Time
}

// Window parses From and To as YYYY-MM-DD dates.
func (w WaybackConfig) Window() (Window, error) {
	var out Window
	var err error
	if w.From != "" {
		if out.From, err = time.Parse(time.DateOnly, w.From); err != nil {
			return Window{}, fmt.Errorf("wayback.from must be YYYY-MM-DD: %w", err)
		}
	}
	if w.To != "" {
		if out.To, err = time.Parse(time.DateOnly, w.To); err != nil {
			return Window{}, fmt.Errorf("wayback.to must be YYYY-MM-DD: %w", err)
		}
		// inclusive of the whole day
		out.To = out.To.Add(24*time.Hour - time.Second)
	}
	if !out.From.IsZero() && !out.To.IsZero() && out.To.Before(out.From) {
		return Window{}, fmt.Errorf("wayback.to must not be before wayback.from")
	}
	return out, nil
}

// DeadlineTime parses Report.Deadline; ok is false when unset.
func (r ReportConfig) DeadlineTime() (time.Time, bool) {
	if r.Deadline == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.DateOnly, r.Deadline)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
