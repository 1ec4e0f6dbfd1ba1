// Package sink persists the outcome of a harvest run as flat files: the
// merged CSV dataset plus the no-data and exception URL lists.
package sink

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/1-icenine/eci-tracker/internal/dataset"
	"github.com/1-icenine/eci-tracker/internal/snapshot"
)

// Config names the files written by the sink.
type Config struct {
	DatasetPath   string
	NoDataPath    string
	ExceptionPath string
	// AppendFrom, when set, is an existing dataset whose rows are written
	// ahead of the new ones. No deduplication is performed.
	AppendFrom string
}

// Written describes a completed Persist.
type Written struct {
	DatasetPath string
	Rows        int
	Appended    int
	NoData      int
	Exceptions  int
}

// Sink writes run results to disk.
type Sink struct {
	cfg    Config
	logger *zap.Logger
}

// New builds a Sink.
func New(cfg Config, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{cfg: cfg, logger: logger.Named("sink")}
}

// Reset truncates both failure lists so a run starts from empty files.
func (s *Sink) Reset() error {
	for _, path := range []string{s.cfg.NoDataPath, s.cfg.ExceptionPath} {
		if path == "" {
			continue
		}
		if err := WriteAtomic(path, func(io.Writer) error { return nil }); err != nil {
			return fmt.Errorf("reset %s: %w", path, err)
		}
	}
	return nil
}

// EncodeDataset serialises records as the dataset CSV.
func (s *Sink) EncodeDataset(w io.Writer, records []snapshot.Record) error {
	return dataset.WriteCSV(w, records)
}

// Persist writes the dataset and both URL lists. Each file is replaced
// atomically; nothing is written when reading AppendFrom fails.
func (s *Sink) Persist(result snapshot.Result) (Written, error) {
	records := result.Records
	appended := 0
	if s.cfg.AppendFrom != "" {
		prior, err := dataset.ReadFile(s.cfg.AppendFrom)
		if err != nil {
			return Written{}, fmt.Errorf("append from: %w", err)
		}
		appended = len(prior)
		records = append(prior, result.Records...)
	}

	if err := WriteAtomic(s.cfg.DatasetPath, func(w io.Writer) error {
		return s.EncodeDataset(w, records)
	}); err != nil {
		return Written{}, fmt.Errorf("write dataset: %w", err)
	}
	if err := writeList(s.cfg.NoDataPath, result.NoData); err != nil {
		return Written{}, err
	}
	if err := writeList(s.cfg.ExceptionPath, result.Exceptions); err != nil {
		return Written{}, err
	}

	w := Written{
		DatasetPath: s.cfg.DatasetPath,
		Rows:        len(records),
		Appended:    appended,
		NoData:      len(result.NoData),
		Exceptions:  len(result.Exceptions),
	}
	s.logger.Info("results persisted",
		zap.String("dataset", w.DatasetPath),
		zap.Int("rows", w.Rows),
		zap.Int("appended", w.Appended),
		zap.Int("no_data", w.NoData),
		zap.Int("exceptions", w.Exceptions),
	)
	return w, nil
}

func writeList(path string, urls []string) error {
	if path == "" {
		return nil
	}
	if err := WriteAtomic(path, func(w io.Writer) error {
		return snapshot.WriteURLs(w, urls)
	}); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WriteAtomic streams into a temp file beside path and renames it over path.
func WriteAtomic(path string, write func(io.Writer) error) (err error) {
	if path == "" {
		return fmt.Errorf("empty output path")
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()
	if err := write(tmp); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
