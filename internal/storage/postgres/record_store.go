// Package postgres stores harvested signature records in Postgres.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/1-icenine/eci-tracker/internal/snapshot"
)

const defaultTable = "snapshot_records"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for record rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Begin(context.Context) (pgx.Tx, error)
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// RecordStore writes snapshot records into Postgres.
type RecordStore struct {
	pool  pool
	table string
}

// NewRecordStore connects a pool using cfg.
func NewRecordStore(ctx context.Context, cfg Config) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RecordStore{pool: p, table: table}, nil
}

// NewRecordStoreWithPool constructs a store from an existing pool.
func NewRecordStoreWithPool(p pool, table string) (*RecordStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &RecordStore{pool: p, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the records table when missing.
func (s *RecordStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id       TEXT NOT NULL,
	snapshot_url TEXT NOT NULL,
	captured_at  TIMESTAMPTZ,
	capture_date TEXT NOT NULL,
	capture_time TEXT NOT NULL,
	entity       TEXT NOT NULL,
	support      BIGINT,
	threshold    BIGINT,
	percentage   DOUBLE PRECISION
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// StoreRecords inserts all records of a run in one transaction. Numeric
// columns that do not parse are stored as NULL.
func (s *RecordStore) StoreRecords(ctx context.Context, runID string, records []snapshot.Record) (err error) {
	if s == nil || s.pool == nil {
		return fmt.Errorf("record store is not configured")
	}
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	if len(records) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	snapshot_url,
	captured_at,
	capture_date,
	capture_time,
	entity,
	support,
	threshold,
	percentage
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)`, s.table)

	for _, rec := range records {
		if _, err := tx.Exec(ctx, query, rowArgs(runID, rec)...); err != nil {
			return fmt.Errorf("insert record %s/%s: %w", rec.Source, rec.Entity, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit records: %w", err)
	}
	return nil
}

func rowArgs(runID string, rec snapshot.Record) []any {
	var capturedAt any
	if t, ok := snapshot.CaptureTime(rec.Source); ok {
		capturedAt = t
	}
	var support, threshold, percentage any
	if n, err := rec.SupportCount(); err == nil {
		support = n
	}
	if n, err := rec.ThresholdCount(); err == nil {
		threshold = n
	}
	if f, err := rec.PercentValue(); err == nil {
		percentage = f
	}
	return []any{
		runID,
		rec.Source,
		capturedAt,
		rec.CaptureDate,
		rec.CaptureTime,
		rec.Entity,
		support,
		threshold,
		percentage,
	}
}
