package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/1-icenine/eci-tracker/internal/snapshot"
)

const source = "https://web.archive.org/web/20250627115346/https://citizens-initiative.europa.eu/x"

func records() []snapshot.Record {
	return []snapshot.Record{
		{CaptureDate: "2025-06-27", CaptureTime: "11:53:46", Entity: "Germany", Support: "12345", Threshold: "9600", Percentage: "128.59", Source: source},
		{CaptureDate: "2025-06-27", CaptureTime: "11:53:46", Entity: "Malta", Support: "n/a", Threshold: "4230", Percentage: "", Source: source},
	}
}

func TestStoreRecordsInsertsInOneTransaction(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "")
	require.NoError(t, err)

	captured := time.Date(2025, 6, 27, 11, 53, 46, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO snapshot_records").
		WithArgs("run-1", source, captured, "2025-06-27", "11:53:46", "Germany", int64(12345), int64(9600), 128.59).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO snapshot_records").
		WithArgs("run-1", source, captured, "2025-06-27", "11:53:46", "Malta", nil, int64(4230), nil).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, store.StoreRecords(context.Background(), "run-1", records()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRecordsRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "eci_rows")
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO eci_rows").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = store.StoreRecords(context.Background(), "run-1", records())
	require.ErrorContains(t, err, "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRecordsEmptyIsNoop(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "")
	require.NoError(t, err)
	require.NoError(t, store.StoreRecords(context.Background(), "run-1", nil))
	require.Error(t, store.StoreRecords(context.Background(), "", records()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "")
	require.NoError(t, err)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS snapshot_records").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTableNameValidation(t *testing.T) {
	t.Parallel()

	_, err := NewRecordStoreWithPool(nil, "")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewRecordStoreWithPool(mock, "records; DROP TABLE x")
	require.ErrorContains(t, err, "invalid table name")

	_, err = NewRecordStore(context.Background(), Config{})
	require.ErrorContains(t, err, "db.dsn")
}
