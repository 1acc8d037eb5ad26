package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestPostgresPut(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := &PostgresRepository{db: db}

	entry := testEntry("1", StatusPending, time.Now().UTC())
	mock.ExpectExec(`INSERT INTO op_queue .+ ON CONFLICT \(id\) DO UPDATE SET`).
		WithArgs(entry.ID, string(entry.Operation), entry.Endpoint, entry.Method, entry.Payload,
			entry.CreatedAt.UnixNano(), string(entry.Status), entry.RetryCount, entry.LastError).
		WillReturnResult(sqlmock.NewResult(1, 1))

	assert.NoError(t, repo.Put(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := &PostgresRepository{db: db}

	created := time.Now().UTC().Truncate(time.Microsecond)
	rows := sqlmock.NewRows([]string{"id", "operation", "endpoint", "method", "payload", "created_at", "status", "retry_count", "last_error"}).
		AddRow("1", "door-command", "/door/open", "POST", []byte(`{}`), created.UnixNano(), "failed", 3, "503 unavailable")

	mock.ExpectQuery(`SELECT id, operation, endpoint, method, payload, created_at, status, retry_count, last_error FROM op_queue WHERE id = \$1`).
		WithArgs("1").
		WillReturnRows(rows)

	entry, err := repo.Get(context.Background(), "1")
	assert.NoError(t, err)
	assert.Equal(t, OpDoorCommand, entry.Operation)
	assert.Equal(t, StatusFailed, entry.Status)
	assert.Equal(t, 3, entry.RetryCount)
	assert.Equal(t, "503 unavailable", entry.LastError)
	assert.True(t, entry.CreatedAt.Equal(created))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := &PostgresRepository{db: db}

	rows := sqlmock.NewRows([]string{"id", "operation", "endpoint", "method", "payload", "created_at", "status", "retry_count", "last_error"})
	mock.ExpectQuery(`SELECT id, operation, endpoint, method, payload, created_at, status, retry_count, last_error FROM op_queue WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(rows)

	entry, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, entry)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAllByStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := &PostgresRepository{db: db}

	base := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "operation", "endpoint", "method", "payload", "created_at", "status", "retry_count", "last_error"}).
		AddRow("1", "config-update", "/config/a", "PUT", []byte(`{"a":1}`), base.UnixNano(), "pending", 0, "").
		AddRow("2", "wifi-connect", "/wifi", "POST", []byte(`{"ssid":"x"}`), base.Add(time.Second).UnixNano(), "pending", 1, "")

	mock.ExpectQuery(`SELECT id, operation, endpoint, method, payload, created_at, status, retry_count, last_error FROM op_queue WHERE status = \$1 ORDER BY created_at ASC`).
		WithArgs("pending").
		WillReturnRows(rows)

	entries, err := repo.AllByStatus(context.Background(), StatusPending)
	assert.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, "1", entries[0].ID)
	assert.Equal(t, "2", entries[1].ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteByStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := &PostgresRepository{db: db}

	mock.ExpectExec(`DELETE FROM op_queue WHERE status = \$1`).
		WithArgs("synced").
		WillReturnResult(sqlmock.NewResult(0, 4))

	deleted, err := repo.DeleteByStatus(context.Background(), StatusSynced)
	assert.NoError(t, err)
	assert.Equal(t, int64(4), deleted)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStats(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := &PostgresRepository{db: db}

	rows := sqlmock.NewRows([]string{"status", "count"}).
		AddRow("pending", 2).
		AddRow("syncing", 1).
		AddRow("synced", 1).
		AddRow("failed", 1)

	mock.ExpectQuery(`SELECT status, COUNT\(\*\) FROM op_queue GROUP BY status`).
		WillReturnRows(rows)

	stats, err := repo.Stats(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, &Stats{Total: 5, Pending: 2, Syncing: 1, Synced: 1, Failed: 1}, stats)

	assert.NoError(t, mock.ExpectationsWereMet())
}
