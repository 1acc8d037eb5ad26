package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	_ "modernc.org/sqlite" // CGo-free SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS op_queue (
	id          TEXT PRIMARY KEY,
	operation   TEXT NOT NULL,
	endpoint    TEXT NOT NULL,
	method      TEXT NOT NULL,
	payload     BLOB,
	created_at  INTEGER NOT NULL,
	status      TEXT NOT NULL,
	retry_count INTEGER NOT NULL DEFAULT 0,
	last_error  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_op_queue_status ON op_queue(status);
CREATE INDEX IF NOT EXISTS idx_op_queue_created_at ON op_queue(created_at);
`

// SqliteRepository is the embedded store backend. It is the default for a
// panel agent: the queue must stay writable with no network at all, so the
// records live in a local database file next to the agent.
//
// created_at is stored as integer Unix nanoseconds so that the manager's
// monotonic timestamps order exactly, without text-format round-tripping.
type SqliteRepository struct {
	db *sql.DB
}

// NewSqliteRepository opens (creating if needed) the database at path and
// ensures the schema. WAL keeps readers cheap; synchronous=FULL makes every
// committed write durable before Put returns.
func NewSqliteRepository(ctx context.Context, path string) (*SqliteRepository, error) {
	db, err := sqlOpen("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// The driver is safe for concurrent use but SQLite wants one writer.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SqliteRepository{db: db}, nil
}

func (s *SqliteRepository) Put(ctx context.Context, entry *QueueEntry) error {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "Put")
	defer span.End()

	startTime := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO op_queue (id, operation, endpoint, method, payload, created_at, status, retry_count, last_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			operation=excluded.operation, endpoint=excluded.endpoint, method=excluded.method,
			payload=excluded.payload, created_at=excluded.created_at, status=excluded.status,
			retry_count=excluded.retry_count, last_error=excluded.last_error`,
		entry.ID, string(entry.Operation), entry.Endpoint, entry.Method, entry.Payload,
		entry.CreatedAt.UnixNano(), string(entry.Status), entry.RetryCount, entry.LastError)
	if err != nil {
		span.RecordError(err)
		return err
	}

	addDBStatsToSpan(span, "Put", "sqlite", 1, time.Since(startTime))
	return nil
}

func (s *SqliteRepository) Get(ctx context.Context, id string) (*QueueEntry, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "Get")
	defer span.End()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, operation, endpoint, method, payload, created_at, status, retry_count, last_error
		 FROM op_queue WHERE id = ?`, id)

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, err
	}
	return entry, nil
}

func (s *SqliteRepository) All(ctx context.Context) ([]QueueEntry, error) {
	return s.query(ctx, "All",
		`SELECT id, operation, endpoint, method, payload, created_at, status, retry_count, last_error
		 FROM op_queue ORDER BY created_at DESC`)
}

func (s *SqliteRepository) AllByStatus(ctx context.Context, status Status) ([]QueueEntry, error) {
	return s.query(ctx, "AllByStatus",
		`SELECT id, operation, endpoint, method, payload, created_at, status, retry_count, last_error
		 FROM op_queue WHERE status = ? ORDER BY created_at ASC`, string(status))
}

func (s *SqliteRepository) Delete(ctx context.Context, id string) error {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "Delete")
	defer span.End()

	_, err := s.db.ExecContext(ctx, `DELETE FROM op_queue WHERE id = ?`, id)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (s *SqliteRepository) DeleteByStatus(ctx context.Context, status Status) (int64, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "DeleteByStatus")
	defer span.End()

	startTime := time.Now()
	res, err := s.db.ExecContext(ctx, `DELETE FROM op_queue WHERE status = ?`, string(status))
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	addDBStatsToSpan(span, "DeleteByStatus", "sqlite", int(deleted), time.Since(startTime))
	return deleted, nil
}

func (s *SqliteRepository) Clear(ctx context.Context) error {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "Clear")
	defer span.End()

	_, err := s.db.ExecContext(ctx, `DELETE FROM op_queue`)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (s *SqliteRepository) Stats(ctx context.Context) (*Stats, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "Stats")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM op_queue GROUP BY status`)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer rows.Close()

	stats := &Stats{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			span.RecordError(err)
			return nil, err
		}
		stats.apply(Status(status), count)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return stats, nil
}

func (s *SqliteRepository) Close() error {
	return s.db.Close()
}

func (s *SqliteRepository) query(ctx context.Context, spanName, stmt string, args ...any) ([]QueueEntry, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, spanName)
	defer span.End()

	startTime := time.Now()
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer rows.Close()

	var entries []QueueEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	addDBStatsToSpan(span, spanName, "sqlite", len(entries), time.Since(startTime))
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*QueueEntry, error) {
	var entry QueueEntry
	var operation, status string
	var createdAt int64
	if err := row.Scan(&entry.ID, &operation, &entry.Endpoint, &entry.Method, &entry.Payload,
		&createdAt, &status, &entry.RetryCount, &entry.LastError); err != nil {
		return nil, err
	}
	entry.Operation = Operation(operation)
	entry.Status = Status(status)
	entry.CreatedAt = time.Unix(0, createdAt).UTC()
	return &entry, nil
}

func (st *Stats) apply(status Status, count int) {
	st.Total += count
	switch status {
	case StatusPending:
		st.Pending += count
	case StatusSyncing:
		st.Syncing += count
	case StatusSynced:
		st.Synced += count
	case StatusFailed:
		st.Failed += count
	}
}
