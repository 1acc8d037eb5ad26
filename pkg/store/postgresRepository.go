package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
)

// PostgresRepository backs the queue with a PostgreSQL table for hub-attached
// deployments where several panels share one controller gateway. created_at
// is a BIGINT of Unix nanoseconds, same convention as the sqlite backend.
type PostgresRepository struct {
	db *sql.DB // using database/sql
}

func (p *PostgresRepository) Put(ctx context.Context, entry *QueueEntry) error {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "Put")
	defer span.End()

	startTime := time.Now()
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO op_queue (id, operation, endpoint, method, payload, created_at, status, retry_count, last_error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
			operation=EXCLUDED.operation, endpoint=EXCLUDED.endpoint, method=EXCLUDED.method,
			payload=EXCLUDED.payload, created_at=EXCLUDED.created_at, status=EXCLUDED.status,
			retry_count=EXCLUDED.retry_count, last_error=EXCLUDED.last_error`,
		entry.ID, string(entry.Operation), entry.Endpoint, entry.Method, entry.Payload,
		entry.CreatedAt.UnixNano(), string(entry.Status), entry.RetryCount, entry.LastError)
	if err != nil {
		span.RecordError(err)
		return err
	}

	addDBStatsToSpan(span, "Put", "postgresql", 1, time.Since(startTime))
	return nil
}

func (p *PostgresRepository) Get(ctx context.Context, id string) (*QueueEntry, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "Get")
	defer span.End()

	row := p.db.QueryRowContext(ctx,
		`SELECT id, operation, endpoint, method, payload, created_at, status, retry_count, last_error
		 FROM op_queue WHERE id = $1`, id)

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

func (p *PostgresRepository) All(ctx context.Context) ([]QueueEntry, error) {
	return p.query(ctx, "All",
		`SELECT id, operation, endpoint, method, payload, created_at, status, retry_count, last_error
		 FROM op_queue ORDER BY created_at DESC`)
}

func (p *PostgresRepository) AllByStatus(ctx context.Context, status Status) ([]QueueEntry, error) {
	return p.query(ctx, "AllByStatus",
		`SELECT id, operation, endpoint, method, payload, created_at, status, retry_count, last_error
		 FROM op_queue WHERE status = $1 ORDER BY created_at ASC`, string(status))
}

func (p *PostgresRepository) Delete(ctx context.Context, id string) error {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "Delete")
	defer span.End()

	_, err := p.db.ExecContext(ctx, `DELETE FROM op_queue WHERE id = $1`, id)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (p *PostgresRepository) DeleteByStatus(ctx context.Context, status Status) (int64, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "DeleteByStatus")
	defer span.End()

	startTime := time.Now()
	res, err := p.db.ExecContext(ctx, `DELETE FROM op_queue WHERE status = $1`, string(status))
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	addDBStatsToSpan(span, "DeleteByStatus", "postgresql", int(deleted), time.Since(startTime))
	return deleted, nil
}

func (p *PostgresRepository) Clear(ctx context.Context) error {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "Clear")
	defer span.End()

	_, err := p.db.ExecContext(ctx, `DELETE FROM op_queue`)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (p *PostgresRepository) Stats(ctx context.Context) (*Stats, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "Stats")
	defer span.End()

	rows, err := p.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM op_queue GROUP BY status`)
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

func (p *PostgresRepository) Close() error {
	return p.db.Close()
}

func (p *PostgresRepository) query(ctx context.Context, spanName, stmt string, args ...any) ([]QueueEntry, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, spanName)
	defer span.End()

	startTime := time.Now()
	rows, err := p.db.QueryContext(ctx, stmt, args...)
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

	addDBStatsToSpan(span, spanName, "postgresql", len(entries), time.Since(startTime))
	return entries, nil
}
