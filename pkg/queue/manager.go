// Package queue implements the consumer-facing surface of the offline
// operation queue: enqueueing, status transitions, bulk cleanup, retry
// eligibility and statistics. All entry mutation funnels through the Manager;
// nothing else writes to the store.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zoff-tech/go-opqueue/pkg/config"
	"github.com/zoff-tech/go-opqueue/pkg/store"
)

// Manager provides CRUD and aggregate operations over the queue store.
// It owns id allocation and createdAt assignment; createdAt is monotonic in
// call order even on coarse clocks, so creation order is always total.
type Manager struct {
	repo       store.QueueRepository
	maxRetries int
	tracer     trace.Tracer

	mu          sync.Mutex
	lastCreated time.Time
}

// NewManager wires a Manager over an explicitly owned repository handle.
// maxRetries <= 0 falls back to config.DefaultMaxRetries.
func NewManager(repo store.QueueRepository, maxRetries int) *Manager {
	if maxRetries <= 0 {
		maxRetries = config.DefaultMaxRetries
	}
	return &Manager{
		repo:       repo,
		maxRetries: maxRetries,
		tracer:     otel.Tracer("go-opqueue"),
	}
}

// MaxRetries returns the dispatch-attempt cap.
func (m *Manager) MaxRetries() int {
	return m.maxRetries
}

// Add enqueues a new write operation: fresh id, createdAt=now,
// status=pending, retryCount=0. The payload is carried verbatim and never
// inspected by the queue.
func (m *Manager) Add(ctx context.Context, op store.Operation, endpoint, method string, payload []byte) (*store.QueueEntry, error) {
	ctx, span := m.tracer.Start(ctx, "Add", trace.WithAttributes(
		attribute.String("entry.operation", string(op)),
		attribute.String("entry.endpoint", endpoint),
		attribute.String("entry.method", method),
	))
	defer span.End()

	entry := &store.QueueEntry{
		ID:        uuid.NewString(),
		Operation: op,
		Endpoint:  endpoint,
		Method:    method,
		Payload:   payload,
		CreatedAt: m.nextCreatedAt(),
		Status:    store.StatusPending,
	}

	if err := m.repo.Put(ctx, entry); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to persist queue entry: %w", err)
	}
	return entry, nil
}

// nextCreatedAt hands out strictly increasing timestamps. When the wall
// clock has not advanced past the previous Add, the previous value is bumped
// by one microsecond.
func (m *Manager) nextCreatedAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if !now.After(m.lastCreated) {
		now = m.lastCreated.Add(time.Microsecond)
	}
	m.lastCreated = now
	return now
}

// Pending returns entries awaiting dispatch in createdAt ascending order
// (processing order).
func (m *Manager) Pending(ctx context.Context) ([]store.QueueEntry, error) {
	return m.repo.AllByStatus(ctx, store.StatusPending)
}

// All returns a point-in-time snapshot of every entry, newest first. This is
// the display ordering, deliberately the inverse of processing order.
func (m *Manager) All(ctx context.Context) ([]store.QueueEntry, error) {
	return m.repo.All(ctx)
}

// UpdateStatus transitions one entry. A missing id is a no-op, never an
// error. The transition to StatusSyncing marks a dispatch attempt and
// increments RetryCount exactly once; lastErr, when non-empty, is stored
// verbatim. Entries already synced are terminal and left untouched.
func (m *Manager) UpdateStatus(ctx context.Context, id string, status store.Status, lastErr string) error {
	ctx, span := m.tracer.Start(ctx, "UpdateStatus", trace.WithAttributes(
		attribute.String("entry.id", id),
		attribute.String("entry.status", string(status)),
	))
	defer span.End()

	if !status.Valid() {
		return fmt.Errorf("invalid status: %s", status)
	}

	entry, err := m.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		span.RecordError(err)
		return err
	}

	if entry.Status == store.StatusSynced {
		return nil
	}

	entry.Status = status
	if status == store.StatusSyncing {
		entry.RetryCount++
	}
	if lastErr != "" {
		entry.LastError = lastErr
	}

	if err := m.repo.Put(ctx, entry); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Remove deletes one entry unconditionally.
func (m *Manager) Remove(ctx context.Context, id string) error {
	return m.repo.Delete(ctx, id)
}

// ClearSynced deletes every synced entry, leaving all other statuses alone.
func (m *Manager) ClearSynced(ctx context.Context) (int64, error) {
	return m.repo.DeleteByStatus(ctx, store.StatusSynced)
}

// ClearAll wipes the queue entirely.
func (m *Manager) ClearAll(ctx context.Context) error {
	return m.repo.Clear(ctx)
}

// RetryFailed moves failed entries with attempts remaining back to pending
// and reports how many were reactivated. RetryCount is cumulative over the
// entry's lifetime and is never reset; entries at or past the cap stay
// failed until removed.
func (m *Manager) RetryFailed(ctx context.Context) (int, error) {
	ctx, span := m.tracer.Start(ctx, "RetryFailed")
	defer span.End()

	failed, err := m.repo.AllByStatus(ctx, store.StatusFailed)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	reactivated := 0
	for i := range failed {
		entry := &failed[i]
		if entry.RetryCount >= m.maxRetries {
			continue
		}
		entry.Status = store.StatusPending
		if err := m.repo.Put(ctx, entry); err != nil {
			span.RecordError(err)
			return reactivated, err
		}
		reactivated++
	}

	span.SetAttributes(attribute.Int("entries.reactivated", reactivated))
	return reactivated, nil
}

// Stats returns entry counts by status.
func (m *Manager) Stats(ctx context.Context) (*store.Stats, error) {
	return m.repo.Stats(ctx)
}
