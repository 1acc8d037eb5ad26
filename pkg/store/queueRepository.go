package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no entry exists for the given id.
var ErrNotFound = errors.New("queue entry not found")

// QueueRepository defines the durable storage operations for queue entries.
// Single-entry writes must be atomic and immediately durable; no cross-entry
// transaction guarantee is required. Implementations hold no business logic.
type QueueRepository interface {
	// Put inserts or replaces the entry keyed by its ID.
	Put(ctx context.Context, entry *QueueEntry) error
	// Get retrieves one entry by id, or ErrNotFound.
	Get(ctx context.Context, id string) (*QueueEntry, error)
	// All returns every entry ordered by created_at descending (display order).
	All(ctx context.Context) ([]QueueEntry, error)
	// AllByStatus returns entries with the given status ordered by created_at
	// ascending (processing order).
	AllByStatus(ctx context.Context, status Status) ([]QueueEntry, error)
	// Delete removes one entry. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error
	// DeleteByStatus removes every entry with the given status and reports how
	// many were removed.
	DeleteByStatus(ctx context.Context, status Status) (int64, error)
	// Clear wipes the store.
	Clear(ctx context.Context) error
	// Stats counts entries grouped by status.
	Stats(ctx context.Context) (*Stats, error)
	// Close releases the underlying handle.
	Close() error
}
