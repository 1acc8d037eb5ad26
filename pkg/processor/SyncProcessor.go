// Package processor implements the synchronization algorithm: drain pending
// entries in creation order, dispatch each one to the remote API, classify
// the outcome and record it per entry.
package processor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zoff-tech/go-opqueue/pkg/queue"
	"github.com/zoff-tech/go-opqueue/pkg/store"
	"github.com/zoff-tech/go-opqueue/pkg/transport"
)

// ErrSyncInProgress is returned when ProcessQueue is invoked while another
// cycle is still draining the queue. Triggers treat it as "nothing to do":
// the running cycle already owns every pending entry.
var ErrSyncInProgress = errors.New("a sync cycle is already running")

// Summary counts every entry attempted in one ProcessQueue call.
type Summary struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// SyncProcessor drains the queue against a transport client. Entries are
// dispatched strictly one at a time in createdAt order: parallel dispatch
// would let the controller observe user intents out of order, so throughput
// is deliberately sacrificed for ordering.
type SyncProcessor struct {
	manager *queue.Manager
	client  transport.Client
	tracer  trace.Tracer
	running atomic.Bool
}

// NewSyncProcessor creates a new instance of SyncProcessor.
func NewSyncProcessor(manager *queue.Manager, client transport.Client) *SyncProcessor {
	return &SyncProcessor{
		manager: manager,
		client:  client,
		tracer:  otel.Tracer("go-opqueue"),
	}
}

// Running reports whether a sync cycle is currently active.
func (p *SyncProcessor) Running() bool {
	return p.running.Load()
}

// ProcessQueue runs one synchronization cycle over the pending entries.
//
// One entry's failure never blocks or aborts the rest of the batch: a
// network-level error or a non-success response marks that entry failed with
// the verbatim error text and processing moves on. Conflict-class responses
// get no special handling; they are rejections like any other. The returned
// error covers only cycle-level conditions (reentry, a store that cannot be
// read) — per-entry outcomes are reported exclusively through the Summary
// and each entry's lastError.
func (p *SyncProcessor) ProcessQueue(ctx context.Context) (Summary, error) {
	// Overlapping invocations (reconnect plus manual retry, say) would
	// double-dispatch the same pending entries. Second caller backs off.
	if !p.running.CompareAndSwap(false, true) {
		return Summary{}, ErrSyncInProgress
	}
	defer p.running.Store(false)

	ctx, span := p.tracer.Start(ctx, "ProcessQueue")
	defer span.End()

	entries, err := p.manager.Pending(ctx)
	if err != nil {
		span.RecordError(err)
		return Summary{}, fmt.Errorf("failed to fetch pending entries: %w", err)
	}

	// The repository already orders by created_at, but FIFO dispatch is the
	// one guarantee this component exists for, so it does not depend on the
	// backend honoring it.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})

	var summary Summary
	for i := range entries {
		summary.add(p.processEntry(ctx, &entries[i]))
	}

	span.SetAttributes(
		attribute.Int("sync.processed", summary.Processed),
		attribute.Int("sync.succeeded", summary.Succeeded),
		attribute.Int("sync.failed", summary.Failed),
	)
	return summary, nil
}

func (p *SyncProcessor) processEntry(ctx context.Context, entry *store.QueueEntry) bool {
	ctx, span := p.tracer.Start(ctx, "ProcessQueueEntry", trace.WithAttributes(
		attribute.String("entry.id", entry.ID),
		attribute.String("entry.operation", string(entry.Operation)),
		attribute.String("entry.endpoint", entry.Endpoint),
		attribute.String("entry.method", entry.Method),
		attribute.Int("entry.retry_count", entry.RetryCount),
		attribute.String("entry.created_at", entry.CreatedAt.String()),
	))
	defer span.End()

	// Marking the entry syncing records the dispatch attempt (retryCount++).
	if err := p.manager.UpdateStatus(ctx, entry.ID, store.StatusSyncing, ""); err != nil {
		logrus.WithError(err).WithField("entry_id", entry.ID).Error("Failed to mark entry syncing")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false
	}

	res, err := p.client.Dispatch(ctx, entry)
	switch {
	case err != nil:
		// The request never produced a response.
		logrus.WithError(err).WithField("entry_id", entry.ID).Warn("Dispatch failed at network level")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.recordStatus(ctx, entry.ID, store.StatusFailed, err.Error())
		return false
	case !res.Success:
		// Application-level rejection, conflicts included. Body preserved
		// verbatim and uninterpreted for human or higher-layer reconciliation.
		logrus.WithFields(logrus.Fields{
			"entry_id":    entry.ID,
			"status_code": res.StatusCode,
		}).Warn("Dispatch rejected by remote API")
		span.SetStatus(codes.Error, res.Body)
		p.recordStatus(ctx, entry.ID, store.StatusFailed, res.Body)
		return false
	default:
		p.recordStatus(ctx, entry.ID, store.StatusSynced, "")
		return true
	}
}

func (p *SyncProcessor) recordStatus(ctx context.Context, id string, status store.Status, lastErr string) {
	if err := p.manager.UpdateStatus(ctx, id, status, lastErr); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"entry_id": id,
			"status":   status,
		}).Error("Failed to record entry status")
	}
}

func (s *Summary) add(succeeded bool) {
	s.Processed++
	if succeeded {
		s.Succeeded++
	} else {
		s.Failed++
	}
}
