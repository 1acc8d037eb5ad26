// Package trigger decides when to run a sync cycle. The queue core is
// purely reactive; this is the collaborator that watches connectivity and
// invokes it.
package trigger

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zoff-tech/go-opqueue/pkg/config"
	"github.com/zoff-tech/go-opqueue/pkg/processor"
)

// QueueProcessor is the slice of the sync processor the trigger consumes.
type QueueProcessor interface {
	ProcessQueue(ctx context.Context) (processor.Summary, error)
}

// ConnectivityTrigger probes the controller's health endpoint and fires a
// sync cycle on the offline-to-online transition, plus an unconditional
// periodic pass as a safety net for entries enqueued while already online.
type ConnectivityTrigger struct {
	processor     QueueProcessor
	healthURL     string
	checkInterval time.Duration
	syncInterval  time.Duration
	client        *http.Client
	online        bool
}

func NewConnectivityTrigger(p QueueProcessor, cfg config.TriggerSettings) *ConnectivityTrigger {
	checkInterval := cfg.CheckInterval
	if checkInterval <= 0 {
		checkInterval = 30 * time.Second
	}
	syncInterval := cfg.SyncInterval
	if syncInterval <= 0 {
		syncInterval = 5 * time.Minute
	}
	return &ConnectivityTrigger{
		processor:     p,
		healthURL:     cfg.HealthURL,
		checkInterval: checkInterval,
		syncInterval:  syncInterval,
		client:        &http.Client{Timeout: 5 * time.Second},
	}
}

// Run blocks until the context is canceled.
func (t *ConnectivityTrigger) Run(ctx context.Context) {
	checkTicker := time.NewTicker(t.checkInterval)
	defer checkTicker.Stop()
	syncTicker := time.NewTicker(t.syncInterval)
	defer syncTicker.Stop()

	// Establish the starting state and drain anything queued while down.
	t.online = t.checkOnline(ctx)
	if t.online {
		t.fire(ctx, "startup")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-checkTicker.C:
			online := t.checkOnline(ctx)
			if online && !t.online {
				logrus.Info("Connectivity restored, draining queue")
				t.fire(ctx, "reconnect")
			}
			t.online = online
		case <-syncTicker.C:
			if t.online {
				t.fire(ctx, "periodic")
			}
		}
	}
}

func (t *ConnectivityTrigger) checkOnline(ctx context.Context) bool {
	if t.healthURL == "" {
		return true
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.healthURL, nil)
	if err != nil {
		return false
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (t *ConnectivityTrigger) fire(ctx context.Context, reason string) {
	summary, err := t.processor.ProcessQueue(ctx)
	if err != nil {
		// Another trigger beat us to it; the running cycle owns the queue.
		if errors.Is(err, processor.ErrSyncInProgress) {
			return
		}
		logrus.WithError(err).WithField("reason", reason).Error("Sync cycle failed")
		return
	}
	if summary.Processed > 0 {
		logrus.WithFields(logrus.Fields{
			"reason":    reason,
			"processed": summary.Processed,
			"succeeded": summary.Succeeded,
			"failed":    summary.Failed,
		}).Info("Sync cycle finished")
	}
}
