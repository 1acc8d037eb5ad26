package transport

import (
	"context"

	"github.com/zoff-tech/go-opqueue/pkg/store"
)

// Result captures the remote API's answer to one dispatch attempt. Success
// carries the success/non-success distinction; Body holds the verbatim
// response text, which becomes the entry's lastError on rejection.
type Result struct {
	Success    bool
	StatusCode int
	Body       string
}

// Client dispatches exactly one request per queue entry per attempt.
// A returned error means the request never produced a response (a
// network-level failure); an application-level rejection is a Result with
// Success=false. Timeouts are the client's responsibility, not the queue's.
type Client interface {
	Dispatch(ctx context.Context, entry *store.QueueEntry) (*Result, error)
	// Close cleans up any resources (connections).
	Close() error
}
