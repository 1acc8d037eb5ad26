package store

import "time"

// Status represents the lifecycle state of a queue entry.
type Status string

const (
	StatusPending Status = "pending"
	StatusSyncing Status = "syncing"
	StatusSynced  Status = "synced"
	StatusFailed  Status = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSyncing, StatusSynced, StatusFailed:
		return true
	}
	return false
}

// Operation categorizes a queued write. The sync processor never inspects
// it; it exists for display, filtering and broker routing.
type Operation string

const (
	OpConfigUpdate    Operation = "config-update"
	OpDoorCommand     Operation = "door-command"
	OpDeviceProvision Operation = "device-provision"
	OpWifiConnect     Operation = "wifi-connect"
	OpCameraConfig    Operation = "camera-config"
	OpInventoryUpdate Operation = "inventory-update"
)

// QueueEntry represents one client-originated write operation awaiting or
// having completed synchronization with the controller.
//
// CreatedAt is assigned once by the manager and is the sole ordering key for
// processing. RetryCount only ever increases; it is bumped exactly once per
// dispatch attempt (on the transition to StatusSyncing) and survives a move
// back to StatusPending.
type QueueEntry struct {
	ID         string    `json:"id"`
	Operation  Operation `json:"operation"`
	Endpoint   string    `json:"endpoint"`
	Method     string    `json:"method"`
	Payload    []byte    `json:"payload"`
	CreatedAt  time.Time `json:"created_at"`
	Status     Status    `json:"status"`
	RetryCount int       `json:"retry_count"`
	LastError  string    `json:"last_error,omitempty"`
}

// Stats aggregates entry counts by status.
type Stats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Syncing int `json:"syncing"`
	Synced  int `json:"synced"`
	Failed  int `json:"failed"`
}
