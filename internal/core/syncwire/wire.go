// Package syncwire defines the wire contract between devices and the sync
// service: pushed operations, pulled changes, and the entity registry both
// sides must agree on.
package syncwire

import (
	"encoding/json"
	"time"
)

// Action is the mutation kind carried by an operation or change.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Valid reports whether the action is one of the three known kinds.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// Operation is one queued mutation pushed from a device.
// OperationID is a client-generated idempotency key: the server applies each
// operation id at most once, so duplicate deliveries are safe.
type Operation struct {
	OperationID string          `json:"operationId"`
	EntityType  string          `json:"entityType"`
	Action      Action          `json:"action"`
	Payload     json.RawMessage `json:"payload"`
}

// PushRequest is the batch a device sends to POST /v1/sync/push.
type PushRequest struct {
	DeviceID   string      `json:"deviceId"`
	Operations []Operation `json:"operations"`
}

// RejectedOperation names a pushed operation the server refused.
// Rejections are terminal: the server will never accept the same payload, so
// the device must surface them instead of retrying.
type RejectedOperation struct {
	OperationID string `json:"operationId"`
	Reason      string `json:"reason"`
}

// PushResponse reports the fate of every pushed operation.
type PushResponse struct {
	Accepted []string            `json:"accepted"`
	Rejected []RejectedOperation `json:"rejected"`
}

// Change is one remote mutation served by GET /v1/sync/pull.
type Change struct {
	EntityType string          `json:"entityType"`
	Action     Action          `json:"action"`
	Payload    json.RawMessage `json:"payload"`
}

// PullResponse is one page of the change feed. Cursor is opaque to the
// device; it persists the value only after the page is durably applied.
type PullResponse struct {
	Changes []Change `json:"changes"`
	Cursor  *string  `json:"cursor"`
	HasMore bool     `json:"hasMore"`
}

// SyncStatus is the engine status snapshot exposed to the device UI.
type SyncStatus struct {
	PendingOperations int                 `json:"pendingOperations"`
	LastSyncAt        *time.Time          `json:"lastSyncAt,omitempty"`
	IsSyncing         bool                `json:"isSyncing"`
	LastError         string              `json:"lastError,omitempty"`
	LastRejected      []RejectedOperation `json:"lastRejected,omitempty"`
}
