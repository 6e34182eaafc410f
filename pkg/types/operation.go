package types

import (
	"encoding/json"
	"errors"
)

var ErrOperationNotFound = errors.New("operation not found")

// OperationKind enumerates the client mutations that may be queued
// offline and replayed with at-least-once semantics.
type OperationKind int8

const (
	OP_KIND_UNKNOWN     OperationKind = 0
	OP_KIND_CREATE_CHAT OperationKind = 1
	OP_KIND_SEND_MSG    OperationKind = 2
	OP_KIND_UPDATE_CHAT OperationKind = 3
	OP_KIND_DELETE_CHAT OperationKind = 4
)

func (k OperationKind) String() string {
	switch k {
	case OP_KIND_CREATE_CHAT:
		return "create-chat"
	case OP_KIND_SEND_MSG:
		return "send-message"
	case OP_KIND_UPDATE_CHAT:
		return "update-chat"
	case OP_KIND_DELETE_CHAT:
		return "delete-chat"
	default:
		return "unknown"
	}
}

// OperationRecord is the server side idempotency ledger row. A replayed
// operation with a known correlation id returns ResultID instead of
// applying again.
type OperationRecord struct {
	CorrelationID string        `json:"correlation_id" db:"correlation_id"`
	UserID        string        `json:"user_id" db:"user_id"`
	Kind          OperationKind `json:"kind" db:"kind"`
	ResultID      string        `json:"result_id" db:"result_id"`
	CreatedAt     int64         `json:"created_at" db:"created_at"`
}

// SyncOperation is one replayed client operation as received on the
// reconciliation endpoint.
type SyncOperation struct {
	CorrelationID string          `json:"correlation_id"`
	Kind          OperationKind   `json:"kind"`
	ChatID        string          `json:"chat_id"`
	Payload       json.RawMessage `json:"payload"`
}

// SyncResult reports the outcome of one replayed operation.
type SyncResult struct {
	CorrelationID string `json:"correlation_id"`
	ResultID      string `json:"result_id,omitempty"`
	Duplicate     bool   `json:"duplicate"`
	Conflict      bool   `json:"conflict,omitempty"`
	Error         string `json:"error,omitempty"`
	Current       *Chat  `json:"current,omitempty"`
}
