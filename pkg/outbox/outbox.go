package outbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/speechbot/speechbot/pkg/safe"
	"github.com/speechbot/speechbot/pkg/types"
)

const (
	maxAttempts    = 3
	initialBackoff = time.Millisecond * 500
)

type OperationState int8

const (
	OPERATION_STATE_PENDING OperationState = 1
	OPERATION_STATE_FAILED  OperationState = 2
)

// PendingOperation is one queued local mutation awaiting replay.
type PendingOperation struct {
	types.SyncOperation
	State     OperationState `json:"state"`
	Attempts  int            `json:"attempts"`
	LastError string         `json:"last_error,omitempty"`
	CreatedAt int64          `json:"created_at"`
}

// Storage persists the pending queue across reconnects. Enqueue order
// is replay order.
type Storage interface {
	Append(op PendingOperation) error
	List() ([]PendingOperation, error)
	Update(op PendingOperation) error
	Remove(correlationID string) error
}

// Applier replays one operation against the server. Implementations
// must carry the operation's correlation id so the server can
// deduplicate repeated attempts.
type Applier interface {
	Apply(ctx context.Context, op types.SyncOperation) (types.SyncResult, error)
}

// ConflictFunc receives operations the server rejected with a version
// conflict, together with the server's current chat state. The engine
// never merges; the caller presents both versions.
type ConflictFunc func(op PendingOperation, current *types.Chat)

type Outbox struct {
	deviceID   string
	storage    Storage
	applier    Applier
	onConflict ConflictFunc
	backoff    time.Duration

	mu       sync.Mutex
	flushing bool
	notify   chan struct{}
}

func New(deviceID string, storage Storage, applier Applier, onConflict ConflictFunc) *Outbox {
	if onConflict == nil {
		onConflict = func(PendingOperation, *types.Chat) {}
	}
	return &Outbox{
		deviceID:   deviceID,
		storage:    storage,
		applier:    applier,
		onConflict: onConflict,
		backoff:    initialBackoff,
		notify:     make(chan struct{}, 1),
	}
}

// Enqueue records a local mutation for later replay. A correlation id
// is assigned if the caller did not supply one.
func (o *Outbox) Enqueue(op types.SyncOperation) (string, error) {
	if op.CorrelationID == "" {
		op.CorrelationID = uuid.NewString()
	}
	err := o.storage.Append(PendingOperation{
		SyncOperation: op,
		State:         OPERATION_STATE_PENDING,
		CreatedAt:     time.Now().Unix(),
	})
	if err != nil {
		return "", err
	}
	o.wake()
	return op.CorrelationID, nil
}

// Start runs the replay loop until ctx is cancelled. Each wake drains
// the queue once; Enqueue and Retry wake it.
func (o *Outbox) Start(ctx context.Context) {
	safe.Run(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-o.notify:
				if err := o.Flush(ctx); err != nil {
					slog.Error("outbox flush failed",
						slog.String("device_id", o.deviceID),
						slog.String("error", err.Error()))
				}
			}
		}
	})
}

// Flush replays every pending operation in enqueue order. Operations
// that exhaust their attempts are marked failed and left in place;
// later operations still run so one poisoned op cannot wedge the queue
// for other chats.
func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	if o.flushing {
		o.mu.Unlock()
		return nil
	}
	o.flushing = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.flushing = false
		o.mu.Unlock()
	}()

	ops, err := o.storage.List()
	if err != nil {
		return err
	}

	blocked := make(map[string]bool)
	for _, op := range ops {
		if op.State == OPERATION_STATE_FAILED {
			blocked[op.ChatID] = true
			continue
		}
		// replay stays FIFO within a chat: nothing jumps a failed
		// predecessor on the same chat
		if blocked[op.ChatID] {
			continue
		}
		if err := o.replay(ctx, op); err != nil {
			blocked[op.ChatID] = true
		}
	}
	return nil
}

func (o *Outbox) replay(ctx context.Context, op PendingOperation) error {
	var lastErr error
	for op.Attempts < maxAttempts {
		if err := ctx.Err(); err != nil {
			return err
		}

		op.Attempts++
		result, err := o.applier.Apply(ctx, op.SyncOperation)
		if err == nil {
			if result.Conflict {
				o.onConflict(op, result.Current)
			}
			if result.Duplicate {
				slog.Debug("outbox replay deduplicated",
					slog.String("correlation_id", op.CorrelationID),
					slog.String("device_id", o.deviceID))
			}
			return o.storage.Remove(op.CorrelationID)
		}

		lastErr = err
		slog.Warn("outbox replay attempt failed",
			slog.String("correlation_id", op.CorrelationID),
			slog.String("kind", op.Kind.String()),
			slog.Int("attempt", op.Attempts),
			slog.String("error", err.Error()))

		if op.Attempts < maxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(o.backoff << (op.Attempts - 1)):
			}
		}
	}

	op.State = OPERATION_STATE_FAILED
	op.LastError = lastErr.Error()
	if err := o.storage.Update(op); err != nil {
		return err
	}
	return lastErr
}

// Failed lists operations that exhausted their retries and await an
// explicit Discard or Retry decision.
func (o *Outbox) Failed() ([]PendingOperation, error) {
	ops, err := o.storage.List()
	if err != nil {
		return nil, err
	}
	var failed []PendingOperation
	for _, op := range ops {
		if op.State == OPERATION_STATE_FAILED {
			failed = append(failed, op)
		}
	}
	return failed, nil
}

// Discard drops a failed operation permanently.
func (o *Outbox) Discard(correlationID string) error {
	return o.storage.Remove(correlationID)
}

// Retry rearms a failed operation with a fresh attempt budget.
func (o *Outbox) Retry(correlationID string) error {
	ops, err := o.storage.List()
	if err != nil {
		return err
	}
	for _, op := range ops {
		if op.CorrelationID != correlationID {
			continue
		}
		op.State = OPERATION_STATE_PENDING
		op.Attempts = 0
		op.LastError = ""
		if err := o.storage.Update(op); err != nil {
			return err
		}
		o.wake()
		return nil
	}
	return types.ErrOperationNotFound
}

func (o *Outbox) wake() {
	select {
	case o.notify <- struct{}{}:
	default:
	}
}
