package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speechbot/speechbot/pkg/types"
)

type fakeApplier struct {
	mu      sync.Mutex
	applied []types.SyncOperation
	handler func(op types.SyncOperation) (types.SyncResult, error)
}

func (f *fakeApplier) Apply(ctx context.Context, op types.SyncOperation) (types.SyncResult, error) {
	f.mu.Lock()
	f.applied = append(f.applied, op)
	f.mu.Unlock()
	if f.handler != nil {
		return f.handler(op)
	}
	return types.SyncResult{CorrelationID: op.CorrelationID, ResultID: "msg-" + op.CorrelationID}, nil
}

func (f *fakeApplier) appliedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, op := range f.applied {
		ids = append(ids, op.CorrelationID)
	}
	return ids
}

func newTestOutbox(applier Applier, onConflict ConflictFunc) *Outbox {
	o := New("device-1", NewMemoryStorage(), applier, onConflict)
	o.backoff = time.Millisecond
	return o
}

func TestFlushReplaysInOrder(t *testing.T) {
	applier := &fakeApplier{}
	o := newTestOutbox(applier, nil)

	for _, id := range []string{"op-1", "op-2", "op-3"} {
		_, err := o.Enqueue(types.SyncOperation{
			CorrelationID: id,
			Kind:          types.OP_KIND_SEND_MSG,
			ChatID:        "chat-1",
		})
		require.NoError(t, err)
	}

	require.NoError(t, o.Flush(context.Background()))
	assert.Equal(t, []string{"op-1", "op-2", "op-3"}, applier.appliedIDs())

	ops, err := o.storage.List()
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestEnqueueAssignsCorrelationID(t *testing.T) {
	o := newTestOutbox(&fakeApplier{}, nil)
	id, err := o.Enqueue(types.SyncOperation{Kind: types.OP_KIND_CREATE_CHAT})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestDuplicateResultRemovesOperation(t *testing.T) {
	applier := &fakeApplier{
		handler: func(op types.SyncOperation) (types.SyncResult, error) {
			return types.SyncResult{CorrelationID: op.CorrelationID, Duplicate: true}, nil
		},
	}
	o := newTestOutbox(applier, nil)

	_, err := o.Enqueue(types.SyncOperation{CorrelationID: "op-dup", Kind: types.OP_KIND_SEND_MSG, ChatID: "chat-1"})
	require.NoError(t, err)
	require.NoError(t, o.Flush(context.Background()))

	ops, err := o.storage.List()
	require.NoError(t, err)
	assert.Empty(t, ops, "deduplicated op should leave the queue")
}

func TestRetriesThenFails(t *testing.T) {
	applier := &fakeApplier{
		handler: func(op types.SyncOperation) (types.SyncResult, error) {
			return types.SyncResult{}, errors.New("storage timeout")
		},
	}
	o := newTestOutbox(applier, nil)

	_, err := o.Enqueue(types.SyncOperation{CorrelationID: "op-bad", Kind: types.OP_KIND_SEND_MSG, ChatID: "chat-1"})
	require.NoError(t, err)
	require.NoError(t, o.Flush(context.Background()))

	assert.Len(t, applier.appliedIDs(), maxAttempts)

	failed, err := o.Failed()
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "op-bad", failed[0].CorrelationID)
	assert.Equal(t, "storage timeout", failed[0].LastError)
}

func TestFailedOpBlocksSameChatOnly(t *testing.T) {
	applier := &fakeApplier{
		handler: func(op types.SyncOperation) (types.SyncResult, error) {
			if op.ChatID == "chat-bad" {
				return types.SyncResult{}, errors.New("boom")
			}
			return types.SyncResult{CorrelationID: op.CorrelationID}, nil
		},
	}
	o := newTestOutbox(applier, nil)

	_, err := o.Enqueue(types.SyncOperation{CorrelationID: "bad-1", Kind: types.OP_KIND_SEND_MSG, ChatID: "chat-bad"})
	require.NoError(t, err)
	_, err = o.Enqueue(types.SyncOperation{CorrelationID: "bad-2", Kind: types.OP_KIND_SEND_MSG, ChatID: "chat-bad"})
	require.NoError(t, err)
	_, err = o.Enqueue(types.SyncOperation{CorrelationID: "ok-1", Kind: types.OP_KIND_SEND_MSG, ChatID: "chat-ok"})
	require.NoError(t, err)

	require.NoError(t, o.Flush(context.Background()))

	ids := applier.appliedIDs()
	// bad-2 never runs while bad-1 is failed; ok-1 is unaffected
	assert.NotContains(t, ids, "bad-2")
	assert.Contains(t, ids, "ok-1")
}

func TestRetryRearmsFailedOperation(t *testing.T) {
	var failOnce = true
	applier := &fakeApplier{
		handler: func(op types.SyncOperation) (types.SyncResult, error) {
			if failOnce {
				return types.SyncResult{}, errors.New("boom")
			}
			return types.SyncResult{CorrelationID: op.CorrelationID}, nil
		},
	}
	o := newTestOutbox(applier, nil)

	_, err := o.Enqueue(types.SyncOperation{CorrelationID: "op-1", Kind: types.OP_KIND_UPDATE_CHAT, ChatID: "chat-1"})
	require.NoError(t, err)
	require.NoError(t, o.Flush(context.Background()))

	failed, err := o.Failed()
	require.NoError(t, err)
	require.Len(t, failed, 1)

	failOnce = false
	require.NoError(t, o.Retry("op-1"))
	require.NoError(t, o.Flush(context.Background()))

	ops, err := o.storage.List()
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestDiscardDropsFailedOperation(t *testing.T) {
	applier := &fakeApplier{
		handler: func(op types.SyncOperation) (types.SyncResult, error) {
			return types.SyncResult{}, errors.New("boom")
		},
	}
	o := newTestOutbox(applier, nil)

	_, err := o.Enqueue(types.SyncOperation{CorrelationID: "op-1", Kind: types.OP_KIND_DELETE_CHAT, ChatID: "chat-1"})
	require.NoError(t, err)
	require.NoError(t, o.Flush(context.Background()))
	require.NoError(t, o.Discard("op-1"))

	failed, err := o.Failed()
	require.NoError(t, err)
	assert.Empty(t, failed)
}

func TestConflictSurfacesBothVersions(t *testing.T) {
	current := &types.Chat{ID: "chat-1", Title: "server title", Version: 7}
	applier := &fakeApplier{
		handler: func(op types.SyncOperation) (types.SyncResult, error) {
			return types.SyncResult{CorrelationID: op.CorrelationID, Conflict: true, Current: current}, nil
		},
	}

	var gotOp PendingOperation
	var gotChat *types.Chat
	o := newTestOutbox(applier, func(op PendingOperation, chat *types.Chat) {
		gotOp = op
		gotChat = chat
	})

	_, err := o.Enqueue(types.SyncOperation{CorrelationID: "op-1", Kind: types.OP_KIND_UPDATE_CHAT, ChatID: "chat-1"})
	require.NoError(t, err)
	require.NoError(t, o.Flush(context.Background()))

	assert.Equal(t, "op-1", gotOp.CorrelationID)
	require.NotNil(t, gotChat)
	assert.Equal(t, int64(7), gotChat.Version)

	ops, err := o.storage.List()
	require.NoError(t, err)
	assert.Empty(t, ops, "conflicted op is surfaced, not retried")
}
