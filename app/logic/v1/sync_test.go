package v1

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speechbot/speechbot/app/core"
	"github.com/speechbot/speechbot/app/store"
	"github.com/speechbot/speechbot/app/store/sqlstore"
	"github.com/speechbot/speechbot/pkg/types"
)

type fakeOperationStore struct {
	store.OperationStore
	records map[string]*types.OperationRecord
	created []types.OperationRecord
}

func (s *fakeOperationStore) Get(_ context.Context, userID, correlationID string) (*types.OperationRecord, error) {
	if record, ok := s.records[userID+"/"+correlationID]; ok {
		return record, nil
	}
	return nil, sql.ErrNoRows
}

func (s *fakeOperationStore) Create(_ context.Context, data types.OperationRecord) error {
	s.created = append(s.created, data)
	return nil
}

func authedContext(userID string) context.Context {
	return context.WithValue(context.Background(), TOKEN_CONTEXT_KEY, types.TokenClaims{
		UserID:   userID,
		DeviceID: "device-1",
	})
}

func newFakeCore(stores *sqlstore.Stores) *core.Core {
	return core.NewCoreWithStores(sqlstore.NewProviderWithStores(stores))
}

func TestApplyOperationReplaysRecordedResult(t *testing.T) {
	ledger := &fakeOperationStore{records: map[string]*types.OperationRecord{
		"user-1/corr-1": {
			CorrelationID: "corr-1",
			UserID:        "user-1",
			Kind:          types.OP_KIND_SEND_MSG,
			ResultID:      "msg-9",
		},
	}}
	app := newFakeCore(&sqlstore.Stores{OperationStore: ledger})

	payload, err := json.Marshal(SendMessageArgs{Content: "hello again"})
	require.NoError(t, err)

	// the duplicate send must come back with the originally persisted
	// message id, without touching any other store
	result := NewSyncLogic(authedContext("user-1"), app).ApplyOperation(types.SyncOperation{
		CorrelationID: "corr-1",
		Kind:          types.OP_KIND_SEND_MSG,
		ChatID:        "chat-1",
		Payload:       payload,
	})

	assert.True(t, result.Duplicate)
	assert.Equal(t, "msg-9", result.ResultID)
	assert.Empty(t, result.Error)
	assert.Empty(t, ledger.created)
}

func TestApplyOperationRequiresCorrelationID(t *testing.T) {
	app := newFakeCore(&sqlstore.Stores{OperationStore: &fakeOperationStore{}})

	result := NewSyncLogic(authedContext("user-1"), app).ApplyOperation(types.SyncOperation{
		Kind:   types.OP_KIND_SEND_MSG,
		ChatID: "chat-1",
	})

	assert.NotEmpty(t, result.Error)
	assert.False(t, result.Duplicate)
}
