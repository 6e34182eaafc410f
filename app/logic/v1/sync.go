package v1

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/speechbot/speechbot/app/core"
	"github.com/speechbot/speechbot/pkg/errors"
	"github.com/speechbot/speechbot/pkg/i18n"
	"github.com/speechbot/speechbot/pkg/types"
)

type SyncLogic struct {
	UserInfo
	ctx  context.Context
	core *core.Core
}

func NewSyncLogic(ctx context.Context, core *core.Core) *SyncLogic {
	return &SyncLogic{
		UserInfo: SetupUserInfo(ctx, core),
		ctx:      ctx,
		core:     core,
	}
}

// ApplyOperations replays a batch of queued client operations in the
// order received. Each outcome is reported individually so the client
// can drop, retry or surface the matching queue entry.
func (l *SyncLogic) ApplyOperations(ops []types.SyncOperation) []types.SyncResult {
	results := make([]types.SyncResult, 0, len(ops))
	for _, op := range ops {
		results = append(results, l.ApplyOperation(op))
	}
	return results
}

// ApplyOperation replays one operation. A correlation id already in the
// ledger short-circuits to the recorded result, which makes repeated
// replays of the same queue harmless.
func (l *SyncLogic) ApplyOperation(op types.SyncOperation) types.SyncResult {
	result := types.SyncResult{CorrelationID: op.CorrelationID}
	if op.CorrelationID == "" {
		result.Error = "correlation id required"
		return result
	}

	record, err := l.core.Store().OperationStore().Get(l.ctx, l.User(), op.CorrelationID)
	if err != nil && err != sql.ErrNoRows {
		result.Error = "ledger lookup failed"
		return result
	}
	if record != nil {
		result.Duplicate = true
		result.ResultID = record.ResultID
		return result
	}

	// the mutation and its ledger row commit together, so a replay can
	// never find a committed mutation without the correlation id that
	// deduplicates it
	var resultID string
	applyErr := l.core.Store().Transaction(l.ctx, func(ctx context.Context) error {
		id, err := l.apply(ctx, op)
		if err != nil {
			return err
		}
		resultID = id
		return l.core.Store().OperationStore().Create(ctx, types.OperationRecord{
			CorrelationID: op.CorrelationID,
			UserID:        l.User(),
			Kind:          op.Kind,
			ResultID:      resultID,
			CreatedAt:     time.Now().Unix(),
		})
	})
	if applyErr != nil {
		if ce, ok := applyErr.(*errors.CustomizedError); ok && ce.GetCode() == http.StatusConflict {
			result.Conflict = true
			if current, ok := ce.GetData()["current"].(*types.Chat); ok {
				result.Current = current
			}
			// conflicts stay out of the ledger so the client can
			// resolve and replay under the same correlation id
			return result
		}
		l.core.Metrics().SyncReplayRetryInc(op.Kind.String())
		result.Error = applyErr.Error()
		return result
	}

	result.ResultID = resultID
	return result
}

// Apply lets the logic double as the replay target of an offline
// queue, e.g. in tests exercising the whole reconciliation path.
func (l *SyncLogic) Apply(_ context.Context, op types.SyncOperation) (types.SyncResult, error) {
	res := l.ApplyOperation(op)
	if res.Error != "" {
		return res, errors.New("SyncLogic.Apply", i18n.ERROR_INTERNAL, nil)
	}
	return res, nil
}

func (l *SyncLogic) apply(ctx context.Context, op types.SyncOperation) (string, error) {
	switch op.Kind {
	case types.OP_KIND_CREATE_CHAT:
		var args CreateChatArgs
		if err := json.Unmarshal(op.Payload, &args); err != nil {
			return "", errors.New("SyncLogic.apply.CreateChat.Unmarshal", i18n.ERROR_INVALIDARGUMENT, err).Code(http.StatusBadRequest)
		}
		args.CorrelationID = op.CorrelationID
		res, err := NewChatLogic(ctx, l.core).CreateChat(args)
		if err != nil {
			return "", err
		}
		return res.Chat.ID, nil
	case types.OP_KIND_SEND_MSG:
		var args SendMessageArgs
		if err := json.Unmarshal(op.Payload, &args); err != nil {
			return "", errors.New("SyncLogic.apply.SendMessage.Unmarshal", i18n.ERROR_INVALIDARGUMENT, err).Code(http.StatusBadRequest)
		}
		args.CorrelationID = op.CorrelationID
		msg, err := NewMessageLogic(ctx, l.core).SendMessage(op.ChatID, args)
		if err != nil {
			return "", err
		}
		return msg.ID, nil
	case types.OP_KIND_UPDATE_CHAT:
		var fields types.UpdateChatFields
		if err := json.Unmarshal(op.Payload, &fields); err != nil {
			return "", errors.New("SyncLogic.apply.UpdateChat.Unmarshal", i18n.ERROR_INVALIDARGUMENT, err).Code(http.StatusBadRequest)
		}
		chat, err := NewChatLogic(ctx, l.core).UpdateChat(op.ChatID, fields)
		if err != nil {
			return "", err
		}
		return chat.ID, nil
	case types.OP_KIND_DELETE_CHAT:
		// a queued delete was already confirmed on the client
		if _, err := NewChatLogic(ctx, l.core).DeleteChat(op.ChatID, true); err != nil {
			return "", err
		}
		return op.ChatID, nil
	default:
		return "", errors.New("SyncLogic.apply.Kind", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}
}
