package store

import (
	"context"

	"github.com/speechbot/speechbot/pkg/sqlstore"
	"github.com/speechbot/speechbot/pkg/types"
)

// ChatStore manages chat session rows, including the per-chat version
// counter used for update conflict detection.
type ChatStore interface {
	sqlstore.SqlCommons
	Create(ctx context.Context, data types.Chat) error
	Get(ctx context.Context, userID, id string) (*types.Chat, error)
	// UpdateWithVersion applies fields only when the stored version still
	// equals baseVersion, bumping the counter on success. Returns false
	// when another writer got there first.
	UpdateWithVersion(ctx context.Context, userID, id string, baseVersion int64, fields types.UpdateChatFields) (bool, error)
	Delete(ctx context.Context, userID, id string) error
	List(ctx context.Context, opts types.ListChatOptions, page, pageSize uint64) ([]types.Chat, error)
	Total(ctx context.Context, opts types.ListChatOptions) (int64, error)
	Search(ctx context.Context, userID, keyword string, limit uint64) ([]types.SearchHit, error)
	// Touch bumps message_count by delta and refreshes updated_at.
	Touch(ctx context.Context, id string, delta int64) error
	ListFolderSummaries(ctx context.Context, userID string) ([]types.FolderSummary, error)
	RecomputeMessageCount(ctx context.Context, id string) error
	ListIDs(ctx context.Context, page, pageSize uint64) ([]string, error)
}

// MessageStore manages message rows of one chat. Sequence assignment
// happens above this layer; the store persists and pages.
type MessageStore interface {
	sqlstore.SqlCommons
	Create(ctx context.Context, data *types.Message) error
	GetOne(ctx context.Context, chatID, id string) (*types.Message, error)
	GetByCorrelationID(ctx context.Context, chatID, correlationID string) (*types.Message, error)
	List(ctx context.Context, chatID string, opts types.ListMessageOptions) ([]*types.Message, error)
	Total(ctx context.Context, chatID string, includeDeleted bool) (int64, error)
	UpdateContent(ctx context.Context, chatID, id, content string, history types.EditHistory) error
	UpdateReactions(ctx context.Context, chatID, id string, reactions types.ReactionSet) error
	// UpdateStatus applies only when the stored status equals prev.
	UpdateStatus(ctx context.Context, chatID, id string, prev, next types.MessageStatus) (bool, error)
	MarkReadUpTo(ctx context.Context, chatID, uptoID string) (int64, error)
	SoftDelete(ctx context.Context, chatID, id string) error
	HardDelete(ctx context.Context, chatID, id string) error
	DeleteByChat(ctx context.Context, chatID string) (int64, error)
	MaxSequence(ctx context.Context, chatID string) (int64, error)
	PurgeDeletedBefore(ctx context.Context, before int64) (int64, error)
}

// OperationStore is the correlation-id idempotency ledger.
type OperationStore interface {
	sqlstore.SqlCommons
	Create(ctx context.Context, data types.OperationRecord) error
	Get(ctx context.Context, userID, correlationID string) (*types.OperationRecord, error)
	PurgeBefore(ctx context.Context, before int64) (int64, error)
}

type AccessTokenStore interface {
	sqlstore.SqlCommons
	Create(ctx context.Context, data types.AccessToken) error
	GetAccessToken(ctx context.Context, token string) (*types.AccessToken, error)
	Delete(ctx context.Context, token string) error
	ClearUserTokens(ctx context.Context, userID string) error
}
