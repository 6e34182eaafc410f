package v1

import (
	"context"
	"database/sql"

	"github.com/speechbot/speechbot/app/core"
	"github.com/speechbot/speechbot/pkg/errors"
	"github.com/speechbot/speechbot/pkg/i18n"
	"github.com/speechbot/speechbot/pkg/types"
)

type HistoryLogic struct {
	ctx  context.Context
	core *core.Core
	UserInfo
}

func NewHistoryLogic(ctx context.Context, core *core.Core) *HistoryLogic {
	return &HistoryLogic{
		ctx:      ctx,
		core:     core,
		UserInfo: SetupUserInfo(ctx, core),
	}
}

const defaultHistoryPageSize = 50

type MessageListResult struct {
	List    []*types.Message `json:"list"`
	HasMore bool             `json:"has_more"`
}

// ListMessages pages a chat's log by sequence cursor. One extra row is
// fetched to decide HasMore without a second count query.
func (l *HistoryLogic) ListMessages(chatID string, opts types.ListMessageOptions) (*MessageListResult, error) {
	if _, err := CheckUserChat(l.ctx, l.core, l.User(), chatID); err != nil {
		return nil, err
	}

	if opts.Limit == 0 {
		opts.Limit = defaultHistoryPageSize
	}
	limit := opts.Limit
	opts.Limit = limit + 1

	list, err := l.core.Store().MessageStore().List(l.ctx, chatID, opts)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("HistoryLogic.ListMessages.MessageStore.List", i18n.ERROR_INTERNAL, err)
	}

	result := &MessageListResult{List: list}
	if uint64(len(list)) > limit {
		result.HasMore = true
		result.List = list[:limit]
	}
	return result, nil
}
