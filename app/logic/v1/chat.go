package v1

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/lib/pq"

	"github.com/speechbot/speechbot/app/core"
	"github.com/speechbot/speechbot/pkg/errors"
	"github.com/speechbot/speechbot/pkg/i18n"
	"github.com/speechbot/speechbot/pkg/safe"
	"github.com/speechbot/speechbot/pkg/types"
	"github.com/speechbot/speechbot/pkg/types/protocol"
	"github.com/speechbot/speechbot/pkg/utils"
)

type ChatLogic struct {
	ctx  context.Context
	core *core.Core
	UserInfo
}

func NewChatLogic(ctx context.Context, core *core.Core) *ChatLogic {
	return &ChatLogic{
		ctx:      ctx,
		core:     core,
		UserInfo: SetupUserInfo(ctx, core),
	}
}

// CheckUserChat verifies ownership and returns the chat. Every chat and
// message operation goes through here first.
func CheckUserChat(ctx context.Context, core *core.Core, userID, chatID string) (*types.Chat, error) {
	chat, err := core.Store().ChatStore().Get(ctx, userID, chatID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New("CheckUserChat.ChatStore.Get", i18n.ERROR_NOT_FOUND, nil).Code(http.StatusNotFound)
		}
		return nil, errors.New("CheckUserChat.ChatStore.Get", i18n.ERROR_INTERNAL, err)
	}
	return chat, nil
}

type CreateChatArgs struct {
	Title          string          `json:"title"`
	FolderID       string          `json:"folder_id"`
	Tags           []string        `json:"tags"`
	InitialMessage string          `json:"initial_message"`
	CorrelationID  string          `json:"correlation_id"`
	Metadata       types.ChatMetadata `json:"metadata"`
}

type CreateChatResult struct {
	Chat           *types.Chat    `json:"chat"`
	InitialMessage *types.Message `json:"initial_message,omitempty"`
}

// CreateChat creates a chat, atomically appending the initial message
// when one is supplied. Either both rows land or neither does.
func (l *ChatLogic) CreateChat(args CreateChatArgs) (*CreateChatResult, error) {
	chat := types.Chat{
		ID:       utils.GenUniqIDStr(),
		UserID:   l.User(),
		Title:    args.Title,
		FolderID: args.FolderID,
		Tags:     pq.StringArray(args.Tags),
		Metadata: args.Metadata,
		Version:  1,
	}

	result := &CreateChatResult{}
	err := l.core.Store().Transaction(l.ctx, func(ctx context.Context) error {
		if err := l.core.Store().ChatStore().Create(ctx, chat); err != nil {
			return errors.New("ChatLogic.CreateChat.ChatStore.Create", i18n.ERROR_INTERNAL, err)
		}

		if args.InitialMessage == "" {
			return nil
		}

		msg := &types.Message{
			ID:            l.core.Srv().Seq().GenMessageID(),
			ChatID:        chat.ID,
			UserID:        l.User(),
			Role:          types.USER_ROLE_USER,
			Content:       args.InitialMessage,
			ContentType:   types.MESSAGE_TYPE_TEXT,
			Sequence:      1,
			Status:        types.MESSAGE_STATUS_SENT,
			CorrelationID: args.CorrelationID,
			SendTime:      time.Now().Unix(),
		}
		if err := l.core.Store().MessageStore().Create(ctx, msg); err != nil {
			return errors.New("ChatLogic.CreateChat.MessageStore.Create", i18n.ERROR_INTERNAL, err)
		}
		if err := l.core.Store().ChatStore().Touch(ctx, chat.ID, 1); err != nil {
			return errors.New("ChatLogic.CreateChat.ChatStore.Touch", i18n.ERROR_INTERNAL, err)
		}
		result.InitialMessage = msg
		return nil
	})
	if err != nil {
		return nil, err
	}

	created, err := l.core.Store().ChatStore().Get(l.ctx, l.User(), chat.ID)
	if err != nil {
		return nil, errors.New("ChatLogic.CreateChat.ChatStore.Get", i18n.ERROR_INTERNAL, err)
	}
	result.Chat = created

	if result.InitialMessage != nil {
		l.afterAppend(created, result.InitialMessage)
	}
	return result, nil
}

// afterAppend fans the new message out and triggers the bot reply.
func (l *ChatLogic) afterAppend(chat *types.Chat, msg *types.Message) {
	topic := protocol.GenIMTopic(chat.ID)
	if err := l.core.Srv().Tower().PublishMessageMeta(topic, types.WS_EVENT_MESSAGE_PUBLISH, msg.Meta()); err != nil {
		slog.Error("failed to publish new message event",
			slog.String("chat_id", chat.ID),
			slog.String("message_id", msg.ID),
			slog.String("error", err.Error()))
	}

	go safe.Run(func() {
		NewStreamLogic(context.Background(), l.core).TriggerReply(chat, msg)
	})
}

// UpdateChat applies a partial update guarded by the version counter.
// A stale base version gets the current chat back in the error data
// instead of silently overwriting.
func (l *ChatLogic) UpdateChat(chatID string, fields types.UpdateChatFields) (*types.Chat, error) {
	chat, err := CheckUserChat(l.ctx, l.core, l.User(), chatID)
	if err != nil {
		return nil, err
	}

	if fields.Empty() {
		return chat, nil
	}

	applied, err := l.core.Store().ChatStore().UpdateWithVersion(l.ctx, l.User(), chatID, fields.BaseVersion, fields)
	if err != nil {
		return nil, errors.New("ChatLogic.UpdateChat.ChatStore.UpdateWithVersion", i18n.ERROR_INTERNAL, err)
	}
	if !applied {
		current, err := l.core.Store().ChatStore().Get(l.ctx, l.User(), chatID)
		if err != nil {
			return nil, errors.New("ChatLogic.UpdateChat.ChatStore.Get", i18n.ERROR_INTERNAL, err)
		}
		return nil, errors.New("ChatLogic.UpdateChat.Conflict", i18n.ERROR_CONFLICT, nil).
			Code(http.StatusConflict).
			WithData(map[string]interface{}{"current": current})
	}

	updated, err := l.core.Store().ChatStore().Get(l.ctx, l.User(), chatID)
	if err != nil {
		return nil, errors.New("ChatLogic.UpdateChat.ChatStore.Get", i18n.ERROR_INTERNAL, err)
	}

	if err := l.core.Srv().Tower().PublishChatUpdate(protocol.GenIMTopic(chatID), updated); err != nil {
		slog.Error("failed to publish chat update event",
			slog.String("chat_id", chatID),
			slog.String("error", err.Error()))
	}
	return updated, nil
}

type DeleteChatResult struct {
	DeletedMessageCount int64 `json:"deleted_message_count"`
}

// DeleteChat removes the chat and every message in it. The confirm
// flag is a deliberate speed bump; without it nothing happens.
func (l *ChatLogic) DeleteChat(chatID string, confirm bool) (*DeleteChatResult, error) {
	if !confirm {
		return nil, errors.New("ChatLogic.DeleteChat.Confirm", i18n.ERROR_CONFIRM_REQUIRED, nil).Code(http.StatusBadRequest)
	}

	if _, err := CheckUserChat(l.ctx, l.core, l.User(), chatID); err != nil {
		return nil, err
	}

	result := &DeleteChatResult{}
	err := l.core.Store().Transaction(l.ctx, func(ctx context.Context) error {
		deleted, err := l.core.Store().MessageStore().DeleteByChat(ctx, chatID)
		if err != nil {
			return errors.New("ChatLogic.DeleteChat.MessageStore.DeleteByChat", i18n.ERROR_INTERNAL, err)
		}
		result.DeletedMessageCount = deleted

		if err := l.core.Store().ChatStore().Delete(ctx, l.User(), chatID); err != nil {
			return errors.New("ChatLogic.DeleteChat.ChatStore.Delete", i18n.ERROR_INTERNAL, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := l.core.Srv().Seq().DropChatSeq(l.ctx, chatID); err != nil {
		slog.Error("failed to drop chat sequence counter",
			slog.String("chat_id", chatID),
			slog.String("error", err.Error()))
	}
	return result, nil
}

func (l *ChatLogic) GetChat(chatID string) (*types.Chat, error) {
	return CheckUserChat(l.ctx, l.core, l.User(), chatID)
}

type ChatListResult struct {
	List  []types.Chat `json:"list"`
	Total int64        `json:"total"`
}

func (l *ChatLogic) ListChats(opts types.ListChatOptions, page, pageSize uint64) (*ChatListResult, error) {
	opts.UserID = l.User()

	list, err := l.core.Store().ChatStore().List(l.ctx, opts, page, pageSize)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("ChatLogic.ListChats.ChatStore.List", i18n.ERROR_INTERNAL, err)
	}

	total, err := l.core.Store().ChatStore().Total(l.ctx, opts)
	if err != nil {
		return nil, errors.New("ChatLogic.ListChats.ChatStore.Total", i18n.ERROR_INTERNAL, err)
	}

	return &ChatListResult{List: list, Total: total}, nil
}

const searchResultLimit = 50

func (l *ChatLogic) SearchChats(keyword string) ([]types.SearchHit, error) {
	if keyword == "" {
		return nil, errors.New("ChatLogic.SearchChats.Keyword", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}

	hits, err := l.core.Store().ChatStore().Search(l.ctx, l.User(), keyword, searchResultLimit)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("ChatLogic.SearchChats.ChatStore.Search", i18n.ERROR_INTERNAL, err)
	}

	for i := range hits {
		hits[i].Snippet = utils.Snippet(hits[i].Snippet, keyword, 60)
	}
	return hits, nil
}

func (l *ChatLogic) ListFolders() ([]types.FolderSummary, error) {
	list, err := l.core.Store().ChatStore().ListFolderSummaries(l.ctx, l.User())
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("ChatLogic.ListFolders.ChatStore.ListFolderSummaries", i18n.ERROR_INTERNAL, err)
	}
	return list, nil
}
