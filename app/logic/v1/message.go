package v1

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/lo"

	"github.com/speechbot/speechbot/app/core"
	"github.com/speechbot/speechbot/pkg/errors"
	"github.com/speechbot/speechbot/pkg/i18n"
	"github.com/speechbot/speechbot/pkg/safe"
	"github.com/speechbot/speechbot/pkg/types"
	"github.com/speechbot/speechbot/pkg/types/protocol"
)

// EditWindow bounds how long after sending a user message stays
// editable.
const EditWindow = time.Hour * 24

type MessageLogic struct {
	ctx  context.Context
	core *core.Core
	UserInfo
}

func NewMessageLogic(ctx context.Context, core *core.Core) *MessageLogic {
	return &MessageLogic{
		ctx:      ctx,
		core:     core,
		UserInfo: SetupUserInfo(ctx, core),
	}
}

type SendMessageArgs struct {
	Content       string `json:"content"`
	CorrelationID string `json:"correlation_id"`
	ReplyToID     string `json:"reply_to_id"`
}

// SendMessage appends a user message. A correlation id that already
// produced a non-failed message short-circuits to that message, which
// makes client retries harmless.
func (l *MessageLogic) SendMessage(chatID string, args SendMessageArgs) (*types.Message, error) {
	if args.Content == "" {
		return nil, errors.New("MessageLogic.SendMessage.Content", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}

	chat, err := CheckUserChat(l.ctx, l.core, l.User(), chatID)
	if err != nil {
		return nil, err
	}

	if args.CorrelationID != "" {
		exist, err := l.core.Store().MessageStore().GetByCorrelationID(l.ctx, chatID, args.CorrelationID)
		if err != nil && err != sql.ErrNoRows {
			return nil, errors.New("MessageLogic.SendMessage.MessageStore.GetByCorrelationID", i18n.ERROR_INTERNAL, err)
		}
		if exist != nil && exist.Status != types.MESSAGE_STATUS_FAILED {
			return exist, nil
		}
	}

	seq, err := l.core.Srv().Seq().GetChatSeqID(l.ctx, chatID)
	if err != nil {
		return nil, errors.New("MessageLogic.SendMessage.Seq.GetChatSeqID", i18n.ERROR_INTERNAL, err)
	}

	msg := &types.Message{
		ID:            l.core.Srv().Seq().GenMessageID(),
		ChatID:        chatID,
		UserID:        l.User(),
		Role:          types.USER_ROLE_USER,
		Content:       args.Content,
		ContentType:   types.MESSAGE_TYPE_TEXT,
		Sequence:      seq,
		Status:        types.MESSAGE_STATUS_SENT,
		CorrelationID: args.CorrelationID,
		ReplyToID:     args.ReplyToID,
		SendTime:      time.Now().Unix(),
	}

	err = l.core.Store().Transaction(l.ctx, func(ctx context.Context) error {
		if err := l.core.Store().MessageStore().Create(ctx, msg); err != nil {
			return errors.New("MessageLogic.SendMessage.MessageStore.Create", i18n.ERROR_INTERNAL, err)
		}
		if err := l.core.Store().ChatStore().Touch(ctx, chatID, 1); err != nil {
			return errors.New("MessageLogic.SendMessage.ChatStore.Touch", i18n.ERROR_INTERNAL, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	topic := protocol.GenIMTopic(chatID)
	if err := l.core.Srv().Tower().PublishMessageMeta(topic, types.WS_EVENT_MESSAGE_PUBLISH, msg.Meta()); err != nil {
		slog.Error("failed to publish new message event",
			slog.String("chat_id", chatID),
			slog.String("message_id", msg.ID),
			slog.String("error", err.Error()))
	}

	go safe.Run(func() {
		NewStreamLogic(context.Background(), l.core).TriggerReply(chat, msg)
	})

	return msg, nil
}

// EditMessage rewrites a user message within the edit window, keeping
// the prior content in the edit history.
func (l *MessageLogic) EditMessage(chatID, messageID, newContent string) (*types.Message, error) {
	if newContent == "" {
		return nil, errors.New("MessageLogic.EditMessage.Content", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}

	if _, err := CheckUserChat(l.ctx, l.core, l.User(), chatID); err != nil {
		return nil, err
	}

	msg, err := l.getMessage(chatID, messageID)
	if err != nil {
		return nil, err
	}

	if msg.Role != types.USER_ROLE_USER {
		return nil, errors.New("MessageLogic.EditMessage.Role", i18n.ERROR_EDIT_NOT_ALLOWED, nil).Code(http.StatusForbidden)
	}
	if time.Since(time.Unix(msg.SendTime, 0)) > EditWindow {
		return nil, errors.New("MessageLogic.EditMessage.Window", i18n.ERROR_EDIT_WINDOW_EXPIRED, nil).Code(http.StatusForbidden)
	}

	history := msg.EditHistory.Append(msg.Content)
	if err := l.core.Store().MessageStore().UpdateContent(l.ctx, chatID, messageID, newContent, history); err != nil {
		return nil, errors.New("MessageLogic.EditMessage.MessageStore.UpdateContent", i18n.ERROR_INTERNAL, err)
	}

	msg.Content = newContent
	msg.EditHistory = history

	if err := l.core.Srv().Tower().PublishMessageMeta(protocol.GenIMTopic(chatID), types.WS_EVENT_MESSAGE_PUBLISH, msg.Meta()); err != nil {
		slog.Error("failed to publish message edit event",
			slog.String("chat_id", chatID),
			slog.String("message_id", messageID),
			slog.String("error", err.Error()))
	}
	return msg, nil
}

// DeleteMessage soft-deletes by default; hard removes the row.
func (l *MessageLogic) DeleteMessage(chatID, messageID string, hard bool) error {
	if _, err := CheckUserChat(l.ctx, l.core, l.User(), chatID); err != nil {
		return err
	}

	msg, err := l.getMessage(chatID, messageID)
	if err != nil {
		return err
	}

	err = l.core.Store().Transaction(l.ctx, func(ctx context.Context) error {
		if hard {
			err = l.core.Store().MessageStore().HardDelete(ctx, chatID, messageID)
		} else {
			err = l.core.Store().MessageStore().SoftDelete(ctx, chatID, messageID)
		}
		if err != nil {
			return errors.New("MessageLogic.DeleteMessage.MessageStore.Delete", i18n.ERROR_INTERNAL, err)
		}
		// soft-deleted rows leave the visible count too
		if msg.DeletedAt == 0 {
			if err := l.core.Store().ChatStore().Touch(ctx, chatID, -1); err != nil {
				return errors.New("MessageLogic.DeleteMessage.ChatStore.Touch", i18n.ERROR_INTERNAL, err)
			}
		}
		return nil
	})
	return err
}

// React toggles one user's reaction. Re-adding and re-removing are
// no-ops.
func (l *MessageLogic) React(chatID, messageID, emoji string, add bool) (types.ReactionSet, error) {
	if emoji == "" {
		return nil, errors.New("MessageLogic.React.Emoji", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}

	if _, err := CheckUserChat(l.ctx, l.core, l.User(), chatID); err != nil {
		return nil, err
	}

	msg, err := l.getMessage(chatID, messageID)
	if err != nil {
		return nil, err
	}

	reactions := msg.Reactions
	had := lo.Contains(reactions[emoji], l.User())
	if add == had {
		// idempotent: nothing to change
		if reactions == nil {
			reactions = types.ReactionSet{}
		}
		return reactions, nil
	}
	if add {
		reactions = reactions.Add(emoji, l.User())
	} else {
		reactions = reactions.Remove(emoji, l.User())
	}

	if err := l.core.Store().MessageStore().UpdateReactions(l.ctx, chatID, messageID, reactions); err != nil {
		return nil, errors.New("MessageLogic.React.MessageStore.UpdateReactions", i18n.ERROR_INTERNAL, err)
	}

	if err := l.core.Srv().Tower().PublishReaction(protocol.GenIMTopic(chatID), &types.ReactionUpdate{
		ChatID:    chatID,
		MessageID: messageID,
		Reactions: reactions,
	}); err != nil {
		slog.Error("failed to publish reaction event",
			slog.String("chat_id", chatID),
			slog.String("message_id", messageID),
			slog.String("error", err.Error()))
	}
	return reactions, nil
}

// UpdateStatus moves one message forward through the delivery status
// machine. Backward transitions are contract violations.
func (l *MessageLogic) UpdateStatus(chatID, messageID string, next types.MessageStatus) error {
	if _, err := CheckUserChat(l.ctx, l.core, l.User(), chatID); err != nil {
		return err
	}

	msg, err := l.getMessage(chatID, messageID)
	if err != nil {
		return err
	}

	if !msg.Status.CanTransition(next) {
		return errors.New("MessageLogic.UpdateStatus.CanTransition", i18n.ERROR_INVALID_STATUS, nil).Code(http.StatusBadRequest)
	}

	applied, err := l.core.Store().MessageStore().UpdateStatus(l.ctx, chatID, messageID, msg.Status, next)
	if err != nil {
		return errors.New("MessageLogic.UpdateStatus.MessageStore.UpdateStatus", i18n.ERROR_INTERNAL, err)
	}
	if !applied {
		// someone else advanced it first; treat as settled
		return nil
	}

	if err := l.core.Srv().Tower().PublishStatusUpdate(protocol.GenIMTopic(chatID), &types.StatusUpdate{
		ChatID:    chatID,
		MessageID: messageID,
		Status:    next,
	}); err != nil {
		slog.Error("failed to publish status event",
			slog.String("chat_id", chatID),
			slog.String("message_id", messageID),
			slog.String("error", err.Error()))
	}
	return nil
}

// MarkRead flips every delivered message up to the anchor to read.
func (l *MessageLogic) MarkRead(chatID, uptoMessageID string) (int64, error) {
	if _, err := CheckUserChat(l.ctx, l.core, l.User(), chatID); err != nil {
		return 0, err
	}

	changed, err := l.core.Store().MessageStore().MarkReadUpTo(l.ctx, chatID, uptoMessageID)
	if err != nil {
		return 0, errors.New("MessageLogic.MarkRead.MessageStore.MarkReadUpTo", i18n.ERROR_INTERNAL, err)
	}

	if changed > 0 {
		if err := l.core.Srv().Tower().PublishStatusUpdate(protocol.GenIMTopic(chatID), &types.StatusUpdate{
			ChatID:    chatID,
			MessageID: uptoMessageID,
			Status:    types.MESSAGE_STATUS_READ,
		}); err != nil {
			slog.Error("failed to publish read receipt event",
				slog.String("chat_id", chatID),
				slog.String("error", err.Error()))
		}
	}
	return changed, nil
}

// Typing republishes a human typing indicator to the chat topic.
func (l *MessageLogic) Typing(chatID string, typing bool) error {
	if _, err := CheckUserChat(l.ctx, l.core, l.User(), chatID); err != nil {
		return err
	}

	return l.core.Srv().Tower().PublishTyping(protocol.GenIMTopic(chatID), &types.TypingUpdate{
		ChatID: chatID,
		UserID: l.User(),
		Typing: typing,
	})
}

func (l *MessageLogic) getMessage(chatID, messageID string) (*types.Message, error) {
	msg, err := l.core.Store().MessageStore().GetOne(l.ctx, chatID, messageID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New("MessageLogic.getMessage.MessageStore.GetOne", i18n.ERROR_NOT_FOUND, nil).Code(http.StatusNotFound)
		}
		return nil, errors.New("MessageLogic.getMessage.MessageStore.GetOne", i18n.ERROR_INTERNAL, err)
	}
	return msg, nil
}
