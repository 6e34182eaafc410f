package v1

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/speechbot/speechbot/app/core"
	"github.com/speechbot/speechbot/pkg/ai"
	"github.com/speechbot/speechbot/pkg/errors"
	"github.com/speechbot/speechbot/pkg/i18n"
	"github.com/speechbot/speechbot/pkg/types"
	"github.com/speechbot/speechbot/pkg/types/protocol"
)

const (
	// GenerationTimeout bounds one collaborator call end to end.
	GenerationTimeout = time.Second * 30
	// replyContextSize is how much history the collaborator sees.
	replyContextSize = 30
)

type StreamLogic struct {
	UserInfo
	ctx  context.Context
	core *core.Core
}

func NewStreamLogic(ctx context.Context, core *core.Core) *StreamLogic {
	return &StreamLogic{
		UserInfo: SetupUserInfo(ctx, core),
		ctx:      ctx,
		core:     core,
	}
}

// StopGeneration asks an in-flight reply to stop. The signal is
// broadcast so whichever instance holds the stream reacts; the partial
// buffer is then persisted as a truncated bot message.
func (l *StreamLogic) StopGeneration(chatID, messageID string) error {
	if _, err := CheckUserChat(l.ctx, l.core, l.User(), chatID); err != nil {
		return err
	}
	return l.core.Srv().Tower().CloseChatStream(messageID)
}

// towerMessager binds a Messager to one chat topic.
type towerMessager struct {
	core  *core.Core
	topic string
}

func (m *towerMessager) PublishMessage(_type types.WsEventType, data any) error {
	return m.core.Srv().Tower().PublishStreamMessage(m.topic, _type, data)
}

// TriggerReply drives one bot reply through its whole lifecycle. The
// accumulated buffer stays in memory until a terminal state: Complete
// persists it whole, Cancelled persists it truncated, Failed persists
// nothing.
func (l *StreamLogic) TriggerReply(chat *types.Chat, userMsg *types.Message) {
	topic := protocol.GenIMTopic(chat.ID)
	messager := &towerMessager{core: l.core, topic: topic}

	// one in-flight reply per chat
	locked, err := l.core.Redis().SetNX(l.ctx, protocol.GenChatGenerationKey(chat.ID), userMsg.ID, GenerationTimeout*2).Result()
	if err != nil {
		slog.Error("failed to take generation lock", slog.String("chat_id", chat.ID), slog.String("error", err.Error()))
		return
	}
	if !locked {
		slog.Debug("generation already in flight", slog.String("chat_id", chat.ID), slog.String("message_id", userMsg.ID))
		return
	}
	defer func() {
		if err := l.core.Redis().Del(context.Background(), protocol.GenChatGenerationKey(chat.ID)).Err(); err != nil {
			slog.Error("failed to release generation lock", slog.String("chat_id", chat.ID), slog.String("error", err.Error()))
		}
	}()

	state := types.STREAM_STATE_PENDING
	advance := func(next types.StreamState) bool {
		if !state.CanTransition(next) {
			slog.Error("illegal stream transition",
				slog.String("from", state.String()),
				slog.String("to", next.String()),
				slog.String("chat_id", chat.ID))
			return false
		}
		state = next
		if next.Terminal() {
			l.core.Metrics().StreamOutcomeInc(next.String())
		}
		return true
	}

	replyID := l.core.Srv().Seq().GenMessageID()
	receiver := newChatReplyReceiver(l.core, messager, chat, userMsg, replyID)

	ctx, cancel := context.WithTimeout(l.ctx, GenerationTimeout)
	defer cancel()

	var cancelledByUser bool
	unregister := l.core.Srv().Tower().RegisterStreamSignal(replyID, func() {
		cancelledByUser = true
		cancel()
	})
	defer unregister()

	history, err := l.replyContext(ctx, chat, userMsg)
	if err != nil {
		advance(types.STREAM_STATE_FAILED)
		l.notifyFailed(messager, chat, userMsg, err)
		return
	}

	advance(types.STREAM_STATE_GENERATING)
	l.publishTyping(messager, chat.ID, true)
	defer l.publishTyping(messager, chat.ID, false)

	if err := messager.PublishMessage(types.WS_EVENT_ASSISTANT_INIT, &types.StreamMessage{
		MessageID: replyID,
		ChatID:    chat.ID,
		MsgType:   types.MESSAGE_TYPE_TEXT,
	}); err != nil {
		slog.Error("failed to publish assistant init event", slog.String("chat_id", chat.ID), slog.String("error", err.Error()))
	}

	timer := l.core.Metrics().GenerationTimer()
	err = l.requestAI(ctx, history, receiver, advance)
	timer.ObserveDuration()

	if err == nil {
		if !advance(types.STREAM_STATE_COMPLETE) {
			return
		}
		if err := receiver.Finish(false); err != nil {
			slog.Error("failed to persist completed reply",
				slog.String("chat_id", chat.ID),
				slog.String("message_id", replyID),
				slog.String("error", err.Error()))
		}
		return
	}

	if cancelledByUser {
		if !advance(types.STREAM_STATE_CANCELLED) {
			return
		}
		// keep whatever had been buffered, marked truncated
		if err := receiver.Finish(true); err != nil {
			slog.Error("failed to persist cancelled reply",
				slog.String("chat_id", chat.ID),
				slog.String("message_id", replyID),
				slog.String("error", err.Error()))
		}
		return
	}

	advance(types.STREAM_STATE_FAILED)
	l.notifyFailed(messager, chat, userMsg, err)
}

// requestAI feeds collaborator chunks into the receiver, moving the
// machine to Streaming on the first chunk.
func (l *StreamLogic) requestAI(ctx context.Context, history []*types.MessageContext, receiver types.Receiver, advance func(types.StreamState) bool) error {
	tool := l.core.Srv().AI().NewQuery(ctx, history)

	resp, err := tool.QueryStream()
	if err != nil {
		return errors.New("StreamLogic.requestAI.QueryStream", i18n.ERROR_GENERATION_FAILED, err)
	}

	respChan, err := ai.HandleAIStream(ctx, resp)
	if err != nil {
		return errors.New("StreamLogic.requestAI.HandleAIStream", i18n.ERROR_GENERATION_FAILED, err)
	}

	receiveFunc := receiver.GetReceiveFunc()
	first := true
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-respChan:
			if !ok {
				return nil
			}
			if msg.Error != nil {
				return msg.Error
			}
			if msg.Message != "" {
				if first {
					first = false
					advance(types.STREAM_STATE_STREAMING)
				}
				if err := receiveFunc(&types.TextMessage{Text: msg.Message}, types.STREAM_STATE_STREAMING); err != nil {
					return errors.New("StreamLogic.requestAI.receive", i18n.ERROR_GENERATION_FAILED, err)
				}
			}
			if msg.FinishReason != "" && msg.FinishReason != "stop" {
				return errors.New("StreamLogic.requestAI.FinishReason", i18n.ERROR_GENERATION_FAILED, nil)
			}
		}
	}
}

// replyContext assembles the prior turns, oldest first, ending with the
// triggering user message.
func (l *StreamLogic) replyContext(ctx context.Context, chat *types.Chat, userMsg *types.Message) ([]*types.MessageContext, error) {
	list, err := l.core.Store().MessageStore().List(ctx, chat.ID, types.ListMessageOptions{
		BeforeID: userMsg.ID,
		Limit:    replyContextSize,
	})
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("StreamLogic.replyContext.MessageStore.List", i18n.ERROR_INTERNAL, err)
	}

	// store returns newest first
	history := lo.Reverse(list)
	history = append(history, userMsg)

	return lo.Map(history, func(item *types.Message, _ int) *types.MessageContext {
		return &types.MessageContext{
			Role:    item.Role,
			Content: item.Content,
		}
	}), nil
}

func (l *StreamLogic) publishTyping(messager types.Messager, chatID string, typing bool) {
	if err := messager.PublishMessage(types.WS_EVENT_TYPING, &types.TypingUpdate{
		ChatID: chatID,
		Typing: typing,
	}); err != nil {
		slog.Error("failed to publish typing indicator", slog.String("chat_id", chatID), slog.String("error", err.Error()))
	}
}

func (l *StreamLogic) notifyFailed(messager types.Messager, chat *types.Chat, userMsg *types.Message, cause error) {
	slog.Error("bot reply failed",
		slog.String("chat_id", chat.ID),
		slog.String("message_id", userMsg.ID),
		slog.String("error", cause.Error()))

	streamErr := &types.StreamError{
		ChatID:        chat.ID,
		CorrelationID: userMsg.CorrelationID,
		Reason:        types.AssistantFailedMessage,
	}
	if err := messager.PublishMessage(types.WS_EVENT_ASSISTANT_FAILED, streamErr); err != nil {
		slog.Error("failed to publish stream error event", slog.String("chat_id", chat.ID), slog.String("error", err.Error()))
	}
	l.core.Srv().Notify().StreamFailed(context.Background(), chat.UserID, streamErr)
}

// chatReplyReceiver buffers collaborator chunks and persists the reply
// once, at a terminal state. Nothing touches the message store before
// Finish.
type chatReplyReceiver struct {
	core     *core.Core
	messager types.Messager
	chat     *types.Chat
	userMsg  *types.Message
	replyID  string

	buffer     strings.Builder
	chunkIndex int
}

func newChatReplyReceiver(core *core.Core, messager types.Messager, chat *types.Chat, userMsg *types.Message, replyID string) *chatReplyReceiver {
	return &chatReplyReceiver{
		core:     core,
		messager: messager,
		chat:     chat,
		userMsg:  userMsg,
		replyID:  replyID,
	}
}

func (s *chatReplyReceiver) MessageID() string {
	return s.replyID
}

func (s *chatReplyReceiver) GetReceiveFunc() types.ReceiveFunc {
	return func(msg types.MessageContent, _ types.StreamState) error {
		chunk := string(msg.Bytes())
		s.buffer.WriteString(chunk)
		s.chunkIndex++
		return s.messager.PublishMessage(types.WS_EVENT_ASSISTANT_CONTINUE, &types.StreamMessage{
			MessageID:  s.replyID,
			ChatID:     s.chat.ID,
			Chunk:      chunk,
			ChunkIndex: s.chunkIndex,
			MsgType:    types.MESSAGE_TYPE_TEXT,
		})
	}
}

func (s *chatReplyReceiver) GetDoneFunc(callback func(msg *types.Message)) types.DoneFunc {
	return func(err error) error {
		if err != nil {
			return nil
		}
		if persistErr := s.Finish(false); persistErr != nil {
			return persistErr
		}
		if callback != nil {
			callback(nil)
		}
		return nil
	}
}

// Finish persists the buffer as the bot message and publishes the done
// event. With truncated set the partial content is kept and flagged.
func (s *chatReplyReceiver) Finish(truncated bool) error {
	content := s.buffer.String()
	if truncated && content == "" {
		// cancelled before the first chunk, nothing worth keeping
		return s.publishDone(truncated)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	seq, err := s.core.Srv().Seq().GetChatSeqID(ctx, s.chat.ID)
	if err != nil {
		return errors.New("chatReplyReceiver.Finish.Seq.GetChatSeqID", i18n.ERROR_INTERNAL, err)
	}

	msg := &types.Message{
		ID:          s.replyID,
		ChatID:      s.chat.ID,
		UserID:      s.chat.UserID,
		Role:        types.USER_ROLE_BOT,
		Content:     content,
		ContentType: types.MESSAGE_TYPE_TEXT,
		Sequence:    seq,
		Status:      types.MESSAGE_STATUS_SENT,
		ReplyToID:   s.userMsg.ID,
		Truncated:   truncated,
		SendTime:    time.Now().Unix(),
	}

	err = s.core.Store().Transaction(ctx, func(ctx context.Context) error {
		if err := s.core.Store().MessageStore().Create(ctx, msg); err != nil {
			return errors.New("chatReplyReceiver.Finish.MessageStore.Create", i18n.ERROR_INTERNAL, err)
		}
		if err := s.core.Store().ChatStore().Touch(ctx, s.chat.ID, 1); err != nil {
			return errors.New("chatReplyReceiver.Finish.ChatStore.Touch", i18n.ERROR_INTERNAL, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.core.Srv().Notify().NewMessage(context.Background(), s.chat.UserID, msg)
	return s.publishDone(truncated)
}

func (s *chatReplyReceiver) publishDone(truncated bool) error {
	return s.messager.PublishMessage(types.WS_EVENT_ASSISTANT_DONE, &types.StreamMessage{
		MessageID:  s.replyID,
		ChatID:     s.chat.ID,
		ChunkIndex: s.chunkIndex,
		Done:       true,
		Truncated:  truncated,
		MsgType:    types.MESSAGE_TYPE_TEXT,
	})
}
