package v1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speechbot/speechbot/pkg/types"
)

type capturedEvent struct {
	_type types.WsEventType
	data  any
}

type fakeMessager struct {
	events []capturedEvent
}

func (m *fakeMessager) PublishMessage(_type types.WsEventType, data any) error {
	m.events = append(m.events, capturedEvent{_type: _type, data: data})
	return nil
}

func (m *fakeMessager) ofType(_type types.WsEventType) []capturedEvent {
	var out []capturedEvent
	for _, e := range m.events {
		if e._type == _type {
			out = append(out, e)
		}
	}
	return out
}

func TestReplyReceiverBuffersChunks(t *testing.T) {
	messager := &fakeMessager{}
	chat := &types.Chat{ID: "chat-1", UserID: "user-1"}
	userMsg := &types.Message{ID: "msg-1", ChatID: chat.ID}
	receiver := newChatReplyReceiver(nil, messager, chat, userMsg, "reply-1")

	receiveFunc := receiver.GetReceiveFunc()
	for _, chunk := range []string{"Hello", ", ", "world"} {
		require.NoError(t, receiveFunc(&types.TextMessage{Text: chunk}, types.STREAM_STATE_STREAMING))
	}

	assert.Equal(t, "Hello, world", receiver.buffer.String())

	chunks := messager.ofType(types.WS_EVENT_ASSISTANT_CONTINUE)
	require.Len(t, chunks, 3)
	for i, e := range chunks {
		sm, ok := e.data.(*types.StreamMessage)
		require.True(t, ok)
		assert.Equal(t, "reply-1", sm.MessageID)
		assert.Equal(t, chat.ID, sm.ChatID)
		assert.Equal(t, i+1, sm.ChunkIndex)
		assert.False(t, sm.Done)
	}
}

// Cancelling before the first chunk must not touch the message store,
// only close out the event stream.
func TestReplyReceiverCancelledEmptyPersistsNothing(t *testing.T) {
	messager := &fakeMessager{}
	chat := &types.Chat{ID: "chat-1", UserID: "user-1"}
	userMsg := &types.Message{ID: "msg-1", ChatID: chat.ID}
	// nil core: any persistence attempt would panic
	receiver := newChatReplyReceiver(nil, messager, chat, userMsg, "reply-1")

	require.NoError(t, receiver.Finish(true))

	done := messager.ofType(types.WS_EVENT_ASSISTANT_DONE)
	require.Len(t, done, 1)
	sm := done[0].data.(*types.StreamMessage)
	assert.True(t, sm.Done)
	assert.True(t, sm.Truncated)
	assert.Zero(t, sm.ChunkIndex)
}

func TestReplyReceiverDoneFuncSkipsPersistOnError(t *testing.T) {
	messager := &fakeMessager{}
	chat := &types.Chat{ID: "chat-1", UserID: "user-1"}
	userMsg := &types.Message{ID: "msg-1", ChatID: chat.ID}
	receiver := newChatReplyReceiver(nil, messager, chat, userMsg, "reply-1")

	receiveFunc := receiver.GetReceiveFunc()
	require.NoError(t, receiveFunc(&types.TextMessage{Text: "partial"}, types.STREAM_STATE_STREAMING))

	doneFunc := receiver.GetDoneFunc(nil)
	require.NoError(t, doneFunc(assert.AnError))

	// failed streams publish no done event and keep nothing
	assert.Empty(t, messager.ofType(types.WS_EVENT_ASSISTANT_DONE))
}
