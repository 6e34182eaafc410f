package v1

import (
	"context"
	"database/sql"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speechbot/speechbot/app/store"
	"github.com/speechbot/speechbot/app/store/sqlstore"
	"github.com/speechbot/speechbot/pkg/errors"
	"github.com/speechbot/speechbot/pkg/types"
)

type fakeChatStore struct {
	store.ChatStore
	chat *types.Chat
}

func (s *fakeChatStore) Get(_ context.Context, userID, id string) (*types.Chat, error) {
	if s.chat == nil || s.chat.ID != id || s.chat.UserID != userID {
		return nil, sql.ErrNoRows
	}
	chat := *s.chat
	return &chat, nil
}

func (s *fakeChatStore) UpdateWithVersion(_ context.Context, userID, id string, baseVersion int64, fields types.UpdateChatFields) (bool, error) {
	if s.chat == nil || s.chat.ID != id || s.chat.UserID != userID {
		return false, nil
	}
	if s.chat.Version != baseVersion {
		return false, nil
	}
	if fields.Title != nil {
		s.chat.Title = *fields.Title
	}
	s.chat.Version++
	return true, nil
}

type fakeMessageStore struct {
	store.MessageStore
	messages []*types.Message
}

func (s *fakeMessageStore) List(_ context.Context, chatID string, opts types.ListMessageOptions) ([]*types.Message, error) {
	var out []*types.Message
	for _, msg := range s.messages {
		if msg.ChatID != chatID {
			continue
		}
		out = append(out, msg)
		if uint64(len(out)) == opts.Limit {
			break
		}
	}
	return out, nil
}

func TestUpdateChatStaleVersionReturnsConflict(t *testing.T) {
	title := "renamed on another device"
	chats := &fakeChatStore{chat: &types.Chat{
		ID:      "chat-1",
		UserID:  "user-1",
		Title:   "current title",
		Version: 3,
	}}
	app := newFakeCore(&sqlstore.Stores{ChatStore: chats})

	_, err := NewChatLogic(authedContext("user-1"), app).UpdateChat("chat-1", types.UpdateChatFields{
		Title:       &title,
		BaseVersion: 2,
	})
	require.Error(t, err)

	ce, ok := err.(*errors.CustomizedError)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, ce.GetCode())

	// the error data must carry the winning state so the client can
	// resolve instead of silently losing its edit
	current, ok := ce.GetData()["current"].(*types.Chat)
	require.True(t, ok)
	assert.Equal(t, int64(3), current.Version)
	assert.Equal(t, "current title", current.Title)
	assert.Equal(t, "current title", chats.chat.Title)
}

func TestUpdateChatMatchingVersionApplies(t *testing.T) {
	title := "renamed"
	chats := &fakeChatStore{chat: &types.Chat{
		ID:      "chat-1",
		UserID:  "user-1",
		Title:   "original",
		Version: 3,
	}}
	app := newFakeCore(&sqlstore.Stores{ChatStore: chats})

	updated, err := NewChatLogic(authedContext("user-1"), app).UpdateChat("chat-1", types.UpdateChatFields{
		Title:       &title,
		BaseVersion: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)
	assert.Equal(t, int64(4), updated.Version)
}

func TestListMessagesReportsHasMore(t *testing.T) {
	chats := &fakeChatStore{chat: &types.Chat{ID: "chat-1", UserID: "user-1"}}
	messages := &fakeMessageStore{}
	for seq := int64(5); seq >= 1; seq-- {
		messages.messages = append(messages.messages, &types.Message{
			ID:       "msg-" + string(rune('0'+seq)),
			ChatID:   "chat-1",
			Sequence: seq,
		})
	}
	app := newFakeCore(&sqlstore.Stores{ChatStore: chats, MessageStore: messages})

	logic := NewHistoryLogic(authedContext("user-1"), app)

	result, err := logic.ListMessages("chat-1", types.ListMessageOptions{Limit: 3})
	require.NoError(t, err)
	assert.True(t, result.HasMore)
	require.Len(t, result.List, 3)
	for i, msg := range result.List {
		assert.Equal(t, int64(5-i), msg.Sequence)
	}

	result, err = logic.ListMessages("chat-1", types.ListMessageOptions{Limit: 10})
	require.NoError(t, err)
	assert.False(t, result.HasMore)
	assert.Len(t, result.List, 5)
}
