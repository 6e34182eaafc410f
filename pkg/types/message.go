package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
)

type Message struct {
	ID            string          `json:"id" db:"id"`
	ChatID        string          `json:"chat_id" db:"chat_id"`
	UserID        string          `json:"user_id" db:"user_id"`
	Role          MessageUserRole `json:"role" db:"role"`
	Content       string          `json:"content" db:"content"`
	ContentType   MessageType     `json:"content_type" db:"content_type"`
	Sequence      int64           `json:"sequence" db:"sequence"`
	Status        MessageStatus   `json:"status" db:"status"`
	CorrelationID string          `json:"correlation_id" db:"correlation_id"`
	ReplyToID     string          `json:"reply_to_id,omitempty" db:"reply_to_id"`
	Reactions     ReactionSet     `json:"reactions" db:"reactions"`
	EditHistory   EditHistory     `json:"edit_history,omitempty" db:"edit_history"`
	Truncated     bool            `json:"truncated,omitempty" db:"truncated"`
	SendTime      int64           `json:"send_time" db:"send_time"`
	DeletedAt     int64           `json:"-" db:"deleted_at"`
}

type MessageUserRole int8

const (
	USER_ROLE_UNKNOWN MessageUserRole = 0
	USER_ROLE_USER    MessageUserRole = 1
	USER_ROLE_BOT     MessageUserRole = 2
	USER_ROLE_SYSTEM  MessageUserRole = 3
)

func (s MessageUserRole) String() string {
	switch s {
	case USER_ROLE_USER:
		return "user"
	case USER_ROLE_BOT:
		return "bot"
	case USER_ROLE_SYSTEM:
		return "system"
	default:
		return "unknown"
	}
}

// OpenAIRole maps the stored role onto the completion API role names.
func (s MessageUserRole) OpenAIRole() string {
	switch s {
	case USER_ROLE_BOT:
		return "assistant"
	case USER_ROLE_SYSTEM:
		return "system"
	default:
		return "user"
	}
}

func GetMessageUserRole(r string) MessageUserRole {
	switch r {
	case "user":
		return USER_ROLE_USER
	case "bot":
		return USER_ROLE_BOT
	default:
		return USER_ROLE_UNKNOWN
	}
}

type MessageType int8

const (
	MESSAGE_TYPE_UNKNOWN MessageType = 0
	MESSAGE_TYPE_TEXT    MessageType = 1
)

// MessageStatus is the delivery state machine. Transitions only move
// forward through sending -> sent -> delivered -> read; failed is
// reachable from sending or sent. read and failed are terminal.
type MessageStatus int8

const (
	MESSAGE_STATUS_UNKNOWN   MessageStatus = 0
	MESSAGE_STATUS_SENDING   MessageStatus = 1
	MESSAGE_STATUS_SENT      MessageStatus = 2
	MESSAGE_STATUS_DELIVERED MessageStatus = 3
	MESSAGE_STATUS_READ      MessageStatus = 4
	MESSAGE_STATUS_FAILED    MessageStatus = 5
)

func (s MessageStatus) String() string {
	switch s {
	case MESSAGE_STATUS_SENDING:
		return "sending"
	case MESSAGE_STATUS_SENT:
		return "sent"
	case MESSAGE_STATUS_DELIVERED:
		return "delivered"
	case MESSAGE_STATUS_READ:
		return "read"
	case MESSAGE_STATUS_FAILED:
		return "failed"
	default:
		return "unknown"
	}
}

func (s MessageStatus) Terminal() bool {
	return s == MESSAGE_STATUS_READ || s == MESSAGE_STATUS_FAILED
}

func (s MessageStatus) CanTransition(next MessageStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == MESSAGE_STATUS_FAILED {
		return s == MESSAGE_STATUS_SENDING || s == MESSAGE_STATUS_SENT
	}
	switch next {
	case MESSAGE_STATUS_SENT, MESSAGE_STATUS_DELIVERED, MESSAGE_STATUS_READ:
		return next > s
	default:
		return false
	}
}

// ReactionSet maps an emoji to the set of user ids that reacted with it.
type ReactionSet map[string][]string

// Add is idempotent, re-adding an existing reaction changes nothing.
func (r ReactionSet) Add(emoji, userID string) ReactionSet {
	if r == nil {
		r = ReactionSet{}
	}
	if lo.Contains(r[emoji], userID) {
		return r
	}
	r[emoji] = append(r[emoji], userID)
	sort.Strings(r[emoji])
	return r
}

// Remove is idempotent, removing a missing reaction changes nothing.
func (r ReactionSet) Remove(emoji, userID string) ReactionSet {
	if r == nil {
		return ReactionSet{}
	}
	r[emoji] = lo.Without(r[emoji], userID)
	if len(r[emoji]) == 0 {
		delete(r, emoji)
	}
	return r
}

func (r ReactionSet) String() string {
	if r == nil {
		return "{}"
	}
	raw, _ := json.Marshal(r)
	return string(raw)
}

func (r *ReactionSet) Scan(src interface{}) error {
	switch src := src.(type) {
	case []byte:
		return r.scanBytes(src)
	case string:
		return r.scanBytes([]byte(src))
	case nil:
		*r = nil
		return nil
	}
	return fmt.Errorf("pq: cannot convert %T to ReactionSet", src)
}

func (r *ReactionSet) scanBytes(src []byte) error {
	if len(src) == 0 {
		*r = ReactionSet{}
		return nil
	}
	return json.Unmarshal(src, r)
}

// EditHistory keeps prior content snapshots in edit order, oldest first.
type EditHistory []EditSnapshot

// Append records the content being replaced.
func (h EditHistory) Append(content string) EditHistory {
	return append(h, EditSnapshot{Content: content, EditedAt: time.Now().Unix()})
}

type EditSnapshot struct {
	Content  string `json:"content"`
	EditedAt int64  `json:"edited_at"`
}

func (h EditHistory) String() string {
	if h == nil {
		return "[]"
	}
	raw, _ := json.Marshal(h)
	return string(raw)
}

func (h *EditHistory) Scan(src interface{}) error {
	switch src := src.(type) {
	case []byte:
		return h.scanBytes(src)
	case string:
		return h.scanBytes([]byte(src))
	case nil:
		*h = nil
		return nil
	}
	return fmt.Errorf("pq: cannot convert %T to EditHistory", src)
}

func (h *EditHistory) scanBytes(src []byte) error {
	if len(src) == 0 {
		*h = EditHistory{}
		return nil
	}
	return json.Unmarshal(src, h)
}

// ListMessageOptions drives cursor pagination over a chat's log.
// BeforeID/AfterID name anchor messages whose sequence bounds the
// page, so a paginated traversal never duplicates or skips entries
// when new messages land concurrently.
type ListMessageOptions struct {
	BeforeID       string
	AfterID        string
	Limit          uint64
	OrderAsc       bool
	IncludeDeleted bool
}

// Meta projects a stored message onto its websocket event shape.
func (m *Message) Meta() *MessageMeta {
	return &MessageMeta{
		MsgID:       m.ID,
		SeqID:       m.Sequence,
		SendTime:    m.SendTime,
		Role:        m.Role,
		UserID:      m.UserID,
		ChatID:      m.ChatID,
		Status:      m.Status,
		ContentType: m.ContentType,
		Content:     m.Content,
		ReplyToID:   m.ReplyToID,
	}
}

// MessageMeta is the websocket representation of a message event.
type MessageMeta struct {
	MsgID       string          `json:"message_id"`
	SeqID       int64           `json:"sequence"`
	SendTime    int64           `json:"send_time"`
	Role        MessageUserRole `json:"role"`
	UserID      string          `json:"user_id"`
	ChatID      string          `json:"chat_id"`
	Status      MessageStatus   `json:"status"`
	ContentType MessageType     `json:"content_type"`
	Content     string          `json:"content"`
	ReplyToID   string          `json:"reply_to_id,omitempty"`
}

// StreamMessage is one bot-response-chunk event.
type StreamMessage struct {
	MessageID  string      `json:"message_id"`
	ChatID     string      `json:"chat_id"`
	Chunk      string      `json:"chunk,omitempty"`
	ChunkIndex int         `json:"chunk_index"`
	Done       bool        `json:"done"`
	Truncated  bool        `json:"truncated,omitempty"`
	MsgType    MessageType `json:"msg_type"`
}

type StatusUpdate struct {
	ChatID    string        `json:"chat_id"`
	MessageID string        `json:"message_id"`
	Status    MessageStatus `json:"status"`
}

type TypingUpdate struct {
	ChatID string `json:"chat_id"`
	UserID string `json:"user_id"`
	Typing bool   `json:"typing"`
}

type ReactionUpdate struct {
	ChatID    string      `json:"chat_id"`
	MessageID string      `json:"message_id"`
	Reactions ReactionSet `json:"reactions"`
}

type StreamError struct {
	ChatID        string `json:"chat_id"`
	CorrelationID string `json:"correlation_id"`
	Reason        string `json:"reason"`
}
