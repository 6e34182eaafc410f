package types

import (
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
)

type Chat struct {
	ID           string         `json:"id" db:"id"`
	UserID       string         `json:"user_id" db:"user_id"`
	Title        string         `json:"title" db:"title"`
	FolderID     string         `json:"folder_id" db:"folder_id"`
	Tags         pq.StringArray `json:"tags" db:"tags"`
	Favorite     bool           `json:"favorite" db:"favorite"`
	Archived     bool           `json:"archived" db:"archived"`
	MessageCount int64          `json:"message_count" db:"message_count"`
	Version      int64          `json:"version" db:"version"`
	Metadata     ChatMetadata   `json:"metadata" db:"metadata"`
	CreatedAt    int64          `json:"created_at" db:"created_at"`
	UpdatedAt    int64          `json:"updated_at" db:"updated_at"`
	DeletedAt    int64          `json:"-" db:"deleted_at"`
}

type ChatMetadata map[string]any

func (m ChatMetadata) String() string {
	if m == nil {
		return "{}"
	}
	raw, _ := json.Marshal(m)
	return string(raw)
}

func (m *ChatMetadata) Scan(src interface{}) error {
	switch src := src.(type) {
	case []byte:
		return m.scanBytes(src)
	case string:
		return m.scanBytes([]byte(src))
	case nil:
		*m = nil
		return nil
	}
	return fmt.Errorf("pq: cannot convert %T to ChatMetadata", src)
}

func (m *ChatMetadata) scanBytes(src []byte) error {
	if len(src) == 0 {
		*m = ChatMetadata{}
		return nil
	}
	return json.Unmarshal(src, m)
}

// UpdateChatFields carries a partial metadata update. Nil fields are
// untouched; BaseVersion is the version the client last saw.
type UpdateChatFields struct {
	Title       *string      `json:"title"`
	FolderID    *string      `json:"folder_id"`
	Tags        *[]string    `json:"tags"`
	Favorite    *bool        `json:"favorite"`
	Archived    *bool        `json:"archived"`
	Metadata    ChatMetadata `json:"metadata"`
	BaseVersion int64        `json:"base_version"`
}

func (f UpdateChatFields) Empty() bool {
	return f.Title == nil && f.FolderID == nil && f.Tags == nil &&
		f.Favorite == nil && f.Archived == nil && f.Metadata == nil
}

type ListChatOptions struct {
	UserID   string
	FolderID string
	Tag      string
	Favorite *bool
	Archived *bool
	// Keyword matches chat titles, see ChatStore.Search for content search
	Keyword string
}

// SearchHit is one ranked result of a chat/message search.
type SearchHit struct {
	ChatID    string `json:"chat_id" db:"chat_id"`
	MessageID string `json:"message_id,omitempty" db:"message_id"`
	Title     string `json:"title" db:"title"`
	Snippet   string `json:"snippet" db:"snippet"`
	SendTime  int64  `json:"send_time" db:"send_time"`
}

type FolderSummary struct {
	FolderID  string `json:"folder_id" db:"folder_id"`
	ChatCount int64  `json:"chat_count" db:"chat_count"`
}
