package protocol

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	ChatIMTopicPrefix = "/chat/"
)

func GenIMTopic(chatID string) string {
	return fmt.Sprintf("%s%s", ChatIMTopicPrefix, chatID)
}

func GetChatID(imtopic string) (string, error) {
	idStr := filepath.Base(imtopic)
	return idStr, nil
}

func IsIMTopic(imtopic string) bool {
	return strings.HasPrefix(imtopic, ChatIMTopicPrefix)
}

// per chat sequence counter key for redis INCR
func GenChatSequenceKey(chatID string) string {
	return fmt.Sprintf("/speechbot/seq/%s", chatID)
}

// in flight generation lock key, one bot reply per chat at a time
func GenChatGenerationKey(chatID string) string {
	return fmt.Sprintf("/speechbot/generation/%s", chatID)
}
