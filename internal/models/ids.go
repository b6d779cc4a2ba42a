package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChatIDPrefix is the fixed prefix of every valid chat id.
const ChatIDPrefix = "chat_"

// chatIDMinLen is the minimum total length of a valid chat id.
const chatIDMinLen = 20

// GenerateChatID returns a new chat id: the fixed prefix plus a random
// 32-character suffix.
func GenerateChatID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	return ChatIDPrefix + suffix
}

// ValidChatID reports whether id has the chat id prefix and minimum length.
func ValidChatID(id string) bool {
	return strings.HasPrefix(id, ChatIDPrefix) && len(id) >= chatIDMinLen
}

// GenerateMessageID returns a client-assigned message id. The millisecond
// timestamp keeps ids roughly sortable; the suffix disambiguates bursts.
func GenerateMessageID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("msg-%d-%s", time.Now().UnixMilli(), suffix)
}
