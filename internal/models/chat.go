// Package models defines the wire-level records shared between the server,
// the persistence layer and the client.
package models

import (
	"encoding/json"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// User is the identity the server resolves for every request.
// A nil *User means no operations are permitted.
type User struct {
	ID    string  `json:"id"`
	Email string  `json:"email"`
	Name  *string `json:"name,omitempty"`
	Image *string `json:"image,omitempty"`
}

// Attachment is an immutable file reference stored alongside a message.
type Attachment struct {
	ID          string    `json:"id,omitempty"`
	MessageID   string    `json:"messageId,omitempty"`
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	URL         string    `json:"url"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

// Message is a single persisted chat message. Messages are append-only:
// once stored their content is never mutated.
type Message struct {
	ID          string          `json:"id"`
	ChatID      string          `json:"chatId"`
	Role        string          `json:"role"`
	Content     string          `json:"content"`
	RawJSON     json.RawMessage `json:"rawJson,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	Attachments []Attachment    `json:"attachments"`
}

// NewMessage is an outbound, not-yet-persisted message. MessageID is the
// client-assigned id used for duplicate detection across retried sends.
type NewMessage struct {
	MessageID   string          `json:"messageId,omitempty"`
	Role        string          `json:"role"`
	Content     string          `json:"content"`
	RawJSON     json.RawMessage `json:"rawJson,omitempty"`
	CreatedAt   time.Time       `json:"createdAt,omitempty"`
	Attachments []Attachment    `json:"attachments,omitempty"`
}

// Chat is a conversation owned by exactly one user.
type Chat struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Messages  []Message `json:"messages"`
}

// DefaultChatTitle is assigned when a chat is created without a title.
const DefaultChatTitle = "New chat"
