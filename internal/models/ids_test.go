package models_test

import (
	"strings"
	"testing"

	"github.com/nvoronin/periscope/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestGenerateChatID(t *testing.T) {
	id := models.GenerateChatID()

	assert.True(t, strings.HasPrefix(id, "chat_"))
	assert.True(t, models.ValidChatID(id))
	assert.GreaterOrEqual(t, len(id), 20)
}

func TestGenerateChatIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id := models.GenerateChatID()
		assert.False(t, seen[id], "chat ids must not repeat")
		seen[id] = true
	}
}

func TestValidChatID(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		valid bool
	}{
		{"generated id", models.GenerateChatID(), true},
		{"missing prefix", "abcdefghijklmnopqrstuvwxyz", false},
		{"too short", "chat_abc", false},
		{"empty", "", false},
		{"prefix only", "chat_", false},
		{"minimum length", "chat_abcdefghijklmn123", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, models.ValidChatID(tt.id))
		})
	}
}

func TestGenerateMessageID(t *testing.T) {
	id := models.GenerateMessageID()
	assert.True(t, strings.HasPrefix(id, "msg-"))

	other := models.GenerateMessageID()
	assert.NotEqual(t, id, other)
}
