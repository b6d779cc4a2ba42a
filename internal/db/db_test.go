// Integration tests for the SurrealDB persistence layer. They need a
// running SurrealDB instance; point PERISCOPE_TEST_DB_URL at one, e.g.
//
//	surreal start --user root --pass root memory
//	PERISCOPE_TEST_DB_URL=ws://localhost:8000/rpc go test ./internal/db/
package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nvoronin/periscope/internal/models"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping db integration test in short mode")
	}
	url := os.Getenv("PERISCOPE_TEST_DB_URL")
	if url == "" {
		t.Skip("PERISCOPE_TEST_DB_URL not set")
	}

	ctx := context.Background()
	client, err := NewClient(ctx, Config{
		URL:       url,
		Namespace: "periscope_test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
	}, nil)
	if err != nil {
		t.Fatalf("connect to test database: %v", err)
	}
	if err := client.InitSchema(ctx); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close(context.Background())
	})
	return client
}

func testUser(t *testing.T, client *Client) *models.User {
	t.Helper()
	ctx := context.Background()
	id := uuid.NewString()
	user, err := client.CreateUser(ctx, id, fmt.Sprintf("%s@example.com", id), "hash", nil)
	if err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}

func TestUserLifecycle(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	id := uuid.NewString()
	email := fmt.Sprintf("%s@example.com", id)
	name := "Alice"
	created, err := client.CreateUser(ctx, id, email, "bcrypt-hash", &name)
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if created.Email != email {
		t.Errorf("expected email %q, got %q", email, created.Email)
	}

	// Duplicate email violates the unique index.
	_, err = client.CreateUser(ctx, uuid.NewString(), email, "other-hash", nil)
	if !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists for duplicate email, got %v", err)
	}

	byEmail, hash, err := client.GetUserByEmail(ctx, email)
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if hash != "bcrypt-hash" {
		t.Errorf("expected stored hash, got %q", hash)
	}
	if byEmail.ID != created.ID {
		t.Errorf("id mismatch: %q vs %q", byEmail.ID, created.ID)
	}

	byID, err := client.GetUser(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if byID.Email != email {
		t.Errorf("expected email %q, got %q", email, byID.Email)
	}

	_, err = client.GetUser(ctx, "no-such-user")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestChatLifecycle(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	user := testUser(t, client)

	chatID := models.GenerateChatID()
	chat, err := client.CreateChat(ctx, user.ID, chatID, models.DefaultChatTitle)
	if err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}
	if chat.ID != chatID {
		t.Errorf("expected id %q, got %q", chatID, chat.ID)
	}
	if chat.UserID != user.ID {
		t.Errorf("expected owner %q, got %q", user.ID, chat.UserID)
	}

	fetched, err := client.GetChat(ctx, chatID)
	if err != nil {
		t.Fatalf("GetChat failed: %v", err)
	}
	if len(fetched.Messages) != 0 {
		t.Errorf("expected no messages, got %d", len(fetched.Messages))
	}

	renamed, err := client.UpdateChatTitle(ctx, chatID, "Raft deep dive")
	if err != nil {
		t.Fatalf("UpdateChatTitle failed: %v", err)
	}
	if renamed.Title != "Raft deep dive" {
		t.Errorf("title not updated: %q", renamed.Title)
	}

	chats, err := client.ListChats(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListChats failed: %v", err)
	}
	if len(chats) != 1 {
		t.Fatalf("expected 1 chat, got %d", len(chats))
	}

	if err := client.DeleteChat(ctx, chatID); err != nil {
		t.Fatalf("DeleteChat failed: %v", err)
	}
	_, err = client.GetChat(ctx, chatID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestAppendMessage(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	user := testUser(t, client)

	chatID := models.GenerateChatID()
	if _, err := client.CreateChat(ctx, user.ID, chatID, models.DefaultChatTitle); err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}

	msg := models.NewMessage{
		MessageID: models.GenerateMessageID(),
		Role:      models.RoleUser,
		Content:   "what is raft?",
		CreatedAt: time.Now(),
		Attachments: []models.Attachment{
			{Name: "paper.pdf", ContentType: "application/pdf", URL: "https://example.com/raft.pdf", Size: 1024},
		},
	}
	saved, err := client.AppendMessage(ctx, chatID, msg)
	if err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	if saved.ID != msg.MessageID {
		t.Errorf("expected id %q, got %q", msg.MessageID, saved.ID)
	}
	if len(saved.Attachments) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(saved.Attachments))
	}

	// Re-inserting the same message id is a unique violation, not a
	// silent overwrite.
	_, err = client.AppendMessage(ctx, chatID, msg)
	if !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists for duplicate id, got %v", err)
	}

	fetched, err := client.GetChat(ctx, chatID)
	if err != nil {
		t.Fatalf("GetChat failed: %v", err)
	}
	if len(fetched.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(fetched.Messages))
	}
	if len(fetched.Messages[0].Attachments) != 1 {
		t.Errorf("expected attachment on fetched message")
	}

	// Deleting the chat cascades to messages and attachments.
	if err := client.DeleteChat(ctx, chatID); err != nil {
		t.Fatalf("DeleteChat failed: %v", err)
	}
	_, err = client.GetMessage(ctx, msg.MessageID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for message after chat delete, got %v", err)
	}
}

func TestMessageOrdering(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	user := testUser(t, client)

	chatID := models.GenerateChatID()
	if _, err := client.CreateChat(ctx, user.ID, chatID, models.DefaultChatTitle); err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}
	t.Cleanup(func() { _ = client.DeleteChat(context.Background(), chatID) })

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		msg := models.NewMessage{
			MessageID: models.GenerateMessageID(),
			Role:      models.RoleUser,
			Content:   fmt.Sprintf("message %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if _, err := client.AppendMessage(ctx, chatID, msg); err != nil {
			t.Fatalf("AppendMessage %d failed: %v", i, err)
		}
	}

	chat, err := client.GetChat(ctx, chatID)
	if err != nil {
		t.Fatalf("GetChat failed: %v", err)
	}
	if len(chat.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(chat.Messages))
	}
	for i, msg := range chat.Messages {
		want := fmt.Sprintf("message %d", i)
		if msg.Content != want {
			t.Errorf("position %d: expected %q, got %q", i, want, msg.Content)
		}
	}
}
