package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/nvoronin/periscope/internal/auth"
	"github.com/nvoronin/periscope/internal/db"
	"github.com/nvoronin/periscope/internal/gateway"
	"github.com/nvoronin/periscope/internal/llm"
	"github.com/nvoronin/periscope/internal/models"
)

// memStore is an in-memory Store and auth.UserStore for handler tests.
type memStore struct {
	mu       sync.Mutex
	users    map[string]*models.User
	byEmail  map[string]*models.User
	hashes   map[string]string
	chats    map[string]*models.Chat
	messages map[string]*models.Message
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]*models.User{},
		byEmail:  map[string]*models.User{},
		hashes:   map[string]string{},
		chats:    map[string]*models.Chat{},
		messages: map[string]*models.Message{},
	}
}

func (m *memStore) CreateUser(ctx context.Context, id, email, passwordHash string, name *string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byEmail[email]; taken {
		return nil, db.ErrAlreadyExists
	}
	user := &models.User{ID: id, Email: email, Name: name}
	m.users[id] = user
	m.byEmail[email] = user
	m.hashes[id] = passwordHash
	return user, nil
}

func (m *memStore) GetUserByEmail(ctx context.Context, email string) (*models.User, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byEmail[email]
	if !ok {
		return nil, "", db.ErrNotFound
	}
	return user, m.hashes[user.ID], nil
}

func (m *memStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return user, nil
}

func (m *memStore) CreateChat(ctx context.Context, ownerID, chatID, title string) (*models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat := &models.Chat{
		ID:        chatID,
		UserID:    ownerID,
		Title:     title,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Messages:  []models.Message{},
	}
	m.chats[chatID] = chat
	return chat, nil
}

func (m *memStore) GetChat(ctx context.Context, chatID string) (*models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[chatID]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *chat
	cp.Messages = append([]models.Message(nil), chat.Messages...)
	return &cp, nil
}

func (m *memStore) ListChats(ctx context.Context, ownerID string) ([]models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Chat
	for _, chat := range m.chats {
		if chat.UserID == ownerID {
			out = append(out, *chat)
		}
	}
	return out, nil
}

func (m *memStore) UpdateChatTitle(ctx context.Context, chatID, title string) (*models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[chatID]
	if !ok {
		return nil, db.ErrNotFound
	}
	chat.Title = title
	cp := *chat
	return &cp, nil
}

func (m *memStore) DeleteChat(ctx context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chats[chatID]; !ok {
		return db.ErrNotFound
	}
	delete(m.chats, chatID)
	return nil
}

func (m *memStore) AppendMessage(ctx context.Context, chatID string, msg models.NewMessage) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.messages[msg.MessageID]; dup {
		return nil, db.ErrAlreadyExists
	}
	chat, ok := m.chats[chatID]
	if !ok {
		return nil, db.ErrNotFound
	}
	saved := models.Message{
		ID:        msg.MessageID,
		ChatID:    chatID,
		Role:      msg.Role,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}
	chat.Messages = append(chat.Messages, saved)
	m.messages[saved.ID] = &saved
	return &saved, nil
}

func (m *memStore) GetMessage(ctx context.Context, messageID string) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[messageID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return msg, nil
}

func (m *memStore) CountRecords(ctx context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]int{
		"user":    len(m.users),
		"chat":    len(m.chats),
		"message": len(m.messages),
	}, nil
}

// echoStreamer streams back fixed tokens.
type echoStreamer struct {
	tokens []string
}

func (e *echoStreamer) StreamChat(
	ctx context.Context,
	systemPrompt string,
	history []models.Message,
	tools []llms.Tool,
	onToken func(ctx context.Context, chunk []byte) error,
) (*llm.Completion, error) {
	var content strings.Builder
	for _, tok := range e.tokens {
		if onToken != nil {
			if err := onToken(ctx, []byte(tok)); err != nil {
				return nil, err
			}
		}
		content.WriteString(tok)
	}
	return &llm.Completion{Content: content.String(), FinishReason: "stop"}, nil
}

type testEnv struct {
	store  *memStore
	server *httptest.Server
}

func newTestEnv(t *testing.T, streamer llm.ChatStreamer) *testEnv {
	t.Helper()
	store := newMemStore()
	srv := New(Options{
		Store:    store,
		Auth:     auth.NewService(store, "test-secret", time.Hour),
		Streamer: streamer,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{store: store, server: ts}
}

func (e *testEnv) request(t *testing.T, method, path, token string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func (e *testEnv) registerUser(t *testing.T, email string) string {
	t.Helper()
	resp, body := e.request(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"email":    email,
		"password": "hunter2hunter2",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

func TestAuthEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.registerUser(t, "alice@example.com")

	t.Run("duplicate email conflicts", func(t *testing.T) {
		resp, _ := env.request(t, http.MethodPost, "/api/auth/register", "", map[string]any{
			"email":    "alice@example.com",
			"password": "hunter2hunter2",
		}, nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("login", func(t *testing.T) {
		resp, body := env.request(t, http.MethodPost, "/api/auth/login", "", map[string]any{
			"email":    "alice@example.com",
			"password": "hunter2hunter2",
		}, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	})

	t.Run("login wrong password", func(t *testing.T) {
		resp, _ := env.request(t, http.MethodPost, "/api/auth/login", "", map[string]any{
			"email":    "alice@example.com",
			"password": "wrongwrongwrong",
		}, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("me with token", func(t *testing.T) {
		resp, body := env.request(t, http.MethodGet, "/api/auth/me", token, nil, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), "alice@example.com")
	})

	t.Run("me without token", func(t *testing.T) {
		resp, _ := env.request(t, http.MethodGet, "/api/auth/me", "", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestChatEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.registerUser(t, "alice@example.com")
	bob := env.registerUser(t, "bob@example.com")

	createChat := func(t *testing.T, token string) models.Chat {
		resp, body := env.request(t, http.MethodPost, "/api/chats", token, map[string]any{}, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
		var out struct {
			Chat models.Chat `json:"chat"`
		}
		require.NoError(t, json.Unmarshal(body, &out))
		return out.Chat
	}

	t.Run("create assigns default title and valid id", func(t *testing.T) {
		chat := createChat(t, alice)
		assert.Equal(t, models.DefaultChatTitle, chat.Title)
		assert.True(t, models.ValidChatID(chat.ID))
	})

	t.Run("get unknown chat is 404", func(t *testing.T) {
		resp, _ := env.request(t, http.MethodGet, "/api/chats/chat_00000000000000000000000000000000", alice, nil, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("someone else's chat is 403", func(t *testing.T) {
		chat := createChat(t, alice)
		resp, _ := env.request(t, http.MethodGet, "/api/chats/"+chat.ID, bob, nil, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("rename", func(t *testing.T) {
		chat := createChat(t, alice)
		resp, body := env.request(t, http.MethodPut, "/api/chats/"+chat.ID, alice, map[string]any{
			"title": "Raft deep dive",
		}, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), "Raft deep dive")
	})

	t.Run("delete", func(t *testing.T) {
		chat := createChat(t, alice)
		resp, _ := env.request(t, http.MethodDelete, "/api/chats/"+chat.ID, alice, nil, nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, _ = env.request(t, http.MethodGet, "/api/chats/"+chat.ID, alice, nil, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("append message and replay", func(t *testing.T) {
		chat := createChat(t, alice)
		msg := map[string]any{
			"messageId": models.GenerateMessageID(),
			"role":      "user",
			"content":   "what is raft?",
		}

		resp, body := env.request(t, http.MethodPost, "/api/chats/"+chat.ID+"/messages", alice, msg, nil)
		assert.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

		// Replaying the same message id is success-without-write.
		resp, body = env.request(t, http.MethodPost, "/api/chats/"+chat.ID+"/messages", alice, msg, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		resp, body = env.request(t, http.MethodGet, "/api/chats/"+chat.ID, alice, nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var out struct {
			Chat models.Chat `json:"chat"`
		}
		require.NoError(t, json.Unmarshal(body, &out))
		assert.Len(t, out.Chat.Messages, 1)
	})

	t.Run("idempotency key replays chat creation", func(t *testing.T) {
		headers := map[string]string{gateway.HeaderIdempotencyKey: "same-key-123"}

		resp, body := env.request(t, http.MethodPost, "/api/chats", alice, map[string]any{}, headers)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var first struct {
			Chat models.Chat `json:"chat"`
		}
		require.NoError(t, json.Unmarshal(body, &first))

		resp, body = env.request(t, http.MethodPost, "/api/chats", alice, map[string]any{}, headers)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var second struct {
			Chat models.Chat `json:"chat"`
		}
		require.NoError(t, json.Unmarshal(body, &second))

		assert.Equal(t, first.Chat.ID, second.Chat.ID, "repeated key must not create a second chat")
	})
}

func TestStatsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.registerUser(t, "alice@example.com")

	resp, body := env.request(t, http.MethodGet, "/api/stats", token, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "records")
	assert.Contains(t, string(body), "metrics")
}

func TestStreamEndpoint(t *testing.T) {
	env := newTestEnv(t, &echoStreamer{tokens: []string{"Vien", "na."}})
	token := env.registerUser(t, "alice@example.com")

	// Create a chat with one user message to stream over.
	resp, body := env.request(t, http.MethodPost, "/api/chats", token, map[string]any{}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		Chat models.Chat `json:"chat"`
	}
	require.NoError(t, json.Unmarshal(body, &created))

	resp, _ = env.request(t, http.MethodPost, "/api/chats/"+created.Chat.ID+"/messages", token, map[string]any{
		"messageId": models.GenerateMessageID(),
		"role":      "user",
		"content":   "capital of austria?",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/stream?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{
		"chatId": created.Chat.ID,
		"mode":   "chat",
	}))

	var tokens []string
	var done bool
	for !done {
		var frame streamFrame
		require.NoError(t, conn.ReadJSON(&frame))
		switch frame.Type {
		case "token":
			tokens = append(tokens, frame.Token)
		case "done":
			done = true
		case "error":
			t.Fatalf("unexpected error frame: %s", frame.Message)
		}
	}
	assert.Equal(t, []string{"Vien", "na."}, tokens)

	// The assistant reply was persisted into the chat.
	resp, body = env.request(t, http.MethodGet, "/api/chats/"+created.Chat.ID, token, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Chat models.Chat `json:"chat"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Chat.Messages, 2)
	assert.Equal(t, models.RoleAssistant, out.Chat.Messages[1].Role)
	assert.Equal(t, "Vienna.", out.Chat.Messages[1].Content)
}
