// Package client provides the HTTP client for the Periscope server.
//
// All operations go through the idempotent request gateway so that
// duplicate concurrent triggers collapse into one server-visible request
// and every create/save carries an idempotency token.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/nvoronin/periscope/internal/gateway"
	"github.com/nvoronin/periscope/internal/models"
)

// DefaultEndpoint is used when no endpoint is configured.
const DefaultEndpoint = "http://localhost:8484"

// Client talks to the Periscope server's REST API.
type Client struct {
	endpoint string
	gw       *gateway.Gateway
}

// New creates a client. If endpoint is empty, uses the PERISCOPE_SERVER_URL
// env var or DefaultEndpoint. Timeout can be configured via
// PERISCOPE_CLIENT_TIMEOUT (default 2m).
func New(endpoint string) *Client {
	if endpoint == "" {
		endpoint = os.Getenv("PERISCOPE_SERVER_URL")
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	timeout := gateway.DefaultTimeout
	if t := os.Getenv("PERISCOPE_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		endpoint: endpoint,
		gw:       gateway.New(&http.Client{Timeout: timeout}),
	}
}

// SetToken sets the bearer token attached to every request.
func (c *Client) SetToken(token string) {
	c.gw.SetHeader("Authorization", "Bearer "+token)
}

// Endpoint returns the configured server endpoint.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// apiError is the error envelope returned by the server.
type apiError struct {
	Error string `json:"error"`
}

// do issues a request and decodes a 2xx response into out.
func (c *Client) do(ctx context.Context, method, path string, payload, out any, cacheKey string) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	res, err := c.gw.Do(ctx, method, c.endpoint+path, body, cacheKey)
	if err != nil {
		return err
	}

	if !res.OK() {
		var apiErr apiError
		_ = json.Unmarshal(res.Body, &apiErr)
		msg := apiErr.Error
		if msg == "" {
			msg = http.StatusText(res.StatusCode)
		}

		switch res.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", models.ErrUnauthorized, msg)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %s", models.ErrForbidden, msg)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", models.ErrNotFound, msg)
		default:
			return fmt.Errorf("server error: %d - %s", res.StatusCode, msg)
		}
	}

	if out != nil && len(res.Body) > 0 {
		if err := json.Unmarshal(res.Body, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// =============================================================================
// Auth
// =============================================================================

// LoginResult is the response to a successful login or registration.
type LoginResult struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Login authenticates with email and password and stores the returned
// token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var out LoginResult
	payload := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", payload, &out, ""); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	c.SetToken(out.Token)
	return &out, nil
}

// Register creates an account and stores the returned token on the client.
func (c *Client) Register(ctx context.Context, email, password, name string) (*LoginResult, error) {
	var out LoginResult
	payload := map[string]string{"email": email, "password": password, "name": name}
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", payload, &out, ""); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	c.SetToken(out.Token)
	return &out, nil
}

// CurrentUser resolves the authenticated user, or nil when the token is
// missing or invalid.
func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	var out struct {
		User models.User `json:"user"`
	}
	err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &out, "")
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			return nil, nil
		}
		return nil, fmt.Errorf("current user: %w", err)
	}
	return &out.User, nil
}

// ModeInfo describes a search mode advertised by the server.
type ModeInfo struct {
	ID    string   `json:"id"`
	Tools []string `json:"tools"`
}

// ListModes returns the search modes the server supports.
func (c *Client) ListModes(ctx context.Context) ([]ModeInfo, error) {
	var out struct {
		Modes []ModeInfo `json:"modes"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/modes", nil, &out, ""); err != nil {
		return nil, fmt.Errorf("list modes: %w", err)
	}
	return out.Modes, nil
}

// =============================================================================
// Chats
// =============================================================================

// CreateChat creates a chat. Concurrent create calls collapse into one
// request under the shared cache key.
func (c *Client) CreateChat(ctx context.Context, title string) (*models.Chat, error) {
	if title == "" {
		title = models.DefaultChatTitle
	}
	var out struct {
		Chat models.Chat `json:"chat"`
	}
	payload := map[string]string{"title": title}
	if err := c.do(ctx, http.MethodPost, "/api/chats", payload, &out, "create-chat"); err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	return &out.Chat, nil
}

// ListChats returns the caller's chats, most recently updated first, each
// carrying its most recent message.
func (c *Client) ListChats(ctx context.Context) ([]models.Chat, error) {
	var out struct {
		Chats []models.Chat `json:"chats"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/chats", nil, &out, ""); err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return out.Chats, nil
}

// GetChat fetches a chat with its ordered messages and attachments.
// Returns models.ErrNotFound (wrapped) when the chat does not exist.
func (c *Client) GetChat(ctx context.Context, id string) (*models.Chat, error) {
	var out struct {
		Chat models.Chat `json:"chat"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/chats/"+id, nil, &out, ""); err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	return &out.Chat, nil
}

// UpdateChatTitle renames a chat.
func (c *Client) UpdateChatTitle(ctx context.Context, id, title string) (*models.Chat, error) {
	var out struct {
		Chat models.Chat `json:"chat"`
	}
	payload := map[string]string{"title": title}
	if err := c.do(ctx, http.MethodPut, "/api/chats/"+id, payload, &out, ""); err != nil {
		return nil, fmt.Errorf("update chat title: %w", err)
	}
	return &out.Chat, nil
}

// DeleteChat deletes a chat and everything in it.
func (c *Client) DeleteChat(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/chats/"+id, nil, nil, ""); err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	return nil
}

// AppendMessage appends a message (with attachments) to a chat and returns
// the canonical persisted message. The cache key scopes single-flight to
// this chat and client message id so saves to different chats never
// collapse.
func (c *Client) AppendMessage(ctx context.Context, chatID string, msg models.NewMessage) (*models.Message, error) {
	var out struct {
		Message models.Message `json:"message"`
	}
	key := fmt.Sprintf("save-message-%s-%s", chatID, msg.MessageID)
	if err := c.do(ctx, http.MethodPost, "/api/chats/"+chatID+"/messages", msg, &out, key); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return &out.Message, nil
}
