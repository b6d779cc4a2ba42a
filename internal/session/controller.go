// Package session orchestrates chat resolution, creation, loading and
// message persistence for one client session.
//
// The controller is the single entry point for everything that used to
// race: direct submits, recovered pending-message replays and completion
// callbacks all funnel through SaveMessage, which checks and claims the
// message's dedup signature in one mutex hold before the write goes out.
// Whichever path claims first wins and the others observe a duplicate,
// regardless of arrival order.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nvoronin/periscope/internal/dedup"
	"github.com/nvoronin/periscope/internal/models"
	"github.com/nvoronin/periscope/internal/pending"
)

// ErrCreateInFlight is returned when a chat creation is requested while
// another one is already running. The caller should wait for the first
// one instead of producing a second chat.
var ErrCreateInFlight = errors.New("chat creation already in flight")

// Boundary is the persistence contract the controller reads and writes
// through. Implemented by the HTTP client and, server-side, by the
// SurrealDB store.
type Boundary interface {
	CreateChat(ctx context.Context, title string) (*models.Chat, error)
	GetChat(ctx context.Context, id string) (*models.Chat, error)
	ListChats(ctx context.Context) ([]models.Chat, error)
	UpdateChatTitle(ctx context.Context, id, title string) (*models.Chat, error)
	DeleteChat(ctx context.Context, id string) error
	AppendMessage(ctx context.Context, chatID string, msg models.NewMessage) (*models.Message, error)
}

// Identity resolves the authenticated user. A nil user means every chat
// operation is a no-op.
type Identity interface {
	CurrentUser(ctx context.Context) (*models.User, error)
}

// Controller owns the per-session chat state: which chat is resolved,
// its loaded messages, and the staging/dedup machinery around saves.
type Controller struct {
	boundary Boundary
	identity Identity
	pending  *pending.Store
	ledger   *dedup.Ledger
	retry    RetryPolicy
	logger   *slog.Logger

	mu       sync.Mutex
	chatID   string
	messages []models.Message
	creating bool
	loading  bool
}

// New creates a controller. A nil pending store disables staged-message
// recovery; a nil logger discards logs.
func New(boundary Boundary, identity Identity, store *pending.Store, retry RetryPolicy, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if store == nil {
		store = pending.NewMemoryStore()
	}
	return &Controller{
		boundary: boundary,
		identity: identity,
		pending:  store,
		ledger:   dedup.NewLedger(dedup.DefaultLedgerSize),
		retry:    retry,
		logger:   logger,
	}
}

// CurrentChatID returns the resolved chat id, or "" when unresolved.
func (c *Controller) CurrentChatID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chatID
}

// Messages returns a copy of the loaded messages of the current chat.
func (c *Controller) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// ClearCurrent resets the controller to the unresolved state.
func (c *Controller) ClearCurrent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chatID = ""
	c.messages = nil
}

// requireUser resolves the authenticated user or fails every operation.
func (c *Controller) requireUser(ctx context.Context) (*models.User, error) {
	user, err := c.identity.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	if user == nil {
		return nil, models.ErrUnauthorized
	}
	return user, nil
}

// CreateChat creates a chat, retrying transient failures per the policy.
// A concurrent second call while one is in flight is rejected with
// ErrCreateInFlight rather than producing two chats.
func (c *Controller) CreateChat(ctx context.Context, title string) (string, error) {
	if _, err := c.requireUser(ctx); err != nil {
		return "", err
	}

	c.mu.Lock()
	if c.creating {
		c.mu.Unlock()
		return "", ErrCreateInFlight
	}
	c.creating = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.creating = false
		c.mu.Unlock()
	}()

	var chat *models.Chat
	attempt := 0
	op := func() error {
		attempt++
		created, err := c.boundary.CreateChat(ctx, title)
		if err != nil {
			c.logger.Warn("chat creation attempt failed",
				"attempt", attempt, "error", err)
			return err
		}
		chat = created
		return nil
	}

	if err := backoff.Retry(op, c.retry.backOff(ctx)); err != nil {
		return "", fmt.Errorf("create chat after %d attempts: %w", attempt, err)
	}

	c.mu.Lock()
	c.chatID = chat.ID
	c.messages = nil
	c.mu.Unlock()

	c.logger.Info("chat created", "chat_id", chat.ID, "attempts", attempt)
	return chat.ID, nil
}

// LoadChat fetches a chat with its messages and makes it current. A
// not-found result is a state-reset signal, not an error: the chat was
// deleted, so local resolution is cleared and (nil, nil) is returned.
func (c *Controller) LoadChat(ctx context.Context, chatID string) (*models.Chat, error) {
	if _, err := c.requireUser(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()

	chat, err := c.boundary.GetChat(ctx, chatID)

	c.mu.Lock()
	c.loading = false
	if err != nil {
		c.mu.Unlock()
		if errors.Is(err, models.ErrNotFound) {
			c.logger.Info("chat gone, clearing local state", "chat_id", chatID)
			c.ClearCurrent()
			return nil, nil
		}
		return nil, err
	}
	c.chatID = chat.ID
	c.messages = chat.Messages
	c.mu.Unlock()

	// The chat just became resolved: replay any staged message.
	c.RecoverPending(ctx)

	return chat, nil
}

// ListChats returns the user's chats.
func (c *Controller) ListChats(ctx context.Context) ([]models.Chat, error) {
	if _, err := c.requireUser(ctx); err != nil {
		return nil, err
	}
	return c.boundary.ListChats(ctx)
}

// SaveMessage persists a message unless it is a duplicate of one already
// loaded or recently committed. A duplicate is success-without-write:
// callers cannot distinguish "already saved" from "just saved", which is
// what keeps the three racing save paths at-most-once. Returns false only
// on real persistence failure.
func (c *Controller) SaveMessage(ctx context.Context, chatID string, msg models.NewMessage) bool {
	if _, err := c.requireUser(ctx); err != nil {
		c.logger.Warn("save rejected", "error", err)
		return false
	}
	if chatID == "" {
		return false
	}

	if msg.MessageID == "" {
		msg.MessageID = models.GenerateMessageID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	sig := dedup.NewMessageSignature(msg)

	c.mu.Lock()
	var recent []models.Message
	if c.chatID == chatID {
		recent = c.messages
	}
	duplicate := dedup.IsDuplicate(msg, recent) || c.ledger.Seen(sig) || c.ledger.Seen(msg.MessageID)
	if !duplicate {
		// Claim the signature before the write goes out: a racing save
		// of the same content observes the claim and backs off instead
		// of producing a second write while this one is in flight.
		c.ledger.Mark(sig)
		c.ledger.Mark(msg.MessageID)
	}
	c.mu.Unlock()

	if duplicate {
		c.logger.Debug("duplicate message, skipping save",
			"chat_id", chatID, "message_id", msg.MessageID)
		return true
	}

	saved, err := c.boundary.AppendMessage(ctx, chatID, msg)
	if err != nil {
		c.mu.Lock()
		c.ledger.Forget(sig)
		c.ledger.Forget(msg.MessageID)
		c.mu.Unlock()
		c.logger.Error("message save failed", "chat_id", chatID, "error", err)
		return false
	}

	c.mu.Lock()
	if c.chatID == chatID {
		c.messages = append(c.messages, *saved)
	}
	c.ledger.Mark(saved.ID)
	c.mu.Unlock()

	return true
}

// RenameChat updates a chat's title.
func (c *Controller) RenameChat(ctx context.Context, chatID, title string) error {
	if _, err := c.requireUser(ctx); err != nil {
		return err
	}
	if _, err := c.boundary.UpdateChatTitle(ctx, chatID, title); err != nil {
		return err
	}
	return nil
}

// DeleteChat deletes a chat. Deleting the currently open chat also clears
// local session state.
func (c *Controller) DeleteChat(ctx context.Context, chatID string) error {
	if _, err := c.requireUser(ctx); err != nil {
		return err
	}
	if err := c.boundary.DeleteChat(ctx, chatID); err != nil {
		return err
	}

	c.mu.Lock()
	if c.chatID == chatID {
		c.chatID = ""
		c.messages = nil
	}
	c.mu.Unlock()
	return nil
}

// RecoverPending replays a staged message into the resolved chat, at most
// once. Expired messages are discarded without replay. The slot is cleared
// whether or not the replay save succeeds: a failed replay is dropped, not
// retried indefinitely, to avoid duplicate-injection loops.
func (c *Controller) RecoverPending(ctx context.Context) bool {
	c.mu.Lock()
	chatID := c.chatID
	loading := c.loading
	c.mu.Unlock()

	if chatID == "" || loading {
		return false
	}

	msg, err := c.pending.Get()
	if err != nil {
		c.logger.Warn("pending message unreadable, discarding", "error", err)
		_ = c.pending.Clear()
		return false
	}
	if msg == nil || msg.Processed {
		return false
	}

	expired, err := c.pending.Expired()
	if err == nil && expired {
		c.logger.Debug("pending message expired, discarding",
			"staged_at", msg.Timestamp)
		_ = c.pending.Clear()
		return false
	}

	if msg.Content == "" {
		_ = c.pending.Clear()
		return false
	}

	claimed, err := c.pending.BeginProcessing()
	if err != nil || !claimed {
		return false
	}
	defer func() { _ = c.pending.EndProcessing() }()

	replay := models.NewMessage{
		MessageID:   models.GenerateMessageID(),
		Role:        models.RoleUser,
		Content:     msg.Content,
		Attachments: msg.Attachments,
		CreatedAt:   time.Now(),
	}

	ok := c.SaveMessage(ctx, chatID, replay)
	if !ok {
		c.logger.Warn("pending message replay failed, dropping",
			"chat_id", chatID)
	}
	_ = c.pending.Clear()
	return ok
}

// Submit is the single send entry point: it stages the message, resolves
// a chat id (creating a chat when none is resolved) and consumes the
// staged message through the recovery path. Returns the chat id the
// message landed in.
func (c *Controller) Submit(ctx context.Context, content string, attachments []models.Attachment) (string, error) {
	if _, err := c.requireUser(ctx); err != nil {
		return "", err
	}
	if content == "" {
		return "", errors.New("empty message")
	}

	if err := c.pending.Save(content, attachments); err != nil {
		return "", fmt.Errorf("stage message: %w", err)
	}

	chatID := c.CurrentChatID()
	if chatID == "" {
		created, err := c.CreateChat(ctx, "")
		if err != nil {
			return "", err
		}
		chatID = created
	}

	c.RecoverPending(ctx)
	return chatID, nil
}
