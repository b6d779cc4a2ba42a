package db

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/nvoronin/periscope/internal/models"
)

// Row types mirror the table layout. Record ids stay SurrealDB-typed here
// and are flattened to strings at the package boundary.

type userRow struct {
	ID           surrealmodels.RecordID `json:"id"`
	Email        string                 `json:"email"`
	PasswordHash string                 `json:"password_hash"`
	Name         *string                `json:"name,omitempty"`
	Image        *string                `json:"image,omitempty"`
	Created      time.Time              `json:"created,omitempty"`
}

type chatRow struct {
	ID      surrealmodels.RecordID `json:"id"`
	Owner   surrealmodels.RecordID `json:"owner"`
	Title   string                 `json:"title"`
	Created time.Time              `json:"created,omitempty"`
	Updated time.Time              `json:"updated,omitempty"`
}

type messageRow struct {
	ID      surrealmodels.RecordID `json:"id"`
	Chat    surrealmodels.RecordID `json:"chat"`
	Role    string                 `json:"role"`
	Content string                 `json:"content"`
	Raw     *string                `json:"raw,omitempty"`
	Created time.Time              `json:"created,omitempty"`
}

type attachmentRow struct {
	ID          surrealmodels.RecordID `json:"id"`
	Message     surrealmodels.RecordID `json:"message"`
	Name        string                 `json:"name"`
	ContentType string                 `json:"content_type"`
	URL         string                 `json:"url"`
	Size        int64                  `json:"size"`
	Created     time.Time              `json:"created,omitempty"`
}

// recordIDString extracts the string portion of a record id.
func recordIDString(id surrealmodels.RecordID) string {
	if s, ok := id.ID.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", id.ID)
}

func (r userRow) toModel() models.User {
	return models.User{
		ID:    recordIDString(r.ID),
		Email: r.Email,
		Name:  r.Name,
		Image: r.Image,
	}
}

func (r chatRow) toModel() models.Chat {
	return models.Chat{
		ID:        recordIDString(r.ID),
		UserID:    recordIDString(r.Owner),
		Title:     r.Title,
		CreatedAt: r.Created,
		UpdatedAt: r.Updated,
	}
}

func (r messageRow) toModel() models.Message {
	msg := models.Message{
		ID:        recordIDString(r.ID),
		ChatID:    recordIDString(r.Chat),
		Role:      r.Role,
		Content:   r.Content,
		CreatedAt: r.Created,
	}
	if r.Raw != nil {
		msg.RawJSON = []byte(*r.Raw)
	}
	return msg
}

func (r attachmentRow) toModel() models.Attachment {
	return models.Attachment{
		ID:          recordIDString(r.ID),
		MessageID:   recordIDString(r.Message),
		Name:        r.Name,
		ContentType: r.ContentType,
		URL:         r.URL,
		Size:        r.Size,
		CreatedAt:   r.Created,
	}
}

func first[T any](results *[]surrealdb.QueryResult[[]T]) (*T, bool) {
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, false
	}
	return &(*results)[0].Result[0], true
}

// CreateUser inserts a user. A taken email surfaces as ErrAlreadyExists.
func (c *Client) CreateUser(ctx context.Context, id, email, passwordHash string, name *string) (*models.User, error) {
	results, err := surrealdb.Query[[]userRow](ctx, c.db, `
		CREATE type::record("user", $id) CONTENT {
			email: $email,
			password_hash: $hash,
			name: $name
		}
	`, map[string]any{
		"id":    id,
		"email": email,
		"hash":  passwordHash,
		"name":  name,
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", wrapQueryError(err))
	}

	row, ok := first(results)
	if !ok {
		return nil, fmt.Errorf("create user: empty result")
	}
	user := row.toModel()
	return &user, nil
}

// GetUserByEmail returns the user and their password hash, or ErrNotFound.
func (c *Client) GetUserByEmail(ctx context.Context, email string) (*models.User, string, error) {
	results, err := surrealdb.Query[[]userRow](ctx, c.db, `
		SELECT * FROM user WHERE email = $email LIMIT 1
	`, map[string]any{"email": email})
	if err != nil {
		return nil, "", fmt.Errorf("get user by email: %w", err)
	}

	row, ok := first(results)
	if !ok {
		return nil, "", fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	user := row.toModel()
	return &user, row.PasswordHash, nil
}

// GetUser returns a user by id, or ErrNotFound.
func (c *Client) GetUser(ctx context.Context, id string) (*models.User, error) {
	results, err := surrealdb.Query[[]userRow](ctx, c.db, `
		SELECT * FROM type::record("user", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	row, ok := first(results)
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	user := row.toModel()
	return &user, nil
}

// CreateChat inserts a chat owned by the given user.
func (c *Client) CreateChat(ctx context.Context, ownerID, chatID, title string) (*models.Chat, error) {
	results, err := surrealdb.Query[[]chatRow](ctx, c.db, `
		CREATE type::record("chat", $id) CONTENT {
			owner: type::record("user", $owner),
			title: $title
		}
	`, map[string]any{
		"id":    chatID,
		"owner": ownerID,
		"title": title,
	})
	if err != nil {
		return nil, fmt.Errorf("create chat: %w", wrapQueryError(err))
	}

	row, ok := first(results)
	if !ok {
		return nil, fmt.Errorf("create chat: empty result")
	}
	chat := row.toModel()
	chat.Messages = []models.Message{}
	return &chat, nil
}

// GetChat returns a chat with its messages and attachments, ordered by
// creation time. Opening a chat counts as activity: its updated time is
// bumped so the chat list surfaces recently viewed chats first. The
// caller is responsible for the ownership check.
func (c *Client) GetChat(ctx context.Context, chatID string) (*models.Chat, error) {
	results, err := surrealdb.Query[[]chatRow](ctx, c.db, `
		UPDATE type::record("chat", $id) SET updated = time::now()
	`, map[string]any{"id": chatID})
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}

	row, ok := first(results)
	if !ok {
		return nil, fmt.Errorf("chat %s: %w", chatID, ErrNotFound)
	}
	chat := row.toModel()

	messages, err := c.listMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	chat.Messages = messages
	return &chat, nil
}

func (c *Client) listMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	results, err := surrealdb.Query[[]messageRow](ctx, c.db, `
		SELECT * FROM message
		WHERE chat = type::record("chat", $chat)
		ORDER BY created ASC
	`, map[string]any{"chat": chatID})
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	var rows []messageRow
	if results != nil && len(*results) > 0 {
		rows = (*results)[0].Result
	}

	messages := make([]models.Message, 0, len(rows))
	byID := make(map[string]int, len(rows))
	for _, row := range rows {
		msg := row.toModel()
		msg.Attachments = []models.Attachment{}
		byID[msg.ID] = len(messages)
		messages = append(messages, msg)
	}

	attachments, err := c.listChatAttachments(ctx, chatID)
	if err != nil {
		return nil, err
	}
	for _, att := range attachments {
		if i, ok := byID[att.MessageID]; ok {
			messages[i].Attachments = append(messages[i].Attachments, att)
		}
	}
	return messages, nil
}

func (c *Client) listChatAttachments(ctx context.Context, chatID string) ([]models.Attachment, error) {
	results, err := surrealdb.Query[[]attachmentRow](ctx, c.db, `
		SELECT * FROM attachment
		WHERE message.chat = type::record("chat", $chat)
		ORDER BY created ASC
	`, map[string]any{"chat": chatID})
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}

	var rows []attachmentRow
	if results != nil && len(*results) > 0 {
		rows = (*results)[0].Result
	}
	out := make([]models.Attachment, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

// ListChats returns the user's chats, most recently updated first, each
// carrying only its most recent message as a preview.
func (c *Client) ListChats(ctx context.Context, ownerID string) ([]models.Chat, error) {
	results, err := surrealdb.Query[[]chatRow](ctx, c.db, `
		SELECT * FROM chat
		WHERE owner = type::record("user", $owner)
		ORDER BY updated DESC
	`, map[string]any{"owner": ownerID})
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}

	var rows []chatRow
	if results != nil && len(*results) > 0 {
		rows = (*results)[0].Result
	}
	chats := make([]models.Chat, 0, len(rows))
	index := make(map[string]int, len(rows))
	for _, row := range rows {
		chat := row.toModel()
		chat.Messages = []models.Message{}
		index[chat.ID] = len(chats)
		chats = append(chats, chat)
	}
	if len(chats) == 0 {
		return chats, nil
	}

	// One pass over the owner's messages, newest first; the first message
	// seen per chat is its preview.
	msgResults, err := surrealdb.Query[[]messageRow](ctx, c.db, `
		SELECT * FROM message
		WHERE chat.owner = type::record("user", $owner)
		ORDER BY created DESC
	`, map[string]any{"owner": ownerID})
	if err != nil {
		return nil, fmt.Errorf("list chat previews: %w", err)
	}

	var msgRows []messageRow
	if msgResults != nil && len(*msgResults) > 0 {
		msgRows = (*msgResults)[0].Result
	}
	for _, row := range msgRows {
		msg := row.toModel()
		if i, ok := index[msg.ChatID]; ok && len(chats[i].Messages) == 0 {
			chats[i].Messages = []models.Message{msg}
		}
	}
	return chats, nil
}

// UpdateChatTitle renames a chat, or returns ErrNotFound.
func (c *Client) UpdateChatTitle(ctx context.Context, chatID, title string) (*models.Chat, error) {
	results, err := surrealdb.Query[[]chatRow](ctx, c.db, `
		UPDATE type::record("chat", $id) SET
			title = $title,
			updated = time::now()
	`, map[string]any{"id": chatID, "title": title})
	if err != nil {
		return nil, fmt.Errorf("update chat title: %w", wrapQueryError(err))
	}

	row, ok := first(results)
	if !ok {
		return nil, fmt.Errorf("chat %s: %w", chatID, ErrNotFound)
	}
	chat := row.toModel()
	return &chat, nil
}

// DeleteChat removes a chat with its messages and attachments.
func (c *Client) DeleteChat(ctx context.Context, chatID string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		BEGIN TRANSACTION;
		DELETE attachment WHERE message.chat = type::record("chat", $id);
		DELETE message WHERE chat = type::record("chat", $id);
		DELETE type::record("chat", $id);
		COMMIT TRANSACTION;
	`, map[string]any{"id": chatID})
	if err != nil {
		return fmt.Errorf("delete chat: %w", wrapQueryError(err))
	}
	return nil
}

// ChatExists reports whether the chat record exists.
func (c *Client) ChatExists(ctx context.Context, chatID string) (bool, string, error) {
	results, err := surrealdb.Query[[]chatRow](ctx, c.db, `
		SELECT id, owner, title FROM type::record("chat", $id)
	`, map[string]any{"id": chatID})
	if err != nil {
		return false, "", fmt.Errorf("chat exists: %w", err)
	}
	row, ok := first(results)
	if !ok {
		return false, "", nil
	}
	return true, recordIDString(row.Owner), nil
}

// AppendMessage inserts a message with its attachments and bumps the
// chat's updated time. Inserting an id that already exists surfaces as
// ErrAlreadyExists so the caller can treat the write as already done.
func (c *Client) AppendMessage(ctx context.Context, chatID string, msg models.NewMessage) (*models.Message, error) {
	var raw *string
	if len(msg.RawJSON) > 0 {
		s := string(msg.RawJSON)
		raw = &s
	}

	results, err := surrealdb.Query[[]messageRow](ctx, c.db, `
		CREATE type::record("message", $id) CONTENT {
			chat: type::record("chat", $chat),
			role: $role,
			content: $content,
			raw: $raw,
			created: $created
		};
		UPDATE type::record("chat", $chat) SET updated = time::now();
	`, map[string]any{
		"id":      msg.MessageID,
		"chat":    chatID,
		"role":    msg.Role,
		"content": msg.Content,
		"raw":     raw,
		"created": msg.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("append message: %w", wrapQueryError(err))
	}

	row, ok := first(results)
	if !ok {
		return nil, fmt.Errorf("append message: empty result")
	}
	saved := row.toModel()
	saved.Attachments = make([]models.Attachment, 0, len(msg.Attachments))

	for _, att := range msg.Attachments {
		stored, err := c.createAttachment(ctx, saved.ID, att)
		if err != nil {
			return nil, err
		}
		saved.Attachments = append(saved.Attachments, *stored)
	}
	return &saved, nil
}

func (c *Client) createAttachment(ctx context.Context, messageID string, att models.Attachment) (*models.Attachment, error) {
	results, err := surrealdb.Query[[]attachmentRow](ctx, c.db, `
		CREATE attachment CONTENT {
			message: type::record("message", $message),
			name: $name,
			content_type: $content_type,
			url: $url,
			size: $size
		}
	`, map[string]any{
		"message":      messageID,
		"name":         att.Name,
		"content_type": att.ContentType,
		"url":          att.URL,
		"size":         att.Size,
	})
	if err != nil {
		return nil, fmt.Errorf("create attachment: %w", wrapQueryError(err))
	}

	row, ok := first(results)
	if !ok {
		return nil, fmt.Errorf("create attachment: empty result")
	}
	stored := row.toModel()
	return &stored, nil
}

// GetMessage returns a message by id, or ErrNotFound.
func (c *Client) GetMessage(ctx context.Context, messageID string) (*models.Message, error) {
	results, err := surrealdb.Query[[]messageRow](ctx, c.db, `
		SELECT * FROM type::record("message", $id)
	`, map[string]any{"id": messageID})
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}

	row, ok := first(results)
	if !ok {
		return nil, fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	msg := row.toModel()
	return &msg, nil
}

// CountRecords returns row counts per table for the stats endpoint.
func (c *Client) CountRecords(ctx context.Context) (map[string]int, error) {
	type countRow struct {
		Count int `json:"count"`
	}

	counts := map[string]int{}
	for _, table := range []string{"user", "chat", "message", "attachment"} {
		results, err := surrealdb.Query[[]countRow](ctx, c.db,
			fmt.Sprintf("SELECT count() AS count FROM %s GROUP ALL", table), nil)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		if row, ok := first(results); ok {
			counts[table] = row.Count
		} else {
			counts[table] = 0
		}
	}
	return counts, nil
}
