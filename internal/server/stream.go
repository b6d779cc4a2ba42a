package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/nvoronin/periscope/internal/llm"
	"github.com/nvoronin/periscope/internal/models"
	"github.com/nvoronin/periscope/internal/tools"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The CLI is the only client; cross-origin browser checks don't apply.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamRequest is the first frame a client sends after the upgrade.
type streamRequest struct {
	ChatID   string           `json:"chatId,omitempty"`
	Mode     string           `json:"mode"`
	Messages []models.Message `json:"messages"`
}

// streamFrame is a server-to-client frame.
type streamFrame struct {
	Type         string   `json:"type"` // "token", "done" or "error"
	Token        string   `json:"token,omitempty"`
	FinishReason string   `json:"finishReason,omitempty"`
	Suggestions  []string `json:"suggestions,omitempty"`
	Message      string   `json:"message,omitempty"`
}

// handleStream runs one model generation per websocket connection,
// streaming tokens as they arrive and persisting the assistant's reply
// into the chat when one is named.
func (s *Server) handleStream(c *gin.Context) {
	if s.streamer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "streaming not configured"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var req streamRequest
	if err := conn.ReadJSON(&req); err != nil {
		_ = conn.WriteJSON(streamFrame{Type: "error", Message: "invalid stream request"})
		return
	}

	history := req.Messages
	if req.ChatID != "" {
		chat := s.loadStreamChat(conn, c, req.ChatID)
		if chat == nil {
			return
		}
		if len(history) == 0 {
			history = chat.Messages
		}
	}
	if len(history) == 0 {
		_ = conn.WriteJSON(streamFrame{Type: "error", Message: "empty conversation"})
		return
	}

	mode := s.modes.Resolve(req.Mode)
	consumer := llm.NewConsumer(s.streamer, s.suggester, s.collector, s.logger)

	result, err := consumer.Run(c.Request.Context(), llm.Request{
		SystemPrompt: mode.SystemPrompt,
		History:      history,
		Tools:        tools.Definitions(mode.Tools),
	}, func(token string) error {
		return conn.WriteJSON(streamFrame{Type: "token", Token: token})
	})
	if err != nil {
		s.logger.Error("stream run failed", "chat_id", req.ChatID, "mode", mode.ID, "error", err)
		_ = conn.WriteJSON(streamFrame{Type: "error", Message: "generation failed"})
		return
	}

	// Persist the settled reply; a failure here still delivers the
	// content to the client.
	if req.ChatID != "" && result.Content != "" {
		_, err := s.store.AppendMessage(c.Request.Context(), req.ChatID, models.NewMessage{
			MessageID: models.GenerateMessageID(),
			Role:      models.RoleAssistant,
			Content:   result.Content,
			CreatedAt: time.Now(),
		})
		if err != nil {
			s.logger.Error("persist assistant message failed", "chat_id", req.ChatID, "error", err)
		}
	}

	_ = conn.WriteJSON(streamFrame{
		Type:         "done",
		FinishReason: result.FinishReason,
		Suggestions:  result.Suggestions,
	})
}

// loadStreamChat loads the chat named by a stream request, reporting
// problems over the socket since HTTP statuses are gone after upgrade.
func (s *Server) loadStreamChat(conn *websocket.Conn, c *gin.Context, chatID string) *models.Chat {
	chat, err := s.store.GetChat(c.Request.Context(), chatID)
	if err != nil {
		_ = conn.WriteJSON(streamFrame{Type: "error", Message: "chat not found"})
		return nil
	}
	if chat.UserID != currentUser(c).ID {
		_ = conn.WriteJSON(streamFrame{Type: "error", Message: "forbidden"})
		return nil
	}
	return chat
}
