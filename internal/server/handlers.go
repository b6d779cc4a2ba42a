package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nvoronin/periscope/internal/db"
	"github.com/nvoronin/periscope/internal/metrics"
	"github.com/nvoronin/periscope/internal/models"
)

func (s *Server) handleRegister(c *gin.Context) {
	var req struct {
		Email    string  `json:"email" binding:"required,email"`
		Password string  `json:"password" binding:"required,min=8"`
		Name     *string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, token, err := s.auth.Register(c.Request.Context(), uuid.NewString(), req.Email, req.Password, req.Name)
	if err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		s.logger.Error("register failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user, "token": token})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, token, err := s.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
}

func (s *Server) handleCurrentUser(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": currentUser(c)})
}

func (s *Server) handleListModes(c *gin.Context) {
	ids := s.modes.IDs()
	out := make([]gin.H, 0, len(ids))
	for _, id := range ids {
		mode := s.modes.Resolve(id)
		out = append(out, gin.H{"id": mode.ID, "tools": mode.Tools})
	}
	c.JSON(http.StatusOK, gin.H{"modes": out})
}

func (s *Server) handleStats(c *gin.Context) {
	counts, err := s.store.CountRecords(c.Request.Context())
	if err != nil {
		s.logger.Error("count records failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"records": counts,
		"metrics": s.collector.Snapshot(),
	})
}

func (s *Server) handleCreateChat(c *gin.Context) {
	var req struct {
		Title string `json:"title"`
	}
	// Empty body is allowed; the chat gets the default title.
	_ = c.ShouldBindJSON(&req)
	if req.Title == "" {
		req.Title = models.DefaultChatTitle
	}

	user := currentUser(c)
	start := time.Now()
	chat, err := s.store.CreateChat(c.Request.Context(), user.ID, models.GenerateChatID(), req.Title)
	if err != nil {
		s.logger.Error("create chat failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create chat"})
		return
	}
	s.collector.RecordTiming(metrics.OpChatCreate, time.Since(start))

	c.JSON(http.StatusCreated, gin.H{"chat": chat})
}

func (s *Server) handleListChats(c *gin.Context) {
	user := currentUser(c)
	chats, err := s.store.ListChats(c.Request.Context(), user.ID)
	if err != nil {
		s.logger.Error("list chats failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list chats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// ownedChat loads a chat and enforces ownership: 404 when it does not
// exist, 403 when it belongs to someone else.
func (s *Server) ownedChat(c *gin.Context, chatID string) *models.Chat {
	chat, err := s.store.GetChat(c.Request.Context(), chatID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
			return nil
		}
		s.logger.Error("get chat failed", "chat_id", chatID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load chat"})
		return nil
	}
	if chat.UserID != currentUser(c).ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return nil
	}
	return chat
}

func (s *Server) handleGetChat(c *gin.Context) {
	chat := s.ownedChat(c, c.Param("id"))
	if chat == nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat": chat})
}

func (s *Server) handleRenameChat(c *gin.Context) {
	var req struct {
		Title string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if s.ownedChat(c, c.Param("id")) == nil {
		return
	}
	chat, err := s.store.UpdateChatTitle(c.Request.Context(), c.Param("id"), req.Title)
	if err != nil {
		s.logger.Error("rename chat failed", "chat_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not rename chat"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat": chat})
}

func (s *Server) handleDeleteChat(c *gin.Context) {
	if s.ownedChat(c, c.Param("id")) == nil {
		return
	}
	if err := s.store.DeleteChat(c.Request.Context(), c.Param("id")); err != nil {
		s.logger.Error("delete chat failed", "chat_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete chat"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleAppendMessage(c *gin.Context) {
	var req models.NewMessage
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Role == "" || req.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role and content are required"})
		return
	}
	if req.MessageID == "" {
		req.MessageID = models.GenerateMessageID()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}

	if s.ownedChat(c, c.Param("id")) == nil {
		return
	}

	start := time.Now()
	saved, err := s.store.AppendMessage(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		// A replayed save is a success: return the already stored
		// message without writing again.
		if errors.Is(err, db.ErrAlreadyExists) {
			existing, getErr := s.store.GetMessage(c.Request.Context(), req.MessageID)
			if getErr == nil {
				c.JSON(http.StatusOK, gin.H{"message": existing})
				return
			}
		}
		s.logger.Error("append message failed", "chat_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save message"})
		return
	}
	s.collector.RecordTiming(metrics.OpMessageSave, time.Since(start))

	c.JSON(http.StatusCreated, gin.H{"message": saved})
}
