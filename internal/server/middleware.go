package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nvoronin/periscope/internal/gateway"
	"github.com/nvoronin/periscope/internal/models"
)

const userContextKey = "periscope.user"

// requestLogger logs each request with method, path, status and duration.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// requireAuth resolves the bearer token into a user and aborts with 401
// when it can't. Websocket clients may pass the token as ?token= since
// browser websockets cannot set headers.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		user, err := s.auth.Resolve(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(userContextKey, user)
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if strings.HasPrefix(header, prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func currentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(userContextKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

// idempotencyCacheSize bounds remembered responses. Old entries falling
// out of the cache just means a very late retry executes again.
const idempotencyCacheSize = 256

type cachedResponse struct {
	status      int
	contentType string
	body        []byte
}

// responseRecorder tees the handler's response so it can be replayed.
type responseRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// idempotency replays the recorded response for a repeated
// X-Idempotency-Key instead of executing the handler again. Requests
// without the header pass through untouched.
func idempotency() gin.HandlerFunc {
	cache, _ := lru.New[string, cachedResponse](idempotencyCacheSize)
	var mu sync.Mutex

	return func(c *gin.Context) {
		key := c.GetHeader(gateway.HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		key = c.Request.Method + " " + c.FullPath() + " " + key

		mu.Lock()
		if cached, ok := cache.Get(key); ok {
			mu.Unlock()
			c.Data(cached.status, cached.contentType, cached.body)
			c.Abort()
			return
		}
		mu.Unlock()

		recorder := &responseRecorder{ResponseWriter: c.Writer}
		c.Writer = recorder
		c.Next()

		// Only successes are worth replaying; a failed attempt should
		// be allowed to retry for real.
		status := recorder.Status()
		if status >= 200 && status < 300 {
			mu.Lock()
			cache.Add(key, cachedResponse{
				status:      status,
				contentType: recorder.Header().Get("Content-Type"),
				body:        recorder.body.Bytes(),
			})
			mu.Unlock()
		}
	}
}
