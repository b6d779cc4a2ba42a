package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nvoronin/periscope/internal/models"
)

// StreamRequest is the opening frame of a model run.
type StreamRequest struct {
	ChatID   string           `json:"chatId,omitempty"`
	Mode     string           `json:"mode"`
	Messages []models.Message `json:"messages"`
}

// StreamFrame is a server-to-client frame during a model run.
type StreamFrame struct {
	Type         string   `json:"type"` // "token", "done" or "error"
	Token        string   `json:"token,omitempty"`
	FinishReason string   `json:"finishReason,omitempty"`
	Suggestions  []string `json:"suggestions,omitempty"`
	Message      string   `json:"message,omitempty"`
}

// StreamResult summarizes a settled model run.
type StreamResult struct {
	Content      string
	FinishReason string
	Suggestions  []string
}

// Stream runs the model over a websocket and invokes onToken for each
// incremental token. Cancel ctx to stop the stream. Returns the settled
// result, or an error for stream-level failures.
func (c *Client) Stream(
	ctx context.Context,
	req StreamRequest,
	token string,
	onToken func(token string) error,
) (*StreamResult, error) {
	wsEndpoint := c.endpoint
	wsEndpoint = strings.Replace(wsEndpoint, "http://", "ws://", 1)
	wsEndpoint = strings.Replace(wsEndpoint, "https://", "wss://", 1)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := dialer.DialContext(ctx, wsEndpoint+"/api/stream", header)
	if err != nil {
		return nil, fmt.Errorf("websocket connect: %w", err)
	}
	defer conn.Close()

	// Close the connection when the context is cancelled so the blocked
	// read below unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if err := conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("send stream request: %w", err)
	}

	var content strings.Builder
	for {
		var frame StreamFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("read stream frame: %w", err)
		}

		switch frame.Type {
		case "token":
			content.WriteString(frame.Token)
			if onToken != nil {
				if err := onToken(frame.Token); err != nil {
					return nil, err
				}
			}
		case "done":
			return &StreamResult{
				Content:      content.String(),
				FinishReason: frame.FinishReason,
				Suggestions:  frame.Suggestions,
			}, nil
		case "error":
			return nil, fmt.Errorf("stream error: %s", frame.Message)
		default:
			return nil, fmt.Errorf("unexpected frame type %q", frame.Type)
		}
	}
}
