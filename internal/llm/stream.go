package llm

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/nvoronin/periscope/internal/metrics"
	"github.com/nvoronin/periscope/internal/models"
)

// ErrBusy is returned when a stream is requested while another one is
// still running on the same consumer.
var ErrBusy = errors.New("a response stream is already running")

// State is the consumer's lifecycle position.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateSettled
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateSettled:
		return "settled"
	case StateErrored:
		return "errored"
	}
	return "unknown"
}

// ChatStreamer produces a streamed chat completion. *Model implements it.
type ChatStreamer interface {
	StreamChat(ctx context.Context, systemPrompt string, history []models.Message, tools []llms.Tool, onToken func(ctx context.Context, chunk []byte) error) (*Completion, error)
}

// Request is one model run over a chat's history.
type Request struct {
	SystemPrompt string
	History      []models.Message
	Tools        []llms.Tool
}

// Result is the settled outcome of a run, with best-effort follow-up
// suggestions attached when the run finished cleanly.
type Result struct {
	Content      string
	FinishReason string
	Suggestions  []string
}

// Consumer drives one model run at a time: idle -> streaming ->
// settled/errored. A second Run while streaming fails with ErrBusy
// instead of interleaving two streams.
type Consumer struct {
	model     ChatStreamer
	suggester *Suggester
	collector *metrics.Collector
	logger    *slog.Logger

	mu    sync.Mutex
	state State
}

// NewConsumer creates a consumer. suggester and collector may be nil.
func NewConsumer(model ChatStreamer, suggester *Suggester, collector *metrics.Collector, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Consumer{
		model:     model,
		suggester: suggester,
		collector: collector,
		logger:    logger,
	}
}

// State returns the consumer's current state.
func (c *Consumer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run executes one model run, forwarding tokens to onToken. Cancel the
// context to abort the stream; an aborted consumer returns to idle and
// accepts the next Run.
func (c *Consumer) Run(ctx context.Context, req Request, onToken func(token string) error) (*Result, error) {
	c.mu.Lock()
	if c.state == StateStreaming {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.state = StateStreaming
	c.mu.Unlock()

	start := time.Now()
	var streamFn func(ctx context.Context, chunk []byte) error
	if onToken != nil {
		streamFn = func(ctx context.Context, chunk []byte) error {
			return onToken(string(chunk))
		}
	}

	completion, err := c.model.StreamChat(ctx, req.SystemPrompt, req.History, req.Tools, streamFn)
	if err != nil {
		// A cancelled run is an abort, not a failure.
		if ctx.Err() != nil {
			c.setState(StateIdle)
		} else {
			c.setState(StateErrored)
		}
		return nil, err
	}

	if c.collector != nil {
		c.collector.RecordTiming(metrics.OpLLMStream, time.Since(start))
	}

	result := &Result{
		Content:      completion.Content,
		FinishReason: completion.FinishReason,
	}

	// Follow-up suggestions only after a clean finish with actual
	// output. Failures here never fail the run.
	if c.suggester != nil && completion.Content != "" && finishedCleanly(completion.FinishReason) {
		suggestStart := time.Now()
		suggestions, err := c.suggester.Suggest(ctx, req.History, completion.Content)
		if err != nil {
			c.logger.Warn("suggestion generation failed", "error", err)
		} else {
			result.Suggestions = suggestions
			if c.collector != nil {
				c.collector.RecordTiming(metrics.OpLLMSuggest, time.Since(suggestStart))
			}
		}
	}

	c.setState(StateSettled)
	return result, nil
}

func (c *Consumer) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// finishedCleanly reports whether the run ended with a completed answer:
// "stop"/"length" and their Anthropic equivalents. Anything else (tool
// elections, content filters, absent reason) is not a settled answer.
func finishedCleanly(reason string) bool {
	switch reason {
	case "stop", "length", "end_turn", "max_tokens":
		return true
	}
	return false
}
