package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/nvoronin/periscope/internal/models"
)

type fakeStreamer struct {
	mu       sync.Mutex
	tokens   []string
	finish   string
	err      error
	running  chan struct{}
	release  chan struct{}
	runCount int
}

func (f *fakeStreamer) StreamChat(
	ctx context.Context,
	systemPrompt string,
	history []models.Message,
	tools []llms.Tool,
	onToken func(ctx context.Context, chunk []byte) error,
) (*Completion, error) {
	f.mu.Lock()
	f.runCount++
	f.mu.Unlock()

	if f.running != nil {
		close(f.running)
		f.running = nil
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}

	var content strings.Builder
	for _, tok := range f.tokens {
		if onToken != nil {
			if err := onToken(ctx, []byte(tok)); err != nil {
				return nil, err
			}
		}
		content.WriteString(tok)
	}
	return &Completion{Content: content.String(), FinishReason: f.finish}, nil
}

type fakeGenerator struct {
	output string
	err    error
	calls  int
}

func (f *fakeGenerator) GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	return f.output, f.err
}

func TestConsumerRun(t *testing.T) {
	ctx := context.Background()

	t.Run("streams tokens and settles", func(t *testing.T) {
		streamer := &fakeStreamer{tokens: []string{"Vien", "na."}, finish: "stop"}
		consumer := NewConsumer(streamer, nil, nil, nil)

		var got []string
		result, err := consumer.Run(ctx, Request{}, func(token string) error {
			got = append(got, token)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"Vien", "na."}, got)
		assert.Equal(t, "Vienna.", result.Content)
		assert.Equal(t, "stop", result.FinishReason)
		assert.Equal(t, StateSettled, consumer.State())
	})

	t.Run("rejects a second run while streaming", func(t *testing.T) {
		streamer := &fakeStreamer{
			finish:  "stop",
			running: make(chan struct{}),
			release: make(chan struct{}),
		}
		consumer := NewConsumer(streamer, nil, nil, nil)
		running := streamer.running
		release := streamer.release

		done := make(chan error, 1)
		go func() {
			_, err := consumer.Run(ctx, Request{}, nil)
			done <- err
		}()
		<-running

		_, err := consumer.Run(ctx, Request{}, nil)
		assert.ErrorIs(t, err, ErrBusy)

		close(release)
		require.NoError(t, <-done)
		assert.Equal(t, 1, streamer.runCount)
	})

	t.Run("model failure settles as errored", func(t *testing.T) {
		streamer := &fakeStreamer{err: errors.New("upstream down")}
		consumer := NewConsumer(streamer, nil, nil, nil)

		_, err := consumer.Run(ctx, Request{}, nil)
		require.Error(t, err)
		assert.Equal(t, StateErrored, consumer.State())

		// An errored consumer accepts the next run.
		streamer.err = nil
		streamer.finish = "stop"
		_, err = consumer.Run(ctx, Request{}, nil)
		assert.NoError(t, err)
		assert.Equal(t, StateSettled, consumer.State())
	})

	t.Run("cancellation aborts the stream", func(t *testing.T) {
		streamer := &fakeStreamer{
			running: make(chan struct{}),
			release: make(chan struct{}),
		}
		consumer := NewConsumer(streamer, nil, nil, nil)
		running := streamer.running

		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() {
			_, err := consumer.Run(runCtx, Request{}, nil)
			done <- err
		}()
		<-running
		cancel()

		err := <-done
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, StateIdle, consumer.State())

		// An aborted consumer accepts the next run.
		streamer.release = nil
		streamer.tokens = []string{"answer"}
		streamer.finish = "stop"
		result, err := consumer.Run(ctx, Request{}, nil)
		require.NoError(t, err)
		assert.Equal(t, "answer", result.Content)
		assert.Equal(t, StateSettled, consumer.State())
	})

	t.Run("attaches suggestions after a clean finish", func(t *testing.T) {
		streamer := &fakeStreamer{tokens: []string{"answer"}, finish: "stop"}
		suggester := NewSuggester(&fakeGenerator{
			output: `["How does leader election work?", "What about log compaction?", "Compare raft and paxos?"]`,
		})
		consumer := NewConsumer(streamer, suggester, nil, nil)

		result, err := consumer.Run(ctx, Request{}, nil)
		require.NoError(t, err)
		assert.Len(t, result.Suggestions, 3)
	})

	t.Run("no suggestions for an empty answer", func(t *testing.T) {
		streamer := &fakeStreamer{finish: "stop"}
		generator := &fakeGenerator{output: `["a?", "b?", "c?"]`}
		consumer := NewConsumer(streamer, NewSuggester(generator), nil, nil)

		result, err := consumer.Run(ctx, Request{}, nil)
		require.NoError(t, err)
		assert.Empty(t, result.Suggestions)
		assert.Equal(t, 0, generator.calls)
	})

	t.Run("no suggestions without a clean finish reason", func(t *testing.T) {
		for _, reason := range []string{"", "tool_calls", "content_filter"} {
			streamer := &fakeStreamer{tokens: []string{"answer"}, finish: reason}
			generator := &fakeGenerator{output: `["a?", "b?", "c?"]`}
			consumer := NewConsumer(streamer, NewSuggester(generator), nil, nil)

			result, err := consumer.Run(ctx, Request{}, nil)
			require.NoError(t, err)
			assert.Empty(t, result.Suggestions, "reason %q", reason)
			assert.Equal(t, 0, generator.calls, "reason %q", reason)
		}
	})

	t.Run("suggestion failure does not fail the run", func(t *testing.T) {
		streamer := &fakeStreamer{tokens: []string{"answer"}, finish: "stop"}
		suggester := NewSuggester(&fakeGenerator{err: errors.New("model down")})
		consumer := NewConsumer(streamer, suggester, nil, nil)

		result, err := consumer.Run(ctx, Request{}, nil)
		require.NoError(t, err)
		assert.Empty(t, result.Suggestions)
		assert.Equal(t, "answer", result.Content)
	})
}

func TestParseSuggestions(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr bool
	}{
		{
			name: "clean array",
			raw:  `["a?", "b?", "c?"]`,
			want: []string{"a?", "b?", "c?"},
		},
		{
			name: "code fenced",
			raw:  "```json\n[\"a?\", \"b?\", \"c?\"]\n```",
			want: []string{"a?", "b?", "c?"},
		},
		{
			name: "prose around array",
			raw:  `Here are some questions: ["a?", "b?"] hope that helps`,
			want: []string{"a?", "b?"},
		},
		{
			name: "over three entries trimmed",
			raw:  `["a?", "b?", "c?", "d?"]`,
			want: []string{"a?", "b?", "c?"},
		},
		{
			name: "blank entries dropped",
			raw:  `["a?", "  ", "c?"]`,
			want: []string{"a?", "c?"},
		},
		{
			name:    "no array",
			raw:     "I cannot help with that",
			wantErr: true,
		},
		{
			name:    "all blank",
			raw:     `["", " "]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSuggestions(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
