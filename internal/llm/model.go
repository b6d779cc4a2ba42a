// Package llm wraps model providers and the streaming response pipeline.
package llm

import (
	"context"
	"encoding/json"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/nvoronin/periscope/internal/config"
	"github.com/nvoronin/periscope/internal/models"
	"github.com/nvoronin/periscope/internal/tools"
)

// Supported providers.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
)

// Model wraps a langchaingo LLM for chat generation.
type Model struct {
	llm       llms.Model
	modelName string
	executors *tools.Executors
}

// NewModel creates an LLM model based on configuration.
func NewModel(ctx context.Context, cfg config.Config) (*Model, error) {
	return newModel(ctx, cfg, cfg.Model)
}

// NewSuggestModel creates the (typically smaller) model used for
// follow-up question generation.
func NewSuggestModel(ctx context.Context, cfg config.Config) (*Model, error) {
	return newModel(ctx, cfg, cfg.SuggestModel)
}

func newModel(ctx context.Context, cfg config.Config, modelName string) (*Model, error) {
	var model llms.Model
	var err error

	switch cfg.Provider {
	case ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(modelName),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case ProviderOpenAI:
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIKey),
			openai.WithModel(modelName),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case ProviderAnthropic:
		if cfg.AnthropicKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicKey),
			anthropic.WithModel(modelName),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case ProviderBedrock:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := bedrockruntime.NewFromConfig(awsCfg)
		name := modelName
		if cfg.BedrockModelARN != "" {
			name = cfg.BedrockModelARN
		}
		model, err = bedrock.New(
			bedrock.WithClient(client),
			bedrock.WithModel(name),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}

	return &Model{
		llm:       model,
		modelName: modelName,
		executors: tools.NewExecutors(&tools.DatetimeExecutor{}),
	}, nil
}

// Name returns the model name.
func (m *Model) Name() string {
	return m.modelName
}

// Generate generates text from a single prompt, no streaming.
func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	response, err := llms.GenerateFromSinglePrompt(ctx, m.llm, prompt)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return response, nil
}

// GenerateWithSystem generates text with a system prompt, no streaming.
func (m *Model) GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	response, err := m.llm.GenerateContent(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate with system: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}
	return response.Choices[0].Content, nil
}

// Completion is the settled result of a chat generation.
type Completion struct {
	Content      string
	FinishReason string
}

// chatMessages converts persisted history into langchaingo messages with
// the system prompt first.
func chatMessages(systemPrompt string, history []models.Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(history)+1)
	if systemPrompt != "" {
		out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	}
	for _, msg := range history {
		switch msg.Role {
		case models.RoleAssistant:
			out = append(out, llms.TextParts(llms.ChatMessageTypeAI, msg.Content))
		case models.RoleSystem:
			out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, msg.Content))
		default:
			out = append(out, llms.TextParts(llms.ChatMessageTypeHuman, msg.Content))
		}
	}
	return out
}

// maxToolTurns bounds the tool round trips of one chat run.
const maxToolTurns = 5

// StreamChat runs a chat completion over the history, emitting tokens
// through onToken as they arrive. Tools are offered to the model when
// the mode carries any; when the model elects a tool, the call is
// executed locally and its result fed back until the model produces a
// text answer.
func (m *Model) StreamChat(
	ctx context.Context,
	systemPrompt string,
	history []models.Message,
	offered []llms.Tool,
	onToken func(ctx context.Context, chunk []byte) error,
) (*Completion, error) {
	opts := []llms.CallOption{}
	if onToken != nil {
		opts = append(opts, llms.WithStreamingFunc(onToken))
	}
	if len(offered) > 0 {
		opts = append(opts, llms.WithTools(offered))
	}

	messages := chatMessages(systemPrompt, history)
	for turn := 0; turn < maxToolTurns; turn++ {
		response, err := m.llm.GenerateContent(ctx, messages, opts...)
		if err != nil {
			return nil, fmt.Errorf("stream chat: %w", err)
		}
		if len(response.Choices) == 0 {
			return nil, fmt.Errorf("no response choices")
		}

		choice := response.Choices[0]
		if len(choice.ToolCalls) == 0 {
			return &Completion{
				Content:      choice.Content,
				FinishReason: choice.StopReason,
			}, nil
		}

		messages = append(messages, toolCallMessage(choice))
		messages = append(messages, m.runToolCalls(ctx, choice.ToolCalls)...)
	}

	return nil, fmt.Errorf("model kept calling tools after %d turns", maxToolTurns)
}

// toolCallMessage echoes the model's tool elections back into the
// transcript, as providers require before tool results.
func toolCallMessage(choice *llms.ContentChoice) llms.MessageContent {
	msg := llms.MessageContent{Role: llms.ChatMessageTypeAI}
	if choice.Content != "" {
		msg.Parts = append(msg.Parts, llms.TextContent{Text: choice.Content})
	}
	for _, call := range choice.ToolCalls {
		msg.Parts = append(msg.Parts, call)
	}
	return msg
}

// runToolCalls executes each elected tool and wraps the results as tool
// messages. Execution failures go back to the model as an error payload
// so it can answer in prose instead of aborting the run.
func (m *Model) runToolCalls(ctx context.Context, calls []llms.ToolCall) []llms.MessageContent {
	executors := m.executors
	if executors == nil {
		executors = tools.NewExecutors()
	}

	out := make([]llms.MessageContent, 0, len(calls))
	for _, call := range calls {
		if call.FunctionCall == nil {
			continue
		}
		name := call.FunctionCall.Name
		result, err := executors.Execute(ctx, name, json.RawMessage(call.FunctionCall.Arguments))
		content := string(result)
		if err != nil {
			content = fmt.Sprintf(`{"error": %q}`, err.Error())
		}
		out = append(out, llms.MessageContent{
			Role: llms.ChatMessageTypeTool,
			Parts: []llms.ContentPart{llms.ToolCallResponse{
				ToolCallID: call.ID,
				Name:       name,
				Content:    content,
			}},
		})
	}
	return out
}
