package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nvoronin/periscope/internal/models"
)

// SuggestionCount is how many follow-up questions a suggestion run
// produces.
const SuggestionCount = 3

const suggestSystemPrompt = `You generate follow-up questions for a conversational search app.
Given the conversation so far and the assistant's latest answer, propose exactly 3 short follow-up questions the user is likely to ask next.
- Each question must be self-contained and under 12 words.
- Do not repeat questions already asked in the conversation.
- Respond with ONLY a JSON array of 3 strings, no prose, no code fences.`

// Generator produces text from a system and user prompt. *Model
// implements it.
type Generator interface {
	GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Suggester produces follow-up question suggestions after a settled
// response.
type Suggester struct {
	model Generator
}

// NewSuggester creates a suggester over the given model.
func NewSuggester(model Generator) *Suggester {
	return &Suggester{model: model}
}

// Suggest generates follow-up questions from the conversation and the
// assistant's latest answer.
func (s *Suggester) Suggest(ctx context.Context, history []models.Message, answer string) ([]string, error) {
	var b strings.Builder
	for _, msg := range history {
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
	}
	fmt.Fprintf(&b, "assistant: %s\n", answer)

	raw, err := s.model.GenerateWithSystem(ctx, suggestSystemPrompt, b.String())
	if err != nil {
		return nil, fmt.Errorf("generate suggestions: %w", err)
	}

	questions, err := parseSuggestions(raw)
	if err != nil {
		return nil, err
	}
	return questions, nil
}

// parseSuggestions extracts the question list from model output. Models
// wrap JSON in code fences or prose often enough that this scans for the
// array instead of trusting the whole output.
func parseSuggestions(raw string) ([]string, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON array in suggestion output")
	}

	var questions []string
	if err := json.Unmarshal([]byte(raw[start:end+1]), &questions); err != nil {
		return nil, fmt.Errorf("parse suggestions: %w", err)
	}

	cleaned := make([]string, 0, SuggestionCount)
	for _, q := range questions {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		cleaned = append(cleaned, q)
		if len(cleaned) == SuggestionCount {
			break
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("empty suggestion list")
	}
	return cleaned, nil
}
