package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"persona-research/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*NoopAIAdapter)(nil)

const noopModel = "noop-persona"

// NoopAIAdapter is an offline backend for local runs without provider keys.
// It echoes a deterministic outline built from the last user message.
type NoopAIAdapter struct {
	log    *zerolog.Logger
	tokens *TokenCounter
}

func NewNoopAIAdapter(logger *zerolog.Logger) *NoopAIAdapter {
	l := logger.With().Str("component", "noop-ai").Logger()
	return &NoopAIAdapter{log: &l, tokens: NewTokenCounter()}
}

func (a *NoopAIAdapter) ListModels(ctx context.Context) ([]string, error) {
	return []string{noopModel}, nil
}

func (a *NoopAIAdapter) GetModelInfo(model string) (adapter.ModelInfo, error) {
	return adapter.ModelInfo{
		Name:        noopModel,
		Description: "offline persona outline",
		MaxTokens:   8192,
		Supports:    []string{"text"},
	}, nil
}

func (a *NoopAIAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return a.tokens.CountMessages(noopModel, messages), nil
}

func (a *NoopAIAdapter) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	text, _, err := a.ChatWithUsage(ctx, model, messages)
	return text, err
}

func (a *NoopAIAdapter) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	if err := ctx.Err(); err != nil {
		return "", adapter.Usage{}, err
	}
	var prompt string
	for i := len(messages) - 1; i >= 0; i-- {
		if strings.EqualFold(messages[i].Role, "user") {
			prompt = messages[i].Content
			break
		}
	}

	var b strings.Builder
	b.WriteString("# Customer Persona (offline draft)\n\n")
	sections := 0
	for _, line := range strings.Split(prompt, "\n") {
		if strings.HasPrefix(line, "## ") {
			sections++
			fmt.Fprintf(&b, "- Evidence reviewed: %s\n", strings.TrimPrefix(line, "## "))
		}
	}
	if sections == 0 {
		b.WriteString("- No evidence sections supplied\n")
	}

	out := b.String()
	in := a.tokens.CountMessages(noopModel, messages)
	gen := a.tokens.Count(noopModel, out)
	a.log.Debug().Int("sections", sections).Int("prompt_tokens", in).Msg("noop persona draft")
	return out, adapter.Usage{PromptTokens: in, CompletionTokens: gen, TotalTokens: in + gen}, nil
}
