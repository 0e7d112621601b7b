// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package summarize

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pdiddy/field-triage/pkg/types"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIBackend summarizes through the OpenAI chat completion API or any
// server that speaks it (cfg.Endpoint overrides the base URL).
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

// NewOpenAI builds an OpenAI backend. A missing API key is reported as
// ErrBackendUnavailable.
func NewOpenAI(cfg types.SummaryConfig, apiKey string) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, unavailable("openai", errors.New("no API key configured"))
	}
	config := openai.DefaultConfig(apiKey)
	if cfg.Endpoint != "" {
		config.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIBackend{client: openai.NewClientWithConfig(config), model: model}, nil
}

// Name returns "openai".
func (b *OpenAIBackend) Name() string { return string(types.SummaryOpenAI) }

// Summarize sends the prompt built from result and returns the first choice.
func (b *OpenAIBackend) Summarize(ctx context.Context, result types.TriageResult) (string, error) {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(result)},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", unavailable("openai", err)
	}
	if len(resp.Choices) == 0 {
		return "", unavailable("openai", errors.New("no choices returned"))
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", unavailable("openai", errors.New("empty completion"))
	}
	return text, nil
}
