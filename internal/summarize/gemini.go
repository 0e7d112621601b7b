// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package summarize

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"

	"github.com/pdiddy/field-triage/pkg/types"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiBackend summarizes through the Gemini API. Hosted MedGemma-family
// models are reached the same way by setting the model name.
type GeminiBackend struct {
	client *genai.Client
	model  string
}

// NewGemini builds a Gemini backend. A missing API key is reported as
// ErrBackendUnavailable.
func NewGemini(ctx context.Context, cfg types.SummaryConfig, apiKey string) (*GeminiBackend, error) {
	if apiKey == "" {
		return nil, unavailable("gemini", errors.New("no API key configured"))
	}
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, unavailable("gemini", err)
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiBackend{client: client, model: model}, nil
}

// Name returns "gemini".
func (b *GeminiBackend) Name() string { return string(types.SummaryGemini) }

// Summarize generates content for the prompt built from result.
func (b *GeminiBackend) Summarize(ctx context.Context, result types.TriageResult) (string, error) {
	resp, err := b.client.Models.GenerateContent(ctx, b.model, genai.Text(BuildPrompt(result)), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.2),
	})
	if err != nil {
		return "", unavailable("gemini", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", unavailable("gemini", errors.New("empty completion"))
	}
	return text, nil
}
