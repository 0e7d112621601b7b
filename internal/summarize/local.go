// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/field-triage/internal/httputil"
	"github.com/pdiddy/field-triage/pkg/types"
)

const (
	defaultLocalEndpoint = "http://localhost:11434"
	defaultLocalModel    = "medgemma"
	defaultLocalTimeout  = 60 * time.Second
)

// LocalBackend talks to an Ollama-compatible model server on the device or
// the clinic network. 429 and 503 responses are retried.
type LocalBackend struct {
	endpoint   string
	model      string
	maxRetries int
	client     *http.Client
}

type generateRequest struct {
	Model  string `json:"model"`
	System string `json:"system"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// NewLocal builds a local backend from cfg, applying defaults for the
// endpoint, model and timeout.
func NewLocal(cfg types.SummaryConfig) *LocalBackend {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultLocalEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = defaultLocalModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultLocalTimeout
	}
	return &LocalBackend{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		model:      model,
		maxRetries: cfg.MaxRetries,
		client:     &http.Client{Timeout: timeout},
	}
}

// Name returns "local".
func (b *LocalBackend) Name() string { return string(types.SummaryLocal) }

// Summarize POSTs a non-streaming generate request and returns the response text.
func (b *LocalBackend) Summarize(ctx context.Context, result types.TriageResult) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  b.model,
		System: systemPrompt,
		Prompt: BuildPrompt(result),
	})
	if err != nil {
		return "", fmt.Errorf("encoding generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httputil.DoWithRetry(ctx, b.client, req, b.maxRetries)
	if err != nil {
		return "", unavailable("local", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", unavailable("local", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", unavailable("local", fmt.Errorf("decoding response: %w", err))
	}
	if out.Error != "" {
		return "", unavailable("local", errors.New(out.Error))
	}
	text := strings.TrimSpace(out.Response)
	if text == "" {
		return "", unavailable("local", errors.New("empty completion"))
	}
	return text, nil
}
