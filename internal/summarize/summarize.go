// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package summarize turns a finished TriageResult into prose for the field
// worker. Backends are interchangeable behind the Summarizer interface; the
// static renderer is the mandatory offline fallback and needs nothing beyond
// the TriageResult itself.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/field-triage/internal/secrets"
	"github.com/pdiddy/field-triage/pkg/types"
)

// ErrBackendUnavailable is wrapped by every backend failure: missing
// credentials, transport errors, non-2xx responses and empty completions.
var ErrBackendUnavailable = errors.New("summarization backend unavailable")

// Summarizer produces a plain-language summary of a triage result. The core
// never branches on which implementation answered.
type Summarizer interface {
	Name() string
	Summarize(ctx context.Context, result types.TriageResult) (string, error)
}

// Static renders the deterministic offline summary.
type Static struct{}

// Name returns "static".
func (Static) Name() string { return types.SummarySourceStatic }

// Summarize never fails.
func (Static) Summarize(_ context.Context, result types.TriageResult) (string, error) {
	return Render(result), nil
}

// Render synthesizes "Urgency: X. Immediate actions: …. Next step: …." from
// the result alone. Constraint notes are appended so a disallowed referral is
// never invisible in the summary.
func Render(result types.TriageResult) string {
	rec := result.Recommendation

	actions := "none listed."
	if len(rec.ImmediateActions) > 0 {
		actions = strings.Join(rec.ImmediateActions, " ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Urgency: %s. Immediate actions: %s Next step: %s.", result.Priority, actions, strings.TrimSuffix(rec.NextStep, "."))
	for _, n := range rec.ConstraintNotes {
		fmt.Fprintf(&b, " Not available: %s (%s) Instead: %s", n.Kind, strings.TrimSuffix(n.Reason, "."), n.Fallback)
	}
	return b.String()
}

// systemPrompt frames every model-backed summary.
const systemPrompt = "You are a medical triage assistant. Summarize this case for a field worker in plain language. " +
	"Do not provide a definitive diagnosis. Do not change the urgency level, the immediate actions or the next step."

// BuildPrompt renders the user prompt for model backends from TriageResult
// fields only. The raw intake is never included.
func BuildPrompt(result types.TriageResult) string {
	rec := result.Recommendation
	var b strings.Builder

	fmt.Fprintf(&b, "Urgency: %s\n", result.Priority)
	writeList(&b, "Rationale", result.Rationale)
	writeList(&b, "Immediate actions", rec.ImmediateActions)
	fmt.Fprintf(&b, "Next step: %s\n", rec.NextStep)

	var refs []string
	for _, r := range rec.Referrals {
		line := r.Description
		if r.Disposition == types.DispositionSubstituted {
			line += fmt.Sprintf(" (instead of %s: %s)", r.SubstitutedFor, r.Reason)
		}
		refs = append(refs, line)
	}
	writeList(&b, "Referrals", refs)

	var notes []string
	for _, n := range rec.ConstraintNotes {
		notes = append(notes, fmt.Sprintf("%s unavailable: %s Fallback: %s", n.Kind, n.Reason, n.Fallback))
	}
	writeList(&b, "Constraints", notes)
	writeList(&b, "Environment guidance", rec.EnvironmentGuidance)
	writeList(&b, "Guardrail reasons", result.Guardrail.Reasons)

	if !result.PatientRecordFound {
		b.WriteString("Patient history: no prior record found in the local store.\n")
	}
	return b.String()
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", label)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

// New selects the backend named by cfg.Backend. The static backend returns
// nil: the orchestrator's own fallback renders the summary.
func New(ctx context.Context, cfg types.SummaryConfig, sec secrets.Secrets) (Summarizer, error) {
	switch cfg.Backend {
	case "", types.SummaryStatic:
		return Static{}, nil
	case types.SummaryOpenAI:
		b, err := NewOpenAI(cfg, apiKey(cfg, sec, secrets.OpenAIAPIKey))
		if err != nil {
			return nil, err
		}
		return b, nil
	case types.SummaryGemini:
		b, err := NewGemini(ctx, cfg, apiKey(cfg, sec, secrets.GeminiAPIKey))
		if err != nil {
			return nil, err
		}
		return b, nil
	case types.SummaryLocal:
		return NewLocal(cfg), nil
	default:
		return nil, fmt.Errorf("unknown summary backend %q", cfg.Backend)
	}
}

func apiKey(cfg types.SummaryConfig, sec secrets.Secrets, key string) string {
	if cfg.APIKey != "" {
		return cfg.APIKey
	}
	return sec.Get(key)
}

func unavailable(backend string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrBackendUnavailable, backend, err)
}
