// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package signals derives the normalised view of an intake that the rule
// tables match against.
package signals

import (
	"strings"

	"github.com/pdiddy/field-triage/pkg/types"
)

// Signals is the lowercase text and vitals the rule tables read. Presentation
// covers what was reported for the current episode; History covers stored
// patient context.
type Signals struct {
	Presentation string
	History      string
	SpO2         *int
	HasScan      bool
}

// From builds Signals from an intake and optional patient context.
func From(in types.Intake, pctx *types.PatientContext) Signals {
	parts := make([]string, 0, 8)
	parts = append(parts, in.Symptoms...)
	parts = append(parts, in.SeverityIndicators...)
	parts = append(parts, in.Notes, in.ScanFindings)
	parts = append(parts, in.InterviewTranscript...)
	parts = append(parts, in.CameraSceneDescription)
	parts = append(parts, in.AbrasionFindings...)

	s := Signals{
		Presentation: join(parts),
		SpO2:         in.Vitals.SpO2Percent,
		HasScan:      strings.TrimSpace(in.ScanFindings) != "" || strings.TrimSpace(in.ScanImagePath) != "",
	}
	if pctx != nil {
		history := append(append([]string(nil), pctx.History...), pctx.RelevantScans...)
		s.History = join(history)
	}
	return s
}

// Mentions returns the terms that occur in the presentation text, in the
// order given.
func (s Signals) Mentions(terms []string) []string {
	return matchTerms(s.Presentation, terms)
}

// HistoryMentions returns the terms that occur in the history text.
func (s Signals) HistoryMentions(terms []string) []string {
	return matchTerms(s.History, terms)
}

// SpO2Below reports whether a measured saturation is below threshold.
func (s Signals) SpO2Below(threshold int) bool {
	return s.SpO2 != nil && *s.SpO2 < threshold
}

func matchTerms(text string, terms []string) []string {
	if text == "" {
		return nil
	}
	var hits []string
	for _, term := range terms {
		t := strings.ToLower(strings.TrimSpace(term))
		if t != "" && strings.Contains(text, t) {
			hits = append(hits, term)
		}
	}
	return hits
}

func join(parts []string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.ToLower(strings.Join(kept, " "))
}
