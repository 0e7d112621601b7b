// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package guardrail screens an intake for hard emergency red flags. A
// triggered guardrail forces the emergency tier and bypasses priority
// assignment entirely.
package guardrail

import (
	"fmt"
	"strings"

	"github.com/pdiddy/field-triage/internal/signals"
	"github.com/pdiddy/field-triage/pkg/types"
)

// TableName identifies the guardrail table in errors and rule versions.
const TableName = "guardrail"

// Predicate is one red-flag check. Terms are matched against the presentation
// text; Check, when set, inspects anything else (vitals, history). A predicate
// matches when either reports a hit.
type Predicate struct {
	Code  string
	Terms []string
	Check func(signals.Signals) (reason string, ok bool)
}

// Table is an ordered, versioned list of predicates. Order only affects which
// code is reported first; any match triggers.
type Table struct {
	Version    string
	Predicates []Predicate
}

// DefaultTable returns the built-in red-flag list.
func DefaultTable(cfg types.TriageConfig) Table {
	spo2Threshold := cfg.EmergencySpO2Threshold
	if spo2Threshold <= 0 {
		spo2Threshold = 90
	}

	return Table{
		Version: "guardrail/v1",
		Predicates: []Predicate{
			{Code: "LOSS_OF_CONSCIOUSNESS", Terms: []string{"unconscious"}},
			{Code: "SEIZURE", Terms: []string{"seizure"}},
			{Code: "STROKE", Terms: []string{"stroke", "one-sided weakness"}},
			{Code: "SUICIDAL_INTENT", Terms: []string{"suicidal"}},
			{Code: "HEMOPTYSIS", Terms: []string{"coughing blood"}},
			{Code: "SEVERE_BLEEDING", Terms: []string{"heavy bleeding", "possible active bleeding signal detected"}},
			{Code: "SEVERE_CHEST_PAIN", Terms: []string{"severe chest pain"}},
			{Code: "RESPIRATORY_DISTRESS", Terms: []string{"shortness of breath", "difficulty breathing"}},
			{
				Code: "CRITICAL_SPO2",
				Check: func(s signals.Signals) (string, bool) {
					if !s.SpO2Below(spo2Threshold) {
						return "", false
					}
					return fmt.Sprintf("Detected critical SpO2: %d%% below emergency threshold %d%%.", *s.SpO2, spo2Threshold), true
				},
			},
		},
	}
}

// Validate checks that the table can be evaluated.
func (t Table) Validate() error {
	if len(t.Predicates) == 0 {
		return &types.InconsistentRuleTableError{Table: TableName, Version: t.Version, Detail: "no predicates"}
	}
	seen := make(map[string]bool, len(t.Predicates))
	for i, p := range t.Predicates {
		if p.Code == "" {
			return &types.InconsistentRuleTableError{Table: TableName, Version: t.Version, Detail: fmt.Sprintf("predicate %d has no code", i)}
		}
		if seen[p.Code] {
			return &types.InconsistentRuleTableError{Table: TableName, Version: t.Version, Detail: "duplicate predicate code " + p.Code}
		}
		seen[p.Code] = true
		if len(p.Terms) == 0 && p.Check == nil {
			return &types.InconsistentRuleTableError{Table: TableName, Version: t.Version, Detail: "predicate " + p.Code + " matches nothing"}
		}
	}
	return nil
}

// Evaluate validates the intake and then runs every predicate. All matches
// are reported in Reasons; ReasonCode is the first match in table order.
// The orchestrator validates the intake as its own step and calls Screen
// directly; Evaluate is for callers holding only a raw intake.
func Evaluate(table Table, in types.Intake, pctx *types.PatientContext) (types.GuardrailResult, error) {
	if err := in.Validate(); err != nil {
		return types.GuardrailResult{}, err
	}
	if err := table.Validate(); err != nil {
		return types.GuardrailResult{}, err
	}
	return Screen(table, signals.From(in, pctx)), nil
}

// Screen runs the predicates against precomputed signals. The table must
// already be valid.
func Screen(table Table, sig signals.Signals) types.GuardrailResult {
	result := types.GuardrailResult{TableVersion: table.Version}

	for _, p := range table.Predicates {
		var reasons []string
		for _, term := range sig.Mentions(p.Terms) {
			reasons = append(reasons, fmt.Sprintf("Detected guardrail symptom: %s.", strings.ToLower(term)))
		}
		if p.Check != nil {
			if reason, ok := p.Check(sig); ok {
				reasons = append(reasons, reason)
			}
		}
		if len(reasons) == 0 {
			continue
		}
		if !result.Triggered {
			result.Triggered = true
			result.ReasonCode = p.Code
		}
		result.Reasons = append(result.Reasons, reasons...)
	}

	if result.Triggered {
		forced := types.PriorityEmergency
		result.ForcedPriority = &forced
	}
	return result
}
