// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package priority assigns an urgency tier when no guardrail fired. Rules
// are not mutually exclusive; the most urgent matching rule wins.
package priority

import (
	"fmt"
	"strings"

	"github.com/pdiddy/field-triage/internal/signals"
	"github.com/pdiddy/field-triage/pkg/types"
)

// TableName identifies the priority table in errors and rule versions.
const TableName = "priority"

// Rule maps a signal combination to a tier. Match returns a rationale line
// when the rule applies.
type Rule struct {
	ID       string
	Priority types.Priority
	Match    func(signals.Signals) (rationale string, ok bool)
}

// Table is a versioned rule list.
type Table struct {
	Version string
	Rules   []Rule
}

// Assignment is the outcome of priority assignment.
type Assignment struct {
	Priority     types.Priority
	MatchedRules []string
	Rationale    []string
}

// DefaultTable builds the built-in rule table from configuration.
func DefaultTable(cfg types.TriageConfig) Table {
	emergencySpO2 := cfg.EmergencySpO2Threshold
	if emergencySpO2 <= 0 {
		emergencySpO2 = 90
	}
	urgentSpO2 := cfg.UrgentSpO2Threshold
	if urgentSpO2 <= 0 {
		urgentSpO2 = 94
	}

	return Table{
		Version: "priority/v1",
		Rules: []Rule{
			keywordRule("EMERGENCY_KEYWORD", types.PriorityEmergency, cfg.EmergencyKeywords,
				"Emergency symptom detected"),
			spo2Rule("EMERGENCY_SPO2", types.PriorityEmergency, emergencySpO2,
				"Critical oxygen level"),
			keywordRule("URGENT_KEYWORD", types.PriorityUrgent, cfg.UrgentKeywords,
				"Potentially serious symptom pattern detected"),
			spo2Rule("URGENT_SPO2", types.PriorityUrgent, urgentSpO2,
				"Reduced oxygen level"),
			{
				ID:       "CHRONIC_ACUTE",
				Priority: types.PriorityUrgent,
				Match: func(s signals.Signals) (string, bool) {
					chronic := s.HistoryMentions(cfg.ChronicConditions)
					acute := s.Mentions(cfg.AcuteSymptoms)
					if len(chronic) == 0 || len(acute) == 0 {
						return "", false
					}
					return fmt.Sprintf("Known chronic condition (%s) with new acute symptom (%s).",
						strings.Join(chronic, ", "), strings.Join(acute, ", ")), true
				},
			},
			{
				ID:       "BASELINE",
				Priority: types.PriorityRoutine,
				Match: func(signals.Signals) (string, bool) {
					return "No hard emergency triggers detected from provided inputs.", true
				},
			},
		},
	}
}

func keywordRule(id string, p types.Priority, keywords []string, label string) Rule {
	return Rule{
		ID:       id,
		Priority: p,
		Match: func(s signals.Signals) (string, bool) {
			hits := s.Mentions(keywords)
			if len(hits) == 0 {
				return "", false
			}
			return fmt.Sprintf("%s: %s.", label, strings.Join(hits, ", ")), true
		},
	}
}

func spo2Rule(id string, p types.Priority, threshold int, label string) Rule {
	return Rule{
		ID:       id,
		Priority: p,
		Match: func(s signals.Signals) (string, bool) {
			if !s.SpO2Below(threshold) {
				return "", false
			}
			return fmt.Sprintf("%s: SpO2 %d%% below %d%%.", label, *s.SpO2, threshold), true
		},
	}
}

// Validate checks every rule carries an id, a valid tier and a matcher.
func (t Table) Validate() error {
	if len(t.Rules) == 0 {
		return &types.InconsistentRuleTableError{Table: TableName, Version: t.Version, Detail: "no rules"}
	}
	for i, r := range t.Rules {
		switch {
		case r.ID == "":
			return &types.InconsistentRuleTableError{Table: TableName, Version: t.Version, Detail: fmt.Sprintf("rule %d has no id", i)}
		case !r.Priority.Valid():
			return &types.InconsistentRuleTableError{Table: TableName, Version: t.Version, Detail: fmt.Sprintf("rule %s has invalid priority %d", r.ID, int(r.Priority))}
		case r.Match == nil:
			return &types.InconsistentRuleTableError{Table: TableName, Version: t.Version, Detail: "rule " + r.ID + " has no matcher"}
		}
	}
	return nil
}

// Assign evaluates every rule and returns the most urgent match. Rationale
// lines come only from rules at the winning tier. A table under which no rule
// matches is inconsistent.
func Assign(table Table, sig signals.Signals) (Assignment, error) {
	if err := table.Validate(); err != nil {
		return Assignment{}, err
	}

	type hit struct {
		id        string
		priority  types.Priority
		rationale string
	}
	var hits []hit
	var best types.Priority
	for _, r := range table.Rules {
		rationale, ok := r.Match(sig)
		if !ok {
			continue
		}
		hits = append(hits, hit{id: r.ID, priority: r.Priority, rationale: rationale})
		best = types.MaxPriority(best, r.Priority)
	}
	if len(hits) == 0 {
		return Assignment{}, &types.InconsistentRuleTableError{Table: TableName, Version: table.Version, Detail: "no rule matched; table needs a baseline rule"}
	}

	out := Assignment{Priority: best}
	for _, h := range hits {
		out.MatchedRules = append(out.MatchedRules, h.id)
		if h.priority == best && h.rationale != "" {
			out.Rationale = append(out.Rationale, h.rationale)
		}
	}
	if sig.HasScan {
		out.Rationale = append(out.Rationale, "Scan findings were included and considered for prioritization.")
	}
	return out, nil
}
