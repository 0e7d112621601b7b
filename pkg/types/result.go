// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// PatientRecord is a stored patient history entry keyed by identity.
type PatientRecord struct {
	FirstName string   `json:"first_name" yaml:"first_name"`
	LastName  string   `json:"last_name" yaml:"last_name"`
	IDNumber  string   `json:"id_number" yaml:"id_number"`
	History   []string `json:"history" yaml:"history"`
	Scans     []string `json:"scans" yaml:"scans"`
}

// PatientContext is the history resolved for a verified patient. A nil
// *PatientContext means nothing could be resolved.
type PatientContext struct {
	RecordFound   bool     `json:"record_found" yaml:"record_found"`
	History       []string `json:"history,omitempty" yaml:"history,omitempty"`
	RelevantScans []string `json:"relevant_scans,omitempty" yaml:"relevant_scans,omitempty"`
}

// GuardrailResult is the outcome of the red-flag screen.
type GuardrailResult struct {
	Triggered bool `json:"triggered" yaml:"triggered"`

	// ReasonCode is the code of the first matching predicate in table order.
	ReasonCode string `json:"reason_code,omitempty" yaml:"reason_code,omitempty"`

	// Reasons lists a human-readable line for every matching predicate.
	Reasons []string `json:"reasons,omitempty" yaml:"reasons,omitempty"`

	ForcedPriority *Priority `json:"forced_priority,omitempty" yaml:"forced_priority,omitempty"`
	TableVersion   string    `json:"table_version" yaml:"table_version"`
}

// RuleVersions records which rule tables produced a result.
type RuleVersions struct {
	Guardrail      string `json:"guardrail" yaml:"guardrail"`
	Priority       string `json:"priority,omitempty" yaml:"priority,omitempty"`
	Recommendation string `json:"recommendation" yaml:"recommendation"`
	Environment    string `json:"environment" yaml:"environment"`
}

// Summary sources.
const (
	SummarySourceStatic = "static"
)

// TriageResult is the final artifact of the pipeline and the only structure
// the summarization collaborator depends on.
type TriageResult struct {
	Priority       Priority        `json:"priority" yaml:"priority"`
	Recommendation Recommendation  `json:"recommendation" yaml:"recommendation"`
	Guardrail      GuardrailResult `json:"guardrail" yaml:"guardrail"`

	// Escalate signals that richer model-based reasoning should be invoked.
	Escalate         bool   `json:"escalate" yaml:"escalate"`
	EscalationReason string `json:"escalation_reason" yaml:"escalation_reason"`

	PatientVerified    bool     `json:"patient_verified" yaml:"patient_verified"`
	PatientRecordFound bool     `json:"patient_record_found" yaml:"patient_record_found"`
	Rationale          []string `json:"rationale" yaml:"rationale"`

	RuleVersions RuleVersions `json:"rule_versions" yaml:"rule_versions"`

	Summary       string `json:"summary" yaml:"summary"`
	SummarySource string `json:"summary_source" yaml:"summary_source"`
}
