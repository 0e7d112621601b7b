// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// TriageConfig holds the thresholds and keyword lists the default rule tables
// are built from.
type TriageConfig struct {
	// EmergencyKeywords force an emergency tier when found in the presentation.
	EmergencyKeywords []string `json:"emergency_keywords" yaml:"emergency_keywords"`

	// UrgentKeywords raise the tier to urgent.
	UrgentKeywords []string `json:"urgent_keywords" yaml:"urgent_keywords"`

	// ChronicConditions and AcuteSymptoms together raise the tier to urgent
	// when a known chronic condition meets a new acute symptom.
	ChronicConditions []string `json:"chronic_conditions" yaml:"chronic_conditions"`
	AcuteSymptoms     []string `json:"acute_symptoms" yaml:"acute_symptoms"`

	// EmergencySpO2Threshold is the saturation below which a case is an emergency (default 90).
	EmergencySpO2Threshold int `json:"emergency_spo2_threshold" yaml:"emergency_spo2_threshold"`

	// UrgentSpO2Threshold is the saturation below which a case is urgent (default 94).
	UrgentSpO2Threshold int `json:"urgent_spo2_threshold" yaml:"urgent_spo2_threshold"`

	// DisableEscalation turns off the model-escalation signal for every tier.
	DisableEscalation bool `json:"disable_escalation" yaml:"disable_escalation"`
}

// DefaultTriageConfig returns the built-in keyword lists and thresholds.
func DefaultTriageConfig() TriageConfig {
	return TriageConfig{
		EmergencyKeywords: []string{
			"severe chest pain",
			"difficulty breathing",
			"shortness of breath",
			"unconscious",
			"seizure",
			"stroke",
			"one-sided weakness",
			"heavy bleeding",
			"coughing blood",
			"suicidal",
		},
		UrgentKeywords: []string{
			"chest pain",
			"chest pressure",
			"pain in chest",
			"fever",
			"persistent vomiting",
			"dehydration",
			"worsening cough",
			"blood in urine",
			"abdominal pain",
			"pregnant with pain",
		},
		ChronicConditions: []string{
			"copd",
			"asthma",
			"heart failure",
			"diabetes",
			"chronic kidney disease",
		},
		AcuteSymptoms: []string{
			"cough",
			"fever",
			"vomiting",
			"wheez",
			"dizz",
		},
		EmergencySpO2Threshold: 90,
		UrgentSpO2Threshold:    94,
	}
}

// HTTPConfig holds shared HTTP settings for backends reached over the network.
type HTTPConfig struct {
	// Timeout bounds a single backend call.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Endpoint overrides the backend base URL (local model servers, proxies).
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
}

// AIConfig holds shared settings for summarization backends that call a model.
type AIConfig struct {
	// Model is the model identifier (e.g. "gpt-4o-mini", "gemini-2.0-flash").
	Model string `json:"model" yaml:"model"`

	// APIKey authenticates against hosted backends.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of retry attempts for rate-limited calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// SummaryBackend selects the summarization collaborator.
type SummaryBackend string

const (
	SummaryStatic SummaryBackend = "static"
	SummaryOpenAI SummaryBackend = "openai"
	SummaryGemini SummaryBackend = "gemini"
	SummaryLocal  SummaryBackend = "local"
)

// SummaryConfig holds settings for the summarization stage.
type SummaryConfig struct {
	AIConfig   `yaml:",inline"`
	HTTPConfig `yaml:",inline"`

	Backend SummaryBackend `json:"backend" yaml:"backend"`
}

// StoreDriver selects the patient record store implementation.
type StoreDriver string

const (
	StoreFile       StoreDriver = "file"
	StoreSQLite     StoreDriver = "sqlite3"
	StoreSQLitePure StoreDriver = "sqlite"
	StorePostgres   StoreDriver = "postgres"
)

// PatientStoreConfig locates the read-only patient record store.
type PatientStoreConfig struct {
	Driver StoreDriver `json:"driver" yaml:"driver"`

	// Path is the record file or SQLite database path.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// DSN is the Postgres connection string.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// AuditConfig locates the audit log database.
type AuditConfig struct {
	Path string `json:"path" yaml:"path"`
}

// PipelineConfig groups every setting the CLI resolves before running triage.
type PipelineConfig struct {
	// Environment is the deployment default used when an intake carries no tag.
	Environment EnvironmentType `json:"environment" yaml:"environment"`

	// LocationLabel is a free-form site name shown in reports.
	LocationLabel string `json:"location_label" yaml:"location_label"`

	// ProfilesPath optionally replaces the built-in environment policy tables.
	ProfilesPath string `json:"profiles_path,omitempty" yaml:"profiles_path,omitempty"`

	Triage       TriageConfig       `json:"triage" yaml:"triage"`
	Summary      SummaryConfig      `json:"summary" yaml:"summary"`
	PatientStore PatientStoreConfig `json:"patient_store" yaml:"patient_store"`
	Audit        AuditConfig        `json:"audit" yaml:"audit"`
}
