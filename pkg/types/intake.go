// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// EnvironmentType tags the deployment setting an intake was collected in.
type EnvironmentType string

const (
	EnvironmentStandard      EnvironmentType = "standard"
	EnvironmentRemoteVillage EnvironmentType = "remote_village"
	EnvironmentLimitedAccess EnvironmentType = "limited_access_region"
)

// VitalSigns holds optional bedside measurements. A nil field was not measured.
type VitalSigns struct {
	TemperatureC *float64 `json:"temperature_c,omitempty" yaml:"temperature_c,omitempty"`
	HeartRateBPM *int     `json:"heart_rate_bpm,omitempty" yaml:"heart_rate_bpm,omitempty"`
	SpO2Percent  *int     `json:"spo2_percent,omitempty" yaml:"spo2_percent,omitempty"`
	SystolicBP   *int     `json:"systolic_bp,omitempty" yaml:"systolic_bp,omitempty"`
	DiastolicBP  *int     `json:"diastolic_bp,omitempty" yaml:"diastolic_bp,omitempty"`
}

// Intake is the finished, structured record handed to the triage pipeline by
// the intake collaborator. Stages receive it by value and never modify it.
type Intake struct {
	// FirstName, LastName and IDNumber identify the patient. All three are
	// required even though identity verification happens upstream.
	FirstName string `json:"first_name" yaml:"first_name"`
	LastName  string `json:"last_name" yaml:"last_name"`
	IDNumber  string `json:"id_number" yaml:"id_number"`

	AgeYears *int   `json:"age_years,omitempty" yaml:"age_years,omitempty"`
	Sex      string `json:"sex,omitempty" yaml:"sex,omitempty"`

	// Symptoms are short patient-reported complaints (e.g. "mild cough").
	Symptoms []string `json:"symptoms" yaml:"symptoms"`

	// Duration is free text such as "2 days".
	Duration string `json:"duration,omitempty" yaml:"duration,omitempty"`

	// SeverityIndicators are descriptors reported alongside the symptoms
	// (e.g. "severe", "worsening").
	SeverityIndicators []string `json:"severity_indicators,omitempty" yaml:"severity_indicators,omitempty"`

	Notes                  string   `json:"notes,omitempty" yaml:"notes,omitempty"`
	InterviewTranscript    []string `json:"interview_transcript,omitempty" yaml:"interview_transcript,omitempty"`
	CameraSceneDescription string   `json:"camera_scene_description,omitempty" yaml:"camera_scene_description,omitempty"`
	AbrasionFindings       []string `json:"abrasion_findings,omitempty" yaml:"abrasion_findings,omitempty"`

	Vitals VitalSigns `json:"vitals" yaml:"vitals"`

	// ScanFindings is a textual reading of an attached scan, if any.
	ScanFindings string `json:"scan_findings,omitempty" yaml:"scan_findings,omitempty"`

	// ScanImagePath references an attached image (local path or URL).
	ScanImagePath string `json:"scan_image_path,omitempty" yaml:"scan_image_path,omitempty"`

	Environment EnvironmentType `json:"environment" yaml:"environment"`
}

// Validate checks the identity fields every intake must carry. It returns a
// *ValidationError naming the first missing field, in the order first_name,
// last_name, id_number. Whitespace-only values count as missing.
func (in Intake) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"first_name", in.FirstName},
		{"last_name", in.LastName},
		{"id_number", in.IDNumber},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ValidationError{
				Stage:  "verifying",
				Field:  r.field,
				Reason: fmt.Sprintf("required field %s is missing", r.field),
			}
		}
	}
	return nil
}
