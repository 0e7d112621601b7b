// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ReferralKind names a care pathway a recommendation can point to.
type ReferralKind string

const (
	ReferralEmergencyTransport ReferralKind = "emergency_transport"
	ReferralHospitalEmergency  ReferralKind = "hospital_emergency"
	ReferralPhysicianSameDay   ReferralKind = "physician_same_day"
	ReferralPrimaryCare        ReferralKind = "primary_care_followup"
	ReferralLabDiagnostics     ReferralKind = "lab_diagnostics"
	ReferralChestImaging       ReferralKind = "chest_imaging"
	ReferralUltrasound         ReferralKind = "ultrasound"
	ReferralMRI                ReferralKind = "mri"
	ReferralWoundCare          ReferralKind = "wound_care"
)

// CostLevel is a coarse feasibility cost attached to a referral.
type CostLevel string

const (
	CostLow      CostLevel = "low"
	CostModerate CostLevel = "moderate"
	CostHigh     CostLevel = "high"
)

// Disposition records what the environment adapter did with a referral.
// It is empty on referrals that have not been adapted yet.
type Disposition string

const (
	DispositionAllowed     Disposition = "allowed"
	DispositionSubstituted Disposition = "substituted"
)

// Referral is one candidate care pathway.
type Referral struct {
	Kind        ReferralKind `json:"kind" yaml:"kind"`
	Description string       `json:"description" yaml:"description"`
	Cost        CostLevel    `json:"cost" yaml:"cost"`

	// EmergencyOnly marks pathways that must never appear on a routine case.
	EmergencyOnly bool `json:"emergency_only,omitempty" yaml:"emergency_only,omitempty"`

	Disposition    Disposition  `json:"disposition,omitempty" yaml:"disposition,omitempty"`
	SubstitutedFor ReferralKind `json:"substituted_for,omitempty" yaml:"substituted_for,omitempty"`
	Reason         string       `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// ConstraintNote replaces a referral the active environment cannot provide.
type ConstraintNote struct {
	Kind     ReferralKind `json:"kind" yaml:"kind"`
	Reason   string       `json:"reason" yaml:"reason"`
	Fallback string       `json:"fallback" yaml:"fallback"`
}

// Recommendation is the actionable part of a triage decision. Stages build a
// new value instead of modifying one they received.
type Recommendation struct {
	Priority         Priority `json:"priority" yaml:"priority"`
	ImmediateActions []string `json:"immediate_actions" yaml:"immediate_actions"`
	NextStep         string   `json:"next_step" yaml:"next_step"`

	// Referrals are ranked, most clinically relevant first.
	Referrals []Referral `json:"referrals" yaml:"referrals"`

	ConstraintNotes     []ConstraintNote `json:"constraint_notes,omitempty" yaml:"constraint_notes,omitempty"`
	EnvironmentGuidance []string         `json:"environment_guidance,omitempty" yaml:"environment_guidance,omitempty"`

	// Environment is set once the recommendation has been constrained.
	Environment EnvironmentType `json:"environment,omitempty" yaml:"environment,omitempty"`
}

// Clone returns a deep copy of r.
func (r Recommendation) Clone() Recommendation {
	out := r
	out.ImmediateActions = append([]string(nil), r.ImmediateActions...)
	out.Referrals = append([]Referral(nil), r.Referrals...)
	out.ConstraintNotes = append([]ConstraintNote(nil), r.ConstraintNotes...)
	out.EnvironmentGuidance = append([]string(nil), r.EnvironmentGuidance...)
	return out
}

// HasReferral reports whether a referral of the given kind is present.
func (r Recommendation) HasReferral(kind ReferralKind) bool {
	for _, ref := range r.Referrals {
		if ref.Kind == kind {
			return true
		}
	}
	return false
}

// CheckConsistency verifies the tier/content invariants: an emergency carries
// at least one immediate action and a routine case carries no emergency-only
// referral. table names the rule table blamed in the returned error.
func (r Recommendation) CheckConsistency(table, version string) error {
	if !r.Priority.Valid() {
		return &InconsistentRuleTableError{Table: table, Version: version, Detail: "recommendation has no valid priority"}
	}
	if r.Priority == PriorityEmergency && len(r.ImmediateActions) == 0 {
		return &InconsistentRuleTableError{Table: table, Version: version, Detail: "emergency recommendation has no immediate actions"}
	}
	if r.Priority == PriorityRoutine {
		for _, ref := range r.Referrals {
			if ref.EmergencyOnly {
				return &InconsistentRuleTableError{
					Table:   table,
					Version: version,
					Detail:  "routine recommendation includes emergency-only referral " + string(ref.Kind),
				}
			}
		}
	}
	return nil
}
