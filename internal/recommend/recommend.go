// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package recommend maps an urgency tier and symptom profile to the base
// recommendation. It assumes full access to care; environment constraints
// are applied afterwards by the environment package.
package recommend

import (
	"fmt"
	"strings"

	"github.com/pdiddy/field-triage/internal/signals"
	"github.com/pdiddy/field-triage/pkg/types"
)

// TableName identifies the recommendation table in errors and rule versions.
const TableName = "recommendation"

// Plan is the base content for one tier.
type Plan struct {
	Actions   []string
	NextStep  string
	Referrals []types.Referral
}

// SymptomProfile adds referrals when its terms appear in the presentation
// and the tier is one of Tiers.
type SymptomProfile struct {
	Name      string
	Terms     []string
	Tiers     []types.Priority
	Referrals []types.Referral
}

// Table is the versioned tier-to-plan mapping plus symptom profiles, listed
// in order of clinical relevance.
type Table struct {
	Version  string
	Plans    map[types.Priority]Plan
	Profiles []SymptomProfile
}

// Referral catalogue used by the default table.
var (
	emergencyTransport = types.Referral{
		Kind:          types.ReferralEmergencyTransport,
		Description:   "Emergency transport to the nearest emergency department",
		Cost:          types.CostHigh,
		EmergencyOnly: true,
	}
	hospitalEmergency = types.Referral{
		Kind:          types.ReferralHospitalEmergency,
		Description:   "Hospital emergency department assessment",
		Cost:          types.CostHigh,
		EmergencyOnly: true,
	}
	physicianSameDay = types.Referral{
		Kind:        types.ReferralPhysicianSameDay,
		Description: "Same-day in-person physician review",
		Cost:        types.CostModerate,
	}
	labDiagnostics = types.Referral{
		Kind:        types.ReferralLabDiagnostics,
		Description: "Laboratory diagnostics (blood count, basic chemistry)",
		Cost:        types.CostModerate,
	}
	primaryCare = types.Referral{
		Kind:        types.ReferralPrimaryCare,
		Description: "Physician follow-up visit within 24-72 hours",
		Cost:        types.CostModerate,
	}
	chestImaging = types.Referral{
		Kind:        types.ReferralChestImaging,
		Description: "Chest X-ray",
		Cost:        types.CostModerate,
	}
	brainMRI = types.Referral{
		Kind:        types.ReferralMRI,
		Description: "Brain MRI",
		Cost:        types.CostHigh,
	}
	abdominalUltrasound = types.Referral{
		Kind:        types.ReferralUltrasound,
		Description: "Abdominal ultrasound",
		Cost:        types.CostModerate,
	}
	woundCare = types.Referral{
		Kind:        types.ReferralWoundCare,
		Description: "Wound cleaning and dressing",
		Cost:        types.CostLow,
	}
)

// DefaultTable returns the built-in tier plans and symptom profiles.
func DefaultTable() Table {
	return Table{
		Version: "recommendation/v1",
		Plans: map[types.Priority]Plan{
			types.PriorityEmergency: {
				Actions: []string{
					"Call emergency transport now.",
					"Seek emergency care immediately.",
					"Do not delay for home treatment.",
					"If available, keep monitoring breathing and consciousness.",
				},
				NextStep:  "Immediate emergency transfer",
				Referrals: []types.Referral{emergencyTransport, hospitalEmergency},
			},
			types.PriorityUrgent: {
				Actions: []string{
					"Arrange in-person clinical review as soon as possible (same day).",
					"Track symptoms and vitals every 2-4 hours.",
					"Escalate to emergency if symptoms worsen.",
				},
				NextStep:  "Same-day clinical evaluation",
				Referrals: []types.Referral{physicianSameDay, labDiagnostics},
			},
			types.PriorityRoutine: {
				Actions: []string{
					"Supportive care and close monitoring at home.",
					"Hydration, rest, and symptom log.",
					"Escalate if new red-flag symptoms appear.",
				},
				NextStep:  "Routine follow-up in 24-72 hours",
				Referrals: []types.Referral{primaryCare},
			},
		},
		Profiles: []SymptomProfile{
			{
				Name:      "respiratory",
				Terms:     []string{"breath", "cough", "wheez", "chest"},
				Tiers:     []types.Priority{types.PriorityUrgent, types.PriorityEmergency},
				Referrals: []types.Referral{chestImaging},
			},
			{
				Name:      "neurological",
				Terms:     []string{"stroke", "one-sided weakness", "seizure", "unconscious", "confusion"},
				Tiers:     []types.Priority{types.PriorityUrgent, types.PriorityEmergency},
				Referrals: []types.Referral{brainMRI},
			},
			{
				Name:      "abdominal",
				Terms:     []string{"abdominal", "vomiting", "pregnant with pain"},
				Tiers:     []types.Priority{types.PriorityUrgent, types.PriorityEmergency},
				Referrals: []types.Referral{abdominalUltrasound},
			},
			{
				Name:      "wound",
				Terms:     []string{"bleeding", "abrasion", "laceration", "wound"},
				Tiers:     types.Priorities(),
				Referrals: []types.Referral{woundCare},
			},
		},
	}
}

// Build produces the base recommendation for tier p. The returned value owns
// all of its slices.
func Build(table Table, p types.Priority, sig signals.Signals) (types.Recommendation, error) {
	if !p.Valid() {
		return types.Recommendation{}, &types.InconsistentRuleTableError{
			Table: TableName, Version: table.Version, Detail: fmt.Sprintf("cannot build for invalid priority %d", int(p)),
		}
	}
	plan, ok := table.Plans[p]
	if !ok {
		return types.Recommendation{}, &types.InconsistentRuleTableError{
			Table: TableName, Version: table.Version, Detail: "no plan mapped for priority " + p.String(),
		}
	}

	rec := types.Recommendation{
		Priority:         p,
		ImmediateActions: append([]string(nil), plan.Actions...),
		NextStep:         plan.NextStep,
	}

	seen := make(map[types.ReferralKind]bool)
	add := func(refs []types.Referral) {
		for _, ref := range refs {
			if seen[ref.Kind] {
				continue
			}
			seen[ref.Kind] = true
			rec.Referrals = append(rec.Referrals, ref)
		}
	}
	add(plan.Referrals)
	for _, prof := range table.Profiles {
		if !appliesTo(prof.Tiers, p) || len(sig.Mentions(prof.Terms)) == 0 {
			continue
		}
		add(prof.Referrals)
	}

	if rec.NextStep == "" {
		return types.Recommendation{}, &types.InconsistentRuleTableError{
			Table: TableName, Version: table.Version, Detail: "plan for " + p.String() + " has no next step",
		}
	}
	if err := rec.CheckConsistency(TableName, table.Version); err != nil {
		return types.Recommendation{}, err
	}
	return rec, nil
}

// Validate builds every tier with empty signals and with every profile term
// present, surfacing table bugs before any intake is processed.
func (t Table) Validate() error {
	var all []string
	for _, prof := range t.Profiles {
		all = append(all, prof.Terms...)
	}
	everything := signals.Signals{Presentation: strings.ToLower(strings.Join(all, " "))}

	for _, p := range types.Priorities() {
		if _, err := Build(t, p, signals.Signals{}); err != nil {
			return err
		}
		if _, err := Build(t, p, everything); err != nil {
			return err
		}
	}
	return nil
}

func appliesTo(tiers []types.Priority, p types.Priority) bool {
	for _, t := range tiers {
		if t == p {
			return true
		}
	}
	return false
}
