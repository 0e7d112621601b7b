// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package recommend

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/field-triage/internal/signals"
	"github.com/pdiddy/field-triage/pkg/types"
)

func kinds(rec types.Recommendation) []types.ReferralKind {
	var out []types.ReferralKind
	for _, r := range rec.Referrals {
		out = append(out, r.Kind)
	}
	return out
}

func TestBuild(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		name      string
		priority  types.Priority
		symptoms  []string
		nextStep  string
		wantKinds []types.ReferralKind
		action    string
	}{
		{
			name:      "emergency respiratory",
			priority:  types.PriorityEmergency,
			symptoms:  []string{"severe chest pain", "shortness of breath"},
			nextStep:  "Immediate emergency transfer",
			wantKinds: []types.ReferralKind{types.ReferralEmergencyTransport, types.ReferralHospitalEmergency, types.ReferralChestImaging},
			action:    "Call emergency transport now.",
		},
		{
			name:      "urgent abdominal",
			priority:  types.PriorityUrgent,
			symptoms:  []string{"persistent vomiting"},
			nextStep:  "Same-day clinical evaluation",
			wantKinds: []types.ReferralKind{types.ReferralPhysicianSameDay, types.ReferralLabDiagnostics, types.ReferralUltrasound},
			action:    "Track symptoms and vitals every 2-4 hours.",
		},
		{
			name:      "routine cough gets no imaging",
			priority:  types.PriorityRoutine,
			symptoms:  []string{"mild cough"},
			nextStep:  "Routine follow-up in 24-72 hours",
			wantKinds: []types.ReferralKind{types.ReferralPrimaryCare},
			action:    "Supportive care and close monitoring at home.",
		},
		{
			name:      "routine wound",
			priority:  types.PriorityRoutine,
			symptoms:  []string{"skin abrasion"},
			nextStep:  "Routine follow-up in 24-72 hours",
			wantKinds: []types.ReferralKind{types.ReferralPrimaryCare, types.ReferralWoundCare},
		},
		{
			name:      "neurological and respiratory rank in profile order",
			priority:  types.PriorityEmergency,
			symptoms:  []string{"seizure", "cough"},
			nextStep:  "Immediate emergency transfer",
			wantKinds: []types.ReferralKind{types.ReferralEmergencyTransport, types.ReferralHospitalEmergency, types.ReferralChestImaging, types.ReferralMRI},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := signals.From(types.Intake{Symptoms: tt.symptoms}, nil)
			rec, err := Build(table, tt.priority, sig)
			require.NoError(t, err)
			assert.Equal(t, tt.priority, rec.Priority)
			assert.Equal(t, tt.nextStep, rec.NextStep)
			assert.Equal(t, tt.wantKinds, kinds(rec))
			assert.Empty(t, rec.Environment, "builder is environment-agnostic")
			if tt.action != "" {
				assert.Contains(t, rec.ImmediateActions, tt.action)
			}
		})
	}
}

func TestBuildDoesNotAliasTable(t *testing.T) {
	table := DefaultTable()
	rec, err := Build(table, types.PriorityEmergency, signals.Signals{})
	require.NoError(t, err)

	rec.ImmediateActions[0] = "changed"
	rec.Referrals[0].Description = "changed"

	again, err := Build(table, types.PriorityEmergency, signals.Signals{})
	require.NoError(t, err)
	assert.Equal(t, "Call emergency transport now.", again.ImmediateActions[0])
	assert.NotEqual(t, "changed", again.Referrals[0].Description)
}

func TestBuildInconsistentTables(t *testing.T) {
	tests := []struct {
		name     string
		table    Table
		priority types.Priority
		detail   string
	}{
		{
			name:     "missing tier",
			table:    Table{Version: "t", Plans: map[types.Priority]Plan{}},
			priority: types.PriorityUrgent,
			detail:   "no plan mapped",
		},
		{
			name:     "invalid priority",
			table:    DefaultTable(),
			priority: 0,
			detail:   "invalid priority",
		},
		{
			name: "emergency without actions",
			table: Table{Version: "t", Plans: map[types.Priority]Plan{
				types.PriorityEmergency: {NextStep: "go"},
			}},
			priority: types.PriorityEmergency,
			detail:   "no immediate actions",
		},
		{
			name: "routine with emergency-only referral",
			table: Table{Version: "t", Plans: map[types.Priority]Plan{
				types.PriorityRoutine: {NextStep: "wait", Referrals: []types.Referral{emergencyTransport}},
			}},
			priority: types.PriorityRoutine,
			detail:   "emergency-only",
		},
		{
			name: "missing next step",
			table: Table{Version: "t", Plans: map[types.Priority]Plan{
				types.PriorityUrgent: {Actions: []string{"a"}},
			}},
			priority: types.PriorityUrgent,
			detail:   "no next step",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.table, tt.priority, signals.Signals{})
			var terr *types.InconsistentRuleTableError
			require.True(t, errors.As(err, &terr))
			assert.Contains(t, terr.Detail, tt.detail)
		})
	}
}

func TestTableValidate(t *testing.T) {
	require.NoError(t, DefaultTable().Validate())

	broken := DefaultTable()
	broken.Profiles = append(broken.Profiles, SymptomProfile{
		Name:      "bad",
		Terms:     []string{"rash"},
		Tiers:     []types.Priority{types.PriorityRoutine},
		Referrals: []types.Referral{hospitalEmergency},
	})
	var terr *types.InconsistentRuleTableError
	assert.True(t, errors.As(broken.Validate(), &terr))
}
