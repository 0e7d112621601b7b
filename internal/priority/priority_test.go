// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package priority

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/field-triage/internal/signals"
	"github.com/pdiddy/field-triage/pkg/types"
)

func intPtr(v int) *int { return &v }

func TestAssign(t *testing.T) {
	table := DefaultTable(types.DefaultTriageConfig())

	tests := []struct {
		name    string
		intake  types.Intake
		pctx    *types.PatientContext
		want    types.Priority
		matched []string
	}{
		{
			name:    "mild cough is routine",
			intake:  types.Intake{Symptoms: []string{"mild cough"}, Duration: "2 days"},
			want:    types.PriorityRoutine,
			matched: []string{"BASELINE"},
		},
		{
			name:    "persistent vomiting is urgent",
			intake:  types.Intake{Symptoms: []string{"persistent vomiting"}, Vitals: types.VitalSigns{SpO2Percent: intPtr(97)}},
			want:    types.PriorityUrgent,
			matched: []string{"URGENT_KEYWORD", "BASELINE"},
		},
		{
			name:    "chest pain is urgent",
			intake:  types.Intake{Symptoms: []string{"chest pain"}},
			want:    types.PriorityUrgent,
			matched: []string{"URGENT_KEYWORD", "BASELINE"},
		},
		{
			name:    "low saturation is urgent",
			intake:  types.Intake{Symptoms: []string{"tired"}, Vitals: types.VitalSigns{SpO2Percent: intPtr(92)}},
			want:    types.PriorityUrgent,
			matched: []string{"URGENT_SPO2", "BASELINE"},
		},
		{
			name:    "emergency keyword beats urgent keyword",
			intake:  types.Intake{Symptoms: []string{"fever", "seizure"}},
			want:    types.PriorityEmergency,
			matched: []string{"EMERGENCY_KEYWORD", "URGENT_KEYWORD", "BASELINE"},
		},
		{
			name:    "chronic condition with acute symptom is urgent",
			intake:  types.Intake{Symptoms: []string{"mild cough"}},
			pctx:    &types.PatientContext{RecordFound: true, History: []string{"COPD diagnosed 2018"}},
			want:    types.PriorityUrgent,
			matched: []string{"CHRONIC_ACUTE", "BASELINE"},
		},
		{
			name:    "chronic condition alone stays routine",
			intake:  types.Intake{Symptoms: []string{"rash"}},
			pctx:    &types.PatientContext{RecordFound: true, History: []string{"asthma"}},
			want:    types.PriorityRoutine,
			matched: []string{"BASELINE"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Assign(table, signals.From(tt.intake, tt.pctx))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Priority)
			assert.Equal(t, tt.matched, got.MatchedRules)
			assert.NotEmpty(t, got.Rationale)
		})
	}
}

func TestAssignHighestWinsRegardlessOfOrder(t *testing.T) {
	always := func(signals.Signals) (string, bool) { return "", true }
	forward := Table{Version: "t", Rules: []Rule{
		{ID: "R", Priority: types.PriorityRoutine, Match: always},
		{ID: "U", Priority: types.PriorityUrgent, Match: always},
		{ID: "E", Priority: types.PriorityEmergency, Match: always},
	}}
	backward := Table{Version: "t", Rules: []Rule{forward.Rules[2], forward.Rules[1], forward.Rules[0]}}

	a, err := Assign(forward, signals.Signals{})
	require.NoError(t, err)
	b, err := Assign(backward, signals.Signals{})
	require.NoError(t, err)
	assert.Equal(t, types.PriorityEmergency, a.Priority)
	assert.Equal(t, a.Priority, b.Priority)
}

func TestAssignScanRationale(t *testing.T) {
	got, err := Assign(DefaultTable(types.DefaultTriageConfig()), signals.From(types.Intake{
		Symptoms:     []string{"knee pain"},
		ScanFindings: "no fracture",
	}, nil))
	require.NoError(t, err)
	assert.Contains(t, got.Rationale, "Scan findings were included and considered for prioritization.")
}

func TestAssignInconsistentTables(t *testing.T) {
	never := func(signals.Signals) (string, bool) { return "", false }
	tests := []struct {
		name  string
		table Table
	}{
		{name: "empty", table: Table{Version: "t"}},
		{name: "no baseline", table: Table{Version: "t", Rules: []Rule{{ID: "X", Priority: types.PriorityUrgent, Match: never}}}},
		{name: "invalid priority", table: Table{Version: "t", Rules: []Rule{{ID: "X", Priority: 9, Match: never}}}},
		{name: "no matcher", table: Table{Version: "t", Rules: []Rule{{ID: "X", Priority: types.PriorityRoutine}}}},
		{name: "no id", table: Table{Version: "t", Rules: []Rule{{Priority: types.PriorityRoutine, Match: never}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assign(tt.table, signals.Signals{})
			var terr *types.InconsistentRuleTableError
			require.True(t, errors.As(err, &terr))
			assert.Equal(t, TableName, terr.Table)
		})
	}
}
