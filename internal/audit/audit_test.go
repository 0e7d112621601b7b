// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/field-triage/pkg/types"
)

func openLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "audit", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func result(p types.Priority, env types.EnvironmentType, triggered bool) types.TriageResult {
	return types.TriageResult{
		Priority: p,
		Recommendation: types.Recommendation{
			Priority:         p,
			ImmediateActions: []string{"Track symptoms."},
			NextStep:         "Follow up",
			Referrals:        []types.Referral{{Kind: types.ReferralPrimaryCare, Cost: types.CostModerate, Disposition: types.DispositionAllowed}},
			Environment:      env,
		},
		Guardrail:     types.GuardrailResult{Triggered: triggered, TableVersion: "guardrail/v1"},
		Escalate:      p.AtLeast(types.PriorityUrgent),
		Rationale:     []string{"No hard emergency triggers detected from provided inputs."},
		RuleVersions:  types.RuleVersions{Guardrail: "guardrail/v1", Recommendation: "recommendation/v1", Environment: string(env) + "@environment/v1"},
		Summary:       "Urgency: " + p.String() + ".",
		SummarySource: types.SummarySourceStatic,
	}
}

func TestRecordAndRecent(t *testing.T) {
	l := openLog(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	l.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	routine := result(types.PriorityRoutine, types.EnvironmentRemoteVillage, false)
	emergency := result(types.PriorityEmergency, types.EnvironmentStandard, true)

	firstID, err := l.Record(ctx, routine)
	require.NoError(t, err)
	secondID, err := l.Record(ctx, emergency)
	require.NoError(t, err)

	_, err = uuid.Parse(firstID)
	assert.NoError(t, err)
	assert.NotEqual(t, firstID, secondID)

	entries, err := l.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	newest := entries[0]
	assert.Equal(t, secondID, newest.ID)
	assert.Equal(t, types.PriorityEmergency, newest.Priority)
	assert.Equal(t, types.EnvironmentStandard, newest.Environment)
	assert.True(t, newest.GuardrailTriggered)
	assert.True(t, newest.Escalate)
	assert.True(t, newest.CreatedAt.Equal(base.Add(2*time.Second)))
	if diff := cmp.Diff(emergency, newest.Result); diff != "" {
		t.Errorf("stored result differs (-want +got):\n%s", diff)
	}

	assert.Equal(t, firstID, entries[1].ID)
	assert.False(t, entries[1].GuardrailTriggered)
	assert.False(t, entries[1].Escalate)
}

func TestRecentLimit(t *testing.T) {
	l := openLog(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := l.Record(ctx, result(types.PriorityUrgent, types.EnvironmentLimitedAccess, false))
		require.NoError(t, err)
	}

	entries, err := l.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	l, err := Open(path)
	require.NoError(t, err)
	id, err := l.Record(ctx, result(types.PriorityRoutine, types.EnvironmentStandard, false))
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l, err = Open(path)
	require.NoError(t, err)
	defer l.Close()
	entries, err := l.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
}
