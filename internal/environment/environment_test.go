// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package environment

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/field-triage/internal/recommend"
	"github.com/pdiddy/field-triage/internal/signals"
	"github.com/pdiddy/field-triage/pkg/types"
)

func defaultRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := DefaultRegistry()
	require.NoError(t, err)
	return reg
}

func profile(t *testing.T, tag types.EnvironmentType) Profile {
	t.Helper()
	p, err := defaultRegistry(t).Lookup(tag)
	require.NoError(t, err)
	return p
}

func baseRecommendation(t *testing.T, p types.Priority, symptoms ...string) types.Recommendation {
	t.Helper()
	rec, err := recommend.Build(recommend.DefaultTable(), p, signals.From(types.Intake{Symptoms: symptoms}, nil))
	require.NoError(t, err)
	return rec
}

func referral(rec types.Recommendation, kind types.ReferralKind) (types.Referral, bool) {
	for _, r := range rec.Referrals {
		if r.Kind == kind {
			return r, true
		}
	}
	return types.Referral{}, false
}

func TestDefaultRegistry(t *testing.T) {
	reg := defaultRegistry(t)
	assert.Equal(t, "environment/v1", reg.Version())
	assert.Equal(t, []types.EnvironmentType{
		types.EnvironmentLimitedAccess,
		types.EnvironmentRemoteVillage,
		types.EnvironmentStandard,
	}, reg.Names())

	village, err := reg.Lookup(types.EnvironmentRemoteVillage)
	require.NoError(t, err)
	assert.Equal(t, "Recommendations adapted for remote village constraints.", village.AdaptationNote)
	standard, err := reg.Lookup(types.EnvironmentStandard)
	require.NoError(t, err)
	assert.Empty(t, standard.AdaptationNote)
}

func TestLookupUnknown(t *testing.T) {
	reg := defaultRegistry(t)
	for _, tag := range []types.EnvironmentType{"", "limited_access_poland", "STANDARD"} {
		_, err := reg.Lookup(tag)
		var uerr *types.UnknownEnvironmentProfileError
		require.True(t, errors.As(err, &uerr), "tag %q", tag)
		assert.Equal(t, string(tag), uerr.Tag)
	}
}

func TestAdaptStandardPassesThrough(t *testing.T) {
	base := baseRecommendation(t, types.PriorityEmergency, "severe chest pain")
	got, err := Adapt(base, profile(t, types.EnvironmentStandard))
	require.NoError(t, err)

	require.Len(t, got.Referrals, len(base.Referrals))
	for i, ref := range got.Referrals {
		assert.Equal(t, base.Referrals[i].Kind, ref.Kind)
		assert.Equal(t, types.DispositionAllowed, ref.Disposition)
	}
	assert.Equal(t, base.NextStep, got.NextStep)
	assert.Contains(t, got.ImmediateActions, "If red flags are present, proceed directly to hospital emergency care.")
	assert.Equal(t, types.EnvironmentStandard, got.Environment)
	assert.Empty(t, base.Environment, "input must not be modified")
}

func TestAdaptRemoteVillageRoutineCough(t *testing.T) {
	base := baseRecommendation(t, types.PriorityRoutine, "mild cough")
	got, err := Adapt(base, profile(t, types.EnvironmentRemoteVillage))
	require.NoError(t, err)

	assert.Equal(t, types.PriorityRoutine, got.Priority)
	assert.Contains(t, strings.ToLower(got.NextStep), "nurse-led monitoring")
	_, hasPhysician := referral(got, types.ReferralPrimaryCare)
	assert.False(t, hasPhysician)
	for _, ref := range got.Referrals {
		assert.NotEqual(t, types.ReferralChestImaging, ref.Kind)
		assert.NotEqual(t, types.ReferralMRI, ref.Kind)
	}

	recheck, ok := referral(got, "nurse_recheck")
	require.True(t, ok)
	assert.Equal(t, types.DispositionSubstituted, recheck.Disposition)
	assert.Equal(t, types.ReferralPrimaryCare, recheck.SubstitutedFor)
	assert.NotEmpty(t, recheck.Reason)
}

func TestAdaptLimitedAccessCostStaged(t *testing.T) {
	base := baseRecommendation(t, types.PriorityRoutine, "mild cough")
	got, err := Adapt(base, profile(t, types.EnvironmentLimitedAccess))
	require.NoError(t, err)

	staged, ok := referral(got, "staged_primary_care")
	require.True(t, ok)
	assert.Equal(t, types.CostLow, staged.Cost)
	assert.Equal(t, types.ReferralPrimaryCare, staged.SubstitutedFor)
	assert.Contains(t, staged.Reason, "cost-staged")
	assert.Contains(t, strings.Join(got.ImmediateActions, " "), "lower-cost diagnostics")
}

func TestAdaptDisallowedLeavesNote(t *testing.T) {
	base := baseRecommendation(t, types.PriorityEmergency, "stroke")
	require.True(t, base.HasReferral(types.ReferralMRI))

	for _, tag := range []types.EnvironmentType{types.EnvironmentRemoteVillage, types.EnvironmentLimitedAccess} {
		t.Run(string(tag), func(t *testing.T) {
			p := profile(t, tag)
			got, err := Adapt(base, p)
			require.NoError(t, err)

			assertNoSilentDrops(t, got, p)
			assert.False(t, got.HasReferral(types.ReferralMRI))
			require.NotEmpty(t, got.ConstraintNotes)
			note := got.ConstraintNotes[0]
			assert.Equal(t, types.ReferralMRI, note.Kind)
			assert.NotEmpty(t, note.Reason)
			assert.NotEmpty(t, note.Fallback)
		})
	}
}

// assertNoSilentDrops checks that every disallowed kind is absent from the
// referrals and explained by a note.
func assertNoSilentDrops(t *testing.T, rec types.Recommendation, p Profile) {
	t.Helper()
	noted := map[types.ReferralKind]bool{}
	for _, n := range rec.ConstraintNotes {
		noted[n.Kind] = n.Reason != "" && n.Fallback != ""
	}
	for _, ref := range rec.Referrals {
		assert.NotEqual(t, ActionDisallow, p.Policies[ref.Kind].Action, "disallowed referral %s survived", ref.Kind)
	}
	for kind, pol := range p.Policies {
		if pol.Action == ActionDisallow && rec.HasReferral(kind) {
			assert.True(t, noted[kind])
		}
	}
}

func TestAdaptIdempotent(t *testing.T) {
	reg := defaultRegistry(t)
	cases := []struct {
		priority types.Priority
		symptoms []string
	}{
		{types.PriorityEmergency, []string{"seizure", "shortness of breath", "heavy bleeding"}},
		{types.PriorityUrgent, []string{"persistent vomiting", "abdominal pain", "cough"}},
		{types.PriorityRoutine, []string{"mild cough", "abrasion"}},
	}
	for _, name := range reg.Names() {
		p, err := reg.Lookup(name)
		require.NoError(t, err)
		for _, c := range cases {
			once, err := Adapt(baseRecommendation(t, c.priority, c.symptoms...), p)
			require.NoError(t, err)
			twice, err := Adapt(once, p)
			require.NoError(t, err)
			if diff := cmp.Diff(once, twice); diff != "" {
				t.Errorf("%s/%s: second Adapt changed result (-once +twice):\n%s", name, c.priority, diff)
			}
		}
	}
}

func TestAdaptSharedSubstituteAppearsOnce(t *testing.T) {
	base := baseRecommendation(t, types.PriorityUrgent, "persistent vomiting")
	require.True(t, base.HasReferral(types.ReferralLabDiagnostics))
	require.True(t, base.HasReferral(types.ReferralUltrasound))

	got, err := Adapt(base, profile(t, types.EnvironmentLimitedAccess))
	require.NoError(t, err)

	var staged []types.Referral
	for _, r := range got.Referrals {
		if r.Kind == "staged_diagnostics" {
			staged = append(staged, r)
		}
	}
	require.Len(t, staged, 1)
	assert.Equal(t, types.ReferralLabDiagnostics, staged[0].SubstitutedFor)
	assert.Equal(t, "Budget constraints should be considered when proposing tests.", staged[0].Reason)
}

func TestAdaptReferralKindsUnique(t *testing.T) {
	reg := defaultRegistry(t)
	for _, name := range reg.Names() {
		p, err := reg.Lookup(name)
		require.NoError(t, err)
		for _, tier := range types.Priorities() {
			got, err := Adapt(baseRecommendation(t, tier, "persistent vomiting", "abdominal pain", "cough", "stroke", "abrasion"), p)
			require.NoError(t, err)
			seen := map[types.ReferralKind]bool{}
			for _, r := range got.Referrals {
				assert.False(t, seen[r.Kind], "%s/%s: %s listed twice", name, tier, r.Kind)
				seen[r.Kind] = true
			}
		}
	}
}

func TestAdaptNeverChangesPriority(t *testing.T) {
	reg := defaultRegistry(t)
	for _, name := range reg.Names() {
		p, err := reg.Lookup(name)
		require.NoError(t, err)
		for _, tier := range types.Priorities() {
			got, err := Adapt(baseRecommendation(t, tier, "cough", "stroke", "vomiting"), p)
			require.NoError(t, err)
			assert.Equal(t, tier, got.Priority)
			if tier == types.PriorityEmergency {
				assert.NotEmpty(t, got.ImmediateActions)
			}
		}
	}
}

func TestAdaptLimitedAccessEmergency(t *testing.T) {
	base := baseRecommendation(t, types.PriorityEmergency, "severe chest pain")
	got, err := Adapt(base, profile(t, types.EnvironmentLimitedAccess))
	require.NoError(t, err)

	assert.Equal(t, types.PriorityEmergency, got.Priority)
	assert.Equal(t, "Immediate SOR/ER referral with available local transport", got.NextStep)
	assert.True(t, got.HasReferral(types.ReferralEmergencyTransport))
	sor, ok := referral(got, "sor_emergency")
	require.True(t, ok)
	assert.Equal(t, types.ReferralHospitalEmergency, sor.SubstitutedFor)
}

func TestAdaptMissingPolicy(t *testing.T) {
	p := Profile{Name: "tiny", Version: "t", Policies: map[types.ReferralKind]Policy{}}
	_, err := Adapt(baseRecommendation(t, types.PriorityRoutine), p)
	var terr *types.InconsistentRuleTableError
	require.True(t, errors.As(err, &terr))
	assert.Contains(t, terr.Detail, string(types.ReferralPrimaryCare))
}

func TestProfileValidate(t *testing.T) {
	allAllowed := func() map[types.ReferralKind]Policy {
		m := map[types.ReferralKind]Policy{}
		for _, k := range BaseReferralKinds() {
			m[k] = Policy{Action: ActionAllow}
		}
		return m
	}

	tests := []struct {
		name   string
		edit   func(p *Profile)
		detail string
	}{
		{name: "valid", edit: func(*Profile) {}},
		{name: "missing kind", edit: func(p *Profile) { delete(p.Policies, types.ReferralMRI) }, detail: "no policy"},
		{
			name: "substitute not allowed",
			edit: func(p *Profile) {
				p.Policies[types.ReferralMRI] = Policy{Action: ActionSubstitute, Reason: "r", Substitute: &types.Referral{Kind: "ghost"}}
			},
			detail: "not allowed",
		},
		{
			name:   "substitute without target",
			edit:   func(p *Profile) { p.Policies[types.ReferralMRI] = Policy{Action: ActionSubstitute, Reason: "r"} },
			detail: "names no substitute",
		},
		{
			name:   "disallow without fallback",
			edit:   func(p *Profile) { p.Policies[types.ReferralMRI] = Policy{Action: ActionDisallow, Reason: "r"} },
			detail: "fallback",
		},
		{
			name:   "unknown action",
			edit:   func(p *Profile) { p.Policies[types.ReferralMRI] = Policy{Action: "maybe"} },
			detail: "unknown action",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Profile{Name: "x", Version: "t", Policies: allAllowed()}
			tt.edit(&p)
			err := p.Validate()
			if tt.detail == "" {
				assert.NoError(t, err)
				return
			}
			var terr *types.InconsistentRuleTableError
			require.True(t, errors.As(err, &terr))
			assert.Contains(t, terr.Detail, tt.detail)
		})
	}
}

func TestRegistryRoundTrip(t *testing.T) {
	reg := defaultRegistry(t)
	data, err := yaml.Marshal(reg)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, reg.Names(), loaded.Names())
	for _, name := range reg.Names() {
		a, _ := reg.Lookup(name)
		b, _ := loaded.Lookup(name)
		if diff := cmp.Diff(a, b); diff != "" {
			t.Errorf("profile %s differs after round trip:\n%s", name, diff)
		}
	}
}

func TestParseRegistryErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "no version", doc: "profiles: []\n"},
		{name: "no profiles", doc: "version: v\n"},
		{name: "bad tier", doc: "version: v\nprofiles:\n  - name: x\n    next_steps: {critical: go}\n"},
		{name: "incomplete policies", doc: "version: v\nprofiles:\n  - name: x\n    policies: {mri: {action: allow}}\n"},
		{name: "malformed", doc: "version: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRegistry([]byte(tt.doc))
			assert.Error(t, err)
		})
	}

	_, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
