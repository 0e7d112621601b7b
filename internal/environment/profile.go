// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package environment rewrites a base recommendation so every referral is
// feasible in the deployment environment. Environments change how care is
// delivered, never the urgency tier.
package environment

import (
	"fmt"

	"github.com/pdiddy/field-triage/pkg/types"
)

// PolicyAction is what a profile does with one referral kind.
type PolicyAction string

const (
	ActionAllow      PolicyAction = "allow"
	ActionSubstitute PolicyAction = "substitute"
	ActionDisallow   PolicyAction = "disallow"
)

// Policy is one row of a profile's policy table.
type Policy struct {
	Action PolicyAction `json:"action" yaml:"action"`

	// Substitute is the lower-resource referral used instead (substitute only).
	Substitute *types.Referral `json:"substitute,omitempty" yaml:"substitute,omitempty"`

	// Reason explains the constraint (substitute and disallow).
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`

	// Fallback is the step taken instead of a disallowed referral.
	Fallback string `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// Profile is the policy table and guidance for one environment.
type Profile struct {
	Name           types.EnvironmentType
	Version        string
	GuidanceNote   string
	EscalationNote string
	// AdaptationNote is recorded in the rationale when the profile is applied.
	AdaptationNote string
	Constraints    []string
	Policies       map[types.ReferralKind]Policy
	NextSteps      map[types.Priority]string
	ExtraActions   map[types.Priority][]string
}

// TableName returns the name used for this profile in errors and rule versions.
func (p Profile) TableName() string {
	return "environment/" + string(p.Name)
}

// RuleVersion identifies the profile and table version, e.g. "remote_village@environment/v1".
func (p Profile) RuleVersion() string {
	return string(p.Name) + "@" + p.Version
}

// Validate checks the policy table is complete and self-consistent: every
// base referral kind has a policy, every substitute is itself allowed, and
// every disallow carries a reason and a fallback.
func (p Profile) Validate() error {
	fail := func(format string, args ...any) error {
		return &types.InconsistentRuleTableError{Table: p.TableName(), Version: p.Version, Detail: fmt.Sprintf(format, args...)}
	}
	if p.Name == "" {
		return fail("profile has no name")
	}
	for _, kind := range BaseReferralKinds() {
		if _, ok := p.Policies[kind]; !ok {
			return fail("no policy for referral kind %s", kind)
		}
	}
	for kind, pol := range p.Policies {
		switch pol.Action {
		case ActionAllow:
		case ActionSubstitute:
			if pol.Substitute == nil || pol.Substitute.Kind == "" {
				return fail("substitute policy for %s names no substitute", kind)
			}
			if pol.Reason == "" {
				return fail("substitute policy for %s has no reason", kind)
			}
			target, ok := p.Policies[pol.Substitute.Kind]
			if !ok || target.Action != ActionAllow {
				return fail("substitute %s for %s is not allowed in the same profile", pol.Substitute.Kind, kind)
			}
		case ActionDisallow:
			if pol.Reason == "" || pol.Fallback == "" {
				return fail("disallow policy for %s needs both a reason and a fallback", kind)
			}
		default:
			return fail("policy for %s has unknown action %q", kind, pol.Action)
		}
	}
	for tier := range p.NextSteps {
		if !tier.Valid() {
			return fail("next step mapped to invalid priority %d", int(tier))
		}
	}
	for tier := range p.ExtraActions {
		if !tier.Valid() {
			return fail("extra actions mapped to invalid priority %d", int(tier))
		}
	}
	return nil
}

// BaseReferralKinds lists the referral kinds the recommendation builder can
// emit. Every profile must carry a policy for each of them.
func BaseReferralKinds() []types.ReferralKind {
	return []types.ReferralKind{
		types.ReferralEmergencyTransport,
		types.ReferralHospitalEmergency,
		types.ReferralPhysicianSameDay,
		types.ReferralPrimaryCare,
		types.ReferralLabDiagnostics,
		types.ReferralChestImaging,
		types.ReferralUltrasound,
		types.ReferralMRI,
		types.ReferralWoundCare,
	}
}

// Adapt applies the profile to rec and returns the constrained
// recommendation. Referrals are processed in rank order: allowed ones pass
// through, substituted ones are replaced by their lower-resource alternative,
// disallowed ones are dropped and replaced by a ConstraintNote. Adapt is
// idempotent for a given profile and never changes the priority.
func Adapt(rec types.Recommendation, profile Profile) (types.Recommendation, error) {
	out := rec.Clone()
	out.Referrals = make([]types.Referral, 0, len(rec.Referrals))

	notes := make(map[types.ReferralKind]bool, len(out.ConstraintNotes))
	for _, n := range out.ConstraintNotes {
		notes[n.Kind] = true
	}
	// Two referrals may share a substitute; the first one placed wins.
	seen := make(map[types.ReferralKind]bool)
	place := func(ref types.Referral) {
		if seen[ref.Kind] {
			return
		}
		seen[ref.Kind] = true
		out.Referrals = append(out.Referrals, ref)
	}

	for _, ref := range rec.Referrals {
		pol, ok := profile.Policies[ref.Kind]
		if !ok {
			return types.Recommendation{}, &types.InconsistentRuleTableError{
				Table: profile.TableName(), Version: profile.Version,
				Detail: "no policy for referral kind " + string(ref.Kind),
			}
		}

		switch pol.Action {
		case ActionAllow:
			if ref.Disposition == "" {
				ref.Disposition = types.DispositionAllowed
			}
			place(ref)
		case ActionSubstitute:
			if pol.Substitute == nil {
				return types.Recommendation{}, &types.InconsistentRuleTableError{
					Table: profile.TableName(), Version: profile.Version,
					Detail: "substitute policy for " + string(ref.Kind) + " names no substitute",
				}
			}
			sub := *pol.Substitute
			sub.Disposition = types.DispositionSubstituted
			sub.SubstitutedFor = ref.Kind
			sub.Reason = pol.Reason
			place(sub)
		case ActionDisallow:
			if !notes[ref.Kind] {
				notes[ref.Kind] = true
				out.ConstraintNotes = append(out.ConstraintNotes, types.ConstraintNote{
					Kind:     ref.Kind,
					Reason:   pol.Reason,
					Fallback: pol.Fallback,
				})
			}
		default:
			return types.Recommendation{}, &types.InconsistentRuleTableError{
				Table: profile.TableName(), Version: profile.Version,
				Detail: fmt.Sprintf("policy for %s has unknown action %q", ref.Kind, pol.Action),
			}
		}
	}

	out.Priority = rec.Priority
	if step, ok := profile.NextSteps[rec.Priority]; ok && step != "" {
		out.NextStep = step
	}
	out.ImmediateActions = appendMissing(out.ImmediateActions, profile.ExtraActions[rec.Priority]...)

	guidance := append([]string{profile.GuidanceNote}, profile.Constraints...)
	out.EnvironmentGuidance = appendMissing(out.EnvironmentGuidance, guidance...)
	out.Environment = profile.Name

	if err := out.CheckConsistency(profile.TableName(), profile.Version); err != nil {
		return types.Recommendation{}, err
	}
	return out, nil
}

func appendMissing(dst []string, items ...string) []string {
	present := make(map[string]bool, len(dst))
	for _, s := range dst {
		present[s] = true
	}
	for _, s := range items {
		if s == "" || present[s] {
			continue
		}
		present[s] = true
		dst = append(dst, s)
	}
	return dst
}
