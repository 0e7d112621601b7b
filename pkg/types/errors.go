// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "fmt"

// ValidationError reports a missing or malformed intake field. It is fatal
// and is raised before any guardrail or priority rule runs.
type ValidationError struct {
	Stage  string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed at %s: field %s: %s", e.Stage, e.Field, e.Reason)
}

// UnknownEnvironmentProfileError reports an environment tag with no profile.
// Callers must not fall back to the standard profile.
type UnknownEnvironmentProfileError struct {
	Tag string
}

func (e *UnknownEnvironmentProfileError) Error() string {
	if e.Tag == "" {
		return "unknown environment profile: no environment tag given"
	}
	return fmt.Sprintf("unknown environment profile %q", e.Tag)
}

// InconsistentRuleTableError reports a rule table that violates its own
// invariants, such as a tier with no mapped recommendation. It indicates a
// table bug and is never recovered from.
type InconsistentRuleTableError struct {
	Table   string
	Version string
	Detail  string
}

func (e *InconsistentRuleTableError) Error() string {
	return fmt.Sprintf("inconsistent rule table %s (%s): %s", e.Table, e.Version, e.Detail)
}
