// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import "fmt"

// State is a stage of a triage run.
type State int

const (
	StateVerifying State = iota + 1
	StateContextualizing
	StatePreparing
	StateGuardrailCheck
	StatePriorityAssignment
	StateRecommending
	StateConstraining
	StateSummarizing
	StateFinalized
)

var stateNames = map[State]string{
	StateVerifying:          "verifying",
	StateContextualizing:    "contextualizing",
	StatePreparing:          "preparing",
	StateGuardrailCheck:     "guardrail_check",
	StatePriorityAssignment: "priority_assignment",
	StateRecommending:       "recommending",
	StateConstraining:       "constraining",
	StateSummarizing:        "summarizing",
	StateFinalized:          "finalized",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// StateError reports an attempt to enter a state without the output the
// previous stage must have produced.
type StateError struct {
	From    State
	To      State
	Missing string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot enter %s from %s: missing %s", e.To, e.From, e.Missing)
}
