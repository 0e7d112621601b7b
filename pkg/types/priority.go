// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// Priority is the urgency tier of a triage decision. The zero value is not a
// valid tier. Tiers compare with the usual integer operators:
// PriorityEmergency > PriorityUrgent > PriorityRoutine.
type Priority int

const (
	PriorityRoutine Priority = iota + 1
	PriorityUrgent
	PriorityEmergency
)

var priorityNames = map[Priority]string{
	PriorityRoutine:   "routine",
	PriorityUrgent:    "urgent",
	PriorityEmergency: "emergency",
}

// Priorities lists every valid tier in ascending order.
func Priorities() []Priority {
	return []Priority{PriorityRoutine, PriorityUrgent, PriorityEmergency}
}

// Valid reports whether p is one of the three defined tiers.
func (p Priority) Valid() bool {
	_, ok := priorityNames[p]
	return ok
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// AtLeast reports whether p is as urgent as other or more.
func (p Priority) AtLeast(other Priority) bool {
	return p >= other
}

// MaxPriority returns the most urgent of the given tiers, or 0 when none are given.
func MaxPriority(ps ...Priority) Priority {
	var max Priority
	for _, p := range ps {
		if p > max {
			max = p
		}
	}
	return max
}

// ParsePriority converts a tier name ("routine", "urgent", "emergency") to a Priority.
func ParsePriority(s string) (Priority, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for p, n := range priorityNames {
		if n == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}

// MarshalText encodes the tier by name so JSON and YAML output stay readable.
func (p Priority) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid priority %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText decodes a tier name.
func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
