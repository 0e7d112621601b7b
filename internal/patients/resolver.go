// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package patients

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/field-triage/pkg/types"
)

const (
	maxMatchedScans  = 3
	recentScansCount = 2
	minSymptomWord   = 4
)

// Resolver turns a repository lookup into the PatientContext the pipeline
// consumes.
type Resolver struct {
	repo Repository
}

// NewResolver wraps repo.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve looks the intake's patient up. A patient that is not on file yields
// a context with RecordFound false; store failures are returned so the caller
// can degrade and record why.
func (r *Resolver) Resolve(ctx context.Context, in types.Intake) (*types.PatientContext, error) {
	rec, err := r.repo.FindPatient(ctx, in.FirstName, in.LastName, in.IDNumber)
	if err != nil {
		return nil, fmt.Errorf("looking up patient: %w", err)
	}
	if rec == nil {
		return &types.PatientContext{RecordFound: false}, nil
	}
	return &types.PatientContext{
		RecordFound:   true,
		History:       append([]string(nil), rec.History...),
		RelevantScans: RelevantScans(rec.Scans, in.Symptoms),
	}, nil
}

// RelevantScans picks prior scans worth showing alongside the presentation.
// Scans mentioning any symptom word of four or more letters are preferred (at
// most three, in stored order); otherwise the two most recent scans are used.
func RelevantScans(scans, symptoms []string) []string {
	words := make(map[string]bool)
	for _, s := range symptoms {
		for _, w := range strings.Fields(strings.ToLower(s)) {
			if len(w) >= minSymptomWord {
				words[w] = true
			}
		}
	}

	if len(words) > 0 {
		var matched []string
		for _, scan := range scans {
			lower := strings.ToLower(scan)
			for w := range words {
				if strings.Contains(lower, w) {
					matched = append(matched, scan)
					break
				}
			}
			if len(matched) == maxMatchedScans {
				break
			}
		}
		if len(matched) > 0 {
			return matched
		}
	}

	if len(scans) <= recentScansCount {
		return append([]string(nil), scans...)
	}
	return append([]string(nil), scans[len(scans)-recentScansCount:]...)
}
