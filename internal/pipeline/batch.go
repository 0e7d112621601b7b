// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/field-triage/pkg/types"
)

// BatchResult is the outcome of one request in a batch.
type BatchResult struct {
	Result types.TriageResult
	Err    error
}

// RunBatch runs independent requests concurrently, at most limit at a time
// (limit <= 0 means unbounded). Results are returned in input order; one
// failing request does not cancel the others.
func RunBatch(ctx context.Context, o *Orchestrator, reqs []Request, limit int) []BatchResult {
	out := make([]BatchResult, len(reqs))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, req := range reqs {
		g.Go(func() error {
			res, err := o.Run(ctx, req)
			out[i] = BatchResult{Result: res, Err: err}
			return nil
		})
	}
	g.Wait()
	return out
}
