package agent

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Job is one independent run for RunParallel.
type Job struct {
	Agent   *Agent
	Task    string
	Options []Option
}

// RunParallel runs independent jobs concurrently, at most concurrency at a
// time (default 4). Each run has its own memory, budget and sandbox; only
// the agents' tool registries are shared. Results are returned in job order.
//
// A run that ends OutcomeFailed is reported in its Result. The returned
// error is set only when a run could not start, which cancels the jobs
// that have not finished.
func RunParallel(ctx context.Context, jobs []Job, concurrency int) ([]*Result, error) {
	if concurrency <= 0 {
		concurrency = 4
	}

	results := make([]*Result, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, job := range jobs {
		g.Go(func() error {
			res, err := job.Agent.Run(ctx, job.Task, job.Options...)
			if res == nil {
				return fmt.Errorf("job %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
