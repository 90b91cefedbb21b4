package sim

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Job is one closed-loop run of a batch. Control chains are stateful, so
// every job brings its own Simulator.
type Job struct {
	Name    string
	Sim     *Simulator
	Initial State
	Config  Config
}

// RunBatch runs jobs concurrently, at most workers at a time (unbounded when
// workers <= 0). The first failing run cancels the rest.
func RunBatch(ctx context.Context, jobs []Job, workers int) (map[string]*Result, error) {
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	var mu sync.Mutex
	results := make(map[string]*Result, len(jobs))

	for _, job := range jobs {
		g.Go(func() error {
			res, err := job.Sim.Run(ctx, job.Initial, job.Config)
			if err != nil {
				return err
			}
			mu.Lock()
			results[job.Name] = res
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
