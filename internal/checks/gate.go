package checks

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

// GateOpts configures a gate run.
type GateOpts struct {
	Checks []CheckConfig
	// Concurrency caps how many checks run at once. Zero means NumCPU.
	Concurrency int64
}

// GateResult is the combined outcome of running every configured check.
type GateResult struct {
	Passed  bool      `json:"passed"`
	Results []*Result `json:"results"`
}

// FailedToRun returns the names of checks that could not be executed at
// all (as opposed to checks that ran and failed).
func (g *GateResult) FailedToRun() []string {
	var names []string
	for _, r := range g.Results {
		if r.ExecError != "" {
			names = append(names, r.CheckName)
		}
	}
	return names
}

// AllFailedToRun reports whether no check could be executed. The
// convergence loop treats this as an infrastructure failure.
func (g *GateResult) AllFailedToRun() bool {
	return len(g.Results) > 0 && len(g.FailedToRun()) == len(g.Results)
}

// RunGate executes all configured checks concurrently, bounded by the
// concurrency cap. Each check keeps its own timeout; a timed-out or
// crashed check yields a failure result for that check only. Result
// order matches the configured check order regardless of completion
// order.
func (r *Runner) RunGate(ctx context.Context, dir string, opts GateOpts) *GateResult {
	limit := opts.Concurrency
	if limit <= 0 {
		limit = int64(runtime.NumCPU())
	}

	sem := semaphore.NewWeighted(limit)
	results := make([]*Result, len(opts.Checks))

	var wg sync.WaitGroup
	for i, cfg := range opts.Checks {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Cancelled while waiting: report the remaining checks as
			// not executed instead of dropping them silently.
			results[i] = &Result{CheckName: cfg.Name, Parser: cfg.Parser, ExitCode: -1, ExecError: err.Error()}
			continue
		}
		wg.Add(1)
		go func(i int, cfg CheckConfig) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = r.Run(ctx, dir, cfg)
		}(i, cfg)
	}
	wg.Wait()

	gate := &GateResult{Passed: true, Results: results}
	for _, res := range results {
		if !res.Passed {
			gate.Passed = false
		}
	}
	return gate
}
