package loop

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lucasnoah/fixfactory/internal/checks"
	"github.com/lucasnoah/fixfactory/internal/extract"
	"github.com/lucasnoah/fixfactory/internal/issue"
	"github.com/lucasnoah/fixfactory/internal/telemetry"
)

// State is the controller's lifecycle state.
type State string

const (
	StateRunning   State = "running"
	StateClean     State = "clean"      // zero issues before any fix was needed
	StateConverged State = "converged"  // issues existed and were driven to zero
	StateStagnated State = "stagnated"  // no reduction for the stagnation window
	StateCappedOut State = "capped_out" // iteration cap reached
	StateFailed    State = "failed"     // checks could not run at all
	StateCancelled State = "cancelled"  // external cancellation
)

// Checker runs the configured checks once and returns their raw results.
type Checker interface {
	Run(ctx context.Context) *checks.GateResult
}

// Extractor converts raw check results into issues.
type Extractor interface {
	Extract(results []*checks.Result) *extract.Extraction
}

// Dispatcher selects and invokes agents for one issue.
type Dispatcher interface {
	SelectAndFix(ctx context.Context, iss issue.Issue) issue.FixResult
}

// Config holds the controller's iteration settings.
type Config struct {
	// MaxIterations caps the iteration index. Default 5.
	MaxIterations int
	// StagnationWindow is how many consecutive iterations without a
	// strict reduction trigger stagnation. Default 3.
	StagnationWindow int
	// DispatchConcurrency caps concurrent dispatches within one
	// iteration. Zero means NumCPU.
	DispatchConcurrency int64
}

// UnresolvedIssue records an issue the last dispatch pass could not fix.
type UnresolvedIssue struct {
	Issue           issue.Issue `json:"issue"`
	Reasons         []string    `json:"reasons,omitempty"`
	Recommendations []string    `json:"recommendations,omitempty"`
}

// Outcome is the final report of a run.
type Outcome struct {
	RunID            string             `json:"run_id,omitempty"`
	State            State              `json:"state"`
	TotalIterations  int                `json:"total_iterations"`
	History          []int              `json:"issue_count_history"`
	ReductionPercent float64            `json:"reduction_percent"`
	ResolvedByKind   map[issue.Kind]int `json:"resolved_by_kind,omitempty"`
	UnresolvedByKind map[issue.Kind]int `json:"unresolved_by_kind,omitempty"`
	Unresolved       []UnresolvedIssue  `json:"unresolved,omitempty"`
	SkippedChecks    []extract.Failure  `json:"skipped_checks,omitempty"`
	Guidance         string             `json:"guidance,omitempty"`
}

// Controller drives repeated check → extract → dispatch cycles until a
// stop condition holds.
type Controller struct {
	checker    Checker
	extractor  Extractor
	dispatcher Dispatcher
	sink       telemetry.Sink
	cfg        Config
	runID      string
	progress   io.Writer // live progress output; nil = silent
}

// New creates a Controller. A nil sink discards telemetry.
func New(checker Checker, extractor Extractor, dispatcher Dispatcher, sink telemetry.Sink, cfg Config) *Controller {
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 5
	}
	if cfg.StagnationWindow <= 0 {
		cfg.StagnationWindow = 3
	}
	if cfg.DispatchConcurrency <= 0 {
		cfg.DispatchConcurrency = int64(runtime.NumCPU())
	}
	return &Controller{
		checker:    checker,
		extractor:  extractor,
		dispatcher: dispatcher,
		sink:       sink,
		cfg:        cfg,
	}
}

// SetRunID tags emitted events and the outcome with a run identifier.
func (c *Controller) SetRunID(id string) { c.runID = id }

// SetProgress sets a writer for live progress output (e.g. os.Stderr).
func (c *Controller) SetProgress(w io.Writer) { c.progress = w }

func (c *Controller) logf(format string, args ...interface{}) {
	if c.progress != nil {
		fmt.Fprintf(c.progress, "  → "+format+"\n", args...)
	}
}

// Run executes the convergence loop until a terminal state. The returned
// Outcome is always non-nil, including on cancellation, so partial
// progress is never discarded.
func (c *Controller) Run(ctx context.Context) *Outcome {
	out := &Outcome{
		RunID:          c.runID,
		State:          StateRunning,
		ResolvedByKind: make(map[issue.Kind]int),
	}

	// best is the lowest issue count seen; noProgress counts consecutive
	// iterations stuck at it. The counter resets on every strict
	// improvement, so a plateau of length StagnationWindow stagnates.
	best := -1
	noProgress := 0

	for iteration := 0; ; iteration++ {
		if ctx.Err() != nil {
			return c.terminate(out, StateCancelled, "run cancelled; issue-count history reflects progress up to the interrupt")
		}

		gate := c.checker.Run(ctx)
		// An interrupt while checks are in flight makes every check come
		// back unrunnable; that is a cancellation, not an infrastructure
		// failure.
		if ctx.Err() != nil {
			return c.terminate(out, StateCancelled, "run cancelled; issue-count history reflects progress up to the interrupt")
		}
		if len(gate.Results) == 0 {
			return c.terminate(out, StateFailed, "no checks configured; nothing to run")
		}
		if gate.AllFailedToRun() {
			return c.terminate(out, StateFailed,
				fmt.Sprintf("checks could not be executed: %s", strings.Join(gate.FailedToRun(), ", ")))
		}

		ex := c.extractor.Extract(gate.Results)
		out.SkippedChecks = append(out.SkippedChecks, ex.Failures...)
		for _, f := range ex.Failures {
			c.sink.Emit(telemetry.Stamp(telemetry.Event{
				Type: telemetry.EventExtractionSkipped, RunID: c.runID,
				Iteration: iteration, Check: f.Check, Detail: f.Reason,
			}))
		}

		count := len(ex.Issues)
		out.History = append(out.History, count)
		out.TotalIterations = iteration + 1
		c.sink.Emit(telemetry.Stamp(telemetry.Event{
			Type: telemetry.EventIterationStarted, RunID: c.runID,
			Iteration: iteration, IssueCount: count,
		}))
		c.logf("iteration %d: %d issues", iteration, count)

		if count == 0 {
			if iteration == 0 {
				return c.terminate(out, StateClean, "no issues found; nothing to fix")
			}
			return c.terminate(out, StateConverged, "all issues resolved")
		}

		if iteration >= c.cfg.MaxIterations {
			out.recordUnresolvedKinds(ex.Issues)
			return c.terminate(out, StateCappedOut,
				fmt.Sprintf("iteration cap (%d) reached with %d issues remaining; raise max_iterations or review the remaining set", c.cfg.MaxIterations, count))
		}

		if best < 0 || count < best {
			best = count
			noProgress = 1
		} else {
			noProgress++
		}
		if noProgress >= c.cfg.StagnationWindow {
			out.recordUnresolvedKinds(ex.Issues)
			return c.terminate(out, StateStagnated,
				fmt.Sprintf("no reduction for %d consecutive iterations; the remaining %d issues likely need manual review", c.cfg.StagnationWindow, count))
		}

		start := time.Now()
		c.dispatchAll(ctx, iteration, ex.Issues, out)
		c.sink.Emit(telemetry.Stamp(telemetry.Event{
			Type: telemetry.EventIterationCompleted, RunID: c.runID,
			Iteration: iteration, IssueCount: count, Duration: time.Since(start),
		}))

		if ctx.Err() != nil {
			return c.terminate(out, StateCancelled, "run cancelled during dispatch; partially applied fixes are kept")
		}
	}
}

// dispatchAll dispatches every issue of one iteration concurrently.
// Issues sharing a file path are serialized behind a per-path mutex so
// two agents never race on one file; issues on distinct files proceed in
// parallel, bounded by the concurrency cap.
func (c *Controller) dispatchAll(ctx context.Context, iteration int, issues []issue.Issue, out *Outcome) {
	fileLocks := make(map[string]*sync.Mutex)
	for _, iss := range issues {
		if f := iss.File(); f != "" && fileLocks[f] == nil {
			fileLocks[f] = &sync.Mutex{}
		}
	}

	sem := semaphore.NewWeighted(c.cfg.DispatchConcurrency)
	results := make([]issue.FixResult, len(issues))

	var wg sync.WaitGroup
	for i, iss := range issues {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = issue.Failure("dispatch cancelled")
			continue
		}
		wg.Add(1)
		go func(i int, iss issue.Issue) {
			defer wg.Done()
			defer sem.Release(1)
			if lock := fileLocks[iss.File()]; lock != nil {
				lock.Lock()
				defer lock.Unlock()
			}
			results[i] = c.dispatcher.SelectAndFix(ctx, iss)
		}(i, iss)
	}
	wg.Wait()

	// The unresolved set reflects the most recent dispatch pass only;
	// anything fixed here that reappears will be re-dispatched next
	// iteration anyway.
	out.Unresolved = nil
	for i, res := range results {
		kind := issues[i].Kind
		success := res.Success
		if success {
			out.ResolvedByKind[kind]++
		} else {
			out.Unresolved = append(out.Unresolved, UnresolvedIssue{
				Issue:           issues[i],
				Reasons:         res.RemainingIssues,
				Recommendations: res.Recommendations,
			})
		}
		c.sink.Emit(telemetry.Stamp(telemetry.Event{
			Type: telemetry.EventDispatchCompleted, RunID: c.runID,
			Iteration: iteration, Fingerprint: issues[i].Fingerprint(),
			Kind: string(kind), Success: success,
		}))
	}
}

// recordUnresolvedKinds fills the per-kind breakdown of the issue set
// that triggered termination.
func (o *Outcome) recordUnresolvedKinds(issues []issue.Issue) {
	o.UnresolvedByKind = make(map[issue.Kind]int)
	for _, iss := range issues {
		o.UnresolvedByKind[iss.Kind]++
	}
}

// terminate stamps the outcome with its terminal state and guidance and
// emits the loop_terminated event.
func (c *Controller) terminate(out *Outcome, state State, guidance string) *Outcome {
	out.State = state
	out.Guidance = guidance
	out.ReductionPercent = reduction(out.History)
	c.sink.Emit(telemetry.Stamp(telemetry.Event{
		Type: telemetry.EventLoopTerminated, RunID: c.runID,
		State: string(state), TotalIterations: out.TotalIterations,
		ReductionPercent: out.ReductionPercent, Detail: guidance,
	}))
	c.logf("terminated: %s (%.0f%% reduction over %d iterations)", state, out.ReductionPercent, out.TotalIterations)
	return out
}

// reduction computes the percentage drop from the first recorded issue
// count to the last.
func reduction(history []int) float64 {
	if len(history) == 0 || history[0] == 0 {
		return 0
	}
	first := float64(history[0])
	last := float64(history[len(history)-1])
	return (first - last) / first * 100
}

// Kinds returns the issue kinds present in an outcome's breakdowns,
// sorted for stable report output.
func (o *Outcome) Kinds() []issue.Kind {
	set := make(map[issue.Kind]bool)
	for k := range o.ResolvedByKind {
		set[k] = true
	}
	for k := range o.UnresolvedByKind {
		set[k] = true
	}
	kinds := make([]issue.Kind, 0, len(set))
	for k := range set {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
