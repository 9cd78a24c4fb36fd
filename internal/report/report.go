package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lucasnoah/fixfactory/internal/loop"
)

// Artifact is the JSON record written for each run under the runs
// directory. It wraps the loop outcome with run metadata.
type Artifact struct {
	RunID      string       `json:"run_id"`
	Project    string       `json:"project,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Outcome    loop.Outcome `json:"outcome"`
}

// RunDir returns the artifact directory for a run,
// ~/.fixfactory/runs/<run-id>.
func RunDir(runID string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".fixfactory", "runs", runID), nil
}

// Write persists the artifact as report.json under dir and returns the
// file path.
func (a *Artifact) Write(dir string) (string, error) {
	path := filepath.Join(dir, "report.json")
	if err := writeJSON(path, a); err != nil {
		return "", fmt.Errorf("write run artifact: %w", err)
	}
	return path, nil
}

// Format renders a human-readable summary of an outcome.
func Format(out *loop.Outcome) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run %s: %s\n", out.RunID, describeState(out.State))
	fmt.Fprintf(&b, "  Iterations: %d\n", out.TotalIterations)
	fmt.Fprintf(&b, "  Issue counts: %s\n", historyLine(out.History))
	fmt.Fprintf(&b, "  Reduction: %.1f%%\n", out.ReductionPercent)

	if kinds := out.Kinds(); len(kinds) > 0 {
		fmt.Fprintf(&b, "  By kind:\n")
		for _, k := range kinds {
			fmt.Fprintf(&b, "    %-18s fixed %d, unresolved %d\n",
				string(k), out.ResolvedByKind[k], out.UnresolvedByKind[k])
		}
	}

	if len(out.SkippedChecks) > 0 {
		fmt.Fprintf(&b, "  Skipped checks:\n")
		for _, f := range out.SkippedChecks {
			fmt.Fprintf(&b, "    %s: %s\n", f.Check, f.Reason)
		}
	}

	if len(out.Unresolved) > 0 {
		fmt.Fprintf(&b, "  Unresolved issues:\n")
		for _, u := range out.Unresolved {
			loc := ""
			if u.Issue.Location != nil {
				loc = " (" + u.Issue.Location.String() + ")"
			}
			fmt.Fprintf(&b, "    [%s] %s%s\n", u.Issue.Kind, u.Issue.Message, loc)
			for _, rec := range u.Recommendations {
				fmt.Fprintf(&b, "      - %s\n", rec)
			}
		}
	}

	if out.Guidance != "" {
		fmt.Fprintf(&b, "  %s\n", out.Guidance)
	}
	return b.String()
}

func describeState(s loop.State) string {
	switch s {
	case loop.StateClean:
		return "clean, no issues found"
	case loop.StateConverged:
		return "converged, all issues resolved"
	case loop.StateStagnated:
		return "stagnated, issue count stopped improving"
	case loop.StateCappedOut:
		return "iteration cap reached"
	case loop.StateFailed:
		return "failed, checks could not run"
	case loop.StateCancelled:
		return "cancelled"
	default:
		return string(s)
	}
}

func historyLine(history []int) string {
	if len(history) == 0 {
		return "none"
	}
	parts := make([]string, len(history))
	for i, c := range history {
		parts[i] = fmt.Sprintf("%d", c)
	}
	return strings.Join(parts, " -> ")
}
