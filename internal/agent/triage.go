package agent

import (
	"context"
	"fmt"

	"github.com/lucasnoah/fixfactory/internal/issue"
)

// TriageAgent is the generalist tail of every fallback chain. It never
// modifies files; it converts an issue nobody else could fix into
// concrete review recommendations. Registered at priority ~100 so every
// specialist outranks it.
type TriageAgent struct {
	priority int
}

// NewTriageAgent creates a TriageAgent with the given priority.
func NewTriageAgent(priority int) *TriageAgent {
	return &TriageAgent{priority: priority}
}

func (t *TriageAgent) Name() string  { return "triage" }
func (t *TriageAgent) Priority() int { return t.priority }

func (t *TriageAgent) SupportedKinds() []issue.Kind {
	return issue.AllKinds()
}

// Confidence sits exactly at the acceptance floor: triage is always
// eligible, and never outranks anything.
func (t *TriageAgent) Confidence(_ context.Context, _ issue.Issue) float64 {
	return 0.3
}

func (t *TriageAgent) Fix(_ context.Context, iss issue.Issue) (issue.FixResult, error) {
	rec := fmt.Sprintf("manual review needed for %s issue: %s", iss.Kind, iss.Message)
	if iss.Location != nil {
		rec += fmt.Sprintf(" (%s)", iss.Location)
	}

	recs := []string{rec}
	if iss.Severity == issue.SeverityCritical || iss.Severity == issue.SeverityHigh {
		recs = append(recs, fmt.Sprintf("severity is %s: prioritize this over lower-severity findings", iss.Severity))
	}
	recs = append(recs, iss.Details...)

	return issue.FixResult{
		Success:         false,
		Confidence:      0,
		RemainingIssues: []string{fmt.Sprintf("no automated fix for: %s", iss.Message)},
		Recommendations: recs,
	}, nil
}
