package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lucasnoah/fixfactory/internal/issue"
)

// scriptRunner returns canned results per command and records calls.
type scriptRunner struct {
	calls   []string
	results map[string]scriptResult
}

type scriptResult struct {
	stderr   string
	exitCode int
	err      error
}

func (s *scriptRunner) Run(_ context.Context, _ string, command string) (string, string, int, error) {
	s.calls = append(s.calls, command)
	r := s.results[command]
	return "", r.stderr, r.exitCode, r.err
}

func fileIssue() issue.Issue {
	return issue.Issue{
		Kind:     issue.KindFormatting,
		Severity: issue.SeverityLow,
		Message:  "missing semicolon",
		Location: &issue.Location{File: "src/a.ts", Line: 3},
	}
}

func TestCommandAgent_FixSubstitutesFile(t *testing.T) {
	runner := &scriptRunner{results: map[string]scriptResult{}}
	a := NewCommandAgent(CommandAgentConfig{
		Name:     "format",
		Priority: 10,
		Kinds:    []issue.Kind{issue.KindFormatting},
		Command:  "prettier --write {file}",
	}, "/repo", runner)

	res, err := a.Fix(context.Background(), fileIssue())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if len(runner.calls) != 1 || runner.calls[0] != "prettier --write src/a.ts" {
		t.Errorf("unexpected calls: %v", runner.calls)
	}
	if len(res.ModifiedFiles) != 1 || res.ModifiedFiles[0] != "src/a.ts" {
		t.Errorf("expected modified file src/a.ts, got %v", res.ModifiedFiles)
	}
	if !res.Consistent() {
		t.Errorf("result violates the success invariant")
	}
}

func TestCommandAgent_VerifyFailureDowngrades(t *testing.T) {
	runner := &scriptRunner{results: map[string]scriptResult{
		"tsc --noEmit src/a.ts": {exitCode: 2, stderr: "syntax error"},
	}}
	a := NewCommandAgent(CommandAgentConfig{
		Name:    "format",
		Kinds:   []issue.Kind{issue.KindFormatting},
		Command: "prettier --write {file}",
		Verify:  "tsc --noEmit {file}",
	}, "/repo", runner)

	res, err := a.Fix(context.Background(), fileIssue())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success {
		t.Fatalf("verify failure must downgrade to failure")
	}
	if len(res.RemainingIssues) == 0 || !strings.Contains(res.RemainingIssues[0], "verification failed") {
		t.Errorf("expected verification-failed remaining issue, got %v", res.RemainingIssues)
	}
	// The write happened even though verification failed.
	if len(res.ModifiedFiles) != 1 {
		t.Errorf("modified files should still be reported, got %v", res.ModifiedFiles)
	}
}

func TestCommandAgent_VerifyPassRaisesConfidence(t *testing.T) {
	runner := &scriptRunner{results: map[string]scriptResult{}}
	a := NewCommandAgent(CommandAgentConfig{
		Name:    "format",
		Kinds:   []issue.Kind{issue.KindFormatting},
		Command: "prettier --write {file}",
		Verify:  "tsc --noEmit {file}",
	}, "/repo", runner)

	res, _ := a.Fix(context.Background(), fileIssue())
	if !res.Success || res.Confidence != 0.9 {
		t.Errorf("verified fix should score 0.9, got success=%v confidence=%v", res.Success, res.Confidence)
	}
}

func TestCommandAgent_FixCommandFailure(t *testing.T) {
	runner := &scriptRunner{results: map[string]scriptResult{
		"prettier --write src/a.ts": {exitCode: 1, stderr: "cannot parse"},
	}}
	a := NewCommandAgent(CommandAgentConfig{
		Name:    "format",
		Kinds:   []issue.Kind{issue.KindFormatting},
		Command: "prettier --write {file}",
	}, "/repo", runner)

	res, err := a.Fix(context.Background(), fileIssue())
	if err != nil {
		t.Fatalf("non-zero exit is a failed attempt, not an error: %v", err)
	}
	if res.Success {
		t.Errorf("expected failure")
	}
}

func TestCommandAgent_ExecErrorReturnsError(t *testing.T) {
	runner := &scriptRunner{results: map[string]scriptResult{
		"prettier --write src/a.ts": {err: errors.New("exec: not found")},
	}}
	a := NewCommandAgent(CommandAgentConfig{
		Name:    "format",
		Kinds:   []issue.Kind{issue.KindFormatting},
		Command: "prettier --write {file}",
	}, "/repo", runner)

	if _, err := a.Fix(context.Background(), fileIssue()); err == nil {
		t.Errorf("expected error when the fix command cannot run")
	}
}

func TestCommandAgent_Confidence(t *testing.T) {
	runner := &scriptRunner{}
	fileScoped := NewCommandAgent(CommandAgentConfig{
		Name:    "format",
		Kinds:   []issue.Kind{issue.KindFormatting},
		Command: "prettier --write {file}",
	}, "/repo", runner)
	projectWide := NewCommandAgent(CommandAgentConfig{
		Name:    "format-all",
		Kinds:   []issue.Kind{issue.KindFormatting},
		Command: "prettier --write .",
	}, "/repo", runner)

	ctx := context.Background()
	noLoc := issue.Issue{Kind: issue.KindFormatting, Message: "x"}

	if c := fileScoped.Confidence(ctx, fileIssue()); c != 0.75 {
		t.Errorf("expected base confidence 0.75, got %v", c)
	}
	if c := fileScoped.Confidence(ctx, noLoc); c != 0.1 {
		t.Errorf("file-scoped command without a location should score 0.1, got %v", c)
	}
	if c := projectWide.Confidence(ctx, noLoc); c != 0.6 {
		t.Errorf("project-wide command without a location should score 0.6, got %v", c)
	}
}

func TestTriageAgent_AlwaysEligibleNeverFixes(t *testing.T) {
	a := NewTriageAgent(100)
	iss := issue.Issue{
		Kind:     issue.KindDependency,
		Severity: issue.SeverityCritical,
		Message:  "vulnerable dependency lodash",
		Details:  []string{"advisory: https://example.test/1"},
	}

	if c := a.Confidence(context.Background(), iss); c != 0.3 {
		t.Errorf("triage confidence must sit at the acceptance floor, got %v", c)
	}

	res, err := a.Fix(context.Background(), iss)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success {
		t.Errorf("triage never claims success")
	}
	if len(res.Recommendations) < 2 {
		t.Errorf("expected review + severity recommendations, got %v", res.Recommendations)
	}
	if len(res.ModifiedFiles) != 0 {
		t.Errorf("triage must not touch files")
	}
}
