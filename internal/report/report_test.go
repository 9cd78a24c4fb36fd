package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lucasnoah/fixfactory/internal/issue"
	"github.com/lucasnoah/fixfactory/internal/loop"
)

func sampleOutcome() loop.Outcome {
	return loop.Outcome{
		RunID:            "run-42",
		State:            loop.StateConverged,
		TotalIterations:  3,
		History:          []int{12, 5, 0},
		ReductionPercent: 100,
		ResolvedByKind: map[issue.Kind]int{
			issue.KindFormatting: 8,
			issue.KindTypeError:  4,
		},
	}
}

func TestArtifactWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	a := &Artifact{
		RunID:      "run-42",
		Project:    "/tmp/proj",
		StartedAt:  time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2025, 6, 1, 10, 5, 0, 0, time.UTC),
		Outcome:    sampleOutcome(),
	}

	path, err := a.Write(dir)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if filepath.Base(path) != "report.json" {
		t.Errorf("artifact path = %s, want report.json basename", path)
	}

	got, err := ReadArtifact(path)
	if err != nil {
		t.Fatalf("ReadArtifact() error = %v", err)
	}
	if got.RunID != "run-42" {
		t.Errorf("RunID = %q, want run-42", got.RunID)
	}
	if got.Outcome.State != loop.StateConverged {
		t.Errorf("State = %q, want converged", got.Outcome.State)
	}
	if len(got.Outcome.History) != 3 {
		t.Errorf("History = %v, want 3 entries", got.Outcome.History)
	}
}

func TestWriteCreatesNestedDirs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "runs", "run-42")
	a := &Artifact{RunID: "run-42", Outcome: sampleOutcome()}
	if _, err := a.Write(dir); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "report.json")); err != nil {
		t.Errorf("report.json not created: %v", err)
	}
}

func TestWriteAtomicLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	if err := writeAtomic(filepath.Join(dir, "out.json"), []byte("{}")); err != nil {
		t.Fatalf("writeAtomic() error = %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "out.json" {
		t.Errorf("unexpected dir contents: %v", entries)
	}
}

func TestFormatConverged(t *testing.T) {
	out := sampleOutcome()
	text := Format(&out)

	for _, want := range []string{
		"run-42",
		"converged",
		"Iterations: 3",
		"12 -> 5 -> 0",
		"Reduction: 100.0%",
		"formatting",
		"fixed 8",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Format() missing %q in:\n%s", want, text)
		}
	}
}

func TestFormatUnresolvedAndGuidance(t *testing.T) {
	out := loop.Outcome{
		RunID:            "run-9",
		State:            loop.StateStagnated,
		TotalIterations:  4,
		History:          []int{20, 18, 18, 18},
		ReductionPercent: 10,
		UnresolvedByKind: map[issue.Kind]int{issue.KindSecurity: 1},
		Unresolved: []loop.UnresolvedIssue{
			{
				Issue: issue.Issue{
					Kind:     issue.KindSecurity,
					Message:  "hardcoded credential",
					Location: &issue.Location{File: "src/auth.ts", Line: 12},
				},
				Recommendations: []string{"rotate the credential and load it from the environment"},
			},
		},
		Guidance: "manual intervention needed for remaining issues",
	}
	text := Format(&out)

	for _, want := range []string{
		"stagnated",
		"hardcoded credential",
		"src/auth.ts:12",
		"rotate the credential",
		"manual intervention needed",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Format() missing %q in:\n%s", want, text)
		}
	}
}

func TestFormatEmptyHistory(t *testing.T) {
	out := loop.Outcome{RunID: "run-0", State: loop.StateFailed}
	text := Format(&out)
	if !strings.Contains(text, "none") {
		t.Errorf("Format() should render empty history as none:\n%s", text)
	}
}
