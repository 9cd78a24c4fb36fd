package extract

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/lucasnoah/fixfactory/internal/checks"
	"github.com/lucasnoah/fixfactory/internal/issue"
)

const eslintTwoFindings = `[
  {"filePath": "src/a.ts", "errorCount": 1, "warningCount": 1, "messages": [
    {"ruleId": "semi", "severity": 2, "message": "Missing semicolon.", "line": 3, "column": 10},
    {"ruleId": "no-unused-vars", "severity": 1, "message": "'x' is defined but never used.", "line": 7, "column": 1}
  ]}
]`

func TestExtract_ESLint(t *testing.T) {
	e := NewExtractor()
	out := e.Extract([]*checks.Result{
		{CheckName: "lint", Parser: "eslint", Stdout: eslintTwoFindings, ExitCode: 1},
	})

	if len(out.Failures) != 0 {
		t.Fatalf("unexpected failures: %v", out.Failures)
	}
	if len(out.Issues) != 2 {
		t.Fatalf("expected 2 issues, got %d", len(out.Issues))
	}
	if out.Counts["lint"] != 2 {
		t.Errorf("expected count 2 for lint, got %d", out.Counts["lint"])
	}
	if out.Issues[0].Kind != issue.KindFormatting {
		t.Errorf("semi should map to formatting, got %s", out.Issues[0].Kind)
	}
	if out.Issues[1].Kind != issue.KindDeadCode {
		t.Errorf("no-unused-vars should map to dead-code, got %s", out.Issues[1].Kind)
	}
	if out.Issues[0].Location == nil || out.Issues[0].Location.File != "src/a.ts" || out.Issues[0].Location.Line != 3 {
		t.Errorf("unexpected location: %+v", out.Issues[0].Location)
	}
	if out.Issues[0].OriginStage != "lint" {
		t.Errorf("origin should be the check name, got %q", out.Issues[0].OriginStage)
	}
}

func TestExtract_CountMismatchDropsCheckOnly(t *testing.T) {
	// errorCount says 3 findings but only 1 message parses.
	bad := `[{"filePath": "a.ts", "errorCount": 3, "warningCount": 0, "messages": [
    {"ruleId": "semi", "severity": 2, "message": "x", "line": 1, "column": 1}]}]`

	e := NewExtractor()
	out := e.Extract([]*checks.Result{
		{CheckName: "lint", Parser: "eslint", Stdout: bad, ExitCode: 1},
		{CheckName: "types", Parser: "typescript", Stdout: "src/b.ts(9,1): error TS2304: Cannot find name 'foo'.", ExitCode: 2},
	})

	if len(out.Failures) != 1 || out.Failures[0].Check != "lint" {
		t.Fatalf("expected one failure for lint, got %v", out.Failures)
	}
	if !strings.Contains(out.Failures[0].Reason, "count mismatch") {
		t.Errorf("expected count mismatch reason, got %q", out.Failures[0].Reason)
	}
	// The healthy check's issues survive.
	if len(out.Issues) != 1 || out.Issues[0].Kind != issue.KindTypeError {
		t.Fatalf("expected 1 type-error issue, got %+v", out.Issues)
	}
}

func TestExtract_MalformedJSONIsFailure(t *testing.T) {
	e := NewExtractor()
	out := e.Extract([]*checks.Result{
		{CheckName: "lint", Parser: "eslint", Stdout: "not json", ExitCode: 1},
	})
	if len(out.Failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(out.Failures))
	}
	if len(out.Issues) != 0 {
		t.Errorf("malformed check must contribute no issues")
	}
}

func TestExtract_ExecErrorIsFailure(t *testing.T) {
	e := NewExtractor()
	out := e.Extract([]*checks.Result{
		{CheckName: "lint", Parser: "eslint", ExecError: "exec: not found"},
	})
	if len(out.Failures) != 1 || !strings.Contains(out.Failures[0].Reason, "did not run") {
		t.Fatalf("expected did-not-run failure, got %v", out.Failures)
	}
}

func TestExtract_DeduplicatesAcrossChecks(t *testing.T) {
	// Two checks report the identical finding; fingerprints collide and
	// the first occurrence wins.
	tsOut := "src/a.ts(3,1): error TS2304: Cannot find name 'x'."

	e := NewExtractor()
	out := e.Extract([]*checks.Result{
		{CheckName: "types", Parser: "typescript", Stdout: tsOut, ExitCode: 2},
		{CheckName: "types-strict", Parser: "typescript", Stdout: tsOut, ExitCode: 2},
	})

	if len(out.Issues) != 1 {
		t.Fatalf("expected de-duplication to 1 issue, got %d", len(out.Issues))
	}
	if out.Issues[0].OriginStage != "types" {
		t.Errorf("first occurrence should win, got origin %q", out.Issues[0].OriginStage)
	}
	// Pre-dedup counts are preserved per check.
	if out.Counts["types"] != 1 || out.Counts["types-strict"] != 1 {
		t.Errorf("unexpected counts: %v", out.Counts)
	}
}

func TestExtract_VitestFailures(t *testing.T) {
	stdout := `{"numTotalTests": 3, "numFailedTests": 1, "testResults": [
    {"name": "src/auth.test.ts", "status": "failed", "assertionResults": [
      {"fullName": "auth > rejects bad token", "status": "failed", "failureMessages": ["expected 401, got 200"]},
      {"fullName": "auth > accepts good token", "status": "passed"}
    ]}
  ]}`

	e := NewExtractor()
	out := e.Extract([]*checks.Result{
		{CheckName: "test", Parser: "vitest", Stdout: stdout, ExitCode: 1},
	})

	if len(out.Failures) != 0 {
		t.Fatalf("unexpected failures: %v", out.Failures)
	}
	if len(out.Issues) != 1 {
		t.Fatalf("expected 1 issue, got %d", len(out.Issues))
	}
	iss := out.Issues[0]
	if iss.Kind != issue.KindTestFailure || iss.Severity != issue.SeverityHigh {
		t.Errorf("unexpected kind/severity: %s/%s", iss.Kind, iss.Severity)
	}
	if len(iss.Details) != 1 || iss.Details[0] != "expected 401, got 200" {
		t.Errorf("expected failure message detail, got %v", iss.Details)
	}
}

func TestExtract_NPMAudit(t *testing.T) {
	stdout := `{"metadata": {"vulnerabilities": {"total": 2}},
  "vulnerabilities": {
    "lodash": {"name": "lodash", "severity": "high", "title": "Prototype Pollution", "url": "https://example.test/1"},
    "axios": {"name": "axios", "severity": "moderate", "title": "SSRF"}
  }}`

	e := NewExtractor()
	out := e.Extract([]*checks.Result{
		{CheckName: "audit", Parser: "npm-audit", Stdout: stdout, ExitCode: 1},
	})

	if len(out.Issues) != 2 {
		t.Fatalf("expected 2 issues, got %d (failures %v)", len(out.Issues), out.Failures)
	}
	// Sorted by module name for stable ordering.
	if out.Issues[0].Message != "vulnerable dependency axios: SSRF" {
		t.Errorf("unexpected first issue: %q", out.Issues[0].Message)
	}
	if out.Issues[1].Severity != issue.SeverityHigh {
		t.Errorf("lodash should be high severity, got %s", out.Issues[1].Severity)
	}
	if out.Issues[0].Kind != issue.KindDependency {
		t.Errorf("audit findings are dependency issues, got %s", out.Issues[0].Kind)
	}
}

func TestExtract_GenericUsesConfiguredKind(t *testing.T) {
	e := NewExtractor()
	e.SetDefaultKind("coverage", issue.KindCoverageGap)

	out := e.Extract([]*checks.Result{
		{CheckName: "coverage", Parser: "generic", Stdout: "71% < 80%", ExitCode: 1},
		{CheckName: "smoke", Parser: "unknown-parser", ExitCode: 1},
	})

	if len(out.Issues) != 2 {
		t.Fatalf("expected 2 issues, got %d", len(out.Issues))
	}
	if out.Issues[0].Kind != issue.KindCoverageGap {
		t.Errorf("expected configured kind coverage-gap, got %s", out.Issues[0].Kind)
	}
	// Unknown parser names fall back to generic with the default kind.
	if out.Issues[1].Kind != issue.KindTestFailure {
		t.Errorf("expected fallback kind test-failure, got %s", out.Issues[1].Kind)
	}
	if len(out.Issues[0].Details) != 1 || !strings.Contains(out.Issues[0].Details[0], "71%") {
		t.Errorf("expected output detail, got %v", out.Issues[0].Details)
	}
}

func TestExtract_GenericTruncationKeepsRunesIntact(t *testing.T) {
	// Three-byte runes make the truncation cut land inside a rune
	// (9000-8000 is not a multiple of 3); the kept tail must still be
	// valid UTF-8.
	long := strings.Repeat("€", 3000)

	p := &GenericParser{}
	parsed, err := p.Parse(&checks.Result{CheckName: "smoke", Parser: "generic", Stdout: long, ExitCode: 1}, issue.KindTestFailure)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(parsed.Issues) != 1 || len(parsed.Issues[0].Details) != 1 {
		t.Fatalf("expected one issue with output detail, got %+v", parsed.Issues)
	}
	detail := parsed.Issues[0].Details[0]
	if !utf8.ValidString(detail) {
		t.Errorf("truncated detail is not valid UTF-8")
	}
	if len(detail) > maxOutputLen+len("…(truncated)\n") {
		t.Errorf("detail length %d exceeds the truncation cap", len(detail))
	}
}

func TestExtract_PassingGenericCheckHasNoIssues(t *testing.T) {
	e := NewExtractor()
	out := e.Extract([]*checks.Result{
		{CheckName: "smoke", Parser: "generic", Passed: true, ExitCode: 0},
	})
	if len(out.Issues) != 0 || len(out.Failures) != 0 {
		t.Errorf("passing check should produce nothing, got %+v", out)
	}
}
