package issue

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Kind categorizes a finding. The set is closed; adding a category means
// adding a constant here and teaching at least one agent to claim it.
type Kind string

const (
	KindFormatting       Kind = "formatting"
	KindTypeError        Kind = "type-error"
	KindSecurity         Kind = "security"
	KindDeadCode         Kind = "dead-code"
	KindComplexity       Kind = "complexity"
	KindImportError      Kind = "import-error"
	KindDocumentation    Kind = "documentation"
	KindDuplication      Kind = "duplication"
	KindPerformance      Kind = "performance"
	KindTestFailure      Kind = "test-failure"
	KindTestOrganization Kind = "test-organization"
	KindCoverageGap      Kind = "coverage-gap"
	KindDependency       Kind = "dependency"
)

// AllKinds lists every defined kind, in declaration order.
func AllKinds() []Kind {
	return []Kind{
		KindFormatting, KindTypeError, KindSecurity, KindDeadCode,
		KindComplexity, KindImportError, KindDocumentation, KindDuplication,
		KindPerformance, KindTestFailure, KindTestOrganization,
		KindCoverageGap, KindDependency,
	}
}

// Valid reports whether k is a defined kind.
func (k Kind) Valid() bool {
	for _, known := range AllKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Severity orders findings from low to critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns a comparable ordering for severities (low=0 .. critical=3).
// Unknown severities rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	}
	return -1
}

// Location points at the file and line a finding refers to. Line 0 means
// the finding is file-scoped.
type Location struct {
	File string `json:"file"`
	Line int    `json:"line,omitempty"`
}

func (l Location) String() string {
	if l.Line > 0 {
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	}
	return l.File
}

// Issue is a single normalized finding from a check. Issues are value
// types: created fresh each iteration from raw check output, never
// mutated in place.
type Issue struct {
	Kind        Kind      `json:"kind"`
	Severity    Severity  `json:"severity"`
	Message     string    `json:"message"`
	Location    *Location `json:"location,omitempty"`
	OriginStage string    `json:"origin_stage"`
	Details     []string  `json:"details,omitempty"`
}

// Fingerprint returns a stable identity for the issue derived from
// (kind, message, location). Two issues with the same fingerprint are the
// same issue across iterations; origin and details do not contribute, so
// the same finding reported by two checks de-duplicates.
func (i Issue) Fingerprint() string {
	loc := ""
	if i.Location != nil {
		loc = i.Location.String()
	}
	sum := sha256.Sum256([]byte(string(i.Kind) + "|" + i.Message + "|" + loc))
	return hex.EncodeToString(sum[:16])
}

// File returns the file path the issue refers to, or "" if it has no
// location. Used for per-file write serialization during dispatch.
func (i Issue) File() string {
	if i.Location == nil {
		return ""
	}
	return i.Location.File
}

// FixResult is the outcome of one agent's attempt on one issue.
type FixResult struct {
	Success         bool     `json:"success"`
	Confidence      float64  `json:"confidence"`
	RemainingIssues []string `json:"remaining_issues,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	ModifiedFiles   []string `json:"modified_files,omitempty"`
}

// Consistent reports whether the result satisfies the model invariant:
// a successful fix must have touched at least one file, unless there was
// genuinely nothing left to change.
func (r FixResult) Consistent() bool {
	if !r.Success {
		return true
	}
	return len(r.ModifiedFiles) > 0 || len(r.RemainingIssues) == 0
}

// Failure builds a failed FixResult with the given remaining-issue notes.
func Failure(remaining ...string) FixResult {
	return FixResult{Success: false, Confidence: 0, RemainingIssues: remaining}
}
