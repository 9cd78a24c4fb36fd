package extract

import (
	"github.com/lucasnoah/fixfactory/internal/checks"
	"github.com/lucasnoah/fixfactory/internal/issue"
)

// Parsed holds the issues one parser produced for one check.
type Parsed struct {
	Issues []issue.Issue
	// ReportedCount is the tool's own finding count when the output
	// format carries one, used for integrity validation. -1 means the
	// tool does not self-report and no validation is possible.
	ReportedCount int
}

// Parser converts one raw check result into normalized issues.
// defaultKind is the kind configured for the check; parsers that derive
// kinds from the output itself ignore it.
type Parser interface {
	Parse(res *checks.Result, defaultKind issue.Kind) (Parsed, error)
}
