package extract

import (
	"fmt"

	"github.com/lucasnoah/fixfactory/internal/checks"
	"github.com/lucasnoah/fixfactory/internal/issue"
)

// Failure records a check whose output could not be turned into issues.
// Its issues are dropped for the iteration; the run continues.
type Failure struct {
	Check  string `json:"check"`
	Reason string `json:"reason"`
}

// Extraction is the outcome of extracting issues from one gate run.
type Extraction struct {
	// Issues is the de-duplicated issue list, ordered by check then by
	// position in the tool output. First occurrence wins on fingerprint
	// collisions.
	Issues []issue.Issue `json:"issues"`
	// Counts holds the parsed issue count per check, before de-duplication.
	Counts map[string]int `json:"counts"`
	// Failures lists checks excluded from this iteration.
	Failures []Failure `json:"failures,omitempty"`
}

// Extractor merges per-check parser output into one issue list.
type Extractor struct {
	parsers map[string]Parser
	kinds   map[string]issue.Kind // per-check default kind for the generic parser
}

// NewExtractor creates an Extractor with the built-in parser set.
func NewExtractor() *Extractor {
	e := &Extractor{
		parsers: make(map[string]Parser),
		kinds:   make(map[string]issue.Kind),
	}
	e.parsers["eslint"] = &ESLintParser{}
	e.parsers["typescript"] = &TypeScriptParser{}
	e.parsers["vitest"] = &VitestParser{}
	e.parsers["npm-audit"] = &NPMAuditParser{}
	e.parsers["generic"] = &GenericParser{}
	return e
}

// Register adds or replaces a parser under the given name.
func (e *Extractor) Register(name string, p Parser) {
	e.parsers[name] = p
}

// SetDefaultKind sets the issue kind the generic parser uses for a check.
func (e *Extractor) SetDefaultKind(checkName string, kind issue.Kind) {
	e.kinds[checkName] = kind
}

// Extract converts raw check results into a de-duplicated issue list.
// A check whose output cannot be parsed, or whose parsed issue count
// disagrees with the tool's self-reported count, is recorded as a
// Failure and contributes no issues; other checks are unaffected.
func (e *Extractor) Extract(results []*checks.Result) *Extraction {
	out := &Extraction{Counts: make(map[string]int)}
	seen := make(map[string]bool)

	for _, res := range results {
		if res == nil {
			continue
		}
		if res.ExecError != "" {
			out.Failures = append(out.Failures, Failure{
				Check:  res.CheckName,
				Reason: fmt.Sprintf("check did not run: %s", res.ExecError),
			})
			continue
		}

		parser, ok := e.parsers[res.Parser]
		if !ok {
			parser = e.parsers["generic"]
		}

		parsed, err := parser.Parse(res, e.kinds[res.CheckName])
		if err != nil {
			out.Failures = append(out.Failures, Failure{Check: res.CheckName, Reason: err.Error()})
			continue
		}

		// Integrity validation: a mismatch between parsed issues and the
		// tool's self-reported count means the parse went wrong; drop the
		// check's issues rather than corrupt the list.
		if parsed.ReportedCount >= 0 && parsed.ReportedCount != len(parsed.Issues) {
			out.Failures = append(out.Failures, Failure{
				Check: res.CheckName,
				Reason: fmt.Sprintf("count mismatch: tool reported %d findings, parsed %d",
					parsed.ReportedCount, len(parsed.Issues)),
			})
			continue
		}

		out.Counts[res.CheckName] = len(parsed.Issues)
		for _, iss := range parsed.Issues {
			fp := iss.Fingerprint()
			if seen[fp] {
				continue
			}
			seen[fp] = true
			out.Issues = append(out.Issues, iss)
		}
	}

	return out
}
