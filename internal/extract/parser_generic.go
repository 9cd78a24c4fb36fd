package extract

import (
	"fmt"
	"unicode/utf8"

	"github.com/lucasnoah/fixfactory/internal/checks"
	"github.com/lucasnoah/fixfactory/internal/issue"
)

// GenericParser is the fallback for tools without a dedicated parser: a
// failing check becomes a single issue of the check's configured kind,
// carrying the command output as detail hints for agents.
type GenericParser struct{}

// maxOutputLen caps how much stdout/stderr the generic parser retains as detail.
const maxOutputLen = 8000

func (p *GenericParser) Parse(res *checks.Result, defaultKind issue.Kind) (Parsed, error) {
	parsed := Parsed{ReportedCount: -1}
	if res.Passed {
		return parsed, nil
	}

	kind := defaultKind
	if kind == "" {
		kind = issue.KindTestFailure
	}

	iss := issue.Issue{
		Kind:        kind,
		Severity:    issue.SeverityMedium,
		Message:     fmt.Sprintf("check %q failed with exit code %d", res.CheckName, res.ExitCode),
		OriginStage: res.CheckName,
	}

	// Keep the tail: error summaries and tracebacks are usually at the end.
	combined := res.Stdout
	if res.Stderr != "" {
		if combined != "" {
			combined += "\n"
		}
		combined += res.Stderr
	}
	if len(combined) > maxOutputLen {
		cut := len(combined) - maxOutputLen
		// Never split a multi-byte rune at the cut point.
		for cut < len(combined) && !utf8.RuneStart(combined[cut]) {
			cut++
		}
		combined = "…(truncated)\n" + combined[cut:]
	}
	if combined != "" {
		iss.Details = append(iss.Details, combined)
	}

	parsed.Issues = append(parsed.Issues, iss)
	return parsed, nil
}
