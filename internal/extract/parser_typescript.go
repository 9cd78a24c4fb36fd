package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lucasnoah/fixfactory/internal/checks"
	"github.com/lucasnoah/fixfactory/internal/issue"
)

// TypeScriptParser parses tsc --noEmit output.
type TypeScriptParser struct{}

// tsc output format: src/auth.ts(42,5): error TS2345: Argument of type...
var tscLineRe = regexp.MustCompile(`^(.+)\((\d+),(\d+)\):\s+error\s+(TS\d+):\s+(.+)$`)

func (p *TypeScriptParser) Parse(res *checks.Result, _ issue.Kind) (Parsed, error) {
	parsed := Parsed{ReportedCount: -1} // tsc has no self-reported total

	for _, line := range strings.Split(res.Stdout, "\n") {
		line = strings.TrimSpace(line)
		m := tscLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		lineNum, _ := strconv.Atoi(m[2])
		parsed.Issues = append(parsed.Issues, issue.Issue{
			Kind:        issue.KindTypeError,
			Severity:    issue.SeverityHigh,
			Message:     fmt.Sprintf("%s: %s", m[4], m[5]),
			Location:    &issue.Location{File: m[1], Line: lineNum},
			OriginStage: res.CheckName,
		})
	}

	if !res.Passed && len(parsed.Issues) == 0 && res.Stdout == "" && res.Stderr != "" {
		return Parsed{}, fmt.Errorf("tsc failed with no parseable output: %s", firstLine(res.Stderr))
	}
	return parsed, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
