package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lucasnoah/fixfactory/internal/checks"
	"github.com/lucasnoah/fixfactory/internal/issue"
)

// ESLintParser parses ESLint JSON output.
type ESLintParser struct{}

type eslintFile struct {
	FilePath     string          `json:"filePath"`
	ErrorCount   int             `json:"errorCount"`
	WarningCount int             `json:"warningCount"`
	Messages     []eslintMessage `json:"messages"`
}

type eslintMessage struct {
	RuleID   string `json:"ruleId"`
	Severity int    `json:"severity"` // 1=warning, 2=error
	Message  string `json:"message"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
}

func (p *ESLintParser) Parse(res *checks.Result, _ issue.Kind) (Parsed, error) {
	var files []eslintFile
	if err := json.Unmarshal([]byte(res.Stdout), &files); err != nil {
		return Parsed{}, fmt.Errorf("parse eslint JSON: %w", err)
	}

	parsed := Parsed{ReportedCount: 0}
	for _, f := range files {
		parsed.ReportedCount += f.ErrorCount + f.WarningCount
		for _, m := range f.Messages {
			sev := issue.SeverityLow
			if m.Severity == 2 {
				sev = issue.SeverityMedium
			}
			parsed.Issues = append(parsed.Issues, issue.Issue{
				Kind:        eslintRuleKind(m.RuleID),
				Severity:    sev,
				Message:     fmt.Sprintf("%s (%s)", m.Message, m.RuleID),
				Location:    &issue.Location{File: f.FilePath, Line: m.Line},
				OriginStage: res.CheckName,
			})
		}
	}
	return parsed, nil
}

// eslintRuleKind maps an ESLint rule ID onto an issue kind.
func eslintRuleKind(rule string) issue.Kind {
	switch {
	case strings.HasPrefix(rule, "import/"), rule == "no-undef":
		return issue.KindImportError
	case rule == "no-unused-vars", rule == "@typescript-eslint/no-unused-vars", rule == "no-unreachable":
		return issue.KindDeadCode
	case rule == "complexity", rule == "max-depth", rule == "max-lines", rule == "max-lines-per-function":
		return issue.KindComplexity
	case strings.HasPrefix(rule, "jsdoc/"), rule == "require-jsdoc":
		return issue.KindDocumentation
	case strings.HasPrefix(rule, "security/"):
		return issue.KindSecurity
	default:
		return issue.KindFormatting
	}
}
