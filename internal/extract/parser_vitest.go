package extract

import (
	"encoding/json"
	"fmt"

	"github.com/lucasnoah/fixfactory/internal/checks"
	"github.com/lucasnoah/fixfactory/internal/issue"
)

// VitestParser parses vitest/jest JSON reporter output.
type VitestParser struct{}

type vitestOutput struct {
	NumTotalTests  int                 `json:"numTotalTests"`
	NumFailedTests int                 `json:"numFailedTests"`
	TestResults    []vitestSuiteResult `json:"testResults"`
}

type vitestSuiteResult struct {
	Name             string                  `json:"name"`
	Status           string                  `json:"status"`
	AssertionResults []vitestAssertionResult `json:"assertionResults"`
}

type vitestAssertionResult struct {
	FullName        string   `json:"fullName"`
	Status          string   `json:"status"`
	FailureMessages []string `json:"failureMessages"`
}

func (p *VitestParser) Parse(res *checks.Result, _ issue.Kind) (Parsed, error) {
	var raw vitestOutput
	if err := json.Unmarshal([]byte(res.Stdout), &raw); err != nil {
		return Parsed{}, fmt.Errorf("parse test JSON: %w", err)
	}

	parsed := Parsed{ReportedCount: raw.NumFailedTests}
	for _, suite := range raw.TestResults {
		for _, a := range suite.AssertionResults {
			if a.Status != "failed" {
				continue
			}
			iss := issue.Issue{
				Kind:        issue.KindTestFailure,
				Severity:    issue.SeverityHigh,
				Message:     fmt.Sprintf("test failed: %s", a.FullName),
				Location:    &issue.Location{File: suite.Name},
				OriginStage: res.CheckName,
			}
			if len(a.FailureMessages) > 0 {
				iss.Details = append(iss.Details, a.FailureMessages[0])
			}
			parsed.Issues = append(parsed.Issues, iss)
		}
	}
	return parsed, nil
}
