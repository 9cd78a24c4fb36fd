package extract

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/lucasnoah/fixfactory/internal/checks"
	"github.com/lucasnoah/fixfactory/internal/issue"
)

// NPMAuditParser parses npm audit --json output.
type NPMAuditParser struct{}

type npmAuditOutput struct {
	Metadata struct {
		Vulnerabilities struct {
			Total int `json:"total"`
		} `json:"vulnerabilities"`
	} `json:"metadata"`
	Vulnerabilities map[string]npmVulnerability `json:"vulnerabilities"`
}

type npmVulnerability struct {
	Name     string `json:"name"`
	Severity string `json:"severity"`
	Title    string `json:"title"`
	URL      string `json:"url"`
}

func (p *NPMAuditParser) Parse(res *checks.Result, _ issue.Kind) (Parsed, error) {
	var raw npmAuditOutput
	if err := json.Unmarshal([]byte(res.Stdout), &raw); err != nil {
		return Parsed{}, fmt.Errorf("parse npm audit JSON: %w", err)
	}

	parsed := Parsed{ReportedCount: raw.Metadata.Vulnerabilities.Total}

	// Map iteration order is random; sort for a stable issue list.
	names := make([]string, 0, len(raw.Vulnerabilities))
	for name := range raw.Vulnerabilities {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		vuln := raw.Vulnerabilities[name]
		iss := issue.Issue{
			Kind:        issue.KindDependency,
			Severity:    auditSeverity(vuln.Severity),
			Message:     fmt.Sprintf("vulnerable dependency %s: %s", name, vuln.Title),
			OriginStage: res.CheckName,
		}
		if vuln.URL != "" {
			iss.Details = append(iss.Details, "advisory: "+vuln.URL)
		}
		parsed.Issues = append(parsed.Issues, iss)
	}
	return parsed, nil
}

func auditSeverity(s string) issue.Severity {
	switch s {
	case "critical":
		return issue.SeverityCritical
	case "high":
		return issue.SeverityHigh
	case "moderate":
		return issue.SeverityMedium
	default:
		return issue.SeverityLow
	}
}
