package agent

import (
	"time"

	"github.com/lucasnoah/fixfactory/internal/checks"
	"github.com/lucasnoah/fixfactory/internal/issue"
)

// Builtins returns the default agent set for JavaScript/TypeScript
// projects, used when no agents are configured: a prettier formatting
// fixer and an eslint import/dead-code fixer.
func Builtins(dir string, runner checks.CommandRunner) []Agent {
	return []Agent{
		NewCommandAgent(CommandAgentConfig{
			Name:           "prettier",
			Priority:       10,
			Kinds:          []issue.Kind{issue.KindFormatting},
			Command:        "npx prettier --write {file}",
			BaseConfidence: 0.85,
			Timeout:        time.Minute,
		}, dir, runner),
		NewCommandAgent(CommandAgentConfig{
			Name:           "eslint-fix",
			Priority:       20,
			Kinds:          []issue.Kind{issue.KindImportError, issue.KindDeadCode, issue.KindFormatting},
			Command:        "npx eslint --fix {file}",
			BaseConfidence: 0.70,
			Timeout:        2 * time.Minute,
		}, dir, runner),
	}
}
