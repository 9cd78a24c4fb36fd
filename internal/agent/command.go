package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lucasnoah/fixfactory/internal/checks"
	"github.com/lucasnoah/fixfactory/internal/issue"
)

// CommandAgentConfig configures a command-backed fix agent.
type CommandAgentConfig struct {
	Name     string
	Priority int
	Kinds    []issue.Kind
	// Command is the shell command that applies the fix. A "{file}"
	// placeholder is replaced with the issue's file path; commands with
	// the placeholder score near zero for issues without a location.
	Command string
	// Verify is an optional command run after the fix (typically a
	// syntax or duplicate-definition probe). A failing verify downgrades
	// the attempt to a failure; rollback happens at the file-write
	// boundary, not here.
	Verify string
	// BaseConfidence is the pre-fix score for a supported issue with a
	// usable location. Defaults to 0.75.
	BaseConfidence float64
	Timeout        time.Duration
}

// CommandAgent applies fixes by shelling out, the same way checks with a
// fix_command do, scoped to the issue's file.
type CommandAgent struct {
	cfg    CommandAgentConfig
	dir    string
	runner checks.CommandRunner
}

// NewCommandAgent creates a CommandAgent operating in dir.
func NewCommandAgent(cfg CommandAgentConfig, dir string, runner checks.CommandRunner) *CommandAgent {
	if cfg.BaseConfidence <= 0 {
		cfg.BaseConfidence = 0.75
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &CommandAgent{cfg: cfg, dir: dir, runner: runner}
}

func (a *CommandAgent) Name() string                 { return a.cfg.Name }
func (a *CommandAgent) Priority() int                { return a.cfg.Priority }
func (a *CommandAgent) SupportedKinds() []issue.Kind { return a.cfg.Kinds }

func (a *CommandAgent) needsFile() bool {
	return strings.Contains(a.cfg.Command, "{file}")
}

// Confidence scores a supported issue by how much context the agent has
// to work with. Commands scoped to a file are nearly useless without a
// location; project-wide commands score a bit below base.
func (a *CommandAgent) Confidence(_ context.Context, iss issue.Issue) float64 {
	if a.cfg.Command == "" {
		return 0
	}
	if iss.File() == "" {
		if a.needsFile() {
			return 0.1
		}
		return a.cfg.BaseConfidence * 0.8
	}
	return a.cfg.BaseConfidence
}

// Fix runs the fix command, then the verify probe when configured.
func (a *CommandAgent) Fix(ctx context.Context, iss issue.Issue) (issue.FixResult, error) {
	if a.needsFile() && iss.File() == "" {
		return issue.Failure(fmt.Sprintf("agent %q needs a file location for %s issues", a.cfg.Name, iss.Kind)), nil
	}

	command := strings.ReplaceAll(a.cfg.Command, "{file}", iss.File())

	runCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	_, stderr, exitCode, err := a.runner.Run(runCtx, a.dir, command)
	if err != nil {
		return issue.FixResult{}, fmt.Errorf("run fix command: %w", err)
	}
	if exitCode != 0 {
		return issue.Failure(fmt.Sprintf("fix command exited %d: %s", exitCode, firstLine(stderr))), nil
	}

	var modified []string
	if iss.File() != "" {
		modified = append(modified, iss.File())
	}

	if a.cfg.Verify != "" {
		verify := strings.ReplaceAll(a.cfg.Verify, "{file}", iss.File())
		_, vErr, vCode, err := a.runner.Run(runCtx, a.dir, verify)
		if err != nil || vCode != 0 {
			reason := firstLine(vErr)
			if err != nil {
				reason = err.Error()
			}
			return issue.FixResult{
				Success:         false,
				Confidence:      0,
				RemainingIssues: []string{fmt.Sprintf("fix applied but verification failed: %s", reason)},
				ModifiedFiles:   modified,
			}, nil
		}
	}

	confidence := a.cfg.BaseConfidence
	if a.cfg.Verify != "" {
		// A passing post-fix probe is stronger evidence than the
		// pre-fix score.
		confidence = 0.9
	}

	return issue.FixResult{
		Success:       true,
		Confidence:    confidence,
		ModifiedFiles: modified,
	}, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
