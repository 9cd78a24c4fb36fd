package checks

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Result holds the raw output of one check run. The runner does not
// interpret tool output; the extract package turns it into issues.
type Result struct {
	CheckName  string `json:"check_name"`
	Parser     string `json:"parser"`
	Passed     bool   `json:"passed"`
	AutoFixed  bool   `json:"auto_fixed,omitempty"`
	TimedOut   bool   `json:"timed_out,omitempty"`
	ExitCode   int    `json:"exit_code"`
	DurationMs int    `json:"duration_ms"`
	Stdout     string `json:"stdout,omitempty"`
	Stderr     string `json:"stderr,omitempty"`
	// ExecError is set when the check could not be executed at all
	// (missing tool, unusable shell). Distinct from a failing check.
	ExecError string `json:"exec_error,omitempty"`
}

// CheckConfig mirrors config.Check with the fields the runner needs.
type CheckConfig struct {
	Name       string
	Command    string
	Parser     string
	Timeout    time.Duration
	AutoFix    bool
	FixCommand string
}

// CommandRunner abstracts command execution for testability.
type CommandRunner interface {
	Run(ctx context.Context, dir string, command string) (stdout string, stderr string, exitCode int, err error)
}

// ExecRunner implements CommandRunner by shelling out.
type ExecRunner struct{}

func (e *ExecRunner) Run(ctx context.Context, dir string, command string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir

	var stdoutBuf, stderrBuf strings.Builder
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return stdoutBuf.String(), stderrBuf.String(), -1, fmt.Errorf("exec: %w", err)
		}
	}
	return stdoutBuf.String(), stderrBuf.String(), exitCode, nil
}

// Runner executes checks.
type Runner struct {
	cmd CommandRunner
}

// NewRunner creates a Runner with the given command runner.
func NewRunner(cmd CommandRunner) *Runner {
	return &Runner{cmd: cmd}
}

// Run executes a single check in the given directory. A check that cannot
// be executed at all is reported via Result.ExecError rather than an
// error return, so one broken tool never aborts its siblings.
func (r *Runner) Run(ctx context.Context, dir string, cfg CheckConfig) *Result {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	result := r.runOnce(ctx, dir, cfg, timeout)

	// Auto-fix: if the check failed, auto_fix is enabled, and fix_command
	// is set, run the fix then re-check once.
	if !result.Passed && result.ExecError == "" && !result.TimedOut && cfg.AutoFix && cfg.FixCommand != "" {
		fixCtx, cancel := context.WithTimeout(ctx, timeout)
		// Fix commands often exit non-zero; ignore the outcome.
		_, _, _, _ = r.cmd.Run(fixCtx, dir, cfg.FixCommand)
		cancel()

		recheck := r.runOnce(ctx, dir, cfg, timeout)
		recheck.AutoFixed = true
		return recheck
	}

	return result
}

// runOnce executes a check command once.
func (r *Runner) runOnce(ctx context.Context, dir string, cfg CheckConfig, timeout time.Duration) *Result {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	stdout, stderr, exitCode, err := r.cmd.Run(runCtx, dir, cfg.Command)
	durationMs := int(time.Since(start).Milliseconds())

	result := &Result{
		CheckName:  cfg.Name,
		Parser:     cfg.Parser,
		ExitCode:   exitCode,
		DurationMs: durationMs,
		Stdout:     stdout,
		Stderr:     stderr,
	}

	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			result.TimedOut = true
			result.ExitCode = -1
			result.Stderr = fmt.Sprintf("timeout after %s", timeout)
			return result
		}
		result.ExitCode = -1
		result.ExecError = err.Error()
		return result
	}

	result.Passed = exitCode == 0
	return result
}
