package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lucasnoah/fixfactory/internal/agent"
	"github.com/lucasnoah/fixfactory/internal/checks"
	"github.com/lucasnoah/fixfactory/internal/config"
	"github.com/lucasnoah/fixfactory/internal/db"
	"github.com/lucasnoah/fixfactory/internal/dispatch"
	"github.com/lucasnoah/fixfactory/internal/extract"
	"github.com/lucasnoah/fixfactory/internal/issue"
	"github.com/lucasnoah/fixfactory/internal/loop"
	"github.com/lucasnoah/fixfactory/internal/report"
	"github.com/lucasnoah/fixfactory/internal/telemetry"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full convergence loop: check, extract, dispatch, repeat",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		dir, _ := cmd.Flags().GetString("dir")
		format, _ := cmd.Flags().GetString("format")
		quiet, _ := cmd.Flags().GetBool("quiet")
		maxIter, _ := cmd.Flags().GetInt("max-iterations")

		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		if errs := config.Validate(cfg); len(errs) > 0 {
			for _, e := range errs {
				fmt.Fprintf(cmd.ErrOrStderr(), "config error: %s\n", e)
			}
			return fmt.Errorf("invalid config: %d errors", len(errs))
		}
		if maxIter > 0 {
			cfg.Loop.MaxIterations = maxIter
		}
		dir = resolveProjectDir(dir, cfg)

		runID := uuid.NewString()
		startedAt := time.Now().UTC()

		runDir, err := report.RunDir(runID)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(runDir, 0o755); err != nil {
			return fmt.Errorf("create run dir: %w", err)
		}

		// Run history is best effort: a broken database downgrades to a
		// warning, never aborts the run.
		var sinks telemetry.MultiSink
		d, cleanup, err := openDB()
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: run history disabled: %v\n", err)
			d = nil
		} else {
			defer cleanup()
			if err := d.CreateRun(runID, dir); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			} else {
				sinks = append(sinks, db.NewSink(d))
			}
		}

		eventsFile, err := os.Create(filepath.Join(runDir, "events.jsonl"))
		if err == nil {
			defer eventsFile.Close()
			sinks = append(sinks, telemetry.NewWriterSink(eventsFile))
		}

		controller := buildController(cfg, dir, d, runID, telemetry.WithRunID(sinks, runID))
		controller.SetRunID(runID)
		if !quiet {
			controller.SetProgress(cmd.ErrOrStderr())
			fmt.Fprintf(cmd.ErrOrStderr(), "Run %s starting in %s\n", runID, dir)
		}

		out := controller.Run(cmd.Context())

		artifact := &report.Artifact{
			RunID:      runID,
			Project:    dir,
			StartedAt:  startedAt,
			FinishedAt: time.Now().UTC(),
			Outcome:    *out,
		}
		artifactPath, err := artifact.Write(runDir)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		} else if !quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "Run artifact: %s\n", artifactPath)
		}

		w := cmd.OutOrStdout()
		if format == "json" {
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(w, string(data))
		} else {
			fmt.Fprint(w, report.Format(out))
		}

		if out.State == loop.StateFailed {
			cmd.SilenceUsage = true
			return fmt.Errorf("run failed: %s", out.Guidance)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().String("config", "", "Path to fixfactory config YAML")
	runCmd.Flags().String("dir", "", "Project directory (defaults to config project, then cwd)")
	runCmd.Flags().String("format", "text", "Output format: text or json")
	runCmd.Flags().Bool("quiet", false, "Suppress progress output")
	runCmd.Flags().Int("max-iterations", 0, "Override the configured iteration cap")
}

// buildController wires checks, extraction, and dispatch into a loop
// controller. A nil database disables check-run logging only.
func buildController(cfg *config.Config, dir string, d *db.DB, runID string, sink telemetry.Sink) *loop.Controller {
	runner := checks.NewRunner(&checks.ExecRunner{})

	checker := &gateChecker{
		runner: runner,
		dir:    dir,
		opts: checks.GateOpts{
			Checks:      buildCheckConfigs(cfg),
			Concurrency: cfg.Loop.CheckConcurrency,
		},
		db:    d,
		runID: runID,
	}

	extractor := buildExtractor(cfg)

	registry := agent.NewRegistry()
	if len(cfg.Agents) == 0 {
		for _, a := range agent.Builtins(dir, &checks.ExecRunner{}) {
			registry.Register(a)
		}
	}
	for _, a := range cfg.Agents {
		registry.Register(agent.NewCommandAgent(agent.CommandAgentConfig{
			Name:           a.Name,
			Priority:       a.Priority,
			Kinds:          agentKinds(a.Kinds),
			Command:        a.Command,
			Verify:         a.Verify,
			BaseConfidence: a.BaseConfidence,
			Timeout:        parseDuration(a.Timeout, 0),
		}, dir, &checks.ExecRunner{}))
	}
	if !cfg.Triage.Disabled {
		registry.Register(agent.NewTriageAgent(cfg.Triage.Priority))
	}

	engine := dispatch.NewEngine(registry, dispatch.NewCache(), sink, dispatch.Config{
		AcceptanceThreshold: cfg.Loop.AcceptanceThreshold,
		CacheThreshold:      cfg.Loop.CacheThreshold,
	})

	return loop.New(checker, extractor, engine, sink, loop.Config{
		MaxIterations:       cfg.Loop.MaxIterations,
		StagnationWindow:    cfg.Loop.StagnationWindow,
		DispatchConcurrency: cfg.Loop.DispatchConcurrency,
	})
}

func buildExtractor(cfg *config.Config) *extract.Extractor {
	extractor := extract.NewExtractor()
	for _, c := range cfg.Checks {
		if c.Kind != "" {
			extractor.SetDefaultKind(c.Name, issue.Kind(c.Kind))
		}
	}
	return extractor
}

func buildCheckConfigs(cfg *config.Config) []checks.CheckConfig {
	out := make([]checks.CheckConfig, 0, len(cfg.Checks))
	for _, c := range cfg.Checks {
		out = append(out, checks.CheckConfig{
			Name:       c.Name,
			Command:    c.Command,
			Parser:     c.Parser,
			Timeout:    parseDuration(c.Timeout, 2*time.Minute),
			AutoFix:    c.AutoFix,
			FixCommand: c.FixCommand,
		})
	}
	return out
}

func agentKinds(names []string) []issue.Kind {
	kinds := make([]issue.Kind, 0, len(names))
	for _, n := range names {
		kinds = append(kinds, issue.Kind(n))
	}
	return kinds
}

// gateChecker runs the configured check gate and records each check run,
// tracking the iteration index across calls.
type gateChecker struct {
	runner    *checks.Runner
	dir       string
	opts      checks.GateOpts
	db        *db.DB
	runID     string
	iteration int
}

func (g *gateChecker) Run(ctx context.Context) *checks.GateResult {
	gate := g.runner.RunGate(ctx, g.dir, g.opts)
	if g.db != nil {
		for _, res := range gate.Results {
			_ = g.db.LogCheckRun(g.runID, g.iteration, res.CheckName,
				res.Passed, res.AutoFixed, res.ExitCode, res.DurationMs)
		}
	}
	g.iteration++
	return gate
}

// loadConfig loads from an explicit path or the standard locations.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadDefault()
}

func resolveProjectDir(flag string, cfg *config.Config) string {
	if flag != "" {
		return flag
	}
	if cfg.Project != "" {
		return cfg.Project
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// openDB opens the run-history database with a cleanup func.
func openDB() (*db.DB, func(), error) {
	path, err := db.DefaultDBPath()
	if err != nil {
		return nil, nil, err
	}
	d, err := db.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return d, func() { d.Close() }, nil
}

// parseDuration parses a duration string, falling back to a default.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
