package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/fixfactory/internal/checks"
)

var checkCmd = &cobra.Command{
	Use:   "check [check-names...]",
	Short: "Run the configured checks once and report extracted issues",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		dir, _ := cmd.Flags().GetString("dir")
		fix, _ := cmd.Flags().GetBool("fix")

		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		dir = resolveProjectDir(dir, cfg)

		checkCfgs := buildCheckConfigs(cfg)
		if len(args) > 0 {
			checkCfgs, err = filterChecks(checkCfgs, args)
			if err != nil {
				return err
			}
		}
		if !fix {
			for i := range checkCfgs {
				checkCfgs[i].AutoFix = false
			}
		}

		runner := checks.NewRunner(&checks.ExecRunner{})
		gate := runner.RunGate(cmd.Context(), dir, checks.GateOpts{
			Checks:      checkCfgs,
			Concurrency: cfg.Loop.CheckConcurrency,
		})

		w := cmd.OutOrStdout()
		for _, res := range gate.Results {
			icon := "PASS"
			if !res.Passed {
				icon = "FAIL"
			}
			extra := ""
			if res.AutoFixed {
				extra = " (auto-fixed)"
			}
			if res.TimedOut {
				extra = " (timed out)"
			}
			if res.ExecError != "" {
				extra = fmt.Sprintf(" (could not run: %s)", res.ExecError)
			}
			fmt.Fprintf(w, "[%s] %s%s (%dms)\n", icon, res.CheckName, extra, res.DurationMs)
		}

		ex := buildExtractor(cfg).Extract(gate.Results)
		if len(ex.Issues) > 0 {
			fmt.Fprintf(w, "\n%d issues:\n", len(ex.Issues))
			for _, iss := range ex.Issues {
				loc := ""
				if iss.Location != nil {
					loc = " (" + iss.Location.String() + ")"
				}
				fmt.Fprintf(w, "  [%s/%s] %s%s\n", iss.Kind, iss.Severity, iss.Message, loc)
			}
		}
		for _, f := range ex.Failures {
			fmt.Fprintf(w, "  extraction skipped for %s: %s\n", f.Check, f.Reason)
		}

		if !gate.Passed {
			cmd.SilenceUsage = true
			return fmt.Errorf("%d checks failed", failedCount(gate))
		}
		fmt.Fprintln(w, "\nAll checks passed")
		return nil
	},
}

func init() {
	checkCmd.Flags().String("config", "", "Path to fixfactory config YAML")
	checkCmd.Flags().String("dir", "", "Project directory (defaults to config project, then cwd)")
	checkCmd.Flags().Bool("fix", false, "Allow checks to run their auto-fix commands")
}

func filterChecks(cfgs []checks.CheckConfig, names []string) ([]checks.CheckConfig, error) {
	byName := make(map[string]checks.CheckConfig, len(cfgs))
	for _, c := range cfgs {
		byName[c.Name] = c
	}
	out := make([]checks.CheckConfig, 0, len(names))
	for _, name := range names {
		c, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("check %q not defined in config", name)
		}
		out = append(out, c)
	}
	return out, nil
}

func failedCount(gate *checks.GateResult) int {
	n := 0
	for _, res := range gate.Results {
		if !res.Passed {
			n++
		}
	}
	return n
}
