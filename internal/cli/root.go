package cli

import (
	"github.com/spf13/cobra"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "fixfactory",
	Short: "fixfactory — a convergence loop for code quality checks",
	Long: `fixfactory runs a project's quality checks, extracts the issues they
report, and dispatches each issue to the best available fix agent,
iterating until the project is clean or progress stops.

All state is stored in ~/.fixfactory/ (SQLite for run history, JSON for
run artifacts).`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
}
