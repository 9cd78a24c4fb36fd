package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/fixfactory/internal/report"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs from the history database",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		d, cleanup, err := openDB()
		if err != nil {
			return err
		}
		defer cleanup()

		runs, err := d.ListRuns(limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-36s %-10s %-5s %-9s %s\n", "RUN", "STATE", "ITER", "REDUCTION", "STARTED")
		fmt.Fprintf(w, "%s\n", strings.Repeat("-", 80))
		for _, r := range runs {
			fmt.Fprintf(w, "%-36s %-10s %-5d %8.1f%% %s\n",
				r.RunID, r.State, r.Iterations, r.ReductionPercent, r.StartedAt)
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show one run's iteration history and per-kind fix rates",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runID := args[0]

		d, cleanup, err := openDB()
		if err != nil {
			return err
		}
		defer cleanup()

		r, err := d.GetRun(runID)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Run:       %s\n", r.RunID)
		if r.Project != "" {
			fmt.Fprintf(w, "Project:   %s\n", r.Project)
		}
		fmt.Fprintf(w, "State:     %s\n", r.State)
		fmt.Fprintf(w, "Started:   %s\n", r.StartedAt)
		if r.FinishedAt != "" {
			fmt.Fprintf(w, "Finished:  %s\n", r.FinishedAt)
		}
		fmt.Fprintf(w, "Reduction: %.1f%%\n", r.ReductionPercent)

		counts, err := d.IterationHistory(runID)
		if err != nil {
			return err
		}
		if len(counts) > 0 {
			parts := make([]string, len(counts))
			for i, c := range counts {
				parts[i] = fmt.Sprintf("%d", c)
			}
			fmt.Fprintf(w, "Issues:    %s\n", strings.Join(parts, " -> "))
		}

		stats, err := d.KindStats(runID)
		if err != nil {
			return err
		}
		if len(stats) > 0 {
			fmt.Fprintln(w, "By kind:")
			for _, s := range stats {
				fmt.Fprintf(w, "  %-18s dispatched %3d  fixed %3d  (%.0f%%)\n",
					s.Kind, s.Dispatched, s.Fixed, s.FixRate*100)
			}
		}

		// The JSON artifact has the full issue detail when present.
		if dir, err := report.RunDir(runID); err == nil {
			fmt.Fprintf(w, "Artifact:  %s/report.json\n", dir)
		}
		return nil
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-kind fix rates across all recorded runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, cleanup, err := openDB()
		if err != nil {
			return err
		}
		defer cleanup()

		stats, err := d.KindStats("")
		if err != nil {
			return err
		}
		if len(stats) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No dispatches recorded.")
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-18s %-10s %-6s %s\n", "KIND", "DISPATCHED", "FIXED", "FIX RATE")
		fmt.Fprintf(w, "%s\n", strings.Repeat("-", 48))
		for _, s := range stats {
			fmt.Fprintf(w, "%-18s %-10d %-6d %6.1f%%\n",
				s.Kind, s.Dispatched, s.Fixed, s.FixRate*100)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "Maximum runs to list")
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyStatsCmd)
}
