package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/integrity"
	"github.com/spf13/cobra"
)

var (
	findingErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"}).Bold(true)
	findingWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"})
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Audit the store for drift, corruption, and consistency violations (spec.md §4.9)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := integrity.Audit(st)
		if err != nil {
			return err
		}
		printData(report, func() {
			for _, f := range report.Findings {
				style := findingWarnStyle
				if f.Level == integrity.Error {
					style = findingErrorStyle
				}
				fmt.Printf("%s %-24s %s\n", style.Render("["+string(f.Level)+"]"), f.Check, f.Message)
			}
			fmt.Printf("%d finding(s)\n", len(report.Findings))
		})
		if report.HasErrors() {
			errorCount := 0
			for _, f := range report.Findings {
				if f.Level == integrity.Error {
					errorCount++
				}
			}
			return errs.New(errs.ValidationError, "integrity audit found %d error(s)", errorCount)
		}
		return nil
	},
}

var (
	rebuildTaskID   string
	rebuildArchived bool
	rebuildAll      bool
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Replay event logs to regenerate snapshots and derived indexes (spec.md §4.9)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if rebuildAll {
			if err := integrity.RebuildAll(cmd.Context(), st); err != nil {
				return err
			}
			printData(nil, ok)
			return nil
		}
		if rebuildTaskID == "" {
			return errs.New(errs.ValidationError, "specify --task or --all")
		}
		task, err := integrity.RebuildTask(cmd.Context(), st, rebuildTaskID, rebuildArchived)
		if err != nil {
			return err
		}
		printData(task, func() { printTaskSummary(task) })
		return nil
	},
}

func init() {
	rebuildCmd.Flags().StringVar(&rebuildTaskID, "task", "", "rebuild a single task's snapshot from its event log")
	rebuildCmd.Flags().BoolVar(&rebuildArchived, "archived", false, "the task named by --task lives in the archive subtree")
	rebuildCmd.Flags().BoolVar(&rebuildAll, "all", false, "rebuild every task snapshot, the lifecycle log, and ids.json")
}
