package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/event"
	"github.com/lattice-dev/lattice/internal/snapshot"
	"github.com/lattice-dev/lattice/internal/store"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"
)

var (
	listStatus     string
	listAssigned   string
	listTag        string
	listType       string
	listPriority   string
	listIncludeAll bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks matching a set of filters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := store.ListFilter{
			Status: listStatus, Tag: listTag, Type: listType,
			Priority: listPriority, IncludeAll: listIncludeAll,
		}
		if listAssigned != "" {
			actor, err := event.NewRawActor(listAssigned)
			if err != nil {
				return err
			}
			filter.Assigned = actor
		}
		tasks, err := st.ListTasks(filter)
		if err != nil {
			return err
		}
		printData(tasks, func() {
			for _, t := range tasks {
				printTaskSummary(t)
			}
			if !quietFlag {
				fmt.Printf("%d task(s)\n", len(tasks))
			}
		})
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <task_id>",
	Short: "Show a task's current snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		task, err := st.Show(args[0])
		if err != nil {
			return err
		}
		printData(task, func() { printTaskSummary(task) })
		return nil
	},
}

var eventsSince string

var eventsCmd = &cobra.Command{
	Use:   "events <task_id>",
	Short: "Show a task's raw event log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := st.Events(args[0])
		if err != nil {
			return err
		}
		if eventsSince != "" {
			cutoff, err := parseSince(eventsSince)
			if err != nil {
				return err
			}
			filtered := events[:0]
			for _, e := range events {
				if !e.TS.Before(cutoff) {
					filtered = append(filtered, e)
				}
			}
			events = filtered
		}
		printData(events, func() {
			for _, e := range events {
				fmt.Printf("%s  %-20s  %s\n", e.TS.Format(time.RFC3339), e.Type, e.ID)
			}
		})
		return nil
	},
}

// parseSince parses a --since value either as RFC3339 or as a natural
// language expression ("2 hours ago", "yesterday").
func parseSince(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	w := when.New(nil)
	w.Add(en.All...)
	res, err := w.Parse(s, time.Now())
	if err != nil || res == nil {
		return time.Time{}, errs.New(errs.BindError, "could not parse --since value %q", s)
	}
	return res.Time, nil
}

var (
	nextClaim bool
	nextReady []string
)

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Select (and optionally claim) the next ready task",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := currentActor()
		if err != nil {
			return err
		}
		task, err := st.Next(cmd.Context(), actor, nextClaim, nextReady)
		if err != nil {
			return err
		}
		if task == nil {
			printData((*snapshot.Task)(nil), func() {
				if !quietFlag {
					fmt.Println("no ready task")
				}
			})
			return nil
		}
		printData(task, func() { printTaskSummary(task) })
		return nil
	},
}

var planCmd = &cobra.Command{
	Use:   "plan <task_id>",
	Short: "Show a task's plan file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := st.ReadPlan(args[0])
		if err != nil {
			return err
		}
		printData(content, func() {
			if jsonOutput || quietFlag {
				fmt.Println(content)
				return
			}
			rendered, err := glamour.Render(content, "auto")
			if err != nil {
				fmt.Println(content)
				return
			}
			fmt.Print(rendered)
		})
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "filter by status")
	listCmd.Flags().StringVar(&listAssigned, "assigned", "", "filter by assignee")
	listCmd.Flags().StringVar(&listTag, "tag", "", "filter by tag")
	listCmd.Flags().StringVar(&listType, "type", "", "filter by type")
	listCmd.Flags().StringVar(&listPriority, "priority", "", "filter by priority")
	listCmd.Flags().BoolVar(&listIncludeAll, "all", false, "also include archived tasks")

	eventsCmd.Flags().StringVar(&eventsSince, "since", "", "only show events at or after this time (RFC3339 or natural language)")

	nextCmd.Flags().BoolVar(&nextClaim, "claim", false, "claim the selected task")
	nextCmd.Flags().StringSliceVar(&nextReady, "ready-status", nil, "override the ready-pool statuses (default: backlog,planned)")
}
