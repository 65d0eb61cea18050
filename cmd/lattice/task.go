package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/event"
	"github.com/lattice-dev/lattice/internal/snapshot"
	"github.com/lattice-dev/lattice/internal/store"
	"github.com/spf13/cobra"
)

var (
	createTitle      string
	createStatus     string
	createPriority   string
	createUrgency    string
	createComplexity string
	createType       string
	createDesc       string
	createTags       []string
	createID         string
)

var createCmd = &cobra.Command{
	Use:   "create [title]",
	Short: "Create a new task",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title := createTitle
		if len(args) > 0 {
			title = args[0]
		}
		if title == "" && !jsonOutput {
			if err := huh.NewInput().Title("Task title").Value(&title).Run(); err != nil {
				return err
			}
		}
		if title == "" {
			return errs.New(errs.ValidationError, "title required (positional argument or --title)")
		}
		actor, err := currentActor()
		if err != nil {
			return err
		}
		task, err := st.CreateTask(cmd.Context(), store.CreateInput{
			ID: createID, Title: title, Status: createStatus, Priority: createPriority,
			Urgency: createUrgency, Complexity: createComplexity, Type: createType,
			Description: createDesc, Tags: createTags, Actor: actor,
		})
		if err != nil {
			return err
		}
		printData(task, func() { printTaskSummary(task) })
		return nil
	},
}

var (
	updateField string
	updateValue string
)

var updateCmd = &cobra.Command{
	Use:   "update <task_id>",
	Short: "Update a single non-protected field on a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if updateField == "" {
			return errs.New(errs.ValidationError, "--field is required")
		}
		actor, err := currentActor()
		if err != nil {
			return err
		}
		task, err := st.UpdateField(cmd.Context(), args[0], updateField, updateValue, actor)
		if err != nil {
			return err
		}
		printData(task, func() { printTaskSummary(task) })
		return nil
	},
}

var (
	statusForce  bool
	statusReason string
)

var statusCmd = &cobra.Command{
	Use:   "status <task_id> <new_status>",
	Short: "Transition a task to a new status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := currentActor()
		if err != nil {
			return err
		}
		task, err := st.SetStatus(cmd.Context(), store.StatusInput{
			TaskID: args[0], To: args[1], Actor: actor, Force: statusForce, Reason: statusReason,
		})
		if err != nil {
			return err
		}
		printData(task, func() { printTaskSummary(task) })
		return nil
	},
}

var assignCmd = &cobra.Command{
	Use:   "assign <task_id> [actor]",
	Short: "Assign (or unassign, with no actor argument) a task",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := currentActor()
		if err != nil {
			return err
		}
		var to event.Actor
		if len(args) == 2 {
			to, err = event.NewRawActor(args[1])
			if err != nil {
				return err
			}
		}
		task, err := st.AssignTask(cmd.Context(), args[0], to, actor)
		if err != nil {
			return err
		}
		printData(task, func() { printTaskSummary(task) })
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&createTitle, "title", "", "task title")
	createCmd.Flags().StringVar(&createStatus, "status", "", "initial status (default: config.default_status)")
	createCmd.Flags().StringVar(&createPriority, "priority", "", "priority (default: config.default_priority)")
	createCmd.Flags().StringVar(&createUrgency, "urgency", "", "urgency")
	createCmd.Flags().StringVar(&createComplexity, "complexity", "", "complexity")
	createCmd.Flags().StringVar(&createType, "type", "", "task type (default: task)")
	createCmd.Flags().StringVar(&createDesc, "description", "", "task description")
	createCmd.Flags().StringSliceVar(&createTags, "tag", nil, "tag (repeatable)")
	createCmd.Flags().StringVar(&createID, "id", "", "explicit task ID (for idempotent retries)")

	updateCmd.Flags().StringVar(&updateField, "field", "", "field to update (title, description, priority, urgency, complexity, type, tags, custom_fields.<key>)")
	updateCmd.Flags().StringVar(&updateValue, "value", "", "new value")

	statusCmd.Flags().BoolVar(&statusForce, "force", false, "bypass transition and completion-policy gates (requires --reason)")
	statusCmd.Flags().StringVar(&statusReason, "reason", "", "reason for --force (recorded in the event)")
}

func printTaskSummary(t *snapshot.Task) {
	if quietFlag {
		fmt.Println(t.ID)
		return
	}
	name := t.ID
	if t.ShortID != "" {
		name = t.ShortID
	}
	assignee := "(unassigned)"
	if t.AssignedTo != nil {
		assignee = t.AssignedTo.String()
	}
	fmt.Printf("%s  %s\n", bold(name), t.Title)
	fmt.Printf("  status=%s priority=%s type=%s assigned=%s\n", t.Status, t.Priority, t.Type, assignee)
	if len(t.Tags) > 0 {
		fmt.Printf("  tags=%s\n", strings.Join(t.Tags, ","))
	}
}
