package main

import (
	"encoding/json"

	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/spf13/cobra"
)

var eventData string

var eventCmd = &cobra.Command{
	Use:   "event <task_id> <type>",
	Short: "Record a custom (x_-prefixed) event on a task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data := map[string]any{}
		if eventData != "" {
			if err := json.Unmarshal([]byte(eventData), &data); err != nil {
				return errs.Wrap(errs.BindError, err, "parse --data as JSON")
			}
		}
		actor, err := currentActor()
		if err != nil {
			return err
		}
		task, err := st.RecordEvent(cmd.Context(), args[0], args[1], data, actor)
		if err != nil {
			return err
		}
		printData(task, func() { ok() })
		return nil
	},
}

func init() {
	eventCmd.Flags().StringVar(&eventData, "data", "", "event payload as a JSON object")
}
