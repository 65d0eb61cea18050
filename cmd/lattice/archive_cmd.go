package main

import "github.com/spf13/cobra"

var archiveCmd = &cobra.Command{
	Use:   "archive <task_id>",
	Short: "Move a task into the archive subtree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := currentActor()
		if err != nil {
			return err
		}
		task, err := st.Archive(cmd.Context(), args[0], actor)
		if err != nil {
			return err
		}
		printData(task, func() { ok() })
		return nil
	},
}

var unarchiveCmd = &cobra.Command{
	Use:   "unarchive <task_id>",
	Short: "Move a task back out of the archive subtree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := currentActor()
		if err != nil {
			return err
		}
		task, err := st.Unarchive(cmd.Context(), args[0], actor)
		if err != nil {
			return err
		}
		printData(task, func() { ok() })
		return nil
	},
}
