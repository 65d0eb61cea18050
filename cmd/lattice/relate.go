package main

import "github.com/spf13/cobra"

var linkNote string

var linkCmd = &cobra.Command{
	Use:   "link <task_id> <relationship_type> <target_id>",
	Short: "Add a relationship edge from a task to another",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := currentActor()
		if err != nil {
			return err
		}
		task, err := st.AddRelationship(cmd.Context(), args[0], args[1], args[2], linkNote, actor)
		if err != nil {
			return err
		}
		printData(task, func() { ok() })
		return nil
	},
}

var unlinkCmd = &cobra.Command{
	Use:   "unlink <task_id> <relationship_type> <target_id>",
	Short: "Remove a relationship edge",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := currentActor()
		if err != nil {
			return err
		}
		task, err := st.RemoveRelationship(cmd.Context(), args[0], args[1], args[2], actor)
		if err != nil {
			return err
		}
		printData(task, func() { ok() })
		return nil
	},
}

func init() {
	linkCmd.Flags().StringVar(&linkNote, "note", "", "optional note attached to the relationship")
}
