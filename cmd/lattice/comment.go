package main

import (
	"github.com/spf13/cobra"
)

var commentRole string

var commentCmd = &cobra.Command{
	Use:   "comment <task_id> <body>",
	Short: "Add a comment to a task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := currentActor()
		if err != nil {
			return err
		}
		task, err := st.AddComment(cmd.Context(), args[0], args[1], commentRole, actor)
		if err != nil {
			return err
		}
		printData(task, func() { printTaskSummary(task) })
		return nil
	},
}

var commentEditCmd = &cobra.Command{
	Use:   "comment-edit <task_id> <comment_id> <body>",
	Short: "Edit an existing comment",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := currentActor()
		if err != nil {
			return err
		}
		task, err := st.EditComment(cmd.Context(), args[0], args[1], args[2], commentRole, actor)
		if err != nil {
			return err
		}
		printData(task, func() { printTaskSummary(task) })
		return nil
	},
}

var commentDeleteCmd = &cobra.Command{
	Use:   "comment-delete <task_id> <comment_id>",
	Short: "Delete a comment (recorded as a comment_deleted event, not a retraction)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := currentActor()
		if err != nil {
			return err
		}
		task, err := st.DeleteComment(cmd.Context(), args[0], args[1], actor)
		if err != nil {
			return err
		}
		printData(task, func() { ok() })
		return nil
	},
}

var reactCmd = &cobra.Command{
	Use:   "react <task_id> <comment_id> <emoji>",
	Short: "React to a comment",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := currentActor()
		if err != nil {
			return err
		}
		task, err := st.AddReaction(cmd.Context(), args[0], args[1], args[2], actor)
		if err != nil {
			return err
		}
		printData(task, func() { ok() })
		return nil
	},
}

var unreactCmd = &cobra.Command{
	Use:   "unreact <task_id> <comment_id> <emoji>",
	Short: "Remove a reaction from a comment",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := currentActor()
		if err != nil {
			return err
		}
		task, err := st.RemoveReaction(cmd.Context(), args[0], args[1], args[2], actor)
		if err != nil {
			return err
		}
		printData(task, func() { ok() })
		return nil
	},
}

func init() {
	commentCmd.Flags().StringVar(&commentRole, "role", "", "evidence role this comment satisfies (e.g. reviewer)")
	commentEditCmd.Flags().StringVar(&commentRole, "role", "", "re-assign the comment's evidence role")
}
