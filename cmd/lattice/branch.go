package main

import "github.com/spf13/cobra"

var branchRepo string

var branchLinkCmd = &cobra.Command{
	Use:   "branch-link <task_id> <branch>",
	Short: "Link a git branch to a task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := currentActor()
		if err != nil {
			return err
		}
		task, err := st.LinkBranch(cmd.Context(), args[0], args[1], branchRepo, actor)
		if err != nil {
			return err
		}
		printData(task, func() { ok() })
		return nil
	},
}

var branchUnlinkCmd = &cobra.Command{
	Use:   "branch-unlink <task_id> <branch>",
	Short: "Unlink a git branch from a task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := currentActor()
		if err != nil {
			return err
		}
		task, err := st.UnlinkBranch(cmd.Context(), args[0], args[1], actor)
		if err != nil {
			return err
		}
		printData(task, func() { ok() })
		return nil
	},
}

func init() {
	branchLinkCmd.Flags().StringVar(&branchRepo, "repo", "", "repository the branch belongs to")
}
