package main

import (
	"os"
	"path/filepath"

	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/spf13/cobra"
)

var (
	attachFile        string
	attachContentType string
	attachRole        string
)

var attachCmd = &cobra.Command{
	Use:   "attach <task_id>",
	Short: "Attach a file artifact to a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if attachFile == "" {
			return errs.New(errs.ValidationError, "--file is required")
		}
		payload, err := os.ReadFile(attachFile) // #nosec G304
		if err != nil {
			return errs.Wrap(errs.ReadError, err, "read artifact payload %s", attachFile)
		}
		actor, err := currentActor()
		if err != nil {
			return err
		}
		task, err := st.AttachArtifact(cmd.Context(), args[0], payload, filepath.Base(attachFile), attachContentType, attachRole, actor)
		if err != nil {
			return err
		}
		printData(task, func() { ok() })
		return nil
	},
}

func init() {
	attachCmd.Flags().StringVar(&attachFile, "file", "", "path to the artifact payload file")
	attachCmd.Flags().StringVar(&attachContentType, "content-type", "", "MIME type of the artifact")
	attachCmd.Flags().StringVar(&attachRole, "role", "", "evidence role this artifact satisfies")
}
