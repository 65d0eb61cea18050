package main

import (
	"os"

	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/store"
	"github.com/spf13/cobra"
)

var (
	completeComment      string
	completeReviewRole   string
	completeArtifactFile string
	completeArtifactType string
	completeForce        bool
	completeReason       string
)

var completeCmd = &cobra.Command{
	Use:   "complete <task_id>",
	Short: "Run the compound completion sequence: review comment, status->review, optional artifact, status->done",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := currentActor()
		if err != nil {
			return err
		}
		in := store.CompleteInput{
			TaskID: args[0], ReviewComment: completeComment, ReviewRole: completeReviewRole,
			Actor: actor, Force: completeForce, Reason: completeReason,
		}
		if completeArtifactFile != "" {
			payload, err := os.ReadFile(completeArtifactFile) // #nosec G304
			if err != nil {
				return errs.Wrap(errs.ReadError, err, "read artifact payload %s", completeArtifactFile)
			}
			in.ArtifactPayload = payload
			in.ArtifactName = completeArtifactFile
			in.ArtifactType = completeArtifactType
		}
		task, err := st.Complete(cmd.Context(), in)
		if err != nil {
			return err
		}
		printData(task, func() { printTaskSummary(task) })
		return nil
	},
}

func init() {
	completeCmd.Flags().StringVar(&completeComment, "comment", "", "review comment body")
	completeCmd.Flags().StringVar(&completeReviewRole, "role", "", "evidence role for the review comment (default: reviewer)")
	completeCmd.Flags().StringVar(&completeArtifactFile, "artifact", "", "path to a review artifact to attach")
	completeCmd.Flags().StringVar(&completeArtifactType, "artifact-content-type", "", "MIME type of the attached artifact")
	completeCmd.Flags().BoolVar(&completeForce, "force", false, "bypass transition and completion-policy gates (requires --reason)")
	completeCmd.Flags().StringVar(&completeReason, "reason", "", "reason for --force")
}
