package store

import (
	"context"
	"path/filepath"

	"github.com/lattice-dev/lattice/internal/canonical"
	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/event"
	"github.com/lattice-dev/lattice/internal/fsops"
	"github.com/lattice-dev/lattice/internal/ids"
	"github.com/lattice-dev/lattice/internal/snapshot"
	"github.com/lattice-dev/lattice/internal/workflow"
)

// CompleteInput is the compound "complete" operation's payload (spec.md
// §6.2 "complete: comment with review role, optional status->review,
// attach review artifact, status->done, as one transaction").
type CompleteInput struct {
	TaskID          string
	ReviewComment   string
	ReviewRole      string // defaults to "reviewer" if empty
	ArtifactPayload []byte
	ArtifactName    string
	ArtifactType    string
	Actor           event.Actor
	Force           bool
	Reason          string
}

// Complete runs the compound completion sequence as a single write:
// every event lands in one writeTask batch, so the completion-policy
// gate on the final status_changed-to-done event evaluates against a
// snapshot that already reflects this transaction's own review comment
// and artifact (spec.md §4.7).
func (s *Store) Complete(ctx context.Context, in CompleteInput) (*snapshot.Task, error) {
	cfg, err := s.LoadConfig()
	if err != nil {
		return nil, err
	}
	role := in.ReviewRole
	if role == "" {
		role = "reviewer"
	}
	if !workflow.ValidateRole(cfg, role) {
		return nil, errs.New(errs.InvalidRole, "role %q is not valid; valid roles: %v", role, workflow.ValidRoles(cfg))
	}

	cur, err := s.loadTaskSnapshot(in.TaskID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, errs.New(errs.NotFound, "task %q does not exist", in.TaskID)
	}

	var events []event.Event

	commentEvt, err := event.New(ids.New(ids.PrefixEvent), now(), event.TypeCommentAdded, in.TaskID, in.Actor, map[string]any{
		"body": in.ReviewComment, "role": role,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ValidationError, err, "store: build comment_added event")
	}
	events = append(events, commentEvt)

	if cur.Status != "review" {
		statusEvt, err := buildStatusChangedEvent(cur.Status, StatusInput{
			TaskID: in.TaskID, To: "review", Actor: in.Actor, Force: in.Force, Reason: in.Reason,
		})
		if err != nil {
			return nil, err
		}
		events = append(events, statusEvt)
	}

	if len(in.ArtifactPayload) > 0 {
		artID := ids.New(ids.PrefixArtifact)
		ts := now()
		payloadPath := filepath.Join(s.Layout.ArtifactPayloadDir(), artID+filepath.Ext(in.ArtifactName))
		if err := fsops.AtomicWrite(payloadPath, in.ArtifactPayload); err != nil {
			return nil, errs.Wrap(errs.WriteError, err, "store: write artifact payload %s", artID)
		}
		meta := ArtifactMeta{
			ID: artID, TaskID: in.TaskID, Role: role, Filename: in.ArtifactName,
			ContentType: in.ArtifactType, Size: len(in.ArtifactPayload), CreatedAt: ts, CreatedBy: in.Actor,
		}
		metaData, err := canonical.Indented(meta)
		if err != nil {
			return nil, errs.Wrap(errs.WriteError, err, "store: serialize artifact meta %s", artID)
		}
		if err := fsops.AtomicWrite(s.Layout.ArtifactMeta(artID), metaData); err != nil {
			return nil, errs.Wrap(errs.WriteError, err, "store: write artifact meta %s", artID)
		}
		artifactEvt, err := event.New(ids.New(ids.PrefixEvent), ts, event.TypeArtifactAttached, in.TaskID, in.Actor, map[string]any{
			"id": artID, "role": role,
		})
		if err != nil {
			return nil, errs.Wrap(errs.ValidationError, err, "store: build artifact_attached event")
		}
		events = append(events, artifactEvt)
	}

	statusEvt, err := buildStatusChangedEvent("review", StatusInput{
		TaskID: in.TaskID, To: "done", Actor: in.Actor, Force: in.Force, Reason: in.Reason,
	})
	if err != nil {
		return nil, err
	}
	events = append(events, statusEvt)

	return s.writeTask(ctx, cfg, in.TaskID, events)
}
