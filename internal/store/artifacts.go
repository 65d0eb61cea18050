package store

import (
	"context"
	"path/filepath"
	"time"

	"github.com/lattice-dev/lattice/internal/canonical"
	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/event"
	"github.com/lattice-dev/lattice/internal/fsops"
	"github.com/lattice-dev/lattice/internal/ids"
	"github.com/lattice-dev/lattice/internal/snapshot"
	"github.com/lattice-dev/lattice/internal/workflow"
)

// ArtifactMeta is the on-disk metadata record for an attached artifact
// (spec.md §4.2 "artifacts/meta/<art_id>.json"). Payload files are
// written once at attach time and never mutated (spec.md §5).
type ArtifactMeta struct {
	ID          string      `json:"id"`
	TaskID      string      `json:"task_id"`
	Role        string      `json:"role,omitempty"`
	Filename    string      `json:"filename,omitempty"`
	ContentType string      `json:"content_type,omitempty"`
	Size        int         `json:"size"`
	CreatedAt   time.Time   `json:"created_at"`
	CreatedBy   event.Actor `json:"created_by"`
}

// AttachArtifact writes an artifact's payload and metadata, then
// records an artifact_attached event on taskID (spec.md §4.1 "Evidence
// ref rules", §4.7 "Role validation on write").
func (s *Store) AttachArtifact(ctx context.Context, taskID string, payload []byte, filename, contentType, role string, actor event.Actor) (*snapshot.Task, error) {
	cfg, err := s.LoadConfig()
	if err != nil {
		return nil, err
	}
	if role != "" && !workflow.ValidateRole(cfg, role) {
		return nil, errs.New(errs.InvalidRole, "role %q is not valid; valid roles: %v", role, workflow.ValidRoles(cfg))
	}
	if s.taskMissing(taskID) {
		return nil, errs.New(errs.NotFound, "task %q does not exist", taskID)
	}

	artID := ids.New(ids.PrefixArtifact)
	ts := now()
	payloadPath := filepath.Join(s.Layout.ArtifactPayloadDir(), artID+filepath.Ext(filename))
	if err := fsops.AtomicWrite(payloadPath, payload); err != nil {
		return nil, errs.Wrap(errs.WriteError, err, "store: write artifact payload %s", artID)
	}

	meta := ArtifactMeta{
		ID: artID, TaskID: taskID, Role: role, Filename: filename,
		ContentType: contentType, Size: len(payload), CreatedAt: ts, CreatedBy: actor,
	}
	metaData, err := canonical.Indented(meta)
	if err != nil {
		return nil, errs.Wrap(errs.WriteError, err, "store: serialize artifact meta %s", artID)
	}
	if err := fsops.AtomicWrite(s.Layout.ArtifactMeta(artID), metaData); err != nil {
		return nil, errs.Wrap(errs.WriteError, err, "store: write artifact meta %s", artID)
	}

	e, err := event.New(ids.New(ids.PrefixEvent), ts, event.TypeArtifactAttached, taskID, actor, map[string]any{
		"id": artID, "role": role,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ValidationError, err, "store: build artifact_attached event")
	}
	return s.writeTask(ctx, cfg, taskID, []event.Event{e})
}
