package store

import (
	"context"

	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/event"
	"github.com/lattice-dev/lattice/internal/ids"
	"github.com/lattice-dev/lattice/internal/snapshot"
	"github.com/lattice-dev/lattice/internal/workflow"
)

// AddComment appends a comment_added event, optionally tagged with a
// role for completion-policy evidence (spec.md §4.1 "Evidence ref
// rules", §4.7 "Role validation on write").
func (s *Store) AddComment(ctx context.Context, taskID, body, role string, actor event.Actor) (*snapshot.Task, error) {
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

	e, err := event.New(ids.New(ids.PrefixEvent), now(), event.TypeCommentAdded, taskID, actor, map[string]any{
		"body": body, "role": role,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ValidationError, err, "store: build comment_added event")
	}
	return s.writeTask(ctx, cfg, taskID, []event.Event{e})
}

// EditComment appends a comment_edited event; body and role are
// independently optional (empty means "leave unchanged" for body, but
// an explicit role re-assignment per spec.md §4.1).
func (s *Store) EditComment(ctx context.Context, taskID, commentID, body, role string, actor event.Actor) (*snapshot.Task, error) {
	cfg, err := s.LoadConfig()
	if err != nil {
		return nil, err
	}
	if role != "" && !workflow.ValidateRole(cfg, role) {
		return nil, errs.New(errs.InvalidRole, "role %q is not valid; valid roles: %v", role, workflow.ValidRoles(cfg))
	}
	e, err := event.New(ids.New(ids.PrefixEvent), now(), event.TypeCommentEdited, taskID, actor, map[string]any{
		"comment_id": commentID, "body": body, "role": role,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ValidationError, err, "store: build comment_edited event")
	}
	return s.writeTask(ctx, cfg, taskID, []event.Event{e})
}

// DeleteComment appends a comment_deleted event. Per spec.md §9,
// comment deletion is a new event, not a retraction of the original.
func (s *Store) DeleteComment(ctx context.Context, taskID, commentID string, actor event.Actor) (*snapshot.Task, error) {
	cfg, err := s.LoadConfig()
	if err != nil {
		return nil, err
	}
	e, err := event.New(ids.New(ids.PrefixEvent), now(), event.TypeCommentDeleted, taskID, actor, map[string]any{
		"comment_id": commentID,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ValidationError, err, "store: build comment_deleted event")
	}
	return s.writeTask(ctx, cfg, taskID, []event.Event{e})
}

// AddReaction and RemoveReaction record reaction_added/removed events.
// Neither mutates snapshot state beyond bookkeeping (spec.md §4.1).
func (s *Store) AddReaction(ctx context.Context, taskID, commentID, emoji string, actor event.Actor) (*snapshot.Task, error) {
	return s.reactionEvent(ctx, taskID, event.TypeReactionAdded, commentID, emoji, actor)
}

func (s *Store) RemoveReaction(ctx context.Context, taskID, commentID, emoji string, actor event.Actor) (*snapshot.Task, error) {
	return s.reactionEvent(ctx, taskID, event.TypeReactionRemoved, commentID, emoji, actor)
}

func (s *Store) reactionEvent(ctx context.Context, taskID, typ, commentID, emoji string, actor event.Actor) (*snapshot.Task, error) {
	cfg, err := s.LoadConfig()
	if err != nil {
		return nil, err
	}
	e, err := event.New(ids.New(ids.PrefixEvent), now(), typ, taskID, actor, map[string]any{
		"comment_id": commentID, "emoji": emoji,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ValidationError, err, "store: build %s event", typ)
	}
	return s.writeTask(ctx, cfg, taskID, []event.Event{e})
}
