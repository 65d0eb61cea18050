package store_test

import (
	"context"
	"testing"

	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/store"
	"github.com/stretchr/testify/require"
)

func TestAddCommentIncrementsCount(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, store.CreateInput{Title: "t", Actor: actor("human:alice")})
	require.NoError(t, err)

	updated, err := s.AddComment(ctx, task.ID, "looks fine", "", actor("human:alice"))
	require.NoError(t, err)
	require.Equal(t, 1, updated.CommentCount)
	require.Empty(t, updated.EvidenceRefs) // no role, no evidence ref
}

func TestAddCommentWithRoleRecordsEvidence(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, store.CreateInput{Title: "t", Actor: actor("human:alice")})
	require.NoError(t, err)

	updated, err := s.AddComment(ctx, task.ID, "ship it", "reviewer", actor("human:alice"))
	require.NoError(t, err)
	require.Equal(t, 1, updated.CommentCount)
	require.Len(t, updated.EvidenceRefs, 1)
	require.Equal(t, "reviewer", updated.EvidenceRefs[0].Role)
}

func TestEditCommentUpdatesRoleOnExistingEvidenceRef(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, store.CreateInput{Title: "t", Actor: actor("human:alice")})
	require.NoError(t, err)
	_, err = s.AddComment(ctx, task.ID, "first draft", "reviewer", actor("human:alice"))
	require.NoError(t, err)

	events, err := s.Events(task.ID)
	require.NoError(t, err)
	var commentID string
	for _, e := range events {
		if e.Type == "comment_added" {
			commentID = e.ID
		}
	}

	updated, err := s.EditComment(ctx, task.ID, commentID, "revised text", "approver", actor("human:alice"))
	require.NoError(t, err)
	require.Len(t, updated.EvidenceRefs, 1)
	require.Equal(t, "approver", updated.EvidenceRefs[0].Role)
}

func TestDeleteCommentDecrementsCountAndRemovesEvidence(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, store.CreateInput{Title: "t", Actor: actor("human:alice")})
	require.NoError(t, err)

	updated, err := s.AddComment(ctx, task.ID, "ship it", "reviewer", actor("human:alice"))
	require.NoError(t, err)

	events, err := s.Events(task.ID)
	require.NoError(t, err)
	var commentID string
	for _, e := range events {
		if e.Type == "comment_added" {
			commentID = e.ID
		}
	}
	require.NotEmpty(t, commentID)

	updated, err = s.DeleteComment(ctx, task.ID, commentID, actor("human:alice"))
	require.NoError(t, err)
	require.Equal(t, 0, updated.CommentCount)
	require.Empty(t, updated.EvidenceRefs)
}

func TestAddReactionThenRemoveReactionSucceeds(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, store.CreateInput{Title: "t", Actor: actor("human:alice")})
	require.NoError(t, err)
	updated, err := s.AddComment(ctx, task.ID, "nice", "", actor("human:alice"))
	require.NoError(t, err)

	events, err := s.Events(task.ID)
	require.NoError(t, err)
	var commentID string
	for _, e := range events {
		if e.Type == "comment_added" {
			commentID = e.ID
		}
	}

	updated, err = s.AddReaction(ctx, task.ID, commentID, "+1", actor("human:bob"))
	require.NoError(t, err)
	updated, err = s.RemoveReaction(ctx, task.ID, commentID, "+1", actor("human:bob"))
	require.NoError(t, err)
	require.Equal(t, task.ID, updated.ID)
}

func TestAddCommentFailsOnUnknownTask(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.AddComment(ctx, "lat-nonexistent", "body", "", actor("human:alice"))
	require.Error(t, err)
	require.Equal(t, errs.NotFound, errs.CodeOf(err))
}
