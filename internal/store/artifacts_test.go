package store_test

import (
	"context"
	"testing"

	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/store"
	"github.com/stretchr/testify/require"
)

func TestAttachArtifactRecordsEvidenceRef(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, store.CreateInput{Title: "t", Actor: actor("human:alice")})
	require.NoError(t, err)

	updated, err := s.AttachArtifact(ctx, task.ID, []byte("payload bytes"), "report.txt", "text/plain", "reviewer", actor("human:alice"))
	require.NoError(t, err)
	require.Len(t, updated.EvidenceRefs, 1)
	require.Equal(t, "reviewer", updated.EvidenceRefs[0].Role)
}

func TestAttachArtifactAllowsEmptyRole(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, store.CreateInput{Title: "t", Actor: actor("human:alice")})
	require.NoError(t, err)

	updated, err := s.AttachArtifact(ctx, task.ID, []byte("payload"), "notes.txt", "text/plain", "", actor("human:alice"))
	require.NoError(t, err)
	require.Len(t, updated.EvidenceRefs, 1)
}

func TestAttachArtifactFailsOnUnknownTask(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.AttachArtifact(ctx, "lat-nonexistent", []byte("x"), "f.txt", "text/plain", "", actor("human:alice"))
	require.Error(t, err)
	require.Equal(t, errs.NotFound, errs.CodeOf(err))
}
