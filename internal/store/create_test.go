package store_test

import (
	"context"
	"testing"

	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/store"
	"github.com/stretchr/testify/require"
)

func TestCreateTaskAssignsShortID(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	cfg, err := s.ReadConfig()
	require.NoError(t, err)
	cfg.ProjectCode = "LAT"
	require.NoError(t, s.SaveConfig(ctx, cfg))

	task, err := s.CreateTask(ctx, store.CreateInput{Title: "first task", Actor: actor("human:alice")})
	require.NoError(t, err)
	require.Equal(t, "LAT-1", task.ShortID)
	require.Equal(t, "first task", task.Title)
	require.Equal(t, cfg.DefaultStatus, task.Status)
}

func TestCreateTaskIsIdempotentWithSameID(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	in := store.CreateInput{ID: "task_fixed", Title: "retry me", Actor: actor("agent:a1")}
	t1, err := s.CreateTask(ctx, in)
	require.NoError(t, err)

	t2, err := s.CreateTask(ctx, in)
	require.NoError(t, err)
	require.Equal(t, t1.ID, t2.ID)
	require.Equal(t, t1.LastEventID, t2.LastEventID)
}

func TestCreateTaskConflictsOnDifferentPayload(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.CreateTask(ctx, store.CreateInput{ID: "task_fixed", Title: "version one", Actor: actor("agent:a1")})
	require.NoError(t, err)

	_, err = s.CreateTask(ctx, store.CreateInput{ID: "task_fixed", Title: "version two", Actor: actor("agent:a1")})
	require.Error(t, err)
	require.Equal(t, errs.Conflict, errs.CodeOf(err))
}
