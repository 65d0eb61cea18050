package store_test

import (
	"context"
	"testing"

	"github.com/lattice-dev/lattice/internal/event"
	"github.com/lattice-dev/lattice/internal/store"
	"github.com/stretchr/testify/require"
)

func TestAssignTaskSetsAssignee(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, store.CreateInput{Title: "t", Actor: actor("human:alice")})
	require.NoError(t, err)

	updated, err := s.AssignTask(ctx, task.ID, actor("agent:a1"), actor("human:alice"))
	require.NoError(t, err)
	require.NotNil(t, updated.AssignedTo)
	require.Equal(t, "agent:a1", updated.AssignedTo.Raw)
}

func TestAssignTaskClearsAssigneeWithZeroActor(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, store.CreateInput{Title: "t", Actor: actor("human:alice")})
	require.NoError(t, err)

	_, err = s.AssignTask(ctx, task.ID, actor("agent:a1"), actor("human:alice"))
	require.NoError(t, err)

	cleared, err := s.AssignTask(ctx, task.ID, event.Actor{}, actor("human:alice"))
	require.NoError(t, err)
	require.Nil(t, cleared.AssignedTo)
}

func TestAssignTaskFailsOnUnknownTask(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.AssignTask(ctx, "lat-nonexistent", actor("agent:a1"), actor("human:alice"))
	require.Error(t, err)
}
