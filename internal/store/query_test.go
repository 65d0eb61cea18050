package store_test

import (
	"context"
	"testing"

	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/fsops"
	"github.com/lattice-dev/lattice/internal/store"
	"github.com/stretchr/testify/require"
)

func TestListTasksFiltersByStatus(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.CreateTask(ctx, store.CreateInput{Title: "a", Status: "backlog", Actor: actor("human:alice")})
	require.NoError(t, err)
	_, err = s.CreateTask(ctx, store.CreateInput{Title: "b", Status: "planned", Actor: actor("human:alice")})
	require.NoError(t, err)

	planned, err := s.ListTasks(store.ListFilter{Status: "planned"})
	require.NoError(t, err)
	require.Len(t, planned, 1)
	require.Equal(t, "b", planned[0].Title)
}

func TestEventsReturnsLogInOrder(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, store.CreateInput{Title: "a", Actor: actor("human:alice")})
	require.NoError(t, err)
	_, err = s.SetStatus(ctx, store.StatusInput{TaskID: task.ID, To: "planned", Actor: actor("human:alice")})
	require.NoError(t, err)

	events, err := s.Events(task.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "task_created", events[0].Type)
	require.Equal(t, "status_changed", events[1].Type)
}

func TestNextSelectsReadyTask(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.CreateTask(ctx, store.CreateInput{Title: "low", Status: "backlog", Priority: "low", Actor: actor("human:alice")})
	require.NoError(t, err)
	high, err := s.CreateTask(ctx, store.CreateInput{Title: "high", Status: "backlog", Priority: "high", Actor: actor("human:alice")})
	require.NoError(t, err)

	candidate, err := s.Next(ctx, actor("agent:a1"), false, nil)
	require.NoError(t, err)
	require.NotNil(t, candidate)
	require.Equal(t, high.ID, candidate.ID)
}

func TestNextClaimRequiresPlan(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.CreateTask(ctx, store.CreateInput{Title: "t", Status: "backlog", Actor: actor("human:alice")})
	require.NoError(t, err)

	_, err = s.Next(ctx, actor("agent:a1"), true, nil)
	require.Error(t, err)
	require.Equal(t, errs.PlanRequired, errs.CodeOf(err))
}

func TestNextClaimTransitionsToInProgress(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, store.CreateInput{Title: "t", Status: "backlog", Actor: actor("human:alice")})
	require.NoError(t, err)
	planContent := "# t\n\n## Technical Plan\n\nDo the actual work described here.\n\n## Acceptance Criteria\n\nIt works end to end.\n"
	require.NoError(t, fsops.AtomicWrite(s.Layout.Plan(task.ID), []byte(planContent)))

	claimed, err := s.Next(ctx, actor("agent:a1"), true, nil)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.Equal(t, "in_progress", claimed.Status)
	require.NotNil(t, claimed.AssignedTo)
}
