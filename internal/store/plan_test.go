package store_test

import (
	"context"
	"os"
	"testing"

	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/fsops"
	"github.com/lattice-dev/lattice/internal/store"
	"github.com/stretchr/testify/require"
)

func TestCreateTaskScaffoldsPlanEagerly(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, store.CreateInput{Title: "t", Description: "fix the thing", Actor: actor("human:alice")})
	require.NoError(t, err)

	content, err := s.ReadPlan(task.ID)
	require.NoError(t, err)
	require.Contains(t, content, "TODO: describe the approach")
	require.Contains(t, content, "TODO: define acceptance criteria")
	require.Contains(t, content, "fix the thing")
}

func TestReadPlanFailsWhenFileMissing(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, store.CreateInput{Title: "t", Actor: actor("human:alice")})
	require.NoError(t, err)

	// CreateTask scaffolds a plan eagerly; simulate "never scaffolded" by removing it
	require.NoError(t, os.Remove(s.Layout.Plan(task.ID)))

	_, err = s.ReadPlan(task.ID)
	require.Error(t, err)
	require.Equal(t, errs.NotFound, errs.CodeOf(err))
}

func TestScaffoldOnlyPlanBlocksClaim(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.CreateTask(ctx, store.CreateInput{Title: "t", Status: "backlog", Actor: actor("human:alice")})
	require.NoError(t, err)

	_, err = s.Next(ctx, actor("agent:a1"), true, nil)
	require.Error(t, err)
	require.Equal(t, errs.PlanRequired, errs.CodeOf(err))
}

func TestFilledOutPlanAllowsClaim(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, store.CreateInput{Title: "t", Status: "backlog", Actor: actor("human:alice")})
	require.NoError(t, err)

	filled := "# t\n\n## Technical Plan\n\nWalk the tree and rewrite each node.\n\n## Acceptance Criteria\n\nAll nodes rewritten, tests pass.\n"
	require.NoError(t, fsops.AtomicWrite(s.Layout.Plan(task.ID), []byte(filled)))

	claimed, err := s.Next(ctx, actor("agent:a1"), true, nil)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.Equal(t, "in_progress", claimed.Status)
}
