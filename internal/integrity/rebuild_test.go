package integrity_test

import (
	"context"
	"os"
	"testing"

	"github.com/lattice-dev/lattice/internal/fsops"
	"github.com/lattice-dev/lattice/internal/integrity"
	"github.com/lattice-dev/lattice/internal/resource"
	"github.com/lattice-dev/lattice/internal/store"
	"github.com/stretchr/testify/require"
)

func TestRebuildTaskRestoresDriftedSnapshot(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, store.CreateInput{Title: "t", Actor: actor("human:alice")})
	require.NoError(t, err)
	_, err = s.SetStatus(ctx, store.StatusInput{TaskID: task.ID, To: "planned", Actor: actor("human:alice")})
	require.NoError(t, err)

	// clobber the snapshot entirely; rebuild must recover it from the event log alone
	require.NoError(t, fsops.AtomicWrite(s.Layout.TaskSnapshot(task.ID), []byte(`{"id":"bogus"}`)))

	rebuilt, err := integrity.RebuildTask(ctx, s, task.ID, false)
	require.NoError(t, err)
	require.Equal(t, task.ID, rebuilt.ID)
	require.Equal(t, "planned", rebuilt.Status)

	report, err := integrity.Audit(s)
	require.NoError(t, err)
	require.False(t, report.HasErrors())
}

func TestRebuildTaskFailsWhenLogMissing(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := integrity.RebuildTask(ctx, s, "task_doesnotexist", false)
	require.Error(t, err)
}

func TestRebuildAllRecoversEverySnapshot(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	a, err := s.CreateTask(ctx, store.CreateInput{Title: "a", Actor: actor("human:alice")})
	require.NoError(t, err)
	b, err := s.CreateTask(ctx, store.CreateInput{Title: "b", Actor: actor("human:alice")})
	require.NoError(t, err)

	require.NoError(t, os.Remove(s.Layout.TaskSnapshot(a.ID)))
	require.NoError(t, os.Remove(s.Layout.TaskSnapshot(b.ID)))

	require.NoError(t, integrity.RebuildAll(ctx, s))

	tasks, err := s.ListTasks(store.ListFilter{IncludeAll: true})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
}

func TestRebuildLifecycleLogRegeneratesFromTaskLogs(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, store.CreateInput{Title: "t", Actor: actor("human:alice")})
	require.NoError(t, err)
	_, err = s.SetStatus(ctx, store.StatusInput{TaskID: task.ID, To: "planned", Actor: actor("human:alice")})
	require.NoError(t, err)

	require.NoError(t, os.Remove(s.Layout.LifecycleLog()))
	require.NoError(t, integrity.RebuildLifecycleLog(ctx, s))

	report, err := integrity.Audit(s)
	require.NoError(t, err)
	require.False(t, report.HasErrors())
}

func TestRebuildIDsRecomputesIndex(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	cfg, err := s.ReadConfig()
	require.NoError(t, err)
	cfg.ProjectCode = "LAT"
	require.NoError(t, s.SaveConfig(ctx, cfg))

	task, err := s.CreateTask(ctx, store.CreateInput{Title: "t", Actor: actor("human:alice")})
	require.NoError(t, err)
	require.Equal(t, "LAT-1", task.ShortID)

	require.NoError(t, os.Remove(s.Layout.IDs()))
	require.NoError(t, integrity.RebuildIDs(ctx, s))

	report, err := integrity.Audit(s)
	require.NoError(t, err)
	require.False(t, report.HasErrors())
}

func TestRebuildResourceRestoresSnapshot(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	coord := resource.New(s.Layout, s.Locks)
	_, err := coord.Create(ctx, "build-lock", 1, 300, "ci lock", actor("human:alice"))
	require.NoError(t, err)

	require.NoError(t, fsops.AtomicWrite(s.Layout.ResourceSnapshot("build-lock"), []byte(`{"id":"bogus"}`)))

	rebuilt, err := integrity.RebuildResource(ctx, s, "build-lock")
	require.NoError(t, err)
	require.Equal(t, "build-lock", rebuilt.Name)
}
