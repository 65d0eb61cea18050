package lockmgr_test

import (
	"context"
	"testing"
	"time"

	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/lockmgr"
	"github.com/stretchr/testify/require"
)

func TestAcquireManySortsKeys(t *testing.T) {
	m := lockmgr.New(t.TempDir())
	g, err := m.AcquireMany(context.Background(), []string{lockmgr.TasksKey("b"), lockmgr.EventsKey("b")}, time.Second)
	require.NoError(t, err)
	require.NoError(t, g.Close())
}

func TestAcquireTimesOutWhenHeld(t *testing.T) {
	m := lockmgr.New(t.TempDir())
	key := lockmgr.EventsKey("task_x")

	g1, err := m.Acquire(context.Background(), key, time.Second)
	require.NoError(t, err)
	defer g1.Close()

	_, err = m.Acquire(context.Background(), key, 80*time.Millisecond)
	require.Error(t, err)
	require.Equal(t, errs.Timeout, errs.CodeOf(err))
}

func TestAcquireManyReleasesOnPartialFailure(t *testing.T) {
	dir := t.TempDir()
	m := lockmgr.New(dir)

	holder, err := m.Acquire(context.Background(), lockmgr.TasksKey("y"), time.Second)
	require.NoError(t, err)
	defer holder.Close()

	_, err = m.AcquireMany(context.Background(), []string{lockmgr.EventsKey("y"), lockmgr.TasksKey("y")}, 80*time.Millisecond)
	require.Error(t, err)

	// events_y must have been released even though it was acquired
	// before the failing tasks_y; a fresh acquire should succeed fast.
	g, err := m.Acquire(context.Background(), lockmgr.EventsKey("y"), time.Second)
	require.NoError(t, err)
	require.NoError(t, g.Close())
}
