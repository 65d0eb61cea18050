package resource_test

import (
	"context"
	"testing"
	"time"

	"github.com/lattice-dev/lattice/internal/config"
	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/event"
	"github.com/lattice-dev/lattice/internal/fsops"
	"github.com/lattice-dev/lattice/internal/lockmgr"
	"github.com/lattice-dev/lattice/internal/resource"
	"github.com/stretchr/testify/require"
)

func newCoordinator(t *testing.T) *resource.Coordinator {
	t.Helper()
	root := t.TempDir()
	layout := fsops.NewLayout(root)
	require.NoError(t, layout.EnsureDirs())
	locks := lockmgr.New(layout.LocksDir())
	return resource.New(layout, locks)
}

func actor(s string) event.Actor { return event.Actor{Raw: s} }

func TestCreateIsIdempotentOnSameConfig(t *testing.T) {
	c := newCoordinator(t)
	ctx := context.Background()

	r1, err := c.Create(ctx, "gpu-0", 1, 60, "shared GPU", actor("human:alice"))
	require.NoError(t, err)

	r2, err := c.Create(ctx, "gpu-0", 1, 60, "shared GPU", actor("human:bob"))
	require.NoError(t, err)
	require.Equal(t, r1.ID, r2.ID)
}

func TestCreateConflictsOnDifferentConfig(t *testing.T) {
	c := newCoordinator(t)
	ctx := context.Background()

	_, err := c.Create(ctx, "gpu-0", 1, 60, "", actor("human:alice"))
	require.NoError(t, err)

	_, err = c.Create(ctx, "gpu-0", 2, 60, "", actor("human:alice"))
	require.Error(t, err)
	require.Equal(t, errs.Conflict, errs.CodeOf(err))
}

func TestAcquireAutoCreatesFromConfig(t *testing.T) {
	c := newCoordinator(t)
	ctx := context.Background()
	cfg := config.Default()
	cfg.Resources = map[string]config.Resource{"gpu-0": {MaxHolders: 1, TTLSeconds: 60}}

	snap, err := c.Acquire(ctx, cfg, "gpu-0", actor("agent:a1"), resource.AcquireOptions{TaskID: "task_x"})
	require.NoError(t, err)
	require.Len(t, snap.Holders, 1)
	require.Equal(t, "task_x", snap.Holders[0].TaskID)
}

func TestAcquireFailsAtCapacityWithoutWait(t *testing.T) {
	c := newCoordinator(t)
	ctx := context.Background()
	cfg := config.Default()
	cfg.Resources = map[string]config.Resource{"gpu-0": {MaxHolders: 1, TTLSeconds: 60}}

	_, err := c.Acquire(ctx, cfg, "gpu-0", actor("agent:a1"), resource.AcquireOptions{})
	require.NoError(t, err)

	_, err = c.Acquire(ctx, cfg, "gpu-0", actor("agent:a2"), resource.AcquireOptions{})
	require.Error(t, err)
	require.Equal(t, errs.ResourceHeld, errs.CodeOf(err))
}

func TestAcquireIsHeartbeatForExistingHolder(t *testing.T) {
	c := newCoordinator(t)
	ctx := context.Background()
	cfg := config.Default()
	cfg.Resources = map[string]config.Resource{"gpu-0": {MaxHolders: 1, TTLSeconds: 60}}

	snap1, err := c.Acquire(ctx, cfg, "gpu-0", actor("agent:a1"), resource.AcquireOptions{})
	require.NoError(t, err)

	snap2, err := c.Acquire(ctx, cfg, "gpu-0", actor("agent:a1"), resource.AcquireOptions{})
	require.NoError(t, err)
	require.Len(t, snap2.Holders, 1)
	require.True(t, snap2.Holders[0].ExpiresAt.After(snap1.Holders[0].ExpiresAt) || snap2.Holders[0].ExpiresAt.Equal(snap1.Holders[0].ExpiresAt))
}

func TestAcquireForceReclaimsHolders(t *testing.T) {
	c := newCoordinator(t)
	ctx := context.Background()
	cfg := config.Default()
	cfg.Resources = map[string]config.Resource{"gpu-0": {MaxHolders: 1, TTLSeconds: 60}}

	_, err := c.Acquire(ctx, cfg, "gpu-0", actor("agent:a1"), resource.AcquireOptions{})
	require.NoError(t, err)

	snap, err := c.Acquire(ctx, cfg, "gpu-0", actor("agent:a2"), resource.AcquireOptions{Force: true})
	require.NoError(t, err)
	require.Len(t, snap.Holders, 1)
	require.True(t, snap.Holders[0].Actor.Equal(actor("agent:a2")))
}

func TestReleaseFailsWhenNotHeld(t *testing.T) {
	c := newCoordinator(t)
	ctx := context.Background()
	_, err := c.Create(ctx, "gpu-0", 1, 60, "", actor("human:alice"))
	require.NoError(t, err)

	_, err = c.Release(ctx, "gpu-0", actor("agent:a1"))
	require.Error(t, err)
	require.Equal(t, errs.NotHeld, errs.CodeOf(err))
}

func TestReleaseThenReacquire(t *testing.T) {
	c := newCoordinator(t)
	ctx := context.Background()
	cfg := config.Default()
	cfg.Resources = map[string]config.Resource{"gpu-0": {MaxHolders: 1, TTLSeconds: 60}}

	_, err := c.Acquire(ctx, cfg, "gpu-0", actor("agent:a1"), resource.AcquireOptions{})
	require.NoError(t, err)

	_, err = c.Release(ctx, "gpu-0", actor("agent:a1"))
	require.NoError(t, err)

	snap, err := c.Acquire(ctx, cfg, "gpu-0", actor("agent:a2"), resource.AcquireOptions{})
	require.NoError(t, err)
	require.Len(t, snap.Holders, 1)
}

func TestHeartbeatExtendsLease(t *testing.T) {
	c := newCoordinator(t)
	ctx := context.Background()
	cfg := config.Default()
	cfg.Resources = map[string]config.Resource{"gpu-0": {MaxHolders: 1, TTLSeconds: 60}}

	snap1, err := c.Acquire(ctx, cfg, "gpu-0", actor("agent:a1"), resource.AcquireOptions{})
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	snap2, err := c.Heartbeat(ctx, "gpu-0", actor("agent:a1"))
	require.NoError(t, err)
	require.True(t, snap2.Holders[0].ExpiresAt.After(snap1.Holders[0].ExpiresAt))
}

func TestHeartbeatFailsWhenNotHeld(t *testing.T) {
	c := newCoordinator(t)
	ctx := context.Background()
	_, err := c.Create(ctx, "gpu-0", 1, 60, "", actor("human:alice"))
	require.NoError(t, err)

	_, err = c.Heartbeat(ctx, "gpu-0", actor("agent:a1"))
	require.Error(t, err)
	require.Equal(t, errs.NotHeld, errs.CodeOf(err))
}

func TestListReturnsAllResources(t *testing.T) {
	c := newCoordinator(t)
	ctx := context.Background()
	_, err := c.Create(ctx, "gpu-0", 1, 60, "", actor("human:alice"))
	require.NoError(t, err)
	_, err = c.Create(ctx, "gpu-1", 2, 60, "", actor("human:alice"))
	require.NoError(t, err)

	all, err := c.List()
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestStatusFiltersExpiredHolders(t *testing.T) {
	c := newCoordinator(t)
	ctx := context.Background()
	cfg := config.Default()
	cfg.Resources = map[string]config.Resource{"gpu-0": {MaxHolders: 2, TTLSeconds: 0}}

	_, err := c.Acquire(ctx, cfg, "gpu-0", actor("agent:a1"), resource.AcquireOptions{})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	snap, err := c.Status("gpu-0")
	require.NoError(t, err)
	require.Empty(t, snap.Holders)
}
