package materializer_test

import (
	"testing"
	"time"

	"github.com/lattice-dev/lattice/internal/event"
	"github.com/lattice-dev/lattice/internal/ids"
	"github.com/lattice-dev/lattice/internal/materializer"
	"github.com/stretchr/testify/require"
)

func mkResourceEvent(t *testing.T, resourceID, typ, actor string, data any, ts time.Time) event.Event {
	t.Helper()
	a, err := event.NewRawActor(actor)
	require.NoError(t, err)
	e, err := event.NewResourceEvent(ids.New(ids.PrefixEvent), ts, typ, resourceID, a, data)
	require.NoError(t, err)
	return e
}

func TestResourceAcquireReleaseHeartbeatExpire(t *testing.T) {
	resID := ids.New(ids.PrefixResource)
	ts := time.Now()

	r, err := materializer.ApplyResource(nil, mkResourceEvent(t, resID, event.TypeResourceCreated, "system:lattice", map[string]any{
		"name": "build_lock", "max_holders": 1, "ttl_seconds": 2,
	}, ts))
	require.NoError(t, err)
	require.Empty(t, r.Holders)

	r, err = materializer.ApplyResource(r, mkResourceEvent(t, resID, event.TypeResourceAcquired, "agent:a", map[string]any{}, ts.Add(time.Second)))
	require.NoError(t, err)
	require.Len(t, r.Holders, 1)
	require.Equal(t, "agent:a", r.Holders[0].Actor.String())

	r, err = materializer.ApplyResource(r, mkResourceEvent(t, resID, event.TypeResourceHeartbeat, "agent:a", map[string]any{}, ts.Add(2*time.Second)))
	require.NoError(t, err)
	require.True(t, r.Holders[0].ExpiresAt.After(ts.Add(2*time.Second)))

	r, err = materializer.ApplyResource(r, mkResourceEvent(t, resID, event.TypeResourceExpired, "agent:a", map[string]any{}, ts.Add(3*time.Second)))
	require.NoError(t, err)
	require.Empty(t, r.Holders)

	r, err = materializer.ApplyResource(r, mkResourceEvent(t, resID, event.TypeResourceAcquired, "agent:b", map[string]any{}, ts.Add(4*time.Second)))
	require.NoError(t, err)
	require.Len(t, r.Holders, 1)
	require.Equal(t, "agent:b", r.Holders[0].Actor.String())
}
