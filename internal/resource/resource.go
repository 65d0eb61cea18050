// Package resource implements the leased-lock resource coordinator
// (spec.md §4.6): resources are first-class entities with a lease-based
// concurrency model, separate from task events.
package resource

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lattice-dev/lattice/internal/config"
	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/event"
	"github.com/lattice-dev/lattice/internal/fsops"
	"github.com/lattice-dev/lattice/internal/ids"
	"github.com/lattice-dev/lattice/internal/jsonl"
	"github.com/lattice-dev/lattice/internal/lockmgr"
	"github.com/lattice-dev/lattice/internal/materializer"
	"github.com/lattice-dev/lattice/internal/snapshot"
)

// Coordinator is the resource store rooted at a Lattice project
// directory.
type Coordinator struct {
	layout fsops.Layout
	locks  *lockmgr.Manager
}

// New constructs a Coordinator.
func New(layout fsops.Layout, locks *lockmgr.Manager) *Coordinator {
	return &Coordinator{layout: layout, locks: locks}
}

// LockTimeout bounds lock acquisition for every coordinator operation.
const LockTimeout = lockmgr.DefaultTimeout

// load reads a resource's materialized snapshot (nil, nil if absent).
// Reads require no lock (spec.md §5 "Reads require no locks").
func (c *Coordinator) load(name string) (*snapshot.Resource, error) {
	path := c.layout.ResourceSnapshot(name)
	data, err := os.ReadFile(path) // #nosec G304
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.ReadError, err, "resource: read snapshot %s", name)
	}
	return snapshot.ParseResource(data)
}

func (c *Coordinator) appendAndWrite(name string, events []event.Event, snap *snapshot.Resource) error {
	path := c.layout.ResourceEvents(snap.ID)
	for _, e := range events {
		line, err := e.Marshal()
		if err != nil {
			return errs.Wrap(errs.WriteError, err, "resource: serialize event")
		}
		if err := jsonl.AppendLine(path, line); err != nil {
			return errs.Wrap(errs.WriteError, err, "resource: append event log %s", path)
		}
	}
	data, err := snapshot.SerializeResource(snap)
	if err != nil {
		return errs.Wrap(errs.WriteError, err, "resource: serialize snapshot")
	}
	return fsops.AtomicWrite(c.layout.ResourceSnapshot(name), data)
}

// Create registers a new resource, or returns the existing one
// unchanged if name already exists with identical config (idempotent);
// a name that exists with a different config is a conflict (spec.md
// §4.6 "create").
func (c *Coordinator) Create(ctx context.Context, name string, maxHolders, ttlSeconds int, description string, actor event.Actor) (*snapshot.Resource, error) {
	guard, err := c.locks.Acquire(ctx, lockmgr.ResourcesKey(name), LockTimeout)
	if err != nil {
		return nil, err
	}
	defer guard.Close()

	existing, err := c.load(name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.MaxHolders == maxHolders && existing.TTLSeconds == ttlSeconds && existing.Description == description {
			return existing, nil
		}
		return nil, errs.New(errs.Conflict, "resource %q already exists with different configuration", name)
	}

	id := ids.New(ids.PrefixResource)
	e, err := event.NewResourceEvent(ids.New(ids.PrefixEvent), time.Now(), event.TypeResourceCreated, id, actor, map[string]any{
		"name": name, "description": description, "max_holders": maxHolders, "ttl_seconds": ttlSeconds,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ValidationError, err, "resource: build resource_created event")
	}

	snap, err := materializer.ApplyResource(nil, e)
	if err != nil {
		return nil, err
	}
	snap.Name = name
	if err := c.appendAndWrite(name, []event.Event{e}, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// autoCreate materializes a resource in memory from cfg.Resources[name]
// without persisting anything; callers append the resulting
// resource_created event themselves within their own lock scope (spec.md
// §4.6 "auto-create from config if absent").
func autoCreate(cfg config.Config, name string, actor event.Actor) (event.Event, error) {
	rc, ok := cfg.Resources[name]
	if !ok {
		return event.Event{}, errs.New(errs.NotFound, "resource %q is not declared in config and does not exist", name)
	}
	id := ids.New(ids.PrefixResource)
	return event.NewResourceEvent(ids.New(ids.PrefixEvent), time.Now(), event.TypeResourceCreated, id, actor, map[string]any{
		"name": name, "description": rc.Description, "max_holders": rc.MaxHolders, "ttl_seconds": rc.TTLSeconds,
	})
}

// AcquireOptions configures Acquire (spec.md §4.6 "acquire").
type AcquireOptions struct {
	TaskID  string
	Force   bool
	Wait    bool
	Timeout time.Duration
}

// Acquire runs the acquire algorithm of spec.md §4.6 under the
// resource's lock, re-evaluated on every poll iteration when Wait is
// set.
func (c *Coordinator) Acquire(ctx context.Context, cfg config.Config, name string, actor event.Actor, opts AcquireOptions) (*snapshot.Resource, error) {
	deadline := time.Now().Add(opts.Timeout)
	if opts.Timeout <= 0 {
		deadline = time.Now()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = opts.Timeout

	for {
		snap, held, err := c.tryAcquireOnce(ctx, cfg, name, actor, opts)
		if err != nil {
			return nil, err
		}
		if held {
			return snap, nil
		}
		if !opts.Wait {
			return nil, errs.New(errs.ResourceHeld, "resource %q is at capacity", name)
		}
		wait := b.NextBackOff()
		if wait == backoff.Stop || (opts.Timeout > 0 && time.Now().Add(wait).After(deadline)) {
			return nil, errs.New(errs.Timeout, "resource: timed out waiting for %q", name)
		}
		select {
		case <-ctx.Done():
			return nil, errs.Wrap(errs.Timeout, ctx.Err(), "resource: wait cancelled for %q", name)
		case <-time.After(wait):
		}
	}
}

// tryAcquireOnce performs one lock-held attempt at steps 1-5 of the
// acquire algorithm; held is false (with no error) when the resource is
// at capacity and the caller should back off and retry.
func (c *Coordinator) tryAcquireOnce(ctx context.Context, cfg config.Config, name string, actor event.Actor, opts AcquireOptions) (*snapshot.Resource, bool, error) {
	guard, err := c.locks.Acquire(ctx, lockmgr.ResourcesKey(name), LockTimeout)
	if err != nil {
		return nil, false, err
	}
	defer guard.Close()

	snap, err := c.load(name)
	if err != nil {
		return nil, false, err
	}

	var pending []event.Event
	now := time.Now()

	if snap == nil {
		e, err := autoCreate(cfg, name, actor)
		if err != nil {
			return nil, false, err
		}
		snap, err = materializer.ApplyResource(nil, e)
		if err != nil {
			return nil, false, err
		}
		snap.Name = name
		pending = append(pending, e)
	}

	// Step 2: lazily expire stale holders.
	for _, h := range snap.Holders {
		if h.ExpiresAt.Before(now) {
			e, err := expireEvent(snap.ID, h.Actor)
			if err != nil {
				return nil, false, err
			}
			snap, err = materializer.ApplyResource(snap, e)
			if err != nil {
				return nil, false, err
			}
			pending = append(pending, e)
		}
	}

	// Step 3: already a holder -> heartbeat and succeed.
	for _, h := range snap.Holders {
		if h.Actor.Equal(actor) {
			e, err := heartbeatEvent(snap.ID, actor, snap.TTLSeconds)
			if err != nil {
				return nil, false, err
			}
			snap, err = materializer.ApplyResource(snap, e)
			if err != nil {
				return nil, false, err
			}
			pending = append(pending, e)
			if err := c.appendAndWrite(name, pending, snap); err != nil {
				return nil, false, err
			}
			return snap, true, nil
		}
	}

	// Step 4: force-reclaim any remaining holders.
	if opts.Force {
		for _, h := range snap.Holders {
			e, err := expireEvent(snap.ID, h.Actor)
			if err != nil {
				return nil, false, err
			}
			snap, err = materializer.ApplyResource(snap, e)
			if err != nil {
				return nil, false, err
			}
			pending = append(pending, e)
		}
	}

	// Step 5: capacity available -> acquire.
	if len(snap.Holders) < snap.MaxHolders {
		ttl := snap.TTLSeconds
		e, err := event.NewResourceEvent(ids.New(ids.PrefixEvent), now, event.TypeResourceAcquired, snap.ID, actor, map[string]any{
			"task_id": opts.TaskID, "ttl_seconds": ttl,
		})
		if err != nil {
			return nil, false, errs.Wrap(errs.ValidationError, err, "resource: build resource_acquired event")
		}
		snap, err = materializer.ApplyResource(snap, e)
		if err != nil {
			return nil, false, err
		}
		pending = append(pending, e)
		if err := c.appendAndWrite(name, pending, snap); err != nil {
			return nil, false, err
		}
		return snap, true, nil
	}

	// Step 6, "at capacity" branch: persist any expiry/force-reclaim
	// bookkeeping even though this attempt did not acquire, so repeated
	// polling doesn't re-expire the same holders.
	if len(pending) > 0 {
		if err := c.appendAndWrite(name, pending, snap); err != nil {
			return nil, false, err
		}
	}
	return snap, false, nil
}

func expireEvent(resourceID string, holder event.Actor) (event.Event, error) {
	return event.NewResourceEvent(ids.New(ids.PrefixEvent), time.Now(), event.TypeResourceExpired, resourceID, holder, map[string]any{})
}

func heartbeatEvent(resourceID string, actor event.Actor, ttlSeconds int) (event.Event, error) {
	return event.NewResourceEvent(ids.New(ids.PrefixEvent), time.Now(), event.TypeResourceHeartbeat, resourceID, actor, map[string]any{
		"ttl_seconds": ttlSeconds,
	})
}

// Release removes actor's holder entry; fails with NotHeld if actor
// does not currently hold the resource (spec.md §4.6 "release").
func (c *Coordinator) Release(ctx context.Context, name string, actor event.Actor) (*snapshot.Resource, error) {
	guard, err := c.locks.Acquire(ctx, lockmgr.ResourcesKey(name), LockTimeout)
	if err != nil {
		return nil, err
	}
	defer guard.Close()

	snap, err := c.load(name)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, errs.New(errs.NotFound, "resource %q does not exist", name)
	}
	if !isHolder(snap, actor) {
		return nil, errs.New(errs.NotHeld, "actor %q does not hold resource %q", actor.String(), name)
	}

	e, err := event.NewResourceEvent(ids.New(ids.PrefixEvent), time.Now(), event.TypeResourceReleased, snap.ID, actor, map[string]any{})
	if err != nil {
		return nil, errs.Wrap(errs.ValidationError, err, "resource: build resource_released event")
	}
	snap, err = materializer.ApplyResource(snap, e)
	if err != nil {
		return nil, err
	}
	if err := c.appendAndWrite(name, []event.Event{e}, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Heartbeat extends actor's lease to now + ttl_seconds; fails with
// Expired if the holder is already stale, or NotHeld if actor does not
// hold the resource (spec.md §4.6 "heartbeat").
func (c *Coordinator) Heartbeat(ctx context.Context, name string, actor event.Actor) (*snapshot.Resource, error) {
	guard, err := c.locks.Acquire(ctx, lockmgr.ResourcesKey(name), LockTimeout)
	if err != nil {
		return nil, err
	}
	defer guard.Close()

	snap, err := c.load(name)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, errs.New(errs.NotFound, "resource %q does not exist", name)
	}

	holder, ok := findHolder(snap, actor)
	if !ok {
		return nil, errs.New(errs.NotHeld, "actor %q does not hold resource %q", actor.String(), name)
	}
	if holder.ExpiresAt.Before(time.Now()) {
		return nil, errs.New(errs.Expired, "actor %q's lease on %q has expired", actor.String(), name)
	}

	e, err := heartbeatEvent(snap.ID, actor, snap.TTLSeconds)
	if err != nil {
		return nil, errs.Wrap(errs.ValidationError, err, "resource: build resource_heartbeat event")
	}
	snap, err = materializer.ApplyResource(snap, e)
	if err != nil {
		return nil, err
	}
	if err := c.appendAndWrite(name, []event.Event{e}, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Status reads name's snapshot, with expired holders filtered from the
// view (spec.md §4.6 "status"). No lock is required for reads.
func (c *Coordinator) Status(name string) (*snapshot.Resource, error) {
	snap, err := c.load(name)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, errs.New(errs.NotFound, "resource %q does not exist", name)
	}
	return filterExpired(snap), nil
}

// List reads every resource's snapshot, with expired holders filtered
// from each view (spec.md §6.2 "Resource | ... list").
func (c *Coordinator) List() ([]*snapshot.Resource, error) {
	entries, err := os.ReadDir(c.layout.ResourcesDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.ReadError, err, "resource: list resources dir")
	}

	var out []*snapshot.Resource
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(c.layout.ResourcesDir(), entry.Name(), "resource.json")) // #nosec G304
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, errs.Wrap(errs.ReadError, err, "resource: read %s", entry.Name())
		}
		snap, err := snapshot.ParseResource(data)
		if err != nil {
			return nil, err
		}
		out = append(out, filterExpired(snap))
	}
	return out, nil
}

func filterExpired(snap *snapshot.Resource) *snapshot.Resource {
	now := time.Now()
	view := *snap
	view.Holders = nil
	for _, h := range snap.Holders {
		if h.ExpiresAt.After(now) {
			view.Holders = append(view.Holders, h)
		}
	}
	return &view
}

func isHolder(snap *snapshot.Resource, actor event.Actor) bool {
	_, ok := findHolder(snap, actor)
	return ok
}

func findHolder(snap *snapshot.Resource, actor event.Actor) (snapshot.Holder, bool) {
	for _, h := range snap.Holders {
		if h.Actor.Equal(actor) {
			return h, true
		}
	}
	return snapshot.Holder{}, false
}
