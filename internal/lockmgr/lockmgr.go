// Package lockmgr implements Lattice's multi-key advisory lock manager
// (spec.md §4.3). It is single-host and cooperative: every writer in
// every process on the machine must go through Acquire/AcquireMany for
// the keys it touches, sorted, for the no-deadlock guarantee to hold.
package lockmgr

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/flock"
)

// DefaultTimeout is the write pipeline's default lock-acquire budget
// (spec.md §4.4 "Acquire the multi-lock with configured timeout
// (default 10s)").
const DefaultTimeout = 10 * time.Second

// Manager acquires advisory locks on files under locksDir.
type Manager struct {
	locksDir string
}

// New constructs a Manager rooted at locksDir (typically
// .lattice/locks).
func New(locksDir string) *Manager {
	return &Manager{locksDir: locksDir}
}

// Guard releases every lock it holds when Close is called. Acquire
// order is irrelevant to release; Close unlocks in reverse acquisition
// order.
type Guard struct {
	files []*os.File
}

// Close releases all locks held by the guard. Safe to call once; a
// second call is a no-op.
func (g *Guard) Close() error {
	var firstErr error
	for i := len(g.files) - 1; i >= 0; i-- {
		f := g.files[i]
		if err := flock.Unlock(f); err != nil && firstErr == nil {
			firstErr = err
		}
		f.Close()
	}
	g.files = nil
	return firstErr
}

// Canonical lock key builders (spec.md §4.3).
func EventsKey(taskID string) string      { return "events_" + taskID }
func TasksKey(taskID string) string       { return "tasks_" + taskID }
func ResourcesKey(name string) string     { return "resources_" + name }

const (
	LifecycleKey = "events__lifecycle"
	ConfigKey    = "config"
	IDsKey       = "ids"
)

// Acquire takes the single named lock, retrying with bounded backoff
// until timeout elapses.
func (m *Manager) Acquire(ctx context.Context, key string, timeout time.Duration) (*Guard, error) {
	return m.AcquireMany(ctx, []string{key}, timeout)
}

// AcquireMany sorts keys lexicographically and acquires each in turn —
// the sole deadlock-prevention mechanism (spec.md §4.3). If any key
// cannot be acquired before timeout, every lock already taken in this
// call is released and LockTimeout (errs.Timeout) is returned.
func (m *Manager) AcquireMany(ctx context.Context, keys []string, timeout time.Duration) (*Guard, error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	if err := os.MkdirAll(m.locksDir, 0o755); err != nil {
		return nil, errs.Wrap(errs.WriteError, err, "lockmgr: create locks dir")
	}

	g := &Guard{}
	deadline := time.Now().Add(timeout)

	for _, key := range sorted {
		f, err := m.acquireOne(ctx, key, time.Until(deadline))
		if err != nil {
			g.Close()
			return nil, err
		}
		g.files = append(g.files, f)
	}
	return g, nil
}

func (m *Manager) acquireOne(ctx context.Context, key string, remaining time.Duration) (*os.File, error) {
	path := filepath.Join(m.locksDir, key+".lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644) // #nosec G304
	if err != nil {
		return nil, errs.Wrap(errs.WriteError, err, "lockmgr: open lock file %s", key)
	}

	if remaining <= 0 {
		remaining = time.Millisecond
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond
	b.MaxElapsedTime = remaining

	bctx := backoff.WithContext(b, ctx)

	op := func() error {
		err := flock.TryLock(f)
		if err == flock.ErrBusy {
			return err // retryable
		}
		return backoff.Permanent(err)
	}

	if err := backoff.Retry(op, bctx); err != nil {
		f.Close()
		if err == flock.ErrBusy || err == context.DeadlineExceeded {
			return nil, errs.New(errs.Timeout, "lockmgr: timed out acquiring lock %q", key)
		}
		return nil, errs.Wrap(errs.WriteError, err, "lockmgr: acquire lock %q", key)
	}
	return f, nil
}
