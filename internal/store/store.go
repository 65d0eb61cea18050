// Package store implements Lattice's write orchestration (spec.md
// §4.4): the single path every task mutation goes through, gating
// status transitions on workflow/completion policy, appending events
// before snapshots, and running post-write hooks best-effort.
package store

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/lattice-dev/lattice/internal/config"
	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/event"
	"github.com/lattice-dev/lattice/internal/fsops"
	"github.com/lattice-dev/lattice/internal/hooks"
	"github.com/lattice-dev/lattice/internal/jsonl"
	"github.com/lattice-dev/lattice/internal/lockmgr"
	"github.com/lattice-dev/lattice/internal/materializer"
	"github.com/lattice-dev/lattice/internal/resource"
	"github.com/lattice-dev/lattice/internal/snapshot"
	"github.com/lattice-dev/lattice/internal/workflow"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/lattice-dev/lattice/internal/store")

// Store is Lattice's task store, rooted at a project directory
// (the parent of .lattice/).
type Store struct {
	Root      string
	Layout    fsops.Layout
	Locks     *lockmgr.Manager
	Hooks     *hooks.Runner
	Resources *resource.Coordinator
}

// New constructs a Store rooted at root. Callers should call
// EnsureDirs once per project before using it (init does this).
func New(root string) *Store {
	layout := fsops.NewLayout(root)
	locks := lockmgr.New(layout.LocksDir())
	return &Store{
		Root:      root,
		Layout:    layout,
		Locks:     locks,
		Hooks:     hooks.NewRunner(filepath.Join(layout.Root, fsops.DirName, "hooks")),
		Resources: resource.New(layout, locks),
	}
}

// LoadConfig reads config.json, falling back to config.Default() when
// the project has none yet.
func (s *Store) LoadConfig() (config.Config, error) {
	if !fsops.Exists(s.Layout.Config()) {
		return config.Default(), nil
	}
	cfg, err := config.Load(s.Layout.Config())
	if err != nil {
		return config.Config{}, errs.Wrap(errs.ReadError, err, "store: load config")
	}
	return cfg, nil
}

// SaveConfig writes cfg under the config lock.
func (s *Store) SaveConfig(ctx context.Context, cfg config.Config) error {
	guard, err := s.Locks.Acquire(ctx, lockmgr.ConfigKey, lockmgr.DefaultTimeout)
	if err != nil {
		return err
	}
	defer guard.Close()
	if err := config.Save(s.Layout.Config(), cfg); err != nil {
		return errs.Wrap(errs.WriteError, err, "store: save config")
	}
	return nil
}

// loadTaskSnapshot reads a task's active snapshot, nil if it has none
// yet (not yet created, or archived).
func (s *Store) loadTaskSnapshot(taskID string) (*snapshot.Task, error) {
	data, err := os.ReadFile(s.Layout.TaskSnapshot(taskID)) // #nosec G304
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.ReadError, err, "store: read snapshot %s", taskID)
	}
	return snapshot.ParseTask(data)
}

// LoadTask resolves a task by ID (active or archived), returning
// errs.NotFound if neither exists. No lock: reads never take one
// (spec.md §4.3 "Reads never acquire locks").
func (s *Store) LoadTask(taskID string) (*snapshot.Task, error) {
	snap, err := s.loadTaskSnapshot(taskID)
	if err != nil {
		return nil, err
	}
	if snap != nil {
		return snap, nil
	}
	data, err := os.ReadFile(s.Layout.ArchiveTaskSnapshot(taskID)) // #nosec G304
	if os.IsNotExist(err) {
		return nil, errs.New(errs.NotFound, "task %q does not exist", taskID)
	}
	if err != nil {
		return nil, errs.Wrap(errs.ReadError, err, "store: read archived snapshot %s", taskID)
	}
	return snapshot.ParseTask(data)
}

func lockKeysForTask(taskID string, events []event.Event) []string {
	keys := []string{lockmgr.EventsKey(taskID), lockmgr.TasksKey(taskID)}
	for _, e := range events {
		if event.IsLifecycle(e.Type) {
			keys = append(keys, lockmgr.LifecycleKey)
			break
		}
	}
	return keys
}

// writeTask is the central orchestration of spec.md §4.4: acquire the
// sorted multi-lock, gate status_changed events against policy
// (bypassed by force+reason), append every event (mirroring lifecycle
// events to the global log), atomically write the resulting snapshot,
// release, then run hooks best-effort. Callers may read the snapshot
// before the lock to build event data (e.g. "from" fields); the
// authoritative snapshot used for gating and replay is re-read under
// lock.
func (s *Store) writeTask(ctx context.Context, cfg config.Config, taskID string, events []event.Event) (*snapshot.Task, error) {
	return s.writeTaskGuarded(ctx, cfg, taskID, events, nil)
}

// writeTaskGuarded is writeTask plus an optional check run against the
// freshly re-read, under-lock snapshot before any event is applied —
// the hook the claim operation uses for its "concurrent claim guard"
// (spec.md §4.8), evaluated on the authoritative state rather than the
// caller's pre-lock read.
func (s *Store) writeTaskGuarded(ctx context.Context, cfg config.Config, taskID string, events []event.Event, guard func(*snapshot.Task) error) (*snapshot.Task, error) {
	ctx, span := tracer.Start(ctx, "store.write_task", trace.WithAttributes(
		attribute.String("task.id", taskID),
		attribute.Int("event.count", len(events)),
	))
	defer span.End()

	lockGuard, err := s.Locks.AcquireMany(ctx, lockKeysForTask(taskID, events), lockmgr.DefaultTimeout)
	if err != nil {
		return nil, err
	}
	released := false
	release := func() {
		if !released {
			lockGuard.Close()
			released = true
		}
	}
	defer release()

	cur, err := s.loadTaskSnapshot(taskID)
	if err != nil {
		return nil, err
	}
	if guard != nil {
		if err := guard(cur); err != nil {
			return nil, err
		}
	}

	running := cur
	for _, e := range events {
		if e.Type == event.TypeStatusChanged {
			var data struct {
				To     string `json:"to"`
				Force  bool   `json:"force"`
				Reason string `json:"reason"`
			}
			if err := e.UnmarshalData(&data); err != nil {
				return nil, errs.Wrap(errs.ValidationError, err, "status_changed: invalid data")
			}
			if running == nil {
				return nil, errs.New(errs.NoInitialSnapshot, "task %q has no snapshot yet", taskID)
			}
			if !(data.Force && data.Reason != "") {
				if !workflow.ValidateTransition(cfg, running.Status, data.To) {
					return nil, errs.New(errs.InvalidTransition, "cannot transition %q -> %q", running.Status, data.To)
				}
				if ok, failures := workflow.Validate(cfg, running, data.To); !ok {
					return nil, errs.New(errs.CompletionBlocked, "completion policy for %q blocked: %s", data.To, joinFailures(failures))
				}
			}
		}
		next, err := materializer.ApplyTask(running, e)
		if err != nil {
			return nil, err
		}
		running = next
	}

	if err := s.appendTaskEvents(taskID, events); err != nil {
		return nil, err
	}
	if err := s.writeTaskSnapshot(taskID, running); err != nil {
		return nil, err
	}

	release()
	s.runHooks(ctx, cfg, events, running)
	return running, nil
}

func (s *Store) appendTaskEvents(taskID string, events []event.Event) error {
	path := s.Layout.TaskEvents(taskID)
	for _, e := range events {
		line, err := e.Marshal()
		if err != nil {
			return errs.Wrap(errs.WriteError, err, "store: serialize event")
		}
		if err := jsonl.AppendLine(path, line); err != nil {
			return errs.Wrap(errs.WriteError, err, "store: append event log %s", path)
		}
		if event.IsLifecycle(e.Type) {
			if err := jsonl.AppendLine(s.Layout.LifecycleLog(), line); err != nil {
				return errs.Wrap(errs.WriteError, err, "store: append lifecycle log")
			}
		}
	}
	return nil
}

func (s *Store) writeTaskSnapshot(taskID string, snap *snapshot.Task) error {
	data, err := snapshot.SerializeTask(snap)
	if err != nil {
		return errs.Wrap(errs.WriteError, err, "store: serialize snapshot %s", taskID)
	}
	return fsops.AtomicWrite(s.Layout.TaskSnapshot(taskID), data)
}

func (s *Store) runHooks(ctx context.Context, cfg config.Config, events []event.Event, snap *snapshot.Task) {
	if len(cfg.Hooks) == 0 {
		return
	}
	for _, e := range events {
		s.Hooks.Run(ctx, cfg.Hooks, hooks.Payload{
			EventType: e.Type,
			TaskID:    e.TaskID,
			EventID:   e.ID,
			Snapshot:  snap,
		})
	}
}

func joinFailures(failures []string) string {
	out := ""
	for i, f := range failures {
		if i > 0 {
			out += "; "
		}
		out += f
	}
	return out
}

// now is the single wall-clock read point for newly constructed
// events; store operations are the authoritative origin of event.ts
// (materializer and rebuild never read the wall clock, per I2).
func now() time.Time { return time.Now() }
