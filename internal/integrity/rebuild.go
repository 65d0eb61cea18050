package integrity

import (
	"context"
	"os"
	"sort"
	"strings"

	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/event"
	"github.com/lattice-dev/lattice/internal/fsops"
	"github.com/lattice-dev/lattice/internal/jsonl"
	"github.com/lattice-dev/lattice/internal/lockmgr"
	"github.com/lattice-dev/lattice/internal/materializer"
	"github.com/lattice-dev/lattice/internal/shortid"
	"github.com/lattice-dev/lattice/internal/snapshot"
	"github.com/lattice-dev/lattice/internal/store"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentRebuilds bounds RebuildAll's fan-out (spec.md §4.9
// "bounded fan-out", grounded on the teacher's golang.org/x/sync use).
const maxConcurrentRebuilds = 8

// RebuildTask replays taskID's event log from scratch through
// materializer.ApplyTask and atomically rewrites its snapshot under
// lock (spec.md §4.9 "rebuild_task"). archived selects which subtree
// to read and write.
func RebuildTask(ctx context.Context, s *store.Store, taskID string, archived bool) (*snapshot.Task, error) {
	eventsPath, snapshotPath := s.Layout.TaskEvents(taskID), s.Layout.TaskSnapshot(taskID)
	if archived {
		eventsPath, snapshotPath = s.Layout.ArchiveTaskEvents(taskID), s.Layout.ArchiveTaskSnapshot(taskID)
	}

	guard, err := s.Locks.AcquireMany(ctx, []string{lockmgr.EventsKey(taskID), lockmgr.TasksKey(taskID)}, lockmgr.DefaultTimeout)
	if err != nil {
		return nil, err
	}
	defer guard.Close()

	lines, _, err := jsonl.ReadLines(eventsPath)
	if os.IsNotExist(err) {
		return nil, errs.New(errs.NotFound, "task %q has no event log", taskID)
	}
	if err != nil {
		return nil, errs.Wrap(errs.ReadError, err, "integrity: read event log %s", taskID)
	}

	var snap *snapshot.Task
	for i, line := range lines {
		e, err := event.Parse(line)
		if err != nil {
			return nil, errs.Wrap(errs.ReadError, err, "integrity: parse event %d in %s", i, taskID)
		}
		snap, err = materializer.ApplyTask(snap, e)
		if err != nil {
			return nil, err
		}
	}
	if snap == nil {
		return nil, errs.New(errs.NoInitialSnapshot, "task %q's event log has no task_created event", taskID)
	}

	data, err := snapshot.SerializeTask(snap)
	if err != nil {
		return nil, errs.Wrap(errs.WriteError, err, "integrity: serialize snapshot %s", taskID)
	}
	if err := fsops.AtomicWrite(snapshotPath, data); err != nil {
		return nil, errs.Wrap(errs.WriteError, err, "integrity: write snapshot %s", taskID)
	}
	return snap, nil
}

// taskLogEntry pairs a task ID with whether its log lives in the
// archive subtree, for RebuildAll's directory scan.
type taskLogEntry struct {
	id       string
	archived bool
}

func listTaskLogs(layout fsops.Layout) ([]taskLogEntry, error) {
	var out []taskLogEntry
	scan := func(dir string, archived bool) error {
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return err
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasSuffix(name, ".jsonl") || strings.HasPrefix(name, "_") {
				continue
			}
			id := strings.TrimSuffix(name, ".jsonl")
			if !strings.HasPrefix(id, "task_") {
				continue // resource event logs live in the same directory
			}
			out = append(out, taskLogEntry{id: id, archived: archived})
		}
		return nil
	}
	if err := scan(layout.EventsDir(), false); err != nil {
		return nil, err
	}
	if err := scan(layout.ArchiveEventsDir(), true); err != nil {
		return nil, err
	}
	return out, nil
}

// RebuildAll rebuilds every task's snapshot (active and archived),
// regenerates _lifecycle.jsonl from the per-task logs, and rebuilds
// ids.json from the resulting snapshots (spec.md §4.9 "rebuild_all").
// Per-task rebuilds fan out with bounded concurrency.
func RebuildAll(ctx context.Context, s *store.Store) error {
	entries, err := listTaskLogs(s.Layout)
	if err != nil {
		return errs.Wrap(errs.ReadError, err, "integrity: scan event logs")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentRebuilds)
	for _, entry := range entries {
		entry := entry
		g.Go(func() error {
			_, err := RebuildTask(gctx, s, entry.id, entry.archived)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := RebuildLifecycleLog(ctx, s); err != nil {
		return err
	}
	return RebuildIDs(ctx, s)
}

// RebuildLifecycleLog regenerates _lifecycle.jsonl by scanning every
// per-task log for lifecycle-class events, sorted by (ts, id), and
// writing the result atomically under the lifecycle lock (spec.md
// §4.9 "regenerate _lifecycle.jsonl").
func RebuildLifecycleLog(ctx context.Context, s *store.Store) error {
	entries, err := listTaskLogs(s.Layout)
	if err != nil {
		return errs.Wrap(errs.ReadError, err, "integrity: scan event logs")
	}

	var events []event.Event
	for _, entry := range entries {
		path := s.Layout.TaskEvents(entry.id)
		if entry.archived {
			path = s.Layout.ArchiveTaskEvents(entry.id)
		}
		lines, _, err := jsonl.ReadLines(path)
		if err != nil {
			continue
		}
		for _, line := range lines {
			e, err := event.Parse(line)
			if err != nil {
				continue
			}
			if event.IsLifecycle(e.Type) {
				events = append(events, e)
			}
		}
	}

	sort.Slice(events, func(i, j int) bool {
		if !events[i].TS.Equal(events[j].TS) {
			return events[i].TS.Before(events[j].TS)
		}
		return events[i].ID < events[j].ID
	})

	guard, err := s.Locks.Acquire(ctx, lockmgr.LifecycleKey, lockmgr.DefaultTimeout)
	if err != nil {
		return err
	}
	defer guard.Close()

	var b strings.Builder
	for _, e := range events {
		line, err := e.Marshal()
		if err != nil {
			return errs.Wrap(errs.WriteError, err, "integrity: serialize lifecycle event")
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	return fsops.AtomicWrite(s.Layout.LifecycleLog(), []byte(b.String()))
}

// RebuildIDs recomputes ids.json from every known snapshot's
// (short_id, id) pair (spec.md §4.9 "Rebuild ids.json from scanned
// snapshots").
func RebuildIDs(ctx context.Context, s *store.Store) error {
	active, err := readAllSnapshots(s.Layout.TasksDir())
	if err != nil {
		return err
	}
	archivedTasks, err := readAllSnapshots(s.Layout.ArchiveTasksDir())
	if err != nil {
		return err
	}

	lookups := make([]shortid.TaskLookup, 0, len(active)+len(archivedTasks))
	for _, t := range append(active, archivedTasks...) {
		lookups = append(lookups, shortid.TaskLookup{ID: t.ID, ShortID: t.ShortID})
	}
	idx := shortid.Rebuild(lookups)

	guard, err := s.Locks.Acquire(ctx, lockmgr.IDsKey, lockmgr.DefaultTimeout)
	if err != nil {
		return err
	}
	defer guard.Close()
	return shortid.Save(s.Layout.IDs(), idx)
}

// RebuildResource replays a resource's event log from scratch and
// rewrites its snapshot under lock, mirroring RebuildTask (spec.md
// §4.9 "Rebuild resource snapshots analogously").
func RebuildResource(ctx context.Context, s *store.Store, name string) (*snapshot.Resource, error) {
	guard, err := s.Locks.Acquire(ctx, lockmgr.ResourcesKey(name), lockmgr.DefaultTimeout)
	if err != nil {
		return nil, err
	}
	defer guard.Close()

	existing, err := readResourceSnapshot(s, name)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, errs.New(errs.NotFound, "resource %q does not exist", name)
	}

	lines, _, err := jsonl.ReadLines(s.Layout.ResourceEvents(existing.ID))
	if err != nil {
		return nil, errs.Wrap(errs.ReadError, err, "integrity: read resource event log %s", name)
	}

	var snap *snapshot.Resource
	for i, line := range lines {
		e, err := event.Parse(line)
		if err != nil {
			return nil, errs.Wrap(errs.ReadError, err, "integrity: parse resource event %d in %s", i, name)
		}
		snap, err = materializer.ApplyResource(snap, e)
		if err != nil {
			return nil, err
		}
	}
	if snap == nil {
		return nil, errs.New(errs.NoInitialSnapshot, "resource %q's event log has no resource_created event", name)
	}
	snap.Name = name

	data, err := snapshot.SerializeResource(snap)
	if err != nil {
		return nil, errs.Wrap(errs.WriteError, err, "integrity: serialize resource snapshot %s", name)
	}
	if err := fsops.AtomicWrite(s.Layout.ResourceSnapshot(name), data); err != nil {
		return nil, errs.Wrap(errs.WriteError, err, "integrity: write resource snapshot %s", name)
	}
	return snap, nil
}

func readResourceSnapshot(s *store.Store, name string) (*snapshot.Resource, error) {
	data, err := os.ReadFile(s.Layout.ResourceSnapshot(name)) // #nosec G304
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.ReadError, err, "integrity: read resource snapshot %s", name)
	}
	return snapshot.ParseResource(data)
}
