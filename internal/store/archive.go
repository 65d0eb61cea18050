package store

import (
	"context"
	"os"

	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/event"
	"github.com/lattice-dev/lattice/internal/fsops"
	"github.com/lattice-dev/lattice/internal/ids"
	"github.com/lattice-dev/lattice/internal/jsonl"
	"github.com/lattice-dev/lattice/internal/lockmgr"
	"github.com/lattice-dev/lattice/internal/materializer"
	"github.com/lattice-dev/lattice/internal/snapshot"
)

// Archive moves an active task's snapshot, event log, and notes (if
// any) into the archive/ subtree (spec.md §4.4 "Archive move").
func (s *Store) Archive(ctx context.Context, taskID string, actor event.Actor) (*snapshot.Task, error) {
	return s.moveArchiveState(ctx, taskID, actor, event.TypeTaskArchived, true)
}

// Unarchive reverses Archive.
func (s *Store) Unarchive(ctx context.Context, taskID string, actor event.Actor) (*snapshot.Task, error) {
	return s.moveArchiveState(ctx, taskID, actor, event.TypeTaskUnarchived, false)
}

func (s *Store) moveArchiveState(ctx context.Context, taskID string, actor event.Actor, typ string, archiving bool) (*snapshot.Task, error) {
	guard, err := s.Locks.AcquireMany(ctx, []string{
		lockmgr.EventsKey(taskID), lockmgr.TasksKey(taskID), lockmgr.LifecycleKey,
	}, lockmgr.DefaultTimeout)
	if err != nil {
		return nil, err
	}
	defer guard.Close()

	srcSnapshot, srcEvents, srcNotes := s.Layout.TaskSnapshot(taskID), s.Layout.TaskEvents(taskID), s.Layout.Notes(taskID)
	dstSnapshot, dstEvents, dstNotes := s.Layout.ArchiveTaskSnapshot(taskID), s.Layout.ArchiveTaskEvents(taskID), s.Layout.ArchiveNotes(taskID)
	if !archiving {
		srcSnapshot, dstSnapshot = dstSnapshot, srcSnapshot
		srcEvents, dstEvents = dstEvents, srcEvents
		srcNotes, dstNotes = dstNotes, srcNotes
	}

	if !fsops.Exists(srcSnapshot) {
		if archiving {
			return nil, errs.New(errs.NotFound, "task %q is not active", taskID)
		}
		return nil, errs.New(errs.NotFound, "task %q is not archived", taskID)
	}
	data, err := os.ReadFile(srcSnapshot) // #nosec G304
	if err != nil {
		return nil, errs.Wrap(errs.ReadError, err, "store: read snapshot %s", taskID)
	}
	cur, err := snapshot.ParseTask(data)
	if err != nil {
		return nil, err
	}

	e, err := event.New(ids.New(ids.PrefixEvent), now(), typ, taskID, actor, map[string]any{})
	if err != nil {
		return nil, errs.Wrap(errs.ValidationError, err, "store: build %s event", typ)
	}
	next, err := materializer.ApplyTask(cur, e)
	if err != nil {
		return nil, err
	}

	// Event is appended at its current (pre-move) log location, then
	// mirrored to the lifecycle log, before any file is moved.
	line, err := e.Marshal()
	if err != nil {
		return nil, errs.Wrap(errs.WriteError, err, "store: serialize %s event", typ)
	}
	if err := jsonl.AppendLine(srcEvents, line); err != nil {
		return nil, errs.Wrap(errs.WriteError, err, "store: append event log %s", srcEvents)
	}
	if err := jsonl.AppendLine(s.Layout.LifecycleLog(), line); err != nil {
		return nil, errs.Wrap(errs.WriteError, err, "store: append lifecycle log")
	}

	snapData, err := snapshot.SerializeTask(next)
	if err != nil {
		return nil, errs.Wrap(errs.WriteError, err, "store: serialize snapshot %s", taskID)
	}
	if err := fsops.AtomicWrite(dstSnapshot, snapData); err != nil {
		return nil, errs.Wrap(errs.WriteError, err, "store: write snapshot %s", taskID)
	}
	if err := os.Remove(srcSnapshot); err != nil {
		return nil, errs.Wrap(errs.WriteError, err, "store: remove old snapshot %s", taskID)
	}
	if err := os.Rename(srcEvents, dstEvents); err != nil {
		return nil, errs.Wrap(errs.WriteError, err, "store: move event log %s", taskID)
	}
	if fsops.Exists(srcNotes) {
		if err := os.Rename(srcNotes, dstNotes); err != nil {
			return nil, errs.Wrap(errs.WriteError, err, "store: move notes %s", taskID)
		}
	}

	return next, nil
}
