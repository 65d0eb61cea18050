package store

import (
	"context"
	"os"
	"sort"
	"strings"

	"github.com/lattice-dev/lattice/internal/config"
	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/event"
	"github.com/lattice-dev/lattice/internal/ids"
	"github.com/lattice-dev/lattice/internal/jsonl"
	"github.com/lattice-dev/lattice/internal/selection"
	"github.com/lattice-dev/lattice/internal/snapshot"
)

// ListFilter narrows ListTasks (spec.md §6.2 "list (filters: status,
// assigned, tag, type, priority)"). A zero-value field means
// "unfiltered".
type ListFilter struct {
	Status     string
	Assigned   event.Actor
	Tag        string
	Type       string
	Priority   string
	IncludeAll bool // also scan archive/tasks/
}

// ListTasks reads every active task snapshot and returns the ones
// matching filter, sorted by ID (reads never take a lock, spec.md §4.3).
func (s *Store) ListTasks(filter ListFilter) ([]*snapshot.Task, error) {
	tasks, err := s.readSnapshotDir(s.Layout.TasksDir())
	if err != nil {
		return nil, err
	}
	if filter.IncludeAll {
		archived, err := s.readSnapshotDir(s.Layout.ArchiveTasksDir())
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, archived...)
	}

	out := tasks[:0]
	for _, t := range tasks {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if !filter.Assigned.IsZero() {
			if t.AssignedTo == nil || !t.AssignedTo.Equal(filter.Assigned) {
				continue
			}
		}
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		if filter.Priority != "" && t.Priority != filter.Priority {
			continue
		}
		if filter.Tag != "" && !containsString(t.Tags, filter.Tag) {
			continue
		}
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// readSnapshotDir parses every *.json file directly under dir as a
// task snapshot, skipping unparsable entries rather than failing the
// whole listing (a single corrupt snapshot shouldn't block `list`;
// `integrity audit` is the tool that flags it).
func (s *Store) readSnapshotDir(dir string) ([]*snapshot.Task, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.ReadError, err, "store: list %s", dir)
	}
	var out []*snapshot.Task
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(dir + "/" + entry.Name()) // #nosec G304
		if err != nil {
			continue
		}
		t, err := snapshot.ParseTask(data)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// Show is an alias for LoadTask (spec.md §6.2 "show").
func (s *Store) Show(taskID string) (*snapshot.Task, error) {
	return s.LoadTask(taskID)
}

// Events returns a task's raw event log, oldest first (spec.md §6.2
// "events").
func (s *Store) Events(taskID string) ([]event.Event, error) {
	path := s.Layout.TaskEvents(taskID)
	if !fileExists(path) {
		path = s.Layout.ArchiveTaskEvents(taskID)
	}
	lines, _, err := jsonl.ReadLines(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.ReadError, err, "store: read event log %s", taskID)
	}
	out := make([]event.Event, 0, len(lines))
	for _, line := range lines {
		e, err := event.Parse(line)
		if err != nil {
			return nil, errs.Wrap(errs.ReadError, err, "store: parse event in %s", taskID)
		}
		out = append(out, e)
	}
	return out, nil
}

// Next implements spec.md §4.8/§6.2's "next (with optional claim)": it
// selects the highest-priority ready task (resume-first for actor),
// and, when claim is true, atomically assigns and transitions it to
// in_progress via the shortest claim path. Returns nil, nil when no
// task qualifies.
func (s *Store) Next(ctx context.Context, actor event.Actor, claim bool, readyStatuses []string) (*snapshot.Task, error) {
	cfg, err := s.LoadConfig()
	if err != nil {
		return nil, err
	}
	active, err := s.readSnapshotDir(s.Layout.TasksDir())
	if err != nil {
		return nil, err
	}
	candidate := selection.SelectNext(active, actor, readyStatuses)
	if candidate == nil {
		return nil, nil
	}
	if !claim {
		return candidate, nil
	}
	return s.claimTask(ctx, cfg, candidate.ID, actor)
}

// claimTask performs the claim operation's transactional write (spec.md
// §4.8 "Claim"): concurrent-claim guard under lock, PLAN_REQUIRED gate,
// one assignment_changed event plus the ordered status_changed hops
// ClaimPath computes, all in a single writeTask batch.
func (s *Store) claimTask(ctx context.Context, cfg config.Config, taskID string, actor event.Actor) (*snapshot.Task, error) {
	if _, err := s.requirePlan(taskID); err != nil {
		return nil, err
	}

	guard := func(cur *snapshot.Task) error {
		if cur == nil {
			return errs.New(errs.NotFound, "task %q does not exist", taskID)
		}
		ready := selection.DefaultReadyStatuses
		isReady := false
		for _, st := range ready {
			if cur.Status == st {
				isReady = true
				break
			}
		}
		if cur.AssignedTo != nil && !cur.AssignedTo.Equal(actor) && !isReady {
			return errs.New(errs.AlreadyClaimed, "task %q is already claimed by %s", taskID, cur.AssignedTo.String())
		}
		return nil
	}

	cur, err := s.loadTaskSnapshot(taskID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, errs.New(errs.NotFound, "task %q does not exist", taskID)
	}

	hops := selection.ClaimPath(cfg, cur.Status)
	if hops == nil {
		return nil, errs.New(errs.InvalidTransition, "no path from %q to in_progress", cur.Status)
	}

	events := make([]event.Event, 0, len(hops)+1)
	assignData := struct {
		To *event.Actor `json:"to"`
	}{To: &actor}
	assignEvt, err := event.New(ids.New(ids.PrefixEvent), now(), event.TypeAssignmentChanged, taskID, actor, assignData)
	if err != nil {
		return nil, errs.Wrap(errs.ValidationError, err, "store: build assignment_changed event")
	}
	events = append(events, assignEvt)

	for _, to := range hops {
		e, err := event.New(ids.New(ids.PrefixEvent), now(), event.TypeStatusChanged, taskID, actor, map[string]any{"to": to})
		if err != nil {
			return nil, errs.Wrap(errs.ValidationError, err, "store: build status_changed event")
		}
		events = append(events, e)
	}

	return s.writeTaskGuarded(ctx, cfg, taskID, events, guard)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
