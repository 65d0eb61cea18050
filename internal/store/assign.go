package store

import (
	"context"

	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/event"
	"github.com/lattice-dev/lattice/internal/ids"
	"github.com/lattice-dev/lattice/internal/snapshot"
)

// AssignTask sets or clears (to.IsZero()) a task's assignee (spec.md
// §3 "assigned_to", §9 "Protected fields ... updates route through
// dedicated event types (status, assign, ...)").
func (s *Store) AssignTask(ctx context.Context, taskID string, to event.Actor, actor event.Actor) (*snapshot.Task, error) {
	cfg, err := s.LoadConfig()
	if err != nil {
		return nil, err
	}
	if s.taskMissing(taskID) {
		return nil, errs.New(errs.NotFound, "task %q does not exist", taskID)
	}

	var data struct {
		To *event.Actor `json:"to"`
	}
	if !to.IsZero() {
		data.To = &to
	}
	e, err := event.New(ids.New(ids.PrefixEvent), now(), event.TypeAssignmentChanged, taskID, actor, data)
	if err != nil {
		return nil, errs.Wrap(errs.ValidationError, err, "store: build assignment_changed event")
	}
	return s.writeTask(ctx, cfg, taskID, []event.Event{e})
}

func (s *Store) taskMissing(taskID string) bool {
	snap, err := s.loadTaskSnapshot(taskID)
	return err == nil && snap == nil
}
