package store

import (
	"context"

	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/event"
	"github.com/lattice-dev/lattice/internal/ids"
	"github.com/lattice-dev/lattice/internal/snapshot"
)

// StatusInput configures SetStatus (spec.md §4.1 "Status transition
// rules", §4.7 "Force override").
type StatusInput struct {
	TaskID string
	To     string
	Actor  event.Actor
	Force  bool
	Reason string
}

// SetStatus transitions a task to a new status, gated by workflow
// transition rules and completion policy unless Force is set with a
// non-empty Reason (spec.md §4.7). Force and reason are recorded both
// in the event's data and in its provenance.
func (s *Store) SetStatus(ctx context.Context, in StatusInput) (*snapshot.Task, error) {
	if in.Force && in.Reason == "" {
		return nil, errs.New(errs.ValidationError, "force transition requires a non-empty reason")
	}
	cfg, err := s.LoadConfig()
	if err != nil {
		return nil, err
	}

	cur, err := s.loadTaskSnapshot(in.TaskID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, errs.New(errs.NotFound, "task %q does not exist", in.TaskID)
	}

	e, err := buildStatusChangedEvent(cur.Status, in)
	if err != nil {
		return nil, err
	}
	return s.writeTask(ctx, cfg, in.TaskID, []event.Event{e})
}

func buildStatusChangedEvent(from string, in StatusInput) (event.Event, error) {
	data := map[string]any{"from": from, "to": in.To}
	if in.Force {
		data["force"] = true
		data["reason"] = in.Reason
	}
	e, err := event.New(ids.New(ids.PrefixEvent), now(), event.TypeStatusChanged, in.TaskID, in.Actor, data)
	if err != nil {
		return event.Event{}, errs.Wrap(errs.ValidationError, err, "store: build status_changed event")
	}
	if in.Force {
		e.Provenance = &event.Provenance{Reason: in.Reason}
	}
	return e, nil
}
