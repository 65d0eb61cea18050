package store

import (
	"context"

	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/event"
	"github.com/lattice-dev/lattice/internal/ids"
	"github.com/lattice-dev/lattice/internal/snapshot"
)

// RecordEvent appends a custom ("x_"-prefixed) event to taskID's log.
// Custom events are structurally no-ops beyond bookkeeping (spec.md §3
// "Custom event types", §9) and are never mirrored to the lifecycle
// log even if their name happens to coincide with a lifecycle type.
func (s *Store) RecordEvent(ctx context.Context, taskID, eventType string, data map[string]any, actor event.Actor) (*snapshot.Task, error) {
	if !event.IsCustom(eventType) {
		return nil, errs.New(errs.ValidationError, "custom event type %q must start with %q", eventType, event.CustomTypePrefix)
	}
	cfg, err := s.LoadConfig()
	if err != nil {
		return nil, err
	}
	if s.taskMissing(taskID) {
		return nil, errs.New(errs.NotFound, "task %q does not exist", taskID)
	}
	e, err := event.New(ids.New(ids.PrefixEvent), now(), eventType, taskID, actor, data)
	if err != nil {
		return nil, errs.Wrap(errs.ValidationError, err, "store: build %s event", eventType)
	}
	return s.writeTask(ctx, cfg, taskID, []event.Event{e})
}
