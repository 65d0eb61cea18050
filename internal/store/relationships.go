package store

import (
	"context"

	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/event"
	"github.com/lattice-dev/lattice/internal/ids"
	"github.com/lattice-dev/lattice/internal/snapshot"
)

// ValidRelationshipTypes are the relationship edges spec.md §4.1
// ("Relationship rules") permits.
var ValidRelationshipTypes = map[string]bool{
	"blocks":       true,
	"depends_on":   true,
	"subtask_of":   true,
	"related_to":   true,
	"spawned_by":   true,
	"duplicate_of": true,
	"supersedes":   true,
}

// AddRelationship records a relationship_added event from taskID to
// targetID. Duplicate (type, target) pairs and self-links are rejected
// here, at the write layer, rather than in the materializer, so replay
// stays a pure deterministic function of the event log (spec.md §4.1,
// invariant I7).
func (s *Store) AddRelationship(ctx context.Context, taskID, relType, targetID, note string, actor event.Actor) (*snapshot.Task, error) {
	if !ValidRelationshipTypes[relType] {
		return nil, errs.New(errs.ValidationError, "relationship type %q is not valid", relType)
	}
	if taskID == targetID {
		return nil, errs.New(errs.ValidationError, "a relationship cannot target its own source task")
	}
	cfg, err := s.LoadConfig()
	if err != nil {
		return nil, err
	}

	cur, err := s.loadTaskSnapshot(taskID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, errs.New(errs.NotFound, "task %q does not exist", taskID)
	}
	for _, r := range cur.RelationshipsOut {
		if r.Type == relType && r.TargetTaskID == targetID {
			return nil, errs.New(errs.Conflict, "relationship %s -> %s (%s) already exists", taskID, targetID, relType)
		}
	}

	e, err := event.New(ids.New(ids.PrefixEvent), now(), event.TypeRelationshipAdded, taskID, actor, map[string]any{
		"type": relType, "target_task_id": targetID, "note": note,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ValidationError, err, "store: build relationship_added event")
	}
	return s.writeTask(ctx, cfg, taskID, []event.Event{e})
}

// RemoveRelationship records a relationship_removed event; the
// materializer drops the first matching (type, target) edge.
func (s *Store) RemoveRelationship(ctx context.Context, taskID, relType, targetID string, actor event.Actor) (*snapshot.Task, error) {
	cfg, err := s.LoadConfig()
	if err != nil {
		return nil, err
	}
	e, err := event.New(ids.New(ids.PrefixEvent), now(), event.TypeRelationshipRemoved, taskID, actor, map[string]any{
		"type": relType, "target_task_id": targetID,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ValidationError, err, "store: build relationship_removed event")
	}
	return s.writeTask(ctx, cfg, taskID, []event.Event{e})
}
