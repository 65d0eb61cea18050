package store

import (
	"context"

	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/event"
	"github.com/lattice-dev/lattice/internal/ids"
	"github.com/lattice-dev/lattice/internal/materializer"
	"github.com/lattice-dev/lattice/internal/snapshot"
)

// UpdateField records a field_updated event (spec.md §4.1 "Field
// update rules"). Protected fields (invariant I3) are rejected before
// any write is attempted, surfacing PROTECTED_FIELD the same way the
// materializer would on replay.
func (s *Store) UpdateField(ctx context.Context, taskID, field string, value any, actor event.Actor) (*snapshot.Task, error) {
	cfg, err := s.LoadConfig()
	if err != nil {
		return nil, err
	}
	if materializer.ProtectedFields[field] {
		return nil, errs.New(errs.ProtectedField, "field %q is protected and cannot be updated via field_updated", field)
	}

	cur, err := s.loadTaskSnapshot(taskID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, errs.New(errs.NotFound, "task %q does not exist", taskID)
	}

	from := currentFieldValue(cur, field)
	e, err := event.New(ids.New(ids.PrefixEvent), now(), event.TypeFieldUpdated, taskID, actor, map[string]any{
		"field": field, "from": from, "to": value,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ValidationError, err, "store: build field_updated event")
	}
	return s.writeTask(ctx, cfg, taskID, []event.Event{e})
}

func currentFieldValue(t *snapshot.Task, field string) any {
	if cf, ok := cutCustomFieldKey(field); ok {
		return t.CustomFields[cf]
	}
	switch field {
	case "title":
		return t.Title
	case "description":
		return t.Description
	case "priority":
		return t.Priority
	case "urgency":
		return t.Urgency
	case "complexity":
		return t.Complexity
	case "type":
		return t.Type
	case "tags":
		return t.Tags
	default:
		return nil
	}
}

func cutCustomFieldKey(field string) (string, bool) {
	const prefix = "custom_fields."
	if len(field) > len(prefix) && field[:len(prefix)] == prefix {
		return field[len(prefix):], true
	}
	return "", false
}
