package store

import (
	"context"

	"github.com/lattice-dev/lattice/internal/config"
	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/event"
	"github.com/lattice-dev/lattice/internal/ids"
	"github.com/lattice-dev/lattice/internal/lockmgr"
	"github.com/lattice-dev/lattice/internal/materializer"
	"github.com/lattice-dev/lattice/internal/shortid"
	"github.com/lattice-dev/lattice/internal/snapshot"
)

// CreateInput is the payload for CreateTask (spec.md §4.1 "task_created").
type CreateInput struct {
	ID          string
	Title       string
	Status      string
	Priority    string
	Urgency     string
	Complexity  string
	Type        string
	Description string
	Tags        []string
	Actor       event.Actor
}

// CreateTask creates a task, auto-assigning a short ID when the project
// has a project_code configured (spec.md §8 scenario 1 "Create +
// idempotent retry"). A repeat call with the same ID and an identical
// payload returns the existing snapshot unchanged; a repeat with a
// different payload is a CONFLICT.
func (s *Store) CreateTask(ctx context.Context, in CreateInput) (*snapshot.Task, error) {
	cfg, err := s.LoadConfig()
	if err != nil {
		return nil, err
	}

	taskID := in.ID
	if taskID == "" {
		taskID = ids.New(ids.PrefixTask)
	}
	status := in.Status
	if status == "" {
		status = cfg.DefaultStatus
	}
	priority := in.Priority
	if priority == "" {
		priority = cfg.DefaultPriority
	}
	taskType := in.Type
	if taskType == "" {
		taskType = "task"
	}

	keys := []string{lockmgr.EventsKey(taskID), lockmgr.TasksKey(taskID), lockmgr.LifecycleKey}
	if shortIDPrefix(cfg) != "" {
		keys = append(keys, lockmgr.IDsKey)
	}
	guard, err := s.Locks.AcquireMany(ctx, keys, lockmgr.DefaultTimeout)
	if err != nil {
		return nil, err
	}
	defer guard.Close()

	existing, err := s.loadTaskSnapshot(taskID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if createMatchesExisting(existing, in, status, priority, taskType) {
			return existing, nil
		}
		return nil, errs.New(errs.Conflict, "task %q already exists with a different payload", taskID)
	}

	ts := now()
	data := map[string]any{
		"title":       in.Title,
		"status":      status,
		"priority":    priority,
		"urgency":     in.Urgency,
		"complexity":  in.Complexity,
		"type":        taskType,
		"description": in.Description,
		"tags":        in.Tags,
	}
	e, err := event.New(ids.New(ids.PrefixEvent), ts, event.TypeTaskCreated, taskID, in.Actor, data)
	if err != nil {
		return nil, errs.Wrap(errs.ValidationError, err, "store: build task_created event")
	}
	snap, err := materializer.ApplyTask(nil, e)
	if err != nil {
		return nil, err
	}
	events := []event.Event{e}

	var shortID string
	if prefix := shortIDPrefix(cfg); prefix != "" {
		idx, err := shortid.Load(s.Layout.IDs())
		if err != nil {
			return nil, err
		}
		shortID, _ = shortid.Allocate(&idx, prefix, taskID)
		if err := shortid.Save(s.Layout.IDs(), idx); err != nil {
			return nil, errs.Wrap(errs.WriteError, err, "store: save ids.json")
		}
		sidEvent, err := event.New(ids.New(ids.PrefixEvent), ts, event.TypeTaskShortIDAssigned, taskID, in.Actor, map[string]any{
			"short_id": shortID,
		})
		if err != nil {
			return nil, errs.Wrap(errs.ValidationError, err, "store: build task_short_id_assigned event")
		}
		snap, err = materializer.ApplyTask(snap, sidEvent)
		if err != nil {
			return nil, err
		}
		events = append(events, sidEvent)
	}

	if err := s.appendTaskEvents(taskID, events); err != nil {
		return nil, err
	}
	if err := s.writeTaskSnapshot(taskID, snap); err != nil {
		return nil, err
	}
	guard.Close()

	if err := s.scaffoldPlan(taskID, snap.Title, shortID, snap.Description); err != nil {
		return nil, err
	}
	s.runHooks(ctx, cfg, events, snap)
	return snap, nil
}

func shortIDPrefix(cfg config.Config) string {
	if cfg.ProjectCode == "" {
		return ""
	}
	if cfg.SubprojectCode != "" {
		return cfg.ProjectCode + "-" + cfg.SubprojectCode
	}
	return cfg.ProjectCode
}

func createMatchesExisting(existing *snapshot.Task, in CreateInput, status, priority, taskType string) bool {
	return existing.Title == in.Title &&
		existing.Status == status &&
		existing.Priority == priority &&
		existing.Urgency == in.Urgency &&
		existing.Complexity == in.Complexity &&
		existing.Type == taskType &&
		existing.Description == in.Description &&
		stringsEqual(existing.Tags, in.Tags)
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
