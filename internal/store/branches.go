package store

import (
	"context"

	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/event"
	"github.com/lattice-dev/lattice/internal/ids"
	"github.com/lattice-dev/lattice/internal/snapshot"
)

// LinkBranch records a branch_linked event.
func (s *Store) LinkBranch(ctx context.Context, taskID, branch, repo string, actor event.Actor) (*snapshot.Task, error) {
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
	for _, bl := range cur.BranchLinks {
		if bl.Branch == branch {
			return nil, errs.New(errs.Conflict, "branch %q is already linked to %s", branch, taskID)
		}
	}

	e, err := event.New(ids.New(ids.PrefixEvent), now(), event.TypeBranchLinked, taskID, actor, map[string]any{
		"branch": branch, "repo": repo,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ValidationError, err, "store: build branch_linked event")
	}
	return s.writeTask(ctx, cfg, taskID, []event.Event{e})
}

// UnlinkBranch records a branch_unlinked event.
func (s *Store) UnlinkBranch(ctx context.Context, taskID, branch string, actor event.Actor) (*snapshot.Task, error) {
	cfg, err := s.LoadConfig()
	if err != nil {
		return nil, err
	}
	e, err := event.New(ids.New(ids.PrefixEvent), now(), event.TypeBranchUnlinked, taskID, actor, map[string]any{
		"branch": branch,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ValidationError, err, "store: build branch_unlinked event")
	}
	return s.writeTask(ctx, cfg, taskID, []event.Event{e})
}
