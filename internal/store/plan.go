package store

import (
	"fmt"
	"os"
	"strings"

	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/fsops"
)

// scaffoldMarkers are the literal placeholder lines written into a
// freshly scaffolded plan file; a plan file is "scaffold-only" (and
// blocks a claim with PLAN_REQUIRED) exactly when it still contains
// both of them untouched.
const (
	scaffoldApproachMarker   = "- TODO: describe the approach"
	scaffoldCriteriaMarker   = "- TODO: define acceptance criteria"
)

func scaffoldPlanContent(title, shortID, description string) string {
	var b strings.Builder
	if shortID != "" {
		fmt.Fprintf(&b, "# %s: %s\n\n", shortID, title)
	} else {
		fmt.Fprintf(&b, "# %s\n\n", title)
	}
	b.WriteString("## Summary\n\n")
	if description != "" {
		b.WriteString(description)
		b.WriteString("\n\n")
	} else {
		b.WriteString("(no description provided)\n\n")
	}
	b.WriteString("## Technical Plan\n\n")
	b.WriteString(scaffoldApproachMarker)
	b.WriteString("\n\n")
	b.WriteString("## Acceptance Criteria\n\n")
	b.WriteString(scaffoldCriteriaMarker)
	b.WriteString("\n")
	return b.String()
}

// scaffoldPlan writes a new task's plan file on create (spec.md §4.2
// "plans/<task_id>.md"). Plans, unlike notes, are always scaffolded
// immediately so `next --claim` has something to inspect.
func (s *Store) scaffoldPlan(taskID, title, shortID, description string) error {
	return fsops.AtomicWrite(s.Layout.Plan(taskID), []byte(scaffoldPlanContent(title, shortID, description)))
}

// ReadPlan returns a task's plan file content (spec.md §6.2 "plan
// (read)"), errs.NotFound if it has none.
func (s *Store) ReadPlan(taskID string) (string, error) {
	data, err := os.ReadFile(s.Layout.Plan(taskID)) // #nosec G304
	if os.IsNotExist(err) {
		return "", errs.New(errs.NotFound, "task %q has no plan file", taskID)
	}
	if err != nil {
		return "", errs.Wrap(errs.ReadError, err, "store: read plan %s", taskID)
	}
	return string(data), nil
}

// isScaffoldOnlyPlan reports whether content is an untouched scaffold:
// present but still carrying both placeholder markers (spec.md §7
// "PLAN_REQUIRED ... missing or scaffold-only plan").
func isScaffoldOnlyPlan(content string) bool {
	return strings.Contains(content, scaffoldApproachMarker) && strings.Contains(content, scaffoldCriteriaMarker)
}

// requirePlan enforces PLAN_REQUIRED for the claim operation: the plan
// file must exist and must not be scaffold-only.
func (s *Store) requirePlan(taskID string) (string, error) {
	content, err := s.ReadPlan(taskID)
	if err != nil {
		if errs.CodeOf(err) == errs.NotFound {
			return "", errs.New(errs.PlanRequired, "task %q has no plan; write plans/%s.md before claiming", taskID, taskID)
		}
		return "", err
	}
	if isScaffoldOnlyPlan(content) {
		return "", errs.New(errs.PlanRequired, "task %q's plan is still scaffold-only", taskID)
	}
	return content, nil
}

// scaffoldNotesIfAbsent writes an empty notes file for taskID if none
// exists yet (spec.md §4.2 "notes ... scaffolded on demand"). No store
// operation calls it; unlike plans, notes are not scaffolded at create
// time.
func (s *Store) scaffoldNotesIfAbsent(taskID string) error {
	if fsops.Exists(s.Layout.Notes(taskID)) {
		return nil
	}
	return fsops.AtomicWrite(s.Layout.Notes(taskID), []byte(""))
}
