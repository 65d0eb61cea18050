package selection_test

import (
	"testing"

	"github.com/lattice-dev/lattice/internal/config"
	"github.com/lattice-dev/lattice/internal/event"
	"github.com/lattice-dev/lattice/internal/selection"
	"github.com/lattice-dev/lattice/internal/snapshot"
	"github.com/stretchr/testify/require"
)

func task(id, status, priority, urgency, taskType string) *snapshot.Task {
	return &snapshot.Task{ID: id, Status: status, Priority: priority, Urgency: urgency, Type: taskType}
}

func TestSelectNextOrdersByPriorityThenUrgencyThenID(t *testing.T) {
	tasks := []*snapshot.Task{
		task("task_002", "backlog", "medium", "normal", "task"),
		task("task_001", "backlog", "critical", "normal", "task"),
		task("task_003", "backlog", "critical", "immediate", "task"),
	}
	got := selection.SelectNext(tasks, event.Actor{}, nil)
	require.NotNil(t, got)
	require.Equal(t, "task_003", got.ID)
}

func TestSelectNextExcludesEpics(t *testing.T) {
	tasks := []*snapshot.Task{task("task_001", "backlog", "critical", "immediate", "epic")}
	require.Nil(t, selection.SelectNext(tasks, event.Actor{}, nil))
}

func TestSelectNextExcludesTasksAssignedToAnotherActor(t *testing.T) {
	other := event.Actor{Raw: "human:bob"}
	tasks := []*snapshot.Task{
		{ID: "task_001", Status: "backlog", Priority: "high", AssignedTo: &other},
	}
	require.Nil(t, selection.SelectNext(tasks, event.Actor{}, nil))
}

func TestSelectNextResumeFirst(t *testing.T) {
	alice := event.Actor{Raw: "agent:alice"}
	resumable := &snapshot.Task{ID: "task_001", Status: "in_progress", Priority: "low", AssignedTo: &alice}
	readyHigherPriority := task("task_002", "backlog", "critical", "immediate", "task")

	got := selection.SelectNext([]*snapshot.Task{readyHigherPriority, resumable}, alice, nil)
	require.NotNil(t, got)
	require.Equal(t, "task_001", got.ID, "resumable in-progress task must win over a higher-priority ready task")
}

func TestSelectNextReturnsNilWhenNothingQualifies(t *testing.T) {
	tasks := []*snapshot.Task{task("task_001", "done", "critical", "immediate", "task")}
	require.Nil(t, selection.SelectNext(tasks, event.Actor{}, nil))
}

func TestClaimPathFromBacklog(t *testing.T) {
	cfg := config.Default()
	path := selection.ClaimPath(cfg, "backlog")
	require.Equal(t, []string{"planned", "in_progress"}, path)
}

func TestClaimPathAlreadyInProgress(t *testing.T) {
	cfg := config.Default()
	path := selection.ClaimPath(cfg, "in_progress")
	require.Equal(t, []string{}, path)
}

func TestClaimPathThroughIntermediateStatus(t *testing.T) {
	cfg := config.Default()
	cfg.Workflow.Transitions["backlog"] = []string{"in_planning"}
	cfg.Workflow.Transitions["in_planning"] = []string{"planned"}
	cfg.Workflow.Transitions["planned"] = []string{"in_progress"}

	path := selection.ClaimPath(cfg, "backlog")
	require.Equal(t, []string{"in_planning", "planned", "in_progress"}, path)
}

func TestClaimPathNilWhenUnreachableWithinDepth(t *testing.T) {
	cfg := config.Default()
	cfg.Workflow.Transitions["backlog"] = []string{"a"}
	cfg.Workflow.Transitions["a"] = []string{"b"}
	cfg.Workflow.Transitions["b"] = []string{"c"}
	cfg.Workflow.Transitions["c"] = []string{"in_progress"}

	require.Nil(t, selection.ClaimPath(cfg, "backlog"))
}
