package materializer_test

import (
	"testing"
	"time"

	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/event"
	"github.com/lattice-dev/lattice/internal/ids"
	"github.com/lattice-dev/lattice/internal/materializer"
	"github.com/lattice-dev/lattice/internal/snapshot"
	"github.com/stretchr/testify/require"
)

func mustActor(t *testing.T, s string) event.Actor {
	t.Helper()
	a, err := event.NewRawActor(s)
	require.NoError(t, err)
	return a
}

func mkEvent(t *testing.T, taskID, typ string, data any, ts time.Time) event.Event {
	t.Helper()
	e, err := event.New(ids.New(ids.PrefixEvent), ts, typ, taskID, mustActor(t, "human:alex"), data)
	require.NoError(t, err)
	return e
}

func TestApplyTaskCreated(t *testing.T) {
	taskID := ids.New(ids.PrefixTask)
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := mkEvent(t, taskID, event.TypeTaskCreated, map[string]any{
		"title": "Fix login", "status": "backlog", "priority": "high", "type": "bug",
	}, ts)

	snap, err := materializer.ApplyTask(nil, e)
	require.NoError(t, err)
	require.Equal(t, "Fix login", snap.Title)
	require.Equal(t, "backlog", snap.Status)
	require.Equal(t, e.ID, snap.LastEventID)
	require.Nil(t, snap.DoneAt)
	require.NotNil(t, snap.CustomFields)
}

func TestApplyTaskCreatedDoneSetsDoneAt(t *testing.T) {
	taskID := ids.New(ids.PrefixTask)
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := mkEvent(t, taskID, event.TypeTaskCreated, map[string]any{
		"title": "x", "status": "done", "priority": "low", "type": "task",
	}, ts)

	snap, err := materializer.ApplyTask(nil, e)
	require.NoError(t, err)
	require.NotNil(t, snap.DoneAt)
	require.Equal(t, ts, *snap.DoneAt)
}

func TestNonCreateOnEmptySnapshotFails(t *testing.T) {
	e := mkEvent(t, ids.New(ids.PrefixTask), event.TypeStatusChanged, map[string]string{"from": "backlog", "to": "planned"}, time.Now())
	_, err := materializer.ApplyTask(nil, e)
	require.Error(t, err)
	require.Equal(t, errs.NoInitialSnapshot, errs.CodeOf(err))
}

func TestProtectedFieldRejected(t *testing.T) {
	taskID := ids.New(ids.PrefixTask)
	ts := time.Now()
	created := mkEvent(t, taskID, event.TypeTaskCreated, map[string]any{"title": "x", "status": "backlog", "priority": "low", "type": "task"}, ts)
	snap, err := materializer.ApplyTask(nil, created)
	require.NoError(t, err)

	for _, field := range []string{"status", "assigned_to", "custom_fields", "comment_count"} {
		e := mkEvent(t, taskID, event.TypeFieldUpdated, map[string]any{"field": field, "from": "a", "to": "b"}, ts.Add(time.Second))
		_, err := materializer.ApplyTask(snap, e)
		require.Error(t, err, field)
		require.Equal(t, errs.ProtectedField, errs.CodeOf(err), field)
	}
}

func TestCustomFieldWrite(t *testing.T) {
	taskID := ids.New(ids.PrefixTask)
	ts := time.Now()
	created := mkEvent(t, taskID, event.TypeTaskCreated, map[string]any{"title": "x", "status": "backlog", "priority": "low", "type": "task"}, ts)
	snap, err := materializer.ApplyTask(nil, created)
	require.NoError(t, err)

	e := mkEvent(t, taskID, event.TypeFieldUpdated, map[string]any{"field": "custom_fields.owner_team", "from": nil, "to": "platform"}, ts.Add(time.Second))
	snap, err = materializer.ApplyTask(snap, e)
	require.NoError(t, err)
	require.Equal(t, "platform", snap.CustomFields["owner_team"])
}

func TestDoneIsTerminalAgainstEvidenceWithdrawal(t *testing.T) {
	taskID := ids.New(ids.PrefixTask)
	ts := time.Now()
	snap, err := materializer.ApplyTask(nil, mkEvent(t, taskID, event.TypeTaskCreated, map[string]any{"title": "x", "status": "backlog", "priority": "low", "type": "task"}, ts))
	require.NoError(t, err)

	commentEvt := mkEvent(t, taskID, event.TypeCommentAdded, map[string]string{"role": "review"}, ts.Add(time.Second))
	snap, err = materializer.ApplyTask(snap, commentEvt)
	require.NoError(t, err)

	snap, err = materializer.ApplyTask(snap, mkEvent(t, taskID, event.TypeStatusChanged, map[string]string{"from": "review", "to": "done"}, ts.Add(2*time.Second)))
	require.NoError(t, err)
	require.Equal(t, "done", snap.Status)
	require.NotNil(t, snap.DoneAt)

	deleteEvt := mkEvent(t, taskID, event.TypeCommentDeleted, map[string]string{"comment_id": commentEvt.ID}, ts.Add(3*time.Second))
	snap, err = materializer.ApplyTask(snap, deleteEvt)
	require.NoError(t, err)
	require.Equal(t, "done", snap.Status, "evidence withdrawal after done must not reopen the task")
	require.NotNil(t, snap.DoneAt)
}

func TestBackwardTransitionIncrementsReopenedCount(t *testing.T) {
	taskID := ids.New(ids.PrefixTask)
	ts := time.Now()
	snap, err := materializer.ApplyTask(nil, mkEvent(t, taskID, event.TypeTaskCreated, map[string]any{"title": "x", "status": "in_progress", "priority": "low", "type": "task"}, ts))
	require.NoError(t, err)

	snap, err = materializer.ApplyTask(snap, mkEvent(t, taskID, event.TypeStatusChanged, map[string]string{"from": "in_progress", "to": "backlog"}, ts.Add(time.Second)))
	require.NoError(t, err)
	require.Equal(t, 1, snap.ReopenedCount)
}

func TestReplayEqualsSnapshotByteIdentical(t *testing.T) {
	taskID := ids.New(ids.PrefixTask)
	ts := time.Now()

	events := []event.Event{
		mkEvent(t, taskID, event.TypeTaskCreated, map[string]any{"title": "x", "status": "backlog", "priority": "low", "type": "task"}, ts),
		mkEvent(t, taskID, event.TypeStatusChanged, map[string]string{"from": "backlog", "to": "planned"}, ts.Add(time.Second)),
		mkEvent(t, taskID, event.TypeRelationshipAdded, map[string]string{"type": "blocks", "target_task_id": ids.New(ids.PrefixTask)}, ts.Add(2*time.Second)),
	}

	var snap *snapshot.Task
	var err error
	for _, e := range events {
		snap, err = materializer.ApplyTask(snap, e)
		require.NoError(t, err)
	}

	var replay *snapshot.Task
	for _, e := range events {
		replay, err = materializer.ApplyTask(replay, e)
		require.NoError(t, err)
	}

	a, err := snapshot.SerializeTask(snap)
	require.NoError(t, err)
	b, err := snapshot.SerializeTask(replay)
	require.NoError(t, err)
	require.Equal(t, string(a), string(b))
}

func TestRelationshipRemovedRemovesFirstMatch(t *testing.T) {
	taskID := ids.New(ids.PrefixTask)
	target := ids.New(ids.PrefixTask)
	ts := time.Now()
	snap, err := materializer.ApplyTask(nil, mkEvent(t, taskID, event.TypeTaskCreated, map[string]any{"title": "x", "status": "backlog", "priority": "low", "type": "task"}, ts))
	require.NoError(t, err)

	snap, err = materializer.ApplyTask(snap, mkEvent(t, taskID, event.TypeRelationshipAdded, map[string]string{"type": "blocks", "target_task_id": target}, ts.Add(time.Second)))
	require.NoError(t, err)
	require.Len(t, snap.RelationshipsOut, 1)

	snap, err = materializer.ApplyTask(snap, mkEvent(t, taskID, event.TypeRelationshipRemoved, map[string]string{"type": "blocks", "target_task_id": target}, ts.Add(2*time.Second)))
	require.NoError(t, err)
	require.Empty(t, snap.RelationshipsOut)
}
