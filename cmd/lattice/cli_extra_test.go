package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func createTask(t *testing.T, root, actorID, title string) string {
	t.Helper()
	out, err := run(t, root, "--json", "--actor", actorID, "create", title)
	require.NoError(t, err)
	env := decodeEnvelope(t, out)
	var task struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &task))
	return task.ID
}

func TestCLICommentEditReactDelete(t *testing.T) {
	root := initProject(t)
	id := createTask(t, root, "human:alice", "needs review")

	out, err := run(t, root, "--json", "--actor", "human:alice", "comment", id, "first pass looks fine", "--role", "reviewer")
	require.NoError(t, err)
	env := decodeEnvelope(t, out)
	var task struct {
		CommentCount int `json:"comment_count"`
		EvidenceRefs []struct {
			Role       string `json:"role"`
			SourceType string `json:"source_type"`
		} `json:"evidence_refs"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &task))
	require.Equal(t, 1, task.CommentCount)
	require.Len(t, task.EvidenceRefs, 1)
	require.Equal(t, "reviewer", task.EvidenceRefs[0].Role)

	events, err := st0EventsJSON(t, root, id)
	require.NoError(t, err)
	commentID := lastCommentID(t, events)

	_, err = run(t, root, "--actor", "human:alice", "comment-edit", id, commentID, "revised after a second look")
	require.NoError(t, err)

	_, err = run(t, root, "--actor", "human:bob", "react", id, commentID, "+1")
	require.NoError(t, err)
	_, err = run(t, root, "--actor", "human:bob", "unreact", id, commentID, "+1")
	require.NoError(t, err)

	out, err = run(t, root, "--json", "--actor", "human:alice", "comment-delete", id, commentID)
	require.NoError(t, err)
	env = decodeEnvelope(t, out)
	require.NoError(t, json.Unmarshal(env.Data, &task))
	require.Equal(t, 0, task.CommentCount)
	require.Empty(t, task.EvidenceRefs)
}

// st0EventsJSON fetches a task's raw event log via the CLI so tests can
// recover IDs (like a comment's) that the store only hands back in events.
func st0EventsJSON(t *testing.T, root, taskID string) ([]map[string]any, error) {
	t.Helper()
	out, err := run(t, root, "--json", "events", taskID)
	if err != nil {
		return nil, err
	}
	env := decodeEnvelope(t, out)
	var events []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &events))
	return events, nil
}

func lastCommentID(t *testing.T, events []map[string]any) string {
	t.Helper()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i]["type"] == "comment_added" {
			_, ok := events[i]["data"].(map[string]any)
			require.True(t, ok)
			// a comment's ID is the ID of its comment_added event
			id, ok := events[i]["id"].(string)
			require.True(t, ok)
			return id
		}
	}
	t.Fatal("no comment_added event found")
	return ""
}

func TestCLIRelateLinkAndUnlink(t *testing.T) {
	root := initProject(t)
	a := createTask(t, root, "human:alice", "parent work")
	b := createTask(t, root, "human:alice", "child work")

	out, err := run(t, root, "--json", "--actor", "human:alice", "link", a, "blocks", b, "--note", "must land first")
	require.NoError(t, err)
	env := decodeEnvelope(t, out)
	var task struct {
		RelationshipsOut []struct {
			Type         string `json:"type"`
			TargetTaskID string `json:"target_task_id"`
		} `json:"relationships_out"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &task))
	require.Len(t, task.RelationshipsOut, 1)
	require.Equal(t, "blocks", task.RelationshipsOut[0].Type)
	require.Equal(t, b, task.RelationshipsOut[0].TargetTaskID)

	out, err = run(t, root, "--json", "--actor", "human:alice", "unlink", a, "blocks", b)
	require.NoError(t, err)
	env = decodeEnvelope(t, out)
	require.NoError(t, json.Unmarshal(env.Data, &task))
	require.Empty(t, task.RelationshipsOut)
}

func TestCLIBranchLinkAndUnlink(t *testing.T) {
	root := initProject(t)
	id := createTask(t, root, "human:alice", "ship the patch")

	out, err := run(t, root, "--json", "--actor", "human:alice", "branch-link", id, "fix/parser-crash", "--repo", "lattice-dev/lattice")
	require.NoError(t, err)
	env := decodeEnvelope(t, out)
	var task struct {
		BranchLinks []struct {
			Branch string `json:"branch"`
			Repo   string `json:"repo"`
		} `json:"branch_links"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &task))
	require.Len(t, task.BranchLinks, 1)
	require.Equal(t, "fix/parser-crash", task.BranchLinks[0].Branch)

	out, err = run(t, root, "--json", "--actor", "human:alice", "branch-unlink", id, "fix/parser-crash")
	require.NoError(t, err)
	env = decodeEnvelope(t, out)
	require.NoError(t, json.Unmarshal(env.Data, &task))
	require.Empty(t, task.BranchLinks)
}

func TestCLIAttachArtifactFromFile(t *testing.T) {
	root := initProject(t)
	id := createTask(t, root, "human:alice", "attach the log")

	payloadPath := filepath.Join(t.TempDir(), "build.log")
	require.NoError(t, os.WriteFile(payloadPath, []byte("build succeeded\n"), 0o644))

	out, err := run(t, root, "--json", "--actor", "agent:a1", "attach", id,
		"--file", payloadPath, "--content-type", "text/plain", "--role", "build-log")
	require.NoError(t, err)
	env := decodeEnvelope(t, out)
	var task struct {
		EvidenceRefs []struct {
			Role       string `json:"role"`
			SourceType string `json:"source_type"`
		} `json:"evidence_refs"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &task))
	require.Len(t, task.EvidenceRefs, 1)
	require.Equal(t, "build-log", task.EvidenceRefs[0].Role)
	require.Equal(t, "artifact", task.EvidenceRefs[0].SourceType)
}

func TestCLIRecordCustomEventRequiresPrefix(t *testing.T) {
	root := initProject(t)
	id := createTask(t, root, "human:alice", "track a deploy")

	_, err := run(t, root, "--actor", "agent:a1", "event", id, "deploy_started", "--data", `{"env":"staging"}`)
	require.Error(t, err, "custom event types must carry the x_ prefix")

	out, err := run(t, root, "--json", "--actor", "agent:a1", "event", id, "x_deploy_started", "--data", `{"env":"staging"}`)
	require.NoError(t, err)
	env := decodeEnvelope(t, out)
	require.True(t, env.OK)
}

func TestCLIArchiveExcludesFromListButShowStillFinds(t *testing.T) {
	root := initProject(t)
	id := createTask(t, root, "human:alice", "stale work")

	_, err := run(t, root, "--actor", "human:alice", "archive", id)
	require.NoError(t, err)

	out, err := run(t, root, "--json", "list")
	require.NoError(t, err)
	env := decodeEnvelope(t, out)
	var tasks []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tasks))
	for _, task := range tasks {
		require.NotEqual(t, id, task.ID, "archived task should not appear in a default list")
	}

	out, err = run(t, root, "--json", "show", id)
	require.NoError(t, err, "archived tasks remain reachable by show")
	env = decodeEnvelope(t, out)
	var shown struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &shown))
	require.Equal(t, id, shown.ID)

	out, err = run(t, root, "--json", "list", "--all")
	require.NoError(t, err)
	env = decodeEnvelope(t, out)
	require.NoError(t, json.Unmarshal(env.Data, &tasks))
	var found bool
	for _, task := range tasks {
		if task.ID == id {
			found = true
		}
	}
	require.True(t, found, "--all should include archived tasks")

	_, err = run(t, root, "--actor", "human:alice", "unarchive", id)
	require.NoError(t, err)

	out, err = run(t, root, "--json", "list")
	require.NoError(t, err)
	env = decodeEnvelope(t, out)
	require.NoError(t, json.Unmarshal(env.Data, &tasks))
	found = false
	for _, task := range tasks {
		if task.ID == id {
			found = true
		}
	}
	require.True(t, found, "unarchiving should restore default list visibility")
}

func TestCLIConfigReadAndSetCodes(t *testing.T) {
	root := initProject(t)

	out, err := run(t, root, "--json", "config", "read")
	require.NoError(t, err)
	env := decodeEnvelope(t, out)
	var cfg struct {
		DefaultStatus   string `json:"default_status"`
		DefaultPriority string `json:"default_priority"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &cfg))
	require.Equal(t, "backlog", cfg.DefaultStatus)
	require.Equal(t, "medium", cfg.DefaultPriority)

	out, err = run(t, root, "--json", "config", "set-project-code", "LAT")
	require.NoError(t, err)
	env = decodeEnvelope(t, out)
	var updated struct {
		ProjectCode string `json:"project_code"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	require.Equal(t, "LAT", updated.ProjectCode)

	out, err = run(t, root, "--json", "config", "set-subproject-code", "API")
	require.NoError(t, err)
	env = decodeEnvelope(t, out)
	var sub struct {
		SubprojectCode string `json:"subproject_code"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &sub))
	require.Equal(t, "API", sub.SubprojectCode)
}
