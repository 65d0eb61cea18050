// Package integrity implements the audit and rebuild operations of
// spec.md §4.9: read-only consistency checks over the on-disk store,
// and recovery by replaying event logs back through the same
// materializer the live write path uses.
package integrity

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/event"
	"github.com/lattice-dev/lattice/internal/fsops"
	"github.com/lattice-dev/lattice/internal/ids"
	"github.com/lattice-dev/lattice/internal/jsonl"
	"github.com/lattice-dev/lattice/internal/shortid"
	"github.com/lattice-dev/lattice/internal/snapshot"
	"github.com/lattice-dev/lattice/internal/store"
)

// Level is a finding's severity.
type Level string

const (
	Warning Level = "warning"
	Error   Level = "error"
)

// Finding is one audit result (spec.md §4.9 "finding records").
type Finding struct {
	Level   Level  `json:"level"`
	Check   string `json:"check"`
	Message string `json:"message"`
	TaskID  string `json:"task_id,omitempty"`
}

// Report collects every finding from one audit pass.
type Report struct {
	Findings []Finding `json:"findings"`
}

// HasErrors reports whether any finding is Error level.
func (r Report) HasErrors() bool {
	for _, f := range r.Findings {
		if f.Level == Error {
			return true
		}
	}
	return false
}

func (r *Report) add(level Level, check, taskID, format string, a ...any) {
	r.Findings = append(r.Findings, Finding{
		Level: level, Check: check, TaskID: taskID, Message: fmt.Sprintf(format, a...),
	})
}

// Audit runs every check in spec.md §4.9 against s's on-disk state
// (reads only, no locks held — spec.md §5 "reads require no locks").
func Audit(s *store.Store) (Report, error) {
	var r Report

	active, err := readAllSnapshots(s.Layout.TasksDir())
	if err != nil {
		return r, err
	}
	archived, err := readAllSnapshots(s.Layout.ArchiveTasksDir())
	if err != nil {
		return r, err
	}
	known := map[string]*snapshot.Task{}
	for _, t := range active {
		known[t.ID] = t
	}
	for _, t := range archived {
		known[t.ID] = t
	}

	auditJSONFiles(&r, s)
	auditEventLogs(&r, s, active, archived)
	auditSnapshotDrift(&r, s, active, "tasks")
	auditSnapshotDrift(&r, s, archived, "archive/tasks")
	auditRelationships(&r, known)
	auditArtifacts(&r, s, known)
	auditIDs(&r, known)
	auditShortIDIntegrity(&r, s, active, archived)
	auditLifecycle(&r, s, active, archived)
	auditResources(&r, s)

	return r, nil
}

func readAllSnapshots(dir string) ([]*snapshot.Task, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.ReadError, err, "integrity: list %s", dir)
	}
	var out []*snapshot.Task
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := dir + "/" + entry.Name()
		data, err := os.ReadFile(path) // #nosec G304
		if err != nil {
			continue
		}
		t, err := snapshot.ParseTask(data)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// auditJSONFiles is check 1: JSON parseability of snapshots, artifact
// meta, config.
func auditJSONFiles(r *Report, s *store.Store) {
	checkJSONDir := func(dir string) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			path := dir + "/" + entry.Name()
			data, err := os.ReadFile(path) // #nosec G304
			if err != nil {
				r.add(Error, "json_parseable", "", "%s: %v", path, err)
				continue
			}
			var v any
			if err := jsonValid(data, &v); err != nil {
				r.add(Error, "json_parseable", "", "%s: %v", path, err)
			}
		}
	}
	checkJSONDir(s.Layout.TasksDir())
	checkJSONDir(s.Layout.ArchiveTasksDir())
	checkJSONDir(s.Layout.ArtifactMetaDir())
	if fsops.Exists(s.Layout.Config()) {
		if data, err := os.ReadFile(s.Layout.Config()); err == nil { // #nosec G304
			var v any
			if err := jsonValid(data, &v); err != nil {
				r.add(Error, "json_parseable", "", "config.json: %v", err)
			}
		}
	}
}

// auditEventLogs is check 2: JSONL parseability; a truncated final
// line is a warning, a malformed interior line is an error.
func auditEventLogs(r *Report, s *store.Store, active, archived []*snapshot.Task) {
	check := func(taskID, path string) {
		lines, truncated, err := jsonl.ReadLines(path)
		if os.IsNotExist(err) {
			return
		}
		if err != nil {
			r.add(Error, "jsonl_parseable", taskID, "%s: %v", path, err)
			return
		}
		for i, line := range lines {
			if truncated && i == len(lines)-1 {
				r.add(Warning, "jsonl_parseable", taskID, "%s: truncated final line", path)
				continue
			}
			if _, err := event.Parse(line); err != nil {
				r.add(Error, "jsonl_parseable", taskID, "%s: line %d: %v", path, i+1, err)
			}
		}
	}
	for _, t := range active {
		check(t.ID, s.Layout.TaskEvents(t.ID))
	}
	for _, t := range archived {
		check(t.ID, s.Layout.ArchiveTaskEvents(t.ID))
	}
}

// auditSnapshotDrift is check 3: snapshot.last_event_id equals the
// last event ID in its log.
func auditSnapshotDrift(r *Report, s *store.Store, tasks []*snapshot.Task, location string) {
	for _, t := range tasks {
		path := s.Layout.TaskEvents(t.ID)
		if location != "tasks" {
			path = s.Layout.ArchiveTaskEvents(t.ID)
		}
		lines, _, err := jsonl.ReadLines(path)
		if err != nil || len(lines) == 0 {
			continue
		}
		last, err := event.Parse(lines[len(lines)-1])
		if err != nil {
			continue
		}
		if t.LastEventID != last.ID {
			r.add(Error, "snapshot_drift", t.ID, "%s: snapshot.last_event_id=%s but log's last event is %s", location, t.LastEventID, last.ID)
		}
	}
}

// auditRelationships is checks 4, 6, 7: missing targets, self-links,
// duplicate edges.
func auditRelationships(r *Report, known map[string]*snapshot.Task) {
	for id, t := range known {
		seen := map[string]bool{}
		for _, rel := range t.RelationshipsOut {
			if rel.TargetTaskID == id {
				r.add(Error, "self_link", id, "relationship %q targets its own source task", rel.Type)
			}
			if _, ok := known[rel.TargetTaskID]; !ok {
				r.add(Error, "missing_relationship_target", id, "relationship %q targets unknown task %s", rel.Type, rel.TargetTaskID)
			}
			key := rel.Type + "\x00" + rel.TargetTaskID
			if seen[key] {
				r.add(Error, "duplicate_edge", id, "duplicate relationship edge %s -> %s (%s)", id, rel.TargetTaskID, rel.Type)
			}
			seen[key] = true
		}
	}
}

// auditArtifacts is check 5: every referenced artifact ID has a meta
// file.
func auditArtifacts(r *Report, s *store.Store, known map[string]*snapshot.Task) {
	for id, t := range known {
		for _, ref := range t.EvidenceRefs {
			if ref.SourceType != snapshot.SourceTypeArtifact {
				continue
			}
			if !fsops.Exists(s.Layout.ArtifactMeta(ref.ID)) {
				r.add(Error, "missing_artifact", id, "evidence ref points at missing artifact %s", ref.ID)
			}
		}
	}
}

// auditIDs is check 8: all IDs match their prefix/shape.
func auditIDs(r *Report, known map[string]*snapshot.Task) {
	for id := range known {
		if !ids.Valid(id, ids.PrefixTask) {
			r.add(Error, "malformed_id", id, "task ID does not match expected shape")
		}
	}
}

// auditShortIDIntegrity is check 10.
func auditShortIDIntegrity(r *Report, s *store.Store, active, archived []*snapshot.Task) {
	cfg, err := s.LoadConfig()
	if err != nil {
		return
	}
	if cfg.ProjectCode == "" {
		return
	}
	if !fsops.Exists(s.Layout.IDs()) {
		r.add(Error, "short_id_integrity", "", "project_code %q is configured but ids.json is missing", cfg.ProjectCode)
		return
	}
	idx, err := shortid.Load(s.Layout.IDs())
	if err != nil {
		r.add(Error, "short_id_integrity", "", "ids.json: %v", err)
		return
	}

	all := append(append([]*snapshot.Task(nil), active...), archived...)
	byID := map[string]*snapshot.Task{}
	for _, t := range all {
		byID[t.ID] = t
	}
	seenShortIDs := map[string]string{}
	maxSeq := map[string]int{}

	for shortIDVal, taskULID := range idx.Map {
		if _, ok := byID[taskULID]; !ok {
			r.add(Error, "short_id_integrity", taskULID, "ids.json.map[%s] points at nonexistent task %s", shortIDVal, taskULID)
		}
		prefix, seq, ok := ids.ParseShortID(shortIDVal)
		if ok && seq > maxSeq[prefix] {
			maxSeq[prefix] = seq
		}
	}
	for _, t := range all {
		if t.ShortID == "" {
			continue
		}
		if _, ok := idx.Map[t.ShortID]; !ok {
			r.add(Error, "short_id_integrity", t.ID, "task's short_id %s does not appear in ids.json.map", t.ShortID)
		}
		if owner, dup := seenShortIDs[t.ShortID]; dup && owner != t.ID {
			r.add(Error, "short_id_integrity", t.ID, "short_id %s is shared with task %s", t.ShortID, owner)
		}
		seenShortIDs[t.ShortID] = t.ID
	}
	for prefix, max := range maxSeq {
		if idx.NextSeqs[prefix] <= max {
			r.add(Error, "short_id_integrity", "", "next_seqs[%s]=%d does not exceed max assigned seq %d", prefix, idx.NextSeqs[prefix], max)
		}
	}
}

// auditLifecycle is check 9: the set of lifecycle event IDs in
// per-task logs equals the set in _lifecycle.jsonl.
func auditLifecycle(r *Report, s *store.Store, active, archived []*snapshot.Task) {
	fromTasks := map[string]bool{}
	collect := func(taskID, path string) {
		lines, _, err := jsonl.ReadLines(path)
		if err != nil {
			return
		}
		for _, line := range lines {
			e, err := event.Parse(line)
			if err != nil {
				continue
			}
			if event.IsLifecycle(e.Type) {
				fromTasks[e.ID] = true
			}
		}
	}
	for _, t := range active {
		collect(t.ID, s.Layout.TaskEvents(t.ID))
	}
	for _, t := range archived {
		collect(t.ID, s.Layout.ArchiveTaskEvents(t.ID))
	}

	lines, _, err := jsonl.ReadLines(s.Layout.LifecycleLog())
	if err != nil && !os.IsNotExist(err) {
		r.add(Error, "lifecycle_consistency", "", "_lifecycle.jsonl: %v", err)
		return
	}
	fromLifecycle := map[string]bool{}
	for _, line := range lines {
		e, err := event.Parse(line)
		if err != nil {
			continue
		}
		fromLifecycle[e.ID] = true
	}

	for id := range fromTasks {
		if !fromLifecycle[id] {
			r.add(Error, "lifecycle_consistency", "", "lifecycle event %s is in a per-task log but missing from _lifecycle.jsonl", id)
		}
	}
	for id := range fromLifecycle {
		if !fromTasks[id] {
			r.add(Error, "lifecycle_consistency", "", "lifecycle event %s is in _lifecycle.jsonl but missing from its per-task log", id)
		}
	}
}

// auditResources is check 11: snapshot drift and stale holders,
// mirroring check 3 for resources.
func auditResources(r *Report, s *store.Store) {
	entries, err := os.ReadDir(s.Layout.ResourcesDir())
	if os.IsNotExist(err) || err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := s.Layout.ResourceSnapshot(entry.Name())
		data, err := os.ReadFile(path) // #nosec G304
		if err != nil {
			continue
		}
		res, err := snapshot.ParseResource(data)
		if err != nil {
			r.add(Error, "json_parseable", "", "%s: %v", path, err)
			continue
		}
		lines, _, err := jsonl.ReadLines(s.Layout.ResourceEvents(res.ID))
		if err != nil || len(lines) == 0 {
			continue
		}
		last, err := event.Parse(lines[len(lines)-1])
		if err != nil {
			continue
		}
		if res.LastEventID != last.ID {
			r.add(Error, "resource_drift", "", "resource %q: snapshot.last_event_id=%s but log's last event is %s", res.Name, res.LastEventID, last.ID)
		}
		now := time.Now()
		for _, h := range res.Holders {
			if h.ExpiresAt.Before(now) {
				r.add(Warning, "stale_holder", "", "resource %q: holder %s expired at %s", res.Name, h.Actor.String(), h.ExpiresAt)
			}
		}
	}
}

func jsonValid(data []byte, v *any) error {
	return json.Unmarshal(data, v)
}
