// Package materializer implements the sole mutation path for
// snapshots: Apply(snapshot, event) -> snapshot (spec.md §4.1). Both
// the write pipeline and the rebuild pipeline replay through this same
// function, so there is exactly one place task/resource semantics live.
package materializer

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/event"
	"github.com/lattice-dev/lattice/internal/snapshot"
)

// canonicalStatusOrder is the fixed order spec.md §4.1 defines for
// backward-transition detection. It is independent of a project's
// configured workflow.Statuses list (which only constrains which
// statuses exist at all).
var canonicalStatusOrder = []string{
	"backlog", "in_planning", "planned", "in_progress",
	"review", "done", "blocked", "needs_human", "cancelled",
}

func statusRank(s string) int {
	for i, v := range canonicalStatusOrder {
		if v == s {
			return i
		}
	}
	return -1
}

// ApplyTask replays e onto snap (nil for a fresh task) and returns the
// resulting snapshot. snap is never mutated in place; callers get back
// a new value safe to write out independently.
func ApplyTask(snap *snapshot.Task, e event.Event) (*snapshot.Task, error) {
	if snap == nil {
		if e.Type != event.TypeTaskCreated {
			return nil, errs.New(errs.NoInitialSnapshot, "event %s (%s) has no preceding task_created for %s", e.ID, e.Type, e.TaskID)
		}
		return applyTaskCreated(e)
	}

	out := cloneTask(snap)

	switch e.Type {
	case event.TypeTaskCreated:
		// A second task_created for the same ID is a replay artifact of
		// idempotent retry handling in the store layer, not a materializer
		// concern; ignore it here (store rejects true conflicts earlier).
	case event.TypeStatusChanged:
		if err := applyStatusChanged(out, e); err != nil {
			return nil, err
		}
	case event.TypeAssignmentChanged:
		if err := applyAssignmentChanged(out, e); err != nil {
			return nil, err
		}
	case event.TypeFieldUpdated:
		if err := applyFieldUpdated(out, e); err != nil {
			return nil, err
		}
	case event.TypeCommentAdded:
		if err := applyCommentAdded(out, e); err != nil {
			return nil, err
		}
	case event.TypeCommentEdited:
		if err := applyCommentEdited(out, e); err != nil {
			return nil, err
		}
	case event.TypeCommentDeleted:
		if err := applyCommentDeleted(out, e); err != nil {
			return nil, err
		}
	case event.TypeReactionAdded, event.TypeReactionRemoved:
		// Reactions carry no snapshot-visible state in this materializer;
		// bookkeeping below still applies.
	case event.TypeRelationshipAdded:
		if err := applyRelationshipAdded(out, e); err != nil {
			return nil, err
		}
	case event.TypeRelationshipRemoved:
		if err := applyRelationshipRemoved(out, e); err != nil {
			return nil, err
		}
	case event.TypeArtifactAttached:
		if err := applyArtifactAttached(out, e); err != nil {
			return nil, err
		}
	case event.TypeBranchLinked:
		if err := applyBranchLinked(out, e); err != nil {
			return nil, err
		}
	case event.TypeBranchUnlinked:
		if err := applyBranchUnlinked(out, e); err != nil {
			return nil, err
		}
	case event.TypeTaskArchived, event.TypeTaskUnarchived:
		// The archive/unarchive file moves are orchestrated by
		// internal/store under lock; the snapshot itself gains no new
		// field from these events beyond bookkeeping.
	case event.TypeTaskShortIDAssigned:
		if err := applyShortIDAssigned(out, e); err != nil {
			return nil, err
		}
	case event.TypeProcessStarted:
		if err := applyProcessStarted(out, e); err != nil {
			return nil, err
		}
	case event.TypeProcessCompleted, event.TypeProcessFailed:
		if err := applyProcessEnded(out, e); err != nil {
			return nil, err
		}
	case event.TypeGitEvent:
		// Pass-through: git_event exists for audit trail purposes only.
	default:
		if event.IsCustom(e.Type) {
			// x_ events are structurally no-ops beyond bookkeeping.
		} else {
			// Unknown built-in type: forward compatibility, log and ignore.
			logUnknownType(e.Type)
		}
	}

	out.LastEventID = e.ID
	out.UpdatedAt = e.TS
	return out, nil
}

func applyTaskCreated(e event.Event) (*snapshot.Task, error) {
	var data struct {
		Title       string   `json:"title"`
		Status      string   `json:"status"`
		Priority    string   `json:"priority"`
		Urgency     string   `json:"urgency"`
		Complexity  string   `json:"complexity"`
		Type        string   `json:"type"`
		Description string   `json:"description"`
		Tags        []string `json:"tags"`
	}
	if err := e.UnmarshalData(&data); err != nil {
		return nil, errs.Wrap(errs.ValidationError, err, "task_created: invalid data")
	}

	t := &snapshot.Task{
		SchemaVersion:    snapshot.SchemaVersion,
		ID:               e.TaskID,
		Title:            data.Title,
		Status:           data.Status,
		Priority:         data.Priority,
		Urgency:          data.Urgency,
		Complexity:       data.Complexity,
		Type:             data.Type,
		Description:      data.Description,
		Tags:             data.Tags,
		CreatedBy:        e.Actor,
		CreatedAt:        e.TS,
		UpdatedAt:        e.TS,
		RelationshipsOut: []snapshot.Relationship{},
		EvidenceRefs:     []snapshot.EvidenceRef{},
		BranchLinks:      []snapshot.BranchLink{},
		CustomFields:     map[string]any{},
		LastEventID:      e.ID,
	}
	if t.Status == "done" {
		ts := e.TS
		t.DoneAt = &ts
	}
	return t, nil
}

func applyStatusChanged(t *snapshot.Task, e event.Event) error {
	var data struct {
		From   string `json:"from"`
		To     string `json:"to"`
		Force  bool   `json:"force"`
		Reason string `json:"reason"`
	}
	if err := e.UnmarshalData(&data); err != nil {
		return errs.Wrap(errs.ValidationError, err, "status_changed: invalid data")
	}

	fromRank, toRank := statusRank(t.Status), statusRank(data.To)
	if fromRank >= 0 && toRank >= 0 && toRank < fromRank {
		t.ReopenedCount++
	}

	t.Status = data.To
	if data.To == "done" {
		ts := e.TS
		t.DoneAt = &ts
	} else if t.DoneAt != nil {
		t.DoneAt = nil
	}
	return nil
}

func applyAssignmentChanged(t *snapshot.Task, e event.Event) error {
	var data struct {
		To *event.Actor `json:"to"`
	}
	if err := e.UnmarshalData(&data); err != nil {
		return errs.Wrap(errs.ValidationError, err, "assignment_changed: invalid data")
	}
	t.AssignedTo = data.To
	return nil
}

func applyFieldUpdated(t *snapshot.Task, e event.Event) error {
	var data struct {
		Field string          `json:"field"`
		From  json.RawMessage `json:"from"`
		To    json.RawMessage `json:"to"`
	}
	if err := e.UnmarshalData(&data); err != nil {
		return errs.Wrap(errs.ValidationError, err, "field_updated: invalid data")
	}

	if ProtectedFields[data.Field] {
		return errs.New(errs.ProtectedField, "field %q is protected and cannot be updated via field_updated", data.Field)
	}

	if cf, ok := cutCustomFieldKey(data.Field); ok {
		var v any
		if err := json.Unmarshal(data.To, &v); err != nil {
			return errs.Wrap(errs.ValidationError, err, "field_updated: invalid custom_fields value")
		}
		if t.CustomFields == nil {
			t.CustomFields = map[string]any{}
		}
		t.CustomFields[cf] = v
		return nil
	}

	switch data.Field {
	case "title":
		return unmarshalInto(data.To, &t.Title)
	case "description":
		return unmarshalInto(data.To, &t.Description)
	case "priority":
		return unmarshalInto(data.To, &t.Priority)
	case "urgency":
		return unmarshalInto(data.To, &t.Urgency)
	case "complexity":
		return unmarshalInto(data.To, &t.Complexity)
	case "type":
		return unmarshalInto(data.To, &t.Type)
	case "tags":
		var tags []string
		if err := json.Unmarshal(data.To, &tags); err != nil {
			return errs.Wrap(errs.ValidationError, err, "field_updated: invalid tags value")
		}
		t.Tags = tags
		return nil
	default:
		return errs.New(errs.ValidationError, "field %q is not a recognized writable field", data.Field)
	}
}

func cutCustomFieldKey(field string) (string, bool) {
	const prefix = "custom_fields."
	if len(field) > len(prefix) && field[:len(prefix)] == prefix {
		return field[len(prefix):], true
	}
	return "", false
}

func unmarshalInto(raw json.RawMessage, dst *string) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return errs.Wrap(errs.ValidationError, err, "field_updated: invalid string value")
	}
	*dst = s
	return nil
}

func applyCommentAdded(t *snapshot.Task, e event.Event) error {
	var data struct {
		Role string `json:"role"`
	}
	if err := e.UnmarshalData(&data); err != nil {
		return errs.Wrap(errs.ValidationError, err, "comment_added: invalid data")
	}
	t.CommentCount++
	if data.Role != "" {
		t.EvidenceRefs = append(t.EvidenceRefs, snapshot.EvidenceRef{
			ID: e.ID, Role: data.Role, SourceType: snapshot.SourceTypeComment,
		})
	}
	return nil
}

func applyCommentEdited(t *snapshot.Task, e event.Event) error {
	var data struct {
		CommentID string `json:"comment_id"`
		Role      string `json:"role"`
	}
	if err := e.UnmarshalData(&data); err != nil {
		return errs.Wrap(errs.ValidationError, err, "comment_edited: invalid data")
	}
	if data.Role == "" {
		return nil
	}
	for i := range t.EvidenceRefs {
		if t.EvidenceRefs[i].ID == data.CommentID && t.EvidenceRefs[i].SourceType == snapshot.SourceTypeComment {
			t.EvidenceRefs[i].Role = data.Role
			return nil
		}
	}
	t.EvidenceRefs = append(t.EvidenceRefs, snapshot.EvidenceRef{
		ID: data.CommentID, Role: data.Role, SourceType: snapshot.SourceTypeComment,
	})
	return nil
}

func applyCommentDeleted(t *snapshot.Task, e event.Event) error {
	var data struct {
		CommentID string `json:"comment_id"`
	}
	if err := e.UnmarshalData(&data); err != nil {
		return errs.Wrap(errs.ValidationError, err, "comment_deleted: invalid data")
	}
	kept := t.EvidenceRefs[:0]
	for _, ref := range t.EvidenceRefs {
		if ref.ID == data.CommentID && ref.SourceType == snapshot.SourceTypeComment {
			continue
		}
		kept = append(kept, ref)
	}
	t.EvidenceRefs = kept
	if t.CommentCount > 0 {
		t.CommentCount--
	}
	return nil
}

func applyRelationshipAdded(t *snapshot.Task, e event.Event) error {
	var data struct {
		Type         string `json:"type"`
		TargetTaskID string `json:"target_task_id"`
		Note         string `json:"note"`
	}
	if err := e.UnmarshalData(&data); err != nil {
		return errs.Wrap(errs.ValidationError, err, "relationship_added: invalid data")
	}
	t.RelationshipsOut = append(t.RelationshipsOut, snapshot.Relationship{
		Type: data.Type, TargetTaskID: data.TargetTaskID,
		CreatedAt: e.TS, CreatedBy: e.Actor, Note: data.Note,
	})
	return nil
}

func applyRelationshipRemoved(t *snapshot.Task, e event.Event) error {
	var data struct {
		Type         string `json:"type"`
		TargetTaskID string `json:"target_task_id"`
	}
	if err := e.UnmarshalData(&data); err != nil {
		return errs.Wrap(errs.ValidationError, err, "relationship_removed: invalid data")
	}
	for i, r := range t.RelationshipsOut {
		if r.Type == data.Type && r.TargetTaskID == data.TargetTaskID {
			t.RelationshipsOut = append(t.RelationshipsOut[:i], t.RelationshipsOut[i+1:]...)
			return nil
		}
	}
	return nil
}

func applyArtifactAttached(t *snapshot.Task, e event.Event) error {
	var data struct {
		ID   string `json:"id"`
		Role string `json:"role"`
	}
	if err := e.UnmarshalData(&data); err != nil {
		return errs.Wrap(errs.ValidationError, err, "artifact_attached: invalid data")
	}
	for _, ref := range t.EvidenceRefs {
		if ref.ID == data.ID && ref.SourceType == snapshot.SourceTypeArtifact {
			return nil
		}
	}
	t.EvidenceRefs = append(t.EvidenceRefs, snapshot.EvidenceRef{
		ID: data.ID, Role: data.Role, SourceType: snapshot.SourceTypeArtifact,
	})
	return nil
}

func applyBranchLinked(t *snapshot.Task, e event.Event) error {
	var data struct {
		Branch string `json:"branch"`
		Repo   string `json:"repo"`
	}
	if err := e.UnmarshalData(&data); err != nil {
		return errs.Wrap(errs.ValidationError, err, "branch_linked: invalid data")
	}
	t.BranchLinks = append(t.BranchLinks, snapshot.BranchLink{
		Branch: data.Branch, Repo: data.Repo, LinkedAt: e.TS, LinkedBy: e.Actor,
	})
	return nil
}

func applyBranchUnlinked(t *snapshot.Task, e event.Event) error {
	var data struct {
		Branch string `json:"branch"`
	}
	if err := e.UnmarshalData(&data); err != nil {
		return errs.Wrap(errs.ValidationError, err, "branch_unlinked: invalid data")
	}
	for i, bl := range t.BranchLinks {
		if bl.Branch == data.Branch {
			t.BranchLinks = append(t.BranchLinks[:i], t.BranchLinks[i+1:]...)
			return nil
		}
	}
	return nil
}

func applyShortIDAssigned(t *snapshot.Task, e event.Event) error {
	var data struct {
		ShortID string `json:"short_id"`
	}
	if err := e.UnmarshalData(&data); err != nil {
		return errs.Wrap(errs.ValidationError, err, "task_short_id_assigned: invalid data")
	}
	t.ShortID = data.ShortID
	return nil
}

func applyProcessStarted(t *snapshot.Task, e event.Event) error {
	var data struct {
		ProcessType string `json:"process_type"`
		CommitSHA   string `json:"commit_sha"`
	}
	if err := e.UnmarshalData(&data); err != nil {
		return errs.Wrap(errs.ValidationError, err, "process_started: invalid data")
	}
	t.ActiveProcesses = append(t.ActiveProcesses, snapshot.ActiveProcess{
		ProcessType: data.ProcessType, StartedEventID: e.ID, StartedAt: e.TS, CommitSHA: data.CommitSHA,
	})
	return nil
}

func applyProcessEnded(t *snapshot.Task, e event.Event) error {
	var data struct {
		ProcessType    string `json:"process_type"`
		StartedEventID string `json:"started_event_id"`
	}
	if err := e.UnmarshalData(&data); err != nil {
		return errs.Wrap(errs.ValidationError, err, "process ended: invalid data")
	}
	kept := t.ActiveProcesses[:0]
	for _, p := range t.ActiveProcesses {
		if p.ProcessType == data.ProcessType && (data.StartedEventID == "" || p.StartedEventID == data.StartedEventID) {
			continue
		}
		kept = append(kept, p)
	}
	t.ActiveProcesses = kept
	return nil
}

func cloneTask(t *snapshot.Task) *snapshot.Task {
	c := *t
	c.Tags = append([]string(nil), t.Tags...)
	c.RelationshipsOut = append([]snapshot.Relationship(nil), t.RelationshipsOut...)
	c.EvidenceRefs = append([]snapshot.EvidenceRef(nil), t.EvidenceRefs...)
	c.BranchLinks = append([]snapshot.BranchLink(nil), t.BranchLinks...)
	c.ActiveProcesses = append([]snapshot.ActiveProcess(nil), t.ActiveProcesses...)
	c.CustomFields = make(map[string]any, len(t.CustomFields))
	for k, v := range t.CustomFields {
		c.CustomFields[k] = v
	}
	if t.AssignedTo != nil {
		a := *t.AssignedTo
		c.AssignedTo = &a
	}
	if t.DoneAt != nil {
		d := *t.DoneAt
		c.DoneAt = &d
	}
	return &c
}

var (
	unknownTypesMu     sync.Mutex
	unknownTypesLogged = map[string]bool{}
)

func logUnknownType(t string) {
	unknownTypesMu.Lock()
	defer unknownTypesMu.Unlock()
	if unknownTypesLogged[t] {
		return
	}
	unknownTypesLogged[t] = true
	slog.Warn("ignoring unknown built-in event type", "type", t)
}
