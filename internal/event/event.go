package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lattice-dev/lattice/internal/canonical"
)

// SchemaVersion is the event schema version written to every event
// (spec.md §3 "Event").
const SchemaVersion = 1

// Built-in event types (spec.md §3).
const (
	TypeTaskCreated        = "task_created"
	TypeStatusChanged       = "status_changed"
	TypeAssignmentChanged   = "assignment_changed"
	TypeFieldUpdated        = "field_updated"
	TypeCommentAdded        = "comment_added"
	TypeCommentEdited       = "comment_edited"
	TypeCommentDeleted      = "comment_deleted"
	TypeReactionAdded       = "reaction_added"
	TypeReactionRemoved     = "reaction_removed"
	TypeRelationshipAdded   = "relationship_added"
	TypeRelationshipRemoved = "relationship_removed"
	TypeArtifactAttached    = "artifact_attached"
	TypeBranchLinked        = "branch_linked"
	TypeBranchUnlinked      = "branch_unlinked"
	TypeTaskArchived        = "task_archived"
	TypeTaskUnarchived      = "task_unarchived"
	TypeTaskShortIDAssigned = "task_short_id_assigned"
	TypeProcessStarted      = "process_started"
	TypeProcessCompleted    = "process_completed"
	TypeProcessFailed       = "process_failed"
	TypeGitEvent            = "git_event"

	TypeResourceCreated   = "resource_created"
	TypeResourceAcquired  = "resource_acquired"
	TypeResourceReleased  = "resource_released"
	TypeResourceHeartbeat = "resource_heartbeat"
	TypeResourceExpired   = "resource_expired"
)

// CustomTypePrefix is the required prefix for user-defined event types
// (spec.md §3 "Custom event types").
const CustomTypePrefix = "x_"

// IsCustom reports whether t is a custom ("x_"-prefixed) event type.
func IsCustom(t string) bool {
	return strings.HasPrefix(t, CustomTypePrefix)
}

// lifecycleTypes is the subset mirrored to the global lifecycle log
// (spec.md §3 "Lifecycle events", invariant I5).
var lifecycleTypes = map[string]bool{
	TypeTaskCreated:    true,
	TypeTaskArchived:   true,
	TypeTaskUnarchived: true,
}

// IsLifecycle reports whether t belongs to the lifecycle-class subset.
// Custom types are never lifecycle events even if one happened to be
// named "x_task_created"; IsLifecycle only ever matches built-ins.
func IsLifecycle(t string) bool {
	return !IsCustom(t) && lifecycleTypes[t]
}

// Provenance records why an event happened, beyond the bare actor
// (spec.md §3 "Event", optional field).
type Provenance struct {
	TriggeredBy string `json:"triggered_by,omitempty"`
	OnBehalfOf  string `json:"on_behalf_of,omitempty"`
	Reason      string `json:"reason,omitempty"`

	// Extra carries any additional provenance keys verbatim, per
	// DESIGN.md's Open Question decision: unknown keys are passed
	// through on read and preserved on write, never interpreted.
	Extra map[string]json.RawMessage `json:"-"`
}

// MarshalJSON flattens Extra alongside the three documented fields.
func (p Provenance) MarshalJSON() ([]byte, error) {
	m := map[string]json.RawMessage{}
	for k, v := range p.Extra {
		m[k] = v
	}
	if p.TriggeredBy != "" {
		b, _ := json.Marshal(p.TriggeredBy)
		m["triggered_by"] = b
	}
	if p.OnBehalfOf != "" {
		b, _ := json.Marshal(p.OnBehalfOf)
		m["on_behalf_of"] = b
	}
	if p.Reason != "" {
		b, _ := json.Marshal(p.Reason)
		m["reason"] = b
	}
	return json.Marshal(m)
}

// UnmarshalJSON extracts the three documented fields and stashes
// everything else in Extra.
func (p *Provenance) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	extract := func(key string) string {
		raw, ok := m[key]
		if !ok {
			return ""
		}
		var s string
		_ = json.Unmarshal(raw, &s)
		delete(m, key)
		return s
	}
	p.TriggeredBy = extract("triggered_by")
	p.OnBehalfOf = extract("on_behalf_of")
	p.Reason = extract("reason")
	if len(m) > 0 {
		p.Extra = m
	}
	return nil
}

// Event is an immutable append-only record (spec.md §3 "Event").
type Event struct {
	SchemaVersion int             `json:"schema_version"`
	ID            string          `json:"id"`
	TS            time.Time       `json:"ts"`
	Type          string          `json:"type"`
	TaskID        string          `json:"task_id,omitempty"`
	ResourceID    string          `json:"resource_id,omitempty"`
	Actor         Actor           `json:"actor"`
	Data          json.RawMessage `json:"data"`

	Model      string      `json:"model,omitempty"`
	Session    string      `json:"session,omitempty"`
	Provenance *Provenance `json:"provenance,omitempty"`
}

// New constructs a well-formed Event for a task, stamping
// SchemaVersion, ID, and TS.
func New(id string, ts time.Time, typ, taskID string, actor Actor, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("event: marshal data: %w", err)
	}
	return Event{
		SchemaVersion: SchemaVersion,
		ID:            id,
		TS:            ts,
		Type:          typ,
		TaskID:        taskID,
		Actor:         actor,
		Data:          raw,
	}, nil
}

// NewResourceEvent is New's resource-event counterpart.
func NewResourceEvent(id string, ts time.Time, typ, resourceID string, actor Actor, data any) (Event, error) {
	e, err := New(id, ts, typ, "", actor, data)
	if err != nil {
		return Event{}, err
	}
	e.ResourceID = resourceID
	return e, nil
}

// Serialize renders e as a canonical single JSONL line (spec.md §4.1).
func (e Event) Serialize() ([]byte, error) {
	return canonical.Line(e)
}

// Marshal produces the same bytes as Serialize but without the
// trailing newline, for contexts (hook stdin, HTTP bodies) that want a
// bare JSON document.
func (e Event) Marshal() ([]byte, error) {
	line, err := e.Serialize()
	if err != nil {
		return nil, err
	}
	return line[:len(line)-1], nil
}

// Parse decodes a single JSONL line into an Event.
func Parse(line []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(line, &e); err != nil {
		return Event{}, fmt.Errorf("event: parse: %w", err)
	}
	return e, nil
}

// UnmarshalData decodes e.Data into dst.
func (e Event) UnmarshalData(dst any) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, dst)
}
