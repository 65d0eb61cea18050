// Package snapshot defines the materialized task/resource views
// (spec.md §3 "Task snapshot", "Resource snapshot") and their canonical
// on-disk serialization.
package snapshot

import (
	"time"

	"github.com/lattice-dev/lattice/internal/canonical"
	"github.com/lattice-dev/lattice/internal/event"
)

// SchemaVersion is the snapshot schema version (spec.md §3).
const SchemaVersion = 1

// Relationship is one outgoing edge from a task (spec.md §3).
type Relationship struct {
	Type          string      `json:"type"`
	TargetTaskID  string      `json:"target_task_id"`
	CreatedAt     time.Time   `json:"created_at"`
	CreatedBy     event.Actor `json:"created_by"`
	Note          string      `json:"note,omitempty"`
}

// EvidenceRef links a role-tagged artifact or comment for policy gating
// (spec.md §3, §4.1 "Evidence ref rules").
type EvidenceRef struct {
	ID         string `json:"id"`
	Role       string `json:"role,omitempty"`
	SourceType string `json:"source_type"` // "artifact" | "comment"
}

const (
	SourceTypeArtifact = "artifact"
	SourceTypeComment  = "comment"
)

// BranchLink records a git branch linked to a task (spec.md §3).
type BranchLink struct {
	Branch   string      `json:"branch"`
	Repo     string      `json:"repo,omitempty"`
	LinkedAt time.Time   `json:"linked_at"`
	LinkedBy event.Actor `json:"linked_by"`
}

// ActiveProcess records a running worker subprocess (spec.md §3, §9).
type ActiveProcess struct {
	ProcessType    string    `json:"process_type"`
	StartedEventID string    `json:"started_event_id"`
	StartedAt      time.Time `json:"started_at"`
	CommitSHA      string    `json:"commit_sha,omitempty"`
}

// Task is the materialized view of a task's event log (spec.md §3).
type Task struct {
	SchemaVersion int    `json:"schema_version"`
	ID            string `json:"id"`
	Title         string `json:"title"`
	Status        string `json:"status"`
	Priority      string `json:"priority"`
	Urgency       string `json:"urgency,omitempty"`
	Complexity    string `json:"complexity,omitempty"`
	Type          string `json:"type"`
	Description   string `json:"description,omitempty"`
	Tags          []string `json:"tags,omitempty"`

	AssignedTo *event.Actor `json:"assigned_to,omitempty"`
	ShortID    string       `json:"short_id,omitempty"`

	CreatedBy event.Actor `json:"created_by"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	DoneAt    *time.Time  `json:"done_at,omitempty"`

	RelationshipsOut []Relationship `json:"relationships_out"`
	EvidenceRefs     []EvidenceRef  `json:"evidence_refs"`
	BranchLinks      []BranchLink   `json:"branch_links"`

	CommentCount   int `json:"comment_count"`
	ReopenedCount  int `json:"reopened_count"`

	CustomFields map[string]any `json:"custom_fields"`

	ActiveProcesses []ActiveProcess `json:"active_processes,omitempty"`

	LastEventID string `json:"last_event_id"`
}

// Holder is one lease on a resource (spec.md §3 "Resource snapshot").
type Holder struct {
	Actor     event.Actor `json:"actor"`
	TaskID    string      `json:"task_id,omitempty"`
	AcquiredAt time.Time  `json:"acquired_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
}

// Resource is the materialized view of a resource's event log.
type Resource struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	MaxHolders  int         `json:"max_holders"`
	TTLSeconds  int         `json:"ttl_seconds"`
	Holders     []Holder    `json:"holders"`
	CreatedAt   time.Time   `json:"created_at"`
	CreatedBy   event.Actor `json:"created_by"`
	LastEventID string      `json:"last_event_id"`
}

// SerializeTask renders t as canonical sorted-key, 2-space-indented
// JSON with a trailing newline (spec.md §4.1 "Serialization").
func SerializeTask(t *Task) ([]byte, error) { return canonical.Indented(t) }

// ParseTask decodes canonical JSON into a Task.
func ParseTask(data []byte) (*Task, error) {
	var t Task
	if err := unmarshalStrict(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// SerializeResource and ParseResource are Resource's counterparts.
func SerializeResource(r *Resource) ([]byte, error) { return canonical.Indented(r) }

func ParseResource(data []byte) (*Resource, error) {
	var r Resource
	if err := unmarshalStrict(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
