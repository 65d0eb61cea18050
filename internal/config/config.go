// Package config loads and saves .lattice/config.json and layers
// environment variable overrides on top of it, following the teacher's
// defaults-then-file-then-env layering (viper) even though the
// authoritative on-disk shape here is the fixed JSON contract of
// spec.md §6.1, not the teacher's TOML.
package config

import (
	"encoding/json"
	"os"

	"github.com/lattice-dev/lattice/internal/canonical"
	"github.com/lattice-dev/lattice/internal/fsops"
)

// SchemaVersion is config.json's schema_version (spec.md §6.1).
const SchemaVersion = 1

// DefaultUniversalTargets are the statuses reachable from any status
// when config.workflow.universal_targets is unset (spec.md §4.7).
var DefaultUniversalTargets = []string{"needs_human", "cancelled"}

// DefaultStatuses is the canonical workflow order referenced by
// spec.md §4.1 for backward-transition detection, and used as the
// default status set for new projects.
var DefaultStatuses = []string{
	"backlog", "in_planning", "planned", "in_progress",
	"review", "done", "blocked", "needs_human", "cancelled",
}

// CompletionPolicy gates a target status behind evidence requirements
// (spec.md §4.7).
type CompletionPolicy struct {
	RequireRoles    []string `json:"require_roles,omitempty"`
	RequireAssigned bool     `json:"require_assigned,omitempty"`
}

// Workflow is the statuses/transitions/policy sub-object of config.json.
type Workflow struct {
	Statuses          []string                     `json:"statuses"`
	Transitions       map[string][]string          `json:"transitions"`
	UniversalTargets  []string                     `json:"universal_targets,omitempty"`
	WIPLimits         map[string]int               `json:"wip_limits,omitempty"`
	Roles             []string                     `json:"roles,omitempty"`
	CompletionPolicies map[string]CompletionPolicy `json:"completion_policies,omitempty"`
}

// Resource describes a pre-declared resource's defaults, auto-created
// on first acquire (spec.md §4.6 "auto-create").
type Resource struct {
	MaxHolders  int    `json:"max_holders"`
	TTLSeconds  int    `json:"ttl_seconds"`
	Description string `json:"description,omitempty"`
}

// Dashboard holds settings for the (out-of-scope) dashboard server that
// the core only carries as opaque configuration.
type Dashboard struct {
	OTelEndpoint string `json:"otel_endpoint,omitempty"`
}

// Config is the full contents of .lattice/config.json (spec.md §6.1).
type Config struct {
	SchemaVersion    int                  `json:"schema_version"`
	DefaultStatus    string               `json:"default_status"`
	DefaultPriority  string               `json:"default_priority"`
	TaskTypes        []string             `json:"task_types,omitempty"`
	Workflow         Workflow             `json:"workflow"`
	ProjectCode      string               `json:"project_code,omitempty"`
	SubprojectCode   string               `json:"subproject_code,omitempty"`
	InstanceID       string               `json:"instance_id,omitempty"`
	InstanceName     string               `json:"instance_name,omitempty"`
	DefaultActor     string               `json:"default_actor,omitempty"`
	Model            string               `json:"model,omitempty"`
	HeartbeatSeconds int                  `json:"heartbeat,omitempty"`
	Resources        map[string]Resource  `json:"resources,omitempty"`
	Hooks            map[string]string    `json:"hooks,omitempty"`
	Dashboard        *Dashboard           `json:"dashboard,omitempty"`
}

// Default returns a new project's default configuration.
func Default() Config {
	return Config{
		SchemaVersion:   SchemaVersion,
		DefaultStatus:   "backlog",
		DefaultPriority: "medium",
		TaskTypes:       []string{"task", "bug", "feature", "epic", "chore"},
		Workflow: Workflow{
			Statuses: append([]string(nil), DefaultStatuses...),
			Transitions: map[string][]string{
				"backlog":     {"in_planning", "planned", "cancelled"},
				"in_planning": {"planned", "needs_human", "cancelled"},
				"planned":     {"in_progress", "review", "blocked", "needs_human", "cancelled"},
				"in_progress": {"review", "blocked", "needs_human", "cancelled"},
				"review":      {"done", "in_progress", "needs_human", "cancelled"},
				"done":        {},
				"blocked":     {"in_planning", "planned", "in_progress", "cancelled"},
				"needs_human": {"in_planning", "planned", "in_progress", "review", "cancelled"},
				"cancelled":   {},
			},
			UniversalTargets: append([]string(nil), DefaultUniversalTargets...),
		},
	}
}

// Load reads config.json from path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return Config{}, err
	}
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Save atomically writes c to path in canonical JSON form.
func Save(path string, c Config) error {
	data, err := canonical.Indented(c)
	if err != nil {
		return err
	}
	return fsops.AtomicWrite(path, data)
}
