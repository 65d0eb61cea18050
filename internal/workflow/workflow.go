// Package workflow implements transition validation and completion
// policy evaluation (spec.md §4.7).
package workflow

import (
	"sort"

	"github.com/lattice-dev/lattice/internal/config"
	"github.com/lattice-dev/lattice/internal/snapshot"
)

// universalTargets returns cfg's configured universal targets, or the
// spec default when unset.
func universalTargets(cfg config.Config) []string {
	if len(cfg.Workflow.UniversalTargets) > 0 {
		return cfg.Workflow.UniversalTargets
	}
	return config.DefaultUniversalTargets
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ValidateTransition reports whether `to` is reachable from `from`:
// either listed in config.workflow.transitions[from], or a universal
// target (spec.md §4.7).
func ValidateTransition(cfg config.Config, from, to string) bool {
	if contains(universalTargets(cfg), to) {
		return true
	}
	for _, candidate := range cfg.Workflow.Transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// CheckWorkflowInvariants validates the structural invariants spec.md
// §4.7 requires of every project config: every status has a transition
// list entry, every non-terminal status has some outbound transition
// (explicit or universal), every transition target is a defined
// status, and every status is reachable (default, universal, or via
// some explicit transition).
func CheckWorkflowInvariants(cfg config.Config) []string {
	var problems []string
	statusSet := map[string]bool{}
	for _, s := range cfg.Workflow.Statuses {
		statusSet[s] = true
	}

	ut := universalTargets(cfg)
	reachable := map[string]bool{}
	if cfg.DefaultStatus != "" {
		reachable[cfg.DefaultStatus] = true
	}
	for _, u := range ut {
		reachable[u] = true
	}

	for _, s := range cfg.Workflow.Statuses {
		targets, ok := cfg.Workflow.Transitions[s]
		if !ok {
			problems = append(problems, "status "+s+" has no transitions entry")
			continue
		}
		hasUniversalOut := false
		for _, u := range ut {
			if u != s {
				hasUniversalOut = true
				break
			}
		}
		if len(targets) == 0 && !hasUniversalOut {
			problems = append(problems, "status "+s+" is non-terminal-looking but has no outbound transition")
		}
		for _, to := range targets {
			if !statusSet[to] {
				problems = append(problems, "status "+s+" transitions to undefined status "+to)
				continue
			}
			reachable[to] = true
		}
	}

	for _, s := range cfg.Workflow.Statuses {
		if !reachable[s] {
			problems = append(problems, "status "+s+" is unreachable (not default, not universal, no incoming transition)")
		}
	}

	sort.Strings(problems)
	return problems
}

// Validate checks snapshot against the completion policy configured
// for targetStatus (spec.md §4.7). Universal targets always bypass
// policy gating; a status with no configured policy also passes.
func Validate(cfg config.Config, snap *snapshot.Task, targetStatus string) (ok bool, failures []string) {
	if contains(universalTargets(cfg), targetStatus) {
		return true, nil
	}
	policy, exists := cfg.Workflow.CompletionPolicies[targetStatus]
	if !exists {
		return true, nil
	}

	for _, role := range policy.RequireRoles {
		if !hasEvidenceWithRole(snap, role) {
			failures = append(failures, "missing evidence with role "+role)
		}
	}
	if policy.RequireAssigned && snap.AssignedTo == nil {
		failures = append(failures, "task must be assigned")
	}
	return len(failures) == 0, failures
}

func hasEvidenceWithRole(snap *snapshot.Task, role string) bool {
	for _, ref := range snap.EvidenceRefs {
		if ref.Role == role {
			return true
		}
	}
	return false
}

// ValidRoles derives the accepted role set for comment/artifact
// attachment (spec.md §4.7 "Role validation on write"):
// workflow.roles ∪ every completion_policies[*].require_roles. An
// empty result means "no roles configured anywhere" — callers must
// then accept any role, per spec (backward compatibility).
func ValidRoles(cfg config.Config) []string {
	set := map[string]bool{}
	for _, r := range cfg.Workflow.Roles {
		set[r] = true
	}
	for _, policy := range cfg.Workflow.CompletionPolicies {
		for _, r := range policy.RequireRoles {
			set[r] = true
		}
	}
	roles := make([]string, 0, len(set))
	for r := range set {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return roles
}

// ValidateRole reports whether role is acceptable given cfg's
// configured role set. An empty configured set accepts any role.
func ValidateRole(cfg config.Config, role string) bool {
	valid := ValidRoles(cfg)
	if len(valid) == 0 {
		return true
	}
	return contains(valid, role)
}
