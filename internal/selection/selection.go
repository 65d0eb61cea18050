// Package selection implements the "next task" selection engine
// (spec.md §4.8): a pure function over an in-memory snapshot list, plus
// the claim transition BFS.
package selection

import (
	"sort"

	"github.com/lattice-dev/lattice/internal/config"
	"github.com/lattice-dev/lattice/internal/event"
	"github.com/lattice-dev/lattice/internal/snapshot"
)

// DefaultReadyStatuses is the ready pool's default status set when the
// caller supplies none (spec.md §4.8).
var DefaultReadyStatuses = []string{"backlog", "planned"}

var priorityRank = map[string]int{"critical": 0, "high": 1, "medium": 2, "low": 3}
var urgencyRank = map[string]int{"immediate": 0, "high": 1, "normal": 2, "low": 3}

func rank(table map[string]int, v string) int {
	if r, ok := table[v]; ok {
		return r
	}
	return len(table) // unknown values sort last
}

// less orders two tasks by descending priority: priority rank, then
// urgency rank, then task ID lexicographic (oldest wins, since IDs are
// timestamp-sortable).
func less(a, b *snapshot.Task) bool {
	if pa, pb := rank(priorityRank, a.Priority), rank(priorityRank, b.Priority); pa != pb {
		return pa < pb
	}
	if ua, ub := rank(urgencyRank, a.Urgency), rank(urgencyRank, b.Urgency); ua != ub {
		return ua < ub
	}
	return a.ID < b.ID
}

func sortedCopy(tasks []*snapshot.Task) []*snapshot.Task {
	out := append([]*snapshot.Task(nil), tasks...)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// SelectNext implements spec.md §4.8's algorithm: resume-first when
// actor is non-zero, then the ready pool, ordered by priority/urgency/
// ID. Returns nil if nothing qualifies.
func SelectNext(tasks []*snapshot.Task, actor event.Actor, readyStatuses []string) *snapshot.Task {
	if len(readyStatuses) == 0 {
		readyStatuses = DefaultReadyStatuses
	}
	readySet := map[string]bool{}
	for _, s := range readyStatuses {
		readySet[s] = true
	}

	if !actor.IsZero() {
		var resumable []*snapshot.Task
		for _, t := range tasks {
			if (t.Status == "in_progress" || t.Status == "in_planning") && t.AssignedTo != nil && t.AssignedTo.Equal(actor) {
				resumable = append(resumable, t)
			}
		}
		if len(resumable) > 0 {
			return sortedCopy(resumable)[0]
		}
	}

	var pool []*snapshot.Task
	for _, t := range tasks {
		if !readySet[t.Status] {
			continue
		}
		if t.Type == "epic" {
			continue
		}
		if t.AssignedTo != nil && (actor.IsZero() || !t.AssignedTo.Equal(actor)) {
			continue
		}
		pool = append(pool, t)
	}
	if len(pool) == 0 {
		return nil
	}
	return sortedCopy(pool)[0]
}

// ClaimPath computes the shortest sequence of intermediate statuses
// from fromStatus to "in_progress" via BFS over cfg's transition graph,
// capped at depth 3 (spec.md §4.8 "Claim transition path"). Returns an
// empty, non-nil path if fromStatus already is in_progress (no hops
// needed), and nil if no path exists within the depth cap.
func ClaimPath(cfg config.Config, fromStatus string) []string {
	const target = "in_progress"
	if fromStatus == target {
		return []string{}
	}

	const maxDepth = 3
	type node struct {
		status string
		path   []string
	}
	visited := map[string]bool{fromStatus: true}
	queue := []node{{status: fromStatus, path: nil}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if len(cur.path) >= maxDepth {
			continue
		}
		for _, next := range cfg.Workflow.Transitions[cur.status] {
			if visited[next] {
				continue
			}
			nextPath := append(append([]string(nil), cur.path...), next)
			if next == target {
				return nextPath
			}
			visited[next] = true
			queue = append(queue, node{status: next, path: nextPath})
		}
	}
	return nil
}
