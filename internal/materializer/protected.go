package materializer

// ProtectedFields are not writable via field_updated (spec.md §3
// invariant I3); each has its own dedicated event type instead.
var ProtectedFields = map[string]bool{
	"schema_version":    true,
	"id":                true,
	"short_id":          true,
	"created_at":        true,
	"created_by":        true,
	"updated_at":        true,
	"done_at":           true,
	"last_event_id":     true,
	"status":            true,
	"assigned_to":       true,
	"relationships_out": true,
	"evidence_refs":     true,
	"branch_links":      true,
	"comment_count":     true,
	"reopened_count":    true,
	"custom_fields":     true,
}
