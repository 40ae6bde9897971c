// Package projections trims serialized records down to view-specific field
// allow-lists so tool responses stay small enough for the model context.
//
// entity_count is part of both incident views on purpose: list rows carry 0
// (no cross-table join there), detail rows get the real count from the
// entity sub-query.
package projections

var views = map[string][]string{
	"incident_list": {
		"number",
		"title",
		"severity",
		"status",
		"created_time",
		"alert_count",
		"entity_count",
		"last_modified_time",
		"created_time_ago",
		"last_modified_time_ago",
	},
	"incident_detail": {
		"number",
		"title",
		"severity",
		"status",
		"description",
		"created_time",
		"last_modified_time",
		"closed_time",
		"owner",
		"alert_count",
		"entity_count",
		"labels",
		"classification",
		"classification_reason",
		"first_activity_time",
		"last_activity_time",
		"incident_url",
		"created_time_ago",
		"last_modified_time_ago",
	},
	"alert_list": {
		"name",
		"display_name",
		"severity",
		"status",
		"time_generated",
		"tactics",
		"provider_name",
		"compromised_entity",
		"time_generated_ago",
	},
}

// Apply filters a record to the named view's fields. Unknown views return
// the record unchanged. Fields absent from the record are skipped.
func Apply(record map[string]any, view string) map[string]any {
	fields, ok := views[view]
	if !ok {
		return record
	}
	projected := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := record[f]; ok {
			projected[f] = v
		}
	}
	return projected
}
