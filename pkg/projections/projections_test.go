package projections

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleIncident() map[string]any {
	return map[string]any{
		"number":                 7,
		"title":                  "Password spray detected",
		"severity":               "Medium",
		"status":                 "Active",
		"created_time":           "2026-02-18T10:00:00Z",
		"last_modified_time":     "2026-02-18T11:00:00Z",
		"created_time_ago":       "2 hours ago",
		"last_modified_time_ago": "1 hour ago",
		"alert_count":            3,
		"entity_count":           0,
		"owner":                  "analyst@contoso.com",
		"description":            "long description",
		"incident_url":           "https://portal.azure.com/...",
	}
}

func TestApplyIncidentList(t *testing.T) {
	got := Apply(sampleIncident(), "incident_list")

	assert.Contains(t, got, "number")
	assert.Contains(t, got, "entity_count")
	assert.NotContains(t, got, "owner")
	assert.NotContains(t, got, "description")
	assert.NotContains(t, got, "incident_url")
}

func TestApplyIncidentDetail(t *testing.T) {
	got := Apply(sampleIncident(), "incident_detail")

	assert.Contains(t, got, "description")
	assert.Contains(t, got, "owner")
	assert.Contains(t, got, "incident_url")
}

func TestApplySkipsAbsentFields(t *testing.T) {
	got := Apply(map[string]any{"number": 1}, "incident_list")
	assert.Equal(t, map[string]any{"number": 1}, got)
}

func TestApplyUnknownViewIsNoOp(t *testing.T) {
	record := sampleIncident()
	got := Apply(record, "nonexistent_view")
	assert.Equal(t, record, got)
}
