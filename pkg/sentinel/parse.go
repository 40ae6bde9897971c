package sentinel

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/arclight-sec/sentinel-assistant/pkg/models"
)

// Row parsing is column-name driven and defensive: the Log Analytics API
// returns loosely typed cells (numbers as float64, dynamics as JSON strings
// or decoded values), and missing columns must not break a query.

func rowMaps(tables []Table) []map[string]any {
	if len(tables) == 0 {
		return nil
	}
	table := tables[0]
	rows := make([]map[string]any, 0, len(table.Rows))
	for _, row := range table.Rows {
		m := make(map[string]any, len(table.Columns))
		for i, col := range table.Columns {
			if i < len(row) {
				m[col.Name] = row[i]
			}
		}
		rows = append(rows, m)
	}
	return rows
}

func parseIncidents(tables []Table, detail bool) []*models.Incident {
	var incidents []*models.Incident
	for _, row := range rowMaps(tables) {
		inc := &models.Incident{
			Number:           cellInt(row["IncidentNumber"]),
			Title:            cellString(row["Title"]),
			Severity:         cellString(row["Severity"]),
			Status:           cellString(row["Status"]),
			CreatedTime:      cellTime(row["CreatedTime"]),
			LastModifiedTime: cellTime(row["LastModifiedTime"]),
			Description:      cellString(row["Description"]),
			Owner:            parseOwner(row["Owner"]),
			AlertCount:       parseAlertCount(row["AlertIds"]),
			// EntityCount stays 0 here; the detail lookup backfills it
			// from the entity sub-query.
		}
		if detail {
			inc.ClosedTime = cellTime(row["ClosedTime"])
			inc.FirstActivityTime = cellTime(row["FirstActivityTime"])
			inc.LastActivityTime = cellTime(row["LastActivityTime"])
			inc.IncidentURL = cellString(row["IncidentUrl"])
			inc.Classification = cellString(row["Classification"])
			inc.ClassificationReason = cellString(row["ClassificationReason"])
			inc.Labels = parseLabels(row["Labels"])
		}
		incidents = append(incidents, inc)
	}
	return incidents
}

func parseAlerts(tables []Table) []*models.Alert {
	var alerts []*models.Alert
	for _, row := range rowMaps(tables) {
		alerts = append(alerts, &models.Alert{
			Name:              cellString(row["AlertName"]),
			DisplayName:       cellString(row["DisplayName"]),
			Severity:          cellString(row["AlertSeverity"]),
			Status:            cellString(row["Status"]),
			TimeGenerated:     cellTime(row["TimeGenerated"]),
			Description:       cellString(row["Description"]),
			Tactics:           cellString(row["Tactics"]),
			Techniques:        cellString(row["Techniques"]),
			ProviderName:      cellString(row["ProviderName"]),
			CompromisedEntity: cellString(row["CompromisedEntity"]),
			SystemAlertID:     cellString(row["SystemAlertId"]),
		})
	}
	return alerts
}

func parseEntities(tables []Table) []models.Entity {
	var entities []models.Entity
	for _, row := range rowMaps(tables) {
		entities = append(entities, models.Entity{
			EntityType: cellString(row["EntityType"]),
			EntityName: cellString(row["EntityName"]),
		})
	}
	return entities
}

func parseTrendPoints(tables []Table) []models.TrendPoint {
	var points []models.TrendPoint
	for _, row := range rowMaps(tables) {
		points = append(points, models.TrendPoint{
			Timestamp: cellTime(row["TimeGenerated"]),
			Count:     cellInt(row["Count"]),
			Severity:  cellString(row["AlertSeverity"]),
		})
	}
	return points
}

func parseEntityCounts(tables []Table) []models.EntityCount {
	var counts []models.EntityCount
	for _, row := range rowMaps(tables) {
		counts = append(counts, models.EntityCount{
			EntityType: cellString(row["EntityType"]),
			EntityName: cellString(row["EntityName"]),
			Count:      cellInt(row["AlertCount"]),
		})
	}
	return counts
}

// parseOwner extracts assignedTo from the Owner dynamic column, which may
// arrive as a JSON string or an already-decoded object.
func parseOwner(v any) string {
	switch owner := v.(type) {
	case string:
		if owner == "" {
			return ""
		}
		var decoded map[string]any
		if err := json.Unmarshal([]byte(owner), &decoded); err != nil {
			return ""
		}
		return cellString(decoded["assignedTo"])
	case map[string]any:
		return cellString(owner["assignedTo"])
	default:
		return ""
	}
}

// parseAlertCount counts entries in the AlertIds dynamic column.
func parseAlertCount(v any) int {
	switch ids := v.(type) {
	case []any:
		return len(ids)
	case string:
		if ids == "" {
			return 0
		}
		var decoded []any
		if err := json.Unmarshal([]byte(ids), &decoded); err != nil {
			return 0
		}
		return len(decoded)
	default:
		return 0
	}
}

// parseLabels flattens the Labels dynamic column, where each entry is either
// a {"labelName": ...} object or a bare string. A missing or malformed
// column yields nil, which serializes as null.
func parseLabels(v any) []string {
	var entries []any
	switch labels := v.(type) {
	case []any:
		entries = labels
	case string:
		if labels == "" {
			return nil
		}
		if err := json.Unmarshal([]byte(labels), &entries); err != nil {
			return nil
		}
	default:
		return nil
	}
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		if m, ok := entry.(map[string]any); ok {
			if name, ok := m["labelName"].(string); ok {
				out = append(out, name)
				continue
			}
		}
		out = append(out, cellString(entry))
	}
	return out
}

func cellString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprintf("%v", s)
	}
}

func cellInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0
		}
		return int(i)
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0
		}
		return i
	default:
		return 0
	}
}

// cellTime parses a timestamp cell, falling back to the epoch on anything it
// cannot read so downstream formatting never sees a zero value from a row
// that did have the column.
func cellTime(v any) time.Time {
	epoch := time.Unix(0, 0).UTC()
	switch t := v.(type) {
	case nil:
		return epoch
	case time.Time:
		return t.UTC()
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			// Some rows omit the zone suffix; treat those as UTC.
			parsed, err = time.Parse("2006-01-02T15:04:05", t)
			if err != nil {
				return epoch
			}
		}
		return parsed.UTC()
	default:
		return epoch
	}
}
