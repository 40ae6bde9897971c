package models

import "time"

// Incident is a Sentinel security incident. List queries populate the core
// fields only; detail queries fill in the closed/activity times, URL,
// classification and labels as well.
type Incident struct {
	Number           int
	Title            string
	Severity         string
	Status           string
	CreatedTime      time.Time
	LastModifiedTime time.Time
	Description      string
	Owner            string
	AlertCount       int
	EntityCount      int

	// Detail-only fields.
	ClosedTime           time.Time
	FirstActivityTime    time.Time
	LastActivityTime     time.Time
	IncidentURL          string
	Classification       string
	ClassificationReason string
	Labels               []string
}

// ToMap renders the incident for serialization. View projections filter the
// keys afterwards, so every field is always present here.
func (i *Incident) ToMap() map[string]any {
	return map[string]any{
		"number":                 i.Number,
		"title":                  i.Title,
		"severity":               i.Severity,
		"status":                 i.Status,
		"created_time":           isoOrNil(i.CreatedTime),
		"last_modified_time":     isoOrNil(i.LastModifiedTime),
		"description":            i.Description,
		"owner":                  i.Owner,
		"alert_count":            i.AlertCount,
		"entity_count":           i.EntityCount,
		"closed_time":            isoOrNil(i.ClosedTime),
		"first_activity_time":    isoOrNil(i.FirstActivityTime),
		"last_activity_time":     isoOrNil(i.LastActivityTime),
		"incident_url":           i.IncidentURL,
		"classification":         i.Classification,
		"classification_reason":  i.ClassificationReason,
		"labels":                 labelsOrNil(i.Labels),
		"created_time_ago":       RelativeTime(i.CreatedTime),
		"last_modified_time_ago": RelativeTime(i.LastModifiedTime),
	}
}

// Alert is a Sentinel security alert row.
type Alert struct {
	Name              string
	DisplayName       string
	Severity          string
	Status            string
	TimeGenerated     time.Time
	Description       string
	Tactics           string
	Techniques        string
	ProviderName      string
	CompromisedEntity string
	SystemAlertID     string
}

// ToMap renders the alert for serialization.
func (a *Alert) ToMap() map[string]any {
	return map[string]any{
		"name":               a.Name,
		"display_name":       a.DisplayName,
		"severity":           a.Severity,
		"status":             a.Status,
		"time_generated":     isoOrNil(a.TimeGenerated),
		"description":        a.Description,
		"tactics":            a.Tactics,
		"techniques":         a.Techniques,
		"provider_name":      a.ProviderName,
		"compromised_entity": a.CompromisedEntity,
		"system_alert_id":    a.SystemAlertID,
		"time_generated_ago": RelativeTime(a.TimeGenerated),
	}
}

// Entity is a single entity attached to an incident, reduced to the
// type-specific display name.
type Entity struct {
	EntityType string `json:"entity_type"`
	EntityName string `json:"entity_name"`
}

// TrendPoint is one bucket of an alert trend aggregation. Severity is empty
// for the total (non-split) trend.
type TrendPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Count     int       `json:"count"`
	Severity  string    `json:"severity"`
}

// EntityCount is a ranked entity with its occurrence count.
type EntityCount struct {
	EntityType string `json:"entity_type"`
	EntityName string `json:"entity_name"`
	Count      int    `json:"count"`
}

func isoOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func labelsOrNil(labels []string) any {
	if labels == nil {
		return nil
	}
	return labels
}
