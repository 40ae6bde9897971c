// Package kql holds the closed registry of KQL query templates the assistant
// is allowed to run, plus the severity, time-window and limit tables that
// parameterize them. There is no freeform query path: every query the backend
// sees is built from one of these templates.
package kql

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// TemplateID identifies a registered query template.
type TemplateID int

const (
	TemplateListIncidents TemplateID = iota
	TemplateIncidentByNumber
	TemplateIncidentByName
	TemplateIncidentAlerts
	TemplateIncidentEntities
	TemplateListAlerts
	TemplateAlertTrend
	TemplateAlertTrendTotal
	TemplateTopEntities

	templateCount
)

// ErrUnknownTemplate is returned by Build for an unregistered template id.
var ErrUnknownTemplate = errors.New("unknown query template")

// MissingParamsError reports every placeholder the caller failed to supply,
// not just the first one.
type MissingParamsError struct {
	Template string
	Missing  []string
}

func (e *MissingParamsError) Error() string {
	return fmt.Sprintf("missing required parameters for %q: %s",
		e.Template, strings.Join(e.Missing, ", "))
}

type templateSpec struct {
	name    string
	body    string
	timeout time.Duration
}

const (
	simpleTimeout      = 60 * time.Second
	aggregationTimeout = 180 * time.Second
)

// SecurityIncident logs a new row on every modification, so every incident
// template deduplicates with summarize arg_max(LastModifiedTime, *).
// SecurityAlert uses AlertSeverity, not Severity; the column name differs
// from SecurityIncident.
var templates = [templateCount]templateSpec{
	TemplateListIncidents: {
		name:    "list_incidents",
		timeout: simpleTimeout,
		body: `SecurityIncident
| where TimeGenerated > ago({time_range})
| summarize arg_max(LastModifiedTime, *) by IncidentNumber
| where Severity in ({severity_filter})
| project IncidentNumber, Title, Severity, Status, CreatedTime,
          LastModifiedTime, Owner, AlertIds, Description,
          FirstActivityTime, LastActivityTime
| order by CreatedTime desc
| take {limit}`,
	},
	TemplateIncidentByNumber: {
		name:    "get_incident_by_number",
		timeout: simpleTimeout,
		body: `SecurityIncident
| where IncidentNumber == {incident_number}
| summarize arg_max(LastModifiedTime, *) by IncidentNumber
| project IncidentNumber, Title, Severity, Status, Description,
          CreatedTime, LastModifiedTime, ClosedTime, Owner,
          AlertIds, Labels, Classification, ClassificationReason,
          FirstActivityTime, LastActivityTime, IncidentUrl`,
	},
	TemplateIncidentByName: {
		name:    "get_incident_by_name",
		timeout: simpleTimeout,
		body: `SecurityIncident
| summarize arg_max(LastModifiedTime, *) by IncidentNumber
| where Title contains "{incident_name}"
| project IncidentNumber, Title, Severity, Status, Description,
          CreatedTime, LastModifiedTime, ClosedTime, Owner,
          AlertIds, Labels, Classification, ClassificationReason,
          FirstActivityTime, LastActivityTime, IncidentUrl
| take {limit}`,
	},
	TemplateIncidentAlerts: {
		name:    "get_incident_alerts",
		timeout: simpleTimeout,
		body: `let incident_alerts = SecurityIncident
    | where IncidentNumber == {incident_number}
    | summarize arg_max(LastModifiedTime, *) by IncidentNumber
    | mv-expand AlertId = AlertIds
    | project tostring(AlertId);
SecurityAlert
| where SystemAlertId in (incident_alerts)
| project AlertName, DisplayName, AlertSeverity, Status,
          TimeGenerated, Description, Tactics, Techniques,
          ProviderName, CompromisedEntity, SystemAlertId`,
	},
	TemplateIncidentEntities: {
		name:    "get_incident_entities",
		timeout: simpleTimeout,
		body: `let incident_alerts = SecurityIncident
    | where IncidentNumber == {incident_number}
    | summarize arg_max(LastModifiedTime, *) by IncidentNumber
    | mv-expand AlertId = AlertIds
    | project tostring(AlertId);
SecurityAlert
| where SystemAlertId in (incident_alerts)
| extend EntitiesParsed = parse_json(Entities)
| mv-expand Entity = EntitiesParsed
| extend EntityType = tostring(Entity.Type),
         EntityName = case(
             Entity.Type == "account", tostring(Entity.Name),
             Entity.Type == "ip", tostring(Entity.Address),
             Entity.Type == "host", tostring(Entity.HostName),
             Entity.Type == "url", tostring(Entity.Url),
             Entity.Type == "file", tostring(Entity.Name),
             tostring(Entity.Name)
         )
| where isnotempty(EntityName)
| distinct EntityType, EntityName`,
	},
	TemplateListAlerts: {
		name:    "list_alerts",
		timeout: simpleTimeout,
		body: `SecurityAlert
| where TimeGenerated > ago({time_range})
| where AlertSeverity in ({severity_filter})
| project AlertName, DisplayName, AlertSeverity, Status,
          TimeGenerated, Description, Tactics, Techniques,
          ProviderName, CompromisedEntity, SystemAlertId
| order by TimeGenerated desc
| take {limit}`,
	},
	TemplateAlertTrend: {
		name:    "alert_trend",
		timeout: aggregationTimeout,
		body: `SecurityAlert
| where TimeGenerated > ago({time_range})
| where AlertSeverity in ({severity_filter})
| summarize Count=count() by bin(TimeGenerated, {bin_size}), AlertSeverity
| order by TimeGenerated asc`,
	},
	TemplateAlertTrendTotal: {
		name:    "alert_trend_total",
		timeout: aggregationTimeout,
		body: `SecurityAlert
| where TimeGenerated > ago({time_range})
| where AlertSeverity in ({severity_filter})
| summarize Count=count() by bin(TimeGenerated, {bin_size})
| order by TimeGenerated asc`,
	},
	TemplateTopEntities: {
		name:    "top_entities",
		timeout: aggregationTimeout,
		body: `SecurityAlert
| where TimeGenerated > ago({time_range})
| where AlertSeverity in ({severity_filter})
| extend EntitiesParsed = parse_json(Entities)
| mv-expand Entity = EntitiesParsed
| extend EntityType = tostring(Entity.Type),
         EntityName = case(
             Entity.Type == "account", tostring(Entity.Name),
             Entity.Type == "ip", tostring(Entity.Address),
             Entity.Type == "host", tostring(Entity.HostName),
             tostring(Entity.Name)
         )
| where isnotempty(EntityName)
| where EntityType in ("account", "ip", "host")
| summarize AlertCount=count(), Severities=make_set(AlertSeverity)
    by EntityType, EntityName
| order by AlertCount desc
| take {limit}`,
	},
}

var placeholderPattern = regexp.MustCompile(`\{(\w+)\}`)

// String returns the registry name of the template.
func (id TemplateID) String() string {
	if id < 0 || id >= templateCount {
		return fmt.Sprintf("template(%d)", int(id))
	}
	return templates[id].name
}

// Timeout returns the server-side timeout for the template. Aggregation
// templates get the longer timeout.
func (id TemplateID) Timeout() time.Duration {
	if id < 0 || id >= templateCount {
		return simpleTimeout
	}
	return templates[id].timeout
}

// Build renders the template with the given parameters. It validates the
// template id and reports all missing placeholders at once. Extra parameters
// are ignored.
func Build(id TemplateID, params map[string]string) (string, error) {
	if id < 0 || id >= templateCount {
		return "", fmt.Errorf("%w: %s", ErrUnknownTemplate, id)
	}
	spec := templates[id]

	var missing []string
	seen := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(spec.body, -1) {
		name := m[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		if _, ok := params[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", &MissingParamsError{Template: spec.name, Missing: missing}
	}

	query := spec.body
	for name := range seen {
		query = strings.ReplaceAll(query, "{"+name+"}", params[name])
	}
	return query, nil
}
