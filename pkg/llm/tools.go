package llm

import (
	openai "github.com/sashabaranov/go-openai"
)

// ParameterProperty describes a single JSON-Schema parameter.
type ParameterProperty struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// ToolDefinition is a function tool the model may call.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// NewToolDefinition builds a tool with a JSON-Schema object parameter block.
func NewToolDefinition(name, description string, properties map[string]ParameterProperty, required []string) ToolDefinition {
	return ToolDefinition{
		Name:        name,
		Description: description,
		Parameters: map[string]any{
			"type":       "object",
			"properties": properties,
			"required":   required,
		},
	}
}

// BuildOpenAITools converts tool definitions to the request wire format.
func BuildOpenAITools(defs []ToolDefinition) []openai.Tool {
	tools := make([]openai.Tool, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}
	return tools
}

var timeWindowEnum = []string{"last_1h", "last_24h", "last_3d", "last_7d", "last_14d", "last_30d"}

var severityEnum = []string{"High", "Medium", "Low", "Informational"}

// SentinelTools defines the five Sentinel query tools, mapping 1:1 to the
// executor's public operations. Strict mode is not used; it is incompatible
// with parallel tool calls.
func SentinelTools() []ToolDefinition {
	return []ToolDefinition{
		NewToolDefinition("query_incidents",
			"Query Microsoft Sentinel security incidents filtered by time range and severity. " +
				"Use this for questions about recent incidents, incident lists, 'what's happening', " +
				"'show me incidents', or general security status overviews. Returns incident number, " +
				"title, severity, status, and timestamps.",
			map[string]ParameterProperty{
				"time_window": {
					Type: "string", Enum: timeWindowEnum,
					Description: "Time range to query. Use 'last_24h' for recent activity, wider ranges for historical views.",
				},
				"min_severity": {
					Type: "string", Enum: severityEnum,
					Description: "Minimum severity threshold. 'High' returns only high-severity incidents, 'Informational' returns all.",
				},
				"limit": {
					Type:        "integer",
					Description: "Maximum number of incidents to return. Default 20, max 100.",
				},
			},
			[]string{"time_window"}),
		NewToolDefinition("get_incident_detail",
			"Get detailed information about a specific incident including description, alerts, " +
				"entities, timeline, and classification. Use this for 'tell me about incident X', " +
				"'details on incident 42', drill-downs on specific incidents, or when the user " +
				"references a previous result by number. Pass an integer for exact incident number " +
				"lookup, or a string for case-insensitive title search.",
			map[string]ParameterProperty{
				"incident_ref": {
					Type: "string",
					Description: "Incident reference: an incident number (e.g. '42') for exact lookup, " +
						"or a text string (e.g. 'phishing') for case-insensitive title search.",
				},
			},
			[]string{"incident_ref"}),
		NewToolDefinition("query_alerts",
			"Query Microsoft Sentinel security alerts filtered by time range and severity. " +
				"Alerts are individual detection signals, distinct from incidents which group " +
				"related alerts. Use this for questions specifically about alerts, detection " +
				"signals, or 'show me alerts'. For grouped security events, use query_incidents instead.",
			map[string]ParameterProperty{
				"time_window": {
					Type: "string", Enum: timeWindowEnum,
					Description: "Time range to query.",
				},
				"min_severity": {
					Type: "string", Enum: severityEnum,
					Description: "Minimum severity threshold.",
				},
				"limit": {
					Type:        "integer",
					Description: "Maximum number of alerts to return. Default 20, max 100.",
				},
			},
			[]string{"time_window"}),
		NewToolDefinition("get_alert_trend",
			"Get alert volume trends bucketed by time intervals over a configurable period. " +
				"Use this for trend analysis, pattern detection, 'how have alerts changed', " +
				"'is there an increase in alerts', or temporal pattern questions. Returns " +
				"time-series data with alert counts per time bucket.",
			map[string]ParameterProperty{
				"time_window": {
					Type: "string", Enum: timeWindowEnum,
					Description: "Time range to analyze trends over.",
				},
				"min_severity": {
					Type: "string", Enum: severityEnum,
					Description: "Minimum severity threshold.",
				},
				"bin_size": {
					Type:        "string",
					Description: "Time bucket granularity: '1h' for hourly or '1d' for daily. Auto-selected if omitted based on time window.",
				},
			},
			[]string{"time_window"}),
		NewToolDefinition("get_top_entities",
			"Get the most frequently targeted entities (users, IP addresses, hosts) ranked by " +
				"alert count. Use this for 'who is being targeted', 'most attacked', 'top entities', " +
				"'most common attackers', or entity-focused security questions.",
			map[string]ParameterProperty{
				"time_window": {
					Type: "string", Enum: timeWindowEnum,
					Description: "Time range to query.",
				},
				"min_severity": {
					Type: "string", Enum: severityEnum,
					Description: "Minimum severity threshold.",
				},
				"limit": {
					Type:        "integer",
					Description: "Maximum number of entities to return. Default 10, max 50.",
				},
			},
			[]string{"time_window"}),
	}
}

// KnowledgeTools defines the knowledge-base search tools. They are only
// offered to the model when the vector store is available.
func KnowledgeTools() []ToolDefinition {
	return []ToolDefinition{
		NewToolDefinition("search_similar_incidents",
			"Search for similar historical incidents in the knowledge base. Use this when the " +
				"user asks 'have we seen this before?', 'similar attacks', 'historical incidents " +
				"like X', or wants to know if a pattern has occurred previously.",
			map[string]ParameterProperty{
				"query": {
					Type:        "string",
					Description: "Natural language description of the incident or attack pattern to search for.",
				},
			},
			[]string{"query"}),
		NewToolDefinition("search_playbooks",
			"Search for investigation and response playbooks in the knowledge base. Use this " +
				"when the user asks 'how to investigate X', 'response procedure for Y', " +
				"'investigation guidance', or wants step-by-step instructions for handling an incident type.",
			map[string]ParameterProperty{
				"query": {
					Type:        "string",
					Description: "Natural language description of the investigation topic or incident type to find playbooks for.",
				},
			},
			[]string{"query"}),
		NewToolDefinition("get_investigation_guidance",
			"Get MITRE ATT&CK-mapped investigation guidance combining playbooks and historical " +
				"context. Use this when the user asks about 'MITRE techniques', 'ATT&CK mappings', " +
				"'what techniques are involved in X', or wants technique-based recommendations " +
				"for investigating an attack.",
			map[string]ParameterProperty{
				"query": {
					Type:        "string",
					Description: "Natural language description of the attack or technique to get guidance for.",
				},
			},
			[]string{"query"}),
	}
}
