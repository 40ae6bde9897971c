// Package tools routes model tool calls to the Sentinel query client and the
// knowledge base. Each tool name maps 1:1 to a handler, arguments are decoded
// leniently with per-tool defaults, and retryable backend errors are retried
// once silently before the error is surfaced.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/arclight-sec/sentinel-assistant/pkg/jsonutil"
	"github.com/arclight-sec/sentinel-assistant/pkg/knowledge"
	"github.com/arclight-sec/sentinel-assistant/pkg/kql"
	"github.com/arclight-sec/sentinel-assistant/pkg/llm"
	"github.com/arclight-sec/sentinel-assistant/pkg/models"
	"github.com/arclight-sec/sentinel-assistant/pkg/retry"
	"github.com/arclight-sec/sentinel-assistant/pkg/sentinel"
)

var _ llm.ToolExecutor = (*Dispatcher)(nil)

// statusMessages are shown to the user while a tool executes.
var statusMessages = map[string]string{
	"query_incidents":            "Querying incidents...",
	"get_incident_detail":        "Looking up incident details...",
	"query_alerts":               "Querying alerts...",
	"get_alert_trend":            "Analyzing alert trends...",
	"get_top_entities":           "Finding top targeted entities...",
	"search_similar_incidents":   "Searching historical incidents...",
	"search_playbooks":           "Searching playbooks...",
	"get_investigation_guidance": "Looking up investigation guidance...",
}

const defaultStatus = "Processing query..."

const kbUnavailableMessage = "Knowledge base is not available. Try restarting the chatbot."

// StatusMessage returns the user-facing progress line for a tool.
func StatusMessage(toolName string) string {
	if msg, ok := statusMessages[toolName]; ok {
		return msg
	}
	return defaultStatus
}

// SentinelAPI is the query surface the dispatcher needs from the Sentinel
// client.
type SentinelAPI interface {
	QueryIncidents(ctx context.Context, timeWindow, minSeverity string, limit int) (*models.QueryResult, error)
	GetIncidentDetail(ctx context.Context, ref sentinel.IncidentRef) (*models.QueryResult, error)
	QueryAlerts(ctx context.Context, timeWindow, minSeverity string, limit int) (*models.QueryResult, error)
	GetAlertTrend(ctx context.Context, timeWindow, minSeverity, binSize string) (*models.QueryResult, error)
	GetTopEntities(ctx context.Context, timeWindow, minSeverity string, limit int) (*models.QueryResult, error)
}

// Searcher is the knowledge-base surface for the three KB tools.
type Searcher interface {
	SearchSimilarIncidents(ctx context.Context, query string, n int) (*knowledge.SearchResult, error)
	SearchPlaybooks(ctx context.Context, query string, n int) (*knowledge.SearchResult, error)
}

// Dispatcher routes tool calls. A nil Searcher means the KB tools answer
// with a structured error instead of being absent, so the model gets a
// stable message to relay.
type Dispatcher struct {
	client SentinelAPI
	kb     Searcher
	policy retry.Policy
	logger *zap.Logger
}

func NewDispatcher(client SentinelAPI, kb Searcher, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		client: client,
		kb:     kb,
		policy: retry.DefaultPolicy(),
		logger: logger.Named("tools"),
	}
}

// ExecuteTool runs one tool call and returns its JSON result. Tool-level
// failures (unknown tool, bad parameters, query errors) are encoded in the
// JSON payload rather than returned as errors, so the model can read them.
func (d *Dispatcher) ExecuteTool(ctx context.Context, name, arguments string) (string, error) {
	args, err := decodeArguments(arguments)
	if err != nil {
		return "", fmt.Errorf("parse arguments for %s: %w", name, err)
	}

	switch name {
	case "query_incidents":
		return d.callSentinel(ctx, func() (*models.QueryResult, error) {
			return d.client.QueryIncidents(ctx,
				stringArg(args, "time_window", "last_24h"),
				stringArg(args, "min_severity", "Informational"),
				jsonutil.FlexibleIntValue(args["limit"], kql.DefaultIncidentLimit))
		})
	case "get_incident_detail":
		ref, ok := incidentRefArg(args)
		if !ok {
			return errorPayload("Missing required parameter: incident_ref")
		}
		return d.callSentinel(ctx, func() (*models.QueryResult, error) {
			return d.client.GetIncidentDetail(ctx, ref)
		})
	case "query_alerts":
		return d.callSentinel(ctx, func() (*models.QueryResult, error) {
			return d.client.QueryAlerts(ctx,
				stringArg(args, "time_window", "last_24h"),
				stringArg(args, "min_severity", "Informational"),
				jsonutil.FlexibleIntValue(args["limit"], kql.DefaultAlertLimit))
		})
	case "get_alert_trend":
		return d.callSentinel(ctx, func() (*models.QueryResult, error) {
			return d.client.GetAlertTrend(ctx,
				stringArg(args, "time_window", "last_7d"),
				stringArg(args, "min_severity", "Informational"),
				stringArg(args, "bin_size", ""))
		})
	case "get_top_entities":
		return d.callSentinel(ctx, func() (*models.QueryResult, error) {
			return d.client.GetTopEntities(ctx,
				stringArg(args, "time_window", "last_7d"),
				stringArg(args, "min_severity", "Informational"),
				jsonutil.FlexibleIntValue(args["limit"], kql.DefaultTopEntityLimit))
		})
	case "search_similar_incidents":
		return d.searchKB(args, func(query string) (*knowledge.SearchResult, error) {
			return d.kb.SearchSimilarIncidents(ctx, query, 0)
		})
	case "search_playbooks":
		return d.searchKB(args, func(query string) (*knowledge.SearchResult, error) {
			return d.kb.SearchPlaybooks(ctx, query, 0)
		})
	case "get_investigation_guidance":
		return d.investigationGuidance(ctx, args)
	default:
		return errorPayload("Unknown tool: " + name)
	}
}

// callSentinel runs a query under the retry policy and serializes the
// outcome. Query errors keep their structured form.
func (d *Dispatcher) callSentinel(ctx context.Context, fn func() (*models.QueryResult, error)) (string, error) {
	result, err := retry.Do(ctx, d.policy, fn)
	if err != nil {
		var qerr *models.QueryError
		if errors.As(err, &qerr) {
			d.logger.Debug("query failed",
				zap.String("code", qerr.Code), zap.Bool("retry_possible", qerr.RetryPossible))
			return marshal(qerr)
		}
		return "", err
	}
	return marshal(result)
}

func (d *Dispatcher) searchKB(args map[string]json.RawMessage,
	search func(query string) (*knowledge.SearchResult, error)) (string, error) {
	if d.kb == nil {
		return errorPayload(kbUnavailableMessage)
	}
	result, err := search(stringArg(args, "query", ""))
	if err != nil {
		d.logger.Warn("knowledge base search failed", zap.Error(err))
		return errorPayload("Knowledge base search failed: " + err.Error())
	}
	return marshal(result)
}

// investigationGuidance combines playbook and historical-incident hits for
// one query. The combined warning fires only when both searches came back
// low confidence.
func (d *Dispatcher) investigationGuidance(ctx context.Context, args map[string]json.RawMessage) (string, error) {
	if d.kb == nil {
		return errorPayload(kbUnavailableMessage)
	}
	query := stringArg(args, "query", "")

	playbooks, err := d.kb.SearchPlaybooks(ctx, query, 3)
	if err != nil {
		d.logger.Warn("knowledge base search failed", zap.Error(err))
		return errorPayload("Knowledge base search failed: " + err.Error())
	}
	incidents, err := d.kb.SearchSimilarIncidents(ctx, query, 3)
	if err != nil {
		d.logger.Warn("knowledge base search failed", zap.Error(err))
		return errorPayload("Knowledge base search failed: " + err.Error())
	}

	return marshal(map[string]any{
		"type":                   "investigation_guidance",
		"playbook_results":       playbooks.Results,
		"incident_results":       incidents.Results,
		"low_confidence_warning": playbooks.LowConfidenceWarning && incidents.LowConfidenceWarning,
	})
}

func decodeArguments(arguments string) (map[string]json.RawMessage, error) {
	if strings.TrimSpace(arguments) == "" {
		return map[string]json.RawMessage{}, nil
	}
	var args map[string]json.RawMessage
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return nil, err
	}
	return args, nil
}

func stringArg(args map[string]json.RawMessage, key, fallback string) string {
	raw, ok := args[key]
	if !ok {
		return fallback
	}
	if value := jsonutil.FlexibleStringValue(raw); value != "" {
		return value
	}
	return fallback
}

// incidentRefArg accepts a number, a numeric string, or a title string.
// Numeric values mean an exact incident-number lookup.
func incidentRefArg(args map[string]json.RawMessage) (sentinel.IncidentRef, bool) {
	raw, ok := args["incident_ref"]
	if !ok || string(raw) == "null" {
		return sentinel.IncidentRef{}, false
	}
	value := jsonutil.FlexibleStringValue(raw)
	if value == "" {
		return sentinel.IncidentRef{}, false
	}
	if n, err := strconv.Atoi(value); err == nil {
		return sentinel.RefByNumber(n), true
	}
	return sentinel.RefByTitle(value), true
}

func errorPayload(message string) (string, error) {
	return marshal(map[string]string{"error": message})
}

func marshal(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("serialize tool result: %w", err)
	}
	return string(data), nil
}
