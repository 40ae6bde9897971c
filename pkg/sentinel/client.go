// Package sentinel executes the registered KQL templates against a Sentinel
// workspace and parses the rows into typed records. All operations are
// read-only and return either a QueryResult or a QueryError, never both.
package sentinel

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arclight-sec/sentinel-assistant/pkg/kql"
	"github.com/arclight-sec/sentinel-assistant/pkg/logging"
	"github.com/arclight-sec/sentinel-assistant/pkg/models"
	"github.com/arclight-sec/sentinel-assistant/pkg/projections"
)

// detailWindow is the wide timespan used for incident detail lookups.
const detailWindow = "last_30d"

// IncidentRef identifies an incident either by exact number or by a
// case-insensitive title substring.
type IncidentRef struct {
	Number   int
	Title    string
	ByNumber bool
}

// RefByNumber builds a reference for an exact incident number match.
func RefByNumber(n int) IncidentRef {
	return IncidentRef{Number: n, ByNumber: true}
}

// RefByTitle builds a reference for a title substring match.
func RefByTitle(title string) IncidentRef {
	return IncidentRef{Title: title}
}

// Client runs registered templates against one workspace.
type Client struct {
	logs        LogsAPI
	workspaceID string
	logger      *zap.Logger
}

// NewClient wires an executor over an injected LogsAPI.
func NewClient(workspaceID string, logs LogsAPI, logger *zap.Logger) *Client {
	return &Client{
		logs:        logs,
		workspaceID: workspaceID,
		logger:      logger.Named("sentinel"),
	}
}

// NewAzureClient builds the production executor on azquery with
// DefaultAzureCredential.
func NewAzureClient(workspaceID string, logger *zap.Logger) (*Client, error) {
	logs, err := NewAzureLogsAPI()
	if err != nil {
		return nil, err
	}
	return NewClient(workspaceID, logs, logger), nil
}

// QueryIncidents lists incidents in a time window at or above a severity
// threshold. entity_count is always 0 in list view; only the detail lookup
// runs the entity sub-query.
func (c *Client) QueryIncidents(ctx context.Context, timeWindow, minSeverity string, limit int) (*models.QueryResult, error) {
	window, qerr := c.resolveWindow(timeWindow)
	if qerr != nil {
		return nil, qerr
	}
	limit = kql.ClampLimit(limit, kql.DefaultIncidentLimit, kql.MaxIncidentLimit)

	resp, qerr := c.run(ctx, kql.TemplateListIncidents, map[string]string{
		"time_range":      window.Ago,
		"severity_filter": kql.SeverityFilter(minSeverity),
		"limit":           strconv.Itoa(limit),
	}, window.Timespan)
	if qerr != nil {
		return nil, qerr
	}

	incidents := parseIncidents(resp.Tables, false)
	results := make([]any, 0, len(incidents))
	for _, inc := range incidents {
		results = append(results, projections.Apply(inc.ToMap(), "incident_list"))
	}
	return envelope(results, resp), nil
}

// GetIncidentDetail resolves incidents by number or title substring, then
// fetches their alerts and entities in sub-queries. Sub-query failures are
// skipped rather than failing the whole lookup; entity_count is backfilled
// from whichever entity sub-queries succeeded.
func (c *Client) GetIncidentDetail(ctx context.Context, ref IncidentRef) (*models.QueryResult, error) {
	window, _ := kql.Window(detailWindow)

	var (
		resp *LogsResponse
		qerr *models.QueryError
	)
	if ref.ByNumber {
		resp, qerr = c.run(ctx, kql.TemplateIncidentByNumber, map[string]string{
			"incident_number": strconv.Itoa(ref.Number),
		}, window.Timespan)
	} else {
		// The title lands inside a double-quoted KQL literal; unescaped
		// quotes or backslashes would terminate it early.
		title := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(ref.Title)
		resp, qerr = c.run(ctx, kql.TemplateIncidentByName, map[string]string{
			"incident_name": title,
			"limit":         strconv.Itoa(kql.NameLookupLimit),
		}, window.Timespan)
	}
	if qerr != nil {
		return nil, qerr
	}

	incidents := parseIncidents(resp.Tables, true)
	var allAlerts []*models.Alert
	allEntities := []models.Entity{}

	for _, inc := range incidents {
		number := strconv.Itoa(inc.Number)

		alertsResp, aerr := c.run(ctx, kql.TemplateIncidentAlerts, map[string]string{
			"incident_number": number,
		}, window.Timespan)
		if aerr == nil {
			allAlerts = append(allAlerts, parseAlerts(alertsResp.Tables)...)
		} else {
			c.logger.Warn("incident alert sub-query failed",
				zap.Int("incident", inc.Number), zap.String("code", aerr.Code))
		}

		entitiesResp, eerr := c.run(ctx, kql.TemplateIncidentEntities, map[string]string{
			"incident_number": number,
		}, window.Timespan)
		if eerr == nil {
			entities := parseEntities(entitiesResp.Tables)
			allEntities = append(allEntities, entities...)
			inc.EntityCount = len(entities)
		} else {
			c.logger.Warn("incident entity sub-query failed",
				zap.Int("incident", inc.Number), zap.String("code", eerr.Code))
		}
	}

	projectedIncidents := make([]any, 0, len(incidents))
	for _, inc := range incidents {
		projectedIncidents = append(projectedIncidents, projections.Apply(inc.ToMap(), "incident_detail"))
	}
	projectedAlerts := make([]any, 0, len(allAlerts))
	for _, a := range allAlerts {
		projectedAlerts = append(projectedAlerts, projections.Apply(a.ToMap(), "alert_list"))
	}

	result := envelope([]any{map[string]any{
		"incidents": projectedIncidents,
		"alerts":    projectedAlerts,
		"entities":  allEntities,
	}}, resp)
	result.Metadata.Total = len(projectedIncidents)
	return result, nil
}

// QueryAlerts lists alerts in a time window at or above a severity threshold.
func (c *Client) QueryAlerts(ctx context.Context, timeWindow, minSeverity string, limit int) (*models.QueryResult, error) {
	window, qerr := c.resolveWindow(timeWindow)
	if qerr != nil {
		return nil, qerr
	}
	limit = kql.ClampLimit(limit, kql.DefaultAlertLimit, kql.MaxAlertLimit)

	resp, qerr := c.run(ctx, kql.TemplateListAlerts, map[string]string{
		"time_range":      window.Ago,
		"severity_filter": kql.SeverityFilter(minSeverity),
		"limit":           strconv.Itoa(limit),
	}, window.Timespan)
	if qerr != nil {
		return nil, qerr
	}

	alerts := parseAlerts(resp.Tables)
	results := make([]any, 0, len(alerts))
	for _, a := range alerts {
		results = append(results, projections.Apply(a.ToMap(), "alert_list"))
	}
	return envelope(results, resp), nil
}

// GetAlertTrend buckets alert counts by time bin and severity. An empty
// binSize auto-selects hourly bins for short windows and daily beyond that.
func (c *Client) GetAlertTrend(ctx context.Context, timeWindow, minSeverity, binSize string) (*models.QueryResult, error) {
	window, qerr := c.resolveWindow(timeWindow)
	if qerr != nil {
		return nil, qerr
	}
	if binSize == "" {
		binSize = kql.BinSize(timeWindow)
	}

	resp, qerr := c.run(ctx, kql.TemplateAlertTrend, map[string]string{
		"time_range":      window.Ago,
		"severity_filter": kql.SeverityFilter(minSeverity),
		"bin_size":        binSize,
	}, window.Timespan)
	if qerr != nil {
		return nil, qerr
	}

	points := parseTrendPoints(resp.Tables)
	results := make([]any, 0, len(points))
	for _, p := range points {
		results = append(results, p)
	}
	return envelope(results, resp), nil
}

// GetTopEntities ranks the most-targeted accounts, IPs and hosts by alert
// count.
func (c *Client) GetTopEntities(ctx context.Context, timeWindow, minSeverity string, limit int) (*models.QueryResult, error) {
	window, qerr := c.resolveWindow(timeWindow)
	if qerr != nil {
		return nil, qerr
	}
	limit = kql.ClampLimit(limit, kql.DefaultTopEntityLimit, kql.MaxTopEntityLimit)

	resp, qerr := c.run(ctx, kql.TemplateTopEntities, map[string]string{
		"time_range":      window.Ago,
		"severity_filter": kql.SeverityFilter(minSeverity),
		"limit":           strconv.Itoa(limit),
	}, window.Timespan)
	if qerr != nil {
		return nil, qerr
	}

	counts := parseEntityCounts(resp.Tables)
	results := make([]any, 0, len(counts))
	for _, ec := range counts {
		results = append(results, ec)
	}
	return envelope(results, resp), nil
}

func (c *Client) resolveWindow(name string) (kql.TimeWindow, *models.QueryError) {
	window, ok := kql.Window(name)
	if !ok {
		return kql.TimeWindow{}, &models.QueryError{
			Code: "invalid_time_window",
			Message: fmt.Sprintf("Unknown time window: %q. Valid: %s",
				name, strings.Join(kql.WindowNames(), ", ")),
		}
	}
	return window, nil
}

// run builds a template and executes it, mapping every failure into a
// QueryError. Template build failures are caller bugs and never retryable.
func (c *Client) run(ctx context.Context, id kql.TemplateID, params map[string]string, timespan time.Duration) (*LogsResponse, *models.QueryError) {
	query, err := kql.Build(id, params)
	if err != nil {
		code := "invalid_template"
		var missing *kql.MissingParamsError
		if errors.As(err, &missing) {
			code = "missing_parameters"
		} else if errors.Is(err, kql.ErrUnknownTemplate) {
			code = "unknown_template"
		}
		return nil, &models.QueryError{Code: code, Message: err.Error()}
	}

	c.logger.Debug("executing query",
		zap.String("template", id.String()),
		zap.String("query", logging.SanitizeQuery(query)))

	resp, err := c.logs.Query(ctx, c.workspaceID, query, timespan, id.Timeout())
	if err != nil {
		var qerr *models.QueryError
		if !errors.As(err, &qerr) {
			qerr = &models.QueryError{Code: "unknown", Message: logging.SanitizeError(err)}
		}
		c.logger.Warn("query failed",
			zap.String("template", id.String()),
			zap.String("code", qerr.Code),
			zap.Bool("retry_possible", qerr.RetryPossible))
		return nil, qerr
	}

	c.logger.Debug("query complete",
		zap.String("template", id.String()),
		zap.Float64("query_ms", resp.QueryMS),
		zap.Bool("partial", resp.Partial != nil))
	return resp, nil
}

func envelope(results []any, resp *LogsResponse) *models.QueryResult {
	meta := models.QueryMetadata{
		Total:   len(results),
		QueryMS: resp.QueryMS,
	}
	if resp.Partial != nil {
		meta.Truncated = true
		meta.PartialError = fmt.Sprintf("%s: %s", resp.Partial.Code, resp.Partial.Message)
	}
	return &models.QueryResult{Metadata: meta, Results: results}
}
