package sentinel

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arclight-sec/sentinel-assistant/pkg/models"
)

func incidentTable() Table {
	return Table{
		Columns: []Column{
			{Name: "IncidentNumber"}, {Name: "Title"}, {Name: "Severity"},
			{Name: "Status"}, {Name: "CreatedTime"}, {Name: "LastModifiedTime"},
			{Name: "Owner"}, {Name: "AlertIds"}, {Name: "Description"},
		},
		Rows: [][]any{
			{
				float64(42), "Password spray detected", "High", "Active",
				"2026-02-18T10:00:00Z", "2026-02-18T11:00:00Z",
				`{"assignedTo": "analyst@contoso.com"}`,
				`["alert-1", "alert-2"]`,
				"Multiple failed sign-ins",
			},
		},
	}
}

func detailIncidentTable() Table {
	t := incidentTable()
	t.Columns = append(t.Columns,
		Column{Name: "ClosedTime"}, Column{Name: "IncidentUrl"},
		Column{Name: "Classification"}, Column{Name: "Labels"})
	t.Rows[0] = append(t.Rows[0],
		nil, "https://portal.azure.com/#incident/42",
		"TruePositive", `[{"labelName": "vip"}]`)
	return t
}

func newTestClient(mock *MockLogsAPI) *Client {
	return NewClient("workspace-1", mock, zap.NewNop())
}

func TestQueryIncidentsInvalidWindow(t *testing.T) {
	mock := &MockLogsAPI{}
	client := newTestClient(mock)

	_, err := client.QueryIncidents(context.Background(), "yesterday", "High", 10)
	require.Error(t, err)

	var qerr *models.QueryError
	require.True(t, errors.As(err, &qerr))
	assert.Equal(t, "invalid_time_window", qerr.Code)
	assert.False(t, qerr.IsRetryable())
	assert.Contains(t, qerr.Message, "last_24h")
	assert.Equal(t, 0, mock.CallCount(), "invalid window must not reach the backend")
}

func TestQueryIncidentsClampsLimit(t *testing.T) {
	mock := &MockLogsAPI{}
	client := newTestClient(mock)

	_, err := client.QueryIncidents(context.Background(), "last_24h", "Informational", 500)
	require.NoError(t, err)
	require.Len(t, mock.Queries, 1)
	assert.Contains(t, mock.Queries[0], "take 100")
}

func TestQueryIncidentsAppliesListProjection(t *testing.T) {
	mock := &MockLogsAPI{
		QueryFunc: func(context.Context, string, string, time.Duration, time.Duration) (*LogsResponse, error) {
			return &LogsResponse{Tables: []Table{incidentTable()}, QueryMS: 12.5}, nil
		},
	}
	client := newTestClient(mock)

	result, err := client.QueryIncidents(context.Background(), "last_24h", "Informational", 10)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Metadata.Total)
	assert.Equal(t, 12.5, result.Metadata.QueryMS)
	assert.False(t, result.Metadata.Truncated)

	row, ok := result.Results[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 42, row["number"])
	assert.Equal(t, 2, row["alert_count"])
	assert.Equal(t, 0, row["entity_count"], "list view never counts entities")
	assert.NotContains(t, row, "description", "list projection drops the description")
	assert.NotContains(t, row, "incident_url")
}

func TestQueryIncidentsPartialResult(t *testing.T) {
	mock := &MockLogsAPI{
		QueryFunc: func(context.Context, string, string, time.Duration, time.Duration) (*LogsResponse, error) {
			return &LogsResponse{
				Tables:  []Table{incidentTable()},
				Partial: &PartialError{Code: "PartialError", Message: "row limit hit"},
			}, nil
		},
	}
	client := newTestClient(mock)

	result, err := client.QueryIncidents(context.Background(), "last_24h", "Informational", 10)
	require.NoError(t, err)
	assert.True(t, result.Metadata.Truncated)
	assert.Equal(t, "PartialError: row limit hit", result.Metadata.PartialError)
	assert.Len(t, result.Results, 1, "partial results are still returned")
}

func TestQueryIncidentsBackendError(t *testing.T) {
	mock := &MockLogsAPI{
		QueryFunc: func(context.Context, string, string, time.Duration, time.Duration) (*LogsResponse, error) {
			return nil, &models.QueryError{Code: "http_429", Message: "throttled", RetryPossible: true}
		},
	}
	client := newTestClient(mock)

	_, err := client.QueryIncidents(context.Background(), "last_24h", "Informational", 10)
	var qerr *models.QueryError
	require.True(t, errors.As(err, &qerr))
	assert.Equal(t, "http_429", qerr.Code)
	assert.True(t, qerr.IsRetryable())
}

func TestQueryIncidentsWrapsUnknownError(t *testing.T) {
	mock := &MockLogsAPI{
		QueryFunc: func(context.Context, string, string, time.Duration, time.Duration) (*LogsResponse, error) {
			return nil, errors.New("socket closed")
		},
	}
	client := newTestClient(mock)

	_, err := client.QueryIncidents(context.Background(), "last_24h", "Informational", 10)
	var qerr *models.QueryError
	require.True(t, errors.As(err, &qerr))
	assert.Equal(t, "unknown", qerr.Code)
	assert.False(t, qerr.IsRetryable())
}

func TestGetIncidentDetailByNumber(t *testing.T) {
	mock := &MockLogsAPI{}
	mock.QueryFunc = func(_ context.Context, _ string, query string, _, _ time.Duration) (*LogsResponse, error) {
		switch {
		case strings.Contains(query, "parse_json(Entities)"):
			return &LogsResponse{Tables: []Table{{
				Columns: []Column{{Name: "EntityType"}, {Name: "EntityName"}},
				Rows:    [][]any{{"account", "jsmith@contoso.com"}, {"ip", "10.1.2.3"}},
			}}}, nil
		case strings.Contains(query, "SecurityAlert"):
			return &LogsResponse{Tables: []Table{{
				Columns: []Column{{Name: "AlertName"}, {Name: "AlertSeverity"}, {Name: "TimeGenerated"}},
				Rows:    [][]any{{"Suspicious sign-in", "High", "2026-02-18T10:05:00Z"}},
			}}}, nil
		default:
			return &LogsResponse{Tables: []Table{detailIncidentTable()}}, nil
		}
	}
	client := newTestClient(mock)

	result, err := client.GetIncidentDetail(context.Background(), RefByNumber(42))
	require.NoError(t, err)
	require.Equal(t, 3, mock.CallCount(), "primary query plus alert and entity sub-queries")
	assert.Contains(t, mock.Queries[0], "IncidentNumber == 42")

	require.Len(t, result.Results, 1)
	composite, ok := result.Results[0].(map[string]any)
	require.True(t, ok)

	incidents := composite["incidents"].([]any)
	require.Len(t, incidents, 1)
	detail := incidents[0].(map[string]any)
	assert.Equal(t, 2, detail["entity_count"], "entity_count backfilled from sub-query")
	assert.Equal(t, []string{"vip"}, detail["labels"])
	assert.Contains(t, detail, "incident_url")

	assert.Len(t, composite["alerts"].([]any), 1)
	assert.Len(t, composite["entities"].([]models.Entity), 2)
}

func TestGetIncidentDetailByTitleCapsMatches(t *testing.T) {
	mock := &MockLogsAPI{
		QueryFunc: func(context.Context, string, string, time.Duration, time.Duration) (*LogsResponse, error) {
			return &LogsResponse{}, nil
		},
	}
	client := newTestClient(mock)

	_, err := client.GetIncidentDetail(context.Background(), RefByTitle("phishing"))
	require.NoError(t, err)
	require.Len(t, mock.Queries, 1, "no incidents found, no sub-queries")
	assert.Contains(t, mock.Queries[0], `Title contains "phishing"`)
	assert.Contains(t, mock.Queries[0], "take 10")
}

func TestGetIncidentDetailSubQueryFailureIsSkipped(t *testing.T) {
	mock := &MockLogsAPI{}
	mock.QueryFunc = func(_ context.Context, _ string, query string, _, _ time.Duration) (*LogsResponse, error) {
		if strings.Contains(query, "SecurityAlert") {
			return nil, &models.QueryError{Code: "http_500", Message: "boom", RetryPossible: true}
		}
		return &LogsResponse{Tables: []Table{detailIncidentTable()}}, nil
	}
	client := newTestClient(mock)

	result, err := client.GetIncidentDetail(context.Background(), RefByNumber(42))
	require.NoError(t, err, "sub-query failures must not fail the lookup")

	composite := result.Results[0].(map[string]any)
	assert.Empty(t, composite["alerts"])
	assert.Empty(t, composite["entities"])

	detail := composite["incidents"].([]any)[0].(map[string]any)
	assert.Equal(t, 0, detail["entity_count"])
}

func TestGetAlertTrendAutoBinSize(t *testing.T) {
	mock := &MockLogsAPI{}
	client := newTestClient(mock)

	_, err := client.GetAlertTrend(context.Background(), "last_24h", "Informational", "")
	require.NoError(t, err)
	assert.Contains(t, mock.Queries[0], "bin(TimeGenerated, 1h)")

	_, err = client.GetAlertTrend(context.Background(), "last_7d", "Informational", "")
	require.NoError(t, err)
	assert.Contains(t, mock.Queries[1], "bin(TimeGenerated, 1d)")

	_, err = client.GetAlertTrend(context.Background(), "last_7d", "Informational", "6h")
	require.NoError(t, err)
	assert.Contains(t, mock.Queries[2], "bin(TimeGenerated, 6h)")
}

func TestGetTopEntitiesUsesAggregationTimeout(t *testing.T) {
	mock := &MockLogsAPI{
		QueryFunc: func(context.Context, string, string, time.Duration, time.Duration) (*LogsResponse, error) {
			return &LogsResponse{Tables: []Table{{
				Columns: []Column{{Name: "EntityType"}, {Name: "EntityName"}, {Name: "AlertCount"}},
				Rows:    [][]any{{"ip", "185.220.101.42", float64(17)}},
			}}}, nil
		},
	}
	client := newTestClient(mock)

	result, err := client.GetTopEntities(context.Background(), "last_7d", "Medium", 200)
	require.NoError(t, err)
	assert.Equal(t, 180*time.Second, mock.ServerTimeouts[0])
	assert.Contains(t, mock.Queries[0], "take 50", "limit clamped to the top_entities cap")

	ec := result.Results[0].(models.EntityCount)
	assert.Equal(t, "ip", ec.EntityType)
	assert.Equal(t, 17, ec.Count)
}

func TestQueryAlertsSeverityThreshold(t *testing.T) {
	mock := &MockLogsAPI{}
	client := newTestClient(mock)

	_, err := client.QueryAlerts(context.Background(), "last_3d", "Medium", 0)
	require.NoError(t, err)
	assert.Contains(t, mock.Queries[0], "AlertSeverity in ('Medium','High')")
	assert.Contains(t, mock.Queries[0], "take 20", "zero limit falls back to the default")
	assert.Equal(t, 3*24*time.Hour, mock.Timespans[0])
}
