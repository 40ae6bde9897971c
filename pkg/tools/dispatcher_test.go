package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arclight-sec/sentinel-assistant/pkg/knowledge"
	"github.com/arclight-sec/sentinel-assistant/pkg/models"
	"github.com/arclight-sec/sentinel-assistant/pkg/sentinel"
)

func newTestDispatcher(api SentinelAPI, kb Searcher) *Dispatcher {
	return NewDispatcher(api, kb, zap.NewNop())
}

func decode(t *testing.T, payload string) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(payload), &out))
	return out
}

func TestExecuteToolUnknownTool(t *testing.T) {
	d := newTestDispatcher(&MockSentinelAPI{}, nil)
	payload, err := d.ExecuteTool(context.Background(), "bogus_tool", "{}")
	require.NoError(t, err)
	assert.Equal(t, "Unknown tool: bogus_tool", decode(t, payload)["error"])
}

func TestExecuteToolAppliesDefaults(t *testing.T) {
	api := &MockSentinelAPI{
		QueryIncidentsFunc: func(_ context.Context, timeWindow, minSeverity string, limit int) (*models.QueryResult, error) {
			assert.Equal(t, "last_24h", timeWindow)
			assert.Equal(t, "Informational", minSeverity)
			assert.Equal(t, 20, limit)
			return emptyResult(), nil
		},
	}
	d := newTestDispatcher(api, nil)

	_, err := d.ExecuteTool(context.Background(), "query_incidents", "{}")
	require.NoError(t, err)
	assert.Equal(t, []string{"QueryIncidents"}, api.Calls)

	// Empty argument strings behave like an empty object.
	_, err = d.ExecuteTool(context.Background(), "query_incidents", "")
	require.NoError(t, err)
}

func TestExecuteToolTrendAndEntityDefaults(t *testing.T) {
	api := &MockSentinelAPI{
		GetAlertTrendFunc: func(_ context.Context, timeWindow, minSeverity, binSize string) (*models.QueryResult, error) {
			assert.Equal(t, "last_7d", timeWindow)
			assert.Empty(t, binSize, "bin size is auto-selected downstream")
			return emptyResult(), nil
		},
		GetTopEntitiesFunc: func(_ context.Context, timeWindow, _ string, limit int) (*models.QueryResult, error) {
			assert.Equal(t, "last_7d", timeWindow)
			assert.Equal(t, 10, limit)
			return emptyResult(), nil
		},
	}
	d := newTestDispatcher(api, nil)

	_, err := d.ExecuteTool(context.Background(), "get_alert_trend", "{}")
	require.NoError(t, err)
	_, err = d.ExecuteTool(context.Background(), "get_top_entities", "{}")
	require.NoError(t, err)
}

func TestExecuteToolMalformedArguments(t *testing.T) {
	d := newTestDispatcher(&MockSentinelAPI{}, nil)
	_, err := d.ExecuteTool(context.Background(), "query_incidents", "{not json")
	assert.Error(t, err)
}

func TestIncidentRefCoercion(t *testing.T) {
	var refs []sentinel.IncidentRef
	api := &MockSentinelAPI{
		GetIncidentDetailFunc: func(_ context.Context, ref sentinel.IncidentRef) (*models.QueryResult, error) {
			refs = append(refs, ref)
			return emptyResult(), nil
		},
	}
	d := newTestDispatcher(api, nil)

	for _, arguments := range []string{
		`{"incident_ref": 42}`,
		`{"incident_ref": "42"}`,
		`{"incident_ref": "Suspicious sign-in"}`,
	} {
		_, err := d.ExecuteTool(context.Background(), "get_incident_detail", arguments)
		require.NoError(t, err)
	}

	require.Len(t, refs, 3)
	assert.Equal(t, sentinel.RefByNumber(42), refs[0])
	assert.Equal(t, sentinel.RefByNumber(42), refs[1], "numeric strings mean an exact number lookup")
	assert.Equal(t, sentinel.RefByTitle("Suspicious sign-in"), refs[2])
}

func TestIncidentRefMissing(t *testing.T) {
	api := &MockSentinelAPI{}
	d := newTestDispatcher(api, nil)

	payload, err := d.ExecuteTool(context.Background(), "get_incident_detail", "{}")
	require.NoError(t, err)
	assert.Equal(t, "Missing required parameter: incident_ref", decode(t, payload)["error"])
	assert.Empty(t, api.Calls, "no backend call without a reference")
}

func TestRetryableErrorRetriedOnce(t *testing.T) {
	calls := 0
	api := &MockSentinelAPI{
		QueryAlertsFunc: func(context.Context, string, string, int) (*models.QueryResult, error) {
			calls++
			if calls == 1 {
				return nil, &models.QueryError{Code: "http_429", Message: "throttled", RetryPossible: true}
			}
			return &models.QueryResult{
				Metadata: models.QueryMetadata{Total: 1, QueryMS: 12},
				Results:  []any{map[string]any{"name": "alert"}},
			}, nil
		},
	}
	d := newTestDispatcher(api, nil)

	payload, err := d.ExecuteTool(context.Background(), "query_alerts", "{}")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Contains(t, payload, `"total":1`)
}

func TestRetryableErrorGivesUpAfterSecondFailure(t *testing.T) {
	calls := 0
	api := &MockSentinelAPI{
		QueryIncidentsFunc: func(context.Context, string, string, int) (*models.QueryResult, error) {
			calls++
			return nil, &models.QueryError{Code: "http_503", Message: "unavailable", RetryPossible: true}
		},
	}
	d := newTestDispatcher(api, nil)

	payload, err := d.ExecuteTool(context.Background(), "query_incidents", "{}")
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "exactly one silent retry")

	result := decode(t, payload)
	assert.Equal(t, "http_503", result["code"])
	assert.Equal(t, true, result["retry_possible"])
}

func TestNonRetryableErrorNotRetried(t *testing.T) {
	calls := 0
	api := &MockSentinelAPI{
		QueryIncidentsFunc: func(context.Context, string, string, int) (*models.QueryResult, error) {
			calls++
			return nil, &models.QueryError{Code: "invalid_time_window", Message: "bad window"}
		},
	}
	d := newTestDispatcher(api, nil)

	payload, err := d.ExecuteTool(context.Background(), "query_incidents", `{"time_window": "yesterday"}`)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "invalid_time_window", decode(t, payload)["code"])
}

func TestKnowledgeToolsWithoutStore(t *testing.T) {
	d := newTestDispatcher(&MockSentinelAPI{}, nil)
	for _, tool := range []string{"search_similar_incidents", "search_playbooks", "get_investigation_guidance"} {
		payload, err := d.ExecuteTool(context.Background(), tool, `{"query": "phishing"}`)
		require.NoError(t, err)
		assert.Equal(t, "Knowledge base is not available. Try restarting the chatbot.", decode(t, payload)["error"], tool)
	}
}

func TestSearchPlaybooksPassesQuery(t *testing.T) {
	kb := &MockSearcher{
		SearchPlaybooksFunc: func(_ context.Context, query string, n int) (*knowledge.SearchResult, error) {
			assert.Equal(t, 0, n, "search uses the store default")
			return &knowledge.SearchResult{
				Type:    "playbooks",
				Results: []knowledge.Hit{{Document: "Playbook: Phishing - investigation", Confidence: "normal"}},
				Total:   1,
			}, nil
		},
	}
	d := newTestDispatcher(&MockSentinelAPI{}, kb)

	payload, err := d.ExecuteTool(context.Background(), "search_playbooks", `{"query": "phishing response"}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"phishing response"}, kb.Queries)
	assert.Contains(t, payload, `"type":"playbooks"`)
}

func TestInvestigationGuidanceCombinesSearches(t *testing.T) {
	kb := &MockSearcher{
		SearchPlaybooksFunc: func(_ context.Context, _ string, n int) (*knowledge.SearchResult, error) {
			assert.Equal(t, 3, n)
			return &knowledge.SearchResult{
				Results:              []knowledge.Hit{{Document: "pb", Confidence: "low"}},
				LowConfidenceWarning: true,
				Total:                1,
			}, nil
		},
		SearchSimilarIncidentsFunc: func(_ context.Context, _ string, n int) (*knowledge.SearchResult, error) {
			assert.Equal(t, 3, n)
			return &knowledge.SearchResult{
				Results: []knowledge.Hit{{Document: "inc", Confidence: "normal"}},
				Total:   1,
			}, nil
		},
	}
	d := newTestDispatcher(&MockSentinelAPI{}, kb)

	payload, err := d.ExecuteTool(context.Background(), "get_investigation_guidance", `{"query": "ransomware"}`)
	require.NoError(t, err)

	result := decode(t, payload)
	assert.Equal(t, "investigation_guidance", result["type"])
	assert.Len(t, result["playbook_results"], 1)
	assert.Len(t, result["incident_results"], 1)
	assert.Equal(t, false, result["low_confidence_warning"], "warning requires both searches low")
}

func TestStatusMessages(t *testing.T) {
	assert.Equal(t, "Querying incidents...", StatusMessage("query_incidents"))
	assert.Equal(t, "Looking up investigation guidance...", StatusMessage("get_investigation_guidance"))
	assert.Equal(t, "Processing query...", StatusMessage("something_else"))
}
