package tools

import (
	"context"

	"github.com/arclight-sec/sentinel-assistant/pkg/knowledge"
	"github.com/arclight-sec/sentinel-assistant/pkg/models"
	"github.com/arclight-sec/sentinel-assistant/pkg/sentinel"
)

// MockSentinelAPI is a configurable SentinelAPI for tests. Calls records the
// method names in invocation order.
type MockSentinelAPI struct {
	QueryIncidentsFunc    func(ctx context.Context, timeWindow, minSeverity string, limit int) (*models.QueryResult, error)
	GetIncidentDetailFunc func(ctx context.Context, ref sentinel.IncidentRef) (*models.QueryResult, error)
	QueryAlertsFunc       func(ctx context.Context, timeWindow, minSeverity string, limit int) (*models.QueryResult, error)
	GetAlertTrendFunc     func(ctx context.Context, timeWindow, minSeverity, binSize string) (*models.QueryResult, error)
	GetTopEntitiesFunc    func(ctx context.Context, timeWindow, minSeverity string, limit int) (*models.QueryResult, error)

	Calls []string
}

func emptyResult() *models.QueryResult {
	return &models.QueryResult{Results: []any{}}
}

func (m *MockSentinelAPI) QueryIncidents(ctx context.Context, timeWindow, minSeverity string, limit int) (*models.QueryResult, error) {
	m.Calls = append(m.Calls, "QueryIncidents")
	if m.QueryIncidentsFunc != nil {
		return m.QueryIncidentsFunc(ctx, timeWindow, minSeverity, limit)
	}
	return emptyResult(), nil
}

func (m *MockSentinelAPI) GetIncidentDetail(ctx context.Context, ref sentinel.IncidentRef) (*models.QueryResult, error) {
	m.Calls = append(m.Calls, "GetIncidentDetail")
	if m.GetIncidentDetailFunc != nil {
		return m.GetIncidentDetailFunc(ctx, ref)
	}
	return emptyResult(), nil
}

func (m *MockSentinelAPI) QueryAlerts(ctx context.Context, timeWindow, minSeverity string, limit int) (*models.QueryResult, error) {
	m.Calls = append(m.Calls, "QueryAlerts")
	if m.QueryAlertsFunc != nil {
		return m.QueryAlertsFunc(ctx, timeWindow, minSeverity, limit)
	}
	return emptyResult(), nil
}

func (m *MockSentinelAPI) GetAlertTrend(ctx context.Context, timeWindow, minSeverity, binSize string) (*models.QueryResult, error) {
	m.Calls = append(m.Calls, "GetAlertTrend")
	if m.GetAlertTrendFunc != nil {
		return m.GetAlertTrendFunc(ctx, timeWindow, minSeverity, binSize)
	}
	return emptyResult(), nil
}

func (m *MockSentinelAPI) GetTopEntities(ctx context.Context, timeWindow, minSeverity string, limit int) (*models.QueryResult, error) {
	m.Calls = append(m.Calls, "GetTopEntities")
	if m.GetTopEntitiesFunc != nil {
		return m.GetTopEntitiesFunc(ctx, timeWindow, minSeverity, limit)
	}
	return emptyResult(), nil
}

// MockSearcher is a configurable Searcher for tests.
type MockSearcher struct {
	SearchSimilarIncidentsFunc func(ctx context.Context, query string, n int) (*knowledge.SearchResult, error)
	SearchPlaybooksFunc        func(ctx context.Context, query string, n int) (*knowledge.SearchResult, error)

	Queries []string
}

func (m *MockSearcher) SearchSimilarIncidents(ctx context.Context, query string, n int) (*knowledge.SearchResult, error) {
	m.Queries = append(m.Queries, query)
	if m.SearchSimilarIncidentsFunc != nil {
		return m.SearchSimilarIncidentsFunc(ctx, query, n)
	}
	return &knowledge.SearchResult{Type: "similar_incidents", Results: []knowledge.Hit{}}, nil
}

func (m *MockSearcher) SearchPlaybooks(ctx context.Context, query string, n int) (*knowledge.SearchResult, error) {
	m.Queries = append(m.Queries, query)
	if m.SearchPlaybooksFunc != nil {
		return m.SearchPlaybooksFunc(ctx, query, n)
	}
	return &knowledge.SearchResult{Type: "playbooks", Results: []knowledge.Hit{}}, nil
}

var (
	_ SentinelAPI = (*MockSentinelAPI)(nil)
	_ Searcher    = (*MockSearcher)(nil)
)
