package sentinel

import (
	"context"
	"time"
)

// MockLogsAPI is a configurable LogsAPI for tests. Set QueryFunc to control
// responses; executed queries are captured in order.
type MockLogsAPI struct {
	QueryFunc func(ctx context.Context, workspaceID, query string, timespan, serverTimeout time.Duration) (*LogsResponse, error)

	Queries        []string
	Timespans      []time.Duration
	ServerTimeouts []time.Duration
}

// Query implements LogsAPI.
func (m *MockLogsAPI) Query(ctx context.Context, workspaceID, query string, timespan, serverTimeout time.Duration) (*LogsResponse, error) {
	m.Queries = append(m.Queries, query)
	m.Timespans = append(m.Timespans, timespan)
	m.ServerTimeouts = append(m.ServerTimeouts, serverTimeout)
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, workspaceID, query, timespan, serverTimeout)
	}
	return &LogsResponse{}, nil
}

// CallCount returns how many queries were executed.
func (m *MockLogsAPI) CallCount() int {
	return len(m.Queries)
}

var _ LogsAPI = (*MockLogsAPI)(nil)
