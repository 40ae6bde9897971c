package sentinel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/monitor/azquery"

	"github.com/arclight-sec/sentinel-assistant/pkg/models"
)

// Column is a result column by name. Types are resolved defensively at parse
// time, never from column metadata.
type Column struct {
	Name string
}

// Table is one result table from a logs query.
type Table struct {
	Columns []Column
	Rows    [][]any
}

// PartialError carries the service-reported reason for a partial result.
type PartialError struct {
	Code    string
	Message string
}

// LogsResponse is the normalized outcome of a successful (possibly partial)
// logs query.
type LogsResponse struct {
	Tables  []Table
	Partial *PartialError
	QueryMS float64
}

// LogsAPI is the narrow surface the executor needs from Log Analytics. The
// production implementation wraps azquery; tests inject fakes.
type LogsAPI interface {
	Query(ctx context.Context, workspaceID, query string, timespan, serverTimeout time.Duration) (*LogsResponse, error)
}

type azureLogs struct {
	client *azquery.LogsClient
}

// NewAzureLogsAPI builds the production LogsAPI using DefaultAzureCredential.
func NewAzureLogsAPI() (LogsAPI, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("create azure credential: %w", err)
	}
	client, err := azquery.NewLogsClient(cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create logs client: %w", err)
	}
	return &azureLogs{client: client}, nil
}

func (a *azureLogs) Query(ctx context.Context, workspaceID, query string, timespan, serverTimeout time.Duration) (*LogsResponse, error) {
	end := time.Now().UTC()
	interval := azquery.NewTimeInterval(end.Add(-timespan), end)
	stats := true
	wait := int(serverTimeout.Seconds())

	resp, err := a.client.QueryWorkspace(ctx, workspaceID,
		azquery.Body{Query: &query, Timespan: &interval},
		&azquery.LogsClientQueryWorkspaceOptions{
			Options: &azquery.LogsQueryOptions{Statistics: &stats, Wait: &wait},
		})
	if err != nil {
		return nil, classifyQueryError(err)
	}

	out := &LogsResponse{
		Tables:  convertTables(resp.Tables),
		QueryMS: executionTimeMS(resp.Statistics),
	}
	if resp.Error != nil {
		partial := &PartialError{Code: "partial_error", Message: "Partial results"}
		if resp.Error.Code != "" {
			partial.Code = resp.Error.Code
		}
		if msg := resp.Error.Error(); msg != "" {
			partial.Message = msg
		}
		out.Partial = partial
	}
	return out, nil
}

func convertTables(tables []*azquery.Table) []Table {
	out := make([]Table, 0, len(tables))
	for _, t := range tables {
		if t == nil {
			continue
		}
		table := Table{Columns: make([]Column, 0, len(t.Columns))}
		for _, c := range t.Columns {
			name := ""
			if c != nil && c.Name != nil {
				name = *c.Name
			}
			table.Columns = append(table.Columns, Column{Name: name})
		}
		for _, r := range t.Rows {
			table.Rows = append(table.Rows, []any(r))
		}
		out = append(out, table)
	}
	return out
}

// executionTimeMS extracts server-side execution time from the statistics
// blob. The service reports seconds; callers want milliseconds. Any parse
// failure yields 0.
func executionTimeMS(raw []byte) float64 {
	if len(raw) == 0 {
		return 0
	}
	var stats struct {
		Query struct {
			ExecutionTime float64 `json:"executionTime"`
		} `json:"query"`
	}
	if err := json.Unmarshal(raw, &stats); err != nil {
		return 0
	}
	return stats.Query.ExecutionTime * 1000
}

// retryableStatus holds the HTTP status classes worth a second attempt:
// throttling and transient server errors.
var retryableStatus = map[int]bool{429: true, 500: true, 502: true, 503: true, 504: true}

func classifyQueryError(err error) *models.QueryError {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		code := respErr.ErrorCode
		if code == "" {
			code = fmt.Sprintf("http_%d", respErr.StatusCode)
		}
		return &models.QueryError{
			Code:          code,
			Message:       truncateMessage(err.Error()),
			RetryPossible: retryableStatus[respErr.StatusCode],
			Status:        respErr.StatusCode,
		}
	}
	return &models.QueryError{
		Code:    "unknown",
		Message: truncateMessage(err.Error()),
	}
}

func truncateMessage(s string) string {
	const max = 500
	if len(s) > max {
		return s[:max]
	}
	return s
}
