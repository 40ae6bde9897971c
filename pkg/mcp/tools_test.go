package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arclight-sec/sentinel-assistant/pkg/llm"
)

type stubExecutor struct {
	names     []string
	arguments []string
	result    string
}

func (s *stubExecutor) ExecuteTool(_ context.Context, name, arguments string) (string, error) {
	s.names = append(s.names, name)
	s.arguments = append(s.arguments, arguments)
	return s.result, nil
}

func handle(t *testing.T, s *Server, body string) map[string]any {
	t.Helper()
	resp := s.MCP().HandleMessage(context.Background(), json.RawMessage(body))
	require.NotNil(t, resp)
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	return decoded
}

func initialize(t *testing.T, s *Server) {
	t.Helper()
	handle(t, s, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"0.0.1"}}}`)
}

func TestRegisterQueryToolsListsAllSentinelTools(t *testing.T) {
	s := NewServer("sentinel-assistant", "test", zap.NewNop())
	require.NoError(t, RegisterQueryTools(s.MCP(), &stubExecutor{result: "{}"}))
	initialize(t, s)

	resp := handle(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	result, ok := resp["result"].(map[string]any)
	require.True(t, ok, "tools/list should succeed: %v", resp)
	toolList, ok := result["tools"].([]any)
	require.True(t, ok)

	var names []string
	for _, item := range toolList {
		tool := item.(map[string]any)
		names = append(names, tool["name"].(string))
	}

	var want []string
	for _, def := range llm.SentinelTools() {
		want = append(want, def.Name)
	}
	assert.ElementsMatch(t, want, names)
}

func TestToolCallRoutesThroughExecutor(t *testing.T) {
	executor := &stubExecutor{result: `{"metadata":{"total":0,"query_ms":5},"results":[]}`}
	s := NewServer("sentinel-assistant", "test", zap.NewNop())
	require.NoError(t, RegisterQueryTools(s.MCP(), executor))
	initialize(t, s)

	resp := handle(t, s, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"query_incidents","arguments":{"time_window":"last_24h","limit":5}}}`)
	result, ok := resp["result"].(map[string]any)
	require.True(t, ok, "tools/call should succeed: %v", resp)

	require.Equal(t, []string{"query_incidents"}, executor.names)
	require.Len(t, executor.arguments, 1)

	var args map[string]any
	require.NoError(t, json.Unmarshal([]byte(executor.arguments[0]), &args))
	assert.Equal(t, "last_24h", args["time_window"])
	assert.Equal(t, float64(5), args["limit"])

	content := result["content"].([]any)
	require.NotEmpty(t, content)
	text := content[0].(map[string]any)
	assert.Contains(t, text["text"], `"query_ms":5`)
}
