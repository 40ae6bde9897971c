package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/arclight-sec/sentinel-assistant/pkg/llm"
)

// RegisterQueryTools exposes the five Sentinel query tools through the MCP
// server. The JSON-Schema definitions are shared with the chat session, so
// both surfaces always offer identical tools.
func RegisterQueryTools(s *server.MCPServer, executor llm.ToolExecutor) error {
	for _, def := range llm.SentinelTools() {
		schema, err := json.Marshal(def.Parameters)
		if err != nil {
			return fmt.Errorf("marshal schema for %s: %w", def.Name, err)
		}
		tool := mcp.NewToolWithRawSchema(def.Name, def.Description, schema)

		name := def.Name
		s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			arguments, err := json.Marshal(req.GetRawArguments())
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
			}
			result, err := executor.ExecuteTool(ctx, name, string(arguments))
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return mcp.NewToolResultText(result), nil
		})
	}
	return nil
}
