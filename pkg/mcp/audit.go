package mcp

import (
	"context"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// callLogger records every MCP tool invocation with its duration. Arguments
// are never logged; queries routinely name users, hosts, and incidents.
type callLogger struct {
	logger *zap.Logger

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

func newCallLogger(logger *zap.Logger) *callLogger {
	return &callLogger{logger: logger.Named("mcp-audit")}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (c *callLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(c.beforeCallTool)
	hooks.AddAfterCallTool(c.afterCallTool)
	hooks.AddOnError(c.onError)
	return hooks
}

func (c *callLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	c.startTimes.Store(id, time.Now())
}

func (c *callLogger) afterCallTool(_ context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	c.logger.Info("tool call completed",
		zap.String("tool", req.Params.Name),
		zap.Duration("duration", c.elapsed(id)),
		zap.Bool("is_error", result != nil && result.IsError))
}

func (c *callLogger) onError(_ context.Context, id any, method mcplib.MCPMethod, _ any, err error) {
	c.logger.Warn("request failed",
		zap.String("method", string(method)),
		zap.Duration("duration", c.elapsed(id)),
		zap.Error(err))
}

func (c *callLogger) elapsed(id any) time.Duration {
	value, ok := c.startTimes.LoadAndDelete(id)
	if !ok {
		return 0
	}
	start, ok := value.(time.Time)
	if !ok {
		return 0
	}
	return time.Since(start)
}
