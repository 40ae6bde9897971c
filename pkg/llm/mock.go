package llm

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

// MockChatAPI is a configurable ChatAPI for tests. Every request is captured;
// responses come from CreateChatCompletionFunc or, if unset, an empty
// assistant message.
type MockChatAPI struct {
	CreateChatCompletionFunc func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)

	Requests []openai.ChatCompletionRequest
}

// CreateChatCompletion implements ChatAPI.
func (m *MockChatAPI) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.Requests = append(m.Requests, req)
	if m.CreateChatCompletionFunc != nil {
		return m.CreateChatCompletionFunc(ctx, req)
	}
	return TextResponse(""), nil
}

// CallCount returns the number of completion requests made.
func (m *MockChatAPI) CallCount() int {
	return len(m.Requests)
}

// MockToolExecutor is a configurable ToolExecutor for tests.
type MockToolExecutor struct {
	ExecuteToolFunc func(ctx context.Context, name, arguments string) (string, error)

	Calls []string
}

// ExecuteTool implements ToolExecutor.
func (m *MockToolExecutor) ExecuteTool(ctx context.Context, name, arguments string) (string, error) {
	m.Calls = append(m.Calls, name)
	if m.ExecuteToolFunc != nil {
		return m.ExecuteToolFunc(ctx, name, arguments)
	}
	return `{"metadata": {"total": 0, "query_ms": 0}, "results": []}`, nil
}

// TextResponse builds a completion response with a plain assistant message.
func TextResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: content,
			},
		}},
	}
}

// ToolCallResponse builds a completion response asking for one tool call.
func ToolCallResponse(id, name, arguments string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:   id,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      name,
						Arguments: arguments,
					},
				}},
			},
		}},
	}
}

var (
	_ ChatAPI      = (*MockChatAPI)(nil)
	_ ToolExecutor = (*MockToolExecutor)(nil)
)
