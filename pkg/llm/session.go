package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/arclight-sec/sentinel-assistant/pkg/prompts"
)

// ToolExecutor runs a named tool with raw JSON arguments and returns the
// serialized result for the tool message.
type ToolExecutor interface {
	ExecuteTool(ctx context.Context, name string, arguments string) (string, error)
}

// ToolUse records one tool invocation for transparency reporting.
type ToolUse struct {
	Tool          string
	Args          string
	ResultPreview string
}

// SessionConfig bounds a chat session.
type SessionConfig struct {
	Model         string
	SystemPrompt  string
	MaxToolRounds int
	MaxTurns      int
}

// ChatSession runs the tool-calling conversation loop. History holds user,
// assistant and tool messages only; the system prompt is prepended fresh on
// every call and never stored.
type ChatSession struct {
	api      ChatAPI
	executor ToolExecutor
	tools    []openai.Tool
	cfg      SessionConfig
	logger   *zap.Logger

	messages  []openai.ChatCompletionMessage
	turnCount int
	toolLog   []ToolUse

	statusFn func(toolName string)
	noticeFn func(notice string)
}

// NewChatSession builds a session. Zero config fields fall back to the
// standard limits and the default system prompt.
func NewChatSession(api ChatAPI, executor ToolExecutor, tools []openai.Tool, cfg SessionConfig, logger *zap.Logger) *ChatSession {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = prompts.SystemPrompt
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = 5
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 30
	}
	return &ChatSession{
		api:      api,
		executor: executor,
		tools:    tools,
		cfg:      cfg,
		logger:   logger.Named("chat-session").With(zap.String("session_id", uuid.NewString())),
	}
}

// SetStatusFunc installs a callback invoked before each tool execution with
// a user-facing status line.
func (s *ChatSession) SetStatusFunc(fn func(toolName string)) {
	s.statusFn = fn
}

// SetNoticeFunc installs a callback for session notices such as the history
// trimming warning.
func (s *ChatSession) SetNoticeFunc(fn func(notice string)) {
	s.noticeFn = fn
}

// SendMessage appends a user turn, runs the bounded tool loop, and returns
// the assistant's final text. When the round budget runs out before the
// model produces text, one last tool-free call asks it to summarize.
func (s *ChatSession) SendMessage(ctx context.Context, userInput string) (string, error) {
	s.messages = append(s.messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userInput,
	})
	s.turnCount++
	if s.turnCount > s.cfg.MaxTurns {
		s.notice(prompts.TokenWarning)
		s.trim()
	}
	s.toolLog = s.toolLog[:0]

	gotFinal := false
	for round := 0; round < s.cfg.MaxToolRounds; round++ {
		msg, err := s.complete(ctx, s.tools)
		if err != nil {
			return "", err
		}

		if len(msg.ToolCalls) == 0 {
			s.messages = append(s.messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.Content,
			})
			gotFinal = true
			break
		}

		results := make([]openai.ChatCompletionMessage, 0, len(msg.ToolCalls))
		for _, tc := range msg.ToolCalls {
			s.status(tc.Function.Name)
			content, execErr := s.executor.ExecuteTool(ctx, tc.Function.Name, tc.Function.Arguments)
			if execErr != nil {
				content = fmt.Sprintf("Error executing tool: %v", execErr)
			}
			results = append(results, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    content,
				Name:       tc.Function.Name,
				ToolCallID: tc.ID,
			})
			s.toolLog = append(s.toolLog, ToolUse{
				Tool:          tc.Function.Name,
				Args:          tc.Function.Arguments,
				ResultPreview: summarizeResult(content),
			})
		}
		s.appendToolRound(msg, results)
	}

	if !gotFinal {
		// Round budget exhausted without a text answer.
		s.messages = append(s.messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: prompts.MaxRoundsMessage,
		})
		msg, err := s.complete(ctx, nil)
		if err != nil {
			return "", err
		}
		s.messages = append(s.messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleAssistant,
			Content: msg.Content,
		})
	}

	return s.lastAssistantContent(), nil
}

// Clear wipes the history, keeping a one-message summary of the session as
// prior context. An empty session reports that there is nothing to clear.
func (s *ChatSession) Clear(ctx context.Context) (string, error) {
	if len(s.messages) == 0 {
		return "Nothing to clear.", nil
	}

	messages := append(s.withSystem(), openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompts.ClearSummaryTemplate,
	})
	resp, err := s.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    s.cfg.Model,
		Messages: messages,
	})
	if err != nil {
		return "", ClassifyError(err)
	}

	summary := ""
	if len(resp.Choices) > 0 {
		summary = resp.Choices[0].Message.Content
	}
	if summary == "" {
		summary = "Session cleared."
	}

	s.messages = []openai.ChatCompletionMessage{{
		Role:    openai.ChatMessageRoleAssistant,
		Content: "Previous session context: " + summary,
	}}
	s.turnCount = 0
	return summary, nil
}

// TurnCount returns the number of user turns since the last clear.
func (s *ChatSession) TurnCount() int {
	return s.turnCount
}

// HistoryLength returns the number of stored messages.
func (s *ChatSession) HistoryLength() int {
	return len(s.messages)
}

// ToolLog returns the tool invocations from the most recent SendMessage.
func (s *ChatSession) ToolLog() []ToolUse {
	return s.toolLog
}

func (s *ChatSession) complete(ctx context.Context, tools []openai.Tool) (openai.ChatCompletionMessage, error) {
	req := openai.ChatCompletionRequest{
		Model:    s.cfg.Model,
		Messages: s.withSystem(),
	}
	if len(tools) > 0 {
		req.Tools = tools
		req.ToolChoice = "auto"
	}
	resp, err := s.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return openai.ChatCompletionMessage{}, ClassifyError(err)
	}
	if len(resp.Choices) == 0 {
		return openai.ChatCompletionMessage{}, &Error{Type: ErrorTypeUnknown, Message: "no choices in completion response"}
	}
	return resp.Choices[0].Message, nil
}

// appendToolRound writes the assistant message and its tool results as one
// group, so a tool result can never precede the assistant message that
// requested it.
func (s *ChatSession) appendToolRound(assistant openai.ChatCompletionMessage, results []openai.ChatCompletionMessage) {
	s.messages = append(s.messages, openai.ChatCompletionMessage{
		Role:      openai.ChatMessageRoleAssistant,
		Content:   assistant.Content,
		ToolCalls: assistant.ToolCalls,
	})
	s.messages = append(s.messages, results...)
}

func (s *ChatSession) withSystem() []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(s.messages)+1)
	out = append(out, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: s.cfg.SystemPrompt,
	})
	return append(out, s.messages...)
}

// trim drops the oldest turns down to 2*MaxTurns messages, always cutting at
// a user-message boundary so an assistant tool-call message is never split
// from its results. With fewer than two user messages there is no safe cut.
func (s *ChatSession) trim() {
	target := s.cfg.MaxTurns * 2
	for len(s.messages) > target {
		cut := -1
		users := 0
		for i, m := range s.messages {
			if m.Role == openai.ChatMessageRoleUser {
				users++
				if users == 2 {
					cut = i
					break
				}
			}
		}
		if cut < 0 {
			break
		}
		s.messages = s.messages[cut:]
	}
	s.logger.Debug("trimmed history", zap.Int("messages", len(s.messages)))
}

func (s *ChatSession) lastAssistantContent() string {
	for i := len(s.messages) - 1; i >= 0; i-- {
		m := s.messages[i]
		if m.Role == openai.ChatMessageRoleAssistant && m.Content != "" {
			return m.Content
		}
	}
	return ""
}

func (s *ChatSession) status(toolName string) {
	if s.statusFn != nil {
		s.statusFn(toolName)
	}
}

func (s *ChatSession) notice(text string) {
	if s.noticeFn != nil {
		s.noticeFn(text)
	}
}

// summarizeResult builds a short preview of a tool result for the tool log:
// "{total} results, {ms}ms" for query envelopes, "Error: ..." for errors.
func summarizeResult(content string) string {
	var payload map[string]any
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return "OK"
	}
	if _, ok := payload["error"]; ok {
		if msg, ok := payload["message"].(string); ok && msg != "" {
			return "Error: " + msg
		}
		if msg, ok := payload["error"].(string); ok {
			return "Error: " + msg
		}
		return "Error: unknown"
	}
	if meta, ok := payload["metadata"].(map[string]any); ok {
		total, _ := meta["total"].(float64)
		queryMS, _ := meta["query_ms"].(float64)
		return fmt.Sprintf("%d results, %.0fms", int(total), queryMS)
	}
	if _, ok := payload["code"]; ok {
		if msg, ok := payload["message"].(string); ok {
			return "Error: " + msg
		}
	}
	return "OK"
}
