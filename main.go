package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/arclight-sec/sentinel-assistant/pkg/config"
	"github.com/arclight-sec/sentinel-assistant/pkg/knowledge"
	"github.com/arclight-sec/sentinel-assistant/pkg/llm"
	"github.com/arclight-sec/sentinel-assistant/pkg/logging"
	"github.com/arclight-sec/sentinel-assistant/pkg/mcp"
	"github.com/arclight-sec/sentinel-assistant/pkg/mitre"
	"github.com/arclight-sec/sentinel-assistant/pkg/models"
	"github.com/arclight-sec/sentinel-assistant/pkg/prompts"
	"github.com/arclight-sec/sentinel-assistant/pkg/sentinel"
	"github.com/arclight-sec/sentinel-assistant/pkg/tools"
)

// Version is set at build time via ldflags
var Version = "dev"

const welcomeBanner = `Sentinel AI Assistant
Query incidents, alerts, trends, and entities using natural language.
Commands: /clear (reset conversation), /quit or /exit (leave)
`

const goodbye = "Goodbye."

func main() {
	validate := flag.Bool("validate", false, "Validate configuration and Azure connectivity, then exit")
	mcpMode := flag.Bool("mcp", false, "Serve the query tools over MCP stdio instead of the chat CLI")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if *validate {
		os.Exit(runValidate(cfg))
	}

	if missing := cfg.MissingVars(); len(missing) > 0 {
		fmt.Fprintf(os.Stderr, "Configuration error: %d required env var(s) missing:\n", len(missing))
		for _, varDesc := range missing {
			fmt.Fprintf(os.Stderr, "  - %s\n", varDesc)
		}
		os.Exit(1)
	}

	llmClient, err := llm.NewClient(llm.Config{
		Endpoint:            cfg.AzureOpenAI.Endpoint,
		APIKey:              cfg.AzureOpenAI.APIKey,
		Deployment:          cfg.AzureOpenAI.ChatDeployment,
		EmbeddingDeployment: cfg.AzureOpenAI.EmbeddingDeployment,
		APIVersion:          cfg.AzureOpenAI.APIVersion,
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	sentinelClient, err := sentinel.NewAzureClient(cfg.Sentinel.WorkspaceID, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *mcpMode {
		dispatcher := tools.NewDispatcher(sentinelClient, nil, logger)
		if err := runMCP(dispatcher, logger); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	kb := setupKnowledge(cfg, llmClient, logger)
	dispatcher := tools.NewDispatcher(sentinelClient, kb, logger)

	toolDefs := llm.SentinelTools()
	if kb != nil {
		toolDefs = append(toolDefs, llm.KnowledgeTools()...)
	}
	session := llm.NewChatSession(llmClient, dispatcher, llm.BuildOpenAITools(toolDefs), llm.SessionConfig{
		Model:         llmClient.Deployment(),
		MaxToolRounds: cfg.Chat.MaxToolRounds,
		MaxTurns:      cfg.Chat.MaxTurns,
	}, logger)
	session.SetStatusFunc(func(toolName string) {
		fmt.Fprintln(os.Stderr, tools.StatusMessage(toolName))
	})
	session.SetNoticeFunc(func(notice string) {
		fmt.Fprintln(os.Stderr, notice)
	})

	runChat(session)
}

// setupKnowledge wires the vector store when configured. Any setup failure
// degrades to a nil store, so the chat still works without the KB tools.
func setupKnowledge(cfg *config.Config, embedder knowledge.Embedder, logger *zap.Logger) *knowledge.Store {
	if !cfg.KnowledgeEnabled() {
		return nil
	}

	store, err := knowledge.NewStore(cfg.Knowledge.WeaviateHost, cfg.Knowledge.WeaviateScheme, embedder, logger)
	if err != nil {
		logger.Warn("knowledge base unavailable", zap.Error(err))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := store.EnsureSchema(ctx); err != nil {
		logger.Warn("knowledge base unavailable", zap.Error(err))
		return nil
	}
	techniques := mitre.NewClient(cfg.Knowledge.MitreCacheDir, logger).Fetch(ctx)
	if err := store.Seed(ctx, techniques); err != nil {
		logger.Warn("knowledge base seeding failed", zap.Error(err))
		return nil
	}
	return store
}

func runMCP(dispatcher *tools.Dispatcher, logger *zap.Logger) error {
	server := mcp.NewServer("sentinel-assistant", Version, logger)
	if err := mcp.RegisterQueryTools(server.MCP(), dispatcher); err != nil {
		return err
	}
	return server.ServeStdio()
}

func runChat(session *llm.ChatSession) {
	fmt.Fprint(os.Stderr, welcomeBanner, "\n")
	fmt.Fprintln(os.Stderr, prompts.Disclaimer)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("\nYou: ")
		if !scanner.Scan() {
			fmt.Println("\n" + goodbye)
			return
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "/quit", "/exit":
			fmt.Println(goodbye)
			return
		case "/clear":
			clearConversation(session)
			continue
		}

		response, err := session.SendMessage(context.Background(), input)
		if err != nil {
			printChatError(err)
			continue
		}
		fmt.Printf("\nAssistant: %s\n", response)
	}
}

func clearConversation(session *llm.ChatSession) {
	summary, err := session.Clear(context.Background())
	if err != nil {
		printChatError(err)
		return
	}

	// ANSI escape: clear screen and move the cursor home.
	fmt.Print("\033[2J\033[H")
	fmt.Fprint(os.Stderr, welcomeBanner, "\n")
	fmt.Println()
	fmt.Println("---------------------------------- Conversation cleared ----------------------------------")
	fmt.Println()
	fmt.Println("Summary of previous conversation:")
	fmt.Println(summary)
	fmt.Println()
	fmt.Println("-------------------------------------------------------------------------------------------")
	fmt.Println()
}

func printChatError(err error) {
	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		switch llmErr.Type {
		case llm.ErrorTypeAuth:
			fmt.Fprintln(os.Stderr, "\nError: Authentication failed. Check your API key.")
			return
		case llm.ErrorTypeConnection, llm.ErrorTypeEndpoint:
			fmt.Fprintln(os.Stderr, "\nError: Could not connect to Azure OpenAI. Check your endpoint.")
			return
		default:
			fmt.Fprintf(os.Stderr, "\nError: Azure OpenAI API error: %s\n", llmErr.Message)
			return
		}
	}
	fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
}

// runValidate performs two-layer validation: required env vars first, then
// live connectivity to Azure OpenAI and the Sentinel workspace. All missing
// vars are reported before exiting so they can be fixed in one pass.
func runValidate(cfg *config.Config) int {
	fmt.Println("Configuration Validation")
	fmt.Println()

	missing := cfg.MissingVars()
	missingSet := make(map[string]bool, len(missing))
	for _, varDesc := range missing {
		name := strings.SplitN(varDesc, " (", 2)[0]
		missingSet[name] = true
	}
	for _, name := range []string{"AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_API_KEY", "SENTINEL_WORKSPACE_ID"} {
		if missingSet[name] {
			fmt.Printf("  %-28s FAIL  Missing\n", "Env: "+name)
		} else {
			fmt.Printf("  %-28s PASS  Set\n", "Env: "+name)
		}
	}

	if len(missing) > 0 {
		fmt.Printf("\nValidation failed: %d required env var(s) missing. Connectivity checks skipped.\n", len(missing))
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	openaiOK, openaiMsg := checkOpenAI(ctx, cfg)
	fmt.Printf("  %-28s %s  %s\n", "Azure OpenAI", passFail(openaiOK), openaiMsg)

	sentinelOK, sentinelMsg := checkSentinel(ctx, cfg)
	fmt.Printf("  %-28s %s  %s\n", "Sentinel", passFail(sentinelOK), sentinelMsg)

	if !openaiOK || !sentinelOK {
		fmt.Println("\nValidation failed: One or more connectivity checks failed.")
		return 1
	}
	fmt.Println("\nAll checks passed.")
	return 0
}

func passFail(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}

// checkOpenAI sends a minimal completion. Content filter rejections get an
// actionable message instead of a generic error.
func checkOpenAI(ctx context.Context, cfg *config.Config) (bool, string) {
	client, err := llm.NewClient(llm.Config{
		Endpoint:   cfg.AzureOpenAI.Endpoint,
		APIKey:     cfg.AzureOpenAI.APIKey,
		Deployment: cfg.AzureOpenAI.ChatDeployment,
		APIVersion: cfg.AzureOpenAI.APIVersion,
	}, zap.NewNop())
	if err != nil {
		return false, err.Error()
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: client.Deployment(),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "Hello, respond with OK."},
		},
		MaxTokens: 10,
	})
	if err != nil {
		if isContentFilterError(err) {
			return false, "Content filter modification pending -- approval required before security queries work"
		}
		var llmErr *llm.Error
		if errors.As(err, &llmErr) {
			switch llmErr.Type {
			case llm.ErrorTypeAuth:
				return false, "Azure OpenAI authentication failed -- check API key"
			case llm.ErrorTypeConnection:
				return false, "Azure OpenAI connection failed -- check endpoint URL"
			default:
				return false, "Azure OpenAI error: " + llmErr.Message
			}
		}
		return false, "Azure OpenAI error: " + err.Error()
	}

	if len(resp.Choices) > 0 && resp.Choices[0].FinishReason == openai.FinishReasonContentFilter {
		return false, "Content filter modification pending -- approval required before security queries work"
	}
	return true, "Azure OpenAI connected"
}

func isContentFilterError(err error) bool {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return fmt.Sprint(apiErr.Code) == "content_filter"
}

// checkSentinel runs a minimal KQL query to verify workspace access.
func checkSentinel(ctx context.Context, cfg *config.Config) (bool, string) {
	logs, err := sentinel.NewAzureLogsAPI()
	if err != nil {
		return false, "Sentinel auth failed -- run 'az login' or check service principal"
	}

	resp, err := logs.Query(ctx, cfg.Sentinel.WorkspaceID, "SecurityIncident | take 1", 24*time.Hour, 60*time.Second)
	if err != nil {
		return false, sentinelFailureMessage(err)
	}

	if resp.Partial != nil {
		return true, "Sentinel connected (partial results)"
	}
	return true, "Sentinel connected"
}

// sentinelFailureMessage maps a connectivity-check failure to an actionable
// hint. The HTTP status identifies auth and workspace problems; everything
// else surfaces the backend message.
func sentinelFailureMessage(err error) string {
	var qerr *models.QueryError
	if errors.As(err, &qerr) {
		switch qerr.Status {
		case 401, 403:
			return "Sentinel auth failed -- run 'az login' or check service principal"
		case 404:
			return "Sentinel workspace not found -- check SENTINEL_WORKSPACE_ID"
		}
		return "Sentinel error: " + logging.TruncateString(qerr.Message, 200)
	}
	return "Sentinel error: " + logging.TruncateString(err.Error(), 200)
}
