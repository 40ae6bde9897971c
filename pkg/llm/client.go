// Package llm wraps Azure OpenAI chat completions behind a narrow interface
// and runs the tool-calling chat session on top of it.
package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Config holds the Azure OpenAI connection settings.
type Config struct {
	Endpoint            string
	APIKey              string
	Deployment          string
	EmbeddingDeployment string
	APIVersion          string
}

// ChatAPI is the completion surface the chat session depends on. The
// production implementation is Client; tests inject mocks.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client is the Azure OpenAI client used for both chat completions and
// knowledge-base embeddings.
type Client struct {
	api    *openai.Client
	cfg    Config
	logger *zap.Logger
}

// NewClient validates the config and builds the Azure OpenAI client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("llm: endpoint is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: api key is required")
	}
	if cfg.Deployment == "" {
		return nil, fmt.Errorf("llm: chat deployment is required")
	}

	azureCfg := openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
	if cfg.APIVersion != "" {
		azureCfg.APIVersion = cfg.APIVersion
	}

	return &Client{
		api:    openai.NewClientWithConfig(azureCfg),
		cfg:    cfg,
		logger: logger.Named("llm"),
	}, nil
}

// Deployment returns the chat deployment name to pass as the request model.
func (c *Client) Deployment() string {
	return c.cfg.Deployment
}

// CreateChatCompletion implements ChatAPI with logging and error
// classification.
func (c *Client) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		classified := ClassifyError(err)
		c.logger.Warn("chat completion failed",
			zap.String("type", string(classified.Type)),
			zap.Duration("elapsed", time.Since(start)))
		return openai.ChatCompletionResponse{}, classified
	}

	c.logger.Debug("chat completion",
		zap.Int("messages", len(req.Messages)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))
	return resp, nil
}

// CreateEmbedding embeds a single text via the embedding deployment.
func (c *Client) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	if c.cfg.EmbeddingDeployment == "" {
		return nil, fmt.Errorf("llm: embedding deployment is not configured")
	}
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{input},
		Model: openai.EmbeddingModel(c.cfg.EmbeddingDeployment),
	})
	if err != nil {
		return nil, ClassifyError(err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("llm: empty embedding response")
	}
	return resp.Data[0].Embedding, nil
}

var _ ChatAPI = (*Client)(nil)
