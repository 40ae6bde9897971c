// Package config loads assistant settings from config.yaml and environment
// variables. Environment variables always override YAML values, and secrets
// (the Azure OpenAI API key) come from the environment only.
package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the Sentinel assistant.
type Config struct {
	AzureOpenAI AzureOpenAIConfig `yaml:"azure_openai"`
	Sentinel    SentinelConfig    `yaml:"sentinel"`
	Knowledge   KnowledgeConfig   `yaml:"knowledge"`
	Chat        ChatConfig        `yaml:"chat"`

	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
}

// AzureOpenAIConfig holds the chat and embedding endpoint settings.
type AzureOpenAIConfig struct {
	Endpoint       string `yaml:"endpoint" env:"AZURE_OPENAI_ENDPOINT" env-default:""`
	APIKey         string `yaml:"-" env:"AZURE_OPENAI_API_KEY"` // Secret - not in YAML
	ChatDeployment string `yaml:"chat_deployment" env:"AZURE_OPENAI_CHAT_DEPLOYMENT" env-default:"gpt-4o"`
	APIVersion     string `yaml:"api_version" env:"AZURE_OPENAI_API_VERSION" env-default:"2024-10-21"`

	// EmbeddingDeployment enables the knowledge base when set.
	EmbeddingDeployment string `yaml:"embedding_deployment" env:"AZURE_OPENAI_EMBEDDING_DEPLOYMENT" env-default:""`
}

// SentinelConfig identifies the Log Analytics workspace to query. Credentials
// come from DefaultAzureCredential (az login or a service principal).
type SentinelConfig struct {
	WorkspaceID string `yaml:"workspace_id" env:"SENTINEL_WORKSPACE_ID" env-default:""`
}

// KnowledgeConfig holds the optional vector store and ATT&CK cache settings.
type KnowledgeConfig struct {
	WeaviateHost   string `yaml:"weaviate_host" env:"WEAVIATE_HOST" env-default:""`
	WeaviateScheme string `yaml:"weaviate_scheme" env:"WEAVIATE_SCHEME" env-default:"http"`
	MitreCacheDir  string `yaml:"mitre_cache_dir" env:"MITRE_CACHE_DIR" env-default:""`
}

// ChatConfig holds the orchestrator tuning knobs.
type ChatConfig struct {
	MaxToolRounds int `yaml:"max_tool_rounds" env:"MAX_TOOL_ROUNDS" env-default:"5"`
	MaxTurns      int `yaml:"max_turns" env:"MAX_TURNS" env-default:"30"`
}

// Load reads configuration from .env, config.yaml, and the environment, in
// increasing precedence. A missing config.yaml is fine; a malformed one is
// an error.
func Load() (*Config, error) {
	// .env is a development convenience, absence is not an error.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}
	return cfg, nil
}

// requiredVars maps each mandatory setting to its description for
// validation output.
var requiredVars = []struct {
	Name        string
	Description string
	Get         func(*Config) string
}{
	{"AZURE_OPENAI_ENDPOINT", "Azure OpenAI endpoint URL", func(c *Config) string { return c.AzureOpenAI.Endpoint }},
	{"AZURE_OPENAI_API_KEY", "Azure OpenAI API key", func(c *Config) string { return c.AzureOpenAI.APIKey }},
	{"SENTINEL_WORKSPACE_ID", "Log Analytics workspace GUID", func(c *Config) string { return c.Sentinel.WorkspaceID }},
}

// MissingVars returns every unset required variable, formatted as
// "NAME (description)". All missing vars are reported at once so they can
// be fixed in one pass.
func (c *Config) MissingVars() []string {
	var missing []string
	for _, v := range requiredVars {
		if v.Get(c) == "" {
			missing = append(missing, fmt.Sprintf("%s (%s)", v.Name, v.Description))
		}
	}
	return missing
}

// KnowledgeEnabled reports whether the vector store should be wired in.
// Both the Weaviate host and an embedding deployment are needed.
func (c *Config) KnowledgeEnabled() bool {
	return c.Knowledge.WeaviateHost != "" && c.AzureOpenAI.EmbeddingDeployment != ""
}
