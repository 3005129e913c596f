package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        int
	Environment string
	LogLevel    string

	DatabaseURL string
	NatsURL     string
	NatsToken   string
	RedisURL    string

	LLMProvider     string
	OpenAIAPIKey    string
	OpenAIModel     string
	AnthropicAPIKey string
	AnthropicModel  string
	LLMTimeout      time.Duration

	ManusAPIKey    string
	ManusBaseURL   string
	ManusProjectID string

	SlackBotToken      string
	SlackSigningSecret string

	MicrosoftAppID       string
	MicrosoftAppPassword string
	MicrosoftTenantID    string

	AzureStorageConnectionString string
	ArtifactContainer            string

	PromptTemplateFile string
	BriefingRateLimit  float64
	BriefingBurst      int
}

func Load() Config {
	return Config{
		Port:        envInt("SALESBOT_PORT", 8000),
		Environment: envStr("ENVIRONMENT", "development"),
		LogLevel:    envStr("LOG_LEVEL", "info"),

		DatabaseURL: envStr("DATABASE_URL", ""),
		NatsURL:     envStr("NATS_URL", "nats://localhost:4222"),
		NatsToken:   envStr("NATS_TOKEN", ""),
		RedisURL:    envStr("REDIS_URL", ""),

		LLMProvider:     envStr("LLM_PROVIDER", "openai"),
		OpenAIAPIKey:    envStr("OPENAI_API_KEY", ""),
		OpenAIModel:     envStr("OPENAI_MODEL", "gpt-4o-mini"),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  envStr("ANTHROPIC_MODEL", "claude-haiku-4-5-20251001"),
		LLMTimeout:      envDuration("LLM_TIMEOUT", 30*time.Second),

		ManusAPIKey:    envStr("MANUS_API_KEY", ""),
		ManusBaseURL:   envStr("MANUS_API_BASE_URL", "https://api.manus.im/v1"),
		ManusProjectID: envStr("MANUS_PROJECT_ID", ""),

		SlackBotToken:      envStr("SLACK_BOT_TOKEN", ""),
		SlackSigningSecret: envStr("SLACK_SIGNING_SECRET", ""),

		MicrosoftAppID:       envStr("MICROSOFT_APP_ID", ""),
		MicrosoftAppPassword: envStr("MICROSOFT_APP_PASSWORD", ""),
		MicrosoftTenantID:    envStr("MICROSOFT_TENANT_ID", ""),

		AzureStorageConnectionString: envStr("AZURE_STORAGE_CONNECTION_STRING", ""),
		ArtifactContainer:            envStr("ARTIFACT_CONTAINER", "salesbot-artifacts"),

		PromptTemplateFile: envStr("PROMPT_TEMPLATE_FILE", ""),
		BriefingRateLimit:  envFloat("BRIEFING_RATE_LIMIT", 5),
		BriefingBurst:      envInt("BRIEFING_BURST", 10),
	}
}

// LLMCredentials returns the API key and model of the selected provider.
func (c Config) LLMCredentials() (apiKey, model string) {
	if c.LLMProvider == "anthropic" {
		return c.AnthropicAPIKey, c.AnthropicModel
	}
	return c.OpenAIAPIKey, c.OpenAIModel
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
