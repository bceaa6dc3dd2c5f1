// Package config provides environment configuration for the inbox.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	AllowedOrigins     []string

	// Chat connector settings
	BeeperBaseURL     string
	BeeperAccessToken string
	UpstreamTimeout   time.Duration
	EnrichConcurrency int

	// Inbox behavior
	ConversationLimit int
	IncludeMuted      bool
	MessageLimit      int
	SuggestionWindow  int
	RefreshInterval   time.Duration

	// LLM settings
	AnthropicAPIKey string
	OpenAIAPIKey    string
	DefaultLLM      string
	LLMModel        string
	LLMMaxTokens    int
	LLMTimeout      time.Duration

	// Local API auth; empty disables it
	JWTSecret string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// NATS activity publishing; empty URL disables it
	NATSURL           string
	NATSCAFile        string
	NATSCertFile      string
	NATSKeyFile       string
	NATSToken         string
	NATSSubjectPrefix string

	// Logging
	Env      string
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
// Values from .env.local and .env are loaded first if the files exist;
// variables already set in the environment win.
func Load() *Config {
	_ = godotenv.Load(LocalEnvFile)
	_ = godotenv.Load()

	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 0),
		AllowedOrigins:     getListEnv("CORS_ALLOWED_ORIGINS"),

		// Connector
		BeeperBaseURL:     getEnv("BEEPER_BASE_URL", "http://localhost:23373"),
		BeeperAccessToken: getEnv("BEEPER_ACCESS_TOKEN", os.Getenv("BEEPER_MCP_TOKEN")),
		UpstreamTimeout:   getDurationEnv("UPSTREAM_TIMEOUT", 30*time.Second),
		EnrichConcurrency: getIntEnv("ENRICH_CONCURRENCY", 10),

		// Inbox
		ConversationLimit: getIntEnv("CONVERSATION_LIMIT", 30),
		IncludeMuted:      getBoolEnv("INCLUDE_MUTED", false),
		MessageLimit:      getIntEnv("MESSAGE_LIMIT", 30),
		SuggestionWindow:  getIntEnv("SUGGESTION_WINDOW", 30),
		RefreshInterval:   getDurationEnv("REFRESH_INTERVAL", 30*time.Second),

		// LLM
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		DefaultLLM:      getEnv("DEFAULT_LLM", "openai"),
		LLMModel:        getEnv("LLM_MODEL", ""),
		LLMMaxTokens:    getIntEnv("LLM_MAX_TOKENS", 512),
		LLMTimeout:      getDurationEnv("LLM_TIMEOUT", 60*time.Second),

		// Auth
		JWTSecret: getEnv("JWT_SECRET", ""),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// NATS
		NATSURL:           getEnv("NATS_URL", ""),
		NATSCAFile:        getEnv("NATS_CA_FILE", ""),
		NATSCertFile:      getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:       getEnv("NATS_KEY_FILE", ""),
		NATSToken:         getEnv("NATS_TOKEN", ""),
		NATSSubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "inbox"),

		// Logging
		Env:      getEnv("ENV", "production"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// LLMProvider picks the provider to use given the configured keys.
// DEFAULT_LLM wins when its key is present; otherwise any configured key is used.
func (c *Config) LLMProvider() (provider, apiKey string) {
	switch {
	case c.DefaultLLM == "anthropic" && c.AnthropicAPIKey != "":
		return "anthropic", c.AnthropicAPIKey
	case c.DefaultLLM == "openai" && c.OpenAIAPIKey != "":
		return "openai", c.OpenAIAPIKey
	case c.OpenAIAPIKey != "":
		return "openai", c.OpenAIAPIKey
	case c.AnthropicAPIKey != "":
		return "anthropic", c.AnthropicAPIKey
	}
	return "", ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getListEnv(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
