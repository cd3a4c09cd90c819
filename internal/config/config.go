package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	MinContextLimit = 1
	MaxContextLimit = 10
)

type Config struct {
	App     AppConfig
	Keys    APIKeys
	Ai      AIConfig
	Ingest  IngestConfig
	Session SessionConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string // empty disables event forwarding to NATS
	RedisURL           string
	BodyLimitMB        int
}

type APIKeys struct {
	Supermemory string
	Anthropic   string
	OpenAI      string
}

type AIConfig struct {
	LLMProvider       string // "anthropic", "openai" or "ollama"
	LLMModel          string
	LLMBaseURL        string // empty means the provider default
	LLMMaxTokens      int
	RetrievalBaseURL  string
	RetrievalTag      string // optional container tag to scope searches
	ContextLimit      int    // chunks per query, within [MinContextLimit, MaxContextLimit]
	SystemPromptFile  string
	SmallTalkEnabled  bool
	RetrievalTimeout  time.Duration
	GenerationTimeout time.Duration
}

type IngestConfig struct {
	DocsPath     string
	ContainerTag string
}

type SessionConfig struct {
	Backend  string // "memory" or "redis"
	MaxTurns int
	TTL      time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			BodyLimitMB:        getEnvAsInt("BODY_LIMIT_MB", 20),
		},
		Keys: APIKeys{
			Supermemory: getEnv("SUPERMEMORY_API_KEY", ""),
			Anthropic:   getEnv("ANTHROPIC_API_KEY", ""),
			OpenAI:      getEnv("OPENAI_API_KEY", ""),
		},
		Ai: AIConfig{
			LLMProvider:       strings.ToLower(getEnv("LLM_PROVIDER", "anthropic")),
			LLMModel:          getEnv("LLM_MODEL", "claude-3-5-haiku-latest"),
			LLMBaseURL:        getEnv("LLM_BASE_URL", ""),
			LLMMaxTokens:      getEnvAsInt("LLM_MAX_TOKENS", 2048),
			RetrievalBaseURL:  getEnv("RETRIEVAL_BASE_URL", "https://api.supermemory.ai"),
			RetrievalTag:      getEnv("RETRIEVAL_SEARCH_TAG", ""),
			ContextLimit:      ClampContextLimit(getEnvAsInt("CONTEXT_LIMIT", 5)),
			SystemPromptFile:  getEnv("SYSTEM_PROMPT_FILE", ""),
			SmallTalkEnabled:  getEnvAsBool("SMALLTALK_ENABLED", true),
			RetrievalTimeout:  getEnvAsDuration("RETRIEVAL_TIMEOUT", 15*time.Second),
			GenerationTimeout: getEnvAsDuration("GENERATION_TIMEOUT", 60*time.Second),
		},
		Ingest: IngestConfig{
			DocsPath:     getEnv("DOCS_PATH", "./docs"),
			ContainerTag: getEnv("CONTAINER_TAG", "brittannia"),
		},
		Session: SessionConfig{
			Backend:  strings.ToLower(getEnv("SESSION_BACKEND", "memory")),
			MaxTurns: getEnvAsInt("SESSION_MAX_TURNS", 50),
			TTL:      getEnvAsDuration("SESSION_TTL", time.Hour),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// ClampContextLimit forces a chunk count into the accepted range.
// Zero or negative values fall back to the lower bound.
func ClampContextLimit(limit int) int {
	if limit < MinContextLimit {
		return MinContextLimit
	}
	if limit > MaxContextLimit {
		return MaxContextLimit
	}
	return limit
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
