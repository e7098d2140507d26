package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Ai       AIConfig
	DeepChat DeepChatConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	LogLevel           string
	EventLogFilePath   string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JwtSecret          string
	OtelEnabled        bool
	OtelEndpoint       string
}

type DatabaseConfig struct {
	Connection string
}

type AIConfig struct {
	OllamaBaseURL      string
	HuggingFaceBaseURL string
	HuggingFaceAPIKey  string
	LLMProvider        string // "ollama" or "huggingface"
	LLMModel           string // e.g. "llama3", "qwen2.5"
	LLMTemperature     float64
	LLMMaxTokens       int
}

type DeepChatConfig struct {
	AnswerProvider   string // "http" or "llm"
	AnswerURL        string
	AnswerAPIKey     string
	DispatchTimeout  time.Duration
	SessionListLimit int
	PanelIdleTTL     time.Duration
	RolloverInterval time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			LogLevel:           getEnv("LOG_LEVEL", "info"),
			EventLogFilePath:   getEnv("EVENT_LOG_FILE_PATH", "logs/deepchat_events.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JwtSecret:          getEnv("JWT_SECRET", ""),
			OtelEnabled:        getEnvAsBool("OTEL_ENABLED", false),
			OtelEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Ai: AIConfig{
			OllamaBaseURL:      getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			HuggingFaceBaseURL: getEnv("HUGGINGFACE_BASE_URL", ""),
			HuggingFaceAPIKey:  getEnv("HUGGINGFACE_API_KEY", ""),
			LLMProvider:        getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:           getEnv("LLM_MODEL", "llama3"),
			LLMTemperature:     getEnvAsFloat("LLM_TEMPERATURE", 0.3),
			LLMMaxTokens:       getEnvAsInt("LLM_MAX_TOKENS", 1024),
		},
		DeepChat: DeepChatConfig{
			AnswerProvider:   getEnv("DEEPCHAT_ANSWER_PROVIDER", "http"),
			AnswerURL:        getEnv("DEEPCHAT_ANSWER_URL", "http://localhost:8080/api/callApi"),
			AnswerAPIKey:     getEnv("DEEPCHAT_ANSWER_API_KEY", ""),
			DispatchTimeout:  getEnvAsDuration("DEEPCHAT_DISPATCH_TIMEOUT", 90*time.Second),
			SessionListLimit: getEnvAsInt("DEEPCHAT_SESSION_LIST_LIMIT", 20),
			PanelIdleTTL:     getEnvAsDuration("DEEPCHAT_PANEL_IDLE_TTL", time.Hour),
			RolloverInterval: getEnvAsDuration("DEEPCHAT_ROLLOVER_INTERVAL", time.Hour),
		},
	}
}

// Validate reports settings the server cannot run without.
func (c *Config) Validate() error {
	if c.App.JwtSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
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

func getEnvAsFloat(key string, fallback float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
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

// getEnvAsDuration accepts Go durations ("45s") or plain seconds ("45").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	if seconds, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}
