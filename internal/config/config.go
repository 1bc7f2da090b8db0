package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Keys     APIKeys
	Ai       AIConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	NotificationLog    string
	CorsAllowedOrigins string
	CorsAllowedHeaders string
	NatsURL            string
	RedisURL           string
	JwtSecret          string
	BodyLimit          int
	AnalysisTimeout    time.Duration
	ChatTimeout        time.Duration
	ChatLockTTL        time.Duration
	OtelEnabled        bool
	OtelEndpoint       string
}

type DatabaseConfig struct {
	Connection string
}

type APIKeys struct {
	Gateway      string
	GoogleGemini string
	EventsTopic  string // in-process analysis events topic
}

type AIConfig struct {
	LLMProvider       string // "gateway", "ollama", "gemini"
	LLMModel          string
	VisionModel       string
	GatewayBaseURL    string
	OllamaBaseURL     string
	ChatHistoryWindow int // 0 keeps the whole history
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	cfg := &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			NotificationLog:    getEnv("NOTIFICATION_LOG_PATH", "logs/notification.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			CorsAllowedHeaders: getEnv("CORS_ALLOWED_HEADERS", "authorization, x-client-info, apikey, content-type"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			JwtSecret:          getEnv("JWT_SECRET", ""),
			BodyLimit:          getEnvAsInt("BODY_LIMIT", 10*1024*1024),
			AnalysisTimeout:    getEnvAsDuration("ANALYSIS_TIMEOUT", 90*time.Second),
			ChatTimeout:        getEnvAsDuration("CHAT_TIMEOUT", 5*time.Minute),
			ChatLockTTL:        getEnvAsDuration("CHAT_LOCK_TTL", 5*time.Minute),
			OtelEnabled:        getEnv("OTEL_ENABLED", "false") == "true",
			OtelEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Keys: APIKeys{
			Gateway:      getEnv("AI_GATEWAY_API_KEY", ""),
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
			EventsTopic:  getEnv("ANALYSIS_EVENTS_TOPIC", "ANALYSIS_SAVED"),
		},
		Ai: AIConfig{
			LLMProvider:       getEnv("LLM_PROVIDER", "gateway"),
			LLMModel:          getEnv("LLM_MODEL", "google/gemini-2.5-flash"),
			VisionModel:       getEnv("VISION_MODEL", ""),
			GatewayBaseURL:    getEnv("AI_GATEWAY_BASE_URL", "https://ai.gateway.lovable.dev/v1"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			ChatHistoryWindow: getEnvAsInt("CHAT_HISTORY_WINDOW", 0),
		},
	}
	cfg.normalize()
	return cfg
}

// normalize keeps the chat lock alive for as long as a stream may run.
func (c *Config) normalize() {
	if c.App.ChatLockTTL < c.App.ChatTimeout {
		log.Printf("Note: CHAT_LOCK_TTL %s is shorter than CHAT_TIMEOUT %s, using %s", c.App.ChatLockTTL, c.App.ChatTimeout, c.App.ChatTimeout)
		c.App.ChatLockTTL = c.App.ChatTimeout
	}
}

// IsProduction reports whether GO_ENV selects production logging.
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

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil && value > 0 {
		return value
	}
	return fallback
}
