package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL   string
	MigrationsDir string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// AI provider: "openrouter" | "gemini"
	AIProvider string

	// OpenRouter
	OpenRouterAPIKey     string
	OpenRouterAPIURL     string
	OpenRouterModel      string
	OpenRouterTimeout    time.Duration
	OpenRouterMaxRetries int

	// Gemini
	GeminiAPIKey string
	GeminiModel  string

	// Limits
	GenerationsPerHour int
	UploadMaxBytes     int64

	// Workers
	ErrorLogWorkers int

	// Logging
	LogFile string

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "8080"),
		Env:                  getEnvOrDefault("ENV", "development"),
		DatabaseURL:          mustGetEnv("DATABASE_URL"),
		MigrationsDir:        getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
		RedisURL:             mustGetEnv("REDIS_URL"),
		JWTSecret:            mustGetEnv("JWT_SECRET"),
		AIProvider:           getEnvOrDefault("AI_PROVIDER", "openrouter"),
		OpenRouterAPIKey:     getEnvOrDefault("OPENROUTER_API_KEY", ""),
		OpenRouterAPIURL:     getEnvOrDefault("OPENROUTER_API_URL", "https://openrouter.ai/api/v1"),
		OpenRouterModel:      getEnvOrDefault("OPENROUTER_MODEL", "qwen/qwen3-30b-a3b:free"),
		OpenRouterTimeout:    time.Duration(getEnvAsIntOrDefault("OPENROUTER_TIMEOUT_MS", 30000)) * time.Millisecond,
		OpenRouterMaxRetries: getEnvAsIntOrDefault("OPENROUTER_MAX_RETRIES", 3),
		GeminiAPIKey:         getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		GenerationsPerHour:   getEnvAsIntOrDefault("GENERATIONS_PER_HOUR", 30),
		UploadMaxBytes:       int64(getEnvAsIntOrDefault("UPLOAD_MAX_BYTES", 10<<20)),
		ErrorLogWorkers:      getEnvAsIntOrDefault("ERROR_LOG_WORKERS", 2),
		LogFile:              getEnvOrDefault("LOG_FILE", ""),
		FrontendURL:          getEnvOrDefault("FRONTEND_URL", "http://localhost:4321"),
	}

	return cfg
}

// AIAPIKey returns the key for the selected provider. An empty key is not
// fatal at boot; generation requests fail with a configuration error instead.
func (c *Config) AIAPIKey() string {
	if c.AIProvider == "gemini" {
		return c.GeminiAPIKey
	}
	return c.OpenRouterAPIKey
}

// AIModel returns the model name for the selected provider.
func (c *Config) AIModel() string {
	if c.AIProvider == "gemini" {
		return c.GeminiModel
	}
	return c.OpenRouterModel
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
