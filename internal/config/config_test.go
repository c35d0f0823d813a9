package config

import (
	"os"
	"testing"
	"time"
)

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal string
		expected   string
	}{
		{"uses env value", "TEST_VAR_1", "hello", "default", "hello"},
		{"uses default when empty", "TEST_VAR_2", "", "default", "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			result := getEnvOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, result)
			}
		})
	}
}

func TestGetEnvAsIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal int
		expected   int
	}{
		{"parses integer", "TEST_INT_1", "42", 10, 42},
		{"uses default for empty", "TEST_INT_2", "", 10, 10},
		{"uses default for non-numeric", "TEST_INT_3", "abc", 10, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			result := getEnvAsIntOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, result)
			}
		})
	}
}

func TestMustGetEnv_Panics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for missing required env var")
		}
	}()

	os.Unsetenv("NONEXISTENT_REQUIRED_VAR")
	mustGetEnv("NONEXISTENT_REQUIRED_VAR")
}

func TestMustGetEnv_ReturnsValue(t *testing.T) {
	os.Setenv("TEST_REQUIRED", "value123")
	defer os.Unsetenv("TEST_REQUIRED")

	result := mustGetEnv("TEST_REQUIRED")
	if result != "value123" {
		t.Errorf("Expected 'value123', got %q", result)
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/tenxcards")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("OPENROUTER_TIMEOUT_MS", "")
	t.Setenv("AI_PROVIDER", "")

	cfg := Load()

	if cfg.OpenRouterAPIURL != "https://openrouter.ai/api/v1" {
		t.Errorf("unexpected api url %q", cfg.OpenRouterAPIURL)
	}
	if cfg.OpenRouterTimeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %s", cfg.OpenRouterTimeout)
	}
	if cfg.OpenRouterMaxRetries != 3 {
		t.Errorf("expected 3 retries, got %d", cfg.OpenRouterMaxRetries)
	}
	if cfg.OpenRouterModel != "qwen/qwen3-30b-a3b:free" {
		t.Errorf("unexpected model %q", cfg.OpenRouterModel)
	}
	if cfg.AIAPIKey() != "" {
		t.Errorf("expected empty api key, got %q", cfg.AIAPIKey())
	}
}

func TestConfig_ProviderSelection(t *testing.T) {
	cfg := &Config{
		AIProvider:       "gemini",
		GeminiAPIKey:     "g-key",
		GeminiModel:      "gemini-2.0-flash",
		OpenRouterAPIKey: "or-key",
		OpenRouterModel:  "qwen",
	}
	if cfg.AIAPIKey() != "g-key" || cfg.AIModel() != "gemini-2.0-flash" {
		t.Errorf("gemini provider not selected: %q %q", cfg.AIAPIKey(), cfg.AIModel())
	}

	cfg.AIProvider = "openrouter"
	if cfg.AIAPIKey() != "or-key" || cfg.AIModel() != "qwen" {
		t.Errorf("openrouter provider not selected: %q %q", cfg.AIAPIKey(), cfg.AIModel())
	}
}
