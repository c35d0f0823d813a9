package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenxcards-backend/internal/config"
	"tenxcards-backend/internal/logger"
	"tenxcards-backend/internal/services"
)

func testConfig(provider string) *config.Config {
	return &config.Config{
		AIProvider:           provider,
		OpenRouterAPIURL:     "https://openrouter.ai/api/v1",
		OpenRouterModel:      "test/model",
		OpenRouterTimeout:    5 * time.Second,
		OpenRouterMaxRetries: 3,
		GeminiModel:          "gemini-2.0-flash",
	}
}

func TestNewCompleter_MissingKeyFallsBackToUnconfigured(t *testing.T) {
	completer, cleanup, err := newCompleter(context.Background(), testConfig("openrouter"), logger.Nop())
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, "test/model", completer.Model())

	req, err := services.NewCompletionRequest("system", "user")
	require.NoError(t, err)
	_, err = completer.Complete(context.Background(), req)

	var cfgErr *services.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestNewCompleter_OpenRouterWithKey(t *testing.T) {
	cfg := testConfig("openrouter")
	cfg.OpenRouterAPIKey = "sk-test"

	completer, cleanup, err := newCompleter(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	defer cleanup()

	assert.IsType(t, &services.CompletionClient{}, completer)
	assert.Equal(t, "test/model", completer.Model())
}

func TestNewCompleter_InvalidURLIsNotFatal(t *testing.T) {
	cfg := testConfig("openrouter")
	cfg.OpenRouterAPIKey = "sk-test"
	cfg.OpenRouterAPIURL = "not a url"

	completer, cleanup, err := newCompleter(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	defer cleanup()

	_, isClient := completer.(*services.CompletionClient)
	assert.False(t, isClient)
}

func TestNewCompleter_GeminiMissingKey(t *testing.T) {
	completer, cleanup, err := newCompleter(context.Background(), testConfig("gemini"), logger.Nop())
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, "gemini-2.0-flash", completer.Model())
}

func TestNewCompleter_UnknownProvider(t *testing.T) {
	_, _, err := newCompleter(context.Background(), testConfig("llama"), logger.Nop())
	assert.ErrorContains(t, err, "unknown AI_PROVIDER")
}
