package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"tenxcards-backend/internal/config"
	"tenxcards-backend/internal/logger"
	"tenxcards-backend/internal/services"
)

// newCompleter picks the completion engine for cfg.AIProvider. A missing key
// or an invalid setting is not fatal: the returned completer fails every call
// with the configuration error so that each attempt is still audited.
func newCompleter(ctx context.Context, cfg *config.Config, log *logger.Logger) (services.Completer, func(), error) {
	noop := func() {}
	provider := strings.ToLower(cfg.AIProvider)

	ccfg := services.CompletionConfig{
		APIKey:     cfg.AIAPIKey(),
		Model:      cfg.AIModel(),
		Timeout:    cfg.OpenRouterTimeout,
		MaxRetries: cfg.OpenRouterMaxRetries,
	}

	var (
		engine  services.CompletionEngine
		cleanup = noop
	)
	switch provider {
	case "openrouter":
		ccfg.APIURL = cfg.OpenRouterAPIURL
		if ccfg.APIKey != "" {
			engine = services.NewOpenRouterEngine(ccfg.APIKey, ccfg.APIURL, &http.Client{})
		}
	case "gemini":
		ccfg.APIURL = services.GeminiAPIURL
		if ccfg.APIKey != "" {
			gemini, err := services.NewGeminiEngine(ctx, ccfg.APIKey)
			if err != nil {
				return nil, noop, err
			}
			engine = gemini
			cleanup = gemini.Close
		}
	default:
		return nil, noop, fmt.Errorf("unknown AI_PROVIDER %q (want openrouter or gemini)", cfg.AIProvider)
	}

	client, err := services.NewCompletionClient(ccfg, engine, log)
	if err != nil {
		cleanup()
		log.Warn("AI completion is not configured; generation requests will fail", "provider", provider, "error", err)
		return services.NewUnconfiguredCompleter(ccfg.Model, err), noop, nil
	}
	return client, cleanup, nil
}
