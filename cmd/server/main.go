package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tenxcards-backend/internal/config"
	"tenxcards-backend/internal/database"
	"tenxcards-backend/internal/handlers"
	"tenxcards-backend/internal/logger"
	"tenxcards-backend/internal/middleware"
	"tenxcards-backend/internal/repository"
	"tenxcards-backend/internal/router"
	"tenxcards-backend/internal/services"
	"tenxcards-backend/internal/websocket"
	"tenxcards-backend/internal/worker"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	log, err := logger.New(cfg.Env, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Logger initialization failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("🚀 Starting 10xCards Backend...")
	log.Info("✓ Environment variables loaded", "env", cfg.Env, "ai_provider", cfg.AIProvider)

	ctx := context.Background()

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("✗ PostgreSQL connection failed", "error", err)
	}
	defer pool.Close()
	log.Info("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatal("✗ Redis connection failed", "error", err)
	}
	defer redisClients.Close()
	log.Info("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(ctx, pool, cfg.MigrationsDir, log); err != nil {
		log.Fatal("✗ Database migration failed", "error", err)
	}
	log.Info("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	generationRepo := repository.NewGenerationRepo(pool)
	flashcardRepo := repository.NewFlashcardRepo(pool)
	errorLogRepo := repository.NewErrorLogRepo(pool)

	// ──── Step 5: Initialize AI Completion Client ────
	completer, closeCompleter, err := newCompleter(ctx, cfg, log)
	if err != nil {
		log.Fatal("✗ AI client initialization failed", "error", err)
	}
	defer closeCompleter()
	log.Info("✓ AI completion client initialized", "provider", cfg.AIProvider, "model", completer.Model())

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	events := services.NewRedisEventPublisher(redisClients.Main, log)
	recorder := services.NewRecorder(generationRepo, errorLogRepo, redisClients.Main, log)
	generationService := services.NewGenerationService(completer, recorder, generationRepo, flashcardRepo, events, log)
	flashcardService := services.NewFlashcardService(flashcardRepo, generationRepo, events, log)
	authService := services.NewAuthService(userRepo, redisClients.Main, jwtAuth)
	quota := services.NewGenerationQuota(redisClients.Main, cfg.GenerationsPerHour)
	sourceService := services.NewSourceService(services.NewFileExtractService(), services.NewYouTubeService(log))

	// ──── Initialize Handlers ────
	authHandler := handlers.NewAuthHandler(authService, log)
	generationHandler := handlers.NewGenerationHandler(generationService, quota, log)
	flashcardHandler := handlers.NewFlashcardHandler(flashcardService, log)
	sourceHandler := handlers.NewSourceHandler(sourceService, cfg.UploadMaxBytes, log)

	// ──── Step 6: Start Error Log Worker Pool ────
	workerPool := worker.NewPool(redisClients.Main, errorLogRepo, log, cfg.ErrorLogWorkers)
	workerPool.Start()
	log.Info(fmt.Sprintf("✓ Worker pool started (%d goroutines)", cfg.ErrorLogWorkers))

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth, cfg.FrontendURL, log)
	log.Info("✓ WebSocket hub started")

	// ──── Step 8: Start HTTP Server ────
	r := router.New(router.Deps{
		JWTAuth:           jwtAuth,
		AuthHandler:       authHandler,
		GenerationHandler: generationHandler,
		FlashcardHandler:  flashcardHandler,
		SourceHandler:     sourceHandler,
		Hub:               wsHub,
		Health: map[string]router.HealthChecker{
			"postgres": pool.Ping,
			"redis":    redisClients.Ping,
		},
		FrontendURL: cfg.FrontendURL,
		Log:         log,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: time.Duration(cfg.OpenRouterMaxRetries+1)*cfg.OpenRouterTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down...")
		workerPool.Stop()
		wsHub.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("HTTP server shutdown failed", "error", err)
		}
	}()

	log.Info(fmt.Sprintf("✓ 10xCards Backend ready on http://localhost:%s", cfg.Port))
	log.Info(fmt.Sprintf("  API: http://localhost:%s/api", cfg.Port))
	log.Info(fmt.Sprintf("  WS:  ws://localhost:%s/api/ws", cfg.Port))

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("Server error", "error", err)
	}
	<-done
}
