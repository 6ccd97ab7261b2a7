package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gemini-relay/internal/config"
	"gemini-relay/internal/database"
	"gemini-relay/internal/handlers"
	"gemini-relay/internal/logger"
	"gemini-relay/internal/prompt"
	"gemini-relay/internal/router"
	"gemini-relay/internal/services"
	"gemini-relay/internal/sessions"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg, err := config.Load()
	if err != nil {
		logger.New().Error("✗ Configuration invalid", "error", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg)
	if err != nil {
		logger.New().Error("✗ Logger configuration invalid", "error", err)
		os.Exit(1)
	}
	log.Info("🚀 Starting Gemini relay...")
	log.Info("✓ Environment variables loaded", "env", cfg.Env)

	// ──── Step 2: Compile Prompt Policy ────
	policy, err := prompt.New(prompt.Policy{
		Mode:              prompt.Mode(cfg.PromptMode),
		Template:          cfg.PromptTemplate,
		Domain:            cfg.GroundingDomain,
		SystemInstruction: cfg.SystemInstruction,
		EnableSearch:      cfg.EnableSearch,
	})
	if err != nil {
		fatal(log, "✗ Prompt policy invalid", err)
	}
	log.Info("✓ Prompt policy ready", "mode", policy.Mode, "domain", policy.Domain)

	// ──── Step 3: Initialize Gemini Client ────
	provider, err := services.NewProvider(context.Background(), services.ProviderConfig{
		Backend:           cfg.GeminiBackend,
		APIKey:            cfg.GeminiAPIKey,
		Model:             cfg.GeminiModel,
		BaseURL:           cfg.GeminiBaseURL,
		SystemInstruction: policy.Instruction(),
		EnableSearch:      policy.Search(),
	})
	if err != nil {
		fatal(log, "✗ Gemini client initialization failed", err)
	}
	defer provider.Close()
	log.Info("✓ Gemini client initialized", "backend", provider.Name(), "model", cfg.GeminiModel)

	// ──── Step 4: Initialize Session Store ────
	var store sessions.Store
	var memoryStore *sessions.MemoryStore
	if policy.Stateful() {
		opts := sessions.Options{IdleTimeout: cfg.SessionIdleTimeout, MaxTurns: cfg.SessionMaxTurns}

		switch cfg.SessionStore {
		case "redis":
			client, err := database.NewRedisClient(cfg.RedisURL)
			if err != nil {
				fatal(log, "✗ Redis connection failed", err)
			}
			defer client.Close()
			store = sessions.NewRedisStore(client, opts)
			log.Info("✓ Redis session store connected")
		default:
			memoryStore = sessions.NewMemoryStore(opts, log)
			memoryStore.Start()
			store = memoryStore
			log.Info("✓ In-memory session store started", "idle_timeout", cfg.SessionIdleTimeout)
		}
	}

	// ──── Step 5: Initialize Services & Handlers ────
	relay, err := services.NewRelayService(services.RelayConfig{
		Provider:      provider,
		Policy:        policy,
		Store:         store,
		FallbackText:  cfg.FallbackText,
		Timeout:       cfg.ProviderTimeout,
		MaxConcurrent: cfg.GeminiConcurrentReqs,
		Logger:        log,
	})
	if err != nil {
		fatal(log, "✗ Relay initialization failed", err)
	}
	chatHandler := handlers.NewChatHandler(relay, log)

	// ──── Step 6: Start HTTP Server ────
	r := router.New(chatHandler, cfg.AllowedOrigins, log)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.ProviderTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down...")
		if memoryStore != nil {
			memoryStore.Stop()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("Shutdown did not complete", "error", err)
		}
	}()

	if cfg.AllowsAnyOrigin() {
		log.Warn("CORS admits every origin; set ALLOWED_ORIGINS to restrict it")
	}
	log.Info(fmt.Sprintf("✓ Gemini relay ready on http://localhost:%s", cfg.Port))
	log.Info(fmt.Sprintf("  API:    http://localhost:%s/api/chat", cfg.Port))
	log.Info(fmt.Sprintf("  Widget: http://localhost:%s/chat/", cfg.Port))

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		fatal(log, "Server error", err)
	}
	<-done
}

// newLogger builds the console logger and, when LOG_FILE is set, tees JSON
// records into that file.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	console, err := logger.FromSettings(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	if cfg.LogFile == "" {
		return console, nil
	}

	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		console.Warn("LOG_FILE not writable, logging to console only", "path", cfg.LogFile, "error", err)
		return console, nil
	}

	file, err := logger.FromSettings(cfg.LogLevel, string(logger.FormatJSON), logger.WithOutput(f))
	if err != nil {
		return nil, err
	}
	return logger.Multi(console, file), nil
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
