package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nidhogg/pitchside/internal/agent"
	"github.com/nidhogg/pitchside/internal/api"
	"github.com/nidhogg/pitchside/internal/cache"
	"github.com/nidhogg/pitchside/internal/config"
	"github.com/nidhogg/pitchside/internal/match"
	"github.com/nidhogg/pitchside/internal/narration"
	"github.com/nidhogg/pitchside/internal/provider"
	"github.com/nidhogg/pitchside/internal/store"
	"github.com/nidhogg/pitchside/migrations"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/pitchside.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", cfgPath, err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Server.LogLevel)
	defer logger.Sync()

	logger.Info("Starting Pitchside...", zap.String("config", cfgPath))

	ctx := context.Background()

	// Initialize provider router
	router := provider.NewRouter(logger)
	for _, pc := range cfg.Providers {
		provCfg := provider.ProviderConfig{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, APIKey: pc.APIKey,
			Models: pc.Models, Extra: pc.Extra,
			Timeout: pc.Timeout.Std(),
		}
		switch pc.Type {
		case "openai":
			router.Register(provider.NewOpenAIProvider(provCfg, logger))
		case "anthropic":
			router.Register(provider.NewAnthropicProvider(provCfg, logger))
		case "gemini":
			gp, gErr := provider.NewGeminiProvider(ctx, provCfg, logger)
			if gErr != nil {
				logger.Warn("gemini provider unavailable", zap.String("id", pc.ID), zap.Error(gErr))
				continue
			}
			router.Register(gp)
		default:
			logger.Warn("unknown provider type", zap.String("id", pc.ID), zap.String("type", pc.Type))
		}
	}
	for _, id := range []string{cfg.Agent.Provider, cfg.Narration.Provider} {
		if _, ok := router.GetProvider(id); !ok {
			logger.Warn("bound provider not registered", zap.String("id", id))
		}
	}
	if _, ok := router.GetProvider(cfg.Agent.Provider); ok {
		router.SetDefault(cfg.Agent.Provider)
	}
	router.Bind(provider.PurposeAgent, cfg.Agent.Provider)
	router.SetFallbacks(provider.PurposeAgent, cfg.Agent.Fallbacks)
	router.Bind(provider.PurposeNarration, cfg.Narration.Provider)
	router.SetFallbacks(provider.PurposeNarration, cfg.Narration.Fallbacks)

	// Initialize document cache
	var docs cache.Cache
	if cfg.Database.Redis.URL != "" {
		rc, rErr := cache.NewRedisCache(cfg.Database.Redis.URL, logger)
		if rErr != nil {
			logger.Warn("Redis unavailable, caching in memory", zap.Error(rErr))
		} else {
			docs = rc
		}
	}
	if docs == nil {
		docs = cache.NewMemoryCache()
	}

	// Initialize PostgreSQL store
	var pgStore *store.Store
	var history api.History
	if cfg.Database.Postgres.DSN != "" {
		ps, pgErr := store.New(ctx, cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, running without history", zap.Error(pgErr))
		} else {
			if mErr := ps.Migrate(ctx, migrations.FS); mErr != nil {
				logger.Fatal("migration failed", zap.Error(mErr))
			}
			pgStore = ps
			history = ps
		}
	}

	// Match data, agent sessions and narration
	sb := match.NewStatsBomb(match.StatsBombConfig{
		BaseURL:  cfg.Data.BaseURL,
		CacheTTL: cfg.Data.CacheTTL.Std(),
		Timeout:  cfg.Data.Timeout.Std(),
	}, docs, logger)

	sessions := agent.NewSessions(sb, router.Generator(provider.PurposeAgent), agent.Config{
		Model:         cfg.Agent.Model,
		Temperature:   cfg.Agent.Temperature,
		MaxTokens:     cfg.Agent.MaxTokens,
		MaxIterations: cfg.Agent.MaxIterations,
		Language:      cfg.Agent.Language,
		IdleTimeout:   cfg.Agent.SessionIdle.Std(),
	}, logger)
	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	sessions.StartJanitor(janitorCtx, time.Minute)

	narrator := narration.New(router.Generator(provider.PurposeNarration), narration.Config{
		Model:       cfg.Narration.Model,
		Temperature: cfg.Narration.Temperature,
		MaxTokens:   cfg.Narration.MaxTokens,
		TopP:        cfg.Narration.TopP,
		TopK:        cfg.Narration.TopK,
		Language:    cfg.Narration.Language,
	}, logger)

	// Build HTTP handler
	handler := api.NewHandler(sessions, sb, narrator, history, logger)
	handler.SetProviders(router)

	// Start server
	port := fmt.Sprintf("%d", cfg.Server.Port)
	if port == "0" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("Pitchside listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Pitchside...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	docs.Close()
	if pgStore != nil {
		pgStore.Close()
	}
}

func newLogger(level string) *zap.Logger {
	zcfg := zap.NewDevelopmentConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		zcfg.Level = lvl
	}
	logger, err := zcfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
