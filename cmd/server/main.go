package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/xannhsux/dsci560-hikebot/internal/api"
	"github.com/xannhsux/dsci560-hikebot/internal/cache"
	"github.com/xannhsux/dsci560-hikebot/internal/catalog"
	"github.com/xannhsux/dsci560-hikebot/internal/config"
	"github.com/xannhsux/dsci560-hikebot/internal/enrich"
	"github.com/xannhsux/dsci560-hikebot/internal/handlers"
	"github.com/xannhsux/dsci560-hikebot/internal/hub"
	"github.com/xannhsux/dsci560-hikebot/internal/llm"
	"github.com/xannhsux/dsci560-hikebot/internal/planner"
	"github.com/xannhsux/dsci560-hikebot/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Durable store: Postgres when configured, SQLite otherwise. Schema
	// bootstrap runs inside the constructor.
	var st store.Store
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		st = pg
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		sq, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		st = sq
		logger.Info().Str("path", cfg.SQLitePath).Msg("using SQLite store")
	}
	defer st.Close()

	// Redis: search index, weather cache, rate limiting. Optional outside
	// production.
	var redisCache *cache.Redis
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		var err error
		redisCache, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisCache.Close()
		redisClient = redisCache.Client()
		logger.Info().Msg("connected to Redis")
	} else {
		logger.Warn().Msg("REDIS_URL not set: search, weather cache and rate limiting disabled")
	}

	// Generative backend. Without a key the chat works but the assistant
	// never speaks.
	var llmClient llm.Client
	if cfg.OpenAIKey != "" {
		oa, err := llm.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.IntentModel, cfg.LLMTimeout)
		if err != nil {
			logger.Fatal().Err(err).Msg("llm client init failed")
		}
		llmClient = oa
	} else {
		logger.Warn().Msg("OPENAI_API_KEY not set: assistant disabled")
	}

	cat := catalog.New(
		catalog.NewStoreSource(st),
		catalog.SeedSource{},
		cfg.PrimaryThreshold,
		cfg.FallbackThreshold,
		logger,
	)

	weather := enrich.NewWeatherClient(cfg.WeatherBaseURL, cfg.EnrichTimeout, redisCache, logger)
	var reports *enrich.ReportsClient
	if cfg.ReportsBaseURL != "" {
		reports = enrich.NewReportsClient(cfg.ReportsBaseURL, cfg.ReportsDays, cfg.EnrichTimeout)
	}
	enricher := enrich.New(weather, reports, cfg.EnrichTimeout, logger)

	h := hub.New(st, logger)
	pl := planner.New(st, h, cat, enricher, llmClient, cfg, logger)

	handler := handlers.NewHandler(st, redisCache, h, pl, cfg, logger)
	router := api.NewRouter(logger, handler, redisClient, cfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting HikeBot server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
