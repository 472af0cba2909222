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
	"github.com/rs/zerolog/log"

	"github.com/karasuemlak/backend/internal/adapters/cache"
	"github.com/karasuemlak/backend/internal/adapters/database"
	"github.com/karasuemlak/backend/internal/adapters/events"
	"github.com/karasuemlak/backend/internal/api/handlers"
	"github.com/karasuemlak/backend/internal/api/middleware"
	"github.com/karasuemlak/backend/internal/infrastructure/clients/postgres"
	"github.com/karasuemlak/backend/internal/infrastructure/clients/redis"
	"github.com/karasuemlak/backend/internal/infrastructure/observability"
	"github.com/karasuemlak/backend/pkg/config"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName+"-sse", cfg.Environment, cfg.LogLevel)
	log.Info().Msg("Starting SSE Server...")

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	// Redis is required here: followers only ever read from Pub/Sub
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Redis client")
	}
	defer redisClient.Close()

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	eventBus := events.NewRedisEventBus(redisClient)
	jobs := database.NewCachedImprovementJobAdapter(
		database.NewImprovementJobAdapter(pgClient),
		cache.NewRedisAdapter(redisClient),
	)

	sseHandler := handlers.NewSSEHandler(eventBus, handlers.NewRepositoryJobReader(jobs))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("GET /api/stream/jobs/{id}",
		middleware.AdminAuth(cfg.Supabase.JWTSecret)(http.HandlerFunc(sseHandler.StreamJobUpdates)))

	var handler http.Handler = mux
	handler = middleware.ObservabilityMiddleware(metrics)(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.CORSMiddleware(cfg.Server.AllowedOrigins)(handler)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // No timeout for SSE streaming
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("SSE Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("SSE Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("SSE Server shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	if err := eventBus.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing event bus")
	}

	log.Info().Msg("SSE Server stopped")
}
