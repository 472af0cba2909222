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

	"github.com/karasuemlak/backend/internal/api/handlers"
	"github.com/karasuemlak/backend/internal/api/routes"
	"github.com/karasuemlak/backend/internal/bootstrap"
	"github.com/karasuemlak/backend/internal/infrastructure/observability"
	"github.com/karasuemlak/backend/pkg/config"
)

func main() {
	// .env is optional; real deployments inject the environment
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Environment, cfg.LogLevel)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized successfully")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	container, err := bootstrap.New(ctx, cfg, bootstrap.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize dependencies")
	}
	defer func() {
		if err := container.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing clients")
		}
	}()

	// Initialize handlers
	improvementHandler := handlers.NewImprovementHandler(container.Improvement, container.EventBus)
	contentHandler := handlers.NewContentHandler(container.Improvement)

	var sseHandler *handlers.SSEHandler
	if container.EventBus != nil {
		sseHandler = handlers.NewSSEHandler(container.EventBus, container.Improvement)
	} else {
		log.Warn().Msg("Job streaming disabled (Redis not available)")
	}

	router := routes.NewRouter(improvementHandler, contentHandler, sseHandler, routes.RouterConfig{
		JWTSecret:      cfg.Supabase.JWTSecret,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        metrics,
	})

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// No write deadline: progress streams stay open for the whole job
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", serverAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down...")

	// Running jobs get up to the provider timeout to reach a terminal state
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Improvement.ProviderTimeout+10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	log.Info().Msg("Server stopped")
}
