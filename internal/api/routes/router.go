package routes

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/karasuemlak/backend/internal/api/handlers"
	"github.com/karasuemlak/backend/internal/api/middleware"
	"github.com/karasuemlak/backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	improvementHandler *handlers.ImprovementHandler
	contentHandler     *handlers.ContentHandler
	sseHandler         *handlers.SSEHandler

	jwtSecret      string
	allowedOrigins []string
	metrics        *observability.Metrics
}

// RouterConfig carries the settings the middleware chain needs
type RouterConfig struct {
	JWTSecret      string
	AllowedOrigins []string
	Metrics        *observability.Metrics
}

// NewRouter creates a new router. sseHandler may be nil when Redis is disabled.
func NewRouter(
	improvementHandler *handlers.ImprovementHandler,
	contentHandler *handlers.ContentHandler,
	sseHandler *handlers.SSEHandler,
	cfg RouterConfig,
) *Router {
	return &Router{
		mux:                http.NewServeMux(),
		improvementHandler: improvementHandler,
		contentHandler:     contentHandler,
		sseHandler:         sseHandler,
		jwtSecret:          cfg.JWTSecret,
		allowedOrigins:     cfg.AllowedOrigins,
		metrics:            cfg.Metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	r.mux.Handle("GET /metrics", promhttp.Handler())

	admin := middleware.AdminAuth(r.jwtSecret)

	// AI improvement endpoints
	r.mux.Handle("POST /api/admin/ai/improve", admin(http.HandlerFunc(r.improvementHandler.Improve)))
	r.mux.Handle("POST /api/admin/ai/jobs/{id}/apply", admin(http.HandlerFunc(r.improvementHandler.Apply)))
	r.mux.Handle("GET /api/admin/ai/jobs/{id}", admin(http.HandlerFunc(r.improvementHandler.GetJob)))
	r.mux.Handle("GET /api/admin/ai/jobs", admin(http.HandlerFunc(r.improvementHandler.ListJobs)))

	// Direct CMS writes
	r.mux.Handle("PATCH /api/admin/content/{type}/{id}", admin(http.HandlerFunc(r.contentHandler.UpdateField)))

	if r.sseHandler != nil {
		r.mux.Handle("GET /api/stream/jobs/{id}", admin(http.HandlerFunc(r.sseHandler.StreamJobUpdates)))
	}

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.LoggingMiddleware(handler)

	// CORS wraps everything so preflights never reach auth
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
