package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/vitalis-health/ai-routing/app"
	"github.com/vitalis-health/ai-routing/handlers"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	routeHandler := handlers.NewRouteHandler(deps.Router, deps.Metrics, deps.Logger)
	providerHandler := handlers.NewProviderHandler(deps.Router, deps.Logger)
	cacheHandler := handlers.NewCacheHandler(deps.CacheService(), deps.Logger)
	auditHandler := handlers.NewAuditHandler(deps.AuditLogs, deps.Logger)
	healthHandler := handlers.NewHealthHandler(deps.SQLDB(), deps.Router, deps.Logger)

	// Health check endpoints
	r.Get("/healthz", healthHandler.HandleHealth)
	r.Get("/readyz", healthHandler.HandleReadiness)

	// Prometheus metrics
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/route", routeHandler.HandleRoute)

		r.Route("/providers", func(r chi.Router) {
			r.Get("/", providerHandler.HandleList)
			r.Get("/health", providerHandler.HandleHealthList)
			r.Get("/{id}/health", providerHandler.HandleHealth)
			r.Get("/{id}/metrics", providerHandler.HandleMetrics)
			r.Put("/{id}/enabled", providerHandler.HandleSetEnabled)
		})

		r.Route("/cache", func(r chi.Router) {
			r.Get("/stats", cacheHandler.HandleStats)
			r.Post("/cleanup", cacheHandler.HandleCleanup)
		})

		r.Route("/audit", func(r chi.Router) {
			r.Get("/logs", auditHandler.HandleList)
			r.Get("/logs/{id}", auditHandler.HandleGet)
			r.Get("/requests/{requestID}", auditHandler.HandleByRequest)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
