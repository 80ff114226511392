package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/photoexchange/server/docs"
	"github.com/photoexchange/server/internal/config"
	"github.com/photoexchange/server/internal/handlers"
	custommw "github.com/photoexchange/server/internal/middleware"
	"github.com/photoexchange/server/internal/observability"
)

// routes bundles the handlers mounted by newRouter
type routes struct {
	health      *handlers.HealthHandler
	photos      *handlers.PhotoHandler
	admin       *handlers.AdminHandler
	httpMetrics *observability.HTTPMetrics
}

func newRouter(security config.Security, h routes) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.TracingMiddleware())
	if h.httpMetrics != nil {
		r.Use(observability.MetricsMiddleware(h.httpMetrics))
	}
	r.Use(custommw.APIKeyAuth(security.APIKey, security.APIKeyHeader))

	// Routes
	r.Get("/health", h.health.HealthCheck)
	r.Get("/api/health", h.health.HealthCheck)
	r.Get("/api/version", handlers.VersionHandler)

	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Group(func(r chi.Router) {
		r.Use(custommw.RequireUserHandle())

		r.Post("/api/photos", h.photos.Upload)
		r.Get("/api/photos/{name}/favourite", h.photos.FavouriteStatus)
		r.Post("/api/photos/{name}/favourite", h.photos.ToggleFavourite)
		r.Post("/api/photos/{name}/report", h.photos.ToggleReport)
	})

	r.Get("/api/gallery", h.photos.Gallery)

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(custommw.AdminKeyAuth(security.AdminAPIKey, security.AdminKeyHeader))

		r.Post("/users", h.admin.CreateUser)
		r.Post("/lifecycle/run", h.admin.RunLifecycle)
		r.Get("/lifecycle", h.admin.GetLifecycleStatus)
	})

	return r
}
