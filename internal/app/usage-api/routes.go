// Package usageapi собирает HTTP API движка учёта использования.
package usageapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magabrotheeeer/study-notes/internal/http/handlers/guest/initguest"
	"github.com/magabrotheeeer/study-notes/internal/http/handlers/guest/trial"
	"github.com/magabrotheeeer/study-notes/internal/http/handlers/guest/upgrade"
	"github.com/magabrotheeeer/study-notes/internal/http/handlers/health"
	"github.com/magabrotheeeer/study-notes/internal/http/handlers/notes/create"
	"github.com/magabrotheeeer/study-notes/internal/http/handlers/usage/limits"
	"github.com/magabrotheeeer/study-notes/internal/http/handlers/usage/quota"
	"github.com/magabrotheeeer/study-notes/internal/http/handlers/usage/stats"
	"github.com/magabrotheeeer/study-notes/internal/http/middlewarectx"
	"github.com/magabrotheeeer/study-notes/internal/services/usage"
)

// AdminRole роль, которой разрешено менять лимиты.
const AdminRole = "admin"

// Deps зависимости маршрутов.
type Deps struct {
	Engine  *usage.Engine
	Tokens  middlewarectx.TokenParser
	Limiter *middlewarectx.RateLimiter
	Tools   http.Handler
	Health  map[string]health.Checker
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewarectx.SessionMiddleware)

		// Гостевые и смешанные конечные точки: JWT необязателен
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.OptionalJWTMiddleware(deps.Tokens, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger, deps.Limiter))

			r.Post("/guest/init", initguest.New(logger, deps.Engine).ServeHTTP)
			r.Get("/guest/trial/{tool}", trial.New(logger, deps.Engine).ServeHTTP)
			r.Post("/notes", create.New(logger, deps.Engine).ServeHTTP)

			r.With(middlewarectx.AdmissionMiddleware(logger, deps.Engine)).
				Post("/tools/{tool}", deps.Tools.ServeHTTP)
		})

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(deps.Tokens, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger, deps.Limiter))

			r.Post("/guest/upgrade", upgrade.New(logger, deps.Engine).ServeHTTP)
			r.Get("/usage/quota", quota.New(logger, deps.Engine).ServeHTTP)
			r.Get("/usage/stats", stats.New(logger, deps.Engine).ServeHTTP)

			r.With(middlewarectx.RequireRole(logger, AdminRole)).
				Put("/usage/quota/{principal}", limits.New(logger, deps.Engine).ServeHTTP)
		})
	})

	r.Get("/health", health.New(logger, deps.Health).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
}
