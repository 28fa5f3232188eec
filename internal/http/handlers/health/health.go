// Package health реализует HTTP-обработчик проверки готовности сервиса.
package health

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/study-notes/internal/http/response"
	"github.com/magabrotheeeer/study-notes/internal/lib/sl"
)

// Checker проверяет доступность зависимости.
type Checker func(ctx context.Context) error

// Handler обрабатывает GET /health.
type Handler struct {
	log    *slog.Logger
	checks map[string]Checker
}

// New создает Handler с набором именованных проверок.
func New(log *slog.Logger, checks map[string]Checker) *Handler {
	return &Handler{log: log, checks: checks}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	statuses := make(map[string]string, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		if err := check(r.Context()); err != nil {
			log.Error("dependency is unhealthy", slog.String("dependency", name), sl.Err(err))
			statuses[name] = "down"
			healthy = false
			continue
		}
		statuses[name] = "up"
	}

	if !healthy {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, response.ErrorWithData("service is degraded", statuses))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(statuses))
}
