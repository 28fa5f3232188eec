// Package stats реализует HTTP-обработчик дашборда агрегированной статистики.
package stats

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/study-notes/internal/http/middlewarectx"
	"github.com/magabrotheeeer/study-notes/internal/http/response"
	"github.com/magabrotheeeer/study-notes/internal/lib/sl"
	"github.com/magabrotheeeer/study-notes/internal/models"
)

// Handler обрабатывает GET /usage/stats.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает чтение агрегата.
type Service interface {
	Dashboard(ctx context.Context, principalID string) (models.Dashboard, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.usage.stats"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	principalID, ok := middlewarectx.PrincipalFromContext(r.Context())
	if !ok {
		log.Error("principal missing in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	dashboard, err := h.service.Dashboard(r.Context(), principalID)
	switch {
	case errors.Is(err, models.ErrComputeInconsistency):
		log.Error("aggregate unavailable", sl.Err(err))
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, response.Error("statistics are being recomputed"))
		return
	case errors.Is(err, models.ErrTransientStore):
		log.Error("store unavailable", sl.Err(err))
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("could not read statistics"))
		return
	case err != nil:
		log.Error("failed to read dashboard", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read statistics"))
		return
	}

	log.Debug("dashboard served", slog.Bool("served_fresh", dashboard.ServedFresh))
	render.JSON(w, r, response.StatusOKWithData(dashboard))
}
