// Package quota реализует HTTP-обработчик просмотра остатка квоты принципала.
package quota

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

// Handler обрабатывает GET /usage/quota.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает чтение квоты.
type Service interface {
	Remaining(ctx context.Context, principalID string) (models.QuotaView, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.usage.quota"
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

	view, err := h.service.Remaining(r.Context(), principalID)
	if err != nil {
		log.Error("failed to read quota", sl.Err(err))
		status := http.StatusInternalServerError
		if errors.Is(err, models.ErrTransientStore) {
			status = http.StatusServiceUnavailable
		}
		render.Status(r, status)
		render.JSON(w, r, response.Error("could not read quota"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(view))
}
