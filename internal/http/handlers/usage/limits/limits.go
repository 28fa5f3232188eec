// Package limits реализует административный HTTP-обработчик изменения лимитов квоты.
package limits

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/study-notes/internal/http/response"
	"github.com/magabrotheeeer/study-notes/internal/lib/sl"
	"github.com/magabrotheeeer/study-notes/internal/models"
)

// Handler обрабатывает PUT /usage/quota/{principal}.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает изменение лимитов принципала.
type Service interface {
	SetLimits(ctx context.Context, principalID string, limits models.QuotaLimits) error
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.usage.limits"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	principalID := chi.URLParam(r, "principal")
	if principalID == "" {
		log.Error("principal is empty")
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("principal is required"))
		return
	}

	var req models.QuotaLimits
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	if err := h.service.SetLimits(r.Context(), principalID, req); err != nil {
		log.Error("failed to set limits", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not set limits"))
		return
	}

	log.Info("quota limits updated",
		slog.String("principal_id", principalID),
		slog.Int("daily", req.Daily),
		slog.Int("monthly", req.Monthly))
	render.JSON(w, r, response.StatusOKWithData(req))
}
