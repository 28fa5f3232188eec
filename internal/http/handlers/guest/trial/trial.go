// Package trial реализует HTTP-обработчик проверки гостевого лимита инструмента.
package trial

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/study-notes/internal/http/middlewarectx"
	"github.com/magabrotheeeer/study-notes/internal/http/response"
	"github.com/magabrotheeeer/study-notes/internal/lib/sl"
	"github.com/magabrotheeeer/study-notes/internal/models"
)

// Handler обрабатывает GET /guest/trial/{tool}.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает проверку пробного лимита.
type Service interface {
	GuestCheck(ctx context.Context, session string, tool models.ToolKind) (models.TrialStatus, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.guest.trial"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	session, ok := middlewarectx.SessionFromContext(r.Context())
	if !ok {
		log.Error("session token missing")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("session token required"))
		return
	}

	status, err := h.service.GuestCheck(r.Context(), session, models.ToolKind(chi.URLParam(r, "tool")))
	if errors.Is(err, models.ErrUnknownTool) {
		log.Warn("unknown tool", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("unknown tool"))
		return
	}
	if err != nil {
		log.Error("failed to check trial", sl.Err(err))
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("could not check trial"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(status))
}
