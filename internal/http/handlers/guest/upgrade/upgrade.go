// Package upgrade реализует HTTP-обработчик перевода гостевой сессии в аккаунт.
package upgrade

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/study-notes/internal/http/middlewarectx"
	"github.com/magabrotheeeer/study-notes/internal/http/response"
	"github.com/magabrotheeeer/study-notes/internal/lib/sl"
)

// Handler обрабатывает POST /guest/upgrade.
// Запрос должен нести и JWT нового принципала, и токен гостевой сессии.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает переход гостя к QuotaLedger.
type Service interface {
	UpgradeGuest(ctx context.Context, session, principalID string) error
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.guest.upgrade"
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
	session, ok := middlewarectx.SessionFromContext(r.Context())
	if !ok {
		log.Error("session token missing")
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("session token required"))
		return
	}

	if err := h.service.UpgradeGuest(r.Context(), session, principalID); err != nil {
		log.Error("failed to upgrade guest", sl.Err(err))
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("could not upgrade guest session"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]string{"principal_id": principalID}))
}
