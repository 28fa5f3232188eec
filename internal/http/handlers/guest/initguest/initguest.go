// Package initguest реализует HTTP-обработчик инициализации гостевой сессии.
//
// Токен сессии берётся из заголовка X-Session-Token, из тела запроса
// или генерируется заново. Повторная инициализация той же сессии
// возвращает существующее состояние пробного режима.
package initguest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/study-notes/internal/http/middlewarectx"
	"github.com/magabrotheeeer/study-notes/internal/http/response"
	"github.com/magabrotheeeer/study-notes/internal/lib/sl"
	"github.com/magabrotheeeer/study-notes/internal/models"
)

// Request тело запроса; пустое тело допустимо.
type Request struct {
	SessionToken string `json:"session_token" validate:"omitempty,uuid"`
}

// Handler обрабатывает POST /guest/init.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает гостевую часть движка учёта.
type Service interface {
	GuestInit(ctx context.Context, session string) (models.GuestState, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.guest.init"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
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

	session, ok := middlewarectx.SessionFromContext(r.Context())
	if !ok {
		session = req.SessionToken
	}
	if session == "" {
		session = uuid.NewString()
	}

	state, err := h.service.GuestInit(r.Context(), session)
	if err != nil {
		log.Error("failed to init guest session", sl.Err(err))
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("could not init guest session"))
		return
	}

	log.Info("guest session ready", slog.String("guest_id", state.GuestID))
	w.Header().Set(middlewarectx.SessionHeader, session)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"session_token": session,
		"guest":         state,
	}))
}
