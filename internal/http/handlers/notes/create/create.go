// Package create реализует HTTP-обработчик создания заметки.
//
// Гостю заметка засчитывается в пределах пробного лимита,
// аутентифицированному принципалу сохраняется и инвалидирует его агрегат.
package create

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/study-notes/internal/http/middlewarectx"
	"github.com/magabrotheeeer/study-notes/internal/http/response"
	"github.com/magabrotheeeer/study-notes/internal/lib/sl"
	"github.com/magabrotheeeer/study-notes/internal/models"
	"github.com/magabrotheeeer/study-notes/internal/services/usage"
)

// Request тело запроса на создание заметки.
type Request struct {
	Title string `json:"title" validate:"required,max=200"`
}

// Handler обрабатывает POST /notes.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает учёт заметок.
type Service interface {
	RecordNote(ctx context.Context, actor usage.Actor, title string) (int64, error)
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
	const op = "handlers.notes.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	actor := middlewarectx.ActorFromContext(r.Context())
	if actor.IsGuest() && actor.Session == "" {
		log.Warn("anonymous request without session token")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("session token required"))
		return
	}

	var req Request
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

	id, err := h.service.RecordNote(r.Context(), actor, req.Title)
	var trialErr *models.TrialError
	switch {
	case errors.As(err, &trialErr):
		log.Info("guest note trial exhausted")
		render.Status(r, http.StatusTooManyRequests)
		render.JSON(w, r, response.ErrorWithData("trial_exhausted", trialErr))
		return
	case errors.Is(err, models.ErrNotGuest):
		log.Warn("session is not an initialized guest", sl.Err(err))
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("guest session is not initialized"))
		return
	case errors.Is(err, models.ErrTransientStore):
		log.Error("store unavailable", sl.Err(err))
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("could not create note"))
		return
	case err != nil:
		log.Error("failed to create note", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create note"))
		return
	}

	log.Info("note created", slog.Int64("id", id), slog.Bool("guest", actor.IsGuest()))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]int64{"note_id": id}))
}
