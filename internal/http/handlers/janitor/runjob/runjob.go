// Package runjob реализует служебный HTTP-обработчик внепланового запуска задачи janitor.
package runjob

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/study-notes/internal/http/response"
	"github.com/magabrotheeeer/study-notes/internal/lib/sl"
	"github.com/magabrotheeeer/study-notes/internal/models"
)

// Handler обрабатывает POST /jobs/{job}/run.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service запускает задачу по имени.
type Service interface {
	RunNow(ctx context.Context, name string) (models.RunReport, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.janitor.runjob"
	job := chi.URLParam(r, "job")
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("job", job),
	)

	report, err := h.service.RunNow(r.Context(), job)
	switch {
	case errors.Is(err, models.ErrUnknownJob):
		log.Warn("unknown job")
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("unknown job"))
		return
	case errors.Is(err, models.ErrJobRunning):
		log.Warn("job is already running")
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, response.Error("job is already running"))
		return
	case err != nil:
		log.Error("failed to run job", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to run job"))
		return
	}

	log.Info("job run on demand", slog.Int("processed", report.Processed), slog.Int("errors", report.Errors))
	render.JSON(w, r, response.StatusOKWithData(report))
}
