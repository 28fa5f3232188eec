package middlewarectx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/study-notes/internal/http/response"
	"github.com/magabrotheeeer/study-notes/internal/lib/sl"
	"github.com/magabrotheeeer/study-notes/internal/models"
	"github.com/magabrotheeeer/study-notes/internal/services/usage"
)

// TokensHeader заголовок ответа инструмента с числом израсходованных токенов.
const TokensHeader = "X-Tokens-Used"

const maxArtifactBytes = 64 << 10

// Admitter допуск и учёт вызовов инструментов.
type Admitter interface {
	Admit(ctx context.Context, actor usage.Actor, tool models.ToolKind) (usage.Decision, error)
	Finish(ctx context.Context, actor usage.Actor, decision usage.Decision, tool models.ToolKind,
		tokens int64, content string) error
	Abort(ctx context.Context, actor usage.Actor, decision usage.Decision) error
}

// AdmissionMiddleware допускает вызов инструмента {tool} до передачи его дальше.
// Ответ 2xx подтверждает использование с токенами из X-Tokens-Used,
// любой другой ответ или неудачное подтверждение возвращает резерв.
func AdmissionMiddleware(log *slog.Logger, admitter Admitter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.AdmissionMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			tool, err := models.ParseToolKind(chi.URLParam(r, "tool"))
			if err != nil {
				log.Warn("unknown tool", sl.Err(err))
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error("unknown tool"))
				return
			}

			actor := ActorFromContext(r.Context())
			if actor.IsGuest() && actor.Session == "" {
				log.Warn("anonymous request without session token")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("session token required"))
				return
			}

			decision, err := admitter.Admit(r.Context(), actor, tool)
			if errors.Is(err, models.ErrNotGuest) {
				log.Warn("session is not an initialized guest", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("guest session is not initialized"))
				return
			}
			if err != nil {
				log.Error("admission check failed", sl.Err(err))
				status := http.StatusInternalServerError
				if errors.Is(err, models.ErrTransientStore) {
					status = http.StatusServiceUnavailable
				}
				render.Status(r, status)
				render.JSON(w, r, response.Error("admission check failed"))
				return
			}
			if !decision.Allowed {
				renderDenied(w, r, log, decision)
				return
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			artifact := &limitedBuffer{max: maxArtifactBytes}
			ww.Tee(artifact)
			next.ServeHTTP(ww, r)

			ctx := context.WithoutCancel(r.Context())
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status < 200 || status >= 300 {
				if err := admitter.Abort(ctx, actor, decision); err != nil {
					log.Error("failed to release reservation", sl.Err(err))
				}
				return
			}

			tokens, err := strconv.ParseInt(ww.Header().Get(TokensHeader), 10, 64)
			if err != nil {
				tokens = 0
			}
			if err := admitter.Finish(ctx, actor, decision, tool, tokens, string(artifact.buf)); err != nil {
				log.Error("failed to commit usage", sl.Err(err))
				if err := admitter.Abort(ctx, actor, decision); err != nil {
					log.Error("failed to release reservation", sl.Err(err))
				}
			}
		})
	}
}

func renderDenied(w http.ResponseWriter, r *http.Request, log *slog.Logger, decision usage.Decision) {
	render.Status(r, http.StatusTooManyRequests)
	if decision.Trial != nil {
		log.Info("guest trial exhausted", slog.String("tool", string(decision.Trial.Tool)))
		render.JSON(w, r, response.ErrorWithData("trial_exhausted", decision.Trial))
		return
	}
	reason := "admission_denied"
	if decision.Admission.Denial != nil {
		reason = decision.Admission.Denial.Reason
	}
	log.Info("admission denied", slog.String("reason", reason))
	render.JSON(w, r, response.ErrorWithData(reason, decision.Admission.Denial))
}

// limitedBuffer сохраняет первые max байт и молча отбрасывает остальное.
type limitedBuffer struct {
	buf []byte
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.max - len(b.buf); room > 0 {
		b.buf = append(b.buf, p[:min(room, len(p))]...)
	}
	return len(p), nil
}
