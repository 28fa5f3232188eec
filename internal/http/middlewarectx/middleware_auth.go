// Package middlewarectx содержит HTTP middleware, которые кладут в контекст запроса
// субъекта (принципала из JWT или гостевую сессию), ограничивают частоту запросов
// и оборачивают вызовы инструментов в допуск движка учёта использования.
//
// JWTMiddleware требует валидный JWT в заголовке Authorization и возвращает
// HTTP 401 Unauthorized, если токена нет или он не прошёл проверку.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/study-notes/internal/http/response"
	"github.com/magabrotheeeer/study-notes/internal/lib/jwt"
	"github.com/magabrotheeeer/study-notes/internal/lib/sl"
	"github.com/magabrotheeeer/study-notes/internal/services/usage"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// PrincipalID — ключ идентификатора аутентифицированного принципала в контексте
	PrincipalID Key = "principal_id"
	// Role — ключ для роли пользователя в контексте
	Role Key = "role"
	// Session — ключ токена сессии в контексте
	Session Key = "session"
)

// SessionHeader заголовок с непрозрачным токеном сессии.
const SessionHeader = "X-Session-Token"

// TokenParser проверяет JWT и возвращает его claims.
type TokenParser interface {
	ParseToken(tokenStr string) (*jwt.CustomClaims, error)
}

// JWTMiddleware возвращает HTTP middleware, который проверяет JWT в заголовке Authorization.
//
// Если токен валиден, добавляет идентификатор принципала и роль в контекст запроса,
// иначе возвращает ошибку с HTTP статусом 401 Unauthorized.
func JWTMiddleware(parser TokenParser, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Error("missing or invalid authorization header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}

			claims, err := parser.ParseToken(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				log.Error("invalid or expired token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// OptionalJWTMiddleware добавляет принципала в контекст, если запрос несёт валидный JWT.
// Запрос без заголовка Authorization проходит дальше как гостевой.
func OptionalJWTMiddleware(parser TokenParser, log *slog.Logger) func(http.Handler) http.Handler {
	required := JWTMiddleware(parser, log)
	return func(next http.Handler) http.Handler {
		withAuth := required(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			withAuth.ServeHTTP(w, r)
		})
	}
}

// SessionMiddleware кладёт в контекст токен сессии из заголовка X-Session-Token.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := r.Header.Get(SessionHeader); token != "" {
			r = r.WithContext(context.WithValue(r.Context(), Session, token))
		}
		next.ServeHTTP(w, r)
	})
}

func withClaims(ctx context.Context, claims *jwt.CustomClaims) context.Context {
	ctx = context.WithValue(ctx, PrincipalID, claims.PrincipalID)
	return context.WithValue(ctx, Role, claims.Role)
}

// PrincipalFromContext возвращает идентификатор аутентифицированного принципала.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(PrincipalID).(string)
	return id, ok && id != ""
}

// SessionFromContext возвращает токен сессии запроса.
func SessionFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(Session).(string)
	return token, ok && token != ""
}

// ActorFromContext собирает субъекта запроса для движка учёта использования.
func ActorFromContext(ctx context.Context) usage.Actor {
	principalID, _ := PrincipalFromContext(ctx)
	session, _ := SessionFromContext(ctx)
	return usage.Actor{PrincipalID: principalID, Session: session}
}
