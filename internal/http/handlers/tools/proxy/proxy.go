// Package proxy передаёт допущенные вызовы инструментов во внешний сервис генерации.
//
// Ответ сервиса возвращается клиенту без изменений; заголовок X-Tokens-Used
// ответа используется AdmissionMiddleware для учёта токенов.
package proxy

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"path"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/study-notes/internal/http/middlewarectx"
	"github.com/magabrotheeeer/study-notes/internal/http/response"
	"github.com/magabrotheeeer/study-notes/internal/lib/sl"
)

// Заголовки, которыми upstream получает субъекта вызова.
const (
	PrincipalHeader = "X-Principal-ID"
	GuestHeader     = "X-Guest-Session"
)

// Handler обрабатывает POST /tools/{tool}.
type Handler struct {
	log   *slog.Logger
	proxy *httputil.ReverseProxy
}

// New создает Handler, проксирующий запросы на upstream.
func New(log *slog.Logger, upstream string) (*Handler, error) {
	const op = "handlers.tools.proxy.New"
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("%s: upstream url %q must be absolute", op, upstream)
	}

	h := &Handler{log: log}
	h.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.URL.Path = path.Join("/", target.Path, chi.URLParam(pr.In, "tool"))
			pr.Out.URL.RawPath = ""
			pr.Out.Header.Del("Authorization")
			pr.Out.Header.Del(middlewarectx.SessionHeader)
			actor := middlewarectx.ActorFromContext(pr.In.Context())
			if actor.IsGuest() {
				pr.Out.Header.Set(GuestHeader, "1")
			} else {
				pr.Out.Header.Set(PrincipalHeader, actor.PrincipalID)
			}
			pr.SetXForwarded()
		},
		ErrorHandler: h.upstreamError,
	}
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.proxy.ServeHTTP(w, r)
}

func (h *Handler) upstreamError(w http.ResponseWriter, r *http.Request, err error) {
	const op = "handlers.tools.proxy"
	h.log.Error("upstream tool call failed",
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("tool", chi.URLParam(r, "tool")),
		sl.Err(err))
	render.Status(r, http.StatusBadGateway)
	render.JSON(w, r, response.Error("tool is unavailable"))
}
