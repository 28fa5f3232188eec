package middlewarectx_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/study-notes/internal/http/middlewarectx"
	"github.com/magabrotheeeer/study-notes/internal/lib/jwt"
	"github.com/magabrotheeeer/study-notes/internal/models"
	"github.com/magabrotheeeer/study-notes/internal/services/usage"
)

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestJWTMiddleware(t *testing.T) {
	maker := jwt.NewJWTMaker("secret", time.Hour)
	valid, err := maker.GenerateToken("user-1", "user")
	require.NoError(t, err)
	foreign, err := jwt.NewJWTMaker("other", time.Hour).GenerateToken("user-1", "user")
	require.NoError(t, err)

	tests := []struct {
		name           string
		authHeader     string
		wantStatusCode int
		wantCalled     bool
	}{
		{name: "valid token", authHeader: "Bearer " + valid, wantStatusCode: http.StatusOK, wantCalled: true},
		{name: "missing header", authHeader: "", wantStatusCode: http.StatusUnauthorized},
		{name: "wrong scheme", authHeader: "Basic abc", wantStatusCode: http.StatusUnauthorized},
		{name: "foreign signature", authHeader: "Bearer " + foreign, wantStatusCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				id, ok := middlewarectx.PrincipalFromContext(r.Context())
				assert.True(t, ok)
				assert.Equal(t, "user-1", id)
				assert.Equal(t, "user", r.Context().Value(middlewarectx.Role))
				w.WriteHeader(http.StatusOK)
			})
			h := middlewarectx.JWTMiddleware(maker, newNoopLogger())(next)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatusCode, rr.Code)
			assert.Equal(t, tt.wantCalled, called)
		})
	}
}

func TestOptionalJWTMiddleware_GuestPassesThrough(t *testing.T) {
	maker := jwt.NewJWTMaker("secret", time.Hour)
	var actor usage.Actor
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor = middlewarectx.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := middlewarectx.SessionMiddleware(middlewarectx.OptionalJWTMiddleware(maker, newNoopLogger())(next))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middlewarectx.SessionHeader, "sess-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.True(t, actor.IsGuest())
	assert.Equal(t, "sess-1", actor.Session)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer broken")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireRole(t *testing.T) {
	maker := jwt.NewJWTMaker("secret", time.Hour)
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	h := middlewarectx.JWTMiddleware(maker, newNoopLogger())(
		middlewarectx.RequireRole(newNoopLogger(), "admin")(next))

	for role, want := range map[string]int{"admin": http.StatusOK, "user": http.StatusForbidden} {
		token, err := maker.GenerateToken("p", role)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPut, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, want, rr.Code, role)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := middlewarectx.NewRateLimiter(0.001, 2)
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	h := middlewarectx.SessionMiddleware(middlewarectx.RateLimitMiddleware(newNoopLogger(), limiter)(next))

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(middlewarectx.SessionHeader, "sess-a")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middlewarectx.SessionHeader, "sess-b")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code, "other clients have their own bucket")
}

type MockAdmitter struct {
	mock.Mock
}

func (m *MockAdmitter) Admit(ctx context.Context, actor usage.Actor, tool models.ToolKind) (usage.Decision, error) {
	args := m.Called(ctx, actor, tool)
	return args.Get(0).(usage.Decision), args.Error(1)
}

func (m *MockAdmitter) Finish(ctx context.Context, actor usage.Actor, decision usage.Decision, tool models.ToolKind,
	tokens int64, content string) error {
	args := m.Called(ctx, actor, decision, tool, tokens, content)
	return args.Error(0)
}

func (m *MockAdmitter) Abort(ctx context.Context, actor usage.Actor, decision usage.Decision) error {
	args := m.Called(ctx, actor, decision)
	return args.Error(0)
}

func serveTool(t *testing.T, admitter *MockAdmitter, upstream http.HandlerFunc, tool string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Use(middlewarectx.SessionMiddleware)
	r.With(middlewarectx.AdmissionMiddleware(newNoopLogger(), admitter)).Post("/tools/{tool}", upstream)

	req := httptest.NewRequest(http.MethodPost, "/tools/"+tool, nil)
	req.Header.Set(middlewarectx.SessionHeader, "sess")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestAdmissionMiddleware_CommitsOnSuccess(t *testing.T) {
	admitter := &MockAdmitter{}
	decision := usage.Decision{Allowed: true}
	actor := usage.Actor{Session: "sess"}
	admitter.On("Admit", mock.Anything, actor, models.ToolGenerate).Return(decision, nil)
	admitter.On("Finish", mock.Anything, actor, decision, models.ToolGenerate, int64(42), "generated text").Return(nil)

	rr := serveTool(t, admitter, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(middlewarectx.TokensHeader, "42")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("generated text"))
	}, "generate")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "generated text", rr.Body.String())
	admitter.AssertExpectations(t)
	admitter.AssertNotCalled(t, "Abort", mock.Anything, mock.Anything, mock.Anything)
}

func TestAdmissionMiddleware_ReleasesOnUpstreamFailure(t *testing.T) {
	admitter := &MockAdmitter{}
	decision := usage.Decision{Allowed: true}
	admitter.On("Admit", mock.Anything, mock.Anything, models.ToolQuiz).Return(decision, nil)
	admitter.On("Abort", mock.Anything, mock.Anything, decision).Return(nil)

	rr := serveTool(t, admitter, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, "quiz")

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	admitter.AssertExpectations(t)
	admitter.AssertNotCalled(t, "Finish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAdmissionMiddleware_ReleasesWhenCommitFails(t *testing.T) {
	admitter := &MockAdmitter{}
	decision := usage.Decision{Allowed: true}
	admitter.On("Admit", mock.Anything, mock.Anything, models.ToolImprove).Return(decision, nil)
	admitter.On("Finish", mock.Anything, mock.Anything, decision, models.ToolImprove, int64(0), "ok").
		Return(models.ErrTransientStore)
	admitter.On("Abort", mock.Anything, mock.Anything, decision).Return(nil)

	rr := serveTool(t, admitter, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}, "improve")

	assert.Equal(t, http.StatusOK, rr.Code)
	admitter.AssertExpectations(t)
}

func TestAdmissionMiddleware_DeniedGuest(t *testing.T) {
	admitter := &MockAdmitter{}
	trial := models.TrialStatus{Tool: models.ToolGenerate, LimitReached: true, Usage: 1, Limit: 1}
	admitter.On("Admit", mock.Anything, mock.Anything, models.ToolGenerate).
		Return(usage.Decision{Allowed: false, Trial: &trial}, nil)

	called := false
	rr := serveTool(t, admitter, func(http.ResponseWriter, *http.Request) { called = true }, "generate")

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.False(t, called)
	assert.JSONEq(t, `{"status":"Error","error":"trial_exhausted",
		"data":{"tool":"generate","allowed":false,"limit_reached":true,"usage":1,"limit":1}}`, rr.Body.String())
}

func TestAdmissionMiddleware_DeniedPrincipalCarriesLimits(t *testing.T) {
	admitter := &MockAdmitter{}
	denial := &models.DenialError{Reason: models.ReasonDailyLimit, DailyUsed: 10, DailyLimit: 10, MonthlyUsed: 10, MonthlyLimit: 200}
	admitter.On("Admit", mock.Anything, mock.Anything, models.ToolImprove).
		Return(usage.Decision{Admission: models.Admission{Denial: denial}}, nil)

	rr := serveTool(t, admitter, func(http.ResponseWriter, *http.Request) {}, "improve")

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Contains(t, rr.Body.String(), `"error":"daily_limit_reached"`)
	assert.Contains(t, rr.Body.String(), `"daily_used":10`)
}

func TestAdmissionMiddleware_Errors(t *testing.T) {
	admitter := &MockAdmitter{}
	admitter.On("Admit", mock.Anything, mock.Anything, models.ToolSummarize).
		Return(usage.Decision{}, models.ErrTransientStore)

	rr := serveTool(t, admitter, func(http.ResponseWriter, *http.Request) {}, "summarize")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = serveTool(t, admitter, func(http.ResponseWriter, *http.Request) {}, "translate")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdmissionMiddleware_UninitializedSessionIsUnauthorized(t *testing.T) {
	admitter := &MockAdmitter{}
	admitter.On("Admit", mock.Anything, usage.Actor{Session: "sess"}, models.ToolGenerate).
		Return(usage.Decision{}, fmt.Errorf("usage.Admit: %w", models.ErrNotGuest))

	called := false
	rr := serveTool(t, admitter, func(http.ResponseWriter, *http.Request) { called = true }, "generate")

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "guest session is not initialized")
	assert.False(t, called)
	admitter.AssertNotCalled(t, "Finish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	admitter.AssertNotCalled(t, "Abort", mock.Anything, mock.Anything, mock.Anything)
}
