package create

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/study-notes/internal/http/middlewarectx"
	"github.com/magabrotheeeer/study-notes/internal/models"
	"github.com/magabrotheeeer/study-notes/internal/services/usage"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) RecordNote(ctx context.Context, actor usage.Actor, title string) (int64, error) {
	args := m.Called(ctx, actor, title)
	return args.Get(0).(int64), args.Error(1)
}

func TestCreateNoteHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		principalID    string
		session        string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:        "заметка принципала",
			principalID: "user-1",
			body:        `{"title":"Конспект"}`,
			setupMock: func(m *MockService) {
				m.On("RecordNote", mock.Anything, usage.Actor{PrincipalID: "user-1"}, "Конспект").Return(int64(42), nil)
			},
			expectedStatus: http.StatusCreated,
			expectedBody:   `"note_id":42`,
		},
		{
			name:    "гостевой лимит исчерпан",
			session: "sess",
			body:    `{"title":"Вторая"}`,
			setupMock: func(m *MockService) {
				m.On("RecordNote", mock.Anything, usage.Actor{Session: "sess"}, "Вторая").
					Return(int64(0), fmt.Errorf("usage.RecordNote: %w", &models.TrialError{Usage: 1, Limit: 1}))
			},
			expectedStatus: http.StatusTooManyRequests,
			expectedBody:   `"error":"trial_exhausted"`,
		},
		{
			name:           "аноним без сессии",
			body:           `{"title":"x"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `session token required`,
		},
		{
			name:    "сессия не инициализирована",
			session: "unknown",
			body:    `{"title":"x"}`,
			setupMock: func(m *MockService) {
				m.On("RecordNote", mock.Anything, usage.Actor{Session: "unknown"}, "x").
					Return(int64(0), fmt.Errorf("usage.RecordNote: %w", models.ErrNotGuest))
			},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `guest session is not initialized`,
		},
		{
			name:           "пустой заголовок",
			principalID:    "user-1",
			body:           `{"title":""}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field Title is a required field`,
		},
		{
			name:        "хранилище недоступно",
			principalID: "user-1",
			body:        `{"title":"Конспект"}`,
			setupMock: func(m *MockService) {
				m.On("RecordNote", mock.Anything, usage.Actor{PrincipalID: "user-1"}, "Конспект").
					Return(int64(0), fmt.Errorf("repository.RecordNote: %w", models.ErrTransientStore))
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   `could not create note`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			req := httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader(tt.body))
			ctx := req.Context()
			if tt.principalID != "" {
				ctx = context.WithValue(ctx, middlewarectx.PrincipalID, tt.principalID)
			}
			if tt.session != "" {
				ctx = context.WithValue(ctx, middlewarectx.Session, tt.session)
			}
			w := httptest.NewRecorder()

			New(logger, mockService).ServeHTTP(w, req.WithContext(ctx))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}
