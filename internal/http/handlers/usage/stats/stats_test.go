package stats

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/study-notes/internal/http/middlewarectx"
	"github.com/magabrotheeeer/study-notes/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Dashboard(ctx context.Context, principalID string) (models.Dashboard, error) {
	args := m.Called(ctx, principalID)
	return args.Get(0).(models.Dashboard), args.Error(1)
}

func TestStatsHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	computed := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "свежий снимок",
			setupMock: func(m *MockService) {
				m.On("Dashboard", mock.Anything, "user-1").Return(models.Dashboard{
					Snapshot: models.Snapshot{
						PrincipalID:    "user-1",
						CategoryCounts: map[models.ToolKind]int{models.ToolGenerate: 4},
						ComputedAt:     computed,
					},
					ServedFresh: true,
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"category_counts":{"generate":4}`,
		},
		{
			name: "пересчёт не согласован",
			setupMock: func(m *MockService) {
				m.On("Dashboard", mock.Anything, "user-1").
					Return(models.Dashboard{}, fmt.Errorf("aggregate.Get: %w", models.ErrComputeInconsistency))
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `statistics are being recomputed`,
		},
		{
			name: "хранилище недоступно",
			setupMock: func(m *MockService) {
				m.On("Dashboard", mock.Anything, "user-1").
					Return(models.Dashboard{}, fmt.Errorf("repository.GetSnapshot: %w", models.ErrTransientStore))
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   `could not read statistics`,
		},
		{
			name: "прочая ошибка",
			setupMock: func(m *MockService) {
				m.On("Dashboard", mock.Anything, "user-1").Return(models.Dashboard{}, errors.New("boom"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `could not read statistics`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			req := httptest.NewRequest(http.MethodGet, "/usage/stats", nil)
			req = req.WithContext(context.WithValue(req.Context(), middlewarectx.PrincipalID, "user-1"))
			w := httptest.NewRecorder()

			New(logger, mockService).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}
