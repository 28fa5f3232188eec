package quota

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/study-notes/internal/http/middlewarectx"
	"github.com/magabrotheeeer/study-notes/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Remaining(ctx context.Context, principalID string) (models.QuotaView, error) {
	args := m.Called(ctx, principalID)
	return args.Get(0).(models.QuotaView), args.Error(1)
}

func TestQuotaHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		principalID    string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:        "остаток квоты",
			principalID: "user-1",
			setupMock: func(m *MockService) {
				m.On("Remaining", mock.Anything, "user-1").Return(models.QuotaView{
					DailyUsed: 3, DailyLimit: 10, MonthlyUsed: 3, MonthlyLimit: 200,
					RemainingDaily: 7, RemainingMonthly: 197, TotalTokensUsed: 1200,
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"remaining_daily":7,"remaining_monthly":197`,
		},
		{
			name:           "без принципала",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `unauthorized`,
		},
		{
			name:        "хранилище недоступно",
			principalID: "user-1",
			setupMock: func(m *MockService) {
				m.On("Remaining", mock.Anything, "user-1").
					Return(models.QuotaView{}, fmt.Errorf("quota.Remaining: %w", models.ErrTransientStore))
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   `could not read quota`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			req := httptest.NewRequest(http.MethodGet, "/usage/quota", nil)
			if tt.principalID != "" {
				req = req.WithContext(context.WithValue(req.Context(), middlewarectx.PrincipalID, tt.principalID))
			}
			w := httptest.NewRecorder()

			New(logger, mockService).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}
