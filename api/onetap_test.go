package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Domenick1991/fieldbooking/internal/domain"
	"github.com/Domenick1991/fieldbooking/internal/service/booking"
	"github.com/Domenick1991/fieldbooking/internal/token"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func oneTapRouter(t *testing.T, service booking.BookingUseCase) *gin.Engine {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewOneTapHandler(service, "Visual Craft", "https://book.example.com/", loc, discardLogger()).Register(router.Group("/api"))
	return router
}

func TestOneTapHandler_rescheduled(t *testing.T) {
	mockService := &MockBookingUseCase{}
	router := oneTapRouter(t, mockService)

	start := time.Date(2026, 10, 20, 17, 0, 0, 0, time.UTC)
	mockService.On("OneTapReschedule", mock.Anything, "tok").Return(&booking.OneTapResult{
		Outcome: booking.OneTapRescheduled,
		Booking: &domain.Booking{Code: "VCP-ABCD1234", Start: start, PkgMinutes: 60},
	}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/one-tap-reschedule?token=tok", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "Rescheduled to Tue, Oct 20 at 1:00 PM EDT.")
	assert.Contains(t, w.Body.String(), `href="https://book.example.com/#/manage/VCP-ABCD1234"`)
	mockService.AssertExpectations(t)
}

func TestOneTapHandler_noAvailability(t *testing.T) {
	mockService := &MockBookingUseCase{}
	router := oneTapRouter(t, mockService)

	mockService.On("OneTapReschedule", mock.Anything, "tok").Return(&booking.OneTapResult{
		Outcome: booking.OneTapNoAvailability,
		Booking: &domain.Booking{Code: "VCP-ABCD1234"},
	}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/one-tap-reschedule?token=tok", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No slots today.")
	assert.Contains(t, w.Body.String(), "Manage here")
}

func TestOneTapHandler_failures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid token", token.ErrInvalidToken, http.StatusBadRequest},
		{"unknown booking", domain.ErrNotFound, http.StatusNotFound},
		{"calendar busy", domain.ErrCalendarBusy, http.StatusServiceUnavailable},
		{"upstream", domain.Upstream("calendar patch", errors.New("boom")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockBookingUseCase{}
			router := oneTapRouter(t, mockService)
			mockService.On("OneTapReschedule", mock.Anything, "bad").Return(nil, tt.err)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("GET", "/api/one-tap-reschedule?token=bad", nil))

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), "Could not reschedule.")
			assert.Contains(t, w.Body.String(), "Manage booking")
			assert.NotContains(t, w.Body.String(), "boom")
		})
	}
}
