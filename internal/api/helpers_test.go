package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/screener/internal/models"
	"github.com/persistorai/screener/internal/persist"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)

	return l
}

// mockScreener returns canned reports.
type mockScreener struct {
	screen  func(ctx context.Context, req models.ScreenRequest) (*models.RiskReport, error)
	reports map[uuid.UUID]*models.RiskReport
}

func (m *mockScreener) Screen(ctx context.Context, req models.ScreenRequest) (*models.RiskReport, error) {
	return m.screen(ctx, req)
}

func (m *mockScreener) GetReport(_ context.Context, id uuid.UUID) (*models.RiskReport, error) {
	r, ok := m.reports[id]
	if !ok {
		return nil, persist.ErrNotFound
	}

	return r, nil
}

// doRequest performs an HTTP request against the test router and returns the recorder.
func doRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, http.NoBody)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}
