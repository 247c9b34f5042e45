package middleware_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/screener/internal/middleware"
)

func TestRequestID_IgnoresClientHeader(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	var seen string
	r := gin.New()
	r.Use(middleware.RequestID(log))
	r.GET("/test", func(c *gin.Context) {
		seen = c.GetString(middleware.RequestIDKey)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set(middleware.RequestIDHeader, "client-chosen")
	r.ServeHTTP(w, req)

	if seen == "client-chosen" {
		t.Fatal("client request ID must not become the canonical ID")
	}

	if _, err := uuid.Parse(seen); err != nil {
		t.Errorf("expected a UUID request ID, got %q", seen)
	}

	if got := w.Header().Get(middleware.RequestIDHeader); got != seen {
		t.Errorf("response header %q does not match context ID %q", got, seen)
	}
}

func TestTagSearch(t *testing.T) {
	id := uuid.New()

	var stored string
	r := gin.New()
	r.GET("/test", func(c *gin.Context) {
		middleware.TagSearch(c, id)
		stored = c.GetString(middleware.SearchIDKey)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", http.NoBody))

	if stored != id.String() {
		t.Errorf("context search ID = %q, want %s", stored, id)
	}
	if got := w.Header().Get(middleware.SearchIDHeader); got != id.String() {
		t.Errorf("%s = %q, want %s", middleware.SearchIDHeader, got, id)
	}
}
