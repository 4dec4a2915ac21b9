package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newLoggedRouter(t *testing.T) (*gin.Engine, *bytes.Buffer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, nil))

	router := gin.New()
	router.Use(CorrelationIDMiddleware(), SlogLoggerMiddleware(logger))
	router.GET("/v1/partitions/:partition/applications", func(c *gin.Context) {
		c.JSON(http.StatusOK, []string{})
	})
	router.GET("/v1/storage/usage", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})
	return router, buf
}

func TestRequestLogCarriesPartition(t *testing.T) {
	router, buf := newLoggedRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/partitions/zh/applications", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	line := buf.String()
	if !strings.Contains(line, "partition=zh") {
		t.Errorf("log line missing partition field: %s", line)
	}
	if !strings.Contains(line, "correlation_id=") {
		t.Errorf("log line missing correlation id: %s", line)
	}
}

func TestServerErrorLoggedAtErrorLevel(t *testing.T) {
	router, buf := newLoggedRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/storage/usage", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	line := buf.String()
	if !strings.Contains(line, "level=ERROR") || !strings.Contains(line, "request failed") {
		t.Errorf("5xx should log at error level: %s", line)
	}
	if strings.Contains(line, "partition=") {
		t.Errorf("global route should not carry a partition field: %s", line)
	}
}
